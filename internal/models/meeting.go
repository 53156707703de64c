package models

import "time"

// MeetingStatus is the externally owned lifecycle of a credit meeting.
type MeetingStatus string

const (
	MeetingStatusPlanned   MeetingStatus = "PLANNED"
	MeetingStatusPreparing MeetingStatus = "PREPARING"
	MeetingStatusOnGoing   MeetingStatus = "ON_GOING"
	MeetingStatusFinished  MeetingStatus = "FINISHED"
)

// Meeting is a scheduled credit-review session. The approval engine only reads it.
type Meeting struct {
	ID        int64         `db:"id" json:"id"`
	Code      string        `db:"meeting_code" json:"meetingCode"`
	Name      string        `db:"meeting_name" json:"meetingName"`
	Date      time.Time     `db:"meeting_date" json:"meetingDate"`
	Status    MeetingStatus `db:"meeting_status" json:"meetingStatus"`
	Remark    *string       `db:"remark" json:"remark,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// MeetingFilter constrains meeting listings.
type MeetingFilter struct {
	Status MeetingStatus
	From   *time.Time
	To     *time.Time
}
