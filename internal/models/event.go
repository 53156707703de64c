package models

import "time"

// DecisionEventType is the header value identifying decision events on the bus.
const DecisionEventType = "credit.unblock.decision"

// DecisionEvent is published after a decision commits so downstream notifiers can
// react. It is never read back by this service.
type DecisionEvent struct {
	EventID       string         `json:"eventId"`
	MeetingID     int64          `json:"meetingId"`
	ApprovalID    int64          `json:"approvalId"`
	HistoryID     int64          `json:"histId"`
	Level         ApprovalLevel  `json:"approverLevel"`
	Role          ApproverRole   `json:"approverRole"`
	Result        DecisionResult `json:"decisionResult"`
	ApproverID    string         `json:"approverId"`
	ApproverName  string         `json:"approverName"`
	AffectedCount int64          `json:"affectedCount"`
	Comment       *string        `json:"comment,omitempty"`
	DecidedAt     time.Time      `json:"decidedAt"`
	RequestID     string         `json:"requestId,omitempty"`
}
