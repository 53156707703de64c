package service

import (
	"fmt"

	"github.com/noah-isme/sales-credit-api/internal/models"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

// MeetingGate decides whether a meeting accepts approval decisions.
type MeetingGate struct{}

// IsEligible is true only once the meeting has FINISHED.
func (MeetingGate) IsEligible(meeting *models.Meeting) bool {
	return meeting != nil && meeting.Status == models.MeetingStatusFinished
}

// Check returns MEETING_NOT_FINISHED for ineligible meetings.
func (g MeetingGate) Check(meeting *models.Meeting) error {
	if meeting == nil {
		return appErrors.ErrNotFound
	}
	if !g.IsEligible(meeting) {
		return appErrors.Clone(appErrors.ErrMeetingNotFinished,
			fmt.Sprintf("meeting %s is %s; decisions are accepted once it is FINISHED", meeting.Code, meeting.Status))
	}
	return nil
}
