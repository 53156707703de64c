package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/pkg/config"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

func TestApproverBindings(t *testing.T) {
	b := NewApproverBindings(config.ApprovalsConfig{
		FirstLevelIDs:  []string{"SM01", "SM02", "BOTH"},
		SecondLevelIDs: []string{"CEO01", "BOTH"},
	})

	id, ok := b.Default(models.ApprovalLevelFirst)
	assert.True(t, ok)
	assert.Equal(t, "SM01", id)
	id, ok = b.Default(models.ApprovalLevelSecond)
	assert.True(t, ok)
	assert.Equal(t, "CEO01", id)

	assert.True(t, b.Bound(models.ApprovalLevelFirst, "SM02"))
	assert.False(t, b.Bound(models.ApprovalLevelSecond, "SM02"))

	assert.Equal(t, models.ApprovalLevelSecond, b.LevelOf("CEO01"))
	assert.Equal(t, models.ApprovalLevelFirst, b.LevelOf("SM02"))
	assert.Equal(t, models.ApprovalLevelFirst, b.LevelOf("BOTH"))
	assert.Equal(t, models.ApprovalLevelFirst, b.LevelOf("UNKNOWN"))

	_, ok = ApproverBindings{}.Default(models.ApprovalLevelSecond)
	assert.False(t, ok)
}

func TestMeetingGate(t *testing.T) {
	gate := MeetingGate{}
	assert.True(t, errors.Is(gate.Check(nil), appErrors.ErrNotFound))

	for _, status := range []models.MeetingStatus{models.MeetingStatusPlanned, models.MeetingStatusPreparing, models.MeetingStatusOnGoing, "ARCHIVED"} {
		m := &models.Meeting{Code: "M", Status: status}
		assert.False(t, gate.IsEligible(m), status)
		assert.True(t, errors.Is(gate.Check(m), appErrors.ErrMeetingNotFinished), status)
	}

	finished := &models.Meeting{Status: models.MeetingStatusFinished}
	assert.True(t, gate.IsEligible(finished))
	assert.NoError(t, gate.Check(finished))
}
