package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/pkg/config"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

type fakeMeetingReader struct {
	meetings  map[int64]models.Meeting
	lastQuery models.MeetingFilter
	listCalls int
}

func (f *fakeMeetingReader) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	f.listCalls++
	f.lastQuery = filter
	var out []models.Meeting
	for _, m := range f.meetings {
		if filter.Status == "" || m.Status == filter.Status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeetingReader) FindByID(ctx context.Context, id int64) (*models.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

type fakeStatsReader struct {
	breakdown []models.StatusCount
	top       []models.RequesterCount
	limit     int
	calls     int
}

func (f *fakeStatsReader) StatusBreakdown(ctx context.Context, meetingID int64) ([]models.StatusCount, error) {
	f.calls++
	return f.breakdown, nil
}

func (f *fakeStatsReader) TopRequesters(ctx context.Context, meetingID int64, limit int) ([]models.RequesterCount, error) {
	f.limit = limit
	return f.top, nil
}

type fakeApprovalReader struct {
	agg *models.ApprovalAggregate
	err error
}

func (f *fakeApprovalReader) FindByMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID int64) (*models.ApprovalAggregate, error) {
	return f.agg, f.err
}

func newMeetingServiceFixture(status models.MeetingStatus, cacheRepo *memCache) (*MeetingService, *fakeMeetingReader, *fakeStatsReader, *fakeApprovalReader) {
	meetings := &fakeMeetingReader{meetings: map[int64]models.Meeting{
		1: {ID: 1, Code: "M1", Status: status},
	}}
	stats := &fakeStatsReader{
		breakdown: []models.StatusCount{
			{Status: models.RequestStatusSubmitted, Count: 2, Amount: 150},
			{Status: models.RequestStatusRejected, Count: 1, Amount: 50.5},
		},
		top: []models.RequesterCount{{RequesterID: "S1", Count: 3}},
	}
	approvals := &fakeApprovalReader{}
	var cacheSvc *CacheService
	if cacheRepo != nil {
		cacheSvc = NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	}
	svc := NewMeetingService(meetings, stats, approvals, nil, cacheSvc, zap.NewNop(), MeetingServiceConfig{})
	return svc, meetings, stats, approvals
}

func TestMeetingStatsAggregates(t *testing.T) {
	svc, _, stats, _ := newMeetingServiceFixture(models.MeetingStatusFinished, nil)

	got, hit, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(3), got.TotalCount)
	assert.InDelta(t, 200.5, got.TotalAmount, 0.0001)
	assert.Len(t, got.TopRequesters, 1)
	assert.Equal(t, 5, stats.limit)

	status := got.ApprovalStatus
	assert.Equal(t, models.ApproverRoleNone, status.CurrentRole)
	assert.Equal(t, models.DecisionSubmitted, status.CurrentResult)
	assert.True(t, status.FirstLevelEnabled)
	assert.False(t, status.SecondLevelEnabled)
	assert.False(t, status.Finalized)
	assert.Len(t, status.Transitions, 11)
}

func TestMeetingStatsDisablesLevelsBeforeFinished(t *testing.T) {
	svc, _, _, approvals := newMeetingServiceFixture(models.MeetingStatusOnGoing, nil)
	approvals.agg = &models.ApprovalAggregate{ID: 9, MeetingID: 1, Role: models.ApproverRoleSalesManager, Result: models.DecisionApproved1st}

	got, _, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, got.ApprovalStatus.FirstLevelEnabled)
	assert.False(t, got.ApprovalStatus.SecondLevelEnabled)
	assert.Equal(t, models.DecisionApproved1st, got.ApprovalStatus.CurrentResult)
}

func TestMeetingStatsFinalized(t *testing.T) {
	svc, _, _, approvals := newMeetingServiceFixture(models.MeetingStatusFinished, nil)
	approvals.agg = &models.ApprovalAggregate{ID: 9, MeetingID: 1, Role: models.ApproverRoleCEO, Result: models.DecisionApprovedFinal}

	got, _, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, got.ApprovalStatus.Finalized)
	assert.False(t, got.ApprovalStatus.FirstLevelEnabled)
	assert.False(t, got.ApprovalStatus.SecondLevelEnabled)
}

func TestMeetingStatsUsesCache(t *testing.T) {
	repo := newMemCache()
	svc, _, stats, _ := newMeetingServiceFixture(models.MeetingStatusFinished, repo)

	_, hit, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, stats.calls)
	assert.True(t, repo.has("credit:meeting:1:stats"))
}

func TestMeetingStatsInvalidatedByDecision(t *testing.T) {
	repo := newMemCache()
	cacheSvc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	require.NoError(t, cacheSvc.Set(context.Background(), "credit:meeting:1:stats", map[string]int{"totalCount": 3}, 0))

	db := newMemDB()
	db.state.meetings[1] = models.Meeting{ID: 1, Code: "M1", Status: models.MeetingStatusFinished}
	db.state.requests[1] = models.UnblockRequest{ID: 1, MeetingID: 1, Status: models.RequestStatusSubmitted}
	decisions := NewDecisionService(db, db, db, db, db, db, cacheSvc, nil, nil, zap.NewNop(), DecisionServiceConfig{
		Bindings: NewApproverBindings(config.ApprovalsConfig{FirstLevelIDs: []string{"SM01"}}),
	})

	_, err := decisions.Decide(context.Background(), DecisionCommand{MeetingID: 1, Level: models.ApprovalLevelFirst, ApproveIDs: []int64{1}})
	require.NoError(t, err)
	assert.False(t, repo.has("credit:meeting:1:stats"))
}

func TestMeetingStatsUnknownMeeting(t *testing.T) {
	svc, _, _, _ := newMeetingServiceFixture(models.MeetingStatusFinished, nil)
	_, _, err := svc.Stats(context.Background(), 42)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestMeetingListValidatesRange(t *testing.T) {
	svc, meetings, _, _ := newMeetingServiceFixture(models.MeetingStatusFinished, nil)
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.List(context.Background(), models.MeetingFilter{From: &from, To: &to})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, meetings.listCalls)

	got, _, err := svc.List(context.Background(), models.MeetingFilter{Status: models.MeetingStatusPlanned})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, models.MeetingStatusPlanned, meetings.lastQuery.Status)
}
