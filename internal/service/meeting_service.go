package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/pkg/cache"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

type meetingReader interface {
	List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error)
	FindByID(ctx context.Context, id int64) (*models.Meeting, error)
}

type requestStatsReader interface {
	StatusBreakdown(ctx context.Context, meetingID int64) ([]models.StatusCount, error)
	TopRequesters(ctx context.Context, meetingID int64, limit int) ([]models.RequesterCount, error)
}

type approvalReader interface {
	FindByMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID int64) (*models.ApprovalAggregate, error)
}

// MeetingServiceConfig tunes meeting reads.
type MeetingServiceConfig struct {
	TopRequesterLimit int
}

// MeetingService serves meeting listings and per-meeting dashboard stats.
type MeetingService struct {
	meetings  meetingReader
	requests  requestStatsReader
	approvals approvalReader
	machine   *ApprovalMachine
	gate      MeetingGate
	cache     *CacheService
	logger    *zap.Logger
	cfg       MeetingServiceConfig
}

// NewMeetingService constructs a MeetingService.
func NewMeetingService(meetings meetingReader, requests requestStatsReader, approvals approvalReader, machine *ApprovalMachine, cacheSvc *CacheService, logger *zap.Logger, cfg MeetingServiceConfig) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if machine == nil {
		machine = NewApprovalMachine()
	}
	if cfg.TopRequesterLimit <= 0 {
		cfg.TopRequesterLimit = 5
	}
	return &MeetingService{
		meetings:  meetings,
		requests:  requests,
		approvals: approvals,
		machine:   machine,
		cache:     cacheSvc,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns meetings matching filter, newest first.
func (s *MeetingService) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, bool, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	key := cache.Key("meetings", string(filter.Status), dateKey(filter.From), dateKey(filter.To))
	meetings, hit, err := cached(ctx, s.cache, key, func(ctx context.Context) ([]models.Meeting, error) {
		meetings, err := s.meetings.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meetings")
		}
		if meetings == nil {
			meetings = []models.Meeting{}
		}
		return meetings, nil
	})
	return meetings, hit, err
}

// Get loads a meeting or returns NOT_FOUND.
func (s *MeetingService) Get(ctx context.Context, id int64) (*models.Meeting, error) {
	meeting, err := s.meetings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	return meeting, nil
}

// Stats summarises a meeting's requests and approval progress. The returned
// approval status only enables a level when the meeting is FINISHED.
func (s *MeetingService) Stats(ctx context.Context, id int64) (*models.MeetingStats, bool, error) {
	meeting, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	key := cache.Key("meeting", strconv.FormatInt(id, 10), "stats")
	stats, hit, err := cached(ctx, s.cache, key, func(ctx context.Context) (*models.MeetingStats, error) {
		return s.loadStats(ctx, meeting)
	})
	if err != nil {
		return nil, false, err
	}
	// meeting status is owned elsewhere and may move after the stats were cached
	stats.MeetingStatus = meeting.Status
	if !s.gate.IsEligible(meeting) {
		stats.ApprovalStatus.FirstLevelEnabled = false
		stats.ApprovalStatus.SecondLevelEnabled = false
	}
	return stats, hit, nil
}

func (s *MeetingService) loadStats(ctx context.Context, meeting *models.Meeting) (*models.MeetingStats, error) {
	breakdown, err := s.requests.StatusBreakdown(ctx, meeting.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status breakdown")
	}
	top, err := s.requests.TopRequesters(ctx, meeting.ID, s.cfg.TopRequesterLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load top requesters")
	}
	agg, err := s.approvals.FindByMeeting(ctx, nil, meeting.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}

	stats := &models.MeetingStats{
		MeetingID:       meeting.ID,
		MeetingStatus:   meeting.Status,
		StatusBreakdown: breakdown,
		TopRequesters:   top,
		ApprovalStatus:  s.machine.Status(agg),
	}
	if stats.StatusBreakdown == nil {
		stats.StatusBreakdown = []models.StatusCount{}
	}
	if stats.TopRequesters == nil {
		stats.TopRequesters = []models.RequesterCount{}
	}
	for _, bucket := range breakdown {
		stats.TotalCount += bucket.Count
		stats.TotalAmount += bucket.Amount
	}
	return stats, nil
}

func dateKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("20060102")
}
