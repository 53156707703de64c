package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/pkg/cache"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

type requestReader interface {
	ListActive(ctx context.Context, meetingID int64) ([]models.UnblockRequest, error)
	FindByID(ctx context.Context, id int64) (*models.UnblockRequest, error)
}

type decider interface {
	Decide(ctx context.Context, cmd DecisionCommand) (*DecisionOutcome, error)
	Hold(ctx context.Context, cmd HoldCommand) error
}

// SingleDecision is the verdict on one request submitted outside the batch screen.
type SingleDecision string

const (
	SingleApprove SingleDecision = "APPROVE"
	SingleReject  SingleDecision = "REJECT"
	SingleHold    SingleDecision = "HOLD"
)

// SingleDecisionCommand decides one unblock request.
type SingleDecisionCommand struct {
	RequestID  int64
	Decision   SingleDecision
	ApproverID string
	Comment    *string
	// ActorRole is the caller's token role; empty skips the level check.
	ActorRole models.UserRole
}

// SingleDecisionResult reports what a single-row decision did. Outcome is nil for HOLD.
type SingleDecisionResult struct {
	RequestID int64            `json:"requestId"`
	MeetingID int64            `json:"meetingId"`
	Decision  SingleDecision   `json:"decision"`
	Level     string           `json:"approverLevel,omitempty"`
	Outcome   *DecisionOutcome `json:"outcome,omitempty"`
}

// UnblockRequestService lists requests and routes single-row decisions into the
// batch decision path.
type UnblockRequestService struct {
	meetings  meetingReader
	requests  requestReader
	decisions decider
	bindings  ApproverBindings
	cache     *CacheService
	logger    *zap.Logger
}

// NewUnblockRequestService constructs the service.
func NewUnblockRequestService(meetings meetingReader, requests requestReader, decisions decider, bindings ApproverBindings, cacheSvc *CacheService, logger *zap.Logger) *UnblockRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnblockRequestService{
		meetings:  meetings,
		requests:  requests,
		decisions: decisions,
		bindings:  bindings,
		cache:     cacheSvc,
		logger:    logger,
	}
}

// List returns the meeting's requests, newest first.
func (s *UnblockRequestService) List(ctx context.Context, meetingID int64) ([]models.UnblockRequest, bool, error) {
	if _, err := s.meetings.FindByID(ctx, meetingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	key := cache.Key("meeting", strconv.FormatInt(meetingID, 10), "requests")
	return cached(ctx, s.cache, key, func(ctx context.Context) ([]models.UnblockRequest, error) {
		items, err := s.requests.ListActive(ctx, meetingID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unblock requests")
		}
		if items == nil {
			items = []models.UnblockRequest{}
		}
		return items, nil
	})
}

// Decide applies one verdict. APPROVE and REJECT run as a first-level decision on
// this row only; second-level verdicts cover the whole batch and must go through
// batch approval. HOLD parks the row.
func (s *UnblockRequestService) Decide(ctx context.Context, cmd SingleDecisionCommand) (*SingleDecisionResult, error) {
	decision := SingleDecision(strings.ToUpper(strings.TrimSpace(string(cmd.Decision))))
	switch decision {
	case SingleApprove, SingleReject, SingleHold:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("decision must be APPROVE, REJECT or HOLD, got %q", cmd.Decision))
	}

	req, err := s.requests.FindByID(ctx, cmd.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unblock request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unblock request")
	}
	result := &SingleDecisionResult{RequestID: req.ID, MeetingID: req.MeetingID, Decision: decision}

	if decision == SingleHold {
		if err := s.decisions.Hold(ctx, HoldCommand{
			MeetingID:  req.MeetingID,
			RequestID:  req.ID,
			ApproverID: cmd.ApproverID,
			Comment:    cmd.Comment,
		}); err != nil {
			return nil, err
		}
		return result, nil
	}

	approverID := strings.TrimSpace(cmd.ApproverID)
	level := s.bindings.LevelOf(approverID)
	if cmd.ActorRole != "" && !cmd.ActorRole.CanActAt(level) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot decide at %s level", cmd.ActorRole, level))
	}
	if level != models.ApprovalLevelFirst {
		return nil, appErrors.Clone(appErrors.ErrValidation, "second-level decisions apply to the whole batch; use POST /meetings/{id}/batch-approval")
	}

	batch := DecisionCommand{
		MeetingID:  req.MeetingID,
		Level:      level,
		ApproverID: approverID,
		Comment:    cmd.Comment,
	}
	if decision == SingleApprove {
		batch.ApproveIDs = []int64{req.ID}
	} else {
		batch.RejectIDs = []int64{req.ID}
	}
	outcome, err := s.decisions.Decide(ctx, batch)
	if err != nil {
		return nil, err
	}
	result.Level = string(level)
	result.Outcome = outcome
	return result, nil
}
