package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/pkg/cache"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
	"github.com/noah-isme/sales-credit-api/pkg/middleware/requestid"
)

// Tx is the transaction a decision runs in.
type Tx interface {
	sqlx.ExtContext
	Commit() error
	Rollback() error
}

// TxBeginner opens decision transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}

type sqlxTxBeginner struct {
	db *sqlx.DB
}

// NewTxBeginner adapts a sqlx database to TxBeginner.
func NewTxBeginner(db *sqlx.DB) TxBeginner {
	return sqlxTxBeginner{db: db}
}

func (b sqlxTxBeginner) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

type decisionMeetingStore interface {
	LockForDecision(ctx context.Context, exec sqlx.ExtContext, id int64, timeout time.Duration) (*models.Meeting, error)
}

type decisionRequestStore interface {
	ApplyDecisions(ctx context.Context, exec sqlx.ExtContext, meetingID int64, sel models.RowSelection, approveStatus, rejectStatus models.RequestStatus, actor string) (models.AppliedCounts, error)
	TransitionAll(ctx context.Context, exec sqlx.ExtContext, meetingID int64, from, to models.RequestStatus, actor string) (int64, error)
	CountByStatus(ctx context.Context, exec sqlx.ExtContext, meetingID int64, status models.RequestStatus) (int64, error)
	StatusOf(ctx context.Context, exec sqlx.ExtContext, id int64) (models.RequestStatus, error)
	SetStatus(ctx context.Context, exec sqlx.ExtContext, id int64, status models.RequestStatus, actor string, comment *string) error
}

type approvalStore interface {
	FindByMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID int64) (*models.ApprovalAggregate, error)
	Save(ctx context.Context, exec sqlx.ExtContext, agg *models.ApprovalAggregate) error
}

type historyAppender interface {
	Append(ctx context.Context, exec sqlx.ExtContext, entry *models.ApprovalHistoryEntry) error
}

type employeeDirectory interface {
	FindName(ctx context.Context, empID string) (string, error)
}

type decisionNotifier interface {
	Notify(evt models.DecisionEvent)
}

// DecisionCommand is one batch decision as submitted by an approver. For the
// second level only the emptiness of the id lists matters.
type DecisionCommand struct {
	MeetingID  int64
	Level      models.ApprovalLevel
	ApproveIDs []int64
	RejectIDs  []int64
	ApproverID string
	Comment    *string
}

// HoldCommand parks one request outside the batch flow. Comment is stored on the row.
type HoldCommand struct {
	MeetingID  int64
	RequestID  int64
	ApproverID string
	Comment    *string
}

// DecisionWarning is a non-fatal condition reported alongside a committed decision.
type DecisionWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecisionOutcome is the committed result of Decide.
type DecisionOutcome struct {
	ApprovalID    int64                 `json:"approvalId"`
	HistoryID     int64                 `json:"histId"`
	MeetingID     int64                 `json:"meetingId"`
	Level         models.ApprovalLevel  `json:"approverLevel"`
	Role          models.ApproverRole   `json:"approverRole"`
	Result        models.DecisionResult `json:"decisionResult"`
	State         string                `json:"state"`
	ApprovedCount int64                 `json:"approvedCount"`
	RejectedCount int64                 `json:"rejectedCount"`
	AffectedCount int64                 `json:"affectedCount"`
	ApproverID    string                `json:"approverId"`
	ApproverName  string                `json:"approverName"`
	Message       string                `json:"message"`
	Warnings      []DecisionWarning     `json:"warnings"`
	DecidedAt     time.Time             `json:"decidedAt"`

	comment *string
}

// DecisionServiceConfig tunes the decision processor.
type DecisionServiceConfig struct {
	LockTimeout time.Duration
	Bindings    ApproverBindings
}

// DecisionService applies approval decisions. Decisions for one meeting are
// serialised by an in-process keyed lock and a row lock on the meeting, and every
// decision commits row updates, the aggregate and one history entry together.
type DecisionService struct {
	tx        TxBeginner
	meetings  decisionMeetingStore
	requests  decisionRequestStore
	approvals approvalStore
	history   historyAppender
	employees employeeDirectory
	cache     *CacheService
	metrics   *MetricsService
	notifier  decisionNotifier
	logger    *zap.Logger

	gate        MeetingGate
	machine     *ApprovalMachine
	locks       *keyedLock
	bindings    ApproverBindings
	lockTimeout time.Duration
	now         func() time.Time
}

// NewDecisionService constructs the decision processor.
func NewDecisionService(
	tx TxBeginner,
	meetings decisionMeetingStore,
	requests decisionRequestStore,
	approvals approvalStore,
	history historyAppender,
	employees employeeDirectory,
	cacheSvc *CacheService,
	metrics *MetricsService,
	notifier decisionNotifier,
	logger *zap.Logger,
	cfg DecisionServiceConfig,
) *DecisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionService{
		tx:          tx,
		meetings:    meetings,
		requests:    requests,
		approvals:   approvals,
		history:     history,
		employees:   employees,
		cache:       cacheSvc,
		metrics:     metrics,
		notifier:    notifier,
		logger:      logger,
		machine:     NewApprovalMachine(),
		locks:       newKeyedLock(),
		bindings:    cfg.Bindings,
		lockTimeout: cfg.LockTimeout,
		now:         time.Now,
	}
}

// Machine exposes the transition table used by this processor.
func (s *DecisionService) Machine() *ApprovalMachine {
	return s.machine
}

// Decide validates and applies one batch decision.
func (s *DecisionService) Decide(ctx context.Context, cmd DecisionCommand) (*DecisionOutcome, error) {
	var outcome *DecisionOutcome
	err := s.withMeetingLock(ctx, cmd.MeetingID, func(tx Tx, meeting *models.Meeting) error {
		var err error
		outcome, err = s.decideLocked(ctx, tx, meeting, cmd)
		return err
	})
	s.metrics.RecordDecision(cmd.Level, outcomeCode(err))
	log := s.requestLogger(ctx)
	if err != nil {
		log.Info("approval decision refused",
			zap.Int64("meeting_id", cmd.MeetingID),
			zap.String("level", string(cmd.Level)),
			zap.String("code", outcomeCode(err)),
			zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, cmd.MeetingID)
	s.metrics.RecordDecisionRows(outcome.Level, outcome.Result, outcome.AffectedCount)
	log.Info("approval decision committed",
		zap.Int64("meeting_id", outcome.MeetingID),
		zap.Int64("approval_id", outcome.ApprovalID),
		zap.String("approver_id", outcome.ApproverID),
		zap.String("role", string(outcome.Role)),
		zap.String("result", string(outcome.Result)),
		zap.Int64("approved", outcome.ApprovedCount),
		zap.Int64("rejected", outcome.RejectedCount))
	if s.notifier != nil {
		s.notifier.Notify(models.DecisionEvent{
			EventID:       uuid.NewString(),
			MeetingID:     outcome.MeetingID,
			ApprovalID:    outcome.ApprovalID,
			HistoryID:     outcome.HistoryID,
			Level:         outcome.Level,
			Role:          outcome.Role,
			Result:        outcome.Result,
			ApproverID:    outcome.ApproverID,
			ApproverName:  outcome.ApproverName,
			AffectedCount: outcome.AffectedCount,
			Comment:       outcome.comment,
			DecidedAt:     outcome.DecidedAt,
			RequestID:     requestid.FromContext(ctx),
		})
	}
	return outcome, nil
}

func (s *DecisionService) decideLocked(ctx context.Context, tx Tx, meeting *models.Meeting, cmd DecisionCommand) (*DecisionOutcome, error) {
	if !cmd.Level.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "approverLevel must be 1st or 2nd")
	}
	approverID, err := s.resolveApproverID(cmd.Level, cmd.ApproverID)
	if err != nil {
		return nil, err
	}

	var sel models.RowSelection
	var batchAction models.WorkflowAction
	switch cmd.Level {
	case models.ApprovalLevelFirst:
		if sel, err = models.NewRowSelection(cmd.ApproveIDs, cmd.RejectIDs); err != nil {
			return nil, err
		}
		if sel.Empty() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "select at least one request to approve or reject")
		}
	case models.ApprovalLevelSecond:
		approve, reject := len(cmd.ApproveIDs) > 0, len(cmd.RejectIDs) > 0
		if approve == reject {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a second-level decision must either approve or reject the batch")
		}
		batchAction = models.ActionRejectBatch
		if approve {
			batchAction = models.ActionApproveBatch
		}
	}

	agg, err := s.approvals.FindByMeeting(ctx, tx, meeting.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	from := agg.State()
	actor := cmd.Level.Role()
	if err := s.machine.Admit(from, actor); err != nil {
		return nil, err
	}

	var (
		counts  models.AppliedCounts
		tr      models.Transition
		message string
	)
	if cmd.Level == models.ApprovalLevelFirst {
		approveStatus, _ := RowTarget(models.RowApprove)
		rejectStatus, _ := RowTarget(models.RowReject)
		if counts, err = s.requests.ApplyDecisions(ctx, tx, meeting.ID, sel, approveStatus, rejectStatus, approverID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update requests")
		}
		if counts.Total() == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "none of the selected requests belong to this meeting")
		}
		pending, err := s.requests.CountByStatus(ctx, tx, meeting.ID, models.RequestStatusApproved1st)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved requests")
		}
		action := models.ActionRejectRows
		if pending > 0 {
			action = models.ActionApproveRows
		}
		if tr, err = s.machine.Next(from, actor, action); err != nil {
			return nil, err
		}
		message = fmt.Sprintf("%d approved, %d rejected at first level", counts.Approved, counts.Rejected)
	} else {
		if tr, err = s.machine.Next(from, actor, batchAction); err != nil {
			return nil, err
		}
		rowFrom, rowTo := BatchRowTransition(batchAction)
		moved, err := s.requests.TransitionAll(ctx, tx, meeting.ID, rowFrom, rowTo, approverID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update requests")
		}
		if batchAction == models.ActionApproveBatch {
			if moved == 0 {
				return nil, appErrors.Clone(appErrors.ErrNotAwaitingFinalApproval, "no first-level approved requests remain to finalize")
			}
			counts.Approved = moved
			message = fmt.Sprintf("batch approved: %d requests finalized", moved)
		} else {
			counts.Rejected = moved
			message = fmt.Sprintf("batch rejected: %d requests reopened for first-level review", moved)
		}
	}

	approver, warnings := s.resolveApprover(ctx, approverID)
	comment := normaliseComment(cmd.Comment)
	now := s.now().UTC()

	if agg == nil {
		agg = &models.ApprovalAggregate{MeetingID: meeting.ID}
	}
	agg.Advance(tr.To, approver, comment, now)
	if err := s.approvals.Save(ctx, tx, agg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save approval")
	}

	name := approver.DisplayName()
	entry := &models.ApprovalHistoryEntry{
		ApprovalID:    agg.ID,
		MeetingID:     meeting.ID,
		ApproverRole:  actor,
		ApproverID:    approver.ID,
		ApproverName:  &name,
		Result:        tr.To.Result,
		Comment:       comment,
		AffectedCount: int(counts.Total()),
		DecidedAt:     now,
	}
	if err := s.history.Append(ctx, tx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval history")
	}

	return &DecisionOutcome{
		ApprovalID:    agg.ID,
		HistoryID:     entry.ID,
		MeetingID:     meeting.ID,
		Level:         cmd.Level,
		Role:          tr.To.Role,
		Result:        tr.To.Result,
		State:         tr.To.Name(),
		ApprovedCount: counts.Approved,
		RejectedCount: counts.Rejected,
		AffectedCount: counts.Total(),
		ApproverID:    approver.ID,
		ApproverName:  name,
		Message:       message,
		Warnings:      warnings,
		DecidedAt:     now,
		comment:       comment,
	}, nil
}

// Hold parks a single request. It shares the meeting lock and gate with Decide but
// leaves the aggregate and the history untouched.
func (s *DecisionService) Hold(ctx context.Context, cmd HoldCommand) error {
	err := s.withMeetingLock(ctx, cmd.MeetingID, func(tx Tx, meeting *models.Meeting) error {
		agg, err := s.approvals.FindByMeeting(ctx, tx, meeting.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
		}
		state := agg.State()
		if state.Terminal() {
			return appErrors.ErrAlreadyFinalized
		}
		status, err := s.requests.StatusOf(ctx, tx, cmd.RequestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "unblock request not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
		}
		// Rows in the batch the CEO is reviewing stay put until the batch is decided.
		if state == models.StateFirstApproved && status == models.RequestStatusApproved1st {
			return appErrors.Clone(appErrors.ErrPendingFinalApproval, "request is awaiting second-level approval; reject it at first level before holding it")
		}
		actor := strings.TrimSpace(cmd.ApproverID)
		if err := s.requests.SetStatus(ctx, tx, cmd.RequestID, models.RequestStatusHold, actor, normaliseComment(cmd.Comment)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "unblock request not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hold request")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, cmd.MeetingID)
	s.requestLogger(ctx).Info("unblock request put on hold",
		zap.Int64("meeting_id", cmd.MeetingID),
		zap.Int64("request_id", cmd.RequestID),
		zap.String("approver_id", cmd.ApproverID))
	return nil
}

func (s *DecisionService) withMeetingLock(ctx context.Context, meetingID int64, fn func(tx Tx, meeting *models.Meeting) error) error {
	start := time.Now()

	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	unlock, err := s.locks.Lock(lockCtx, meetingID)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return appErrors.Wrap(err, appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, appErrors.ErrLockTimeout.Message)
		}
		return err
	}
	defer unlock()

	tx, err := s.tx.Begin(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", zap.Int64("meeting_id", meetingID), zap.Error(rbErr))
		}
	}()

	meeting, err := s.meetings.LockForDecision(ctx, tx, meetingID, s.lockTimeout)
	s.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock meeting")
	}
	if err := s.gate.Check(meeting); err != nil {
		return err
	}

	txStart := time.Now()
	if err := fn(tx, meeting); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit decision")
	}
	committed = true
	s.metrics.ObserveDBQuery("decision_tx", time.Since(txStart))
	return nil
}

func (s *DecisionService) resolveApproverID(level models.ApprovalLevel, raw string) (string, error) {
	if id := strings.TrimSpace(raw); id != "" {
		return id, nil
	}
	if id, ok := s.bindings.Default(level); ok {
		return id, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("approverId is required: no %s level approver is configured", level))
}

// resolveApprover looks up the display name. Unknown approvers are accepted with
// their identity only.
func (s *DecisionService) resolveApprover(ctx context.Context, id string) (models.Approver, []DecisionWarning) {
	approver := models.Approver{ID: id}
	warnings := []DecisionWarning{}
	if s.employees != nil {
		name, err := s.employees.FindName(ctx, id)
		switch {
		case err == nil:
			approver.Name, approver.Resolved = name, true
			return approver, warnings
		case !errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("approver lookup failed", zap.String("approver_id", id), zap.Error(err))
		}
	}
	s.logger.Warn("approver not resolvable, recording identity only", zap.String("approver_id", id))
	warnings = append(warnings, DecisionWarning{
		Code:    appErrors.ErrUnknownApprover.Code,
		Message: fmt.Sprintf("approver %s could not be resolved to a name; recorded by identity", id),
	})
	return approver, warnings
}

func (s *DecisionService) requestLogger(ctx context.Context) *zap.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		return s.logger.With(zap.String("request_id", id))
	}
	return s.logger
}

func (s *DecisionService) invalidate(ctx context.Context, meetingID int64) {
	_ = s.cache.Invalidate(ctx, cache.Key("meeting", strconv.FormatInt(meetingID, 10), "*"))
}

func normaliseComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func outcomeCode(err error) string {
	if err == nil {
		return "OK"
	}
	return appErrors.FromError(err).Code
}
