package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sales-credit-api/internal/models"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

// pgLockNotAvailable is raised by Postgres when lock_timeout expires.
const pgLockNotAvailable = "55P03"

const meetingColumns = `id, meeting_code, meeting_name, meeting_date, meeting_status, remark, created_at`

// MeetingRepository reads credit meetings. Meetings are owned by another system.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// List returns meetings newest first, optionally filtered by status and date range.
func (r *MeetingRepository) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + meetingColumns + ` FROM credit_meeting WHERE 1=1`)

	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&query, " AND meeting_status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&query, " AND meeting_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&query, " AND meeting_date <= $%d", len(args))
	}
	query.WriteString(" ORDER BY meeting_date DESC, id DESC")

	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

// FindByID loads a meeting. Missing meetings yield sql.ErrNoRows.
func (r *MeetingRepository) FindByID(ctx context.Context, id int64) (*models.Meeting, error) {
	const query = `SELECT ` + meetingColumns + ` FROM credit_meeting WHERE id = $1`
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get meeting %d: %w", id, err)
	}
	return &meeting, nil
}

// LockForDecision takes the per-meeting write lock inside exec, which must be a
// transaction. The lock wait is bounded by timeout; expiry maps to LOCK_TIMEOUT.
func (r *MeetingRepository) LockForDecision(ctx context.Context, exec sqlx.ExtContext, id int64, timeout time.Duration) (*models.Meeting, error) {
	if exec == nil {
		return nil, fmt.Errorf("lock meeting %d: transaction required", id)
	}
	if timeout > 0 {
		const setTimeout = `SELECT set_config('lock_timeout', $1, true)`
		if _, err := exec.ExecContext(ctx, setTimeout, fmt.Sprintf("%dms", timeout.Milliseconds())); err != nil {
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	const query = `SELECT ` + meetingColumns + ` FROM credit_meeting WHERE id = $1 FOR UPDATE`
	var meeting models.Meeting
	if err := sqlx.GetContext(ctx, exec, &meeting, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		if isLockTimeout(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, appErrors.ErrLockTimeout.Message)
		}
		return nil, fmt.Errorf("lock meeting %d: %w", id, err)
	}
	return &meeting, nil
}

// Ping checks database reachability for readiness probes.
func (r *MeetingRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isLockTimeout(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgLockNotAvailable
	}
	return false
}
