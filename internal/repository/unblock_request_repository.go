package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sales-credit-api/internal/models"
)

const unblockRequestSelect = `
SELECT
	r.id,
	r.meeting_id,
	r.company_type,
	r.customer_seq,
	r.customer_name,
	r.total_ar,
	r.overdue_amount,
	r.assignee_id,
	e.emp_name AS requester_name,
	r.reason_text,
	r.collection_plan,
	r.target_unblock_date,
	r.request_date,
	r.request_status,
	r.status_comment,
	r.created_at,
	r.updated_at,
	r.updated_by
FROM credit_unblock_request r
LEFT JOIN employee e ON e.emp_id = r.assignee_id`

// UnblockRequestRepository stores unblock requests and their per-row statuses.
type UnblockRequestRepository struct {
	db *sqlx.DB
}

// NewUnblockRequestRepository constructs the repository.
func NewUnblockRequestRepository(db *sqlx.DB) *UnblockRequestRepository {
	return &UnblockRequestRepository{db: db}
}

func (r *UnblockRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListActive returns every request of the meeting with its current status, newest first.
func (r *UnblockRequestRepository) ListActive(ctx context.Context, meetingID int64) ([]models.UnblockRequest, error) {
	query := unblockRequestSelect + `
WHERE r.meeting_id = $1
ORDER BY r.created_at DESC, r.id DESC`

	var items []models.UnblockRequest
	if err := r.db.SelectContext(ctx, &items, query, meetingID); err != nil {
		return nil, fmt.Errorf("list unblock requests: %w", err)
	}
	for i := range items {
		items[i].RiskLevel = models.ClassifyRisk(items[i].TotalAR, items[i].OverdueAmount)
	}
	return items, nil
}

// FindByID loads a single request. Missing rows yield sql.ErrNoRows.
func (r *UnblockRequestRepository) FindByID(ctx context.Context, id int64) (*models.UnblockRequest, error) {
	query := unblockRequestSelect + `
WHERE r.id = $1`

	var item models.UnblockRequest
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get unblock request %d: %w", id, err)
	}
	item.RiskLevel = models.ClassifyRisk(item.TotalAR, item.OverdueAmount)
	return &item, nil
}

// ApplyDecisions moves approved rows to approveStatus and rejected rows to
// rejectStatus. Undecided rows are not touched and ids outside the meeting are ignored.
func (r *UnblockRequestRepository) ApplyDecisions(ctx context.Context, exec sqlx.ExtContext, meetingID int64, sel models.RowSelection, approveStatus, rejectStatus models.RequestStatus, actor string) (models.AppliedCounts, error) {
	target := r.exec(exec)
	now := time.Now().UTC()

	var counts models.AppliedCounts
	approved, err := r.updateIDs(ctx, target, meetingID, sel.ApproveIDs(), approveStatus, actor, now)
	if err != nil {
		return counts, fmt.Errorf("apply approvals: %w", err)
	}
	rejected, err := r.updateIDs(ctx, target, meetingID, sel.RejectIDs(), rejectStatus, actor, now)
	if err != nil {
		return counts, fmt.Errorf("apply rejections: %w", err)
	}
	counts.Approved, counts.Rejected = approved, rejected
	return counts, nil
}

func (r *UnblockRequestRepository) updateIDs(ctx context.Context, exec sqlx.ExtContext, meetingID int64, ids []int64, status models.RequestStatus, actor string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `
UPDATE credit_unblock_request
SET request_status = $1, status_comment = NULL, updated_at = $2, updated_by = $3
WHERE meeting_id = $4 AND id = ANY($5)`
	result, err := exec.ExecContext(ctx, query, status, now, actor, meetingID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// TransitionAll moves every row of the meeting currently in from to to.
func (r *UnblockRequestRepository) TransitionAll(ctx context.Context, exec sqlx.ExtContext, meetingID int64, from, to models.RequestStatus, actor string) (int64, error) {
	const query = `
UPDATE credit_unblock_request
SET request_status = $1, status_comment = NULL, updated_at = $2, updated_by = $3
WHERE meeting_id = $4 AND request_status = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, to, time.Now().UTC(), actor, meetingID, from)
	if err != nil {
		return 0, fmt.Errorf("transition %s rows to %s: %w", from, to, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transition rows affected: %w", err)
	}
	return affected, nil
}

// CountByStatus counts rows of the meeting in status.
func (r *UnblockRequestRepository) CountByStatus(ctx context.Context, exec sqlx.ExtContext, meetingID int64, status models.RequestStatus) (int64, error) {
	const query = `SELECT COUNT(*) FROM credit_unblock_request WHERE meeting_id = $1 AND request_status = $2`
	var count int64
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, meetingID, status); err != nil {
		return 0, fmt.Errorf("count %s rows: %w", status, err)
	}
	return count, nil
}

// StatusOf reads the current status of a single row, locking it for the rest of the
// transaction. Missing rows yield sql.ErrNoRows.
func (r *UnblockRequestRepository) StatusOf(ctx context.Context, exec sqlx.ExtContext, id int64) (models.RequestStatus, error) {
	const query = `SELECT request_status FROM credit_unblock_request WHERE id = $1 FOR UPDATE`
	var status models.RequestStatus
	if err := sqlx.GetContext(ctx, r.exec(exec), &status, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("get request %d status: %w", id, err)
	}
	return status, nil
}

// SetStatus updates a single row and records why. Missing rows yield sql.ErrNoRows.
func (r *UnblockRequestRepository) SetStatus(ctx context.Context, exec sqlx.ExtContext, id int64, status models.RequestStatus, actor string, comment *string) error {
	const query = `
UPDATE credit_unblock_request
SET request_status = $1, status_comment = $2, updated_at = $3, updated_by = $4
WHERE id = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, status, comment, time.Now().UTC(), actor, id)
	if err != nil {
		return fmt.Errorf("set request status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set request status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StatusBreakdown groups the meeting's requests by status with receivable totals.
func (r *UnblockRequestRepository) StatusBreakdown(ctx context.Context, meetingID int64) ([]models.StatusCount, error) {
	const query = `
SELECT request_status, COUNT(*) AS cnt, COALESCE(SUM(total_ar), 0) AS amount
FROM credit_unblock_request
WHERE meeting_id = $1
GROUP BY request_status
ORDER BY request_status`
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query, meetingID); err != nil {
		return nil, fmt.Errorf("status breakdown: %w", err)
	}
	return rows, nil
}

// TopRequesters ranks requesters of the meeting by request count.
func (r *UnblockRequestRepository) TopRequesters(ctx context.Context, meetingID int64, limit int) ([]models.RequesterCount, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
SELECT r.assignee_id, MAX(e.emp_name) AS requester_name, COUNT(*) AS cnt
FROM credit_unblock_request r
LEFT JOIN employee e ON e.emp_id = r.assignee_id
WHERE r.meeting_id = $1
GROUP BY r.assignee_id
ORDER BY cnt DESC, r.assignee_id ASC
LIMIT $2`
	var rows []models.RequesterCount
	if err := r.db.SelectContext(ctx, &rows, query, meetingID, limit); err != nil {
		return nil, fmt.Errorf("top requesters: %w", err)
	}
	return rows, nil
}
