package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sales-credit-api/internal/models"
)

// ApprovalHistoryRepository is the append-only decision ledger. It deliberately has
// no update or delete methods; the table trigger rejects both anyway.
type ApprovalHistoryRepository struct {
	db *sqlx.DB
}

// NewApprovalHistoryRepository constructs the repository.
func NewApprovalHistoryRepository(db *sqlx.DB) *ApprovalHistoryRepository {
	return &ApprovalHistoryRepository{db: db}
}

// Append writes entry inside exec and fills in its id and creation time.
func (r *ApprovalHistoryRepository) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.ApprovalHistoryEntry) error {
	if entry == nil {
		return fmt.Errorf("history entry is nil")
	}
	target := exec
	if target == nil {
		target = r.db
	}
	const query = `
INSERT INTO credit_unblock_approval_hist (
	approval_id, meeting_id, approver_role, approver_assignee_id, approver_name,
	decision_result, decision_comment, affected_count, decided_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING hist_id, hist_created_at`

	row := target.QueryRowxContext(ctx, query,
		entry.ApprovalID, entry.MeetingID, entry.ApproverRole, entry.ApproverID, entry.ApproverName,
		entry.Result, entry.Comment, entry.AffectedCount, entry.DecidedAt,
	)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("append approval history: %w", err)
	}
	return nil
}

// ListByMeeting returns the ledger of a meeting newest first.
func (r *ApprovalHistoryRepository) ListByMeeting(ctx context.Context, meetingID int64) ([]models.ApprovalHistoryEntry, error) {
	const query = `
SELECT
	h.hist_id,
	h.approval_id,
	h.meeting_id,
	h.approver_role,
	h.approver_assignee_id,
	COALESCE(h.approver_name, e.emp_name, h.approver_assignee_id) AS approver_name,
	h.decision_result,
	h.decision_comment,
	h.affected_count,
	h.decided_at,
	h.hist_created_at,
	m.meeting_code,
	m.meeting_name
FROM credit_unblock_approval_hist h
JOIN credit_meeting m ON m.id = h.meeting_id
LEFT JOIN employee e ON e.emp_id = h.approver_assignee_id
WHERE h.meeting_id = $1
ORDER BY h.decided_at DESC, h.hist_id DESC`

	var entries []models.ApprovalHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, meetingID); err != nil {
		return nil, fmt.Errorf("list approval history: %w", err)
	}
	return entries, nil
}
