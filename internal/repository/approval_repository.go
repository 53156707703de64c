package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sales-credit-api/internal/models"
)

const approvalColumns = `id, meeting_id, approver_role, decision_result,
	first_approver_id, first_approver_name, first_decided_at,
	second_approver_id, second_approver_name, second_decided_at,
	decision_comment, decided_at, created_at`

// ApprovalRepository persists the per-meeting approval aggregate.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByMeeting returns the aggregate of the meeting, or nil when no decision was
// ever recorded.
func (r *ApprovalRepository) FindByMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID int64) (*models.ApprovalAggregate, error) {
	const query = `SELECT ` + approvalColumns + ` FROM credit_unblock_approval WHERE meeting_id = $1`
	var agg models.ApprovalAggregate
	if err := sqlx.GetContext(ctx, r.exec(exec), &agg, query, meetingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get approval for meeting %d: %w", meetingID, err)
	}
	return &agg, nil
}

// Save inserts or updates the aggregate keyed by meeting and fills in its id.
func (r *ApprovalRepository) Save(ctx context.Context, exec sqlx.ExtContext, agg *models.ApprovalAggregate) error {
	if agg == nil {
		return fmt.Errorf("approval aggregate is nil")
	}
	const query = `
INSERT INTO credit_unblock_approval (
	meeting_id, approver_role, decision_result,
	first_approver_id, first_approver_name, first_decided_at,
	second_approver_id, second_approver_name, second_decided_at,
	decision_comment, decided_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (meeting_id) DO UPDATE SET
	approver_role = EXCLUDED.approver_role,
	decision_result = EXCLUDED.decision_result,
	first_approver_id = EXCLUDED.first_approver_id,
	first_approver_name = EXCLUDED.first_approver_name,
	first_decided_at = EXCLUDED.first_decided_at,
	second_approver_id = EXCLUDED.second_approver_id,
	second_approver_name = EXCLUDED.second_approver_name,
	second_decided_at = EXCLUDED.second_decided_at,
	decision_comment = EXCLUDED.decision_comment,
	decided_at = EXCLUDED.decided_at
RETURNING id, created_at`

	row := r.exec(exec).QueryRowxContext(ctx, query,
		agg.MeetingID, agg.Role, agg.Result,
		agg.FirstApproverID, agg.FirstApproverName, agg.FirstDecidedAt,
		agg.SecondApproverID, agg.SecondApproverName, agg.SecondDecidedAt,
		agg.Comment, agg.DecidedAt,
	)
	if err := row.Scan(&agg.ID, &agg.CreatedAt); err != nil {
		return fmt.Errorf("upsert approval for meeting %d: %w", agg.MeetingID, err)
	}
	return nil
}
