package dto

import "github.com/noah-isme/sales-credit-api/internal/models"

// MaxCommentLength caps free-text decision comments.
const MaxCommentLength = 1000

// BatchApprovalRequest is the approval screen submission. For the 2nd level only
// the emptiness of the id lists is significant.
type BatchApprovalRequest struct {
	ApproveRequestIDs []int64              `json:"approveRequestIds" validate:"omitempty,dive,gt=0"`
	RejectRequestIDs  []int64              `json:"rejectRequestIds" validate:"omitempty,dive,gt=0"`
	ApproverLevel     models.ApprovalLevel `json:"approverLevel" validate:"required,oneof=1st 2nd"`
	ApproverID        string               `json:"approverId" validate:"omitempty,max=32"`
	Comment           *string              `json:"comment" validate:"omitempty,max=1000"`
}

// DecisionRequest decides a single unblock request.
type DecisionRequest struct {
	Decision   string  `json:"decision" validate:"required,oneof=APPROVE REJECT HOLD"`
	ApproverID string  `json:"approverId" validate:"omitempty,max=32"`
	Comment    *string `json:"comment" validate:"omitempty,max=1000"`
}
