package models

import "time"

// RequestStatus is the per-row status of an unblock request.
type RequestStatus string

const (
	RequestStatusSubmitted     RequestStatus = "SUBMITTED"
	RequestStatusApproved1st   RequestStatus = "APPROVED_1ST"
	RequestStatusApprovedFinal RequestStatus = "APPROVED_FINAL"
	RequestStatusRejected      RequestStatus = "REJECTED"
	RequestStatusHold          RequestStatus = "HOLD"
)

// RiskLevel classifies a customer by overdue share of receivables.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Overdue ratio thresholds above which a customer is medium or high risk.
const (
	MediumRiskRatio = 0.1
	HighRiskRatio   = 0.3
)

// ClassifyRisk derives the risk level from the receivables snapshot.
func ClassifyRisk(totalAR, overdue float64) RiskLevel {
	if totalAR <= 0 {
		return RiskLow
	}
	ratio := overdue / totalAR
	switch {
	case ratio > HighRiskRatio:
		return RiskHigh
	case ratio > MediumRiskRatio:
		return RiskMedium
	default:
		return RiskLow
	}
}

// UnblockRequest is a staff-filed request to lift a customer's sales block.
type UnblockRequest struct {
	ID                int64         `db:"id" json:"id"`
	MeetingID         int64         `db:"meeting_id" json:"meetingId"`
	CompanyType       *string       `db:"company_type" json:"companyType,omitempty"`
	CustomerSeq       int64         `db:"customer_seq" json:"customerSeq"`
	CustomerName      string        `db:"customer_name" json:"customerName"`
	TotalAR           float64       `db:"total_ar" json:"totalAr"`
	OverdueAmount     float64       `db:"overdue_amount" json:"overdue"`
	RiskLevel         RiskLevel     `db:"-" json:"currentRiskLevel"`
	RequesterID       string        `db:"assignee_id" json:"assigneeId"`
	RequesterName     *string       `db:"requester_name" json:"requesterName,omitempty"`
	ReasonText        *string       `db:"reason_text" json:"reasonText,omitempty"`
	CollectionPlan    *string       `db:"collection_plan" json:"collectionPlan,omitempty"`
	TargetUnblockDate *time.Time    `db:"target_unblock_date" json:"targetUnblockDate,omitempty"`
	RequestDate       time.Time     `db:"request_date" json:"requestDate"`
	Status            RequestStatus `db:"request_status" json:"requestStatus"`
	StatusComment     *string       `db:"status_comment" json:"statusComment,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         *time.Time    `db:"updated_at" json:"updatedAt,omitempty"`
	UpdatedBy         *string       `db:"updated_by" json:"updatedBy,omitempty"`
}
