package models

// StatusCount is one bucket of the per-status breakdown.
type StatusCount struct {
	Status RequestStatus `db:"request_status" json:"status"`
	Count  int64         `db:"cnt" json:"count"`
	Amount float64       `db:"amount" json:"amount"`
}

// RequesterCount ranks requesters by number of filed requests.
type RequesterCount struct {
	RequesterID   string  `db:"assignee_id" json:"assigneeId"`
	RequesterName *string `db:"requester_name" json:"requesterName,omitempty"`
	Count         int64   `db:"cnt" json:"count"`
}

// WorkflowAction names what an approver did in a transition.
type WorkflowAction string

const (
	ActionApproveRows  WorkflowAction = "APPROVE_ROWS"
	ActionRejectRows   WorkflowAction = "REJECT_ROWS"
	ActionApproveBatch WorkflowAction = "APPROVE_BATCH"
	ActionRejectBatch  WorkflowAction = "REJECT_BATCH"
	ActionNone         WorkflowAction = "NONE"
)

// Transition is one row of the workflow transition table exposed to clients.
type Transition struct {
	From      ApprovalState  `json:"from"`
	Actor     ApproverRole   `json:"actor"`
	Action    WorkflowAction `json:"action"`
	To        ApprovalState  `json:"to"`
	RowEffect string         `json:"rowEffect"`
	Terminal  bool           `json:"terminal,omitempty"`
}

// ApprovalStatus summarises the aggregate for UI enablement.
type ApprovalStatus struct {
	ApprovalID         *int64         `json:"approvalId,omitempty"`
	CurrentRole        ApproverRole   `json:"currentRole"`
	CurrentResult      DecisionResult `json:"currentResult"`
	State              string         `json:"state"`
	Finalized          bool           `json:"finalized"`
	FirstLevelEnabled  bool           `json:"firstLevelEnabled"`
	SecondLevelEnabled bool           `json:"secondLevelEnabled"`
	Transitions        []Transition   `json:"transitions"`
}

// MeetingStats is the dashboard summary for one meeting.
type MeetingStats struct {
	MeetingID       int64            `json:"meetingId"`
	MeetingStatus   MeetingStatus    `json:"meetingStatus"`
	TotalCount      int64            `json:"totalCount"`
	TotalAmount     float64          `json:"totalAmount"`
	StatusBreakdown []StatusCount    `json:"statusBreakdown"`
	TopRequesters   []RequesterCount `json:"topRequesters"`
	ApprovalStatus  ApprovalStatus   `json:"approvalStatus"`
}
