package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

// ApproverRole identifies who currently holds the approval floor.
type ApproverRole string

const (
	ApproverRoleNone         ApproverRole = "NONE"
	ApproverRoleSalesManager ApproverRole = "SALES_MANAGER"
	ApproverRoleCEO          ApproverRole = "CEO"
)

// DecisionResult is the outcome recorded on the approval aggregate.
type DecisionResult string

const (
	DecisionSubmitted     DecisionResult = "SUBMITTED"
	DecisionApproved1st   DecisionResult = "APPROVED_1ST"
	DecisionApprovedFinal DecisionResult = "APPROVED_FINAL"
	DecisionRejected      DecisionResult = "REJECTED"
)

// ApprovalLevel is the level asserted by the caller of a batch decision.
type ApprovalLevel string

const (
	ApprovalLevelFirst  ApprovalLevel = "1st"
	ApprovalLevelSecond ApprovalLevel = "2nd"
)

// Role maps the level onto the approver role that acts at it.
func (l ApprovalLevel) Role() ApproverRole {
	switch l {
	case ApprovalLevelFirst:
		return ApproverRoleSalesManager
	case ApprovalLevelSecond:
		return ApproverRoleCEO
	default:
		return ApproverRoleNone
	}
}

// Valid reports whether l is a known level.
func (l ApprovalLevel) Valid() bool {
	return l == ApprovalLevelFirst || l == ApprovalLevelSecond
}

// ApprovalState is the compound (result, role) pair. The two halves never change
// independently.
type ApprovalState struct {
	Result DecisionResult `json:"currentResult"`
	Role   ApproverRole   `json:"currentRole"`
}

// The five states reachable by the workflow.
var (
	StateSubmitted     = ApprovalState{Result: DecisionSubmitted, Role: ApproverRoleNone}
	StateFirstApproved = ApprovalState{Result: DecisionApproved1st, Role: ApproverRoleSalesManager}
	StateFirstRejected = ApprovalState{Result: DecisionRejected, Role: ApproverRoleSalesManager}
	StateFinalApproved = ApprovalState{Result: DecisionApprovedFinal, Role: ApproverRoleCEO}
	StateFinalRejected = ApprovalState{Result: DecisionRejected, Role: ApproverRoleCEO}
)

// ApprovalStates lists every observable state in workflow order.
var ApprovalStates = []ApprovalState{
	StateSubmitted,
	StateFirstApproved,
	StateFirstRejected,
	StateFinalApproved,
	StateFinalRejected,
}

// Valid reports whether s is one of ApprovalStates.
func (s ApprovalState) Valid() bool {
	for _, known := range ApprovalStates {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further decisions are accepted.
func (s ApprovalState) Terminal() bool {
	return s == StateFinalApproved
}

// Name is a stable label for clients.
func (s ApprovalState) Name() string {
	switch s {
	case StateSubmitted:
		return "SUBMITTED"
	case StateFirstApproved:
		return "FIRST_LEVEL_APPROVED"
	case StateFirstRejected:
		return "FIRST_LEVEL_REJECTED"
	case StateFinalApproved:
		return "FINAL_APPROVED"
	case StateFinalRejected:
		return "FINAL_REJECTED"
	default:
		return "UNKNOWN"
	}
}

func (s ApprovalState) String() string {
	return fmt.Sprintf("(%s, %s)", s.Result, s.Role)
}

// Approver is a resolved (or unresolved) approver identity.
type Approver struct {
	ID       string
	Name     string
	Resolved bool
}

// DisplayName falls back to the identity when the directory had no name.
func (a Approver) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// ApprovalAggregate is the single per-meeting workflow record.
type ApprovalAggregate struct {
	ID                 int64          `db:"id" json:"id"`
	MeetingID          int64          `db:"meeting_id" json:"meetingId"`
	Role               ApproverRole   `db:"approver_role" json:"currentRole"`
	Result             DecisionResult `db:"decision_result" json:"currentResult"`
	FirstApproverID    *string        `db:"first_approver_id" json:"firstApproverId,omitempty"`
	FirstApproverName  *string        `db:"first_approver_name" json:"firstApproverName,omitempty"`
	FirstDecidedAt     *time.Time     `db:"first_decided_at" json:"firstDecidedAt,omitempty"`
	SecondApproverID   *string        `db:"second_approver_id" json:"secondApproverId,omitempty"`
	SecondApproverName *string        `db:"second_approver_name" json:"secondApproverName,omitempty"`
	SecondDecidedAt    *time.Time     `db:"second_decided_at" json:"secondDecidedAt,omitempty"`
	Comment            *string        `db:"decision_comment" json:"decisionComment,omitempty"`
	DecidedAt          time.Time      `db:"decided_at" json:"decidedAt"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
}

// State returns the compound state; a missing aggregate is the initial state.
func (a *ApprovalAggregate) State() ApprovalState {
	if a == nil {
		return StateSubmitted
	}
	return ApprovalState{Result: a.Result, Role: a.Role}
}

// Advance moves the aggregate to next, stamping the approver of the acting level.
func (a *ApprovalAggregate) Advance(next ApprovalState, approver Approver, comment *string, at time.Time) {
	a.Result = next.Result
	a.Role = next.Role
	a.Comment = comment
	a.DecidedAt = at
	id, name := approver.ID, approver.DisplayName()
	switch next.Role {
	case ApproverRoleSalesManager:
		a.FirstApproverID, a.FirstApproverName, a.FirstDecidedAt = &id, &name, &at
	case ApproverRoleCEO:
		a.SecondApproverID, a.SecondApproverName, a.SecondDecidedAt = &id, &name, &at
	}
}

// ApprovalHistoryEntry is an immutable record of one accepted decision.
type ApprovalHistoryEntry struct {
	ID            int64          `db:"hist_id" json:"histId"`
	ApprovalID    int64          `db:"approval_id" json:"approvalId"`
	MeetingID     int64          `db:"meeting_id" json:"meetingId"`
	ApproverRole  ApproverRole   `db:"approver_role" json:"approverRole"`
	ApproverID    string         `db:"approver_assignee_id" json:"approverAssigneeId"`
	ApproverName  *string        `db:"approver_name" json:"approverName,omitempty"`
	Result        DecisionResult `db:"decision_result" json:"decisionResult"`
	Comment       *string        `db:"decision_comment" json:"decisionComment,omitempty"`
	AffectedCount int            `db:"affected_count" json:"affectedCount"`
	DecidedAt     time.Time      `db:"decided_at" json:"decidedAt"`
	CreatedAt     time.Time      `db:"hist_created_at" json:"histCreatedAt"`
	MeetingCode   *string        `db:"meeting_code" json:"meetingCode,omitempty"`
	MeetingName   *string        `db:"meeting_name" json:"meetingName,omitempty"`
}

// RowDecision is the per-row choice of a first-level decision.
type RowDecision int

const (
	RowUndecided RowDecision = iota
	RowApprove
	RowReject
)

func (d RowDecision) String() string {
	switch d {
	case RowApprove:
		return "APPROVE"
	case RowReject:
		return "REJECT"
	default:
		return "UNDECIDED"
	}
}

// RowSelection holds disjoint approve and reject id sets. Rows in neither set are
// RowUndecided and keep their status.
type RowSelection struct {
	approve map[int64]struct{}
	reject  map[int64]struct{}
}

// NewRowSelection builds a selection, failing with CONFLICTING_DECISION when an id
// appears in both sets. Duplicates within one set collapse.
func NewRowSelection(approveIDs, rejectIDs []int64) (RowSelection, error) {
	sel := RowSelection{
		approve: make(map[int64]struct{}, len(approveIDs)),
		reject:  make(map[int64]struct{}, len(rejectIDs)),
	}
	for _, id := range approveIDs {
		sel.approve[id] = struct{}{}
	}
	var conflicts []string
	for _, id := range rejectIDs {
		if _, dup := sel.approve[id]; dup {
			conflicts = append(conflicts, fmt.Sprintf("%d", id))
			continue
		}
		sel.reject[id] = struct{}{}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return RowSelection{}, appErrors.Clone(appErrors.ErrConflictingDecision,
			fmt.Sprintf("requests %s appear in both approve and reject sets", strings.Join(conflicts, ",")))
	}
	return sel, nil
}

// Decision returns the choice made for row id.
func (s RowSelection) Decision(id int64) RowDecision {
	if _, ok := s.approve[id]; ok {
		return RowApprove
	}
	if _, ok := s.reject[id]; ok {
		return RowReject
	}
	return RowUndecided
}

// ApproveIDs returns the approve set in ascending order.
func (s RowSelection) ApproveIDs() []int64 { return sortedIDs(s.approve) }

// RejectIDs returns the reject set in ascending order.
func (s RowSelection) RejectIDs() []int64 { return sortedIDs(s.reject) }

// HasApprovals reports whether at least one row is approved.
func (s RowSelection) HasApprovals() bool { return len(s.approve) > 0 }

// Empty reports whether no row was decided.
func (s RowSelection) Empty() bool { return len(s.approve) == 0 && len(s.reject) == 0 }

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AppliedCounts reports how many rows a decision moved in each direction.
type AppliedCounts struct {
	Approved int64 `json:"approvedCount"`
	Rejected int64 `json:"rejectedCount"`
}

// Total is the number of rows touched.
func (c AppliedCounts) Total() int64 { return c.Approved + c.Rejected }
