package service

import (
	"fmt"

	"github.com/noah-isme/sales-credit-api/internal/models"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

type transitionKey struct {
	from   models.ApprovalState
	actor  models.ApproverRole
	action models.WorkflowAction
}

// ApprovalMachine is the transition table of the two-tier workflow. It is pure and
// safe for concurrent use.
type ApprovalMachine struct {
	ordered []models.Transition
	index   map[transitionKey]models.Transition
}

// NewApprovalMachine builds the machine with the standard table.
func NewApprovalMachine() *ApprovalMachine {
	sm, ceo := models.ApproverRoleSalesManager, models.ApproverRoleCEO
	const (
		perRow   = "selected rows become APPROVED_1ST or REJECTED per row; undecided rows keep their status"
		rejected = "selected rows become REJECTED; undecided rows keep their status"
	)

	table := []models.Transition{
		{From: models.StateSubmitted, Actor: sm, Action: models.ActionApproveRows, To: models.StateFirstApproved, RowEffect: perRow},
		{From: models.StateSubmitted, Actor: sm, Action: models.ActionRejectRows, To: models.StateFirstRejected, RowEffect: rejected},
		{From: models.StateFirstRejected, Actor: sm, Action: models.ActionApproveRows, To: models.StateFirstApproved, RowEffect: perRow},
		{From: models.StateFirstRejected, Actor: sm, Action: models.ActionRejectRows, To: models.StateFirstRejected, RowEffect: rejected},
		{From: models.StateFirstApproved, Actor: ceo, Action: models.ActionApproveBatch, To: models.StateFinalApproved, RowEffect: "all APPROVED_1ST rows become APPROVED_FINAL"},
		{From: models.StateFirstApproved, Actor: ceo, Action: models.ActionRejectBatch, To: models.StateFinalRejected, RowEffect: "all APPROVED_1ST rows revert to SUBMITTED"},
		{From: models.StateFinalRejected, Actor: sm, Action: models.ActionApproveRows, To: models.StateFirstApproved, RowEffect: perRow},
		{From: models.StateFinalRejected, Actor: sm, Action: models.ActionRejectRows, To: models.StateFirstRejected, RowEffect: rejected},
		// The first level keeps the floor until the CEO acts and may amend its batch.
		{From: models.StateFirstApproved, Actor: sm, Action: models.ActionApproveRows, To: models.StateFirstApproved, RowEffect: perRow},
		{From: models.StateFirstApproved, Actor: sm, Action: models.ActionRejectRows, To: models.StateFirstRejected, RowEffect: rejected},
		{From: models.StateFinalApproved, Actor: models.ApproverRoleNone, Action: models.ActionNone, To: models.StateFinalApproved, RowEffect: "no further decisions accepted", Terminal: true},
	}

	m := &ApprovalMachine{ordered: table, index: make(map[transitionKey]models.Transition, len(table))}
	for _, t := range table {
		if t.Terminal {
			continue
		}
		m.index[transitionKey{from: t.From, actor: t.Actor, action: t.Action}] = t
	}
	return m
}

// Next resolves the transition for actor performing action from state from.
func (m *ApprovalMachine) Next(from models.ApprovalState, actor models.ApproverRole, action models.WorkflowAction) (models.Transition, error) {
	if err := m.Admit(from, actor); err != nil {
		return models.Transition{}, err
	}
	t, ok := m.index[transitionKey{from: from, actor: actor, action: action}]
	if !ok {
		return models.Transition{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s cannot %s from %s", actor, action, from))
	}
	return t, nil
}

// Admit checks whether actor may act at all in state from, independent of the
// action. It is evaluated before any row is touched.
func (m *ApprovalMachine) Admit(from models.ApprovalState, actor models.ApproverRole) error {
	if !from.Valid() {
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("approval aggregate in invalid state %s", from))
	}
	if from.Terminal() {
		return appErrors.ErrAlreadyFinalized
	}
	if m.accepts(from, actor) {
		return nil
	}
	if actor == models.ApproverRoleCEO {
		return appErrors.ErrNotAwaitingFinalApproval
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s cannot act from %s", actor, from))
}

func (m *ApprovalMachine) accepts(from models.ApprovalState, actor models.ApproverRole) bool {
	for key := range m.index {
		if key.from == from && key.actor == actor {
			return true
		}
	}
	return false
}

// Status summarises the aggregate for clients, including the full table so they
// never re-derive enablement themselves.
func (m *ApprovalMachine) Status(agg *models.ApprovalAggregate) models.ApprovalStatus {
	state := agg.State()
	status := models.ApprovalStatus{
		CurrentRole:        state.Role,
		CurrentResult:      state.Result,
		State:              state.Name(),
		Finalized:          state.Terminal(),
		FirstLevelEnabled:  !state.Terminal() && m.accepts(state, models.ApproverRoleSalesManager),
		SecondLevelEnabled: !state.Terminal() && m.accepts(state, models.ApproverRoleCEO),
		Transitions:        m.Transitions(),
	}
	if agg != nil {
		id := agg.ID
		status.ApprovalID = &id
	}
	return status
}

// Transitions returns a copy of the table in workflow order.
func (m *ApprovalMachine) Transitions() []models.Transition {
	out := make([]models.Transition, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// RowTarget maps a row decision onto the status it produces at the first level.
// Undecided rows report false and keep their current status.
func RowTarget(decision models.RowDecision) (models.RequestStatus, bool) {
	switch decision {
	case models.RowApprove:
		return models.RequestStatusApproved1st, true
	case models.RowReject:
		return models.RequestStatusRejected, true
	default:
		return "", false
	}
}

// BatchRowTransition returns the (from, to) row statuses of a CEO action.
func BatchRowTransition(action models.WorkflowAction) (models.RequestStatus, models.RequestStatus) {
	if action == models.ActionApproveBatch {
		return models.RequestStatusApproved1st, models.RequestStatusApprovedFinal
	}
	return models.RequestStatusApproved1st, models.RequestStatusSubmitted
}
