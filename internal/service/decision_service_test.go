package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/pkg/config"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
	"github.com/noah-isme/sales-credit-api/pkg/middleware/requestid"
)

// memState is a copyable snapshot of every table the decision path touches.
type memState struct {
	meetings       map[int64]models.Meeting
	requests       map[int64]models.UnblockRequest
	approvals      map[int64]models.ApprovalAggregate
	history        []models.ApprovalHistoryEntry
	nextApprovalID int64
	nextHistID     int64
}

func (s memState) clone() memState {
	out := memState{
		meetings:       make(map[int64]models.Meeting, len(s.meetings)),
		requests:       make(map[int64]models.UnblockRequest, len(s.requests)),
		approvals:      make(map[int64]models.ApprovalAggregate, len(s.approvals)),
		history:        append([]models.ApprovalHistoryEntry(nil), s.history...),
		nextApprovalID: s.nextApprovalID,
		nextHistID:     s.nextHistID,
	}
	for k, v := range s.meetings {
		out.meetings[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.approvals {
		out.approvals[k] = v
	}
	return out
}

// memDB implements every store the decision service needs, with transactions that
// only become visible on Commit.
type memDB struct {
	mu         sync.Mutex
	state      memState
	names      map[string]string
	failAppend error
	rollbacks  int
}

type memTx struct {
	sqlx.ExtContext
	db   *memDB
	work memState
	done bool
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.db.mu.Lock()
	t.db.state = t.work
	t.db.mu.Unlock()
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.db.mu.Lock()
	t.db.rollbacks++
	t.db.mu.Unlock()
	t.done = true
	return nil
}

func newMemDB() *memDB {
	return &memDB{
		state: memState{
			meetings:  map[int64]models.Meeting{},
			requests:  map[int64]models.UnblockRequest{},
			approvals: map[int64]models.ApprovalAggregate{},
		},
		names: map[string]string{},
	}
}

func (d *memDB) Begin(ctx context.Context) (Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &memTx{db: d, work: d.state.clone()}, nil
}

func (d *memDB) snapshot() memState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.clone()
}

func (d *memDB) view(exec sqlx.ExtContext) *memState {
	if tx, ok := exec.(*memTx); ok {
		return &tx.work
	}
	snap := d.snapshot()
	return &snap
}

func (d *memDB) LockForDecision(ctx context.Context, exec sqlx.ExtContext, id int64, timeout time.Duration) (*models.Meeting, error) {
	m, ok := d.view(exec).meetings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (d *memDB) ApplyDecisions(ctx context.Context, exec sqlx.ExtContext, meetingID int64, sel models.RowSelection, approveStatus, rejectStatus models.RequestStatus, actor string) (models.AppliedCounts, error) {
	st := d.view(exec)
	var counts models.AppliedCounts
	for id, row := range st.requests {
		if row.MeetingID != meetingID {
			continue
		}
		switch sel.Decision(id) {
		case models.RowApprove:
			row.Status = approveStatus
			counts.Approved++
		case models.RowReject:
			row.Status = rejectStatus
			counts.Rejected++
		default:
			continue
		}
		row.UpdatedBy = &actor
		row.StatusComment = nil
		st.requests[id] = row
	}
	return counts, nil
}

func (d *memDB) TransitionAll(ctx context.Context, exec sqlx.ExtContext, meetingID int64, from, to models.RequestStatus, actor string) (int64, error) {
	st := d.view(exec)
	var moved int64
	for id, row := range st.requests {
		if row.MeetingID == meetingID && row.Status == from {
			row.Status = to
			row.StatusComment = nil
			st.requests[id] = row
			moved++
		}
	}
	return moved, nil
}

func (d *memDB) CountByStatus(ctx context.Context, exec sqlx.ExtContext, meetingID int64, status models.RequestStatus) (int64, error) {
	var n int64
	for _, row := range d.view(exec).requests {
		if row.MeetingID == meetingID && row.Status == status {
			n++
		}
	}
	return n, nil
}

func (d *memDB) StatusOf(ctx context.Context, exec sqlx.ExtContext, id int64) (models.RequestStatus, error) {
	row, ok := d.view(exec).requests[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	return row.Status, nil
}

func (d *memDB) SetStatus(ctx context.Context, exec sqlx.ExtContext, id int64, status models.RequestStatus, actor string, comment *string) error {
	st := d.view(exec)
	row, ok := st.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	row.Status = status
	row.StatusComment = comment
	st.requests[id] = row
	return nil
}

func (d *memDB) FindByMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID int64) (*models.ApprovalAggregate, error) {
	agg, ok := d.view(exec).approvals[meetingID]
	if !ok {
		return nil, nil
	}
	return &agg, nil
}

func (d *memDB) Save(ctx context.Context, exec sqlx.ExtContext, agg *models.ApprovalAggregate) error {
	st := d.view(exec)
	if existing, ok := st.approvals[agg.MeetingID]; ok {
		agg.ID = existing.ID
		agg.CreatedAt = existing.CreatedAt
	} else {
		st.nextApprovalID++
		agg.ID = st.nextApprovalID
		agg.CreatedAt = time.Now()
	}
	st.approvals[agg.MeetingID] = *agg
	return nil
}

func (d *memDB) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.ApprovalHistoryEntry) error {
	if d.failAppend != nil {
		return d.failAppend
	}
	st := d.view(exec)
	st.nextHistID++
	entry.ID = st.nextHistID
	entry.CreatedAt = time.Now()
	st.history = append(st.history, *entry)
	return nil
}

func (d *memDB) FindName(ctx context.Context, empID string) (string, error) {
	name, ok := d.names[empID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return name, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.DecisionEvent
}

func (n *recordingNotifier) Notify(evt models.DecisionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

const testMeetingID int64 = 1

func newDecisionFixture(t *testing.T, status models.MeetingStatus) (*DecisionService, *memDB, *recordingNotifier) {
	t.Helper()
	db := newMemDB()
	db.state.meetings[testMeetingID] = models.Meeting{ID: testMeetingID, Code: "M1", Status: status}
	for _, id := range []int64{1, 2, 3} {
		db.state.requests[id] = models.UnblockRequest{ID: id, MeetingID: testMeetingID, Status: models.RequestStatusSubmitted}
	}
	db.names["SM01"] = "Sales Manager"
	db.names["CEO01"] = "Chief Executive"

	notifier := &recordingNotifier{}
	svc := NewDecisionService(db, db, db, db, db, db, nil, NewMetricsService(), notifier, zap.NewNop(), DecisionServiceConfig{
		LockTimeout: time.Second,
		Bindings:    NewApproverBindings(config.ApprovalsConfig{FirstLevelIDs: []string{"SM01"}, SecondLevelIDs: []string{"CEO01"}}),
	})
	return svc, db, notifier
}

func firstLevel(approve, reject []int64) DecisionCommand {
	return DecisionCommand{MeetingID: testMeetingID, Level: models.ApprovalLevelFirst, ApproveIDs: approve, RejectIDs: reject, ApproverID: "SM01"}
}

func secondLevelApprove() DecisionCommand {
	return DecisionCommand{MeetingID: testMeetingID, Level: models.ApprovalLevelSecond, ApproveIDs: []int64{1}, ApproverID: "CEO01"}
}

func secondLevelReject() DecisionCommand {
	return DecisionCommand{MeetingID: testMeetingID, Level: models.ApprovalLevelSecond, RejectIDs: []int64{1}, ApproverID: "CEO01"}
}

func rowStatuses(st memState) map[int64]models.RequestStatus {
	out := make(map[int64]models.RequestStatus, len(st.requests))
	for id, row := range st.requests {
		out[id] = row.Status
	}
	return out
}

func aggState(st memState) models.ApprovalState {
	agg, ok := st.approvals[testMeetingID]
	if !ok {
		return models.StateSubmitted
	}
	return agg.State()
}

func TestDecideScenarioAFirstLevelSplit(t *testing.T) {
	svc, db, notifier := newDecisionFixture(t, models.MeetingStatusFinished)

	out, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{3}))
	require.NoError(t, err)

	assert.Equal(t, models.ApproverRoleSalesManager, out.Role)
	assert.Equal(t, models.DecisionApproved1st, out.Result)
	assert.Equal(t, int64(2), out.ApprovedCount)
	assert.Equal(t, int64(1), out.RejectedCount)
	assert.Equal(t, "Sales Manager", out.ApproverName)
	assert.Empty(t, out.Warnings)

	st := db.snapshot()
	assert.Equal(t, models.StateFirstApproved, aggState(st))
	assert.Equal(t, map[int64]models.RequestStatus{
		1: models.RequestStatusApproved1st,
		2: models.RequestStatusApproved1st,
		3: models.RequestStatusRejected,
	}, rowStatuses(st))
	require.Len(t, st.history, 1)
	assert.Equal(t, 3, st.history[0].AffectedCount)
	assert.Equal(t, models.ApproverRoleSalesManager, st.history[0].ApproverRole)
	assert.Equal(t, 1, notifier.count())

	agg := st.approvals[testMeetingID]
	require.NotNil(t, agg.FirstApproverID)
	assert.Equal(t, "SM01", *agg.FirstApproverID)
}

func TestDecideEventCarriesRequestID(t *testing.T) {
	svc, _, notifier := newDecisionFixture(t, models.MeetingStatusFinished)
	ctx := requestid.WithID(context.Background(), "req-42")

	_, err := svc.Decide(ctx, firstLevel([]int64{1, 2}, []int64{3}))
	require.NoError(t, err)

	require.Equal(t, 1, notifier.count())
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, "req-42", notifier.events[0].RequestID)
	assert.Equal(t, testMeetingID, notifier.events[0].MeetingID)
}

func TestDecideScenarioBSecondLevelApprove(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{3}))
	require.NoError(t, err)

	out, err := svc.Decide(context.Background(), secondLevelApprove())
	require.NoError(t, err)
	assert.Equal(t, models.ApproverRoleCEO, out.Role)
	assert.Equal(t, models.DecisionApprovedFinal, out.Result)
	assert.Equal(t, int64(2), out.ApprovedCount)

	st := db.snapshot()
	assert.Equal(t, models.StateFinalApproved, aggState(st))
	assert.Equal(t, models.RequestStatusApprovedFinal, st.requests[1].Status)
	assert.Equal(t, models.RequestStatusApprovedFinal, st.requests[2].Status)
	assert.Equal(t, models.RequestStatusRejected, st.requests[3].Status)
	assert.Len(t, st.history, 2)

	agg := st.approvals[testMeetingID]
	require.NotNil(t, agg.SecondApproverName)
	assert.Equal(t, "Chief Executive", *agg.SecondApproverName)
}

func TestDecideScenarioCSecondLevelReject(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{3}))
	require.NoError(t, err)

	out, err := svc.Decide(context.Background(), secondLevelReject())
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, out.Result)
	assert.Equal(t, int64(2), out.RejectedCount)

	st := db.snapshot()
	assert.Equal(t, models.StateFinalRejected, aggState(st))
	assert.Equal(t, models.RequestStatusSubmitted, st.requests[1].Status)
	assert.Equal(t, models.RequestStatusSubmitted, st.requests[2].Status)
	assert.Equal(t, models.RequestStatusRejected, st.requests[3].Status)
	assert.Len(t, st.history, 2)
}

func TestDecideScenarioDSecondLevelBeforeFirst(t *testing.T) {
	svc, db, notifier := newDecisionFixture(t, models.MeetingStatusFinished)
	before := db.snapshot()

	_, err := svc.Decide(context.Background(), secondLevelApprove())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotAwaitingFinalApproval))

	after := db.snapshot()
	assert.Equal(t, rowStatuses(before), rowStatuses(after))
	assert.Empty(t, after.history)
	assert.Empty(t, after.approvals)
	assert.Zero(t, notifier.count())
}

func TestDecideScenarioEConcurrentDecisions(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{3}))
	require.NoError(t, err)

	stop := make(chan struct{})
	readerDone := make(chan []string)
	go func() {
		var violations []string
		for {
			select {
			case <-stop:
				readerDone <- violations
				return
			default:
			}
			st := db.snapshot()
			state := aggState(st)
			r1, r2 := st.requests[1].Status, st.requests[2].Status
			if r1 != r2 {
				violations = append(violations, "rows diverged: "+string(r1)+"/"+string(r2))
			}
			if state == models.StateFinalApproved && r1 != models.RequestStatusApprovedFinal {
				violations = append(violations, "final state with row "+string(r1))
			}
			if state == models.StateFinalRejected && r1 != models.RequestStatusSubmitted {
				violations = append(violations, "rejected state with row "+string(r1))
			}
		}
	}()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	cmds := []DecisionCommand{secondLevelApprove(), secondLevelReject()}
	for i := range cmds {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Decide(context.Background(), cmds[i])
		}(i)
	}
	wg.Wait()
	close(stop)
	assert.Empty(t, <-readerDone)

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1, "exactly one decision must commit")

	st := db.snapshot()
	assert.Len(t, st.history, 2)
	switch aggState(st) {
	case models.StateFinalApproved:
		// the reject arrived second and saw a finalized meeting
		assert.True(t, errors.Is(failures[0], appErrors.ErrAlreadyFinalized))
	case models.StateFinalRejected:
		assert.True(t, errors.Is(failures[0], appErrors.ErrNotAwaitingFinalApproval))
	default:
		t.Fatalf("unexpected state %s", aggState(st))
	}
}

func TestDecideMeetingGate(t *testing.T) {
	for _, status := range []models.MeetingStatus{models.MeetingStatusPlanned, models.MeetingStatusPreparing, models.MeetingStatusOnGoing} {
		t.Run(string(status), func(t *testing.T) {
			svc, db, _ := newDecisionFixture(t, status)
			cmds := []DecisionCommand{
				firstLevel([]int64{1}, nil),
				firstLevel([]int64{1}, []int64{1}),
				secondLevelApprove(),
				{MeetingID: testMeetingID, Level: "bogus"},
			}
			for _, cmd := range cmds {
				_, err := svc.Decide(context.Background(), cmd)
				require.Error(t, err)
				assert.True(t, errors.Is(err, appErrors.ErrMeetingNotFinished), "got %v", err)
			}
			st := db.snapshot()
			assert.Empty(t, st.history)
			for _, s := range rowStatuses(st) {
				assert.Equal(t, models.RequestStatusSubmitted, s)
			}
		})
	}
}

func TestDecideUnknownMeeting(t *testing.T) {
	svc, _, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	cmd := firstLevel([]int64{1}, nil)
	cmd.MeetingID = 404
	_, err := svc.Decide(context.Background(), cmd)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestDecideConflictingSelection(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{2}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflictingDecision))

	st := db.snapshot()
	assert.Empty(t, st.history)
	assert.Equal(t, models.RequestStatusSubmitted, st.requests[1].Status)
}

func TestDecideValidation(t *testing.T) {
	svc, _, _ := newDecisionFixture(t, models.MeetingStatusFinished)

	_, err := svc.Decide(context.Background(), firstLevel(nil, nil))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	both := secondLevelApprove()
	both.RejectIDs = []int64{2}
	_, err = svc.Decide(context.Background(), both)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Decide(context.Background(), DecisionCommand{MeetingID: testMeetingID, Level: "3rd", ApproveIDs: []int64{1}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestDecideUndecidedRowsUntouched(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	out, err := svc.Decide(context.Background(), firstLevel([]int64{1, 999}, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.ApprovedCount)

	st := db.snapshot()
	assert.Equal(t, models.RequestStatusApproved1st, st.requests[1].Status)
	assert.Equal(t, models.RequestStatusSubmitted, st.requests[2].Status)
	assert.Equal(t, models.RequestStatusSubmitted, st.requests[3].Status)
}

func TestDecideReversibilityAfterFirstLevelRejection(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)

	out, err := svc.Decide(context.Background(), firstLevel(nil, []int64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, models.StateFirstRejected, models.ApprovalState{Result: out.Result, Role: out.Role})

	out, err = svc.Decide(context.Background(), firstLevel([]int64{1}, nil))
	require.NoError(t, err)
	assert.Equal(t, models.StateFirstApproved, models.ApprovalState{Result: out.Result, Role: out.Role})
	assert.Equal(t, models.RequestStatusApproved1st, db.snapshot().requests[1].Status)
}

func TestDecideReversibilityAfterSecondLevelRejection(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{3}))
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), secondLevelReject())
	require.NoError(t, err)

	st := db.snapshot()
	assert.Equal(t, models.RequestStatusSubmitted, st.requests[1].Status)
	assert.Equal(t, models.RequestStatusSubmitted, st.requests[2].Status)

	out, err := svc.Decide(context.Background(), firstLevel([]int64{2}, nil))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved1st, out.Result)
	assert.Equal(t, models.ApproverRoleSalesManager, out.Role)

	_, err = svc.Decide(context.Background(), secondLevelApprove())
	require.NoError(t, err)
	st = db.snapshot()
	assert.Equal(t, models.RequestStatusSubmitted, st.requests[1].Status)
	assert.Equal(t, models.RequestStatusApprovedFinal, st.requests[2].Status)
	assert.Len(t, st.history, 4)
}

func TestDecideFirstLevelAmendmentRejectingAllApproved(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1}, nil))
	require.NoError(t, err)

	out, err := svc.Decide(context.Background(), firstLevel(nil, []int64{1}))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, out.Result)
	assert.Equal(t, models.StateFirstRejected, aggState(db.snapshot()))
}

func TestDecideTerminalState(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{3}))
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), secondLevelApprove())
	require.NoError(t, err)

	for _, cmd := range []DecisionCommand{firstLevel([]int64{3}, nil), secondLevelReject(), secondLevelApprove()} {
		_, err = svc.Decide(context.Background(), cmd)
		assert.True(t, errors.Is(err, appErrors.ErrAlreadyFinalized), "got %v", err)
	}
	err = svc.Hold(context.Background(), HoldCommand{MeetingID: testMeetingID, RequestID: 3, ApproverID: "SM01"})
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyFinalized))
	assert.Len(t, db.snapshot().history, 2)
}

func TestDecideMonotonicAudit(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	steps := []struct {
		cmd DecisionCommand
		ok  bool
	}{
		{secondLevelApprove(), false},
		{firstLevel(nil, []int64{3}), true},
		{firstLevel([]int64{1}, []int64{1}), false},
		{firstLevel([]int64{1, 2}, nil), true},
		{secondLevelReject(), true},
		{secondLevelReject(), false},
		{firstLevel([]int64{1}, nil), true},
		{secondLevelApprove(), true},
	}

	prev := 0
	for i, step := range steps {
		_, err := svc.Decide(context.Background(), step.cmd)
		n := len(db.snapshot().history)
		if step.ok {
			require.NoError(t, err, "step %d", i)
			assert.Equal(t, prev+1, n, "step %d", i)
		} else {
			require.Error(t, err, "step %d", i)
			assert.Equal(t, prev, n, "step %d", i)
		}
		assert.True(t, aggState(db.snapshot()).Valid())
		prev = n
	}
}

func TestDecideUnknownApproverIsNonFatal(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	cmd := firstLevel([]int64{1}, nil)
	cmd.ApproverID = "TEMP42"

	out, err := svc.Decide(context.Background(), cmd)
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, appErrors.ErrUnknownApprover.Code, out.Warnings[0].Code)
	assert.Equal(t, "TEMP42", out.ApproverName)

	entry := db.snapshot().history[0]
	assert.Equal(t, "TEMP42", entry.ApproverID)
	require.NotNil(t, entry.ApproverName)
	assert.Equal(t, "TEMP42", *entry.ApproverName)
}

func TestDecideDefaultApproverFromBindings(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	cmd := firstLevel([]int64{1}, nil)
	cmd.ApproverID = "  "

	_, err := svc.Decide(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "SM01", db.snapshot().history[0].ApproverID)

	svc.bindings = ApproverBindings{}
	_, err = svc.Decide(context.Background(), cmd)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestDecidePersistenceFailureRollsBack(t *testing.T) {
	svc, db, notifier := newDecisionFixture(t, models.MeetingStatusFinished)
	db.failAppend = errors.New("disk full")

	_, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{3}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	st := db.snapshot()
	assert.Empty(t, st.approvals)
	assert.Empty(t, st.history)
	for _, s := range rowStatuses(st) {
		assert.Equal(t, models.RequestStatusSubmitted, s)
	}
	assert.Equal(t, 1, db.rollbacks)
	assert.Zero(t, notifier.count())
}

func TestDecideLockTimeout(t *testing.T) {
	svc, _, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	svc.lockTimeout = 20 * time.Millisecond

	unlock, err := svc.locks.Lock(context.Background(), testMeetingID)
	require.NoError(t, err)
	defer unlock()

	_, err = svc.Decide(context.Background(), firstLevel([]int64{1}, nil))
	assert.True(t, errors.Is(err, appErrors.ErrLockTimeout))
}

func TestDecideNormalisesComment(t *testing.T) {
	svc, db, notifier := newDecisionFixture(t, models.MeetingStatusFinished)
	cmd := firstLevel([]int64{1}, nil)
	comment := "  collection plan accepted "
	cmd.Comment = &comment

	_, err := svc.Decide(context.Background(), cmd)
	require.NoError(t, err)
	entry := db.snapshot().history[0]
	require.NotNil(t, entry.Comment)
	assert.Equal(t, "collection plan accepted", *entry.Comment)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "collection plan accepted", *notifier.events[0].Comment)
}

func TestHoldParksSingleRow(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	reason := "  waiting for collateral documents "

	require.NoError(t, svc.Hold(context.Background(), HoldCommand{MeetingID: testMeetingID, RequestID: 2, ApproverID: "SM01", Comment: &reason}))
	st := db.snapshot()
	assert.Equal(t, models.RequestStatusHold, st.requests[2].Status)
	require.NotNil(t, st.requests[2].StatusComment)
	assert.Equal(t, "waiting for collateral documents", *st.requests[2].StatusComment)
	assert.Empty(t, st.history)
	assert.Empty(t, st.approvals)

	err := svc.Hold(context.Background(), HoldCommand{MeetingID: testMeetingID, RequestID: 77})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestHoldRequiresFinishedMeeting(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusOnGoing)
	err := svc.Hold(context.Background(), HoldCommand{MeetingID: testMeetingID, RequestID: 2})
	assert.True(t, errors.Is(err, appErrors.ErrMeetingNotFinished))
	assert.Equal(t, models.RequestStatusSubmitted, db.snapshot().requests[2].Status)
}

func TestHoldRefusesRowsAwaitingFinalApproval(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1, 2}, []int64{3}))
	require.NoError(t, err)

	for _, id := range []int64{1, 2} {
		err = svc.Hold(context.Background(), HoldCommand{MeetingID: testMeetingID, RequestID: id, ApproverID: "SM01"})
		assert.True(t, errors.Is(err, appErrors.ErrPendingFinalApproval), "request %d: got %v", id, err)
	}
	require.NoError(t, svc.Hold(context.Background(), HoldCommand{MeetingID: testMeetingID, RequestID: 3, ApproverID: "SM01"}))

	out, err := svc.Decide(context.Background(), secondLevelApprove())
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.AffectedCount)
	assert.Equal(t, map[int64]models.RequestStatus{
		1: models.RequestStatusApprovedFinal,
		2: models.RequestStatusApprovedFinal,
		3: models.RequestStatusHold,
	}, rowStatuses(db.snapshot()))
}

func TestHoldAllowedAfterFirstLevelAmendment(t *testing.T) {
	svc, db, _ := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1}, nil))
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), firstLevel(nil, []int64{1}))
	require.NoError(t, err)

	require.NoError(t, svc.Hold(context.Background(), HoldCommand{MeetingID: testMeetingID, RequestID: 1, ApproverID: "SM01"}))
	assert.Equal(t, models.RequestStatusHold, db.snapshot().requests[1].Status)
}

func TestDecideSecondLevelApproveNeedsPendingRows(t *testing.T) {
	svc, db, notifier := newDecisionFixture(t, models.MeetingStatusFinished)
	_, err := svc.Decide(context.Background(), firstLevel([]int64{1}, nil))
	require.NoError(t, err)

	db.mu.Lock()
	row := db.state.requests[1]
	row.Status = models.RequestStatusHold
	db.state.requests[1] = row
	db.mu.Unlock()

	_, err = svc.Decide(context.Background(), secondLevelApprove())
	assert.True(t, errors.Is(err, appErrors.ErrNotAwaitingFinalApproval), "got %v", err)

	st := db.snapshot()
	assert.Equal(t, models.StateFirstApproved, aggState(st))
	assert.Len(t, st.history, 1)
	assert.Equal(t, 1, notifier.count())
}

func TestDecideFirstLevelWithOnlyUnknownIDs(t *testing.T) {
	svc, db, notifier := newDecisionFixture(t, models.MeetingStatusFinished)

	_, err := svc.Decide(context.Background(), firstLevel([]int64{998}, []int64{999}))
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "got %v", err)

	st := db.snapshot()
	assert.Empty(t, st.approvals)
	assert.Empty(t, st.history)
	assert.Zero(t, notifier.count())
	assert.Equal(t, 1, db.rollbacks)
}
