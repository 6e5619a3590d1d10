package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneto/moneto-go/internal/cloud"
	"github.com/moneto/moneto-go/internal/plan"
)

// fakeRepo is an in-memory Repository. Failure injection is per plan id.
type fakeRepo struct {
	rows   map[string]cloud.Row // keyed by surrogate row id
	nextID int

	failFind   map[string]error
	failInsert map[string]error
	failUpdate map[string]error
	failDelete map[string]error
	failList   error

	insertCalls int
	updateCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rows:       map[string]cloud.Row{},
		failFind:   map[string]error{},
		failInsert: map[string]error{},
		failUpdate: map[string]error{},
		failDelete: map[string]error{},
	}
}

func (f *fakeRepo) findRow(userID, planID string) (string, *cloud.Row) {
	for id, row := range f.rows {
		if row.UserID == userID && row.PlanID == planID {
			r := row
			return id, &r
		}
	}

	return "", nil
}

func (f *fakeRepo) FindByUserAndPlan(_ context.Context, userID, planID string) (*cloud.Row, error) {
	if err := f.failFind[planID]; err != nil {
		return nil, err
	}

	if _, row := f.findRow(userID, planID); row != nil {
		return row, nil
	}

	return nil, fmt.Errorf("plan %s: %w", planID, cloud.ErrNotFound)
}

func (f *fakeRepo) Insert(_ context.Context, row cloud.Row) error {
	f.insertCalls++

	if err := f.failInsert[row.PlanID]; err != nil {
		return err
	}

	if _, existing := f.findRow(row.UserID, row.PlanID); existing != nil {
		return fmt.Errorf("plan %s: %w", row.PlanID, cloud.ErrDuplicate)
	}

	f.nextID++
	row.ID = fmt.Sprintf("row-%d", f.nextID)
	f.rows[row.ID] = row

	return nil
}

func (f *fakeRepo) Update(_ context.Context, rowID string, upd cloud.RowUpdate) error {
	f.updateCalls++

	row, ok := f.rows[rowID]
	if !ok {
		return fmt.Errorf("row %s: %w", rowID, cloud.ErrNotFound)
	}

	if err := f.failUpdate[row.PlanID]; err != nil {
		return err
	}

	row.Name = upd.Name
	row.Data = upd.Data
	row.UpdatedAt = upd.UpdatedAt
	f.rows[rowID] = row

	return nil
}

func (f *fakeRepo) DeleteByUserAndPlan(_ context.Context, userID, planID string) error {
	if err := f.failDelete[planID]; err != nil {
		return err
	}

	if id, row := f.findRow(userID, planID); row != nil {
		delete(f.rows, id)
	}

	return nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID string) ([]cloud.Row, error) {
	if f.failList != nil {
		return nil, f.failList
	}

	var rows []cloud.Row

	for _, row := range f.rows {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

func (f *fakeRepo) ListMetadata(_ context.Context, userID string) ([]cloud.PlanMeta, error) {
	if f.failList != nil {
		return nil, f.failList
	}

	var metas []cloud.PlanMeta

	for _, row := range f.rows {
		if row.UserID == userID {
			metas = append(metas, cloud.PlanMeta{PlanID: row.PlanID, Name: row.Name, UpdatedAt: row.UpdatedAt})
		}
	}

	return metas, nil
}

func testDiag() *Diagnostics {
	return NewDiagnostics(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var testBase = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// testPlan builds a plan with a deterministic id and version marker.
func testPlan(id, month string, updatedAt time.Time) plan.Plan {
	p := plan.New(month, testBase)
	p.ID = id
	p.UpdatedAt = plan.Timestamp(updatedAt)
	p.FixedIncomes = []plan.FixedItem{{ID: "item-1", Name: "Salary", Amount: 3000}}

	return p
}

// seedRemote plants the plan in the fake repo as userID's row.
func seedRemote(t *testing.T, repo *fakeRepo, p plan.Plan, userID string) {
	t.Helper()

	row, err := PlanToRow(p, userID)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), row))
	repo.insertCalls--
}

func TestUploadPlan_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())
	p := testPlan("plan-a", "2025-03", testBase)

	require.NoError(t, o.UploadPlan(context.Background(), p, "u1"))
	require.NoError(t, o.UploadPlan(context.Background(), p, "u1"))

	assert.Len(t, repo.rows, 1, "re-upload must not create a second row")
	assert.Equal(t, 1, repo.insertCalls)
	assert.Equal(t, 1, repo.updateCalls, "second upload turns into an update")

	_, row := repo.findRow("u1", "plan-a")
	require.NotNil(t, row)
	assert.Equal(t, p.UpdatedAt, row.UpdatedAt, "row carries the plan's own version marker")
	assert.Equal(t, "Plan 2025-03", row.Name)
}

func TestUploadPlan_DuplicateInsertFallsBackToUpdate(t *testing.T) {
	repo := newFakeRepo()
	p := testPlan("plan-a", "2025-03", testBase)

	// Another device wins the insert race: our lookup misses, our insert
	// hits the unique constraint, and the refetch finds the row.
	seedRemote(t, repo, testPlan("plan-a", "2025-03", testBase.Add(-time.Hour)), "u1")

	o := NewOrchestrator(&firstFindMisses{fakeRepo: repo}, testDiag())

	require.NoError(t, o.UploadPlan(context.Background(), p, "u1"))

	assert.Len(t, repo.rows, 1)
	assert.Equal(t, 1, repo.updateCalls)

	_, row := repo.findRow("u1", "plan-a")
	require.NotNil(t, row)
	assert.Equal(t, p.UpdatedAt, row.UpdatedAt)
}

// firstFindMisses reports not-found on the first lookup of each plan and
// a duplicate on insert, simulating losing an insert race.
type firstFindMisses struct {
	*fakeRepo

	seen map[string]bool
}

func (f *firstFindMisses) FindByUserAndPlan(ctx context.Context, userID, planID string) (*cloud.Row, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}

	if !f.seen[planID] {
		f.seen[planID] = true
		return nil, fmt.Errorf("plan %s: %w", planID, cloud.ErrNotFound)
	}

	return f.fakeRepo.FindByUserAndPlan(ctx, userID, planID)
}

func (f *firstFindMisses) Insert(_ context.Context, row cloud.Row) error {
	f.insertCalls++
	return fmt.Errorf("plan %s: %w", row.PlanID, cloud.ErrDuplicate)
}

func TestOrchestrator_NilRepo(t *testing.T) {
	o := NewOrchestrator(nil, testDiag())
	ctx := context.Background()

	assert.ErrorIs(t, o.UploadPlan(ctx, plan.Plan{}, "u1"), ErrUnavailable)

	_, err := o.DownloadAllPlans(ctx, "u1")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = o.SyncOnePlan(ctx, plan.Plan{}, "u1")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = o.SyncAllPlans(ctx, nil, "u1", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSyncOnePlan_RemoteAbsent(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())
	p := testPlan("plan-a", "2025-03", testBase)

	res, err := o.SyncOnePlan(context.Background(), p, "u1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoteAbsent, res.Outcome)
	assert.False(t, res.Conflict)
	assert.Equal(t, p.ID, res.Plan.ID)
	assert.Len(t, repo.rows, 1, "plan was uploaded")
}

func TestSyncOnePlan_RemoteWins(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())

	local := testPlan("plan-a", "2025-03", testBase)

	remote := testPlan("plan-a", "2025-03", testBase.Add(time.Hour))
	remote.FixedIncomes = []plan.FixedItem{{ID: "item-2", Name: "Bonus", Amount: 500}}
	seedRemote(t, repo, remote, "u1")

	res, err := o.SyncOnePlan(context.Background(), local, "u1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoteWins, res.Outcome)
	assert.True(t, res.Conflict)
	assert.Equal(t, remote.UpdatedAt, res.Plan.UpdatedAt)
	require.Len(t, res.Plan.FixedIncomes, 1)
	assert.Equal(t, "Bonus", res.Plan.FixedIncomes[0].Name)
	assert.Zero(t, res.Plan.CalculatedResults.TotalIncome, "downloaded results are zeroed")
	assert.Equal(t, 0, repo.updateCalls, "losing local copy is not pushed")
}

func TestSyncOnePlan_LocalWins(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())

	local := testPlan("plan-a", "2025-03", testBase.Add(time.Hour))
	seedRemote(t, repo, testPlan("plan-a", "2025-03", testBase), "u1")

	res, err := o.SyncOnePlan(context.Background(), local, "u1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeLocalWins, res.Outcome)
	assert.True(t, res.Conflict)
	assert.Equal(t, local.UpdatedAt, res.Plan.UpdatedAt)
	assert.Equal(t, 1, repo.updateCalls)
	assert.Equal(t, 0, repo.insertCalls)

	_, row := repo.findRow("u1", "plan-a")
	require.NotNil(t, row)
	assert.Equal(t, local.UpdatedAt, row.UpdatedAt)
}

func TestSyncOnePlan_EqualVersions(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())

	local := testPlan("plan-a", "2025-03", testBase)
	seedRemote(t, repo, local, "u1")

	res, err := o.SyncOnePlan(context.Background(), local, "u1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, res.Outcome)
	assert.False(t, res.Conflict)
	assert.Equal(t, 0, repo.insertCalls)
	assert.Equal(t, 0, repo.updateCalls, "equal versions write nothing")
}

func TestSyncAllPlans_FirstSync(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())

	var locals []plan.Plan
	for i := 0; i < 5; i++ {
		locals = append(locals, testPlan(fmt.Sprintf("plan-%d", i), "2025-03", testBase))
	}

	res, err := o.SyncAllPlans(context.Background(), locals, "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, 5, res.Synced)
	assert.Equal(t, 0, res.Conflicts)
	assert.Empty(t, res.Errors)
	assert.Len(t, res.Plans, 5)
	assert.Len(t, repo.rows, 5)
}

func TestSyncAllPlans_PartialFailureKeepsLocalCopy(t *testing.T) {
	repo := newFakeRepo()
	repo.failFind["plan-1"] = fmt.Errorf("boom: %w", cloud.ErrServerError)

	o := NewOrchestrator(repo, testDiag())

	locals := []plan.Plan{
		testPlan("plan-0", "2025-01", testBase),
		testPlan("plan-1", "2025-02", testBase),
		testPlan("plan-2", "2025-03", testBase),
	}

	var progress [][2]int
	onProgress := func(done, total int) { progress = append(progress, [2]int{done, total}) }

	res, err := o.SyncAllPlans(context.Background(), locals, "u1", onProgress)

	require.NoError(t, err, "per-plan failures never fail the pass")
	assert.Equal(t, 2, res.Synced)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "plan-1")

	require.Len(t, res.Plans, 3, "failed plan keeps its local copy")
	assert.Equal(t, "plan-1", res.Plans[1].ID)
	assert.Equal(t, "2025-02", res.Plans[1].Month)

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress,
		"progress fires after every plan, failures included")
}

func TestSyncAllPlans_MergesCloudOnlyPlans(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())

	shared := testPlan("plan-shared", "2025-01", testBase)
	seedRemote(t, repo, shared, "u1")
	seedRemote(t, repo, testPlan("plan-cloud", "2025-02", testBase), "u1")

	locals := []plan.Plan{shared, testPlan("plan-local", "2025-03", testBase)}

	res, err := o.SyncAllPlans(context.Background(), locals, "u1", nil)

	require.NoError(t, err)
	assert.Len(t, res.Plans, 3, "two local + one cloud-only")

	ids := map[string]bool{}
	for _, p := range res.Plans {
		ids[p.ID] = true
	}

	assert.True(t, ids["plan-shared"] && ids["plan-local"] && ids["plan-cloud"])
}

func TestDownloadAllPlans(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())

	seedRemote(t, repo, testPlan("plan-a", "2025-01", testBase), "u1")
	seedRemote(t, repo, testPlan("plan-b", "2025-02", testBase), "u1")
	seedRemote(t, repo, testPlan("plan-x", "2025-02", testBase), "other-user")

	plans, err := o.DownloadAllPlans(context.Background(), "u1")

	require.NoError(t, err)
	assert.Len(t, plans, 2, "only the requesting user's plans come back")

	for _, p := range plans {
		assert.Zero(t, p.CalculatedResults.TotalIncome)
		assert.NotEmpty(t, p.CalculatedResults.LastCalculated)
	}
}
