package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moneto/moneto-go/internal/cloud"
	"github.com/moneto/moneto-go/internal/plan"
)

// ErrUnavailable is returned by every orchestrator operation when no
// remote repository is configured: the app keeps working offline and the
// caller treats this as "cloud sync off", not as a failure.
var ErrUnavailable = errors.New("sync: cloud backend not configured")

// Repository is the remote plan store the orchestrator drives. It matches
// the cloud plans client; tests substitute an in-memory fake.
type Repository interface {
	FindByUserAndPlan(ctx context.Context, userID, planID string) (*cloud.Row, error)
	Insert(ctx context.Context, row cloud.Row) error
	Update(ctx context.Context, rowID string, upd cloud.RowUpdate) error
	DeleteByUserAndPlan(ctx context.Context, userID, planID string) error
	ListByUser(ctx context.Context, userID string) ([]cloud.Row, error)
	ListMetadata(ctx context.Context, userID string) ([]cloud.PlanMeta, error)
}

// ProgressFunc reports batch progress after each plan is processed.
type ProgressFunc func(done, total int)

// SyncPlanResult is the outcome of synchronizing one plan.
type SyncPlanResult struct {
	// Plan is the winning copy the caller must commit locally.
	Plan plan.Plan
	// Outcome records which side won the comparison.
	Outcome Outcome
	// Conflict is true when the two copies diverged and one side's edits
	// were overridden.
	Conflict bool
}

// SyncAllResult is the outcome of a full bidirectional sync pass.
type SyncAllResult struct {
	// Plans is the merged set the caller must commit locally: every local
	// plan (resolved where possible) plus any cloud-only plans.
	Plans []plan.Plan
	// Synced counts plans that completed their round-trip.
	Synced int
	// Conflicts counts plans where one side's edits were overridden.
	Conflicts int
	// Errors lists per-plan failures. A non-empty list does not fail the
	// pass: the failed plans keep their local copy untouched.
	Errors []string
}

// Orchestrator coordinates plan synchronization against a remote
// repository. It is stateless between calls: callers hand it local plans
// and commit whatever it returns.
type Orchestrator struct {
	repo Repository
	diag *Diagnostics
	now  func() time.Time
}

// NewOrchestrator creates an orchestrator over repo. A nil repo is legal
// and makes every operation return ErrUnavailable.
func NewOrchestrator(repo Repository, diag *Diagnostics) *Orchestrator {
	if diag == nil {
		diag = NewDiagnostics(nil)
	}

	return &Orchestrator{repo: repo, diag: diag, now: time.Now}
}

// recoverToError converts a panic inside an orchestrator operation into a
// returned error, so one corrupt plan can never take down a batch caller.
func recoverToError(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("sync: %s: unexpected panic: %v", op, r)
	}
}

// UploadPlan pushes one plan to the remote store, inserting or updating
// as needed. The operation is idempotent: uploading the same plan twice
// leaves a single remote row carrying the plan's own timestamps.
func (o *Orchestrator) UploadPlan(ctx context.Context, p plan.Plan, userID string) (err error) {
	if o.repo == nil {
		return ErrUnavailable
	}

	defer recoverToError("upload plan", &err)
	end := o.diag.Start("upload_plan", "plan_id", p.ID)
	defer func() { end(err) }()

	row, err := PlanToRow(p, userID)
	if err != nil {
		return err
	}

	existing, err := o.repo.FindByUserAndPlan(ctx, userID, p.ID)

	switch {
	case err == nil:
		return o.repo.Update(ctx, existing.ID, rowUpdateFrom(row))

	case errors.Is(err, cloud.ErrNotFound):
		insertErr := o.repo.Insert(ctx, row)
		if insertErr == nil {
			return nil
		}

		// Another device inserted between our lookup and insert. The row
		// exists now, so fall through to an update.
		if errors.Is(insertErr, cloud.ErrDuplicate) {
			existing, err = o.repo.FindByUserAndPlan(ctx, userID, p.ID)
			if err != nil {
				return fmt.Errorf("sync: refetching plan %s after duplicate insert: %w", p.ID, err)
			}

			return o.repo.Update(ctx, existing.ID, rowUpdateFrom(row))
		}

		return insertErr

	default:
		return fmt.Errorf("sync: checking remote copy of plan %s: %w", p.ID, err)
	}
}

func rowUpdateFrom(row cloud.Row) cloud.RowUpdate {
	return cloud.RowUpdate{Name: row.Name, Data: row.Data, UpdatedAt: row.UpdatedAt}
}

// DownloadAllPlans fetches every remote plan for the user. Derived
// results come back zeroed; the caller recalculates after committing.
func (o *Orchestrator) DownloadAllPlans(ctx context.Context, userID string) (plans []plan.Plan, err error) {
	if o.repo == nil {
		return nil, ErrUnavailable
	}

	defer recoverToError("download all plans", &err)
	end := o.diag.Start("download_all_plans")
	defer func() { end(err) }()

	rows, err := o.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	plans = make([]plan.Plan, 0, len(rows))

	for _, row := range rows {
		p, convErr := RowToPlan(row, now)
		if convErr != nil {
			return nil, convErr
		}

		plans = append(plans, p)
	}

	return plans, nil
}

// SyncOnePlan synchronizes a single plan bidirectionally: it fetches the
// remote copy, resolves last-write-wins, and pushes or returns the winner.
// The returned result carries the copy the caller must keep locally.
func (o *Orchestrator) SyncOnePlan(ctx context.Context, local plan.Plan, userID string) (res SyncPlanResult, err error) {
	if o.repo == nil {
		return SyncPlanResult{}, ErrUnavailable
	}

	defer recoverToError("sync plan", &err)
	end := o.diag.Start("sync_plan", "plan_id", local.ID)
	defer func() { end(err) }()

	existing, err := o.repo.FindByUserAndPlan(ctx, userID, local.ID)
	if errors.Is(err, cloud.ErrNotFound) {
		if err = o.UploadPlan(ctx, local, userID); err != nil {
			return SyncPlanResult{}, err
		}

		return SyncPlanResult{Plan: local, Outcome: OutcomeRemoteAbsent}, nil
	}

	if err != nil {
		return SyncPlanResult{}, fmt.Errorf("sync: fetching remote copy of plan %s: %w", local.ID, err)
	}

	remote, err := RowToPlan(*existing, o.now())
	if err != nil {
		return SyncPlanResult{}, err
	}

	switch outcome := Resolve(local, &remote); outcome {
	case OutcomeRemoteWins:
		o.diag.Logger().Debug("remote copy wins", "plan_id", local.ID,
			"local_updated_at", local.UpdatedAt, "remote_updated_at", remote.UpdatedAt)

		return SyncPlanResult{Plan: remote, Outcome: outcome, Conflict: true}, nil

	case OutcomeLocalWins:
		row, rowErr := PlanToRow(local, userID)
		if rowErr != nil {
			return SyncPlanResult{}, rowErr
		}

		if err = o.repo.Update(ctx, existing.ID, rowUpdateFrom(row)); err != nil {
			return SyncPlanResult{}, err
		}

		return SyncPlanResult{Plan: local, Outcome: outcome, Conflict: true}, nil

	default:
		return SyncPlanResult{Plan: local, Outcome: OutcomeNoOp}, nil
	}
}

// SyncAllPlans runs a full bidirectional pass over the user's plans.
// Each local plan is synchronized in turn; a failure on one plan is
// recorded and the pass continues, keeping that plan's local copy. After
// the per-plan loop, plans that exist only in the cloud are appended.
// onProgress, when non-nil, is called after each local plan is processed.
func (o *Orchestrator) SyncAllPlans(ctx context.Context, locals []plan.Plan, userID string, onProgress ProgressFunc) (res SyncAllResult, err error) {
	if o.repo == nil {
		return SyncAllResult{}, ErrUnavailable
	}

	defer recoverToError("sync all plans", &err)
	end := o.diag.Start("sync_all_plans", "total", len(locals))
	defer func() { end(err) }()

	total := len(locals)
	res.Plans = make([]plan.Plan, 0, total)
	seen := make(map[string]bool, total)

	for i, local := range locals {
		seen[local.ID] = true

		one, planErr := o.SyncOnePlan(ctx, local, userID)
		if planErr != nil {
			res.Plans = append(res.Plans, local)
			res.Errors = append(res.Errors, fmt.Sprintf("plan %s: %v", local.ID, planErr))
		} else {
			res.Plans = append(res.Plans, one.Plan)
			res.Synced++

			if one.Conflict {
				res.Conflicts++
			}
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	// Pull in plans other devices created. A download failure here does
	// not undo the per-plan work above.
	remote, dlErr := o.DownloadAllPlans(ctx, userID)
	if dlErr != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("downloading cloud-only plans: %v", dlErr))
		return res, nil
	}

	for _, p := range remote {
		if !seen[p.ID] {
			res.Plans = append(res.Plans, p)
		}
	}

	return res, nil
}
