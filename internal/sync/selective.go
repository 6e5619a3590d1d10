package sync

import (
	"context"
	"fmt"

	"github.com/moneto/moneto-go/internal/plan"
)

// SelectiveResult reports a selective transfer: how many plans made it,
// which failed, and — for downloads — the fetched plans themselves.
type SelectiveResult struct {
	Succeeded int
	// Plans holds the downloaded plans; empty for uploads and deletes.
	Plans []plan.Plan
	// Errors lists per-plan failures. Partial success is normal.
	Errors []string
}

// UploadSelected pushes the given plans to the remote store, continuing
// past individual failures.
func (o *Orchestrator) UploadSelected(ctx context.Context, plans []plan.Plan, userID string) (res SelectiveResult, err error) {
	if o.repo == nil {
		return SelectiveResult{}, ErrUnavailable
	}

	defer recoverToError("upload selected", &err)
	end := o.diag.Start("upload_selected", "count", len(plans))
	defer func() { end(err) }()

	for _, p := range plans {
		if upErr := o.UploadPlan(ctx, p, userID); upErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("plan %s: %v", p.ID, upErr))
			continue
		}

		res.Succeeded++
	}

	return res, nil
}

// DownloadSelected fetches the plans with the given ids from the remote
// store. Plans that are missing remotely or fail to decode are recorded
// as errors; the rest are returned for the caller to commit.
func (o *Orchestrator) DownloadSelected(ctx context.Context, planIDs []string, userID string) (res SelectiveResult, err error) {
	if o.repo == nil {
		return SelectiveResult{}, ErrUnavailable
	}

	defer recoverToError("download selected", &err)
	end := o.diag.Start("download_selected", "count", len(planIDs))
	defer func() { end(err) }()

	now := o.now()

	for _, id := range planIDs {
		row, findErr := o.repo.FindByUserAndPlan(ctx, userID, id)
		if findErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("plan %s: %v", id, findErr))
			continue
		}

		p, convErr := RowToPlan(*row, now)
		if convErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("plan %s: %v", id, convErr))
			continue
		}

		res.Plans = append(res.Plans, p)
		res.Succeeded++
	}

	return res, nil
}

// DeleteSelected removes the plans with the given ids from the remote
// store. Local copies are untouched; deleting an id with no remote row
// counts as success.
func (o *Orchestrator) DeleteSelected(ctx context.Context, planIDs []string, userID string) (res SelectiveResult, err error) {
	if o.repo == nil {
		return SelectiveResult{}, ErrUnavailable
	}

	defer recoverToError("delete selected", &err)
	end := o.diag.Start("delete_selected", "count", len(planIDs))
	defer func() { end(err) }()

	for _, id := range planIDs {
		if delErr := o.repo.DeleteByUserAndPlan(ctx, userID, id); delErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("plan %s: %v", id, delErr))
			continue
		}

		res.Succeeded++
	}

	return res, nil
}
