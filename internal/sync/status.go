package sync

import (
	"context"
	"time"

	"github.com/moneto/moneto-go/internal/cloud"
	"github.com/moneto/moneto-go/internal/plan"
)

// Status describes one plan's relationship to its cloud copy.
type Status string

const (
	// StatusSynced means local and cloud carry the same version.
	StatusSynced Status = "synced"
	// StatusNotSynced means the plan exists only locally.
	StatusNotSynced Status = "not_synced"
	// StatusCloudOnly means the plan exists only in the cloud.
	StatusCloudOnly Status = "cloud_only"
	// StatusLocalNewer means the local copy carries unsent edits.
	StatusLocalNewer Status = "local_newer"
	// StatusCloudNewer means another device pushed a newer copy.
	StatusCloudNewer Status = "cloud_newer"
	// StatusSyncing means a sync for this plan is in flight.
	StatusSyncing Status = "syncing"
	// StatusError means the last sync attempt for this plan failed.
	StatusError Status = "error"
)

// PlanSyncInfo is the per-plan sync snapshot shown in status output.
type PlanSyncInfo struct {
	PlanID         string
	Name           string
	Status         Status
	LocalUpdatedAt *time.Time
	CloudUpdatedAt *time.Time
}

// ComparePlanStatus classifies one local plan against its cloud metadata.
// A nil meta means no cloud row exists.
func ComparePlanStatus(local plan.Plan, meta *cloud.PlanMeta) Status {
	if meta == nil {
		return StatusNotSynced
	}

	localAt := plan.ParseTime(local.UpdatedAt)
	cloudAt := plan.ParseTime(meta.UpdatedAt)

	switch {
	case localAt.After(cloudAt):
		return StatusLocalNewer
	case cloudAt.After(localAt):
		return StatusCloudNewer
	default:
		return StatusSynced
	}
}

// RefreshStatuses compares every local plan against the cloud metadata
// listing and returns a per-plan snapshot, including cloud-only plans.
// Only metadata travels: no plan payloads are transferred.
func (o *Orchestrator) RefreshStatuses(ctx context.Context, locals []plan.Plan, userID string) (infos map[string]PlanSyncInfo, err error) {
	if o.repo == nil {
		return nil, ErrUnavailable
	}

	defer recoverToError("refresh statuses", &err)
	end := o.diag.Start("refresh_statuses", "local_count", len(locals))
	defer func() { end(err) }()

	metas, err := o.repo.ListMetadata(ctx, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]cloud.PlanMeta, len(metas))
	for _, m := range metas {
		byID[m.PlanID] = m
	}

	infos = make(map[string]PlanSyncInfo, len(locals)+len(metas))

	for _, local := range locals {
		info := PlanSyncInfo{PlanID: local.ID, Name: PlanName(local.Month)}

		if at := plan.ParseTime(local.UpdatedAt); !at.IsZero() {
			info.LocalUpdatedAt = &at
		}

		if meta, ok := byID[local.ID]; ok {
			info.Status = ComparePlanStatus(local, &meta)

			if at := plan.ParseTime(meta.UpdatedAt); !at.IsZero() {
				info.CloudUpdatedAt = &at
			}
		} else {
			info.Status = StatusNotSynced
		}

		infos[local.ID] = info
	}

	for _, m := range metas {
		if _, ok := infos[m.PlanID]; ok {
			continue
		}

		info := PlanSyncInfo{PlanID: m.PlanID, Name: m.Name, Status: StatusCloudOnly}

		if at := plan.ParseTime(m.UpdatedAt); !at.IsZero() {
			info.CloudUpdatedAt = &at
		}

		infos[m.PlanID] = info
	}

	return infos, nil
}
