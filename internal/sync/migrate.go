package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moneto/moneto-go/internal/plan"
)

// MigrationCooldown is how long a declined migration offer stays quiet
// before it may be proposed again.
const MigrationCooldown = 7 * 24 * time.Hour

// MigrationStatus tracks the one-time bulk import of pre-existing local
// plans into a fresh cloud account.
type MigrationStatus struct {
	// Proposed is set once the offer has been shown at least once.
	Proposed bool `json:"proposed"`
	// Completed is set when a migration finished; the offer never
	// reappears after that.
	Completed bool `json:"completed"`
	// Declined is set when the user turned the offer down.
	Declined bool `json:"declined"`
	// LastProposedAt is when the offer was last shown.
	LastProposedAt *time.Time `json:"lastProposedAt,omitempty"`
	// MigratedCount is how many plans the completed migration moved.
	MigratedCount int `json:"migratedCount"`
}

// ShouldOfferMigration decides whether to propose migrating local plans
// to the cloud. The offer requires a signed-in user with local data,
// never reappears after completion, and respects a cooldown after a
// decline so the user is not nagged.
func ShouldOfferMigration(st MigrationStatus, localPlanCount int, authenticated bool, now time.Time) bool {
	if !authenticated || localPlanCount == 0 || st.Completed {
		return false
	}

	if st.Declined && st.LastProposedAt != nil && now.Sub(*st.LastProposedAt) < MigrationCooldown {
		return false
	}

	return true
}

// MigrateResult reports a bulk first-sync import.
type MigrateResult struct {
	Migrated int
	Total    int
	Errors   []string
}

// Summary renders the result as a one-line human-readable report.
func (r MigrateResult) Summary() string {
	if len(r.Errors) == 0 {
		return fmt.Sprintf("%d/%d plans migrated", r.Migrated, r.Total)
	}

	return fmt.Sprintf("%d/%d plans migrated; errors: %s",
		r.Migrated, r.Total, strings.Join(r.Errors, "; "))
}

// ImportLocalData uploads every local plan as part of a first sync.
// Individual failures are recorded and the import continues; onProgress,
// when non-nil, is called after each plan.
func (o *Orchestrator) ImportLocalData(ctx context.Context, plans []plan.Plan, userID string, onProgress ProgressFunc) (res MigrateResult, err error) {
	if o.repo == nil {
		return MigrateResult{}, ErrUnavailable
	}

	defer recoverToError("import local data", &err)
	end := o.diag.Start("import_local_data", "total", len(plans))
	defer func() { end(err) }()

	res.Total = len(plans)

	for i, p := range plans {
		if upErr := o.UploadPlan(ctx, p, userID); upErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("plan %s: %v", p.ID, upErr))
		} else {
			res.Migrated++
		}

		if onProgress != nil {
			onProgress(i+1, res.Total)
		}
	}

	return res, nil
}
