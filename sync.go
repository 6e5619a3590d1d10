package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moneto/moneto-go/internal/plan"
	msync "github.com/moneto/moneto-go/internal/sync"
)

var flagSyncPlan string

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize plans with the cloud",
		Long: "Runs a full bidirectional sync: newer copies win per plan, cloud-only plans\n" +
			"are pulled down, and local-only plans are pushed up.",
		RunE: runSync,
	}

	cmd.Flags().StringVar(&flagSyncPlan, "plan", "", "sync a single plan by id")

	return cmd
}

func runSync(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	conn, err := a.connectCloud(ctx)
	if err != nil {
		return err
	}

	if flagSyncPlan != "" {
		return syncOne(ctx, a, conn, flagSyncPlan)
	}

	return syncAll(ctx, a, conn)
}

func syncOne(ctx context.Context, a *app, conn *cloudConn, key string) error {
	local, err := findPlan(ctx, a, key)
	if err != nil {
		return err
	}

	var res msync.SyncPlanResult

	err = msync.WithRetry(ctx, msync.DefaultRetryAttempts, msync.DefaultRetryDelay,
		func(ctx context.Context) error {
			var syncErr error
			res, syncErr = conn.orch.SyncOnePlan(ctx, *local, conn.userID)

			return syncErr
		})
	if err != nil {
		return err
	}

	if err := commitPlan(ctx, a, res.Plan); err != nil {
		return err
	}

	if err := a.store.SetLastSyncAt(ctx, time.Now()); err != nil {
		return err
	}

	if res.Conflict {
		statusf("Plan %s: conflict resolved (%s).\n", res.Plan.ID, res.Outcome)
	} else {
		statusf("Plan %s: up to date.\n", res.Plan.ID)
	}

	return nil
}

func syncAll(ctx context.Context, a *app, conn *cloudConn) error {
	locals, err := a.store.GetAll(ctx)
	if err != nil {
		return err
	}

	onProgress := func(done, total int) {
		progressf("Syncing plans... %d/%d", done, total)
	}

	res, err := conn.orch.SyncAllPlans(ctx, locals, conn.userID, onProgress)
	if err != nil {
		return err
	}

	if len(locals) > 0 {
		progressDone()
	}

	// Commit the merged collection atomically, recalculating totals for
	// every plan so downloaded copies get fresh derived results.
	now := time.Now()
	committed := make([]plan.Plan, 0, len(res.Plans))

	for _, p := range res.Plans {
		committed = append(committed, plan.Calculate(p, now))
	}

	if err := a.store.ReplaceAll(ctx, committed); err != nil {
		return err
	}

	if err := a.store.SetLastSyncAt(ctx, now); err != nil {
		return err
	}

	statusf("Synced %d plans (%d conflicts resolved).\n", res.Synced, res.Conflicts)

	for _, msg := range res.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}

	return nil
}

// commitPlan recalculates and saves a single resolved plan.
func commitPlan(ctx context.Context, a *app, p plan.Plan) error {
	return a.store.Upsert(ctx, plan.Calculate(p, time.Now()))
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <plan-id>...",
		Short: "Upload specific plans to the cloud",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPush,
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <plan-id>...",
		Short: "Download specific plans from the cloud, overwriting local copies",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPull,
	}
}

func newRmCloudCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-cloud <plan-id>...",
		Short: "Delete specific plans from the cloud, keeping local copies",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRmCloud,
	}
}

func runPush(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	conn, err := a.connectCloud(ctx)
	if err != nil {
		return err
	}

	var plans []plan.Plan

	for _, key := range args {
		p, err := findPlan(ctx, a, key)
		if err != nil {
			return err
		}

		plans = append(plans, *p)
	}

	res, err := conn.orch.UploadSelected(ctx, plans, conn.userID)
	if err != nil {
		return err
	}

	reportSelective(a, "Uploaded", res)

	return nil
}

func runPull(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	conn, err := a.connectCloud(ctx)
	if err != nil {
		return err
	}

	res, err := conn.orch.DownloadSelected(ctx, args, conn.userID)
	if err != nil {
		return err
	}

	for _, p := range res.Plans {
		if err := commitPlan(ctx, a, p); err != nil {
			return err
		}
	}

	reportSelective(a, "Downloaded", res)

	return nil
}

func runRmCloud(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	conn, err := a.connectCloud(ctx)
	if err != nil {
		return err
	}

	res, err := conn.orch.DeleteSelected(ctx, args, conn.userID)
	if err != nil {
		return err
	}

	reportSelective(a, "Deleted", res)

	return nil
}

// reportSelective prints the outcome of a selective transfer.
func reportSelective(a *app, verb string, res msync.SelectiveResult) {
	statusf("%s %d plans.\n", verb, res.Succeeded)

	for _, msg := range res.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}

	if len(res.Errors) > 0 {
		a.logger.Warn("selective transfer finished with errors", "failed", len(res.Errors))
	}
}
