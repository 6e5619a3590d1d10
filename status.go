package main

import (
	"context"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/moneto/moneto-go/internal/plan"
	msync "github.com/moneto/moneto-go/internal/sync"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-plan sync status",
		RunE:  runStatus,
	}
}

func runStatus(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	locals, err := a.store.GetAll(ctx)
	if err != nil {
		return err
	}

	conn, err := a.connectCloud(ctx)
	if err != nil {
		// Offline view: every local plan is simply not synced.
		return printLocalOnlyStatus(a, locals)
	}

	infos, err := conn.orch.RefreshStatuses(ctx, locals, conn.userID)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(infos)
	}

	rows := make([][]string, 0, len(infos))

	for _, info := range sortedInfos(infos) {
		local, remote := "-", "-"

		if info.LocalUpdatedAt != nil {
			local = formatPlanTime(plan.Timestamp(*info.LocalUpdatedAt))
		}

		if info.CloudUpdatedAt != nil {
			remote = formatPlanTime(plan.Timestamp(*info.CloudUpdatedAt))
		}

		rows = append(rows, []string{info.PlanID, info.Name, string(info.Status), local, remote})
	}

	printTable(os.Stdout, []string{"ID", "NAME", "STATUS", "LOCAL", "CLOUD"}, rows)

	if at, err := a.store.LastSyncAt(ctx); err == nil && at != nil {
		statusf("Last sync: %s\n", at.Local().Format("2006-01-02 15:04:05"))
	}

	return nil
}

// sortedInfos orders the status map by plan id for stable output.
func sortedInfos(infos map[string]msync.PlanSyncInfo) []msync.PlanSyncInfo {
	out := make([]msync.PlanSyncInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PlanID < out[j].PlanID })

	return out
}

// printLocalOnlyStatus renders the offline view: no cloud comparison is
// possible, so every plan shows as not synced.
func printLocalOnlyStatus(a *app, locals []plan.Plan) error {
	if flagJSON {
		infos := make(map[string]msync.PlanSyncInfo, len(locals))
		for _, p := range locals {
			infos[p.ID] = msync.PlanSyncInfo{
				PlanID: p.ID,
				Name:   msync.PlanName(p.Month),
				Status: msync.StatusNotSynced,
			}
		}

		return printJSON(infos)
	}

	rows := make([][]string, 0, len(locals))
	for _, p := range locals {
		rows = append(rows, []string{
			p.ID, msync.PlanName(p.Month), string(msync.StatusNotSynced),
			formatPlanTime(p.UpdatedAt), "-",
		})
	}

	printTable(os.Stdout, []string{"ID", "NAME", "STATUS", "LOCAL", "CLOUD"}, rows)
	statusf("Cloud sync is off or you are signed out.\n")

	return nil
}
