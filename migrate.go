package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	msync "github.com/moneto/moneto-go/internal/sync"
)

var flagMigrateForce bool

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upload all local plans to the cloud (first sync)",
		Long: "Bulk-uploads every local plan to a fresh cloud account. The offer is\n" +
			"skipped when a migration already completed or was declined recently;\n" +
			"use --force to run it anyway.",
		RunE: runMigrate,
	}

	cmd.Flags().BoolVar(&flagMigrateForce, "force", false, "migrate even if recently declined or already completed")

	return cmd
}

func runMigrate(_ *cobra.Command, _ []string) error {
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

	plans, err := a.store.GetAll(ctx)
	if err != nil {
		return err
	}

	st, err := a.store.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	if !flagMigrateForce && !msync.ShouldOfferMigration(st, len(plans), true, now) {
		statusf("Nothing to migrate (already done, declined recently, or no local plans).\n")
		return nil
	}

	st.Proposed = true
	st.LastProposedAt = &now

	onProgress := func(done, total int) {
		progressf("Migrating plans... %d/%d", done, total)
	}

	res, err := conn.orch.ImportLocalData(ctx, plans, conn.userID, onProgress)
	if err != nil {
		return err
	}

	if len(plans) > 0 {
		progressDone()
	}

	if res.Migrated > 0 {
		st.Completed = true
		st.Declined = false
		st.MigratedCount = res.Migrated
	}

	if err := a.store.SetMigrationStatus(ctx, st); err != nil {
		return err
	}

	statusf("%s.\n", res.Summary())

	return nil
}
