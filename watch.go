package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/moneto/moneto-go/internal/cloud"
	msync "github.com/moneto/moneto-go/internal/sync"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch for local and remote changes and sync continuously",
		Long: "Watches the local plan database for edits and, when the realtime feed is\n" +
			"enabled, listens for remote changes. Bursts of changes collapse into a\n" +
			"single debounced sync pass.",
		RunE: runWatch,
	}
}

func runWatch(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := a.connectCloud(ctx)
	if err != nil {
		return err
	}

	guard := msync.NewGuard()

	// syncing suppresses the file events our own sync writes produce.
	var syncing atomic.Bool

	runPass := func() {
		err := guard.Do(ctx, "sync-all", func(ctx context.Context) error {
			syncing.Store(true)
			defer syncing.Store(false)

			return msync.WithRetry(ctx, msync.DefaultRetryAttempts, msync.DefaultRetryDelay,
				func(ctx context.Context) error {
					return syncAll(ctx, a, conn)
				})
		})
		if err != nil && ctx.Err() == nil {
			a.logger.Warn("sync pass failed", "error", err)
		}
	}

	debouncer := msync.NewDebouncer(resolvedCfg.DebounceWindow(), runPass)
	defer debouncer.Stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(resolvedCfg.StateDir); err != nil {
		return err
	}

	go watchFiles(ctx, a, watcher, &syncing, debouncer)

	if resolvedCfg.Realtime {
		go watchRealtime(ctx, a, conn, debouncer)
	}

	statusf("Watching for changes (Ctrl-C to stop).\n")

	// Initial pass so the session starts from a converged state.
	runPass()

	<-ctx.Done()
	statusf("Stopping.\n")

	return nil
}

// watchFiles forwards plan database writes to the debouncer.
func watchFiles(ctx context.Context, a *app, watcher *fsnotify.Watcher, syncing *atomic.Bool, debouncer *msync.Debouncer) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Only the plan database matters; sqlite sidecar files
			// (-wal, -shm) share its prefix.
			if !strings.HasPrefix(filepath.Base(event.Name), dbFileName) {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if syncing.Load() {
				continue
			}

			a.logger.Debug("local change detected", "file", event.Name)
			debouncer.Trigger()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			a.logger.Warn("file watcher error", "error", err)
		}
	}
}

// watchRealtime forwards remote change notifications to the debouncer,
// reconnecting with backoff when the feed drops. The feed is best
// effort: local edits still sync without it.
func watchRealtime(ctx context.Context, a *app, conn *cloudConn, debouncer *msync.Debouncer) {
	feed := cloud.NewFeed(resolvedCfg.BackendURL, resolvedCfg.AnonKey, a.logger)

	for ctx.Err() == nil {
		changes, err := feed.Subscribe(ctx, conn.userID)
		if err != nil {
			a.logger.Warn("realtime feed unavailable, retrying", "error", err)

			if sleepErr := sleepCtx(ctx, msync.DefaultRetryDelay*5); sleepErr != nil {
				return
			}

			continue
		}

		for change := range changes {
			a.logger.Debug("remote change detected", "plan_id", change.PlanID, "type", change.Type)
			debouncer.Trigger()
		}
	}
}

// sleepCtx sleeps for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
