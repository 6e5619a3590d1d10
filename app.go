package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/moneto/moneto-go/internal/cloud"
	"github.com/moneto/moneto-go/internal/localstore"
	msync "github.com/moneto/moneto-go/internal/sync"
)

// dbFileName is the plan database inside the state directory.
const dbFileName = "moneto.db"

// app bundles the local resources every command needs: config, logger,
// and the plan store. Cloud resources are attached on demand because
// local-only budgeting must work without them.
type app struct {
	logger *slog.Logger
	store  *localstore.Store
	money  *moneyFormatter
}

// openApp opens the local store and wires the logger. Callers must Close.
func openApp() (*app, error) {
	logger := buildLogger()

	if err := os.MkdirAll(resolvedCfg.StateDir, stateDirMode); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	store, err := localstore.Open(filepath.Join(resolvedCfg.StateDir, dbFileName), logger)
	if err != nil {
		return nil, err
	}

	return &app{
		logger: logger,
		store:  store,
		money:  newMoneyFormatter(resolvedCfg.Locale, resolvedCfg.Currency),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// cloudConn is an authenticated connection to the sync backend.
type cloudConn struct {
	orch    *msync.Orchestrator
	userID  string
	session *cloud.Session
}

// connectCloud builds an authenticated orchestrator, refreshing the
// session transparently when the access token has expired. Returns
// msync.ErrUnavailable when no backend is configured and errNotLoggedIn
// when there is no session.
func (a *app) connectCloud(ctx context.Context) (*cloudConn, error) {
	if !resolvedCfg.CloudConfigured() {
		return nil, msync.ErrUnavailable
	}

	session, err := loadSession(resolvedCfg.StateDir)
	if err != nil {
		return nil, err
	}

	auth := cloud.NewAuth(resolvedCfg.BackendURL, resolvedCfg.AnonKey, defaultHTTPClient(), a.logger)

	if session.Expired(time.Now()) {
		a.logger.Debug("access token expired, refreshing")

		session, err = auth.Refresh(ctx, session.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("refreshing session (try 'moneto login' again): %w", err)
		}

		if err := saveSession(resolvedCfg.StateDir, session); err != nil {
			return nil, err
		}
	}

	userID := session.UserID
	if userID == "" {
		userID = cloud.UserIDFromToken(session.AccessToken)
	}

	if userID == "" {
		return nil, errors.New("session carries no user identity — run 'moneto login' again")
	}

	client := cloud.NewClient(resolvedCfg.BackendURL, resolvedCfg.AnonKey,
		defaultHTTPClient(), sessionToken{session: session}, a.logger)
	repo := cloud.NewPlans(client, a.logger)

	return &cloudConn{
		orch:    msync.NewOrchestrator(repo, msync.NewDiagnostics(a.logger)),
		userID:  userID,
		session: session,
	}, nil
}

// tryConnectCloud is the best-effort variant used by local-first
// commands: an unconfigured backend or missing login yields nil, not an
// error, and the command proceeds offline.
func (a *app) tryConnectCloud(ctx context.Context) *cloudConn {
	conn, err := a.connectCloud(ctx)
	if err != nil {
		if !errors.Is(err, msync.ErrUnavailable) && !errors.Is(err, errNotLoggedIn) {
			a.logger.Debug("cloud unavailable", "error", err)
		}

		return nil
	}

	return conn
}
