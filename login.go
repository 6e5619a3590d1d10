package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moneto/moneto-go/internal/cloud"
	msync "github.com/moneto/moneto-go/internal/sync"
)

var flagSignup bool

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in to the sync backend",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}

	cmd.Flags().BoolVar(&flagSignup, "signup", false, "create a new account instead of signing in")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and discard the saved session",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE:  runWhoami,
	}
}

// readPassword takes the password from MONETO_PASSWORD when set (for
// scripting), otherwise prompts on stdin.
func readPassword() (string, error) {
	if pw := os.Getenv("MONETO_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func runLogin(_ *cobra.Command, args []string) error {
	if !resolvedCfg.CloudConfigured() {
		return errors.New("no sync backend configured — set backend_url and anon_key in the config file")
	}

	logger := buildLogger()
	ctx := context.Background()
	email := args[0]

	password, err := readPassword()
	if err != nil {
		return err
	}

	auth := cloud.NewAuth(resolvedCfg.BackendURL, resolvedCfg.AnonKey, defaultHTTPClient(), logger)

	var session *cloud.Session

	if flagSignup {
		session, err = auth.SignUp(ctx, email, password)
	} else {
		session, err = auth.SignIn(ctx, email, password)
	}

	if err != nil {
		if errors.Is(err, cloud.ErrBadRequest) || errors.Is(err, cloud.ErrUnauthorized) {
			return errors.New("sign-in failed: check your email and password")
		}

		return err
	}

	if err := saveSession(resolvedCfg.StateDir, session); err != nil {
		return err
	}

	logger.Info("login successful", "email", email)
	statusf("Signed in as %s.\n", email)

	offerMigrationHint(ctx, logger)

	return nil
}

// offerMigrationHint checks whether existing local plans should be
// offered for first-sync migration and prints a hint. Best effort: any
// failure here never fails the login.
func offerMigrationHint(ctx context.Context, logger *slog.Logger) {
	a, err := openApp()
	if err != nil {
		logger.Debug("skipping migration check", "error", err)
		return
	}
	defer a.Close()

	plans, err := a.store.GetAll(ctx)
	if err != nil {
		logger.Debug("skipping migration check", "error", err)
		return
	}

	st, err := a.store.MigrationStatus(ctx)
	if err != nil {
		logger.Debug("skipping migration check", "error", err)
		return
	}

	if msync.ShouldOfferMigration(st, len(plans), true, time.Now()) {
		statusf("You have %d local plans not yet in the cloud. Run 'moneto migrate' to upload them.\n", len(plans))
	}
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	// Best-effort server-side revocation; the local session goes away
	// regardless.
	if session, err := loadSession(resolvedCfg.StateDir); err == nil {
		auth := cloud.NewAuth(resolvedCfg.BackendURL, resolvedCfg.AnonKey, defaultHTTPClient(), logger)
		if err := auth.SignOut(context.Background(), session.AccessToken); err != nil {
			logger.Debug("server-side sign-out failed", "error", err)
		}
	}

	if err := clearSession(resolvedCfg.StateDir); err != nil {
		return err
	}

	statusf("Signed out.\n")

	return nil
}

func runWhoami(_ *cobra.Command, _ []string) error {
	session, err := loadSession(resolvedCfg.StateDir)
	if err != nil {
		return err
	}

	userID := session.UserID
	if userID == "" {
		userID = cloud.UserIDFromToken(session.AccessToken)
	}

	if flagJSON {
		return printJSON(map[string]string{"email": session.Email, "user_id": userID})
	}

	fmt.Printf("%s (%s)\n", session.Email, userID)

	return nil
}
