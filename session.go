package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moneto/moneto-go/internal/cloud"
)

// sessionFileName is the session file inside the state directory.
const sessionFileName = "session.json"

// errNotLoggedIn means no session file exists.
var errNotLoggedIn = errors.New("not logged in — run 'moneto login' first")

// File permissions for the session file and its parent directory.
// The file holds bearer tokens: owner-only access.
const (
	sessionFileMode = 0o600
	stateDirMode    = 0o700
)

func sessionPath(stateDir string) string {
	return filepath.Join(stateDir, sessionFileName)
}

// loadSession reads the persisted session, if any.
func loadSession(stateDir string) (*cloud.Session, error) {
	data, err := os.ReadFile(sessionPath(stateDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNotLoggedIn
	}

	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var s cloud.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}

	return &s, nil
}

// saveSession persists the session with owner-only permissions, writing
// to a temp file first so a crash never leaves a torn session behind.
func saveSession(stateDir string, s *cloud.Session) error {
	if err := os.MkdirAll(stateDir, stateDirMode); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	path := sessionPath(stateDir)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, sessionFileMode); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}

	return nil
}

// clearSession removes the session file. A missing file is success.
func clearSession(stateDir string) error {
	err := os.Remove(sessionPath(stateDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}

	return nil
}

// sessionToken adapts a session to the cloud token source interface.
type sessionToken struct {
	session *cloud.Session
}

func (s sessionToken) Token() (string, error) {
	if s.session == nil || s.session.AccessToken == "" {
		return "", errNotLoggedIn
	}

	return s.session.AccessToken, nil
}
