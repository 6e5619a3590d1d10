package main

import (
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneto/moneto-go/internal/cloud"
)

func TestSession_SaveLoadClear(t *testing.T) {
	dir := t.TempDir()

	s := &cloud.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
		UserID:       "user-1",
		Email:        "me@example.com",
	}

	require.NoError(t, saveSession(dir, s))

	got, err := loadSession(dir)
	require.NoError(t, err)
	assert.Equal(t, s.AccessToken, got.AccessToken)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, s.Email, got.Email)

	require.NoError(t, clearSession(dir))

	_, err = loadSession(dir)
	assert.ErrorIs(t, err, errNotLoggedIn)

	// Clearing twice is fine.
	assert.NoError(t, clearSession(dir))
}

func TestSession_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}

	dir := t.TempDir()
	require.NoError(t, saveSession(dir, &cloud.Session{AccessToken: "tok"}))

	info, err := os.Stat(sessionPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(sessionFileMode), info.Mode().Perm(),
		"token file must be owner-only")
}

func TestSessionToken(t *testing.T) {
	tok, err := sessionToken{session: &cloud.Session{AccessToken: "tok"}}.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	_, err = sessionToken{}.Token()
	assert.ErrorIs(t, err, errNotLoggedIn)
}
