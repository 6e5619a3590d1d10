package cloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeUnsignedJWT builds a JWT-shaped token with the given subject claim.
// The signature is garbage — UserIDFromToken never verifies it.
func makeUnsignedJWT(t *testing.T, sub string) string {
	t.Helper()

	enc := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)

		return base64.RawURLEncoding.EncodeToString(b)
	}

	header := enc(map[string]string{"alg": "HS256", "typ": "JWT"})
	claims := enc(map[string]any{"sub": sub, "exp": 9999999999})

	return header + "." + claims + ".c2ln"
}

func TestUserIDFromToken(t *testing.T) {
	tok := makeUnsignedJWT(t, "user-42")

	assert.Equal(t, "user-42", UserIDFromToken(tok))
}

func TestUserIDFromToken_Malformed(t *testing.T) {
	assert.Empty(t, UserIDFromToken("not-a-jwt"))
	assert.Empty(t, UserIDFromToken(""))
}

func TestAuth_SignIn(t *testing.T) {
	accessToken := makeUnsignedJWT(t, "user-42")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "grant_type=password", r.URL.RawQuery)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "me@example.com", creds["email"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"user":          map[string]string{"id": "user-42", "email": "me@example.com"},
		})
	}))
	defer srv.Close()

	auth := NewAuth(srv.URL, "anon-key", srv.Client(), testLogger())

	session, err := auth.SignIn(context.Background(), "me@example.com", "hunter2")

	require.NoError(t, err)
	assert.Equal(t, accessToken, session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	assert.Equal(t, "user-42", session.UserID)
	assert.Equal(t, "me@example.com", session.Email)
}

func TestAuth_SignIn_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	auth := NewAuth(srv.URL, "anon-key", srv.Client(), testLogger())

	_, err := auth.SignIn(context.Background(), "me@example.com", "wrong")

	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestAuth_Refresh_FallsBackToTokenSubject(t *testing.T) {
	accessToken := makeUnsignedJWT(t, "user-77")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "grant_type=refresh_token", r.URL.RawQuery)

		// No user object in the refresh response.
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"refresh_token": "refresh-2",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	auth := NewAuth(srv.URL, "anon-key", srv.Client(), testLogger())

	session, err := auth.Refresh(context.Background(), "refresh-1")

	require.NoError(t, err)
	assert.Equal(t, "user-77", session.UserID)
}
