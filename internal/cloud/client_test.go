package cloud

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient builds a client against srv with retry sleeps disabled.
func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, "anon-key", srv.Client(), nil, testLogger())
	c.sleepFunc = func(context.Context, time.Duration) error { return nil }

	return c
}

func TestClient_Do_SetsAuthHeaders(t *testing.T) {
	var gotAPIKey, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv).Do(context.Background(), http.MethodGet, "/rest/v1/x", nil)

	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "anon-key", gotAPIKey)
	assert.Equal(t, "Bearer anon-key", gotAuth, "nil token source falls back to anon key")
}

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

func TestClient_Do_UsesTokenSource(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", srv.Client(), staticToken("user-jwt"), testLogger())

	resp, err := c.Do(context.Background(), http.MethodGet, "/rest/v1/x", nil)

	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer user-jwt", gotAuth)
}

func TestClient_Do_RetriesServerErrors(t *testing.T) {
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv).Do(context.Background(), http.MethodGet, "/rest/v1/x", nil)

	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 3, attempts)
}

func TestClient_Do_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusNotAcceptable, ErrNotFound},
		{http.StatusConflict, ErrDuplicate},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusBadRequest, ErrBadRequest},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		_, err := newTestClient(srv).Do(context.Background(), http.MethodGet, "/rest/v1/x", nil)

		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tt.status, apiErr.StatusCode)

		srv.Close()
	}
}

func TestClient_Do_ExhaustsRetries(t *testing.T) {
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Do(context.Background(), http.MethodGet, "/rest/v1/x", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, maxRetries+1, attempts)
}

func TestClient_Do_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv).Do(ctx, http.MethodGet, "/rest/v1/x", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
