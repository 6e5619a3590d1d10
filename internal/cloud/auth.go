package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Auth endpoints beneath the project root.
const (
	authTokenPath  = "/auth/v1/token"
	authSignupPath = "/auth/v1/signup"
	authLogoutPath = "/auth/v1/logout"
)

// Session holds the tokens and identity returned by the auth endpoint.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

// Expired reports whether the access token has passed its expiry,
// with a minute of slack so requests in flight do not race the deadline.
func (s *Session) Expired(now time.Time) bool {
	return now.Add(time.Minute).After(s.ExpiresAt)
}

// Auth is a client for the GoTrue-style auth endpoint.
type Auth struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAuth creates an auth client for the given project root URL.
func NewAuth(baseURL, anonKey string, httpClient *http.Client, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Auth{baseURL: baseURL, anonKey: anonKey, httpClient: httpClient, logger: logger}
}

// tokenResponse is the wire shape of a successful token grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignIn exchanges email/password credentials for a session.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]string{"email": email, "password": password}

	return a.grant(ctx, authTokenPath+"?grant_type=password", payload)
}

// SignUp registers a new account and returns its first session.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]string{"email": email, "password": password}

	return a.grant(ctx, authSignupPath, payload)
}

// Refresh exchanges a refresh token for a fresh session.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}

	return a.grant(ctx, authTokenPath+"?grant_type=refresh_token", payload)
}

// SignOut revokes the session server-side. A failure here is non-fatal
// for the caller: the local session file is discarded regardless.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+authLogoutPath, nil)
	if err != nil {
		return fmt.Errorf("cloud: creating logout request: %w", err)
	}

	req.Header.Set("apikey", a.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: signing out: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Message: "logout failed", Err: classifyStatus(resp.StatusCode)}
	}

	return nil
}

// grant posts credentials to an auth endpoint and builds a Session.
func (a *Auth) grant(ctx context.Context, path string, payload map[string]string) (*Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cloud: encoding auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cloud: creating auth request: %w", err)
	}

	req.Header.Set("apikey", a.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloud: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cloud: reading auth response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var tok tokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return nil, fmt.Errorf("cloud: decoding auth response: %w", err)
	}

	session := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
		UserID:       tok.User.ID,
		Email:        tok.User.Email,
	}

	// Some grant responses omit the user object; fall back to the token's
	// subject claim, which carries the user id.
	if session.UserID == "" {
		session.UserID = UserIDFromToken(tok.AccessToken)
	}

	a.logger.Debug("session established", "user_id", session.UserID)

	return session, nil
}

// UserIDFromToken extracts the subject (user id) claim from an access
// token without verifying the signature — verification is the server's
// job; the client only needs the identity for request scoping.
func UserIDFromToken(accessToken string) string {
	claims := jwt.MapClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return ""
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}

	return sub
}
