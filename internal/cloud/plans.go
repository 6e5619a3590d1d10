package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// plansPath is the data API path for the plans table.
const plansPath = "/rest/v1/monthly_plans"

// Row is the wire/storage representation of a plan: one row per
// (user_id, plan_id) pair. ID is the storage-internal surrogate key;
// Data is the opaque JSON payload (month, incomes, expenses, envelopes).
type Row struct {
	ID        string          `json:"id,omitempty"`
	UserID    string          `json:"user_id"`
	PlanID    string          `json:"plan_id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// RowUpdate is the partial update applied to an existing row. The
// created_at column is deliberately absent: it is never re-stamped.
type RowUpdate struct {
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt string          `json:"updated_at"`
}

// PlanMeta is the lightweight projection used for sync status refresh.
type PlanMeta struct {
	PlanID    string `json:"plan_id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

// Plans is the remote plan repository: CRUD over the plans table.
type Plans struct {
	client *Client
	logger *slog.Logger
}

// NewPlans creates a remote plan repository on top of client.
func NewPlans(client *Client, logger *slog.Logger) *Plans {
	if logger == nil {
		logger = slog.Default()
	}

	return &Plans{client: client, logger: logger}
}

// FindByUserAndPlan returns the row for (userID, planID), or an error
// wrapping ErrNotFound when no such row exists. Not-found is an expected
// outcome, not a failure: callers branch on it for insert-vs-update.
func (p *Plans) FindByUserAndPlan(ctx context.Context, userID, planID string) (*Row, error) {
	path := plansPath + "?user_id=eq." + url.QueryEscape(userID) +
		"&plan_id=eq." + url.QueryEscape(planID) + "&limit=1"

	var rows []Row
	if err := p.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("cloud: plan %s for user %s: %w", planID, userID, ErrNotFound)
	}

	return &rows[0], nil
}

// Insert creates a new row. A unique-constraint violation on
// (user_id, plan_id) surfaces as an error wrapping ErrDuplicate.
func (p *Plans) Insert(ctx context.Context, row Row) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("cloud: encoding plan row: %w", err)
	}

	resp, err := p.client.Do(ctx, http.MethodPost, plansPath, body,
		"Prefer", "return=minimal")
	if err != nil {
		return fmt.Errorf("cloud: inserting plan %s: %w", row.PlanID, err)
	}
	defer resp.Body.Close()

	p.logger.Debug("plan row inserted", "plan_id", row.PlanID)

	return nil
}

// Update overwrites name, data, and updated_at of the row with the given
// surrogate id. created_at is preserved.
func (p *Plans) Update(ctx context.Context, rowID string, upd RowUpdate) error {
	body, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("cloud: encoding plan update: %w", err)
	}

	path := plansPath + "?id=eq." + url.QueryEscape(rowID)

	resp, err := p.client.Do(ctx, http.MethodPatch, path, body,
		"Prefer", "return=minimal")
	if err != nil {
		return fmt.Errorf("cloud: updating plan row %s: %w", rowID, err)
	}
	defer resp.Body.Close()

	p.logger.Debug("plan row updated", "row_id", rowID)

	return nil
}

// DeleteByUserAndPlan removes the row matching (userID, planID).
// Deleting a non-existent row succeeds: the end state is the same.
func (p *Plans) DeleteByUserAndPlan(ctx context.Context, userID, planID string) error {
	path := plansPath + "?user_id=eq." + url.QueryEscape(userID) +
		"&plan_id=eq." + url.QueryEscape(planID)

	resp, err := p.client.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("cloud: deleting plan %s: %w", planID, err)
	}
	defer resp.Body.Close()

	p.logger.Debug("plan row deleted", "plan_id", planID)

	return nil
}

// ListByUser returns every row for the user, most recently created first.
func (p *Plans) ListByUser(ctx context.Context, userID string) ([]Row, error) {
	path := plansPath + "?user_id=eq." + url.QueryEscape(userID) +
		"&order=created_at.desc"

	var rows []Row
	if err := p.getJSON(ctx, path, &rows); err != nil {
		return nil, fmt.Errorf("cloud: listing plans for user %s: %w", userID, err)
	}

	return rows, nil
}

// ListMetadata returns the (plan_id, updated_at) projection for every row
// belonging to the user. Used for cheap sync status comparison without
// transferring plan payloads.
func (p *Plans) ListMetadata(ctx context.Context, userID string) ([]PlanMeta, error) {
	path := plansPath + "?user_id=eq." + url.QueryEscape(userID) +
		"&select=plan_id,name,updated_at&order=created_at.desc"

	var metas []PlanMeta
	if err := p.getJSON(ctx, path, &metas); err != nil {
		return nil, fmt.Errorf("cloud: listing plan metadata for user %s: %w", userID, err)
	}

	return metas, nil
}

// getJSON executes a GET and decodes the JSON response into out.
func (p *Plans) getJSON(ctx context.Context, path string, out any) error {
	resp, err := p.client.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cloud: reading response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("cloud: decoding response: %w", err)
	}

	return nil
}
