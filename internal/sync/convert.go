package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/moneto/moneto-go/internal/cloud"
	"github.com/moneto/moneto-go/internal/plan"
)

// rowPayload is the JSON document stored in a row's data column: the
// plan's raw items only. Derived results never travel over the wire.
type rowPayload struct {
	Month         string           `json:"month"`
	FixedIncomes  []plan.FixedItem `json:"fixedIncomes"`
	FixedExpenses []plan.FixedItem `json:"fixedExpenses"`
	Envelopes     []plan.Envelope  `json:"envelopes"`
}

// PlanName derives the display name stored alongside a plan row.
func PlanName(month string) string {
	return "Plan " + month
}

// PlanToRow converts a local plan into its wire row for userID. The
// plan's own timestamps are written verbatim so that re-uploading an
// unchanged plan produces an identical row.
func PlanToRow(p plan.Plan, userID string) (cloud.Row, error) {
	payload := rowPayload{
		Month:         p.Month,
		FixedIncomes:  p.FixedIncomes,
		FixedExpenses: p.FixedExpenses,
		Envelopes:     p.Envelopes,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return cloud.Row{}, fmt.Errorf("sync: encoding plan %s payload: %w", p.ID, err)
	}

	return cloud.Row{
		UserID:    userID,
		PlanID:    p.ID,
		Name:      PlanName(p.Month),
		Data:      data,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// RowToPlan converts a wire row back into a local plan. The derived
// results are reset to a zeroed placeholder stamped from now — a remote
// snapshot is never trusted and the caller recalculates locally.
func RowToPlan(row cloud.Row, now time.Time) (plan.Plan, error) {
	var payload rowPayload
	if err := json.Unmarshal(row.Data, &payload); err != nil {
		return plan.Plan{}, fmt.Errorf("sync: decoding plan %s payload: %w", row.PlanID, err)
	}

	// Normalize absent collections to empty slices so downstream code
	// can range and append without nil checks.
	if payload.FixedIncomes == nil {
		payload.FixedIncomes = []plan.FixedItem{}
	}

	if payload.FixedExpenses == nil {
		payload.FixedExpenses = []plan.FixedItem{}
	}

	if payload.Envelopes == nil {
		payload.Envelopes = []plan.Envelope{}
	}

	return plan.Plan{
		ID:                row.PlanID,
		Month:             payload.Month,
		FixedIncomes:      payload.FixedIncomes,
		FixedExpenses:     payload.FixedExpenses,
		Envelopes:         payload.Envelopes,
		CalculatedResults: plan.ZeroResults(now),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}
