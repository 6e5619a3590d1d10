// Package plan defines the monthly budgeting plan aggregate — fixed
// incomes, fixed expenses, and allocation envelopes — and the calculation
// engine that derives totals from the raw items. The package is wire-free:
// it knows nothing about storage or the cloud backend.
package plan

import (
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the timestamp format used on every plan timestamp:
// RFC 3339 with millisecond precision, always UTC. Millisecond resolution
// matters because UpdatedAt is the sync version marker — last-write-wins
// resolution compares these values directly.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in the canonical plan timestamp layout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a plan timestamp. Returns the zero time on failure so
// that a malformed timestamp always loses a last-write-wins comparison.
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}

	return t
}

// EnvelopeType distinguishes percentage-based from fixed-amount envelopes.
type EnvelopeType string

const (
	// EnvelopePercentage allocates a percentage of the available amount.
	EnvelopePercentage EnvelopeType = "percentage"
	// EnvelopeFixed allocates a fixed monetary amount.
	EnvelopeFixed EnvelopeType = "fixed"
)

// FixedItem is a named monthly income or expense line.
type FixedItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Envelope is a named budget allocation. For percentage envelopes Amount
// is derived (Percentage × available funds); for fixed envelopes Amount
// is authoritative and Percentage is ignored.
type Envelope struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       EnvelopeType `json:"type"`
	Percentage float64      `json:"percentage"`
	Amount     float64      `json:"amount"`
}

// CalculatedResults is the derived snapshot recomputed from a plan's raw
// items. It is local-only: the sync layer never trusts a remote copy and
// always resets it to a zeroed placeholder on download.
type CalculatedResults struct {
	TotalIncome     float64 `json:"totalIncome"`
	TotalExpenses   float64 `json:"totalExpenses"`
	AvailableAmount float64 `json:"availableAmount"`
	TotalEnvelopes  float64 `json:"totalEnvelopes"`
	FinalBalance    float64 `json:"finalBalance"`
	LastCalculated  string  `json:"lastCalculated"`
}

// Plan is a monthly budgeting aggregate and the unit of synchronization.
// ID is assigned at creation and never reassigned. UpdatedAt must be
// bumped on every meaningful edit — conflict resolution depends on it.
type Plan struct {
	ID                string            `json:"id"`
	Month             string            `json:"month"`
	FixedIncomes      []FixedItem       `json:"fixedIncomes"`
	FixedExpenses     []FixedItem       `json:"fixedExpenses"`
	Envelopes         []Envelope        `json:"envelopes"`
	CalculatedResults CalculatedResults `json:"calculatedResults"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedAt         string            `json:"updatedAt"`
}

// ZeroResults returns the zeroed CalculatedResults placeholder used for
// every plan that has not been recalculated yet, with LastCalculated
// stamped from now.
func ZeroResults(now time.Time) CalculatedResults {
	return CalculatedResults{LastCalculated: Timestamp(now)}
}

// New creates an empty plan for the given month period key (YYYY-MM).
func New(month string, now time.Time) Plan {
	ts := Timestamp(now)

	return Plan{
		ID:                "plan-" + uuid.NewString(),
		Month:             month,
		FixedIncomes:      []FixedItem{},
		FixedExpenses:     []FixedItem{},
		Envelopes:         []Envelope{},
		CalculatedResults: ZeroResults(now),
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
}

// NewItem creates a fixed income/expense line with a fresh id.
func NewItem(name string, amount float64) FixedItem {
	return FixedItem{ID: "item-" + uuid.NewString(), Name: name, Amount: amount}
}

// NewEnvelope creates an envelope with a fresh id. For fixed envelopes
// pass the amount; for percentage envelopes pass the percentage.
func NewEnvelope(name string, typ EnvelopeType, percentage, amount float64) Envelope {
	return Envelope{
		ID:         "env-" + uuid.NewString(),
		Name:       name,
		Type:       typ,
		Percentage: percentage,
		Amount:     amount,
	}
}

// Copy duplicates src into a new plan for newMonth. The copy gets a fresh
// id and fresh timestamps; items and envelopes are deep-copied so edits to
// the copy never alias the source.
func Copy(src Plan, newMonth string, now time.Time) Plan {
	p := New(newMonth, now)
	p.FixedIncomes = append([]FixedItem{}, src.FixedIncomes...)
	p.FixedExpenses = append([]FixedItem{}, src.FixedExpenses...)
	p.Envelopes = append([]Envelope{}, src.Envelopes...)

	return p
}

// Touch bumps UpdatedAt. Every local mutation must call this — it is the
// sync version marker.
func (p *Plan) Touch(now time.Time) {
	p.UpdatedAt = Timestamp(now)
}
