package plan

import (
	"math"
	"time"
)

const fullPercentage = 100.0

// round2 rounds a monetary value to cents. Plans carry currency amounts
// as float64; rounding at calculation boundaries keeps derived totals
// stable across repeated recalculation.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Calculate recomputes the derived snapshot from the plan's raw items and
// writes it back, returning the updated plan. Percentage-envelope amounts
// are re-derived from the available amount; fixed-envelope amounts are
// taken as-is. The raw items are never modified.
func Calculate(p Plan, now time.Time) Plan {
	var totalIncome, totalExpenses float64

	for _, item := range p.FixedIncomes {
		totalIncome += item.Amount
	}

	for _, item := range p.FixedExpenses {
		totalExpenses += item.Amount
	}

	available := totalIncome - totalExpenses

	var totalEnvelopes float64

	envelopes := make([]Envelope, len(p.Envelopes))
	for i, env := range p.Envelopes {
		if env.Type == EnvelopePercentage {
			env.Amount = round2(env.Percentage / fullPercentage * available)
		}

		envelopes[i] = env
		totalEnvelopes += env.Amount
	}

	p.Envelopes = envelopes
	p.CalculatedResults = CalculatedResults{
		TotalIncome:     round2(totalIncome),
		TotalExpenses:   round2(totalExpenses),
		AvailableAmount: round2(available),
		TotalEnvelopes:  round2(totalEnvelopes),
		FinalBalance:    round2(available - totalEnvelopes),
		LastCalculated:  Timestamp(now),
	}

	return p
}

// NormalizeEnvelopePercentages scales the percentage-type envelopes so
// their percentages sum to exactly 100. Fixed envelopes are untouched.
// If all percentage envelopes are at zero, the full 100 is spread evenly.
// A slice with no percentage envelopes is returned unchanged.
func NormalizeEnvelopePercentages(envelopes []Envelope) []Envelope {
	var sum float64

	count := 0

	for _, env := range envelopes {
		if env.Type == EnvelopePercentage {
			sum += env.Percentage
			count++
		}
	}

	if count == 0 {
		return envelopes
	}

	out := make([]Envelope, len(envelopes))
	for i, env := range envelopes {
		if env.Type == EnvelopePercentage {
			if sum == 0 {
				env.Percentage = round2(fullPercentage / float64(count))
			} else {
				env.Percentage = round2(env.Percentage / sum * fullPercentage)
			}
		}

		out[i] = env
	}

	return out
}
