package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FreshPlan(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	p := New("2025-01", now)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "2025-01", p.Month)
	assert.Empty(t, p.FixedIncomes)
	assert.Empty(t, p.FixedExpenses)
	assert.Empty(t, p.Envelopes)
	assert.Equal(t, "2025-01-15T10:30:00.000Z", p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Equal(t, ZeroResults(now), p.CalculatedResults)
}

func TestNew_UniqueIDs(t *testing.T) {
	now := time.Now()
	a := New("2025-01", now)
	b := New("2025-01", now)

	assert.NotEqual(t, a.ID, b.ID, "two plans for the same month must get distinct ids")
}

func TestCopy_DeepCopiesItems(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	src := New("2025-01", now.AddDate(0, -1, 0))
	src.FixedIncomes = []FixedItem{{ID: "i1", Name: "Salary", Amount: 3000}}
	src.Envelopes = []Envelope{{ID: "e1", Name: "Savings", Type: EnvelopePercentage, Percentage: 100}}

	dst := Copy(src, "2025-02", now)

	require.NotEqual(t, src.ID, dst.ID)
	assert.Equal(t, "2025-02", dst.Month)
	assert.Equal(t, src.FixedIncomes, dst.FixedIncomes)

	// Mutating the copy must not touch the source.
	dst.FixedIncomes[0].Amount = 1
	assert.Equal(t, float64(3000), src.FixedIncomes[0].Amount)
}

func TestTouch_BumpsUpdatedAt(t *testing.T) {
	p := New("2025-01", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	created := p.UpdatedAt

	p.Touch(time.Date(2025, 1, 2, 0, 0, 0, 5e6, time.UTC))

	assert.NotEqual(t, created, p.UpdatedAt)
	assert.Equal(t, "2025-01-02T00:00:00.005Z", p.UpdatedAt)
	assert.Equal(t, created, p.CreatedAt, "Touch must never move CreatedAt")
}

func TestParseTime_Malformed(t *testing.T) {
	assert.True(t, ParseTime("not-a-time").IsZero())
	assert.True(t, ParseTime("").IsZero())
}

func TestParseTime_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 30, 23, 59, 59, 123e6, time.UTC)

	got := ParseTime(Timestamp(now))

	assert.True(t, got.Equal(now))
}
