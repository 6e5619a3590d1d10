package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"ID", "MONTH"}, [][]string{
		{"plan-1", "2025-01"},
		{"plan-long-id", "2025-02"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	// Every row starts its second column at the same offset.
	monthCol := strings.Index(lines[0], "MONTH")
	assert.Equal(t, "2025-01", lines[1][monthCol:monthCol+7])
	assert.Equal(t, "2025-02", lines[2][monthCol:monthCol+7])
}

func TestMoneyFormatter(t *testing.T) {
	m := newMoneyFormatter("en-US", "USD")

	got := m.Format(1234.5)

	assert.Contains(t, got, "1,234.5")
	assert.Contains(t, got, "USD")
}

func TestMoneyFormatter_FallsBackOnBadInput(t *testing.T) {
	m := newMoneyFormatter("not-a-locale", "XXX?")

	// Must not panic and still render something money-shaped.
	got := m.Format(10)

	assert.Contains(t, got, "EUR")
}

func TestFormatPlanTime_Malformed(t *testing.T) {
	assert.Equal(t, "-", formatPlanTime("garbage"))
	assert.Equal(t, "-", formatPlanTime(""))
}
