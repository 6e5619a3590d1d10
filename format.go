package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/moneto/moneto-go/internal/plan"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// printJSON writes v to stdout as indented JSON for --json output.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	fmt.Println(string(data))

	return nil
}

// stderrIsTerminal reports whether stderr is an interactive terminal.
// Carriage-return progress lines are only written to a real terminal;
// redirected output gets clean line-oriented text instead.
func stderrIsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// progressf renders in-place progress on a terminal and falls back to
// plain lines when stderr is redirected.
func progressf(format string, args ...any) {
	if stderrIsTerminal() {
		statusf("\r"+format, args...)
		return
	}

	statusf(format+"\n", args...)
}

// progressDone terminates an in-place progress line.
func progressDone() {
	if stderrIsTerminal() {
		statusf("\n")
	}
}

// moneyFormatter renders amounts with the configured locale and currency.
type moneyFormatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// newMoneyFormatter builds a formatter from the locale/currency config.
// Unparseable values fall back to the defaults rather than failing a
// display-only concern.
func newMoneyFormatter(locale, currencyCode string) *moneyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.French
	}

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.EUR
	}

	return &moneyFormatter{printer: message.NewPrinter(tag), unit: unit}
}

// Format renders an amount like "1 234,56 EUR" (locale-dependent).
func (m *moneyFormatter) Format(amount float64) string {
	return m.printer.Sprintf("%v %v",
		number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)),
		m.unit)
}

// formatPlanTime renders a plan timestamp compactly for tables.
func formatPlanTime(ts string) string {
	t := plan.ParseTime(ts)
	if t.IsZero() {
		return "-"
	}

	now := time.Now()

	if t.Year() == now.Year() {
		return t.Local().Format("Jan _2 15:04")
	}

	return t.Local().Format("Jan _2  2006")
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
