// Package export streams the payment table as CSV.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"paytrack/internal/core"
)

// Filename is the suggested download name for the export.
const Filename = "payments.csv"

// Header is the first line of every export.
const Header = "Amount,Recipient,Date,Notes,Receipt"

// RowSource yields payments one at a time in list order.
type RowSource interface {
	ForEach(ctx context.Context, fn func(core.Payment) error) error
}

// WriteCSV writes the header and one row per payment to w, producing each
// row on demand rather than materializing the table. Commas inside fields
// are replaced with spaces; this is deliberately not full CSV quoting and
// is a documented limitation of the format.
func WriteCSV(ctx context.Context, w io.Writer, src RowSource) error {
	if _, err := io.WriteString(w, Header+"\n"); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	err := src.ForEach(ctx, func(p core.Payment) error {
		if _, err := io.WriteString(w, Row(p)+"\n"); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("stream payments: %w", err)
	}
	return nil
}

// Row formats a single payment as a CSV line.
func Row(p core.Payment) string {
	fields := []string{
		fmt.Sprintf("%.2f", p.Amount),
		stripCommas(p.Recipient),
		p.Date.ISO(),
		stripCommas(p.Notes),
		p.Receipt,
	}
	return strings.Join(fields, ",")
}

func stripCommas(s string) string {
	return strings.ReplaceAll(s, ",", " ")
}
