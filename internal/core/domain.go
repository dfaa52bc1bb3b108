package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	MaxRecipientLength = 100
	MaxNotesLength     = 300
)

type (
	// Date is a calendar date; the time-of-day portion is always midnight UTC.
	Date struct {
		time.Time
	}

	// Payment is a single recorded payment. Receipt holds the bare filename
	// of an uploaded file in the receipt store, or empty when none is attached.
	Payment struct {
		ID        int64
		Amount    float64
		Recipient string
		Date      Date
		Notes     string
		Receipt   string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyRecipient   = errors.New("empty recipient")
	ErrRecipientTooLong = errors.New("recipient too long")
	ErrNotesTooLong     = errors.New("notes too long")
)

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ISO returns the date formatted as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// ParseAmount parses a decimal amount from form input.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.Recipient) == "" {
		return ErrEmptyRecipient
	}
	if len(p.Recipient) > MaxRecipientLength {
		return ErrRecipientTooLong
	}
	if len(p.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	if p.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Filter returns the payments matching a free-text query. The query is
// trimmed and matched case-insensitively as a substring of the recipient,
// the notes, or the ISO date string. An empty query matches everything.
func Filter(payments []Payment, query string) []Payment {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return payments
	}
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		if strings.Contains(strings.ToLower(p.Recipient), q) ||
			strings.Contains(strings.ToLower(p.Notes), q) ||
			strings.Contains(p.Date.ISO(), q) {
			out = append(out, p)
		}
	}
	return out
}

// Total sums the amounts of the given payments.
func Total(payments []Payment) float64 {
	var sum float64
	for _, p := range payments {
		sum += p.Amount
	}
	return sum
}
