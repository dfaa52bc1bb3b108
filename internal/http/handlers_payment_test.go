package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
)

func seedPayment(t *testing.T, env *testEnv, amount float64, recipient, date, notes, receipt string) int64 {
	t.Helper()
	d, err := core.ParseDate(date)
	require.NoError(t, err)
	id, err := env.store.Create(context.Background(), core.Payment{
		Amount: amount, Recipient: recipient, Date: d, Notes: notes, Receipt: receipt,
	})
	require.NoError(t, err)
	return id
}

func postMultipart(t *testing.T, env *testEnv, target string, fields map[string]string, fileName, fileContent string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, fileName, fileContent)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	return env.do(t, env.authed(t, req))
}

func TestAddPayment(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	rr := postMultipart(t, env, "/add", map[string]string{
		"amount":    "12.50",
		"recipient": "Acme Corp",
		"date":      "2024-06-01",
		"notes":     "office supplies",
	}, "", "")

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 12.5, list[0].Amount)
	assert.Equal(t, "Acme Corp", list[0].Recipient)
	assert.Equal(t, "2024-06-01", list[0].Date.ISO())
	assert.Equal(t, "office supplies", list[0].Notes)
	assert.Empty(t, list[0].Receipt)
}

func TestAddPaymentValidation(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	tests := []struct {
		name    string
		fields  map[string]string
		message string
	}{
		{
			name:    "bad amount",
			fields:  map[string]string{"amount": "abc", "recipient": "Acme", "date": "2024-06-01"},
			message: "Amount must be a number",
		},
		{
			name:    "bad date",
			fields:  map[string]string{"amount": "1", "recipient": "Acme", "date": "01/06/2024"},
			message: "Date must be in YYYY-MM-DD format",
		},
		{
			name:    "missing recipient",
			fields:  map[string]string{"amount": "1", "recipient": "  ", "date": "2024-06-01"},
			message: "Recipient is required",
		},
		{
			name: "recipient too long",
			fields: map[string]string{
				"amount": "1", "recipient": strings.Repeat("x", core.MaxRecipientLength+1), "date": "2024-06-01",
			},
			message: "Recipient is too long",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postMultipart(t, env, "/add", tt.fields, "", "")
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.message)
		})
	}

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "invalid submissions must not be persisted")
}

func TestAddPaymentStoresReceipt(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	rr := postMultipart(t, env, "/add", map[string]string{
		"amount": "9.99", "recipient": "Acme", "date": "2024-06-01",
	}, "receipt.PDF", "%PDF-1.4")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotEmpty(t, list[0].Receipt)
	assert.True(t, strings.HasSuffix(list[0].Receipt, "_receipt.PDF"), "got %q", list[0].Receipt)

	data, err := os.ReadFile(filepath.Join(env.uploads, list[0].Receipt))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestAddPaymentRejectedReceiptStillSaves(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	rr := postMultipart(t, env, "/add", map[string]string{
		"amount": "3", "recipient": "Acme", "date": "2024-06-01",
	}, "malware.exe", "MZ")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Receipt, "rejected upload must leave the payment without a receipt")

	entries, err := os.ReadDir(env.uploads)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected upload must never hit disk")
}

func TestAddPaymentOversizedUpload(t *testing.T) {
	env := newTestEnv(t, 256)

	rr := postMultipart(t, env, "/add", map[string]string{
		"amount": "1", "recipient": "Acme", "date": "2024-06-01",
	}, "big.png", strings.Repeat("x", 4096))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIndexListsAndFilters(t *testing.T) {
	env := newTestEnv(t, 5<<20)
	seedPayment(t, env, 10, "Acme Corp", "2024-01-01", "supplies", "")
	seedPayment(t, env, 20, "Globex", "2024-01-03", "lunch", "")
	seedPayment(t, env, 30, "Initech", "2024-01-02", "", "")

	t.Run("unfiltered, newest first", func(t *testing.T) {
		rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodGet, "/", nil)))
		require.Equal(t, http.StatusOK, rr.Code)

		body := rr.Body.String()
		globex := strings.Index(body, "Globex")
		initech := strings.Index(body, "Initech")
		acme := strings.Index(body, "Acme Corp")
		require.True(t, globex >= 0 && initech >= 0 && acme >= 0)
		assert.Less(t, globex, initech)
		assert.Less(t, initech, acme)
		assert.Contains(t, body, "60.00")
	})

	t.Run("query matches recipient case-insensitively", func(t *testing.T) {
		rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodGet, "/?q=ACME", nil)))
		require.Equal(t, http.StatusOK, rr.Code)

		body := rr.Body.String()
		assert.Contains(t, body, "Acme Corp")
		assert.NotContains(t, body, "Globex")
		assert.Contains(t, body, "10.00")
	})

	t.Run("query with no matches shows zero total", func(t *testing.T) {
		rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodGet, "/?q=zzz", nil)))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "0.00")
		assert.NotContains(t, rr.Body.String(), "Acme Corp")
	})
}

func TestEditPayment(t *testing.T) {
	env := newTestEnv(t, 5<<20)
	id := seedPayment(t, env, 10, "Acme", "2024-01-01", "old notes", "")

	t.Run("form shows current values", func(t *testing.T) {
		rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/edit/%d", id), nil)))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Acme")
		assert.Contains(t, rr.Body.String(), "2024-01-01")
	})

	t.Run("submit updates all fields", func(t *testing.T) {
		rr := postMultipart(t, env, fmt.Sprintf("/edit/%d", id), map[string]string{
			"amount": "99.95", "recipient": "Globex", "date": "2024-02-02", "notes": "new notes",
		}, "", "")
		require.Equal(t, http.StatusSeeOther, rr.Code)

		p, err := env.store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 99.95, p.Amount)
		assert.Equal(t, "Globex", p.Recipient)
		assert.Equal(t, "2024-02-02", p.Date.ISO())
		assert.Equal(t, "new notes", p.Notes)
	})

	t.Run("invalid submit re-renders with 422 and keeps stored row", func(t *testing.T) {
		rr := postMultipart(t, env, fmt.Sprintf("/edit/%d", id), map[string]string{
			"amount": "nope", "recipient": "Globex", "date": "2024-02-02",
		}, "", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Amount must be a number")

		p, err := env.store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 99.95, p.Amount)
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodGet, "/edit/999", nil)))
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = postMultipart(t, env, "/edit/999", map[string]string{
			"amount": "1", "recipient": "X", "date": "2024-01-01",
		}, "", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestEditPaymentReplacesReceipt(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	rr := postMultipart(t, env, "/add", map[string]string{
		"amount": "5", "recipient": "Acme", "date": "2024-01-01",
	}, "first.png", "old")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	oldName := list[0].Receipt
	require.NotEmpty(t, oldName)

	rr = postMultipart(t, env, fmt.Sprintf("/edit/%d", list[0].ID), map[string]string{
		"amount": "5", "recipient": "Acme", "date": "2024-01-01",
	}, "second.jpg", "new")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	p, err := env.store.Get(context.Background(), list[0].ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Receipt, "_second.jpg"), "got %q", p.Receipt)

	_, err = os.Stat(filepath.Join(env.uploads, oldName))
	assert.True(t, os.IsNotExist(err), "old receipt file must be removed")
	_, err = os.Stat(filepath.Join(env.uploads, p.Receipt))
	assert.NoError(t, err)
}

func TestEditPaymentRejectedReplacementKeepsDanglingReference(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	rr := postMultipart(t, env, "/add", map[string]string{
		"amount": "5", "recipient": "Acme", "date": "2024-01-01",
	}, "orig.png", "old")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	oldName := list[0].Receipt
	require.NotEmpty(t, oldName)

	// Disallowed replacement: old file is removed first, then the new one
	// rejected, so the stored reference keeps pointing at the removed file.
	rr = postMultipart(t, env, fmt.Sprintf("/edit/%d", list[0].ID), map[string]string{
		"amount": "7.25", "recipient": "Globex", "date": "2024-02-02",
	}, "evil.exe", "MZ")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	p, err := env.store.Get(context.Background(), list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 7.25, p.Amount)
	assert.Equal(t, "Globex", p.Recipient)
	assert.Equal(t, "2024-02-02", p.Date.ISO())
	assert.Equal(t, oldName, p.Receipt)

	_, err = os.Stat(filepath.Join(env.uploads, oldName))
	assert.True(t, os.IsNotExist(err), "old receipt file is removed before the rejection")

	entries, err := os.ReadDir(env.uploads)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected replacement must never hit disk")
}

func TestMissingReceiptFileNeverFailsEditOrDelete(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	t.Run("delete with receipt gone from disk", func(t *testing.T) {
		id := seedPayment(t, env, 5, "Acme", "2024-01-01", "", "gone.pdf")

		rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/delete/%d", id), nil)))
		assert.Equal(t, http.StatusSeeOther, rr.Code)

		_, err := env.store.Get(context.Background(), id)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("edit replacing a receipt gone from disk", func(t *testing.T) {
		id := seedPayment(t, env, 5, "Acme", "2024-01-01", "", "gone.pdf")

		rr := postMultipart(t, env, fmt.Sprintf("/edit/%d", id), map[string]string{
			"amount": "6", "recipient": "Acme", "date": "2024-01-01",
		}, "fresh.png", "data")
		require.Equal(t, http.StatusSeeOther, rr.Code)

		p, err := env.store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(p.Receipt, "_fresh.png"), "got %q", p.Receipt)
		_, err = os.Stat(filepath.Join(env.uploads, p.Receipt))
		assert.NoError(t, err)
	})
}

func TestEditPaymentKeepsReceiptWithoutNewFile(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	rr := postMultipart(t, env, "/add", map[string]string{
		"amount": "5", "recipient": "Acme", "date": "2024-01-01",
	}, "keep.png", "data")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotEmpty(t, list[0].Receipt)

	rr = postMultipart(t, env, fmt.Sprintf("/edit/%d", list[0].ID), map[string]string{
		"amount": "6", "recipient": "Acme", "date": "2024-01-01",
	}, "", "")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	p, err := env.store.Get(context.Background(), list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, list[0].Receipt, p.Receipt)
	_, err = os.Stat(filepath.Join(env.uploads, p.Receipt))
	assert.NoError(t, err)
}

func TestDeletePayment(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	rr := postMultipart(t, env, "/add", map[string]string{
		"amount": "5", "recipient": "Acme", "date": "2024-01-01",
	}, "gone.png", "data")
	require.Equal(t, http.StatusSeeOther, rr.Code)

	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	receiptName := list[0].Receipt
	require.NotEmpty(t, receiptName)

	target := fmt.Sprintf("/delete/%d", list[0].ID)
	rr = env.do(t, env.authed(t, httptest.NewRequest(http.MethodPost, target, nil)))
	require.Equal(t, http.StatusSeeOther, rr.Code)

	_, err = env.store.Get(context.Background(), list[0].ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = os.Stat(filepath.Join(env.uploads, receiptName))
	assert.True(t, os.IsNotExist(err), "receipt file must be removed with the payment")

	// Repeating the delete is a 404, not an error page.
	rr = env.do(t, env.authed(t, httptest.NewRequest(http.MethodPost, target, nil)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReceiptServing(t *testing.T) {
	env := newTestEnv(t, 5<<20)

	result, err := env.srv.receipts.Save("invoice.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.False(t, result.Rejected)

	t.Run("stored file is served", func(t *testing.T) {
		rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodGet, "/uploads/"+result.Filename, nil)))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "png-bytes", rr.Body.String())
	})

	t.Run("missing file is 404", func(t *testing.T) {
		rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodGet, "/uploads/nope.png", nil)))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("traversal name is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/uploads/placeholder", nil)
		req.SetPathValue("filename", "../secret.txt")
		rr := httptest.NewRecorder()
		env.srv.handleReceipt(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestExportCSVEndpoint(t *testing.T) {
	env := newTestEnv(t, 5<<20)
	seedPayment(t, env, 12.5, "Acme Corp", "2024-01-01", "lunch, meeting", "r.pdf")
	seedPayment(t, env, -3, "Globex", "2024-01-02", "", "")

	rr := env.do(t, env.authed(t, httptest.NewRequest(http.MethodGet, "/export/csv", nil)))
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "payments.csv")

	lines := strings.Split(strings.TrimRight(rr.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Amount,Recipient,Date,Notes,Receipt", lines[0])
	assert.Equal(t, "-3.00,Globex,2024-01-02,,", lines[1])
	assert.Equal(t, "12.50,Acme Corp,2024-01-01,lunch  meeting,r.pdf", lines[2])
}
