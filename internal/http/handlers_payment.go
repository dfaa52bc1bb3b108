package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
)

type indexData struct {
	Payments  []core.Payment
	Total     float64
	Query     string
	FormError string
}

type editData struct {
	Payment core.Payment
	Error   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, r.URL.Query().Get("q"), "")
}

// renderIndex fetches, filters and renders the payment list. It doubles as
// the error re-render target for the add form.
func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, query, formError string) {
	all, err := s.store.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List payments failed", "error", err)
		http.Error(w, "failed to load payments", http.StatusInternalServerError)
		return
	}

	filtered := core.Filter(all, query)
	s.render(w, r, status, "index.html", indexData{
		Payments:  filtered,
		Total:     core.Total(filtered),
		Query:     strings.TrimSpace(query),
		FormError: formError,
	})
}

// parsePaymentFields extracts and validates the shared add/edit form fields.
func parsePaymentFields(form url.Values) (core.Payment, error) {
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return core.Payment{}, err
	}

	date, err := core.ParseDate(form.Get("date"))
	if err != nil {
		return core.Payment{}, err
	}

	p := core.Payment{
		Amount:    amount,
		Recipient: strings.TrimSpace(form.Get("recipient")),
		Date:      date,
		Notes:     strings.TrimSpace(form.Get("notes")),
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}
	return p, nil
}

// formErrorMessage maps validation sentinels to user-facing text.
func formErrorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a number"
	case errors.Is(err, core.ErrInvalidDate):
		return "Date must be in YYYY-MM-DD format"
	case errors.Is(err, core.ErrEmptyRecipient):
		return "Recipient is required"
	case errors.Is(err, core.ErrRecipientTooLong):
		return "Recipient is too long"
	case errors.Is(err, core.ErrNotesTooLong):
		return "Notes are too long"
	}
	return "Invalid form data"
}

// parseMultipart enforces the upload size cap before touching the body.
// Returns false after writing the error response when parsing fails.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			slog.WarnContext(r.Context(), "Upload exceeds size cap", "limit_bytes", s.maxUploadBytes)
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		slog.WarnContext(r.Context(), "Multipart form parse error", "error", err)
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return false
	}
	return true
}

// saveUploadedReceipt stores the uploaded receipt file, if any. A rejected
// file (disallowed type) does not fail the payment: the rejection reason is
// logged and an empty name returned. Only I/O failures are errors.
func (s *Server) saveUploadedReceipt(w http.ResponseWriter, r *http.Request) (string, bool) {
	file, header, err := r.FormFile("receipt")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			slog.WarnContext(r.Context(), "Receipt form file error", "error", err)
		}
		return "", true
	}
	defer file.Close()

	if header.Filename == "" {
		return "", true
	}

	result, err := s.receipts.Save(header.Filename, file)
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt save failed", "error", err, "filename", header.Filename)
		http.Error(w, "failed to store receipt", http.StatusInternalServerError)
		return "", false
	}
	if result.Rejected {
		slog.WarnContext(r.Context(), "Receipt upload rejected",
			"filename", header.Filename, "reason", result.Reason)
		return "", true
	}
	return result.Filename, true
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}

	p, err := parsePaymentFields(r.Form)
	if err != nil {
		s.renderIndex(w, r, http.StatusUnprocessableEntity, "", formErrorMessage(err))
		return
	}

	receiptName, ok := s.saveUploadedReceipt(w, r)
	if !ok {
		return
	}
	p.Receipt = receiptName

	id, err := s.store.Create(r.Context(), p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create payment failed", "error", err, "recipient", p.Recipient)
		http.Error(w, "failed to save payment", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Payment created",
		"id", id, "recipient", p.Recipient, "amount", p.Amount, "receipt", p.Receipt)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// paymentID parses the {id} path segment. Writes a 404 and returns false on
// anything that is not a well-formed id.
func paymentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(w, r)
	if !ok {
		return
	}

	p, err := s.store.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Get payment failed", "error", err, "id", id)
		http.Error(w, "failed to load payment", http.StatusInternalServerError)
		return
	}

	s.render(w, r, http.StatusOK, "edit.html", editData{Payment: p})
}

func (s *Server) handleEditPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(w, r)
	if !ok {
		return
	}

	existing, err := s.store.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Get payment failed", "error", err, "id", id)
		http.Error(w, "failed to load payment", http.StatusInternalServerError)
		return
	}

	if !s.parseMultipart(w, r) {
		return
	}

	updated, err := parsePaymentFields(r.Form)
	if err != nil {
		s.render(w, r, http.StatusUnprocessableEntity, "edit.html",
			editData{Payment: existing, Error: formErrorMessage(err)})
		return
	}
	updated.ID = existing.ID
	updated.Receipt = existing.Receipt

	// A new file replaces the old receipt: the old file is removed first
	// (best-effort), then the new one saved with the usual validation. If
	// the new file is rejected the reference still points at the removed
	// file; that window is a known, accepted trade-off.
	if file, header, ferr := r.FormFile("receipt"); ferr == nil {
		file.Close()
		if header.Filename != "" {
			if existing.Receipt != "" {
				if rmErr := s.receipts.Remove(existing.Receipt); rmErr != nil {
					slog.WarnContext(r.Context(), "Best-effort removal of old receipt failed",
						"receipt", existing.Receipt, "error", rmErr)
				}
			}
			name, ok := s.saveUploadedReceipt(w, r)
			if !ok {
				return
			}
			if name != "" {
				updated.Receipt = name
			}
		}
	}

	if err := s.store.Update(r.Context(), updated); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Update payment failed", "error", err, "id", id)
		http.Error(w, "failed to update payment", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Payment updated", "id", id, "recipient", updated.Recipient)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(w, r)
	if !ok {
		return
	}

	p, err := s.store.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Get payment failed", "error", err, "id", id)
		http.Error(w, "failed to load payment", http.StatusInternalServerError)
		return
	}

	if p.Receipt != "" {
		if rmErr := s.receipts.Remove(p.Receipt); rmErr != nil {
			slog.WarnContext(r.Context(), "Best-effort removal of receipt failed",
				"receipt", p.Receipt, "error", rmErr)
		}
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Delete payment failed", "error", err, "id", id)
		http.Error(w, "failed to delete payment", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Payment deleted", "id", id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
