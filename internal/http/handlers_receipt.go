package http

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"paytrack/internal/receipts"
)

// handleReceipt serves a stored receipt file. The filename must resolve
// strictly inside the receipt directory.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	path, err := s.receipts.Resolve(name)
	if errors.Is(err, receipts.ErrInvalidName) {
		slog.WarnContext(r.Context(), "Receipt request rejected", "filename", name)
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt resolve failed", "filename", name, "error", err)
		http.Error(w, "failed to resolve receipt", http.StatusInternalServerError)
		return
	}

	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, path)
}
