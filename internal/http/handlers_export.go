package http

import (
	"log/slog"
	"net/http"

	"paytrack/internal/export"
)

// handleExportCSV streams the whole payment table as a CSV download, one
// row at a time.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=`+export.Filename)

	if err := export.WriteCSV(r.Context(), w, s.store); err != nil {
		// Headers and part of the body may already be sent; log and stop.
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}
