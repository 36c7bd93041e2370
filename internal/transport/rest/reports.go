package rest

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"turnos/internal/domain"
	"turnos/internal/export"
	"turnos/internal/report"
)

func (h *Handler) TurnsByDateReport(w http.ResponseWriter, r *http.Request) {
	date, err := requiredDate(r.URL.Query().Get("date"), "date")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rep, err := h.reports.TurnsByDate(r.Context(), date, page, size)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.render(w, r, "turnos-"+date.Format(domain.DateLayout), rep, rep.Table())
}

func (h *Handler) DaySummaryReport(w http.ResponseWriter, r *http.Request) {
	date, err := requiredDate(r.URL.Query().Get("date"), "date")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rep, err := h.reports.TurnsByDate(r.Context(), date, 1, report.DefaultPageSize)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.render(w, r, "resumen-"+date.Format(domain.DateLayout), rep.Summary, rep.SummaryTable(h.states))
}

func (h *Handler) CancelledByMonthReport(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rep, err := h.reports.CancelledInMonth(r.Context(), year, time.Month(month))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.render(w, r, fmt.Sprintf("cancelados-%d-%02d", year, month), rep, rep.Table())
}

func (h *Handler) CancellationsReport(w http.ResponseWriter, r *http.Request) {
	minCount, err := intParam(r, "min", report.DefaultMinCancellations)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rep, err := h.reports.Cancellations(r.Context(), minCount)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.render(w, r, "cancelaciones", rep, rep.Table())
}

func (h *Handler) ConfirmedReport(w http.ResponseWriter, r *http.Request) {
	from, err := requiredDate(r.URL.Query().Get("from"), "from")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	to, err := requiredDate(r.URL.Query().Get("to"), "to")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rep, err := h.reports.ConfirmedInPeriod(r.Context(), from, to, page, size)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.render(w, r, "confirmados", rep, rep.Table())
}

func (h *Handler) PersonHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	skip, limit, err := skipLimit(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rep, err := h.reports.PersonHistory(r.Context(), id, skip, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.render(w, r, fmt.Sprintf("persona-%d-turnos", id), rep, rep.Table())
}

func (h *Handler) PersonStatusReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.PersonStatuses(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.render(w, r, "estado-personas", rep, rep.Table())
}

// render writes data as JSON, or table as CSV/PDF when ?format= asks for it.
// Files are buffered before any header is written.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any, table export.Table) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = export.FormatJSON
	}

	var (
		buf bytes.Buffer
		err error
	)
	switch format {
	case export.FormatJSON:
		writeJSON(w, http.StatusOK, data)
		return
	case export.FormatCSV:
		err = export.WriteCSV(&buf, table, h.export)
	case export.FormatPDF:
		err = export.WritePDF(&buf, table, h.export)
	default:
		h.writeDomainError(w, r, domain.InvalidInput("unsupported format %q", format))
		return
	}
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("render %s: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func pageParams(r *http.Request) (int, int, error) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	size, err := intParam(r, "page_size", 0)
	if err != nil {
		return 0, 0, err
	}
	return page, report.ClampPageSize(size), nil
}
