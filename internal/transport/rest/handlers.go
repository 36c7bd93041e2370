package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"turnos/internal/domain"
	"turnos/internal/export"
	"turnos/internal/service/persons"
	"turnos/internal/service/reports"
	"turnos/internal/service/turns"
)

type personsService interface {
	Create(ctx context.Context, in persons.CreateInput) (domain.PersonView, error)
	Get(ctx context.Context, id int64) (domain.PersonView, error)
	GetByIdentityNumber(ctx context.Context, identityNumber string) (domain.PersonView, error)
	List(ctx context.Context, skip, limit int) ([]domain.PersonView, error)
	Update(ctx context.Context, id int64, patch domain.PersonPatch) (domain.PersonView, error)
	Delete(ctx context.Context, id int64) error
	Status(ctx context.Context, id int64) (string, error)
}

type turnsService interface {
	Book(ctx context.Context, in turns.BookInput) (domain.TurnView, error)
	Get(ctx context.Context, id int64) (domain.TurnView, error)
	List(ctx context.Context, skip, limit int) ([]domain.TurnView, error)
	Update(ctx context.Context, id int64, patch domain.TurnPatch) (domain.TurnView, error)
	Delete(ctx context.Context, id int64) error
	Confirm(ctx context.Context, id int64) (domain.TurnView, error)
	Cancel(ctx context.Context, id int64) (domain.TurnView, error)
	AvailableSlots(ctx context.Context, date time.Time) ([]string, error)
}

type reportsService interface {
	TurnsByDate(ctx context.Context, date time.Time, page, size int) (reports.DateReport, error)
	CancelledInMonth(ctx context.Context, year int, month time.Month) (reports.MonthReport, error)
	Cancellations(ctx context.Context, minCount int) (reports.CancellationsReport, error)
	ConfirmedInPeriod(ctx context.Context, from, to time.Time, page, size int) (reports.PeriodReport, error)
	PersonHistory(ctx context.Context, personID int64, skip, limit int) (reports.HistoryReport, error)
	PersonStatuses(ctx context.Context) (reports.StatusReport, error)
}

const defaultListLimit = 100

type Handler struct {
	persons personsService
	turns   turnsService
	reports reportsService
	states  []domain.TurnState
	export  export.Options
	log     *slog.Logger
}

func NewHandler(p personsService, t turnsService, r reportsService, schedule domain.Schedule, exportOpts export.Options, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		persons: p,
		turns:   t,
		reports: r,
		states:  schedule.States(),
		export:  exportOpts,
		log:     log,
	}
}

type personRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	IdentityNumber string  `json:"identity_number"`
	Phone          *string `json:"phone"`
	BirthDate      string  `json:"birth_date"`
	Enabled        *bool   `json:"enabled"`
}

type personPatchRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	IdentityNumber *string `json:"identity_number"`
	Phone          *string `json:"phone"`
	BirthDate      *string `json:"birth_date"`
	Enabled        *bool   `json:"enabled"`
}

type bookRequest struct {
	IdentityNumber string `json:"identity_number"`
	Date           string `json:"date"`
	Slot           string `json:"slot"`
	State          string `json:"state"`
}

type turnPatchRequest struct {
	Date     *string `json:"date"`
	Slot     *string `json:"slot"`
	State    *string `json:"state"`
	PersonID *int64  `json:"person_id"`
}

// Persons

func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := skipLimit(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out, err := h.persons.List(r.Context(), skip, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := persons.CreateInput{
		Name:           req.Name,
		Email:          req.Email,
		IdentityNumber: req.IdentityNumber,
		Phone:          req.Phone,
		Enabled:        req.Enabled,
	}
	if strings.TrimSpace(req.BirthDate) != "" {
		birth, err := domain.ParseDate(strings.TrimSpace(req.BirthDate))
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		in.BirthDate = birth
	}

	out, err := h.persons.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	out, err := h.persons.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetPersonByIdentityNumber(w http.ResponseWriter, r *http.Request) {
	out, err := h.persons.GetByIdentityNumber(r.Context(), chi.URLParam(r, "identityNumber"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req personPatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := domain.PersonPatch{
		Name:           req.Name,
		Email:          req.Email,
		IdentityNumber: req.IdentityNumber,
		Phone:          req.Phone,
		Enabled:        req.Enabled,
	}
	if req.BirthDate != nil {
		birth, err := domain.ParseDate(strings.TrimSpace(*req.BirthDate))
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		patch.BirthDate = &birth
	}

	out, err := h.persons.Update(r.Context(), id, patch)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.persons.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PersonStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	status, err := h.persons.Status(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"person_id": id, "status": status})
}

// Turns

func (h *Handler) ListTurns(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := skipLimit(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out, err := h.turns.List(r.Context(), skip, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) BookTurn(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := requiredDate(req.Date, "date")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out, err := h.turns.Book(r.Context(), turns.BookInput{
		IdentityNumber: req.IdentityNumber,
		Date:           date,
		Slot:           req.Slot,
		State:          req.State,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) GetTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	out, err := h.turns.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req turnPatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := domain.TurnPatch{Slot: req.Slot, PersonID: req.PersonID}
	if req.Date != nil {
		date, err := domain.ParseDate(strings.TrimSpace(*req.Date))
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		patch.Date = &date
	}
	if req.State != nil {
		state := domain.TurnState(*req.State)
		patch.State = &state
	}

	out, err := h.turns.Update(r.Context(), id, patch)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.turns.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ConfirmTurn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.turns.Confirm)
}

func (h *Handler) CancelTurn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.turns.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64) (domain.TurnView, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	out, err := apply(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	date, err := requiredDate(r.URL.Query().Get("date"), "date")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	slots, err := h.turns.AvailableSlots(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format(domain.DateLayout),
		"slots": slots,
	})
}

// Helpers

type errorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind,omitempty"`
	State domain.TurnState `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, resp)
}

// writeDomainError maps a service error to its HTTP status. Errors without a
// kind are logged and reported as a generic failure.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var dErr *domain.Error
	if !errors.As(err, &dErr) {
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("component", "http"),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch dErr.Kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict, domain.KindInvalidState:
		status = http.StatusConflict
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindInvalidInput:
		status = http.StatusBadRequest
	}
	writeError(w, status, errorResponse{Error: dErr.Reason, Kind: dErr.Kind, State: dErr.State})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: domain.KindInvalidInput})
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "id must be a positive integer", Kind: domain.KindInvalidInput})
		return 0, false
	}
	return id, true
}

func requiredDate(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domain.InvalidInput("%s is required", field)
	}
	return domain.ParseDate(raw)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.InvalidInput("%s must be an integer", name)
	}
	return n, nil
}

func skipLimit(r *http.Request) (int, int, error) {
	skip, err := intParam(r, "skip", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil {
		return 0, 0, err
	}
	return skip, limit, nil
}
