package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter mounts the REST API under /api plus a /healthz probe.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/persons", func(r chi.Router) {
			r.Get("/", h.ListPersons)
			r.Post("/", h.CreatePerson)
			r.Get("/identity/{identityNumber}", h.GetPersonByIdentityNumber)
			r.Get("/{id}", h.GetPerson)
			r.Patch("/{id}", h.UpdatePerson)
			r.Delete("/{id}", h.DeletePerson)
			r.Get("/{id}/status", h.PersonStatus)
			r.Get("/{id}/turns", h.PersonHistory)
		})

		r.Route("/turns", func(r chi.Router) {
			r.Get("/", h.ListTurns)
			r.Post("/", h.BookTurn)
			r.Get("/{id}", h.GetTurn)
			r.Patch("/{id}", h.UpdateTurn)
			r.Delete("/{id}", h.DeleteTurn)
			r.Post("/{id}/confirm", h.ConfirmTurn)
			r.Post("/{id}/cancel", h.CancelTurn)
		})

		r.Get("/availability", h.AvailableSlots)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/turns-by-date", h.TurnsByDateReport)
			r.Get("/day-summary", h.DaySummaryReport)
			r.Get("/cancelled-by-month", h.CancelledByMonthReport)
			r.Get("/cancellations", h.CancellationsReport)
			r.Get("/confirmed", h.ConfirmedReport)
			r.Get("/person-history/{id}", h.PersonHistory)
			r.Get("/person-status", h.PersonStatusReport)
		})
	})

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				log.LogAttrs(r.Context(), level, "request",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
