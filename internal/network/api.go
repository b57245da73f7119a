package network

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/MRamiBalles/medsim/internal/engine"
	domainerrors "github.com/MRamiBalles/medsim/internal/platform/errors"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// maxCommandBody bounds POST bodies; SET_CASES is the largest command.
const maxCommandBody = 1 << 20

// API is the HTTP surface of the server.
type API struct {
	engine  *engine.Engine
	hub     *Hub
	router  *CommandRouter
	journal *JournalHandler
	metrics *metrics.Collector
	logger  *logger.Logger
}

// NewAPI builds the HTTP surface. hub may be nil when websockets are not served.
func NewAPI(e *engine.Engine, hub *Hub, log *logger.Logger, m *metrics.Collector) *API {
	return &API{
		engine:  e,
		hub:     hub,
		router:  NewCommandRouter(e, log),
		journal: NewJournalHandler(e, log),
		metrics: m,
		logger:  log,
	}
}

// Routes returns the chi router with every endpoint mounted.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.hub != nil {
		r.Get("/ws", a.hub.ServeWS)
	}
	r.Get("/metrics", a.metrics.Handler())
	r.Get("/metrics/prometheus", a.metrics.PrometheusHandler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", a.handleState)
		r.Post("/commands", a.handleCommand)
		r.Post("/commands/{type}", a.handleCommand)
		r.Get("/journal", a.journal.HandleJournal)
		r.Get("/journal/stats", a.journal.HandleStats)
	})
	return r
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Snapshot())
}

// handleCommand accepts a PlayerAction body. On /commands/{type} the path
// names the command and the body may carry only patient_id and payload.
func (a *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	var action PlayerAction
	body := http.MaxBytesReader(w, r.Body, maxCommandBody)
	if err := json.NewDecoder(body).Decode(&action); err != nil && !isEmptyBody(err) {
		jsonError(w, "invalid command body", http.StatusBadRequest)
		return
	}
	if t := chi.URLParam(r, "type"); t != "" {
		action.Type = t
	}
	if action.RequestID == "" {
		action.RequestID = middleware.GetReqID(r.Context())
	}

	ack, err := a.router.Handle(r.Context(), action)
	status := http.StatusOK
	if err != nil {
		status = statusFor(domainerrors.CodeOf(err))
	}
	writeJSON(w, status, ack)
}

func statusFor(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeUnknownExam, domainerrors.CodeUnknownTreatment, domainerrors.CodeUnknownFlag:
		return http.StatusUnprocessableEntity
	case domainerrors.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/ws" {
			return
		}
		a.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
