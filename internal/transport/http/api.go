package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"focus-session-service/internal/app"
	"focus-session-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// API serves the REST surface next to the classroom socket.
type API struct {
	hub     *app.Hub
	reports *app.ReportService
	logger  *zap.Logger
}

func NewAPI(hub *app.Hub, reports *app.ReportService, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{hub: hub, reports: reports, logger: logger.Named("api")}
}

// NewRouter wires the REST endpoints and the websocket upgrade.
func NewRouter(api *API, ws *WSHandler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(api.logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	// The socket outlives any request timeout, so only the REST group gets one.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/api/session/current", api.currentSession)
		r.Get("/api/session/{sessionID}/report", api.sessionReport)
		r.Post("/api/session/{sessionID}/ai-report", api.analyzeSession)
	})
	return r
}

type currentSessionResponse struct {
	SessionID   string                    `json:"sessionId"`
	StartedAt   int64                     `json:"startedAt"`
	Phase       app.Phase                 `json:"phase"`
	Question    *app.NewQuestionPayload   `json:"question,omitempty"`
	Students    []domain.ParticipantFocus `json:"students"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

func (a *API) currentSession(w http.ResponseWriter, r *http.Request) {
	classroom, err := a.hub.Current()
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	students, err := classroom.ClassSnapshot(r.Context())
	if err != nil {
		a.logger.Warn("class snapshot failed", zap.String("session_id", classroom.ID()), zap.Error(err))
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	resp := currentSessionResponse{
		SessionID:   classroom.ID(),
		StartedAt:   classroom.StartedAt().UnixMilli(),
		Phase:       classroom.Phase(),
		Students:    students,
		Leaderboard: classroom.Leaderboard(),
	}
	if q, ok := classroom.ActiveQuestion(); ok && !q.Sealed {
		view := app.StudentQuestionView(q)
		resp.Question = &view
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *API) sessionReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.reports.Report(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.respondReportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (a *API) analyzeSession(w http.ResponseWriter, r *http.Request) {
	out, err := a.reports.Analyze(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.respondReportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "analysis": out})
}

func (a *API) respondReportError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	a.logger.Error("load session report failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, err)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
