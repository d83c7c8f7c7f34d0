package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"insider-risk/internal/analytics"
	"insider-risk/internal/dataset"
	"insider-risk/internal/metrics"
	"insider-risk/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const Version = "1.0.0"

type SessionStore interface {
	SaveSession(ctx context.Context, s *analytics.Session) error
	LoadSession(ctx context.Context, id string) (*analytics.Session, error)
	RecentSessions(ctx context.Context, count int64) ([]string, error)
}

type Publisher interface {
	PublishResults(ctx context.Context, sessionID string, results []models.ScoringResult) error
	PublishSummary(ctx context.Context, sessionID string, summary models.DepartmentSummary) error
}

type Server struct {
	router    *mux.Router
	engine    *analytics.Engine
	store     SessionStore
	source    dataset.Source
	publisher Publisher
	logger    *zap.Logger
}

func NewServer(engine *analytics.Engine, store SessionStore, source dataset.Source, publisher Publisher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:    mux.NewRouter(),
		engine:    engine,
		store:     store,
		source:    source,
		publisher: publisher,
		logger:    logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.instrument(s.healthHandler)).Methods("GET")
	s.router.HandleFunc("/sessions", s.instrument(s.createSessionHandler)).Methods("POST")
	s.router.HandleFunc("/sessions", s.instrument(s.listSessionsHandler)).Methods("GET")
	s.router.HandleFunc("/sessions/{id}", s.instrument(s.getSessionHandler)).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/entities/{entityID}", s.instrument(s.scoreEntityHandler)).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/cohort", s.instrument(s.scoreCohortHandler)).Methods("POST")
	s.router.HandleFunc("/sessions/{id}/departments", s.instrument(s.listDepartmentsHandler)).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/departments/{dept}", s.instrument(s.departmentHandler)).Methods("GET")
	s.router.HandleFunc("/analytics/stats", s.instrument(s.statsHandler)).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
}

func (s *Server) Handler() http.Handler {
	return s.router
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) int

// instrument labels metrics with the route template, not the raw path, so
// session ids do not blow up label cardinality.
func (s *Server) instrument(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := h(w, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		metrics.ObserveRequest(r.Method, endpoint, strconv.Itoa(status), start)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) int {
	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

type sessionResponse struct {
	ID          string                         `json:"id"`
	CreatedAt   time.Time                      `json:"created_at"`
	Population  int                            `json:"population"`
	Departments []string                       `json:"departments"`
	Profile     analytics.NormalizationProfile `json:"profile"`
}

func newSessionResponse(sess *analytics.Session) sessionResponse {
	return sessionResponse{
		ID:          sess.ID,
		CreatedAt:   sess.CreatedAt,
		Population:  sess.Population.Len(),
		Departments: sess.Population.Departments(),
		Profile:     sess.Profile,
	}
}

// createSessionHandler builds a session from the configured source, or from
// a CSV body when the request is sent as text/csv.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) int {
	var (
		pop *dataset.Population
		err error
	)
	if isCSV(r) {
		var records []models.BehavioralRecord
		records, err = dataset.ReadCSV(r.Body)
		if err == nil {
			pop, err = dataset.NewPopulation(records)
		}
	} else {
		if s.source == nil {
			return s.writeError(w, r, fmt.Errorf("%w: no dataset source configured", models.ErrInvalidInput))
		}
		pop, err = dataset.Load(r.Context(), s.source)
	}
	if err != nil {
		return s.writeError(w, r, fmt.Errorf("load population: %w", err))
	}

	sess, err := s.engine.NewSession(pop)
	if err != nil {
		return s.writeError(w, r, err)
	}
	if err := s.store.SaveSession(r.Context(), sess); err != nil {
		return s.writeError(w, r, err)
	}

	return writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func isCSV(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "text/csv"
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) int {
	count := int64(10)
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return s.writeError(w, r, fmt.Errorf("%w: count must be a positive integer", models.ErrInvalidInput))
		}
		count = n
	}

	ids, err := s.store.RecentSessions(r.Context(), count)
	if err != nil {
		return s.writeError(w, r, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) int {
	sess, err := s.store.LoadSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return s.writeError(w, r, err)
	}
	return writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) scoreEntityHandler(w http.ResponseWriter, r *http.Request) int {
	vars := mux.Vars(r)
	sess, err := s.store.LoadSession(r.Context(), vars["id"])
	if err != nil {
		return s.writeError(w, r, err)
	}

	res, err := s.engine.ScoreEntity(r.Context(), sess, vars["entityID"])
	if err != nil {
		return s.writeError(w, r, err)
	}
	s.publishResults(r.Context(), sess.ID, []models.ScoringResult{res})

	return writeJSON(w, http.StatusOK, res)
}

type cohortRequest struct {
	EntityIDs  []string `json:"entity_ids"`
	Percentile *float64 `json:"percentile,omitempty"`
}

func (s *Server) scoreCohortHandler(w http.ResponseWriter, r *http.Request) int {
	var req cohortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.writeError(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
	}
	percentile := s.engine.Percentile()
	if req.Percentile != nil {
		percentile = *req.Percentile
	}

	sess, err := s.store.LoadSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return s.writeError(w, r, err)
	}

	res, err := s.engine.ScoreCohort(r.Context(), sess, req.EntityIDs, percentile)
	if err != nil {
		return s.writeError(w, r, err)
	}
	s.publishResults(r.Context(), sess.ID, res.Results)

	return writeJSON(w, http.StatusOK, res)
}

func (s *Server) listDepartmentsHandler(w http.ResponseWriter, r *http.Request) int {
	sess, err := s.store.LoadSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return s.writeError(w, r, err)
	}
	return writeJSON(w, http.StatusOK, map[string][]string{"departments": sess.Population.Departments()})
}

type departmentResponse struct {
	Mode      string                   `json:"mode"`
	Summary   models.DepartmentSummary `json:"summary"`
	Threshold *float64                 `json:"threshold,omitempty"`
	Results   []models.ScoringResult   `json:"results,omitempty"`
}

func (s *Server) departmentHandler(w http.ResponseWriter, r *http.Request) int {
	vars := mux.Vars(r)
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "scored"
	}
	if mode != "scored" && mode != "recorded" {
		return s.writeError(w, r, fmt.Errorf("%w: mode must be scored or recorded, got %q", models.ErrInvalidInput, mode))
	}

	sess, err := s.store.LoadSession(r.Context(), vars["id"])
	if err != nil {
		return s.writeError(w, r, err)
	}

	resp := departmentResponse{Mode: mode}
	if mode == "recorded" {
		resp.Summary, err = s.engine.SummarizeRecorded(sess, vars["dept"])
		if err != nil {
			return s.writeError(w, r, err)
		}
	} else {
		var cohort analytics.CohortResult
		resp.Summary, cohort, err = s.engine.ScoreDepartment(r.Context(), sess, vars["dept"])
		if err != nil {
			return s.writeError(w, r, err)
		}
		resp.Threshold = &cohort.Threshold
		resp.Results = cohort.Results
		s.publishResults(r.Context(), sess.ID, cohort.Results)
	}

	if err := s.publisher.PublishSummary(r.Context(), sess.ID, resp.Summary); err != nil {
		s.logger.Warn("failed to publish department summary",
			zap.String("session_id", sess.ID),
			zap.String("department", resp.Summary.Department),
			zap.Error(err),
		)
	}

	return writeJSON(w, http.StatusOK, resp)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) int {
	return writeJSON(w, http.StatusOK, s.engine.Stats())
}

// publishResults never fails the request; the scores are already computed.
func (s *Server) publishResults(ctx context.Context, sessionID string, results []models.ScoringResult) {
	if err := s.publisher.PublishResults(ctx, sessionID, results); err != nil {
		s.logger.Warn("failed to publish scoring results",
			zap.String("session_id", sessionID),
			zap.Int("count", len(results)),
			zap.Error(err),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
	return status
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) int {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) Run(addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var shutdownErr error
	go func() {
		<-quit
		s.logger.Info("server is shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("could not gracefully shutdown the server: %w", err)
		}
		close(done)
	}()

	s.logger.Info("server is ready to handle requests", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	<-done
	s.logger.Info("server stopped")
	return shutdownErr
}
