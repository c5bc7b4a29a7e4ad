// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/crimson-sun/predictor/internal/batch"
	"github.com/crimson-sun/predictor/internal/cache"
	"github.com/crimson-sun/predictor/internal/config"
	"github.com/crimson-sun/predictor/internal/engine/validator"
	"github.com/crimson-sun/predictor/internal/model"
)

const maxBodyBytes = 1 << 20

// Predictor is the engine surface the server needs.
type Predictor interface {
	Validate(req model.MatchRequest) error
	Predict(req model.MatchRequest) (model.MatchPrediction, error)
	Version() string
}

// Store serves persisted batch results.
type Store interface {
	LatestPredictions(ctx context.Context) ([]model.FixturePrediction, error)
	Health(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithCache memoises /predict responses.
func WithCache(c *cache.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithStore serves /predictions from st.
func WithStore(st Store) Option {
	return func(s *Server) { s.store = st }
}

// WithLatest serves /predictions from the in-memory batch result when no
// store is configured.
func WithLatest(l *batch.Latest) Option {
	return func(s *Server) { s.latest = l }
}

// WithReadTimeout sets the HTTP read timeout. Default: 15s.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// Server routes HTTP requests to the engine.
type Server struct {
	predictor   Predictor
	cache       *cache.Cache
	store       Store
	latest      *batch.Latest
	readTimeout time.Duration
	router      *mux.Router
}

// New builds the router.
func New(p Predictor, opts ...Option) *Server {
	s := &Server{predictor: p, readTimeout: 15 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(cors, logRequests)
	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/predictions", s.handlePredictions).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// predictRequest accepts both the current field names and the legacy
// team1/team2 pair.
type predictRequest struct {
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Team1      string `json:"team1"`
	Team2      string `json:"team2"`
	Tournament string `json:"tournament"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

func (p predictRequest) matchRequest() model.MatchRequest {
	req := model.MatchRequest{
		HomeTeam:   strings.TrimSpace(p.HomeTeam),
		AwayTeam:   strings.TrimSpace(p.AwayTeam),
		Tournament: strings.TrimSpace(p.Tournament),
		City:       strings.TrimSpace(p.City),
		Country:    strings.TrimSpace(p.Country),
	}
	if req.HomeTeam == "" {
		req.HomeTeam = strings.TrimSpace(p.Team1)
	}
	if req.AwayTeam == "" {
		req.AwayTeam = strings.TrimSpace(p.Team2)
	}
	return req
}

type errorBody struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var body predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "malformed JSON body: " + err.Error(), Reason: "MalformedRequest"})
		return
	}
	req := body.matchRequest()

	if err := s.predictor.Validate(req); err != nil {
		s.writePredictError(w, err)
		return
	}

	if s.cache != nil {
		if pred, level, ok := s.cache.Get(r.Context(), req); ok {
			w.Header().Set("X-Cache", string(level))
			writeJSON(w, http.StatusOK, pred)
			return
		}
	}

	pred, err := s.predictor.Predict(req)
	if err != nil {
		s.writePredictError(w, err)
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), req, pred)
		w.Header().Set("X-Cache", string(cache.LevelMiss))
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) writePredictError(w http.ResponseWriter, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: verr.Field, Reason: string(verr.Reason)})
		return
	}
	slog.Error("prediction failed", "error", err)
	body := errorBody{Error: "prediction failed"}
	if errors.Is(err, model.ErrDimensionMismatch) {
		body.Reason = "DimensionMismatch"
	}
	writeError(w, http.StatusInternalServerError, body)
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		preds, err := s.store.LatestPredictions(r.Context())
		switch {
		case err != nil:
			slog.Warn("store unavailable, serving in-memory predictions", "error", err)
		case len(preds) > 0:
			writeJSON(w, http.StatusOK, preds)
			return
		}
		// An empty store still defers to this process's batch results.
	}
	if s.latest != nil {
		writeJSON(w, http.StatusOK, s.latest.Predictions())
		return
	}
	writeJSON(w, http.StatusOK, []model.FixturePrediction{})
}

type healthBody struct {
	Status       string       `json:"status"`
	Version      string       `json:"version"`
	ModelVersion string       `json:"model_version"`
	Store        string       `json:"store"`
	Cache        *cache.Stats `json:"cache,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	h := healthBody{Status: "ok", Version: config.Version, ModelVersion: s.predictor.Version(), Store: "disabled"}
	code := http.StatusOK
	if s.store != nil {
		h.Store = "ok"
		if err := s.store.Health(ctx); err != nil {
			h.Store = "unavailable"
			h.Status = "degraded"
		}
	}
	if s.cache != nil {
		stats := s.cache.Stats(ctx)
		h.Cache = &stats
	}
	writeJSON(w, code, h)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, body errorBody) {
	writeJSON(w, code, body)
}
