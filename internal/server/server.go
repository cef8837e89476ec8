package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/exo-inference/internal/api"
	"github.com/kartoza/exo-inference/internal/config"
	"github.com/kartoza/exo-inference/internal/history"
	"github.com/kartoza/exo-inference/internal/inference"
	"github.com/kartoza/exo-inference/internal/survey"
)

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	registry   *survey.Registry
	runner     *inference.Runner
	history    *history.Store
	pruner     *history.Pruner
	logger     *zap.Logger
}

// New creates a new Server with all components initialized. The run history
// is optional: if its database cannot be opened the server runs without it.
func New(cfg config.Config, registry *survey.Registry, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		registry: registry,
		runner:   inference.NewRunner(logger),
		logger:   logger.Named("server"),
	}

	// Initialize run history
	store, err := history.NewStore(cfg.DBPath)
	if err != nil {
		s.logger.Warn("Run history not available", zap.String("path", cfg.DBPath), zap.Error(err))
	} else {
		s.history = store
		retention := time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour
		pruner, err := history.NewPruner(store, retention, cfg.HistoryPruneSchedule, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to schedule history pruning: %w", err)
		}
		s.pruner = pruner
	}

	// Set up routes
	s.setupRoutes()

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.registry, s.runner, s.history, s.cfg, s.logger)
	apiHandler.RegisterRoutes(apiRouter)

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// handleIndex lists the available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var endpoints []string
	s.router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := route.GetMethods()
		for _, m := range methods {
			endpoints = append(endpoints, m+" "+path)
		}
		return nil
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"version":   s.cfg.Version,
		"endpoints": endpoints,
	})
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("model", r.URL.Query().Get("model")),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if s.pruner != nil {
		s.pruner.Start()
	}
	s.logger.Info("Server listening", zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Close stores
	if s.pruner != nil {
		s.pruner.Stop()
	}
	if s.history != nil {
		s.history.Close()
	}

	return err
}
