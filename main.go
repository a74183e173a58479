package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-catalog/internal/approval"
	"media-catalog/internal/database"
	"media-catalog/internal/dispatch"
	"media-catalog/internal/fingerprint"
	"media-catalog/internal/handlers"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
	"media-catalog/internal/middleware"
	"media-catalog/internal/pipeline"
	"media-catalog/internal/policy"
	"media-catalog/internal/probe"
	"media-catalog/internal/ratelimit"
	"media-catalog/internal/startup"
	"media-catalog/internal/storage"
	"media-catalog/internal/transform"
	"media-catalog/internal/workers"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	startup.LogToolAvailability()

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Periodic maintenance: expired sessions and connection gauges.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			db.CleanExpiredSessions()
		}
	}()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		for range ticker.C {
			db.UpdateDBMetrics()
		}
	}()

	store, err := storage.New(config.DataDir, config.ScratchDir)
	if err != nil {
		startup.LogFatal("Failed to initialize storage: %v", err)
	}

	metrics.InitializeMetrics()

	runner := transform.NewRunner()
	pipe := pipeline.New(db, store,
		fingerprint.New(runner),
		probe.New(runner),
		media.NewGenerator(store, runner),
	)

	workerCount := workers.ForMixed(config.Workers)
	startup.LogDispatcherInit(workerCount, config.QueueSize)
	dispatcher := dispatch.New(pipe, workerCount, config.QueueSize)

	guard := policy.NewGuard(ratelimit.New(ratelimit.DefaultLimits()))
	h := handlers.New(db, store, guard, dispatcher, approval.New(db))

	router := setupRouter(h, store, config)

	authedRouter := h.AuthMiddleware(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(authedRouter)

	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, dispatcher)

	startup.LogServerStarted(config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, store *storage.Store, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.Version).Methods("GET")

	if config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// Auth routes
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/login", h.Login).Methods("POST")
	auth.HandleFunc("/logout", h.Logout).Methods("POST")
	auth.HandleFunc("/check", h.CheckAuth).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/records", h.Upload).Methods("POST")
	api.HandleFunc("/records", h.ListRecords).Methods("GET")
	api.HandleFunc("/records/{id}", h.GetRecord).Methods("GET")
	api.HandleFunc("/records/{id}/process", h.RequireAdmin(h.Reprocess)).Methods("POST")
	api.HandleFunc("/records/{id}/decisions", h.RequireReviewer(h.CreateDecision)).Methods("POST")
	api.HandleFunc("/records/{id}/decisions", h.ListDecisions).Methods("GET")
	api.HandleFunc("/decisions/{id}", h.GetDecision).Methods("GET")

	// Stored originals and derivatives
	r.PathPrefix("/files/").Handler(
		http.StripPrefix("/files/", http.FileServer(http.Dir(store.Root()))))

	return r
}

func handleShutdown(srv *http.Server, dispatcher *dispatch.Dispatcher) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests first, then drain the pipeline.
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	dispatcher.Stop()
	startup.LogShutdownStepComplete("Processing dispatcher drained")

	startup.LogShutdownComplete()
}
