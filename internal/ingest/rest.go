package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hrvguard/internal/config"
	"hrvguard/internal/logging"
	"hrvguard/internal/model"
	"hrvguard/internal/telemetry"
)

type RESTServer struct {
	cfg    *config.Manager
	out     chan<- model.Job
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func NewRESTServer(cfg *config.Manager, out chan<- model.Job, metrics *telemetry.Metrics, logger *slog.Logger) *RESTServer {
	return &RESTServer{cfg: cfg, out: out, metrics: metrics, logger: logger}
}

func (s *RESTServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.logger != nil {
		r.Use(logging.RequestLogger(s.logger))
	}
	r.Post("/jobs", s.handleJobs)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}

func StartREST(ctx context.Context, cfg *config.Manager, out chan<- model.Job, metrics *telemetry.Metrics, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.REST
	if !current.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", current.Addr)
	}
	server := NewRESTServer(cfg, out, metrics, logger)
	httpServer := &http.Server{Addr: current.Addr, Handler: server.Routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *RESTServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	jobs, errs, err := ParseJSONList(body, s.cfg.Get())
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	accepted := 0
	failed := len(errs)
	for _, e := range errs {
		s.metrics.IncJobsDropped("decode")
		if s.logger != nil {
			s.logger.Warn("rest decode error", "err", e)
		}
	}
	for _, job := range jobs {
		job.Source = "rest"
		if SendNonBlocking(r.Context(), s.out, job, s.metrics, s.logger) {
			accepted++
		} else {
			failed++
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"accepted": accepted,
		"failed":   failed,
	})
}
