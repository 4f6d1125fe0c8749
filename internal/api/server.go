package api

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
	"github.com/go-chi/chi/v5/middleware"

	"hrvguard/internal/alerts"
	"hrvguard/internal/config"
	"hrvguard/internal/engine"
	"hrvguard/internal/ingest"
	"hrvguard/internal/logging"
	"hrvguard/internal/model"
	"hrvguard/internal/results"
	"hrvguard/internal/storage"
	"hrvguard/internal/telemetry"
)

type EngineControl interface {
	Reset()
	UpdateConfig(cfg *config.Config)
	Analyze(job model.Job) (model.Result, []model.Alert, error)
	Status() engine.Status
}

// Deps are the components the API reads from; nil members disable the
// routes that need them.
type Deps struct {
	Results   *results.Store
	Alerts    *alerts.Store
	Store     storage.Store
	Engine    EngineControl
	Telemetry *telemetry.Metrics
	WS        http.HandlerFunc
	Logger    *slog.Logger
	Version   string
}

type Server struct {
	cfg *config.Manager
	Deps
}

type statusResponse struct {
	Status     string          `json:"status"`
	Time       string          `json:"time"`
	Version    string          `json:"version"`
	ConfigPath string          `json:"config_path"`
	Engine     *engine.Status  `json:"engine,omitempty"`
	Records    int             `json:"records"`
	Ingest     ingestStatus    `json:"ingest"`
	API        apiStatus       `json:"api"`
	Storage    storageStatus   `json:"storage"`
	Pipeline   pipelineSummary `json:"pipeline"`
}

type ingestStatus struct {
	REST      bool `json:"rest"`
	FileTail  bool `json:"file_tail"`
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
	NATS      bool `json:"nats"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type storageStatus struct {
	Enabled bool   `json:"enabled"`
	Driver  string `json:"driver"`
}

type pipelineSummary struct {
	Workers           int     `json:"workers"`
	WindowSize        int     `json:"window_size"`
	RelativeThreshold float64 `json:"relative_threshold"`
	ToleranceSec      float64 `json:"tolerance_sec"`
	FilterEnabled     bool    `json:"filter_enabled"`
}

func NewServer(cfg *config.Manager, deps Deps) *Server {
	return &Server{cfg: cfg, Deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.Logger != nil {
		r.Use(logging.RequestLogger(s.Logger))
	}
	r.Get("/status", s.handleStatus)
	r.Get("/results", s.handleResults)
	r.Get("/results/{record}", s.handleRecord)
	r.Get("/results/{record}/history", s.handleHistory)
	r.Get("/alerts", s.handleAlerts)
	r.Get("/config/pipeline", s.handleGetPipeline)
	r.Post("/config/pipeline", s.handleSetPipeline)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/admin/clear", s.handleClear)
	r.Post("/admin/restart", s.handleRestart)
	if s.Telemetry != nil {
		r.Method(http.MethodGet, "/metrics", s.Telemetry.Handler(s.refreshGauges))
	}
	if s.WS != nil {
		r.Get("/ws", s.WS)
	}
	return r
}

func Start(ctx context.Context, cfg *config.Manager, deps Deps) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := deps.Logger
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := NewServer(cfg, deps)
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
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.Version,
		ConfigPath: s.cfg.Path(),
		Ingest: ingestStatus{
			REST:      cfg.Ingest.REST.Enabled,
			FileTail:  cfg.Ingest.FileTail.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
			NATS:      cfg.Ingest.NATS.Enabled,
		},
		API:     apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Storage: storageStatus{Enabled: cfg.Storage.Enabled, Driver: cfg.Storage.Driver},
		Pipeline: pipelineSummary{
			Workers:           cfg.Pipeline.Workers,
			WindowSize:        cfg.Pipeline.WindowSize,
			RelativeThreshold: cfg.Pipeline.RelativeThreshold,
			ToleranceSec:      cfg.Pipeline.ToleranceSec,
			FilterEnabled:     cfg.Pipeline.Filter.Enabled,
		},
	}
	if s.Engine != nil {
		st := s.Engine.Status()
		resp.Engine = &st
	}
	if s.Results != nil {
		resp.Records = s.Results.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	all := s.Results.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"results": all,
		"count":   len(all),
	})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	record := chi.URLParam(r, "record")
	list, updated, ok := s.Results.Get(record)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("record not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record_id":  record,
		"updated_at": updated.Format(time.RFC3339Nano),
		"results":    list,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusNotFound, errors.New("storage disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	record := chi.URLParam(r, "record")
	list, err := s.Store.RecentResults(r.Context(), record, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record_id": record,
		"results":   list,
		"count":     len(list),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.Alert
	switch {
	case q.Get("since") != "":
		ts, err := time.Parse(time.RFC3339, q.Get("since"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		list = s.Alerts.Since(ts)
	case q.Get("record") != "":
		list = s.Alerts.ForRecord(q.Get("record"))
	default:
		list = s.Alerts.List(limit)
	}
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pipeline": s.cfg.Get().Pipeline,
		"quality":  s.cfg.Get().Quality,
	})
}

// handleSetPipeline merges the posted fields over the current pipeline
// section, so partial documents are accepted.
func (s *Server) handleSetPipeline(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	current := s.cfg.Get()
	next := *current
	next.Pipeline.BeatSymbols = append([]string(nil), current.Pipeline.BeatSymbols...)
	if err := json.Unmarshal(body, &next.Pipeline); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := config.ValidatePipeline(next.Pipeline); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Update(&next); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s.Engine != nil {
		s.Engine.UpdateConfig(&next)
	}
	if s.Logger != nil {
		s.Logger.Info("pipeline config updated",
			"window_size", next.Pipeline.WindowSize,
			"relative_threshold", next.Pipeline.RelativeThreshold,
			"tolerance_sec", next.Pipeline.ToleranceSec,
		)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pipeline": next.Pipeline})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.Engine == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("engine not running"))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := ingest.ParseJSONBytes(body, s.cfg.Get())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job.Source = "api"
	res, _, err := s.Engine.Analyze(job)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		s.clearResults()
		s.clearAlerts()
	case "alerts":
		s.clearAlerts()
	case "results":
		s.clearResults()
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown clear target "+target))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "target": target})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if s.Engine != nil {
		s.Engine.Reset()
	}
	s.clearResults()
	s.clearAlerts()
	if s.Logger != nil {
		s.Logger.Info("engine state reset")
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) clearResults() {
	if s.Results != nil {
		s.Results.Clear()
	}
}

func (s *Server) clearAlerts() {
	if s.Alerts != nil {
		s.Alerts.Clear()
	}
}

func (s *Server) refreshGauges() {
	if s.Results != nil {
		s.Telemetry.SetStoredRecords(s.Results.Len())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
