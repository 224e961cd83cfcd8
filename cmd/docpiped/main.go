// Command docpiped serves the extraction pipeline over HTTP (and optionally
// MCP over stdio with -mcp). Every extraction is audited and measured in a
// SQLite observability database next to the configured data directory.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/docpipe"
	"github.com/hazyhaar/docpipe/dbopen"
	"github.com/hazyhaar/docpipe/idgen"
	"github.com/hazyhaar/docpipe/kit"
	"github.com/hazyhaar/docpipe/observability"
)

type daemonConfig struct {
	Listen   string         `yaml:"listen"`
	ObsDB    string         `yaml:"obs_db"`
	LogLevel string         `yaml:"log_level"`
	Pipeline docpipe.Config `yaml:"pipeline"`
}

func loadConfig(path string) (*daemonConfig, error) {
	cfg := &daemonConfig{
		Listen:   ":8097",
		ObsDB:    "db/observability.db",
		LogLevel: "info",
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // all defaults
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func main() {
	var (
		cfgPath = flag.String("config", "docpiped.yaml", "yaml configuration file")
		mcpMode = flag.Bool("mcp", false, "serve MCP over stdio instead of HTTP")
	)
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// Logs go to stderr: in -mcp mode stdout carries the protocol stream.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Observability DB (separate from any application data to avoid write contention).
	obsDB, err := dbopen.Open(cfg.ObsDB, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("observability db", "error", err)
		os.Exit(1)
	}
	defer obsDB.Close()
	if err := observability.Init(obsDB); err != nil {
		slog.Error("observability schema", "error", err)
		os.Exit(1)
	}

	auditLogger := observability.NewAuditLogger(obsDB, 1000,
		observability.WithAuditIDGenerator(idgen.Prefixed("aud_", idgen.Default)),
	)
	defer auditLogger.Close()
	metrics := observability.NewMetricsManager(obsDB, 100, 5*time.Second)
	defer metrics.Close()
	events := observability.NewEventLogger(obsDB,
		observability.WithEventIDGenerator(idgen.Prefixed("evt_", idgen.Default)),
	)

	// Heartbeat: liveness + runtime metrics every 15s.
	heartbeat := observability.NewHeartbeatWriter(obsDB, "docpiped", 15*time.Second)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	cfg.Pipeline.Logger = logger
	pipe := docpipe.New(cfg.Pipeline)

	if *mcpMode {
		srv := mcp.NewServer(&mcp.Implementation{Name: "docpiped", Version: "1.0.0"}, nil)
		pipe.RegisterMCP(srv)
		slog.Info("docpiped serving MCP on stdio")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			slog.Error("mcp serve", "error", err)
			os.Exit(1)
		}
		return
	}

	// Extract endpoint wrapped with the audit middleware so HTTP and MCP
	// transports share one instrumented code path.
	extract := kit.Chain(auditMiddleware(auditLogger, metrics, events))(
		func(ctx context.Context, req any) (any, error) {
			return pipe.Process(ctx, req.(string))
		},
	)

	requestIDGen := idgen.Prefixed("req_", idgen.Default)

	r := chi.NewRouter()
	r.Use(contextMiddleware(requestIDGen))
	r.Post("/v1/extract", extractHandler(extract))
	r.Get("/v1/formats", formatsHandler())
	r.Get("/v1/health", healthHandler(obsDB))

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("docpiped listening", "addr", cfg.Listen)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("serve", "error", err)
		os.Exit(1)
	}
}

// contextMiddleware enriches the request context with kit values so audit
// entries can correlate by request ID.
func contextMiddleware(reqIDGen idgen.Generator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := reqIDGen()
			ctx = kit.WithRequestID(ctx, reqID)
			ctx = kit.WithTraceID(ctx, reqID)
			ctx = kit.WithTransport(ctx, "http")
			ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)

			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// auditMiddleware records every extraction in the audit log, bumps the
// counters and emits a business event. Observability failures never affect
// the request outcome.
func auditMiddleware(audit *observability.AuditLogger, metrics *observability.MetricsManager, events *observability.EventLogger) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			path, _ := req.(string)
			entry := audit.NewAuditEntry("pipeline", "extract",
				map[string]string{"path": path}, nil, err, elapsed)
			entry.RequestID = kit.GetRequestID(ctx)
			audit.LogAsync(entry)

			metrics.RecordSimple(observability.MetricExtractionDurationMs,
				float64(elapsed.Milliseconds()), "milliseconds")
			metrics.RecordSimple(observability.MetricExtractionCount, 1, "count")
			if err != nil {
				metrics.RecordSimple(observability.MetricExtractionErrors, 1, "count")
			}

			events.LogEvent(ctx, observability.BusinessEvent{
				EventType:   "document_extracted",
				ServiceName: "docpiped",
				EntityType:  "document",
				EntityID:    path,
				Action:      "extract",
				Success:     err == nil,
			})
			return resp, err
		}
	}
}

func extractHandler(extract kit.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
			http.Error(w, "expected JSON body with a \"path\" field", http.StatusBadRequest)
			return
		}

		res, err := extract(r.Context(), body.Path)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(errorStatus(err))
			json.NewEncoder(w).Encode(map[string]string{"error": docpipe.ErrorMessage(err)})
			return
		}
		json.NewEncoder(w).Encode(res)
	}
}

// errorStatus maps extraction error kinds to HTTP statuses. Everything that
// means "the file could not yield text" is a 422, not a server fault.
func errorStatus(err error) int {
	switch {
	case docpipe.IsKind(err, docpipe.KindFileNotFound):
		return http.StatusNotFound
	case docpipe.IsKind(err, docpipe.KindUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case docpipe.IsKind(err, docpipe.KindEmptyDocument),
		docpipe.IsKind(err, docpipe.KindAllMethodsExhausted),
		docpipe.IsKind(err, docpipe.KindDecodeFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func formatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"formats": docpipe.FormatCapabilities()})
	}
}

func healthHandler(obsDB *sql.DB) http.HandlerFunc {
	// Staleness threshold = 3× heartbeat interval (15s × 3 = 45s).
	const stalenessThreshold = 45 * time.Second

	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}

		hb, err := observability.LatestHeartbeat(r.Context(), obsDB, "docpiped", stalenessThreshold)
		if err == nil && hb != nil {
			resp["heartbeat"] = hb
			if !hb.Alive {
				resp["status"] = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
