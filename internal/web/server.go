// Package web serves the HTTP API, a small dashboard, live websocket
// updates and Prometheus metrics for a running engine.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
	"github.com/user/linkpulse/internal/report"
)

// Options configures a Server.
type Options struct {
	Engine  *monitor.Engine
	Traces  report.TraceHistory // optional trace archive
	Port    int
	Version string
	Logger  *zap.Logger
}

// Server is the web server.
type Server struct {
	engine  *monitor.Engine
	traces  report.TraceHistory
	reports *report.Generator
	hub     *Hub
	logger  *zap.Logger
	port    int
	version string
	started time.Time

	srv         *http.Server
	unsubscribe func()
}

// NewServer creates a server and subscribes it to registry and settings
// changes for websocket pushes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:  opts.Engine,
		traces:  opts.Traces,
		reports: report.NewGenerator(opts.Traces),
		hub:     NewHub(logger.Named("ws")),
		logger:  logger,
		port:    opts.Port,
		version: opts.Version,
		started: time.Now(),
	}

	s.unsubscribe = s.engine.Registry.Subscribe(s.onRegistryEvent)
	s.engine.Settings.OnChange(func(st model.Settings) {
		if s.hub.ClientCount() == 0 {
			return
		}
		s.hub.Broadcast(Message{
			Type:      MessageSettings,
			Timestamp: time.Now(),
			Data:      newSettingsView(st),
		})
	})
	return s
}

func (s *Server) onRegistryEvent(ev monitor.Event) {
	if s.hub.ClientCount() == 0 {
		return
	}
	snap := s.engine.Registry.Snapshot()
	s.hub.Broadcast(Message{
		Type:      MessageSnapshot,
		Event:     string(ev.Type),
		Timestamp: time.Now(),
		Data:      newSnapshotView(snap, s.engine.Settings.Load().Colors, false),
	})
}

// Handler returns the routed HTTP handler with logging, recovery and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.Dashboard)
	mux.HandleFunc("GET /api/targets", s.APIListTargets)
	mux.HandleFunc("POST /api/targets", s.APIAddTargets)
	mux.HandleFunc("GET /api/targets/{id}", s.APIGetTarget)
	mux.HandleFunc("DELETE /api/targets/{id}", s.APIRemoveTarget)
	mux.HandleFunc("POST /api/targets/{id}/toggle", s.APIToggleTarget)
	mux.HandleFunc("PUT /api/targets/{id}/name", s.APIRenameTarget)
	mux.HandleFunc("POST /api/targets/{id}/trace", s.APIStartTrace)
	mux.HandleFunc("GET /api/targets/{id}/chart.png", s.APIChart)
	mux.HandleFunc("GET /api/traces", s.APIGetTraces)
	mux.HandleFunc("GET /api/settings", s.APIGetSettings)
	mux.HandleFunc("PUT /api/settings", s.APIUpdateSettings)
	mux.HandleFunc("POST /api/probe", s.APIProbeNow)
	mux.HandleFunc("GET /api/status", s.APIGetStatus)
	mux.HandleFunc("GET /report", s.DownloadReport)
	mux.HandleFunc("GET /ws", s.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())

	return Chain(mux,
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger, "/metrics", "/ws"),
	)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server starting", zap.Int("port", s.port))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	return s.Stop()
}

// Stop shuts the server down and detaches it from the engine.
func (s *Server) Stop() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.logger.Info("web server stopped")
	return err
}
