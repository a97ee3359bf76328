package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/report"
)

var (
	errInternal       = errors.New("internal server error")
	errTargetNotFound = errors.New("target not found")
	errNoTraceArchive = errors.New("trace archive not available")
)

type addTargetsRequest struct {
	Input string `json:"input"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// Dashboard serves the HTML dashboard.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	settings := s.engine.Settings.Load()
	data := map[string]any{
		"Version":  s.version,
		"Settings": newSettingsView(settings),
		"Snapshot": newSnapshotView(s.engine.Registry.Snapshot(), settings.Colors, false),
	}

	var buf bytes.Buffer
	if err := getDashboardTemplate().Execute(&buf, data); err != nil {
		s.logger.Error("failed to render dashboard", zap.Error(err))
		writeError(w, errInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// APIListTargets returns all targets in insertion order.
func (s *Server) APIListTargets(w http.ResponseWriter, r *http.Request) {
	withHistory := r.URL.Query().Get("history") == "true"
	writeJSON(w, http.StatusOK, newSnapshotView(s.engine.Registry.Snapshot(), s.engine.Settings.Load().Colors, withHistory))
}

// APIGetTarget returns one target including its probe history.
func (s *Server) APIGetTarget(w http.ResponseWriter, r *http.Request) {
	t, ok := s.engine.Registry.Get(model.TargetID(r.PathValue("id")))
	if !ok {
		writeError(w, errTargetNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newTargetView(t, s.engine.Settings.Load().Colors, true))
}

// APIAddTargets parses free-form input and adds every address it yields.
func (s *Server) APIAddTargets(w http.ResponseWriter, r *http.Request) {
	var req addTargetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	ids := s.engine.AddTargets(req.Input)
	if len(ids) == 0 {
		writeError(w, errors.New("no valid targets in input"), http.StatusBadRequest)
		return
	}

	snap := s.engine.Registry.Snapshot()
	colors := s.engine.Settings.Load().Colors
	added := make([]TargetView, 0, len(ids))
	for _, id := range ids {
		if t, ok := snap.Get(id); ok {
			added = append(added, newTargetView(t, colors, false))
		}
	}
	writeJSON(w, http.StatusCreated, added)
}

// APIRemoveTarget removes a target.
func (s *Server) APIRemoveTarget(w http.ResponseWriter, r *http.Request) {
	id := model.TargetID(r.PathValue("id"))
	if _, ok := s.engine.Registry.Get(id); !ok {
		writeError(w, errTargetNotFound, http.StatusNotFound)
		return
	}
	s.engine.Registry.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// APIToggleTarget pauses or resumes a target.
func (s *Server) APIToggleTarget(w http.ResponseWriter, r *http.Request) {
	id := model.TargetID(r.PathValue("id"))
	if _, ok := s.engine.Registry.Get(id); !ok {
		writeError(w, errTargetNotFound, http.StatusNotFound)
		return
	}
	s.engine.Registry.Toggle(id)
	s.writeTarget(w, id)
}

// APIRenameTarget sets or clears the label of a target.
func (s *Server) APIRenameTarget(w http.ResponseWriter, r *http.Request) {
	id := model.TargetID(r.PathValue("id"))
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if _, ok := s.engine.Registry.Get(id); !ok {
		writeError(w, errTargetNotFound, http.StatusNotFound)
		return
	}
	s.engine.Registry.Rename(id, req.Name)
	s.writeTarget(w, id)
}

// APIStartTrace starts a background path trace.
func (s *Server) APIStartTrace(w http.ResponseWriter, r *http.Request) {
	id := model.TargetID(r.PathValue("id"))
	t, ok := s.engine.Registry.Get(id)
	if !ok {
		writeError(w, errTargetNotFound, http.StatusNotFound)
		return
	}
	if !s.engine.StartTrace(id) {
		writeError(w, fmt.Errorf("trace already running for %s", t.Address), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": model.TraceRunning.String()})
}

// APIChart renders the latency chart of a target as PNG.
func (s *Server) APIChart(w http.ResponseWriter, r *http.Request) {
	t, ok := s.engine.Registry.Get(model.TargetID(r.PathValue("id")))
	if !ok {
		writeError(w, errTargetNotFound, http.StatusNotFound)
		return
	}

	opts := report.ChartOptions{
		Width:         queryInt(r, "width", 1200, 200, 4000),
		Height:        queryInt(r, "height", 400, 100, 2000),
		WarnThreshold: s.engine.Settings.Load().WarnThreshold,
	}

	var buf bytes.Buffer
	if err := report.RenderLatencyChart(&buf, t, opts); err != nil {
		if errors.Is(err, report.ErrNotEnoughData) {
			writeError(w, err, http.StatusNotFound)
			return
		}
		s.logger.Error("failed to render chart", zap.String("target", t.Address), zap.Error(err))
		writeError(w, errInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// APIGetTraces returns archived traces of a target, newest first.
func (s *Server) APIGetTraces(w http.ResponseWriter, r *http.Request) {
	id := model.TargetID(r.URL.Query().Get("target"))
	if id == "" {
		writeError(w, errors.New("missing target parameter"), http.StatusBadRequest)
		return
	}
	if s.traces == nil {
		writeError(w, errNoTraceArchive, http.StatusNotFound)
		return
	}

	traces, err := s.traces.History(id, queryInt(r, "limit", 20, 1, 200))
	if err != nil {
		s.logger.Error("failed to load traces", zap.String("target", string(id)), zap.Error(err))
		writeError(w, errInternal, http.StatusInternalServerError)
		return
	}
	if traces == nil {
		traces = []model.TraceResult{}
	}
	writeJSON(w, http.StatusOK, traces)
}

// APIGetSettings returns the current settings.
func (s *Server) APIGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSettingsView(s.engine.Settings.Load()))
}

// APIUpdateSettings validates and applies new settings.
func (s *Server) APIUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	next := req.settings(s.engine.Settings.Load())
	if err := s.engine.UpdateSettings(next); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInvalidSettings) {
			status = http.StatusBadRequest
		}
		writeError(w, err, status)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(s.engine.Settings.Load()))
}

// APIProbeNow requests an immediate monitoring cycle.
func (s *Server) APIProbeNow(w http.ResponseWriter, r *http.Request) {
	s.engine.Scheduler.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// APIGetStatus returns engine status.
func (s *Server) APIGetStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Registry.Snapshot()
	active, paused := snap.Counts()

	writeJSON(w, http.StatusOK, map[string]any{
		"running":          s.engine.Scheduler.Running(),
		"version":          s.version,
		"uptime":           time.Since(s.started).Truncate(time.Second).String(),
		"targets":          len(snap.Targets),
		"active":           active,
		"paused":           paused,
		"history_cap":      snap.HistoryCap,
		"snapshot_version": snap.Version,
		"ws_clients":       s.hub.ClientCount(),
	})
}

// DownloadReport generates a Markdown report of the current state.
func (s *Server) DownloadReport(w http.ResponseWriter, r *http.Request) {
	data, err := s.reports.Generate(s.engine.Registry.Snapshot(), s.engine.Settings.Load())
	if err != nil {
		s.logger.Error("failed to generate report", zap.Error(err))
		writeError(w, errInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=linkpulse_report.md")
	w.Write([]byte(report.FormatMarkdown(data)))
}

// handleStream upgrades to a websocket, sends the current snapshot and then
// pushes a new one after every registry change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, 64),
		logger: s.logger,
	}
	client.send <- Message{
		Type:      MessageSnapshot,
		Timestamp: time.Now(),
		Data:      newSnapshotView(s.engine.Registry.Snapshot(), s.engine.Settings.Load().Colors, false),
	}
	s.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	s.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

func (s *Server) writeTarget(w http.ResponseWriter, id model.TargetID) {
	t, ok := s.engine.Registry.Get(id)
	if !ok {
		writeError(w, errTargetNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newTargetView(t, s.engine.Settings.Load().Colors, false))
}

// queryInt reads an integer query parameter clamped to [lo, hi].
func queryInt(r *http.Request, name string, def, lo, hi int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return min(max(v, lo), hi)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error, status int) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
