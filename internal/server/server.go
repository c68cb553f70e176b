package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
	"netwatch/internal/engine"
	"netwatch/internal/sink"
)

const defaultLookback = 24 * time.Hour

// Server exposes the engine's pull surface and mutators over HTTP, the live
// event streams over /ws, and prometheus metrics over /metrics.
type Server struct {
	httpServer *http.Server
	engine     *engine.Engine
	hub        *sink.Hub
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, eng *engine.Engine, hub *sink.Hub, logger *zap.Logger) *Server {
	s := &Server{
		engine: eng,
		hub:    hub,
		logger: logger.With(zap.String("component", "server")),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.HandleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/statistics", s.handleStatistics)
	mux.HandleFunc("/api/targets", s.handleTargets)
	mux.HandleFunc("/api/targets/primary", s.handlePrimaryTarget)
	mux.HandleFunc("/api/sites", s.handleSites)
	mux.HandleFunc("/api/sites/statuses", s.handleSiteStatuses)
	mux.HandleFunc("/api/vpn", s.handleVPN)
	mux.HandleFunc("/api/vpn/acknowledge", s.handleAcknowledge)
	mux.HandleFunc("/api/window", s.handleWindow)
	mux.HandleFunc("/api/threshold", s.handleThreshold)
	return mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()
	s.logger.Info("http server started", zap.String("addr", s.httpServer.Addr))
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	target := r.URL.Query().Get("target")
	lookback, err := parseLookback(r.URL.Query().Get("lookback"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	window, err := s.engine.GetPingHistory(target, lookback)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, window)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	target := r.URL.Query().Get("target")
	lookback, err := parseLookback(r.URL.Query().Get("lookback"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.engine.GetStatistics(target, lookback)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"targets": s.engine.GetTargets(),
			"primary": s.engine.GetPrimaryTarget(),
		})
	case http.MethodPost:
		var req struct {
			Target string `json:"target"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.engine.AddTarget(req.Target); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		target := r.URL.Query().Get("target")
		if err := s.engine.RemoveTarget(target); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePrimaryTarget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Target string `json:"target"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetPrimaryTarget(req.Target); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.engine.GetSiteMonitors())
	case http.MethodPost:
		var monitor domain.SiteMonitor
		if err := decodeBody(r, &monitor); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.engine.AddSiteMonitor(monitor); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if err := s.engine.RemoveSiteMonitor(r.URL.Query().Get("url")); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSiteStatuses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.GetSiteStatuses())
}

func (s *Server) handleVPN(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"settings":      s.engine.GetVPNSettings(),
			"identity":      s.engine.GetIdentity(),
			"pending_alert": s.engine.HasPendingIPChange(),
		})
	case http.MethodPut:
		var vpn config.VPNSettings
		if err := decodeBody(r, &vpn); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.engine.SetVPNSettings(vpn); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.engine.AcknowledgeIPChange()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.SetWindowVisible(req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"threshold_ms": s.engine.GetAlertThreshold().Milliseconds(),
		})
	case http.MethodPut:
		var req struct {
			ThresholdMS int64 `json:"threshold_ms"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.engine.SetAlertThreshold(time.Duration(req.ThresholdMS) * time.Millisecond); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func parseLookback(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultLookback, nil
	}
	lookback, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("lookback must be a duration like 5m or 1h")
	}
	if lookback <= 0 {
		return 0, errors.New("lookback must be positive")
	}
	return lookback, nil
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
