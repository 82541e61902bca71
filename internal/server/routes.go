package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/surveylens/internal/common"
)

// registerRoutes sets up all dashboard routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/ws", s.handleWS)

	// Dashboard
	mux.HandleFunc("/{$}", s.handleSurveyList)
	mux.HandleFunc("/surveys/{id}", s.handleSurveyReport)
	mux.HandleFunc("/surveys/{id}/charts/{chart}", s.handleChart)
	mux.HandleFunc("/surveys/{id}/export/{format}", s.handleExportDownload)
	mux.HandleFunc("/surveys/{id}/export", s.handleExportPublish)
	mux.HandleFunc("/surveys/{id}/analyze", s.handleAnalyze)
}

// healthResponse reports the dashboard and, when reachable, the backend.
type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Uptime        string `json:"uptime"`
	Backend       string `json:"backend"`
	BackendStatus string `json:"backend_status,omitempty"`
	BackendError  string `json:"backend_error,omitempty"`
	Clients       int    `json:"ws_clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	resp := healthResponse{
		Status:  "ok",
		Version: common.GetVersion(),
		Uptime:  time.Since(s.app.StartupTime).Round(time.Second).String(),
		Backend: s.app.Client.BaseURL(),
		Clients: s.hub.ClientCount(),
	}
	if h, err := s.app.Client.Health(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.BackendError = err.Error()
	} else {
		resp.BackendStatus = h.Status
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.Version,
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	s.hub.ServeWS(w, r)
}
