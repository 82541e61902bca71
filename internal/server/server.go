// Package server is the local dashboard: survey list, rendered reports,
// downloads and live analysis progress.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bobmcallan/surveylens/internal/app"
	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/services/monitor"
)

// Server wraps the HTTP server and application reference.
type Server struct {
	app    *app.App
	server *http.Server
	logger *common.Logger
	hub    *ProgressHub

	// ctx outlives requests; analysis runs started from the dashboard use it
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	controllers map[string]*monitor.Controller
	closed      bool
}

// NewServer creates the dashboard server and starts its progress hub.
func NewServer(a *app.App) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:         a,
		ctx:         ctx,
		cancel:      cancel,
		logger:      a.Logger,
		hub:         NewProgressHub(a.Logger),
		controllers: make(map[string]*monitor.Controller),
	}
	go s.hub.Run()

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, a.Logger)

	host := a.Config.Server.Host
	port := a.Config.Server.Port

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Hub returns the progress hub.
func (s *Server) Hub() *ProgressHub {
	return s.hub
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting dashboard server")
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, closes every polling controller and
// stops the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.cancel()
	s.closeControllers()
	s.hub.Stop()
	return err
}

// controller returns the survey's controller, creating it on first use.
// Nil after shutdown.
func (s *Server) controller(surveyID string) *monitor.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if c, ok := s.controllers[surveyID]; ok {
		return c
	}
	c := s.app.NewController(surveyID, s.hub.Observer(surveyID))
	s.controllers[surveyID] = c
	return c
}

func (s *Server) closeControllers() {
	s.mu.Lock()
	s.closed = true
	controllers := s.controllers
	s.controllers = make(map[string]*monitor.Controller)
	s.mu.Unlock()

	for id, c := range controllers {
		c.Close()
		s.logger.Debug().Str("survey_id", id).Msg("Controller closed")
	}
}
