// Package server exposes Intcode engines over the network and to editors.
//
// MachineServer serves the intcode.v1.MachineService procedures with
// Connect, gRPC and gRPC-Web on one plaintext HTTP/2 port. LspServer is a
// language server for program files.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/tliron/commonlog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chazu/intcode/store"
)

var log = commonlog.GetLogger("intcode.server")

// MachineServer is the HTTP server wrapping a MachineService.
type MachineServer struct {
	cfg      Config
	sessions *SessionStore
	store    *store.Store
	mux      *http.ServeMux
	http     *http.Server

	stopSweeper func()
}

// ServerOption configures a MachineServer.
type ServerOption func(*MachineServer)

// WithStore enables Save and Restore backed by st.
func WithStore(st *store.Store) ServerOption {
	return func(s *MachineServer) { s.store = st }
}

// New creates a MachineServer and starts its session sweeper.
func New(cfg Config, opts ...ServerOption) *MachineServer {
	s := &MachineServer{
		cfg:      cfg,
		sessions: NewSessionStore(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	svc := NewMachineService(s.sessions, s.store, cfg)
	path, handler := NewMachineServiceHandler(svc)
	s.mux.Handle(path, handler)

	if cfg.SessionTTL > 0 {
		interval := cfg.SweepInterval
		if interval <= 0 {
			interval = cfg.SessionTTL
		}
		s.stopSweeper = s.sessions.StartSweeper(interval, cfg.SessionTTL)
	}

	return s
}

// Sessions returns the server's session store.
func (s *MachineServer) Sessions() *SessionStore {
	return s.sessions
}

// Handler returns the root handler. It accepts HTTP/1.1 and cleartext
// HTTP/2, which gRPC clients need.
func (s *MachineServer) Handler() http.Handler {
	return h2c.NewHandler(s.mux, &http2.Server{})
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *MachineServer) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown is called.
func (s *MachineServer) Serve(l net.Listener) error {
	s.http = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	addr := l.Addr().String()
	log.Infof("intcode machine server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, MachineServiceRunProcedure)
	log.Infof("  gRPC (binary):       grpc://%s", addr)

	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones, then
// releases all sessions.
func (s *MachineServer) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.Stop()
	return err
}

// Stop releases all sessions and stops the sweeper.
func (s *MachineServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}
	s.sessions.CloseAll()
}
