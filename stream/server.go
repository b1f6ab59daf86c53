package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	lob "github.com/lobforge/lobsim"
	"github.com/lobforge/lobsim/protocol"
)

// ServerConfig carries the broadcaster's runtime settings.
type ServerConfig struct {
	Addr           string
	TargetHz       float64
	MaxSubscribers int
}

// Server broadcasts book snapshots over websocket. It samples at the target
// cadence, encodes each snapshot once, and fans the frame out through the
// hub.
type Server struct {
	cfg     ServerConfig
	sampler *Sampler
	hub     *Hub
	ser     protocol.Serializer
	httpSrv *http.Server

	upgrader websocket.Upgrader
}

// NewServer wires a broadcaster around a sampler.
func NewServer(cfg ServerConfig, sampler *Sampler) *Server {
	s := &Server{
		cfg:     cfg,
		sampler: sampler,
		hub:     NewHub(cfg.MaxSubscribers),
		ser:     protocol.NewMsgpackSerializer(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the stream is public simulation data
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Hub exposes the subscriber registry, mainly for tests and stats.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub.Count() >= s.cfg.MaxSubscribers {
		// reject before the upgrade so the client sees a clean HTTP error
		http.Error(w, "subscriber limit reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lob.Logger().Warn("websocket upgrade failed", "err", err)
		return
	}

	if _, err := s.hub.Register(conn); err != nil {
		lob.Logger().Warn("subscriber rejected", "err", err)
		conn.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// Run serves until ctx is cancelled, broadcasting snapshots at the target
// cadence. It returns the first fatal error, or nil on clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		lob.Logger().Info("broadcaster listening", "addr", s.cfg.Addr, "hz", s.cfg.TargetHz)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	interval := time.Duration(float64(time.Second) / s.cfg.TargetHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case err := <-errCh:
			s.hub.Close()
			return err
		case <-ticker.C:
			s.broadcastOnce()
		}
	}
}

// broadcastOnce samples, encodes once, and fans out.
func (s *Server) broadcastOnce() {
	if s.hub.Count() == 0 {
		return
	}

	snap := s.sampler.Sample()
	frame, err := s.ser.Marshal(snap)
	if err != nil {
		lob.Logger().Error("snapshot encode failed", "err", err)
		return
	}
	s.hub.Broadcast(frame)
}

func (s *Server) shutdown() error {
	// let in-flight frames reach their subscribers before pulling connections
	s.hub.Shutdown(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
