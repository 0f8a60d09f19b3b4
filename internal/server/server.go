// Package server exposes simulation sessions over websockets. Every
// connection owns an independent session: frames flow to the client once per
// tick and control messages flow back on the same socket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"earworm/internal/config"
	"earworm/internal/logging"
	"earworm/internal/session"
	"earworm/internal/wire"
)

// Server tracks open connections so they can be torn down together.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]context.CancelFunc
}

// New creates a server that builds sessions from cfg.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*websocket.Conn]context.CancelFunc),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler routes /ws to the session stream and /healthz to a liveness probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleStream)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close stops every session and closes every connection.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, cancel := range s.clients {
		cancel()
		conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) add(conn *websocket.Conn, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn] = cancel
}

func (s *Server) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.clients[conn]; ok {
		cancel()
		delete(s.clients, conn)
	}
	conn.Close()
}

func (s *Server) newSession() (*session.Session, error) {
	seed := s.cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return session.New(s.cfg.Settings(), rand.New(rand.NewSource(seed)))
}

// frameWriter serializes writes; gorilla connections allow one writer at a time.
type frameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *frameWriter) send(snap session.Snapshot) error {
	payload := wire.EncodeFrame(wire.FrameFromSnapshot(snap))

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.newSession()
	if err != nil {
		s.logger.Error("creating session", "error", err)
		http.Error(w, "invalid simulation settings", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.add(conn, cancel)
	defer s.remove(conn)

	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("client connected", "population", sess.Settings().Population)
	defer logger.Info("client disconnected")

	out := &frameWriter{conn: conn}

	// Send the current state immediately.
	if err := out.send(sess.Snapshot()); err != nil {
		logger.Warn("failed to write initial frame", "error", err)
		return
	}

	go func() {
		err := sess.Run(ctx, s.cfg.Server.TickInterval, func(snap session.Snapshot) {
			if err := out.send(snap); err != nil {
				logger.Warn("failed to write frame", "error", err)
				cancel()
				return
			}
			logger.Debug("tick",
				"tick", snap.Tick,
				"infected", snap.Stats.Infected,
				"resistant", snap.Stats.Resistant,
				"susceptible", snap.Stats.Susceptible,
				"elapsed", snap.Stats.Elapsed,
			)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("session stopped", "error", err)
		}
		// Unblock the read loop if the session ended first.
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("control stream read error", "error", err)
			}
			return
		}

		control, err := wire.DecodeControl(data)
		if err != nil {
			logger.Warn("unable to decode control update", "error", err)
			continue
		}

		if err := apply(sess, control); err != nil {
			logger.Warn("control rejected", "command", control.Command.String(), "error", err)
		} else {
			logger.Info("control applied", "command", control.Command.String())
		}

		if err := out.send(sess.Snapshot()); err != nil {
			logger.Warn("failed to write frame", "error", err)
			return
		}
	}
}

func apply(sess *session.Session, control wire.Control) error {
	switch control.Command {
	case wire.CommandStart:
		sess.Start()
	case wire.CommandPause:
		sess.Pause()
	case wire.CommandReset:
		return sess.Reset()
	case wire.CommandUpdate:
		return sess.Update(control.Apply(sess.Settings()))
	}
	return nil
}
