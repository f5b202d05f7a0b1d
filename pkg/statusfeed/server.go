// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statusfeed

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Thermoquad/dslink/pkg/dsconfig"
	"github.com/Thermoquad/dslink/pkg/protocol"
	"github.com/Thermoquad/dslink/pkg/station"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

// Path is where the feed is served
const Path = "/feed"

const (
	writeTimeout = 2 * time.Second
	clientQueue  = 8
)

// Server broadcasts snapshots to every connected monitor and applies the
// commands monitors send back. It implements station.Publisher and
// http.Handler.
type Server struct {
	proto  *protocol.Protocol
	store  *dsconfig.Store
	logger hclog.Logger

	username string
	password string
	readOnly bool

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server's logger
func WithLogger(l hclog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBasicAuth requires HTTP Basic credentials on the upgrade request
func WithBasicAuth(username, password string) Option {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// WithReadOnly ignores every command from monitors
func WithReadOnly() Option {
	return func(s *Server) {
		s.readOnly = true
	}
}

// NewServer creates a feed over proto and store
func NewServer(proto *protocol.Protocol, store *dsconfig.Store, opts ...Option) *Server {
	s := &Server{
		proto:   proto,
		store:   store,
		logger:  hclog.NewNullLogger(),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("statusfeed")
	return s
}

// Clients returns the number of connected monitors
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Publish encodes a snapshot and queues it for every client. Slow clients
// miss snapshots rather than stall the driver.
func (s *Server) Publish(sample station.Sample) {
	data, err := BuildSnapshot(s.proto, s.store.State(), sample).Encode()
	if err != nil {
		s.logger.Error("snapshot dropped", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = data
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.username == "" && s.password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) == 1
	return userOK && passOK
}

// ServeHTTP upgrades the request and streams snapshots until the client leaves
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="dslink"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientQueue),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.last != nil {
		c.send <- s.last
	}
	s.mu.Unlock()
	s.logger.Info("monitor connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c, r.RemoteAddr)

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
	s.logger.Info("monitor disconnected", "remote", r.RemoteAddr)
}

// readLoop applies commands from the client until the connection ends.
// Malformed commands are logged and skipped.
func (s *Server) readLoop(c *client, remote string) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		cmd, err := DecodeCommand(data)
		if err != nil {
			s.logger.Warn("bad command", "remote", remote, "error", err)
			continue
		}
		if s.readOnly {
			s.logger.Warn("command ignored on read-only feed", "remote", remote, "action", string(cmd.Action))
			continue
		}
		s.apply(cmd.Action, remote)
	}
}

//////////////////////////////////////////////////////////////
// Operator commands
//////////////////////////////////////////////////////////////

func (s *Server) apply(action Action, remote string) {
	logger := s.logger.With("remote", remote, "action", string(action))

	switch action {
	case ActionEnable:
		s.store.SetEnabled(true)
		if !s.store.IsEnabled() {
			logger.Warn("enable refused while emergency stopped")
			return
		}
	case ActionDisable:
		s.store.SetEnabled(false)
	case ActionEStop:
		s.store.SetEmergencyStopped(true)
	case ActionClearEStop:
		s.store.SetEmergencyStopped(false)
	case ActionReboot:
		s.proto.RebootRobot()
	case ActionRestartCode:
		s.proto.RestartRobotCode()
	}
	logger.Info("operator command applied")
}

func (s *Server) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.close()
				return
			}
		}
	}
}

// ListenAndServe serves the feed on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve serves the feed on l until ctx is cancelled
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeAll()
	}()

	s.logger.Info("feed listening", "address", l.Addr().String(), "path", Path)
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("feed server failed: %w", err)
	}
	return nil
}

// closeAll drops every client; hijacked websocket connections are not
// closed by http.Server.Shutdown
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.close()
	}
}
