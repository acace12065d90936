package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cardroom/holdemd/internal/room"
)

// Server is the websocket endpoint. It tracks live connections and owns
// their registration lifecycle; the protocol itself lives on Connection.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	service  *RoomService
	manager  *room.Manager
	logger   *log.Logger

	httpSrv *http.Server

	mu    sync.RWMutex
	conns map[*Connection]struct{}

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer builds the endpoint. Origin checks are left to whatever fronts
// the service in deployment.
func NewServer(addr string, service *RoomService, manager *room.Manager, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		service:    service,
		manager:    manager,
		logger:     logger.WithPrefix("server"),
		conns:      make(map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		ctx:        ctx,
		cancel:     cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.run()
	return s
}

// Start serves websocket upgrades on /ws and a health probe on /health. It
// blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and drops every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*Connection]struct{})
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}

	return s.httpSrv.Shutdown(ctx)
}

// ConnectionCount reports the registered connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) run() {
	for {
		select {
		case c := <-s.register:
			s.mu.Lock()
			s.conns[c] = struct{}{}
			n := len(s.conns)
			s.mu.Unlock()
			s.logger.Info("client connected", "connections", n)
		case c := <-s.unregister:
			s.mu.Lock()
			_, ok := s.conns[c]
			delete(s.conns, c)
			n := len(s.conns)
			s.mu.Unlock()
			if ok {
				c.Close()
				s.logger.Info("client disconnected", "connections", n)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	conn := NewConnection(ws, s.service, s.manager, s.logger.With("remote", ws.RemoteAddr().String()))
	select {
	case s.register <- conn:
	case <-s.ctx.Done():
		conn.Close()
		return
	}
	conn.Start()

	go func() {
		<-conn.Done()
		select {
		case s.unregister <- conn:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
