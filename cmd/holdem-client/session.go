package main

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cardroom/holdemd/internal/server"
)

const (
	sessionWriteWait  = 10 * time.Second
	sessionSendBuffer = 64
	sessionReadBuffer = 256
)

// incoming is one decoded server frame, or the read error that ended the
// stream. A zero incoming means the stream closed cleanly.
type incoming struct {
	msg *server.Message
	err error
}

// session owns the websocket and pumps frames between the server and the
// model. The read pump is the only writer and closer of in, so the model can
// drain it from a command without racing the teardown.
type session struct {
	url    string
	logger *log.Logger

	ws  *websocket.Conn
	in  chan incoming
	out chan *server.Message

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newSession(rawURL string, logger *log.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		url:    rawURL,
		logger: logger.WithPrefix("session"),
		in:     make(chan incoming, sessionReadBuffer),
		out:    make(chan *server.Message, sessionSendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// connect dials the server and starts the pumps. http and https URLs are
// accepted and rewritten to the websocket scheme, and a bare host gets the
// /ws path appended.
func (s *session) connect() error {
	u, err := url.Parse(s.url)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	s.ws = ws

	go s.readPump()
	go s.writePump()

	s.logger.Info("connected", "url", u.String())
	return nil
}

// next blocks until the server sends a frame or the stream ends.
func (s *session) next() incoming { return <-s.in }

// send queues one frame for the server. It never blocks the UI: a full
// queue is reported as an error instead.
func (s *session) send(t server.MessageType, data any) error {
	msg, err := server.NewMessage(t, data)
	if err != nil {
		return err
	}
	select {
	case s.out <- msg:
		return nil
	case <-s.ctx.Done():
		return fmt.Errorf("connection closed")
	default:
		return fmt.Errorf("send queue full")
	}
}

// close tears the connection down. Safe to call more than once.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.ws != nil {
			deadline := time.Now().Add(time.Second)
			_ = s.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = s.ws.Close()
		}
		s.logger.Info("disconnected")
	})
}

func (s *session) readPump() {
	defer close(s.in)
	for {
		var msg server.Message
		if err := s.ws.ReadJSON(&msg); err != nil {
			select {
			case s.in <- incoming{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case s.in <- incoming{msg: &msg}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *session) writePump() {
	for {
		select {
		case msg, ok := <-s.out:
			if !ok {
				return
			}
			_ = s.ws.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.ws.WriteJSON(msg); err != nil {
				s.logger.Warn("write failed", "error", err)
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}
