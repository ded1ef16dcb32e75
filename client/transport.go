package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"classline/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrAckTimeout means an emit carried an ack_id but no reply arrived in time.
var ErrAckTimeout = errors.New("acknowledgement timed out")

// ErrDisconnected means the socket is not currently usable.
var ErrDisconnected = errors.New("socket disconnected")

// Transport is the bidirectional half of the SDK. The Socket implementation
// is the default; tests substitute their own.
type Transport interface {
	Connected() bool
	Emit(event string, payload interface{}) error
	EmitWithAck(ctx context.Context, event string, payload interface{}) (events.AckPayload, error)
	On(event string, handler func(payload json.RawMessage))
	Close() error
}

// Socket wraps a websocket connection speaking the envelope protocol. Emits
// that expect a reply carry a generated ack_id; the server answers with an
// "ack" event bearing the same id.
type Socket struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected atomic.Bool

	handlerMu sync.RWMutex
	handlers  map[string]func(payload json.RawMessage)

	pendingMu sync.Mutex
	pending   map[string]chan events.AckPayload
}

// Dial connects to the messaging socket, authenticating with the bearer
// token as a query parameter, and starts the read loop.
func Dial(ctx context.Context, baseURL, token string) (*Socket, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	s := &Socket{
		conn:     conn,
		handlers: make(map[string]func(payload json.RawMessage)),
		pending:  make(map[string]chan events.AckPayload),
	}
	s.connected.Store(true)
	go s.readLoop()
	return s, nil
}

func (s *Socket) Connected() bool {
	return s.connected.Load()
}

// On registers the handler for an inbound event, replacing any previous one.
func (s *Socket) On(event string, handler func(payload json.RawMessage)) {
	s.handlerMu.Lock()
	s.handlers[event] = handler
	s.handlerMu.Unlock()
}

// Emit sends an event without waiting for a reply.
func (s *Socket) Emit(event string, payload interface{}) error {
	if !s.Connected() {
		return ErrDisconnected
	}
	env, err := events.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return s.write(env)
}

// EmitWithAck sends an event and blocks until the matching ack arrives or
// ctx expires.
func (s *Socket) EmitWithAck(ctx context.Context, event string, payload interface{}) (events.AckPayload, error) {
	if !s.Connected() {
		return events.AckPayload{}, ErrDisconnected
	}
	env, err := events.NewEnvelope(event, payload)
	if err != nil {
		return events.AckPayload{}, err
	}
	env.AckID = uuid.New().String()

	reply := make(chan events.AckPayload, 1)
	s.pendingMu.Lock()
	s.pending[env.AckID] = reply
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, env.AckID)
		s.pendingMu.Unlock()
	}()

	if err := s.write(env); err != nil {
		return events.AckPayload{}, err
	}

	select {
	case ack := <-reply:
		return ack, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return events.AckPayload{}, ErrAckTimeout
		}
		return events.AckPayload{}, ctx.Err()
	}
}

func (s *Socket) Close() error {
	s.connected.Store(false)
	return s.conn.Close()
}

func (s *Socket) write(env events.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Socket) readLoop() {
	defer s.connected.Store(false)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if env.Event == events.EventAck && env.AckID != "" {
			var ack events.AckPayload
			if err := json.Unmarshal(env.Payload, &ack); err != nil {
				continue
			}
			s.pendingMu.Lock()
			reply, ok := s.pending[env.AckID]
			s.pendingMu.Unlock()
			if ok {
				reply <- ack
			}
			continue
		}

		s.handlerMu.RLock()
		handler, ok := s.handlers[env.Event]
		s.handlerMu.RUnlock()
		if ok {
			handler(env.Payload)
		}
	}
}
