package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

const closeGrace = time.Second

var _ ports.StreamDialer = (*WSDialer)(nil)

// WSDialer opens the server's WebSocket endpoint.
type WSDialer struct {
	url    string
	dialer *websocket.Dialer
}

// NewWSDialer creates a dialer for baseURL + /events/ws.
func NewWSDialer(baseURL string) (*WSDialer, error) {
	target, err := endpoint(baseURL, wsPath, true)
	if err != nil {
		return nil, err
	}
	return &WSDialer{url: target, dialer: websocket.DefaultDialer}, nil
}

func (d *WSDialer) Dial(ctx context.Context) (ports.Stream, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open %s: status %d: %w", d.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("open %s: %w", d.url, err)
	}

	s := &wsStream{conn: conn, done: make(chan struct{})}
	// Closing the connection is the only way to unblock ReadMessage.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Recv returns the next text or binary frame.
func (s *wsStream) Recv() ([]byte, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read websocket: %w", err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
