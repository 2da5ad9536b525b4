// Package wsclient is the participant side of the classroom socket, used by
// the focus tracker to push its reports.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"focus-session-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("reporter closed")

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Reporter joins a classroom as a student and forwards focus reports. It
// reconnects lazily: a failed write drops the socket and the next Report dials
// again.
type Reporter struct {
	url    string
	name   string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewReporter(url, name string, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		url:    url,
		name:   name,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger: logger.Named("reporter"),
	}
}

// Report sends one focus_update, joining first if there is no live socket.
func (r *Reporter) Report(ctx context.Context, report domain.FocusReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.conn == nil {
		if err := r.connectLocked(ctx); err != nil {
			return err
		}
	}
	if err := r.writeLocked(ctx, outbound{Type: "focus_update", Payload: report}); err != nil {
		r.dropLocked()
		return err
	}
	return nil
}

// Close leaves the classroom.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.conn == nil {
		return nil
	}
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	r.dropLocked()
	return nil
}

func (r *Reporter) connectLocked(ctx context.Context) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("dial classroom: %w", err)
	}
	r.conn = conn
	if err := r.writeLocked(ctx, outbound{Type: "join", Payload: map[string]string{
		"name": r.name,
		"role": string(domain.RoleStudent),
	}}); err != nil {
		r.dropLocked()
		return err
	}
	go r.drain(conn)
	r.logger.Info("joined classroom", zap.String("url", r.url))
	return nil
}

// drain reads and discards broadcasts so the server never blocks on us. Server
// errors are logged.
func (r *Reporter) drain(conn *websocket.Conn) {
	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			r.mu.Lock()
			if r.conn == conn {
				r.dropLocked()
			}
			r.mu.Unlock()
			return
		}
		switch msg.Type {
		case "error":
			r.logger.Warn("server rejected message", zap.ByteString("payload", msg.Payload))
		case "session_ended":
			r.logger.Info("session ended, will rejoin on next report")
		}
	}
}

func (r *Reporter) writeLocked(ctx context.Context, msg outbound) error {
	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = r.conn.SetWriteDeadline(deadline)
	return r.conn.WriteJSON(msg)
}

func (r *Reporter) dropLocked() {
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
}
