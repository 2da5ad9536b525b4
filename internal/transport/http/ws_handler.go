package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"focus-session-service/internal/app"
	"focus-session-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

type WSHandler struct {
	hub      *app.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *app.Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		hub:    hub,
		logger: logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinPayload struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type pushQuestionPayload struct {
	QuestionText  string   `json:"questionText"`
	Mode          string   `json:"mode"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	TimerDuration int      `json:"timerDuration"`
}

type submitAnswerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	SubmitTime int64  `json:"submitTime"` // epoch ms
}

type signalRequest struct {
	Target string          `json:"target"`
	Signal json.RawMessage `json:"signal"`
	Type   string          `json:"type"`
}

type voiceCommandPayload struct {
	Transcript string `json:"transcript"`
}

type voiceCommandResult struct {
	Command      string `json:"command"`
	Transcript   string `json:"transcript"`
	TimerSeconds int    `json:"timerSeconds,omitempty"`
}

// connection is the per-socket state the read loop works on.
type connection struct {
	h             *WSHandler
	participantID string
	classroom     *app.Classroom
	joined        bool
	logger        *zap.Logger

	send       chan outboundMessage[any]
	writerDone chan struct{}
}

// emit queues a message for the writer; it gives up once the writer is gone.
func (c *connection) emit(typ string, payload any) bool {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
		return true
	case <-c.writerDone:
		return false
	}
}

func (c *connection) fail(err error) {
	c.emit(app.EventError, errorPayload{Message: err.Error()})
}

// ServeWS upgrades the request and runs the classroom protocol for one
// participant. The first message must be a join.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	classroom, err := h.hub.Current()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	c := &connection{
		h:             h,
		participantID: uuid.NewString(),
		classroom:     classroom,
		send:          make(chan outboundMessage[any], 32),
		writerDone:    make(chan struct{}),
	}
	c.logger = h.logger.With(zap.String("participant_id", c.participantID), zap.String("session_id", classroom.ID()))

	go func() {
		defer close(c.writerDone)
		for msg := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				c.logger.Debug("ws write error", zap.Error(err))
				return
			}
			if msg.Type == app.EventSessionEnded {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(writeWait))
				_ = conn.Close()
				return
			}
		}
	}()

	closeSignals := make(chan struct{})
	pumpDone := make(chan struct{})
	var cancelSub func()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !c.joined {
			if inbound.Type != "join" {
				c.fail(errors.New("join first"))
				continue
			}
			events, cancel, err := c.join(r.Context(), inbound.Payload)
			if err != nil {
				c.fail(err)
				continue
			}
			cancelSub = cancel
			go c.pump(events, closeSignals, pumpDone)
			continue
		}
		c.dispatch(r.Context(), inbound)
	}

	close(closeSignals)
	if c.joined {
		cancelSub()
		<-pumpDone
		c.classroom.Leave(context.WithoutCancel(r.Context()), c.participantID)
	}
	close(c.send)
	<-c.writerDone
}

func (c *connection) join(ctx context.Context, raw json.RawMessage) (<-chan app.Event, func(), error) {
	var payload joinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, errors.New("invalid join payload")
	}
	role, ok := domain.ParseRole(payload.Role)
	if !ok {
		return nil, nil, domain.ErrInvalidRole
	}
	if _, err := c.classroom.Join(ctx, c.participantID, payload.Name, role); err != nil {
		return nil, nil, err
	}
	events, cancel, err := c.classroom.Subscribe(c.participantID)
	if err != nil {
		c.classroom.Leave(ctx, c.participantID)
		return nil, nil, err
	}
	c.joined = true
	return events, cancel, nil
}

// pump forwards classroom events to the writer. A subscription closed by the
// classroom (not by us) means the session ended.
func (c *connection) pump(events <-chan app.Event, closeSignals <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for e := range events {
		if !c.emit(e.Type, e.Payload) {
			return
		}
	}
	select {
	case <-closeSignals:
	default:
		c.emit(app.EventSessionEnded, app.SessionEndedPayload{SessionID: c.classroom.ID()})
	}
}

func (c *connection) dispatch(ctx context.Context, inbound inboundMessage) {
	switch inbound.Type {
	case "join":
		var payload joinPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.fail(errors.New("invalid join payload"))
			return
		}
		p, _ := c.classroom.Participant(c.participantID)
		if _, err := c.classroom.Join(ctx, c.participantID, payload.Name, p.Role); err != nil {
			c.fail(err)
		}

	case "focus_update":
		var report domain.FocusReport
		if err := json.Unmarshal(inbound.Payload, &report); err != nil {
			c.fail(errors.New("invalid focus_update payload"))
			return
		}
		if err := c.classroom.ReportFocus(ctx, c.participantID, report); err != nil {
			c.fail(err)
		}

	case "push_question":
		var payload pushQuestionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.fail(errors.New("invalid push_question payload"))
			return
		}
		mode, ok := domain.ParseQuestionMode(payload.Mode)
		if !ok {
			c.fail(domain.ErrInvalidQuestion)
			return
		}
		_, err := c.classroom.PushQuestion(ctx, c.participantID, domain.QuestionSpec{
			Text:                 payload.QuestionText,
			Mode:                 mode,
			Options:              payload.Options,
			CorrectAnswer:        payload.CorrectAnswer,
			TimerDurationSeconds: payload.TimerDuration,
		})
		if err != nil {
			c.fail(err)
		}

	case "submit_answer":
		var payload submitAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.fail(errors.New("invalid submit_answer payload"))
			return
		}
		sub := app.Submission{QuestionID: payload.QuestionID, Answer: payload.Answer}
		if payload.SubmitTime > 0 {
			sub.SubmitTime = time.UnixMilli(payload.SubmitTime)
		}
		// the result itself arrives through the subscription
		if _, err := c.classroom.SubmitAnswer(ctx, c.participantID, sub); err != nil {
			c.fail(err)
		}

	case "signal":
		var payload signalRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.fail(errors.New("invalid signal payload"))
			return
		}
		if err := c.classroom.RelaySignal(c.participantID, payload.Target, app.SignalPayload{
			Signal: payload.Signal,
			Type:   payload.Type,
		}); err != nil {
			c.fail(err)
		}

	case "voice_command":
		var payload voiceCommandPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.fail(errors.New("invalid voice_command payload"))
			return
		}
		cmd, err := c.classroom.VoiceCommand(ctx, c.participantID, payload.Transcript)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit(app.EventVoiceCommandResult, voiceCommandResult{
			Command:      string(cmd),
			Transcript:   payload.Transcript,
			TimerSeconds: cmd.TimerSeconds(),
		})

	case "end_session":
		if _, err := c.h.hub.EndSession(ctx, c.participantID); err != nil {
			c.fail(err)
		}

	default:
		c.fail(errors.New("unsupported message type"))
	}
}
