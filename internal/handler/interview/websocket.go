package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/service/landmark"
	"github.com/zhouzirui/mock-interview/backend/internal/service/session"
	"github.com/zhouzirui/mock-interview/backend/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FrameMessage 浏览器端检测到的一帧人脸关键点
type FrameMessage struct {
	Landmarks []interview.Point `json:"landmarks"`
	Error     string            `json:"error,omitempty"`
}

// CameraMessage 摄像头可用性
type CameraMessage struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// AudioMessage 一段麦克风音频
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
}

// CommandMessage 会话控制指令
type CommandMessage struct {
	Name   string `json:"name"`
	Text   string `json:"text,omitempty"`
	Role   string `json:"role,omitempty"`
	RoleID string `json:"roleId,omitempty"`
	Locale string `json:"locale,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsConn 串行化写操作，gorilla 连接不支持并发写
type wsConn struct {
	conn      *websocket.Conn
	sessionID string
	log       *logrus.Entry

	mu sync.Mutex
}

func (c *wsConn) send(kind string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{Type: kind, SessionID: c.sessionID, Data: data, Timestamp: time.Now().Unix()}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.WithError(err).Debug("websocket write failed")
	}
}

func (c *wsConn) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

// handleWebSocket 处理会话的双向连接：上行关键点、音频与指令，下行会话事件
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	handle, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	id := handle.Controller.ID()
	ws := &wsConn{conn: conn, sessionID: id, log: h.log.WithField("session", id)}
	ws.log.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	events, unsubscribe := handle.Controller.Subscribe()
	defer unsubscribe()

	go utils.PingLoop(ctx, conn, pingPeriod, writeWait)
	go forwardEvents(ctx, ws, events)

	if snap, err := handle.Controller.Snapshot(ctx); err == nil {
		ws.send("snapshot", snap)
	}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.WithError(err).Warn("websocket read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.handleMessage(ctx, ws, handle, &msg); err != nil {
			ws.sendError(err.Error())
		}
	}
}

func forwardEvents(ctx context.Context, ws *wsConn, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ws.send("event", e)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, ws *wsConn, handle *session.Handle, msg *inboundMessage) error {
	switch msg.Type {
	case "frame":
		var f FrameMessage
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			return errors.New("invalid frame payload")
		}
		frame := landmark.Frame{Landmarks: f.Landmarks}
		if f.Error != "" {
			frame.Err = errors.New(f.Error)
		}
		handle.Feed.Push(frame)
		return nil

	case "camera":
		var c CameraMessage
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			return errors.New("invalid camera payload")
		}
		if c.Available {
			handle.Feed.MarkUnavailable("")
			return nil
		}
		reason := c.Reason
		if reason == "" {
			reason = "camera unavailable"
		}
		handle.Feed.MarkUnavailable(reason)
		return nil

	case "audio":
		var a AudioMessage
		if err := json.Unmarshal(msg.Data, &a); err != nil {
			return errors.New("invalid audio payload")
		}
		return handle.Capture.Feed(a.AudioData)

	case "listen":
		if !handle.Capture.Available() {
			return errors.New("speech input unavailable")
		}
		listening := handle.Capture.Toggle(ctx)
		ws.send("listening", map[string]bool{"listening": listening})
		return nil

	case "command":
		var cmd CommandMessage
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return errors.New("invalid command payload")
		}
		snap, err := h.runCommand(ctx, handle, cmd)
		if err != nil {
			return err
		}
		ws.send("snapshot", snap)
		return nil

	default:
		return fmt.Errorf("unsupported message type: %s", msg.Type)
	}
}

func (h *Handler) runCommand(ctx context.Context, handle *session.Handle, cmd CommandMessage) (interview.Session, error) {
	c := handle.Controller
	switch cmd.Name {
	case "intake":
		return c.BeginIntake(ctx)
	case "start":
		in, err := h.resolveRole(startRequest{Role: cmd.Role, RoleID: cmd.RoleID})
		if err != nil {
			return interview.Session{}, err
		}
		return c.Start(ctx, in)
	case "advance":
		return c.Advance(ctx)
	case "repeat":
		return c.Repeat(ctx)
	case "cancel":
		return c.Cancel(ctx)
	case "dismiss":
		return c.Dismiss(ctx)
	case "answer":
		return c.Answer(ctx, cmd.Text, interview.AnswerTyped)
	case "locale":
		if cmd.Locale != "" {
			handle.Capture.SetLocale(cmd.Locale)
		}
		return c.Snapshot(ctx)
	default:
		return interview.Session{}, fmt.Errorf("unsupported command: %s", cmd.Name)
	}
}

