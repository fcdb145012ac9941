package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/service/capture"
	"github.com/zhouzirui/mock-interview/backend/internal/service/reply"
	"github.com/zhouzirui/mock-interview/backend/internal/service/session"
	"github.com/zhouzirui/mock-interview/backend/internal/service/voice"
	"github.com/zhouzirui/mock-interview/backend/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 文本输入
type TextMessage struct {
	Text string `json:"text"`
}

// AudioMessage 麦克风音频
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
}

// LanguageMessage 切换回复语言
type LanguageMessage struct {
	Language string `json:"language"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type wsConn struct {
	conn *websocket.Conn
	id   string
	log  *logrus.Entry

	mu sync.Mutex
}

func (c *wsConn) send(kind string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{Type: kind, SessionID: c.id, Data: data, Timestamp: time.Now().Unix()}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.WithError(err).Debug("websocket write failed")
	}
}

func (c *wsConn) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

// handleWebSocket 语音对话：录音 → 识别 → 生成回复 → 播报
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	lang := reply.ParseLanguage(r.URL.Query().Get("language"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conv := h.opts.Conversations.Create(ctx, lang)
	ws := &wsConn{conn: conn, id: conv.ID, log: h.log.WithField("conversation", conv.ID)}

	bus := session.NewBus()
	events, unsubscribe := bus.Subscribe(session.DefaultSubscriberBuffer)
	coordinator := voice.NewCoordinator(voice.Options{
		Synth:     h.opts.Synth,
		Player:    session.NewBusPlayer(bus, conv.ID),
		Catalog:   h.opts.Catalog,
		Preferred: h.opts.PreferredVoice,
		Logger:    logrus.WithFields(logrus.Fields{"component": "voice", "conversation": conv.ID}),
	})

	c := &conversationConn{h: h, ws: ws, id: conv.ID, voice: coordinator}
	c.capture = capture.New(h.opts.Transcriber, c.respond, capture.Options{SessionID: conv.ID, Locale: lang.Locale()})

	defer func() {
		cancel()
		c.replies.Wait()
		c.capture.Wait()
		coordinator.Close()
		unsubscribe()
		bus.Close()
		_ = h.opts.Conversations.Delete(context.Background(), conv.ID)
		ws.log.Info("conversation closed")
	}()

	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	go utils.PingLoop(ctx, conn, h.pingPeriod, writeWait)
	go func() {
		for e := range events {
			ws.send("speech", e)
		}
	}()

	ws.send("connected", map[string]any{
		"conversationId": conv.ID,
		"language":       lang,
		"locale":         lang.Locale(),
		"speechInput":    c.capture.Available(),
		"replies":        h.opts.Conversations.Available(),
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.WithError(err).Warn("websocket read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.pongWait))

		if err := c.handle(ctx, &msg); err != nil {
			ws.sendError(err.Error())
		}
	}
}

type conversationConn struct {
	h       *Handler
	ws      *wsConn
	id      string
	voice   *voice.Coordinator
	capture *capture.Capture

	// 进行中的回复生成，关闭时等待
	replies sync.WaitGroup
}

func (c *conversationConn) handle(ctx context.Context, msg *inboundMessage) error {
	switch msg.Type {
	case "text":
		var t TextMessage
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			return errors.New("invalid text payload")
		}
		c.replies.Add(1)
		go func() {
			defer c.replies.Done()
			c.respond(ctx, t.Text)
		}()
		return nil

	case "audio":
		var a AudioMessage
		if err := json.Unmarshal(msg.Data, &a); err != nil {
			return errors.New("invalid audio payload")
		}
		return c.capture.Feed(a.AudioData)

	case "listen":
		if !c.capture.Available() {
			return errors.New("speech input unavailable")
		}
		c.ws.send("listening", map[string]bool{"listening": c.capture.Toggle(ctx)})
		return nil

	case "language":
		var l LanguageMessage
		if err := json.Unmarshal(msg.Data, &l); err != nil {
			return errors.New("invalid language payload")
		}
		lang := reply.ParseLanguage(l.Language)
		if err := c.h.opts.Conversations.SetLanguage(ctx, c.id, lang); err != nil {
			return err
		}
		c.capture.SetLocale(lang.Locale())
		c.ws.send("language", map[string]string{"language": string(lang), "locale": lang.Locale()})
		return nil

	case "stop":
		c.voice.Stop()
		return nil

	default:
		return fmt.Errorf("unsupported message type: %s", msg.Type)
	}
}

// respond 处理一条用户输入：既来自文本也来自语音识别
func (c *conversationConn) respond(ctx context.Context, text string) {
	c.ws.send("user", map[string]string{"text": text})

	answer, err := c.h.opts.Conversations.Respond(ctx, c.id, text)
	if err != nil {
		c.ws.log.WithError(err).Warn("reply failed")
		c.ws.sendError(err.Error())
		return
	}
	c.ws.send("assistant", map[string]string{"text": answer})

	conv, err := c.h.opts.Conversations.Get(ctx, c.id)
	if err != nil {
		return
	}
	c.voice.Speak(interview.Utterance{Text: answer, Locale: conv.Language.Locale()})
}
