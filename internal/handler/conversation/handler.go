package conversation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/service/capture"
	"github.com/zhouzirui/mock-interview/backend/internal/service/conversation"
	"github.com/zhouzirui/mock-interview/backend/internal/service/reply"
	"github.com/zhouzirui/mock-interview/backend/internal/service/voice"
	"github.com/zhouzirui/mock-interview/backend/pkg/utils"
)

const maxJSONBytes = 64 << 10

// Streamer 流式生成职业建议
type Streamer interface {
	Stream(ctx context.Context, lang reply.Language, history []reply.Turn, message string) (*schema.StreamReader[*schema.Message], error)
}

// Options 对话处理器依赖，除 Conversations 外均可为空
type Options struct {
	Conversations  *conversation.Service
	Streamer       Streamer
	Transcriber    capture.Transcriber
	Synth          voice.Synthesizer
	Catalog        *voice.Catalog
	PreferredVoice string
}

// Handler 职业语音对话的HTTP与WebSocket处理器
type Handler struct {
	opts     Options
	upgrader websocket.Upgrader
	log      *logrus.Entry

	pongWait   time.Duration
	pingPeriod time.Duration
}

// New 创建对话处理器
func New(opts Options) *Handler {
	return &Handler{
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log:        logrus.WithField("component", "conversation-handler"),
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/conversation", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Post("/advice", h.handleAdvice)
		r.Get("/ws", h.handleWebSocket)
		r.Get("/{conversationID}", h.handleGet)
		r.Delete("/{conversationID}", h.handleDelete)
		r.Post("/{conversationID}/messages", h.handleMessage)
	})
}

type createRequest struct {
	Language string `json:"language"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload createRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, maxJSONBytes, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	conv := h.opts.Conversations.Create(r.Context(), reply.ParseLanguage(payload.Language))
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := h.opts.Conversations.Get(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.opts.Conversations.Delete(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message  string `json:"message"`
		Language string `json:"language,omitempty"`
	}
	if err := utils.DecodeJSON(w, r, maxJSONBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "conversationID")
	if payload.Language != "" {
		if err := h.opts.Conversations.SetLanguage(ctx, id, reply.ParseLanguage(payload.Language)); err != nil {
			h.respondError(w, err)
			return
		}
	}

	answer, err := h.opts.Conversations.Respond(ctx, id, payload.Message)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": answer})
}

// handleAdvice 以SSE流式返回单轮建议，不保存历史
func (h *Handler) handleAdvice(w http.ResponseWriter, r *http.Request) {
	if h.opts.Streamer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}

	var payload struct {
		Language string       `json:"language"`
		Message  string       `json:"message"`
		History  []reply.Turn `json:"history,omitempty"`
	}
	if err := utils.DecodeJSON(w, r, maxJSONBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	stream, err := h.opts.Streamer.Stream(ctx, reply.ParseLanguage(payload.Language), payload.History, payload.Message)
	if err != nil {
		h.respondError(w, err)
		return
	}
	defer stream.Close()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			h.log.WithError(recvErr).Warn("advice stream failed")
			_ = utils.SendSSEEvent(w, flusher, "error", map[string]string{"message": "generation failed"})
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if err := utils.SendSSEEvent(w, flusher, "delta", map[string]string{"text": chunk.Content}); err != nil {
			return
		}
	}
	_ = utils.SendSSEEvent(w, flusher, "done", map[string]string{"text": strings.TrimSpace(full.String())})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reply.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrReplyUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.WithError(err).Error("conversation request failed")
		utils.RespondError(w, http.StatusBadGateway, "reply generation failed")
	}
}
