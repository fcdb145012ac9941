package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/model/role"
	"github.com/zhouzirui/mock-interview/backend/internal/service/session"
	"github.com/zhouzirui/mock-interview/backend/pkg/utils"
)

const (
	// MaxResumeBytes 简历上传上限
	MaxResumeBytes = 10 << 20
	maxJSONBytes   = 64 << 10
)

var (
	errResumeType  = errors.New("resume must be a PDF file")
	errResumeLarge = fmt.Errorf("resume exceeds %d MiB", MaxResumeBytes>>20)
	errUnknownRole = errors.New("role not found")
)

// Handler 面试会话的HTTP与WebSocket处理器
type Handler struct {
	sessions *session.Manager
	roles    role.Store
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// New 创建面试处理器
func New(sessions *session.Manager, roles role.Store) *Handler {
	return &Handler{
		sessions: sessions,
		roles:    roles,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log: logrus.WithField("component", "interview-handler"),
	}
}

// RegisterRoutes 注册面试相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/interview/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDelete)
			r.Post("/intake", h.command(func(ctx context.Context, c *session.Controller) (interview.Session, error) {
				return c.BeginIntake(ctx)
			}))
			r.Post("/start", h.handleStart)
			r.Post("/advance", h.command(func(ctx context.Context, c *session.Controller) (interview.Session, error) {
				return c.Advance(ctx)
			}))
			r.Post("/repeat", h.command(func(ctx context.Context, c *session.Controller) (interview.Session, error) {
				return c.Repeat(ctx)
			}))
			r.Post("/cancel", h.command(func(ctx context.Context, c *session.Controller) (interview.Session, error) {
				return c.Cancel(ctx)
			}))
			r.Post("/dismiss", h.command(func(ctx context.Context, c *session.Controller) (interview.Session, error) {
				return c.Dismiss(ctx)
			}))
			r.Post("/answer", h.handleAnswer)
			r.Get("/inputs", h.handleInputs)
			r.Get("/events", h.handleEvents)
			r.Get("/ws", h.handleWebSocket)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	handle := h.sessions.Create()
	snap, err := handle.Controller.Snapshot(r.Context())
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.List(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.command(func(ctx context.Context, c *session.Controller) (interview.Session, error) {
		return c.Snapshot(ctx)
	})(w, r)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Remove(chi.URLParam(r, "sessionID")); err != nil {
		h.respondSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInputs 返回摄像头与麦克风的实时状态
func (h *Handler) handleInputs(w http.ResponseWriter, r *http.Request) {
	handle, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, handle.Inputs())
}

// command 包装只依赖会话控制器的操作
func (h *Handler) command(fn func(ctx context.Context, c *session.Controller) (interview.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			h.respondSessionError(w, err)
			return
		}
		snap, err := fn(r.Context(), handle.Controller)
		if err != nil {
			h.respondSessionError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, snap)
	}
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	handle, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	var in interview.Intake
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		in, err = readResumeIntake(w, r)
	} else {
		in, err = h.readRoleIntake(w, r)
	}
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	snap, err := handle.Controller.Start(r.Context(), in)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, snap)
}

type startRequest struct {
	Role   string `json:"role"`
	RoleID string `json:"roleId"`
}

func (h *Handler) readRoleIntake(w http.ResponseWriter, r *http.Request) (interview.Intake, error) {
	var payload startRequest
	if err := utils.DecodeJSON(w, r, maxJSONBytes, &payload); err != nil {
		return interview.Intake{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return h.resolveRole(payload)
}

// resolveRole 将岗位ID映射为展示标题，未知ID直接拒绝
func (h *Handler) resolveRole(p startRequest) (interview.Intake, error) {
	if p.RoleID == "" {
		return interview.RoleIntake(p.Role), nil
	}
	item, ok := h.roles.FindByID(p.RoleID)
	if !ok {
		return interview.Intake{}, errUnknownRole
	}
	return interview.RoleIntake(item.Title), nil
}

func readResumeIntake(w http.ResponseWriter, r *http.Request) (interview.Intake, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxResumeBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return interview.Intake{}, errResumeLarge
		}
		return interview.Intake{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("resume")
	if err != nil {
		return interview.Intake{}, interview.ErrIntakeMissing
	}
	defer file.Close()

	if header.Size > MaxResumeBytes {
		return interview.Intake{}, errResumeLarge
	}
	if !isPDF(header.Filename, header.Header.Get("Content-Type")) {
		return interview.Intake{}, errResumeType
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxResumeBytes+1))
	if err != nil {
		return interview.Intake{}, fmt.Errorf("%w: read resume: %v", errBadRequest, err)
	}
	if len(data) > MaxResumeBytes {
		return interview.Intake{}, errResumeLarge
	}

	in := interview.ResumeIntake(header.Filename, data)
	if role := r.FormValue("role"); strings.TrimSpace(role) != "" {
		in.Role = role
	}
	return in, nil
}

func isPDF(name, contentType string) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(contentType), "application/pdf")
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	handle, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, maxJSONBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := handle.Controller.Answer(r.Context(), payload.Text, interview.AnswerTyped)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

var errBadRequest = errors.New("invalid request")

// respondSessionError 将领域错误映射为HTTP状态码
func (h *Handler) respondSessionError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("interview request failed")
	}
	utils.RespondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, errUnknownRole):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, errResumeLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errResumeType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, interview.ErrIntakeMissing),
		errors.Is(err, interview.ErrIntakeAmbiguous),
		errors.Is(err, session.ErrEmptyAnswer),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
