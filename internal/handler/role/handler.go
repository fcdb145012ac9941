package role

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mock-interview/backend/internal/model/role"
	"github.com/zhouzirui/mock-interview/backend/pkg/utils"
)

// Handler 岗位目录的HTTP处理器
type Handler struct {
	roles role.Store
}

// New 创建岗位处理器
func New(roles role.Store) *Handler {
	return &Handler{roles: roles}
}

// RegisterRoutes 注册岗位相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/roles", h.handleListRoles)
	r.Get("/roles/{roleID}", h.handleGetRole)
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.roles.List())
}

func (h *Handler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	item, ok := h.roles.FindByID(chi.URLParam(r, "roleID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "role not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, item)
}
