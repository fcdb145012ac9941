package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/mock-interview/backend/internal/handler/conversation"
	"github.com/zhouzirui/mock-interview/backend/internal/handler/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/handler/role"
	middlewarePkg "github.com/zhouzirui/mock-interview/backend/internal/middleware"
	roleModel "github.com/zhouzirui/mock-interview/backend/internal/model/role"
	"github.com/zhouzirui/mock-interview/backend/internal/service/session"
	"github.com/zhouzirui/mock-interview/backend/pkg/utils"
)

// Deps 路由所需的核心服务
type Deps struct {
	Roles        roleModel.Store
	Sessions     *session.Manager
	Conversation conversation.Options
	// Metrics 为 nil 时不暴露 /metrics
	Metrics http.Handler
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api", func(api chi.Router) {
		role.New(deps.Roles).RegisterRoutes(api)
		interview.New(deps.Sessions, deps.Roles).RegisterRoutes(api)

		if deps.Conversation.Conversations != nil {
			conversation.New(deps.Conversation).RegisterRoutes(api)
		}
	})

	return r
}
