package interview

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mock-interview/backend/pkg/utils"
)

// handleEvents 以SSE形式推送会话事件，首条为当前快照
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	handle, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := handle.Controller.Subscribe()
	defer unsubscribe()

	snap, err := handle.Controller.Snapshot(r.Context())
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	log := h.log.WithField("session", handle.Controller.ID())
	if err := utils.SendSSEEvent(w, flusher, "snapshot", snap); err != nil {
		log.WithError(err).Debug("sse write failed")
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(e.Type), e); err != nil {
				log.WithError(err).Debug("sse write failed")
				return
			}
		}
	}
}
