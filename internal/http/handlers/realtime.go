package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/sse/stream
// Every connection is subscribed to the caller's user channel, which carries job
// and pipeline events for all of their stories.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	client := h.hub.Subscribe(userID)
	h.log.Debug("SSEStream open", "user_id", userID, "client_id", client.ID, "connected", h.hub.Connected())

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSEStream closed", "client_id", client.ID)
}
