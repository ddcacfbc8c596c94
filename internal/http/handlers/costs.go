package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type CostsHandler struct {
	stories services.StoryService
	usage   services.UsageTracker
}

func NewCostsHandler(stories services.StoryService, usage services.UsageTracker) *CostsHandler {
	return &CostsHandler{stories: stories, usage: usage}
}

// GET /api/costs
func (h *CostsHandler) Costs(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	stories, total, err := h.usage.Costs(dbc(c), userID)
	if err != nil {
		respondErr(c, "costs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"stories": stories, "total_cost_cents": total})
}

// GET /api/stories/:id/usage
func (h *CostsHandler) StoryUsage(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	rows, err := h.usage.StoryUsage(dbc(c), s.ID)
	if err != nil {
		respondErr(c, "usage_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"usage": rows})
}
