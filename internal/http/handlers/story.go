package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type StoryHandler struct {
	stories services.StoryService
}

func NewStoryHandler(stories services.StoryService) *StoryHandler {
	return &StoryHandler{stories: stories}
}

// GET /api/stories
func (h *StoryHandler) ListStories(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	stories, err := h.stories.List(dbc(c), userID)
	if err != nil {
		respondErr(c, "list_stories_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"stories": stories})
}

// GET /api/dashboard
func (h *StoryHandler) Dashboard(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	stats, err := h.stories.Stats(dbc(c), userID)
	if err != nil {
		respondErr(c, "dashboard_failed", err)
		return
	}
	recent, err := h.stories.List(dbc(c), userID)
	if err != nil {
		respondErr(c, "dashboard_failed", err)
		return
	}
	if len(recent) > 5 {
		recent = recent[:5]
	}
	response.RespondOK(c, gin.H{"stats": stats, "recent_stories": recent})
}

// POST /api/stories
func (h *StoryHandler) CreateStory(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var in services.StoryInput
	if !bindJSON(c, &in) {
		return
	}
	s, err := h.stories.Create(dbc(c), userID, in)
	if err != nil {
		respondErr(c, "create_story_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"story": s})
}

// GET /api/stories/:id
func (h *StoryHandler) GetStory(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	detail, err := h.stories.Detail(dbc(c), s)
	if err != nil {
		respondErr(c, "get_story_failed", err)
		return
	}
	response.RespondOK(c, detail)
}

// PATCH /api/stories/:id
func (h *StoryHandler) UpdateStory(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	var in services.StoryUpdate
	if !bindJSON(c, &in) {
		return
	}
	updated, err := h.stories.Update(dbc(c), s, in)
	if err != nil {
		respondErr(c, "update_story_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"story": updated})
}

// DELETE /api/stories/:id
func (h *StoryHandler) DeleteStory(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	if err := h.stories.Delete(dbc(c), s); err != nil {
		respondErr(c, "delete_story_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Story deleted."})
}
