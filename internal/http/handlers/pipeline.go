package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type PipelineHandler struct {
	stories services.StoryService
	orch    services.PipelineOrchestrator
}

func NewPipelineHandler(stories services.StoryService, orch services.PipelineOrchestrator) *PipelineHandler {
	return &PipelineHandler{stories: stories, orch: orch}
}

// GET /api/stories/:id/pipeline
func (h *PipelineHandler) Status(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	detail, err := h.stories.Detail(dbc(c), s)
	if err != nil {
		respondErr(c, "pipeline_status_failed", err)
		return
	}
	response.RespondOK(c, detail)
}

// POST /api/stories/:id/pipeline/start
func (h *PipelineHandler) Start(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	if err := h.orch.StartPipeline(dbc(c), s); err != nil {
		respondErr(c, "start_pipeline_failed", err)
		return
	}
	h.respondStory(c, s, "Pipeline started!")
}

// POST /api/stories/:id/pipeline/approve-characters
func (h *PipelineHandler) ApproveCharacters(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	if err := h.orch.ApproveCharacters(dbc(c), s); err != nil {
		respondErr(c, "approve_characters_failed", err)
		return
	}
	h.respondStory(c, s, "Characters approved! Starting storyboard generation.")
}

// POST /api/stories/:id/pipeline/approve-storyboard
func (h *PipelineHandler) ApproveStoryboard(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	if err := h.orch.ApproveStoryboard(dbc(c), s); err != nil {
		respondErr(c, "approve_storyboard_failed", err)
		return
	}
	h.respondStory(c, s, "Storyboard approved! Starting video generation.")
}

// POST /api/stories/:id/pipeline/revert/:stage
func (h *PipelineHandler) Revert(c *gin.Context) {
	target, valid := domain.ParseStage(c.Param("stage"))
	if !valid {
		response.RespondError(c, http.StatusNotFound, "invalid_stage", errors.New("Invalid pipeline stage."))
		return
	}
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	if err := h.orch.Revert(dbc(c), s, target); err != nil {
		respondErr(c, "revert_failed", err)
		return
	}
	msg := "Reverted to " + string(target) + " stage."
	if target == domain.StageScript {
		msg = "Reverted to script editing. Continue the conversation to refine your script."
	}
	h.respondStory(c, s, msg)
}

// POST /api/stories/:id/pipeline/retry
func (h *PipelineHandler) Retry(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	if err := h.orch.RetryStage(dbc(c), s); err != nil {
		respondErr(c, "retry_failed", err)
		return
	}
	h.respondStory(c, s, "Retrying the failed stage.")
}

// respondStory re-reads the story so the response carries the orchestrator's writes.
func (h *PipelineHandler) respondStory(c *gin.Context, s *types.Story, msg string) {
	fresh, err := h.stories.Get(dbc(c), s.UserID, s.ID)
	if err != nil {
		respondErr(c, "story_load_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"story": fresh, "message": msg})
}
