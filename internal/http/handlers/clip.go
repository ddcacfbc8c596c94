package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type ClipHandler struct {
	stories services.StoryService
	clips   services.ClipService
}

func NewClipHandler(stories services.StoryService, clips services.ClipService) *ClipHandler {
	return &ClipHandler{stories: stories, clips: clips}
}

// POST /api/stories/:id/clips/generate-all
func (h *ClipHandler) GenerateAll(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	v, err := h.clips.GenerateAll(dbc(c), s)
	if err != nil {
		respondErr(c, "generate_clips_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"clip": v, "message": "Generating mini-videos one by one."})
}

// POST /api/stories/:id/clips/:clipId/generate
func (h *ClipHandler) SubmitClip(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "clipId", "invalid_clip_id")
	if !ok {
		return
	}
	v, err := h.clips.Submit(dbc(c), s, id)
	if err != nil {
		respondErr(c, "submit_clip_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"clip": v, "message": "Generating mini-video..."})
}

// POST /api/stories/:id/clips/:clipId/regenerate
func (h *ClipHandler) RegenerateClip(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "clipId", "invalid_clip_id")
	if !ok {
		return
	}
	var in services.ClipRegenerate
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.clips.Regenerate(dbc(c), s, id, in)
	if err != nil {
		respondErr(c, "regenerate_clip_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"clip": v, "message": "Regenerating mini-video..."})
}

// POST /api/stories/:id/clips/:clipId/video (multipart "video")
func (h *ClipHandler) UploadClip(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "clipId", "invalid_clip_id")
	if !ok {
		return
	}
	up, ok := formFile(c, "video", maxVideoUpload, videoExts)
	if !ok {
		return
	}
	defer up.body.Close()
	v, err := h.clips.Upload(dbc(c), s, id, up.body, up.ext)
	if err != nil {
		respondErr(c, "upload_clip_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Video uploaded.", "video_url": v.VideoURL, "clip": v})
}

// POST /api/stories/:id/concatenate
func (h *ClipHandler) Concatenate(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	if err := h.clips.Concatenate(dbc(c), s); err != nil {
		respondErr(c, "concatenate_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Concatenating mini-videos into the final video..."})
}
