package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type FrameHandler struct {
	stories services.StoryService
	frames  services.FrameService
}

func NewFrameHandler(stories services.StoryService, frames services.FrameService) *FrameHandler {
	return &FrameHandler{stories: stories, frames: frames}
}

// POST /api/stories/:id/frames/:frameId/regenerate
func (h *FrameHandler) RegenerateFrame(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "frameId", "invalid_frame_id")
	if !ok {
		return
	}
	var req promptRequest
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.frames.Regenerate(dbc(c), s, id, req.Prompt)
	if err != nil {
		respondErr(c, "regenerate_frame_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"frame": f, "message": "Regenerating frame image..."})
}

// POST /api/stories/:id/frames/:frameId/image (multipart "image")
func (h *FrameHandler) UploadFrameImage(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "frameId", "invalid_frame_id")
	if !ok {
		return
	}
	up, ok := formFile(c, "image", maxImageUpload, imageExts)
	if !ok {
		return
	}
	defer up.body.Close()
	f, err := h.frames.UploadImage(dbc(c), s, id, up.body, up.ext)
	if err != nil {
		respondErr(c, "upload_frame_image_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Image uploaded.", "image_url": f.ImageURL, "frame": f})
}

// DELETE /api/stories/:id/frames/:frameId
func (h *FrameHandler) DeleteFrame(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "frameId", "invalid_frame_id")
	if !ok {
		return
	}
	res, err := h.frames.Delete(dbc(c), s, id)
	if err != nil {
		respondErr(c, "delete_frame_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Frame deleted.", "result": res})
}
