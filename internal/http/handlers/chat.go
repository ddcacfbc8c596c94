package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type ChatHandler struct {
	stories services.StoryService
	chat    services.ScriptChat
}

func NewChatHandler(stories services.StoryService, chat services.ScriptChat) *ChatHandler {
	return &ChatHandler{stories: stories, chat: chat}
}

type sendMessageRequest struct {
	Message string `json:"message" binding:"required,max=5000"`
}

// GET /api/stories/:id/chat
func (h *ChatHandler) ListMessages(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	msgs, err := h.chat.Open(dbc(c), s)
	if err != nil {
		respondErr(c, "chat_load_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"story": s, "messages": msgs})
}

// POST /api/stories/:id/chat
func (h *ChatHandler) SendMessage(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	reply, err := h.chat.Send(dbc(c), s, req.Message)
	if err != nil {
		respondErr(c, "chat_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": reply})
}

// POST /api/stories/:id/chat/finalize
func (h *ChatHandler) Finalize(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	updated, err := h.chat.Finalize(dbc(c), s)
	if err != nil {
		respondErr(c, "finalize_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"story": updated, "message": "Script finalized! Pipeline started."})
}
