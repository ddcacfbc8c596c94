package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type CharacterHandler struct {
	stories    services.StoryService
	characters services.CharacterService
}

func NewCharacterHandler(stories services.StoryService, characters services.CharacterService) *CharacterHandler {
	return &CharacterHandler{stories: stories, characters: characters}
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// POST /api/stories/:id/characters
func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	var in services.CharacterInput
	if !bindJSON(c, &in) {
		return
	}
	ch, err := h.characters.Create(dbc(c), s, in)
	if err != nil {
		respondErr(c, "create_character_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"character": ch, "message": "Character created. Generating image..."})
}

// PATCH /api/stories/:id/characters/:characterId
func (h *CharacterHandler) UpdateCharacter(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "characterId", "invalid_character_id")
	if !ok {
		return
	}
	var in services.CharacterUpdate
	if !bindJSON(c, &in) {
		return
	}
	ch, err := h.characters.Update(dbc(c), s, id, in)
	if err != nil {
		respondErr(c, "update_character_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"character": ch})
}

// DELETE /api/stories/:id/characters/:characterId
func (h *CharacterHandler) DeleteCharacter(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "characterId", "invalid_character_id")
	if !ok {
		return
	}
	if err := h.characters.Delete(dbc(c), s, id); err != nil {
		respondErr(c, "delete_character_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Character deleted."})
}

// POST /api/stories/:id/characters/:characterId/regenerate
func (h *CharacterHandler) RegenerateCharacter(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "characterId", "invalid_character_id")
	if !ok {
		return
	}
	var req promptRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.characters.Regenerate(dbc(c), s, id, req.Prompt)
	if err != nil {
		respondErr(c, "regenerate_character_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"character": ch, "message": "Regenerating character image..."})
}

// POST /api/stories/:id/characters/:characterId/image (multipart "image")
func (h *CharacterHandler) UploadCharacterImage(c *gin.Context) {
	s, ok := loadStory(c, h.stories)
	if !ok {
		return
	}
	id, ok := pathID(c, "characterId", "invalid_character_id")
	if !ok {
		return
	}
	up, ok := formFile(c, "image", maxImageUpload, imageExts)
	if !ok {
		return
	}
	defer up.body.Close()
	ch, err := h.characters.UploadImage(dbc(c), s, id, up.body, up.ext)
	if err != nil {
		respondErr(c, "upload_character_image_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Image uploaded.", "image_url": ch.ImageURL, "character": ch})
}
