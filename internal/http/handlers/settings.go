package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type SettingsHandler struct {
	vault services.CredentialVault
}

func NewSettingsHandler(vault services.CredentialVault) *SettingsHandler {
	return &SettingsHandler{vault: vault}
}

// Blank fields leave the stored key untouched.
type updateAPIKeysRequest struct {
	Anthropic      string `json:"anthropic" binding:"omitempty,min=10"`
	Gemini         string `json:"gemini" binding:"omitempty,min=10"`
	NanoBanana     string `json:"nano_banana" binding:"omitempty,min=10"`
	Higgsfield     string `json:"higgsfield" binding:"omitempty,min=10"`
	KlingAccessKey string `json:"kling_access_key" binding:"omitempty,min=5"`
	KlingSecretKey string `json:"kling_secret_key" binding:"omitempty,min=5"`
}

// GET /api/settings/api-keys
func (h *SettingsHandler) GetAPIKeys(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	status, err := h.vault.Status(dbc(c), userID)
	if err != nil {
		respondErr(c, "api_keys_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"api_keys": status})
}

// PUT /api/settings/api-keys
func (h *SettingsHandler) UpdateAPIKeys(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req updateAPIKeysRequest
	if !bindJSON(c, &req) {
		return
	}

	updates := map[domain.Provider]string{
		domain.ProviderAnthropic:  strings.TrimSpace(req.Anthropic),
		domain.ProviderGemini:     strings.TrimSpace(req.Gemini),
		domain.ProviderNanoBanana: strings.TrimSpace(req.NanoBanana),
		domain.ProviderHiggsfield: strings.TrimSpace(req.Higgsfield),
	}
	// Kling signs its own JWTs, so both halves are stored together.
	access, secret := strings.TrimSpace(req.KlingAccessKey), strings.TrimSpace(req.KlingSecretKey)
	if access != "" && secret != "" {
		updates[domain.ProviderKling] = access + ":" + secret
	}

	for _, p := range domain.Providers {
		key := updates[p]
		if key == "" {
			continue
		}
		if err := h.vault.Set(dbc(c), p, userID, key); err != nil {
			respondErr(c, "api_keys_failed", err)
			return
		}
	}
	status, err := h.vault.Status(dbc(c), userID)
	if err != nil {
		respondErr(c, "api_keys_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"api_keys": status, "message": "API keys updated successfully."})
}

// DELETE /api/settings/api-keys/:provider
func (h *SettingsHandler) DeleteAPIKey(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	p, valid := domain.ParseProvider(c.Param("provider"))
	if !valid {
		response.RespondError(c, http.StatusNotFound, "unknown_provider", errors.New("Unknown provider."))
		return
	}
	if err := h.vault.Remove(dbc(c), p, userID); err != nil {
		respondErr(c, "api_keys_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "API key removed."})
}
