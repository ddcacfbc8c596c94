package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/platform/apierr"
	"github.com/pandoapps/videoSoryBoard/internal/platform/ctxutil"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

const (
	maxImageUpload = 10 << 20
	maxVideoUpload = 100 << 20
)

var (
	imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true}
	videoExts = map[string]bool{"mp4": true, "mov": true, "webm": true}
)

func dbc(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

func requestUser(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func pathID(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

// loadStory resolves :id to a story owned by the caller. Foreign stories are
// reported as missing.
func loadStory(c *gin.Context, stories services.StoryService) (*types.Story, bool) {
	userID, ok := requestUser(c)
	if !ok {
		return nil, false
	}
	storyID, ok := pathID(c, "id", "invalid_story_id")
	if !ok {
		return nil, false
	}
	s, err := stories.Get(dbc(c), userID, storyID)
	if err != nil {
		respondErr(c, "story_load_failed", err)
		return nil, false
	}
	return s, true
}

var sentinelCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrMissingScript, http.StatusUnprocessableEntity, "missing_script"},
	{domain.ErrCannotRevertFinal, http.StatusUnprocessableEntity, "cannot_revert_final"},
	{domain.ErrStageInProgress, http.StatusUnprocessableEntity, "stage_in_progress"},
	{domain.ErrStageNotCompleted, http.StatusUnprocessableEntity, "stage_not_completed"},
	{domain.ErrNotInCharacterReview, http.StatusUnprocessableEntity, "not_in_character_review"},
	{domain.ErrNotInStoryboardReview, http.StatusUnprocessableEntity, "not_in_storyboard_review"},
	{domain.ErrNotFailed, http.StatusUnprocessableEntity, "not_failed"},
	{domain.ErrNoClips, http.StatusUnprocessableEntity, "no_clips"},
	{services.ErrVideoProviderMissing, http.StatusUnprocessableEntity, "credential_missing"},
	{services.ErrJobNotRestartable, http.StatusConflict, "job_not_restartable"},
}

func respondErr(c *gin.Context, fallbackCode string, err error) {
	_ = c.Error(err)
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			response.RespondError(c, s.status, s.code, s.err)
			return
		}
	}
	response.RespondAPIError(c, fallbackCode, err)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}

type upload struct {
	body io.ReadCloser
	ext  string
}

// formFile opens the multipart field and checks its size and extension.
func formFile(c *gin.Context, field string, maxBytes int64, allowed map[string]bool) (*upload, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_failed", apierr.BadRequest("validation_failed", "The "+field+" field is required."))
		return nil, false
	}
	if fh.Size > maxBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", errors.New("The "+field+" is too large."))
		return nil, false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), "."))
	if !allowed[ext] {
		response.RespondError(c, http.StatusUnprocessableEntity, "unsupported_file_type", errors.New("The "+field+" has an unsupported file type."))
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		respondErr(c, "upload_failed", err)
		return nil, false
	}
	return &upload{body: f, ext: ext}, true
}
