package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/clients/clienttest"
	"github.com/pandoapps/videoSoryBoard/internal/clients/redis"
	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	httpH "github.com/pandoapps/videoSoryBoard/internal/http/handlers"
	httpMW "github.com/pandoapps/videoSoryBoard/internal/http/middleware"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/secretbox"
	"github.com/pandoapps/videoSoryBoard/internal/realtime"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

const jwtSecret = "router-test-secret"

type apiHarness struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	jobs   services.JobService
	text   *clienttest.Text
	userID uuid.UUID
	token  string
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)

	box, err := secretbox.New("test-passphrase")
	require.NoError(t, err)
	emitter := &services.RecordingEmitter{}
	notifier := services.NewPipelineNotifier(emitter)
	jobs := services.NewJobService(db, log, rs.Jobs, rs.JobEvents, services.NewJobNotifier(emitter), nil, "")
	vault := services.NewCredentialVault(log, rs.Credentials, box, redis.NewMemoryCache())
	media := &memMedia{objects: map[string][]byte{}}
	orch := services.NewPipelineOrchestrator(db, log, rs, jobs, vault, media, notifier, "")
	editor := services.NewStoryEditor(db, log, rs, media)
	usage := services.NewUsageTracker(log, rs.Usage)
	text := &clienttest.Text{ChatReply: "Once upon a time.", Usage: textgen.Usage{Model: "claude-test", InputTokens: 10, OutputTokens: 5}}
	gens := &services.Generators{Text: text, Image: &clienttest.Image{}, Video: &clienttest.Video{}, Vault: vault}
	stories := services.NewStoryService(db, log, rs, jobs, orch, vault, "")

	router := NewRouter(RouterConfig{
		Log:              log,
		AllowedOrigins:   []string{"http://localhost:5173"},
		AuthMiddleware:   httpMW.NewAuthMiddleware(log, jwtSecret),
		RealtimeHandler:  httpH.NewRealtimeHandler(log, realtime.NewSSEHub(log)),
		StoryHandler:     httpH.NewStoryHandler(stories),
		ChatHandler:      httpH.NewChatHandler(stories, services.NewScriptChat(log, rs, gens, usage, orch)),
		PipelineHandler:  httpH.NewPipelineHandler(stories, orch),
		CharacterHandler: httpH.NewCharacterHandler(stories, services.NewCharacterService(log, rs, jobs, media, notifier)),
		FrameHandler:     httpH.NewFrameHandler(stories, services.NewFrameService(log, rs, jobs, media, editor, notifier)),
		ClipHandler:      httpH.NewClipHandler(stories, services.NewClipService(log, rs, jobs, media, notifier)),
		SettingsHandler:  httpH.NewSettingsHandler(vault),
		CostsHandler:     httpH.NewCostsHandler(stories, usage),
		JobHandler:       httpH.NewJobHandler(jobs),
		HealthHandler:    httpH.NewHealthHandler(nil),
	})

	userID := uuid.New()
	token, err := httpMW.SignToken(jwtSecret, userID, time.Hour)
	require.NoError(t, err)
	return &apiHarness{t: t, db: db, router: router, jobs: jobs, text: text, userID: userID, token: token}
}

func (h *apiHarness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+h.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) upload(path, field, filename string, content []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(h.t, err)
	_, err = fw.Write(content)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	code, _ := e["code"].(string)
	return code
}

func (h *apiHarness) createStory(title string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/stories", map[string]any{"title": title})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	s := decode(h.t, rec)["story"].(map[string]any)
	return s["id"].(string)
}

func TestHealthcheckIsPublicAndAPIRequiresToken(t *testing.T) {
	h := newAPIHarness(t)

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stories", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStoryCRUDIsScopedToCaller(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createStory("The Lighthouse")

	rec := h.do(http.MethodGet, "/api/stories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["stories"], 1)

	rec = h.do(http.MethodGet, "/api/stories/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode(t, rec)
	assert.Equal(t, "The Lighthouse", detail["story"].(map[string]any)["title"])
	assert.Contains(t, detail, "stages")

	rec = h.do(http.MethodPatch, "/api/stories/"+id, map[string]any{"title": "The Lamp"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "The Lamp", decode(t, rec)["story"].(map[string]any)["title"])

	other := *h
	otherToken, err := httpMW.SignToken(jwtSecret, uuid.New(), time.Hour)
	require.NoError(t, err)
	other.token = otherToken
	rec = other.do(http.MethodGet, "/api/stories/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = h.do(http.MethodGet, "/api/stories/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_story_id", errorCode(t, rec))

	rec = h.do(http.MethodDelete, "/api/stories/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodGet, "/api/stories/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateStoryValidatesTitle(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(http.MethodPost, "/api/stories", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", errorCode(t, rec))
}

func TestPipelineGateErrorsMapToStatusCodes(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createStory("No script yet")

	rec := h.do(http.MethodPost, "/api/stories/"+id+"/pipeline/start", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "missing_script", errorCode(t, rec))

	rec = h.do(http.MethodPost, "/api/stories/"+id+"/pipeline/revert/editing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "invalid_stage", errorCode(t, rec))

	rec = h.do(http.MethodPost, "/api/stories/"+id+"/pipeline/revert/video", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "cannot_revert_final", errorCode(t, rec))

	rec = h.do(http.MethodPost, "/api/stories/"+id+"/pipeline/approve-storyboard", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "not_in_storyboard_review", errorCode(t, rec))

	rec = h.do(http.MethodPost, "/api/stories/"+id+"/pipeline/retry", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "not_failed", errorCode(t, rec))
}

func TestSettingsStoreKeysWithoutEchoingThem(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(http.MethodPut, "/api/settings/api-keys", map[string]any{
		"anthropic":        "sk-ant-0123456789",
		"kling_access_key": "access-1",
		"kling_secret_key": "secret-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "sk-ant-0123456789")
	assert.NotContains(t, rec.Body.String(), "secret-1")

	configured := map[string]bool{}
	for _, row := range decode(t, rec)["api_keys"].([]any) {
		m := row.(map[string]any)
		configured[m["provider"].(string)] = m["configured"].(bool)
	}
	assert.True(t, configured[string(domain.ProviderAnthropic)])
	assert.True(t, configured[string(domain.ProviderKling)])
	assert.False(t, configured[string(domain.ProviderNanoBanana)])

	rec = h.do(http.MethodPut, "/api/settings/api-keys", map[string]any{"anthropic": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodDelete, "/api/settings/api-keys/kling", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodDelete, "/api/settings/api-keys/openai", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatRoundTripRecordsUsage(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createStory("Chatty")

	rec := h.do(http.MethodPost, "/api/stories/"+id+"/chat", map[string]any{"message": "A lighthouse keeper"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "credential_missing", errorCode(t, rec))

	rec = h.do(http.MethodPut, "/api/settings/api-keys", map[string]any{"anthropic": "sk-ant-0123456789"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/api/stories/"+id+"/chat", map[string]any{"message": "A lighthouse keeper"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Once upon a time.", decode(t, rec)["message"].(map[string]any)["content"])

	rec = h.do(http.MethodGet, "/api/stories/"+id+"/chat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["messages"], 2)

	rec = h.do(http.MethodGet, "/api/stories/"+id+"/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["usage"], 1)
}

func TestFrameImageUploadChecksFileType(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	s := testutil.SeedStory(t, ctx, h.db, h.userID, "script")
	frames := testutil.SeedFrames(t, ctx, h.db, s.ID, 2)
	path := "/api/stories/" + s.ID.String() + "/frames/" + frames[0].ID.String() + "/image"

	rec := h.upload(path, "image", "frame.png", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(decode(t, rec)["image_url"].(string), "https://media.test/stories/"))

	rec = h.upload(path, "image", "frame.exe", []byte("nope"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unsupported_file_type", errorCode(t, rec))

	rec = h.upload("/api/stories/"+s.ID.String()+"/frames/"+uuid.NewString()+"/image", "image", "frame.png", []byte("png-bytes"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobRestartRefusesActiveJob(t *testing.T) {
	h := newAPIHarness(t)
	storyID := uuid.New()
	job, err := h.jobs.Enqueue(dbctx.Context{Ctx: context.Background()}, h.userID, services.JobGenerateCharacters, services.EntityStory, &storyID, map[string]any{})
	require.NoError(t, err)

	rec := h.do(http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/api/jobs/"+job.ID.String()+"/restart", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "job_not_restartable", errorCode(t, rec))

	rec = h.do(http.MethodPost, "/api/jobs/"+job.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodPost, "/api/jobs/"+job.ID.String()+"/restart", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/jobs?entity_id="+storyID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["jobs"], 1)
}

type memMedia struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memMedia) put(content []byte, dir, ext string) services.StoredMedia {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dir + "/" + uuid.NewString() + "." + ext
	m.objects[key] = content
	return services.StoredMedia{Path: key, URL: m.URL(key)}
}

func (m *memMedia) Download(_ context.Context, remoteURL, dir, ext string) (services.StoredMedia, error) {
	return m.put([]byte(remoteURL), dir, ext), nil
}

func (m *memMedia) Store(_ context.Context, content []byte, dir, ext string) (services.StoredMedia, error) {
	return m.put(content, dir, ext), nil
}

func (m *memMedia) StoreReader(_ context.Context, r io.Reader, dir, ext string) (services.StoredMedia, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return services.StoredMedia{}, err
	}
	return m.put(b, dir, ext), nil
}

func (m *memMedia) StoreFromPath(_ context.Context, localPath, dir, ext string) (services.StoredMedia, error) {
	return m.put([]byte(localPath), dir, ext), nil
}

func (m *memMedia) DownloadToFile(context.Context, string, string) error { return nil }

func (m *memMedia) DeleteDir(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, dir+"/") {
			delete(m.objects, key)
		}
	}
	return nil
}

func (m *memMedia) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memMedia) URL(key string) string { return "https://media.test/" + key }
