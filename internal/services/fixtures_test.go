package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/clients/clienttest"
	"github.com/pandoapps/videoSoryBoard/internal/clients/redis"
	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/secretbox"
)

type testEnv struct {
	ctx      context.Context
	db       *gorm.DB
	tx       *gorm.DB
	dbc      dbctx.Context
	repos    repos.Set
	jobs     JobService
	vault    CredentialVault
	emitter  *RecordingEmitter
	orch     PipelineOrchestrator
	editor   StoryEditor
	userID   uuid.UUID
	notifier PipelineNotifier

	text    *clienttest.Text
	image   *clienttest.Image
	video   *clienttest.Video
	gens    *Generators
	media   *memMedia
	usage   UsageTracker
	chat    ScriptChat
	stories StoryService
	chars   CharacterService
	frames  FrameService
	clips   ClipService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)

	box, err := secretbox.New("test-passphrase")
	require.NoError(t, err)
	emitter := &RecordingEmitter{}
	notifier := NewPipelineNotifier(emitter)
	jobs := NewJobService(db, log, rs.Jobs, rs.JobEvents, NewJobNotifier(emitter), nil, "")
	vault := NewCredentialVault(log, rs.Credentials, box, redis.NewMemoryCache())

	media := newMemMedia()
	orch := NewPipelineOrchestrator(db, log, rs, jobs, vault, media, notifier, "")
	editor := NewStoryEditor(db, log, rs, media)
	text := &clienttest.Text{ChatReply: "Tell me more.", Usage: textUsage}
	image := &clienttest.Image{}
	video := &clienttest.Video{}
	gens := &Generators{Text: text, Image: image, Video: video, Vault: vault}
	usage := NewUsageTracker(log, rs.Usage)

	return &testEnv{
		ctx:      ctx,
		db:       db,
		tx:       tx,
		dbc:      dbctx.Context{Ctx: ctx, Tx: tx},
		repos:    rs,
		jobs:     jobs,
		vault:    vault,
		emitter:  emitter,
		orch:     orch,
		editor:   editor,
		userID:   uuid.New(),
		notifier: notifier,
		text:     text,
		image:    image,
		video:    video,
		gens:     gens,
		media:    media,
		usage:    usage,
		chat:     NewScriptChat(log, rs, gens, usage, orch),
		stories:  NewStoryService(db, log, rs, jobs, orch, vault, ""),
		chars:    NewCharacterService(log, rs, jobs, media, notifier),
		frames:   NewFrameService(log, rs, jobs, media, editor, notifier),
		clips:    NewClipService(log, rs, jobs, media, notifier),
	}
}

func (e *testEnv) jobTypes(t *testing.T, storyID uuid.UUID, status string) []string {
	t.Helper()
	rows, err := e.repos.Jobs.ListByOwner(e.dbc, e.userID, &storyID, 100)
	require.NoError(t, err)
	var out []string
	for _, j := range rows {
		if status == "" || j.Status == status {
			out = append(out, j.JobType)
		}
	}
	return out
}

func (e *testEnv) reload(t *testing.T, s *types.Story) *types.Story {
	t.Helper()
	got, err := e.repos.Stories.GetByID(e.dbc, s.ID)
	require.NoError(t, err)
	return got
}

var textUsage = textgen.Usage{Model: "claude-test", InputTokens: 1000, OutputTokens: 200}

func (e *testEnv) setKey(t *testing.T, p domain.Provider) {
	t.Helper()
	require.NoError(t, e.vault.Set(e.dbc, p, e.userID, "key-"+string(p)))
}

// memMedia is an in-memory MediaStore.
type memMedia struct {
	mu      sync.Mutex
	n       int
	objects map[string][]byte
	deleted []string
}

func newMemMedia() *memMedia { return &memMedia{objects: map[string][]byte{}} }

func (m *memMedia) put(content []byte, dir, ext string) StoredMedia {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	key := fmt.Sprintf("%s/obj-%d.%s", dir, m.n, ext)
	m.objects[key] = content
	return StoredMedia{Path: key, URL: m.URL(key)}
}

func (m *memMedia) Download(_ context.Context, remoteURL, dir, ext string) (StoredMedia, error) {
	if ext == "" {
		ext = GuessExtension(remoteURL)
	}
	return m.put([]byte(remoteURL), dir, ext), nil
}

func (m *memMedia) Store(_ context.Context, content []byte, dir, ext string) (StoredMedia, error) {
	return m.put(content, dir, ext), nil
}

func (m *memMedia) StoreReader(_ context.Context, r io.Reader, dir, ext string) (StoredMedia, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return StoredMedia{}, err
	}
	return m.put(buf.Bytes(), dir, ext), nil
}

func (m *memMedia) StoreFromPath(_ context.Context, localPath, dir, ext string) (StoredMedia, error) {
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
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memMedia) URL(key string) string { return "https://media.test/" + key }
