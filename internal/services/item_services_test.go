package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/apierr"
)

func seedReview(t *testing.T, env *testEnv, status domain.StoryStatus) *types.Story {
	t.Helper()
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	require.NoError(t, env.repos.Stories.UpdateFields(env.dbc, s.ID, map[string]interface{}{"status": status}))
	s.Status = status
	return s
}

func TestCharacterEditsRequireReview(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	_, err := env.chars.Create(env.dbc, s, CharacterInput{Name: "Mara", Description: "pilot"})
	assert.ErrorIs(t, err, domain.ErrNotInCharacterReview)
}

func TestCreateCharacterQueuesPortrait(t *testing.T) {
	env := newTestEnv(t)
	s := seedReview(t, env, domain.StatusCharacterReview)

	c, err := env.chars.Create(env.dbc, s, CharacterInput{Name: " Mara ", Description: "pilot in a red coat"})
	require.NoError(t, err)
	assert.Equal(t, "Mara", c.Name)
	assert.True(t, c.Annotations().Regenerating)
	assert.Equal(t, []string{JobCharacterImage}, env.jobTypes(t, c.ID, types.JobStatusQueued))

	_, err = env.chars.Create(env.dbc, s, CharacterInput{Name: strings.Repeat("n", 256), Description: "x"})
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "validation_failed", ae.Code)
}

func TestRegenerateCharacterReplacesRunningJob(t *testing.T) {
	env := newTestEnv(t)
	s := seedReview(t, env, domain.StatusCharacterReview)
	c, err := env.chars.Create(env.dbc, s, CharacterInput{Name: "Mara", Description: "pilot"})
	require.NoError(t, err)

	c, err = env.chars.Regenerate(env.dbc, s, c.ID, "older pilot, grey hair")
	require.NoError(t, err)
	assert.Equal(t, "older pilot, grey hair", c.Description)
	assert.Equal(t, []string{JobCharacterImage}, env.jobTypes(t, c.ID, types.JobStatusQueued))
	assert.Equal(t, []string{JobCharacterImage}, env.jobTypes(t, c.ID, types.JobStatusCanceled))
}

func TestUploadCharacterImageClearsRegenerating(t *testing.T) {
	env := newTestEnv(t)
	s := seedReview(t, env, domain.StatusCharacterReview)
	c, err := env.chars.Create(env.dbc, s, CharacterInput{Name: "Mara", Description: "pilot"})
	require.NoError(t, err)

	c, err = env.chars.UploadImage(env.dbc, s, c.ID, strings.NewReader("png-bytes"), "png")
	require.NoError(t, err)
	require.NotNil(t, c.ImageURL)
	assert.True(t, strings.HasPrefix(*c.ImagePath, "stories/"+s.ID.String()+"/characters/"))
	assert.False(t, c.Annotations().Regenerating)
	assert.Equal(t, []string{JobCharacterImage}, env.jobTypes(t, c.ID, types.JobStatusCanceled))
}

func TestDeleteCharacter(t *testing.T) {
	env := newTestEnv(t)
	s := seedReview(t, env, domain.StatusCharacterReview)
	c := testutil.SeedCharacter(t, env.ctx, env.tx, s.ID, "Mara")

	require.NoError(t, env.chars.Delete(env.dbc, s, c.ID))
	_, err := env.repos.Characters.GetByID(env.dbc, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegenerateFrameInvalidatesClips(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 3)
	testutil.SeedClipChain(t, env.ctx, env.tx, s.ID, frames)

	_, err := env.frames.Regenerate(env.dbc, s, frames[1].ID, "")
	require.Error(t, err)

	f, err := env.frames.Regenerate(env.dbc, s, frames[1].ID, "wide shot of the hangar")
	require.NoError(t, err)
	assert.Equal(t, "wide shot of the hangar", f.Prompt)
	assert.True(t, f.Annotations().Regenerating)
	assert.Equal(t, []string{JobFrameImage}, env.jobTypes(t, f.ID, types.JobStatusQueued))

	clips, err := env.repos.Videos.ListClips(env.dbc, s.ID)
	require.NoError(t, err)
	for _, c := range clips {
		assert.True(t, c.Annotations().Stale)
	}
}

func TestUploadFrameImageInvalidatesNeighbours(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 4)
	testutil.SeedClipChain(t, env.ctx, env.tx, s.ID, frames)

	_, err := env.frames.UploadImage(env.dbc, s, frames[0].ID, strings.NewReader("jpeg"), "")
	require.NoError(t, err)

	clips, err := env.repos.Videos.ListClips(env.dbc, s.ID)
	require.NoError(t, err)
	assert.True(t, clips[0].Annotations().Stale)
	assert.False(t, clips[1].Annotations().Stale)
	assert.False(t, clips[2].Annotations().Stale)
}

func TestImageReferences(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	mara := testutil.SeedCharacter(t, env.ctx, env.tx, s.ID, "Mara")
	joss := testutil.SeedCharacter(t, env.ctx, env.tx, s.ID, "Joss")
	local := "http://localhost:8080/media/mara.png"
	remote := "https://cdn.test/joss.png"
	mara.ImageURL = &local
	joss.ImageURL = &remote
	require.NoError(t, env.repos.Characters.Update(env.dbc, mara))
	require.NoError(t, env.repos.Characters.Update(env.dbc, joss))
	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 5)

	target := frames[2]
	ann := target.Annotations()
	ann.Characters = []string{"Joss"}
	target.SetAnnotations(ann)

	refs, err := ImageReferences(env.dbc, env.repos, target)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.test/joss.png",
		"https://cdn.test/frames/5.png",
		"https://cdn.test/frames/4.png",
		"https://cdn.test/frames/2.png",
	}, refs)
}

func TestSubmitClipIsSequential(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 3)
	clips := testutil.SeedClipChain(t, env.ctx, env.tx, s.ID, frames)

	first, err := env.clips.GenerateAll(env.dbc, s)
	require.NoError(t, err)
	assert.Equal(t, clips[0].ID, first.ID)
	assert.Equal(t, []string{JobClipGenerate}, env.jobTypes(t, clips[0].ID, types.JobStatusQueued))

	require.NoError(t, env.repos.Videos.UpdateFields(env.dbc, clips[0].ID, map[string]interface{}{"status": domain.VideoProcessing}))
	_, err = env.clips.Submit(env.dbc, s, clips[1].ID)
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "clip_in_progress", ae.Code)
}

func TestRegenerateClipValidatesAndDropsFinal(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 2)
	clips := testutil.SeedClipChain(t, env.ctx, env.tx, s.ID, frames)
	_, err := env.repos.Videos.Create(env.dbc, []*types.Video{{StoryID: s.ID, IsFinal: true, Status: domain.VideoCompleted}})
	require.NoError(t, err)

	_, err = env.clips.Regenerate(env.dbc, s, clips[0].ID, ClipRegenerate{Duration: "7"})
	require.Error(t, err)
	_, err = env.clips.Regenerate(env.dbc, s, clips[0].ID, ClipRegenerate{ModelName: "kling-v9"})
	require.Error(t, err)

	prompt := "slow dolly in"
	v, err := env.clips.Regenerate(env.dbc, s, clips[0].ID, ClipRegenerate{Prompt: &prompt, Duration: "10", Mode: "std", CameraControl: "forward_up"})
	require.NoError(t, err)
	assert.Equal(t, "slow dolly in", v.Prompt)

	p := ClipParams(v)
	assert.Equal(t, "10", p.Duration)
	assert.Equal(t, "std", p.Mode)
	assert.Equal(t, "forward_up", p.CameraControl)
	assert.Equal(t, "slow dolly in", p.Prompt)

	fin, err := env.repos.Videos.GetFinal(env.dbc, s.ID)
	require.NoError(t, err)
	assert.Nil(t, fin)
}

func TestClipParamsDefaults(t *testing.T) {
	p := ClipParams(&types.Video{Prompt: "p"})
	assert.Equal(t, "5", p.Duration)
	assert.Equal(t, "pro", p.Mode)
}

func TestConcatenateGuards(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	assert.Equal(t, errNoClipsToConcat, env.clips.Concatenate(env.dbc, s))

	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 3)
	clips := testutil.SeedClipChain(t, env.ctx, env.tx, s.ID, frames)
	assert.Equal(t, errNotAllClipsCompleted, env.clips.Concatenate(env.dbc, s))

	for _, c := range clips {
		_, err := env.clips.Upload(env.dbc, s, c.ID, strings.NewReader("mp4"), "mp4")
		require.NoError(t, err)
	}
	require.NoError(t, env.clips.Concatenate(env.dbc, s))
	require.NoError(t, env.clips.Concatenate(env.dbc, s))
	assert.Equal(t, []string{JobConcatenateVideos}, env.jobTypes(t, s.ID, types.JobStatusQueued))
}

func TestContinueChain(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 3)
	clips := testutil.SeedClipChain(t, env.ctx, env.tx, s.ID, frames)

	require.NoError(t, env.repos.Videos.UpdateFields(env.dbc, clips[0].ID, map[string]interface{}{"status": domain.VideoCompleted}))
	step, err := env.clips.Continue(env.dbc, s, clips[0])
	require.NoError(t, err)
	assert.Equal(t, ChainSubmitted, step)
	assert.Equal(t, []string{JobClipGenerate}, env.jobTypes(t, clips[1].ID, ""))

	require.NoError(t, env.repos.Videos.UpdateFields(env.dbc, clips[1].ID, map[string]interface{}{"status": domain.VideoCompleted}))
	step, err = env.clips.Continue(env.dbc, s, clips[1])
	require.NoError(t, err)
	assert.Equal(t, ChainConcatenate, step)
	assert.Equal(t, []string{JobConcatenateVideos}, env.jobTypes(t, s.ID, ""))
}
