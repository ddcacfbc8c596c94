package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/apierr"
)

func TestCreateStoryValidatesTitle(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.stories.Create(env.dbc, env.userID, StoryInput{Title: "   "})
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "The title field is required.", ae.Error())

	s, err := env.stories.Create(env.dbc, env.userID, StoryInput{Title: " Moon Heist "})
	require.NoError(t, err)
	assert.Equal(t, "Moon Heist", s.Title)
	assert.Equal(t, domain.StatusPending, s.Status)
}

func TestGetStoryChecksOwner(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "")

	got, err := env.stories.Get(env.dbc, env.userID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = env.stories.Get(env.dbc, uuid.New(), s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteStoryCancelsStageJobs(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	require.NoError(t, env.orch.StartPipeline(env.dbc, s))

	require.NoError(t, env.stories.Delete(env.dbc, s))
	assert.Equal(t, []string{JobGenerateCharacters}, env.jobTypes(t, s.ID, types.JobStatusCanceled))
	_, err := env.stories.Get(env.dbc, env.userID, s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDetailAndStats(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	testutil.SeedCharacter(t, env.ctx, env.tx, s.ID, "Mara")
	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 3)
	testutil.SeedClipChain(t, env.ctx, env.tx, s.ID, frames)
	require.NoError(t, env.orch.CompleteStage(env.dbc, s, domain.StageStoryboard))
	done := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	require.NoError(t, env.orch.CompleteStage(env.dbc, done, domain.StageVideo))
	testutil.SeedStory(t, env.ctx, env.tx, env.userID, "")

	d, err := env.stories.Detail(env.dbc, s)
	require.NoError(t, err)
	assert.Len(t, d.Characters, 1)
	assert.Len(t, d.Frames, 3)
	assert.Len(t, d.Clips, 2)
	assert.Nil(t, d.Final)
	assert.False(t, d.VideoConfigured)
	assert.Equal(t, domain.StageReview, d.Stages[domain.StageStoryboard])
	assert.Equal(t, domain.StageCompleted, d.Stages[domain.StageCharacters])

	stats, err := env.stories.Stats(env.dbc, env.userID)
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{Total: 3, InProgress: 1, Completed: 1}, stats)
}
