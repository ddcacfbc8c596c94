package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/realtime"
)

func TestStartPipelineRequiresScript(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "")
	err := env.orch.StartPipeline(env.dbc, s)
	assert.ErrorIs(t, err, domain.ErrMissingScript)
	assert.Equal(t, domain.StatusPending, env.reload(t, s).Status)
}

func TestStartPipelineDispatchesCharactersOnce(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "INT. ROOM - DAY")

	require.NoError(t, env.orch.StartPipeline(env.dbc, s))
	require.NoError(t, env.orch.AdvanceToStage(env.dbc, s, domain.StageCharacters))

	got := env.reload(t, s)
	assert.Equal(t, domain.StatusCharacters, got.Status)
	require.NotNil(t, got.CurrentStage)
	assert.Equal(t, domain.StageCharacters, *got.CurrentStage)
	assert.Equal(t, []string{JobGenerateCharacters}, env.jobTypes(t, s.ID, ""))
	assert.Contains(t, env.emitter.Events(), realtime.SSEEventStoryStatusChanged)
}

func TestCompleteStagePausesForReview(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	require.NoError(t, env.orch.StartPipeline(env.dbc, s))

	require.NoError(t, env.orch.CompleteStage(env.dbc, s, domain.StageCharacters))
	assert.Equal(t, domain.StatusCharacterReview, env.reload(t, s).Status)

	require.NoError(t, env.orch.ApproveCharacters(env.dbc, s))
	assert.Equal(t, domain.StatusStoryboard, env.reload(t, s).Status)
	assert.ElementsMatch(t, []string{JobGenerateCharacters, JobGenerateStoryboard}, env.jobTypes(t, s.ID, ""))

	require.NoError(t, env.orch.CompleteStage(env.dbc, s, domain.StageStoryboard))
	assert.Equal(t, domain.StatusStoryboardReview, env.reload(t, s).Status)

	assert.ErrorIs(t, env.orch.ApproveCharacters(env.dbc, s), domain.ErrNotInCharacterReview)
}

func TestApproveStoryboardNeedsVideoKey(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	require.NoError(t, env.orch.CompleteStage(env.dbc, s, domain.StageStoryboard))

	assert.ErrorIs(t, env.orch.ApproveStoryboard(env.dbc, s), ErrVideoProviderMissing)

	require.NoError(t, env.vault.Set(env.dbc, domain.ProviderKling, env.userID, "ak:sk"))
	require.NoError(t, env.orch.ApproveStoryboard(env.dbc, s))
	assert.Equal(t, domain.StatusProducing, env.reload(t, s).Status)
	assert.Equal(t, []string{JobProduceVideo}, env.jobTypes(t, s.ID, ""))
}

func TestCompleteVideoFinishesPipeline(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	require.NoError(t, env.orch.AdvanceToStage(env.dbc, s, domain.StageVideo))
	require.NoError(t, env.orch.CompleteStage(env.dbc, s, domain.StageVideo))

	got := env.reload(t, s)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Nil(t, got.CurrentStage)
}

func TestCompleteScriptNotifiesListeners(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	var seen []domain.PipelineStage
	env.orch.OnStageCompleted(func(_ dbctx.Context, _ *types.Story, stage domain.PipelineStage) error {
		seen = append(seen, stage)
		return nil
	})
	require.NoError(t, env.orch.CompleteStage(env.dbc, s, domain.StageScript))
	assert.Equal(t, []domain.PipelineStage{domain.StageScript}, seen)
	// default listener advanced to characters
	assert.Equal(t, domain.StatusCharacters, env.reload(t, s).Status)
}

func TestFailAndRetryStage(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	assert.ErrorIs(t, env.orch.RetryStage(env.dbc, s), domain.ErrNotFailed)

	require.NoError(t, env.orch.FailStage(env.dbc, s, domain.StageStoryboard, "boom"))
	got := env.reload(t, s)
	assert.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "Failed at storyboard: boom", *got.ErrorMessage)

	states, err := env.orch.GetStageStatus(env.dbc, got)
	require.NoError(t, err)
	assert.Equal(t, domain.StageFailed, states[domain.StageStoryboard])

	require.NoError(t, env.orch.RetryStage(env.dbc, got))
	got = env.reload(t, s)
	assert.Equal(t, domain.StatusStoryboard, got.Status)
	assert.Nil(t, got.ErrorMessage)
}

func TestRevertToCharactersCascades(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	testutil.SeedCharacter(t, env.ctx, env.tx, s.ID, "Ada")
	frames := testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 3)
	testutil.SeedClipChain(t, env.ctx, env.tx, s.ID, frames)
	require.NoError(t, env.orch.CompleteStage(env.dbc, s, domain.StageStoryboard))
	portrait := env.media.put([]byte("png"), CharacterDir(s.ID), "png")
	panel := env.media.put([]byte("png"), FrameDir(s.ID), "png")
	clip := env.media.put([]byte("mp4"), VideoDir(s.ID), "mp4")

	// storyboard is under review, not completed
	assert.ErrorIs(t, env.orch.Revert(env.dbc, s, domain.StageStoryboard), domain.ErrStageNotCompleted)
	assert.ErrorIs(t, env.orch.Revert(env.dbc, s, domain.StageVideo), domain.ErrCannotRevertFinal)

	require.NoError(t, env.orch.Revert(env.dbc, s, domain.StageCharacters))

	got := env.reload(t, s)
	assert.Equal(t, domain.StatusCharacterReview, got.Status)
	assert.Equal(t, domain.StageCharacters, *got.CurrentStage)
	chars, _ := env.repos.Characters.ListByStory(env.dbc, s.ID)
	assert.Len(t, chars, 1)
	fr, _ := env.repos.Frames.ListByStory(env.dbc, s.ID)
	assert.Empty(t, fr)
	clips, _ := env.repos.Videos.ListClips(env.dbc, s.ID)
	assert.Empty(t, clips)
	assert.True(t, got.HasScript())

	assert.Contains(t, env.media.objects, portrait.Path)
	assert.NotContains(t, env.media.objects, panel.Path)
	assert.NotContains(t, env.media.objects, clip.Path)
}

func TestRevertToScriptClearsEverything(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	testutil.SeedCharacter(t, env.ctx, env.tx, s.ID, "Ada")
	testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 2)
	require.NoError(t, env.orch.CompleteStage(env.dbc, s, domain.StageCharacters))

	require.NoError(t, env.orch.Revert(env.dbc, s, domain.StageScript))
	got := env.reload(t, s)
	assert.Equal(t, domain.StatusScripting, got.Status)
	assert.False(t, got.HasScript())
	chars, _ := env.repos.Characters.ListByStory(env.dbc, s.ID)
	assert.Empty(t, chars)
}

func TestRevertRejectedWhileStageRuns(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	testutil.SeedCharacter(t, env.ctx, env.tx, s.ID, "Ada")
	require.NoError(t, env.orch.AdvanceToStage(env.dbc, s, domain.StageStoryboard))
	assert.ErrorIs(t, env.orch.Revert(env.dbc, s, domain.StageCharacters), domain.ErrStageInProgress)
}

func TestRevertCancelsDownstreamJobs(t *testing.T) {
	env := newTestEnv(t)
	s := testutil.SeedStory(t, env.ctx, env.tx, env.userID, "script")
	testutil.SeedCharacter(t, env.ctx, env.tx, s.ID, "Ada")
	testutil.SeedFrames(t, env.ctx, env.tx, s.ID, 2)
	require.NoError(t, env.orch.AdvanceToStage(env.dbc, s, domain.StageVideo))
	require.Equal(t, []string{JobProduceVideo}, env.jobTypes(t, s.ID, types.JobStatusQueued))

	require.NoError(t, env.orch.RevertToStage(env.dbc, s, domain.StageCharacters))
	assert.Empty(t, env.jobTypes(t, s.ID, types.JobStatusQueued))
	assert.Equal(t, []string{JobProduceVideo}, env.jobTypes(t, s.ID, types.JobStatusCanceled))
}
