package usage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
)

func TestTotalsByStoryAndService(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewApiUsageRepo(db, testutil.Logger(t))

	owner := uuid.New()
	s := testutil.SeedStory(t, ctx, db, owner, "script")
	other := testutil.SeedStory(t, ctx, db, uuid.New(), "script")

	in, out, cost := 1000, 500, 1
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Create(dbc, &types.ApiUsage{
			StoryID: &s.ID, UserID: owner, Service: "anthropic", Operation: "chat",
			InputTokens: &in, OutputTokens: &out, CostCents: &cost,
		}))
	}
	require.NoError(t, repo.Create(dbc, &types.ApiUsage{StoryID: &s.ID, UserID: owner, Service: "kling", Operation: "submit_mini_video_generation"}))
	require.NoError(t, repo.Create(dbc, &types.ApiUsage{StoryID: &other.ID, UserID: other.UserID, Service: "kling", Operation: "x"}))

	totals, err := repo.TotalsByStoryAndService(dbc, owner)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	byService := map[string]StoryServiceTotal{}
	for _, row := range totals {
		assert.Equal(t, s.ID, row.StoryID)
		byService[row.Service] = row
	}
	assert.EqualValues(t, 2, byService["anthropic"].CallCount)
	assert.EqualValues(t, 2000, byService["anthropic"].InputTokens)
	assert.EqualValues(t, 2, byService["anthropic"].CostCents)
	assert.EqualValues(t, 1, byService["kling"].CallCount)
}
