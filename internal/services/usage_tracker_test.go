package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
)

func TestTextCostCents(t *testing.T) {
	assert.Equal(t, 0, TextCostCents(0, 0))
	// 1M in = $3, 1M out = $15
	assert.Equal(t, 1800, TextCostCents(1_000_000, 1_000_000))
	// 10k in = 3c, 2k out = 3c
	assert.Equal(t, 6, TextCostCents(10_000, 2_000))
}

func TestUsageTrackerCosts(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	user := uuid.New()
	s := testutil.SeedStory(t, ctx, db, user, "script")

	tr := NewUsageTracker(log, repos.NewApiUsageRepo(db, log))
	tr.RecordTextGen(dbc, &s.ID, user, "anthropic", "extract_characters", 1_000_000, 0, "claude-sonnet-4-20250514")
	tr.RecordAPICall(dbc, &s.ID, user, "nano_banana", "generate_image", map[string]any{"task_id": "t1"})
	tr.RecordAPICall(dbc, &s.ID, user, "nano_banana", "generate_image", nil)
	tr.RecordAPICall(dbc, &s.ID, user, "kling", "generate_video", nil)

	rows, err := tr.StoryUsage(dbc, s.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	stories, total, err := tr.Costs(dbc, user)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, int64(300), stories[0].Services["anthropic"].CostCents)
	assert.Equal(t, int64(18), stories[0].Services["nano_banana"].CostCents)
	assert.Equal(t, int64(50), stories[0].Services["kling"].CostCents)
	assert.Equal(t, int64(368), total)
	assert.Equal(t, total, stories[0].TotalCents)
}
