package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameTimestampsExamples(t *testing.T) {
	cases := map[int][]int{
		15: {0, 5, 10, 15},
		8:  {0, 5, 8},
		3:  {0, 3},
		12: {0, 5, 10, 12},
		5:  {0, 5},
		2:  {0, 2},
	}
	for d, want := range cases {
		assert.Equal(t, want, FrameTimestamps(d), "duration %d", d)
	}
}

func TestFrameTimestampsProperties(t *testing.T) {
	for d := 2; d <= 120; d++ {
		ts := FrameTimestamps(d)
		require.NotEmpty(t, ts)
		assert.Equal(t, 0, ts[0])
		assert.Equal(t, d, ts[len(ts)-1])
		for i := 1; i < len(ts); i++ {
			assert.Greater(t, ts[i], ts[i-1], "duration %d strictly increasing", d)
			assert.LessOrEqual(t, ts[i]-ts[i-1], FrameInterval, "duration %d gap", d)
		}
	}
}

func TestSceneDuration(t *testing.T) {
	assert.Equal(t, 5, SceneDuration(0))
	assert.Equal(t, 2, SceneDuration(1))
	assert.Equal(t, 9, SceneDuration(9))
	assert.Equal(t, []int{0, 2}, FrameTimestamps(1))
}

func TestStageTransitions(t *testing.T) {
	next, ok := StageScript.Next()
	require.True(t, ok)
	assert.Equal(t, StageCharacters, next)
	next, _ = StageStoryboard.Next()
	assert.Equal(t, StageVideo, next)
	_, ok = StageVideo.Next()
	assert.False(t, ok)

	assert.Equal(t, StatusScripting, StageScript.StoryStatus())
	assert.Equal(t, StatusProducing, StageVideo.StoryStatus())

	_, ok = StageVideo.ReviewStatus()
	assert.False(t, ok)
	r, ok := StageStoryboard.ReviewStatus()
	require.True(t, ok)
	assert.Equal(t, StatusStoryboardReview, r)

	st, ok := ParseStage("storyboard")
	require.True(t, ok)
	assert.Equal(t, StageStoryboard, st)
	_, ok = ParseStage("final")
	assert.False(t, ok)
}

func TestDeriveStageStatusesScenarios(t *testing.T) {
	video := StageVideo
	chars := StageCharacters

	got := DeriveStageStatuses(Facts{Status: StatusPending})
	for _, st := range Stages {
		assert.Equal(t, StagePending, got[st], st)
	}

	got = DeriveStageStatuses(Facts{HasScript: true, Status: StatusCharacters, CurrentStage: &chars})
	assert.Equal(t, StageCompleted, got[StageScript])
	assert.Equal(t, StageInProgress, got[StageCharacters])
	assert.Equal(t, StagePending, got[StageStoryboard])

	got = DeriveStageStatuses(Facts{HasScript: true, HasCharacters: true, Status: StatusCharacterReview, CurrentStage: &chars})
	assert.Equal(t, StageReview, got[StageCharacters])

	// A characters stage that produced nothing still completes into review.
	got = DeriveStageStatuses(Facts{HasScript: true, Status: StatusCharacterReview, CurrentStage: &chars})
	assert.Equal(t, StageReview, got[StageCharacters])

	got = DeriveStageStatuses(Facts{HasScript: true, HasCharacters: true, HasFrames: true, Status: StatusFailed, CurrentStage: &video})
	assert.Equal(t, StageFailed, got[StageVideo])
	assert.Equal(t, StageCompleted, got[StageStoryboard])

	got = DeriveStageStatuses(Facts{HasScript: true, HasCharacters: true, HasFrames: true, HasCompletedFinal: true, Status: StatusCompleted})
	for _, st := range Stages {
		assert.Equal(t, StageCompleted, got[st], st)
	}
	assert.False(t, AnyInProgress(got))

	got = DeriveStageStatuses(Facts{Status: StatusScripting, CurrentStage: StageScript.Ptr()})
	assert.Equal(t, StageInProgress, got[StageScript])
	assert.True(t, AnyInProgress(got))
}

func TestDeriveStageStatusesExhaustive(t *testing.T) {
	statuses := []StoryStatus{StatusPending, StatusScripting, StatusCharacters, StatusCharacterReview,
		StatusStoryboard, StatusStoryboardReview, StatusProducing, StatusCompleted, StatusFailed}
	stages := append([]*PipelineStage{nil}, StageScript.Ptr(), StageCharacters.Ptr(), StageStoryboard.Ptr(), StageVideo.Ptr())
	valid := map[StageState]bool{StagePending: true, StageInProgress: true, StageReview: true, StageCompleted: true, StageFailed: true}

	for mask := 0; mask < 16; mask++ {
		for _, status := range statuses {
			for _, cur := range stages {
				f := Facts{
					HasScript:         mask&1 != 0,
					HasCharacters:     mask&2 != 0,
					HasFrames:         mask&4 != 0,
					HasCompletedFinal: mask&8 != 0,
					Status:            status,
					CurrentStage:      cur,
				}
				got := DeriveStageStatuses(f)
				require.Len(t, got, 4)
				for st, state := range got {
					require.True(t, valid[state], "unexpected state %q", state)
					if state == StageFailed {
						require.NotNil(t, cur)
						require.Equal(t, *cur, st)
					}
					if state == StageReview {
						require.Contains(t, []PipelineStage{StageCharacters, StageStoryboard}, st)
					}
				}
			}
		}
	}
}
