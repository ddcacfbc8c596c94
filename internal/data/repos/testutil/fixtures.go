package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/domain/story"
)

func SeedStory(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, script string) *story.Story {
	tb.Helper()
	s := &story.Story{UserID: userID, Title: "A story", Status: story.StatusPending}
	if script != "" {
		s.FullScript = &script
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed story: %v", err)
	}
	return s
}

func SeedCharacter(tb testing.TB, ctx context.Context, tx *gorm.DB, storyID uuid.UUID, name string) *story.Character {
	tb.Helper()
	c := &story.Character{StoryID: storyID, Name: name, Description: name + " description"}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed character: %v", err)
	}
	return c
}

// SeedFrames creates n frames numbered 1..n, each with an image URL.
func SeedFrames(tb testing.TB, ctx context.Context, tx *gorm.DB, storyID uuid.UUID, n int) []*story.StoryboardFrame {
	tb.Helper()
	out := make([]*story.StoryboardFrame, 0, n)
	for i := 1; i <= n; i++ {
		url := fmt.Sprintf("https://cdn.test/frames/%d.png", i)
		path := fmt.Sprintf("stories/%s/frames/%d.png", storyID, i)
		f := &story.StoryboardFrame{
			StoryID:          storyID,
			SequenceNumber:   i,
			SceneDescription: fmt.Sprintf("[Scene 1 @ %ds] frame %d", (i-1)*5, i),
			Prompt:           fmt.Sprintf("frame %d", i),
			ImagePath:        &path,
			ImageURL:         &url,
		}
		if err := tx.WithContext(ctx).Create(f).Error; err != nil {
			tb.Fatalf("seed frame: %v", err)
		}
		out = append(out, f)
	}
	return out
}

// SeedClipChain creates one queued clip per consecutive frame pair.
func SeedClipChain(tb testing.TB, ctx context.Context, tx *gorm.DB, storyID uuid.UUID, frames []*story.StoryboardFrame) []*story.Video {
	tb.Helper()
	var out []*story.Video
	for i := 0; i+1 < len(frames); i++ {
		seq := i + 1
		from, to := frames[i].ID, frames[i+1].ID
		v := &story.Video{
			StoryID:        storyID,
			SequenceNumber: &seq,
			FrameFromID:    &from,
			FrameToID:      &to,
			Prompt:         fmt.Sprintf("clip %d", seq),
			Status:         story.VideoQueued,
		}
		if err := tx.WithContext(ctx).Create(v).Error; err != nil {
			tb.Fatalf("seed clip: %v", err)
		}
		out = append(out, v)
	}
	return out
}
