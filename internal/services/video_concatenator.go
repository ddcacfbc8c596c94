package services

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/localmedia"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// ConcatResult describes the uploaded final cut.
type ConcatResult struct {
	Path            string
	URL             string
	DurationSeconds int
}

type VideoConcatenator interface {
	Concatenate(ctx context.Context, storyID uuid.UUID, clips []*types.Video) (ConcatResult, error)
}

type videoConcatenator struct {
	log         *logger.Logger
	media       localmedia.Tools
	store       MediaStore
	parallelism int
}

func NewVideoConcatenator(baseLog *logger.Logger, media localmedia.Tools, store MediaStore) VideoConcatenator {
	return &videoConcatenator{
		log:         baseLog.With("service", "VideoConcatenator"),
		media:       media,
		store:       store,
		parallelism: 4,
	}
}

func VideoDir(storyID uuid.UUID) string {
	return fmt.Sprintf("stories/%s/videos", storyID)
}

// usableClips keeps completed clips with a URL, ordered by sequence.
func usableClips(clips []*types.Video) []*types.Video {
	out := make([]*types.Video, 0, len(clips))
	for _, c := range clips {
		if c == nil || c.IsFinal || c.Status != domain.VideoCompleted || !c.HasURL() {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq() < out[j].Seq() })
	return out
}

func (v *videoConcatenator) Concatenate(ctx context.Context, storyID uuid.UUID, clips []*types.Video) (ConcatResult, error) {
	clips = usableClips(clips)
	if len(clips) == 0 {
		return ConcatResult{}, domain.ErrNoClips
	}

	dir, cleanup, err := v.media.MakeScratchDir("concat_" + storyID.String())
	if err != nil {
		return ConcatResult{}, err
	}
	defer cleanup()

	if len(clips) == 1 {
		return v.single(ctx, storyID, dir, clips[0])
	}

	log := v.log.With("story_id", storyID)
	log.Info("Concatenation: downloading clips", "clip_count", len(clips))

	files := make([]string, len(clips))
	streams := make([]localmedia.StreamInfo, len(clips))
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.parallelism)
	for i, clip := range clips {
		i, clip := i, clip
		g.Go(func() error {
			path := filepath.Join(dir, fmt.Sprintf("clip_%d.mp4", i))
			if err := v.store.DownloadToFile(gctx, *clip.VideoURL, path); err != nil {
				return fmt.Errorf("download clip %s (seq %d): %w", clip.ID, clip.Seq(), err)
			}
			files[i] = path
			info, err := v.media.ProbeStream(gctx, path)
			if err != nil {
				log.Warn("ffprobe failed, using defaults", "file", filepath.Base(path), "error", err)
				info = localmedia.DefaultStream
			}
			streams[i] = info
			return nil
		})
	}
	err = g.Wait()
	observability.Current().ObserveMediaStep("download_probe", err, time.Since(start))
	if err != nil {
		return ConcatResult{}, err
	}

	target := SelectTargetFormat(streams)
	log.Info("Concatenation: target format", "width", target.Width, "height", target.Height, "fps", target.FPS)

	normalized := make([]string, len(files))
	for i, f := range files {
		out := filepath.Join(dir, fmt.Sprintf("norm_%d.mp4", i))
		stepStart := time.Now()
		err := v.media.Normalize(ctx, f, out, target)
		observability.Current().ObserveMediaStep("normalize", err, time.Since(stepStart))
		if err != nil {
			return ConcatResult{}, err
		}
		normalized[i] = out
	}

	output := filepath.Join(dir, fmt.Sprintf("final_%s.mp4", storyID))
	stepStart := time.Now()
	err = v.media.Concat(ctx, normalized, output)
	observability.Current().ObserveMediaStep("concat", err, time.Since(stepStart))
	if err != nil {
		return ConcatResult{}, err
	}

	duration := v.probeSeconds(ctx, output)
	stored, err := v.store.StoreFromPath(ctx, output, VideoDir(storyID), "mp4")
	if err != nil {
		return ConcatResult{}, err
	}
	log.Info("Concatenation: success", "duration", duration, "path", stored.Path)
	return ConcatResult{Path: stored.Path, URL: stored.URL, DurationSeconds: duration}, nil
}

// single re-hosts the only clip without re-encoding.
func (v *videoConcatenator) single(ctx context.Context, storyID uuid.UUID, dir string, clip *types.Video) (ConcatResult, error) {
	path := filepath.Join(dir, "single.mp4")
	if err := v.store.DownloadToFile(ctx, *clip.VideoURL, path); err != nil {
		return ConcatResult{}, fmt.Errorf("download clip %s: %w", clip.ID, err)
	}
	duration := 0
	if clip.DurationSeconds != nil {
		duration = *clip.DurationSeconds
	} else {
		duration = v.probeSeconds(ctx, path)
	}
	stored, err := v.store.StoreFromPath(ctx, path, VideoDir(storyID), "mp4")
	if err != nil {
		return ConcatResult{}, err
	}
	return ConcatResult{Path: stored.Path, URL: stored.URL, DurationSeconds: duration}, nil
}

func (v *videoConcatenator) probeSeconds(ctx context.Context, path string) int {
	d, err := v.media.ProbeDuration(ctx, path)
	if err != nil {
		v.log.Warn("duration probe failed", "file", filepath.Base(path), "error", err)
		return 0
	}
	return int(math.Round(d))
}

// SelectTargetFormat picks the modal resolution and modal frame rate. Ties go to
// the value seen first. Dimensions are rounded up to even numbers for libx264.
func SelectTargetFormat(streams []localmedia.StreamInfo) localmedia.TargetFormat {
	if len(streams) == 0 {
		d := localmedia.DefaultStream
		return localmedia.TargetFormat{Width: d.Width, Height: d.Height, FPS: d.FPS, Codec: "libx264", PixFmt: "yuv420p"}
	}
	type res struct{ w, h int }
	resCount := map[res]int{}
	fpsCount := map[float64]int{}
	var resOrder []res
	var fpsOrder []float64
	for _, p := range streams {
		r := res{p.Width, p.Height}
		if resCount[r] == 0 {
			resOrder = append(resOrder, r)
		}
		resCount[r]++
		if fpsCount[p.FPS] == 0 {
			fpsOrder = append(fpsOrder, p.FPS)
		}
		fpsCount[p.FPS]++
	}
	best := resOrder[0]
	for _, r := range resOrder[1:] {
		if resCount[r] > resCount[best] {
			best = r
		}
	}
	bestFPS := fpsOrder[0]
	for _, f := range fpsOrder[1:] {
		if fpsCount[f] > fpsCount[bestFPS] {
			bestFPS = f
		}
	}
	w, h := best.w, best.h
	if w%2 != 0 {
		w++
	}
	if h%2 != 0 {
		h++
	}
	return localmedia.TargetFormat{Width: w, Height: h, FPS: bestFPS, Codec: "libx264", PixFmt: "yuv420p"}
}
