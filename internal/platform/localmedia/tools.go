package localmedia

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pandoapps/videoSoryBoard/internal/platform/ctxutil"
	"github.com/pandoapps/videoSoryBoard/internal/platform/envutil"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// Tools wraps the ffmpeg and ffprobe binaries.
//
// Calls are synchronous and run from worker jobs, never from request handlers.
type Tools interface {
	AssertReady(ctx context.Context) error

	ProbeStream(ctx context.Context, path string) (StreamInfo, error)
	ProbeDuration(ctx context.Context, path string) (float64, error)
	Normalize(ctx context.Context, inputPath, outputPath string, target TargetFormat) error
	Concat(ctx context.Context, inputs []string, outputPath string) error

	// MakeScratchDir returns a fresh directory and its cleanup func.
	MakeScratchDir(prefix string) (string, func(), error)
}

type StreamInfo struct {
	Width  int
	Height int
	FPS    float64
	Codec  string
	PixFmt string
}

type TargetFormat struct {
	Width  int
	Height int
	FPS    float64
	Codec  string
	PixFmt string
}

// DefaultStream is used when ffprobe cannot read a clip.
var DefaultStream = StreamInfo{Width: 1280, Height: 720, FPS: 30, Codec: "unknown", PixFmt: "yuv420p"}

const (
	probeTimeout     = 30 * time.Second
	normalizeTimeout = 120 * time.Second
	concatTimeout    = 300 * time.Second
)

type tools struct {
	log         *logger.Logger
	ffmpegPath  string
	ffprobePath string
	workRoot    string
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:         log.With("service", "MediaTools"),
		ffmpegPath:  envutil.String("FFMPEG_BIN", "ffmpeg"),
		ffprobePath: envutil.String("FFPROBE_BIN", "ffprobe"),
		workRoot:    envutil.String("MEDIA_WORK_DIR", filepath.Join(os.TempDir(), "videosoryboard-media")),
	}
}

func (m *tools) AssertReady(ctx context.Context) error {
	ctx = ctxutil.Default(ctx)
	for _, bin := range []string{m.ffmpegPath, m.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

func (m *tools) MakeScratchDir(prefix string) (string, func(), error) {
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("create workRoot: %w", err)
	}
	dir, err := os.MkdirTemp(m.workRoot, prefix+"_")
	if err != nil {
		return "", func() {}, err
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			m.log.Warn("scratch cleanup failed", "dir", dir, "error", err)
		}
	}, nil
}

type probeOutput struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		CodecName  string `json:"codec_name"`
		PixFmt     string `json:"pix_fmt"`
	} `json:"streams"`
}

// ProbeStream reads the first video stream. Missing fields fall back to DefaultStream values.
func (m *tools) ProbeStream(ctx context.Context, path string) (StreamInfo, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,codec_name,pix_fmt",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return DefaultStream, fmt.Errorf("ffprobe stream failed: %w", err)
	}
	return ParseProbeJSON(out)
}

func ParseProbeJSON(raw []byte) (StreamInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(raw, &po); err != nil {
		return DefaultStream, fmt.Errorf("decode ffprobe output: %w", err)
	}
	info := DefaultStream
	if len(po.Streams) == 0 {
		return info, nil
	}
	s := po.Streams[0]
	if s.Width > 0 {
		info.Width = s.Width
	}
	if s.Height > 0 {
		info.Height = s.Height
	}
	if fps, ok := ParseFrameRate(s.RFrameRate); ok {
		info.FPS = fps
	}
	if s.CodecName != "" {
		info.Codec = s.CodecName
	}
	if s.PixFmt != "" {
		info.PixFmt = s.PixFmt
	}
	return info, nil
}

// ParseFrameRate turns "24000/1001" into 23.98 (two decimals).
func ParseFrameRate(raw string) (float64, bool) {
	num, den, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return 0, false
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || d <= 0 {
		return 0, false
	}
	return math.Round(float64(n)/float64(d)*100) / 100, true
}

func (m *tools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration failed: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

// Normalize re-encodes a clip to target. A clip without audio fails the first pass, so a
// second video-only pass is tried before giving up.
func (m *tools) Normalize(ctx context.Context, inputPath, outputPath string, target TargetFormat) error {
	ctx = ctxutil.Default(ctx)

	withAudio, videoOnly := NormalizeArgs(inputPath, outputPath, target)
	first, err := m.run(ctx, normalizeTimeout, withAudio)
	if err == nil {
		return nil
	}
	m.log.Debug("normalize with audio failed, retrying video-only", "input", filepath.Base(inputPath), "error", err)
	out, err := m.run(ctx, normalizeTimeout, videoOnly)
	if err != nil {
		m.log.Error("ffmpeg normalisation failed", "input", filepath.Base(inputPath), "stderr", tail(out, 2000), "first_stderr", tail(first, 500))
		return fmt.Errorf("ffmpeg normalize failed: %w", err)
	}
	return nil
}

// Concat writes the demuxer list next to outputPath and stream-copies the inputs.
func (m *tools) Concat(ctx context.Context, inputs []string, outputPath string) error {
	ctx = ctxutil.Default(ctx)
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no inputs")
	}
	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	if err := os.WriteFile(listPath, []byte(ConcatList(inputs)), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	out, err := m.run(ctx, concatTimeout, ConcatArgs(listPath, outputPath))
	if err != nil {
		m.log.Error("ffmpeg concat failed", "stderr", tail(out, 2000))
		return fmt.Errorf("ffmpeg concat failed: %w", err)
	}
	return nil
}

func (m *tools) run(ctx context.Context, timeout time.Duration, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, m.ffmpegPath, args...).CombinedOutput()
	return string(out), err
}

// ScaleFilter letterboxes into the target size and fixes sample aspect ratio and frame rate.
func ScaleFilter(t TargetFormat) string {
	fps := strconv.FormatFloat(t.FPS, 'f', -1, 64)
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=%s",
		t.Width, t.Height, t.Width, t.Height, fps,
	)
}

// NormalizeArgs returns the primary (with AAC audio) and fallback (no audio) ffmpeg argument lists.
func NormalizeArgs(inputPath, outputPath string, t TargetFormat) (withAudio []string, videoOnly []string) {
	codec := t.Codec
	if codec == "" {
		codec = "libx264"
	}
	pixFmt := t.PixFmt
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}
	video := []string{
		"-y",
		"-i", inputPath,
		"-vf", ScaleFilter(t),
		"-c:v", codec,
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", pixFmt,
	}
	withAudio = append(append([]string{}, video...),
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", "44100",
		"-ac", "2",
		"-movflags", "+faststart",
		"-shortest",
		outputPath,
	)
	videoOnly = append(append([]string{}, video...),
		"-an",
		"-movflags", "+faststart",
		outputPath,
	)
	return withAudio, videoOnly
}

func ConcatArgs(listPath, outputPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		outputPath,
	}
}

// ConcatList renders a concat demuxer list. A single quote inside a path is written as
//
//	'\''
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
