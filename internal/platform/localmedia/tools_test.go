package localmedia

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

func TestParseFrameRate(t *testing.T) {
	cases := map[string]float64{
		"30/1":       30,
		"24000/1001": 23.98,
		"30000/1001": 29.97,
		"25/1":       25,
	}
	for raw, want := range cases {
		got, ok := ParseFrameRate(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, bad := range []string{"", "30", "30/0", "a/b"} {
		_, ok := ParseFrameRate(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseProbeJSONDefaults(t *testing.T) {
	info, err := ParseProbeJSON([]byte(`{"streams":[{"width":1920,"height":1080,"r_frame_rate":"24/1","codec_name":"h264"}]}`))
	require.NoError(t, err)
	assert.Equal(t, StreamInfo{Width: 1920, Height: 1080, FPS: 24, Codec: "h264", PixFmt: "yuv420p"}, info)

	info, err = ParseProbeJSON([]byte(`{"streams":[]}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultStream, info)

	info, err = ParseProbeJSON([]byte(`not json`))
	require.Error(t, err)
	assert.Equal(t, DefaultStream, info)
}

func TestNormalizeArgs(t *testing.T) {
	target := TargetFormat{Width: 1280, Height: 720, FPS: 23.98, Codec: "libx264", PixFmt: "yuv420p"}
	withAudio, videoOnly := NormalizeArgs("in.mp4", "out.mp4", target)

	vf := "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=23.98"
	assert.Equal(t, []string{
		"-y", "-i", "in.mp4", "-vf", vf,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k", "-ar", "44100", "-ac", "2",
		"-movflags", "+faststart", "-shortest", "out.mp4",
	}, withAudio)
	assert.Equal(t, []string{
		"-y", "-i", "in.mp4", "-vf", vf,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-pix_fmt", "yuv420p",
		"-an", "-movflags", "+faststart", "out.mp4",
	}, videoOnly)
}

func TestScaleFilterWholeFPS(t *testing.T) {
	f := ScaleFilter(TargetFormat{Width: 720, Height: 1280, FPS: 30})
	assert.True(t, strings.HasSuffix(f, ",fps=30"), f)
}

func TestConcatListEscapesQuotes(t *testing.T) {
	got := ConcatList([]string{"/tmp/a/norm_0.mp4", "/tmp/it's/norm_1.mp4"})
	assert.Equal(t, "file '/tmp/a/norm_0.mp4'\nfile '/tmp/it'\\''s/norm_1.mp4'\n", got)
	assert.Equal(t, []string{"-y", "-f", "concat", "-safe", "0", "-i", "l.txt", "-c", "copy", "-movflags", "+faststart", "o.mp4"},
		ConcatArgs("l.txt", "o.mp4"))
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not on PATH", bin)
		}
	}
}

func TestNormalizeAndConcatWithFFmpeg(t *testing.T) {
	requireFFmpeg(t)
	t.Setenv("MEDIA_WORK_DIR", t.TempDir())
	tl := New(logger.Nop())
	ctx := context.Background()

	dir, cleanup, err := tl.MakeScratchDir("test")
	require.NoError(t, err)
	defer cleanup()

	var clips []string
	for i, size := range []string{"640x360", "320x240"} {
		p := filepath.Join(dir, "src_"+string(rune('a'+i))+".mp4")
		out, err := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "testsrc=duration=1:size="+size+":rate=25",
			"-pix_fmt", "yuv420p", p).CombinedOutput()
		require.NoError(t, err, string(out))
		clips = append(clips, p)
	}

	info, err := tl.ProbeStream(ctx, clips[0])
	require.NoError(t, err)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, 25.0, info.FPS)

	target := TargetFormat{Width: 640, Height: 360, FPS: 25, Codec: "libx264", PixFmt: "yuv420p"}
	var norm []string
	for i, c := range clips {
		out := filepath.Join(dir, "norm_"+string(rune('0'+i))+".mp4")
		require.NoError(t, tl.Normalize(ctx, c, out, target))
		norm = append(norm, out)
	}
	final := filepath.Join(dir, "final.mp4")
	require.NoError(t, tl.Concat(ctx, norm, final))

	st, err := os.Stat(final)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))

	d, err := tl.ProbeDuration(ctx, final)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 0.5)
}
