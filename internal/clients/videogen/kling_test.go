package videogen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKlingSubmitSignsTokenAndBuildsBody(t *testing.T) {
	var tokens []string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
			_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"kt-1"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_status":"processing"}}`))
	}))
	defer srv.Close()

	k := NewKling(nil, KlingOptions{BaseURL: srv.URL})
	creds := Credentials{APIKey: "ak_123:sk_456"}
	id, err := k.Submit(context.Background(), creds, "https://cdn/1.png", "https://cdn/2.png", Params{
		Prompt: "walks to the door", Duration: "5", Mode: "pro", CameraControl: "forward_up",
	})
	require.NoError(t, err)
	assert.Equal(t, "kt-1", id)
	assert.Equal(t, "https://cdn/2.png", body["image_tail"])
	assert.Equal(t, "pro", body["mode"])
	assert.Equal(t, DefaultKlingModel, body["model_name"])
	assert.Equal(t, map[string]any{"type": "forward_up"}, body["camera_control"])
	_, hasAudio := body["enable_audio"]
	assert.False(t, hasAudio)

	st, err := k.Poll(context.Background(), creds, id)
	require.NoError(t, err)
	assert.Equal(t, StateProcessing, st.State)

	require.Len(t, tokens, 2)
	assert.Equal(t, tokens[0], tokens[1], "token should be reused from cache")

	parsed, err := jwt.Parse(tokens[0], func(*jwt.Token) (any, error) { return []byte("sk_456"), nil },
		jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	iss, err := parsed.Claims.GetIssuer()
	require.NoError(t, err)
	assert.Equal(t, "ak_123", iss)
	exp, err := parsed.Claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp.Time, 5*time.Second)
}

func TestKlingPollStates(t *testing.T) {
	replies := map[string]string{
		"done":   `{"code":0,"data":{"task_status":"succeed","task_result":{"videos":[{"url":"https://cdn/c.mp4","duration":"5.04"}]}}}`,
		"broken": `{"code":0,"data":{"task_status":"failed","task_status_msg":"content rejected"}}`,
		"quiet":  `{"code":0,"data":{"task_status":"failed"}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		_, _ = w.Write([]byte(replies[id]))
	}))
	defer srv.Close()

	k := NewKling(nil, KlingOptions{BaseURL: srv.URL})
	creds := Credentials{APIKey: "a:b"}

	st, err := k.Poll(context.Background(), creds, "done")
	require.NoError(t, err)
	assert.Equal(t, VideoStatus{State: StateCompleted, VideoURL: "https://cdn/c.mp4", DurationSeconds: 5}, st)

	st, err = k.Poll(context.Background(), creds, "broken")
	require.NoError(t, err)
	assert.Equal(t, "content rejected", st.Error)

	st, err = k.Poll(context.Background(), creds, "quiet")
	require.NoError(t, err)
	assert.Equal(t, "Video generation failed", st.Error)
}

func TestKlingAPIErrorAndMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":1102,"message":"balance not enough"}`))
	}))
	defer srv.Close()

	k := NewKling(nil, KlingOptions{BaseURL: srv.URL})
	_, err := k.Submit(context.Background(), Credentials{APIKey: "a:b"}, "s", "e", Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kling API error: balance not enough")

	_, err = k.Submit(context.Background(), Credentials{APIKey: "only-access"}, "s", "e", Params{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestHiggsfieldSubmitAndPoll(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf", r.Header.Get("Authorization"))
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
			_, _ = w.Write([]byte(`{"id":"gen-9"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"done","output":{"video_url":"https://cdn/h.mp4","duration":10}}`))
	}))
	defer srv.Close()

	h := NewHiggsfield(nil, HiggsfieldOptions{BaseURL: srv.URL})
	creds := Credentials{APIKey: "hf"}
	id, err := h.Submit(context.Background(), creds, "https://cdn/1.png", "https://cdn/2.png", Params{Prompt: "p", Duration: "5"})
	require.NoError(t, err)
	assert.Equal(t, "gen-9", id)
	assert.Equal(t, "image_to_video", body["type"])
	assert.Len(t, body["image_urls"], 2)
	assert.Equal(t, "p", body["prompt"])

	st, err := h.Poll(context.Background(), creds, id)
	require.NoError(t, err)
	assert.Equal(t, VideoStatus{State: StateCompleted, VideoURL: "https://cdn/h.mp4", DurationSeconds: 10}, st)
}
