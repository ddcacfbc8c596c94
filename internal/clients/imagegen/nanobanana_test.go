package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNanoBananaSubmitAndPoll(t *testing.T) {
	var submitted map[string]any
	flags := []string{
		`{"code":200,"data":{"successFlag":0}}`,
		`{"code":200,"data":{"successFlag":1,"response":{"originImageUrl":"https://cdn/x.png"}}}`,
	}
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer nb-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/generate-pro":
			_ = json.NewDecoder(r.Body).Decode(&submitted)
			_, _ = w.Write([]byte(`{"code":200,"msg":"ok","data":{"taskId":"task-1"}}`))
		case "/record-info":
			assert.Equal(t, "task-1", r.URL.Query().Get("taskId"))
			_, _ = w.Write([]byte(flags[polls]))
			polls++
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewNanoBanana(nil, NanoBananaOptions{BaseURL: srv.URL})
	creds := Credentials{APIKey: "nb-key"}
	id, err := c.Submit(context.Background(), creds, "a lighthouse", []string{"https://cdn/ref.png"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	assert.Equal(t, "2K", submitted["resolution"])
	assert.Len(t, submitted["imageUrls"], 1)

	st, err := c.Poll(context.Background(), creds, id)
	require.NoError(t, err)
	assert.Equal(t, StateGenerating, st.State)

	st, err = c.Poll(context.Background(), creds, id)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, st.State)
	assert.Equal(t, "https://cdn/x.png", st.ImageURL)
}

func TestNanoBananaSubmitOmitsEmptyRefs(t *testing.T) {
	var submitted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&submitted)
		_, _ = w.Write([]byte(`{"code":0,"data":{"taskId":"t"}}`))
	}))
	defer srv.Close()

	c := NewNanoBanana(nil, NanoBananaOptions{BaseURL: srv.URL, RatePerSec: 100})
	_, err := c.Submit(context.Background(), Credentials{APIKey: "k"}, "p", nil)
	require.NoError(t, err)
	_, has := submitted["imageUrls"]
	assert.False(t, has)
}

func TestNanoBananaAPIErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":402,"msg":"insufficient credits"}`))
	}))
	defer srv.Close()

	c := NewNanoBanana(nil, NanoBananaOptions{BaseURL: srv.URL})
	_, err := c.Submit(context.Background(), Credentials{APIKey: "k"}, "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient credits")
}

func TestNanoBananaRequiresKey(t *testing.T) {
	c := NewNanoBanana(nil, NanoBananaOptions{})
	_, err := c.Submit(context.Background(), Credentials{}, "p", nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestStatusFromFlag(t *testing.T) {
	var env nbEnvelope
	env.Data.SuccessFlag = 2
	assert.Equal(t, ImageStatus{State: StateFailed, Error: "Creation failed"}, statusFromFlag(env))
	env.Data.SuccessFlag = 3
	env.Data.ErrorMessage = "nsfw"
	assert.Equal(t, ImageStatus{State: StateFailed, Error: "nsfw"}, statusFromFlag(env))
	env.Data.SuccessFlag = 9
	assert.Equal(t, "Unknown status flag: 9", statusFromFlag(env).Error)
}
