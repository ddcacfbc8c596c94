package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoJSONDecodesAndReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"t-1"}}`))
	}))
	defer srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodPost, srv.URL+"/ok", map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}
	var out struct {
		Data struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := DoJSON(srv.Client(), req, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out.Data.TaskID != "t-1" {
		t.Fatalf("task id: got %q", out.Data.TaskID)
	}

	req, _ = NewJSONRequest(context.Background(), http.MethodGet, srv.URL+"/bad", nil)
	err = DoJSON(srv.Client(), req, nil)
	if err == nil {
		t.Fatalf("expected status error")
	}
	if !IsRetryableError(err) {
		t.Fatalf("429 should be retryable: %v", err)
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"90"}}}
	if got := RetryAfterDuration(resp, time.Second, time.Minute); got != time.Minute {
		t.Fatalf("expected clamp to max, got %s", got)
	}
	if got := RetryAfterDuration(nil, 3*time.Second, 0); got != 3*time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}
