package videogen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/httpx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

const DefaultHiggsfieldBaseURL = "https://cloud.higgsfield.ai/v1"

type HiggsfieldOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Higgsfield is the alternate image-to-video backend.
type Higgsfield struct {
	log  *logger.Logger
	opts HiggsfieldOptions
	hc   *http.Client
}

func NewHiggsfield(log *logger.Logger, opts HiggsfieldOptions) *Higgsfield {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultHiggsfieldBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Higgsfield{log: log.With("client", "higgsfield"), opts: opts, hc: hc}
}

func (h *Higgsfield) Provider() string { return "higgsfield" }

func (h *Higgsfield) Submit(ctx context.Context, creds Credentials, startURL, endURL string, p Params) (id string, err error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return "", ErrNotConfigured
	}
	start := time.Now()
	defer func() { observability.Current().ObserveProviderCall(h.Provider(), "submit", err, time.Since(start)) }()

	images := []string{startURL}
	if endURL != "" {
		images = append(images, endURL)
	}
	body := map[string]any{}
	if raw, err := json.Marshal(p); err == nil {
		_ = json.Unmarshal(raw, &body)
	}
	body["image_urls"] = images
	body["type"] = "image_to_video"

	req, err := httpx.NewJSONRequest(ctx, http.MethodPost, h.opts.BaseURL+"/generations", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	var out struct {
		ID string `json:"id"`
	}
	if err := httpx.DoJSON(h.hc, req, &out); err != nil {
		h.log.Warn("submit failed", "error", err)
		return "", fmt.Errorf("failed to submit video generation: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("no generation ID in response")
	}
	return out.ID, nil
}

type higgsfieldStatus struct {
	Status   string          `json:"status"`
	VideoURL string          `json:"video_url"`
	Duration json.RawMessage `json:"duration"`
	Error    string          `json:"error"`
	Message  string          `json:"message"`
	Output   struct {
		VideoURL string          `json:"video_url"`
		Duration json.RawMessage `json:"duration"`
	} `json:"output"`
}

func (h *Higgsfield) Poll(ctx context.Context, creds Credentials, taskID string) (st VideoStatus, err error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return VideoStatus{}, ErrNotConfigured
	}
	start := time.Now()
	defer func() { observability.Current().ObserveProviderCall(h.Provider(), "poll", err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.BaseURL+"/generations/"+taskID, nil)
	if err != nil {
		return VideoStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	var out higgsfieldStatus
	if err := httpx.DoJSON(h.hc, req, &out); err != nil {
		return VideoStatus{}, fmt.Errorf("failed to check video status: %w", err)
	}
	switch out.Status {
	case "completed", "done", "success":
		dur := parseDuration(out.Output.Duration)
		if dur == 0 {
			dur = parseDuration(out.Duration)
		}
		return VideoStatus{
			State:           StateCompleted,
			VideoURL:        firstNonEmpty(out.Output.VideoURL, out.VideoURL),
			DurationSeconds: dur,
		}, nil
	case "failed", "error":
		return VideoStatus{State: StateFailed, Error: firstNonEmpty(out.Error, out.Message, "Video generation failed")}, nil
	default:
		return VideoStatus{State: StateProcessing}, nil
	}
}
