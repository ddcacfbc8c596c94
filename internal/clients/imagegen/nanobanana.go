package imagegen

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/httpx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

const (
	DefaultNanoBananaBaseURL = "https://api.nanobananaapi.ai/api/v1/nanobanana"
	defaultResolution        = "2K"
)

type NanoBananaOptions struct {
	BaseURL    string
	Resolution string
	// RatePerSec caps outbound calls; zero disables the limiter.
	RatePerSec float64
	HTTPClient *http.Client
}

type NanoBanana struct {
	log     *logger.Logger
	opts    NanoBananaOptions
	hc      *http.Client
	limiter *rate.Limiter
}

func NewNanoBanana(log *logger.Logger, opts NanoBananaOptions) *NanoBanana {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultNanoBananaBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Resolution == "" {
		opts.Resolution = defaultResolution
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	n := &NanoBanana{log: log.With("client", "nano_banana"), opts: opts, hc: hc}
	if opts.RatePerSec > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return n
}

func (n *NanoBanana) Provider() string { return "nano_banana" }

type nbEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID       string `json:"taskId"`
		SuccessFlag  int    `json:"successFlag"`
		ErrorMessage string `json:"errorMessage"`
		Response     struct {
			ResultImageURL string `json:"resultImageUrl"`
			OriginImageURL string `json:"originImageUrl"`
		} `json:"response"`
	} `json:"data"`
}

func (n *NanoBanana) wait(ctx context.Context) error {
	if n.limiter == nil {
		return nil
	}
	return n.limiter.Wait(ctx)
}

func (n *NanoBanana) Submit(ctx context.Context, creds Credentials, prompt string, refs []string) (taskID string, err error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return "", ErrNotConfigured
	}
	start := time.Now()
	defer func() { observability.Current().ObserveProviderCall(n.Provider(), "submit", err, time.Since(start)) }()
	if err := n.wait(ctx); err != nil {
		return "", err
	}

	body := map[string]any{
		"prompt":     prompt,
		"resolution": n.opts.Resolution,
	}
	if len(refs) > 0 {
		body["imageUrls"] = refs
	}
	req, err := httpx.NewJSONRequest(ctx, http.MethodPost, n.opts.BaseURL+"/generate-pro", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)

	var env nbEnvelope
	if err := httpx.DoJSON(n.hc, req, &env); err != nil {
		n.log.Warn("generate-pro failed", "error", err)
		return "", fmt.Errorf("failed to submit image generation: %w", err)
	}
	if env.Code != 0 && env.Code != 200 {
		msg := env.Msg
		if msg == "" {
			msg = "Unknown API error"
		}
		return "", fmt.Errorf("Nano Banana API error: %s", msg)
	}
	if env.Data.TaskID == "" {
		return "", fmt.Errorf("no taskId in response")
	}
	n.log.Debug("image task submitted", "task_id", env.Data.TaskID, "refs", len(refs))
	return env.Data.TaskID, nil
}

func (n *NanoBanana) Poll(ctx context.Context, creds Credentials, taskID string) (st ImageStatus, err error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return ImageStatus{}, ErrNotConfigured
	}
	start := time.Now()
	defer func() { observability.Current().ObserveProviderCall(n.Provider(), "poll", err, time.Since(start)) }()
	if err := n.wait(ctx); err != nil {
		return ImageStatus{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	u := n.opts.BaseURL + "/record-info?taskId=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ImageStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)

	var env nbEnvelope
	if err := httpx.DoJSON(n.hc, req, &env); err != nil {
		return ImageStatus{}, fmt.Errorf("failed to check task status: %w", err)
	}
	return statusFromFlag(env), nil
}

func statusFromFlag(env nbEnvelope) ImageStatus {
	d := env.Data
	switch d.SuccessFlag {
	case 0:
		return ImageStatus{State: StateGenerating}
	case 1:
		u := d.Response.ResultImageURL
		if u == "" {
			u = d.Response.OriginImageURL
		}
		return ImageStatus{State: StateSuccess, ImageURL: u}
	case 2, 3:
		msg := d.ErrorMessage
		if msg == "" {
			if d.SuccessFlag == 2 {
				msg = "Creation failed"
			} else {
				msg = "Generation failed"
			}
		}
		return ImageStatus{State: StateFailed, Error: msg}
	default:
		return ImageStatus{State: StateFailed, Error: fmt.Sprintf("Unknown status flag: %d", d.SuccessFlag)}
	}
}
