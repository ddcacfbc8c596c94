package videogen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/pandoapps/videoSoryBoard/internal/clients/redis"
	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/httpx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

const (
	DefaultKlingBaseURL = "https://api-singapore.klingai.com"
	DefaultKlingModel   = "kling-v2-6"

	klingTokenTTL      = 30 * time.Minute
	klingTokenCacheTTL = 1500 * time.Second
)

type KlingOptions struct {
	BaseURL    string
	RatePerSec float64
	HTTPClient *http.Client
	// TokenCache holds signed tokens; nil uses an in-process cache.
	TokenCache redis.Cache
	Now        func() time.Time
}

type Kling struct {
	log     *logger.Logger
	opts    KlingOptions
	hc      *http.Client
	limiter *rate.Limiter
}

func NewKling(log *logger.Logger, opts KlingOptions) *Kling {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultKlingBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.TokenCache == nil {
		opts.TokenCache = redis.NewMemoryCache()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	k := &Kling{log: log.With("client", "kling"), opts: opts, hc: hc}
	if opts.RatePerSec > 0 {
		k.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return k
}

func (k *Kling) Provider() string { return "kling" }

func splitKlingKey(raw string) (access, secret string, ok bool) {
	access, secret, _ = strings.Cut(strings.TrimSpace(raw), ":")
	if access == "" || secret == "" {
		return "", "", false
	}
	return access, secret, true
}

// token signs (or reuses) an HS256 JWT issued by the access key.
func (k *Kling) token(ctx context.Context, creds Credentials) (string, error) {
	access, secret, ok := splitKlingKey(creds.APIKey)
	if !ok {
		return "", ErrNotConfigured
	}
	sum := sha256.Sum256([]byte(creds.APIKey))
	cacheKey := "kling_jwt." + hex.EncodeToString(sum[:8])
	if tok, hit, err := k.opts.TokenCache.Get(ctx, cacheKey); err == nil && hit {
		return tok, nil
	}

	now := k.opts.Now()
	claims := jwt.MapClaims{
		"iss": access,
		"exp": now.Add(klingTokenTTL).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
		"iat": now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign kling token: %w", err)
	}
	if err := k.opts.TokenCache.Set(ctx, cacheKey, signed, klingTokenCacheTTL); err != nil {
		k.log.Warn("token cache write failed", "error", err)
	}
	return signed, nil
}

func (k *Kling) wait(ctx context.Context) error {
	if k.limiter == nil {
		return nil
	}
	return k.limiter.Wait(ctx)
}

type klingEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    struct {
			Videos []struct {
				URL      string          `json:"url"`
				Duration json.RawMessage `json:"duration"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

func buildKlingBody(startURL, endURL string, p Params) map[string]any {
	body := map[string]any{
		"model_name": firstNonEmpty(p.ModelName, DefaultKlingModel),
		"image":      startURL,
		"mode":       firstNonEmpty(p.Mode, "std"),
		"duration":   firstNonEmpty(p.Duration, "5"),
	}
	if endURL != "" {
		body["image_tail"] = endURL
	}
	if p.Prompt != "" {
		body["prompt"] = p.Prompt
	}
	if p.NegativePrompt != "" {
		body["negative_prompt"] = p.NegativePrompt
	}
	if p.AspectRatio != "" {
		body["aspect_ratio"] = p.AspectRatio
	}
	if p.CfgScale > 0 {
		body["cfg_scale"] = p.CfgScale
	}
	if p.EnableAudio {
		body["enable_audio"] = true
	}
	if p.CameraControl != "" {
		body["camera_control"] = map[string]string{"type": p.CameraControl}
	}
	return body
}

func (k *Kling) Submit(ctx context.Context, creds Credentials, startURL, endURL string, p Params) (taskID string, err error) {
	start := time.Now()
	defer func() { observability.Current().ObserveProviderCall(k.Provider(), "submit", err, time.Since(start)) }()

	tok, err := k.token(ctx, creds)
	if err != nil {
		return "", err
	}
	if err := k.wait(ctx); err != nil {
		return "", err
	}
	req, err := httpx.NewJSONRequest(ctx, http.MethodPost, k.opts.BaseURL+"/v1/videos/image2video", buildKlingBody(startURL, endURL, p))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	var env klingEnvelope
	if err := httpx.DoJSON(k.hc, req, &env); err != nil {
		k.log.Warn("submit failed", "error", err)
		return "", fmt.Errorf("failed to submit video generation: %w", err)
	}
	if env.Code != 0 {
		msg := firstNonEmpty(env.Message, "Unknown error")
		return "", fmt.Errorf("Kling API error: %s", msg)
	}
	if env.Data.TaskID == "" {
		return "", errors.New("no task_id in Kling response")
	}
	return env.Data.TaskID, nil
}

func (k *Kling) Poll(ctx context.Context, creds Credentials, taskID string) (st VideoStatus, err error) {
	start := time.Now()
	defer func() { observability.Current().ObserveProviderCall(k.Provider(), "poll", err, time.Since(start)) }()

	tok, err := k.token(ctx, creds)
	if err != nil {
		return VideoStatus{}, err
	}
	if err := k.wait(ctx); err != nil {
		return VideoStatus{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.opts.BaseURL+"/v1/videos/image2video/"+taskID, nil)
	if err != nil {
		return VideoStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	var env klingEnvelope
	if err := httpx.DoJSON(k.hc, req, &env); err != nil {
		return VideoStatus{}, fmt.Errorf("failed to check video status: %w", err)
	}
	switch env.Data.TaskStatus {
	case "succeed":
		out := VideoStatus{State: StateCompleted}
		if v := env.Data.TaskResult.Videos; len(v) > 0 {
			out.VideoURL = v[0].URL
			out.DurationSeconds = parseDuration(v[0].Duration)
		}
		return out, nil
	case "failed":
		return VideoStatus{State: StateFailed, Error: firstNonEmpty(env.Data.TaskStatusMsg, "Video generation failed")}, nil
	default:
		return VideoStatus{State: StateProcessing}, nil
	}
}

// parseDuration accepts the duration as a JSON number or numeric string.
func parseDuration(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
