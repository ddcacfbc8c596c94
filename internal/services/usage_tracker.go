package services

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// Text model pricing in USD per million tokens.
const (
	textInputPricePerM  = 3.00
	textOutputPricePerM = 15.00
)

// Flat per-call estimates in cents for providers billed by request.
var perCallCents = map[string]int64{
	"nano_banana": 9,
	"kling":       50,
	"higgsfield":  50,
}

// TextCostCents converts token counts to whole cents.
func TextCostCents(inputTokens, outputTokens int) int {
	in := float64(inputTokens) / 1_000_000 * textInputPricePerM
	out := float64(outputTokens) / 1_000_000 * textOutputPricePerM
	return int(math.Round((in + out) * 100))
}

// StoryCost is the cost view of one story.
type StoryCost struct {
	StoryID    uuid.UUID                          `json:"story_id"`
	StoryTitle string                             `json:"story_title"`
	Services   map[string]repos.StoryServiceTotal `json:"services"`
	TotalCents int64                              `json:"total_cents"`
}

type UsageTracker interface {
	RecordTextGen(dbc dbctx.Context, storyID *uuid.UUID, userID uuid.UUID, service, operation string, inputTokens, outputTokens int, model string)
	RecordAPICall(dbc dbctx.Context, storyID *uuid.UUID, userID uuid.UUID, service, operation string, metadata map[string]any)
	StoryUsage(dbc dbctx.Context, storyID uuid.UUID) ([]*types.ApiUsage, error)
	Costs(dbc dbctx.Context, userID uuid.UUID) ([]StoryCost, int64, error)
}

type usageTracker struct {
	log  *logger.Logger
	repo repos.ApiUsageRepo
}

func NewUsageTracker(baseLog *logger.Logger, repo repos.ApiUsageRepo) UsageTracker {
	return &usageTracker{log: baseLog.With("service", "UsageTracker"), repo: repo}
}

// Recording is a side effect: failures are logged and never fail the caller.
func (u *usageTracker) RecordTextGen(dbc dbctx.Context, storyID *uuid.UUID, userID uuid.UUID, service, operation string, inputTokens, outputTokens int, model string) {
	cost := TextCostCents(inputTokens, outputTokens)
	row := &types.ApiUsage{
		StoryID:      storyID,
		UserID:       userID,
		Service:      service,
		Operation:    operation,
		InputTokens:  &inputTokens,
		OutputTokens: &outputTokens,
		CostCents:    &cost,
	}
	if model != "" {
		row.Metadata = mustJSON(map[string]any{"model": model})
	}
	if err := u.repo.Create(dbc, row); err != nil {
		u.log.Warn("record usage failed", "service", service, "operation", operation, "error", err)
	}
}

func (u *usageTracker) RecordAPICall(dbc dbctx.Context, storyID *uuid.UUID, userID uuid.UUID, service, operation string, metadata map[string]any) {
	row := &types.ApiUsage{StoryID: storyID, UserID: userID, Service: service, Operation: operation}
	if len(metadata) > 0 {
		row.Metadata = mustJSON(metadata)
	}
	if err := u.repo.Create(dbc, row); err != nil {
		u.log.Warn("record usage failed", "service", service, "operation", operation, "error", err)
	}
}

func (u *usageTracker) StoryUsage(dbc dbctx.Context, storyID uuid.UUID) ([]*types.ApiUsage, error) {
	return u.repo.ListByStory(dbc, storyID)
}

// Costs groups a user's usage per story. Token-billed services sum recorded cents;
// request-billed services are priced per call.
func (u *usageTracker) Costs(dbc dbctx.Context, userID uuid.UUID) ([]StoryCost, int64, error) {
	rows, err := u.repo.TotalsByStoryAndService(dbc, userID)
	if err != nil {
		return nil, 0, err
	}
	byStory := map[uuid.UUID]*StoryCost{}
	var order []uuid.UUID
	var grand int64
	for _, r := range rows {
		sc, ok := byStory[r.StoryID]
		if !ok {
			sc = &StoryCost{StoryID: r.StoryID, StoryTitle: r.StoryTitle, Services: map[string]repos.StoryServiceTotal{}}
			byStory[r.StoryID] = sc
			order = append(order, r.StoryID)
		}
		if per, ok := perCallCents[r.Service]; ok {
			r.CostCents = r.CallCount * per
		}
		sc.Services[r.Service] = r
		sc.TotalCents += r.CostCents
		grand += r.CostCents
	}
	out := make([]StoryCost, 0, len(order))
	for _, id := range order {
		out = append(out, *byStory[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalCents > out[j].TotalCents })
	return out, grand, nil
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}
