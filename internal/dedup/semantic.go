package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/resilience"
	"github.com/sector-pulse/pulse-cli/internal/store"
	"github.com/sector-pulse/pulse-cli/pkg/anthropic"
)

// Clusterer groups same-story events within one day. Implementations return
// groups of zero-based indices into the input slice; every index in a group
// after the first is a semantic duplicate of the first.
type Clusterer interface {
	ClusterDay(ctx context.Context, date string, events []model.Event) ([][]int, error)
}

// NoopClusterer never finds duplicates. It is the default when no API key
// is configured.
type NoopClusterer struct{}

func (NoopClusterer) ClusterDay(context.Context, string, []model.Event) ([][]int, error) {
	return nil, nil
}

// clusterPrompt asks the model to group headlines that cover the same
// underlying story. Responses must be strict JSON.
const clusterPrompt = `You are detecting duplicate news coverage. You will receive a numbered list of headlines collected on a single day. Group together headlines that report the SAME underlying story or announcement, even when worded differently. Different stories about the same company are NOT duplicates.

Respond with ONLY valid JSON, no other text:
{"duplicate_groups": [[1, 4], [2, 7, 9]], "reasoning": "brief explanation"}

Use the headline numbers from the list. Only include groups with two or more headlines. Return {"duplicate_groups": [], "reasoning": "..."} when there are none.`

type clusterResponse struct {
	DuplicateGroups [][]int `json:"duplicate_groups"`
	Reasoning       string  `json:"reasoning"`
}

// ClaudeClusterer clusters headlines with a single Anthropic message per
// day. A rate limiter caps request frequency across days.
type ClaudeClusterer struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewClaudeClusterer builds a clusterer. requestsPerMin caps the call rate;
// zero or negative disables limiting.
func NewClaudeClusterer(ai anthropic.Client, model string, maxTokens int64, requestsPerMin float64) *ClaudeClusterer {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerMin/60), 1)
	}
	return &ClaudeClusterer{ai: ai, model: model, maxTokens: maxTokens, limiter: limiter}
}

func (c *ClaudeClusterer) ClusterDay(ctx context.Context, date string, events []model.Event) ([][]int, error) {
	if len(events) < 2 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "semantic: rate limit wait")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Headlines collected on %s:\n\n", date)
	for i, ev := range events {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, ev.Title)
	}

	retryCfg := resilience.DefaultConfig()
	retryCfg.OnRetry = resilience.Logger("anthropic", "semantic_dedup")
	resp, err := resilience.Call(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System:    []anthropic.SystemBlock{{Text: clusterPrompt}},
			Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "semantic: claude request")
	}
	resp.Usage.LogCost(c.model, "semantic_dedup")

	groups, err := parseClusterResponse(resp.Text(), len(events))
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// parseClusterResponse extracts duplicate groups from the model output.
// Indices come back 1-based and are converted; out-of-range indices and
// groups smaller than two are dropped.
func parseClusterResponse(text string, n int) ([][]int, error) {
	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, eris.Errorf("semantic: no JSON in response: %s", text)
	}

	var result clusterResponse
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &result); err != nil {
		return nil, eris.Wrap(err, "semantic: parse response JSON")
	}

	var groups [][]int
	for _, g := range result.DuplicateGroups {
		var indices []int
		for _, idx := range g {
			if idx >= 1 && idx <= n {
				indices = append(indices, idx-1)
			}
		}
		if len(indices) >= 2 {
			sort.Ints(indices)
			groups = append(groups, indices)
		}
	}
	return groups, nil
}

// SemanticResult summarizes a semantic dedup sweep.
type SemanticResult struct {
	DaysChecked int
	DaysSkipped int
	Marked      int
}

// Semantic runs the model-backed dedup pass. Only unscored events that
// survived the lexical pass are considered; flagging them before the
// significance scorer runs avoids paying analysis cost on discards.
type Semantic struct {
	store     store.Store
	clusterer Clusterer
}

// NewSemantic builds the semantic pass over the given store and clusterer.
func NewSemantic(st store.Store, clusterer Clusterer) *Semantic {
	return &Semantic{store: st, clusterer: clusterer}
}

// Run sweeps events collected since the cutoff, one clusterer call per day.
// Clusterer failures are logged and the day is skipped; a broken or absent
// model never blocks the pipeline.
func (s *Semantic) Run(ctx context.Context, since time.Time) (*SemanticResult, error) {
	events, err := s.store.ListUnscoredEvents(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "semantic: list unscored events")
	}

	byDay := make(map[string][]model.Event)
	for _, ev := range events {
		if ev.IsSemanticDuplicate {
			continue
		}
		byDay[ev.Day()] = append(byDay[ev.Day()], ev)
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	res := &SemanticResult{}
	for _, date := range days {
		dayEvents := byDay[date]
		if len(dayEvents) < 2 {
			res.DaysSkipped++
			continue
		}

		groups, err := s.clusterer.ClusterDay(ctx, date, dayEvents)
		if err != nil {
			zap.L().Warn("semantic dedup failed for day, skipping",
				zap.String("date", date),
				zap.Int("events", len(dayEvents)),
				zap.Error(err),
			)
			res.DaysSkipped++
			continue
		}
		res.DaysChecked++

		var dupIDs []int64
		for _, group := range groups {
			for _, idx := range group[1:] {
				dupIDs = append(dupIDs, dayEvents[idx].ID)
			}
		}
		if len(dupIDs) == 0 {
			continue
		}

		if _, err := s.store.MarkSemanticDuplicates(ctx, dupIDs); err != nil {
			return res, eris.Wrapf(err, "semantic: mark duplicates for %s", date)
		}
		res.Marked += len(dupIDs)

		zap.L().Info("semantic dedup pass",
			zap.String("date", date),
			zap.Int("events", len(dayEvents)),
			zap.Int("duplicates", len(dupIDs)),
		)
	}
	return res, nil
}
