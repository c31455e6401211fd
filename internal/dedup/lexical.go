// Package dedup removes duplicate events, first with a cheap lexical pass
// over titles, then with an optional model-backed semantic pass.
package dedup

import (
	"context"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

// Similarity decides whether two events cover the same story based on
// character-level title similarity.
type Similarity struct {
	// Threshold alone is enough to flag a pair.
	Threshold float64
	// SharedCompanyThreshold applies when the two events mention a company
	// in common; near-identical headlines about the same company are almost
	// always the same story.
	SharedCompanyThreshold float64
}

// DefaultSimilarity returns the tuned production thresholds.
func DefaultSimilarity() Similarity {
	return Similarity{Threshold: 0.75, SharedCompanyThreshold: 0.6}
}

// Ratio returns the normalized title similarity in [0, 1].
func (s Similarity) Ratio(a, b string) float64 {
	return levenshtein.Similarity(normalizeTitle(a), normalizeTitle(b), nil)
}

// IsDuplicate reports whether b duplicates a.
func (s Similarity) IsDuplicate(a, b *model.Event) bool {
	r := s.Ratio(a.Title, b.Title)
	if r >= s.Threshold {
		return true
	}
	return r >= s.SharedCompanyThreshold && a.SharesCompany(b)
}

func normalizeTitle(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}

// Partition splits one day's events into kept events and duplicate ids.
// Events are compared pairwise in input order; the earliest event of a
// cluster survives. The partition is a pure function of the ordered input,
// so re-running it over the same day yields the same duplicate set.
func (s Similarity) Partition(events []model.Event) (kept []model.Event, dupIDs []int64) {
	for i := range events {
		dup := false
		for j := range kept {
			if s.IsDuplicate(&kept[j], &events[i]) {
				dup = true
				break
			}
		}
		if dup {
			dupIDs = append(dupIDs, events[i].ID)
		} else {
			kept = append(kept, events[i])
		}
	}
	return kept, dupIDs
}

// Lexical runs the lexical dedup pass against the store.
type Lexical struct {
	store store.Store
	sim   Similarity
}

// NewLexical builds a lexical deduper over the given store.
func NewLexical(st store.Store, sim Similarity) *Lexical {
	return &Lexical{store: st, sim: sim}
}

// MarkDay recomputes the duplicate partition for one date and flags the
// losers. Flags are only ever set, never cleared, so repeated runs converge.
// Returns the number of duplicates in the day's partition.
func (l *Lexical) MarkDay(ctx context.Context, date string) (int, error) {
	events, err := l.store.ListEventsByDay(ctx, date)
	if err != nil {
		return 0, eris.Wrapf(err, "dedup: list events for %s", date)
	}
	if len(events) < 2 {
		return 0, nil
	}

	_, dupIDs := l.sim.Partition(events)
	if len(dupIDs) == 0 {
		return 0, nil
	}

	if _, err := l.store.MarkLexicalDuplicates(ctx, dupIDs); err != nil {
		return 0, eris.Wrapf(err, "dedup: mark duplicates for %s", date)
	}

	zap.L().Info("lexical dedup pass",
		zap.String("date", date),
		zap.Int("events", len(events)),
		zap.Int("duplicates", len(dupIDs)),
	)
	return len(dupIDs), nil
}

// RetroactiveResult summarizes a multi-day dedup sweep.
type RetroactiveResult struct {
	Days       int
	Duplicates int
	Recomputed int
}

// Retroactive re-runs the lexical pass over each of the trailing days ending
// at end (inclusive) and recomputes the cached daily sentiment for every
// swept date, flagged or not, so the derived view never drifts from the
// event flags.
func (l *Lexical) Retroactive(ctx context.Context, end string, days int) (*RetroactiveResult, error) {
	endDay, err := model.ParseDay(end)
	if err != nil {
		return nil, eris.Wrapf(err, "dedup: parse date %s", end)
	}

	res := &RetroactiveResult{Days: days}
	for i := days - 1; i >= 0; i-- {
		date := endDay.AddDate(0, 0, -i).Format("2006-01-02")

		marked, err := l.MarkDay(ctx, date)
		if err != nil {
			return res, err
		}
		res.Duplicates += marked

		counts, err := l.store.CountSentiments(ctx, date)
		if err != nil {
			return res, eris.Wrapf(err, "dedup: recount sentiments for %s", date)
		}
		if err := l.store.ReplaceDailySentiment(ctx, counts); err != nil {
			return res, eris.Wrapf(err, "dedup: refresh daily sentiment for %s", date)
		}
		res.Recomputed++
	}

	zap.L().Info("retroactive dedup complete",
		zap.String("end", end),
		zap.Int("days", res.Days),
		zap.Int("duplicates", res.Duplicates),
	)
	return res, nil
}
