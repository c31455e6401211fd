// Package outcome grades predictions against realized market movement.
package outcome

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

// Thresholds classifies a percent change into direction and magnitude.
type Thresholds struct {
	// Flat is the dead band around zero: |change| <= Flat is flat.
	Flat float64
	// Strong and Moderate split the magnitude scale by |change|.
	Strong   float64
	Moderate float64
}

// DefaultThresholds returns the production classification bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Flat: 0.5, Strong: 2.0, Moderate: 0.5}
}

// Classify maps a percent change to direction and magnitude.
func (t Thresholds) Classify(changePct float64) (model.OutcomeDirection, model.OutcomeMagnitude) {
	direction := model.OutcomeFlat
	switch {
	case changePct > t.Flat:
		direction = model.OutcomeUp
	case changePct < -t.Flat:
		direction = model.OutcomeDown
	}

	magnitude := model.MagnitudeWeak
	switch abs := math.Abs(changePct); {
	case abs >= t.Strong:
		magnitude = model.MagnitudeStrong
	case abs >= t.Moderate:
		magnitude = model.MagnitudeModerate
	}
	return direction, magnitude
}

// RecordResult summarizes one outcome batch.
type RecordResult struct {
	Recorded int
	Skipped  int // rows with no usable percent change
}

// Recorder classifies and persists realized movement per (date, symbol).
type Recorder struct {
	store      store.Store
	thresholds Thresholds
	now        func() time.Time
}

// NewRecorder builds a recorder. nowFn overrides the clock in tests; nil
// uses the system clock.
func NewRecorder(st store.Store, thresholds Thresholds, nowFn func() time.Time) *Recorder {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Recorder{store: st, thresholds: thresholds, now: nowFn}
}

// Record stores the raw market feed and upserts one classified outcome per
// symbol with a usable change. Rows with a nil change are skipped
// individually and counted; one bad symbol never fails the batch.
func (r *Recorder) Record(ctx context.Context, changes []model.MarketChange) (*RecordResult, error) {
	if err := r.store.SaveMarketChanges(ctx, changes); err != nil {
		return nil, eris.Wrap(err, "outcome: save market changes")
	}

	res := &RecordResult{}
	for _, mc := range changes {
		if mc.ChangePct == nil {
			zap.L().Warn("market change missing, skipping symbol",
				zap.String("date", mc.Date),
				zap.String("symbol", mc.Symbol),
			)
			res.Skipped++
			continue
		}

		direction, magnitude := r.thresholds.Classify(*mc.ChangePct)
		o := &model.Outcome{
			Date:      mc.Date,
			Symbol:    mc.Symbol,
			ChangePct: *mc.ChangePct,
			Direction: direction,
			Magnitude: magnitude,
			CreatedAt: r.now().UTC(),
		}
		if err := r.store.UpsertOutcome(ctx, o); err != nil {
			return res, eris.Wrapf(err, "outcome: upsert %s/%s", mc.Date, mc.Symbol)
		}
		res.Recorded++
	}

	zap.L().Info("outcomes recorded",
		zap.Int("recorded", res.Recorded),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
