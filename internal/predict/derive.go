package predict

import "github.com/sector-pulse/pulse-cli/internal/model"

// Rule holds the fixed derivation thresholds.
type Rule struct {
	// NetThreshold is the net-sentiment band around zero that maps to
	// neutral. Net above +NetThreshold is bullish, below -NetThreshold
	// bearish.
	NetThreshold float64
	// HighConfidenceEvents and MediumConfidenceEvents are analyzed-event
	// counts; more events behind a signal means more confidence in it.
	HighConfidenceEvents   int
	MediumConfidenceEvents int
}

// DefaultRule returns the production thresholds.
func DefaultRule() Rule {
	return Rule{NetThreshold: 10, HighConfidenceEvents: 40, MediumConfidenceEvents: 20}
}

// Derive maps a sentiment breakdown to a directional call. Deterministic;
// the same breakdown always yields the same prediction.
func (r Rule) Derive(b model.SentimentBreakdown) (model.Direction, model.Confidence) {
	direction := model.DirectionNeutral
	switch net := b.Net(); {
	case net > r.NetThreshold:
		direction = model.DirectionBullish
	case net < -r.NetThreshold:
		direction = model.DirectionBearish
	}

	confidence := model.ConfidenceLow
	switch {
	case b.Total >= r.HighConfidenceEvents:
		confidence = model.ConfidenceHigh
	case b.Total >= r.MediumConfidenceEvents:
		confidence = model.ConfidenceMedium
	}
	return direction, confidence
}
