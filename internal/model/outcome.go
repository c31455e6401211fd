package model

import "time"

// OutcomeDirection classifies realized market movement for a date/symbol.
type OutcomeDirection string

const (
	OutcomeUp   OutcomeDirection = "up"
	OutcomeDown OutcomeDirection = "down"
	OutcomeFlat OutcomeDirection = "flat"
)

// OutcomeMagnitude classifies the size of a realized move.
type OutcomeMagnitude string

const (
	MagnitudeStrong   OutcomeMagnitude = "strong"
	MagnitudeModerate OutcomeMagnitude = "moderate"
	MagnitudeWeak     OutcomeMagnitude = "weak"
)

// MarketChange is the raw per (date, symbol) percent change fed in by the
// market-data collaborator. A nil ChangePct means the collaborator had no
// usable close for that symbol; such rows are skipped individually.
type MarketChange struct {
	Date       string   `json:"date"`
	Symbol     string   `json:"symbol"`
	SymbolName string   `json:"symbol_name,omitempty"`
	ChangePct  *float64 `json:"change_pct"`
}

// Outcome is the classified realized movement for one (date, symbol).
type Outcome struct {
	Date      string           `json:"date"`
	Symbol    string           `json:"symbol"`
	ChangePct float64          `json:"change_pct"`
	Direction OutcomeDirection `json:"direction"`
	Magnitude OutcomeMagnitude `json:"magnitude"`
	CreatedAt time.Time        `json:"created_at"`
}

// AccuracyRecord joins a prediction with a realized outcome for one
// (date, symbol) and carries the rolling sentiment/price correlation.
type AccuracyRecord struct {
	Date        string           `json:"date"`
	Symbol      string           `json:"symbol"`
	Prediction  Direction        `json:"prediction"`
	Outcome     OutcomeDirection `json:"outcome"`
	Correct     bool             `json:"correct"`
	Correlation float64          `json:"correlation"`
	CreatedAt   time.Time        `json:"created_at"`
}

// DailyCorrelation is the per-date roll-up: dominant sentiment vs the
// primary index's realized direction. Correct is nil when the dominant
// sentiment was mixed — ambiguous days are excluded from the accuracy
// denominator and counted separately.
type DailyCorrelation struct {
	Date              string           `json:"date"`
	DominantSentiment Sentiment        `json:"dominant_sentiment"`
	SentimentStrength float64          `json:"sentiment_strength"`
	MarketOutcome     OutcomeDirection `json:"market_outcome"`
	NasdaqChangePct   *float64         `json:"nasdaq_change_pct,omitempty"`
	NvdaChangePct     *float64         `json:"nvda_change_pct,omitempty"`
	SP500ChangePct    *float64         `json:"sp500_change_pct,omitempty"`
	Correct           *bool            `json:"correct"`
	CreatedAt         time.Time        `json:"created_at"`
}

// AccuracySummary aggregates daily correlation rows over a window.
type AccuracySummary struct {
	Total     int     `json:"total"`
	Correct   int     `json:"correct"`
	Wrong     int     `json:"wrong"`
	Ambiguous int     `json:"ambiguous"`
	Accuracy  float64 `json:"accuracy"` // correct / (correct + wrong), 0 when undefined
}
