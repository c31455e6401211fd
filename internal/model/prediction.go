package model

import "time"

// Direction is a directional market call derived from net sentiment.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// Confidence grades a prediction by the size of its evidence base.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SentimentBreakdown holds per-category percentages for one date's
// non-duplicate analyzed events, plus the event total. Percentages are
// rounded to one decimal place; a date with no events is all zeros.
type SentimentBreakdown struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Mixed    float64 `json:"mixed"`
	Total    int     `json:"total"`
}

// Net returns net sentiment: positive percentage minus negative percentage.
func (b SentimentBreakdown) Net() float64 {
	return b.Positive - b.Negative
}

// SentimentCounts is the cached per-date aggregate of raw sentiment counts
// (the daily_sentiment table), recomputed whenever dedup flags change.
type SentimentCounts struct {
	Date     string `json:"date"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Neutral  int    `json:"neutral"`
	Mixed    int    `json:"mixed"`
	Total    int    `json:"total"`
}

// Add accumulates n events of the given sentiment. Unknown sentiment labels
// count toward the total only.
func (c *SentimentCounts) Add(s Sentiment, n int) {
	switch s {
	case SentimentPositive:
		c.Positive += n
	case SentimentNegative:
		c.Negative += n
	case SentimentNeutral:
		c.Neutral += n
	case SentimentMixed:
		c.Mixed += n
	}
	c.Total += n
}

// Prediction is the current-state row for one calendar date. Mutable while
// unlocked; permanently immutable once IsLocked is set. FirstLoggedAt is
// written once on insert and never touched again.
type Prediction struct {
	Date             string             `json:"date"`
	Sentiment        SentimentBreakdown `json:"sentiment"`
	Prediction       Direction          `json:"prediction"`
	Confidence       Confidence         `json:"confidence"`
	TopEventsSummary string             `json:"top_events_summary,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	FirstLoggedAt    time.Time          `json:"first_logged_at"`
	IsLocked         bool               `json:"is_locked"`
}

// AuditAction tags a prediction write attempt in the audit log.
type AuditAction string

const (
	AuditInsert  AuditAction = "INSERT"
	AuditUpdate  AuditAction = "UPDATE"
	AuditBlocked AuditAction = "BLOCKED"
)

// PredictionAudit is one append-only row per prediction write attempt,
// including attempts rejected by the lock. Never mutated or deleted.
type PredictionAudit struct {
	ID            string             `json:"id"`
	Date          string             `json:"date"`
	Sentiment     SentimentBreakdown `json:"sentiment"`
	Prediction    Direction          `json:"prediction"`
	Confidence    Confidence         `json:"confidence"`
	Action        AuditAction        `json:"action"`
	Reason        string             `json:"reason"`
	CreatedAt     time.Time          `json:"created_at"`
	WorkflowRunID string             `json:"workflow_run_id,omitempty"`
}
