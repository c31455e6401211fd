package model

import (
	"strings"
	"time"
)

// EventSource identifies where an event was collected from.
type EventSource string

const (
	SourceHackerNews EventSource = "hackernews"
	SourceNewsAPI    EventSource = "newsapi"
	SourceGoogleNews EventSource = "google_news"
	SourceBingNews   EventSource = "bing_news"
	SourceTechRSS    EventSource = "tech_rss"
	SourceArxiv      EventSource = "arxiv"
	SourceGitHub     EventSource = "github"
	SourceSECEdgar   EventSource = "sec_edgar"
	SourceCompanyIR  EventSource = "company_ir"
	SourceManual     EventSource = "manual"
	SourceUnknown    EventSource = "unknown"
)

// EventType categorizes what kind of event was collected.
type EventType string

const (
	EventTypeNews          EventType = "news"
	EventTypeProductLaunch EventType = "product_launch"
	EventTypeFunding       EventType = "funding"
	EventTypeResearch      EventType = "research"
	EventTypeSocial        EventType = "social"
	EventTypeMarket        EventType = "market"
	EventTypeRegulation    EventType = "regulation"
	EventTypePartnership   EventType = "partnership"
	EventTypeUnknown       EventType = "unknown"
)

// Sentiment is the classification attached to an event by the external
// significance scorer. Events without a sentiment are not yet analyzed.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// Event is one unit of collected sector news. Collectors produce these;
// the dedup stages set the duplicate flags; the significance scorer fills
// in SignificanceScore, Sentiment and Analysis. Events are never deleted.
type Event struct {
	ID        int64       `json:"id"`
	Source    EventSource `json:"source"`
	SourceID  string      `json:"source_id"`
	SourceURL string      `json:"source_url,omitempty"`

	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Summary string `json:"summary,omitempty"`

	EventType EventType `json:"event_type,omitempty"`

	Companies []string `json:"companies,omitempty"`
	Products  []string `json:"products,omitempty"`
	People    []string `json:"people,omitempty"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	CollectedAt time.Time  `json:"collected_at"`

	SignificanceScore *float64  `json:"significance_score,omitempty"`
	Sentiment         Sentiment `json:"sentiment,omitempty"`
	Analysis          string    `json:"analysis,omitempty"`

	// Duplicate flags are monotonic: once set they are never cleared.
	IsDuplicate         bool `json:"is_duplicate"`
	IsSemanticDuplicate bool `json:"is_semantic_duplicate"`
}

// Day returns the calendar date (YYYY-MM-DD, UTC) this event belongs to:
// the publish date when known, otherwise the collection date.
func (e *Event) Day() string {
	if e.PublishedAt != nil {
		return e.PublishedAt.UTC().Format("2006-01-02")
	}
	return e.CollectedAt.UTC().Format("2006-01-02")
}

// ParseDay parses a YYYY-MM-DD date key into a UTC midnight time.
func ParseDay(date string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", date, time.UTC)
}

// SharesCompany reports whether both events name at least one common
// company entity. Comparison is case-insensitive.
func (e *Event) SharesCompany(other *Event) bool {
	if len(e.Companies) == 0 || len(other.Companies) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(e.Companies))
	for _, c := range e.Companies {
		seen[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	for _, c := range other.Companies {
		if _, ok := seen[strings.ToLower(strings.TrimSpace(c))]; ok {
			return true
		}
	}
	return false
}

// SaveStats summarizes an event batch insert.
type SaveStats struct {
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"` // exact (source, source_id) collisions skipped
}

// EventStats summarizes the stored event set.
type EventStats struct {
	TotalEvents int            `json:"total_events"`
	BySource    map[string]int `json:"by_source"`
	Last24h     int            `json:"last_24h"`
}
