package domain

import "time"

// Domain contains core models shared by the ingestion pipeline.

// NewWindow is how long an article counts as "new" after it was published (or scraped).
const NewWindow = 24 * time.Hour

// RawArticle is what a source adapter extracts from a listing page before identity is assigned.
type RawArticle struct {
	Title         string
	URL           string
	Subtitle      string
	Author        string
	PublishedDate *time.Time
	Thumbnail     string
	Summary       string
	Tags          []string
}

// Article is a stored, deduplicated piece of content.
type Article struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Subtitle      *string    `json:"subtitle"`
	URL           string     `json:"url"`
	Source        string     `json:"source"`
	SourceDisplay string     `json:"source_display"`
	Author        *string    `json:"author"`
	PublishedDate *time.Time `json:"published_date"`
	ScrapedAt     time.Time  `json:"scraped_at"`
	Thumbnail     *string    `json:"thumbnail"`
	Summary       *string    `json:"summary"`
	Tags          []string   `json:"tags"`
	IsNew         bool       `json:"is_new"`
}

// ComputeIsNew reports whether the article is within NewWindow of now.
// published_date wins when present; scraped_at is the fallback.
func (a Article) ComputeIsNew(now time.Time) bool {
	ref := a.ScrapedAt
	if a.PublishedDate != nil {
		ref = *a.PublishedDate
	}
	if ref.IsZero() {
		return false
	}
	return now.Sub(ref) < NewWindow
}

// WithIsNew returns a copy with IsNew recomputed for now.
func (a Article) WithIsNew(now time.Time) Article {
	a.IsNew = a.ComputeIsNew(now)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a
}

// SavedArticle is a bookmark on an existing article.
type SavedArticle struct {
	ArticleID string    `json:"article_id"`
	SavedAt   time.Time `json:"saved_at"`
}

// ScrapeStatus is the per-source run state.
type ScrapeStatus string

const (
	StatusNeverRun ScrapeStatus = "never_run"
	StatusRunning  ScrapeStatus = "running"
	StatusSuccess  ScrapeStatus = "success"
	StatusError    ScrapeStatus = "error"
	StatusNoNew    ScrapeStatus = "no_new"
)

// Idle reports whether the status accepts a new run.
func (s ScrapeStatus) Idle() bool {
	return s != StatusRunning
}

// ScrapeState tracks run history for one source.
type ScrapeState struct {
	Source        string       `json:"source"`
	LastScrapedAt *time.Time   `json:"last_scraped_at"`
	ArticlesFound int          `json:"articles_found"`
	Status        ScrapeStatus `json:"status"`
	ErrorMessage  *string      `json:"error_message"`
}

// NewScrapeState returns the initial row for a freshly registered source.
func NewScrapeState(source string) ScrapeState {
	return ScrapeState{Source: source, Status: StatusNeverRun}
}

// CooldownRemaining returns how long until the source may run again; zero means due.
func (s ScrapeState) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if s.LastScrapedAt == nil {
		return 0
	}
	elapsed := now.Sub(*s.LastScrapedAt)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

// StringPtr returns nil for blank strings so optional fields serialize as null.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
