package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	Copyright       string
	TTL             int
	FeedPublishedAt *time.Time
	FeedUpdatedAt   *time.Time
}

type Enclosure struct {
	URL    string
	Length int64
	Type   string
}

// CanonicalItem is the normalized unit the slicing engine reasons about.
// Fingerprint is assigned during identity resolution, not at parse time.
type CanonicalItem struct {
	Fingerprint string
	SourceID    string
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time // nil when the source omitted or mangled the date
	UpdatedAt   *time.Time
	Authors     []string // Multiple authors in format "email (name)" or "name"
	Categories  []string
	Enclosure   *Enclosure

	ContentHash string
}

func (i *CanonicalItem) HasEnclosure() bool {
	return i.Enclosure != nil && i.Enclosure.URL != ""
}

// SourceFeed is one ingested feed: adapted items plus the channel metadata
// they arrived with. Built fresh per fetch cycle, never mutated afterwards.
type SourceFeed struct {
	SourceID string
	Metadata Metadata
	Items    []CanonicalItem
}

// Warning records a non-fatal problem found while adapting a source feed.
type Warning struct {
	SourceID string
	ItemRef  string
	Message  string
}

// Configuration types

type SourceConfig struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Priority int            `yaml:"priority"` // lower wins representative selection
	Settings SourceSettings `yaml:"settings"`
}

type SourceSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"`         // seconds
	ExtractContent  bool `yaml:"extract_content"` // enable content extraction
}
