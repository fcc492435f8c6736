package slicer

import (
	"github.com/trprince/rss-slicer/app/feed"
)

// SliceDefinition describes one derived output feed: which merged items it
// selects and the channel metadata it publishes under. Immutable once loaded.
type SliceDefinition struct {
	ID         string           // Derived from filename (without .yml extension)
	Predicate  PredicateNode    `yaml:"predicate"`
	AllowEmpty bool             `yaml:"allow_empty"`
	Channel    ChannelOverrides `yaml:"channel"`
	MaxItems   int              `yaml:"max_items"`
}

type ChannelOverrides struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Link        string `yaml:"link"`
	Language    string `yaml:"language"`
}

// CrossLink declares that an item in one source is the same content as an
// item in another (the preview/full-access pairing). Item references match
// either the guid or the link of an item.
type CrossLink struct {
	SourceA string `yaml:"source_a"`
	ItemA   string `yaml:"item_a"`
	SourceB string `yaml:"source_b"`
	ItemB   string `yaml:"item_b"`
}

// MergedItem is the resolver's output unit: one representative item per
// distinct fingerprint plus the sources that contributed to it.
type MergedItem struct {
	Item       feed.CanonicalItem
	Provenance []string // source IDs in configuration order, never empty
}

// FromSource reports whether the given source contributed to this item,
// even when another source supplied the representative.
func (m *MergedItem) FromSource(sourceID string) bool {
	for _, id := range m.Provenance {
		if id == sourceID {
			return true
		}
	}
	return false
}

// OutputFeed is the composed result for one slice: an immutable snapshot
// ordered by publication time descending.
type OutputFeed struct {
	SliceID string
	Channel feed.Metadata
	Items   []MergedItem
}

// Representatives returns the representative items in output order,
// ready for rendering.
func (o *OutputFeed) Representatives() []feed.CanonicalItem {
	items := make([]feed.CanonicalItem, len(o.Items))
	for i, m := range o.Items {
		items[i] = m.Item
	}
	return items
}
