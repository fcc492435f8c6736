package slicer

import (
	"cmp"
	"fmt"
	"sort"

	"github.com/trprince/rss-slicer/app/feed"
)

// Composer assembles the matched items of one slice into an immutable
// OutputFeed snapshot with a total order: PublishedAt descending, items
// without a timestamp last, ties broken by fingerprint ascending. The total
// order keeps output byte-stable across runs even when source feeds list
// items inconsistently.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

func (c *Composer) Run(def SliceDefinition, sources []feed.SourceFeed, matched []MergedItem) (*OutputFeed, error) {
	if len(matched) == 0 && !def.AllowEmpty {
		return nil, fmt.Errorf("slice %q matched no items; fix its predicate or set allow_empty", def.ID)
	}

	items := make([]MergedItem, len(matched))
	copy(items, matched)

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].Item, items[j].Item
		switch {
		case a.PublishedAt != nil && b.PublishedAt != nil:
			if !a.PublishedAt.Equal(*b.PublishedAt) {
				return a.PublishedAt.After(*b.PublishedAt)
			}
		case a.PublishedAt != nil:
			return true
		case b.PublishedAt != nil:
			return false
		}
		return a.Fingerprint < b.Fingerprint
	})

	if def.MaxItems > 0 && len(items) > def.MaxItems {
		items = items[:def.MaxItems]
	}

	return &OutputFeed{
		SliceID: def.ID,
		Channel: c.channelMetadata(def, sources, items),
		Items:   items,
	}, nil
}

// channelMetadata applies the slice's overrides; fields left blank fall back
// to the metadata of the first contributing source feed in provenance order,
// then to the first configured source.
func (c *Composer) channelMetadata(def SliceDefinition, sources []feed.SourceFeed, items []MergedItem) feed.Metadata {
	var fallback feed.Metadata
	if sf := c.fallbackSource(sources, items); sf != nil {
		fallback = sf.Metadata
	}

	return feed.Metadata{
		Title:       cmp.Or(def.Channel.Title, fallback.Title, def.ID),
		Description: cmp.Or(def.Channel.Description, fallback.Description),
		Link:        cmp.Or(def.Channel.Link, fallback.Link),
		Language:    cmp.Or(def.Channel.Language, fallback.Language),
		ImageURL:    fallback.ImageURL,
		Copyright:   fallback.Copyright,
		TTL:         fallback.TTL,
	}
}

func (c *Composer) fallbackSource(sources []feed.SourceFeed, items []MergedItem) *feed.SourceFeed {
	byID := make(map[string]*feed.SourceFeed, len(sources))
	for i := range sources {
		byID[sources[i].SourceID] = &sources[i]
	}

	for _, item := range items {
		for _, sourceID := range item.Provenance {
			if sf, ok := byID[sourceID]; ok {
				return sf
			}
		}
	}

	if len(sources) > 0 {
		return &sources[0]
	}
	return nil
}
