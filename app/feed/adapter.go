package feed

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Adapter folds parsed feed documents into SourceFeed snapshots. A malformed
// item (no title and no enclosure) is skipped with a warning so one bad entry
// never discards the whole feed.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Run(sourceID string, metadata *Metadata, items []CanonicalItem) (SourceFeed, []Warning) {
	var warnings []Warning

	adapted := make([]CanonicalItem, 0, len(items))
	for _, item := range items {
		item.SourceID = sourceID
		item.Title = strings.TrimSpace(item.Title)
		item.Description = strings.TrimSpace(item.Description)

		if item.Title == "" && !item.HasEnclosure() {
			warnings = append(warnings, Warning{
				SourceID: sourceID,
				ItemRef:  cmp.Or(item.GUID, item.Link),
				Message:  "item has neither title nor enclosure, skipped",
			})
			continue
		}

		if item.GUID == "" {
			item.GUID = item.Link
		}
		if item.GUID == "" {
			warnings = append(warnings, Warning{
				SourceID: sourceID,
				ItemRef:  item.Title,
				Message:  "item has neither guid nor link, skipped",
			})
			continue
		}

		item.ContentHash = a.generateContentHash(item)
		adapted = append(adapted, item)
	}

	sf := SourceFeed{
		SourceID: sourceID,
		Items:    adapted,
	}
	if metadata != nil {
		sf.Metadata = *metadata
	}

	return sf, warnings
}

// generateContentHash digests title, description and enclosure URL so that
// identical content carried by different feeds hashes identically even when
// guids differ. Text is NFC-normalized first: overlapping feeds routinely
// disagree on Unicode composition for the same characters.
func (a *Adapter) generateContentHash(item CanonicalItem) string {
	var enclosureURL string
	if item.Enclosure != nil {
		enclosureURL = item.Enclosure.URL
	}

	content := fmt.Sprintf("%s|%s|%s",
		norm.NFC.String(item.Title),
		norm.NFC.String(item.Description),
		enclosureURL)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
