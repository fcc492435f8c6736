package database

import (
	"time"

	"github.com/trprince/rss-slicer/app/feed"
)

type FeedRepository interface {
	GetFeed(name string) (*Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(name, feedURL string) error
	UpdateFeedMetadata(name string, metadata feed.Metadata, nextFetch time.Time) error
	MarkFeedError(name string, message string, nextFetch time.Time) error
}

type ItemRepository interface {
	GetItems(sourceID string, limit int) ([]feed.CanonicalItem, error)
	GetItemCount(sourceID string) (int, error)

	UpsertItem(sourceID string, item feed.CanonicalItem) error
	CheckDuplicate(sourceID, contentHash string) (bool, error)

	GetItemsForExtraction(sourceID string, limit int) ([]ItemForExtraction, error)
	UpdateItemContent(id int64, content string, status string) error
}

type OutputRepository interface {
	GetOutput(sliceID string) (*SliceOutput, error)
	GetOutputCount() (int, error)

	UpsertOutput(sliceID string, rss string, itemCount int) error
}
