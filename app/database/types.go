package database

import (
	"time"
)

type Feed struct {
	Name            string // Source identifier derived from configuration filename
	FeedURL         string // RSS/Atom feed URL from configuration
	Title           string
	Link            string // Homepage URL from feed's <link> element (RSS 2.0 spec)
	Description     string
	ImageURL        string
	Language        string
	Copyright       string
	FeedPublishedAt *time.Time
	LastFetchedAt   *time.Time
	NextFetchAt     *time.Time
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time // Tracks last successful processing
}

type SliceOutput struct {
	SliceID     string
	RSS         string
	ItemCount   int
	GeneratedAt time.Time
}

type ItemForExtraction struct {
	ID   int64
	Link string
}
