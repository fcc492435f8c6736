package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trprince/rss-slicer/app/feed"
)

var _ FeedRepository = (*SQLFeedRepository)(nil)

type SQLFeedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) *SQLFeedRepository {
	return &SQLFeedRepository{db: db}
}

func (r *SQLFeedRepository) UpsertFeed(name, feedURL string) error {
	_, err := r.db.Exec(`
		INSERT INTO feeds (name, feed_url)
		VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET
			feed_url = excluded.feed_url,
			updated_at = CURRENT_TIMESTAMP
	`, name, feedURL)
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

func (r *SQLFeedRepository) GetFeed(name string) (*Feed, error) {
	row := r.db.QueryRow(`
		SELECT name, feed_url, title, link, description, image_url, language,
		       copyright, feed_published_at, last_fetched_at, next_fetch_at,
		       last_error, created_at, updated_at
		FROM feeds
		WHERE name = ?
	`, name)

	var f Feed
	err := row.Scan(&f.Name, &f.FeedURL, &f.Title, &f.Link, &f.Description,
		&f.ImageURL, &f.Language, &f.Copyright, &f.FeedPublishedAt,
		&f.LastFetchedAt, &f.NextFetchAt, &f.LastError, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return &f, nil
}

func (r *SQLFeedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return count, nil
}

func (r *SQLFeedRepository) UpdateFeedMetadata(name string, metadata feed.Metadata, nextFetch time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET title = ?, link = ?, description = ?, image_url = ?, language = ?,
		    copyright = ?, feed_published_at = ?, last_fetched_at = CURRENT_TIMESTAMP,
		    next_fetch_at = ?, last_error = '', updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, metadata.Title, metadata.Link, metadata.Description, metadata.ImageURL,
		metadata.Language, metadata.Copyright, metadata.FeedPublishedAt,
		nextFetch, name)
	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	return nil
}

func (r *SQLFeedRepository) MarkFeedError(name string, message string, nextFetch time.Time) error {
	// last_fetched_at marks the last successful fetch and stays untouched:
	// the slicing snapshot distinguishes never-fetched sources from stale ones.
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_error = ?, next_fetch_at = ?
		WHERE name = ?
	`, message, nextFetch, name)
	if err != nil {
		return fmt.Errorf("failed to mark feed error: %w", err)
	}

	return nil
}
