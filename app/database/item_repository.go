package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/trprince/rss-slicer/app/feed"
)

var _ ItemRepository = (*SQLItemRepository)(nil)

type SQLItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *SQLItemRepository {
	return &SQLItemRepository{db: db}
}

func (r *SQLItemRepository) UpsertItem(sourceID string, item feed.CanonicalItem) error {
	authors, err := json.Marshal(item.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}
	categories, err := json.Marshal(item.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}

	var enclosureURL, enclosureType string
	var enclosureLength int64
	if item.Enclosure != nil {
		enclosureURL = item.Enclosure.URL
		enclosureLength = item.Enclosure.Length
		enclosureType = item.Enclosure.Type
	}

	_, err = r.db.Exec(`
		INSERT INTO items (
			source_id, guid, link, title, description, content,
			published_at, updated_at, authors, categories,
			enclosure_url, enclosure_length, enclosure_type, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, guid) DO UPDATE SET
			link = excluded.link,
			title = excluded.title,
			description = excluded.description,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at,
			authors = excluded.authors,
			categories = excluded.categories,
			enclosure_url = excluded.enclosure_url,
			enclosure_length = excluded.enclosure_length,
			enclosure_type = excluded.enclosure_type,
			content_hash = excluded.content_hash
	`, sourceID, item.GUID, item.Link, item.Title, item.Description, item.Content,
		item.PublishedAt, item.UpdatedAt, string(authors), string(categories),
		enclosureURL, enclosureLength, enclosureType, item.ContentHash)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	return nil
}

func (r *SQLItemRepository) GetItems(sourceID string, limit int) ([]feed.CanonicalItem, error) {
	rows, err := r.db.Query(`
		SELECT guid, link, title, description, content, published_at, updated_at,
		       authors, categories, enclosure_url, enclosure_length, enclosure_type,
		       content_hash
		FROM items
		WHERE source_id = ?
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	var items []feed.CanonicalItem
	for rows.Next() {
		var item feed.CanonicalItem
		var authors, categories string
		var enclosureURL, enclosureType string
		var enclosureLength int64

		err := rows.Scan(&item.GUID, &item.Link, &item.Title, &item.Description,
			&item.Content, &item.PublishedAt, &item.UpdatedAt, &authors, &categories,
			&enclosureURL, &enclosureLength, &enclosureType, &item.ContentHash)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		item.SourceID = sourceID
		if err := json.Unmarshal([]byte(authors), &item.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &item.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
		if enclosureURL != "" {
			item.Enclosure = &feed.Enclosure{
				URL:    enclosureURL,
				Length: enclosureLength,
				Type:   enclosureType,
			}
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

func (r *SQLItemRepository) GetItemCount(sourceID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM items WHERE source_id = ?`, sourceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func (r *SQLItemRepository) CheckDuplicate(sourceID, contentHash string) (bool, error) {
	var id int64
	err := r.db.QueryRow(`
		SELECT id FROM items WHERE source_id = ? AND content_hash = ? LIMIT 1
	`, sourceID, contentHash).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return true, nil
}

func (r *SQLItemRepository) GetItemsForExtraction(sourceID string, limit int) ([]ItemForExtraction, error) {
	rows, err := r.db.Query(`
		SELECT id, link
		FROM items
		WHERE source_id = ?
		  AND content_extraction_status = 'pending'
		  AND link != ''
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for extraction: %w", err)
	}
	defer rows.Close()

	var items []ItemForExtraction
	for rows.Next() {
		var item ItemForExtraction
		if err := rows.Scan(&item.ID, &item.Link); err != nil {
			return nil, fmt.Errorf("failed to scan item for extraction: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items for extraction: %w", err)
	}

	return items, nil
}

func (r *SQLItemRepository) UpdateItemContent(id int64, content string, status string) error {
	_, err := r.db.Exec(`
		UPDATE items
		SET content = CASE WHEN ? != '' THEN ? ELSE content END,
		    content_extraction_status = ?
		WHERE id = ?
	`, content, content, status, id)
	if err != nil {
		return fmt.Errorf("failed to update item content: %w", err)
	}

	return nil
}
