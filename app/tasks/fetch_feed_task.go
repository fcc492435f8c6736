package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/trprince/rss-slicer/app/database"
	"github.com/trprince/rss-slicer/app/feed"
)

// FetchFeedTask retrieves one source feed, adapts its items and stores the
// snapshot. Any failure marks the source absent for the next slicing run;
// it never aborts the run itself.
type FetchFeedTask struct {
	Task
	SourceConfig *feed.SourceConfig
	httpClient   *http.Client
	parser       *feed.Parser
	adapter      *feed.Adapter
	feedRepo     database.FeedRepository
	itemRepo     database.ItemRepository
	userAgent    string
}

func NewFetchFeedTask(sourceName string, sourceConfig *feed.SourceConfig, httpClient *http.Client, parser *feed.Parser, adapter *feed.Adapter, feedRepo database.FeedRepository, itemRepo database.ItemRepository, userAgent string) *FetchFeedTask {
	return &FetchFeedTask{
		Task:         NewTask(TaskTypeFetchFeed, sourceName),
		SourceConfig: sourceConfig,
		httpClient:   httpClient,
		parser:       parser,
		adapter:      adapter,
		feedRepo:     feedRepo,
		itemRepo:     itemRepo,
		userAgent:    userAgent,
	}
}

func (t *FetchFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	nextFetch := time.Now().UTC().Add(time.Duration(t.SourceConfig.Settings.RefreshInterval) * time.Second)

	data, err := t.fetchFeed(ctx, t.SourceConfig.URL)
	if err != nil {
		t.recordFailure(nextFetch, err)
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, rawItems, err := t.parser.Run(data)
	if err != nil {
		t.recordFailure(nextFetch, err)
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	sourceFeed, warnings := t.adapter.Run(t.SourceName, metadata, rawItems)
	for _, w := range warnings {
		slog.Warn("Item skipped during adaptation", "source", w.SourceID, "item", w.ItemRef, "reason", w.Message)
	}

	if err := t.feedRepo.UpdateFeedMetadata(t.SourceName, *metadata, nextFetch); err != nil {
		return fmt.Errorf("failed to store feed metadata: %w", err)
	}

	duplicateCount := 0
	newCount := 0
	for _, item := range sourceFeed.Items {
		isDuplicate, err := t.itemRepo.CheckDuplicate(t.SourceName, item.ContentHash)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if isDuplicate {
			duplicateCount++
		} else {
			newCount++
		}

		if err := t.itemRepo.UpsertItem(t.SourceName, item); err != nil {
			return fmt.Errorf("failed to store item: %w", err)
		}
	}

	slog.Info("Task completed",
		"type", "FetchFeed",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(rawItems),
		"skipped", len(warnings),
		"duplicates", duplicateCount,
		"new", newCount)

	return nil
}

func (t *FetchFeedTask) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.SourceConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (t *FetchFeedTask) recordFailure(nextFetch time.Time, cause error) {
	if err := t.feedRepo.MarkFeedError(t.SourceName, cause.Error(), nextFetch); err != nil {
		slog.Error("Failed to record fetch failure", "source", t.SourceName, "error", err)
	}
}
