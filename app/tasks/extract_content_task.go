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

const extractionBatchSize = 10

// ExtractContentTask fetches the article pages behind a source's items and
// replaces truncated descriptions with the extracted full content.
type ExtractContentTask struct {
	Task
	SourceConfig *feed.SourceConfig
	httpClient   *http.Client
	extractor    *feed.ContentExtractor
	itemRepo     database.ItemRepository
	userAgent    string
}

func NewExtractContentTask(sourceName string, sourceConfig *feed.SourceConfig, httpClient *http.Client, extractor *feed.ContentExtractor, itemRepo database.ItemRepository, userAgent string) *ExtractContentTask {
	return &ExtractContentTask{
		Task:         NewTask(TaskTypeExtractContent, sourceName),
		SourceConfig: sourceConfig,
		httpClient:   httpClient,
		extractor:    extractor,
		itemRepo:     itemRepo,
		userAgent:    userAgent,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.ExtractContent {
		return nil
	}

	items, err := t.itemRepo.GetItemsForExtraction(t.SourceName, extractionBatchSize)
	if err != nil {
		return fmt.Errorf("failed to get items for extraction: %w", err)
	}

	successCount := 0
	failedCount := 0
	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		content, err := t.extractContent(ctx, item.Link)
		if err != nil {
			slog.Debug("Content extraction failed", "source", t.SourceName, "link", item.Link, "error", err)
			if err := t.itemRepo.UpdateItemContent(item.ID, "", "failed"); err != nil {
				return fmt.Errorf("failed to record extraction failure: %w", err)
			}
			failedCount++
			continue
		}

		if err := t.itemRepo.UpdateItemContent(item.ID, content, "success"); err != nil {
			return fmt.Errorf("failed to store extracted content: %w", err)
		}
		successCount++
	}

	slog.Info("Task completed",
		"type", "ExtractContent",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"extracted", successCount,
		"failed", failedCount)

	return nil
}

func (t *ExtractContentTask) extractContent(ctx context.Context, url string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.SourceConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return t.extractor.Run(data)
}
