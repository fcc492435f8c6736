package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trprince/rss-slicer/app/database"
	"github.com/trprince/rss-slicer/app/feed"
)

type SyncSourceConfigTask struct {
	Task
	SourceConfig *feed.SourceConfig
	feedRepo     database.FeedRepository
}

func NewSyncSourceConfigTask(sourceName string, sourceConfig *feed.SourceConfig, feedRepo database.FeedRepository) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:         NewTask(TaskTypeSyncSource, sourceName),
		SourceConfig: sourceConfig,
		feedRepo:     feedRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.feedRepo.UpsertFeed(
		t.SourceConfig.Name,
		t.SourceConfig.URL)
	if err != nil {
		slog.Error("Task failed", "type", "SyncSourceConfig", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.SourceName,
		"duration", t.GetDuration())

	return nil
}
