package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trprince/rss-slicer/app/config"
	"github.com/trprince/rss-slicer/app/database"
	"github.com/trprince/rss-slicer/app/feed"
	"github.com/trprince/rss-slicer/app/slicer"
)

// SliceFeedsTask snapshots the stored items of every enabled source, runs
// the slicing engine over the snapshot and persists one rendered RSS
// document per slice. The engine itself performs no I/O; everything it
// needs is collected here first.
type SliceFeedsTask struct {
	Task
	configCache *config.Cache
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	outputRepo  database.OutputRepository
	generator   *feed.Generator
	workerCount int
}

func NewSliceFeedsTask(configCache *config.Cache, feedRepo database.FeedRepository, itemRepo database.ItemRepository, outputRepo database.OutputRepository, workerCount int) *SliceFeedsTask {
	return &SliceFeedsTask{
		Task:        NewTask(TaskTypeSliceFeeds, "all"),
		configCache: configCache,
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		outputRepo:  outputRepo,
		generator:   feed.NewGenerator(),
		workerCount: workerCount,
	}
}

func (t *SliceFeedsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	sources := t.configCache.EnabledSources()
	defs := t.configCache.Slices()
	if len(defs) == 0 {
		slog.Debug("No slice definitions configured, skipping")
		return nil
	}

	feeds, snapshotDiags := t.snapshot(sources)

	engine := slicer.NewEngine(sources, t.configCache.Links(), t.workerCount)
	outputs, diags, err := engine.Run(feeds, defs)
	if err != nil {
		return fmt.Errorf("slicing run failed: %w", err)
	}

	for _, d := range append(snapshotDiags, diags...) {
		slog.Warn("Slicing diagnostic",
			"code", d.Code, "source", d.Source, "slice", d.Slice, "message", d.Message)
	}

	for _, def := range defs {
		output := outputs[def.ID]
		rss, err := t.generator.Run(output.SliceID, output.Channel, output.Representatives())
		if err != nil {
			return fmt.Errorf("failed to render slice %q: %w", def.ID, err)
		}
		if err := t.outputRepo.UpsertOutput(def.ID, rss, len(output.Items)); err != nil {
			return fmt.Errorf("failed to store slice %q: %w", def.ID, err)
		}
	}

	slog.Info("Task completed",
		"type", "SliceFeeds",
		"duration", t.GetDuration(),
		"sources", len(feeds),
		"slices", len(defs),
		"diagnostics", len(snapshotDiags)+len(diags))

	return nil
}

// snapshot loads the last good state of every enabled source. A source that
// has never been fetched successfully is excluded with a diagnostic; one
// whose latest fetch failed contributes its previous snapshot, which beats
// dropping its content from every slice.
func (t *SliceFeedsTask) snapshot(sources []feed.SourceConfig) ([]feed.SourceFeed, []slicer.Diagnostic) {
	var feeds []feed.SourceFeed
	var diags []slicer.Diagnostic

	for _, source := range sources {
		dbFeed, err := t.feedRepo.GetFeed(source.Name)
		if err != nil {
			diags = append(diags, slicer.Diagnostic{
				Code:    slicer.DiagSourceFailed,
				Source:  source.Name,
				Message: fmt.Sprintf("failed to load source state: %v", err),
			})
			continue
		}
		if dbFeed == nil || dbFeed.LastFetchedAt == nil {
			diags = append(diags, slicer.Diagnostic{
				Code:    slicer.DiagSourceFailed,
				Source:  source.Name,
				Message: "source not fetched yet, excluded from this run",
			})
			continue
		}
		if dbFeed.LastError != "" {
			diags = append(diags, slicer.Diagnostic{
				Code:    slicer.DiagSourceFailed,
				Source:  source.Name,
				Message: fmt.Sprintf("latest fetch failed (%s), using previous snapshot", dbFeed.LastError),
			})
		}

		items, err := t.itemRepo.GetItems(source.Name, source.Settings.MaxItems)
		if err != nil {
			diags = append(diags, slicer.Diagnostic{
				Code:    slicer.DiagSourceFailed,
				Source:  source.Name,
				Message: fmt.Sprintf("failed to load items: %v", err),
			})
			continue
		}

		feeds = append(feeds, feed.SourceFeed{
			SourceID: source.Name,
			Metadata: feed.Metadata{
				Title:           dbFeed.Title,
				Link:            dbFeed.Link,
				Description:     dbFeed.Description,
				ImageURL:        dbFeed.ImageURL,
				Language:        dbFeed.Language,
				Copyright:       dbFeed.Copyright,
				FeedPublishedAt: dbFeed.FeedPublishedAt,
			},
			Items: items,
		})
	}

	return feeds, diags
}
