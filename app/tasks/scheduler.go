package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/trprince/rss-slicer/app/cfg"
	"github.com/trprince/rss-slicer/app/config"
	"github.com/trprince/rss-slicer/app/database"
	"github.com/trprince/rss-slicer/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache *config.Cache
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	outputRepo  database.OutputRepository
	httpClient  *http.Client
	parser      *feed.Parser
	adapter     *feed.Adapter
	extractor   *feed.ContentExtractor
	userAgent   string
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *config.Cache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, outputRepo database.OutputRepository,
	httpClient *http.Client, parser *feed.Parser, adapter *feed.Adapter,
	extractor *feed.ContentExtractor) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache: configCache,
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		outputRepo:  outputRepo,
		httpClient:  httpClient,
		parser:      parser,
		adapter:     adapter,
		extractor:   extractor,
		userAgent:   cfg.UserAgent,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	sources := s.configCache.Sources()
	if len(sources) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(sources))

	for _, source := range sources {
		source := source
		syncTask := NewSyncSourceConfigTask(source.Name, &source, s.feedRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceConfigTask", "source", source.Name, "error", err)
			continue
		}

		if !source.Settings.Enabled {
			slog.Debug("Source disabled, skipping FetchFeedTask", "source", source.Name)
			continue
		}

		fetchTask := NewFetchFeedTask(source.Name, &source, s.httpClient, s.parser, s.adapter, s.feedRepo, s.itemRepo, s.userAgent)
		if err := s.EnqueueTask(fetchTask); err != nil {
			slog.Warn("Failed to enqueue FetchFeedTask", "source", source.Name, "error", err)
		}
	}

	s.enqueueSliceTask()
}

func (s *Scheduler) enqueueTasks() {
	sources := s.configCache.EnabledSources()
	if len(sources) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Processing enabled source configurations for task scheduling", "count", len(sources))

	fetched := false
	for _, source := range sources {
		source := source
		dbFeed, err := s.feedRepo.GetFeed(source.Name)
		if err != nil {
			slog.Warn("Failed to get source from database, skipping", "source", source.Name, "error", err)
			continue
		}
		if dbFeed == nil {
			slog.Warn("Source not found in database, skipping", "source", source.Name)
			continue
		}

		now := time.Now().UTC()
		if dbFeed.NextFetchAt != nil && dbFeed.NextFetchAt.After(now) {
			slog.Debug("Source not due for refresh yet", "source", source.Name, "next_fetch_at", dbFeed.NextFetchAt)
		} else {
			fetchTask := NewFetchFeedTask(source.Name, &source, s.httpClient, s.parser, s.adapter, s.feedRepo, s.itemRepo, s.userAgent)
			if err := s.EnqueueTask(fetchTask); err != nil {
				slog.Warn("Failed to enqueue FetchFeedTask", "source", source.Name, "error", err)
			} else {
				fetched = true
			}
		}

		if source.Settings.ExtractContent {
			extractTask := NewExtractContentTask(source.Name, &source, s.httpClient, s.extractor, s.itemRepo, s.userAgent)
			if err := s.EnqueueTask(extractTask); err != nil {
				slog.Warn("Failed to enqueue ExtractContentTask", "source", source.Name, "error", err)
			}
		}
	}

	if fetched {
		s.enqueueSliceTask()
	}
}

func (s *Scheduler) enqueueSliceTask() {
	sliceTask := NewSliceFeedsTask(s.configCache, s.feedRepo, s.itemRepo, s.outputRepo, s.workerCount)
	if err := s.EnqueueTask(sliceTask); err != nil {
		slog.Warn("Failed to enqueue SliceFeedsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
