package api

import (
	"github.com/trprince/rss-slicer/app/config"
	"github.com/trprince/rss-slicer/app/database"
	"github.com/trprince/rss-slicer/app/tasks"
)

type Handler struct {
	configCache *config.Cache
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	outputRepo  database.OutputRepository
	scheduler   tasks.TaskSchedulerInterface
	workerCount int
}
