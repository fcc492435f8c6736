package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trprince/rss-slicer/app/cfg"
	"github.com/trprince/rss-slicer/app/config"
	"github.com/trprince/rss-slicer/app/database"
	"github.com/trprince/rss-slicer/app/tasks"
)

func NewHandler(configCache *config.Cache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, outputRepo database.OutputRepository,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		configCache: configCache,
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		outputRepo:  outputRepo,
		scheduler:   scheduler,
		workerCount: cfg.Get().WorkerCount,
	}
}

func (h *Handler) GetSlice(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	if _, err := h.configCache.GetSlice(name); err != nil {
		slog.Error("Slice definition not found", "slice", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	output, err := h.outputRepo.GetOutput(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_output", "slice", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if output == nil {
		slog.Error("Slice not generated yet", "slice", name)
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Slice-Items", strconv.Itoa(output.ItemCount))
	c.Header("X-Slice-Name", name)
	c.Header("X-Generated-At", output.GeneratedAt.Format(time.RFC3339))

	c.String(http.StatusOK, output.RSS)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["sources"] = feedCount
	}
	if outputCount, err := h.outputRepo.GetOutputCount(); err == nil {
		health["generated_slices"] = outputCount
	}

	health["loaded_sources"] = h.configCache.SourceCount()
	health["loaded_slices"] = h.configCache.SliceCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	sources := make([]map[string]interface{}, 0)
	for _, source := range h.configCache.Sources() {
		info := map[string]interface{}{
			"name":    source.Name,
			"enabled": source.Settings.Enabled,
		}
		if itemCount, err := h.itemRepo.GetItemCount(source.Name); err == nil {
			info["item_count"] = itemCount
		}
		sources = append(sources, info)
	}

	slices := make([]map[string]interface{}, 0)
	for _, def := range h.configCache.Slices() {
		info := map[string]interface{}{
			"name":        def.ID,
			"allow_empty": def.AllowEmpty,
		}
		if output, err := h.outputRepo.GetOutput(def.ID); err == nil && output != nil {
			info["item_count"] = output.ItemCount
			info["generated_at"] = output.GeneratedAt
		}
		slices = append(slices, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"slices":  slices,
	})
}

func (h *Handler) APIListSlices(c *gin.Context) {
	defs := h.configCache.Slices()

	slices := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		info := map[string]interface{}{
			"name":        def.ID,
			"allow_empty": def.AllowEmpty,
			"max_items":   def.MaxItems,
			"channel":     def.Channel,
		}

		if output, err := h.outputRepo.GetOutput(def.ID); err == nil && output != nil {
			info["item_count"] = output.ItemCount
			info["generated_at"] = output.GeneratedAt
		}

		slices = append(slices, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"slices": slices,
		"total":  len(slices),
	})
}

func (h *Handler) APIGetSliceDetails(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing slice name parameter"})
		return
	}

	def, err := h.configCache.GetSlice(name)
	if err != nil {
		slog.Error("Slice definition not found", "slice", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Slice definition not found"})
		return
	}

	details := map[string]interface{}{
		"name":        def.ID,
		"allow_empty": def.AllowEmpty,
		"max_items":   def.MaxItems,
		"channel":     def.Channel,
		"predicate":   def.Predicate,
	}

	if output, err := h.outputRepo.GetOutput(name); err == nil && output != nil {
		details["output"] = map[string]interface{}{
			"item_count":   output.ItemCount,
			"generated_at": output.GeneratedAt,
		}
	}

	c.JSON(http.StatusOK, details)
}

// APIReslice enqueues a fresh slicing run over the stored snapshots.
func (h *Handler) APIReslice(c *gin.Context) {
	task := tasks.NewSliceFeedsTask(h.configCache, h.feedRepo, h.itemRepo, h.outputRepo, h.workerCount)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue SliceFeedsTask", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue slicing task"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "slicing scheduled"})
}
