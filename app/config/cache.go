package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/trprince/rss-slicer/app/feed"
	"github.com/trprince/rss-slicer/app/slicer"
)

// Cache loads and caches source configurations, slice definitions and the
// optional cross-feed link list. Names derive from filenames, so the
// configuration order is the lexical file order and stable across runs.
type Cache struct {
	sourcesDir string
	slicesDir  string
	linksFile  string

	mu      sync.RWMutex
	sources map[string]*feed.SourceConfig
	slices  map[string]*slicer.SliceDefinition
	links   []slicer.CrossLink
}

func NewCache(sourcesDir, slicesDir, linksFile string) *Cache {
	return &Cache{
		sourcesDir: sourcesDir,
		slicesDir:  slicesDir,
		linksFile:  linksFile,
		sources:    make(map[string]*feed.SourceConfig),
		slices:     make(map[string]*slicer.SliceDefinition),
	}
}

func (c *Cache) Run() error {
	if err := c.loadSources(); err != nil {
		return err
	}
	if err := c.loadSlices(); err != nil {
		return err
	}
	if err := c.loadLinks(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	slog.Debug("Configuration loaded",
		"sources", len(c.sources),
		"slices", len(c.slices),
		"links", len(c.links))

	return nil
}

func (c *Cache) loadSources() error {
	files, err := ymlFiles(c.sourcesDir)
	if err != nil {
		return err
	}

	for _, file := range files {
		name := nameFromFile(file)

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		var source feed.SourceConfig
		if err := yaml.Unmarshal(data, &source); err != nil {
			return fmt.Errorf("failed to parse %s: %w", file, err)
		}

		source.Name = name
		setSourceDefaults(&source)

		if source.URL == "" {
			return fmt.Errorf("invalid config %s: source URL is required", file)
		}
		if source.Priority < 0 {
			return fmt.Errorf("invalid config %s: priority must be non-negative", file)
		}

		c.mu.Lock()
		c.sources[name] = &source
		c.mu.Unlock()

		slog.Debug("Source configuration loaded", "source", name, "enabled", source.Settings.Enabled, "priority", source.Priority)
	}

	return nil
}

func (c *Cache) loadSlices() error {
	files, err := ymlFiles(c.slicesDir)
	if err != nil {
		return err
	}

	for _, file := range files {
		name := nameFromFile(file)

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		var def slicer.SliceDefinition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("failed to parse %s: %w", file, err)
		}

		def.ID = name
		if def.MaxItems == 0 {
			def.MaxItems = 100
		}

		c.mu.Lock()
		c.slices[name] = &def
		c.mu.Unlock()

		slog.Debug("Slice definition loaded", "slice", name, "allow_empty", def.AllowEmpty)
	}

	return nil
}

func (c *Cache) loadLinks() error {
	if c.linksFile == "" {
		return nil
	}
	if _, err := os.Stat(c.linksFile); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(c.linksFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.linksFile, err)
	}

	var parsed struct {
		Links []slicer.CrossLink `yaml:"links"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.linksFile, err)
	}

	for i, link := range parsed.Links {
		if link.SourceA == "" || link.ItemA == "" || link.SourceB == "" || link.ItemB == "" {
			return fmt.Errorf("invalid config %s: link at index %d must set source_a, item_a, source_b and item_b", c.linksFile, i)
		}
	}

	c.mu.Lock()
	c.links = parsed.Links
	c.mu.Unlock()

	return nil
}

func (c *Cache) GetSource(name string) (*feed.SourceConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	source, ok := c.sources[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return source, nil
}

func (c *Cache) GetSlice(name string) (*slicer.SliceDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.slices[name]
	if !ok {
		return nil, fmt.Errorf("slice definition with name '%s' not found", name)
	}
	return def, nil
}

// Sources returns all source configurations in configuration order.
func (c *Cache) Sources() []feed.SourceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sources := make([]feed.SourceConfig, 0, len(c.sources))
	for _, s := range c.sources {
		sources = append(sources, *s)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Name < sources[j].Name
	})
	return sources
}

// EnabledSources returns enabled source configurations in configuration order.
func (c *Cache) EnabledSources() []feed.SourceConfig {
	var enabled []feed.SourceConfig
	for _, s := range c.Sources() {
		if s.Settings.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

// Slices returns all slice definitions in configuration order.
func (c *Cache) Slices() []slicer.SliceDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]slicer.SliceDefinition, 0, len(c.slices))
	for _, d := range c.slices {
		defs = append(defs, *d)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].ID < defs[j].ID
	})
	return defs
}

func (c *Cache) Links() []slicer.CrossLink {
	c.mu.RLock()
	defer c.mu.RUnlock()

	links := make([]slicer.CrossLink, len(c.links))
	copy(links, c.links)
	return links
}

func (c *Cache) SourceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources)
}

func (c *Cache) SliceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slices)
}

func setSourceDefaults(source *feed.SourceConfig) {
	if source.Priority == 0 {
		source.Priority = 100
	}
	if source.Settings.RefreshInterval == 0 {
		source.Settings.RefreshInterval = 3600
	}
	if source.Settings.MaxItems == 0 {
		source.Settings.MaxItems = 100
	}
	if source.Settings.Timeout == 0 {
		source.Settings.Timeout = 30
	}
}

func ymlFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}

	yamlFiles, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	files = append(files, yamlFiles...)

	sort.Strings(files)
	return files, nil
}

func nameFromFile(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(strings.TrimSuffix(base, ".yml"), ".yaml")
}
