package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func setupConfigDirs(t *testing.T) (string, string, string) {
	t.Helper()
	root := t.TempDir()

	sourcesDir := filepath.Join(root, "feeds")
	slicesDir := filepath.Join(root, "slices")
	if err := os.MkdirAll(sourcesDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(slicesDir, 0755); err != nil {
		t.Fatal(err)
	}

	return sourcesDir, slicesDir, filepath.Join(root, "links.yml")
}

func TestCache_Run_LoadsSourcesAndSlices(t *testing.T) {
	sourcesDir, slicesDir, linksFile := setupConfigDirs(t)

	writeFile(t, filepath.Join(sourcesDir, "public.yml"), `
url: https://example.com/public.xml
priority: 10
settings:
  enabled: true
  refresh_interval: 1800
`)
	writeFile(t, filepath.Join(sourcesDir, "private.yml"), `
url: https://example.com/private.xml
settings:
  enabled: false
`)
	writeFile(t, filepath.Join(slicesDir, "audio.yml"), `
predicate:
  has_enclosure: true
allow_empty: true
max_items: 50
channel:
  title: Audio Only
`)
	writeFile(t, linksFile, `
links:
  - source_a: public
    item_a: ep-1
    source_b: private
    item_b: ep-1-full
`)

	cache := NewCache(sourcesDir, slicesDir, linksFile)
	if err := cache.Run(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cache.SourceCount() != 2 {
		t.Errorf("Expected 2 sources, got %d", cache.SourceCount())
	}
	if cache.SliceCount() != 1 {
		t.Errorf("Expected 1 slice, got %d", cache.SliceCount())
	}

	public, err := cache.GetSource("public")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if public.URL != "https://example.com/public.xml" {
		t.Errorf("Expected public URL, got '%s'", public.URL)
	}
	if public.Priority != 10 {
		t.Errorf("Expected priority 10, got %d", public.Priority)
	}
	if public.Settings.RefreshInterval != 1800 {
		t.Errorf("Expected refresh interval 1800, got %d", public.Settings.RefreshInterval)
	}

	audio, err := cache.GetSlice("audio")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if audio.ID != "audio" {
		t.Errorf("Slice ID should derive from the filename, got '%s'", audio.ID)
	}
	if !audio.AllowEmpty {
		t.Error("Expected allow_empty to be true")
	}
	if audio.MaxItems != 50 {
		t.Errorf("Expected max_items 50, got %d", audio.MaxItems)
	}
	if audio.Channel.Title != "Audio Only" {
		t.Errorf("Expected channel title 'Audio Only', got '%s'", audio.Channel.Title)
	}
	if audio.Predicate.HasEnclosure == nil || !*audio.Predicate.HasEnclosure {
		t.Error("Expected has_enclosure predicate to be parsed")
	}

	links := cache.Links()
	if len(links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(links))
	}
	if links[0].SourceA != "public" || links[0].ItemB != "ep-1-full" {
		t.Errorf("Link fields not parsed correctly: %+v", links[0])
	}
}

func TestCache_Run_AppliesDefaults(t *testing.T) {
	sourcesDir, slicesDir, _ := setupConfigDirs(t)

	writeFile(t, filepath.Join(sourcesDir, "minimal.yml"), `
url: https://example.com/feed.xml
`)
	writeFile(t, filepath.Join(slicesDir, "minimal.yml"), `
predicate:
  source: minimal
`)

	cache := NewCache(sourcesDir, slicesDir, "")
	if err := cache.Run(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	source, err := cache.GetSource("minimal")
	if err != nil {
		t.Fatal(err)
	}
	if source.Priority != 100 {
		t.Errorf("Expected default priority 100, got %d", source.Priority)
	}
	if source.Settings.RefreshInterval != 3600 {
		t.Errorf("Expected default refresh interval 3600, got %d", source.Settings.RefreshInterval)
	}
	if source.Settings.MaxItems != 100 {
		t.Errorf("Expected default max items 100, got %d", source.Settings.MaxItems)
	}
	if source.Settings.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got %d", source.Settings.Timeout)
	}

	def, err := cache.GetSlice("minimal")
	if err != nil {
		t.Fatal(err)
	}
	if def.MaxItems != 100 {
		t.Errorf("Expected default slice max items 100, got %d", def.MaxItems)
	}
	if def.AllowEmpty {
		t.Error("allow_empty should default to false")
	}
}

func TestCache_Run_MissingURLFails(t *testing.T) {
	sourcesDir, slicesDir, _ := setupConfigDirs(t)

	writeFile(t, filepath.Join(sourcesDir, "broken.yml"), `
priority: 10
`)

	cache := NewCache(sourcesDir, slicesDir, "")
	if err := cache.Run(); err == nil {
		t.Error("Expected error for source without URL")
	}
}

func TestCache_Run_IncompleteLinkFails(t *testing.T) {
	sourcesDir, slicesDir, linksFile := setupConfigDirs(t)

	writeFile(t, linksFile, `
links:
  - source_a: public
    item_a: ep-1
`)

	cache := NewCache(sourcesDir, slicesDir, linksFile)
	if err := cache.Run(); err == nil {
		t.Error("Expected error for link with missing fields")
	}
}

func TestCache_Run_MissingLinksFileIsFine(t *testing.T) {
	sourcesDir, slicesDir, _ := setupConfigDirs(t)

	cache := NewCache(sourcesDir, slicesDir, filepath.Join(sourcesDir, "nonexistent.yml"))
	if err := cache.Run(); err != nil {
		t.Errorf("Missing links file should not be an error, got: %v", err)
	}
}

func TestCache_EnabledSources(t *testing.T) {
	sourcesDir, slicesDir, _ := setupConfigDirs(t)

	writeFile(t, filepath.Join(sourcesDir, "on.yml"), `
url: https://example.com/on.xml
settings:
  enabled: true
`)
	writeFile(t, filepath.Join(sourcesDir, "off.yml"), `
url: https://example.com/off.xml
settings:
  enabled: false
`)

	cache := NewCache(sourcesDir, slicesDir, "")
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	enabled := cache.EnabledSources()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled source, got %d", len(enabled))
	}
	if enabled[0].Name != "on" {
		t.Errorf("Expected enabled source 'on', got '%s'", enabled[0].Name)
	}
}

func TestCache_SourcesOrderedByName(t *testing.T) {
	sourcesDir, slicesDir, _ := setupConfigDirs(t)

	writeFile(t, filepath.Join(sourcesDir, "zebra.yml"), "url: https://example.com/z.xml\n")
	writeFile(t, filepath.Join(sourcesDir, "alpha.yml"), "url: https://example.com/a.xml\n")

	cache := NewCache(sourcesDir, slicesDir, "")
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	sources := cache.Sources()
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != "alpha" || sources[1].Name != "zebra" {
		t.Errorf("Sources should be ordered by name, got %s, %s", sources[0].Name, sources[1].Name)
	}
}

func TestCache_GetUnknownNameFails(t *testing.T) {
	sourcesDir, slicesDir, _ := setupConfigDirs(t)

	cache := NewCache(sourcesDir, slicesDir, "")
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.GetSource("ghost"); err == nil {
		t.Error("Expected error for unknown source")
	}
	if _, err := cache.GetSlice("ghost"); err == nil {
		t.Error("Expected error for unknown slice")
	}
}
