package slicer

import (
	"testing"
	"time"

	"github.com/trprince/rss-slicer/app/feed"
)

func testSources() []feed.SourceConfig {
	return []feed.SourceConfig{
		{Name: "public", URL: "https://example.com/public.xml", Priority: 10},
		{Name: "private", URL: "https://example.com/private.xml", Priority: 20},
	}
}

func testItem(sourceID, guid, title string) feed.CanonicalItem {
	return feed.CanonicalItem{
		SourceID: sourceID,
		GUID:     guid,
		Title:    title,
		Link:     "https://example.com/" + sourceID + "/" + guid,
	}
}

func TestResolver_Run_DistinctItemsStayDistinct(t *testing.T) {
	resolver := NewResolver(testSources(), nil)

	feeds := []feed.SourceFeed{
		{SourceID: "public", Items: []feed.CanonicalItem{
			testItem("public", "ep-1", "Episode 1"),
			testItem("public", "ep-2", "Episode 2"),
		}},
		{SourceID: "private", Items: []feed.CanonicalItem{
			testItem("private", "bonus-1", "Bonus Episode"),
		}},
	}

	merged, diags := resolver.Run(feeds)

	if len(merged) != 3 {
		t.Fatalf("Expected 3 merged items, got %d", len(merged))
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %d: %v", len(diags), diags)
	}

	for _, m := range merged {
		if len(m.Provenance) != 1 {
			t.Errorf("Item %s should have single-source provenance, got %v", m.Item.GUID, m.Provenance)
		}
		if m.Item.Fingerprint == "" {
			t.Errorf("Item %s should have a fingerprint assigned", m.Item.GUID)
		}
	}
}

func TestResolver_Run_EnclosureURLDedup(t *testing.T) {
	resolver := NewResolver(testSources(), nil)

	a := testItem("public", "ep-1", "Episode 1")
	a.Enclosure = &feed.Enclosure{URL: "https://cdn.example.com/ep1.mp3?token=abc", Type: "audio/mpeg"}
	b := testItem("private", "guid-xyz", "Episode 1 (full)")
	b.Enclosure = &feed.Enclosure{URL: "https://cdn.example.com/ep1.mp3?token=def", Type: "audio/mpeg"}

	feeds := []feed.SourceFeed{
		{SourceID: "public", Items: []feed.CanonicalItem{a}},
		{SourceID: "private", Items: []feed.CanonicalItem{b}},
	}

	merged, diags := resolver.Run(feeds)

	if len(merged) != 1 {
		t.Fatalf("Expected 1 merged item, got %d", len(merged))
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags)
	}

	m := merged[0]
	if len(m.Provenance) != 2 {
		t.Fatalf("Expected provenance from both sources, got %v", m.Provenance)
	}
	if m.Provenance[0] != "public" || m.Provenance[1] != "private" {
		t.Errorf("Provenance should follow configuration order, got %v", m.Provenance)
	}
	// public has priority 10, private 20: the public item wins
	if m.Item.SourceID != "public" {
		t.Errorf("Representative should come from the higher-priority source, got %s", m.Item.SourceID)
	}
}

func TestResolver_Run_ContentHashDedup(t *testing.T) {
	resolver := NewResolver(testSources(), nil)

	a := testItem("public", "ep-1", "Episode 1")
	a.ContentHash = "hash-1"
	b := testItem("private", "other-guid", "Episode 1")
	b.ContentHash = "hash-1"
	c := testItem("private", "unrelated", "Episode 2")
	c.ContentHash = "hash-2"

	feeds := []feed.SourceFeed{
		{SourceID: "public", Items: []feed.CanonicalItem{a}},
		{SourceID: "private", Items: []feed.CanonicalItem{b, c}},
	}

	merged, _ := resolver.Run(feeds)

	if len(merged) != 2 {
		t.Fatalf("Expected 2 merged items, got %d", len(merged))
	}

	var paired *MergedItem
	for i := range merged {
		if len(merged[i].Provenance) == 2 {
			paired = &merged[i]
		}
	}
	if paired == nil {
		t.Fatalf("Expected one item merged across both sources")
	}
	if paired.Item.SourceID != "public" {
		t.Errorf("Representative should come from public, got %s", paired.Item.SourceID)
	}
}

func TestResolver_Run_ExplicitLinkOverridesHeuristics(t *testing.T) {
	links := []CrossLink{
		{SourceA: "public", ItemA: "preview-1", SourceB: "private", ItemB: "full-1"},
	}
	resolver := NewResolver(testSources(), links)

	// Deliberately different titles, hashes, and enclosures: heuristics alone
	// would never merge these.
	a := testItem("public", "preview-1", "Episode 1 (preview)")
	a.ContentHash = "hash-a"
	b := testItem("private", "full-1", "Episode 1")
	b.ContentHash = "hash-b"

	feeds := []feed.SourceFeed{
		{SourceID: "public", Items: []feed.CanonicalItem{a}},
		{SourceID: "private", Items: []feed.CanonicalItem{b}},
	}

	merged, diags := resolver.Run(feeds)

	if len(merged) != 1 {
		t.Fatalf("Expected explicit link to merge items, got %d items", len(merged))
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags)
	}
	if len(merged[0].Provenance) != 2 {
		t.Errorf("Expected provenance from both sources, got %v", merged[0].Provenance)
	}
}

func TestResolver_Run_UnknownLinkTarget(t *testing.T) {
	links := []CrossLink{
		{SourceA: "public", ItemA: "missing", SourceB: "private", ItemB: "also-missing"},
	}
	resolver := NewResolver(testSources(), links)

	feeds := []feed.SourceFeed{
		{SourceID: "public", Items: []feed.CanonicalItem{testItem("public", "ep-1", "Episode 1")}},
	}

	merged, diags := resolver.Run(feeds)

	if len(merged) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(merged))
	}
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].Code != DiagUnknownLinkTarget {
		t.Errorf("Expected %s diagnostic, got %s", DiagUnknownLinkTarget, diags[0].Code)
	}
}

func TestResolver_Run_LinkByItemLink(t *testing.T) {
	// Item references in links resolve against the item link too, not just
	// the guid.
	a := testItem("public", "guid-1", "Episode 1")
	b := testItem("private", "guid-2", "Episode 1 full")

	links := []CrossLink{
		{SourceA: "public", ItemA: a.Link, SourceB: "private", ItemB: b.Link},
	}
	resolver := NewResolver(testSources(), links)

	feeds := []feed.SourceFeed{
		{SourceID: "public", Items: []feed.CanonicalItem{a}},
		{SourceID: "private", Items: []feed.CanonicalItem{b}},
	}

	merged, diags := resolver.Run(feeds)

	if len(merged) != 1 {
		t.Fatalf("Expected 1 merged item, got %d", len(merged))
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags)
	}
}

func TestResolver_Run_IncompatibleEnclosureTypesKeptDistinct(t *testing.T) {
	resolver := NewResolver(testSources(), nil)

	a := testItem("public", "ep-1", "Episode 1")
	a.ContentHash = "same-hash"
	a.Enclosure = &feed.Enclosure{URL: "https://cdn.example.com/ep1.mp3", Type: "audio/mpeg"}
	b := testItem("private", "ep-1-video", "Episode 1")
	b.ContentHash = "same-hash"
	b.Enclosure = &feed.Enclosure{URL: "https://cdn.example.com/ep1.mp4", Type: "video/mp4"}

	feeds := []feed.SourceFeed{
		{SourceID: "public", Items: []feed.CanonicalItem{a}},
		{SourceID: "private", Items: []feed.CanonicalItem{b}},
	}

	merged, diags := resolver.Run(feeds)

	if len(merged) != 2 {
		t.Fatalf("Expected collision to degrade to 2 distinct items, got %d", len(merged))
	}
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].Code != DiagFingerprintCollision {
		t.Errorf("Expected %s diagnostic, got %s", DiagFingerprintCollision, diags[0].Code)
	}
}

func TestResolver_Run_RepresentativeTieBreaks(t *testing.T) {
	// Equal priority sources: completeness decides the representative.
	sources := []feed.SourceConfig{
		{Name: "alpha", Priority: 50},
		{Name: "beta", Priority: 50},
	}
	resolver := NewResolver(sources, nil)

	a := testItem("alpha", "ep-1", "Episode 1")
	a.ContentHash = "h1"
	b := testItem("beta", "ep-1", "Episode 1")
	b.ContentHash = "h1"
	b.Enclosure = &feed.Enclosure{URL: "https://cdn.example.com/ep1.mp3", Type: "audio/mpeg"}

	feeds := []feed.SourceFeed{
		{SourceID: "alpha", Items: []feed.CanonicalItem{a}},
		{SourceID: "beta", Items: []feed.CanonicalItem{b}},
	}

	merged, _ := resolver.Run(feeds)

	if len(merged) != 1 {
		t.Fatalf("Expected 1 merged item, got %d", len(merged))
	}
	if merged[0].Item.SourceID != "beta" {
		t.Errorf("Item with enclosure should win the tie, got representative from %s", merged[0].Item.SourceID)
	}
}

func TestResolver_Run_EarliestPublicationWinsTie(t *testing.T) {
	sources := []feed.SourceConfig{
		{Name: "alpha", Priority: 50},
		{Name: "beta", Priority: 50},
	}
	resolver := NewResolver(sources, nil)

	early := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	a := testItem("alpha", "ep-1", "Episode 1")
	a.ContentHash = "h1"
	a.PublishedAt = &late
	b := testItem("beta", "ep-1", "Episode 1")
	b.ContentHash = "h1"
	b.PublishedAt = &early

	feeds := []feed.SourceFeed{
		{SourceID: "alpha", Items: []feed.CanonicalItem{a}},
		{SourceID: "beta", Items: []feed.CanonicalItem{b}},
	}

	merged, _ := resolver.Run(feeds)

	if len(merged) != 1 {
		t.Fatalf("Expected 1 merged item, got %d", len(merged))
	}
	if merged[0].Item.SourceID != "beta" {
		t.Errorf("Earlier publication should win the tie, got representative from %s", merged[0].Item.SourceID)
	}
}

func TestResolver_Run_FingerprintStableAcrossInputOrder(t *testing.T) {
	resolver := NewResolver(testSources(), nil)

	a := testItem("public", "ep-1", "Episode 1")
	a.ContentHash = "h1"
	b := testItem("private", "ep-1-full", "Episode 1")
	b.ContentHash = "h1"

	forward := []feed.SourceFeed{
		{SourceID: "public", Items: []feed.CanonicalItem{a}},
		{SourceID: "private", Items: []feed.CanonicalItem{b}},
	}
	reversed := []feed.SourceFeed{
		{SourceID: "private", Items: []feed.CanonicalItem{b}},
		{SourceID: "public", Items: []feed.CanonicalItem{a}},
	}

	merged1, _ := resolver.Run(forward)
	merged2, _ := resolver.Run(reversed)

	if len(merged1) != 1 || len(merged2) != 1 {
		t.Fatalf("Expected 1 merged item in both runs, got %d and %d", len(merged1), len(merged2))
	}
	if merged1[0].Item.Fingerprint != merged2[0].Item.Fingerprint {
		t.Errorf("Fingerprint should not depend on input order: %s vs %s",
			merged1[0].Item.Fingerprint, merged2[0].Item.Fingerprint)
	}
	if merged1[0].Item.SourceID != merged2[0].Item.SourceID {
		t.Errorf("Representative should not depend on input order: %s vs %s",
			merged1[0].Item.SourceID, merged2[0].Item.SourceID)
	}
}

func TestNormalizeEnclosureURL(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"https://cdn.example.com/ep1.mp3?token=abc", "https://cdn.example.com/ep1.mp3"},
		{"HTTPS://CDN.Example.COM/ep1.mp3", "https://cdn.example.com/ep1.mp3"},
		{"https://cdn.example.com/ep1.mp3#t=30", "https://cdn.example.com/ep1.mp3"},
		{"https://cdn.example.com/EP1.mp3", "https://cdn.example.com/EP1.mp3"}, // path case preserved
	}

	for _, test := range tests {
		result := normalizeEnclosureURL(test.raw)
		if result != test.expected {
			t.Errorf("normalizeEnclosureURL(%s): expected '%s', got '%s'", test.raw, test.expected, result)
		}
	}
}
