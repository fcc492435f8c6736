package slicer

import (
	"strings"
	"testing"

	"github.com/trprince/rss-slicer/app/feed"
)

func boolPtr(b bool) *bool {
	return &b
}

func allKnown() Known {
	return Known{
		Sources:    map[string]bool{"public": true, "private": true},
		Categories: map[string]bool{"technology": true, "news": true},
	}
}

func mergedItem(sourceID, title string, categories ...string) MergedItem {
	return MergedItem{
		Item: feed.CanonicalItem{
			SourceID:   sourceID,
			Title:      title,
			Categories: categories,
		},
		Provenance: []string{sourceID},
	}
}

func TestCompile_CategoryMatcher(t *testing.T) {
	predicate, diags, err := Compile("tech", PredicateNode{Category: "Technology"}, allKnown())
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags)
	}

	match := mergedItem("public", "Some article", "technology")
	if !predicate.Match(&match) {
		t.Errorf("Category match should be case insensitive")
	}

	miss := mergedItem("public", "Other article", "sports")
	if predicate.Match(&miss) {
		t.Errorf("Item without the category should not match")
	}
}

func TestCompile_SourceMatcherUsesProvenance(t *testing.T) {
	predicate, _, err := Compile("from-private", PredicateNode{Source: "private"}, allKnown())
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	// Representative came from public, but private contributed to the merge.
	item := mergedItem("public", "Episode 1")
	item.Provenance = []string{"public", "private"}

	if !predicate.Match(&item) {
		t.Errorf("Source matcher should consult provenance, not just the representative")
	}
}

func TestCompile_HasEnclosureMatcher(t *testing.T) {
	predicate, _, err := Compile("audio", PredicateNode{HasEnclosure: boolPtr(true)}, allKnown())
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	with := mergedItem("public", "Episode 1")
	with.Item.Enclosure = &feed.Enclosure{URL: "https://cdn.example.com/ep1.mp3"}
	without := mergedItem("public", "Text post")

	if !predicate.Match(&with) {
		t.Errorf("Item with enclosure should match has_enclosure: true")
	}
	if predicate.Match(&without) {
		t.Errorf("Item without enclosure should not match has_enclosure: true")
	}
}

func TestCompile_TitleMatches(t *testing.T) {
	predicate, _, err := Compile("episodes", PredicateNode{TitleMatches: `^Episode \d+`}, allKnown())
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	match := mergedItem("public", "Episode 42: The Answer")
	miss := mergedItem("public", "Bonus: Episode recap")

	if !predicate.Match(&match) {
		t.Errorf("Title matching the pattern should match")
	}
	if predicate.Match(&miss) {
		t.Errorf("Title not matching the pattern should not match")
	}
}

func TestCompile_CombinatorsShortCircuit(t *testing.T) {
	node := PredicateNode{
		All: []PredicateNode{
			{Source: "public"},
			{Not: &PredicateNode{Category: "news"}},
		},
	}

	predicate, diags, err := Compile("filtered", node, allKnown())
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags)
	}

	match := mergedItem("public", "Article", "technology")
	if !predicate.Match(&match) {
		t.Errorf("public item without news category should match")
	}

	excluded := mergedItem("public", "Article", "news")
	if predicate.Match(&excluded) {
		t.Errorf("public item with news category should not match")
	}

	otherSource := mergedItem("private", "Article", "technology")
	if predicate.Match(&otherSource) {
		t.Errorf("private item should not match")
	}
}

func TestCompile_AnyCombinator(t *testing.T) {
	node := PredicateNode{
		Any: []PredicateNode{
			{Category: "technology"},
			{Category: "news"},
		},
	}

	predicate, _, err := Compile("either", node, allKnown())
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	if m := mergedItem("public", "A", "news"); !predicate.Match(&m) {
		t.Errorf("Item with news category should match any-of")
	}
	if m := mergedItem("public", "B", "sports"); predicate.Match(&m) {
		t.Errorf("Item with neither category should not match")
	}
}

func TestCompile_UnknownSourceConstantFalse(t *testing.T) {
	predicate, diags, err := Compile("ghost", PredicateNode{Source: "nonexistent"}, allKnown())
	if err != nil {
		t.Fatalf("Unknown source should not be a fatal error, got: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].Code != DiagUnknownSource {
		t.Errorf("Expected %s diagnostic, got %s", DiagUnknownSource, diags[0].Code)
	}
	if diags[0].Slice != "ghost" {
		t.Errorf("Diagnostic should name the slice, got %q", diags[0].Slice)
	}

	item := mergedItem("public", "Anything")
	if predicate.Match(&item) {
		t.Errorf("Unknown source matcher should never match")
	}
}

func TestCompile_UnknownCategoryConstantFalse(t *testing.T) {
	predicate, diags, err := Compile("ghost", PredicateNode{Category: "astrology"}, allKnown())
	if err != nil {
		t.Fatalf("Unknown category should not be a fatal error, got: %v", err)
	}
	if len(diags) != 1 || diags[0].Code != DiagUnknownCategory {
		t.Fatalf("Expected a single %s diagnostic, got %v", DiagUnknownCategory, diags)
	}

	item := mergedItem("public", "Anything", "astrology")
	if predicate.Match(&item) {
		t.Errorf("Unknown category matcher should never match")
	}
}

func TestCompile_EmptyNodeIsFatal(t *testing.T) {
	_, _, err := Compile("broken", PredicateNode{}, allKnown())
	if err == nil {
		t.Fatalf("Expected error for empty predicate node")
	}
}

func TestCompile_MultipleFieldsIsFatal(t *testing.T) {
	node := PredicateNode{Category: "news", Source: "public"}

	_, _, err := Compile("broken", node, allKnown())
	if err == nil {
		t.Fatalf("Expected error for node with multiple matchers")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Error should name the slice, got: %v", err)
	}
}

func TestCompile_InvalidRegexpIsFatal(t *testing.T) {
	_, _, err := Compile("broken", PredicateNode{TitleMatches: "[unclosed"}, allKnown())
	if err == nil {
		t.Fatalf("Expected error for invalid regexp")
	}
}

func TestCompile_NestedInvalidNodeIsFatal(t *testing.T) {
	node := PredicateNode{
		All: []PredicateNode{
			{Category: "news"},
			{}, // empty child
		},
	}

	_, _, err := Compile("broken", node, allKnown())
	if err == nil {
		t.Fatalf("Expected error for invalid nested node")
	}
}
