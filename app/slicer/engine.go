package slicer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/trprince/rss-slicer/app/feed"
)

// Engine is the single entry point for a slicing run. It is stateless
// between runs: every Run operates over an immutable snapshot of already
// fetched source feeds and performs no I/O.
type Engine struct {
	sources     []feed.SourceConfig
	links       []CrossLink
	workerCount int
	resolver    *Resolver
	composer    *Composer
}

func NewEngine(sources []feed.SourceConfig, links []CrossLink, workerCount int) *Engine {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Engine{
		sources:     sources,
		links:       links,
		workerCount: workerCount,
		resolver:    NewResolver(sources, links),
		composer:    NewComposer(),
	}
}

// Run deduplicates the snapshot and partitions it into one OutputFeed per
// slice definition. Per-item and per-source problems surface only through
// the returned diagnostics; a fatal condition (no feeds, invalid predicate,
// an empty slice without allow_empty) aborts the whole run so a caller never
// publishes output derived from an ambiguous run.
func (e *Engine) Run(feeds []feed.SourceFeed, defs []SliceDefinition) (map[string]*OutputFeed, []Diagnostic, error) {
	if len(feeds) == 0 {
		return nil, nil, fmt.Errorf("no source feeds available to slice")
	}

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if seen[def.ID] {
			return nil, nil, fmt.Errorf("duplicate slice definition %q", def.ID)
		}
		seen[def.ID] = true
	}

	// Canonical source order; the composer's metadata fallback and the
	// resolver both key off it, so permuting the input changes nothing.
	ordered := make([]feed.SourceFeed, len(feeds))
	copy(ordered, feeds)
	sort.SliceStable(ordered, func(i, j int) bool {
		return e.resolver.sourceLess(ordered[i].SourceID, ordered[j].SourceID)
	})

	run := &Diagnostics{}

	// The resolver is a synchronization barrier: no slice evaluation starts
	// before the merged set is complete.
	merged, resolverDiags := e.resolver.Run(ordered)
	for _, d := range resolverDiags {
		run.Add(d)
	}

	known := e.knownUniverse(ordered, merged)

	predicates := make([]*Predicate, len(defs))
	for i, def := range defs {
		predicate, diags, err := Compile(def.ID, def.Predicate, known)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range diags {
			run.Add(d)
		}
		predicates[i] = predicate
	}

	// Slices never share mutable state, so evaluation fans out across a
	// bounded worker pool; results and errors land in definition-order slots.
	results := make([]*OutputFeed, len(defs))
	errs := make([]error, len(defs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workerCount)
	for i := range defs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var matched []MergedItem
			for j := range merged {
				if predicates[i].Match(&merged[j]) {
					matched = append(matched, merged[j])
				}
			}
			results[i], errs[i] = e.composer.Run(defs[i], ordered, matched)
		}(i)
	}
	wg.Wait()

	for i := range defs {
		if errs[i] != nil {
			return nil, nil, errs[i]
		}
	}

	outputs := make(map[string]*OutputFeed, len(defs))
	for i, def := range defs {
		outputs[def.ID] = results[i]
	}

	return outputs, run.Entries(), nil
}

// knownUniverse collects the sources and categories present in this run so
// predicate compilation can flag references that cannot match anything.
func (e *Engine) knownUniverse(feeds []feed.SourceFeed, merged []MergedItem) Known {
	known := Known{
		Sources:    make(map[string]bool),
		Categories: make(map[string]bool),
	}
	for _, sf := range feeds {
		known.Sources[sf.SourceID] = true
	}
	for _, m := range merged {
		for _, c := range m.Item.Categories {
			known.Categories[strings.ToLower(c)] = true
		}
	}
	return known
}
