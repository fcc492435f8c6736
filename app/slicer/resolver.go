package slicer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/trprince/rss-slicer/app/feed"
)

// Resolver collapses canonical items that represent the same content even
// when they come from different feeds with different guids. Identity is a
// graph problem (items as nodes, "same content" as edges) solved with a
// union-find over the run snapshot.
type Resolver struct {
	priority    map[string]int
	sourceOrder map[string]int
	links       []CrossLink
}

func NewResolver(sources []feed.SourceConfig, links []CrossLink) *Resolver {
	priority := make(map[string]int, len(sources))
	sourceOrder := make(map[string]int, len(sources))
	for i, s := range sources {
		priority[s.Name] = s.Priority
		sourceOrder[s.Name] = i
	}

	return &Resolver{
		priority:    priority,
		sourceOrder: sourceOrder,
		links:       links,
	}
}

// Run resolves the snapshot into one MergedItem per distinct fingerprint.
// Union rules, first match wins: explicit cross-feed links, then enclosure
// URL equality (ignoring query strings) or exact content hash equality,
// otherwise the item stays unique to its source.
func (r *Resolver) Run(feeds []feed.SourceFeed) ([]MergedItem, []Diagnostic) {
	var diags []Diagnostic

	// Canonical source order makes the result independent of input order.
	ordered := make([]feed.SourceFeed, len(feeds))
	copy(ordered, feeds)
	sort.SliceStable(ordered, func(i, j int) bool {
		return r.sourceLess(ordered[i].SourceID, ordered[j].SourceID)
	})

	var items []feed.CanonicalItem
	for _, sf := range ordered {
		items = append(items, sf.Items...)
	}

	uf := newUnionFind(len(items))

	enclosureIdx := make(map[string][]int)
	hashIdx := make(map[string][]int)
	refIdx := make(map[string]int)
	for i, item := range items {
		if item.HasEnclosure() {
			key := normalizeEnclosureURL(item.Enclosure.URL)
			enclosureIdx[key] = append(enclosureIdx[key], i)
		}
		if item.ContentHash != "" {
			hashIdx[item.ContentHash] = append(hashIdx[item.ContentHash], i)
		}
		if _, ok := refIdx[item.SourceID+"|"+item.GUID]; !ok {
			refIdx[item.SourceID+"|"+item.GUID] = i
		}
		if item.Link != "" {
			if _, ok := refIdx[item.SourceID+"|"+item.Link]; !ok {
				refIdx[item.SourceID+"|"+item.Link] = i
			}
		}
	}

	for _, bucket := range enclosureIdx {
		for _, idx := range bucket[1:] {
			uf.union(bucket[0], idx)
		}
	}
	for _, bucket := range hashIdx {
		for _, idx := range bucket[1:] {
			uf.union(bucket[0], idx)
		}
	}

	// Explicit links override heuristics: preview/full pairs have deliberately
	// different titles and enclosures, so similarity cannot find them.
	explicit := make(map[int]bool)
	for _, link := range r.links {
		a, okA := refIdx[link.SourceA+"|"+link.ItemA]
		b, okB := refIdx[link.SourceB+"|"+link.ItemB]
		if !okA || !okB {
			diags = append(diags, Diagnostic{
				Code:    DiagUnknownLinkTarget,
				Source:  link.SourceA,
				Message: fmt.Sprintf("cross-feed link (%s:%s, %s:%s) references an item absent from this run", link.SourceA, link.ItemA, link.SourceB, link.ItemB),
			})
			continue
		}
		uf.union(a, b)
		explicit[a] = true
		explicit[b] = true
	}

	groups := make(map[int][]int)
	for i := range items {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	var merged []MergedItem
	for _, root := range roots {
		group := groups[root]

		isExplicit := false
		for _, idx := range group {
			if explicit[idx] {
				isExplicit = true
				break
			}
		}

		// A heuristic merge of items with conflicting enclosure types is a
		// collision, not an error: degrade to distinct items and warn, since
		// silently dropping content is worse than under-deduplication.
		if len(group) > 1 && !isExplicit && r.incompatible(items, group) {
			diags = append(diags, Diagnostic{
				Code:    DiagFingerprintCollision,
				Source:  items[group[0]].SourceID,
				Message: fmt.Sprintf("fingerprint collision between %d items with incompatible enclosure types, kept distinct", len(group)),
			})
			for _, idx := range group {
				merged = append(merged, r.buildMerged([]feed.CanonicalItem{items[idx]}, false))
			}
			continue
		}

		members := make([]feed.CanonicalItem, len(group))
		for i, idx := range group {
			members[i] = items[idx]
		}
		merged = append(merged, r.buildMerged(members, isExplicit))
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Item.Fingerprint < merged[j].Item.Fingerprint
	})

	return merged, diags
}

func (r *Resolver) buildMerged(members []feed.CanonicalItem, explicit bool) MergedItem {
	representative := members[0]
	for _, candidate := range members[1:] {
		if r.better(candidate, representative) {
			representative = candidate
		}
	}
	representative.Fingerprint = fingerprintOf(members, explicit)

	seen := make(map[string]bool, len(members))
	var provenance []string
	for _, m := range members {
		if !seen[m.SourceID] {
			seen[m.SourceID] = true
			provenance = append(provenance, m.SourceID)
		}
	}
	sort.Slice(provenance, func(i, j int) bool {
		return r.sourceLess(provenance[i], provenance[j])
	})

	return MergedItem{Item: representative, Provenance: provenance}
}

// better reports whether a should be preferred over b as a group's
// representative: configured source priority, then metadata completeness,
// then earliest publication time.
func (r *Resolver) better(a, b feed.CanonicalItem) bool {
	pa, pb := r.priorityOf(a.SourceID), r.priorityOf(b.SourceID)
	if pa != pb {
		return pa < pb
	}
	if a.HasEnclosure() != b.HasEnclosure() {
		return a.HasEnclosure()
	}
	if (a.Description != "") != (b.Description != "") {
		return a.Description != ""
	}
	switch {
	case a.PublishedAt != nil && b.PublishedAt != nil:
		if !a.PublishedAt.Equal(*b.PublishedAt) {
			return a.PublishedAt.Before(*b.PublishedAt)
		}
	case a.PublishedAt != nil:
		return true
	case b.PublishedAt != nil:
		return false
	}
	return a.SourceID+"|"+a.GUID < b.SourceID+"|"+b.GUID
}

func (r *Resolver) priorityOf(sourceID string) int {
	if p, ok := r.priority[sourceID]; ok && p > 0 {
		return p
	}
	return 100
}

func (r *Resolver) sourceLess(a, b string) bool {
	oa, okA := r.sourceOrder[a]
	ob, okB := r.sourceOrder[b]
	if okA != okB {
		return okA
	}
	if okA && oa != ob {
		return oa < ob
	}
	return a < b
}

func (r *Resolver) incompatible(items []feed.CanonicalItem, group []int) bool {
	var enclosureType string
	for _, idx := range group {
		item := items[idx]
		if !item.HasEnclosure() || item.Enclosure.Type == "" {
			continue
		}
		t := strings.ToLower(item.Enclosure.Type)
		if enclosureType == "" {
			enclosureType = t
		} else if enclosureType != t {
			return true
		}
	}
	return false
}

// fingerprintOf digests the sorted member identities so the same group of
// items produces the same fingerprint regardless of input order.
func fingerprintOf(members []feed.CanonicalItem, explicit bool) string {
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.SourceID + "|" + m.GUID
	}
	sort.Strings(keys)

	prefix := "item"
	if explicit {
		prefix = "link"
	} else if len(members) > 1 {
		prefix = "content"
	}

	hash := sha256.Sum256([]byte(prefix + ":" + strings.Join(keys, ",")))
	return hex.EncodeToString(hash[:])
}

// normalizeEnclosureURL strips query-string tokens and fragments: private
// feeds commonly sign the same media URL with per-subscriber parameters.
func normalizeEnclosureURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}
