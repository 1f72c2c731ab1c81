package report

import (
	"context"
	"sort"

	"pulse-mcp/internal/jira"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// AncestorSource fetches work items by key. Implemented by jira.Fetcher.
type AncestorSource interface {
	WorkItemsByKey(ctx context.Context, keys []string) ([]jira.WorkItem, error)
}

// Node is one entry of the tree arena. Stub nodes were fetched only to
// resolve ancestry and never carry worklogs.
type Node struct {
	Item jira.WorkItem
	Stub bool
}

// Tree is an id-keyed arena of work items. Parent links are plain keys,
// never pointers, so cycles in source data cannot cause unbounded recursion.
type Tree struct {
	nodes map[string]*Node
	order []string
}

// NewTree builds a tree from items without resolving missing ancestors.
// When a key appears twice, the first occurrence wins.
func NewTree(items []jira.WorkItem) *Tree {
	t := &Tree{nodes: make(map[string]*Node)}
	for _, it := range items {
		t.add(it, false)
	}
	return t
}

func (t *Tree) add(item jira.WorkItem, stub bool) bool {
	if item.Key == "" {
		return false
	}
	if _, exists := t.nodes[item.Key]; exists {
		return false
	}
	t.nodes[item.Key] = &Node{Item: item, Stub: stub}
	t.order = append(t.order, item.Key)
	return true
}

// Get returns the node for key.
func (t *Tree) Get(key string) (*Node, bool) {
	n, ok := t.nodes[key]
	return n, ok
}

// Keys returns node keys in insertion order.
func (t *Tree) Keys() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of nodes including stubs.
func (t *Tree) Len() int { return len(t.order) }

// missingParents lists parent keys of the given nodes that are not in the
// arena and not already requested, sorted for deterministic batching.
func (t *Tree) missingParents(keys []string, requested map[string]bool) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, k := range keys {
		n := t.nodes[k]
		if n == nil {
			continue
		}
		p := n.Item.ParentKey
		if p == "" || p == k || requested[p] || seen[p] {
			continue
		}
		if _, ok := t.nodes[p]; ok {
			continue
		}
		seen[p] = true
		missing = append(missing, p)
	}
	sort.Strings(missing)
	return missing
}

// TreeBuilder resolves a flat item list into a parent-linked arena.
type TreeBuilder struct {
	Source      AncestorSource
	BatchSize   int
	Concurrency int
	MaxDepth    int
}

func (b TreeBuilder) withDefaults() TreeBuilder {
	if b.BatchSize <= 0 {
		b.BatchSize = 50
	}
	if b.Concurrency <= 0 {
		b.Concurrency = 4
	}
	if b.MaxDepth <= 0 {
		b.MaxDepth = 6
	}
	return b
}

// Resolve builds the arena and fetches missing ancestors level by level.
// A failed batch is logged and contributes nothing: the affected items are
// later promoted to top level instead of failing the whole report.
func (b TreeBuilder) Resolve(ctx context.Context, items []jira.WorkItem) *Tree {
	b = b.withDefaults()
	tree := NewTree(items)
	if b.Source == nil {
		return tree
	}

	requested := make(map[string]bool)
	frontier := tree.Keys()
	for depth := 0; depth < b.MaxDepth; depth++ {
		missing := tree.missingParents(frontier, requested)
		if len(missing) == 0 {
			break
		}
		for _, k := range missing {
			requested[k] = true
		}

		frontier = frontier[:0:0]
		for _, anc := range b.fetch(ctx, missing) {
			if tree.add(anc, true) {
				frontier = append(frontier, anc.Key)
			}
		}
		log.Debug().Int("depth", depth+1).Int("requested", len(missing)).Int("resolved", len(frontier)).Msg("Resolved ancestor level")
	}
	return tree
}

func (b TreeBuilder) fetch(ctx context.Context, keys []string) []jira.WorkItem {
	batches := lo.Chunk(keys, b.BatchSize)
	results := make([][]jira.WorkItem, len(batches))

	var g errgroup.Group
	g.SetLimit(b.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			items, err := b.Source.WorkItemsByKey(ctx, batch)
			if err != nil {
				log.Warn().Err(err).Strs("keys", batch).Msg("Ancestor fetch failed, continuing without them")
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	return lo.Flatten(results)
}
