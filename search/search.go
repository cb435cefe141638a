// Package search executes filtered similarity searches and aggregates hits by
// a grouping key, e.g. the originating company. Aggregation is an in-memory
// fold over retrieved entries; the store only ranks and filters.
package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/anycompany/docsearch/embeddings"
	"github.com/anycompany/docsearch/store"
)

const (
	defaultOverfetch = 3
	defaultGroupCap  = 5

	// UngroupedKey is the reserved bucket for entries missing the grouping
	// field; it is always ordered last.
	UngroupedKey = ""
)

// Member is one hit inside a group.
type Member struct {
	Entry store.Entry
	Score float64
}

// Group is an ordered run of members sharing a grouping-key value, sorted by
// descending score.
type Group struct {
	Key     string
	Members []Member
}

// GroupedResult orders groups by their best member's score, descending, with
// the ungrouped bucket last.
type GroupedResult struct {
	Groups []Group
}

// Empty reports whether the search matched nothing.
func (r GroupedResult) Empty() bool { return len(r.Groups) == 0 }

type Retriever struct {
	store     store.Store
	embedder  embeddings.Embedder
	overfetch int
	groupCap  int
	logger    *log.Logger
}

func NewRetriever(st store.Store, embedder embeddings.Embedder, overfetch, groupCap int, logger *log.Logger) *Retriever {
	if overfetch <= 0 {
		overfetch = defaultOverfetch
	}
	if groupCap <= 0 {
		groupCap = defaultGroupCap
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Retriever{store: st, embedder: embedder, overfetch: overfetch, groupCap: groupCap, logger: logger}
}

// Search embeds the semantic query, runs the filtered similarity search with
// an over-fetch factor for grouping diversity, and folds the hits into at most
// k groups. An empty predicate is a pure semantic search; an empty result is
// an empty GroupedResult, not an error.
func (r *Retriever) Search(ctx context.Context, semanticQuery string, pred store.Predicate, groupField string, k int) (GroupedResult, error) {
	if strings.TrimSpace(semanticQuery) == "" {
		return GroupedResult{}, fmt.Errorf("semantic query is empty")
	}
	if k <= 0 {
		k = 5
	}

	vectors, err := r.embedder.Embed(ctx, []string{semanticQuery})
	if err != nil {
		return GroupedResult{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return GroupedResult{}, fmt.Errorf("embedder returned no vectors")
	}

	hits, err := r.store.Search(ctx, vectors[0], pred, r.overfetch*k)
	if err != nil {
		return GroupedResult{}, fmt.Errorf("similarity search: %w", err)
	}

	return r.group(hits, groupField, k), nil
}

func (r *Retriever) group(hits []store.Hit, groupField string, k int) GroupedResult {
	buckets := make(map[string]*Group)
	order := make([]string, 0)

	for _, hit := range hits {
		key := groupKey(hit.Entry.Metadata, groupField)
		bucket, ok := buckets[key]
		if !ok {
			bucket = &Group{Key: key}
			buckets[key] = bucket
			order = append(order, key)
		}
		if len(bucket.Members) >= r.groupCap {
			continue
		}
		bucket.Members = append(bucket.Members, Member{Entry: hit.Entry, Score: hit.Score})
	}

	groups := make([]Group, 0, len(order))
	var ungrouped *Group
	for _, key := range order {
		bucket := buckets[key]
		sort.SliceStable(bucket.Members, func(i, j int) bool {
			return bucket.Members[i].Score > bucket.Members[j].Score
		})
		if key == UngroupedKey {
			ungrouped = bucket
			continue
		}
		groups = append(groups, *bucket)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Members[0].Score > groups[j].Members[0].Score
	})

	if ungrouped != nil {
		groups = append(groups, *ungrouped)
	}
	if len(groups) > k {
		groups = groups[:k]
	}

	return GroupedResult{Groups: groups}
}

// groupKey renders the grouping-field value; missing or empty values land in
// the ungrouped bucket.
func groupKey(meta map[string]any, groupField string) string {
	if meta == nil {
		return UngroupedKey
	}
	value, ok := meta[groupField]
	if !ok || value == nil {
		return UngroupedKey
	}
	switch x := value.(type) {
	case string:
		return strings.TrimSpace(x)
	case bool:
		return fmt.Sprintf("%t", x)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", x), "0"), ".")
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
