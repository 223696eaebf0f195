// Package category maps source category labels onto the internal category
// tree via three escalating strategies: source-URL match, normalized-name
// match, then a cached AI semantic match.
package category

import (
	"context"
	"errors"
	"strings"

	"harvester/packages/domain"
	"harvester/packages/metrics"
)

// ErrNoMatch is the strict policy boundary: content is never attached to an
// unverifiable taxonomy node.
var ErrNoMatch = errors.New("category mismatch: no known category resolves for this item")

type Resolver struct {
	byID    map[int64]domain.Category
	byURL   map[string]int64
	byName  map[string]int64
	names   []string
	nameIDs map[string]int64

	matcher SemanticMatcher
	cache   *MatchCache
}

// NewResolver indexes the known category set. matcher may be nil, in which
// case unresolvable labels fail without a semantic pass.
func NewResolver(categories []domain.Category, matcher SemanticMatcher, cache *MatchCache) *Resolver {
	r := &Resolver{
		byID:    make(map[int64]domain.Category, len(categories)),
		byURL:   make(map[string]int64),
		byName:  make(map[string]int64),
		nameIDs: make(map[string]int64),
		matcher: matcher,
		cache:   cache,
	}
	if r.cache == nil {
		r.cache = NewMatchCache(nil, "", 0)
	}

	for _, c := range categories {
		r.byID[c.ID] = c
		if c.SourceURL != "" {
			r.byURL[normalize(c.SourceURL)] = c.ID
		}
		r.byName[normalize(c.Name)] = c.ID
		r.names = append(r.names, c.Name)
		r.nameIDs[c.Name] = c.ID
	}
	return r
}

// Resolve assigns the draft's labels to known category ids and corrects the
// pair against the parent/child hierarchy. When neither label resolves the
// item must not be enriched further; callers fail it with ErrNoMatch.
func (r *Resolver) Resolve(ctx context.Context, draft domain.ReviewDraft) (domain.CategoryMatch, error) {
	catID, catOK := r.resolveLabel(ctx, draft.CategoryName, draft.CategoryURL)
	subID, subOK := r.resolveLabel(ctx, draft.SubcategoryName, draft.SubcategoryURL)

	if !catOK && !subOK {
		return domain.CategoryMatch{}, ErrNoMatch
	}

	return r.correctHierarchy(catID, catOK, subID, subOK), nil
}

func (r *Resolver) resolveLabel(ctx context.Context, name, sourceURL string) (int64, bool) {
	if name == "" && sourceURL == "" {
		return 0, false
	}

	if sourceURL != "" {
		if id, ok := r.byURL[normalize(sourceURL)]; ok {
			return id, true
		}
	}

	if name != "" {
		if id, ok := r.byName[normalize(name)]; ok {
			return id, true
		}
	}

	return r.semanticMatch(ctx, name)
}

// semanticMatch queries the AI matcher at most once per unique normalized
// label per run.
func (r *Resolver) semanticMatch(ctx context.Context, name string) (int64, bool) {
	if r.matcher == nil || name == "" || len(r.names) == 0 {
		return 0, false
	}

	key := normalize(name)
	if id, matched, cached := r.cache.Get(ctx, key); cached {
		metrics.SemanticMatches.WithLabelValues("cached").Inc()
		return id, matched
	}

	matchedName, matched, err := r.matcher.Match(ctx, name, r.names)
	if err != nil {
		// Transient matcher failure: do not cache, the label may resolve on
		// a later item.
		metrics.SemanticMatches.WithLabelValues("no_match").Inc()
		return 0, false
	}

	if !matched {
		metrics.SemanticMatches.WithLabelValues("no_match").Inc()
		r.cache.Put(ctx, key, 0, false)
		return 0, false
	}

	id := r.nameIDs[matchedName]
	metrics.SemanticMatches.WithLabelValues("matched").Inc()
	r.cache.Put(ctx, key, id, true)
	return id, true
}

// correctHierarchy fixes swapped levels: a resolved "category" that is
// actually a child node is demoted to subcategory with its parent promoted,
// and a resolved "subcategory" that is actually top-level becomes the
// category.
func (r *Resolver) correctHierarchy(catID int64, catOK bool, subID int64, subOK bool) domain.CategoryMatch {
	switch {
	case catOK && subOK:
		cat := r.byID[catID]

		if cat.ParentID != nil && r.byID[subID].ParentID == nil {
			// Swapped: the "category" is the child of the "subcategory".
			catID, subID = subID, catID
			cat = r.byID[catID]
		}
		if cat.ParentID != nil {
			// Both are children; trust the category slot's parent.
			parent := *cat.ParentID
			return domain.CategoryMatch{CategoryID: parent, SubcategoryID: &catID}
		}
		return domain.CategoryMatch{CategoryID: catID, SubcategoryID: &subID}

	case catOK:
		cat := r.byID[catID]
		if cat.ParentID != nil {
			return domain.CategoryMatch{CategoryID: *cat.ParentID, SubcategoryID: &catID}
		}
		return domain.CategoryMatch{CategoryID: catID}

	default:
		sub := r.byID[subID]
		if sub.ParentID != nil {
			return domain.CategoryMatch{CategoryID: *sub.ParentID, SubcategoryID: &subID}
		}
		return domain.CategoryMatch{CategoryID: subID}
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
