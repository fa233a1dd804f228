package session

import (
	"math/rand"
	"slices"

	"inspo/internal/models"
)

// Repository is the persistence surface the session depends on.
// *store.Store satisfies it.
type Repository interface {
	CreateItem(item *models.Item) error
	ReplaceItem(item *models.Item) error
	DeleteItem(id string) error
	FetchAll() ([]models.Item, error)
	SearchItems(term string) ([]models.Item, error)
	ListTags() ([]string, error)
}

// Federator merges the remote substring search with local tag filtering into
// a single derived view.
type Federator struct {
	repo Repository
}

func NewFederator(repo Repository) *Federator {
	return &Federator{repo: repo}
}

// Resolve derives the filtered view from the canonical items and the active
// filter. An empty search term keeps everything local: items narrowed by
// exact tag membership, order untouched. A non-empty term delegates to the
// repository's substring search and applies the tag filter as a post-filter
// intersection on the rehydrated results. No matches means an empty slice,
// not an error. Resolve never reorders beyond the search's own construction;
// randomized presentation order is the session's job.
func (f *Federator) Resolve(items []models.Item, filter models.Filter) ([]models.Item, error) {
	if filter.Search == "" {
		return filterByTag(items, filter.Tag), nil
	}

	results, err := f.repo.SearchItems(filter.Search)
	if err != nil {
		return nil, err
	}
	return filterByTag(results, filter.Tag), nil
}

// filterByTag narrows items to those whose tag list contains tag exactly.
// An empty tag means no narrowing.
func filterByTag(items []models.Item, tag string) []models.Item {
	if tag == "" {
		out := make([]models.Item, len(items))
		copy(out, items)
		return out
	}

	out := []models.Item{}
	for _, item := range items {
		if slices.Contains(item.Tags, tag) {
			out = append(out, item)
		}
	}
	return out
}

// shuffleItems returns a Fisher-Yates-shuffled copy; the source order is
// left alone.
func shuffleItems(items []models.Item) []models.Item {
	shuffled := make([]models.Item, len(items))
	copy(shuffled, items)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
