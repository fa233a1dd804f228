package session

import (
	"fmt"
	"sync"

	"inspo/internal/models"
)

// Session is the per-process view state: the canonical item list, the in-use
// tag names, the derived filtered view, and the active filter. It is
// constructed once at startup and handed to collaborators; UI-facing code
// reaches the repository only through it.
//
// The mutex guards field assignment, not operation ordering. Overlapping
// calls are allowed and whichever completes last wins the view; the loading
// flag is advisory for UI purposes, not a lock.
type Session struct {
	mu        sync.Mutex
	repo      Repository
	federator *Federator

	items         []models.Item
	tags          []string
	filteredItems []models.Item
	activeFilter  models.Filter
	loading       bool
}

func New(repo Repository) *Session {
	return &Session{
		repo:          repo,
		federator:     NewFederator(repo),
		items:         []models.Item{},
		tags:          []string{},
		filteredItems: []models.Item{},
	}
}

// Load resynchronizes the session from the repository: the full item list,
// the in-use tag names, and a freshly shuffled filtered view.
func (s *Session) Load() error {
	s.setLoading(true)

	items, err := s.repo.FetchAll()
	if err != nil {
		s.setLoading(false)
		return err
	}

	tags, err := s.repo.ListTags()
	if err != nil {
		s.setLoading(false)
		return err
	}

	s.mu.Lock()
	s.items = items
	s.tags = tags
	s.filteredItems = shuffleItems(items)
	s.loading = false
	s.mu.Unlock()
	return nil
}

// SetTagFilter updates the tag half of the filter and re-derives the view.
// Purely local while no search term is active; with one active, the search
// re-runs through the federator.
func (s *Session) SetTagFilter(tag string) error {
	s.mu.Lock()
	filter := models.Filter{Tag: tag, Search: s.activeFilter.Search}
	items := s.items
	s.mu.Unlock()

	filtered, err := s.federator.Resolve(items, filter)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.activeFilter = filter
	s.filteredItems = filtered
	s.mu.Unlock()
	return nil
}

// SetSearchFilter updates the search half of the filter. A non-empty term
// costs a remote round-trip; clearing it restores the tag-only view locally.
// Keystroke debouncing is the caller's job, and overlapping calls are not
// ordered: last to complete wins.
func (s *Session) SetSearchFilter(term string) error {
	s.setLoading(true)

	s.mu.Lock()
	filter := models.Filter{Tag: s.activeFilter.Tag, Search: term}
	items := s.items
	s.mu.Unlock()

	filtered, err := s.federator.Resolve(items, filter)
	if err != nil {
		s.setLoading(false)
		return err
	}

	s.mu.Lock()
	s.activeFilter = filter
	s.filteredItems = filtered
	s.loading = false
	s.mu.Unlock()
	return nil
}

// ClearFilters resets the active filter and reshuffles the full item list.
// No re-fetch.
func (s *Session) ClearFilters() {
	s.mu.Lock()
	s.activeFilter = models.Filter{}
	s.filteredItems = shuffleItems(s.items)
	s.mu.Unlock()
}

// AddItem persists a new item, then fully resynchronizes the session. On a
// repository error the resident view stays at its pre-mutation state.
func (s *Session) AddItem(item *models.Item) error {
	s.setLoading(true)
	if err := s.repo.CreateItem(item); err != nil {
		s.setLoading(false)
		return err
	}
	return s.Load()
}

// UpdateItem replaces an existing item wholesale, then resynchronizes.
func (s *Session) UpdateItem(item *models.Item) error {
	s.setLoading(true)
	if err := s.repo.ReplaceItem(item); err != nil {
		s.setLoading(false)
		return err
	}
	return s.Load()
}

// RemoveItem deletes an item (orphaned tags are collected by the repository),
// then resynchronizes.
func (s *Session) RemoveItem(id string) error {
	s.setLoading(true)
	if err := s.repo.DeleteItem(id); err != nil {
		s.setLoading(false)
		return err
	}
	return s.Load()
}

// ImportItems persists items sequentially, in input order. The batch stops at
// the first failing create: items already persisted stay committed, the rest
// of the batch is never attempted, and the error propagates. Ids and
// timestamps in the payload are trusted as-is.
func (s *Session) ImportItems(items []models.Item) error {
	s.setLoading(true)
	for i := range items {
		if err := s.repo.CreateItem(&items[i]); err != nil {
			s.setLoading(false)
			return fmt.Errorf("import item %d: %w", i+1, err)
		}
	}
	return s.Load()
}

// ExportSnapshot returns a copy of the resident item list: what is loaded,
// not what is filtered, and never a fresh fetch.
func (s *Session) ExportSnapshot() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Accessors return copies so callers can't mutate session state.

func (s *Session) Items() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Session) FilteredItems() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Item, len(s.filteredItems))
	copy(out, s.filteredItems)
	return out
}

func (s *Session) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tags))
	copy(out, s.tags)
	return out
}

func (s *Session) ActiveFilter() models.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFilter
}

func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}
