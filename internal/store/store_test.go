package store

import (
	"errors"
	"sort"
	"testing"
	"time"

	"inspo/internal/models"
)

// setupTestStore creates a store over in-memory SQLite.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	cfg := Config{
		Backend:    BackendSQLite,
		SQLitePath: ":memory:",
	}

	store, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
	}

	return store, cleanup
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func equalStringSets(a, b []string) bool {
	a, b = sortedCopy(a), sortedCopy(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func tableCount(t *testing.T, s *Store, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestCreateAndFetchRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	item := &models.Item{
		Title:       "Modern Dashboard Layout",
		Screenshots: []string{"https://cdn.example.com/a.png", "data:image/png;base64,AAAA", "https://cdn.example.com/c.png"},
		URLs:        []string{"https://example.com/dashboard", "https://example.com/blog"},
		Notes:       "Clean dashboard with good use of white space",
		Tags:        []string{"dashboard", " ui ", "minimal", "dashboard", ""},
	}

	if err := store.CreateItem(item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}
	if item.ID == "" {
		t.Error("Expected ID to be assigned")
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be assigned")
	}

	items, err := store.FetchAll()
	if err != nil {
		t.Fatalf("Failed to fetch items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	got := items[0]
	if got.Title != item.Title {
		t.Errorf("Expected title %q, got %q", item.Title, got.Title)
	}
	if got.Notes != item.Notes {
		t.Errorf("Expected notes %q, got %q", item.Notes, got.Notes)
	}

	// Screenshot order must survive the round trip exactly
	if len(got.Screenshots) != 3 {
		t.Fatalf("Expected 3 screenshots, got %d", len(got.Screenshots))
	}
	for i, url := range item.Screenshots {
		if got.Screenshots[i] != url {
			t.Errorf("Screenshot %d: expected %q, got %q", i, url, got.Screenshots[i])
		}
	}

	// URLs are a set
	if !equalStringSets(got.URLs, item.URLs) {
		t.Errorf("Expected urls %v, got %v", item.URLs, got.URLs)
	}

	// Tags come back trimmed, deduplicated, without empties
	if !equalStringSets(got.Tags, []string{"dashboard", "ui", "minimal"}) {
		t.Errorf("Expected tags [dashboard ui minimal], got %v", got.Tags)
	}
}

func TestFetchAllNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"oldest", "middle", "newest"} {
		item := &models.Item{
			Title:     title,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.CreateItem(item); err != nil {
			t.Fatalf("Failed to create %s: %v", title, err)
		}
	}

	items, err := store.FetchAll()
	if err != nil {
		t.Fatalf("Failed to fetch items: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}

	expected := []string{"newest", "middle", "oldest"}
	for i, title := range expected {
		if items[i].Title != title {
			t.Errorf("Position %d: expected %q, got %q", i, title, items[i].Title)
		}
	}
}

func TestCreatePreservesImportedIdentity(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	created := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	item := &models.Item{
		ID:        "imported-id-1",
		Title:     "Imported",
		CreatedAt: created,
		UpdatedAt: created,
	}

	if err := store.CreateItem(item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}

	got, err := store.GetItem("imported-id-1")
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("Expected createdAt %v, got %v", created, got.CreatedAt)
	}
}

func TestReplaceScreenshotSubset(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	item := &models.Item{
		Title:       "Original",
		Screenshots: []string{"a.png", "b.png", "c.png"},
		URLs:        []string{"https://one.example.com", "https://two.example.com"},
		Tags:        []string{"ui"},
	}
	if err := store.CreateItem(item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}

	updated := &models.Item{
		ID:          item.ID,
		Title:       "Updated",
		Screenshots: []string{"c.png"},
		URLs:        []string{"https://one.example.com"},
		Tags:        []string{"ui", "minimal"},
	}
	if err := store.ReplaceItem(updated); err != nil {
		t.Fatalf("Failed to replace item: %v", err)
	}

	got, err := store.GetItem(item.ID)
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	if got.Title != "Updated" {
		t.Errorf("Expected title Updated, got %q", got.Title)
	}
	if len(got.Screenshots) != 1 || got.Screenshots[0] != "c.png" {
		t.Errorf("Expected screenshots [c.png], got %v", got.Screenshots)
	}
	if !equalStringSets(got.URLs, []string{"https://one.example.com"}) {
		t.Errorf("Expected one url, got %v", got.URLs)
	}
	if !equalStringSets(got.Tags, []string{"ui", "minimal"}) {
		t.Errorf("Expected tags [ui minimal], got %v", got.Tags)
	}

	// display_order is re-densified from zero on replace
	var order int
	if err := store.db.QueryRow(`SELECT display_order FROM screenshots WHERE inspo_id = ?`, item.ID).Scan(&order); err != nil {
		t.Fatalf("Failed to read display_order: %v", err)
	}
	if order != 0 {
		t.Errorf("Expected display_order 0, got %d", order)
	}
}

func TestReplaceAdvancesUpdatedAt(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	item := &models.Item{ID: "x", Title: "Before", CreatedAt: created, UpdatedAt: created}
	if err := store.CreateItem(item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}

	if err := store.ReplaceItem(&models.Item{ID: "x", Title: "After"}); err != nil {
		t.Fatalf("Failed to replace item: %v", err)
	}

	got, err := store.GetItem("x")
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	if !got.UpdatedAt.After(created) {
		t.Errorf("Expected updatedAt to advance past %v, got %v", created, got.UpdatedAt)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("Expected createdAt unchanged, got %v", got.CreatedAt)
	}
}

func TestReplaceMissingItem(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.ReplaceItem(&models.Item{ID: "nope", Title: "Ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCascadesToChildren(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	item := &models.Item{
		Title:       "Doomed",
		Screenshots: []string{"a.png", "b.png"},
		URLs:        []string{"https://example.com"},
		Tags:        []string{"temp"},
	}
	if err := store.CreateItem(item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}

	if err := store.DeleteItem(item.ID); err != nil {
		t.Fatalf("Failed to delete item: %v", err)
	}

	if n := tableCount(t, store, `SELECT COUNT(*) FROM screenshots WHERE inspo_id = ?`, item.ID); n != 0 {
		t.Errorf("Expected 0 screenshots after delete, got %d", n)
	}
	if n := tableCount(t, store, `SELECT COUNT(*) FROM urls WHERE inspo_id = ?`, item.ID); n != 0 {
		t.Errorf("Expected 0 urls after delete, got %d", n)
	}
	if n := tableCount(t, store, `SELECT COUNT(*) FROM inspo_tags WHERE inspo_id = ?`, item.ID); n != 0 {
		t.Errorf("Expected 0 tag relations after delete, got %d", n)
	}

	if _, err := store.GetItem(item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteMissingItem(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if err := store.DeleteItem("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTagGarbageCollection(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	a := &models.Item{Title: "A", Tags: []string{"ui", "minimal"}}
	b := &models.Item{Title: "B", Tags: []string{"minimal"}}
	for _, item := range []*models.Item{a, b} {
		if err := store.CreateItem(item); err != nil {
			t.Fatalf("Failed to create %s: %v", item.Title, err)
		}
	}

	if err := store.DeleteItem(a.ID); err != nil {
		t.Fatalf("Failed to delete A: %v", err)
	}

	// "ui" lost its last reference and is gone; "minimal" survives via B
	if n := tableCount(t, store, `SELECT COUNT(*) FROM tags WHERE name = 'ui'`); n != 0 {
		t.Errorf("Expected tag ui to be garbage-collected, found %d rows", n)
	}
	if n := tableCount(t, store, `SELECT COUNT(*) FROM tags WHERE name = 'minimal'`); n != 1 {
		t.Errorf("Expected tag minimal to survive, found %d rows", n)
	}
}

func TestTagGCIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	item := &models.Item{Title: "Solo", Tags: []string{"fleeting"}}
	if err := store.CreateItem(item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}

	candidates, err := store.itemTagIDs(item.ID)
	if err != nil {
		t.Fatalf("Failed to read tag ids: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate tag, got %d", len(candidates))
	}

	// DeleteItem already runs the collector once
	if err := store.DeleteItem(item.ID); err != nil {
		t.Fatalf("Failed to delete item: %v", err)
	}
	if n := tableCount(t, store, `SELECT COUNT(*) FROM tags`); n != 0 {
		t.Fatalf("Expected 0 tags after delete, got %d", n)
	}

	// Second pass over the same candidates is a no-op
	if err := store.CollectTags(candidates); err != nil {
		t.Errorf("Second collection should not error, got %v", err)
	}
	if n := tableCount(t, store, `SELECT COUNT(*) FROM tags`); n != 0 {
		t.Errorf("Expected 0 tags after second collection, got %d", n)
	}
}

// TestTagSetTracksLiveReferences runs a create/delete sequence and checks
// that the global tag set always ends up equal to the tags of surviving items.
func TestTagSetTracksLiveReferences(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	a := &models.Item{Title: "A", Tags: []string{"ui", "dark"}}
	b := &models.Item{Title: "B", Tags: []string{"ui", "typography"}}
	c := &models.Item{Title: "C", Tags: []string{"animation"}}
	for _, item := range []*models.Item{a, b, c} {
		if err := store.CreateItem(item); err != nil {
			t.Fatalf("Failed to create %s: %v", item.Title, err)
		}
	}

	if err := store.DeleteItem(c.ID); err != nil {
		t.Fatalf("Failed to delete C: %v", err)
	}
	if err := store.DeleteItem(a.ID); err != nil {
		t.Fatalf("Failed to delete A: %v", err)
	}

	tags, err := store.ListTags()
	if err != nil {
		t.Fatalf("Failed to list tags: %v", err)
	}
	if !equalStringSets(tags, []string{"ui", "typography"}) {
		t.Errorf("Expected surviving tags [typography ui], got %v", tags)
	}

	// The tags table itself holds nothing else
	if n := tableCount(t, store, `SELECT COUNT(*) FROM tags`); n != 2 {
		t.Errorf("Expected 2 tag rows, got %d", n)
	}
}

func TestGetOrCreateTagReusesRow(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	first, err := store.GetOrCreateTag("brutalism")
	if err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	second, err := store.GetOrCreateTag("brutalism")
	if err != nil {
		t.Fatalf("Failed to resolve tag: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("Expected the same tag id, got %s and %s", first.ID, second.ID)
	}
	if n := tableCount(t, store, `SELECT COUNT(*) FROM tags WHERE name = 'brutalism'`); n != 1 {
		t.Errorf("Expected 1 tag row, got %d", n)
	}

	// Tag names are case-sensitive unique
	other, err := store.GetOrCreateTag("Brutalism")
	if err != nil {
		t.Fatalf("Failed to create cased tag: %v", err)
	}
	if other.ID == first.ID {
		t.Error("Expected a distinct row for a differently cased name")
	}
}

func TestSearchItems(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	dashboard := &models.Item{
		Title: "Modern Dashboard",
		Notes: "white space everywhere",
		Tags:  []string{"ui", "minimal"},
		URLs:  []string{"https://example.com/dashboard"},
	}
	illustrations := &models.Item{
		Title: "Illustration Style",
		Notes: "bold and playful",
		Tags:  []string{"colorful"},
		URLs:  []string{"https://drawings.example.com"},
	}
	typography := &models.Item{
		Title: "Type Scale",
		Tags:  []string{"typography"},
	}
	for _, item := range []*models.Item{dashboard, illustrations, typography} {
		if err := store.CreateItem(item); err != nil {
			t.Fatalf("Failed to create %s: %v", item.Title, err)
		}
	}

	tests := []struct {
		name     string
		term     string
		expected []string
	}{
		{"title match", "dashboard", []string{"Modern Dashboard"}},
		{"title match is case-insensitive", "MODERN", []string{"Modern Dashboard"}},
		{"notes match", "playful", []string{"Illustration Style"}},
		{"tag name match", "typo", []string{"Type Scale"}},
		{"url match", "drawings", []string{"Illustration Style"}},
		{"no match", "xyzzy", []string{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			results, err := store.SearchItems(test.term)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			titles := make([]string, 0, len(results))
			for _, item := range results {
				titles = append(titles, item.Title)
			}
			if !equalStringSets(titles, test.expected) {
				t.Errorf("Search %q: expected %v, got %v", test.term, test.expected, titles)
			}
		})
	}

	// An item matching on several axes appears once
	results, err := store.SearchItems("ui")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	count := 0
	for _, item := range results {
		if item.ID == dashboard.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected dashboard item exactly once, got %d", count)
	}

	// Search results come back fully hydrated
	for _, item := range results {
		if item.ID == dashboard.ID && len(item.Tags) != 2 {
			t.Errorf("Expected hydrated tags on search result, got %v", item.Tags)
		}
	}
}

// TestCreateIsBestEffort simulates a mid-protocol store fault: with the urls
// table gone, the url step fails but the item row, screenshots, and tags all
// persist, and the error reports the failed step.
func TestCreateIsBestEffort(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if _, err := store.db.Exec(`DROP TABLE urls`); err != nil {
		t.Fatalf("Failed to drop urls table: %v", err)
	}

	item := &models.Item{
		Title:       "Partial",
		Screenshots: []string{"a.png"},
		URLs:        []string{"https://example.com"},
		Tags:        []string{"ui"},
	}

	err := store.CreateItem(item)
	if err == nil {
		t.Fatal("Expected an error from the urls step")
	}

	if n := tableCount(t, store, `SELECT COUNT(*) FROM items WHERE id = ?`, item.ID); n != 1 {
		t.Errorf("Expected item row to persist, got %d rows", n)
	}
	if n := tableCount(t, store, `SELECT COUNT(*) FROM screenshots WHERE inspo_id = ?`, item.ID); n != 1 {
		t.Errorf("Expected screenshot row to persist, got %d rows", n)
	}
	if n := tableCount(t, store, `SELECT COUNT(*) FROM inspo_tags WHERE inspo_id = ?`, item.ID); n != 1 {
		t.Errorf("Expected tag relation to persist, got %d rows", n)
	}
}
