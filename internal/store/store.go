package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"inspo/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an operation references a nonexistent item.
var ErrNotFound = errors.New("item not found")

type Store struct {
	db      *sql.DB
	backend DataBackend
}

// New creates a new Store from a Config.
// Use ConfigFromEnv() to create config from environment variables.
func New(cfg Config) (*Store, error) {
	backend, err := NewDataBackend(cfg)
	if err != nil {
		return nil, err
	}

	db, err := backend.Connect()
	if err != nil {
		return nil, err
	}

	log.Printf("Database: %s", backend.Description())

	store := &Store{db: db, backend: backend}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

// Backend returns the data backend
func (s *Store) Backend() DataBackend {
	return s.backend
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	// Cascading delete from items to its child tables only fires with
	// foreign key enforcement on.
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS screenshots (
		inspo_id TEXT NOT NULL,
		url TEXT NOT NULL,
		display_order INTEGER NOT NULL,
		FOREIGN KEY (inspo_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS urls (
		inspo_id TEXT NOT NULL,
		url TEXT NOT NULL,
		FOREIGN KEY (inspo_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS inspo_tags (
		inspo_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		PRIMARY KEY (inspo_id, tag_id),
		FOREIGN KEY (inspo_id) REFERENCES items(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at);
	CREATE INDEX IF NOT EXISTS idx_screenshots_inspo ON screenshots(inspo_id);
	CREATE INDEX IF NOT EXISTS idx_urls_inspo ON urls(inspo_id);
	CREATE INDEX IF NOT EXISTS idx_inspo_tags_tag ON inspo_tags(tag_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Item operations

// CreateItem persists an item and its children. The write is best-effort and
// non-atomic: the item row goes in first, and a failure in a later step
// leaves everything already written in place. Every failed step is logged
// and returned to the caller, joined; no step failure stops the ones after it.
func (s *Store) CreateItem(item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}

	if _, err := s.db.Exec(
		`INSERT INTO items (id, title, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Notes, item.CreatedAt, item.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	var errs []error
	if err := s.insertScreenshots(item.ID, item.Screenshots); err != nil {
		log.Printf("create %s: screenshots: %v", item.ID, err)
		errs = append(errs, fmt.Errorf("screenshots: %w", err))
	}
	if err := s.insertURLs(item.ID, item.URLs); err != nil {
		log.Printf("create %s: urls: %v", item.ID, err)
		errs = append(errs, fmt.Errorf("urls: %w", err))
	}
	errs = append(errs, s.linkTags(item.ID, item.Tags)...)

	return errors.Join(errs...)
}

// ReplaceItem performs a full update: the item's mutable fields, then every
// child table is wiped and re-inserted from the new lists. Replace, not diff:
// unchanged child rows do not keep their identity.
func (s *Store) ReplaceItem(item *models.Item) error {
	item.UpdatedAt = time.Now().UTC()

	res, err := s.db.Exec(
		`UPDATE items SET title = ?, notes = ?, updated_at = ? WHERE id = ?`,
		item.Title, item.Notes, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	var errs []error
	step := func(name string, err error) {
		if err != nil {
			log.Printf("replace %s: %s: %v", item.ID, name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	_, err = s.db.Exec(`DELETE FROM screenshots WHERE inspo_id = ?`, item.ID)
	step("delete screenshots", err)
	step("insert screenshots", s.insertScreenshots(item.ID, item.Screenshots))

	_, err = s.db.Exec(`DELETE FROM urls WHERE inspo_id = ?`, item.ID)
	step("delete urls", err)
	step("insert urls", s.insertURLs(item.ID, item.URLs))

	_, err = s.db.Exec(`DELETE FROM inspo_tags WHERE inspo_id = ?`, item.ID)
	step("delete tag relations", err)
	errs = append(errs, s.linkTags(item.ID, item.Tags)...)

	return errors.Join(errs...)
}

// DeleteItem removes an item. The candidate tag id set is captured before
// the delete so the garbage collector can reap tags orphaned by it; the
// child rows themselves go away via ON DELETE CASCADE.
func (s *Store) DeleteItem(id string) error {
	tagIDs, err := s.itemTagIDs(id)
	if err != nil {
		return fmt.Errorf("capture tags: %w", err)
	}

	res, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return s.CollectTags(tagIDs)
}

// GetItem returns a single hydrated item.
func (s *Store) GetItem(id string) (*models.Item, error) {
	var item models.Item
	err := s.db.QueryRow(
		`SELECT id, title, notes, created_at, updated_at FROM items WHERE id = ?`,
		id,
	).Scan(&item.ID, &item.Title, &item.Notes, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.hydrateItem(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// FetchAll returns every item with its children hydrated, newest first.
// Screenshots come back in display order.
func (s *Store) FetchAll() ([]models.Item, error) {
	items, err := s.scanItems(
		`SELECT id, title, notes, created_at, updated_at FROM items ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if err := s.hydrateItem(&items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// SearchItems is the remote half of the query federation: a case-insensitive
// substring match against titles, notes, tag names, and urls, unioned and
// deduplicated by item id, then rehydrated into full items newest-first.
func (s *Store) SearchItems(term string) ([]models.Item, error) {
	pattern := "%" + term + "%"

	direct, err := s.stringColumn(
		`SELECT id FROM items WHERE title LIKE ? OR notes LIKE ?`,
		pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}

	viaTags, err := s.stringColumn(
		`SELECT DISTINCT it.inspo_id FROM inspo_tags it JOIN tags t ON t.id = it.tag_id WHERE t.name LIKE ?`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search tags: %w", err)
	}

	viaURLs, err := s.stringColumn(
		`SELECT DISTINCT inspo_id FROM urls WHERE url LIKE ?`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search urls: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, id := range direct {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range viaTags {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range viaURLs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return []models.Item{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	items, err := s.scanItems(
		fmt.Sprintf(
			`SELECT id, title, notes, created_at, updated_at FROM items WHERE id IN (%s) ORDER BY created_at DESC`,
			placeholders,
		),
		args...,
	)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if err := s.hydrateItem(&items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// scanItems runs an item query and drains it fully before returning, so the
// caller can hydrate rows without holding the connection.
func (s *Store) scanItems(query string, args ...interface{}) ([]models.Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Title, &item.Notes, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// hydrateItem attaches ordered screenshots, urls, and tag names to a scanned
// item row.
func (s *Store) hydrateItem(item *models.Item) error {
	screenshots, err := s.stringColumn(
		`SELECT url FROM screenshots WHERE inspo_id = ? ORDER BY display_order ASC`,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("screenshots: %w", err)
	}

	urls, err := s.stringColumn(`SELECT url FROM urls WHERE inspo_id = ?`, item.ID)
	if err != nil {
		return fmt.Errorf("urls: %w", err)
	}

	tags, err := s.stringColumn(
		`SELECT t.name FROM tags t JOIN inspo_tags it ON it.tag_id = t.id WHERE it.inspo_id = ? ORDER BY t.name`,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("tags: %w", err)
	}

	item.Screenshots = screenshots
	item.URLs = urls
	item.Tags = tags
	return nil
}

func (s *Store) stringColumn(query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (s *Store) insertScreenshots(itemID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO screenshots (inspo_id, url, display_order) VALUES `)
	args := make([]interface{}, 0, len(urls)*3)
	for i, url := range urls {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, itemID, url, i)
	}

	_, err := s.db.Exec(sb.String(), args...)
	return err
}

func (s *Store) insertURLs(itemID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO urls (inspo_id, url) VALUES `)
	args := make([]interface{}, 0, len(urls)*2)
	for i, url := range urls {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?)")
		args = append(args, itemID, url)
	}

	_, err := s.db.Exec(sb.String(), args...)
	return err
}

// linkTags resolves each tag name via find-or-create and joins it to the
// item. Names are trimmed, empties dropped, duplicates collapsed. A failure
// on one tag does not stop the rest.
func (s *Store) linkTags(itemID string, names []string) []error {
	var errs []error
	for _, name := range normalizeTags(names) {
		tag, err := s.GetOrCreateTag(name)
		if err != nil {
			log.Printf("link tag %q: %v", name, err)
			errs = append(errs, fmt.Errorf("tag %q: %w", name, err))
			continue
		}
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO inspo_tags (inspo_id, tag_id) VALUES (?, ?)`,
			itemID, tag.ID,
		); err != nil {
			log.Printf("link tag %q: %v", name, err)
			errs = append(errs, fmt.Errorf("tag %q: %w", name, err))
		}
	}
	return errs
}

func normalizeTags(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func (s *Store) itemTagIDs(id string) ([]string, error) {
	return s.stringColumn(`SELECT tag_id FROM inspo_tags WHERE inspo_id = ?`, id)
}

// Tag operations

func (s *Store) CreateTag(t *models.Tag) error {
	t.ID = uuid.New().String()
	_, err := s.db.Exec(`INSERT INTO tags (id, name) VALUES (?, ?)`, t.ID, t.Name)
	return err
}

// GetOrCreateTag resolves a tag name to exactly one tag row. Read-then-insert;
// the UNIQUE constraint on name is the backstop if two writers race.
func (s *Store) GetOrCreateTag(name string) (*models.Tag, error) {
	var t models.Tag
	err := s.db.QueryRow(`SELECT id, name FROM tags WHERE name = ?`, name).Scan(&t.ID, &t.Name)
	if err == sql.ErrNoRows {
		t.Name = name
		if err := s.CreateTag(&t); err != nil {
			return nil, err
		}
		return &t, nil
	}
	return &t, err
}

// ListTags returns the names of tags referenced by at least one item, sorted.
// The garbage collector keeps orphans out of the table, but the inner join
// makes the in-use contract explicit either way.
func (s *Store) ListTags() ([]string, error) {
	return s.stringColumn(
		`SELECT DISTINCT t.name FROM tags t JOIN inspo_tags it ON it.tag_id = t.id ORDER BY t.name`,
	)
}
