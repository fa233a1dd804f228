package models

import "time"

// Item is a single inspiration record, the denormalized shape the client
// works with. The store breaks it into items/screenshots/urls/tags rows and
// reassembles it on read. The JSON field names are also the import/export
// file format.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Screenshots []string  `json:"screenshots"` // ordered, display_order = index
	URLs        []string  `json:"urls"`
	Notes       string    `json:"notes,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Tag is a global, reusable label. A tag row exists only while at least one
// item references it; orphans are garbage-collected on item delete.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Filter is the active view predicate: exact tag membership and/or a
// case-insensitive substring search. Held once per session, not persisted.
type Filter struct {
	Tag    string `json:"tag,omitempty"`
	Search string `json:"search,omitempty"`
}
