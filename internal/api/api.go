package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"inspo/internal/models"
	"inspo/internal/session"
	"inspo/internal/storage"
	"inspo/internal/store"

	"github.com/go-chi/chi/v5"
)

// API is the HTTP surface consumed by the UI. Everything goes through the
// session; handlers never reach into the repository directly.
type API struct {
	session *session.Session
	storage *storage.Storage // nil when screenshot uploads are not configured
}

func New(sess *session.Session, stor *storage.Storage) *API {
	return &API{session: sess, storage: stor}
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	// Items
	r.Route("/items", func(r chi.Router) {
		r.Get("/", a.listItems)
		r.Post("/", a.createItem)
		r.Get("/{id}", a.getItem)
		r.Put("/{id}", a.updateItem)
		r.Delete("/{id}", a.deleteItem)
	})

	// Tags
	r.Get("/tags", a.listTags)

	// Filters
	r.Route("/filters", func(r chi.Router) {
		r.Get("/", a.getFilters)
		r.Put("/tag", a.setTagFilter)
		r.Put("/search", a.setSearchFilter)
		r.Delete("/", a.clearFilters)
	})

	// Import/export
	r.Post("/import", a.importItems)
	r.Get("/export", a.exportItems)

	// Screenshot upload
	r.Post("/upload", a.uploadScreenshot)

	return r
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Item handlers

func (a *API) listItems(w http.ResponseWriter, r *http.Request) {
	// ?all=true returns the canonical list instead of the filtered view
	if r.URL.Query().Get("all") == "true" {
		respondJSON(w, http.StatusOK, a.session.Items())
		return
	}
	respondJSON(w, http.StatusOK, a.session.FilteredItems())
}

func (a *API) createItem(w http.ResponseWriter, r *http.Request) {
	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if strings.TrimSpace(item.Title) == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	if err := a.session.AddItem(&item); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

func (a *API) getItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	for _, item := range a.session.Items() {
		if item.ID == id {
			respondJSON(w, http.StatusOK, item)
			return
		}
	}
	respondError(w, http.StatusNotFound, "Item not found")
}

func (a *API) updateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if strings.TrimSpace(item.Title) == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	item.ID = id
	if err := a.session.UpdateItem(&item); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, item)
}

func (a *API) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := a.session.RemoveItem(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Tag handlers

func (a *API) listTags(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.session.Tags())
}

// Filter handlers

func (a *API) getFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.session.ActiveFilter())
}

func (a *API) setTagFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := a.session.SetTagFilter(req.Tag); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, a.session.FilteredItems())
}

func (a *API) setSearchFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Search string `json:"search"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := a.session.SetSearchFilter(req.Search); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, a.session.FilteredItems())
}

func (a *API) clearFilters(w http.ResponseWriter, r *http.Request) {
	a.session.ClearFilters()
	respondJSON(w, http.StatusOK, a.session.FilteredItems())
}

// Import/export handlers

func (a *API) importItems(w http.ResponseWriter, r *http.Request) {
	var items []models.Item
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON: expected an array of items")
		return
	}

	if err := a.session.ImportItems(items); err != nil {
		// Items persisted before the failure stay committed; the error says
		// where the batch stopped.
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"imported": len(items)})
}

func (a *API) exportItems(w http.ResponseWriter, r *http.Request) {
	items := a.session.ExportSnapshot()

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := fmt.Sprintf("inspo-library-export-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Screenshot upload handler

func (a *API) uploadScreenshot(w http.ResponseWriter, r *http.Request) {
	if a.storage == nil {
		respondError(w, http.StatusServiceUnavailable, "Screenshot storage not configured")
		return
	}

	// Parse multipart form (32MB max)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(w, http.StatusBadRequest, "Only images are allowed")
		return
	}

	url, err := a.storage.Upload(r.Context(), file, contentType, filepath.Ext(header.Filename))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to upload: "+err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"url": url})
}
