// Package server exposes a run catalogue over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/MeKo-Tech/terrasine/internal/catalog"
)

// Catalog is the read side of a run catalogue. *catalog.Reader satisfies it.
type Catalog interface {
	Get(name string) (catalog.Entry, error)
	List() ([]catalog.Entry, error)
}

// CatalogHandler serves stored runs:
//
//	GET /runs                list of runs as JSON
//	GET /runs/{name}         stored image bytes
//	GET /runs/{name}/field   field definition as JSON
type CatalogHandler struct {
	catalog      Catalog
	logger       *slog.Logger
	cacheControl string
}

// CatalogConfig configures the catalogue handler.
type CatalogConfig struct {
	CacheControl string
}

// NewCatalogHandler creates a handler backed by c.
func NewCatalogHandler(c Catalog, cfg CatalogConfig, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:      c,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}
}

// Handler returns the HTTP handler function.
func (h *CatalogHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name, resource, ok := parseRunPath(r.URL.Path)
		switch {
		case !ok:
			http.NotFound(w, r)
		case name == "":
			h.serveList(w)
		case resource == "field":
			h.serveField(w, r, name)
		default:
			h.serveImage(w, r, name)
		}
	}
}

type runSummary struct {
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	ColorMap   string    `json:"color_map"`
	CreatedAt  time.Time `json:"created_at"`
	Seed       int64     `json:"seed"`
	Octaves    int       `json:"octaves"`
	FallOff    float64   `json:"fall_off"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Degenerate bool      `json:"degenerate"`
}

func (h *CatalogHandler) serveList(w http.ResponseWriter) {
	entries, err := h.catalog.List()
	if err != nil {
		h.log().Error("Failed to list runs", "error", err)
		http.Error(w, "catalogue unavailable", http.StatusInternalServerError)
		return
	}

	runs := make([]runSummary, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, runSummary{
			Name:       e.Name,
			Kind:       e.Kind,
			ColorMap:   e.ColorMap,
			CreatedAt:  e.CreatedAt,
			Seed:       e.Seed,
			Octaves:    e.Octaves,
			FallOff:    e.FallOff,
			Min:        e.Min,
			Max:        e.Max,
			Width:      e.Width,
			Height:     e.Height,
			Degenerate: e.Degenerate,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *CatalogHandler) serveImage(w http.ResponseWriter, r *http.Request, name string) {
	entry, ok := h.lookup(w, r, name)
	if !ok {
		return
	}
	if len(entry.Image) == 0 {
		http.Error(w, "Run has no stored image", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(entry.Image); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *CatalogHandler) serveField(w http.ResponseWriter, r *http.Request, name string) {
	entry, ok := h.lookup(w, r, name)
	if !ok {
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(entry.FieldJSON); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *CatalogHandler) lookup(w http.ResponseWriter, r *http.Request, name string) (catalog.Entry, bool) {
	entry, err := h.catalog.Get(name)
	if errors.Is(err, catalog.ErrNotFound) {
		http.NotFound(w, r)
		return catalog.Entry{}, false
	}
	if err != nil {
		h.log().Error("Failed to read run", "name", name, "error", err)
		http.Error(w, fmt.Sprintf("failed to read run %s", name), http.StatusInternalServerError)
		return catalog.Entry{}, false
	}
	return entry, true
}

func (h *CatalogHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseRunPath splits /runs, /runs/{name} and /runs/{name}/field.
// Returns the run name (empty for the listing), the sub-resource and a success flag.
func parseRunPath(requestPath string) (string, string, bool) {
	if requestPath == "/runs" || requestPath == "/runs/" {
		return "", "", true
	}
	if !strings.HasPrefix(requestPath, "/runs/") {
		return "", "", false
	}

	rest := strings.TrimPrefix(path.Clean(requestPath), "/runs/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "" && parts[0] != "..":
		return parts[0], "", true
	case len(parts) == 2 && parts[0] != "" && parts[1] == "field":
		return parts[0], "field", true
	default:
		return "", "", false
	}
}
