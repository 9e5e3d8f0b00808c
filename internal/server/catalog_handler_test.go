package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MeKo-Tech/terrasine/internal/catalog"
)

type memCatalog struct {
	entries map[string]catalog.Entry
	err     error
}

func (m *memCatalog) Get(name string) (catalog.Entry, error) {
	if m.err != nil {
		return catalog.Entry{}, m.err
	}
	e, ok := m.entries[name]
	if !ok {
		return catalog.Entry{}, catalog.ErrNotFound
	}
	return e, nil
}

func (m *memCatalog) List() ([]catalog.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Entry
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func newTestHandler() http.Handler {
	c := &memCatalog{entries: map[string]catalog.Entry{
		"terraina.png": {
			Name:      "terraina.png",
			Kind:      "fractal",
			ColorMap:  "terracolor",
			CreatedAt: time.Unix(1700000000, 0).UTC(),
			FieldJSON: []byte(`{"kind":"sum","terms":[]}`),
			Image:     []byte("\x89PNG fake"),
			Seed:      42,
			Width:     200,
			Height:    200,
		},
	}}
	return NewCatalogHandler(c, CatalogConfig{CacheControl: "max-age=60"}, nil).Handler()
}

func TestParseRunPath(t *testing.T) {
	tests := []struct {
		path     string
		name     string
		resource string
		ok       bool
	}{
		{path: "/runs", ok: true},
		{path: "/runs/", ok: true},
		{path: "/runs/terraina.png", name: "terraina.png", ok: true},
		{path: "/runs/terraina.png/field", name: "terraina.png", resource: "field", ok: true},
		{path: "/runs/terraina.png/other", ok: false},
		{path: "/runs/a/b/c", ok: false},
		{path: "/tiles/terraina.png", ok: false},
		{path: "/", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			name, resource, ok := parseRunPath(tt.path)
			if ok != tt.ok {
				t.Fatalf("parseRunPath(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if name != tt.name || resource != tt.resource {
				t.Fatalf("parseRunPath(%q) = (%q, %q), want (%q, %q)", tt.path, name, resource, tt.name, tt.resource)
			}
		})
	}
}

func TestCatalogHandler_Image(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/terraina.png", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "max-age=60" {
		t.Fatalf("unexpected cache control %q", cc)
	}
	if rec.Body.String() != "\x89PNG fake" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestCatalogHandler_Field(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/terraina.png/field", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"kind":"sum","terms":[]}` {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestCatalogHandler_List(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var runs []runSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(runs) != 1 || runs[0].Name != "terraina.png" || runs[0].Seed != 42 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestCatalogHandler_Errors(t *testing.T) {
	t.Run("unknown run", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing.png", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs/terraina.png", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("catalogue failure", func(t *testing.T) {
		h := NewCatalogHandler(&memCatalog{err: errors.New("disk gone")}, CatalogConfig{}, nil).Handler()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}
