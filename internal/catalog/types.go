// Package catalog stores rendered terrain runs in a SQLite database.
package catalog

import (
	"fmt"
	"strconv"
	"time"
)

// Entry describes one rendered run.
type Entry struct {
	CreatedAt  time.Time
	Name       string // Output name, unique within the catalogue
	Kind       string // "plain" or "fractal"
	ColorMap   string
	Path       string // Where the image was written
	FieldJSON  []byte // Serialized field, see field.Marshal
	Image      []byte // Encoded image bytes
	Seed       int64
	Octaves    int
	FallOff    float64
	Min        float64 // Sample minimum before normalization
	Max        float64 // Sample maximum before normalization
	Width      int
	Height     int
	Degenerate bool
}

// Metadata contains catalogue-wide key/value fields.
type Metadata struct {
	Name        string
	Description string
	Version     string
	Generator   string
	Runs        int // Expected run count for the batch that created the catalogue
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	if m.Generator != "" {
		result["generator"] = m.Generator
	}
	if m.Runs > 0 {
		result["runs"] = fmt.Sprintf("%d", m.Runs)
	}

	return result
}

func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Description: values["description"],
		Version:     values["version"],
		Generator:   values["generator"],
	}
	if v, ok := values["runs"]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			meta.Runs = i
		}
	}
	return meta
}
