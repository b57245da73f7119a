package clinical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads case templates from JSON. Both a bare array and an object
// with a "cases" array are accepted.
func Decode(r io.Reader) ([]CaseTemplate, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	if raw[0] == '[' {
		var list []CaseTemplate
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode case list: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Cases []CaseTemplate `json:"cases"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode case file: %w", err)
	}
	return wrapped.Cases, nil
}

// LoadFile reads case templates from a JSON file.
func LoadFile(path string) ([]CaseTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cases %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// LoadCatalog builds a catalog from the file at path. Any read error or an
// empty result yields the built-in cases; the error is still returned so the
// caller can log it. An empty path goes straight to the built-in cases.
func LoadCatalog(path string) (cat *Catalog, usedDefaults bool, err error) {
	if path == "" {
		return NewCatalog(DefaultCases()), true, nil
	}
	templates, err := LoadFile(path)
	if err != nil {
		return NewCatalog(DefaultCases()), true, err
	}
	cat, usedDefaults = CatalogOrDefault(templates)
	return cat, usedDefaults, nil
}
