// Package catalog is the bundled, curated set of AppConfig entries keyed
// by short name (GLOSSARY "Catalog"). It is the concrete backing store
// the orchestrator's catalog lookup reads from during target resolution
// (spec.md §4.8 install step 2, "catalog lookup if the target matches a
// catalog key (case-insensitive)").
//
// Grounded on the teacher's pkg/config/config.go Load/Save/Validate
// shape, narrowed to a read-only, embedded-at-build-time source rather
// than a user-editable file on disk — the catalog ships with the binary
// the way flanksource-deps' Registry ships inline defaults, but is
// authored as YAML (gopkg.in/yaml.v3, per the teacher's own config
// format) instead of Go literals so new apps can be added without a
// rebuild of the surrounding code, only of the embedded asset.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

//go:embed catalog.yaml
var embeddedYAML []byte

// Catalog is a case-insensitive lookup of AppConfig entries.
type Catalog struct {
	byKey map[string]types.AppConfig
}

// Load parses the embedded catalog. It never fails on a well-formed
// build, but returns an error rather than panicking so callers retain
// control over startup failure handling.
func Load() (*Catalog, error) {
	return parse(embeddedYAML)
}

func parse(data []byte) (*Catalog, error) {
	var raw map[string]types.AppConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{byKey: make(map[string]types.AppConfig, len(raw))}
	for key, cfg := range raw {
		cfg.Source = types.SourceCatalog
		if cfg.Name == "" {
			cfg.Name = key
		}
		c.byKey[strings.ToLower(key)] = cfg
	}
	return c, nil
}

// Lookup returns the AppConfig for a catalog key, case-insensitive.
func (c *Catalog) Lookup(key string) (types.AppConfig, bool) {
	cfg, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	return cfg, ok
}

// Keys returns the sorted list of catalog keys, used by `list --available`
// style surfaces and by the "did you mean" suggestion helper.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.byKey))
	for k := range c.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports how many entries the catalog holds.
func (c *Catalog) Len() int { return len(c.byKey) }
