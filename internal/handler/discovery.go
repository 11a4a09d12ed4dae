package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// ManifestEntry is one record in an optional handlers.yaml manifest living
// alongside a directory of handler sources. It seeds a handler's initial
// enabled state; the handler's Go type is still registered by an explicit
// constructor call elsewhere, per this registry's interface-discovery
// design (see the package doc comment) — the manifest never substitutes
// for that call.
type ManifestEntry struct {
	Name    string `yaml:"name"`
	Kind    Kind   `yaml:"kind"`
	Enabled *bool  `yaml:"enabled"`
}

// Manifest is the decoded form of handlers.yaml.
type Manifest struct {
	Handlers []ManifestEntry `yaml:"handlers"`
}

// DiscoveryResult reports what Discover found.
type DiscoveryResult struct {
	Fingerprint string
	Manifest    *Manifest
	Changed     bool
}

// Discover computes an xxhash fingerprint of dir's listing (name + size per
// entry) and, if the fingerprint differs from previous, decodes an optional
// handlers.yaml manifest found there. Repeated calls with an unchanged
// directory are cheap no-ops (Changed is false and Manifest is nil).
func Discover(dir string, previousFingerprint string) (DiscoveryResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return DiscoveryResult{}, fmt.Errorf("handler: read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	sizes := make(map[string]int64, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		names = append(names, e.Name())
		sizes[e.Name()] = info.Size()
	}
	sort.Strings(names)

	h := xxhash.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s:%d;", name, sizes[name])
	}
	fingerprint := fmt.Sprintf("%x", h.Sum64())

	result := DiscoveryResult{Fingerprint: fingerprint}
	if fingerprint == previousFingerprint {
		return result, nil
	}
	result.Changed = true

	manifestPath := filepath.Join(dir, "handlers.yaml")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("handler: read manifest %s: %w", manifestPath, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return result, fmt.Errorf("handler: parse manifest %s: %w", manifestPath, err)
	}
	result.Manifest = &m
	return result, nil
}

// DisabledNames converts a Manifest into the map SeedManifest expects.
func (m *Manifest) DisabledNames() map[string]bool {
	out := make(map[string]bool)
	if m == nil {
		return out
	}
	for _, entry := range m.Handlers {
		if entry.Enabled != nil && !*entry.Enabled {
			out[manifestKey(entry.Kind, entry.Name)] = true
		}
	}
	return out
}
