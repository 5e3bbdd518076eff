// Package plugin implements MainStage's plugin boundary: manifest
// discovery, a registry that dispatches PluginCall ops by plugin name,
// and three adapters — in-process (cgo shared library), external
// (subprocess), and native (the built-in `db`/`net` plugins).
package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Kind is a plugin's adapter kind, from its manifest.
type Kind string

const (
	KindInProcess Kind = "inprocess"
	KindExternal  Kind = "external"
)

// FunctionDecl describes one function a plugin exposes.
type FunctionDecl struct {
	Name   string       `json:"name"`
	Args   []ArgDecl    `json:"args"`
	Return string       `json:"return,omitempty"`
}

// ArgDecl describes one declared argument of a plugin function.
type ArgDecl struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// Manifest is a plugin's `manifest.json` descriptor.
type Manifest struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Kind      Kind           `json:"kind"`
	Entry     string         `json:"entry"`
	Functions []FunctionDecl `json:"functions"`

	// Dir is the manifest's containing directory, set by discovery; not
	// part of the JSON shape.
	Dir string `json:"-"`
}

// EntryPath resolves Entry relative to the manifest's directory.
func (m *Manifest) EntryPath() string {
	if filepath.IsAbs(m.Entry) {
		return m.Entry
	}
	return filepath.Join(m.Dir, m.Entry)
}

// FunctionNames returns the set of function names the manifest declares,
// for discovery's uniqueness check.
func (m *Manifest) FunctionNames() []string {
	names := make([]string, len(m.Functions))
	for i, f := range m.Functions {
		names[i] = f.Name
	}
	return names
}

// loadManifest reads and validates one manifest.json file.
func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("plugin: parse manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("plugin: manifest %s missing name", path)
	}
	if m.Kind != KindInProcess && m.Kind != KindExternal {
		return nil, fmt.Errorf("plugin: manifest %s has unknown kind %q", path, m.Kind)
	}
	m.Dir = filepath.Dir(path)
	return &m, nil
}
