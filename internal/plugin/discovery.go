package plugin

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvPluginDir is the environment variable a caller can set to replace
// the manifest search path (by default ./plugins) with one directory.
const EnvPluginDir = "MAINSTAGE_PLUGIN_DIR"

// Discover scans dirs, or only MAINSTAGE_PLUGIN_DIR when it is set, for
// `<plugin>/manifest.json` files, returning one Manifest per plugin
// directory found. It is an error for two manifests to declare the same
// function name: callers would have no way to route a PluginCall's
// FuncName between them.
func Discover(dirs ...string) ([]*Manifest, error) {
	if override := os.Getenv(EnvPluginDir); override != "" {
		dirs = []string{override}
	}

	var manifests []*Manifest
	seenFuncs := make(map[string]string) // func name -> owning plugin name

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("plugin: scan %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			manifestPath := filepath.Join(dir, e.Name(), "manifest.json")
			if _, err := os.Stat(manifestPath); err != nil {
				continue
			}
			m, err := loadManifest(manifestPath)
			if err != nil {
				return nil, err
			}
			for _, fn := range m.FunctionNames() {
				if owner, dup := seenFuncs[fn]; dup {
					return nil, fmt.Errorf("plugin: function %q declared by both %q and %q", fn, owner, m.Name)
				}
				seenFuncs[fn] = m.Name
			}
			manifests = append(manifests, m)
		}
	}
	return manifests, nil
}
