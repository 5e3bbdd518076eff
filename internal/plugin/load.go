package plugin

import "fmt"

// Load builds an adapter for a discovered manifest and registers it.
func Load(r *Registry, m *Manifest) error {
	switch m.Kind {
	case KindInProcess:
		p, err := newInprocessPlugin(m)
		if err != nil {
			return err
		}
		r.Register(p)
	case KindExternal:
		r.Register(newExternalPlugin(m))
	default:
		return fmt.Errorf("plugin %s: unknown kind %q", m.Name, m.Kind)
	}
	return nil
}

// LoadAll discovers manifests under dirs and loads every one into r,
// plus the two native plugins (db, net) that ship with the runtime.
func LoadAll(r *Registry, dirs ...string) error {
	RegisterNative(r)

	manifests, err := Discover(dirs...)
	if err != nil {
		return err
	}
	for _, m := range manifests {
		if err := Load(r, m); err != nil {
			return err
		}
	}
	return nil
}
