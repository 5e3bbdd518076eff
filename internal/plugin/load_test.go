package plugin

import "testing"

func TestLoadRejectsUnknownKind(t *testing.T) {
	r := NewRegistry()
	m := &Manifest{Name: "mystery", Kind: Kind("smoke-signal")}
	if err := Load(r, m); err == nil {
		t.Fatalf("expected error loading manifest with unknown kind")
	}
}

func TestLoadAllRegistersNativePluginsEvenWithNoManifests(t *testing.T) {
	r := NewRegistry()
	if err := LoadAll(r, t.TempDir()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if !r.Has("db") || !r.Has("net") {
		t.Fatalf("LoadAll did not install native plugins")
	}
}
