//go:build !cgo

package plugin

import (
	"fmt"

	"mainstage/internal/ir"
)

// inprocessPlugin is a non-functional stand-in built only when cgo is
// disabled (CGO_ENABLED=0); in-process plugins need a C-ABI dlopen call,
// which is unavailable without cgo.
type inprocessPlugin struct {
	manifest *Manifest
}

func newInprocessPlugin(m *Manifest) (*inprocessPlugin, error) {
	return nil, fmt.Errorf("plugin %s: in-process plugins require building with cgo enabled", m.Name)
}

func (p *inprocessPlugin) Name() string        { return p.manifest.Name }
func (p *inprocessPlugin) Manifest() *Manifest { return p.manifest }
func (p *inprocessPlugin) Call(string, []ir.Value) (ir.Value, error) {
	return ir.Value{}, fmt.Errorf("plugin %s: in-process plugins require building with cgo enabled", p.manifest.Name)
}
