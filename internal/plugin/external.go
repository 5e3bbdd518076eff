package plugin

import (
	"bytes"
	"fmt"
	"os/exec"

	"mainstage/internal/ir"
)

// externalPlugin spawns a companion executable per call: `<entry> call
// <func>`, writes a JSON-encoded argument array on stdin, reads a JSON
// response on stdout. Stdin is always closed before Wait so the child
// sees EOF, and the child is reaped (Wait called) on every exit path —
// including when writing the request or reading the response fails —
// so a misbehaving plugin never leaks a zombie.
type externalPlugin struct {
	manifest *Manifest
}

func newExternalPlugin(m *Manifest) *externalPlugin {
	return &externalPlugin{manifest: m}
}

func (p *externalPlugin) Name() string        { return p.manifest.Name }
func (p *externalPlugin) Manifest() *Manifest { return p.manifest }

func (p *externalPlugin) Call(funcName string, args []ir.Value) (ir.Value, error) {
	payload, err := marshalArgs(args)
	if err != nil {
		return ir.Value{}, err
	}

	cmd := exec.Command(p.manifest.EntryPath(), "call", funcName)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return ir.Value{}, fmt.Errorf("plugin %s: stdin pipe: %w", p.manifest.Name, err)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return ir.Value{}, fmt.Errorf("plugin %s: start: %w", p.manifest.Name, err)
	}

	if _, werr := stdin.Write(payload); werr != nil {
		stdin.Close()
		_ = cmd.Wait()
		return ir.Value{}, fmt.Errorf("plugin %s: write request: %w", p.manifest.Name, werr)
	}
	stdin.Close()

	waitErr := cmd.Wait()
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); ok {
			return ir.Value{}, fmt.Errorf("plugin %s.%s: exited with error: %s", p.manifest.Name, funcName, stderr.String())
		}
		return ir.Value{}, fmt.Errorf("plugin %s.%s: wait: %w", p.manifest.Name, funcName, waitErr)
	}

	return unmarshalResult(stdout.Bytes())
}
