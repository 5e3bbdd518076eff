//go:build cgo

package plugin

/*
#include <dlfcn.h>
#include <stdlib.h>

typedef char* (*plugin_name_fn)(void);
typedef char* (*plugin_call_json_fn)(char*, char*);
typedef void (*plugin_free_fn)(char*);

static char* call_plugin_name(void *fn) {
	return ((plugin_name_fn)fn)();
}
static char* call_plugin_call_json(void *fn, char *func, char *args) {
	return ((plugin_call_json_fn)fn)(func, args);
}
static void call_plugin_free(void *fn, char *ptr) {
	((plugin_free_fn)fn)(ptr);
}
*/
import "C"

import (
	"fmt"
	"os"
	"unsafe"

	"mainstage/internal/ir"
)

// inprocessPlugin loads a shared library and resolves the three C-ABI
// symbols a MainStage in-process plugin must export: plugin_name,
// plugin_call_json, and the optional plugin_free.
type inprocessPlugin struct {
	manifest *Manifest
	handle   unsafe.Pointer
	nameFn   unsafe.Pointer
	callFn   unsafe.Pointer
	freeFn   unsafe.Pointer
}

func newInprocessPlugin(m *Manifest) (*inprocessPlugin, error) {
	path := m.EntryPath()
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW)
	if handle == nil {
		reason := diagnoseBinaryMismatch(path)
		return nil, fmt.Errorf("plugin %s: dlopen %s failed: %s%s", m.Name, path, C.GoString(C.dlerror()), reason)
	}

	nameFn := resolveSymbol(handle, "plugin_name")
	if nameFn == nil {
		C.dlclose(handle)
		return nil, fmt.Errorf("plugin %s: missing required symbol plugin_name", m.Name)
	}
	callFn := resolveSymbol(handle, "plugin_call_json")
	if callFn == nil {
		C.dlclose(handle)
		return nil, fmt.Errorf("plugin %s: missing required symbol plugin_call_json", m.Name)
	}
	freeFn := resolveSymbol(handle, "plugin_free") // optional

	return &inprocessPlugin{manifest: m, handle: handle, nameFn: nameFn, callFn: callFn, freeFn: freeFn}, nil
}

func resolveSymbol(handle unsafe.Pointer, name string) unsafe.Pointer {
	csym := C.CString(name)
	defer C.free(unsafe.Pointer(csym))
	return C.dlsym(handle, csym)
}

func (p *inprocessPlugin) Name() string        { return p.manifest.Name }
func (p *inprocessPlugin) Manifest() *Manifest { return p.manifest }

func (p *inprocessPlugin) Call(funcName string, args []ir.Value) (ir.Value, error) {
	payload, err := marshalArgs(args)
	if err != nil {
		return ir.Value{}, err
	}

	cFunc := C.CString(funcName)
	defer C.free(unsafe.Pointer(cFunc))
	cArgs := C.CString(string(payload))
	defer C.free(unsafe.Pointer(cArgs))

	resultC := C.call_plugin_call_json(p.callFn, cFunc, cArgs)
	if resultC == nil {
		return ir.Value{}, fmt.Errorf("plugin %s.%s: call returned nil", p.manifest.Name, funcName)
	}
	result := C.GoString(resultC)
	if p.freeFn != nil {
		C.call_plugin_free(p.freeFn, resultC)
	}

	return unmarshalResult([]byte(result))
}

// diagnoseBinaryMismatch inspects the plugin file's header magic to
// report a likely host/arch mismatch when dlopen fails to load it.
func diagnoseBinaryMismatch(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	var hdr [4]byte
	if _, err := f.Read(hdr[:]); err != nil {
		return ""
	}
	switch {
	case hdr[0] == 0x7f && hdr[1] == 'E' && hdr[2] == 'L' && hdr[3] == 'F':
		return " (file is an ELF shared object; if this host is not Linux, that is the mismatch)"
	case hdr[0] == 'M' && hdr[1] == 'Z':
		return " (file is a Windows PE/DLL image; it cannot be dlopen'd on a non-Windows host)"
	case (hdr[0] == 0xfe && hdr[1] == 0xed && hdr[2] == 0xfa) || (hdr[0] == 0xcf && hdr[1] == 0xfa && hdr[2] == 0xed):
		return " (file is a Mach-O image; check it matches this process's OS/architecture)"
	case hdr[0] == 0xca && hdr[1] == 0xfe && hdr[2] == 0xba && hdr[3] == 0xbe:
		return " (file is a Mach-O fat/universal binary; it may not contain a slice for this architecture)"
	default:
		return ""
	}
}
