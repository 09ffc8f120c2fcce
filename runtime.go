// Package tinywasm is the embedder surface: decode a WebAssembly binary,
// instantiate it against a set of registered host functions, and run its
// _start export (spec.md §6). It wraps internal/wasm/binary's decoder and
// internal/engine/interpreter's executor behind the small vocabulary an
// embedder needs: Runtime, HostModuleBuilder, Instantiate, Start.
package tinywasm

import (
	"fmt"

	"github.com/tinywasm/tinywasm/internal/engine/interpreter"
	"github.com/tinywasm/tinywasm/internal/wasm/binary"
)

// Runtime decodes and instantiates WebAssembly modules against a fixed set
// of host function registrations. Unlike the teacher's Runtime, this core
// has a single execution engine (there is no JIT/interpreter choice), so
// Runtime carries no RuntimeConfig — its only state is the host registry.
type Runtime struct {
	hostFuncs map[string]interpreter.HostFunction
}

// NewRuntime returns a Runtime with no host functions registered. Register
// with NewHostModuleBuilder before calling Instantiate on a module that
// imports anything.
func NewRuntime() *Runtime {
	return &Runtime{hostFuncs: map[string]interpreter.HostFunction{}}
}

// HostModuleBuilder accumulates host function registrations for one
// (module) namespace before merging them into a Runtime.
//
// See the teacher's HostFunctionBuilder for the fuller, reflection-based
// version of this idea; this core only needs the fixed (module, field) ->
// HostFunction mapping interpreter.Instantiate consumes.
type HostModuleBuilder struct {
	runtime    *Runtime
	moduleName string
}

// NewHostModuleBuilder starts building host function registrations under
// moduleName (e.g. "wasi_snapshot_preview1").
func (r *Runtime) NewHostModuleBuilder(moduleName string) *HostModuleBuilder {
	return &HostModuleBuilder{runtime: r, moduleName: moduleName}
}

// Export registers fn under (moduleName, field). It returns the builder so
// calls can be chained.
func (b *HostModuleBuilder) Export(field string, fn interpreter.HostFunction) *HostModuleBuilder {
	b.runtime.hostFuncs[b.moduleName+"."+field] = fn
	return b
}

// ExportAll merges a pre-built module of host functions (keyed by field
// name within moduleName) in one call, for packages like
// wasi_snapshot_preview1 that hand back a ready-made table.
func (b *HostModuleBuilder) ExportAll(fns map[string]interpreter.HostFunction) *HostModuleBuilder {
	for field, fn := range fns {
		b.runtime.hostFuncs[b.moduleName+"."+field] = fn
	}
	return b
}

// Instance wraps the decoded, linked module plus the methods an embedder
// uses after instantiation (spec.md §6 "Introspection").
type Instance struct {
	*interpreter.Instance
}

// Instantiate decodes moduleBytes and links it against every host function
// registered on r so far, returning a ready-to-run Instance. Decode errors
// (internal/wasm/binary) and link errors (internal/wasmruntime
// UnresolvedImport/SignatureMismatch) are wrapped with %w under a
// "decode module" or "instantiate module" prefix, so errors.As reaches
// either catalog.
func (r *Runtime) Instantiate(moduleBytes []byte) (*Instance, error) {
	m, err := binary.DecodeModule(moduleBytes)
	if err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	ins, err := interpreter.Instantiate(m, r.hostFuncs)
	if err != nil {
		return nil, fmt.Errorf("instantiate module: %w", err)
	}
	return &Instance{ins}, nil
}
