package interpreter

import (
	"github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasmruntime"
)

// HostFunction is a host-provided callable, bound to an import's (module,
// field) pair at instantiation time. Func is invoked with the instance so
// it can push results and read/write memory directly, mirroring the
// spec's "Host carries an opaque operation that mutates the instance's
// operand stack and memory" (spec.md §9).
type HostFunction struct {
	Signature *wasm.FunctionType
	Func      func(ins *Instance) error
}

// function is one entry of the instance's function table: either a host
// stub (Host set, Def nil) or a module-defined body (Def set).
type function struct {
	Signature *wasm.FunctionType
	Host      *HostFunction
	Def       *wasm.Function
}

// Instance is a module instantiated against a concrete set of host
// function bindings: it owns the function table, memory, operand stack
// and call stack for the lifetime of one or more start() runs (spec.md §3).
type Instance struct {
	module    *wasm.Module
	functions []function
	memory    *wasm.Memory
	stack     operandStack
	callStack []uint32
	frames    []*callFrame
}

// callFrame holds one active call's bound parameters and declared locals;
// LocalGet/Set/Tee address the top frame (spec.md §4.2 "Locals ... are
// parsed"; this core implements them fully rather than stubbing them).
type callFrame struct {
	locals []wasm.Value
}

func (ins *Instance) currentFrame() *callFrame { return ins.frames[len(ins.frames)-1] }

// maxCallDepth bounds recursion the way a real call stack would overflow;
// crossing it traps rather than exhausting the host stack.
const maxCallDepth = 1 << 16

// Instantiate links m against hostFuncs (keyed by "module.field", matching
// wasm.Identifier.String()), allocates memory from the blueprint, copies
// data segments in, and returns a ready-to-run Instance. Link errors
// (UnresolvedImport, SignatureMismatch) abort instantiation (spec.md §7).
func Instantiate(m *wasm.Module, hostFuncs map[string]HostFunction) (*Instance, error) {
	ins := &Instance{module: m, functions: make([]function, len(m.Functions))}

	for i, f := range m.Functions {
		if !f.IsImport {
			ins.functions[i] = function{Signature: f.Signature, Def: f}
			continue
		}
		host, ok := hostFuncs[f.ImportID.String()]
		if !ok {
			return nil, wasmruntime.UnresolvedImport{Module: f.ImportID.Module, Field: f.ImportID.Field}
		}
		if !signaturesEqual(f.Signature, host.Signature) {
			return nil, wasmruntime.SignatureMismatch{
				Module: f.ImportID.Module, Field: f.ImportID.Field,
				Expected: f.Signature.String(), Got: host.Signature.String(),
			}
		}
		ins.functions[i] = function{Signature: f.Signature, Host: &host}
	}

	if m.Memory != nil {
		mem := wasm.NewMemory(m.Memory)
		for _, seg := range m.Memory.Init {
			if !mem.Write(seg.Addr, seg.Data) {
				return nil, wasmruntime.InvalidMemoryArea{Addr: uint64(seg.Addr), Size: uint32(len(seg.Data))}
			}
		}
		ins.memory = mem
	}

	return ins, nil
}

func signaturesEqual(a, b *wasm.FunctionType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}

// Memory returns the instance's linear memory, or nil if the module
// declared none.
func (ins *Instance) Memory() *wasm.Memory { return ins.memory }

// OperandStack returns the current operand stack contents for embedder
// introspection after a run (spec.md §6, "Introspection").
func (ins *Instance) OperandStack() []wasm.Value { return ins.stack.Values() }

// PopU32 pops an operand-stack cell as an unsigned 32-bit integer. Host
// functions use this (and its siblings below) to read their arguments,
// mirroring the teacher's wasm.ModuleContextless parameter-decoding
// convention but against this runtime's shared operand stack rather than a
// params slice (spec.md §9 "Host-function variants").
func (ins *Instance) PopU32() (uint32, error) { return ins.stack.popU32() }

// PushU32 pushes v as a tagged I32 operand.
func (ins *Instance) PushU32(v uint32) { ins.stack.pushU32(v) }

// Start finds the function exported as "_start" and runs it to
// completion, returning any trap. Re-invoking Start begins with whatever
// operand stack survived the previous run (spec.md §3 "Lifecycles").
func (ins *Instance) Start() error {
	fn, ok := ins.module.StartFunction()
	if !ok {
		return wasmruntime.NoStart{}
	}
	return ins.call(fn.Index)
}
