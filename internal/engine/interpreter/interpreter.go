// Package interpreter is the stack-based executor (spec.md §4.2): it runs
// a linked Instance's functions against a shared operand stack, a linear
// memory, and a call stack, enforcing the trap taxonomy in
// internal/wasmruntime.
package interpreter

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasmruntime"
)

// sigKind is what an instruction list hands back to its caller once it
// stops executing in the middle (rather than simply running out of
// instructions).
type sigKind int

const (
	sigNone   sigKind = iota // ran to the end of the list normally
	sigReturn                // hit the Return instruction
	sigBranch                // hit Br/BrIf/BrTable; branchDepth names the target label
)

type signal struct {
	kind        sigKind
	branchDepth uint32
}

var sigFallthrough = signal{kind: sigNone}

func zeroValue(vt wasm.ValueType) wasm.Value {
	switch vt {
	case wasm.ValueTypeI32:
		return wasm.ValueI32(0)
	case wasm.ValueTypeI64:
		return wasm.ValueI64(0)
	case wasm.ValueTypeF32:
		return wasm.ValueF32(0)
	case wasm.ValueTypeF64:
		return wasm.ValueF64(0)
	default:
		return wasm.Value{}
	}
}

// call dispatches to function index idx: a host function runs directly
// against the instance; a wasm-bodied function binds a new call frame from
// the operand stack's top len(params) values and executes its body.
func (ins *Instance) call(idx uint32) error {
	if int(idx) >= len(ins.functions) {
		return wasmruntime.FunctionIndexOutOfBounds{Index: idx, Len: len(ins.functions)}
	}
	if len(ins.callStack) >= maxCallDepth {
		return wasmruntime.CallStackOverflow{}
	}
	f := ins.functions[idx]

	ins.callStack = append(ins.callStack, idx)
	defer func() { ins.callStack = ins.callStack[:len(ins.callStack)-1] }()

	if f.Host != nil {
		return f.Host.Func(ins)
	}
	return ins.callWasm(f.Def)
}

func (ins *Instance) callWasm(def *wasm.Function) error {
	params := def.Signature.Params
	locals := make([]wasm.Value, len(params)+len(def.Locals))
	for i := len(params) - 1; i >= 0; i-- {
		v, err := ins.stack.pop()
		if err != nil {
			return err
		}
		locals[i] = v
	}
	for i, vt := range def.Locals {
		locals[len(params)+i] = zeroValue(vt)
	}

	ins.frames = append(ins.frames, &callFrame{locals: locals})
	defer func() { ins.frames = ins.frames[:len(ins.frames)-1] }()

	_, err := ins.execInstrs(def.Body)
	return err
}

// execInstrs runs body in order, returning early with a non-sigNone
// signal the moment one is produced by a nested construct.
func (ins *Instance) execInstrs(body []wasm.Instruction) (signal, error) {
	for _, in := range body {
		sig, err := ins.execInstr(in)
		if err != nil {
			return signal{}, err
		}
		if sig.kind != sigNone {
			return sig, nil
		}
	}
	return sigFallthrough, nil
}

// execBlockLike runs body as a Block or If arm: a branch targeting this
// label (depth 0) means "exit the block", i.e. it is absorbed into a
// normal fallthrough; deeper branches propagate with depth-1.
func (ins *Instance) execBlockLike(body []wasm.Instruction) (signal, error) {
	sig, err := ins.execInstrs(body)
	if err != nil {
		return signal{}, err
	}
	if sig.kind == sigBranch {
		if sig.branchDepth == 0 {
			return sigFallthrough, nil
		}
		return signal{kind: sigBranch, branchDepth: sig.branchDepth - 1}, nil
	}
	return sig, nil
}

// execLoop runs body as a Loop: a branch targeting this label (depth 0)
// restarts the loop body, matching the real WebAssembly convention that a
// loop's label names its top rather than its end.
func (ins *Instance) execLoop(body []wasm.Instruction) (signal, error) {
	for {
		sig, err := ins.execInstrs(body)
		if err != nil {
			return signal{}, err
		}
		if sig.kind == sigBranch {
			if sig.branchDepth == 0 {
				continue
			}
			return signal{kind: sigBranch, branchDepth: sig.branchDepth - 1}, nil
		}
		return sig, nil
	}
}

func (ins *Instance) execInstr(in wasm.Instruction) (signal, error) {
	switch in.Opcode {
	case wasm.OpcodeUnreachable:
		return signal{}, wasmruntime.Unreachable{}
	case wasm.OpcodeNop:
		return sigFallthrough, nil
	case wasm.OpcodeReturn:
		return signal{kind: sigReturn}, nil
	case wasm.OpcodeDrop:
		return sigFallthrough, ins.stack.drop()

	case wasm.OpcodeBlock:
		return ins.execBlockLike(in.Then)
	case wasm.OpcodeLoop:
		return ins.execLoop(in.Then)
	case wasm.OpcodeIf:
		cond, err := ins.stack.popI32()
		if err != nil {
			return signal{}, err
		}
		if cond != 0 {
			return ins.execBlockLike(in.Then)
		}
		return ins.execBlockLike(in.Else)

	case wasm.OpcodeBr:
		return signal{kind: sigBranch, branchDepth: in.LabelIndex}, nil
	case wasm.OpcodeBrIf:
		cond, err := ins.stack.popI32()
		if err != nil {
			return signal{}, err
		}
		if cond == 0 {
			return sigFallthrough, nil
		}
		return signal{kind: sigBranch, branchDepth: in.LabelIndex}, nil
	case wasm.OpcodeBrTable:
		return ins.execBrTable(in)

	case wasm.OpcodeCall:
		return sigFallthrough, ins.call(in.FunctionIndex)
	case wasm.OpcodeCallIndirect:
		return signal{}, wasmruntime.Unimplemented{Instruction: "call_indirect"}

	case wasm.OpcodeSelect:
		return sigFallthrough, ins.execSelect()

	case wasm.OpcodeLocalGet:
		return sigFallthrough, ins.execLocalGet(in.LocalIndex)
	case wasm.OpcodeLocalSet:
		return sigFallthrough, ins.execLocalSet(in.LocalIndex)
	case wasm.OpcodeLocalTee:
		return sigFallthrough, ins.execLocalTee(in.LocalIndex)

	case wasm.OpcodeGlobalGet:
		return signal{}, wasmruntime.Unimplemented{Instruction: "global.get"}
	case wasm.OpcodeGlobalSet:
		return signal{}, wasmruntime.Unimplemented{Instruction: "global.set"}
	case wasm.OpcodeTableGet:
		return signal{}, wasmruntime.Unimplemented{Instruction: "table.get"}
	case wasm.OpcodeTableSet:
		return signal{}, wasmruntime.Unimplemented{Instruction: "table.set"}

	case wasm.OpcodeMemorySize:
		return sigFallthrough, ins.execMemorySize()
	case wasm.OpcodeMemoryGrow:
		return sigFallthrough, ins.execMemoryGrow()

	case wasm.OpcodeI32Const:
		ins.stack.pushI32(in.I32Value)
		return sigFallthrough, nil
	case wasm.OpcodeI64Const:
		ins.stack.pushI64(in.I64Value)
		return sigFallthrough, nil
	case wasm.OpcodeF32Const:
		ins.stack.pushF32(in.F32Value)
		return sigFallthrough, nil
	case wasm.OpcodeF64Const:
		ins.stack.pushF64(in.F64Value)
		return sigFallthrough, nil

	case wasm.OpcodeRefNull:
		ins.stack.push(wasm.Marker(wasm.KindFuncRef))
		return sigFallthrough, nil
	case wasm.OpcodeRefIsNull:
		v, err := ins.stack.pop()
		if err != nil {
			return signal{}, err
		}
		ins.stack.pushBool(v.Kind == wasm.KindFuncRef || v.Kind == wasm.KindExternRef)
		return sigFallthrough, nil
	case wasm.OpcodeRefFunc:
		ins.stack.push(wasm.Marker(wasm.KindFunction))
		return sigFallthrough, nil
	}

	if isMemInstr(in.Opcode) {
		return sigFallthrough, ins.execMemInstr(in)
	}
	return sigFallthrough, ins.execNumeric(in.Opcode)
}

// isMemInstr reports whether op is one of the memory load/store
// instructions, all of which carry a MemArg payload.
func isMemInstr(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U,
		wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16,
		wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		return true
	default:
		return false
	}
}

// effectiveAddr adds a memory instruction's static offset to its popped
// base address, rejecting both 32-bit overflow and any resulting access
// that would fall outside the current linear memory (spec.md §4.2 "Memory
// instructions").
func effectiveAddr(mem *wasm.Memory, base uint32, memArg wasm.MemArg, size uint32) (uint32, error) {
	addr64 := uint64(base) + uint64(memArg.Offset)
	if addr64+uint64(size) > uint64(len(mem.Data)) {
		return 0, wasmruntime.InvalidMemoryArea{Addr: addr64, Size: size}
	}
	return uint32(addr64), nil
}

func (ins *Instance) execMemInstr(in wasm.Instruction) error {
	if ins.memory == nil {
		return wasmruntime.NoMemory{}
	}

	switch in.Opcode {
	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U:
		return ins.execLoad(in)
	default:
		return ins.execStore(in)
	}
}

func (ins *Instance) execLoad(in wasm.Instruction) error {
	base, err := ins.stack.popU32()
	if err != nil {
		return err
	}
	mem := ins.memory

	size := memAccessSize(in.Opcode)
	addr, err := effectiveAddr(mem, base, in.Mem, size)
	if err != nil {
		return err
	}
	b, _ := mem.Slice(addr, size)

	switch in.Opcode {
	case wasm.OpcodeI32Load:
		ins.stack.pushU32(leUint32(b))
	case wasm.OpcodeI64Load:
		ins.stack.pushU64(leUint64(b))
	case wasm.OpcodeF32Load:
		ins.stack.pushF32(math.Float32frombits(leUint32(b)))
	case wasm.OpcodeF64Load:
		ins.stack.pushF64(math.Float64frombits(leUint64(b)))
	case wasm.OpcodeI32Load8S:
		ins.stack.pushI32(int32(int8(b[0])))
	case wasm.OpcodeI32Load8U:
		ins.stack.pushU32(uint32(b[0]))
	case wasm.OpcodeI32Load16S:
		ins.stack.pushI32(int32(int16(leUint32From16(b))))
	case wasm.OpcodeI32Load16U:
		ins.stack.pushU32(uint32(leUint32From16(b)))
	case wasm.OpcodeI64Load8S:
		ins.stack.pushI64(int64(int8(b[0])))
	case wasm.OpcodeI64Load8U:
		ins.stack.pushU64(uint64(b[0]))
	case wasm.OpcodeI64Load16S:
		ins.stack.pushI64(int64(int16(leUint32From16(b))))
	case wasm.OpcodeI64Load16U:
		ins.stack.pushU64(uint64(leUint32From16(b)))
	case wasm.OpcodeI64Load32S:
		ins.stack.pushI64(int64(int32(leUint32(b))))
	case wasm.OpcodeI64Load32U:
		ins.stack.pushU64(uint64(leUint32(b)))
	}
	return nil
}

func (ins *Instance) execStore(in wasm.Instruction) error {
	var raw uint64
	switch in.Opcode {
	case wasm.OpcodeF32Store:
		v, err := ins.stack.popF32()
		if err != nil {
			return err
		}
		raw = uint64(math.Float32bits(v))
	case wasm.OpcodeF64Store:
		v, err := ins.stack.popF64()
		if err != nil {
			return err
		}
		raw = math.Float64bits(v)
	case wasm.OpcodeI64Store, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		v, err := ins.stack.popU64()
		if err != nil {
			return err
		}
		raw = v
	default:
		v, err := ins.stack.popU32()
		if err != nil {
			return err
		}
		raw = uint64(v)
	}

	base, err := ins.stack.popU32()
	if err != nil {
		return err
	}
	mem := ins.memory

	size := memAccessSize(in.Opcode)
	addr, err := effectiveAddr(mem, base, in.Mem, size)
	if err != nil {
		return err
	}
	b, _ := mem.Slice(addr, size)

	switch size {
	case 1:
		b[0] = byte(raw)
	case 2:
		b[0] = byte(raw)
		b[1] = byte(raw >> 8)
	case 4:
		b[0] = byte(raw)
		b[1] = byte(raw >> 8)
		b[2] = byte(raw >> 16)
		b[3] = byte(raw >> 24)
	case 8:
		for i := 0; i < 8; i++ {
			b[i] = byte(raw >> (8 * i))
		}
	}
	return nil
}

func memAccessSize(op wasm.Opcode) uint32 {
	switch op {
	case wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U,
		wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
		return 1
	case wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
		return 2
	case wasm.OpcodeI32Load, wasm.OpcodeF32Load, wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U,
		wasm.OpcodeI32Store, wasm.OpcodeF32Store, wasm.OpcodeI64Store32:
		return 4
	default:
		return 8
	}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint32From16(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// execBrTable implements br_table for the 0- and 1-case shapes fully; a
// table with more than one explicit case traps as unimplemented (SPEC_FULL
// §9 documents this as a deliberately scoped-down gap).
func (ins *Instance) execBrTable(in wasm.Instruction) (signal, error) {
	targets := in.LabelIndexes
	def := targets[len(targets)-1]
	cases := targets[:len(targets)-1]

	idx, err := ins.stack.popU32()
	if err != nil {
		return signal{}, err
	}

	switch len(cases) {
	case 0:
		return signal{kind: sigBranch, branchDepth: def}, nil
	case 1:
		if idx == 0 {
			return signal{kind: sigBranch, branchDepth: cases[0]}, nil
		}
		return signal{kind: sigBranch, branchDepth: def}, nil
	default:
		return signal{}, wasmruntime.Unimplemented{Instruction: "br_table with more than one case"}
	}
}

func (ins *Instance) execSelect() error {
	cond, err := ins.stack.popI32()
	if err != nil {
		return err
	}
	b, err := ins.stack.pop()
	if err != nil {
		return err
	}
	a, err := ins.stack.pop()
	if err != nil {
		return err
	}
	if cond != 0 {
		ins.stack.push(a)
	} else {
		ins.stack.push(b)
	}
	return nil
}

func (ins *Instance) execLocalGet(idx uint32) error {
	f := ins.currentFrame()
	if int(idx) >= len(f.locals) {
		return wasmruntime.LocalIndexOutOfBounds{Index: idx, Len: len(f.locals)}
	}
	ins.stack.push(f.locals[idx])
	return nil
}

func (ins *Instance) execLocalSet(idx uint32) error {
	f := ins.currentFrame()
	if int(idx) >= len(f.locals) {
		return wasmruntime.LocalIndexOutOfBounds{Index: idx, Len: len(f.locals)}
	}
	v, err := ins.stack.pop()
	if err != nil {
		return err
	}
	f.locals[idx] = v
	return nil
}

func (ins *Instance) execLocalTee(idx uint32) error {
	f := ins.currentFrame()
	if int(idx) >= len(f.locals) {
		return wasmruntime.LocalIndexOutOfBounds{Index: idx, Len: len(f.locals)}
	}
	v, err := ins.stack.pop()
	if err != nil {
		return err
	}
	f.locals[idx] = v
	ins.stack.push(v)
	return nil
}

func (ins *Instance) execMemorySize() error {
	if ins.memory == nil {
		return wasmruntime.NoMemory{}
	}
	ins.stack.pushU32(ins.memory.Pages())
	return nil
}

func (ins *Instance) execMemoryGrow() error {
	if ins.memory == nil {
		return wasmruntime.NoMemory{}
	}
	delta, err := ins.stack.popU32()
	if err != nil {
		return err
	}
	prev, ok := ins.memory.Grow(delta)
	if !ok {
		ins.stack.pushI32(-1)
		return nil
	}
	ins.stack.pushU32(prev)
	return nil
}

// execNumeric dispatches the arithmetic/comparison/conversion opcodes
// that carry no payload beyond the opcode byte (spec.md §4.2's numeric
// semantics: wrapping arithmetic, canonical clz/ctz/popcnt, IEEE-754
// floats, trapping signed-overflow and divide-by-zero).
func (ins *Instance) execNumeric(op wasm.Opcode) error {
	switch op {
	// i32 comparisons
	case wasm.OpcodeI32Eqz:
		a, err := ins.stack.popI32()
		if err != nil {
			return err
		}
		ins.stack.pushBool(a == 0)
		return nil
	case wasm.OpcodeI32Eq, wasm.OpcodeI32Ne, wasm.OpcodeI32LtS, wasm.OpcodeI32LtU,
		wasm.OpcodeI32GtS, wasm.OpcodeI32GtU, wasm.OpcodeI32LeS, wasm.OpcodeI32LeU,
		wasm.OpcodeI32GeS, wasm.OpcodeI32GeU:
		return ins.execI32Compare(op)

	// i64 comparisons
	case wasm.OpcodeI64Eqz:
		a, err := ins.stack.popI64()
		if err != nil {
			return err
		}
		ins.stack.pushBool(a == 0)
		return nil
	case wasm.OpcodeI64Eq, wasm.OpcodeI64Ne, wasm.OpcodeI64LtS, wasm.OpcodeI64LtU,
		wasm.OpcodeI64GtS, wasm.OpcodeI64GtU, wasm.OpcodeI64LeS, wasm.OpcodeI64LeU,
		wasm.OpcodeI64GeS, wasm.OpcodeI64GeU:
		return ins.execI64Compare(op)

	// float comparisons
	case wasm.OpcodeF32Eq, wasm.OpcodeF32Ne, wasm.OpcodeF32Lt, wasm.OpcodeF32Gt, wasm.OpcodeF32Le, wasm.OpcodeF32Ge:
		return ins.execF32Compare(op)
	case wasm.OpcodeF64Eq, wasm.OpcodeF64Ne, wasm.OpcodeF64Lt, wasm.OpcodeF64Gt, wasm.OpcodeF64Le, wasm.OpcodeF64Ge:
		return ins.execF64Compare(op)

	case wasm.OpcodeI32Clz, wasm.OpcodeI32Ctz, wasm.OpcodeI32Popcnt:
		return ins.execI32Unary(op)
	case wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul, wasm.OpcodeI32DivS, wasm.OpcodeI32DivU,
		wasm.OpcodeI32RemS, wasm.OpcodeI32RemU, wasm.OpcodeI32And, wasm.OpcodeI32Or, wasm.OpcodeI32Xor,
		wasm.OpcodeI32Shl, wasm.OpcodeI32ShrS, wasm.OpcodeI32ShrU, wasm.OpcodeI32Rotl, wasm.OpcodeI32Rotr:
		return ins.execI32Binary(op)

	case wasm.OpcodeI64Clz, wasm.OpcodeI64Ctz, wasm.OpcodeI64Popcnt:
		return ins.execI64Unary(op)
	case wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul, wasm.OpcodeI64DivS, wasm.OpcodeI64DivU,
		wasm.OpcodeI64RemS, wasm.OpcodeI64RemU, wasm.OpcodeI64And, wasm.OpcodeI64Or, wasm.OpcodeI64Xor,
		wasm.OpcodeI64Shl, wasm.OpcodeI64ShrS, wasm.OpcodeI64ShrU, wasm.OpcodeI64Rotl, wasm.OpcodeI64Rotr:
		return ins.execI64Binary(op)

	case wasm.OpcodeF32Abs, wasm.OpcodeF32Neg, wasm.OpcodeF32Ceil, wasm.OpcodeF32Floor,
		wasm.OpcodeF32Trunc, wasm.OpcodeF32Nearest, wasm.OpcodeF32Sqrt:
		return ins.execF32Unary(op)
	case wasm.OpcodeF32Add, wasm.OpcodeF32Sub, wasm.OpcodeF32Mul, wasm.OpcodeF32Div,
		wasm.OpcodeF32Min, wasm.OpcodeF32Max, wasm.OpcodeF32Copysign:
		return ins.execF32Binary(op)

	case wasm.OpcodeF64Abs, wasm.OpcodeF64Neg, wasm.OpcodeF64Ceil, wasm.OpcodeF64Floor,
		wasm.OpcodeF64Trunc, wasm.OpcodeF64Nearest, wasm.OpcodeF64Sqrt:
		return ins.execF64Unary(op)
	case wasm.OpcodeF64Add, wasm.OpcodeF64Sub, wasm.OpcodeF64Mul, wasm.OpcodeF64Div,
		wasm.OpcodeF64Min, wasm.OpcodeF64Max, wasm.OpcodeF64Copysign:
		return ins.execF64Binary(op)

	case wasm.OpcodeI32WrapI64:
		v, err := ins.stack.popI64()
		if err != nil {
			return err
		}
		ins.stack.pushI32(int32(v))
		return nil
	case wasm.OpcodeI64ExtendI32S:
		v, err := ins.stack.popI32()
		if err != nil {
			return err
		}
		ins.stack.pushI64(int64(v))
		return nil
	case wasm.OpcodeI64ExtendI32U:
		v, err := ins.stack.popU32()
		if err != nil {
			return err
		}
		ins.stack.pushI64(int64(uint64(v)))
		return nil

	case wasm.OpcodeI32TruncF32S, wasm.OpcodeI32TruncF32U, wasm.OpcodeI32TruncF64S, wasm.OpcodeI32TruncF64U,
		wasm.OpcodeI64TruncF32S, wasm.OpcodeI64TruncF32U, wasm.OpcodeI64TruncF64S, wasm.OpcodeI64TruncF64U:
		return ins.execTrunc(op)

	case wasm.OpcodeF32ConvertI32S, wasm.OpcodeF32ConvertI32U, wasm.OpcodeF32ConvertI64S, wasm.OpcodeF32ConvertI64U,
		wasm.OpcodeF64ConvertI32S, wasm.OpcodeF64ConvertI32U, wasm.OpcodeF64ConvertI64S, wasm.OpcodeF64ConvertI64U:
		return ins.execConvert(op)

	case wasm.OpcodeF32DemoteF64:
		v, err := ins.stack.popF64()
		if err != nil {
			return err
		}
		ins.stack.pushF32(float32(v))
		return nil
	case wasm.OpcodeF64PromoteF32:
		v, err := ins.stack.popF32()
		if err != nil {
			return err
		}
		ins.stack.pushF64(float64(v))
		return nil

	case wasm.OpcodeI32ReinterpretF32:
		v, err := ins.stack.popF32()
		if err != nil {
			return err
		}
		ins.stack.pushU32(math.Float32bits(v))
		return nil
	case wasm.OpcodeI64ReinterpretF64:
		v, err := ins.stack.popF64()
		if err != nil {
			return err
		}
		ins.stack.pushU64(math.Float64bits(v))
		return nil
	case wasm.OpcodeF32ReinterpretI32:
		v, err := ins.stack.popU32()
		if err != nil {
			return err
		}
		ins.stack.pushF32(math.Float32frombits(v))
		return nil
	case wasm.OpcodeF64ReinterpretI64:
		v, err := ins.stack.popU64()
		if err != nil {
			return err
		}
		ins.stack.pushF64(math.Float64frombits(v))
		return nil

	case wasm.OpcodeI32Extend8S:
		v, err := ins.stack.popI32()
		if err != nil {
			return err
		}
		ins.stack.pushI32(int32(int8(v)))
		return nil
	case wasm.OpcodeI32Extend16S:
		v, err := ins.stack.popI32()
		if err != nil {
			return err
		}
		ins.stack.pushI32(int32(int16(v)))
		return nil
	case wasm.OpcodeI64Extend8S:
		v, err := ins.stack.popI64()
		if err != nil {
			return err
		}
		ins.stack.pushI64(int64(int8(v)))
		return nil
	case wasm.OpcodeI64Extend16S:
		v, err := ins.stack.popI64()
		if err != nil {
			return err
		}
		ins.stack.pushI64(int64(int16(v)))
		return nil
	case wasm.OpcodeI64Extend32S:
		v, err := ins.stack.popI64()
		if err != nil {
			return err
		}
		ins.stack.pushI64(int64(int32(v)))
		return nil
	}

	return wasmruntime.Unimplemented{Instruction: fmt.Sprintf("opcode 0x%02x", byte(op))}
}

func (ins *Instance) execI32Compare(op wasm.Opcode) error {
	b, err := ins.stack.popI32()
	if err != nil {
		return err
	}
	a, err := ins.stack.popI32()
	if err != nil {
		return err
	}
	ua, ub := uint32(a), uint32(b)
	switch op {
	case wasm.OpcodeI32Eq:
		ins.stack.pushBool(a == b)
	case wasm.OpcodeI32Ne:
		ins.stack.pushBool(a != b)
	case wasm.OpcodeI32LtS:
		ins.stack.pushBool(a < b)
	case wasm.OpcodeI32LtU:
		ins.stack.pushBool(ua < ub)
	case wasm.OpcodeI32GtS:
		ins.stack.pushBool(a > b)
	case wasm.OpcodeI32GtU:
		ins.stack.pushBool(ua > ub)
	case wasm.OpcodeI32LeS:
		ins.stack.pushBool(a <= b)
	case wasm.OpcodeI32LeU:
		ins.stack.pushBool(ua <= ub)
	case wasm.OpcodeI32GeS:
		ins.stack.pushBool(a >= b)
	case wasm.OpcodeI32GeU:
		ins.stack.pushBool(ua >= ub)
	}
	return nil
}

func (ins *Instance) execI64Compare(op wasm.Opcode) error {
	b, err := ins.stack.popI64()
	if err != nil {
		return err
	}
	a, err := ins.stack.popI64()
	if err != nil {
		return err
	}
	ua, ub := uint64(a), uint64(b)
	switch op {
	case wasm.OpcodeI64Eq:
		ins.stack.pushBool(a == b)
	case wasm.OpcodeI64Ne:
		ins.stack.pushBool(a != b)
	case wasm.OpcodeI64LtS:
		ins.stack.pushBool(a < b)
	case wasm.OpcodeI64LtU:
		ins.stack.pushBool(ua < ub)
	case wasm.OpcodeI64GtS:
		ins.stack.pushBool(a > b)
	case wasm.OpcodeI64GtU:
		ins.stack.pushBool(ua > ub)
	case wasm.OpcodeI64LeS:
		ins.stack.pushBool(a <= b)
	case wasm.OpcodeI64LeU:
		ins.stack.pushBool(ua <= ub)
	case wasm.OpcodeI64GeS:
		ins.stack.pushBool(a >= b)
	case wasm.OpcodeI64GeU:
		ins.stack.pushBool(ua >= ub)
	}
	return nil
}

func (ins *Instance) execF32Compare(op wasm.Opcode) error {
	b, err := ins.stack.popF32()
	if err != nil {
		return err
	}
	a, err := ins.stack.popF32()
	if err != nil {
		return err
	}
	switch op {
	case wasm.OpcodeF32Eq:
		ins.stack.pushBool(a == b)
	case wasm.OpcodeF32Ne:
		ins.stack.pushBool(a != b)
	case wasm.OpcodeF32Lt:
		ins.stack.pushBool(a < b)
	case wasm.OpcodeF32Gt:
		ins.stack.pushBool(a > b)
	case wasm.OpcodeF32Le:
		ins.stack.pushBool(a <= b)
	case wasm.OpcodeF32Ge:
		ins.stack.pushBool(a >= b)
	}
	return nil
}

func (ins *Instance) execF64Compare(op wasm.Opcode) error {
	b, err := ins.stack.popF64()
	if err != nil {
		return err
	}
	a, err := ins.stack.popF64()
	if err != nil {
		return err
	}
	switch op {
	case wasm.OpcodeF64Eq:
		ins.stack.pushBool(a == b)
	case wasm.OpcodeF64Ne:
		ins.stack.pushBool(a != b)
	case wasm.OpcodeF64Lt:
		ins.stack.pushBool(a < b)
	case wasm.OpcodeF64Gt:
		ins.stack.pushBool(a > b)
	case wasm.OpcodeF64Le:
		ins.stack.pushBool(a <= b)
	case wasm.OpcodeF64Ge:
		ins.stack.pushBool(a >= b)
	}
	return nil
}

func (ins *Instance) execI32Unary(op wasm.Opcode) error {
	a, err := ins.stack.popU32()
	if err != nil {
		return err
	}
	switch op {
	case wasm.OpcodeI32Clz:
		ins.stack.pushU32(uint32(bits.LeadingZeros32(a)))
	case wasm.OpcodeI32Ctz:
		ins.stack.pushU32(uint32(bits.TrailingZeros32(a)))
	case wasm.OpcodeI32Popcnt:
		ins.stack.pushU32(uint32(bits.OnesCount32(a)))
	}
	return nil
}

func (ins *Instance) execI32Binary(op wasm.Opcode) error {
	b, err := ins.stack.popI32()
	if err != nil {
		return err
	}
	a, err := ins.stack.popI32()
	if err != nil {
		return err
	}
	ua, ub := uint32(a), uint32(b)
	switch op {
	case wasm.OpcodeI32Add:
		ins.stack.pushI32(a + b)
	case wasm.OpcodeI32Sub:
		ins.stack.pushI32(a - b)
	case wasm.OpcodeI32Mul:
		ins.stack.pushI32(a * b)
	case wasm.OpcodeI32DivS:
		if b == 0 {
			return wasmruntime.DivideByZero{}
		}
		if a == math.MinInt32 && b == -1 {
			return wasmruntime.IntegerOverflow{}
		}
		ins.stack.pushI32(a / b)
	case wasm.OpcodeI32DivU:
		if ub == 0 {
			return wasmruntime.DivideByZero{}
		}
		ins.stack.pushU32(ua / ub)
	case wasm.OpcodeI32RemS:
		if b == 0 {
			return wasmruntime.DivideByZero{}
		}
		ins.stack.pushI32(a % b)
	case wasm.OpcodeI32RemU:
		if ub == 0 {
			return wasmruntime.DivideByZero{}
		}
		ins.stack.pushU32(ua % ub)
	case wasm.OpcodeI32And:
		ins.stack.pushI32(a & b)
	case wasm.OpcodeI32Or:
		ins.stack.pushI32(a | b)
	case wasm.OpcodeI32Xor:
		ins.stack.pushI32(a ^ b)
	case wasm.OpcodeI32Shl:
		ins.stack.pushU32(ua << (ub & 31))
	case wasm.OpcodeI32ShrS:
		ins.stack.pushI32(a >> (ub & 31))
	case wasm.OpcodeI32ShrU:
		ins.stack.pushU32(ua >> (ub & 31))
	case wasm.OpcodeI32Rotl:
		ins.stack.pushU32(bits.RotateLeft32(ua, int(ub&31)))
	case wasm.OpcodeI32Rotr:
		ins.stack.pushU32(bits.RotateLeft32(ua, -int(ub&31)))
	}
	return nil
}

func (ins *Instance) execI64Unary(op wasm.Opcode) error {
	a, err := ins.stack.popU64()
	if err != nil {
		return err
	}
	switch op {
	case wasm.OpcodeI64Clz:
		ins.stack.pushI64(int64(bits.LeadingZeros64(a)))
	case wasm.OpcodeI64Ctz:
		ins.stack.pushI64(int64(bits.TrailingZeros64(a)))
	case wasm.OpcodeI64Popcnt:
		ins.stack.pushI64(int64(bits.OnesCount64(a)))
	}
	return nil
}

func (ins *Instance) execI64Binary(op wasm.Opcode) error {
	b, err := ins.stack.popI64()
	if err != nil {
		return err
	}
	a, err := ins.stack.popI64()
	if err != nil {
		return err
	}
	ua, ub := uint64(a), uint64(b)
	switch op {
	case wasm.OpcodeI64Add:
		ins.stack.pushI64(a + b)
	case wasm.OpcodeI64Sub:
		ins.stack.pushI64(a - b)
	case wasm.OpcodeI64Mul:
		ins.stack.pushI64(a * b)
	case wasm.OpcodeI64DivS:
		if b == 0 {
			return wasmruntime.DivideByZero{}
		}
		if a == math.MinInt64 && b == -1 {
			return wasmruntime.IntegerOverflow{}
		}
		ins.stack.pushI64(a / b)
	case wasm.OpcodeI64DivU:
		if ub == 0 {
			return wasmruntime.DivideByZero{}
		}
		ins.stack.pushU64(ua / ub)
	case wasm.OpcodeI64RemS:
		if b == 0 {
			return wasmruntime.DivideByZero{}
		}
		ins.stack.pushI64(a % b)
	case wasm.OpcodeI64RemU:
		if ub == 0 {
			return wasmruntime.DivideByZero{}
		}
		ins.stack.pushU64(ua % ub)
	case wasm.OpcodeI64And:
		ins.stack.pushI64(a & b)
	case wasm.OpcodeI64Or:
		ins.stack.pushI64(a | b)
	case wasm.OpcodeI64Xor:
		ins.stack.pushI64(a ^ b)
	case wasm.OpcodeI64Shl:
		ins.stack.pushU64(ua << (ub & 63))
	case wasm.OpcodeI64ShrS:
		ins.stack.pushI64(a >> (ub & 63))
	case wasm.OpcodeI64ShrU:
		ins.stack.pushU64(ua >> (ub & 63))
	case wasm.OpcodeI64Rotl:
		ins.stack.pushU64(bits.RotateLeft64(ua, int(ub&63)))
	case wasm.OpcodeI64Rotr:
		ins.stack.pushU64(bits.RotateLeft64(ua, -int(ub&63)))
	}
	return nil
}

func (ins *Instance) execF32Unary(op wasm.Opcode) error {
	a, err := ins.stack.popF32()
	if err != nil {
		return err
	}
	switch op {
	case wasm.OpcodeF32Abs:
		ins.stack.pushF32(float32(math.Abs(float64(a))))
	case wasm.OpcodeF32Neg:
		ins.stack.pushF32(-a)
	case wasm.OpcodeF32Ceil:
		ins.stack.pushF32(float32(math.Ceil(float64(a))))
	case wasm.OpcodeF32Floor:
		ins.stack.pushF32(float32(math.Floor(float64(a))))
	case wasm.OpcodeF32Trunc:
		ins.stack.pushF32(float32(math.Trunc(float64(a))))
	case wasm.OpcodeF32Nearest:
		ins.stack.pushF32(float32(math.RoundToEven(float64(a))))
	case wasm.OpcodeF32Sqrt:
		ins.stack.pushF32(float32(math.Sqrt(float64(a))))
	}
	return nil
}

func (ins *Instance) execF32Binary(op wasm.Opcode) error {
	b, err := ins.stack.popF32()
	if err != nil {
		return err
	}
	a, err := ins.stack.popF32()
	if err != nil {
		return err
	}
	switch op {
	case wasm.OpcodeF32Add:
		ins.stack.pushF32(a + b)
	case wasm.OpcodeF32Sub:
		ins.stack.pushF32(a - b)
	case wasm.OpcodeF32Mul:
		ins.stack.pushF32(a * b)
	case wasm.OpcodeF32Div:
		ins.stack.pushF32(a / b)
	case wasm.OpcodeF32Min:
		ins.stack.pushF32(float32(math.Min(float64(a), float64(b))))
	case wasm.OpcodeF32Max:
		ins.stack.pushF32(float32(math.Max(float64(a), float64(b))))
	case wasm.OpcodeF32Copysign:
		ins.stack.pushF32(float32(math.Copysign(float64(a), float64(b))))
	}
	return nil
}

func (ins *Instance) execF64Unary(op wasm.Opcode) error {
	a, err := ins.stack.popF64()
	if err != nil {
		return err
	}
	switch op {
	case wasm.OpcodeF64Abs:
		ins.stack.pushF64(math.Abs(a))
	case wasm.OpcodeF64Neg:
		ins.stack.pushF64(-a)
	case wasm.OpcodeF64Ceil:
		ins.stack.pushF64(math.Ceil(a))
	case wasm.OpcodeF64Floor:
		ins.stack.pushF64(math.Floor(a))
	case wasm.OpcodeF64Trunc:
		ins.stack.pushF64(math.Trunc(a))
	case wasm.OpcodeF64Nearest:
		ins.stack.pushF64(math.RoundToEven(a))
	case wasm.OpcodeF64Sqrt:
		ins.stack.pushF64(math.Sqrt(a))
	}
	return nil
}

func (ins *Instance) execF64Binary(op wasm.Opcode) error {
	b, err := ins.stack.popF64()
	if err != nil {
		return err
	}
	a, err := ins.stack.popF64()
	if err != nil {
		return err
	}
	switch op {
	case wasm.OpcodeF64Add:
		ins.stack.pushF64(a + b)
	case wasm.OpcodeF64Sub:
		ins.stack.pushF64(a - b)
	case wasm.OpcodeF64Mul:
		ins.stack.pushF64(a * b)
	case wasm.OpcodeF64Div:
		ins.stack.pushF64(a / b)
	case wasm.OpcodeF64Min:
		ins.stack.pushF64(math.Min(a, b))
	case wasm.OpcodeF64Max:
		ins.stack.pushF64(math.Max(a, b))
	case wasm.OpcodeF64Copysign:
		ins.stack.pushF64(math.Copysign(a, b))
	}
	return nil
}

func (ins *Instance) execTrunc(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeI32TruncF32S:
		v, err := ins.stack.popF32()
		if err != nil {
			return err
		}
		ins.stack.pushI32(int32(math.Trunc(float64(v))))
	case wasm.OpcodeI32TruncF32U:
		v, err := ins.stack.popF32()
		if err != nil {
			return err
		}
		ins.stack.pushU32(uint32(math.Trunc(float64(v))))
	case wasm.OpcodeI32TruncF64S:
		v, err := ins.stack.popF64()
		if err != nil {
			return err
		}
		ins.stack.pushI32(int32(math.Trunc(v)))
	case wasm.OpcodeI32TruncF64U:
		v, err := ins.stack.popF64()
		if err != nil {
			return err
		}
		ins.stack.pushU32(uint32(math.Trunc(v)))
	case wasm.OpcodeI64TruncF32S:
		v, err := ins.stack.popF32()
		if err != nil {
			return err
		}
		ins.stack.pushI64(int64(math.Trunc(float64(v))))
	case wasm.OpcodeI64TruncF32U:
		v, err := ins.stack.popF32()
		if err != nil {
			return err
		}
		ins.stack.pushU64(uint64(math.Trunc(float64(v))))
	case wasm.OpcodeI64TruncF64S:
		v, err := ins.stack.popF64()
		if err != nil {
			return err
		}
		ins.stack.pushI64(int64(math.Trunc(v)))
	case wasm.OpcodeI64TruncF64U:
		v, err := ins.stack.popF64()
		if err != nil {
			return err
		}
		ins.stack.pushU64(uint64(math.Trunc(v)))
	}
	return nil
}

func (ins *Instance) execConvert(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeF32ConvertI32S:
		v, err := ins.stack.popI32()
		if err != nil {
			return err
		}
		ins.stack.pushF32(float32(v))
	case wasm.OpcodeF32ConvertI32U:
		v, err := ins.stack.popU32()
		if err != nil {
			return err
		}
		ins.stack.pushF32(float32(v))
	case wasm.OpcodeF32ConvertI64S:
		v, err := ins.stack.popI64()
		if err != nil {
			return err
		}
		ins.stack.pushF32(float32(v))
	case wasm.OpcodeF32ConvertI64U:
		v, err := ins.stack.popU64()
		if err != nil {
			return err
		}
		ins.stack.pushF32(float32(v))
	case wasm.OpcodeF64ConvertI32S:
		v, err := ins.stack.popI32()
		if err != nil {
			return err
		}
		ins.stack.pushF64(float64(v))
	case wasm.OpcodeF64ConvertI32U:
		v, err := ins.stack.popU32()
		if err != nil {
			return err
		}
		ins.stack.pushF64(float64(v))
	case wasm.OpcodeF64ConvertI64S:
		v, err := ins.stack.popI64()
		if err != nil {
			return err
		}
		ins.stack.pushF64(float64(v))
	case wasm.OpcodeF64ConvertI64U:
		v, err := ins.stack.popU64()
		if err != nil {
			return err
		}
		ins.stack.pushF64(float64(v))
	}
	return nil
}
