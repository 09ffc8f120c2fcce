// Package api includes the small vocabulary of constants shared between an
// embedder and the tinywasm runtime.
package api

import "fmt"

// ValueType is the binary encoding of a WebAssembly value type, used in
// function signatures and local declarations.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
	// ValueTypeV128 is a 128-bit vector. tinywasm decodes it for parse
	// fidelity but never executes an instruction that produces or
	// consumes one.
	ValueTypeV128 ValueType = 0x7b
	// ValueTypeFuncRef is an opaque reference to a function. Storage
	// only: tinywasm never dereferences one.
	ValueTypeFuncRef ValueType = 0x70
	// ValueTypeExternRef is an opaque reference to a host object. Storage
	// only: tinywasm never dereferences one.
	ValueTypeExternRef ValueType = 0x6f
)

// ValueTypeName returns the WebAssembly text format name of t, or a hex
// literal if t is not a recognized value type.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncRef:
		return "funcref"
	case ValueTypeExternRef:
		return "externref"
	}
	return fmt.Sprintf("%#x", t)
}

// ExternType classifies an import or export.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// ExternTypeName returns the WebAssembly text format field name of et.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	}
	return fmt.Sprintf("%#x", et)
}

// Memory describes a read-only view over a module instance's linear
// memory.
type Memory interface {
	// Size returns the current size of the memory, in bytes.
	Size() uint32
	// Read returns a copy of the len bytes at offset, or false if the
	// range is out of bounds.
	Read(offset, len uint32) ([]byte, bool)
	// ReadUint32Le reads a little-endian uint32 at offset, or false if
	// out of bounds.
	ReadUint32Le(offset uint32) (uint32, bool)
}
