// Package wasm holds the value/type/instruction/module data model shared
// by the binary decoder and the interpreter.
package wasm

import "github.com/tinywasm/tinywasm/api"

// ValueType is re-exported from api for convenience inside this package and
// its subpackages.
type ValueType = api.ValueType

const (
	ValueTypeI32       = api.ValueTypeI32
	ValueTypeI64       = api.ValueTypeI64
	ValueTypeF32       = api.ValueTypeF32
	ValueTypeF64       = api.ValueTypeF64
	ValueTypeV128      = api.ValueTypeV128
	ValueTypeFuncRef   = api.ValueTypeFuncRef
	ValueTypeExternRef = api.ValueTypeExternRef
)

// FunctionTypeTag is the byte that introduces a function type in the type
// section (0x60, the "func" form in the binary format).
const FunctionTypeTag byte = 0x60

// Mutability flags, used by the (parsed-but-unexecuted) global type and
// reused for the Const/Var parse-only Value markers spec.md's value model
// calls for.
const (
	MutabilityConst byte = 0x00
	MutabilityVar   byte = 0x01
)

// ExportKind classifies an export, and, in this binary format, an import
// description as well: both use the same single-byte tag space.
type ExportKind byte

const (
	ExportKindFunction ExportKind = 0x00
	ExportKindTable    ExportKind = 0x01
	ExportKindMemory   ExportKind = 0x02
	ExportKindGlobal   ExportKind = 0x03
)

func (k ExportKind) String() string {
	switch k {
	case ExportKindFunction:
		return "func"
	case ExportKindTable:
		return "table"
	case ExportKindMemory:
		return "memory"
	case ExportKindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// LimitKind tags whether a memory (or table) limit carries an explicit
// maximum.
type LimitKind byte

const (
	LimitKindMin    LimitKind = 0x00
	LimitKindMinMax LimitKind = 0x01
)

// DataMode tags how a data segment is placed into memory.
type DataMode byte

const (
	DataModeActiveMemory0 DataMode = 0x00
	DataModePassive       DataMode = 0x01
	DataModeActive        DataMode = 0x02
)

// FunctionType is the spec's "FunctionSignature": an ordered list of
// parameter types and an ordered list of result types. Functions that
// share a type-section entry share a pointer to the same *FunctionType, so
// mutating one (never done post-decode) cannot affect another — this is
// the interned-table equivalent of the spec's reference-counted signature.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// String renders the signature in a compact "(i32,i32)->i32" form, used in
// error messages.
func (f *FunctionType) String() string {
	s := "("
	for i, p := range f.Params {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(p)
	}
	s += ")->("
	for i, r := range f.Results {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(r)
	}
	return s + ")"
}

// MemArg is the (align, offset) pair carried by every memory load/store
// instruction. offset is added to the popped base address; align is
// advisory (it is never used to reject an access in this runtime, matching
// the "unaligned access is optional" note in spec.md §7).
type MemArg struct {
	Align  uint32
	Offset uint32
}
