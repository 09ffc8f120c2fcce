package binary

import (
	"encoding/binary"
	"math"

	"github.com/tinywasm/tinywasm/internal/leb128"
	"github.com/tinywasm/tinywasm/internal/wasm"
)

// writer accumulates encoded bytes. It exists only to build test fixtures
// and small embedded modules by hand; production use of this runtime reads
// binaries produced elsewhere.
type writer struct{ buf []byte }

func (w *writer) byte(b byte)   { w.buf = append(w.buf, b) }
func (w *writer) raw(b []byte)  { w.buf = append(w.buf, b...) }
func (w *writer) u32(v uint32)  { w.buf = append(w.buf, leb128.EncodeUint32(v)...) }
func (w *writer) u64(v uint64)  { w.buf = append(w.buf, leb128.EncodeUint64(v)...) }
func (w *writer) i32(v int32)   { w.buf = append(w.buf, leb128.EncodeInt32(v)...) }
func (w *writer) i64(v int64)   { w.buf = append(w.buf, leb128.EncodeInt64(v)...) }

func (w *writer) f32(v float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	w.raw(b[:])
}

func (w *writer) f64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.raw(b[:])
}

func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.raw([]byte(s))
}

// section writes id, the LEB128 length of body, then body.
func (w *writer) section(id byte, body []byte) {
	w.byte(id)
	w.u32(uint32(len(body)))
	w.raw(body)
}

// EncodeModule serializes m back to the binary format DecodeModule reads,
// for use in round-trip test fixtures. It only emits what the decoder
// itself understands: the type, function, memory, export, code and data
// sections; imports are emitted from Functions whose IsImport is set.
func EncodeModule(m *wasm.Module) []byte {
	w := &writer{}
	w.raw(magic[:])
	w.raw(version[:])

	w.section(SectionIDType, encodeTypeSection(m.Types))

	if body := encodeImportSection(m.Types, m.Functions); body != nil {
		w.section(SectionIDImport, body)
	}

	w.section(SectionIDFunction, encodeFunctionSection(m))
	if m.Memory != nil {
		w.section(SectionIDMemory, encodeMemorySection(m.Memory))
	}
	w.section(SectionIDExport, encodeExportSection(m))
	w.section(SectionIDCode, encodeCodeSection(m))
	if m.Memory != nil && len(m.Memory.Init) > 0 {
		w.section(SectionIDData, encodeDataSection(m.Memory.Init))
	}

	return w.buf
}

// typeIndex finds sig's position in types by pointer identity, matching
// how the decoder interns one *FunctionType per type-section entry.
func typeIndex(types []*wasm.FunctionType, sig *wasm.FunctionType) uint32 {
	for i, t := range types {
		if t == sig {
			return uint32(i)
		}
	}
	return 0
}

func encodeTypeSection(types []*wasm.FunctionType) []byte {
	w := &writer{}
	w.u32(uint32(len(types)))
	for _, t := range types {
		w.byte(wasm.FunctionTypeTag)
		w.u32(uint32(len(t.Params)))
		for _, p := range t.Params {
			w.byte(p)
		}
		w.u32(uint32(len(t.Results)))
		for _, rt := range t.Results {
			w.byte(rt)
		}
	}
	return w.buf
}

func encodeImportSection(types []*wasm.FunctionType, funcs []*wasm.Function) []byte {
	var count uint32
	for _, f := range funcs {
		if f.IsImport {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	w := &writer{}
	w.u32(count)
	for _, f := range funcs {
		if !f.IsImport {
			continue
		}
		w.name(f.ImportID.Module)
		w.name(f.ImportID.Field)
		w.byte(byte(wasm.ExportKindFunction))
		w.u32(typeIndex(types, f.Signature))
	}
	return w.buf
}

func encodeFunctionSection(m *wasm.Module) []byte {
	w := &writer{}
	var nonImport []*wasm.Function
	for _, f := range m.Functions {
		if !f.IsImport {
			nonImport = append(nonImport, f)
		}
	}
	w.u32(uint32(len(nonImport)))
	for _, f := range nonImport {
		w.u32(typeIndex(m.Types, f.Signature))
	}
	return w.buf
}

func encodeMemorySection(mem *wasm.MemoryBlueprint) []byte {
	w := &writer{}
	w.u32(1)
	if mem.HasMax {
		w.byte(byte(wasm.LimitKindMinMax))
		w.u32(mem.MinPages)
		w.u32(mem.MaxPages)
	} else {
		w.byte(byte(wasm.LimitKindMin))
		w.u32(mem.MinPages)
	}
	return w.buf
}

func encodeExportSection(m *wasm.Module) []byte {
	w := &writer{}
	var exports []wasm.Export
	for i, f := range m.Functions {
		if f.ExportName != "" {
			exports = append(exports, wasm.Export{Name: f.ExportName, Kind: wasm.ExportKindFunction, Index: uint32(i)})
		}
	}
	if m.Memory != nil && m.Memory.ExportName != "" {
		exports = append(exports, wasm.Export{Name: m.Memory.ExportName, Kind: wasm.ExportKindMemory, Index: 0})
	}
	w.u32(uint32(len(exports)))
	for _, e := range exports {
		w.name(e.Name)
		w.byte(byte(e.Kind))
		w.u32(e.Index)
	}
	return w.buf
}

func encodeCodeSection(m *wasm.Module) []byte {
	w := &writer{}
	var bodies [][]byte
	for _, f := range m.Functions {
		if f.IsImport {
			continue
		}
		bodies = append(bodies, encodeFunctionBody(f))
	}
	w.u32(uint32(len(bodies)))
	for _, b := range bodies {
		w.u32(uint32(len(b)))
		w.raw(b)
	}
	return w.buf
}

func encodeFunctionBody(f *wasm.Function) []byte {
	w := &writer{}
	groups := groupLocals(f.Locals)
	w.u32(uint32(len(groups)))
	for _, g := range groups {
		w.u32(g.n)
		w.byte(g.vt)
	}
	encodeInstrList(w, f.Body)
	w.byte(byte(wasm.OpcodeEnd))
	return w.buf
}

type localGroup struct {
	n  uint32
	vt wasm.ValueType
}

func groupLocals(locals []wasm.ValueType) []localGroup {
	var groups []localGroup
	for _, vt := range locals {
		if len(groups) > 0 && groups[len(groups)-1].vt == vt {
			groups[len(groups)-1].n++
			continue
		}
		groups = append(groups, localGroup{n: 1, vt: vt})
	}
	return groups
}

func encodeDataSection(segments []wasm.DataSegment) []byte {
	w := &writer{}
	w.u32(uint32(len(segments)))
	for _, seg := range segments {
		w.u32(uint32(wasm.DataModeActiveMemory0))
		w.byte(byte(wasm.OpcodeI32Const))
		w.i32(int32(seg.Addr))
		w.byte(byte(wasm.OpcodeEnd))
		w.u32(uint32(len(seg.Data)))
		w.raw(seg.Data)
	}
	return w.buf
}

// encodeInstrList serializes a flat or nested instruction list; it mirrors
// decodeInstr's payload shapes exactly.
func encodeInstrList(w *writer, list []wasm.Instruction) {
	for _, in := range list {
		encodeInstr(w, in)
	}
}

func encodeInstr(w *writer, in wasm.Instruction) {
	w.byte(byte(in.Opcode))

	switch in.Opcode {
	case wasm.OpcodeBlock, wasm.OpcodeLoop:
		w.byte(in.BlockType)
		encodeInstrList(w, in.Then)
		w.byte(byte(wasm.OpcodeEnd))
		return

	case wasm.OpcodeIf:
		w.byte(in.BlockType)
		encodeInstrList(w, in.Then)
		if in.Else != nil {
			w.byte(byte(wasm.OpcodeElse))
			encodeInstrList(w, in.Else)
		}
		w.byte(byte(wasm.OpcodeEnd))
		return

	case wasm.OpcodeBr, wasm.OpcodeBrIf:
		w.u32(in.LabelIndex)
		return

	case wasm.OpcodeBrTable:
		n := len(in.LabelIndexes) - 1
		w.u32(uint32(n))
		for i := 0; i < n; i++ {
			w.u32(in.LabelIndexes[i])
		}
		w.u32(in.LabelIndexes[n])
		return

	case wasm.OpcodeCall:
		w.u32(in.FunctionIndex)
		return

	case wasm.OpcodeCallIndirect:
		w.u32(in.TypeIndex)
		w.u32(in.TableIndex)
		return

	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee:
		w.u32(in.LocalIndex)
		return

	case wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		w.u32(in.GlobalIndex)
		return

	case wasm.OpcodeTableGet, wasm.OpcodeTableSet:
		w.u32(in.TableIndex)
		return

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		w.byte(0x00)
		return

	case wasm.OpcodeI32Const:
		w.i32(in.I32Value)
		return
	case wasm.OpcodeI64Const:
		w.i64(in.I64Value)
		return
	case wasm.OpcodeF32Const:
		w.f32(in.F32Value)
		return
	case wasm.OpcodeF64Const:
		w.f64(in.F64Value)
		return

	case wasm.OpcodeRefNull:
		w.byte(byte(wasm.ValueTypeFuncRef))
		return
	case wasm.OpcodeRefFunc:
		w.u32(in.FunctionIndex)
		return
	}

	if memArgOpcodes[in.Opcode] {
		w.u32(in.Mem.Align)
		w.u32(in.Mem.Offset)
		return
	}
	// no-payload opcode: the tag byte already written is all there is.
}
