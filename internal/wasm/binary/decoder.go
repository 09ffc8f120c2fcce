package binary

import (
	"bytes"

	"github.com/tinywasm/tinywasm/internal/wasm"
)

// DecodeModule parses the section-driven WebAssembly binary format into a
// Module (spec.md §4.1). It validates the header, dispatches each section
// by id, and skips sections this core does not interpret (table, global,
// start, element, datacount) while still rejecting a truly unknown id.
func DecodeModule(data []byte) (*wasm.Module, error) {
	r := newReader(data)

	hdr, err := r.bytes(4)
	if err != nil || !bytes.Equal(hdr, magic[:]) {
		return nil, ErrNotWasmModule{}
	}
	ver, err := r.bytes(4)
	if err != nil {
		return nil, ErrNotWasmModule{}
	}
	if !bytes.Equal(ver, version[:]) {
		var got [4]byte
		copy(got[:], ver)
		return nil, ErrIllegalVersion{Got: got}
	}

	d := &moduleDecoder{}

	for r.len() > 0 {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, wrap("section header", err)
		}
		body, err := r.bytes(size)
		if err != nil {
			return nil, wrap("section body", err)
		}
		sub := newReader(body)

		switch id {
		case SectionIDCustom:
			// Name and payload are not interpreted; reading the name is
			// enough to keep the byte accounting honest for tooling that
			// inspects custom sections, but this core discards it.
			if _, err := sub.name(); err != nil {
				return nil, wrap("custom section", err)
			}
			continue

		case SectionIDType:
			if err := d.decodeTypeSection(sub); err != nil {
				return nil, wrap("type section", err)
			}

		case SectionIDImport:
			if err := d.decodeImportSection(sub); err != nil {
				return nil, wrap("import section", err)
			}

		case SectionIDFunction:
			if err := d.decodeFunctionSection(sub); err != nil {
				return nil, wrap("function section", err)
			}

		case SectionIDMemory:
			if err := d.decodeMemorySection(sub); err != nil {
				return nil, wrap("memory section", err)
			}

		case SectionIDExport:
			if err := d.decodeExportSection(sub); err != nil {
				return nil, wrap("export section", err)
			}

		case SectionIDCode:
			if err := d.decodeCodeSection(sub); err != nil {
				return nil, wrap("code section", err)
			}

		case SectionIDData:
			if err := d.decodeDataSection(sub); err != nil {
				return nil, wrap("data section", err)
			}

		default:
			if !knownSkippableSection(id) {
				return nil, ErrUnknownSectionID{ID: id}
			}
			continue
		}

		if sub.len() != 0 {
			return nil, ErrSectionSizeMismatch{ID: id}
		}
	}

	return d.build()
}

// moduleDecoder accumulates section contents across the single top-to-
// bottom pass DecodeModule makes, then assembles a Module once every
// section has been seen.
type moduleDecoder struct {
	types       []*wasm.FunctionType
	imports     []wasm.Import
	funcTypeIdx []uint32 // function section: type index per module-defined function
	memory      *wasm.MemoryBlueprint
	exports     []wasm.Export
	codeBodies  []decodedCode
	data        []wasm.DataSegment
}

type decodedCode struct {
	Locals []wasm.ValueType
	Body   []wasm.Instruction
}

func (d *moduleDecoder) decodeTypeSection(r *reader) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	d.types = make([]*wasm.FunctionType, 0, count)
	for i := uint32(0); i < count; i++ {
		tag, err := r.byte()
		if err != nil {
			return err
		}
		if tag != wasm.FunctionTypeTag {
			return ErrExpectedFunctionTypeTag{Got: tag}
		}
		params, err := decodeValueTypeVec(r)
		if err != nil {
			return err
		}
		results, err := decodeValueTypeVec(r)
		if err != nil {
			return err
		}
		d.types = append(d.types, &wasm.FunctionType{Params: params, Results: results})
	}
	return nil
}

func decodeValueTypeVec(r *reader) ([]wasm.ValueType, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ValueType, count)
	for i := range out {
		vt, err := r.valueType()
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

// decodeLimits reads a (min[,max]) pair shared by the memory (and, in the
// full format, table) description.
func decodeLimits(r *reader) (min, max uint32, hasMax bool, err error) {
	kind, err := r.byte()
	if err != nil {
		return 0, 0, false, err
	}
	switch wasm.LimitKind(kind) {
	case wasm.LimitKindMin:
		min, err = r.u32()
		return min, 0, false, err
	case wasm.LimitKindMinMax:
		min, err = r.u32()
		if err != nil {
			return 0, 0, false, err
		}
		max, err = r.u32()
		return min, max, true, err
	default:
		return 0, 0, false, ErrUnknownLimitKind{Byte: kind}
	}
}

func (d *moduleDecoder) decodeImportSection(r *reader) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	d.imports = make([]wasm.Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := r.name()
		if err != nil {
			return err
		}
		field, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.exportKind()
		if err != nil {
			return err
		}
		imp := wasm.Import{Module: mod, Field: field, Kind: kind}
		switch kind {
		case wasm.ExportKindFunction:
			idx, err := r.u32()
			if err != nil {
				return err
			}
			imp.DescFunc = idx
		case wasm.ExportKindMemory:
			if _, _, _, err := decodeLimits(r); err != nil {
				return err
			}
		case wasm.ExportKindTable:
			if _, err := r.byte(); err != nil { // reftype
				return err
			}
			if _, _, _, err := decodeLimits(r); err != nil {
				return err
			}
		case wasm.ExportKindGlobal:
			if _, err := r.valueType(); err != nil {
				return err
			}
			if _, err := r.byte(); err != nil { // mutability
				return err
			}
		}
		d.imports = append(d.imports, imp)
	}
	return nil
}

func (d *moduleDecoder) decodeFunctionSection(r *reader) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	d.funcTypeIdx = make([]uint32, count)
	for i := range d.funcTypeIdx {
		idx, err := r.u32()
		if err != nil {
			return err
		}
		d.funcTypeIdx[i] = idx
	}
	return nil
}

func (d *moduleDecoder) decodeMemorySection(r *reader) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if count > 1 {
		return ErrMultipleMemories{}
	}
	min, max, hasMax, err := decodeLimits(r)
	if err != nil {
		return err
	}
	d.memory = &wasm.MemoryBlueprint{MinPages: min, MaxPages: max, HasMax: hasMax}
	return nil
}

func (d *moduleDecoder) decodeExportSection(r *reader) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	d.exports = make([]wasm.Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.exportKind()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		d.exports = append(d.exports, wasm.Export{Name: name, Kind: kind, Index: idx})
	}
	return nil
}

func (d *moduleDecoder) decodeCodeSection(r *reader) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	d.codeBodies = make([]decodedCode, 0, count)
	for i := uint32(0); i < count; i++ {
		bodySize, err := r.u32()
		if err != nil {
			return err
		}
		raw, err := r.bytes(bodySize)
		if err != nil {
			return err
		}
		br := newReader(raw)

		localGroupCount, err := br.u32()
		if err != nil {
			return err
		}
		var locals []wasm.ValueType
		for g := uint32(0); g < localGroupCount; g++ {
			n, err := br.u32()
			if err != nil {
				return err
			}
			vt, err := br.valueType()
			if err != nil {
				return err
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}
		body, err := decodeBody(br)
		if err != nil {
			return err
		}
		if br.len() != 0 {
			return ErrSectionSizeMismatch{ID: SectionIDCode}
		}
		d.codeBodies = append(d.codeBodies, decodedCode{Locals: locals, Body: body})
	}
	return nil
}

func (d *moduleDecoder) decodeDataSection(r *reader) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	d.data = make([]wasm.DataSegment, 0, count)
	for i := uint32(0); i < count; i++ {
		mode, err := r.u32()
		if err != nil {
			return err
		}
		switch wasm.DataMode(mode) {
		case wasm.DataModeActiveMemory0:
			addr, err := decodeI32OffsetExpr(r)
			if err != nil {
				return err
			}
			n, err := r.u32()
			if err != nil {
				return err
			}
			bytes, err := r.bytes(n)
			if err != nil {
				return err
			}
			d.data = append(d.data, wasm.DataSegment{Addr: uint32(addr), Data: bytes})
		case wasm.DataModePassive, wasm.DataModeActive:
			return ErrUnsupportedDataMode{Mode: byte(mode)}
		default:
			return ErrUnknownDataMode{Byte: byte(mode)}
		}
	}
	return nil
}

// decodeI32OffsetExpr decodes a constant expression that must reduce to a
// single i32.const (the only offset expression this core's data segments
// use).
func decodeI32OffsetExpr(r *reader) (int32, error) {
	body, err := decodeBody(r)
	if err != nil {
		return 0, err
	}
	if len(body) != 1 || body[0].Opcode != wasm.OpcodeI32Const {
		return 0, ErrInvalidConstExpr{Reason: "expected a single i32.const"}
	}
	return body[0].I32Value, nil
}

// build assembles the decoded sections into a Module, laying out the
// function table with imports first (per spec.md's index space rule) and
// matching code-section bodies to their function-section declared types in
// order.
func (d *moduleDecoder) build() (*wasm.Module, error) {
	m := &wasm.Module{Types: d.types}

	funcs := make([]*wasm.Function, 0, len(d.imports)+len(d.codeBodies))
	for _, imp := range d.imports {
		if imp.Kind != wasm.ExportKindFunction {
			continue
		}
		sig, err := d.typeAt(imp.DescFunc)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, &wasm.Function{
			Signature: sig,
			IsImport:  true,
			ImportID:  wasm.Identifier{Module: imp.Module, Field: imp.Field},
			Index:     uint32(len(funcs)),
		})
	}

	if len(d.funcTypeIdx) != len(d.codeBodies) {
		return nil, ErrInvalidModule{Reason: "function and code section counts differ"}
	}
	for i, typeIdx := range d.funcTypeIdx {
		sig, err := d.typeAt(typeIdx)
		if err != nil {
			return nil, err
		}
		code := d.codeBodies[i]
		funcs = append(funcs, &wasm.Function{
			Signature: sig,
			Locals:    code.Locals,
			Body:      code.Body,
			Index:     uint32(len(funcs)),
		})
	}

	for _, exp := range d.exports {
		if exp.Kind == wasm.ExportKindFunction && int(exp.Index) < len(funcs) {
			funcs[exp.Index].ExportName = exp.Name
		}
		if exp.Kind == wasm.ExportKindMemory && d.memory != nil {
			d.memory.ExportName = exp.Name
		}
	}

	if d.memory != nil {
		d.memory.Init = d.data
	}

	m.Functions = funcs
	m.Memory = d.memory
	return m, nil
}

func (d *moduleDecoder) typeAt(idx uint32) (*wasm.FunctionType, error) {
	if int(idx) >= len(d.types) {
		return nil, ErrInvalidModule{Reason: "type index out of range"}
	}
	return d.types[idx], nil
}
