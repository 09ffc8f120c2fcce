package binary

import "github.com/tinywasm/tinywasm/internal/wasm"

// decodeInstrList decodes instructions until it hits End (0x0B) or Else
// (0x05), consuming and returning that terminator byte.
func decodeInstrList(r *reader) ([]wasm.Instruction, byte, error) {
	var list []wasm.Instruction
	for {
		op, err := r.byte()
		if err != nil {
			return nil, 0, err
		}
		if op == byte(wasm.OpcodeEnd) || op == byte(wasm.OpcodeElse) {
			return list, op, nil
		}
		instr, err := decodeInstr(r, op)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, instr)
	}
}

// decodeBody decodes a function body's instruction list and requires it be
// terminated by End (used everywhere except inside an If's then-body,
// which may also legally terminate in Else).
func decodeBody(r *reader) ([]wasm.Instruction, error) {
	body, term, err := decodeInstrList(r)
	if err != nil {
		return nil, err
	}
	if term != byte(wasm.OpcodeEnd) {
		return nil, ErrExpectedOpcode{Expected: "end"}
	}
	return body, nil
}

// noPayloadOpcodes are instructions with no operands beyond the opcode
// byte itself.
var noPayloadOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeUnreachable: true, wasm.OpcodeNop: true, wasm.OpcodeReturn: true,
	wasm.OpcodeDrop: true, wasm.OpcodeSelect: true,

	wasm.OpcodeI32Eqz: true, wasm.OpcodeI32Eq: true, wasm.OpcodeI32Ne: true,
	wasm.OpcodeI32LtS: true, wasm.OpcodeI32LtU: true, wasm.OpcodeI32GtS: true, wasm.OpcodeI32GtU: true,
	wasm.OpcodeI32LeS: true, wasm.OpcodeI32LeU: true, wasm.OpcodeI32GeS: true, wasm.OpcodeI32GeU: true,

	wasm.OpcodeI64Eqz: true, wasm.OpcodeI64Eq: true, wasm.OpcodeI64Ne: true,
	wasm.OpcodeI64LtS: true, wasm.OpcodeI64LtU: true, wasm.OpcodeI64GtS: true, wasm.OpcodeI64GtU: true,
	wasm.OpcodeI64LeS: true, wasm.OpcodeI64LeU: true, wasm.OpcodeI64GeS: true, wasm.OpcodeI64GeU: true,

	wasm.OpcodeF32Eq: true, wasm.OpcodeF32Ne: true, wasm.OpcodeF32Lt: true,
	wasm.OpcodeF32Gt: true, wasm.OpcodeF32Le: true, wasm.OpcodeF32Ge: true,

	wasm.OpcodeF64Eq: true, wasm.OpcodeF64Ne: true, wasm.OpcodeF64Lt: true,
	wasm.OpcodeF64Gt: true, wasm.OpcodeF64Le: true, wasm.OpcodeF64Ge: true,

	wasm.OpcodeI32Clz: true, wasm.OpcodeI32Ctz: true, wasm.OpcodeI32Popcnt: true,
	wasm.OpcodeI32Add: true, wasm.OpcodeI32Sub: true, wasm.OpcodeI32Mul: true,
	wasm.OpcodeI32DivS: true, wasm.OpcodeI32DivU: true, wasm.OpcodeI32RemS: true, wasm.OpcodeI32RemU: true,
	wasm.OpcodeI32And: true, wasm.OpcodeI32Or: true, wasm.OpcodeI32Xor: true,
	wasm.OpcodeI32Shl: true, wasm.OpcodeI32ShrS: true, wasm.OpcodeI32ShrU: true,
	wasm.OpcodeI32Rotl: true, wasm.OpcodeI32Rotr: true,

	wasm.OpcodeI64Clz: true, wasm.OpcodeI64Ctz: true, wasm.OpcodeI64Popcnt: true,
	wasm.OpcodeI64Add: true, wasm.OpcodeI64Sub: true, wasm.OpcodeI64Mul: true,
	wasm.OpcodeI64DivS: true, wasm.OpcodeI64DivU: true, wasm.OpcodeI64RemS: true, wasm.OpcodeI64RemU: true,
	wasm.OpcodeI64And: true, wasm.OpcodeI64Or: true, wasm.OpcodeI64Xor: true,
	wasm.OpcodeI64Shl: true, wasm.OpcodeI64ShrS: true, wasm.OpcodeI64ShrU: true,
	wasm.OpcodeI64Rotl: true, wasm.OpcodeI64Rotr: true,

	wasm.OpcodeF32Abs: true, wasm.OpcodeF32Neg: true, wasm.OpcodeF32Ceil: true, wasm.OpcodeF32Floor: true,
	wasm.OpcodeF32Trunc: true, wasm.OpcodeF32Nearest: true, wasm.OpcodeF32Sqrt: true,
	wasm.OpcodeF32Add: true, wasm.OpcodeF32Sub: true, wasm.OpcodeF32Mul: true, wasm.OpcodeF32Div: true,
	wasm.OpcodeF32Min: true, wasm.OpcodeF32Max: true, wasm.OpcodeF32Copysign: true,

	wasm.OpcodeF64Abs: true, wasm.OpcodeF64Neg: true, wasm.OpcodeF64Ceil: true, wasm.OpcodeF64Floor: true,
	wasm.OpcodeF64Trunc: true, wasm.OpcodeF64Nearest: true, wasm.OpcodeF64Sqrt: true,
	wasm.OpcodeF64Add: true, wasm.OpcodeF64Sub: true, wasm.OpcodeF64Mul: true, wasm.OpcodeF64Div: true,
	wasm.OpcodeF64Min: true, wasm.OpcodeF64Max: true, wasm.OpcodeF64Copysign: true,

	wasm.OpcodeI32WrapI64: true,
	wasm.OpcodeI32TruncF32S: true, wasm.OpcodeI32TruncF32U: true,
	wasm.OpcodeI32TruncF64S: true, wasm.OpcodeI32TruncF64U: true,
	wasm.OpcodeI64ExtendI32S: true, wasm.OpcodeI64ExtendI32U: true,
	wasm.OpcodeI64TruncF32S: true, wasm.OpcodeI64TruncF32U: true,
	wasm.OpcodeI64TruncF64S: true, wasm.OpcodeI64TruncF64U: true,
	wasm.OpcodeF32ConvertI32S: true, wasm.OpcodeF32ConvertI32U: true,
	wasm.OpcodeF32ConvertI64S: true, wasm.OpcodeF32ConvertI64U: true,
	wasm.OpcodeF32DemoteF64: true,
	wasm.OpcodeF64ConvertI32S: true, wasm.OpcodeF64ConvertI32U: true,
	wasm.OpcodeF64ConvertI64S: true, wasm.OpcodeF64ConvertI64U: true,
	wasm.OpcodeF64PromoteF32:     true,
	wasm.OpcodeI32ReinterpretF32: true, wasm.OpcodeI64ReinterpretF64: true,
	wasm.OpcodeF32ReinterpretI32: true, wasm.OpcodeF64ReinterpretI64: true,

	wasm.OpcodeI32Extend8S: true, wasm.OpcodeI32Extend16S: true,
	wasm.OpcodeI64Extend8S: true, wasm.OpcodeI64Extend16S: true, wasm.OpcodeI64Extend32S: true,

	wasm.OpcodeRefIsNull: true,
}

// memArgOpcodes are the memory load/store instructions, all sharing the
// (align, offset) payload shape.
var memArgOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Load: true, wasm.OpcodeI64Load: true, wasm.OpcodeF32Load: true, wasm.OpcodeF64Load: true,
	wasm.OpcodeI32Load8S: true, wasm.OpcodeI32Load8U: true, wasm.OpcodeI32Load16S: true, wasm.OpcodeI32Load16U: true,
	wasm.OpcodeI64Load8S: true, wasm.OpcodeI64Load8U: true, wasm.OpcodeI64Load16S: true, wasm.OpcodeI64Load16U: true,
	wasm.OpcodeI64Load32S: true, wasm.OpcodeI64Load32U: true,
	wasm.OpcodeI32Store: true, wasm.OpcodeI64Store: true, wasm.OpcodeF32Store: true, wasm.OpcodeF64Store: true,
	wasm.OpcodeI32Store8: true, wasm.OpcodeI32Store16: true,
	wasm.OpcodeI64Store8: true, wasm.OpcodeI64Store16: true, wasm.OpcodeI64Store32: true,
}

func decodeInstr(r *reader, opByte byte) (wasm.Instruction, error) {
	op := wasm.Opcode(opByte)

	switch op {
	case wasm.OpcodeBlock, wasm.OpcodeLoop:
		bt, err := r.byte()
		if err != nil {
			return wasm.Instruction{}, err
		}
		body, err := decodeBody(r)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, BlockType: bt, Then: body}, nil

	case wasm.OpcodeIf:
		bt, err := r.byte()
		if err != nil {
			return wasm.Instruction{}, err
		}
		thenBody, term, err := decodeInstrList(r)
		if err != nil {
			return wasm.Instruction{}, err
		}
		var elseBody []wasm.Instruction
		if term == byte(wasm.OpcodeElse) {
			elseBody, err = decodeBody(r)
			if err != nil {
				return wasm.Instruction{}, err
			}
		}
		return wasm.Instruction{Opcode: op, BlockType: bt, Then: thenBody, Else: elseBody}, nil

	case wasm.OpcodeBr, wasm.OpcodeBrIf:
		idx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, LabelIndex: idx}, nil

	case wasm.OpcodeBrTable:
		count, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		labels := make([]uint32, 0, count+1)
		for i := uint32(0); i < count; i++ {
			l, err := r.u32()
			if err != nil {
				return wasm.Instruction{}, err
			}
			labels = append(labels, l)
		}
		def, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		labels = append(labels, def)
		return wasm.Instruction{Opcode: op, LabelIndexes: labels}, nil

	case wasm.OpcodeCall:
		idx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, FunctionIndex: idx}, nil

	case wasm.OpcodeCallIndirect:
		typeIdx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		tableIdx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, TypeIndex: typeIdx, TableIndex: tableIdx}, nil

	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee:
		idx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, LocalIndex: idx}, nil

	case wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		idx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, GlobalIndex: idx}, nil

	case wasm.OpcodeTableGet, wasm.OpcodeTableSet:
		idx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, TableIndex: idx}, nil

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		if _, err := r.byte(); err != nil { // reserved 0x00
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op}, nil

	case wasm.OpcodeI32Const:
		v, err := r.i32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, I32Value: v}, nil

	case wasm.OpcodeI64Const:
		v, err := r.i64()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, I64Value: v}, nil

	case wasm.OpcodeF32Const:
		v, err := r.f32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, F32Value: v}, nil

	case wasm.OpcodeF64Const:
		v, err := r.f64()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, F64Value: v}, nil

	case wasm.OpcodeRefNull:
		if _, err := r.byte(); err != nil { // reftype
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op}, nil

	case wasm.OpcodeRefFunc:
		idx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, FunctionIndex: idx}, nil
	}

	if memArgOpcodes[op] {
		align, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		offset, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Mem: wasm.MemArg{Align: align, Offset: offset}}, nil
	}

	if noPayloadOpcodes[op] {
		return wasm.Instruction{Opcode: op}, nil
	}

	return wasm.Instruction{}, ErrUnknownOpcode{Byte: opByte}
}
