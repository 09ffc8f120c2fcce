package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywasm/tinywasm/internal/wasm"
)

func TestDecodeModule_Empty(t *testing.T) {
	m, err := DecodeModule(append(magic[:], version[:]...))
	require.NoError(t, err)
	assert.Empty(t, m.Types)
	assert.Empty(t, m.Functions)
	assert.Nil(t, m.Memory)
}

func TestDecodeModule_Errors(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty input":        {},
		"truncated magic":    {0x00, 0x61, 0x73},
		"wrong magic":        {0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00},
		"illegal version":    {0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00},
		"unknown section id": {0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, 0xFF, 0x00},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeModule(data)
			require.Error(t, err)
		})
	}
}

func TestDecodeModule_TypeFunctionExportRoundTrip(t *testing.T) {
	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	in := &wasm.Module{
		Types: []*wasm.FunctionType{sig},
		Functions: []*wasm.Function{
			{
				Signature:  sig,
				ExportName: "add",
				Body: []wasm.Instruction{
					{Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
					{Opcode: wasm.OpcodeLocalGet, LocalIndex: 1},
					{Opcode: wasm.OpcodeI32Add},
				},
			},
		},
	}

	encoded := EncodeModule(in)
	out, err := DecodeModule(encoded)
	require.NoError(t, err)

	require.Len(t, out.Functions, 1)
	fn := out.Functions[0]
	assert.Equal(t, "add", fn.ExportName)
	assert.Equal(t, sig.Params, fn.Signature.Params)
	assert.Equal(t, sig.Results, fn.Signature.Results)
	require.Len(t, fn.Body, 3)
	assert.Equal(t, wasm.OpcodeI32Add, fn.Body[2].Opcode)
}

func TestDecodeModule_MemoryAndDataSegment(t *testing.T) {
	in := &wasm.Module{
		Memory: &wasm.MemoryBlueprint{
			MinPages: 1, HasMax: true, MaxPages: 2, ExportName: "memory",
			Init: []wasm.DataSegment{{Addr: 8, Data: []byte("hi")}},
		},
	}

	out, err := DecodeModule(EncodeModule(in))
	require.NoError(t, err)
	require.NotNil(t, out.Memory)
	assert.Equal(t, uint32(1), out.Memory.MinPages)
	assert.Equal(t, uint32(2), out.Memory.MaxPages)
	assert.True(t, out.Memory.HasMax)
	assert.Equal(t, "memory", out.Memory.ExportName)
	require.Len(t, out.Memory.Init, 1)
	assert.Equal(t, uint32(8), out.Memory.Init[0].Addr)
	assert.Equal(t, []byte("hi"), out.Memory.Init[0].Data)
}

func TestDecodeModule_ImportedFunction(t *testing.T) {
	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: nil}
	in := &wasm.Module{
		Types: []*wasm.FunctionType{sig},
		Functions: []*wasm.Function{
			{Signature: sig, IsImport: true, ImportID: wasm.Identifier{Module: "wasi_snapshot_preview1", Field: "fd_write"}},
			{Signature: sig, ExportName: "_start", Body: []wasm.Instruction{
				{Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
				{Opcode: wasm.OpcodeCall, FunctionIndex: 0},
			}},
		},
	}

	out, err := DecodeModule(EncodeModule(in))
	require.NoError(t, err)
	require.Len(t, out.Functions, 2)
	assert.True(t, out.Functions[0].IsImport)
	assert.Equal(t, "wasi_snapshot_preview1.fd_write", out.Functions[0].ImportID.String())
	assert.False(t, out.Functions[1].IsImport)
	start, ok := out.StartFunction()
	require.True(t, ok)
	assert.Equal(t, "_start", start.ExportName)
}

func TestDecodeModule_BlockIfLoopNesting(t *testing.T) {
	sig := &wasm.FunctionType{}
	in := &wasm.Module{
		Types: []*wasm.FunctionType{sig},
		Functions: []*wasm.Function{
			{
				Signature:  sig,
				ExportName: "control",
				Body: []wasm.Instruction{
					{Opcode: wasm.OpcodeI32Const, I32Value: 1},
					{Opcode: wasm.OpcodeIf, BlockType: 0x40,
						Then: []wasm.Instruction{{Opcode: wasm.OpcodeNop}},
						Else: []wasm.Instruction{{Opcode: wasm.OpcodeUnreachable}},
					},
					{Opcode: wasm.OpcodeLoop, BlockType: 0x40, Then: []wasm.Instruction{
						{Opcode: wasm.OpcodeBr, LabelIndex: 0},
					}},
				},
			},
		},
	}

	out, err := DecodeModule(EncodeModule(in))
	require.NoError(t, err)
	body := out.Functions[0].Body
	require.Len(t, body, 3)

	ifInstr := body[1]
	assert.Equal(t, wasm.OpcodeIf, ifInstr.Opcode)
	require.Len(t, ifInstr.Then, 1)
	require.Len(t, ifInstr.Else, 1)
	assert.Equal(t, wasm.OpcodeNop, ifInstr.Then[0].Opcode)
	assert.Equal(t, wasm.OpcodeUnreachable, ifInstr.Else[0].Opcode)

	loopInstr := body[2]
	assert.Equal(t, wasm.OpcodeLoop, loopInstr.Opcode)
	require.Len(t, loopInstr.Then, 1)
	assert.Equal(t, wasm.OpcodeBr, loopInstr.Then[0].Opcode)
}

func TestDecodeModule_ConstantsRoundTrip(t *testing.T) {
	sig := &wasm.FunctionType{}
	in := &wasm.Module{
		Types: []*wasm.FunctionType{sig},
		Functions: []*wasm.Function{
			{Signature: sig, ExportName: "consts", Body: []wasm.Instruction{
				{Opcode: wasm.OpcodeI32Const, I32Value: -7},
				{Opcode: wasm.OpcodeI64Const, I64Value: 1 << 40},
				{Opcode: wasm.OpcodeF32Const, F32Value: 1.5},
				{Opcode: wasm.OpcodeF64Const, F64Value: 2.25},
			}},
		},
	}

	out, err := DecodeModule(EncodeModule(in))
	require.NoError(t, err)
	body := out.Functions[0].Body
	require.Len(t, body, 4)
	assert.Equal(t, int32(-7), body[0].I32Value)
	assert.Equal(t, int64(1<<40), body[1].I64Value)
	assert.Equal(t, float32(1.5), body[2].F32Value)
	assert.Equal(t, 2.25, body[3].F64Value)
}

func TestDecodeModule_UnknownOpcode(t *testing.T) {
	// A minimal module whose single function body contains an
	// unrecognized instruction byte (0xEE is not in the catalog).
	data := append([]byte{}, magic[:]...)
	data = append(data, version[:]...)
	data = append(data, SectionIDType, 0x04, 0x01, 0x60, 0x00, 0x00)               // one () -> () type
	data = append(data, SectionIDFunction, 0x02, 0x01, 0x00)                       // one function, type 0
	data = append(data, SectionIDCode, 0x04, 0x01, 0x02, 0x00, 0xEE)               // body: no locals, bad opcode
	_, err := DecodeModule(data)
	require.Error(t, err)
	var unk ErrUnknownOpcode
	require.ErrorAs(t, err, &unk)
	assert.Equal(t, byte(0xEE), unk.Byte)
}

func TestDecodeModule_MultipleMemoriesRejected(t *testing.T) {
	data := append([]byte{}, magic[:]...)
	data = append(data, version[:]...)
	data = append(data, SectionIDMemory, 0x05, 0x02, 0x00, 0x01, 0x00, 0x01)
	_, err := DecodeModule(data)
	require.Error(t, err)
	var multi ErrMultipleMemories
	require.ErrorAs(t, err, &multi)
}
