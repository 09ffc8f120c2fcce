package wasi_snapshot_preview1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywasm/tinywasm/internal/engine/interpreter"
	"github.com/tinywasm/tinywasm/internal/wasm"
)

// TestFdWrite_Echo mirrors spec.md §8 scenario 6: a data segment places
// "Hi\n" at address 8, an iovec at address 0 points at it, and the start
// function calls fd_write(1, 0, 1, 16) then drops the errno.
func TestFdWrite_Echo(t *testing.T) {
	fdWriteSig := &wasm.FunctionType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	}
	startSig := &wasm.FunctionType{}

	iovec := make([]byte, 8)
	// iovec[0].offset = 8, iovec[0].length = 3
	iovec[0] = 8
	iovec[4] = 3

	m := &wasm.Module{
		Types: []*wasm.FunctionType{fdWriteSig, startSig},
		Memory: &wasm.MemoryBlueprint{
			MinPages: 1,
			Init: []wasm.DataSegment{
				{Addr: 0, Data: iovec},
				{Addr: 8, Data: []byte("Hi\n")},
			},
		},
		Functions: []*wasm.Function{
			{Signature: fdWriteSig, IsImport: true, ImportID: wasm.Identifier{Module: ModuleName, Field: FunctionFdWrite}},
			{
				Signature:  startSig,
				ExportName: "_start",
				Index:      1,
				Body: []wasm.Instruction{
					{Opcode: wasm.OpcodeI32Const, I32Value: 1},  // fd
					{Opcode: wasm.OpcodeI32Const, I32Value: 0},  // iovs
					{Opcode: wasm.OpcodeI32Const, I32Value: 1},  // iovs_len
					{Opcode: wasm.OpcodeI32Const, I32Value: 16}, // result_ptr
					{Opcode: wasm.OpcodeCall, FunctionIndex: 0},
					{Opcode: wasm.OpcodeDrop},
				},
			},
		},
	}

	var stdout bytes.Buffer
	hostFuncs := NewHostFunctions(Writer{Stdout: &stdout, Stderr: &bytes.Buffer{}})

	ins, err := interpreter.Instantiate(m, hostFuncs)
	require.NoError(t, err)
	require.NoError(t, ins.Start())

	assert.Equal(t, "Hi\n", stdout.String())

	written, ok := ins.Memory().ReadUint32Le(16)
	require.True(t, ok)
	assert.Equal(t, uint32(3), written)

	assert.Empty(t, ins.OperandStack())
}

func TestFdWrite_UnknownFdIsBadf(t *testing.T) {
	fdWriteSig := &wasm.FunctionType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	}
	startSig := &wasm.FunctionType{}

	m := &wasm.Module{
		Memory: &wasm.MemoryBlueprint{MinPages: 1},
		Functions: []*wasm.Function{
			{Signature: fdWriteSig, IsImport: true, ImportID: wasm.Identifier{Module: ModuleName, Field: FunctionFdWrite}},
			{
				Signature:  startSig,
				ExportName: "_start",
				Index:      1,
				Body: []wasm.Instruction{
					{Opcode: wasm.OpcodeI32Const, I32Value: 99}, // unknown fd
					{Opcode: wasm.OpcodeI32Const, I32Value: 0},
					{Opcode: wasm.OpcodeI32Const, I32Value: 0},
					{Opcode: wasm.OpcodeI32Const, I32Value: 0},
					{Opcode: wasm.OpcodeCall, FunctionIndex: 0},
				},
			},
		},
	}

	hostFuncs := NewHostFunctions(Writer{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
	ins, err := interpreter.Instantiate(m, hostFuncs)
	require.NoError(t, err)
	require.NoError(t, ins.Start())

	vals := ins.OperandStack()
	require.Len(t, vals, 1)
	assert.Equal(t, uint32(ErrnoBadf), vals[0].U32())
}
