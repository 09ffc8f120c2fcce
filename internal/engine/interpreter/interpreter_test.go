package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasmruntime"
)

var emptySig = &wasm.FunctionType{}

func startFunc(body []wasm.Instruction, locals ...wasm.ValueType) *wasm.Function {
	return &wasm.Function{Signature: emptySig, ExportName: "_start", Locals: locals, Body: body, Index: 0}
}

func instantiate(t *testing.T, m *wasm.Module, hostFuncs map[string]HostFunction) *Instance {
	t.Helper()
	ins, err := Instantiate(m, hostFuncs)
	require.NoError(t, err)
	return ins
}

func TestInstance_NoStart(t *testing.T) {
	ins := instantiate(t, &wasm.Module{}, nil)
	err := ins.Start()
	require.Error(t, err)
	assert.Equal(t, wasmruntime.NoStart{}, err)
}

func TestInstance_ConstantStore(t *testing.T) {
	m := &wasm.Module{
		Memory: &wasm.MemoryBlueprint{MinPages: 1},
		Functions: []*wasm.Function{
			startFunc([]wasm.Instruction{
				{Opcode: wasm.OpcodeI32Const, I32Value: 0},
				{Opcode: wasm.OpcodeI32Const, I32Value: 0x41},
				{Opcode: wasm.OpcodeI32Store, Mem: wasm.MemArg{Align: 0, Offset: 0}},
			}),
		},
	}
	ins := instantiate(t, m, nil)
	require.NoError(t, ins.Start())

	b, ok := ins.Memory().Slice(0, 4)
	require.True(t, ok)
	assert.Equal(t, []byte{0x41, 0x00, 0x00, 0x00}, b)
	assert.Equal(t, 0, ins.stack.len())
}

func TestInstance_Arithmetic(t *testing.T) {
	m := &wasm.Module{
		Functions: []*wasm.Function{
			startFunc([]wasm.Instruction{
				{Opcode: wasm.OpcodeI32Const, I32Value: 5},
				{Opcode: wasm.OpcodeI32Const, I32Value: 7},
				{Opcode: wasm.OpcodeI32Add},
			}),
		},
	}
	ins := instantiate(t, m, nil)
	require.NoError(t, ins.Start())

	vals := ins.OperandStack()
	require.Len(t, vals, 1)
	assert.Equal(t, int32(12), vals[0].I32())
}

func TestInstance_DivisionTraps(t *testing.T) {
	t.Run("signed overflow", func(t *testing.T) {
		m := &wasm.Module{
			Functions: []*wasm.Function{
				startFunc([]wasm.Instruction{
					{Opcode: wasm.OpcodeI32Const, I32Value: -2147483648},
					{Opcode: wasm.OpcodeI32Const, I32Value: -1},
					{Opcode: wasm.OpcodeI32DivS},
				}),
			},
		}
		ins := instantiate(t, m, nil)
		err := ins.Start()
		require.Error(t, err)
		assert.Equal(t, wasmruntime.IntegerOverflow{}, err)
	})

	t.Run("divide by zero", func(t *testing.T) {
		m := &wasm.Module{
			Functions: []*wasm.Function{
				startFunc([]wasm.Instruction{
					{Opcode: wasm.OpcodeI32Const, I32Value: 1},
					{Opcode: wasm.OpcodeI32Const, I32Value: 0},
					{Opcode: wasm.OpcodeI32DivS},
				}),
			},
		}
		ins := instantiate(t, m, nil)
		err := ins.Start()
		require.Error(t, err)
		assert.Equal(t, wasmruntime.DivideByZero{}, err)
	})
}

func TestInstance_I32Eqz(t *testing.T) {
	run := func(v int32) int32 {
		m := &wasm.Module{
			Functions: []*wasm.Function{
				startFunc([]wasm.Instruction{
					{Opcode: wasm.OpcodeI32Const, I32Value: v},
					{Opcode: wasm.OpcodeI32Eqz},
				}),
			},
		}
		ins := instantiate(t, m, nil)
		require.NoError(t, ins.Start())
		return ins.OperandStack()[0].I32()
	}
	assert.Equal(t, int32(1), run(0))
	assert.Equal(t, int32(0), run(42))
}

func TestInstance_StoreOutOfBounds(t *testing.T) {
	m := &wasm.Module{
		Memory: &wasm.MemoryBlueprint{MinPages: 1},
		Functions: []*wasm.Function{
			startFunc([]wasm.Instruction{
				{Opcode: wasm.OpcodeI32Const, I32Value: int32(wasm.PageSize - 3)},
				{Opcode: wasm.OpcodeI32Const, I32Value: 1},
				{Opcode: wasm.OpcodeI32Store},
			}),
		},
	}
	ins := instantiate(t, m, nil)
	err := ins.Start()
	require.Error(t, err)
	var oob wasmruntime.InvalidMemoryArea
	require.ErrorAs(t, err, &oob)
}

func TestInstance_BlockIfLoopBranching(t *testing.T) {
	// Count down a local from 3 to 0 using a loop with a conditional branch
	// back to its own top, then push the final local value.
	locals := []wasm.ValueType{wasm.ValueTypeI32}
	body := []wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, I32Value: 3},
		{Opcode: wasm.OpcodeLocalSet, LocalIndex: 0},
		{Opcode: wasm.OpcodeLoop, BlockType: 0x40, Then: []wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
			{Opcode: wasm.OpcodeI32Const, I32Value: 1},
			{Opcode: wasm.OpcodeI32Sub},
			{Opcode: wasm.OpcodeLocalTee, LocalIndex: 0},
			{Opcode: wasm.OpcodeI32Const, I32Value: 0},
			{Opcode: wasm.OpcodeI32GtS},
			{Opcode: wasm.OpcodeBrIf, LabelIndex: 0},
		}},
		{Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
	}
	m := &wasm.Module{Functions: []*wasm.Function{startFunc(body, locals...)}}
	ins := instantiate(t, m, nil)
	require.NoError(t, ins.Start())

	vals := ins.OperandStack()
	require.Len(t, vals, 1)
	assert.Equal(t, int32(0), vals[0].I32())
}

func TestInstance_IfTakesElseBranch(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, I32Value: 0},
		{Opcode: wasm.OpcodeIf, BlockType: 0x40,
			Then: []wasm.Instruction{{Opcode: wasm.OpcodeI32Const, I32Value: 1}},
			Else: []wasm.Instruction{{Opcode: wasm.OpcodeI32Const, I32Value: 2}},
		},
	}
	m := &wasm.Module{Functions: []*wasm.Function{startFunc(body)}}
	ins := instantiate(t, m, nil)
	require.NoError(t, ins.Start())
	assert.Equal(t, int32(2), ins.OperandStack()[0].I32())
}

func TestInstance_CallHostFunction(t *testing.T) {
	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}
	var got int32
	host := map[string]HostFunction{
		"env.record": {Signature: sig, Func: func(ins *Instance) error {
			v, err := ins.stack.popI32()
			if err != nil {
				return err
			}
			got = v
			return nil
		}},
	}
	m := &wasm.Module{
		Types: []*wasm.FunctionType{sig, emptySig},
		Functions: []*wasm.Function{
			{Signature: sig, IsImport: true, ImportID: wasm.Identifier{Module: "env", Field: "record"}, Index: 0},
			func() *wasm.Function {
				f := startFunc([]wasm.Instruction{
					{Opcode: wasm.OpcodeI32Const, I32Value: 99},
					{Opcode: wasm.OpcodeCall, FunctionIndex: 0},
				})
				f.Index = 1
				return f
			}(),
		},
	}
	ins := instantiate(t, m, host)
	require.NoError(t, ins.Start())
	assert.Equal(t, int32(99), got)
}

func TestInstance_UnresolvedImport(t *testing.T) {
	sig := &wasm.FunctionType{}
	m := &wasm.Module{
		Functions: []*wasm.Function{
			{Signature: sig, IsImport: true, ImportID: wasm.Identifier{Module: "env", Field: "missing"}},
		},
	}
	_, err := Instantiate(m, nil)
	require.Error(t, err)
	assert.Equal(t, wasmruntime.UnresolvedImport{Module: "env", Field: "missing"}, err)
}

func TestInstance_SignatureMismatch(t *testing.T) {
	declared := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}
	actual := &wasm.FunctionType{}
	m := &wasm.Module{
		Functions: []*wasm.Function{
			{Signature: declared, IsImport: true, ImportID: wasm.Identifier{Module: "env", Field: "f"}},
		},
	}
	_, err := Instantiate(m, map[string]HostFunction{
		"env.f": {Signature: actual, Func: func(*Instance) error { return nil }},
	})
	require.Error(t, err)
	var mismatch wasmruntime.SignatureMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestInstance_CallStackOverflow(t *testing.T) {
	m := &wasm.Module{
		Functions: []*wasm.Function{
			func() *wasm.Function {
				f := startFunc([]wasm.Instruction{{Opcode: wasm.OpcodeCall, FunctionIndex: 0}})
				f.Index = 0
				return f
			}(),
		},
	}
	ins := instantiate(t, m, nil)
	err := ins.Start()
	require.Error(t, err)
	assert.Equal(t, wasmruntime.CallStackOverflow{}, err)
}

func TestInstance_MemorySizeAndGrow(t *testing.T) {
	m := &wasm.Module{
		Memory: &wasm.MemoryBlueprint{MinPages: 1, HasMax: true, MaxPages: 2},
		Functions: []*wasm.Function{
			startFunc([]wasm.Instruction{
				{Opcode: wasm.OpcodeI32Const, I32Value: 1},
				{Opcode: wasm.OpcodeMemoryGrow},
				{Opcode: wasm.OpcodeMemorySize},
			}),
		},
	}
	ins := instantiate(t, m, nil)
	require.NoError(t, ins.Start())
	vals := ins.OperandStack()
	require.Len(t, vals, 2)
	assert.Equal(t, int32(1), vals[0].I32()) // previous page count returned by grow
	assert.Equal(t, int32(2), vals[1].I32()) // new page count
}

func TestInstance_GlobalGetUnimplemented(t *testing.T) {
	m := &wasm.Module{
		Functions: []*wasm.Function{
			startFunc([]wasm.Instruction{{Opcode: wasm.OpcodeGlobalGet, GlobalIndex: 0}}),
		},
	}
	ins := instantiate(t, m, nil)
	err := ins.Start()
	require.Error(t, err)
	var unimpl wasmruntime.Unimplemented
	require.ErrorAs(t, err, &unimpl)
	assert.Equal(t, "global.get", unimpl.Instruction)
}
