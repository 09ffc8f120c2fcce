package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasm/binary"
)

func TestDoMain_MissingArgs(t *testing.T) {
	assert.Equal(t, 1, doMain(nil))
	assert.Equal(t, 1, doMain([]string{"run"}))
	assert.Equal(t, 1, doMain([]string{"bogus", "x.wasm"}))
}

func TestDoMain_RunsStartAndSucceeds(t *testing.T) {
	sig := &wasm.FunctionType{}
	m := &wasm.Module{
		Types: []*wasm.FunctionType{sig},
		Functions: []*wasm.Function{
			{Signature: sig, ExportName: "_start", Body: []wasm.Instruction{
				{Opcode: wasm.OpcodeI32Const, I32Value: 1},
				{Opcode: wasm.OpcodeDrop},
			}},
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "mod.wasm")
	require.NoError(t, os.WriteFile(path, binary.EncodeModule(m), 0o644))

	assert.Equal(t, 0, doMain([]string{"run", path}))
}

func TestDoMain_TrapExitsNonZero(t *testing.T) {
	sig := &wasm.FunctionType{}
	m := &wasm.Module{
		Types: []*wasm.FunctionType{sig},
		Functions: []*wasm.Function{
			{Signature: sig, ExportName: "_start", Body: []wasm.Instruction{
				{Opcode: wasm.OpcodeUnreachable},
			}},
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "mod.wasm")
	require.NoError(t, os.WriteFile(path, binary.EncodeModule(m), 0o644))

	assert.Equal(t, 1, doMain([]string{"run", path}))
}

func TestDoMain_MissingFile(t *testing.T) {
	assert.Equal(t, 1, doMain([]string{"run", "/no/such/file.wasm"}))
}
