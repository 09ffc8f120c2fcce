// Package wasi_snapshot_preview1 implements the one WASI function this
// core requires, fd_write, plus the names of the rest of the surface for
// callers that want to extend it (spec.md §4.3).
package wasi_snapshot_preview1

import (
	"io"

	"github.com/tinywasm/tinywasm/internal/engine/interpreter"
	"github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasmruntime"
)

// ModuleName is the WASI preview1 import module name every function below
// is registered under.
const ModuleName = "wasi_snapshot_preview1"

// Function names this core implements or names for a future host
// registration. Only FunctionFdWrite is wired to a host function by
// NewHostFunctions; the rest are named so an embedder extending this
// package keys its own registration correctly (SPEC_FULL.md §4.3) — none
// are implemented here, as this core models no filesystem, clock, process
// exit, or randomness.
const (
	FunctionFdWrite      = "fd_write"
	FunctionFdClose      = "fd_close"
	FunctionFdRead       = "fd_read"
	FunctionFdSeek       = "fd_seek"
	FunctionProcExit     = "proc_exit"
	FunctionRandomGet    = "random_get"
	FunctionArgsSizesGet = "args_sizes_get"
	FunctionArgsGet      = "args_get"
	FunctionEnvironSizes = "environ_sizes_get"
	FunctionEnvironGet   = "environ_get"
	FunctionClockTimeGet = "clock_time_get"
)

// Errno is the WASI error code pushed as fd_write's i32 result.
type Errno = uint32

const (
	ErrnoSuccess Errno = 0
	ErrnoBadf    Errno = 8
	ErrnoFault   Errno = 21
	ErrnoIo      Errno = 29
)

// Writer resolves a WASI file descriptor to a host stream. Fd 1 is
// standard output and fd 2 is standard error, matching the core's fixed
// fd_write behavior (spec.md §4.3); any other fd fails with ErrnoBadf.
type Writer struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (w Writer) resolve(fd uint32) io.Writer {
	switch fd {
	case 1:
		return w.Stdout
	case 2:
		return w.Stderr
	default:
		return nil
	}
}

// fdWriteSignature is fd_write's (fd, iovs, iovs_len, result_ptr) -> errno
// shape.
var fdWriteSignature = &wasm.FunctionType{
	Params:  []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32},
	Results: []wasm.ValueType{wasm.ValueTypeI32},
}

// NewHostFunctions returns the host function table keyed by "module.field"
// as interpreter.Instantiate expects, with fd_write bound to w.
func NewHostFunctions(w Writer) map[string]interpreter.HostFunction {
	return map[string]interpreter.HostFunction{
		ModuleName + "." + FunctionFdWrite: {
			Signature: fdWriteSignature,
			Func:      fdWriteFunc(w),
		},
	}
}

// fdWriteFunc implements fd_write (spec.md §4.3 / §9): pops its four i32
// arguments in reverse of their push order (result_ptr, iovs_len, iovs,
// fd), reads iovs_len little-endian (addr,len) pairs out of linear memory
// starting at iovs, writes each slice to the resolved stream, and on
// success records the total byte count at result_ptr before pushing
// ErrnoSuccess.
func fdWriteFunc(w Writer) func(ins *interpreter.Instance) error {
	return func(ins *interpreter.Instance) error {
		resultPtr, err := ins.PopU32()
		if err != nil {
			return err
		}
		iovsLen, err := ins.PopU32()
		if err != nil {
			return err
		}
		iovs, err := ins.PopU32()
		if err != nil {
			return err
		}
		fd, err := ins.PopU32()
		if err != nil {
			return err
		}

		mem := ins.Memory()
		if mem == nil {
			return wasmruntime.NoMemory{}
		}

		stream := w.resolve(fd)
		if stream == nil {
			ins.PushU32(ErrnoBadf)
			return nil
		}

		var written uint32
		for i := uint32(0); i < iovsLen; i++ {
			entry := iovs + i*8
			addr, ok := mem.ReadUint32Le(entry)
			if !ok {
				ins.PushU32(ErrnoFault)
				return nil
			}
			size, ok := mem.ReadUint32Le(entry + 4)
			if !ok {
				ins.PushU32(ErrnoFault)
				return nil
			}
			b, ok := mem.Slice(addr, size)
			if !ok {
				ins.PushU32(ErrnoFault)
				return nil
			}
			n, err := stream.Write(b)
			if err != nil {
				ins.PushU32(ErrnoIo)
				return nil
			}
			written += uint32(n)
		}

		if !mem.WriteUint32Le(resultPtr, written) {
			ins.PushU32(ErrnoFault)
			return nil
		}
		ins.PushU32(ErrnoSuccess)
		return nil
	}
}
