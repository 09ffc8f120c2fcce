package interpreter

import (
	"github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasmruntime"
)

// operandStack is the Value stack every instruction pushes to and pops
// from. Typed pop helpers reinterpret bits rather than reject the opposite
// signedness of a stored I32/I64 cell (spec.md §9).
type operandStack struct {
	values []wasm.Value
}

func (s *operandStack) push(v wasm.Value) { s.values = append(s.values, v) }

func (s *operandStack) pop() (wasm.Value, error) {
	if len(s.values) == 0 {
		return wasm.Value{}, wasmruntime.PopOnEmptyOperandStack{}
	}
	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, nil
}

func (s *operandStack) popKind(want wasm.ValueKind) (wasm.Value, error) {
	v, err := s.pop()
	if err != nil {
		return wasm.Value{}, err
	}
	if v.Kind != want {
		return wasm.Value{}, wasmruntime.StackTypeError{Expected: want.String(), Got: v.Kind.String()}
	}
	return v, nil
}

func (s *operandStack) popI32() (int32, error) {
	v, err := s.popKind(wasm.KindI32)
	if err != nil {
		return 0, err
	}
	return v.I32(), nil
}

func (s *operandStack) popU32() (uint32, error) {
	v, err := s.popKind(wasm.KindI32)
	if err != nil {
		return 0, err
	}
	return v.U32(), nil
}

func (s *operandStack) popI64() (int64, error) {
	v, err := s.popKind(wasm.KindI64)
	if err != nil {
		return 0, err
	}
	return v.I64(), nil
}

func (s *operandStack) popU64() (uint64, error) {
	v, err := s.popKind(wasm.KindI64)
	if err != nil {
		return 0, err
	}
	return v.U64(), nil
}

func (s *operandStack) popF32() (float32, error) {
	v, err := s.popKind(wasm.KindF32)
	if err != nil {
		return 0, err
	}
	return v.F32(), nil
}

func (s *operandStack) popF64() (float64, error) {
	v, err := s.popKind(wasm.KindF64)
	if err != nil {
		return 0, err
	}
	return v.F64(), nil
}

func (s *operandStack) pushI32(v int32)     { s.push(wasm.ValueI32(v)) }
func (s *operandStack) pushU32(v uint32)    { s.push(wasm.ValueU32(v)) }
func (s *operandStack) pushI64(v int64)     { s.push(wasm.ValueI64(v)) }
func (s *operandStack) pushU64(v uint64)    { s.push(wasm.ValueU64(v)) }
func (s *operandStack) pushF32(v float32)   { s.push(wasm.ValueF32(v)) }
func (s *operandStack) pushF64(v float64)   { s.push(wasm.ValueF64(v)) }
func (s *operandStack) pushBool(b bool) {
	if b {
		s.pushI32(1)
	} else {
		s.pushI32(0)
	}
}

func (s *operandStack) drop() error {
	_, err := s.pop()
	return err
}

func (s *operandStack) len() int { return len(s.values) }

// Values returns the current contents, bottom first, for embedder
// introspection after a run.
func (s *operandStack) Values() []wasm.Value {
	out := make([]wasm.Value, len(s.values))
	copy(out, s.values)
	return out
}
