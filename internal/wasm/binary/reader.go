package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/tinywasm/tinywasm/internal/leb128"
	"github.com/tinywasm/tinywasm/internal/wasm"
)

// reader is a small cursor over an in-memory byte slice, with the handful
// of fixed- and variable-width reads the binary format needs.
type reader struct {
	r *bytes.Reader
}

func newReader(b []byte) *reader { return &reader{r: bytes.NewReader(b)} }

func (d *reader) byte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("unexpected end of input: %w", io.ErrUnexpectedEOF)
	}
	return b, nil
}

func (d *reader) bytes(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("unexpected end of input: %w", io.ErrUnexpectedEOF)
	}
	return buf, nil
}

func (d *reader) u32() (uint32, error) {
	v, _, err := leb128.DecodeUint32(d.r)
	if err != nil {
		return 0, fmt.Errorf("leb128: %w", err)
	}
	return v, nil
}

func (d *reader) u64() (uint64, error) {
	v, _, err := leb128.DecodeUint64(d.r)
	if err != nil {
		return 0, fmt.Errorf("leb128: %w", err)
	}
	return v, nil
}

func (d *reader) i32() (int32, error) {
	v, _, err := leb128.DecodeInt32(d.r)
	if err != nil {
		return 0, fmt.Errorf("leb128: %w", err)
	}
	return v, nil
}

func (d *reader) i64() (int64, error) {
	v, _, err := leb128.DecodeInt64(d.r)
	if err != nil {
		return 0, fmt.Errorf("leb128: %w", err)
	}
	return v, nil
}

func (d *reader) f32() (float32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (d *reader) f64() (float64, error) {
	b, err := d.bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// name reads a length-prefixed UTF-8 string.
func (d *reader) name() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	b, err := d.bytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("invalid utf-8")
	}
	return string(b), nil
}

func (d *reader) valueType() (wasm.ValueType, error) {
	b, err := d.byte()
	if err != nil {
		return 0, err
	}
	switch b {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeV128, wasm.ValueTypeFuncRef, wasm.ValueTypeExternRef:
		return b, nil
	}
	return 0, ErrUnknownValueType{Byte: b}
}

func (d *reader) exportKind() (wasm.ExportKind, error) {
	b, err := d.byte()
	if err != nil {
		return 0, err
	}
	switch wasm.ExportKind(b) {
	case wasm.ExportKindFunction, wasm.ExportKindTable, wasm.ExportKindMemory, wasm.ExportKindGlobal:
		return wasm.ExportKind(b), nil
	}
	return 0, ErrUnknownExportKind{Byte: b}
}

func (d *reader) len() int { return d.r.Len() }
