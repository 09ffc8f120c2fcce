// Package binary implements the section-driven WebAssembly binary decoder
// (and a companion encoder used only to build test fixtures).
package binary

import "fmt"

// DecodeError wraps a failure raised while reading a section: a truncated
// byte stream, an unrecognized tag byte, invalid UTF-8, or a malformed
// varint. It names the section being decoded so a caller can locate the
// problem without re-running the decoder under a debugger. Header errors,
// an unknown section id and cross-section inconsistencies
// (ErrInvalidModule) are returned unwrapped.
type DecodeError struct {
	// Context is a short description of what was being decoded, e.g.
	// "type section" or "section header".
	Context string
	// Err is the underlying cause.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Context == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Context, e.Err.Error())
}

func (e *DecodeError) Unwrap() error { return e.Err }

func wrap(context string, err error) error {
	if err == nil {
		return nil
	}
	return &DecodeError{Context: context, Err: err}
}

// ErrNotWasmModule is returned when the input does not begin with the
// WebAssembly magic number.
type ErrNotWasmModule struct{}

func (ErrNotWasmModule) Error() string { return "invalid magic number" }

// ErrIllegalVersion is returned when the input's version field is not the
// one this decoder understands.
type ErrIllegalVersion struct{ Got [4]byte }

func (e ErrIllegalVersion) Error() string {
	return fmt.Sprintf("invalid version header: got %#x", e.Got)
}

// ErrUnknownSectionID is returned for a section id byte this decoder does
// not recognize at all (not even as a skippable section).
type ErrUnknownSectionID struct{ ID byte }

func (e ErrUnknownSectionID) Error() string {
	return fmt.Sprintf("unknown section id %#x", e.ID)
}

// ErrUnknownValueType is returned for a byte that is not a recognized
// value type where one was expected.
type ErrUnknownValueType struct{ Byte byte }

func (e ErrUnknownValueType) Error() string {
	return fmt.Sprintf("unknown value type %#x", e.Byte)
}

// ErrExpectedFunctionTypeTag is returned when a type-section entry does
// not begin with the 0x60 "func" tag.
type ErrExpectedFunctionTypeTag struct{ Got byte }

func (e ErrExpectedFunctionTypeTag) Error() string {
	return fmt.Sprintf("expected function type tag 0x60, got %#x", e.Got)
}

// ErrUnknownExportKind is returned for a byte that is not a recognized
// ExportKind where one was expected (import or export description).
type ErrUnknownExportKind struct{ Byte byte }

func (e ErrUnknownExportKind) Error() string {
	return fmt.Sprintf("unknown export kind %#x", e.Byte)
}

// ErrUnknownLimitKind is returned for a byte that is not 0x00 or 0x01
// where a memory (or table) limit kind was expected.
type ErrUnknownLimitKind struct{ Byte byte }

func (e ErrUnknownLimitKind) Error() string {
	return fmt.Sprintf("unknown limit kind %#x", e.Byte)
}

// ErrUnknownDataMode is returned for a byte that is not a recognized
// DataMode where one was expected.
type ErrUnknownDataMode struct{ Byte byte }

func (e ErrUnknownDataMode) Error() string {
	return fmt.Sprintf("unknown data mode %#x", e.Byte)
}

// ErrUnknownOpcode is returned for an instruction byte not in the
// catalog.
type ErrUnknownOpcode struct{ Byte byte }

func (e ErrUnknownOpcode) Error() string {
	return fmt.Sprintf("unknown opcode %#x", e.Byte)
}

// ErrExpectedOpcode is returned when a specific terminator opcode (End,
// or Else-or-End) was required but something else, or end of input, was
// found.
type ErrExpectedOpcode struct{ Expected string }

func (e ErrExpectedOpcode) Error() string {
	return fmt.Sprintf("expected %s opcode", e.Expected)
}

// ErrMultipleMemories is returned when a module's memory section declares
// more than the single memory this runtime supports.
type ErrMultipleMemories struct{}

func (ErrMultipleMemories) Error() string { return "multiple memories are not supported" }

// ErrUnsupportedDataMode is returned for a structurally valid but
// unimplemented DataMode (Passive or Active-with-explicit-memory-index);
// only ActiveMemory0 is required by this runtime's core.
type ErrUnsupportedDataMode struct{ Mode byte }

func (e ErrUnsupportedDataMode) Error() string {
	return fmt.Sprintf("unsupported data segment mode %#x", e.Mode)
}

// ErrInvalidConstExpr is returned when a constant expression (used for a
// data segment's offset) does not reduce to a single i32 constant.
type ErrInvalidConstExpr struct{ Reason string }

func (e ErrInvalidConstExpr) Error() string {
	return fmt.Sprintf("invalid constant expression: %s", e.Reason)
}

// ErrInvalidModule is returned for a structural inconsistency across
// sections that isn't tied to one specific byte (a type index out of
// range, or a function section whose count disagrees with the code
// section's).
type ErrInvalidModule struct{ Reason string }

func (e ErrInvalidModule) Error() string {
	return fmt.Sprintf("invalid module: %s", e.Reason)
}

// ErrSectionSizeMismatch is returned when a section's declared byte length
// does not match the number of bytes its contents actually decode to.
type ErrSectionSizeMismatch struct{ ID byte }

func (e ErrSectionSizeMismatch) Error() string {
	return fmt.Sprintf("section %#x: declared size does not match contents", e.ID)
}
