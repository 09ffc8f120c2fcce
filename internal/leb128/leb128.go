// Package leb128 implements the variable-length integer encoding used
// throughout the WebAssembly binary format for lengths and indices.
//
// See https://webassembly.github.io/spec/core/binary/values.html#integers
package leb128

import (
	"errors"
	"io"
)

// ErrOverflow is returned when a varint does not terminate within the
// maximum byte width for its target integer size.
var ErrOverflow = errors.New("leb128: integer representation too long")

// DecodeUint32 decodes an unsigned LEB128 varint into a uint32, returning
// the value and the number of bytes consumed.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUnsigned(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 decodes an unsigned LEB128 varint into a uint64, returning
// the value and the number of bytes consumed.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUnsigned(r, 64)
}

func decodeUnsigned(r io.ByteReader, size uint) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	maxBytes := uint64((size + 6) / 7) // 5 for 32-bit, 10 for 64-bit
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		if n > maxBytes {
			return 0, n, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			// Reject bits set beyond the target width in the final byte.
			if size < 64 {
				if result>>size != 0 {
					return 0, n, ErrOverflow
				}
			} else if shift == 63 && b > 1 {
				return 0, n, ErrOverflow
			}
			return result, n, nil
		}
		shift += 7
	}
}

// DecodeInt32 decodes a signed LEB128 varint into an int32, returning the
// value and the number of bytes consumed.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSigned(r, 32)
	return int32(v), n, err
}

// DecodeInt33AsInt64 decodes a signed 33-bit LEB128 varint (the encoding
// WebAssembly uses for block type indices) sign-extended into an int64.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 33)
}

// DecodeInt64 decodes a signed LEB128 varint into an int64, returning the
// value and the number of bytes consumed.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 64)
}

func decodeSigned(r io.ByteReader, size uint) (int64, uint64, error) {
	var result int64
	var shift uint
	var n uint64
	var b byte
	var err error
	maxBytes := uint64((size + 6) / 7)
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		if n > maxBytes {
			return 0, n, ErrOverflow
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	// Sign-extend the 64-bit accumulator from the final byte's sign bit,
	// independent of the target width.
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	// A value is only valid for the target width if sign-extending it
	// back from that width reproduces the same 64-bit pattern; otherwise
	// the encoding carried payload bits past the target's sign position.
	if size < 64 {
		extended := (result << (64 - size)) >> (64 - size)
		if extended != result {
			return 0, n, ErrOverflow
		}
	}
	return result, n, nil
}

// EncodeUint32 encodes v as an unsigned LEB128 varint.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as an unsigned LEB128 varint.
func EncodeUint64(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 encodes v as a signed LEB128 varint.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 encodes v as a signed LEB128 varint.
func EncodeInt64(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}
