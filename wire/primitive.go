/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"encoding/base64"
	"encoding/binary"
	"io"
	"math"
	"math/big"
)

const (
	shortStringMax = 253
	longMarker     = 0xFE
	invalidMarker  = 0xFF
)

// EncodeInt32 encodes a signed 32-bit integer in little-endian form.
func EncodeInt32(v int32) []byte {
	return EncodeUint32(uint32(v))
}

// EncodeUint32 encodes an unsigned 32-bit integer (also used for the `#`
// bitfield type) in little-endian form.
func EncodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// DecodeInt32 reads a signed 32-bit integer from r.
func DecodeInt32(r io.Reader) (int32, error) {
	v, err := DecodeUint32(r)
	return int32(v), err
}

// DecodeUint32 reads an unsigned 32-bit integer from r.
func DecodeUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// EncodeDouble encodes an IEEE-754 double.
func EncodeDouble(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

// DecodeDouble reads an IEEE-754 double from r.
func DecodeDouble(r io.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrShortBuffer
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}

// EncodeLong encodes the `long` type. It accepts, in order of preference:
// an int64/uint64, a raw 8-byte string/[]byte, a 9-byte string/[]byte
// beginning with 'a' (the leading byte is stripped), a 2-element
// []int32{lo,hi} pair (for 32-bit hosts), or a *big.Int.
func EncodeLong(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case int64:
		return encodeInt64(t), nil
	case uint64:
		return encodeInt64(int64(t)), nil
	case int:
		return encodeInt64(int64(t)), nil
	case []byte:
		return encodeLongBytes(t)
	case string:
		return encodeLongBytes([]byte(t))
	case [2]int32:
		return encodeInt64(int64(t[1])<<32 | int64(uint32(t[0]))), nil
	case []int32:
		if len(t) != 2 {
			return nil, ErrInvalidLong
		}
		return encodeInt64(int64(t[1])<<32 | int64(uint32(t[0]))), nil
	case *big.Int:
		if t == nil {
			return nil, ErrInvalidLong
		}
		var buf [8]byte
		u := t.Uint64()
		binary.LittleEndian.PutUint64(buf[:], u)
		return buf[:], nil
	default:
		return nil, ErrNotNumeric
	}
}

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func encodeLongBytes(b []byte) ([]byte, error) {
	switch len(b) {
	case 8:
		out := make([]byte, 8)
		copy(out, b)
		return out, nil
	case 9:
		if b[0] != 'a' {
			return nil, ErrInvalidLong
		}
		out := make([]byte, 8)
		copy(out, b[1:])
		return out, nil
	default:
		return nil, ErrInvalidLong
	}
}

// DecodeInt64 reads a signed 64-bit `long` from r.
func DecodeInt64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrShortBuffer
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// DecodeRawLong reads the raw 8 bytes of a `long` without interpreting
// them, used for fields like msg_id/server_salt that are carried as
// opaque 8-byte blobs rather than host integers.
func DecodeRawLong(r io.Reader) ([]byte, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, ErrShortBuffer
	}
	return b, nil
}

// EncodeBlob encodes an opaque fixed-width blob (int128/256/512). If b is
// not exactly width bytes, it attempts a base64 decode of b before
// failing.
func EncodeBlob(b []byte, width int) ([]byte, error) {
	if len(b) == width {
		out := make([]byte, width)
		copy(out, b)
		return out, nil
	}
	dec, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil || len(dec) != width {
		return nil, blobErr(width)
	}
	return dec, nil
}

// DecodeBlob reads a width-byte opaque blob from r.
func DecodeBlob(r io.Reader, width int) ([]byte, error) {
	b := make([]byte, width)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, ErrShortBuffer
	}
	return b, nil
}

func blobErr(width int) error {
	switch width {
	case 16:
		return ErrBadLength128
	case 32:
		return ErrBadLength256
	case 64:
		return ErrBadLength512
	default:
		return ErrShortBuffer
	}
}

// padding returns the number of zero-padding bytes needed so that
// (prefixLen + dataLen + padding) is a multiple of 4, where prefixLen is
// 1 for short framing or 4 for long framing.
func padding(prefixLen, dataLen int) int {
	n := prefixLen + dataLen
	return (4 - n%4) % 4
}

// EncodeBytes frames a byte string using the short/long TL convention: a
// single length byte (0..253) followed by data and zero padding to a
// 4-byte boundary, or a 0xFE marker, 3-byte little-endian length, data,
// and padding when the payload exceeds 253 bytes.
func EncodeBytes(data []byte) []byte {
	l := len(data)
	if l <= shortStringMax {
		pad := padding(1, l)
		out := make([]byte, 0, 1+l+pad)
		out = append(out, byte(l))
		out = append(out, data...)
		out = append(out, make([]byte, pad)...)
		return out
	}
	pad := padding(4, l)
	out := make([]byte, 0, 4+l+pad)
	out = append(out, longMarker, byte(l), byte(l>>8), byte(l>>16))
	out = append(out, data...)
	out = append(out, make([]byte, pad)...)
	return out
}

// EncodeString frames a string identically to EncodeBytes.
func EncodeString(s string) []byte {
	return EncodeBytes([]byte(s))
}

// DecodeFramed reads a length-framed byte string (used by both `string`
// and `bytes`) from r, consuming its padding.
func DecodeFramed(r io.Reader) ([]byte, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, ErrShortBuffer
	}
	b0 := first[0]
	if b0 == invalidMarker {
		return nil, ErrLengthTooBig
	}
	var l int
	var prefixLen int
	if b0 == longMarker {
		var lb [3]byte
		if _, err := io.ReadFull(r, lb[:]); err != nil {
			return nil, ErrShortBuffer
		}
		l = int(lb[0]) | int(lb[1])<<8 | int(lb[2])<<16
		prefixLen = 4
	} else {
		l = int(b0)
		prefixLen = 1
	}
	data := make([]byte, l)
	if l > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, ErrShortBuffer
		}
	}
	pad := padding(prefixLen, l)
	if pad > 0 {
		var discard [3]byte
		if _, err := io.ReadFull(r, discard[:pad]); err != nil {
			return nil, ErrShortBuffer
		}
	}
	return data, nil
}

// DecodeString decodes a length-framed `string` field.
func DecodeString(r io.Reader) (string, error) {
	b, err := DecodeFramed(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeBytes decodes a length-framed `bytes` field.
func DecodeBytes(r io.Reader) ([]byte, error) {
	return DecodeFramed(r)
}

// FramedLen returns the total encoded length (prefix + data + padding)
// of a byte string of length l, used by getLength-style non-materializing
// parses.
func FramedLen(l int) int {
	if l <= shortStringMax {
		return 1 + l + padding(1, l)
	}
	return 4 + l + padding(4, l)
}
