/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeInt32(t *testing.T) {
	got := EncodeInt32(1)
	want := []byte{0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestEncodeStringShort(t *testing.T) {
	got := EncodeString("abc")
	want := []byte{0x03, 0x61, 0x62, 0x63}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestEncodeBytesPadding(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA}, 14)
	got := EncodeBytes(data)
	want := append([]byte{0x0E}, data...)
	want = append(want, 0x00)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
	if len(got)%4 != 0 {
		t.Fatalf("encoded length %d is not a multiple of 4", len(got))
	}
}

func TestEncodeBytesLongForm(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 300)
	got := EncodeBytes(data)
	if got[0] != longMarker {
		t.Fatalf("expected long marker 0xFE, got %#x", got[0])
	}
	if len(got)%4 != 0 {
		t.Fatalf("encoded length %d is not a multiple of 4", len(got))
	}
	dec, err := DecodeBytes(bytes.NewReader(got))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecodeRejectsInvalidMarker(t *testing.T) {
	if _, err := DecodeBytes(bytes.NewReader([]byte{0xFF})); err != ErrLengthTooBig {
		t.Fatalf("expected ErrLengthTooBig, got %v", err)
	}
}

func TestStringBytesRoundTrip(t *testing.T) {
	for _, s := range []string{"", "x", strings.Repeat("y", 253), strings.Repeat("z", 254), strings.Repeat("q", 70000)} {
		enc := EncodeString(s)
		if len(enc)%4 != 0 {
			t.Fatalf("length %d for %d-byte string not a multiple of 4", len(enc), len(s))
		}
		dec, err := DecodeString(bytes.NewReader(enc))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dec != s {
			t.Fatalf("round trip mismatch: got %q want %q", dec, s)
		}
	}
}

func TestEncodeLongForms(t *testing.T) {
	raw := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	aPrefixed := append([]byte{'a'}, raw...)
	want, err := EncodeLong(raw)
	if err != nil {
		t.Fatalf("encode raw: %v", err)
	}
	got, err := EncodeLong(aPrefixed)
	if err != nil {
		t.Fatalf("encode a-prefixed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("a-prefixed form diverged from raw form: %x vs %x", got, want)
	}
	pair, err := EncodeLong([2]int32{int32(0x05040302), int32(0x01020304)})
	if err != nil {
		t.Fatalf("encode pair: %v", err)
	}
	if len(pair) != 8 {
		t.Fatalf("pair encoding wrong length: %d", len(pair))
	}
}

func TestEncodeBlobFallsBackToBase64(t *testing.T) {
	raw := bytes.Repeat([]byte{0x01}, 16)
	b64 := []byte("AQEBAQEBAQEBAQEBAQEBAQ==")
	got, err := EncodeBlob(b64, 16)
	if err != nil {
		t.Fatalf("base64 fallback: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("got %x want %x", got, raw)
	}
}

func TestEncodeBlobBadLength(t *testing.T) {
	if _, err := EncodeBlob([]byte{0x01, 0x02}, 16); err != ErrBadLength128 {
		t.Fatalf("expected ErrBadLength128, got %v", err)
	}
}
