/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package deserialize

import (
	"bytes"
	"testing"

	"github.com/gravwell/tlproto/schema"
	"github.com/gravwell/tlproto/serialize"
	"github.com/gravwell/tlproto/tlvalue"
)

func mkEntry(name string, id uint32, typ string, params []schema.Param) schema.Entry {
	e := schema.Entry{Name: name, Type: typ, Layer: schema.AnyLayer, Params: params}
	var b [4]byte
	b[0] = byte(id)
	b[1] = byte(id >> 8)
	b[2] = byte(id >> 16)
	b[3] = byte(id >> 24)
	e.ID = b
	return e
}

func newTestRegistry(entries ...schema.Entry) *schema.Registry {
	r := schema.NewRegistry()
	if err := r.AddEntries(entries); err != nil {
		panic(err)
	}
	return r
}

// TestDeserializeRoundTrip checks that a serialized inputPeerUser
// decodes back to an equivalent structured value.
func TestDeserializeRoundTrip(t *testing.T) {
	entry := mkEntry("inputPeerUser", 0x7b8e7de6, "InputPeer", []schema.Param{
		{Name: "user_id", Type: "long"},
		{Name: "access_hash", Type: "long"},
	})
	reg := newTestRegistry(entry)

	ser := serialize.New(reg, nil)
	rec := tlvalue.NewRecord("inputPeerUser")
	rec.Set("user_id", tlvalue.Primitive(int64(12345)))
	rec.Set("access_hash", tlvalue.Primitive(int64(0x0102030405060708)))

	wire, err := ser.Serialize(serialize.TypeCtx{Type: "InputPeer"}, tlvalue.FromRecord(rec), "", schema.AnyLayer)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	d := New(reg, nil, nil)
	got, hooks, err := d.Deserialize(bytes.NewReader(wire), TypeCtx{Type: "InputPeer"})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(hooks) != 0 {
		t.Fatalf("expected no async hooks, got %d", len(hooks))
	}
	gr := got.Record()
	if gr == nil || gr.Predicate() != "inputPeerUser" {
		t.Fatalf("expected decoded predicate inputPeerUser, got %+v", got)
	}
	uid, _ := gr.Get("user_id")
	if v, _ := uid.Interface().(int64); v != 12345 {
		t.Fatalf("user_id round-trip mismatch: got %v", uid.Interface())
	}
	hash, _ := gr.Get("access_hash")
	if v, _ := hash.Interface().(int64); v != 0x0102030405060708 {
		t.Fatalf("access_hash round-trip mismatch: got %#x", hash.Interface())
	}
}

// TestDeserializeBoxedVector checks decoding a boxed Vector<int>.
func TestDeserializeBoxedVector(t *testing.T) {
	d := New(schema.NewRegistry(), nil, nil)
	wire := []byte{0x15, 0xC4, 0xB5, 0x1C, 0x03, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00}

	got, _, err := d.Deserialize(bytes.NewReader(wire), TypeCtx{Type: "Vector", Subtype: "int"})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	items := got.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(items))
	}
	for i, want := range []int32{1, 2, 3} {
		if v, _ := items[i].Interface().(int32); v != want {
			t.Fatalf("element %d: got %v want %v", i, v, want)
		}
	}
}

func TestDeserializeUnknownConstructorFails(t *testing.T) {
	d := New(schema.NewRegistry(), nil, nil)
	wire := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	if _, _, err := d.Deserialize(bytes.NewReader(wire), TypeCtx{Type: ""}); err == nil {
		t.Fatal("expected UNKNOWN_CONSTRUCTOR error for an unregistered id")
	}
}

func TestDeserializeInsecureRandomBytesRejected(t *testing.T) {
	entry := mkEntry("req_pq", 0x60469778, "ResPQ", []schema.Param{
		{Name: "random_bytes", Type: "bytes"},
	})
	reg := newTestRegistry(entry)
	d := New(reg, nil, nil)

	wire := []byte{0x04, 0x01, 0x02, 0x03, 0x04, 0x00, 0x00, 0x00} // short (4-byte) random_bytes payload plus framing padding, below the 15-byte floor
	if _, _, err := d.Deserialize(bytes.NewReader(wire), TypeCtx{Type: "%ResPQ"}); err == nil {
		t.Fatal("expected INSECURE_RANDOM error for a short random_bytes field")
	}
}

func TestDeserializeFlagGatedTrueDefaultsFalse(t *testing.T) {
	entry := mkEntry("messages.sendMessage", 0xd7e414c8, "Updates", []schema.Param{
		{Name: "flags", Type: "#"},
		{Name: "no_webpage", Type: "true", Flag: "flags", Pow: 1 << 1},
	})
	reg := newTestRegistry(entry)
	d := New(reg, nil, nil)

	wire := []byte{0x00, 0x00, 0x00, 0x00} // flags == 0, bit clear

	got, _, err := d.Deserialize(bytes.NewReader(wire), TypeCtx{Type: "%Updates"})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	rec := got.Record()
	v, ok := rec.Get("no_webpage")
	if !ok {
		t.Fatal("expected no_webpage field to be present with a default value")
	}
	if b, _ := v.Interface().(bool); b {
		t.Fatal("expected no_webpage to default to false when its flag bit is clear")
	}
	if _, ok := rec.Get("flags"); ok {
		t.Fatal("expected the flags bitfield to be stripped from the returned value")
	}
}
