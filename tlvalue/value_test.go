/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package tlvalue

import "testing"

func TestRecordFieldOrderPreserved(t *testing.T) {
	r := NewRecord("inputPeerUser")
	r.Set("user_id", Primitive(int32(12345)))
	r.Set("access_hash", Primitive(int64(0x0807060504030201)))

	names := r.Names()
	if len(names) != 2 || names[0] != "user_id" || names[1] != "access_hash" {
		t.Fatalf("unexpected field order: %v", names)
	}

	v, ok := r.Get("user_id")
	if !ok || v.Interface().(int32) != 12345 {
		t.Fatalf("user_id not round tripped: %v %v", v, ok)
	}
}

func TestRecordDeleteRemovesFromOrder(t *testing.T) {
	r := NewRecord("x")
	r.Set("flags", Primitive(int32(1)))
	r.Set("a", Primitive(int32(1)))
	r.Delete("flags")
	if _, ok := r.Get("flags"); ok {
		t.Fatalf("flags should have been deleted")
	}
	names := r.Names()
	if len(names) != 1 || names[0] != "a" {
		t.Fatalf("unexpected names after delete: %v", names)
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := NewRecord("p")
	r.Set("a", Primitive(int32(1)))
	c := r.Clone()
	c.Set("b", Primitive(int32(2)))
	if _, ok := r.Get("b"); ok {
		t.Fatalf("mutating clone leaked into original")
	}
}

func TestValueKinds(t *testing.T) {
	if !Nil.IsNil() {
		t.Fatalf("Nil value should report IsNil")
	}
	v := Vector([]Value{Primitive(int32(1)), Primitive(int32(2))})
	if v.Kind() != KindVector || len(v.Items()) != 2 {
		t.Fatalf("vector value malformed")
	}
}
