/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package callback

import "testing"

func TestConstructorHooksAccumulateNewestFirst(t *testing.T) {
	r := NewRegistry()
	var order []int
	err := r.UpdateCallbacks([]Registration{
		{Name: "foo", Constructor: func(string, interface{}) AsyncTask { order = append(order, 1); return nil }},
		{Name: "foo", Constructor: func(string, interface{}) AsyncTask { order = append(order, 2); return nil }},
	})
	if err != nil {
		t.Fatalf("UpdateCallbacks: %v", err)
	}
	hooks := r.Constructor("foo")
	if len(hooks) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(hooks))
	}
	for _, h := range hooks {
		h("foo", nil)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("expected newest-first invocation order [2 1], got %v", order)
	}
}

func TestTypeMismatchIsLastWriterWins(t *testing.T) {
	r := NewRegistry()
	err := r.UpdateCallbacks([]Registration{
		{Name: "Peer", TypeMismatch: func(string, interface{}) interface{} { return "first" }},
		{Name: "Peer", TypeMismatch: func(string, interface{}) interface{} { return "second" }},
	})
	if err != nil {
		t.Fatalf("UpdateCallbacks: %v", err)
	}
	h, ok := r.TypeMismatchHook("Peer")
	if !ok {
		t.Fatalf("expected a registered hook")
	}
	if got := h("Peer", nil); got != "second" {
		t.Fatalf("expected last-writer-wins value %q, got %q", "second", got)
	}
}

func TestUpdateCallbacksReplacesWholesale(t *testing.T) {
	r := NewRegistry()
	if err := r.UpdateCallbacks([]Registration{
		{Name: "foo", Constructor: func(string, interface{}) AsyncTask { return nil }},
	}); err != nil {
		t.Fatalf("UpdateCallbacks: %v", err)
	}
	if len(r.Constructor("foo")) != 1 {
		t.Fatalf("expected one hook after first update")
	}
	if err := r.UpdateCallbacks(nil); err != nil {
		t.Fatalf("UpdateCallbacks: %v", err)
	}
	if len(r.Constructor("foo")) != 0 {
		t.Fatalf("expected rebuild to clear prior registrations")
	}
}

func TestUpdateCallbacksRejectsUnnamedRegistration(t *testing.T) {
	r := NewRegistry()
	err := r.UpdateCallbacks([]Registration{{Constructor: func(string, interface{}) AsyncTask { return nil }}})
	if err != ErrNilCallback {
		t.Fatalf("expected ErrNilCallback, got %v", err)
	}
}
