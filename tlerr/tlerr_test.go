/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package tlerr

import (
	"errors"
	"testing"
)

func TestWrapIsMatchesKind(t *testing.T) {
	err := Wrap(ErrMissingParam, "param %q", "access_hash")
	if !errors.Is(err, ErrMissingParam) {
		t.Fatalf("expected errors.Is to match ErrMissingParam, got %v", err)
	}
	if got, want := err.Error(), "tlerr: required parameter has no value: param \"access_hash\""; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestMismatchErrorMessage(t *testing.T) {
	err := &MismatchError{Predicate: "peerUser", Declared: 0x1, Computed: 0x2}
	want := "tlerr: peerUser: declared id 0x00000001 does not match computed id 0x00000002"
	if got := err.Error(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
