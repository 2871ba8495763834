/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package tlerr collects the distinct, surfaceable error kinds the
// codec raises across schema loading, serialization, and
// deserialization, following a flat `var ErrXxx error =
// errors.New(...)` convention. Kinds
// already owned by a narrower package (wire's buffer-framing errors,
// schema's ErrSchemaInvalid, message's ErrDoubleReply) are re-exported
// here by reference rather than redefined, so `errors.Is` works against
// either the owning package's sentinel or this one.
package tlerr

import (
	"errors"
	"fmt"

	"github.com/gravwell/tlproto/message"
	"github.com/gravwell/tlproto/schema"
	"github.com/gravwell/tlproto/wire"
)

var (
	// ErrNotNumeric, ErrBadLength128/256/512, ErrLengthTooBig and
	// ErrNotString are owned by package wire; re-exported so callers that
	// only import tlerr can still errors.Is against them.
	ErrNotNumeric   = wire.ErrNotNumeric
	ErrBadLength128 = wire.ErrBadLength128
	ErrBadLength256 = wire.ErrBadLength256
	ErrBadLength512 = wire.ErrBadLength512
	ErrLengthTooBig = wire.ErrLengthTooBig
	ErrNotString    = wire.ErrNotString

	// MissingParam is raised by the serializer when a required param has
	// no supplied value, no conventional default, and no installed
	// ParamSynthesizer.
	ErrMissingParam error = errors.New("tlerr: required parameter has no value")

	// ArrayRequired is raised when a vector-typed param is given a
	// non-vector Value.
	ErrArrayRequired error = errors.New("tlerr: parameter requires a vector value")

	// BadPredicate is raised when the serializer is asked to serialize a
	// record whose predicate is not in the registry.
	ErrBadPredicate error = errors.New("tlerr: unknown predicate")

	// UnknownConstructor is raised when the deserializer reads a 4-byte
	// id with no matching constructor or method entry.
	ErrUnknownConstructor error = errors.New("tlerr: unknown constructor id")

	// InvalidVectorCtor is raised when a boxed vector's id does not match
	// the well-known Vector constructor (0x1cb5c415).
	ErrInvalidVectorCtor error = errors.New("tlerr: invalid vector constructor id")

	// ErrSchemaInvalid is owned by package schema; re-exported for
	// convenience (schema does not import tlerr, so no import cycle).
	ErrSchemaInvalid = schema.ErrSchemaInvalid

	// InsecureRandom is raised when a random_bytes param is shorter than
	// the required 15-byte floor; this kind must never be demoted to a
	// diagnostic log.
	ErrInsecureRandom error = errors.New("tlerr: random_bytes shorter than 15 bytes")

	// StreamHandle names the STREAM_HANDLE kind. No code path in this
	// module returns it: package wire reports every failed read, io.EOF
	// or not, as wire.ErrShortBuffer.
	ErrStreamHandle error = errors.New("tlerr: underlying stream read failed")

	// ErrDoubleReply is owned by package message; re-exported for
	// convenience (message does not import tlerr, so no import cycle).
	ErrDoubleReply = message.ErrDoubleReply
)

// CodecError wraps a sentinel Kind with a formatted detail message,
// following the same %w-wrapping convention used for configuration
// errors elsewhere in this codebase.
type CodecError struct {
	Kind   error
	Detail string
}

func (e *CodecError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Detail)
}

func (e *CodecError) Unwrap() error { return e.Kind }

// Wrap builds a CodecError for kind with a formatted detail.
func Wrap(kind error, format string, args ...interface{}) error {
	return &CodecError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// MismatchError carries a schema entry's declared id alongside the id
// ComputeID derived from its normalized signature, for the non-fatal
// id-mismatch diagnostic path.
type MismatchError struct {
	Predicate string
	Declared  uint32
	Computed  uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("tlerr: %s: declared id %#010x does not match computed id %#010x", e.Predicate, e.Declared, e.Computed)
}
