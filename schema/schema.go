/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package schema parses TL schema definitions (textual `.tl` files or the
// equivalent pre-parsed JSON) into constructor/method entries, computes
// and validates their 32-bit identifiers, and indexes them for lookup by
// id, predicate, type, and method namespace.
package schema

import (
	"encoding/binary"
	"strings"
)

// Origin labels which schema file a declaration came from. The api,
// mtproto, and secret origins share one Registry; td gets its own,
// parallel Registry.
type Origin string

const (
	OriginAPI     Origin = "api"
	OriginMTProto Origin = "mtproto"
	OriginSecret  Origin = "secret"
	OriginTD      Origin = "td"
)

// AnyLayer is the sentinel layer value meaning "no preference" both for
// a missing declared layer and for a findByPredicate lookup with no
// layer constraint.
const AnyLayer = -1

// Param is a single parameter/field descriptor of a schema Entry.
type Param struct {
	Name string
	// Type is the textual type as declared, e.g. "int", "Vector<int>",
	// "%Peer", "!X", "#". For a flag-gated parameter it is the inner
	// type only ("Bool" for "flags.3?Bool"); the gate is in Flag/Pow.
	Type string
	// Flag is the name of the sibling bitfield parameter gating this
	// one, or "" if this parameter is not flag-gated.
	Flag string
	// Pow is the bit mask (1<<N) tested/set in Flag's value. Zero if
	// not flag-gated.
	Pow uint32
	// Subtype is the element type for Vector/vector params, or "".
	Subtype string
}

// FlagGated reports whether this parameter is optional, gated by a bit
// in a sibling bitfield parameter.
func (p Param) FlagGated() bool { return p.Flag != "" }

// IsVector reports whether this parameter is a (bare or boxed) vector.
func (p Param) IsVector() bool { return p.Subtype != "" }

// Entry is a single constructor or method declaration.
type Entry struct {
	// Name is the predicate (constructors) or method (methods) dotted
	// identifier.
	Name string
	// ID holds the 4-byte little-endian encoding of the 32-bit
	// identifier.
	ID [4]byte
	// Type is the return/result type name.
	Type string
	// Layer is the schema generation this entry first appeared in, or
	// AnyLayer if unspecified.
	Layer int
	Params []Param
	Origin Origin
	// Method distinguishes a method declaration from a constructor.
	Method bool
}

// IDUint32 returns the entry's identifier as a host uint32.
func (e Entry) IDUint32() uint32 {
	return binary.LittleEndian.Uint32(e.ID[:])
}

// Namespace returns the leading dotted component of a method name
// ("messages" for "messages.sendMessage"), or "" if the name carries no
// namespace.
func (e Entry) Namespace() string {
	if i := strings.IndexByte(e.Name, '.'); i >= 0 {
		return e.Name[:i]
	}
	return ""
}

func idBytes(id uint32) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], id)
	return b
}
