/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package schema

import (
	"strconv"
	"strings"
)

// RawParam is an uncompiled (name, textual-type) pair, the common shape
// both the JSON and textual loaders produce before flag/vector
// derivation.
type RawParam struct {
	Name string
	Type string
}

// CompileParams derives the flag/pow/subtype fields of each parameter in
// declaration order, tracking the nearest-preceding `#` (bitfield)
// parameter as the flag owner for any `flags.N?Inner` parameter that
// follows it.
func CompileParams(raw []RawParam) []Param {
	var out []Param
	var flagsOwner string
	for _, r := range raw {
		if r.Type == "#" {
			flagsOwner = r.Name
			out = append(out, Param{Name: r.Name, Type: "#"})
			continue
		}
		if n, inner, ok := splitFlagGate(r.Type); ok {
			typ, subtype := splitVector(inner)
			out = append(out, Param{
				Name:    r.Name,
				Type:    typ,
				Flag:    flagsOwner,
				Pow:     uint32(1) << uint(n),
				Subtype: subtype,
			})
			continue
		}
		typ, subtype := splitVector(r.Type)
		out = append(out, Param{Name: r.Name, Type: typ, Subtype: subtype})
	}
	return out
}

// splitFlagGate recognizes a `flags.N?Inner` type string, returning N,
// Inner, and true. Generic-arg references like `!X` or `%T` never match.
func splitFlagGate(t string) (n int, inner string, ok bool) {
	if !strings.HasPrefix(t, "flags.") && !strings.HasPrefix(t, "flags2.") {
		return 0, "", false
	}
	dot := strings.IndexByte(t, '.')
	q := strings.IndexByte(t, '?')
	if dot < 0 || q < 0 || q < dot {
		return 0, "", false
	}
	v, err := strconv.Atoi(t[dot+1 : q])
	if err != nil {
		return 0, "", false
	}
	return v, t[q+1:], true
}

// splitVector recognizes a `Vector<T>`/`vector<T>` type string, returning
// the outer type unchanged and the element type as subtype. Non-vector
// types return subtype == "".
func splitVector(t string) (typ, subtype string) {
	lower := strings.ToLower(t)
	if strings.HasPrefix(lower, "vector<") && strings.HasSuffix(t, ">") {
		return t, t[len("vector<") : len(t)-1]
	}
	return t, ""
}
