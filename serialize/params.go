/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package serialize

import (
	"crypto/rand"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/gravwell/tlproto/schema"
	"github.com/gravwell/tlproto/tlerr"
	"github.com/gravwell/tlproto/tlvalue"
)

// serializeParams implements a two-pass protocol: a flag-computation
// pass (later params can gate earlier-declared ones, so it runs over the
// full param list before any bytes are emitted), then an emission pass
// that supplies conventional defaults and recurses.
func (s *Serializer) serializeParams(entry schema.Entry, rec *tlvalue.Record, layer int) ([]byte, error) {
	work := tlvalue.NewRecord(entry.Name)
	if rec != nil {
		work = rec.Clone()
	}

	flagBits := map[string]uint32{}
	for _, p := range entry.Params {
		if !p.FlagGated() {
			continue
		}
		val, present := work.Get(p.Name)
		truthy := present && !val.IsNil()
		if p.Type == "true" && truthy {
			if b, ok := val.Interface().(bool); ok {
				truthy = b
			}
		}
		if truthy {
			flagBits[p.Flag] |= p.Pow
		}
	}
	for flagName, bits := range flagBits {
		work.Set(flagName, tlvalue.Primitive(int32(bits)))
	}

	var out []byte
	for _, p := range entry.Params {
		if p.FlagGated() {
			var bitval uint32
			if bits, ok := work.Get(p.Flag); ok && bits.Kind() == tlvalue.KindPrimitive {
				if n, ok := bits.Interface().(int32); ok {
					bitval = uint32(n)
				}
			}
			if bitval&p.Pow == 0 {
				continue
			}
			if p.Type == "true" {
				continue
			}
		}

		argVal, present := work.Get(p.Name)
		if !present || argVal.IsNil() {
			resolved, err := s.resolveDefault(entry, p, work)
			if err != nil {
				return nil, err
			}
			argVal = resolved
		}

		if p.Type == "DataJSON" || p.Type == "%DataJSON" {
			wrapped, err := wrapDataJSON(argVal)
			if err != nil {
				return nil, err
			}
			argVal = wrapped
		}

		sub := TypeCtx{Type: p.Type, Layer: layer}
		if p.IsVector() {
			// p.Type is "Vector<T>" or "vector<T>"; dispatch on the bare
			// "Vector"/"vector" name with T carried as Subtype.
			sub.Type = p.Type[:len("Vector")]
			sub.Subtype = p.Subtype
		}
		b, err := s.Serialize(sub, argVal, p.Name, layer)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// resolveDefault supplies a value for a missing non-flag-gated (or
// flag-gated-but-bit-set) parameter, following an ordered fallback
// list of conventional defaults.
func (s *Serializer) resolveDefault(entry schema.Entry, p schema.Param, work *tlvalue.Record) (tlvalue.Value, error) {
	switch {
	case p.Name == "random_bytes" && p.Type == "bytes":
		return tlvalue.Primitive(randomBytes(15 + 4*randIntn(2))), nil
	case p.Name == "random_id":
		return s.randomID(p, work)
	case p.Name == "hash":
		return zeroOf(p.Type), nil
	case p.Name == "flags" && (p.Type == "int" || p.Type == "#"):
		return tlvalue.Primitive(int32(0)), nil
	}

	if syn, ok := s.Synthesizers[entry.Name+"."+p.Name]; ok {
		return syn.Synthesize(entry.Name, p.Name, work)
	}

	switch p.Type {
	case "string", "bytes":
		return tlvalue.Primitive(""), nil
	case "int", "#":
		return tlvalue.Primitive(int32(0)), nil
	}
	if p.IsVector() {
		return tlvalue.Vector(nil), nil
	}
	if p.Type == "DataJSON" || p.Type == "%DataJSON" {
		return tlvalue.Primitive("null"), nil
	}

	// "<type>Empty"/"input<type>Empty" fallback, read against the
	// actual TL naming convention: composite types are already named
	// lowercase-first ("InputPeer" -> predicates "inputPeer*"), so the
	// bare candidate needs the same lowering, while the "input"-prefixed
	// candidate covers types with no "Input" prefix of their own (e.g.
	// "Peer" -> "inputPeerEmpty").
	bareType := strings.TrimPrefix(p.Type, "%")
	for _, candidate := range []string{lowerFirst(bareType) + "Empty", "input" + bareType + "Empty"} {
		if _, ok := s.Registry.FindByPredicate(candidate, schema.AnyLayer); ok {
			return tlvalue.FromRecord(tlvalue.NewRecord(candidate)), nil
		}
	}
	return tlvalue.Nil, tlerr.Wrap(tlerr.ErrMissingParam, "%s.%s", entry.Name, p.Name)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] += 'a' - 'A'
	}
	return string(r)
}

func zeroOf(typ string) tlvalue.Value {
	if typ == "long" {
		return tlvalue.Primitive(int64(0))
	}
	return tlvalue.Primitive(int32(0))
}

// randomID implements the long/int/Vector<long> shapes a random_id
// param can take, the Vector form matching its length to a sibling "id"
// array so e.g. messages.forwardMessages gets one random id per
// forwarded message.
func (s *Serializer) randomID(p schema.Param, work *tlvalue.Record) (tlvalue.Value, error) {
	if p.IsVector() {
		n := 0
		if sibling, ok := work.Get("id"); ok && sibling.Kind() == tlvalue.KindVector {
			n = len(sibling.Items())
		}
		items := make([]tlvalue.Value, n)
		for i := range items {
			items[i] = tlvalue.Primitive(randomInt64())
		}
		return tlvalue.Vector(items), nil
	}
	if p.Type == "int" {
		return tlvalue.Primitive(randomInt32()), nil
	}
	return tlvalue.Primitive(randomInt64()), nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

// randIntn returns a uniform-ish value in [0, maxInclusive].
func randIntn(maxInclusive int) int {
	b := make([]byte, 1)
	rand.Read(b)
	return int(b[0]) % (maxInclusive + 1)
}

func randomInt64() int64 {
	b := randomBytes(8)
	var v int64
	for i := 0; i < 8; i++ {
		v |= int64(b[i]) << (8 * uint(i))
	}
	return v
}

func randomInt32() int32 {
	b := randomBytes(4)
	var v int32
	for i := 0; i < 4; i++ {
		v |= int32(b[i]) << (8 * uint(i))
	}
	return v
}

// wrapDataJSON implements DataJSON wrapping: the argument is
// JSON-encoded and wrapped as {_:dataJSON, data:<json text>}.
func wrapDataJSON(v tlvalue.Value) (tlvalue.Value, error) {
	b, err := json.Marshal(toJSONable(v))
	if err != nil {
		return tlvalue.Nil, err
	}
	rec := tlvalue.NewRecord("dataJSON")
	rec.Set("data", tlvalue.Primitive(string(b)))
	return tlvalue.FromRecord(rec), nil
}

// toJSONable flattens a tlvalue.Value tree into plain Go values goccy/go-json
// can marshal, tagging records with a "_" discriminator to mirror the
// shape decoded values carry.
func toJSONable(v tlvalue.Value) interface{} {
	switch v.Kind() {
	case tlvalue.KindPrimitive:
		return v.Interface()
	case tlvalue.KindVector:
		items := v.Items()
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = toJSONable(it)
		}
		return out
	case tlvalue.KindRecord:
		r := v.Record()
		m := map[string]interface{}{"_": r.Predicate()}
		for _, name := range r.Names() {
			fv, _ := r.Get(name)
			m[name] = toJSONable(fv)
		}
		return m
	}
	return nil
}
