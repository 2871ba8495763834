/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package serialize implements the TL serializer: given a type context
// and a tlvalue.Value, it produces wire bytes honoring
// flag-gated optional fields, bare/boxed discipline, vectors, recursion,
// and the callback registry's CONSTRUCTOR_SERIALIZE/TYPE_MISMATCH hooks.
package serialize

import (
	"encoding/binary"
	"strings"

	"github.com/gravwell/tlproto/callback"
	"github.com/gravwell/tlproto/schema"
	"github.com/gravwell/tlproto/tlerr"
	"github.com/gravwell/tlproto/tlvalue"
	"github.com/gravwell/tlproto/wire"
)

// vectorConstructorID is the well-known boxed `vector` constructor id
// shared by every MTProto schema generation.
const vectorConstructorID uint32 = 0x1cb5c415

// TypeCtx names the expected type for one serialize/deserialize call. A
// leading "%" on Type requests bare (un-prefixed) encoding of a
// composite value; Subtype carries a vector's element type, set only
// when Type is "Vector" or "vector".
type TypeCtx struct {
	Type    string
	Subtype string
	Layer   int
}

// ParamSynthesizer lets a host supply one of the external-collaborator
// parameters a method can require (InputFile upload, secret-chat data,
// InputEncryptedChat) in place of MISSING_PARAM, keyed by "method.param".
type ParamSynthesizer interface {
	Synthesize(method, param string, rec *tlvalue.Record) (tlvalue.Value, error)
}

// Serializer produces wire bytes for tlvalue.Values against a schema
// registry, honoring installed callbacks and param synthesizers.
type Serializer struct {
	Registry     *schema.Registry
	Callbacks    *callback.Registry
	Synthesizers map[string]ParamSynthesizer
}

// New constructs a Serializer over reg and cb. cb may be nil, meaning no
// hooks are ever fired.
func New(reg *schema.Registry, cb *callback.Registry) *Serializer {
	return &Serializer{Registry: reg, Callbacks: cb, Synthesizers: map[string]ParamSynthesizer{}}
}

// messageEntityMentionNameRewrite is the one special-cased constructor
// substitution this serializer applies by name.
const (
	messageEntityMentionName      = "messageEntityMentionName"
	inputMessageEntityMentionName = "inputMessageEntityMentionName"
)

// Serialize is the C5 entry point.
func (s *Serializer) Serialize(ctx TypeCtx, v tlvalue.Value, paramName string, layer int) ([]byte, error) {
	switch ctx.Type {
	case "int", "#":
		return encodeInt(v)
	case "long":
		return wire.EncodeLong(v.Interface())
	case "double":
		f, _ := v.Interface().(float64)
		return wire.EncodeDouble(f), nil
	case "int128":
		return encodeBlob(v, 16)
	case "int256":
		return encodeBlob(v, 32)
	case "int512":
		return encodeBlob(v, 64)
	case "string":
		return wire.EncodeString(toBytesOrString(v)), nil
	case "bytes":
		return wire.EncodeBytes(toBytes(v)), nil
	case "Bool":
		return s.serializeBool(v, layer)
	case "true":
		return nil, nil
	case "!X":
		return toBytes(v), nil
	case "Vector", "vector":
		return s.serializeVector(ctx, v, layer)
	case "Object":
		if b := toBytes(v); b != nil {
			return b, nil
		}
		return s.serializeComposite(ctx, v, layer)
	default:
		return s.serializeComposite(ctx, v, layer)
	}
}

func encodeInt(v tlvalue.Value) ([]byte, error) {
	switch n := v.Interface().(type) {
	case int32:
		return wire.EncodeInt32(n), nil
	case int:
		return wire.EncodeInt32(int32(n)), nil
	case uint32:
		return wire.EncodeUint32(n), nil
	}
	return nil, tlerr.ErrNotNumeric
}

func encodeBlob(v tlvalue.Value, width int) ([]byte, error) {
	return wire.EncodeBlob(toBytes(v), width)
}

func toBytes(v tlvalue.Value) []byte {
	switch b := v.Interface().(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	return nil
}

func toBytesOrString(v tlvalue.Value) string {
	switch b := v.Interface().(type) {
	case string:
		return b
	case []byte:
		return string(b)
	}
	return ""
}

func (s *Serializer) serializeBool(v tlvalue.Value, layer int) ([]byte, error) {
	name := "boolFalse"
	if b, ok := v.Interface().(bool); ok && b {
		name = "boolTrue"
	}
	entry, ok := s.Registry.FindByPredicate(name, layer)
	if !ok {
		return nil, tlerr.Wrap(tlerr.ErrBadPredicate, name)
	}
	return idBytes(entry), nil
}

func idBytes(e schema.Entry) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, e.IDUint32())
	return b
}

func (s *Serializer) serializeVector(ctx TypeCtx, v tlvalue.Value, layer int) ([]byte, error) {
	if v.Kind() != tlvalue.KindVector {
		return nil, tlerr.ErrArrayRequired
	}
	items := v.Items()
	var out []byte
	if ctx.Type == "Vector" {
		idb := make([]byte, 4)
		binary.LittleEndian.PutUint32(idb, vectorConstructorID)
		out = append(out, idb...)
	}
	count := make([]byte, 4)
	binary.LittleEndian.PutUint32(count, uint32(len(items)))
	out = append(out, count...)
	sub := TypeCtx{Type: ctx.Subtype, Layer: layer}
	for _, item := range items {
		b, err := s.Serialize(sub, item, "", layer)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// serializeComposite implements the composite-dispatch algorithm:
// bare-sigil stripping, TYPE_MISMATCH coercion, auto-tag,
// CONSTRUCTOR_SERIALIZE replacement, bare/boxed choice, and id emission.
func (s *Serializer) serializeComposite(ctx TypeCtx, v tlvalue.Value, layer int) ([]byte, error) {
	typ := ctx.Type
	bare := false
	if strings.HasPrefix(typ, "%") {
		bare = true
		typ = typ[1:]
	}

	predicate := v.Record().Predicate()
	if predicate != "" && s.Callbacks != nil {
		if entry, ok := s.Registry.FindByPredicate(predicate, layer); !ok || entry.Type != typ {
			if hook, ok := s.Callbacks.TypeMismatchHook(typ); ok {
				if coerced, ok := hook(typ, v).(tlvalue.Value); ok {
					v = coerced
					predicate = v.Record().Predicate()
				}
			}
		}
	}

	if predicate == "" {
		if entry, ok := s.Registry.FindByType(typ); ok {
			if rec := v.Record(); rec != nil {
				rec = rec.Clone()
				rec.SetPredicate(entry.Name)
				v = tlvalue.FromRecord(rec)
			} else {
				v = tlvalue.FromRecord(tlvalue.NewRecord(entry.Name))
			}
			predicate = entry.Name
		}
	}

	if predicate == messageEntityMentionName {
		predicate = inputMessageEntityMentionName
	}

	entry, ok := s.Registry.FindByPredicate(predicate, layer)
	if !ok {
		return nil, tlerr.Wrap(tlerr.ErrBadPredicate, predicate)
	}

	if s.Callbacks != nil {
		if hook, ok := s.Callbacks.ConstructorSerializeHook(entry.Name); ok {
			if replaced, ok := hook(entry.Name, v).(tlvalue.Value); ok {
				v = replaced
			}
		}
	}

	bare = bare || entry.Name == typ

	body, err := s.serializeParams(entry, v.Record(), layer)
	if err != nil {
		return nil, err
	}
	if bare {
		return body, nil
	}
	return append(idBytes(entry), body...), nil
}
