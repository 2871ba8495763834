/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package deserialize implements the TL deserializer: given a byte
// stream and an expected type context, it parses boxed/bare values,
// vectors, gzip-packed envelopes, and JSON-Value trees, firing the
// callback registry's CONSTRUCTOR_BEFORE/CONSTRUCTOR/METHOD_BEFORE/METHOD
// hooks along the way.
package deserialize

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/gravwell/tlproto/callback"
	"github.com/gravwell/tlproto/message"
	"github.com/gravwell/tlproto/schema"
	"github.com/gravwell/tlproto/serialize"
	"github.com/gravwell/tlproto/tlerr"
	"github.com/gravwell/tlproto/tlvalue"
	"github.com/gravwell/tlproto/wire"
)

// TypeCtx is shared with the serializer; deserialize never needs a field
// serialize.TypeCtx doesn't already carry.
type TypeCtx = serialize.TypeCtx

// AsyncHook is a callback-derived task the caller awaits after the main
// parse completes. It is deliberately opaque: what it wraps is up to
// the hook implementation (a host doing network I/O, a file write, ...).
// It is an alias, not a defined type, so CONSTRUCTOR/METHOD hooks
// returning callback.AsyncTask need no conversion at the call site.
type AsyncHook = callback.AsyncTask

// Deserializer parses wire bytes into tlvalue.Values against a schema
// registry, honoring installed callbacks and rpc_result type recovery.
type Deserializer struct {
	Registry  *schema.Registry
	Callbacks *callback.Registry
	Outgoing  message.OutgoingLookup
}

// New constructs a Deserializer over reg and cb. cb and outgoing may be
// nil: with no callbacks installed no hooks ever fire, and with no
// outgoing lookup an rpc_result's result decodes in discovery mode.
func New(reg *schema.Registry, cb *callback.Registry, outgoing message.OutgoingLookup) *Deserializer {
	return &Deserializer{Registry: reg, Callbacks: cb, Outgoing: outgoing}
}

// randomBytesMinLen is the INSECURE_RANDOM threshold, which must never
// be demoted to a soft warning.
const randomBytesMinLen = 15

// Deserialize is the C6 entry point.
func (d *Deserializer) Deserialize(r io.Reader, ctx TypeCtx) (tlvalue.Value, []AsyncHook, error) {
	switch ctx.Type {
	case "int", "#":
		v, err := wire.DecodeInt32(r)
		return tlvalue.Primitive(v), nil, err
	case "long":
		v, err := wire.DecodeInt64(r)
		return tlvalue.Primitive(v), nil, err
	case "double":
		v, err := wire.DecodeDouble(r)
		return tlvalue.Primitive(v), nil, err
	case "int128":
		v, err := wire.DecodeBlob(r, 16)
		return tlvalue.Primitive(v), nil, err
	case "int256":
		v, err := wire.DecodeBlob(r, 32)
		return tlvalue.Primitive(v), nil, err
	case "int512":
		v, err := wire.DecodeBlob(r, 64)
		return tlvalue.Primitive(v), nil, err
	case "string":
		v, err := wire.DecodeString(r)
		return tlvalue.Primitive(v), nil, err
	case "bytes":
		v, err := wire.DecodeBytes(r)
		return tlvalue.Primitive(v), nil, err
	case "rawlong":
		v, err := wire.DecodeRawLong(r)
		return tlvalue.Primitive(v), nil, err
	case "true":
		return tlvalue.Primitive(true), nil, nil
	case "Vector", "vector":
		return d.deserializeVector(r, ctx)
	default:
		return d.deserializeComposite(r, ctx)
	}
}

// deserializeVector implements boxed/bare vector dispatch: a boxed
// `Vector t` reads and validates the 4-byte id first (allowing a
// gzip_packed envelope or a vector id in its place), while a bare
// `vector` reads only the element count.
func (d *Deserializer) deserializeVector(r io.Reader, ctx TypeCtx) (tlvalue.Value, []AsyncHook, error) {
	if ctx.Type == "Vector" {
		idb, err := wire.DecodeBlob(r, 4)
		if err != nil {
			return tlvalue.Nil, nil, err
		}
		id := binary.LittleEndian.Uint32(idb)
		if entry, ok := d.Registry.FindByID(id); ok && entry.Name == "gzip_packed" {
			return d.deserializeGzipPacked(r, TypeCtx{Type: "", Layer: ctx.Layer})
		}
		if id != vectorConstructorID {
			return tlvalue.Nil, nil, tlerr.ErrInvalidVectorCtor
		}
	}
	count, err := wire.DecodeUint32(r)
	if err != nil {
		return tlvalue.Nil, nil, err
	}
	items := make([]tlvalue.Value, 0, count)
	var hooks []AsyncHook
	sub := TypeCtx{Type: ctx.Subtype, Layer: ctx.Layer}
	for i := uint32(0); i < count; i++ {
		v, hs, err := d.Deserialize(r, sub)
		if err != nil {
			return tlvalue.Nil, nil, err
		}
		items = append(items, v)
		hooks = append(hooks, hs...)
	}
	return tlvalue.Vector(items), hooks, nil
}

const vectorConstructorID uint32 = 0x1cb5c415

// resolvePredicate implements discovery mode: read the 4-byte id and
// resolve it against the registry.
func (d *Deserializer) resolvePredicate(r io.Reader) (schema.Entry, []byte, error) {
	idb, err := wire.DecodeBlob(r, 4)
	if err != nil {
		return schema.Entry{}, nil, err
	}
	id := binary.LittleEndian.Uint32(idb)
	entry, ok := d.Registry.FindByID(id)
	if !ok {
		return schema.Entry{}, idb, tlerr.Wrap(tlerr.ErrUnknownConstructor, "%#010x", id)
	}
	return entry, idb, nil
}

// deserializeComposite implements the composite decode sequence:
// resolve the entry, handle the gzip_packed/boolTrue/boolFalse special
// cases, then decode params in declared order against flags.
func (d *Deserializer) deserializeComposite(r io.Reader, ctx TypeCtx) (tlvalue.Value, []AsyncHook, error) {
	entry, err := d.resolveEntry(r, ctx)
	if err != nil {
		return tlvalue.Nil, nil, err
	}

	if entry.Name == "gzip_packed" {
		return d.deserializeGzipPacked(r, TypeCtx{Type: "", Layer: ctx.Layer})
	}
	if entry.Name == "boolTrue" {
		return tlvalue.Primitive(true), nil, nil
	}
	if entry.Name == "boolFalse" {
		return tlvalue.Primitive(false), nil, nil
	}

	rec := tlvalue.NewRecord(entry.Name)
	if d.Callbacks != nil {
		for _, hook := range d.Callbacks.ConstructorBefore(entry.Name) {
			hook(entry.Name, rec)
		}
	}

	var hooks []AsyncHook
	flagBits := map[string]uint32{}
	isRPCResult := entry.Name == "rpc_result"

	for _, p := range entry.Params {
		if p.Type == "#" {
			val, _, err := d.Deserialize(r, TypeCtx{Type: "int", Layer: ctx.Layer})
			if err != nil {
				return tlvalue.Nil, nil, err
			}
			bits, _ := val.Interface().(int32)
			flagBits[p.Name] = uint32(bits)
			rec.Set(p.Name, val)
			continue
		}

		if p.FlagGated() {
			if flagBits[p.Flag]&p.Pow == 0 {
				switch p.Type {
				case "true":
					rec.Set(p.Name, tlvalue.Primitive(false))
				case "Bool":
					rec.Set(p.Name, tlvalue.Primitive(false))
				}
				continue
			}
			if p.Type == "true" {
				rec.Set(p.Name, tlvalue.Primitive(true))
				continue
			}
		}

		sub := TypeCtx{Type: p.Type, Layer: ctx.Layer}
		if p.IsVector() {
			// p.Type is "Vector<T>" or "vector<T>"; dispatch on the bare
			// "Vector"/"vector" name with T carried as Subtype.
			sub.Type = p.Type[:len("Vector")]
			sub.Subtype = p.Subtype
		}
		sub = rewriteSpecialName(p.Name, sub)

		if isRPCResult && p.Name == "result" {
			if rct, ok := d.rpcResultType(rec); ok {
				sub = rct
			}
			if d.Callbacks != nil {
				if outRef, ok := d.lookupOutgoing(rec); ok {
					for _, hook := range d.Callbacks.MethodBefore(outRef.Constructor()) {
						hook(outRef.Constructor(), outRef, nil)
					}
				}
			}
		}

		v, hs, err := d.Deserialize(r, sub)
		if err != nil {
			return tlvalue.Nil, nil, err
		}
		hooks = append(hooks, hs...)

		if p.Name == "random_bytes" {
			if b, ok := v.Interface().([]byte); ok && len(b) < randomBytesMinLen {
				return tlvalue.Nil, nil, tlerr.ErrInsecureRandom
			}
			continue
		}

		rec.Set(p.Name, v)
	}

	d.postProcess(entry, rec)

	out := tlvalue.FromRecord(rec)
	if d.Callbacks != nil {
		for _, hook := range d.Callbacks.Constructor(entry.Name) {
			if task := hook(entry.Name, out); task != nil {
				hooks = append(hooks, task)
			}
		}
		if isRPCResult {
			if outRef, ok := d.lookupOutgoing(rec); ok {
				for _, hook := range d.Callbacks.Method(outRef.Constructor()) {
					if task := hook(outRef.Constructor(), outRef, out); task != nil {
						hooks = append(hooks, task)
					}
				}
			}
		}
	}

	rec.Delete("flags")
	rec.Delete("flags2")

	return out, hooks, nil
}

// resolveEntry resolves the constructor for a composite value. A bare
// type (a leading "%" on ctx.Type) carries no id on the wire - TL only
// permits a bare reference when the type has exactly one constructor, so
// the entry is found directly by type name. Anything else (a concrete
// boxed type, or "" for discovery mode) reads the 4-byte id and resolves
// it against the registry.
func (d *Deserializer) resolveEntry(r io.Reader, ctx TypeCtx) (schema.Entry, error) {
	if strings.HasPrefix(ctx.Type, "%") {
		typ := ctx.Type[1:]
		entry, ok := d.Registry.FindByType(typ)
		if !ok {
			return schema.Entry{}, tlerr.Wrap(tlerr.ErrUnknownConstructor, "bare type %s", typ)
		}
		return entry, nil
	}
	entry, _, err := d.resolvePredicate(r)
	return entry, err
}

// rewriteSpecialName applies a set of raw-long/raw-string coercions
// which change output shape only, never wire layout.
func rewriteSpecialName(name string, ctx TypeCtx) TypeCtx {
	switch name {
	case "msg_id", "req_msg_id", "bad_msg_id",
		"server_salt", "ping_id", "key_fingerprint":
		if ctx.Type == "long" {
			ctx.Type = "rawlong"
		}
	case "peer_tag", "file_token", "cdn_key", "cdn_iv":
		ctx.Type = "string"
	}
	return ctx
}

// lookupOutgoing recovers the OutgoingRef for an rpc_result's req_msg_id.
// req_msg_id decodes as a raw 8-byte string (rewriteSpecialName), not a
// host int64, so it's reassembled here the same way wire.DecodeInt64
// would have if the special-name rewrite hadn't intervened.
func (d *Deserializer) lookupOutgoing(rec *tlvalue.Record) (message.OutgoingRef, bool) {
	if d.Outgoing == nil {
		return nil, false
	}
	v, ok := rec.Get("req_msg_id")
	if !ok {
		return nil, false
	}
	raw, ok := v.Interface().([]byte)
	if !ok || len(raw) != 8 {
		return nil, false
	}
	id := int64(binary.LittleEndian.Uint64(raw))
	return d.Outgoing.ByMsgID(id)
}

// rpcResultType recovers the expected return TypeCtx for an rpc_result's
// result param, so vectors decode with the right element subtype.
func (d *Deserializer) rpcResultType(rec *tlvalue.Record) (TypeCtx, bool) {
	outRef, ok := d.lookupOutgoing(rec)
	if !ok {
		return TypeCtx{}, false
	}
	typ := outRef.Type()
	if strings.HasPrefix(typ, "Vector<") && strings.HasSuffix(typ, ">") {
		return TypeCtx{Type: "Vector", Subtype: typ[len("Vector<") : len(typ)-1]}, true
	}
	return TypeCtx{Type: typ}, true
}

// GetLength parses a value and returns only the consumed byte count.
func (d *Deserializer) GetLength(r io.Reader, ctx TypeCtx) (int, error) {
	cr := &countingReader{r: r}
	if _, _, err := d.Deserialize(cr, ctx); err != nil {
		return cr.n, err
	}
	return cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
