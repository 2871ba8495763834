/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package callback implements the six hook categories that let a host
// observe or alter serialize/deserialize dispatch at precise points.
// The category maps are rebuilt wholesale by UpdateCallbacks rather
// than mutated incrementally.
package callback

import (
	"errors"
	"sync"
)

var ErrNilCallback = errors.New("callback: registration has a nil function")

// AsyncTask is deferred work a hook hands back instead of running inline.
// The codec never calls it; it is collected into the asyncHooks list
// returned from a decode and run later by the host (see package
// deserialize's AsyncHook alias).
type AsyncTask func() error

// ConstructorHook fires around constructor decode. Before hooks observe
// the predicate before fields are read; after hooks observe the fully
// decoded value. An after hook's non-nil return is queued as an
// AsyncTask rather than run inline; a before hook's return is discarded.
type ConstructorHook func(predicate string, value interface{}) AsyncTask

// SerializeHook may replace a value immediately before it is serialized
// under a given predicate.
type SerializeHook func(predicate string, value interface{}) interface{}

// MismatchHook coerces a value when a serialize target expected
// predicate T but the value didn't carry it.
type MismatchHook func(targetType string, value interface{}) interface{}

// MethodHook fires around an rpc_result's decode; outgoing is the
// matching pending request (typed as interface{} here to avoid a import
// cycle with package message — hosts type-assert to *message.Outgoing).
// A METHOD hook's non-nil return is queued as an AsyncTask rather than
// run inline; a METHOD_BEFORE hook's return is discarded.
type MethodHook func(method string, outgoing interface{}, result interface{}) AsyncTask

// Registration is one named hook to install via UpdateCallbacks.
type Registration struct {
	// Name is the predicate (constructor hooks) or method name
	// (method hooks) this registration applies to.
	Name string

	ConstructorBefore    ConstructorHook
	Constructor          ConstructorHook
	ConstructorSerialize SerializeHook
	MethodBefore         MethodHook
	Method               MethodHook
	TypeMismatch         MismatchHook
}

// Registry holds the six hook category maps. The zero value is usable.
// Reads are safe for concurrent use; the only mutator is UpdateCallbacks,
// which atomically replaces all six maps.
type Registry struct {
	mtx sync.RWMutex

	constructorBefore    map[string][]ConstructorHook
	constructor          map[string][]ConstructorHook
	constructorSerialize map[string]SerializeHook
	methodBefore         map[string][]MethodHook
	method               map[string][]MethodHook
	typeMismatch         map[string]MismatchHook
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		constructorBefore:    make(map[string][]ConstructorHook),
		constructor:          make(map[string][]ConstructorHook),
		constructorSerialize: make(map[string]SerializeHook),
		methodBefore:         make(map[string][]MethodHook),
		method:               make(map[string][]MethodHook),
		typeMismatch:         make(map[string]MismatchHook),
	}
}

// UpdateCallbacks rebuilds all six category maps from regs. Within a
// name, CONSTRUCTOR_BEFORE/CONSTRUCTOR/METHOD_BEFORE/METHOD accumulate
// newest-first (the last Registration passed for a name ends up at index
// 0); CONSTRUCTOR_SERIALIZE and TYPE_MISMATCH are last-writer-wins.
func (r *Registry) UpdateCallbacks(regs []Registration) error {
	cb := make(map[string][]ConstructorHook)
	c := make(map[string][]ConstructorHook)
	cs := make(map[string]SerializeHook)
	mb := make(map[string][]MethodHook)
	m := make(map[string][]MethodHook)
	tm := make(map[string]MismatchHook)

	for _, reg := range regs {
		if reg.Name == "" {
			return ErrNilCallback
		}
		if reg.ConstructorBefore != nil {
			cb[reg.Name] = prepend(cb[reg.Name], reg.ConstructorBefore)
		}
		if reg.Constructor != nil {
			c[reg.Name] = prepend(c[reg.Name], reg.Constructor)
		}
		if reg.ConstructorSerialize != nil {
			cs[reg.Name] = reg.ConstructorSerialize
		}
		if reg.MethodBefore != nil {
			mb[reg.Name] = prepend(mb[reg.Name], reg.MethodBefore)
		}
		if reg.Method != nil {
			m[reg.Name] = prepend(m[reg.Name], reg.Method)
		}
		if reg.TypeMismatch != nil {
			tm[reg.Name] = reg.TypeMismatch
		}
	}

	r.mtx.Lock()
	r.constructorBefore = cb
	r.constructor = c
	r.constructorSerialize = cs
	r.methodBefore = mb
	r.method = m
	r.typeMismatch = tm
	r.mtx.Unlock()
	return nil
}

func prepend[H any](existing []H, h H) []H {
	return append([]H{h}, existing...)
}

// ConstructorBefore returns the newest-first hook list for predicate.
func (r *Registry) ConstructorBefore(predicate string) []ConstructorHook {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.constructorBefore[predicate]
}

// Constructor returns the newest-first hook list for predicate.
func (r *Registry) Constructor(predicate string) []ConstructorHook {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.constructor[predicate]
}

// ConstructorSerializeHook returns the single registered hook for
// predicate, if any.
func (r *Registry) ConstructorSerializeHook(predicate string) (SerializeHook, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	h, ok := r.constructorSerialize[predicate]
	return h, ok
}

// MethodBefore returns the newest-first hook list for method.
func (r *Registry) MethodBefore(method string) []MethodHook {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.methodBefore[method]
}

// Method returns the newest-first hook list for method.
func (r *Registry) Method(method string) []MethodHook {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.method[method]
}

// TypeMismatchHook returns the single registered hook for targetType, if
// any.
func (r *Registry) TypeMismatchHook(targetType string) (MismatchHook, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	h, ok := r.typeMismatch[targetType]
	return h, ok
}
