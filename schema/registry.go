/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry indexes a set of schema Entries: by id, by (predicate,
// layer), by type, and by method namespace. A Registry is safe for
// concurrent reads once built; AddEntries is the only mutator and is
// itself safe to call concurrently with reads of a prior generation,
// though callers should not interleave reads with a load in progress.
type Registry struct {
	mtx sync.RWMutex

	byID        map[uint32]Entry
	byPredicate map[string][]Entry // sorted ascending by Layer
	byType      map[string]Entry
	namespaces  map[string]bool
	methodNS    map[string]string

	secretLayer int
}

// NewRegistry returns an empty Registry ready for AddEntries.
func NewRegistry() *Registry {
	return &Registry{
		byID:        make(map[uint32]Entry),
		byPredicate: make(map[string][]Entry),
		byType:      make(map[string]Entry),
		namespaces:  make(map[string]bool),
		methodNS:    make(map[string]string),
		secretLayer: AnyLayer,
	}
}

// AddEntries merges a batch of parsed entries into the registry,
// maintaining the by_id/by_predicate/by_type/namespace indexes and the
// monotonic secret_layer watermark.
func (r *Registry) AddEntries(entries []Entry) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, e := range entries {
		id := e.IDUint32()
		if existing, ok := r.byID[id]; ok && existing.Name != e.Name {
			return fmt.Errorf("schema: id collision between %q and %q", existing.Name, e.Name)
		}
		r.byID[id] = e

		r.byPredicate[e.Name] = insertByLayer(r.byPredicate[e.Name], e)

		if !e.Method {
			if _, ok := r.byType[e.Type]; !ok {
				r.byType[e.Type] = e
			}
		} else if ns := e.Namespace(); ns != "" {
			r.namespaces[ns] = true
			r.methodNS[e.Name] = ns
		}

		if e.Origin == OriginSecret && e.Layer > r.secretLayer {
			r.secretLayer = e.Layer
		}
	}
	return nil
}

func insertByLayer(existing []Entry, e Entry) []Entry {
	existing = append(existing, e)
	sort.SliceStable(existing, func(i, j int) bool { return existing[i].Layer < existing[j].Layer })
	return existing
}

// FindByID looks up an entry by its 32-bit identifier.
func (r *Registry) FindByID(id uint32) (Entry, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}

// FindByPredicate returns the entry named name with the highest Layer
// not exceeding requestedLayer, or any entry (the highest-layer one) if
// requestedLayer is AnyLayer.
func (r *Registry) FindByPredicate(name string, requestedLayer int) (Entry, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	versions := r.byPredicate[name]
	if len(versions) == 0 {
		return Entry{}, false
	}
	if requestedLayer == AnyLayer {
		return versions[len(versions)-1], true
	}
	var best Entry
	var found bool
	for _, e := range versions {
		if e.Layer <= requestedLayer {
			best = e
			found = true
		}
	}
	return best, found
}

// FindByType returns a representative constructor whose Type equals t,
// used to resolve `%T` bare-discipline targets and auto-tagging.
func (r *Registry) FindByType(t string) (Entry, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	e, ok := r.byType[t]
	return e, ok
}

// MethodNamespaces returns the set of namespaces observed across
// dotted method names (e.g. "messages" from "messages.sendMessage").
func (r *Registry) MethodNamespaces() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// MethodNamespace returns the namespace a method name belongs to, if
// any.
func (r *Registry) MethodNamespace(method string) (string, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	ns, ok := r.methodNS[method]
	return ns, ok
}

// SecretLayer returns the maximum Layer observed across entries of
// OriginSecret, or AnyLayer if none were loaded.
func (r *Registry) SecretLayer() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.secretLayer
}
