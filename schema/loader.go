/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package schema

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

var (
	ErrSchemaInvalid = errors.New("schema declaration is invalid")
)

// primitiveNames are the built-in primitive types plus the generic
// `vector` forward-declaration; declarations naming one of these are
// parsed (to keep line accounting correct) but never emitted as
// entries.
var primitiveNames = map[string]bool{
	"int": true, "long": true, "double": true, "string": true,
	"bytes": true, "int128": true, "int256": true, "int512": true,
	"vector": true, "Vector": true,
}

// MismatchReporter is invoked when a declaration's declared id does not
// match its computed id. The declared id is always the one trusted:
// this is diagnostic only.
type MismatchReporter func(origin Origin, name string, declared, computed uint32)

// UnknownOriginReporter is invoked when a Bundle's Other() names a label
// outside the known origins (api/mtproto/secret/td). It is diagnostic
// only: the label is still loaded into its own Registry.
type UnknownOriginReporter func(label string)

// Loader parses schema sources into Entry slices. The zero value is
// usable; OnIDMismatch may be set to observe id mismatches, and
// OnUnknownOrigin to observe unrecognized Bundle Other() labels.
type Loader struct {
	OnIDMismatch    MismatchReporter
	OnUnknownOrigin UnknownOriginReporter
}

func (l *Loader) reportMismatch(origin Origin, name string, declared, computed uint32) {
	if l != nil && l.OnIDMismatch != nil {
		l.OnIDMismatch(origin, name, declared, computed)
	}
}

func (l *Loader) reportUnknownOrigin(label string) {
	if l != nil && l.OnUnknownOrigin != nil {
		l.OnUnknownOrigin(label)
	}
}

// knownOrigins are the origins loadInto expects to see named explicitly
// by a Bundle (api/mtproto/secret) or used for the parallel td registry;
// anything else reaching LoadBundle through Other() is an origin the
// loader wasn't told about in advance.
var knownOrigins = map[Origin]bool{
	OriginAPI:     true,
	OriginMTProto: true,
	OriginSecret:  true,
	OriginTD:      true,
}

func isKnownOrigin(o Origin) bool {
	return knownOrigins[o]
}

// Load parses data as either JSON or textual TL, sniffing the format
// from the first non-whitespace byte.
func (l *Loader) Load(data []byte, origin Origin) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return l.LoadJSON(data, origin)
	}
	return l.LoadText(data, origin)
}

// --- JSON form -------------------------------------------------------

type jsonParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonEntry struct {
	Predicate string      `json:"predicate"`
	Method    string      `json:"method"`
	ID        json.Number `json:"id"`
	Type      string      `json:"type"`
	Params    []jsonParam `json:"params"`
	Layer     *int        `json:"layer,omitempty"`
}

type jsonSchema struct {
	Constructors []jsonEntry `json:"constructors"`
	Methods      []jsonEntry `json:"methods"`
}

// LoadJSON parses the `{constructors:[...], methods:[...]}` schema
// shape. Declared ids are already numeric; they are packed as a signed
// little-endian int32, matching how they appear in the official schema
// dumps (e.g. -1132882121).
func (l *Loader) LoadJSON(data []byte, origin Origin) ([]Entry, error) {
	var js jsonSchema
	if err := json.Unmarshal(data, &js); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	var out []Entry
	for _, je := range js.Constructors {
		e, err := l.compileJSONEntry(je, origin, false)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	for _, je := range js.Methods {
		e, err := l.compileJSONEntry(je, origin, true)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *Loader) compileJSONEntry(je jsonEntry, origin Origin, method bool) (Entry, error) {
	name := je.Predicate
	if method {
		name = je.Method
	}
	if name == "" {
		return Entry{}, fmt.Errorf("%w: entry missing name", ErrSchemaInvalid)
	}
	idv, err := je.ID.Int64()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %v", ErrSchemaInvalid, name, err)
	}
	declared := uint32(int32(idv))

	raw := make([]RawParam, 0, len(je.Params))
	for _, p := range je.Params {
		raw = append(raw, RawParam{Name: p.Name, Type: p.Type})
	}
	layer := AnyLayer
	if je.Layer != nil {
		layer = *je.Layer
	}
	e := Entry{
		Name:   name,
		ID:     idBytes(declared),
		Type:   je.Type,
		Layer:  layer,
		Params: CompileParams(raw),
		Origin: origin,
		Method: method,
	}
	if computed, ok := l.computedIDFromEntry(e); ok && computed != declared {
		l.reportMismatch(origin, name, declared, computed)
	}
	return e, nil
}

// computedIDFromEntry reconstructs a canonical declaration line from a
// structured Entry and computes its id, for the diagnostic mismatch
// check on JSON-sourced entries (which carry no original text to
// re-normalize).
func (l *Loader) computedIDFromEntry(e Entry) (uint32, bool) {
	var sb strings.Builder
	sb.WriteString(e.Name)
	for _, p := range e.Params {
		sb.WriteByte(' ')
		sb.WriteString(p.Name)
		sb.WriteByte(':')
		if p.FlagGated() {
			n := trailingBit(p.Pow)
			if n < 0 {
				return 0, false
			}
			fmt.Fprintf(&sb, "flags.%d?%s", n, p.Type)
		} else {
			sb.WriteString(p.Type)
		}
	}
	sb.WriteString(" = ")
	sb.WriteString(e.Type)
	keepBytes := bytesPreservingOrigins[e.Origin]
	return ComputeID(sb.String(), keepBytes), true
}

func trailingBit(pow uint32) int {
	if pow == 0 {
		return -1
	}
	n := 0
	for pow > 1 {
		pow >>= 1
		n++
	}
	return n
}

// --- Textual .tl form --------------------------------------------------

var (
	sectionRe = regexp.MustCompile(`^---(\w+)---$`)
	layerRe   = regexp.MustCompile(`^===(\d+)===$`)
)

// LoadText parses the textual TL schema form: directive lines,
// section/layer markers, and possibly-multi-line declarations
// terminated by `;`.
func (l *Loader) LoadText(data []byte, origin Origin) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	section := "types"
	layer := AnyLayer
	var buf strings.Builder

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "//") {
			continue // directive (`//@key value`) or plain comment, recognized and ignored
		}
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section = m[1]
			continue
		}
		if m := layerRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				layer = n
			}
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)
		if !strings.Contains(line, ";") {
			continue
		}
		decl := buf.String()
		buf.Reset()
		e, ok, err := l.parseDeclaration(decl, origin, layer, section == "functions")
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) parseDeclaration(decl string, origin Origin, layer int, method bool) (Entry, bool, error) {
	decl = strings.TrimSpace(decl)
	decl = strings.TrimSuffix(decl, ";")
	decl = strings.TrimSpace(decl)
	if decl == "" {
		return Entry{}, false, nil
	}
	if strings.Contains(decl, "?=") {
		return Entry{}, false, nil // generic type-hint line, not a declaration
	}

	eq := strings.LastIndex(decl, " = ")
	if eq < 0 {
		return Entry{}, false, fmt.Errorf("%w: %q missing result type", ErrSchemaInvalid, decl)
	}
	left := strings.TrimSpace(decl[:eq])
	resultType := strings.TrimSpace(decl[eq+3:])

	tokens := strings.Fields(left)
	if len(tokens) == 0 {
		return Entry{}, false, fmt.Errorf("%w: empty declaration head", ErrSchemaInvalid)
	}

	nameTok := tokens[0]
	name := nameTok
	var declaredID uint32
	var hasDeclaredID bool
	if idx := strings.IndexByte(nameTok, '#'); idx >= 0 {
		name = nameTok[:idx]
		if v, err := strconv.ParseUint(nameTok[idx+1:], 16, 32); err == nil {
			declaredID = uint32(v)
			hasDeclaredID = true
		}
	}

	if primitiveNames[name] {
		return Entry{}, false, nil
	}

	var raw []RawParam
	for _, tok := range tokens[1:] {
		if strings.HasPrefix(tok, "{") {
			continue // generic-arg introducer, dropped
		}
		ci := strings.IndexByte(tok, ':')
		if ci < 0 {
			continue
		}
		raw = append(raw, RawParam{Name: tok[:ci], Type: tok[ci+1:]})
	}

	keepBytes := bytesPreservingOrigins[origin]
	computed := ComputeID(decl+";", keepBytes)

	id := computed
	if hasDeclaredID {
		id = declaredID
		if declaredID != computed {
			l.reportMismatch(origin, name, declaredID, computed)
		}
	}

	e := Entry{
		Name:   name,
		ID:     idBytes(id),
		Type:   resultType,
		Layer:  layer,
		Params: CompileParams(raw),
		Origin: origin,
		Method: method,
	}
	return e, true, nil
}
