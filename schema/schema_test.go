/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package schema

import "testing"

const sampleText = `
//@description Sent to confirm peer
---types---
inputPeerUser#7b8e7de6 user_id:long access_hash:long = InputPeer;
peerUser#59511722 user_id:long = Peer;
===2===
updateNewMessage#1f2b0afd message:Message pts:int pts_count:int = Update;
---functions---
messages.sendMessage#d7e414c8 flags:# no_webpage:flags.1?true peer:InputPeer random_id:long message:string = Updates;
`

func TestLoadTextBasic(t *testing.T) {
	l := &Loader{}
	entries, err := l.LoadText([]byte(sampleText), OriginAPI)
	if err != nil {
		t.Fatalf("LoadText: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", len(entries), entries)
	}

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	ipu, ok := byName["inputPeerUser"]
	if !ok {
		t.Fatalf("missing inputPeerUser")
	}
	if ipu.Method {
		t.Fatalf("inputPeerUser should not be a method")
	}
	if len(ipu.Params) != 2 || ipu.Params[0].Name != "user_id" || ipu.Params[0].Type != "long" {
		t.Fatalf("unexpected params: %+v", ipu.Params)
	}

	unm, ok := byName["updateNewMessage"]
	if !ok || unm.Layer != 2 {
		t.Fatalf("updateNewMessage should carry layer 2, got %+v ok=%v", unm, ok)
	}

	sm, ok := byName["messages.sendMessage"]
	if !ok {
		t.Fatalf("missing messages.sendMessage")
	}
	if !sm.Method {
		t.Fatalf("messages.sendMessage should be a method")
	}
	if sm.Namespace() != "messages" {
		t.Fatalf("expected namespace messages, got %q", sm.Namespace())
	}
	var flagsParam, noWebpage *Param
	for i := range sm.Params {
		switch sm.Params[i].Name {
		case "flags":
			flagsParam = &sm.Params[i]
		case "no_webpage":
			noWebpage = &sm.Params[i]
		}
	}
	if flagsParam == nil || flagsParam.Type != "#" {
		t.Fatalf("flags param missing or wrong type: %+v", flagsParam)
	}
	if noWebpage == nil || noWebpage.Flag != "flags" || noWebpage.Pow != 2 {
		t.Fatalf("no_webpage flag gating wrong: %+v", noWebpage)
	}
}

func TestDeclaredIDTrusted(t *testing.T) {
	var mismatches int
	l := &Loader{OnIDMismatch: func(origin Origin, name string, declared, computed uint32) {
		mismatches++
	}}
	// deliberately wrong id
	const bad = `fakePredicate#00000000 x:int = FakeType;`
	entries, err := l.LoadText([]byte(bad), OriginAPI)
	if err != nil {
		t.Fatalf("LoadText: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].IDUint32() != 0 {
		t.Fatalf("declared id should be trusted even though it mismatches computed id")
	}
	if mismatches != 1 {
		t.Fatalf("expected exactly one reported mismatch, got %d", mismatches)
	}
}

func TestPrimitiveRedeclarationIgnored(t *testing.T) {
	l := &Loader{}
	entries, err := l.LoadText([]byte(`vector#1cb5c415 {t:Type} # [ t ] = Vector t;`), OriginAPI)
	if err != nil {
		t.Fatalf("LoadText: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected the vector forward-declaration to be skipped, got %+v", entries)
	}
}

func TestGenericHintLineIgnored(t *testing.T) {
	l := &Loader{}
	entries, err := l.LoadText([]byte(`int ?= Int;`), OriginAPI)
	if err != nil {
		t.Fatalf("LoadText: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected generic hint line to be skipped, got %+v", entries)
	}
}

func TestLoadJSONPacksSignedID(t *testing.T) {
	const js = `{
		"constructors": [
			{"predicate":"boolTrue","id":-1720552011,"type":"Bool","params":[]}
		],
		"methods": []
	}`
	l := &Loader{}
	entries, err := l.LoadJSON([]byte(js), OriginAPI)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry")
	}
	if entries[0].IDUint32() != uint32(int32(-1720552011)) {
		t.Fatalf("id not packed as signed int32: got %#x", entries[0].IDUint32())
	}
}

func TestLoadVectorParam(t *testing.T) {
	l := &Loader{}
	entries, err := l.LoadText([]byte(`contacts.resolvedPeer#f227a21c peers:Vector<Peer> users:Vector<User> = contacts.ResolvedPeer;`), OriginAPI)
	if err != nil {
		t.Fatalf("LoadText: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry")
	}
	p := entries[0].Params[0]
	if !p.IsVector() || p.Subtype != "Peer" {
		t.Fatalf("expected vector param with subtype Peer, got %+v", p)
	}
}
