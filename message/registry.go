/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package message

import "sync"

// Pending tracks in-flight Outgoing messages keyed by msg_id, and
// implements OutgoingLookup so the deserializer can recover an
// rpc_result's originating type. It plays the same bookkeeping role as
// a connection handler table, narrowed here to message lifecycle
// rather than socket routing.
type Pending struct {
	mtx  sync.Mutex
	byID map[int64]*Outgoing
}

func NewPending() *Pending {
	return &Pending{byID: make(map[int64]*Outgoing)}
}

// Track registers msg as awaiting a reply under id.
func (p *Pending) Track(id int64, msg *Outgoing) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	msg.SetMsgID(id)
	p.byID[id] = msg
}

// ByMsgID implements OutgoingLookup.
func (p *Pending) ByMsgID(msgID int64) (OutgoingRef, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	m, ok := p.byID[msgID]
	if !ok {
		return nil, false
	}
	return m, true
}

// Get returns the tracked *Outgoing for id, for callers that need to
// drive its lifecycle (Ack/Reply) rather than just read it back.
func (p *Pending) Get(id int64) (*Outgoing, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	m, ok := p.byID[id]
	return m, ok
}

// Sweep drops every tracked message whose CanGarbageCollect is true and
// returns how many were removed.
func (p *Pending) Sweep() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	n := 0
	for id, m := range p.byID {
		if m.CanGarbageCollect() {
			delete(p.byID, id)
			n++
		}
	}
	return n
}

// Len reports how many messages are currently tracked.
func (p *Pending) Len() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.byID)
}
