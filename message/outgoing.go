/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package message tracks the lifecycle of one outgoing MTProto message
// from construction through PENDING -> SENT -> ACKED -> REPLIED. It is
// the Go-idiomatic analogue of a close-once dieChan/errChan signal,
// generalized via oneshot[T] to carry a result value instead of a bare
// close.
package message

import (
	"errors"
	"sync"

	"github.com/gravwell/tlproto/tlvalue"
)

// ErrDoubleReply is returned by Reply when a message already in the
// REPLIED state is replied to again.
var ErrDoubleReply = errors.New("message: outgoing message already replied to")

// State is a bitfield tracking lifecycle progress. REPLIED implies
// ACKED: reaching REPLIED sets ACKED too, even if no explicit ack was
// ever observed.
type State uint8

const (
	Pending State = 0
	Sent    State = 1 << 0
	Acked   State = 1 << 1
	Replied State = Acked | 1<<2
)

// notContentRelated lists constructors whose acknowledgement does not,
// by itself, confirm the server processed application content -
// container/housekeeping predicates.
var notContentRelated = map[string]bool{
	"msg_container":        true,
	"msgs_ack":             true,
	"msg_copy":             true,
	"gzip_packed":          true,
	"ping":                 true,
	"pong":                 true,
	"bad_msg_notification": true,
	"bad_server_salt":      true,
	"msgs_all_info":        true,
	"msgs_state_info":      true,
	"msg_resend_req":       true,
	"http_wait":            true,
}

// Result is the value delivered on a method's result promise: either a
// decoded reply value or the error that prevented one.
type Result struct {
	Value tlvalue.Value
	Err   error
}

// Outgoing tracks one message queued for the wire. The request body and
// its cached serialized bytes are cleared once the message reaches
// REPLIED so a long-lived registry doesn't pin memory for completed
// requests; constructor and type are kept.
type Outgoing struct {
	mtx sync.Mutex

	body        tlvalue.Value
	serialized  []byte
	constructor string
	typ         string
	method      bool
	unencrypted bool

	state  State
	msgID  int64
	tries  int
	sentAt int64

	contentRelated bool

	userRelated       bool
	fileRelated       bool
	botAPI            bool
	refreshReferences bool
	queueID           string
	floodWaitLimit    *int

	sendPromise   *oneshot[struct{}]
	resultPromise *oneshot[Result]
}

// New constructs a pending Outgoing message. A result promise is
// allocated only for method calls: plain constructors sent standalone
// have nothing to reply to.
func New(body tlvalue.Value, constructor, typ string, method, unencrypted bool) *Outgoing {
	o := &Outgoing{
		body:           body,
		constructor:    constructor,
		typ:            typ,
		method:         method,
		unencrypted:    unencrypted,
		contentRelated: !notContentRelated[constructor],
	}
	if method {
		o.resultPromise = newOneshot[Result]()
	}
	return o
}

// SetSerialized attaches the pre-serialized wire body, computed once by
// the caller and cached here so retransmits don't re-serialize.
func (o *Outgoing) SetSerialized(b []byte) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.serialized = b
}

// Serialized returns the cached wire body, if any.
func (o *Outgoing) Serialized() []byte {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.serialized
}

// SetMsgID assigns the msg_id once the message is actually placed on
// the wire.
func (o *Outgoing) SetMsgID(id int64) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.msgID = id
}

func (o *Outgoing) MsgID() int64 {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.msgID
}

// TrySend records a send attempt and returns the channel that fires
// once the message is confirmed placed on the wire via Sent.
func (o *Outgoing) TrySend() <-chan struct{} {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	if o.sendPromise == nil {
		o.sendPromise = newOneshot[struct{}]()
	}
	o.tries++
	return o.sendPromise.wait()
}

// Tries reports how many times TrySend has been called.
func (o *Outgoing) Tries() int {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.tries
}

// Sent marks the message SENT at unix time at, fulfilling the send
// promise exactly once even across retransmits.
func (o *Outgoing) Sent(at int64) {
	o.mtx.Lock()
	if o.sendPromise == nil {
		o.sendPromise = newOneshot[struct{}]()
	}
	o.state |= Sent
	o.sentAt = at
	sp := o.sendPromise
	o.mtx.Unlock()
	sp.fulfil(struct{}{})
}

// ResetSent clears the sent timestamp without reopening the send
// promise, used when a transport reconnect forces a retransmit but the
// original promise's waiters should not be asked to wait again.
func (o *Outgoing) ResetSent() {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.sentAt = 0
}

// Ack marks the message ACKED.
func (o *Outgoing) Ack() {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.state |= Acked
}

// Reply completes the message's lifecycle with a decoded value or an
// error, moving it to REPLIED. It fails with ErrDoubleReply if called
// more than once. Delivery to the result promise happens on a separate
// goroutine so that a waiter's continuation can't reenter the decoder
// that is still unwinding the rpc_result that produced this reply.
func (o *Outgoing) Reply(v tlvalue.Value, err error) error {
	o.mtx.Lock()
	if o.state&Replied == Replied {
		o.mtx.Unlock()
		return ErrDoubleReply
	}
	o.state |= Replied
	rp := o.resultPromise
	o.body = tlvalue.Nil
	o.serialized = nil
	o.mtx.Unlock()

	if rp != nil {
		go rp.fulfil(Result{Value: v, Err: err})
	}
	return nil
}

// WaitResult returns the channel a method's reply arrives on. ok is
// false for non-method messages, which have no result promise.
func (o *Outgoing) WaitResult() (ch <-chan Result, ok bool) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	if o.resultPromise == nil {
		return nil, false
	}
	return o.resultPromise.wait(), true
}

// CanGarbageCollect reports whether this message's bookkeeping can be
// dropped from a pending-message table: a non-method has no result
// promise, so nothing is waiting on it and it's collectible
// unconditionally; a method must reach REPLIED since its result promise
// may still be awaited.
func (o *Outgoing) CanGarbageCollect() bool {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	if o.resultPromise == nil {
		return true
	}
	return o.state&Replied == Replied
}

func (o *Outgoing) State() State {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.state
}

func (o *Outgoing) Constructor() string { return o.constructor }
func (o *Outgoing) Type() string        { return o.typ }
func (o *Outgoing) Method() bool        { return o.method }
func (o *Outgoing) Unencrypted() bool   { return o.unencrypted }
func (o *Outgoing) ContentRelated() bool {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.contentRelated
}

func (o *Outgoing) SentAt() int64 {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.sentAt
}

// The following flags classify why a message is pinned in a pending
// table beyond the default ack/reply rules: user-initiated calls that
// must survive a reconnect, file upload/download chunks, Bot API
// passthrough calls, and calls whose reply refreshes cached
// access-hash references.

func (o *Outgoing) SetUserRelated(v bool)       { o.mtx.Lock(); o.userRelated = v; o.mtx.Unlock() }
func (o *Outgoing) UserRelated() bool           { o.mtx.Lock(); defer o.mtx.Unlock(); return o.userRelated }
func (o *Outgoing) SetFileRelated(v bool)       { o.mtx.Lock(); o.fileRelated = v; o.mtx.Unlock() }
func (o *Outgoing) FileRelated() bool           { o.mtx.Lock(); defer o.mtx.Unlock(); return o.fileRelated }
func (o *Outgoing) SetBotAPI(v bool)            { o.mtx.Lock(); o.botAPI = v; o.mtx.Unlock() }
func (o *Outgoing) BotAPI() bool                { o.mtx.Lock(); defer o.mtx.Unlock(); return o.botAPI }
func (o *Outgoing) SetRefreshReferences(v bool) { o.mtx.Lock(); o.refreshReferences = v; o.mtx.Unlock() }
func (o *Outgoing) RefreshReferences() bool {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.refreshReferences
}
func (o *Outgoing) SetQueueID(id string) { o.mtx.Lock(); o.queueID = id; o.mtx.Unlock() }
func (o *Outgoing) QueueID() string      { o.mtx.Lock(); defer o.mtx.Unlock(); return o.queueID }

func (o *Outgoing) SetFloodWaitLimit(seconds int) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.floodWaitLimit = &seconds
}

func (o *Outgoing) FloodWaitLimit() (int, bool) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	if o.floodWaitLimit == nil {
		return 0, false
	}
	return *o.floodWaitLimit, true
}

// Body returns the value pending serialization, or the zero Value once
// the message has been replied to and its body discarded.
func (o *Outgoing) Body() tlvalue.Value {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.body
}

// OutgoingRef is the narrow, read-only view of a pending message that
// the deserializer needs to recover an rpc_result's original
// constructor/type without importing package message directly at
// decode sites that only hold a lookup interface.
type OutgoingRef interface {
	Constructor() string
	Type() string
}

// OutgoingLookup resolves a previously sent message by msg_id so an
// rpc_result can be decoded against the type it originally requested.
type OutgoingLookup interface {
	ByMsgID(msgID int64) (OutgoingRef, bool)
}
