/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package tllog provides a Level type, level constants, and an
// rfc5424-structured Logger. It is intentionally narrow: the codec
// only ever logs two non-fatal diagnostic conditions (schema id
// mismatches and unrecognized other()-labeled schema origins), so this
// package carries no multi-writer fan-out, raw-output mode, or
// process-fatal helpers.
package tllog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	OFF   Level = 0
	DEBUG Level = 1
	INFO  Level = 2
	WARN  Level = 3
	ERROR Level = 4
)

const defaultID = `tlproto@1`

// Logger writes RFC5424-structured lines to a single writer, guarded by
// a mutex around that writer.
type Logger struct {
	mtx      sync.Mutex
	wtr      io.Writer
	lvl      Level
	hostname string
	appname  string
}

// New creates a Logger at level INFO writing to wtr.
func New(wtr io.Writer) *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		wtr:      wtr,
		lvl:      INFO,
		hostname: hostname,
		appname:  "tlproto",
	}
}

// NewDiscard returns a Logger that drops everything, for hosts that
// don't care about the diagnostic paths.
func NewDiscard() *Logger {
	return New(io.Discard)
}

func (l *Logger) SetLevel(lvl Level) { l.mtx.Lock(); l.lvl = lvl; l.mtx.Unlock() }

func (l *Logger) Debug(msg string, sds ...rfc5424.SDParam) error { return l.output(DEBUG, msg, sds...) }
func (l *Logger) Info(msg string, sds ...rfc5424.SDParam) error  { return l.output(INFO, msg, sds...) }
func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam) error  { return l.output(WARN, msg, sds...) }
func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) error { return l.output(ERROR, msg, sds...) }

func (l *Logger) output(lvl Level, msg string, sds ...rfc5424.SDParam) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.lvl == OFF || lvl < l.lvl {
		return nil
	}
	m := rfc5424.Message{
		Priority:  priority(lvl),
		Timestamp: time.Now(),
		Hostname:  l.hostname,
		AppName:   l.appname,
		MessageID: "tlproto",
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{ID: defaultID, Parameters: sds}}
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	ln := strings.TrimRight(string(b), "\n\t\r")
	if _, err := fmt.Fprintln(l.wtr, ln); err != nil {
		return err
	}
	return nil
}

func priority(lvl Level) rfc5424.Priority {
	switch lvl {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	}
	return rfc5424.User | rfc5424.Debug
}
