/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package tllog

import (
	"fmt"

	"github.com/crewjam/rfc5424"

	"github.com/gravwell/tlproto/schema"
	"github.com/gravwell/tlproto/tlerr"
)

// SchemaMismatchReporter adapts l into a schema.MismatchReporter: a
// non-fatal "log and continue" diagnostic path. schema itself stays
// free of any logging dependency; this glue lives here instead so
// schema can't accidentally import tlerr, which imports schema.
func (l *Logger) SchemaMismatchReporter() schema.MismatchReporter {
	return func(origin schema.Origin, name string, declared, computed uint32) {
		err := &tlerr.MismatchError{Predicate: name, Declared: declared, Computed: computed}
		l.Warn(err.Error(), rfc5424.SDParam{Name: "origin", Value: string(origin)})
	}
}

// UnknownOriginReporter adapts l into a schema.UnknownOriginReporter,
// warning when a Bundle's Other() names a label outside the known
// origins.
func (l *Logger) UnknownOriginReporter() schema.UnknownOriginReporter {
	return func(label string) {
		l.Warn(fmt.Sprintf("schema: bundle Other() label %q is not a known origin", label),
			rfc5424.SDParam{Name: "origin", Value: label})
	}
}
