/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package message

import "github.com/google/uuid"

// NewQueueID mints an opaque identifier for SetQueueID, letting a host
// group related outgoing messages (e.g. one upload's chunks) under a
// single queue without coordinating its own id scheme.
func NewQueueID() string {
	return uuid.NewString()
}
