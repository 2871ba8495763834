/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package wire implements the TL primitive codec: fixed-width integers,
// doubles, the short/long string and bytes framing, and the opaque
// 128/256/512-bit blob types used throughout the MTProto wire format.
package wire

import "errors"

var (
	ErrNotNumeric   error = errors.New("value is not numeric")
	ErrBadLength128 error = errors.New("value is not a valid int128")
	ErrBadLength256 error = errors.New("value is not a valid int256")
	ErrBadLength512 error = errors.New("value is not a valid int512")
	ErrLengthTooBig error = errors.New("decoded length marker 0xFF is invalid")
	ErrNotString    error = errors.New("value is not a string or byte slice")
	ErrShortBuffer  error = errors.New("buffer too short to decode value")
	ErrInvalidLong  error = errors.New("value is not a valid long encoding")
)
