/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package deserialize

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/gravwell/tlproto/tlvalue"
)

// deserializeGzipPacked implements the gzip_packed envelope: read the
// wrapped `bytes` field, inflate it with klauspost/compress/gzip, and
// recurse into the decompressed payload with the given context
// (typically discovery mode, ctx.Type == "").
func (d *Deserializer) deserializeGzipPacked(r io.Reader, inner TypeCtx) (tlvalue.Value, []AsyncHook, error) {
	raw, _, err := d.Deserialize(r, TypeCtx{Type: "bytes"})
	if err != nil {
		return tlvalue.Nil, nil, err
	}
	packed, _ := raw.Interface().([]byte)

	zr, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return tlvalue.Nil, nil, err
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return tlvalue.Nil, nil, err
	}

	return d.Deserialize(bytes.NewReader(payload), inner)
}
