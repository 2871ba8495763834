/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package deserialize

import (
	json "github.com/goccy/go-json"

	"github.com/gravwell/tlproto/schema"
	"github.com/gravwell/tlproto/tlvalue"
)

// postProcess implements well-known-composite-type augmentations. The
// dataJSON, JSONValue and photoStrippedSize ones are additive: the
// original decoded fields are left in place and a post-processed value
// is attached alongside them. The message one is not: it replaces
// reply_markup's `rows` field with the wrapped rows.
func (d *Deserializer) postProcess(entry schema.Entry, rec *tlvalue.Record) {
	switch entry.Name {
	case "dataJSON":
		postProcessDataJSON(rec)
	case "jsonNull", "jsonBool", "jsonNumber", "jsonString", "jsonArray", "jsonObject":
		postProcessJSONValue(entry, rec)
	case "photoStrippedSize":
		postProcessPhotoStrippedSize(rec)
	case "message":
		postProcessReplyMarkup(rec)
	}
}

// postProcessDataJSON parses the `data` field's JSON text and attaches
// the result as a `parsed` field.
func postProcessDataJSON(rec *tlvalue.Record) {
	raw, ok := rec.Get("data")
	if !ok {
		return
	}
	text, ok := raw.Interface().(string)
	if !ok {
		return
	}
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return
	}
	rec.Set("parsed", fromJSONable(v))
}

// postProcessJSONValue collapses one JSONValue variant into an
// idiomatic tree shape: jsonNull -> nil, jsonObject -> a mapping of its
// pairs, everything else -> its wrapped `.value` field. The result is
// attached as a `resolved` field.
func postProcessJSONValue(entry schema.Entry, rec *tlvalue.Record) {
	switch entry.Name {
	case "jsonNull":
		rec.Set("resolved", tlvalue.Nil)
	case "jsonObject":
		pairs, ok := rec.Get("value")
		if !ok {
			return
		}
		out := tlvalue.NewRecord("object")
		for _, item := range pairs.Items() {
			ir := item.Record()
			if ir == nil {
				continue
			}
			key, _ := ir.Get("key")
			val, _ := ir.Get("value")
			k, _ := key.Interface().(string)
			out.Set(k, val)
		}
		rec.Set("resolved", tlvalue.FromRecord(out))
	default:
		if v, ok := rec.Get("value"); ok {
			rec.Set("resolved", v)
		}
	}
}

// fromJSONable is the decode-direction counterpart of serialize's
// toJSONable: it lifts a generically-unmarshaled JSON value back into a
// tlvalue.Value tree.
func fromJSONable(v interface{}) tlvalue.Value {
	switch t := v.(type) {
	case nil:
		return tlvalue.Nil
	case []interface{}:
		items := make([]tlvalue.Value, len(t))
		for i, it := range t {
			items[i] = fromJSONable(it)
		}
		return tlvalue.Vector(items)
	case map[string]interface{}:
		rec := tlvalue.NewRecord("object")
		for k, val := range t {
			rec.Set(k, fromJSONable(val))
		}
		return tlvalue.FromRecord(rec)
	default:
		return tlvalue.Primitive(t)
	}
}

// jpegHeader and jpegTail are the fixed template photoStrippedSize values
// splice their 2-byte quantization/sampling payload into, per the
// well-known Telegram "stripped thumbnail" convention.
var (
	jpegHeader = []byte{
		0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0xFF, 0xDB, 0x00, 0x43, 0x00,
		0x28, 0x1C, 0x1E, 0x23, 0x1E, 0x19, 0x28, 0x23, 0x21, 0x23, 0x2D, 0x2B, 0x28,
		0x30, 0x3C, 0x64, 0x41, 0x3C, 0x37, 0x37, 0x3C, 0x7B, 0x58, 0x5D, 0x49, 0x64,
		0x91, 0x80, 0x99, 0x96, 0x8F, 0x80, 0x8C, 0x8A, 0xA0, 0xB4, 0xE6, 0xC3, 0xA0,
		0xAA, 0xDA, 0xAD, 0x8A, 0x8C, 0xC8, 0xFF, 0xCB, 0xDA, 0xEE, 0xF5, 0xFF, 0xFF,
		0xFF, 0x9B, 0xC1, 0xFF, 0xFF, 0xFF, 0xFA, 0xFF, 0xE6, 0xFD, 0xFF, 0xF8, 0xFF,
		0xDB, 0x00, 0x43, 0x01, 0x2B, 0x2D, 0x2D, 0x3C, 0x35, 0x3C, 0x76, 0x41, 0x41,
		0x76, 0xF8, 0xA5, 0x8C, 0xA5, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8,
		0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8,
		0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8,
		0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xF8, 0xFF,
		0xC0, 0x00, 0x11, 0x08, 0x00, 0x00, 0x00, 0x00, 0x03, 0x01, 0x22, 0x00, 0x02,
		0x11, 0x01, 0x03, 0x11, 0x01, 0xFF, 0xC4, 0x00, 0x1F, 0x00, 0x00, 0x01, 0x05,
		0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B,
		0xFF, 0xC4, 0x00, 0xB5, 0x10, 0x00, 0x02, 0x01, 0x03, 0x03, 0x02, 0x04, 0x03,
		0x05, 0x05, 0x04, 0x04, 0x00, 0x00, 0x01, 0x7D, 0x01, 0x02, 0x03, 0x00, 0x04,
		0x11, 0x05, 0x12, 0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07, 0x22, 0x71,
		0x14, 0x32, 0x81, 0x91, 0xA1, 0x08, 0x23, 0x42, 0xB1, 0xC1, 0x15, 0x52, 0xD1,
		0xF0, 0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0A, 0x16, 0x17, 0x18, 0x19, 0x1A,
		0x25, 0x26, 0x27, 0x28, 0x29, 0x2A, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39, 0x3A,
		0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0x4A, 0x53, 0x54, 0x55, 0x56, 0x57,
		0x58, 0x59, 0x5A, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69, 0x6A, 0x73, 0x74,
		0x75, 0x76, 0x77, 0x78, 0x79, 0x7A, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
		0x8A, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98, 0x99, 0x9A, 0xA2, 0xA3, 0xA4,
		0xA5, 0xA6, 0xA7, 0xA8, 0xA9, 0xAA, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7, 0xB8,
		0xB9, 0xBA, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7, 0xC8, 0xC9, 0xCA, 0xD2, 0xD3,
		0xD4, 0xD5, 0xD6, 0xD7, 0xD8, 0xD9, 0xDA, 0xE1, 0xE2, 0xE3, 0xE4, 0xE5, 0xE6,
		0xE7, 0xE8, 0xE9, 0xEA, 0xF1, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6, 0xF7, 0xF8, 0xF9,
		0xFA, 0xFF, 0xDA, 0x00, 0x0C, 0x03, 0x01, 0x00, 0x02, 0x11, 0x03, 0x11, 0x00,
		0x3F, 0x00,
	}
	jpegTail = []byte{0xFF, 0xD9}
)

// postProcessPhotoStrippedSize builds a JPEG from the stripped payload,
// attaching it as an `inflated` field: payload bytes 1 and 2 are written
// at header offsets 164 and 166, and bytes 3 onward follow the header,
// closed by jpegTail. Payloads shorter than 3 bytes are left as they are.
func postProcessPhotoStrippedSize(rec *tlvalue.Record) {
	raw, ok := rec.Get("bytes")
	if !ok {
		return
	}
	b, ok := raw.Interface().([]byte)
	if !ok || len(b) < 3 {
		return
	}
	header := append([]byte(nil), jpegHeader...)
	header[164] = b[1]
	header[166] = b[2]
	full := make([]byte, 0, len(header)+len(b)-3+len(jpegTail))
	full = append(full, header...)
	full = append(full, b[3:]...)
	full = append(full, jpegTail...)
	rec.Set("inflated", tlvalue.Primitive(full))
}

// postProcessReplyMarkup wraps each reply_markup.rows entry into a
// higher-level keyboardButtonRow value.
func postProcessReplyMarkup(rec *tlvalue.Record) {
	markupVal, ok := rec.Get("reply_markup")
	if !ok || markupVal.Kind() != tlvalue.KindRecord {
		return
	}
	markup := markupVal.Record()
	rowsVal, ok := markup.Get("rows")
	if !ok || rowsVal.Kind() != tlvalue.KindVector {
		return
	}
	wrapped := make([]tlvalue.Value, 0, len(rowsVal.Items()))
	for _, row := range rowsVal.Items() {
		rowRec := tlvalue.NewRecord("keyboardButtonRow")
		rowRec.Set("buttons", row)
		wrapped = append(wrapped, tlvalue.FromRecord(rowRec))
	}
	markup.Set("rows", tlvalue.Vector(wrapped))
}
