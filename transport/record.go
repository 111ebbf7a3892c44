//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package transport

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var bo = binary.BigEndian

// Record is the payload carried inside every netstring frame on a
// mesh link: a monotonic per-sender serial, a tag identifying the
// collective or point-to-point channel, the sender's rank, and an
// opaque application payload.
type Record struct {
	Serial  uint64
	Tag     int32
	Sender  uint32
	Payload []byte
}

// recordHeaderSize is serial(8) + tag(4) + sender(4).
const recordHeaderSize = 8 + 4 + 4

// ErrTruncatedRecord is returned by DecodeRecord when data is shorter
// than the fixed-width header.
var ErrTruncatedRecord = errors.New("transport: truncated record")

// Marshal encodes the record into a flat byte slice, mirroring a
// classic fixed-header-then-payload wire record.
func (r *Record) Marshal() []byte {
	buf := make([]byte, recordHeaderSize+len(r.Payload))
	bo.PutUint64(buf[0:], r.Serial)
	bo.PutUint32(buf[8:], uint32(r.Tag))
	bo.PutUint32(buf[12:], r.Sender)
	copy(buf[recordHeaderSize:], r.Payload)
	return buf
}

// DecodeRecord parses a record previously produced by Marshal.
func DecodeRecord(data []byte) (*Record, error) {
	if len(data) < recordHeaderSize {
		return nil, ErrTruncatedRecord
	}
	payload := make([]byte, len(data)-recordHeaderSize)
	copy(payload, data[recordHeaderSize:])
	return &Record{
		Serial:  bo.Uint64(data[0:]),
		Tag:     int32(bo.Uint32(data[8:])),
		Sender:  bo.Uint32(data[12:]),
		Payload: payload,
	}, nil
}
