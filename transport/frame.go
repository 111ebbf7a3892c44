//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package transport implements netstring framing
// ("<decimal-length>:<bytes>,") over a byte stream, the wire format
// every peer-to-peer link in the mesh communicator speaks.
package transport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// ErrMalformedFrame is returned by the decoder when a stream's length
// prefix cannot be parsed; the caller must close the stream and mark
// the peer down.
var ErrMalformedFrame = errors.New("transport: malformed frame")

// MaxFrameSize bounds a single netstring payload to guard against a
// hostile or buggy peer claiming an unbounded length prefix.
const MaxFrameSize = 256 << 20

// Send writes a single netstring-framed message to w.
func Send(w io.Writer, payload []byte) error {
	_, err := fmt.Fprintf(w, "%d:", len(payload))
	if err != nil {
		return errors.Wrap(err, "transport: send length")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "transport: send payload")
	}
	if _, err := w.Write([]byte{','}); err != nil {
		return errors.Wrap(err, "transport: send terminator")
	}
	return nil
}

// Decoder incrementally parses netstrings fed to it via Feed, making
// complete messages available via Messages. It is not safe for
// concurrent use.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty incremental netstring decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends freshly read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Messages extracts every complete message currently buffered,
// leaving any partial trailing message in place for the next Feed.
func (d *Decoder) Messages() ([][]byte, error) {
	var out [][]byte
	for {
		msg, rest, ok, err := splitOne(d.buf)
		if err != nil {
			return out, err
		}
		if !ok {
			d.buf = rest
			return out, nil
		}
		out = append(out, msg)
		d.buf = rest
	}
}

// splitOne attempts to split a single netstring off the front of buf.
// ok is false when buf does not yet contain a complete message.
func splitOne(buf []byte) (msg, rest []byte, ok bool, err error) {
	colon := -1
	for i, b := range buf {
		if b == ':' {
			colon = i
			break
		}
		if b < '0' || b > '9' {
			return nil, nil, false, ErrMalformedFrame
		}
		if i > 19 {
			// No sane length prefix is this long.
			return nil, nil, false, ErrMalformedFrame
		}
	}
	if colon < 0 {
		return nil, buf, false, nil
	}
	n, err := strconv.Atoi(string(buf[:colon]))
	if err != nil || n < 0 || n > MaxFrameSize {
		return nil, nil, false, ErrMalformedFrame
	}
	need := colon + 1 + n + 1
	if len(buf) < need {
		return nil, buf, false, nil
	}
	if buf[need-1] != ',' {
		return nil, nil, false, ErrMalformedFrame
	}
	payload := make([]byte, n)
	copy(payload, buf[colon+1:colon+1+n])
	return payload, buf[need:], true, nil
}

// ReadOne blocks on r until a single complete netstring has been
// read, using a buffered reader for efficiency. It is a convenience
// wrapper for callers that do not need the incremental Decoder; no
// code in this module calls it (the rendezvous handshake in mesh uses
// its own binary hello format).
func ReadOne(r *bufio.Reader) ([]byte, error) {
	lenStr, err := r.ReadString(':')
	if err != nil {
		return nil, errors.Wrap(err, "transport: read length")
	}
	lenStr = lenStr[:len(lenStr)-1]
	n, err := strconv.Atoi(lenStr)
	if err != nil || n < 0 || n > MaxFrameSize {
		return nil, ErrMalformedFrame
	}
	payload := make([]byte, n+1)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "transport: read payload")
	}
	if payload[n] != ',' {
		return nil, ErrMalformedFrame
	}
	return payload[:n], nil
}
