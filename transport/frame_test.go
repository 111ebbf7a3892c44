//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, []byte("hello")))
	require.NoError(t, Send(&buf, []byte("")))
	require.NoError(t, Send(&buf, []byte("world!")))

	d := NewDecoder()
	d.Feed(buf.Bytes())
	msgs, err := d.Messages()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("hello"), []byte(""), []byte("world!")}, msgs)
}

func TestFeedPartial(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, []byte("abcdef")))
	full := buf.Bytes()

	d := NewDecoder()
	d.Feed(full[:3])
	msgs, err := d.Messages()
	require.NoError(t, err)
	require.Empty(t, msgs)

	d.Feed(full[3:])
	msgs, err = d.Messages()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("abcdef")}, msgs)
}

func TestMalformedPrefix(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("12x:abc,"))
	_, err := d.Messages()
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestMissingTerminator(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("3:abcX"))
	_, err := d.Messages()
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestRecordRoundTrip(t *testing.T) {
	r := &Record{Serial: 42, Tag: -7, Sender: 3, Payload: []byte("payload")}
	got, err := DecodeRecord(r.Marshal())
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestRecordTruncated(t *testing.T) {
	_, err := DecodeRecord([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrTruncatedRecord)
}
