//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mesh

import (
	"bufio"
	"time"

	"github.com/pkg/errors"

	"github.com/markkurossi/cicada/transport"
)

// DefaultTimeout bounds every blocking receive when Direct is given a
// non-positive timeout (Join always passes zero, so it uses this).
const DefaultTimeout = 30 * time.Second

// mailboxCapacity bounds how many records may be queued for a
// (tag, sender) pair before the queue goroutine blocks; this is the
// "bounded in-memory queue" the suspension points in spec.md §5 rely
// on for backpressure.
const mailboxCapacity = 64

func (c *Communicator) mailboxFor(key mailKey) chan *transport.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.mailbox[key]
	if !ok {
		ch = make(chan *transport.Record, mailboxCapacity)
		c.mailbox[key] = ch
	}
	return ch
}

// receiveLoop reads netstring frames off one peer link and forwards
// decoded records to the communicator's fan-in channel. One such
// goroutine runs per link; Go's runtime netpoller underneath net.Conn
// is the readiness primitive spec.md §4.4 calls out as
// select/poll/epoll/kqueue-equivalent, so a goroutine-per-socket
// design needs no explicit multiplexing call.
// pollInterval bounds how long a single Read blocks before the loop
// re-checks its shutdown signals; it is the cooperative-cancellation
// substitute for select()-ing a raw file descriptor.
const pollInterval = 200 * time.Millisecond

func (c *Communicator) receiveLoop(link *peerLink) {
	defer close(link.closed)

	r := bufio.NewReader(link.conn)
	dec := transport.NewDecoder()
	buf := make([]byte, 4096)

	for {
		select {
		case <-c.done:
			return
		case <-link.detach:
			return
		default:
		}

		if deadliner, ok := link.conn.(interface{ SetReadDeadline(time.Time) error }); ok {
			_ = deadliner.SetReadDeadline(time.Now().Add(pollInterval))
		}
		n, err := r.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			msgs, derr := dec.Messages()
			for _, m := range msgs {
				rec, rerr := transport.DecodeRecord(m)
				if rerr != nil {
					log.Warnw("dropping unparsable frame", "rank", link.rank, "err", rerr)
					continue
				}
				select {
				case c.incoming <- incomingRecord{rank: link.rank, record: rec}:
				case <-c.done:
					return
				case <-link.detach:
					return
				}
			}
			if derr != nil {
				log.Warnw("closing malformed stream", "rank", link.rank, "err", derr)
				return
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return
		}
	}
}

func isTimeout(err error) bool {
	type timeoutErr interface{ Timeout() bool }
	te, ok := err.(timeoutErr)
	return ok && te.Timeout()
}

// queueLoop is the second background task: it routes decoded records
// into per-(tag,sender) mailboxes, and treats TagRevoke specially as
// an out-of-band flag rather than a queued message.
func (c *Communicator) queueLoop() {
	for {
		select {
		case in := <-c.incoming:
			if in.record.Tag == TagRevoke {
				c.revoked.Store(true)
				log.Warnw("revoked by peer", "sender", in.record.Sender)
				continue
			}
			if in.record.Sender >= uint32(c.size) {
				log.Warnw("dropping record from out-of-range sender",
					"sender", in.record.Sender)
				continue
			}
			key := mailKey{tag: in.record.Tag, sender: in.record.Sender}
			ch := c.mailboxFor(key)
			select {
			case ch <- in.record:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}

// send transmits payload on tag to dst, including to the local rank
// via the loopback queue (so broadcast's "src also receives" clause
// needs no special case).
func (c *Communicator) send(tag int32, dst int, payload []byte) error {
	rec := &transport.Record{
		Serial:  c.nextSerial(),
		Tag:     tag,
		Sender:  uint32(c.rank),
		Payload: payload,
	}
	if dst == c.rank {
		select {
		case c.incoming <- incomingRecord{rank: c.rank, record: rec}:
			return nil
		case <-c.done:
			return ErrNotRunning
		}
	}
	link, ok := c.links[dst]
	if !ok {
		return errors.Errorf("mesh: unknown rank %d", dst)
	}
	return link.send(rec)
}

// recv blocks for a single record on (tag, src), honoring the
// communicator's configured timeout.
func (c *Communicator) recv(tag int32, src int) (*transport.Record, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	ch := c.mailboxFor(mailKey{tag: tag, sender: uint32(src)})
	select {
	case rec := <-ch:
		return rec, nil
	case <-time.After(c.timeout):
		return nil, ErrTimeout
	case <-c.done:
		return nil, ErrNotRunning
	}
}

// tryRecv performs a non-blocking receive, returning ErrTryAgain when
// no message is queued.
func (c *Communicator) tryRecv(tag int32, src int) (*transport.Record, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	ch := c.mailboxFor(mailKey{tag: tag, sender: uint32(src)})
	select {
	case rec := <-ch:
		return rec, nil
	default:
		return nil, ErrTryAgain
	}
}
