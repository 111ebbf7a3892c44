//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mesh

import (
	"net"
	"time"

	"github.com/markkurossi/cicada/transport"
)

// Direct builds a Communicator from a set of already-established
// connections, skipping the rendezvous phase described in spec.md
// §4.4. It is the entry point for callers that already know every
// peer's address (or, as in tests, have wired up net.Pipe pairs
// directly) and do not need rank-0-mediated discovery.
func Direct(name string, rank, size int, conns map[int]net.Conn, timeout time.Duration) *Communicator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Communicator{
		name:     name,
		rank:     rank,
		size:     size,
		links:    make(map[int]*peerLink, len(conns)),
		incoming: make(chan incomingRecord, mailboxCapacity),
		mailbox:  make(map[mailKey]chan *transport.Record),
		timeout:  timeout,
		done:     make(chan struct{}),
	}
	c.start(conns)
	return c
}

// start wires a peerLink per connection, launches the receive and
// queue background goroutines, and marks the communicator running.
func (c *Communicator) start(conns map[int]net.Conn) {
	for rank, conn := range conns {
		link := &peerLink{
			rank:   rank,
			conn:   conn,
			closed: make(chan struct{}),
			detach: make(chan struct{}),
		}
		c.links[rank] = link
		go c.receiveLoop(link)
	}
	go c.queueLoop()
	c.running.Store(true)
}

// Free stops the background goroutines and closes every peer
// connection. After Free, every collective returns ErrNotRunning.
func (c *Communicator) Free() error {
	if !c.running.CAS(true, false) {
		return ErrNotRunning
	}
	close(c.done)
	for _, link := range c.links {
		_ = link.conn.Close()
	}
	return nil
}
