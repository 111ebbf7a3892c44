//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mesh

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/markkurossi/cicada/transport"
)

// Revoke marks the communicator permanently unusable and makes a
// best-effort attempt to tell every live peer. Revoke does not wait
// for acknowledgement: a peer that is already gone is exactly the
// situation revoke exists to report. Send failures are collected
// rather than stopping the sweep, since one dead peer must not keep
// revoke from reaching the rest.
func (c *Communicator) Revoke() error {
	c.revoked.Store(true)
	var result *multierror.Error
	for r := 0; r < c.size; r++ {
		if r == c.rank {
			continue
		}
		link, ok := c.links[r]
		if !ok {
			continue
		}
		rec := &transport.Record{
			Serial: c.nextSerial(),
			Tag:    TagRevoke,
			Sender: uint32(c.rank),
		}
		if err := link.send(rec); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "mesh: revoke notify rank %d", r))
		}
	}
	return result.ErrorOrNil()
}

// shrinkToken returns a deterministic fingerprint of the survivor set
// so every caller can confirm they agree on membership before the
// mesh is rebuilt around it.
func shrinkToken(survivors []int) [sha256.Size]byte {
	sorted := append([]int(nil), survivors...)
	sort.Ints(sorted)
	var buf bytes.Buffer
	for _, r := range sorted {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(r))
		buf.Write(b[:])
	}
	return sha256.Sum256(buf.Bytes())
}

// Shrink rebuilds a smaller communicator out of the subset of ranks
// named by survivors, reusing the already-established connections
// between them rather than redialing. The caller must itself be in
// survivors. Every survivor must call Shrink with the same (possibly
// differently ordered) set; new ranks are assigned by ascending
// original rank, matching spec.md's fault-handling convention that
// the smallest surviving rank becomes the new rank 0.
//
// Shrink returns the new communicator and the original rank each new
// rank corresponds to (so callers can translate any rank-indexed
// state they were holding, e.g. shares associated with the dead
// player).
func (c *Communicator) Shrink(survivors []int) (*Communicator, []int, error) {
	if err := c.checkUsable(); err != nil {
		return nil, nil, err
	}
	if !containsRank(survivors, c.rank) {
		return nil, nil, errors.New("mesh: self not in survivor set")
	}

	sorted := append([]int(nil), survivors...)
	sort.Ints(sorted)
	newSize := len(sorted)
	newRank := -1
	for i, r := range sorted {
		if r == c.rank {
			newRank = i
			break
		}
	}
	if newRank < 0 {
		return nil, nil, errors.New("mesh: self not in survivor set")
	}

	token := shrinkToken(sorted)

	// Agree on membership: every survivor gathers its token at the
	// lowest surviving rank, which confirms they all match and
	// scatters the confirmation back. A full Broadcast/Barrier cannot
	// be used here since the dead rank would never answer it.
	coordinator := sorted[0]
	gathered, err := c.GatherV(sorted, token[:], coordinator)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mesh: shrink token exchange")
	}
	ok := true
	if c.rank == coordinator {
		for _, t := range gathered {
			if !bytes.Equal(t, token[:]) {
				ok = false
				break
			}
		}
	}
	var confirmPayload []byte
	if ok {
		confirmPayload = []byte{1}
	} else {
		confirmPayload = []byte{0}
	}
	var confirms [][]byte
	if c.rank == coordinator {
		confirms = make([][]byte, newSize)
		for i := range confirms {
			confirms[i] = confirmPayload
		}
	}
	confirm, err := c.ScatterV(coordinator, confirms, sorted)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mesh: shrink confirmation")
	}
	if len(confirm) != 1 || confirm[0] != 1 {
		return nil, nil, ErrTokenMismatch
	}

	// Detach the links to every fellow survivor from this
	// communicator's receive loop, then rewire them under new ranks.
	newLinks := make(map[int]*peerLink, newSize-1)
	for i, oldRank := range sorted {
		if oldRank == c.rank {
			continue
		}
		link, ok := c.links[oldRank]
		if !ok {
			return nil, nil, errors.Errorf("mesh: no link to surviving rank %d", oldRank)
		}
		close(link.detach)
		<-link.closed
		newLinks[i] = &peerLink{
			rank:   i,
			conn:   link.conn,
			closed: make(chan struct{}),
			detach: make(chan struct{}),
		}
	}

	next := &Communicator{
		name:     c.name,
		rank:     newRank,
		size:     newSize,
		links:    newLinks,
		incoming: make(chan incomingRecord, mailboxCapacity),
		mailbox:  make(map[mailKey]chan *transport.Record),
		timeout:  c.timeout,
		done:     make(chan struct{}),
	}
	for _, link := range newLinks {
		go next.receiveLoop(link)
	}
	go next.queueLoop()
	next.running.Store(true)

	return next, sorted, nil
}

// Split partitions the mesh into sub-communicators by group: every
// rank calls Split with its own group name (or "" to opt out of every
// group), and each rank whose group is non-empty gets back a fresh
// Communicator containing the members of that group (itself
// included), with new ranks assigned by ascending original rank.
// Ranks that opt out
// get (nil, nil).
func (c *Communicator) Split(group string) (*Communicator, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	all, err := c.AllGather([]byte(group))
	if err != nil {
		return nil, err
	}
	if group == "" {
		return nil, nil
	}

	var members []int
	for r, g := range all {
		if string(g) == group {
			members = append(members, r)
		}
	}
	sort.Ints(members)

	newRank := -1
	for i, r := range members {
		if r == c.rank {
			newRank = i
			break
		}
	}
	if newRank < 0 {
		return nil, errors.New("mesh: split self missing from own group")
	}

	newLinks := make(map[int]*peerLink, len(members)-1)
	for i, oldRank := range members {
		if oldRank == c.rank {
			continue
		}
		link, ok := c.links[oldRank]
		if !ok {
			return nil, errors.Errorf("mesh: no link to group member %d", oldRank)
		}
		close(link.detach)
		<-link.closed
		newLinks[i] = &peerLink{
			rank:   i,
			conn:   link.conn,
			closed: make(chan struct{}),
			detach: make(chan struct{}),
		}
	}

	next := &Communicator{
		name:     c.name + "/" + group,
		rank:     newRank,
		size:     len(members),
		links:    newLinks,
		incoming: make(chan incomingRecord, mailboxCapacity),
		mailbox:  make(map[mailKey]chan *transport.Record),
		timeout:  c.timeout,
		done:     make(chan struct{}),
	}
	for _, link := range newLinks {
		go next.receiveLoop(link)
	}
	go next.queueLoop()
	next.running.Store(true)

	return next, nil
}
