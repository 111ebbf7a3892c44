//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package mesh implements the fully-connected player mesh every Cicada
// protocol suite runs its collectives over: rendezvous startup,
// broadcast/gather/scatter/all-gather/barrier, tagged point-to-point
// send/recv, and the revoke/shrink/split recovery primitives.
package mesh

import (
	"net"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/markkurossi/cicada/transcript"
	"github.com/markkurossi/cicada/transport"
)

var log = logging.Logger("cicada/mesh")

// Reserved tags. Negative values are reserved for internal collective
// and recovery use; positive values are available to callers.
const (
	TagAllGather    int32 = -1
	TagBarrierEnter int32 = -2
	TagBarrierExit  int32 = -3
	TagBroadcast    int32 = -4
	TagGather       int32 = -5
	TagGatherV      int32 = -6
	TagRevoke       int32 = -7
	TagScatter      int32 = -8
	TagScatterV     int32 = -9
	TagSend         int32 = -10
	TagShrinkBegin  int32 = -11
	TagShrinkEnd    int32 = -12
	TagSplitBegin   int32 = -13
	TagSplitEnd     int32 = -14
	TagSeedExchange int32 = -15
)

// Errors returned by communicator operations, per spec's transport
// failure taxonomy.
var (
	ErrTimeout       = errors.New("mesh: timeout")
	ErrRevoked       = errors.New("mesh: communicator revoked")
	ErrNotRunning    = errors.New("mesh: communicator not running")
	ErrTokenMismatch = errors.New("mesh: rendezvous token mismatch")
	ErrTryAgain      = errors.New("mesh: no message available")
)

type mailKey struct {
	tag    int32
	sender uint32
}

// peerLink wraps one TCP or Unix socket to a single remote rank. Each
// link owns a send-side mutex since more than one goroutine may write
// to it: the caller's Send, the goroutine behind an ISend, and Revoke
// can all be in flight at once. The link's receive goroutine only
// reads.
type peerLink struct {
	rank int
	conn net.Conn

	sendMu sync.Mutex
	detach chan struct{}
	closed chan struct{}
}

func (l *peerLink) send(rec *transport.Record) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return transport.Send(l.conn, rec.Marshal())
}

// Communicator is an endpoint in a fully-connected player mesh: a
// name, a rank in [0,n), the world size n, a table of framed links to
// every other rank, and the running/revoked state every collective
// consults. A Communicator is not safe for concurrent use by more
// than one goroutine; each participant owns its communicator
// exclusively (the background goroutines, one receive goroutine per
// peer link plus one queue goroutine, are internal and do not count
// as caller use).
type Communicator struct {
	name string
	rank int
	size int

	links map[int]*peerLink

	serial  atomic.Uint64
	running atomic.Bool
	revoked atomic.Bool

	incoming chan incomingRecord

	mu      sync.Mutex
	mailbox map[mailKey]chan *transport.Record

	timeout time.Duration

	done chan struct{}

	transcript transcript.Recorder
}

type incomingRecord struct {
	rank   int
	record *transport.Record
}

// Name returns the communicator's name, as passed to Join/Direct.
func (c *Communicator) Name() string { return c.name }

// Rank returns this endpoint's rank.
func (c *Communicator) Rank() int { return c.rank }

// Size returns the world size (number of ranks) of the mesh.
func (c *Communicator) Size() int { return c.size }

// Running reports whether the communicator has completed startup and
// not yet been freed.
func (c *Communicator) Running() bool { return c.running.Load() }

// Revoked reports whether revoke() has been called locally or a
// revoke record has arrived from a peer.
func (c *Communicator) Revoked() bool { return c.revoked.Load() }

// SetTranscript installs a transcript.Recorder for this
// communicator's Send and Recv tap points. A freshly constructed
// Communicator records nothing (transcript.Noop); callers opt in
// explicitly.
func (c *Communicator) SetTranscript(r transcript.Recorder) {
	if r == nil {
		r = transcript.Noop()
	}
	c.transcript = r
}

func (c *Communicator) checkUsable() error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	if c.revoked.Load() {
		return ErrRevoked
	}
	return nil
}

func (c *Communicator) nextSerial() uint64 {
	return c.serial.Inc()
}

// rec returns the installed transcript.Recorder, or a no-op one if
// SetTranscript was never called; every tap point reads through this
// so a fresh Communicator never needs a nil check at the call site.
func (c *Communicator) rec() transcript.Recorder {
	if c.transcript == nil {
		return transcript.Noop()
	}
	return c.transcript
}
