//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package przs implements pairwise-seeded pseudorandom zero-sharing:
// a communication-free primitive that, once a one-time ring seed
// exchange has run, produces per-player values that always sum to
// zero across the mesh. Protocol suites use it to re-randomize shares
// at no further network cost.
package przs

import (
	"io"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/markkurossi/cicada/encoding"
	"github.com/markkurossi/cicada/field"
	"github.com/markkurossi/cicada/mesh"
)

var log = logging.Logger("cicada/przs")

// Config configures a zero-sharing State. Seed is the player's own
// ring seed; a random one is drawn if left nil. SeedOffset lets a
// caller run more than one independent PRZS stream over the same
// communicator (e.g. one per protocol suite) without the streams
// colliding.
type Config struct {
	Comm       *mesh.Communicator
	Field      *field.Field
	Encoding   encoding.Encoding
	Seed       []byte
	SeedOffset int
}

// State is a player's half of the ring: two keyed PRNGs, g0 seeded
// from this player's own seed and g1 seeded from the seed received
// from rank (r-1) mod n, so that g0 of rank i and g1 of rank i+1 are
// the identical stream.
type State struct {
	comm     *mesh.Communicator
	field    *field.Field
	encoding encoding.Encoding

	g0 io.Reader
	g1 io.Reader
}

// New runs the one-time ring seed exchange and returns a ready State.
// Every player in comm must call New (it is a collective: each player
// sends its seed to rank (r+1) mod n and blocks receiving the seed
// from rank (r-1) mod n).
func New(cfg Config) (*State, error) {
	if cfg.Comm == nil || cfg.Field == nil {
		return nil, errors.New("przs: comm and field are required")
	}
	seed := cfg.Seed
	if seed == nil {
		var err error
		seed, err = field.NewRandomSeed(32)
		if err != nil {
			return nil, errors.Wrap(err, "przs: seed")
		}
	}

	size := cfg.Comm.Size()
	rank := cfg.Comm.Rank()
	next := (rank + 1) % size
	prev := (rank - 1 + size) % size

	sendH := cfg.Comm.ISend(next, mesh.TagSeedExchange, seed)
	prevSeed, err := cfg.Comm.Recv(prev, mesh.TagSeedExchange)
	if err != nil {
		return nil, errors.Wrap(err, "przs: ring seed exchange")
	}
	if _, err := sendH.Wait(); err != nil {
		return nil, errors.Wrap(err, "przs: ring seed exchange")
	}

	label := byte(cfg.SeedOffset)
	g0, err := field.NewSeededRNG(seed, label)
	if err != nil {
		return nil, errors.Wrap(err, "przs: g0")
	}
	g1, err := field.NewSeededRNG(prevSeed, label)
	if err != nil {
		return nil, errors.Wrap(err, "przs: g1")
	}

	log.Debugw("przs ring established", "rank", rank, "size", size)

	return &State{
		comm:     cfg.Comm,
		field:    cfg.Field,
		encoding: cfg.Encoding,
		g0:       g0,
		g1:       g1,
	}, nil
}

// Przs returns this player's share of a fresh additive zero-sharing
// of the requested shape: field.Uniform(shape, g0) - field.Uniform(shape, g1).
// Every player must call Przs with the identical shape in lock-step;
// a divergent shape silently desynchronizes the two streams and is
// only detectable downstream, at the next reveal.
func (s *State) Przs(shape []int) (*field.Array, error) {
	a, err := field.Uniform(s.field, shape, s.g0)
	if err != nil {
		return nil, errors.Wrap(err, "przs: g0 draw")
	}
	b, err := field.Uniform(s.field, shape, s.g1)
	if err != nil {
		return nil, errors.Wrap(err, "przs: g1 draw")
	}
	return a.Sub(b)
}

// Field returns the field this PRZS state draws values from.
func (s *State) Field() *field.Field { return s.field }

// Encoding returns the encoding configured for this PRZS state, if
// any. The suites in this module encode secrets with their own
// configured encoding and do not read this value.
func (s *State) Encoding() encoding.Encoding { return s.encoding }
