//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mesh

import "github.com/pkg/errors"

// ErrCollectiveShape is returned when a collective's caller-supplied
// slices do not match the expected world size or destination count.
var ErrCollectiveShape = errors.New("mesh: collective argument shape mismatch")

// Broadcast sends value from src to every rank, including src itself
// via the loopback queue; every rank (src included) returns value.
// Broadcast is a collective operation: every rank must call it.
func (c *Communicator) Broadcast(src int, value []byte) ([]byte, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	if c.rank == src {
		for r := 0; r < c.size; r++ {
			if err := c.send(TagBroadcast, r, value); err != nil {
				return nil, err
			}
		}
	}
	rec, err := c.recv(TagBroadcast, src)
	if err != nil {
		return nil, err
	}
	return rec.Payload, nil
}

// Scatter sends values[i] to rank i; src must supply exactly size
// values. Every rank returns its own value.
func (c *Communicator) Scatter(src int, values [][]byte) ([]byte, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	if c.rank == src {
		if len(values) != c.size {
			return nil, ErrCollectiveShape
		}
		for r := 0; r < c.size; r++ {
			if err := c.send(TagScatter, r, values[r]); err != nil {
				return nil, err
			}
		}
	}
	rec, err := c.recv(TagScatter, src)
	if err != nil {
		return nil, err
	}
	return rec.Payload, nil
}

// ScatterV is Scatter restricted to the ranks named in dst; values
// must align 1:1 with dst. Ranks not present in dst return (nil, nil).
func (c *Communicator) ScatterV(src int, values [][]byte, dst []int) ([]byte, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	if c.rank == src {
		if len(values) != len(dst) {
			return nil, ErrCollectiveShape
		}
		for i, d := range dst {
			if err := c.send(TagScatterV, d, values[i]); err != nil {
				return nil, err
			}
		}
	}
	if !containsRank(dst, c.rank) {
		return nil, nil
	}
	rec, err := c.recv(TagScatterV, src)
	if err != nil {
		return nil, err
	}
	return rec.Payload, nil
}

// Gather sends value from every rank to dst, which returns the
// ordered-by-rank list; every other rank returns (nil, nil).
func (c *Communicator) Gather(dst int, value []byte) ([][]byte, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	if err := c.send(TagGather, dst, value); err != nil {
		return nil, err
	}
	if c.rank != dst {
		return nil, nil
	}
	out := make([][]byte, c.size)
	for r := 0; r < c.size; r++ {
		rec, err := c.recv(TagGather, r)
		if err != nil {
			return nil, err
		}
		out[r] = rec.Payload
	}
	return out, nil
}

// GatherV is Gather restricted to the ranks named in src; dst returns
// the list ordered to match src.
func (c *Communicator) GatherV(src []int, value []byte, dst int) ([][]byte, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	if containsRank(src, c.rank) {
		if err := c.send(TagGatherV, dst, value); err != nil {
			return nil, err
		}
	}
	if c.rank != dst {
		return nil, nil
	}
	out := make([][]byte, len(src))
	for i, s := range src {
		rec, err := c.recv(TagGatherV, s)
		if err != nil {
			return nil, err
		}
		out[i] = rec.Payload
	}
	return out, nil
}

// AllGather sends value from every rank to every rank and returns the
// ordered-by-rank list.
func (c *Communicator) AllGather(value []byte) ([][]byte, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	for r := 0; r < c.size; r++ {
		if err := c.send(TagAllGather, r, value); err != nil {
			return nil, err
		}
	}
	out := make([][]byte, c.size)
	for r := 0; r < c.size; r++ {
		rec, err := c.recv(TagAllGather, r)
		if err != nil {
			return nil, err
		}
		out[r] = rec.Payload
	}
	return out, nil
}

// Barrier is a two-phase synchronization: every rank signals entry to
// rank 0, which waits for all n signals and then broadcasts exit.
func (c *Communicator) Barrier() error {
	if err := c.checkUsable(); err != nil {
		return err
	}
	if err := c.send(TagBarrierEnter, 0, nil); err != nil {
		return err
	}
	if c.rank == 0 {
		for r := 0; r < c.size; r++ {
			if _, err := c.recv(TagBarrierEnter, r); err != nil {
				return err
			}
		}
		for r := 0; r < c.size; r++ {
			if err := c.send(TagBarrierExit, r, nil); err != nil {
				return err
			}
		}
	}
	_, err := c.recv(TagBarrierExit, 0)
	return err
}

func containsRank(ranks []int, r int) bool {
	for _, x := range ranks {
		if x == r {
			return true
		}
	}
	return false
}
