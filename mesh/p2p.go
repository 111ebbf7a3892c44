//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mesh

import (
	"fmt"
)

// Send blocks until payload has been handed to dst on the given
// positive, caller-defined tag.
func (c *Communicator) Send(dst int, tag int32, payload []byte) error {
	h := c.rec().Enter("mesh", "Send", fmt.Sprintf("dst=%d tag=%d bytes=%d", dst, tag, len(payload)))
	var result string
	defer func() { c.rec().Exit(h, result) }()

	if err := c.checkUsable(); err != nil {
		result = err.Error()
		return err
	}
	if err := c.send(tag, dst, payload); err != nil {
		result = err.Error()
		return err
	}
	result = "ok"
	return nil
}

// Recv blocks until a message tagged tag arrives from src, or the
// communicator's timeout elapses.
func (c *Communicator) Recv(src int, tag int32) ([]byte, error) {
	h := c.rec().Enter("mesh", "Recv", fmt.Sprintf("src=%d tag=%d", src, tag))
	var result string
	defer func() { c.rec().Exit(h, result) }()

	rec, err := c.recv(tag, src)
	if err != nil {
		result = err.Error()
		return nil, err
	}
	result = fmt.Sprintf("bytes=%d", len(rec.Payload))
	return rec.Payload, nil
}

// TryRecv performs a non-blocking receive, returning ErrTryAgain
// immediately if nothing is queued.
func (c *Communicator) TryRecv(src int, tag int32) ([]byte, error) {
	rec, err := c.tryRecv(tag, src)
	if err != nil {
		return nil, err
	}
	return rec.Payload, nil
}

// Handle is returned by ISend/IRecv: a non-blocking operation whose
// completion can be polled or waited on.
type Handle struct {
	done  chan struct{}
	value []byte
	err   error
}

// IsCompleted reports whether the operation has finished.
func (h *Handle) IsCompleted() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the operation completes and returns its result.
func (h *Handle) Wait() ([]byte, error) {
	<-h.done
	return h.value, h.err
}

// Value returns the operation's result if already completed; ok is
// false otherwise.
func (h *Handle) Value() (value []byte, ok bool) {
	if !h.IsCompleted() {
		return nil, false
	}
	return h.value, true
}

// ISend starts an asynchronous send and returns immediately with a
// Handle; the send itself still runs synchronously on a background
// goroutine dedicated to this call, matching Send's per-peer framing
// guarantees.
func (c *Communicator) ISend(dst int, tag int32, payload []byte) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		h.err = c.Send(dst, tag, payload)
		close(h.done)
	}()
	return h
}

// IRecv starts an asynchronous receive and returns immediately with a
// Handle.
func (c *Communicator) IRecv(src int, tag int32) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		h.value, h.err = c.Recv(src, tag)
		close(h.done)
	}()
	return h
}
