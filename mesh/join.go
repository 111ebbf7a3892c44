//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mesh

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"net"

	"github.com/pkg/errors"
)

// Join builds a Communicator by rendezvous: every rank but 0 dials
// rank 0's well-known bootstrap address and announces its own rank,
// token, and the address it will listen on during the connection
// phase; rank 0 collects all of these, assembles the full address
// table, and sends it back down each bootstrap connection. Only once
// every rank holds the complete table do ranks dial each other to
// build the actual mesh. This is the startup path spec.md §4.4
// describes for callers that do not already hold a full set of
// connections; Direct is the entry point for those that do (e.g.
// tests wiring up net.Pipe pairs directly).
//
// token must be identical across every rank; it guards against a rank
// joining the wrong mesh by mistake. listen is the address this rank
// will accept mesh-phase connections on; dialRank0 is ignored by rank
// 0 itself.
func Join(name, token string, rank, size int, listen string, dialRank0 string) (*Communicator, error) {
	if rank < 0 || rank >= size {
		return nil, errors.Errorf("mesh: rank %d out of range [0,%d)", rank, size)
	}
	tokenHash := sha256.Sum256([]byte(token))

	table, err := exchangeAddressTable(rank, size, listen, dialRank0, tokenHash)
	if err != nil {
		return nil, err
	}

	conns, err := connectMesh(rank, size, table)
	if err != nil {
		return nil, err
	}
	return Direct(name, rank, size, conns, 0), nil
}

// exchangeAddressTable runs the bootstrap phase and returns the
// completed table of every rank's mesh-phase listen address.
func exchangeAddressTable(rank, size int, listen, dialRank0 string, token [sha256.Size]byte) ([]string, error) {
	addrs := make([]string, size)
	addrs[rank] = listen

	if rank != 0 {
		conn, err := net.Dial("tcp", dialRank0)
		if err != nil {
			return nil, errors.Wrap(err, "mesh: rendezvous dial")
		}
		defer conn.Close()

		if err := writeHello(conn, rank, listen, token); err != nil {
			return nil, errors.Wrap(err, "mesh: rendezvous hello")
		}
		full, err := readTable(conn, size)
		if err != nil {
			return nil, errors.Wrap(err, "mesh: rendezvous table")
		}
		return full, nil
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, errors.Wrap(err, "mesh: rendezvous listen")
	}
	defer ln.Close()

	conns := make([]net.Conn, size)
	for i := 1; i < size; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return nil, errors.Wrap(err, "mesh: rendezvous accept")
		}
		peerRank, peerAddr, peerToken, err := readHello(conn)
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "mesh: rendezvous hello")
		}
		if peerToken != token {
			conn.Close()
			return nil, ErrTokenMismatch
		}
		if peerRank <= 0 || peerRank >= size || addrs[peerRank] != "" {
			conn.Close()
			return nil, errors.Errorf("mesh: bad rendezvous rank %d", peerRank)
		}
		addrs[peerRank] = peerAddr
		conns[peerRank] = conn
	}

	for i := 1; i < size; i++ {
		err := writeTable(conns[i], addrs)
		conns[i].Close()
		if err != nil {
			return nil, errors.Wrapf(err, "mesh: send table to rank %d", i)
		}
	}
	return addrs, nil
}

func writeHello(conn net.Conn, rank int, addr string, token [sha256.Size]byte) error {
	w := bufio.NewWriter(conn)
	if err := writeUint32(w, uint32(rank)); err != nil {
		return err
	}
	if _, err := w.Write(token[:]); err != nil {
		return err
	}
	if err := writeString(w, addr); err != nil {
		return err
	}
	return w.Flush()
}

func readHello(conn net.Conn) (rank int, addr string, token [sha256.Size]byte, err error) {
	r := bufio.NewReader(conn)
	var rankU uint32
	if rankU, err = readUint32(r); err != nil {
		return
	}
	rank = int(rankU)
	if _, err = readFull(r, token[:]); err != nil {
		return
	}
	addr, err = readString(r)
	return
}

func writeTable(conn net.Conn, addrs []string) error {
	w := bufio.NewWriter(conn)
	if err := writeUint32(w, uint32(len(addrs))); err != nil {
		return err
	}
	for _, a := range addrs {
		if err := writeString(w, a); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readTable(conn net.Conn, size int) ([]string, error) {
	r := bufio.NewReader(conn)
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if int(n) != size {
		return nil, errors.Errorf("mesh: rendezvous table size mismatch: got %d want %d", n, size)
	}
	out := make([]string, n)
	for i := range out {
		out[i], err = readString(r)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeUint32(w *bufio.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r *bufio.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeString(w *bufio.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := readFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// connectMesh dials every lower rank and accepts from every higher
// rank, so each connection is established exactly once regardless of
// which side initiates. Each dialer first writes its own rank as a
// 4-byte big-endian value, and the accepting side files the
// connection under that rank rather than under accept order.
func connectMesh(rank, size int, addrs []string) (map[int]net.Conn, error) {
	conns := make(map[int]net.Conn, size-1)
	var ln net.Listener
	if rank < size-1 {
		var err error
		ln, err = net.Listen("tcp", addrs[rank])
		if err != nil {
			return nil, errors.Wrap(err, "mesh: mesh-phase listen")
		}
		defer ln.Close()
	}

	for peer := 0; peer < rank; peer++ {
		conn, err := net.Dial("tcp", addrs[peer])
		if err != nil {
			return nil, errors.Wrapf(err, "mesh: dial rank %d", peer)
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(rank))
		if _, err := conn.Write(b[:]); err != nil {
			return nil, errors.Wrapf(err, "mesh: announce rank to %d", peer)
		}
		conns[peer] = conn
	}
	for i := rank + 1; i < size; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return nil, errors.Wrap(err, "mesh: mesh-phase accept")
		}
		var b [4]byte
		if _, err := io.ReadFull(conn, b[:]); err != nil {
			return nil, errors.Wrap(err, "mesh: read peer rank")
		}
		peer := int(binary.BigEndian.Uint32(b[:]))
		if peer <= rank || peer >= size || conns[peer] != nil {
			return nil, errors.Errorf("mesh: unexpected peer rank %d", peer)
		}
		conns[peer] = conn
	}
	return conns, nil
}
