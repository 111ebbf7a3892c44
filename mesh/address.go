//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mesh

import (
	"net"
	"net/url"
	"os"

	"github.com/pkg/errors"
)

// Address is a parsed player address, either tcp://host:port (port
// optional for non-root players whose listener is assigned later) or
// file:///path for a Unix-domain socket.
type Address struct {
	Scheme string
	Host   string
	Port   string
	Path   string
}

// ErrInvalidAddress is returned by ParseAddress for any string that is
// not a well-formed tcp:// or file:// address.
var ErrInvalidAddress = errors.New("mesh: invalid address")

// ParseAddress parses a URL of the form "tcp://host:port" or
// "file:///path".
func ParseAddress(s string) (*Address, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	switch u.Scheme {
	case "tcp":
		host, port := u.Hostname(), u.Port()
		if host == "" {
			return nil, ErrInvalidAddress
		}
		return &Address{Scheme: "tcp", Host: host, Port: port}, nil
	case "file":
		if u.Path == "" {
			return nil, ErrInvalidAddress
		}
		return &Address{Scheme: "file", Path: u.Path}, nil
	default:
		return nil, ErrInvalidAddress
	}
}

// String renders the address back to its URL form.
func (a *Address) String() string {
	switch a.Scheme {
	case "tcp":
		return "tcp://" + net.JoinHostPort(a.Host, a.Port)
	case "file":
		return "file://" + a.Path
	default:
		return ""
	}
}

// network/address returns the (network, address) pair Dial/Listen
// expect.
func (a *Address) netAddr() (network, address string) {
	if a.Scheme == "file" {
		return "unix", a.Path
	}
	return "tcp", net.JoinHostPort(a.Host, a.Port)
}

// Dial connects to the address.
func (a *Address) Dial() (net.Conn, error) {
	network, address := a.netAddr()
	return net.Dial(network, address)
}

// Listen binds a listener on the address. For tcp addresses with no
// port, the OS assigns one; callers can read it back from the
// returned listener's Addr().
func (a *Address) Listen() (net.Listener, error) {
	network, address := a.netAddr()
	if a.Scheme == "file" {
		// Unlink a stale socket file left by a prior crashed run.
		_ = os.Remove(address)
	}
	return net.Listen(network, address)
}
