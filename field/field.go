//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package field implements prime-field integer arithmetic over
// arbitrary-precision big integers, the arithmetic foundation every
// Cicada protocol suite is built on.
package field

import (
	"math/big"

	"github.com/pkg/errors"
)

// DefaultPrime is the largest prime not exceeding 2^64, used when a
// caller does not supply an explicit modulus.
var DefaultPrime, _ = new(big.Int).SetString("18446744073709551557", 10)

// millerRabinRounds is the number of Miller-Rabin rounds used to
// validate a caller-supplied modulus. math/big's ProbablyPrime already
// mixes in a Baillie-PSW test; 32 rounds bounds the residual error
// probability at 2^-64, matching spec.
const millerRabinRounds = 32

// Field is a prime field Z/pZ. The zero value is not usable; construct
// with New or Default.
type Field struct {
	p     *big.Int
	bytes int
}

// ErrInvalidField is returned by New when p is not an odd prime.
var ErrInvalidField = errors.New("field: modulus is not an odd prime")

// New constructs a Field modulo p. p must be an odd prime; primality is
// checked with millerRabinRounds rounds of Miller-Rabin.
func New(p *big.Int) (*Field, error) {
	if p == nil || p.Sign() <= 0 || p.Bit(0) == 0 {
		return nil, ErrInvalidField
	}
	if !p.ProbablyPrime(millerRabinRounds) {
		return nil, ErrInvalidField
	}
	return &Field{
		p:     new(big.Int).Set(p),
		bytes: (p.BitLen() + 7) / 8,
	}, nil
}

// Default constructs a Field over DefaultPrime.
func Default() *Field {
	f, err := New(DefaultPrime)
	if err != nil {
		// DefaultPrime is a fixed, known-good constant.
		panic(err)
	}
	return f
}

// Order returns a copy of the field's modulus.
func (f *Field) Order() *big.Int {
	return new(big.Int).Set(f.p)
}

// Bytes returns the number of bytes needed to hold an element of f in
// its canonical [0, p) representation.
func (f *Field) Bytes() int {
	return f.bytes
}

// BitLen returns the bit length of the field's modulus.
func (f *Field) BitLen() int {
	return f.p.BitLen()
}

// Half returns p/2, the boundary between the conventional positive and
// negative half-lines used by signed interpretations of field elements.
func (f *Field) Half() *big.Int {
	return new(big.Int).Rsh(f.p, 1)
}

// Equal reports whether f and g share the same modulus.
func (f *Field) Equal(g *Field) bool {
	if f == nil || g == nil {
		return f == g
	}
	return f.p.Cmp(g.p) == 0
}

func (f *Field) reduce(x *big.Int) *big.Int {
	z := new(big.Int).Mod(x, f.p)
	if z.Sign() < 0 {
		z.Add(z, f.p)
	}
	return z
}

// Reduce returns x mod p in [0, p).
func (f *Field) Reduce(x *big.Int) *big.Int {
	return f.reduce(x)
}

// Add returns (a+b) mod p.
func (f *Field) Add(a, b *big.Int) *big.Int {
	return f.reduce(new(big.Int).Add(a, b))
}

// Sub returns (a-b) mod p.
func (f *Field) Sub(a, b *big.Int) *big.Int {
	return f.reduce(new(big.Int).Sub(a, b))
}

// Neg returns (-a) mod p.
func (f *Field) Neg(a *big.Int) *big.Int {
	return f.reduce(new(big.Int).Neg(a))
}

// Mul returns (a*b) mod p.
func (f *Field) Mul(a, b *big.Int) *big.Int {
	return f.reduce(new(big.Int).Mul(a, b))
}

// Inverse returns the multiplicative inverse of a mod p. a must be
// nonzero mod p.
func (f *Field) Inverse(a *big.Int) (*big.Int, error) {
	r := f.reduce(a)
	if r.Sign() == 0 {
		return nil, errors.New("field: inverse of zero")
	}
	return new(big.Int).ModInverse(r, f.p), nil
}

// Exp returns (base^exp) mod p for a public, non-negative exponent.
func (f *Field) Exp(base, exp *big.Int) *big.Int {
	return new(big.Int).Exp(f.reduce(base), exp, f.p)
}
