//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package shamir

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/markkurossi/cicada/field"
)

// UntruncatedMultiply computes the element-wise product a*b as a
// fresh degree-(t-1) sharing. The local Hadamard product of two
// degree-(t-1) evaluations is itself a valid point on a
// degree-2(t-1) polynomial h with h(0)=a(0)*b(0); since
// t <= ceil(n/2) guarantees 2(t-1) <= n-1, the full index set's
// Lagrange coefficients (already precomputed for Reveal) recover
// h(0) from all n such points. To keep that recovery itself secret,
// each player re-shares its own local product at degree t-1 and the
// reduction is performed as a public-coefficient linear combination
// of those fresh shares rather than by revealing h(0) directly.
func (s *Suite) UntruncatedMultiply(a, b *ArrayShare) (*ArrayShare, error) {
	if err := sameShape(a, b); err != nil {
		return nil, err
	}
	local, err := a.value.Mul(b.value)
	if err != nil {
		return nil, err
	}
	shape := a.Shape()
	n := s.comm.Size()

	var acc *ArrayShare
	for r := 0; r < n; r++ {
		var secret []*big.Int
		if s.comm.Rank() == r {
			secret = local.Slice()
		}
		share, err := s.ShareRaw(r, secret, shape)
		if err != nil {
			return nil, errors.Wrap(err, "shamir: multiply degree reduction share")
		}
		scaled := s.ScalePublic(share, s.lagrange[r])
		if acc == nil {
			acc = scaled
			continue
		}
		acc, err = s.Add(acc, scaled)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Truncate divides an untruncated fixed-point product share by
// 2^bits, mirroring suite/additive's Truncate: mask with a fresh
// random bitwise secret split at the truncation boundary, reveal the
// masked value, and rescale by the modular inverse of 2^bits.
func (s *Suite) Truncate(share *ArrayShare, bits uint) (*ArrayShare, error) {
	shape := share.Shape()
	n := shapeLen(shape)

	_, tmask, err := s.RandomBitwiseSecret(shape, int(bits))
	if err != nil {
		return nil, errors.Wrap(err, "shamir: truncate tmask")
	}

	fieldBits := s.field.BitLen()
	_, rmaskLow, err := s.RandomBitwiseSecret(shape, fieldBits-int(bits))
	if err != nil {
		return nil, errors.Wrap(err, "shamir: truncate rmask")
	}
	shiftBits := new(big.Int).Lsh(big.NewInt(1), bits)
	rmask := s.ScalePublic(rmaskLow, shiftBits)

	masked, err := s.Add(share, rmask)
	if err != nil {
		return nil, err
	}
	masked, err = s.Add(masked, tmask)
	if err != nil {
		return nil, err
	}

	revealed, _, err := s.Reveal(masked, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "shamir: truncate reveal")
	}

	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	maskedLow := field.NewArray(s.field, shape)
	for i := 0; i < n; i++ {
		v := new(big.Int).Mod(revealed.At(i), mod)
		maskedLow.At(i).Set(v)
	}

	truncationBits, err := maskedLow.Sub(tmask.value)
	if err != nil {
		return nil, err
	}
	diff, err := share.value.Sub(truncationBits)
	if err != nil {
		return nil, err
	}
	twoK, err := s.field.Inverse(shiftBits)
	if err != nil {
		return nil, errors.Wrap(err, "shamir: truncate inverse")
	}
	out := field.NewArray(s.field, shape)
	for i := 0; i < n; i++ {
		out.At(i).Set(s.field.Mul(diff.At(i), twoK))
	}
	return wrap(out), nil
}

func sameShape(a, b *ArrayShare) error {
	as, bs := a.Shape(), b.Shape()
	if len(as) != len(bs) {
		return field.ErrShapeMismatch
	}
	for i := range as {
		if as[i] != bs[i] {
			return field.ErrShapeMismatch
		}
	}
	return nil
}
