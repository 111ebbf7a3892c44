//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package additive

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/markkurossi/cicada/field"
)

// UntruncatedMultiply computes the element-wise product a*b as a
// fresh additive sharing, using the semi-honest Du-Atallah-style
// directed-scatter protocol: every player sends its own shares to the
// m = ceil((n-1)/2) ranks that follow it around the ring and receives
// from the m ranks that precede it, so each cross term a_i*b_j
// (i != j) is computed by exactly one player. For even n the k=n/2
// step connects antipodal ranks both ways (r's receive-from and
// send-to partner coincide), so that step is credited to the lower
// rank of the pair only; otherwise it would be double-counted.
// Generalizes the teacher's two-party crypto/spdz.MulShare
// (Beaver-triple based) to an n-party, triple-free setting; cost is
// O(n) point-to-point sends instead of a Beaver triple per
// multiplication.
func (s *Suite) UntruncatedMultiply(a, b *ArrayShare) (*ArrayShare, error) {
	if err := sameShape(a, b); err != nil {
		return nil, err
	}
	n := s.comm.Size()
	r := s.comm.Rank()
	m := (n - 1 + 1) / 2 // ceil((n-1)/2)

	for k := 1; k <= m; k++ {
		dst := (r + k) % n
		if err := s.sendArray(dst, tagMultiplyA, a.value); err != nil {
			return nil, errors.Wrap(err, "additive: multiply scatter a")
		}
		if err := s.sendArray(dst, tagMultiplyB, b.value); err != nil {
			return nil, errors.Wrap(err, "additive: multiply scatter b")
		}
	}

	term, err := a.value.Mul(b.value)
	if err != nil {
		return nil, err
	}
	for k := 1; k <= m; k++ {
		src := ((r-k)%n + n) % n
		aj, err := s.recvArray(src, tagMultiplyA, a.Shape())
		if err != nil {
			return nil, errors.Wrap(err, "additive: multiply gather a")
		}
		bj, err := s.recvArray(src, tagMultiplyB, a.Shape())
		if err != nil {
			return nil, errors.Wrap(err, "additive: multiply gather b")
		}
		// n even and k == n/2: src and dst are the same antipodal
		// partner, so both ranks in the pair reach this branch for
		// each other. Only the lower rank keeps the cross term.
		if n%2 == 0 && 2*k == n && r > src {
			continue
		}
		crossA, err := a.value.Mul(bj)
		if err != nil {
			return nil, err
		}
		crossB, err := aj.Mul(b.value)
		if err != nil {
			return nil, err
		}
		if term, err = term.Add(crossA); err != nil {
			return nil, err
		}
		if term, err = term.Add(crossB); err != nil {
			return nil, err
		}
	}
	return wrap(term), nil
}

func (s *Suite) sendArray(dst int, tag int32, a *field.Array) error {
	return s.comm.Send(dst, tag, marshalArray(a))
}

func (s *Suite) recvArray(src int, tag int32, shape []int) (*field.Array, error) {
	payload, err := s.comm.Recv(src, tag)
	if err != nil {
		return nil, err
	}
	return unmarshalArray(s.field, shape, payload)
}

// publicArrayMinusPrivate computes pub - priv as a fresh additive
// sharing of an array-shaped public operand: only rank 0 adds pub
// locally, the same "public operand applies once" rule AddPublic and
// SubPublic use for scalars, so the sum across players reconstructs
// to pub - priv's secret instead of n*pub - priv's secret.
func (s *Suite) publicArrayMinusPrivate(pub *field.Array, priv *ArrayShare) (*ArrayShare, error) {
	neg := priv.value.Neg()
	if s.comm.Rank() != 0 {
		return wrap(neg), nil
	}
	out, err := pub.Add(neg)
	if err != nil {
		return nil, err
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

// Truncate divides an untruncated fixed-point product share by 2^bits,
// the protocol fixed-point multiplication needs after
// UntruncatedMultiply. Correctness requires the true magnitude to be
// less than 2^(field_bits-bits)/2 to avoid wraparound.
func (s *Suite) Truncate(share *ArrayShare, bits uint) (*ArrayShare, error) {
	shape := share.Shape()
	n := shapeLen(shape)

	_, tmask, err := s.RandomBitwiseSecret(shape, int(bits))
	if err != nil {
		return nil, errors.Wrap(err, "additive: truncate tmask")
	}

	fieldBits := s.field.BitLen()
	_, rmaskLow, err := s.RandomBitwiseSecret(shape, fieldBits-int(bits))
	if err != nil {
		return nil, errors.Wrap(err, "additive: truncate rmask")
	}
	shiftBits := new(big.Int).Lsh(big.NewInt(1), bits)
	rmask := s.ScalePublic(rmaskLow, shiftBits.Int64())

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
		return nil, errors.Wrap(err, "additive: truncate reveal")
	}

	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	maskedLow := field.NewArray(s.field, shape)
	for i := 0; i < revealed.Len(); i++ {
		v := new(big.Int).Mod(revealed.At(i), mod)
		maskedLow.At(i).Set(v)
	}

	truncationShare, err := s.publicArrayMinusPrivate(maskedLow, tmask)
	if err != nil {
		return nil, err
	}

	diff, err := s.Sub(share, truncationShare)
	if err != nil {
		return nil, err
	}
	twoK, err := s.field.Inverse(shiftBits)
	if err != nil {
		return nil, errors.Wrap(err, "additive: truncate inverse")
	}
	result := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		result[i] = s.field.Mul(diff.value.At(i), twoK)
	}
	out := field.NewArray(s.field, shape)
	for i := 0; i < n; i++ {
		out.At(i).Set(result[i])
	}
	return wrap(out), nil
}

// PrivatePublicPowerField raises a shared value to a public exponent
// using square-and-multiply over UntruncatedMultiply, reusing the
// same shape of recursion as crypto/spdz's ExpShare generalized from
// a single Beaver-triple-backed field element to an array share.
func (s *Suite) PrivatePublicPowerField(x *ArrayShare, exp *big.Int) (*ArrayShare, error) {
	if exp.Sign() < 0 {
		return nil, errors.New("additive: negative public exponent")
	}
	one := make([]*big.Int, shapeLen(x.Shape()))
	for i := range one {
		one[i] = big.NewInt(1)
	}
	res, err := s.ShareRaw(0, one, x.Shape())
	if err != nil {
		return nil, err
	}
	base := x
	bitLen := exp.BitLen()
	for i := 0; i < bitLen; i++ {
		if exp.Bit(i) == 1 {
			res, err = s.UntruncatedMultiply(res, base)
			if err != nil {
				return nil, err
			}
		}
		if i != bitLen-1 {
			base, err = s.UntruncatedMultiply(base, base)
			if err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// MultiplicativeInverse computes x^-1 as a fresh sharing: mask x with
// a fresh random nonzero r, reveal r*x in the clear, invert the
// revealed value in the clear with field.Inverse, and rescale r by
// that clear-text inverse. Reveals only whether x is zero (a zero
// revealed value has no inverse and is reported as an error).
func (s *Suite) MultiplicativeInverse(x *ArrayShare) (*ArrayShare, error) {
	n := shapeLen(x.Shape())
	var mask []*big.Int
	if s.comm.Rank() == 0 {
		seed, err := field.NewRandomSeed(32)
		if err != nil {
			return nil, err
		}
		rng, err := field.NewSeededRNG(seed, 0xF1)
		if err != nil {
			return nil, err
		}
		r, err := field.Uniform(s.field, x.Shape(), rng)
		if err != nil {
			return nil, err
		}
		mask = r.Slice()
	}
	rShare, err := s.ShareRaw(0, mask, x.Shape())
	if err != nil {
		return nil, err
	}

	masked, err := s.UntruncatedMultiply(x, rShare)
	if err != nil {
		return nil, err
	}
	revealed, _, err := s.Reveal(masked, nil, nil)
	if err != nil {
		return nil, err
	}

	out := field.NewArray(s.field, x.Shape())
	for i := 0; i < n; i++ {
		v := revealed.At(i)
		if v.Sign() == 0 {
			return nil, errors.New("additive: multiplicative inverse of zero")
		}
		inv, err := s.field.Inverse(v)
		if err != nil {
			return nil, err
		}
		out.At(i).Set(inv)
	}
	scaled := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		scaled[i] = s.field.Mul(rShare.value.At(i), out.At(i))
	}
	result := field.NewArray(s.field, x.Shape())
	for i := 0; i < n; i++ {
		result.At(i).Set(scaled[i])
	}
	return wrap(result), nil
}

// Uniform produces a fresh, jointly-unbiased random additive sharing
// of the given shape: every player samples a local array and
// scatter-shares it (via ShareRaw with itself as src, summed); callers
// only see the combined sum, never any individual player's
// contribution.
func (s *Suite) Uniform(shape []int) (*ArrayShare, error) {
	n := s.comm.Size()
	var acc *ArrayShare
	for i := 0; i < n; i++ {
		seed, err := field.NewRandomSeed(32)
		if err != nil {
			return nil, err
		}
		rng, err := field.NewSeededRNG(seed, byte(tagUniform%256))
		if err != nil {
			return nil, err
		}
		local, err := field.Uniform(s.field, shape, rng)
		if err != nil {
			return nil, err
		}
		var secret []*big.Int
		if s.comm.Rank() == i {
			secret = local.Slice()
		}
		share, err := s.ShareRaw(i, secret, shape)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = share
		} else {
			acc, err = s.Add(acc, share)
			if err != nil {
				return nil, err
			}
		}
	}
	return acc, nil
}
