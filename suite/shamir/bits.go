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

// RandomBitwiseSecret mirrors suite/additive's primitive of the same
// name: bitShares[0] is the most significant bit, bitShares[bits-1]
// the least significant, each an ArrayShare of shape; composed is the
// sharing of the integer those bits represent.
func (s *Suite) RandomBitwiseSecret(shape []int, bits int) ([]*ArrayShare, *ArrayShare, error) {
	if bits <= 0 {
		return nil, nil, errors.Errorf("shamir: random_bitwise_secret needs bits > 0, got %d", bits)
	}
	n := s.comm.Size()
	width := shapeLen(shape)

	bitShares := make([]*ArrayShare, bits)
	for bit := 0; bit < bits; bit++ {
		var acc *ArrayShare
		for i := 0; i < n; i++ {
			var local []*big.Int
			if s.comm.Rank() == i {
				seed, err := field.NewRandomSeed((width + 7) / 8)
				if err != nil {
					return nil, nil, err
				}
				local = make([]*big.Int, width)
				for j := 0; j < width; j++ {
					v := (seed[j/8] >> uint(j%8)) & 1
					local[j] = big.NewInt(int64(v))
				}
			}
			share, err := s.ShareRaw(i, local, shape)
			if err != nil {
				return nil, nil, errors.Wrap(err, "shamir: random_bitwise_secret share")
			}
			if acc == nil {
				acc = share
				continue
			}
			acc, err = s.xor(acc, share)
			if err != nil {
				return nil, nil, errors.Wrap(err, "shamir: random_bitwise_secret xor")
			}
		}
		bitShares[bit] = acc
	}

	composed, err := s.BitCompose(bitShares)
	if err != nil {
		return nil, nil, err
	}
	return bitShares, composed, nil
}

func (s *Suite) xor(a, b *ArrayShare) (*ArrayShare, error) {
	ab, err := s.UntruncatedMultiply(a, b)
	if err != nil {
		return nil, err
	}
	sum, err := a.value.Add(b.value)
	if err != nil {
		return nil, err
	}
	out, err := sum.Sub(ab.value.ScaleInt(2))
	if err != nil {
		return nil, err
	}
	return wrap(out), nil
}

// LogicalAnd computes the shared AND a*b of two {0,1} sharings.
func (s *Suite) LogicalAnd(a, b *ArrayShare) (*ArrayShare, error) {
	return s.UntruncatedMultiply(a, b)
}

// LogicalOr computes a+b-a*b.
func (s *Suite) LogicalOr(a, b *ArrayShare) (*ArrayShare, error) {
	ab, err := s.UntruncatedMultiply(a, b)
	if err != nil {
		return nil, err
	}
	sum, err := a.value.Add(b.value)
	if err != nil {
		return nil, err
	}
	out, err := sum.Sub(ab.value)
	if err != nil {
		return nil, err
	}
	return wrap(out), nil
}

// LogicalXor computes the shared XOR of two {0,1} sharings.
func (s *Suite) LogicalXor(a, b *ArrayShare) (*ArrayShare, error) {
	return s.xor(a, b)
}

// LogicalNot computes 1-a (local, every player applies it).
func (s *Suite) LogicalNot(a *ArrayShare) *ArrayShare {
	return s.AddPublic(s.Negative(a), big.NewInt(1))
}

// lsb recovers share's least-significant bit by masking with a fresh
// fieldBits-wide random bitwise secret and revealing.
func (s *Suite) lsb(share *ArrayShare) (*ArrayShare, error) {
	shape := share.Shape()
	n := shapeLen(shape)
	fieldBits := s.field.BitLen()

	maskBits, mask, err := s.RandomBitwiseSecret(shape, fieldBits)
	if err != nil {
		return nil, errors.Wrap(err, "shamir: lsb mask")
	}
	masked, err := s.Add(share, mask)
	if err != nil {
		return nil, err
	}
	revealed, _, err := s.Reveal(masked, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "shamir: lsb reveal")
	}

	revealedLow := field.NewArray(s.field, shape)
	for i := 0; i < n; i++ {
		revealedLow.At(i).SetUint64(revealed.At(i).Bit(0))
	}
	maskLow := maskBits[len(maskBits)-1]
	return s.xor(wrap(revealedLow), maskLow)
}

// LessThanZero is lsb(2x), exploiting that doubling a negative value
// (under the [0,p/2)/[p/2,p) signed convention) wraps the field and
// flips its parity.
func (s *Suite) LessThanZero(x *ArrayShare) (*ArrayShare, error) {
	doubled := wrap(x.value.ScaleInt(2))
	return s.lsb(doubled)
}

// Less computes the shared {0,1} comparison a<b, combining the low
// bits of 2a, 2b, and 2(a-b) exactly as suite/additive does.
func (s *Suite) Less(a, b *ArrayShare) (*ArrayShare, error) {
	w, err := s.LessThanZero(a)
	if err != nil {
		return nil, err
	}
	x, err := s.LessThanZero(b)
	if err != nil {
		return nil, err
	}
	diff, err := s.Sub(a, b)
	if err != nil {
		return nil, err
	}
	y, err := s.LessThanZero(diff)
	if err != nil {
		return nil, err
	}

	wxorx, err := s.xor(w, x)
	if err != nil {
		return nil, err
	}
	left, err := s.LogicalAnd(w, wxorx)
	if err != nil {
		return nil, err
	}
	notWxorx := s.LogicalNot(wxorx)
	right, err := s.LogicalAnd(notWxorx, y)
	if err != nil {
		return nil, err
	}
	return s.xor(left, right)
}

// Equal computes a==b via Fermat's little theorem: 1-(a-b)^(p-1).
func (s *Suite) Equal(a, b *ArrayShare) (*ArrayShare, error) {
	diff, err := s.Sub(a, b)
	if err != nil {
		return nil, err
	}
	pMinus1 := new(big.Int).Sub(s.field.Order(), big.NewInt(1))
	powered, err := s.PrivatePublicPowerField(diff, pMinus1)
	if err != nil {
		return nil, err
	}
	return s.LogicalNot(powered), nil
}

// PrivatePublicPowerField raises a shared value to a public exponent
// via square-and-multiply over UntruncatedMultiply.
func (s *Suite) PrivatePublicPowerField(x *ArrayShare, exp *big.Int) (*ArrayShare, error) {
	if exp.Sign() < 0 {
		return nil, errors.New("shamir: negative public exponent")
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

func (s *Suite) halve(a *ArrayShare) (*ArrayShare, error) {
	two, err := s.field.Inverse(big.NewInt(2))
	if err != nil {
		return nil, err
	}
	return s.ScalePublic(a, two), nil
}

// Max returns (a+b+|a-b|)/2.
func (s *Suite) Max(a, b *ArrayShare) (*ArrayShare, error) {
	diff, err := s.Sub(a, b)
	if err != nil {
		return nil, err
	}
	abs, err := s.Absolute(diff)
	if err != nil {
		return nil, err
	}
	sum, err := s.Add(a, b)
	if err != nil {
		return nil, err
	}
	total, err := s.Add(sum, abs)
	if err != nil {
		return nil, err
	}
	return s.halve(total)
}

// Min returns (a+b-|a-b|)/2.
func (s *Suite) Min(a, b *ArrayShare) (*ArrayShare, error) {
	diff, err := s.Sub(a, b)
	if err != nil {
		return nil, err
	}
	abs, err := s.Absolute(diff)
	if err != nil {
		return nil, err
	}
	sum, err := s.Add(a, b)
	if err != nil {
		return nil, err
	}
	total, err := s.Sub(sum, abs)
	if err != nil {
		return nil, err
	}
	return s.halve(total)
}

// Absolute returns x if x is non-negative, -x otherwise.
func (s *Suite) Absolute(x *ArrayShare) (*ArrayShare, error) {
	lt0, err := s.LessThanZero(x)
	if err != nil {
		return nil, err
	}
	ltX, err := s.UntruncatedMultiply(lt0, x)
	if err != nil {
		return nil, err
	}
	twiceLtX := wrap(ltX.value.ScaleInt(2))
	return s.Sub(x, twiceLtX)
}

// Relu returns (1-lt0(x))*x.
func (s *Suite) Relu(x *ArrayShare) (*ArrayShare, error) {
	lt0, err := s.LessThanZero(x)
	if err != nil {
		return nil, err
	}
	gate := s.LogicalNot(lt0)
	return s.UntruncatedMultiply(gate, x)
}

// Zigmoid is the same branchless piecewise-linear sigmoid
// approximation as suite/additive's.
func (s *Suite) Zigmoid(x *ArrayShare, half *big.Int) (*ArrayShare, error) {
	shifted := s.AddPublic(x, half)
	upper := s.SubPublic(x, half)

	ltLower, err := s.LessThanZero(shifted)
	if err != nil {
		return nil, err
	}
	ltUpper, err := s.LessThanZero(upper)
	if err != nil {
		return nil, err
	}
	middleGate, err := s.Sub(ltUpper, ltLower)
	if err != nil {
		return nil, err
	}
	middleVal, err := s.UntruncatedMultiply(middleGate, shifted)
	if err != nil {
		return nil, err
	}
	return s.Add(middleVal, ltUpper)
}

// BitDecompose extracts the low bits of x (most significant first).
func (s *Suite) BitDecompose(x *ArrayShare, bits int) ([]*ArrayShare, error) {
	out := make([]*ArrayShare, bits)
	cur := x
	two, err := s.field.Inverse(big.NewInt(2))
	if err != nil {
		return nil, err
	}
	for i := bits - 1; i >= 0; i-- {
		bit, err := s.lsb(cur)
		if err != nil {
			return nil, err
		}
		out[i] = bit
		diff, err := s.Sub(cur, bit)
		if err != nil {
			return nil, err
		}
		cur = s.ScalePublic(diff, two)
	}
	return out, nil
}

// BitCompose inverts BitDecompose.
func (s *Suite) BitCompose(bits []*ArrayShare) (*ArrayShare, error) {
	if len(bits) == 0 {
		return nil, errors.New("shamir: bit_compose needs at least one bit")
	}
	acc := bits[0]
	for i := 1; i < len(bits); i++ {
		acc = wrap(acc.value.ScaleInt(2))
		var err error
		acc, err = s.Add(acc, bits[i])
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}
