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

// RandomBitwiseSecret produces a jointly-unbiased random bit sharing
// of the given shape: bitShares[0] is the most significant bit,
// bitShares[bits-1] the least significant, each itself an ArrayShare
// of shape. composed is the sharing of the integer those bits
// represent.
//
// Each player locally samples its own independent bit sharing and the
// n sharings are combined with the shared XOR a+b-2ab (one
// UntruncatedMultiply per combination), so the result is unbiased as
// long as at least one player samples honestly.
func (s *Suite) RandomBitwiseSecret(shape []int, bits int) ([]*ArrayShare, *ArrayShare, error) {
	if bits <= 0 {
		return nil, nil, errors.Errorf("additive: random_bitwise_secret needs bits > 0, got %d", bits)
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
				return nil, nil, errors.Wrap(err, "additive: random_bitwise_secret share")
			}
			if acc == nil {
				acc = share
				continue
			}
			acc, err = s.xor(acc, share)
			if err != nil {
				return nil, nil, errors.Wrap(err, "additive: random_bitwise_secret xor")
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

// xor computes the element-wise shared XOR a+b-2ab of two {0,1}
// sharings.
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

// LogicalAnd computes the shared AND a*b of two {0,1} sharings (one
// communication round).
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

// LogicalNot computes 1-a (local only, no communication).
func (s *Suite) LogicalNot(a *ArrayShare) *ArrayShare {
	return s.AddPublic(s.Negative(a), big.NewInt(1))
}

// lsb masks share with a fresh fieldBits-wide random bitwise secret,
// reveals the masked value, and recovers share's least-significant
// bit from the revealed value's own low bit XORed with the mask's
// low bit.
func (s *Suite) lsb(share *ArrayShare) (*ArrayShare, error) {
	shape := share.Shape()
	n := shapeLen(shape)
	fieldBits := s.field.BitLen()

	maskBits, mask, err := s.RandomBitwiseSecret(shape, fieldBits)
	if err != nil {
		return nil, errors.Wrap(err, "additive: lsb mask")
	}

	masked, err := s.Add(share, mask)
	if err != nil {
		return nil, err
	}
	revealed, _, err := s.Reveal(masked, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "additive: lsb reveal")
	}

	// The revealed bit is public, so only rank 0 holds it as its share.
	revealedLow := field.NewArray(s.field, shape)
	if s.comm.Rank() == 0 {
		for i := 0; i < n; i++ {
			revealedLow.At(i).SetUint64(revealed.At(i).Bit(0))
		}
	}
	maskLow := maskBits[len(maskBits)-1]
	return s.xor(wrap(revealedLow), maskLow)
}

// LessThanZero reports (as a shared {0,1} value) whether x, under the
// [0,p/2)/[p/2,p) signed convention, represents a negative number:
// doubling a negative value wraps the field and flips its parity, so
// this is exactly lsb(2x).
func (s *Suite) LessThanZero(x *ArrayShare) (*ArrayShare, error) {
	doubled := s.ScalePublic(x, 2)
	return s.lsb(doubled)
}

// Less computes the shared {0,1} comparison a<b by combining the low
// bits of 2a, 2b, and 2(a-b): (w ∧ (w⊕x)) ⊕ (¬(w⊕x) ∧ y), where
// w=lsb(2a), x=lsb(2b), y=lsb(2(a-b)).
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

// Equal computes the shared {0,1} equality a==b via Fermat's little
// theorem: 1-(a-b)^(p-1) is 0 for any nonzero difference and 1 for a
// zero difference.
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

func (s *Suite) halve(a *ArrayShare) (*ArrayShare, error) {
	two, err := s.field.Inverse(big.NewInt(2))
	if err != nil {
		return nil, err
	}
	n := shapeLen(a.Shape())
	out := field.NewArray(s.field, a.Shape())
	for i := 0; i < n; i++ {
		out.At(i).Set(s.field.Mul(a.value.At(i), two))
	}
	return wrap(out), nil
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

// Absolute returns x if x is non-negative, -x otherwise: x-2*lt0(x)*x.
func (s *Suite) Absolute(x *ArrayShare) (*ArrayShare, error) {
	lt0, err := s.LessThanZero(x)
	if err != nil {
		return nil, err
	}
	ltX, err := s.UntruncatedMultiply(lt0, x)
	if err != nil {
		return nil, err
	}
	twiceLtX := s.ScalePublic(ltX, 2)
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

// Zigmoid is a branchless piecewise-linear sigmoid approximation: 0
// for x<-half, x+half for |x|<=half, 1 for x>half, where half is the
// caller-supplied, already-encoded representation of 1/2.
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

// BitDecompose extracts the low bits of x (most significant first) by
// iteratively taking the least significant bit, subtracting it, and
// halving.
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
		n := shapeLen(cur.Shape())
		halved := field.NewArray(s.field, cur.Shape())
		for j := 0; j < n; j++ {
			halved.At(j).Set(s.field.Mul(diff.value.At(j), two))
		}
		cur = wrap(halved)
	}
	return out, nil
}

// BitCompose inverts BitDecompose: shift-and-accumulate the bit
// shares (most significant first) back into a single integer share.
func (s *Suite) BitCompose(bits []*ArrayShare) (*ArrayShare, error) {
	if len(bits) == 0 {
		return nil, errors.New("additive: bit_compose needs at least one bit")
	}
	acc := bits[0]
	for i := 1; i < len(bits); i++ {
		acc = s.ScalePublic(acc, 2)
		var err error
		acc, err = s.Add(acc, bits[i])
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}
