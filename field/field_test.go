//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsComposite(t *testing.T) {
	_, err := New(big.NewInt(15))
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestNewRejectsEven(t *testing.T) {
	_, err := New(big.NewInt(16))
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestDefaultOrder(t *testing.T) {
	f := Default()
	require.True(t, f.Order().ProbablyPrime(32))
	require.Equal(t, 0, f.Order().Cmp(DefaultPrime))
}

func TestClosure(t *testing.T) {
	f := Default()
	p := f.Order()
	a := big.NewInt(-7)
	b := new(big.Int).Sub(p, big.NewInt(3))

	for _, v := range []*big.Int{f.Add(a, b), f.Sub(a, b), f.Mul(a, b), f.Neg(a)} {
		require.True(t, v.Sign() >= 0 && v.Cmp(p) < 0)
	}
}

func TestInverse(t *testing.T) {
	f := Default()
	x := big.NewInt(12345)
	inv, err := f.Inverse(x)
	require.NoError(t, err)
	require.Equal(t, 0, f.Mul(x, inv).Cmp(big.NewInt(1)))

	_, err = f.Inverse(big.NewInt(0))
	require.Error(t, err)
}

func TestArrayArithmetic(t *testing.T) {
	f := Default()
	a := FromInts(f, 1, 2, 3)
	b := FromInts(f, 10, 20, 30)

	sum, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, []int64{11, 22, 33}, toInt64s(sum))

	diff, err := b.Sub(a)
	require.NoError(t, err)
	require.Equal(t, []int64{9, 18, 27}, toInt64s(diff))

	require.Equal(t, int64(66), sum.Sum().Int64())
}

func TestArrayShapeMismatch(t *testing.T) {
	f := Default()
	a := FromInts(f, 1, 2)
	b := FromInts(f, 1, 2, 3)
	_, err := a.Add(b)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestUniformReproducible(t *testing.T) {
	f := Default()
	rng1, err := NewSeededRNG([]byte("seed"), 0)
	require.NoError(t, err)
	rng2, err := NewSeededRNG([]byte("seed"), 0)
	require.NoError(t, err)

	a, err := Uniform(f, []int{8}, rng1)
	require.NoError(t, err)
	b, err := Uniform(f, []int{8}, rng2)
	require.NoError(t, err)

	require.Equal(t, toInt64s(a), toInt64s(b))
}

func TestUniformDifferentLabelsDiverge(t *testing.T) {
	f := Default()
	rng0, _ := NewSeededRNG([]byte("seed"), 0)
	rng1, _ := NewSeededRNG([]byte("seed"), 1)

	a, _ := Uniform(f, []int{4}, rng0)
	b, _ := Uniform(f, []int{4}, rng1)
	require.NotEqual(t, toInt64s(a), toInt64s(b))
}

func toInt64s(a *Array) []int64 {
	out := make([]int64, a.Len())
	for i := 0; i < a.Len(); i++ {
		out[i] = a.At(i).Int64()
	}
	return out
}
