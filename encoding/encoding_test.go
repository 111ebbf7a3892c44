//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package encoding

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/markkurossi/cicada/field"
)

func TestFixedPointRoundTrip(t *testing.T) {
	f := field.Default()
	fp := FixedPoint{Precision: 16}

	for _, x := range []float64{0, 1, -1, 2, 3.5, -3.5, 1234.25} {
		v, err := fp.EncodeFloat(f, x)
		require.NoError(t, err)
		got := fp.DecodeFloat(f, v)
		require.InDelta(t, x, got, 1.0/65536)
	}
}

func TestFixedPointOverflow(t *testing.T) {
	f := field.Default()
	fp := FixedPoint{Precision: 16}
	_, err := fp.EncodeFloat(f, 1e18)
	require.ErrorIs(t, err, ErrEncodingOverflow)
}

func TestBitsRejectsNonBinary(t *testing.T) {
	f := field.Default()
	_, err := Bits{}.Encode(f, []*big.Int{big.NewInt(0), big.NewInt(2)})
	require.ErrorIs(t, err, ErrEncodingDomain)
}

func TestBooleanDecode(t *testing.T) {
	f := field.Default()
	arr, err := Boolean{}.Encode(f, []*big.Int{big.NewInt(0), big.NewInt(5), big.NewInt(-3)})
	require.NoError(t, err)
	out, err := Boolean{}.Decode(f, arr)
	require.NoError(t, err)
	require.Equal(t, []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(1)}, out)
}

func TestDecodeFieldMismatch(t *testing.T) {
	f1 := field.Default()
	f2, err := field.New(big.NewInt(2147483647))
	require.NoError(t, err)

	arr := field.FromInts(f1, 1, 2, 3)
	_, err = Identity{}.Decode(f2, arr)
	require.ErrorIs(t, err, ErrEncodingFieldMismatch)
}
