//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package active

import (
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/markkurossi/cicada/encoding"
	"github.com/markkurossi/cicada/field"
	"github.com/markkurossi/cicada/mesh"
)

func buildMesh(t *testing.T, n int) []*mesh.Communicator {
	t.Helper()

	conns := make([]map[int]net.Conn, n)
	for i := range conns {
		conns[i] = make(map[int]net.Conn)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := net.Pipe()
			conns[i][j] = a
			conns[j][i] = b
		}
	}
	comms := make([]*mesh.Communicator, n)
	for i := 0; i < n; i++ {
		comms[i] = mesh.Direct("test", i, n, conns[i], 2*time.Second)
	}
	t.Cleanup(func() {
		for _, c := range comms {
			_ = c.Free()
		}
	})
	return comms
}

func buildSuites(t *testing.T, n, threshold int) []*Suite {
	t.Helper()
	comms := buildMesh(t, n)
	suites := make([]*Suite, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			suites[i], errs[i] = New(Config{
				Comm:      comms[i],
				Field:     field.Default(),
				Threshold: threshold,
				Encoding:  encoding.Identity{},
			})
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	return suites
}

func runAll(n int, fn func(i int) (*ArrayShare, error)) ([]*ArrayShare, []error) {
	shares := make([]*ArrayShare, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			shares[i], errs[i] = fn(i)
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	return shares, errs
}

func revealAll(suites []*Suite, shares []*ArrayShare) ([]*field.Array, []error) {
	n := len(suites)
	results := make([]*field.Array, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			results[i], _, errs[i] = suites[i].Reveal(shares[i], nil, nil)
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	return results, errs
}

func shareSecret(t *testing.T, suites []*Suite, src int, secret []*big.Int, shape []int) []*ArrayShare {
	t.Helper()
	n := len(suites)
	shares, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == src {
			s = secret
		}
		return suites[i].Share(src, s, shape)
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	return shares
}

func TestShareRevealRoundTrip(t *testing.T) {
	const n = 4
	const t0 = 2
	suites := buildSuites(t, n, t0)

	secret := []*big.Int{big.NewInt(11), big.NewInt(22)}
	shares := shareSecret(t, suites, 0, secret, []int{2})

	revealed, errs := revealAll(suites, shares)
	for _, err := range errs {
		require.NoError(t, err)
	}
	for i, want := range secret {
		require.Equal(t, 0, want.Cmp(revealed[0].At(i)))
		require.Equal(t, 0, want.Cmp(revealed[1].At(i)))
	}
}

func TestVerifyAcceptsHonestShares(t *testing.T) {
	const n = 5
	const t0 = 3
	suites := buildSuites(t, n, t0)

	shares := shareSecret(t, suites, 1, []*big.Int{big.NewInt(99)}, []int{1})

	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errs[i] = suites[i].Verify(shares[i])
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestVerifyDetectsCorruptedShamirHalf(t *testing.T) {
	const n = 5
	const t0 = 3
	suites := buildSuites(t, n, t0)

	shares := shareSecret(t, suites, 0, []*big.Int{big.NewInt(5)}, []int{1})

	// Corrupt rank 2's Shamir half only; its additive half is
	// untouched, so the pair no longer encodes the same secret. Verify
	// reveals its z check collectively, so every player's reveal
	// reconstructs the same corrupted value and rejects.
	shares[2].shamir.Value().At(0).Add(shares[2].shamir.Value().At(0), big.NewInt(1))

	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errs[i] = suites[i].Verify(shares[i])
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for _, err := range errs {
		require.ErrorIs(t, err, ErrConsistency)
	}
}

func TestRevealDetectsCorruptedAdditiveHalf(t *testing.T) {
	const n = 5
	const t0 = 3
	suites := buildSuites(t, n, t0)

	shares := shareSecret(t, suites, 0, []*big.Int{big.NewInt(7)}, []int{1})

	shares[1].additive.Value().At(0).Add(shares[1].additive.Value().At(0), big.NewInt(3))

	_, errs := revealAll(suites, shares)
	for _, err := range errs {
		require.ErrorIs(t, err, ErrConsistency)
	}
}

func TestUntruncatedMultiplyAndTruncate(t *testing.T) {
	const n = 4
	const t0 = 2
	const bits = 16
	suites := buildSuites(t, n, t0)
	fp := encoding.FixedPoint{Precision: bits}
	f := field.Default()

	av, err := fp.EncodeFloat(f, 2.5)
	require.NoError(t, err)
	bv, err := fp.EncodeFloat(f, 4.0)
	require.NoError(t, err)

	a, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{av}
		}
		return suites[i].Share(0, s, []int{1})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	b, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{bv}
		}
		return suites[i].Share(0, s, []int{1})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	products := make([]*ArrayShare, n)
	perrs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			products[i], perrs[i] = suites[i].UntruncatedMultiply(a[i], b[i])
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for _, err := range perrs {
		require.NoError(t, err)
	}

	truncated := make([]*ArrayShare, n)
	terrs := make([]error, n)
	done = make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			truncated[i], terrs[i] = suites[i].Truncate(products[i], bits)
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for _, err := range terrs {
		require.NoError(t, err)
	}

	revealed, errs := revealAll(suites, truncated)
	for _, err := range errs {
		require.NoError(t, err)
	}
	got := fp.DecodeFloat(f, revealed[0].At(0))
	require.InDelta(t, 10.0, got, 0.01)
}

func TestReshareVerifiesFirst(t *testing.T) {
	const n = 5
	const t0 = 3
	suites := buildSuites(t, n, t0)

	shares := shareSecret(t, suites, 0, []*big.Int{big.NewInt(13)}, []int{1})

	reshared := make([]*ArrayShare, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			reshared[i], errs[i] = suites[i].Reshare(shares[i])
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for _, err := range errs {
		require.NoError(t, err)
	}

	revealed, rerrs := revealAll(suites, reshared)
	for _, err := range rerrs {
		require.NoError(t, err)
	}
	require.Equal(t, big.NewInt(13), revealed[0].At(0))
}

func TestReshareRejectsCorruptedShare(t *testing.T) {
	const n = 5
	const t0 = 3
	suites := buildSuites(t, n, t0)

	shares := shareSecret(t, suites, 0, []*big.Int{big.NewInt(13)}, []int{1})
	shares[3].shamir.Value().At(0).Add(shares[3].shamir.Value().At(0), big.NewInt(1))

	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, errs[i] = suites[i].Reshare(shares[i])
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for _, err := range errs {
		require.ErrorIs(t, err, ErrConsistency)
	}
}
