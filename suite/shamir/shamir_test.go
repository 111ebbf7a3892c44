//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package shamir

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

func revealAll(t *testing.T, suites []*Suite, shares []*ArrayShare) *field.Array {
	t.Helper()
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
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	return results[0]
}

func TestThresholdPrecondition(t *testing.T) {
	comms := buildMesh(t, 4)
	_, err := New(Config{Comm: comms[0], Field: field.Default(), Threshold: 3})
	require.Error(t, err)
}

func TestShareRevealRoundTrip(t *testing.T) {
	const n = 5
	const t0 = 3
	suites := buildSuites(t, n, t0)

	secret := []*big.Int{big.NewInt(41), big.NewInt(7)}
	shares, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = secret
		}
		return suites[i].ShareRaw(0, s, []int{2})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	revealed := revealAll(t, suites, shares)
	for i, want := range secret {
		require.Equal(t, 0, want.Cmp(revealed.At(i)))
	}
}

func TestUntruncatedMultiply(t *testing.T) {
	const n = 5
	const t0 = 2
	suites := buildSuites(t, n, t0)

	a, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{big.NewInt(6)}
		}
		return suites[i].ShareRaw(0, s, []int{1})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	b, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{big.NewInt(7)}
		}
		return suites[i].ShareRaw(0, s, []int{1})
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

	revealed := revealAll(t, suites, products)
	require.Equal(t, big.NewInt(42), revealed.At(0))
}

func TestAddPublicAppliesAtEveryPlayer(t *testing.T) {
	const n = 4
	const t0 = 2
	suites := buildSuites(t, n, t0)

	shares, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{big.NewInt(10)}
		}
		return suites[i].ShareRaw(0, s, []int{1})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	shifted := make([]*ArrayShare, n)
	for i := 0; i < n; i++ {
		shifted[i] = suites[i].AddPublic(shares[i], big.NewInt(5))
	}
	revealed := revealAll(t, suites, shifted)
	require.Equal(t, big.NewInt(15), revealed.At(0))
}
