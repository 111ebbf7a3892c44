//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package additive

import (
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/markkurossi/cicada/encoding"
	"github.com/markkurossi/cicada/field"
	"github.com/markkurossi/cicada/mesh"
	"github.com/markkurossi/cicada/transcript"
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

func buildSuites(t *testing.T, n int, enc encoding.Encoding) []*Suite {
	t.Helper()
	comms := buildMesh(t, n)
	suites := make([]*Suite, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			suites[i], errs[i] = New(Config{Comm: comms[i], Field: field.Default(), Encoding: enc})
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

// runAll calls fn once per player concurrently and returns the
// per-player results in rank order.
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

func TestShareRevealRoundTrip(t *testing.T) {
	const n = 4
	suites := buildSuites(t, n, encoding.Identity{})

	secret := []*big.Int{big.NewInt(11), big.NewInt(22), big.NewInt(33)}
	shares, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = secret
		}
		return suites[i].ShareRaw(0, s, []int{3})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	revealed := revealAll(t, suites, shares)
	for i, want := range secret {
		require.Equal(t, 0, want.Cmp(revealed.At(i)))
	}
}

func TestAddAndScalePublic(t *testing.T) {
	const n = 3
	suites := buildSuites(t, n, encoding.Identity{})

	a, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{big.NewInt(4)}
		}
		return suites[i].ShareRaw(0, s, []int{1})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	b, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 1 {
			s = []*big.Int{big.NewInt(9)}
		}
		return suites[i].ShareRaw(1, s, []int{1})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	sums := make([]*ArrayShare, n)
	for i := 0; i < n; i++ {
		var err error
		sums[i], err = suites[i].Add(a[i], b[i])
		require.NoError(t, err)
	}
	revealed := revealAll(t, suites, sums)
	require.Equal(t, big.NewInt(13), revealed.At(0))

	scaled := make([]*ArrayShare, n)
	for i := 0; i < n; i++ {
		scaled[i] = suites[i].ScalePublic(sums[i], 5)
	}
	revealedScaled := revealAll(t, suites, scaled)
	require.Equal(t, big.NewInt(65), revealedScaled.At(0))
}

func TestUntruncatedMultiplyAndTruncate(t *testing.T) {
	const n = 3
	const bits = 16
	suites := buildSuites(t, n, encoding.Identity{})
	fp := encoding.FixedPoint{Precision: bits}
	f := field.Default()

	av, err := fp.EncodeFloat(f, 3.5)
	require.NoError(t, err)
	bv, err := fp.EncodeFloat(f, 2.0)
	require.NoError(t, err)

	a, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{av}
		}
		return suites[i].ShareRaw(0, s, []int{1})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	b, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{bv}
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

	revealed := revealAll(t, suites, truncated)
	got := fp.DecodeFloat(f, revealed.At(0))
	require.InDelta(t, 7.0, got, 0.01)
}

func TestTranscriptRecordsShareAndReveal(t *testing.T) {
	const n = 2
	suites := buildSuites(t, n, encoding.Identity{})
	rec := transcript.New(nil)
	suites[0].SetTranscript(rec)

	shares, errs := runAll(n, func(i int) (*ArrayShare, error) {
		var s []*big.Int
		if i == 0 {
			s = []*big.Int{big.NewInt(1)}
		}
		return suites[i].Share(0, s, []int{1})
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	revealAll(t, suites, shares)

	events := rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, "additive", events[0].Category)
	require.Equal(t, "Share", events[0].Op)
	require.Equal(t, "additive", events[1].Category)
	require.Equal(t, "Reveal", events[1].Op)
}

func TestLessThanZero(t *testing.T) {
	const n = 3
	suites := buildSuites(t, n, encoding.Identity{})
	f := field.Default()

	cases := []struct {
		name string
		v    *big.Int
		want int64
	}{
		{"positive", big.NewInt(42), 0},
		{"negative", f.Neg(big.NewInt(42)), 1},
	}

	for _, c := range cases {
		shares, errs := runAll(n, func(i int) (*ArrayShare, error) {
			var s []*big.Int
			if i == 0 {
				s = []*big.Int{c.v}
			}
			return suites[i].ShareRaw(0, s, []int{1})
		})
		for _, err := range errs {
			require.NoError(t, err)
		}

		out := make([]*ArrayShare, n)
		oerrs := make([]error, n)
		done := make(chan int, n)
		for i := 0; i < n; i++ {
			go func(i int) {
				out[i], oerrs[i] = suites[i].LessThanZero(shares[i])
				done <- i
			}(i)
		}
		for i := 0; i < n; i++ {
			<-done
		}
		for _, err := range oerrs {
			require.NoError(t, err)
		}

		revealed := revealAll(t, suites, out)
		require.Equal(t, big.NewInt(c.want), revealed.At(0), c.name)
	}
}
