//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package przs

import (
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

func TestPrzsZeroSum(t *testing.T) {
	const n = 4
	comms := buildMesh(t, n)
	f := field.Default()

	states := make([]*State, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			states[i], errs[i] = New(Config{Comm: comms[i], Field: f})
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}

	shape := []int{3}
	shares := make([]*field.Array, n)
	done = make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			shares[i], errs[i] = states[i].Przs(shape)
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}

	sum := field.NewArray(f, shape)
	for i := 0; i < n; i++ {
		var err error
		sum, err = sum.Add(shares[i])
		require.NoError(t, err)
	}
	for k := 0; k < shape[0]; k++ {
		require.Equal(t, big.NewInt(0), sum.At(k))
	}
}

func TestPrzsDifferentCallsDiffer(t *testing.T) {
	const n = 3
	comms := buildMesh(t, n)
	f := field.Default()

	states := make([]*State, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			var err error
			states[i], err = New(Config{Comm: comms[i], Field: f})
			require.NoError(t, err)
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	a, err := states[0].Przs([]int{1})
	require.NoError(t, err)
	b, err := states[0].Przs([]int{1})
	require.NoError(t, err)
	require.NotEqual(t, a.At(0), b.At(0))
}
