//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package additive implements the n-party additive secret-sharing
// protocol suite (spec's "C6"): semi-honest Du-Atallah-style
// multiplication, fixed-point truncation, bitwise comparisons, and
// the PRZS-backed share/reveal/reshare primitives every other suite
// operation builds on. It generalizes the teacher's two-party,
// P-256-bound SPDZ share arithmetic in crypto/spdz to an n-party,
// arbitrary-prime, array-shaped setting running over mesh.Communicator.
package additive

import (
	"fmt"
	"math/big"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/markkurossi/cicada/encoding"
	"github.com/markkurossi/cicada/field"
	"github.com/markkurossi/cicada/mesh"
	"github.com/markkurossi/cicada/przs"
	"github.com/markkurossi/cicada/transcript"
)

var log = logging.Logger("cicada/suite/additive")

// Reserved tags for the suite's internal point-to-point exchanges.
// These are positive, suite-owned values distinct from both mesh's
// negative reserved tags and caller application tags; callers that
// also use Send/Recv directly on the same communicator must avoid
// this range.
const (
	tagMultiplyA int32 = 10001
	tagMultiplyB int32 = 10002
	tagUniform   int32 = 10003
)

// Config configures a Suite. Seed/SeedOffset are forwarded to the
// PRZS state this suite builds internally.
type Config struct {
	Comm       *mesh.Communicator
	Field      *field.Field
	Encoding   encoding.Encoding
	Seed       []byte
	SeedOffset int
}

// Suite is one player's additive-sharing protocol state: a
// communicator, a field, a default encoding, and the PRZS generator
// every share/reshare call consumes.
type Suite struct {
	comm  *mesh.Communicator
	field *field.Field
	enc   encoding.Encoding
	zero  *przs.State

	transcript transcript.Recorder
}

// New builds a Suite, including the one-time PRZS ring seed exchange;
// every player in cfg.Comm must call New.
func New(cfg Config) (*Suite, error) {
	if cfg.Comm == nil || cfg.Field == nil {
		return nil, errors.New("additive: comm and field are required")
	}
	zero, err := przs.New(przs.Config{
		Comm:       cfg.Comm,
		Field:      cfg.Field,
		Encoding:   cfg.Encoding,
		Seed:       cfg.Seed,
		SeedOffset: cfg.SeedOffset,
	})
	if err != nil {
		return nil, errors.Wrap(err, "additive: przs setup")
	}
	return &Suite{comm: cfg.Comm, field: cfg.Field, enc: cfg.Encoding, zero: zero}, nil
}

// Comm returns the suite's communicator.
func (s *Suite) Comm() *mesh.Communicator { return s.comm }

// Field returns the suite's field.
func (s *Suite) Field() *field.Field { return s.field }

// SetTranscript installs a transcript.Recorder for this suite's
// Share/Reveal tap points. A freshly constructed Suite records
// nothing (transcript.Noop); callers opt in explicitly.
func (s *Suite) SetTranscript(r transcript.Recorder) {
	if r == nil {
		r = transcript.Noop()
	}
	s.transcript = r
}

func (s *Suite) rec() transcript.Recorder {
	if s.transcript == nil {
		return transcript.Noop()
	}
	return s.transcript
}

// ArrayShare is one player's additive share of a secret field.Array:
// the sum of every player's ArrayShare.Value is the secret.
type ArrayShare struct {
	value *field.Array
}

// Value exposes the raw local share.
func (a *ArrayShare) Value() *field.Array { return a.value }

// Shape returns the shape of the shared array.
func (a *ArrayShare) Shape() []int { return a.value.Shape() }

func wrap(v *field.Array) *ArrayShare { return &ArrayShare{value: v} }

// Share distributes secret (known only at src; every other caller
// passes nil) as an additive sharing of the given shape. Every player
// must call Share with the same src and shape in lock-step, since a
// PRZS draw is consumed regardless of whether the caller is src.
func (s *Suite) Share(src int, secret []*big.Int, shape []int) (*ArrayShare, error) {
	h := s.rec().Enter("additive", "Share", fmt.Sprintf("src=%d shape=%v", src, shape))
	var result string
	defer func() { s.rec().Exit(h, result) }()

	var encoded *field.Array
	if s.comm.Rank() == src {
		if s.enc == nil {
			result = "missing encoding"
			return nil, errors.New("additive: share requires a configured encoding")
		}
		var err error
		encoded, err = s.enc.Encode(s.field, secret)
		if err != nil {
			result = err.Error()
			return nil, errors.Wrap(err, "additive: share encode")
		}
	}
	out, err := s.shareEncoded(src, encoded, shape)
	if err != nil {
		result = err.Error()
		return nil, err
	}
	result = "ok"
	return out, nil
}

// ShareRaw shares raw, already-reduced field elements directly,
// bypassing the suite's configured encoding. It is used by
// suite-internal protocols (uniform sampling, masking) that operate
// on field elements rather than application-level values.
func (s *Suite) ShareRaw(src int, secret []*big.Int, shape []int) (*ArrayShare, error) {
	var encoded *field.Array
	if s.comm.Rank() == src {
		encoded = field.FromBigInts(s.field, secret)
	}
	return s.shareEncoded(src, encoded, shape)
}

func (s *Suite) shareEncoded(src int, encoded *field.Array, shape []int) (*ArrayShare, error) {
	z, err := s.zero.Przs(shape)
	if err != nil {
		return nil, errors.Wrap(err, "additive: share")
	}
	if s.comm.Rank() == src {
		if err := z.AddInPlace(encoded); err != nil {
			return nil, errors.Wrap(err, "additive: share combine")
		}
	}
	return wrap(z), nil
}

// Reshare PRZS-adds a fresh zero-sharing to share, producing an
// independently distributed sharing of the same secret.
func (s *Suite) Reshare(share *ArrayShare) (*ArrayShare, error) {
	z, err := s.zero.Przs(share.Shape())
	if err != nil {
		return nil, errors.Wrap(err, "additive: reshare")
	}
	out, err := share.value.Add(z)
	if err != nil {
		return nil, err
	}
	return wrap(out), nil
}

// Reveal sums share across every player and delivers the result to
// every rank in dst (every rank, if dst is empty). Ranks not in dst
// return (nil, nil, nil). If enc is non-nil, the revealed array is
// additionally decoded through it.
func (s *Suite) Reveal(share *ArrayShare, dst []int, enc encoding.Encoding) (*field.Array, []*big.Int, error) {
	h := s.rec().Enter("additive", "Reveal", fmt.Sprintf("shape=%v dst=%v", share.Shape(), dst))
	var result string
	defer func() { s.rec().Exit(h, result) }()

	payload := marshalArray(share.value)
	all, err := s.comm.AllGather(payload)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "additive: reveal")
	}

	rank := s.comm.Rank()
	if len(dst) > 0 && !containsRank(dst, rank) {
		result = "not a recipient"
		return nil, nil, nil
	}

	sum := field.NewArray(s.field, share.Shape())
	for _, b := range all {
		part, err := unmarshalArray(s.field, share.Shape(), b)
		if err != nil {
			result = err.Error()
			return nil, nil, errors.Wrap(err, "additive: reveal decode")
		}
		if err := sum.AddInPlace(part); err != nil {
			result = err.Error()
			return nil, nil, err
		}
	}
	result = "ok"
	if enc == nil {
		return sum, nil, nil
	}
	values, err := enc.Decode(s.field, sum)
	if err != nil {
		result = err.Error()
		return sum, nil, errors.Wrap(err, "additive: reveal application decode")
	}
	return sum, values, nil
}

func containsRank(ranks []int, r int) bool {
	for _, x := range ranks {
		if x == r {
			return true
		}
	}
	return false
}

// ---------- Linear (local) operations ----------

// Add returns the element-wise sum of two shares (no communication).
func (s *Suite) Add(a, b *ArrayShare) (*ArrayShare, error) {
	v, err := a.value.Add(b.value)
	if err != nil {
		return nil, err
	}
	return wrap(v), nil
}

// Sub returns the element-wise difference of two shares (no
// communication).
func (s *Suite) Sub(a, b *ArrayShare) (*ArrayShare, error) {
	v, err := a.value.Sub(b.value)
	if err != nil {
		return nil, err
	}
	return wrap(v), nil
}

// Negative returns the element-wise negation of a share (no
// communication).
func (s *Suite) Negative(a *ArrayShare) *ArrayShare {
	return wrap(a.value.Neg())
}

// AddPublic adds a public, already-encoded scalar to a share; only
// rank 0 applies it locally so the sum across players stays correct.
func (s *Suite) AddPublic(a *ArrayShare, v *big.Int) *ArrayShare {
	if s.comm.Rank() != 0 {
		return wrap(a.value.Clone())
	}
	return wrap(a.value.AddPublic(v))
}

// SubPublic subtracts a public, already-encoded scalar from a share;
// only rank 0 applies it.
func (s *Suite) SubPublic(a *ArrayShare, v *big.Int) *ArrayShare {
	return s.AddPublic(a, s.field.Neg(v))
}

// ScalePublic multiplies a share by a public native integer (every
// player applies it locally: scaling distributes over the sum).
func (s *Suite) ScalePublic(a *ArrayShare, v int64) *ArrayShare {
	return wrap(a.value.ScaleInt(v))
}

// ---------- wire marshaling for reveal/multiply ----------

func marshalArray(a *field.Array) []byte {
	width := a.Field().Bytes()
	out := make([]byte, a.Len()*width)
	for i := 0; i < a.Len(); i++ {
		v := a.At(i).Bytes()
		start := i * width
		copy(out[start+width-len(v):start+width], v)
	}
	return out
}

func shapeLen(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func unmarshalArray(f *field.Field, shape []int, b []byte) (*field.Array, error) {
	width := f.Bytes()
	n := shapeLen(shape)
	if len(b) != n*width {
		return nil, errors.New("additive: malformed share payload")
	}
	out := field.NewArray(f, shape)
	for i := 0; i < n; i++ {
		out.At(i).SetBytes(b[i*width : (i+1)*width])
	}
	return out, nil
}
