//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package shamir implements the n-party threshold secret-sharing
// protocol suite (spec's "C7"): Lagrange-interpolated polynomial
// shares over the same field as the additive suite, multiplication
// via degree reduction, and the same mask/reveal comparison shape the
// additive suite uses. Construction mirrors suite/additive's Config/
// Suite/ArrayShare split so suite/active can pair the two without
// adapter glue.
package shamir

import (
	"fmt"
	"math/big"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/markkurossi/cicada/encoding"
	"github.com/markkurossi/cicada/field"
	"github.com/markkurossi/cicada/mesh"
	"github.com/markkurossi/cicada/transcript"
)

var log = logging.Logger("cicada/suite/shamir")

// Config configures a Suite. Indices defaults to alpha_i = i+1 (the
// conventional choice) when left nil.
type Config struct {
	Comm      *mesh.Communicator
	Field     *field.Field
	Threshold int
	Encoding  encoding.Encoding
	Indices   []*big.Int
}

// Suite is one player's Shamir protocol state.
type Suite struct {
	comm      *mesh.Communicator
	field     *field.Field
	enc       encoding.Encoding
	threshold int
	indices   []*big.Int
	lagrange  []*big.Int

	transcript transcript.Recorder
}

// New validates the threshold precondition (t <= ceil(n/2)) and
// precomputes the full-index-set Lagrange coefficients at x=0 used by
// Reveal and the degree-reduction step of UntruncatedMultiply.
func New(cfg Config) (*Suite, error) {
	if cfg.Comm == nil || cfg.Field == nil {
		return nil, errors.New("shamir: comm and field are required")
	}
	n := cfg.Comm.Size()
	maxThreshold := (n + 1) / 2
	if cfg.Threshold <= 0 || cfg.Threshold > maxThreshold {
		return nil, errors.Errorf("shamir: threshold %d must be in (0, ceil(n/2)=%d]", cfg.Threshold, maxThreshold)
	}
	indices := cfg.Indices
	if indices == nil {
		indices = make([]*big.Int, n)
		for i := range indices {
			indices[i] = big.NewInt(int64(i + 1))
		}
	}
	if len(indices) != n {
		return nil, errors.New("shamir: indices must have one entry per player")
	}
	lagrange, err := lagrangeCoefficientsAtZero(cfg.Field, indices)
	if err != nil {
		return nil, errors.Wrap(err, "shamir: lagrange setup")
	}
	return &Suite{
		comm:      cfg.Comm,
		field:     cfg.Field,
		enc:       cfg.Encoding,
		threshold: cfg.Threshold,
		indices:   indices,
		lagrange:  lagrange,
	}, nil
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

// Threshold returns the configured reconstruction threshold t.
func (s *Suite) Threshold() int { return s.threshold }

// Index returns this player's evaluation point alpha_r.
func (s *Suite) Index() *big.Int { return s.indices[s.comm.Rank()] }

// LagrangeCoefficient returns the full-index-set Lagrange coefficient
// lambda_rank used to reconstruct the secret at x=0 from player
// rank's evaluation; suite/active's consistency check needs its
// revealing coefficient directly.
func (s *Suite) LagrangeCoefficient(rank int) *big.Int {
	return new(big.Int).Set(s.lagrange[rank])
}

// ArrayShare is one player's evaluation f(alpha_r) of a random
// degree-(t-1) polynomial whose constant term is the secret.
type ArrayShare struct {
	value *field.Array
}

// Value exposes the raw local evaluation.
func (a *ArrayShare) Value() *field.Array { return a.value }

// Shape returns the shape of the shared array.
func (a *ArrayShare) Shape() []int { return a.value.Shape() }

func wrap(v *field.Array) *ArrayShare { return &ArrayShare{value: v} }

// WrapShare constructs an ArrayShare directly from a local evaluation
// array, for callers (e.g. suite/active's consistency check) that
// compute a local combination of existing shares rather than running
// the share protocol; the result is a valid share only if v genuinely
// is a degree-(t-1) evaluation, which callers must ensure themselves.
func WrapShare(v *field.Array) *ArrayShare { return wrap(v) }

// Share distributes secret (known only at src) as a degree-(t-1)
// Shamir sharing of the given shape: src samples t-1 random
// coefficients per element, forms f(x) = secret + sum(c_j x^j), and
// scatters f(alpha_k) to player k.
func (s *Suite) Share(src int, secret []*big.Int, shape []int) (*ArrayShare, error) {
	h := s.rec().Enter("shamir", "Share", fmt.Sprintf("src=%d shape=%v", src, shape))
	var result string
	defer func() { s.rec().Exit(h, result) }()

	var encoded *field.Array
	if s.comm.Rank() == src {
		if s.enc == nil {
			result = "missing encoding"
			return nil, errors.New("shamir: share requires a configured encoding")
		}
		var err error
		encoded, err = s.enc.Encode(s.field, secret)
		if err != nil {
			result = err.Error()
			return nil, errors.Wrap(err, "shamir: share encode")
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

// ShareRaw shares raw, already-reduced field elements, bypassing the
// suite's configured encoding; used by internal protocols such as
// UntruncatedMultiply's degree reduction.
func (s *Suite) ShareRaw(src int, secret []*big.Int, shape []int) (*ArrayShare, error) {
	var encoded *field.Array
	if s.comm.Rank() == src {
		encoded = field.FromBigInts(s.field, secret)
	}
	return s.shareEncoded(src, encoded, shape)
}

func (s *Suite) shareEncoded(src int, encoded *field.Array, shape []int) (*ArrayShare, error) {
	n := s.comm.Size()
	width := shapeLen(shape)

	var values [][]byte
	if s.comm.Rank() == src {
		values = make([][]byte, n)
		// Coefficients are drawn once per element (at k == 0) so that
		// every player's point lies on the same polynomial.
		polys := make([][]*big.Int, width)
		for k := 0; k < n; k++ {
			row := make([]*big.Int, width)
			for w := 0; w < width; w++ {
				if k > 0 {
					row[w] = evalPoly(s.field, polys[w], s.indices[k])
					continue
				}
				secretVal := big.NewInt(0)
				if encoded != nil {
					secretVal = encoded.At(w)
				}
				coeffs := make([]*big.Int, s.threshold)
				coeffs[0] = secretVal
				for j := 1; j < s.threshold; j++ {
					r, err := randomFieldElement(s.field)
					if err != nil {
						return nil, errors.Wrap(err, "shamir: share coefficient")
					}
					coeffs[j] = r
				}
				polys[w] = coeffs
				row[w] = evalPoly(s.field, coeffs, s.indices[k])
			}
			values[k] = marshalArray(field.FromBigInts(s.field, row))
		}
	}

	payload, err := s.comm.Scatter(src, values)
	if err != nil {
		return nil, errors.Wrap(err, "shamir: share scatter")
	}
	arr, err := unmarshalArray(s.field, shape, payload)
	if err != nil {
		return nil, err
	}
	return wrap(arr), nil
}

// Reshare re-randomizes share without changing the secret it encodes:
// every player contributes a fresh degree-(t-1) sharing of zero (only
// known as zero to its own dealer) and the n contributions sum into
// share, so no coalition smaller than n learns anything new about the
// original randomness.
func (s *Suite) Reshare(share *ArrayShare) (*ArrayShare, error) {
	shape := share.Shape()
	acc := share
	for r := 0; r < s.comm.Size(); r++ {
		var secret []*big.Int
		if s.comm.Rank() == r {
			secret = make([]*big.Int, shapeLen(shape))
			for i := range secret {
				secret[i] = big.NewInt(0)
			}
		}
		z, err := s.ShareRaw(r, secret, shape)
		if err != nil {
			return nil, errors.Wrap(err, "shamir: reshare")
		}
		acc, err = s.Add(acc, z)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Reveal gathers every player's evaluation and reconstructs the
// secret with the precomputed full-index-set Lagrange coefficients.
// Per spec, any subset of size >= t suffices in general; this
// implementation always uses the full set since AllGather already
// collects every player's point.
func (s *Suite) Reveal(share *ArrayShare, dst []int, enc encoding.Encoding) (*field.Array, []*big.Int, error) {
	h := s.rec().Enter("shamir", "Reveal", fmt.Sprintf("shape=%v dst=%v", share.Shape(), dst))
	var result string
	defer func() { s.rec().Exit(h, result) }()

	payload := marshalArray(share.value)
	all, err := s.comm.AllGather(payload)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "shamir: reveal")
	}

	rank := s.comm.Rank()
	if len(dst) > 0 && !containsRank(dst, rank) {
		result = "not a recipient"
		return nil, nil, nil
	}

	shape := share.Shape()
	width := shapeLen(shape)
	evals := make([]*field.Array, len(all))
	for k, b := range all {
		arr, err := unmarshalArray(s.field, shape, b)
		if err != nil {
			result = err.Error()
			return nil, nil, errors.Wrap(err, "shamir: reveal decode")
		}
		evals[k] = arr
	}

	out := field.NewArray(s.field, shape)
	for w := 0; w < width; w++ {
		acc := big.NewInt(0)
		for k, arr := range evals {
			acc = s.field.Add(acc, s.field.Mul(s.lagrange[k], arr.At(w)))
		}
		out.At(w).Set(acc)
	}
	result = "ok"
	if enc == nil {
		return out, nil, nil
	}
	values, err := enc.Decode(s.field, out)
	if err != nil {
		result = err.Error()
		return out, nil, errors.Wrap(err, "shamir: reveal application decode")
	}
	return out, values, nil
}

// AllGatherEvaluations gathers every player's raw evaluation of share,
// for callers (e.g. suite/active's subset consistency check) that need
// the individual evaluations rather than just the full-set
// reconstruction Reveal produces.
func (s *Suite) AllGatherEvaluations(share *ArrayShare) ([]*field.Array, error) {
	payload := marshalArray(share.value)
	all, err := s.comm.AllGather(payload)
	if err != nil {
		return nil, errors.Wrap(err, "shamir: all-gather evaluations")
	}
	shape := share.Shape()
	evals := make([]*field.Array, len(all))
	for k, b := range all {
		arr, err := unmarshalArray(s.field, shape, b)
		if err != nil {
			return nil, errors.Wrap(err, "shamir: all-gather decode")
		}
		evals[k] = arr
	}
	return evals, nil
}

// ReconstructSubset reconstructs the secret at x=0 from the
// evaluations of exactly the given player ranks, computing fresh
// Lagrange coefficients for that subset. len(subset) must be >= the
// threshold for the result to be correct.
func (s *Suite) ReconstructSubset(evals []*field.Array, shape []int, subset []int) (*field.Array, error) {
	indices := make([]*big.Int, len(subset))
	for i, r := range subset {
		indices[i] = s.indices[r]
	}
	coeffs, err := lagrangeCoefficientsAtZero(s.field, indices)
	if err != nil {
		return nil, err
	}
	width := shapeLen(shape)
	out := field.NewArray(s.field, shape)
	for w := 0; w < width; w++ {
		acc := big.NewInt(0)
		for i, r := range subset {
			acc = s.field.Add(acc, s.field.Mul(coeffs[i], evals[r].At(w)))
		}
		out.At(w).Set(acc)
	}
	return out, nil
}

func containsRank(ranks []int, r int) bool {
	for _, x := range ranks {
		if x == r {
			return true
		}
	}
	return false
}

// ---------- Linear operations ----------
//
// Unlike the additive suite (where a public constant only needs to be
// applied at one rank, since the secret is the sum across players),
// adding a public constant to a Shamir polynomial shifts its constant
// term for every evaluation point: every player applies AddPublic and
// SubPublic locally.

// Add returns the element-wise sum of two shares.
func (s *Suite) Add(a, b *ArrayShare) (*ArrayShare, error) {
	v, err := a.value.Add(b.value)
	if err != nil {
		return nil, err
	}
	return wrap(v), nil
}

// Sub returns the element-wise difference of two shares.
func (s *Suite) Sub(a, b *ArrayShare) (*ArrayShare, error) {
	v, err := a.value.Sub(b.value)
	if err != nil {
		return nil, err
	}
	return wrap(v), nil
}

// Negative returns the element-wise negation of a share.
func (s *Suite) Negative(a *ArrayShare) *ArrayShare {
	return wrap(a.value.Neg())
}

// AddPublic adds a public, already-encoded scalar to a share.
func (s *Suite) AddPublic(a *ArrayShare, v *big.Int) *ArrayShare {
	return wrap(a.value.AddPublic(v))
}

// SubPublic subtracts a public, already-encoded scalar from a share.
func (s *Suite) SubPublic(a *ArrayShare, v *big.Int) *ArrayShare {
	return s.AddPublic(a, s.field.Neg(v))
}

// ScalePublic multiplies a share by a public field element.
func (s *Suite) ScalePublic(a *ArrayShare, v *big.Int) *ArrayShare {
	n := shapeLen(a.Shape())
	out := field.NewArray(s.field, a.Shape())
	for i := 0; i < n; i++ {
		out.At(i).Set(s.field.Mul(a.value.At(i), v))
	}
	return wrap(out)
}

// ---------- polynomial helpers ----------

func evalPoly(f *field.Field, coeffs []*big.Int, x *big.Int) *big.Int {
	acc := big.NewInt(0)
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = f.Add(f.Mul(acc, x), coeffs[i])
	}
	return acc
}

func randomFieldElement(f *field.Field) (*big.Int, error) {
	seed, err := field.NewRandomSeed(f.Bytes())
	if err != nil {
		return nil, err
	}
	return f.Reduce(new(big.Int).SetBytes(seed)), nil
}

// lagrangeCoefficientsAtZero returns, for each index k,
// lambda_k = prod_{j!=k} (0-alpha_j)/(alpha_k-alpha_j), the weights
// that reconstruct a degree-(len(indices)-1) polynomial's value at 0
// from its evaluations at every alpha.
func lagrangeCoefficientsAtZero(f *field.Field, indices []*big.Int) ([]*big.Int, error) {
	n := len(indices)
	out := make([]*big.Int, n)
	for k := 0; k < n; k++ {
		num := big.NewInt(1)
		den := big.NewInt(1)
		for j := 0; j < n; j++ {
			if j == k {
				continue
			}
			num = f.Mul(num, f.Neg(indices[j]))
			den = f.Mul(den, f.Sub(indices[k], indices[j]))
		}
		inv, err := f.Inverse(den)
		if err != nil {
			return nil, errors.Wrap(err, "shamir: indices must be pairwise distinct")
		}
		out[k] = f.Mul(num, inv)
	}
	return out, nil
}

// ---------- wire marshaling for scatter/reveal ----------

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
		return nil, errors.New("shamir: malformed share payload")
	}
	out := field.NewArray(f, shape)
	for i := 0; i < n; i++ {
		out.At(i).SetBytes(b[i*width : (i+1)*width])
	}
	return out, nil
}
