//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package active implements the honest-majority-with-abort composite
// suite (spec's "C8"): every value is held as a pair of an additive
// and a Shamir share of the same secret, and every arithmetic method
// forwards component-wise to both subsuites. Verify and Reveal add
// the cross-checks that catch any single deviation from honest
// protocol execution, generalizing the teacher's crypto/tss.Peer
// "pair a state machine with a transport and cross-check" shape to
// "pair two independent secret-sharing schemes and cross-check".
package active

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/markkurossi/cicada/encoding"
	"github.com/markkurossi/cicada/field"
	"github.com/markkurossi/cicada/mesh"
	"github.com/markkurossi/cicada/suite/additive"
	"github.com/markkurossi/cicada/suite/shamir"
	"github.com/markkurossi/cicada/transcript"
)

var log = logging.Logger("cicada/suite/active")

// ErrConsistency is returned by Verify and Reveal when the additive
// and Shamir halves of a share (or two independently reconstructed
// Shamir subsets) disagree, meaning some player deviated from the
// protocol.
var ErrConsistency = errors.New("active: consistency check failed")

// Config configures a Suite; fields are forwarded to the additive and
// Shamir subsuites it pairs, which is why both must share one
// communicator, field, encoding, and set of indices.
type Config struct {
	Comm      *mesh.Communicator
	Field     *field.Field
	Threshold int
	Encoding  encoding.Encoding
	Indices   []*big.Int
}

// Suite is one player's active-security protocol state.
type Suite struct {
	comm  *mesh.Communicator
	field *field.Field
	enc   encoding.Encoding
	add   *additive.Suite
	sh    *shamir.Suite

	transcript transcript.Recorder
}

// New builds the paired additive and Shamir subsuites.
func New(cfg Config) (*Suite, error) {
	add, err := additive.New(additive.Config{
		Comm:     cfg.Comm,
		Field:    cfg.Field,
		Encoding: cfg.Encoding,
	})
	if err != nil {
		return nil, errors.Wrap(err, "active: additive subsuite")
	}
	sh, err := shamir.New(shamir.Config{
		Comm:      cfg.Comm,
		Field:     cfg.Field,
		Threshold: cfg.Threshold,
		Encoding:  cfg.Encoding,
		Indices:   cfg.Indices,
	})
	if err != nil {
		return nil, errors.Wrap(err, "active: shamir subsuite")
	}
	return &Suite{comm: cfg.Comm, field: cfg.Field, enc: cfg.Encoding, add: add, sh: sh}, nil
}

// Comm returns the suite's communicator.
func (s *Suite) Comm() *mesh.Communicator { return s.comm }

// Field returns the suite's field.
func (s *Suite) Field() *field.Field { return s.field }

// Additive exposes the paired additive subsuite, for callers that
// need to drop to C6 semantics directly (e.g. transcript hooks).
func (s *Suite) Additive() *additive.Suite { return s.add }

// Shamir exposes the paired Shamir subsuite.
func (s *Suite) Shamir() *shamir.Suite { return s.sh }

// SetTranscript installs a transcript.Recorder for this suite's own
// Share/Reveal tap points; it does not reach into the paired
// subsuites; call Additive().SetTranscript/Shamir().SetTranscript
// separately to instrument them too.
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

// ArrayShare pairs an additive.ArrayShare and a shamir.ArrayShare of
// the same secret, held in lock-step.
type ArrayShare struct {
	additive *additive.ArrayShare
	shamir   *shamir.ArrayShare
}

// Shape returns the shape of the shared array.
func (a *ArrayShare) Shape() []int { return a.additive.Shape() }

func wrap(add *additive.ArrayShare, sh *shamir.ArrayShare) *ArrayShare {
	return &ArrayShare{additive: add, shamir: sh}
}

// Share distributes secret (known only at src) as a paired sharing.
func (s *Suite) Share(src int, secret []*big.Int, shape []int) (*ArrayShare, error) {
	h := s.rec().Enter("active", "Share", fmt.Sprintf("src=%d shape=%v", src, shape))
	var result string
	defer func() { s.rec().Exit(h, result) }()

	add, err := s.add.Share(src, secret, shape)
	if err != nil {
		result = err.Error()
		return nil, errors.Wrap(err, "active: additive share")
	}
	sh, err := s.sh.Share(src, secret, shape)
	if err != nil {
		result = err.Error()
		return nil, errors.Wrap(err, "active: shamir share")
	}
	result = "ok"
	return wrap(add, sh), nil
}

// Add returns the component-wise sum of two paired shares.
func (s *Suite) Add(a, b *ArrayShare) (*ArrayShare, error) {
	add, err := s.add.Add(a.additive, b.additive)
	if err != nil {
		return nil, err
	}
	sh, err := s.sh.Add(a.shamir, b.shamir)
	if err != nil {
		return nil, err
	}
	return wrap(add, sh), nil
}

// Sub returns the component-wise difference of two paired shares.
func (s *Suite) Sub(a, b *ArrayShare) (*ArrayShare, error) {
	add, err := s.add.Sub(a.additive, b.additive)
	if err != nil {
		return nil, err
	}
	sh, err := s.sh.Sub(a.shamir, b.shamir)
	if err != nil {
		return nil, err
	}
	return wrap(add, sh), nil
}

// Negative returns the component-wise negation of a paired share.
func (s *Suite) Negative(a *ArrayShare) *ArrayShare {
	return wrap(s.add.Negative(a.additive), s.sh.Negative(a.shamir))
}

// AddPublic adds a public scalar to both halves of a paired share.
func (s *Suite) AddPublic(a *ArrayShare, v *big.Int) *ArrayShare {
	return wrap(s.add.AddPublic(a.additive, v), s.sh.AddPublic(a.shamir, v))
}

// SubPublic subtracts a public scalar from both halves of a paired
// share.
func (s *Suite) SubPublic(a *ArrayShare, v *big.Int) *ArrayShare {
	return wrap(s.add.SubPublic(a.additive, v), s.sh.SubPublic(a.shamir, v))
}

// UntruncatedMultiply multiplies two paired shares component-wise.
func (s *Suite) UntruncatedMultiply(a, b *ArrayShare) (*ArrayShare, error) {
	add, err := s.add.UntruncatedMultiply(a.additive, b.additive)
	if err != nil {
		return nil, errors.Wrap(err, "active: additive multiply")
	}
	sh, err := s.sh.UntruncatedMultiply(a.shamir, b.shamir)
	if err != nil {
		return nil, errors.Wrap(err, "active: shamir multiply")
	}
	return wrap(add, sh), nil
}

// Truncate truncates both halves of a paired share by the same
// public bit count.
func (s *Suite) Truncate(a *ArrayShare, bits uint) (*ArrayShare, error) {
	add, err := s.add.Truncate(a.additive, bits)
	if err != nil {
		return nil, errors.Wrap(err, "active: additive truncate")
	}
	sh, err := s.sh.Truncate(a.shamir, bits)
	if err != nil {
		return nil, errors.Wrap(err, "active: shamir truncate")
	}
	return wrap(add, sh), nil
}

// Reshare re-randomizes both halves of a paired share. Per the spec's
// Open Question (c), Reshare performs an eager Verify first so a
// corrupted share is never silently re-randomized into something that
// looks fresh.
func (s *Suite) Reshare(a *ArrayShare) (*ArrayShare, error) {
	if err := s.Verify(a); err != nil {
		return nil, err
	}
	add, err := s.add.Reshare(a.additive)
	if err != nil {
		return nil, errors.Wrap(err, "active: additive reshare")
	}
	sh, err := s.sh.Reshare(a.shamir)
	if err != nil {
		return nil, errors.Wrap(err, "active: shamir reshare")
	}
	return wrap(add, sh), nil
}

// Equal, Relu, Zigmoid, Absolute, bit_decompose/compose all delegate
// component-wise, same shape as the arithmetic methods above.

// Equal computes the component-wise shared equality.
func (s *Suite) Equal(a, b *ArrayShare) (*ArrayShare, error) {
	add, err := s.add.Equal(a.additive, b.additive)
	if err != nil {
		return nil, err
	}
	sh, err := s.sh.Equal(a.shamir, b.shamir)
	if err != nil {
		return nil, err
	}
	return wrap(add, sh), nil
}

// Relu computes the component-wise shared ReLU.
func (s *Suite) Relu(a *ArrayShare) (*ArrayShare, error) {
	add, err := s.add.Relu(a.additive)
	if err != nil {
		return nil, err
	}
	sh, err := s.sh.Relu(a.shamir)
	if err != nil {
		return nil, err
	}
	return wrap(add, sh), nil
}

// Zigmoid computes the component-wise shared piecewise sigmoid.
func (s *Suite) Zigmoid(a *ArrayShare, half *big.Int) (*ArrayShare, error) {
	add, err := s.add.Zigmoid(a.additive, half)
	if err != nil {
		return nil, err
	}
	sh, err := s.sh.Zigmoid(a.shamir, half)
	if err != nil {
		return nil, err
	}
	return wrap(add, sh), nil
}

// Absolute computes the component-wise shared absolute value.
func (s *Suite) Absolute(a *ArrayShare) (*ArrayShare, error) {
	add, err := s.add.Absolute(a.additive)
	if err != nil {
		return nil, err
	}
	sh, err := s.sh.Absolute(a.shamir)
	if err != nil {
		return nil, err
	}
	return wrap(add, sh), nil
}

// BitDecompose decomposes both halves of a paired share into
// component-wise paired bit shares.
func (s *Suite) BitDecompose(a *ArrayShare, bits int) ([]*ArrayShare, error) {
	addBits, err := s.add.BitDecompose(a.additive, bits)
	if err != nil {
		return nil, err
	}
	shBits, err := s.sh.BitDecompose(a.shamir, bits)
	if err != nil {
		return nil, err
	}
	out := make([]*ArrayShare, bits)
	for i := range out {
		out[i] = wrap(addBits[i], shBits[i])
	}
	return out, nil
}

// BitCompose composes paired bit shares back into a paired integer
// share.
func (s *Suite) BitCompose(bits []*ArrayShare) (*ArrayShare, error) {
	addBits := make([]*additive.ArrayShare, len(bits))
	shBits := make([]*shamir.ArrayShare, len(bits))
	for i, b := range bits {
		addBits[i] = b.additive
		shBits[i] = b.shamir
	}
	add, err := s.add.BitCompose(addBits)
	if err != nil {
		return nil, err
	}
	sh, err := s.sh.BitCompose(shBits)
	if err != nil {
		return nil, err
	}
	return wrap(add, sh), nil
}

func shapeLen(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Verify computes z = shamir - lambda_r^-1 * additive (the player's
// own revealing coefficient lambda_r, already held by the Shamir
// subsuite) and Shamir-reveals it: if every player held consistent
// shares, z is a Shamir sharing of zero and the revealed value is
// exactly zero everywhere.
func (s *Suite) Verify(a *ArrayShare) error {
	lambda := s.sh.LagrangeCoefficient(s.comm.Rank())
	lambdaInv, err := s.field.Inverse(lambda)
	if err != nil {
		return errors.Wrap(err, "active: verify lambda inverse")
	}
	return s.verify(a, lambdaInv)
}

func (s *Suite) verify(a *ArrayShare, lambdaInv *big.Int) error {
	shape := a.Shape()
	n := shapeLen(shape)

	additiveAsShamirPoint := field.NewArray(s.field, shape)
	for i := 0; i < n; i++ {
		additiveAsShamirPoint.At(i).Set(s.field.Mul(a.additive.Value().At(i), lambdaInv))
	}

	z, err := a.shamir.Value().Sub(additiveAsShamirPoint)
	if err != nil {
		return errors.Wrap(err, "active: verify z")
	}
	zShare := shamir.WrapShare(z)

	revealed, _, err := s.sh.Reveal(zShare, nil, nil)
	if err != nil {
		return errors.Wrap(err, "active: verify reveal")
	}
	for i := 0; i < revealed.Len(); i++ {
		if revealed.At(i).Sign() != 0 {
			return multierr.Append(ErrConsistency, errors.Errorf("active: element %d inconsistent", i))
		}
	}
	return nil
}

// Reveal all-gathers both subsuites' shares and reconstructs the
// secret four independent ways: the additive sum, the full-index-set
// Shamir interpolation, and two independently drawn random size-t
// Shamir subsets guaranteed to differ. All four must agree, or Reveal
// returns ErrConsistency.
func (s *Suite) Reveal(a *ArrayShare, dst []int, enc encoding.Encoding) (*field.Array, []*big.Int, error) {
	h := s.rec().Enter("active", "Reveal", fmt.Sprintf("shape=%v dst=%v", a.Shape(), dst))
	var result string
	defer func() { s.rec().Exit(h, result) }()

	if err := s.Verify(a); err != nil {
		result = err.Error()
		return nil, nil, err
	}

	fullAdd, _, err := s.add.Reveal(a.additive, dst, nil)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "active: reveal additive")
	}

	shape := a.Shape()
	evals, err := s.sh.AllGatherEvaluations(a.shamir)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "active: reveal shamir evaluations")
	}

	n := s.comm.Size()
	full := make([]int, n)
	for i := range full {
		full[i] = i
	}
	fullSh, err := s.sh.ReconstructSubset(evals, shape, full)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "active: reveal shamir full set")
	}

	t := s.sh.Threshold()
	subsetA, err := randomSubset(n, t)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "active: reveal subset a")
	}
	subsetB, err := randomSubset(n, t)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "active: reveal subset b")
	}
	for n > t && sameIntSlice(subsetA, subsetB) {
		subsetB, err = randomSubset(n, t)
		if err != nil {
			result = err.Error()
			return nil, nil, errors.Wrap(err, "active: reveal subset b retry")
		}
	}
	recA, err := s.sh.ReconstructSubset(evals, shape, subsetA)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "active: reveal subset a reconstruct")
	}
	recB, err := s.sh.ReconstructSubset(evals, shape, subsetB)
	if err != nil {
		result = err.Error()
		return nil, nil, errors.Wrap(err, "active: reveal subset b reconstruct")
	}

	rank := s.comm.Rank()
	if len(dst) > 0 && !containsRank(dst, rank) {
		result = "not a recipient"
		return nil, nil, nil
	}

	if !sameArray(fullAdd, fullSh) || !sameArray(fullSh, recA) || !sameArray(fullSh, recB) {
		result = "reconstruction mismatch"
		return nil, nil, errors.Wrap(ErrConsistency, "active: reconstruction mismatch")
	}
	result = "ok"

	if enc == nil {
		return fullSh, nil, nil
	}
	values, err := enc.Decode(s.field, fullSh)
	if err != nil {
		result = err.Error()
		return fullSh, nil, errors.Wrap(err, "active: reveal application decode")
	}
	return fullSh, values, nil
}

// randomSubset draws a sorted, uniformly random size-k subset of
// {0,...,n-1} via a Fisher-Yates partial shuffle.
func randomSubset(n, k int) ([]int, error) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j, err := randIntn(i + 1)
		if err != nil {
			return nil, err
		}
		perm[i], perm[j] = perm[j], perm[i]
	}
	subset := append([]int(nil), perm[:k]...)
	sort.Ints(subset)
	return subset, nil
}

func randIntn(bound int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(bound)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func sameIntSlice(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameArray(a, b *field.Array) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.At(i).Cmp(b.At(i)) != 0 {
			return false
		}
	}
	return true
}

func containsRank(ranks []int, r int) bool {
	for _, x := range ranks {
		if x == r {
			return true
		}
	}
	return false
}
