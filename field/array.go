//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package field

import (
	"io"
	"math/big"

	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned by element-wise operations whose
// operand arrays do not share a shape, or whose field does not match.
var ErrShapeMismatch = errors.New("field: shape or field mismatch")

// Array is a multi-dimensional container of field elements. Shape is
// arbitrary; storage is a flat, row-major slice. Arrays are value
// types: callers may freely copy the Go value, but Clone is required
// before mutating a shared backing slice.
type Array struct {
	field *Field
	shape []int
	data  []*big.Int
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// NewArray returns a zero-filled array of the given shape over f.
func NewArray(f *Field, shape []int) *Array {
	return Full(f, shape, big.NewInt(0))
}

// Full returns an array of the given shape with every element set to
// v mod p.
func Full(f *Field, shape []int, v *big.Int) *Array {
	n := numElements(shape)
	data := make([]*big.Int, n)
	rv := f.reduce(v)
	for i := range data {
		data[i] = new(big.Int).Set(rv)
	}
	return &Array{field: f, shape: append([]int(nil), shape...), data: data}
}

// Zeros returns a zero-filled array of the given shape.
func Zeros(f *Field, shape []int) *Array {
	return Full(f, shape, big.NewInt(0))
}

// Ones returns an array of the given shape filled with 1.
func Ones(f *Field, shape []int) *Array {
	return Full(f, shape, big.NewInt(1))
}

// FromInts builds a 1-dimensional array from native integers.
func FromInts(f *Field, values ...int64) *Array {
	data := make([]*big.Int, len(values))
	for i, v := range values {
		data[i] = f.reduce(big.NewInt(v))
	}
	return &Array{field: f, shape: []int{len(values)}, data: data}
}

// FromBigInts builds a 1-dimensional array from big.Int values,
// reducing each modulo p.
func FromBigInts(f *Field, values []*big.Int) *Array {
	data := make([]*big.Int, len(values))
	for i, v := range values {
		data[i] = f.reduce(v)
	}
	return &Array{field: f, shape: []int{len(values)}, data: data}
}

// Field returns the array's field.
func (a *Array) Field() *Field {
	return a.field
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int {
	return append([]int(nil), a.shape...)
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	return len(a.data)
}

// At returns the element at flat index i.
func (a *Array) At(i int) *big.Int {
	return a.data[i]
}

// Slice exposes the backing elements directly; callers must not
// mutate the returned slice.
func (a *Array) Slice() []*big.Int {
	return a.data
}

// Clone returns a deep copy of a.
func (a *Array) Clone() *Array {
	data := make([]*big.Int, len(a.data))
	for i, v := range a.data {
		data[i] = new(big.Int).Set(v)
	}
	return &Array{field: a.field, shape: append([]int(nil), a.shape...), data: data}
}

func (a *Array) sameShape(b *Array) error {
	if !a.field.Equal(b.field) {
		return ErrShapeMismatch
	}
	if len(a.shape) != len(b.shape) {
		return ErrShapeMismatch
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return ErrShapeMismatch
		}
	}
	return nil
}

func (a *Array) elementwise(b *Array, op func(x, y *big.Int) *big.Int) (*Array, error) {
	if err := a.sameShape(b); err != nil {
		return nil, err
	}
	data := make([]*big.Int, len(a.data))
	for i := range data {
		data[i] = op(a.data[i], b.data[i])
	}
	return &Array{field: a.field, shape: append([]int(nil), a.shape...), data: data}, nil
}

// Add returns a+b element-wise.
func (a *Array) Add(b *Array) (*Array, error) {
	return a.elementwise(b, a.field.Add)
}

// Sub returns a-b element-wise.
func (a *Array) Sub(b *Array) (*Array, error) {
	return a.elementwise(b, a.field.Sub)
}

// Mul returns a*b element-wise (a local Hadamard product, not a
// secret-shared multiplication).
func (a *Array) Mul(b *Array) (*Array, error) {
	return a.elementwise(b, a.field.Mul)
}

// Neg returns -a element-wise.
func (a *Array) Neg() *Array {
	data := make([]*big.Int, len(a.data))
	for i, v := range a.data {
		data[i] = a.field.Neg(v)
	}
	return &Array{field: a.field, shape: append([]int(nil), a.shape...), data: data}
}

// AddInPlace adds b into a element-wise.
func (a *Array) AddInPlace(b *Array) error {
	if err := a.sameShape(b); err != nil {
		return err
	}
	for i := range a.data {
		a.data[i] = a.field.Add(a.data[i], b.data[i])
	}
	return nil
}

// SubInPlace subtracts b from a element-wise.
func (a *Array) SubInPlace(b *Array) error {
	if err := a.sameShape(b); err != nil {
		return err
	}
	for i := range a.data {
		a.data[i] = a.field.Sub(a.data[i], b.data[i])
	}
	return nil
}

// ScaleInt multiplies every element by the public native integer v.
func (a *Array) ScaleInt(v int64) *Array {
	bv := big.NewInt(v)
	data := make([]*big.Int, len(a.data))
	for i, x := range a.data {
		data[i] = a.field.Mul(x, bv)
	}
	return &Array{field: a.field, shape: append([]int(nil), a.shape...), data: data}
}

// AddPublic adds the public scalar v to every element of a.
func (a *Array) AddPublic(v *big.Int) *Array {
	data := make([]*big.Int, len(a.data))
	for i, x := range a.data {
		data[i] = a.field.Add(x, v)
	}
	return &Array{field: a.field, shape: append([]int(nil), a.shape...), data: data}
}

// Sum reduces a to a single field element, the modular sum of every
// entry.
func (a *Array) Sum() *big.Int {
	acc := big.NewInt(0)
	for _, v := range a.data {
		acc.Add(acc, v)
	}
	return a.field.reduce(acc)
}

// Uniform draws a uniformly random array of the given shape from rng.
// Each element consumes ceil(bitlen(p)/8) bytes, reduced modulo p;
// this introduces a modulus bias negligible when p is close to a
// power of two.
func Uniform(f *Field, shape []int, rng io.Reader) (*Array, error) {
	n := numElements(shape)
	data := make([]*big.Int, n)
	buf := make([]byte, f.bytes)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, errors.Wrap(err, "field: uniform sampling")
		}
		data[i] = f.reduce(new(big.Int).SetBytes(buf))
	}
	return &Array{field: f, shape: append([]int(nil), shape...), data: data}, nil
}
