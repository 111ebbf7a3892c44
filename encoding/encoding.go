//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package encoding implements the stateless strategies that translate
// application-level values (reals, booleans, bit arrays, raw field
// elements) into and out of field arrays.
package encoding

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/markkurossi/cicada/field"
)

// ErrEncodingOverflow is returned when a real value's fixed-point
// representation would not fit in the field's signed range, or when
// an Identity input is not already in [0, p).
var ErrEncodingOverflow = errors.New("encoding: value out of range")

// ErrEncodingDomain is returned when an input to a bit-domain encoding
// contains values other than {0, 1}.
var ErrEncodingDomain = errors.New("encoding: value not in {0,1}")

// ErrEncodingFieldMismatch is returned when decode is called with a
// field different from the one the array was encoded under.
var ErrEncodingFieldMismatch = errors.New("encoding: field mismatch")

// Encoding translates a slice of application values to and from a
// field.Array relative to a field.Field. Implementations are
// stateless and safe for concurrent use.
type Encoding interface {
	// Encode maps values into a field array shaped [len(values)].
	Encode(f *field.Field, values []*big.Int) (*field.Array, error)
	// Decode maps a field array back to application values.
	Decode(f *field.Field, arr *field.Array) ([]*big.Int, error)
}

// Identity asserts that input values are already valid field
// elements and copies them through unchanged.
type Identity struct{}

// Encode implements Encoding.
func (Identity) Encode(f *field.Field, values []*big.Int) (*field.Array, error) {
	for _, v := range values {
		if v.Sign() < 0 || v.Cmp(f.Order()) >= 0 {
			return nil, ErrEncodingOverflow
		}
	}
	return field.FromBigInts(f, values), nil
}

// Decode implements Encoding.
func (Identity) Decode(f *field.Field, arr *field.Array) ([]*big.Int, error) {
	if !arr.Field().Equal(f) {
		return nil, ErrEncodingFieldMismatch
	}
	out := make([]*big.Int, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		out[i] = new(big.Int).Set(arr.At(i))
	}
	return out, nil
}

// Bits encodes arrays whose entries are restricted to {0,1}; rejects
// any other input.
type Bits struct{}

// Encode implements Encoding.
func (Bits) Encode(f *field.Field, values []*big.Int) (*field.Array, error) {
	for _, v := range values {
		if v.Sign() != 0 && v.Cmp(big.NewInt(1)) != 0 {
			return nil, ErrEncodingDomain
		}
	}
	return field.FromBigInts(f, values), nil
}

// Decode implements Encoding.
func (Bits) Decode(f *field.Field, arr *field.Array) ([]*big.Int, error) {
	if !arr.Field().Equal(f) {
		return nil, ErrEncodingFieldMismatch
	}
	out := make([]*big.Int, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		v := arr.At(i)
		if v.Sign() != 0 && v.Cmp(big.NewInt(1)) != 0 {
			return nil, ErrEncodingDomain
		}
		out[i] = new(big.Int).Set(v)
	}
	return out, nil
}

// Boolean interprets any nonzero input as true (encoded as 1); decode
// yields {0,1} values representing false/true.
type Boolean struct{}

// Encode implements Encoding.
func (Boolean) Encode(f *field.Field, values []*big.Int) (*field.Array, error) {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		if v.Sign() != 0 {
			out[i] = big.NewInt(1)
		} else {
			out[i] = big.NewInt(0)
		}
	}
	return field.FromBigInts(f, out), nil
}

// Decode implements Encoding.
func (Boolean) Decode(f *field.Field, arr *field.Array) ([]*big.Int, error) {
	if !arr.Field().Equal(f) {
		return nil, ErrEncodingFieldMismatch
	}
	out := make([]*big.Int, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if arr.At(i).Sign() != 0 {
			out[i] = big.NewInt(1)
		} else {
			out[i] = big.NewInt(0)
		}
	}
	return out, nil
}

// FixedPoint encodes real numbers (represented as *big.Rat-free
// float64 for application convenience) as x*2^precision truncated to
// an integer, mapped into [0,p) with the top half-line representing
// negative values.
type FixedPoint struct {
	Precision uint
}

// scale returns 2^precision.
func (fp FixedPoint) scale() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), fp.Precision)
}

// EncodeFloat encodes a single float64 value.
func (fp FixedPoint) EncodeFloat(f *field.Field, x float64) (*big.Int, error) {
	scaled := new(big.Float).Mul(big.NewFloat(x), new(big.Float).SetInt(fp.scale()))
	i, _ := scaled.Int(nil)

	half := f.Half()
	neg := new(big.Int).Neg(half)
	if i.Cmp(half) >= 0 || i.Cmp(neg) < 0 {
		return nil, ErrEncodingOverflow
	}
	return f.Reduce(i), nil
}

// DecodeFloat decodes a single field element back to a float64.
func (fp FixedPoint) DecodeFloat(f *field.Field, v *big.Int) float64 {
	half := f.Half()
	signed := new(big.Int).Set(v)
	if signed.Cmp(half) >= 0 {
		signed.Sub(signed, f.Order())
	}
	num := new(big.Float).SetInt(signed)
	den := new(big.Float).SetInt(fp.scale())
	out, _ := new(big.Float).Quo(num, den).Float64()
	return out
}

// EncodeFloats encodes a slice of float64 application values.
func (fp FixedPoint) EncodeFloats(f *field.Field, values []float64) (*field.Array, error) {
	data := make([]*big.Int, len(values))
	for i, x := range values {
		v, err := fp.EncodeFloat(f, x)
		if err != nil {
			return nil, err
		}
		data[i] = v
	}
	return field.FromBigInts(f, data), nil
}

// DecodeFloats decodes a field array into float64 application values.
func (fp FixedPoint) DecodeFloats(f *field.Field, arr *field.Array) ([]float64, error) {
	if !arr.Field().Equal(f) {
		return nil, ErrEncodingFieldMismatch
	}
	out := make([]float64, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		out[i] = fp.DecodeFloat(f, arr.At(i))
	}
	return out, nil
}

// Encode implements Encoding over *big.Int inputs that are already
// pre-scaled integers (rarely used directly; prefer EncodeFloats).
func (fp FixedPoint) Encode(f *field.Field, values []*big.Int) (*field.Array, error) {
	half := f.Half()
	neg := new(big.Int).Neg(half)
	for _, v := range values {
		if v.Cmp(half) >= 0 || v.Cmp(neg) < 0 {
			return nil, ErrEncodingOverflow
		}
	}
	return field.FromBigInts(f, values), nil
}

// Decode implements Encoding, returning signed pre-scaled integers.
func (fp FixedPoint) Decode(f *field.Field, arr *field.Array) ([]*big.Int, error) {
	if !arr.Field().Equal(f) {
		return nil, ErrEncodingFieldMismatch
	}
	half := f.Half()
	out := make([]*big.Int, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		v := new(big.Int).Set(arr.At(i))
		if v.Cmp(half) >= 0 {
			v.Sub(v, f.Order())
		}
		out[i] = v
	}
	return out, nil
}
