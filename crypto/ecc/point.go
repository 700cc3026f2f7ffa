// Package ecc defines the group element abstraction used by the ElGamal
// scheme. Implementations live in subpackages, one per curve.
package ecc

import "math/big"

// Point is a prime order group element. Methods that take operands store
// the result in the receiver, like math/big.
type Point interface {
	// New returns a fresh identity element of the same curve.
	New() Point
	// Order returns the order of the prime subgroup.
	Order() *big.Int
	Add(a, b Point)
	Neg(a Point)
	ScalarMult(a Point, scalar *big.Int)
	ScalarBaseMult(scalar *big.Int)
	Set(a Point)
	SetZero()
	SetGenerator()
	IsZero() bool
	Equal(a Point) bool
	// Marshal returns the compressed encoding of the point.
	Marshal() []byte
	// Unmarshal decodes a compressed point and checks that it belongs to
	// the prime subgroup.
	Unmarshal(buf []byte) error
	String() string
	Type() string
}
