// Package bn254 wraps the gnark-crypto BN254 G1 group as an ecc.Point.
package bn254

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/confidential-ballot/crypto/ecc"
)

// CurveType is the identifier for the BN254 curve implementation
const CurveType = "bn254"

var generator bn254.G1Affine

func init() {
	_, _, generator, _ = bn254.Generators()
}

// G1 is the affine representation of a G1 group element.
type G1 struct {
	inner bn254.G1Affine
}

var _ ecc.Point = (*G1)(nil)

// New returns the identity element.
func New() *G1 {
	return &G1{}
}

// Generator returns the base point of the group.
func Generator() *G1 {
	return &G1{inner: generator}
}

func (g *G1) New() ecc.Point {
	return &G1{}
}

func (g *G1) Order() *big.Int {
	return fr.Modulus()
}

func (g *G1) Add(a, b ecc.Point) {
	var tmp bn254.G1Affine
	tmp.Add(&a.(*G1).inner, &b.(*G1).inner)
	g.inner = tmp
}

func (g *G1) Neg(a ecc.Point) {
	g.inner.Neg(&a.(*G1).inner)
}

func (g *G1) ScalarMult(a ecc.Point, scalar *big.Int) {
	var tmp bn254.G1Affine
	tmp.ScalarMultiplication(&a.(*G1).inner, scalar)
	g.inner = tmp
}

func (g *G1) ScalarBaseMult(scalar *big.Int) {
	g.inner.ScalarMultiplicationBase(scalar)
}

func (g *G1) Set(a ecc.Point) {
	g.inner = a.(*G1).inner
}

func (g *G1) SetZero() {
	g.inner.X.SetZero()
	g.inner.Y.SetZero()
}

func (g *G1) SetGenerator() {
	g.inner = generator
}

func (g *G1) IsZero() bool {
	return g.inner.IsInfinity()
}

func (g *G1) Equal(a ecc.Point) bool {
	return g.inner.Equal(&a.(*G1).inner)
}

func (g *G1) Marshal() []byte {
	b := g.inner.Bytes()
	return b[:]
}

func (g *G1) Unmarshal(buf []byte) error {
	if _, err := g.inner.SetBytes(buf); err != nil {
		return fmt.Errorf("invalid bn254 point: %w", err)
	}
	return nil
}

// MarshalJSON encodes the compressed point as a 0x prefixed hex string.
func (g *G1) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(g.Marshal()))
}

func (g *G1) UnmarshalJSON(buf []byte) error {
	var s string
	if err := json.Unmarshal(buf, &s); err != nil {
		return err
	}
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	return g.Unmarshal(b)
}

func (g *G1) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(g.Marshal())
}

func (g *G1) UnmarshalCBOR(buf []byte) error {
	var b []byte
	if err := cbor.Unmarshal(buf, &b); err != nil {
		return err
	}
	return g.Unmarshal(b)
}

func (g *G1) String() string {
	return fmt.Sprintf("%x", g.Marshal())
}

// Point returns the affine coordinates.
func (g *G1) Point() (*big.Int, *big.Int) {
	return g.inner.X.BigInt(new(big.Int)), g.inner.Y.BigInt(new(big.Int))
}

func (g *G1) Type() string {
	return CurveType
}
