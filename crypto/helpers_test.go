package crypto

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHashToScalar(t *testing.T) {
	c := qt.New(t)
	order := big.NewInt(1_000_003)

	a := HashToScalar(order, []byte("ab"), []byte("c"))
	b := HashToScalar(order, []byte("a"), []byte("bc"))
	c.Assert(a.Cmp(b) != 0, qt.IsTrue)
	c.Assert(a.Cmp(order) < 0, qt.IsTrue)
	c.Assert(HashToScalar(order, []byte("ab"), []byte("c")).Cmp(a), qt.Equals, 0)
}

func TestRandomScalar(t *testing.T) {
	c := qt.New(t)
	order := big.NewInt(7)
	for range 50 {
		k, err := RandomScalar(order)
		c.Assert(err, qt.IsNil)
		c.Assert(k.Sign() > 0 && k.Cmp(order) < 0, qt.IsTrue)
	}
}

func TestPadTo32(t *testing.T) {
	c := qt.New(t)
	c.Assert(PadTo32([]byte{1}), qt.HasLen, 32)
	c.Assert(PadTo32([]byte{1})[31], qt.Equals, byte(1))
	long := make([]byte, 40)
	long[39] = 9
	c.Assert(PadTo32(long)[31], qt.Equals, byte(9))
}
