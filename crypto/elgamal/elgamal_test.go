package elgamal

import (
	"math"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-ballot/crypto/ecc/bn254"
)

func TestEncryptDecrypt(t *testing.T) {
	c := qt.New(t)
	pk, sk, err := GenerateKey(bn254.New())
	c.Assert(err, qt.IsNil)

	for _, v := range []uint64{0, 1, 4, 9999, 65535, 65536, math.MaxUint32} {
		ct, _, err := Encrypt(pk, new(big.Int).SetUint64(v))
		c.Assert(err, qt.IsNil)
		got, err := Decrypt(sk, ct, math.MaxUint32)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Uint64(), qt.Equals, v, qt.Commentf("value %d", v))
	}
}

func TestDecryptOutOfRange(t *testing.T) {
	c := qt.New(t)
	pk, sk, err := GenerateKey(bn254.New())
	c.Assert(err, qt.IsNil)

	ct, _, err := Encrypt(pk, big.NewInt(5000))
	c.Assert(err, qt.IsNil)
	_, err = Decrypt(sk, ct, 1000)
	c.Assert(err, qt.ErrorIs, ErrOutOfRange)
}

func TestHomomorphicAdd(t *testing.T) {
	c := qt.New(t)
	pk, sk, err := GenerateKey(bn254.New())
	c.Assert(err, qt.IsNil)

	a, _, err := Encrypt(pk, big.NewInt(42))
	c.Assert(err, qt.IsNil)
	b, _, err := Encrypt(pk, big.NewInt(8))
	c.Assert(err, qt.IsNil)
	a.C1.Add(a.C1, b.C1)
	a.C2.Add(a.C2, b.C2)

	sum, err := Decrypt(sk, a, 1000)
	c.Assert(err, qt.IsNil)
	c.Assert(sum.Int64(), qt.Equals, int64(50))
}

func TestCiphertextEncoding(t *testing.T) {
	c := qt.New(t)
	pk, _, err := GenerateKey(bn254.New())
	c.Assert(err, qt.IsNil)
	ct, _, err := Encrypt(pk, big.NewInt(3))
	c.Assert(err, qt.IsNil)

	var decoded Ciphertext
	c.Assert(decoded.Unmarshal(bn254.New(), ct.Marshal()), qt.IsNil)
	c.Assert(decoded.C1.Equal(ct.C1), qt.IsTrue)
	c.Assert(decoded.C2.Equal(ct.C2), qt.IsTrue)

	c.Assert(decoded.Unmarshal(bn254.New(), ct.Marshal()[:40]), qt.ErrorIs, ErrInvalidCiphertext)
}

func TestKnowledgeProof(t *testing.T) {
	c := qt.New(t)
	pk, _, err := GenerateKey(bn254.New())
	c.Assert(err, qt.IsNil)
	ct, k, err := Encrypt(pk, big.NewInt(1))
	c.Assert(err, qt.IsNil)

	ctx := []byte("contract|alice")
	proof, err := ProveKnowledge(pk, ct, k, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(VerifyKnowledge(pk, ct, proof, ctx), qt.IsNil)

	c.Run("encoding", func(c *qt.C) {
		var decoded KnowledgeProof
		c.Assert(decoded.Unmarshal(bn254.New(), proof.Marshal()), qt.IsNil)
		c.Assert(VerifyKnowledge(pk, ct, &decoded, ctx), qt.IsNil)
	})

	c.Run("other context", func(c *qt.C) {
		c.Assert(VerifyKnowledge(pk, ct, proof, []byte("contract|bob")), qt.ErrorIs, ErrInvalidProof)
	})

	c.Run("other ciphertext", func(c *qt.C) {
		other, _, err := Encrypt(pk, big.NewInt(1))
		c.Assert(err, qt.IsNil)
		c.Assert(VerifyKnowledge(pk, other, proof, ctx), qt.ErrorIs, ErrInvalidProof)
	})

	c.Run("wrong randomness", func(c *qt.C) {
		bad, err := ProveKnowledge(pk, ct, big.NewInt(12345), ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(VerifyKnowledge(pk, ct, bad, ctx), qt.ErrorIs, ErrInvalidProof)
	})
}
