// Package elgamal implements exponential ElGamal over an ecc.Point group.
// Messages are encoded as m·G, so decryption solves a bounded discrete log
// and is only practical for small plaintexts such as 32 bit integers.
package elgamal

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/vocdoni/confidential-ballot/crypto"
	"github.com/vocdoni/confidential-ballot/crypto/ecc"
)

// Ciphertext is an ElGamal pair (C1, C2) = (k·G, m·G + k·P).
type Ciphertext struct {
	C1 ecc.Point
	C2 ecc.Point
}

// Marshal returns C1 ‖ C2 in compressed form.
func (ct *Ciphertext) Marshal() []byte {
	return append(ct.C1.Marshal(), ct.C2.Marshal()...)
}

// Unmarshal decodes a ciphertext produced by Marshal for the given curve.
func (ct *Ciphertext) Unmarshal(curve ecc.Point, buf []byte) error {
	size := len(curve.Marshal())
	if len(buf) != 2*size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidCiphertext, len(buf), 2*size)
	}
	c1, c2 := curve.New(), curve.New()
	if err := c1.Unmarshal(buf[:size]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if err := c2.Unmarshal(buf[size:]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	ct.C1, ct.C2 = c1, c2
	return nil
}

// GenerateKey generates a new public/private ElGamal encryption key pair.
func GenerateKey(curve ecc.Point) (publicKey ecc.Point, privateKey *big.Int, err error) {
	d, err := crypto.RandomScalar(curve.Order())
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(curve, d), d, nil
}

// PublicKey derives d·G.
func PublicKey(curve ecc.Point, privateKey *big.Int) ecc.Point {
	p := curve.New()
	p.ScalarBaseMult(privateKey)
	return p
}

// Encrypt encrypts msg under publicKey with fresh randomness and returns the
// ciphertext together with the randomness k, needed to prove knowledge of it.
func Encrypt(publicKey ecc.Point, msg *big.Int) (*Ciphertext, *big.Int, error) {
	k, err := crypto.RandomScalar(publicKey.Order())
	if err != nil {
		return nil, nil, err
	}
	return EncryptWithK(publicKey, msg, k), k, nil
}

// EncryptWithK encrypts msg with the given randomness k.
func EncryptWithK(publicKey ecc.Point, msg, k *big.Int) *Ciphertext {
	m := new(big.Int).Mod(msg, publicKey.Order())
	c1 := publicKey.New()
	c1.ScalarBaseMult(k)
	s := publicKey.New()
	s.ScalarMult(publicKey, k)
	mG := publicKey.New()
	mG.ScalarBaseMult(m)
	c2 := publicKey.New()
	c2.Add(mG, s)
	return &Ciphertext{C1: c1, C2: c2}
}

// Decrypt recovers m from ct, searching the discrete log in [0, maxMessage].
func Decrypt(privateKey *big.Int, ct *Ciphertext, maxMessage uint64) (*big.Int, error) {
	if privateKey == nil || privateKey.Sign() <= 0 {
		return nil, fmt.Errorf("empty or negative private key")
	}
	if maxMessage == 0 {
		return nil, fmt.Errorf("maxMessage == 0")
	}
	// M = C2 - d·C1
	m := ct.C2.New()
	m.ScalarMult(ct.C1, privateKey)
	m.Neg(m)
	m.Add(m, ct.C2)
	return BabyStepGiantStep(m, maxMessage)
}

type babySteps struct {
	once  sync.Once
	m     uint64
	table map[string]uint64
	step  ecc.Point // -m·G
}

// tables caches the baby step table per curve type and bound. Building the
// 2^16 entries for 32 bit messages is the expensive part of decryption.
var tables sync.Map

func stepsFor(curve ecc.Point, max uint64) *babySteps {
	m := new(big.Int).Sqrt(new(big.Int).SetUint64(max))
	if new(big.Int).Mul(m, m).Cmp(new(big.Int).SetUint64(max)) < 0 {
		m.Add(m, big.NewInt(1))
	}
	key := fmt.Sprintf("%s/%d", curve.Type(), m.Uint64())
	v, _ := tables.LoadOrStore(key, &babySteps{m: m.Uint64()})
	bs := v.(*babySteps)
	bs.once.Do(func() {
		g := curve.New()
		g.SetGenerator()
		bs.table = make(map[string]uint64, bs.m)
		acc := curve.New()
		for j := uint64(0); j < bs.m; j++ {
			bs.table[string(acc.Marshal())] = j
			acc.Add(acc, g)
		}
		bs.step = curve.New()
		bs.step.ScalarMult(g, new(big.Int).SetUint64(bs.m))
		bs.step.Neg(bs.step)
	})
	return bs
}

// BabyStepGiantStep finds x in [0, max] such that beta = x·G.
func BabyStepGiantStep(beta ecc.Point, max uint64) (*big.Int, error) {
	bs := stepsFor(beta, max)
	giant := beta.New()
	giant.Set(beta)
	for i := uint64(0); i <= bs.m; i++ {
		if j, ok := bs.table[string(giant.Marshal())]; ok {
			x := i*bs.m + j
			if x <= max {
				return new(big.Int).SetUint64(x), nil
			}
		}
		giant.Add(giant, bs.step)
	}
	return nil, ErrOutOfRange
}
