// -----------------------------------------------------------------------------
//  Schnorr proof of knowledge of the encryption randomness
//
//  Goal: the submitter proves it built (C1, C2) itself, i.e. it knows k with
//  C1 = k·G, without revealing k or the plaintext. The challenge also hashes
//  an opaque context (contract, submitter, chain), so a ciphertext copied
//  from someone else cannot be re-proven under another binding.
//
//  Prover:   r ← 𝔽*,  A = r·G,  e = H(G,P,C1,C2,A,ctx),  z = r + e·k
//  Verifier: z·G == A + e·C1
// -----------------------------------------------------------------------------

package elgamal

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/confidential-ballot/crypto"
	"github.com/vocdoni/confidential-ballot/crypto/ecc"
)

// KnowledgeProof is a non-interactive proof of knowledge of k in C1 = k·G.
type KnowledgeProof struct {
	A ecc.Point
	Z *big.Int
}

// Marshal returns A ‖ z, with z as a 32 byte big endian integer.
func (p *KnowledgeProof) Marshal() []byte {
	return append(p.A.Marshal(), crypto.PadTo32(p.Z.Bytes())...)
}

// Unmarshal decodes a proof produced by Marshal.
func (p *KnowledgeProof) Unmarshal(curve ecc.Point, buf []byte) error {
	size := len(curve.Marshal())
	if len(buf) != size+32 {
		return fmt.Errorf("%w: bad length %d", ErrInvalidProof, len(buf))
	}
	a := curve.New()
	if err := a.Unmarshal(buf[:size]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	p.A = a
	p.Z = new(big.Int).SetBytes(buf[size:])
	return nil
}

// ProveKnowledge builds a proof that the caller knows k for ct.
func ProveKnowledge(publicKey ecc.Point, ct *Ciphertext, k *big.Int, context []byte) (*KnowledgeProof, error) {
	order := publicKey.Order()
	r, err := crypto.RandomScalar(order)
	if err != nil {
		return nil, err
	}
	a := publicKey.New()
	a.ScalarBaseMult(r)
	e := challenge(publicKey, ct, a, context)
	z := new(big.Int).Mul(e, k)
	z.Add(z, r)
	z.Mod(z, order)
	return &KnowledgeProof{A: a, Z: z}, nil
}

// VerifyKnowledge checks a proof built by ProveKnowledge with the same
// context.
func VerifyKnowledge(publicKey ecc.Point, ct *Ciphertext, proof *KnowledgeProof, context []byte) error {
	if proof == nil || proof.A == nil || proof.Z == nil {
		return ErrInvalidProof
	}
	if proof.Z.Cmp(publicKey.Order()) >= 0 {
		return ErrInvalidProof
	}
	e := challenge(publicKey, ct, proof.A, context)

	left := publicKey.New()
	left.ScalarBaseMult(proof.Z)

	right := publicKey.New()
	right.ScalarMult(ct.C1, e)
	right.Add(right, proof.A)

	if !left.Equal(right) {
		return ErrInvalidProof
	}
	return nil
}

func challenge(publicKey ecc.Point, ct *Ciphertext, a ecc.Point, context []byte) *big.Int {
	g := publicKey.New()
	g.SetGenerator()
	return crypto.HashToScalar(publicKey.Order(),
		g.Marshal(),
		publicKey.Marshal(),
		ct.C1.Marshal(),
		ct.C2.Marshal(),
		a.Marshal(),
		context,
	)
}
