package fhe

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-ballot/crypto/ecc"
	"github.com/vocdoni/confidential-ballot/crypto/ecc/bn254"
	"github.com/vocdoni/confidential-ballot/crypto/elgamal"
	"github.com/vocdoni/confidential-ballot/types"
)

// maxInputs is bounded by the one byte handle count of the input proof.
const maxInputs = 255

// NetworkKey is the public encryption key published by the relayer.
type NetworkKey struct {
	Curve     string         `json:"curve"`
	PublicKey types.HexBytes `json:"publicKey"`
	ChainID   uint64         `json:"chainId"`
	Verifier  common.Address `json:"verifier"`
}

// Point decodes the public key.
func (k *NetworkKey) Point() (ecc.Point, error) {
	if k.Curve != bn254.CurveType {
		return nil, fmt.Errorf("unsupported curve %q", k.Curve)
	}
	p := bn254.New()
	if err := p.Unmarshal(k.PublicKey); err != nil {
		return nil, err
	}
	return p, nil
}

// CiphertextInput is one encrypted value with its proof of knowledge.
type CiphertextInput struct {
	Type       Type           `json:"type"`
	Ciphertext types.HexBytes `json:"ciphertext"`
	Proof      types.HexBytes `json:"proof"`
}

// InputRequest asks the relayer to accept a set of ciphertexts for a
// (contract, submitter) binding.
type InputRequest struct {
	Contract  common.Address    `json:"contract"`
	Submitter common.Address    `json:"submitter"`
	Inputs    []CiphertextInput `json:"inputs"`
}

// EncryptedInput is the relayer's answer: one handle per ciphertext and an
// input proof that the ledger verifies on submission.
type EncryptedInput struct {
	Handles    []types.Handle `json:"handles"`
	InputProof types.HexBytes `json:"inputProof"`
}

// Relayer accepts encrypted inputs and attests their binding.
type Relayer interface {
	NetworkKey(ctx context.Context) (*NetworkKey, error)
	VerifyInput(ctx context.Context, req *InputRequest) (*EncryptedInput, error)
}

// proofContext is the binding hashed into each proof of knowledge.
func proofContext(contract, submitter common.Address, chainID uint64, index uint8, t Type) []byte {
	ctx := append(contract.Bytes(), submitter.Bytes()...)
	ctx = binary.BigEndian.AppendUint64(ctx, chainID)
	return append(ctx, index, byte(t))
}

type typedValue struct {
	t Type
	v uint64
}

// InputBuilder collects plaintext values bound to a contract and submitter
// and encrypts them locally with the network key.
type InputBuilder struct {
	relayer   Relayer
	contract  common.Address
	submitter common.Address
	values    []typedValue
	err       error
}

// NewInput starts a new encrypted input bound to (contract, submitter).
func NewInput(relayer Relayer, contract, submitter common.Address) *InputBuilder {
	return &InputBuilder{relayer: relayer, contract: contract, submitter: submitter}
}

func (b *InputBuilder) add(t Type, v uint64) *InputBuilder {
	if b.err != nil {
		return b
	}
	if v > t.Max() {
		b.err = fmt.Errorf("%w: %d does not fit in %s", ErrEncoding, v, t)
		return b
	}
	if len(b.values) == maxInputs {
		b.err = fmt.Errorf("%w: more than %d values", ErrEncoding, maxInputs)
		return b
	}
	b.values = append(b.values, typedValue{t: t, v: v})
	return b
}

func (b *InputBuilder) AddBool(v bool) *InputBuilder {
	if v {
		return b.add(TypeBool, 1)
	}
	return b.add(TypeBool, 0)
}

func (b *InputBuilder) Add8(v uint64) *InputBuilder  { return b.add(TypeUint8, v) }
func (b *InputBuilder) Add16(v uint64) *InputBuilder { return b.add(TypeUint16, v) }
func (b *InputBuilder) Add32(v uint64) *InputBuilder { return b.add(TypeUint32, v) }

// Encrypt encrypts the collected values and has the relayer attest them.
func (b *InputBuilder) Encrypt(ctx context.Context) (*EncryptedInput, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.values) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrEncoding)
	}
	nk, err := b.relayer.NetworkKey(ctx)
	if err != nil {
		return nil, err
	}
	pub, err := nk.Point()
	if err != nil {
		return nil, fmt.Errorf("invalid network key: %w", err)
	}
	req := &InputRequest{Contract: b.contract, Submitter: b.submitter}
	for i, tv := range b.values {
		ct, k, err := elgamal.Encrypt(pub, new(big.Int).SetUint64(tv.v))
		if err != nil {
			return nil, err
		}
		pctx := proofContext(b.contract, b.submitter, nk.ChainID, uint8(i), tv.t)
		proof, err := elgamal.ProveKnowledge(pub, ct, k, pctx)
		if err != nil {
			return nil, err
		}
		req.Inputs = append(req.Inputs, CiphertextInput{
			Type:       tv.t,
			Ciphertext: ct.Marshal(),
			Proof:      proof.Marshal(),
		})
	}
	return b.relayer.VerifyInput(ctx, req)
}
