// Package ethereum provides Ethereum flavoured ECDSA signatures over
// secp256k1: messages are hashed with the "Ethereum Signed Message" prefix
// and signers are identified by the address recovered from the signature.
package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-ballot/types"
)

const (
	// SignatureLength is the size of an ECDSA signature in bytes
	SignatureLength = ethcrypto.SignatureLength
	// SignatureMinLength is the size of a signature without recovery byte
	SignatureMinLength = SignatureLength - 1
	// SigningPrefix is the prefix added when hashing Ethereum messages
	SigningPrefix = "\u0019Ethereum Signed Message:\n"
	// HashLength is the size of a keccak256 hash
	HashLength = 32
)

// ECDSASignature is an Ethereum ECDSA signature. The recovery id is kept in
// its 0-3 form.
type ECDSASignature struct {
	R        *big.Int `json:"r"`
	S        *big.Int `json:"s"`
	recovery byte
}

// New decodes a raw R ‖ S ‖ V signature. V may use the 27/28 convention.
func New(signature []byte) (*ECDSASignature, error) {
	if len(signature) < SignatureMinLength {
		return nil, fmt.Errorf("signature length is less than %d", SignatureMinLength)
	}
	sig := new(ECDSASignature).SetBytes(signature)
	if sig == nil {
		return nil, fmt.Errorf("wrong signature bytes")
	}
	return sig, nil
}

// HexToSignature decodes a hex encoded signature.
func HexToSignature(hexSignature string) (*ECDSASignature, error) {
	b, err := types.HexStringToHexBytes(hexSignature)
	if err != nil {
		return nil, err
	}
	return New(b)
}

// Valid reports whether both R and S are set.
func (sig *ECDSASignature) Valid() bool {
	return sig != nil && sig.R != nil && sig.S != nil
}

// Bytes returns the 65 byte R ‖ S ‖ V encoding, with V in 0-3 as expected
// by ethcrypto.SigToPub.
func (sig *ECDSASignature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	sig.R.FillBytes(out[:32])
	sig.S.FillBytes(out[32:64])
	out[64] = sig.recovery
	return out
}

// SetBytes sets the signature from its raw encoding, returning nil if the
// encoding is invalid.
func (sig *ECDSASignature) SetBytes(signature []byte) *ECDSASignature {
	if len(signature) < SignatureMinLength {
		return nil
	}
	sig.R = new(big.Int).SetBytes(signature[:32])
	sig.S = new(big.Int).SetBytes(signature[32:64])
	sig.recovery = 0
	if len(signature) == SignatureLength {
		v := signature[64]
		if v >= 27 {
			v -= 27
		}
		if v > 3 {
			return nil
		}
		sig.recovery = v
	}
	return sig
}

// Verify checks that sig signs msg and was produced by expectedAddress.
func (sig *ECDSASignature) Verify(msg []byte, expectedAddress common.Address) bool {
	addr, err := AddrFromSignature(msg, sig)
	return err == nil && addr == expectedAddress
}

func (sig *ECDSASignature) String() string {
	return fmt.Sprintf("R: %s, S: %s, Recovery: %d", sig.R, sig.S, sig.recovery)
}

// AddrFromSignature recovers the address that signed msg.
func AddrFromSignature(msg []byte, sig *ECDSASignature) (common.Address, error) {
	if !sig.Valid() {
		return common.Address{}, fmt.Errorf("signature is nil")
	}
	pubKey, err := ethcrypto.SigToPub(HashMessage(msg), sig.Bytes())
	if err != nil {
		return common.Address{}, fmt.Errorf("sigToPub %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}
