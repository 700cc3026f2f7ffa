// Package crypto provides small helpers shared by the ElGamal and signature
// packages.
package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// RandomScalar returns a uniformly random non-zero scalar lower than order.
func RandomScalar(order *big.Int) (*big.Int, error) {
	for {
		k, err := rand.Int(rand.Reader, order)
		if err != nil {
			return nil, fmt.Errorf("failed to sample scalar: %w", err)
		}
		if k.Sign() != 0 {
			return k, nil
		}
	}
}

// HashToScalar hashes the inputs with keccak256 and reduces the digest
// modulo order. Inputs are length prefixed so that different splits of the
// same bytes never collide.
func HashToScalar(order *big.Int, inputs ...[]byte) *big.Int {
	buf := make([]byte, 0, 64*len(inputs))
	for _, in := range inputs {
		buf = append(buf, byte(len(in)>>8), byte(len(in)))
		buf = append(buf, in...)
	}
	digest := ethcrypto.Keccak256(buf)
	return new(big.Int).Mod(new(big.Int).SetBytes(digest), order)
}

// PadTo32 left pads input with zeros to 32 bytes, keeping the last 32 bytes
// if it is longer.
func PadTo32(input []byte) []byte {
	if len(input) >= 32 {
		return input[len(input)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(input):], input)
	return out
}
