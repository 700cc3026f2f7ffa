package fhe

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-ballot/types"
)

// Type is the plaintext type of an encrypted value.
type Type uint8

const (
	TypeBool   Type = 0
	TypeUint8  Type = 2
	TypeUint16 Type = 3
	TypeUint32 Type = 4
)

// HandleVersion is stored in the last byte of every handle.
const HandleVersion = 0

// Bits returns the bit width of the type, zero if unknown.
func (t Type) Bits() int {
	switch t {
	case TypeBool:
		return 1
	case TypeUint8:
		return 8
	case TypeUint16:
		return 16
	case TypeUint32:
		return 32
	}
	return 0
}

// Max returns the largest plaintext of the type.
func (t Type) Max() uint64 {
	return 1<<t.Bits() - 1
}

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "ebool"
	case TypeUint8:
		return "euint8"
	case TypeUint16:
		return "euint16"
	case TypeUint32:
		return "euint32"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// ComputeHandle derives the handle of the index-th ciphertext of an input.
// Layout: hash[0:21] ‖ index ‖ chainID (8 bytes) ‖ type ‖ version, where hash
// commits to the ciphertext and its (contract, submitter, chain) binding.
func ComputeHandle(ciphertext []byte, index uint8, t Type, contract, submitter common.Address, chainID uint64) types.Handle {
	chain := binary.BigEndian.AppendUint64(nil, chainID)
	digest := ethcrypto.Keccak256(ciphertext, contract.Bytes(), submitter.Bytes(), chain, []byte{index})
	var h types.Handle
	copy(h[:21], digest[:21])
	h[21] = index
	copy(h[22:30], chain)
	h[30] = byte(t)
	h[31] = HandleVersion
	return h
}

// HandleType returns the plaintext type encoded in the handle.
func HandleType(h types.Handle) Type {
	return Type(h[30])
}

// HandleChainID returns the chain id encoded in the handle.
func HandleChainID(h types.Handle) uint64 {
	return binary.BigEndian.Uint64(h[22:30])
}
