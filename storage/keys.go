package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-ballot/types"
)

// CategoryID is the fixed size identifier of a category key.
func CategoryID(category string) common.Hash {
	return ethcrypto.Keccak256Hash([]byte(category))
}

// ballotKey is participant ‖ keccak(category), so all the ballots of a
// participant share a prefix.
func ballotKey(participant common.Address, category string) []byte {
	id := CategoryID(category)
	return append(participant.Bytes(), id.Bytes()...)
}

func seqToKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

func aclKey(handle types.Handle, account common.Address) []byte {
	return append(handle.Bytes(), account.Bytes()...)
}
