package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Handle references a ciphertext held by the encryption coprocessor. It is
// safe to publish: it carries no information about the plaintext.
type Handle = common.Hash

// EncryptedChoice is a handle together with the input proof attesting that
// it was built for a given (contract, submitter) binding.
type EncryptedChoice struct {
	Handle     Handle   `json:"handle"`
	InputProof HexBytes `json:"inputProof"`
}

// VoteTx is a request to store an encrypted choice in the ballot ledger.
// Hint is the optional public value hint; the ledger drops it unless it was
// configured to publish hints. Signature is the participant's signature over
// the vote digest computed by the ledger.
type VoteTx struct {
	Participant common.Address `json:"participant"`
	Category    string         `json:"category"`
	Handle      Handle         `json:"handle"`
	InputProof  HexBytes       `json:"inputProof"`
	Hint        *uint32        `json:"hint,omitempty"`
	Signature   HexBytes       `json:"signature"`
}

// Ballot is the persisted record for a (participant, category) key.
type Ballot struct {
	Participant common.Address `json:"participant" cbor:"0,keyasint"`
	Category    string         `json:"category" cbor:"1,keyasint"`
	Handle      Handle         `json:"handle" cbor:"2,keyasint"`
	HasVoted    bool           `json:"hasVoted" cbor:"3,keyasint"`
	Seq         uint64         `json:"seq" cbor:"4,keyasint"`
	TxHash      common.Hash    `json:"txHash" cbor:"5,keyasint"`
	Timestamp   time.Time      `json:"timestamp" cbor:"6,keyasint"`
}

// Receipt acknowledges a committed vote. Seq is the position of the write in
// the ledger's total order.
type Receipt struct {
	TxHash      common.Hash    `json:"txHash"`
	Seq         uint64         `json:"seq"`
	Participant common.Address `json:"participant"`
	Category    string         `json:"category"`
	Handle      Handle         `json:"handle"`
	Timestamp   time.Time      `json:"timestamp"`
}

// VoteCast is the notification emitted for every accepted vote.
type VoteCast struct {
	Seq         uint64         `json:"seq" cbor:"0,keyasint"`
	Participant common.Address `json:"participant" cbor:"1,keyasint"`
	Category    string         `json:"category" cbor:"2,keyasint"`
	Handle      Handle         `json:"handle" cbor:"3,keyasint"`
	Hint        *uint32        `json:"plainValueHint,omitempty" cbor:"4,keyasint,omitempty"`
	TxHash      common.Hash    `json:"txHash" cbor:"5,keyasint"`
	Timestamp   time.Time      `json:"timestamp" cbor:"6,keyasint"`
}

// CategoryStats counts the ballots stored for a category. Counts are public;
// no value is aggregated.
type CategoryStats struct {
	Category string `json:"category" cbor:"0,keyasint"`
	Ballots  uint64 `json:"ballots" cbor:"1,keyasint"`
}

// LedgerStats summarizes the ledger contents.
type LedgerStats struct {
	TotalBallots uint64          `json:"totalBallots"`
	LastSeq      uint64          `json:"lastSeq"`
	Categories   []CategoryStats `json:"categories"`
}
