package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-ballot/types"
)

// NodeInfo describes the ledger and the encryption services of the node.
type NodeInfo struct {
	ChainID uint64         `json:"chainId"`
	Ledger  common.Address `json:"ledger"`
	// Relayer is the input verifier attesting encrypted inputs.
	Relayer common.Address `json:"relayer"`
	// Authority signs user decryption responses.
	Authority   common.Address `json:"authority"`
	PublicHints bool           `json:"publicHints"`
	Version     string         `json:"version,omitempty"`
}

// HasVotedResponse is returned by the ballot endpoint.
type HasVotedResponse struct {
	Participant common.Address `json:"participant"`
	Category    string         `json:"category"`
	HasVoted    bool           `json:"hasVoted"`
}

// HandleResponse is returned by the handle endpoint.
type HandleResponse struct {
	Participant common.Address `json:"participant"`
	Category    string         `json:"category"`
	Handle      types.Handle   `json:"handle"`
}

// CategoriesResponse lists the categories a participant voted for.
type CategoriesResponse struct {
	Participant common.Address `json:"participant"`
	Categories  []string       `json:"categories"`
}

// EventsResponse is a page of VoteCast events.
type EventsResponse struct {
	Events  []types.VoteCast `json:"events"`
	LastSeq uint64           `json:"lastSeq"`
}
