package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/prefixeddb"
	"github.com/vocdoni/confidential-ballot/types"
)

// VoteTxHash identifies a vote write by its content.
func VoteTxHash(participant common.Address, category string, handle types.Handle) common.Hash {
	return ethcrypto.Keccak256Hash(participant.Bytes(), CategoryID(category).Bytes(), handle.Bytes())
}

// RecordVote stores a new ballot for (participant, category) together with
// its VoteCast event, the ACL grants for the handle and the counters. If a
// ballot already exists for the key, nothing is written and
// ErrKeyAlreadyExists is returned.
func (s *Storage) RecordVote(participant common.Address, category string, handle types.Handle,
	hint *uint32, grants ...common.Address,
) (*types.VoteCast, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()

	key := ballotKey(participant, category)
	var existing types.Ballot
	switch err := getInTx(wTx, ballotPrefix, key, &existing); {
	case err == nil:
		return nil, ErrKeyAlreadyExists
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("check ballot: %w", err)
	}

	var seq, total uint64
	if err := getInTx(wTx, statsPrefix, seqKey, &seq); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get seq: %w", err)
	}
	if err := getInTx(wTx, statsPrefix, totalKey, &total); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get total: %w", err)
	}
	seq++
	total++

	now := time.Now().UTC()
	txHash := VoteTxHash(participant, category, handle)
	ballot := &types.Ballot{
		Participant: participant,
		Category:    category,
		Handle:      handle,
		HasVoted:    true,
		Seq:         seq,
		TxHash:      txHash,
		Timestamp:   now,
	}
	event := &types.VoteCast{
		Seq:         seq,
		Participant: participant,
		Category:    category,
		Handle:      handle,
		Hint:        hint,
		TxHash:      txHash,
		Timestamp:   now,
	}

	catID := CategoryID(category).Bytes()
	catStats := types.CategoryStats{Category: category}
	if err := getInTx(wTx, categoryStatsPrefix, catID, &catStats); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get category stats: %w", err)
	}
	catStats.Ballots++

	if err := setInTx(wTx, ballotPrefix, key, ballot); err != nil {
		return nil, err
	}
	if err := setInTx(wTx, eventPrefix, seqToKey(seq), event); err != nil {
		return nil, err
	}
	aclTx := prefixeddb.NewPrefixedWriteTx(wTx, aclPrefix)
	for _, account := range grants {
		if err := aclTx.Set(aclKey(handle, account), []byte{1}); err != nil {
			return nil, fmt.Errorf("set acl: %w", err)
		}
	}
	if err := setInTx(wTx, categoryStatsPrefix, catID, &catStats); err != nil {
		return nil, err
	}
	if err := setInTx(wTx, statsPrefix, seqKey, seq); err != nil {
		return nil, err
	}
	if err := setInTx(wTx, statsPrefix, totalKey, total); err != nil {
		return nil, err
	}
	if err := wTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit vote: %w", err)
	}
	s.cache.Add(cacheKey(ballotPrefix, key), *ballot)
	return event, nil
}

// Ballot returns the ballot stored for (participant, category) or
// ErrNotFound.
func (s *Storage) Ballot(participant common.Address, category string) (*types.Ballot, error) {
	key := ballotKey(participant, category)
	if cached, ok := s.cache.Get(cacheKey(ballotPrefix, key)); ok {
		b := cached.(types.Ballot)
		return &b, nil
	}
	var b types.Ballot
	if err := s.getArtifact(ballotPrefix, key, &b); err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(ballotPrefix, key), b)
	return &b, nil
}

// ParticipantBallots returns every ballot stored for participant.
func (s *Storage) ParticipantBallots(participant common.Address) ([]types.Ballot, error) {
	var ballots []types.Ballot
	var decodeErr error
	pr := prefixeddb.NewPrefixedReader(s.db, ballotPrefix)
	if err := pr.Iterate(participant.Bytes(), func(_, v []byte) bool {
		var b types.Ballot
		if decodeErr = DecodeArtifact(v, &b); decodeErr != nil {
			return false
		}
		ballots = append(ballots, b)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate ballots: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode ballot: %w", decodeErr)
	}
	return ballots, nil
}

// Events returns up to limit events with seq >= from, in ledger order. A
// limit of zero means no limit.
func (s *Storage) Events(from uint64, limit int) ([]types.VoteCast, error) {
	var events []types.VoteCast
	var decodeErr error
	pr := prefixeddb.NewPrefixedReader(s.db, eventPrefix)
	if err := db.IterateFrom(pr, nil, seqToKey(from), func(k, v []byte) bool {
		if len(k) != 8 {
			return true
		}
		var ev types.VoteCast
		if decodeErr = DecodeArtifact(v, &ev); decodeErr != nil {
			return false
		}
		events = append(events, ev)
		return limit <= 0 || len(events) < limit
	}); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode event: %w", decodeErr)
	}
	return events, nil
}

// LastSeq returns the sequence number of the last recorded vote, zero if
// none.
func (s *Storage) LastSeq() (uint64, error) {
	var seq uint64
	if err := s.getArtifact(statsPrefix, seqKey, &seq); err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	return seq, nil
}

// Stats returns the ballot counters.
func (s *Storage) Stats() (*types.LedgerStats, error) {
	stats := &types.LedgerStats{Categories: []types.CategoryStats{}}
	if err := s.getArtifact(statsPrefix, totalKey, &stats.TotalBallots); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	var err error
	if stats.LastSeq, err = s.LastSeq(); err != nil {
		return nil, err
	}
	var decodeErr error
	if err := prefixeddb.NewPrefixedReader(s.db, categoryStatsPrefix).Iterate(nil, func(_, v []byte) bool {
		var cs types.CategoryStats
		if decodeErr = DecodeArtifact(v, &cs); decodeErr != nil {
			return false
		}
		stats.Categories = append(stats.Categories, cs)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return stats, nil
}
