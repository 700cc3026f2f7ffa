/*
Package storage provides the persistent state of the ballot node on top of
a db.Database.

# Storage Organization

The storage uses a key-value database with prefixed namespaces:

## Ballot ledger
  - b/  : participant(20) + keccak(category)(32) → types.Ballot
  - ev/ : seq (8 bytes, big endian) → types.VoteCast
  - sc/ : keccak(category) → types.CategoryStats
  - s/  : counters ("seq", "total")

## Encryption coprocessor
  - ct/ : handle → Ciphertext
  - acl/: handle + account → allowed marker

## Node keys
  - k/  : key name → persisted key material

A ballot, its event, its ACL grants and the counters are written in a single
transaction, under the storage global lock, so the check for an existing
ballot and the write are one atomic step.
*/
package storage

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/prefixeddb"
	"github.com/vocdoni/confidential-ballot/log"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")

	// Prefixes
	ballotPrefix        = []byte("b/")
	eventPrefix         = []byte("ev/")
	categoryStatsPrefix = []byte("sc/")
	statsPrefix         = []byte("s/")
	ciphertextPrefix    = []byte("ct/")
	aclPrefix           = []byte("acl/")
	keysPrefix          = []byte("k/")

	seqKey   = []byte("seq")
	totalKey = []byte("total")
)

const cacheSize = 4096

// Storage manages the ledger, ciphertext and key artifacts.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	cache      *lru.Cache[string, any]
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{db: database, cache: cache}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Errorw(err, "failed to close storage database")
	}
}

func cacheKey(prefix, key []byte) string {
	return string(prefix) + string(key)
}

// getArtifact decodes the artifact stored under prefix+key into out.
// Returns ErrNotFound if it does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get artifact: %w", err)
	}
	return DecodeArtifact(data, out)
}

// setArtifact encodes and stores an artifact in its own transaction.
func (s *Storage) setArtifact(prefix, key []byte, a any) error {
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setInTx(wTx, prefix, key, a); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("commit artifact: %w", err)
	}
	s.cache.Remove(cacheKey(prefix, key))
	return nil
}

func setInTx(wTx db.WriteTx, prefix, key []byte, a any) error {
	data, err := EncodeArtifact(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, prefix).Set(key, data); err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	return nil
}

func getInTx(wTx db.WriteTx, prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedWriteTx(wTx, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return DecodeArtifact(data, out)
}
