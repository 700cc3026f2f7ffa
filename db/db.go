// Package db defines the key-value database abstraction shared by all
// storage backends of the ballot node.
package db

import (
	"bytes"
	"errors"
	"io"
)

const (
	TypePebble  = "pebble"
	TypeLevelDB = "leveldb"
	TypeMongo   = "mongodb"
	TypeInMem   = "inmem"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when a key read by the transaction
	// was modified concurrently. Not every backend detects conflicts.
	ErrConflict = errors.New("txn conflict")
	// ErrTxClosed is returned when using a committed or discarded transaction.
	ErrTxClosed = errors.New("txn already committed or discarded")
)

// Options configures a database backend. Path is a directory for embedded
// engines and a database name for remote ones.
type Options struct {
	Path string
}

// Reader is the read-only view of a database or transaction.
type Reader interface {
	// Get returns a copy of the value for key or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key with the given prefix in
	// lexicographic order until callback returns false. Key and value are
	// only valid during the callback.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a set of writes that are applied atomically on Commit. Reads
// observe the pending writes of the same transaction.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// Apply copies all the pending writes of other into this transaction.
	Apply(other WriteTx) error
	Commit() error
	// Discard releases the transaction. It is safe to call after Commit.
	Discard()
}

// Database is a persistent key-value store.
type Database interface {
	io.Closer
	Reader
	WriteTx() WriteTx
	Compact() error
}

// Seeker is implemented by readers that can start an iteration at a key
// without walking the keys before it.
type Seeker interface {
	// IterateFrom is Iterate restricted to the keys >= start.
	IterateFrom(prefix, start []byte, callback func(key, value []byte) bool) error
}

// IterateFrom calls callback for every key with the given prefix that is
// >= start, in lexicographic order, until callback returns false. Readers
// that are not a Seeker are walked from the first key of the prefix.
func IterateFrom(r Reader, prefix, start []byte, callback func(key, value []byte) bool) error {
	if s, ok := r.(Seeker); ok {
		return s.IterateFrom(prefix, start, callback)
	}
	return r.Iterate(prefix, func(key, value []byte) bool {
		if bytes.Compare(key, start) < 0 {
			return true
		}
		return callback(key, value)
	})
}

// LowerBound returns the greater of prefix and start: the first key an
// iteration of prefix from start may visit.
func LowerBound(prefix, start []byte) []byte {
	if bytes.Compare(start, prefix) > 0 {
		return start
	}
	return prefix
}

// Unwrapper is implemented by transactions that decorate another WriteTx.
type Unwrapper interface {
	Unwrap() WriteTx
}

// UnwrapWriteTx returns the innermost transaction of a decorated WriteTx.
func UnwrapWriteTx(tx WriteTx) WriteTx {
	for {
		u, ok := tx.(Unwrapper)
		if !ok {
			return tx
		}
		tx = u.Unwrap()
	}
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if there is no such key.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
