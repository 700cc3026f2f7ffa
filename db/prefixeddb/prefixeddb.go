// Package prefixeddb exposes a namespace of a db.Database as if it were a
// database of its own, by prepending a fixed prefix to every key.
package prefixeddb

import (
	"bytes"

	"github.com/vocdoni/confidential-ballot/db"
)

func prefixed(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// PrefixedReader wraps a db.Reader.
type PrefixedReader struct {
	prefix []byte
	reader db.Reader
}

var (
	_ db.Reader = (*PrefixedReader)(nil)
	_ db.Seeker = (*PrefixedReader)(nil)
)

func NewPrefixedReader(reader db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{prefix: bytes.Clone(prefix), reader: reader}
}

func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(prefixed(r.prefix, key))
}

func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(r.reader, r.prefix, prefix, callback)
}

// IterateFrom implements db.Seeker, seeking in the wrapped reader when it
// supports it.
func (r *PrefixedReader) IterateFrom(prefix, start []byte, callback func(key, value []byte) bool) error {
	return iterateFrom(r.reader, r.prefix, prefix, start, callback)
}

func iterateFrom(reader db.Reader, base, prefix, start []byte, callback func(key, value []byte) bool) error {
	return db.IterateFrom(reader, prefixed(base, prefix), prefixed(base, start), func(key, value []byte) bool {
		return callback(key[len(base):], value)
	})
}

func iterate(reader db.Reader, base, prefix []byte, callback func(key, value []byte) bool) error {
	return reader.Iterate(prefixed(base, prefix), func(key, value []byte) bool {
		return callback(key[len(base):], value)
	})
}

// PrefixedDatabase wraps a db.Database.
type PrefixedDatabase struct {
	prefix []byte
	db     db.Database
}

var _ db.Database = (*PrefixedDatabase)(nil)

func NewPrefixedDatabase(database db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{prefix: bytes.Clone(prefix), db: database}
}

// Close does nothing; the parent database owns the resources.
func (d *PrefixedDatabase) Close() error {
	return nil
}

func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}

func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(prefixed(d.prefix, key))
}

func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(d.db, d.prefix, prefix, callback)
}

// IterateFrom implements db.Seeker.
func (d *PrefixedDatabase) IterateFrom(prefix, start []byte, callback func(key, value []byte) bool) error {
	return iterateFrom(d.db, d.prefix, prefix, start, callback)
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// PrefixedWriteTx wraps a db.WriteTx.
type PrefixedWriteTx struct {
	prefix []byte
	tx     db.WriteTx
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{prefix: bytes.Clone(prefix), tx: tx}
}

func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(prefixed(t.prefix, key))
}

func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(t.tx, t.prefix, prefix, callback)
}

func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(prefixed(t.prefix, key), value)
}

func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(prefixed(t.prefix, key))
}

// Apply merges other into the underlying transaction. Prefixes of other
// are kept as they are, so other must be a PrefixedWriteTx over the same
// parent or a transaction of the parent itself.
func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	return db.UnwrapWriteTx(t).Apply(db.UnwrapWriteTx(other))
}

func (t *PrefixedWriteTx) Unwrap() db.WriteTx {
	return t.tx
}

func (t *PrefixedWriteTx) Commit() error {
	return t.tx.Commit()
}

func (t *PrefixedWriteTx) Discard() {
	t.tx.Discard()
}
