// Package inmemory provides an ephemeral db.Database with optimistic
// transactions. Commit fails with db.ErrConflict when any key read or
// written by the transaction changed since it was first observed.
package inmemory

import (
	"bytes"
	"slices"
	"sync"

	"github.com/vocdoni/confidential-ballot/db"
)

type entry struct {
	value   []byte
	version uint64
	deleted bool
}

// InMemoryDB implements an ephemeral in-memory db.Database.
type InMemoryDB struct {
	mu      sync.RWMutex
	data    map[string]entry
	version uint64
}

var _ db.Database = (*InMemoryDB)(nil)

// New returns a new in-memory database. Options are ignored.
func New(_ db.Options) (*InMemoryDB, error) {
	return &InMemoryDB{data: make(map[string]entry)}, nil
}

func (d *InMemoryDB) Close() error   { return nil }
func (d *InMemoryDB) Compact() error { return nil }

func (d *InMemoryDB) WriteTx() db.WriteTx {
	d.mu.RLock()
	base := d.version
	d.mu.RUnlock()
	return &WriteTx{
		db:     d,
		writes: make(map[string]*[]byte),
		reads:  make(map[string]uint64),
		base:   base,
	}
}

func (d *InMemoryDB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ent, ok := d.data[string(key)]
	if !ok || ent.deleted {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(ent.value), nil
}

func (d *InMemoryDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	entries, _ := d.snapshot(prefix)
	return iterateSorted(entries, callback)
}

// snapshot copies the live entries under prefix and their versions.
func (d *InMemoryDB) snapshot(prefix []byte) (map[string][]byte, map[string]uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entries := make(map[string][]byte)
	versions := make(map[string]uint64)
	for k, ent := range d.data {
		if ent.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		entries[k] = bytes.Clone(ent.value)
		versions[k] = ent.version
	}
	return entries, versions
}

// versionOf must be called with d.mu held.
func (d *InMemoryDB) versionOf(key string) uint64 {
	return d.data[key].version
}

// WriteTx is an optimistic transaction over an InMemoryDB.
type WriteTx struct {
	db     *InMemoryDB
	writes map[string]*[]byte // nil value means delete
	reads  map[string]uint64
	base   uint64
	closed bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) observe(key string) {
	if _, ok := tx.reads[key]; ok {
		return
	}
	tx.db.mu.RLock()
	tx.reads[key] = tx.db.versionOf(key)
	tx.db.mu.RUnlock()
}

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	k := string(key)
	if pending, ok := tx.writes[k]; ok {
		if pending == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*pending), nil
	}
	tx.observe(k)
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(k, v []byte) bool) error {
	entries, versions := tx.db.snapshot(prefix)
	for k, ver := range versions {
		if _, ok := tx.reads[k]; !ok {
			tx.reads[k] = ver
		}
	}
	for k, v := range tx.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(entries, k)
			continue
		}
		entries[k] = bytes.Clone(*v)
	}
	return iterateSorted(entries, callback)
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	k := string(key)
	tx.observe(k)
	v := bytes.Clone(value)
	tx.writes[k] = &v
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	k := string(key)
	tx.observe(k)
	tx.writes[k] = nil
	return nil
}

// Apply copies the pending writes of other. If other belongs to a different
// backend, its visible contents are copied instead.
func (tx *WriteTx) Apply(other db.WriteTx) error {
	o, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		var err error
		iterErr := other.Iterate(nil, func(k, v []byte) bool {
			err = tx.Set(k, v)
			return err == nil
		})
		if iterErr != nil {
			return iterErr
		}
		return err
	}
	for k, v := range o.writes {
		if v == nil {
			if err := tx.Delete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := tx.Set([]byte(k), *v); err != nil {
			return err
		}
	}
	return nil
}

func (tx *WriteTx) Commit() error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	for k, ver := range tx.reads {
		if ver > tx.base || tx.db.versionOf(k) != ver {
			return db.ErrConflict
		}
	}
	for k, v := range tx.writes {
		tx.db.version++
		ent := entry{version: tx.db.version}
		if v == nil {
			ent.deleted = true
		} else {
			ent.value = bytes.Clone(*v)
		}
		tx.db.data[k] = ent
	}
	tx.closed = true
	return nil
}

func (tx *WriteTx) Discard() {
	tx.writes = map[string]*[]byte{}
	tx.reads = map[string]uint64{}
	tx.closed = true
}

func iterateSorted(entries map[string][]byte, callback func(key, value []byte) bool) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k), entries[k]) {
			break
		}
	}
	return nil
}
