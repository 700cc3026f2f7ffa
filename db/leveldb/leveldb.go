// Package leveldb implements db.Database on top of syndtr/goleveldb.
package leveldb

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vocdoni/confidential-ballot/db"
)

// LevelDB implements db.Database.
type LevelDB struct {
	db *leveldb.DB
}

var (
	_ db.Database = (*LevelDB)(nil)
	_ db.Seeker   = (*LevelDB)(nil)
)

// New opens (or creates) a leveldb database at opts.Path.
func New(opts db.Options) (*LevelDB, error) {
	ldb, err := leveldb.OpenFile(opts.Path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("cannot open leveldb: %w", err)
	}
	return &LevelDB{db: ldb}, nil
}

func (d *LevelDB) Close() error {
	return d.db.Close()
}

func (d *LevelDB) Compact() error {
	return d.db.CompactRange(util.Range{})
}

func (d *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	return value, err
}

func (d *LevelDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.iterate(util.BytesPrefix(prefix), callback)
}

// IterateFrom implements db.Seeker.
func (d *LevelDB) IterateFrom(prefix, start []byte, callback func(key, value []byte) bool) error {
	rng := util.BytesPrefix(prefix)
	rng.Start = db.LowerBound(prefix, start)
	return d.iterate(rng, callback)
}

func (d *LevelDB) iterate(rng *util.Range, callback func(key, value []byte) bool) error {
	iter := d.db.NewIterator(rng, nil)
	defer iter.Release()
	for iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (d *LevelDB) WriteTx() db.WriteTx {
	return &WriteTx{db: d, batch: new(leveldb.Batch), pending: make(map[string][]byte)}
}

// WriteTx buffers writes in a leveldb.Batch and keeps an overlay so that
// reads within the transaction observe them.
type WriteTx struct {
	db      *LevelDB
	batch   *leveldb.Batch
	pending map[string][]byte // nil value means delete
	closed  bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if v, ok := tx.pending[string(key)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(v), nil
	}
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	entries := make(map[string][]byte)
	if err := tx.db.Iterate(prefix, func(k, v []byte) bool {
		entries[string(k)] = bytes.Clone(v)
		return true
	}); err != nil {
		return err
	}
	for k, v := range tx.pending {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(entries, k)
			continue
		}
		entries[k] = v
	}
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

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.batch.Put(key, value)
	tx.pending[string(key)] = bytes.Clone(value)
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.batch.Delete(key)
	tx.pending[string(key)] = nil
	return nil
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	o, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply %T into a leveldb transaction", other)
	}
	for k, v := range o.pending {
		var err error
		if v == nil {
			err = tx.Delete([]byte(k))
		} else {
			err = tx.Set([]byte(k), v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (tx *WriteTx) Commit() error {
	if tx.closed {
		return db.ErrTxClosed
	}
	if err := tx.db.db.Write(tx.batch, &opt.WriteOptions{Sync: true}); err != nil {
		return err
	}
	tx.closed = true
	return nil
}

func (tx *WriteTx) Discard() {
	tx.batch.Reset()
	tx.pending = map[string][]byte{}
	tx.closed = true
}
