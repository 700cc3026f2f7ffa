// Package dbtest holds the conformance tests every db.Database backend runs.
package dbtest

import (
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/prefixeddb"
)

func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)
	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// not visible outside the tx before commit
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	wTx = database.WriteTx()
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	_, err = wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	for i := range 20 {
		c.Assert(wTx.Set(fmt.Appendf(nil, "b/%02d", i), fmt.Appendf(nil, "v%d", i)), qt.IsNil)
	}
	c.Assert(wTx.Set([]byte("a/0"), []byte("x")), qt.IsNil)
	c.Assert(wTx.Set([]byte("c/0"), []byte("y")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	var keys []string
	err := database.Iterate([]byte("b/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.HasLen, 20)
	c.Assert(keys[0], qt.Equals, "b/00")
	c.Assert(keys[19], qt.Equals, "b/19")

	// early stop
	count := 0
	err = database.Iterate([]byte("b/"), func(k, v []byte) bool {
		count++
		return count < 5
	})
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 5)

	// iteration inside a tx sees pending writes and deletes
	wTx = database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Set([]byte("b/99"), []byte("new")), qt.IsNil)
	c.Assert(wTx.Delete([]byte("b/00")), qt.IsNil)
	keys = keys[:0]
	err = wTx.Iterate([]byte("b/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.HasLen, 20)
	c.Assert(keys[0], qt.Equals, "b/01")
	c.Assert(keys[19], qt.Equals, "b/99")
}

// TestIterateFrom checks db.IterateFrom over the database, a prefixed view
// of it and a write transaction.
func TestIterateFrom(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	for i := range 20 {
		c.Assert(wTx.Set(fmt.Appendf(nil, "e/%02d", i), fmt.Appendf(nil, "v%d", i)), qt.IsNil)
	}
	c.Assert(wTx.Set([]byte("f/00"), []byte("x")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	collect := func(r db.Reader, prefix, start []byte, max int) []string {
		var keys []string
		err := db.IterateFrom(r, prefix, start, func(k, _ []byte) bool {
			keys = append(keys, string(k))
			return max <= 0 || len(keys) < max
		})
		c.Assert(err, qt.IsNil)
		return keys
	}

	keys := collect(database, []byte("e/"), []byte("e/15"), 0)
	c.Assert(keys, qt.DeepEquals, []string{"e/15", "e/16", "e/17", "e/18", "e/19"})
	c.Assert(collect(database, []byte("e/"), []byte("e/07"), 2), qt.DeepEquals, []string{"e/07", "e/08"})
	// a start below the prefix walks the whole prefix
	c.Assert(collect(database, []byte("e/"), []byte("a"), 0), qt.HasLen, 20)
	// a start past the prefix yields nothing
	c.Assert(collect(database, []byte("e/"), []byte("e/99"), 0), qt.HasLen, 0)

	view := prefixeddb.NewPrefixedReader(database, []byte("e/"))
	c.Assert(collect(view, nil, []byte("18"), 0), qt.DeepEquals, []string{"18", "19"})

	rTx := database.WriteTx()
	defer rTx.Discard()
	c.Assert(collect(rTx, []byte("e/"), []byte("e/18"), 0), qt.DeepEquals, []string{"e/18", "e/19"})
}

func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("a"), []byte("a")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	tx1 := database.WriteTx()
	defer tx1.Discard()
	c.Assert(tx1.Set([]byte("b"), []byte("b")), qt.IsNil)

	tx2 := database.WriteTx()
	defer tx2.Discard()
	c.Assert(tx2.Set([]byte("c"), []byte("c")), qt.IsNil)

	c.Assert(tx1.Apply(tx2), qt.IsNil)
	c.Assert(tx1.Commit(), qt.IsNil)

	for _, k := range []string{"a", "b", "c"} {
		v, err := database.Get([]byte(k))
		c.Assert(err, qt.IsNil)
		c.Assert(string(v), qt.Equals, k)
	}
}

func TestWriteTxApplyPrefixed(t *testing.T, database, prefixed db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	defer tx.Discard()
	c.Assert(tx.Set([]byte("plain"), []byte("1")), qt.IsNil)

	ptx := prefixed.WriteTx()
	defer ptx.Discard()
	c.Assert(ptx.Set([]byte("inner"), []byte("2")), qt.IsNil)

	c.Assert(tx.Apply(ptx), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	v, err := prefixed.Get([]byte("inner"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("2"))
	v, err = database.Get([]byte("plain"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("1"))
	_, err = prefixed.Get([]byte("plain"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestConcurrentWriteTx runs many read-modify-write transactions on the same
// key and checks that no increment is lost. Only backends that detect
// conflicts can pass it.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)
	key := []byte("counter")

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				tx := database.WriteTx()
				v, err := tx.Get(key)
				n := 0
				if err == nil {
					n = int(v[0])
				}
				if err := tx.Set(key, []byte{byte(n + 1)}); err != nil {
					tx.Discard()
					t.Error(err)
					return
				}
				err = tx.Commit()
				tx.Discard()
				if err == db.ErrConflict {
					continue
				}
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				committed++
				mu.Unlock()
				return
			}
		}()
	}
	wg.Wait()

	v, err := database.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(int(v[0]), qt.Equals, committed)
	c.Assert(committed, qt.Equals, 20)
}
