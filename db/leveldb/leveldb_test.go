package leveldb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/internal/dbtest"
	"github.com/vocdoni/confidential-ballot/db/prefixeddb"
)

func newTestDB(t *testing.T) *LevelDB {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestWriteTx(t *testing.T) {
	dbtest.TestWriteTx(t, newTestDB(t))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, newTestDB(t))
}

func TestIterateFrom(t *testing.T) {
	dbtest.TestIterateFrom(t, newTestDB(t))
}

func TestWriteTxApply(t *testing.T) {
	dbtest.TestWriteTxApply(t, newTestDB(t))
}

func TestWriteTxApplyPrefixed(t *testing.T) {
	database := newTestDB(t)
	dbtest.TestWriteTxApplyPrefixed(t, database, prefixeddb.NewPrefixedDatabase(database, []byte("one")))
}

func TestCommitTwice(t *testing.T) {
	c := qt.New(t)
	tx := newTestDB(t).WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("v")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	c.Assert(tx.Commit(), qt.ErrorIs, db.ErrTxClosed)
}
