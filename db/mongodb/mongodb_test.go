package mongodb

import (
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/internal/dbtest"
	"github.com/vocdoni/confidential-ballot/db/prefixeddb"
	"github.com/vocdoni/confidential-ballot/util"
)

func newTestDB(t *testing.T) *MongoDB {
	if os.Getenv("MONGODB_URL") == "" {
		t.Skip("MONGODB_URL is not set")
	}
	database, err := New(db.Options{Path: "test" + util.RandomHex(8)})
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

func TestNewWithoutURL(t *testing.T) {
	t.Setenv("MONGODB_URL", "")
	_, err := New(db.Options{Path: "x"})
	qt.Assert(t, err, qt.ErrorMatches, "MONGODB_URL is not set")
}
