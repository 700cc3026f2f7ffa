// Package metadb opens a db.Database by backend name.
package metadb

import (
	"fmt"
	"testing"

	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/inmemory"
	"github.com/vocdoni/confidential-ballot/db/leveldb"
	"github.com/vocdoni/confidential-ballot/db/mongodb"
	"github.com/vocdoni/confidential-ballot/db/pebbledb"
)

// New opens a database of the given type. dir is ignored by the in-memory
// backend and used as database name by mongodb.
func New(typ, dir string) (db.Database, error) {
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeLevelDB:
		return leveldb.New(opts)
	case db.TypeMongo:
		return mongodb.New(opts)
	case db.TypeInMem:
		return inmemory.New(opts)
	default:
		return nil, fmt.Errorf("invalid database type %q", typ)
	}
}

// Types returns the supported backend names.
func Types() []string {
	return []string{db.TypePebble, db.TypeLevelDB, db.TypeMongo, db.TypeInMem}
}

// NewTest returns a pebble database in a temporary directory that is closed
// when the test ends.
func NewTest(tb testing.TB) db.Database {
	database, err := New(db.TypePebble, tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := database.Close(); err != nil {
			tb.Error(err)
		}
	})
	return database
}
