// Package mongodb implements db.Database on a MongoDB collection. Keys are
// stored hex encoded in _id so that prefix scans and ordering match the
// byte order of the embedded engines.
package mongodb

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/vocdoni/confidential-ballot/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "kv"
	opTimeout      = 10 * time.Second
)

type document struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// MongoDB implements db.Database.
type MongoDB struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var (
	_ db.Database = (*MongoDB)(nil)
	_ db.Seeker   = (*MongoDB)(nil)
)

// New connects to the server at $MONGODB_URL and uses opts.Path as the
// database name.
func New(opts db.Options) (*MongoDB, error) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		return nil, fmt.Errorf("MONGODB_URL is not set")
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("mongodb database name is empty")
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("cannot ping mongodb: %w", err)
	}
	return &MongoDB{
		client: client,
		coll:   client.Database(opts.Path).Collection(collectionName),
	}, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Compact is a no-op, the server manages its own storage.
func (d *MongoDB) Compact() error {
	return nil
}

func (d *MongoDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var doc document
	err := d.coll.FindOne(ctx, bson.M{"_id": hex.EncodeToString(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

func (d *MongoDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.find(bson.M{"_id": bson.M{"$regex": "^" + hex.EncodeToString(prefix)}}, callback)
}

// IterateFrom implements db.Seeker. Lowercase hex keeps the byte order, so
// the range is a string comparison on _id.
func (d *MongoDB) IterateFrom(prefix, start []byte, callback func(key, value []byte) bool) error {
	return d.find(bson.M{"_id": bson.M{
		"$regex": "^" + hex.EncodeToString(prefix),
		"$gte":   hex.EncodeToString(db.LowerBound(prefix, start)),
	}}, callback)
}

func (d *MongoDB) find(filter bson.M, callback func(key, value []byte) bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	cur, err := d.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		key, err := hex.DecodeString(doc.Key)
		if err != nil {
			return fmt.Errorf("invalid key %q: %w", doc.Key, err)
		}
		if !callback(key, doc.Value) {
			break
		}
	}
	return cur.Err()
}

func (d *MongoDB) WriteTx() db.WriteTx {
	return &WriteTx{db: d, pending: make(map[string][]byte)}
}

// WriteTx collects writes and flushes them with a single ordered bulk write.
type WriteTx struct {
	db      *MongoDB
	pending map[string][]byte // hex key, nil value means delete
	closed  bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if v, ok := tx.pending[hex.EncodeToString(key)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return slices.Clone(v), nil
	}
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	entries := make(map[string][]byte)
	if err := tx.db.Iterate(prefix, func(k, v []byte) bool {
		entries[hex.EncodeToString(k)] = slices.Clone(v)
		return true
	}); err != nil {
		return err
	}
	hexPrefix := hex.EncodeToString(prefix)
	for k, v := range tx.pending {
		if len(k) < len(hexPrefix) || k[:len(hexPrefix)] != hexPrefix {
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
		raw, _ := hex.DecodeString(k)
		if !callback(raw, entries[k]) {
			break
		}
	}
	return nil
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.pending[hex.EncodeToString(key)] = slices.Clone(value)
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.pending[hex.EncodeToString(key)] = nil
	return nil
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	o, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply %T into a mongodb transaction", other)
	}
	for k, v := range o.pending {
		tx.pending[k] = v
	}
	return nil
}

func (tx *WriteTx) Commit() error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.closed = true
	if len(tx.pending) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(tx.pending))
	for k, v := range tx.pending {
		if v == nil {
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": k}))
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": k}).
			SetReplacement(document{Key: k, Value: v}).
			SetUpsert(true))
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := tx.db.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return err
}

func (tx *WriteTx) Discard() {
	tx.pending = map[string][]byte{}
	tx.closed = true
}
