package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-ballot/crypto/ecc/bn254"
	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/metadb"
	"github.com/vocdoni/confidential-ballot/types"
	"github.com/vocdoni/confidential-ballot/util"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	ledger = common.HexToAddress("0x000000000000000000000000000000000000c0de")
)

func randomHandle() types.Handle {
	return common.BytesToHash(util.RandomBytes(32))
}

func TestRecordVote(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	h := randomHandle()
	ev, err := st.RecordVote(alice, "Japan", h, util.Ptr(uint32(1)), alice, ledger)
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Seq, qt.Equals, uint64(1))
	c.Assert(*ev.Hint, qt.Equals, uint32(1))

	b, err := st.Ballot(alice, "Japan")
	c.Assert(err, qt.IsNil)
	c.Assert(b.HasVoted, qt.IsTrue)
	c.Assert(b.Handle, qt.Equals, h)
	c.Assert(b.TxHash, qt.Equals, VoteTxHash(alice, "Japan", h))

	c.Run("duplicate leaves the record untouched", func(c *qt.C) {
		_, err := st.RecordVote(alice, "Japan", randomHandle(), nil, alice)
		c.Assert(err, qt.ErrorIs, ErrKeyAlreadyExists)
		b, err := st.Ballot(alice, "Japan")
		c.Assert(err, qt.IsNil)
		c.Assert(b.Handle, qt.Equals, h)
		seq, err := st.LastSeq()
		c.Assert(err, qt.IsNil)
		c.Assert(seq, qt.Equals, uint64(1))
	})

	c.Run("unknown keys", func(c *qt.C) {
		_, err := st.Ballot(bob, "Japan")
		c.Assert(err, qt.ErrorIs, ErrNotFound)
		_, err = st.Ballot(alice, "Vietnam")
		c.Assert(err, qt.ErrorIs, ErrNotFound)
	})

	c.Run("acl granted", func(c *qt.C) {
		ok, err := st.IsAllowed(h, alice)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		ok, err = st.IsAllowed(h, ledger)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		ok, err = st.IsAllowed(h, bob)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	})
}

func TestBallotsPersistAcrossInstances(t *testing.T) {
	c := qt.New(t)
	database := metadb.NewTest(t)

	h := randomHandle()
	_, err := New(database).RecordVote(alice, "São Tomé & Príncipe", h, nil)
	c.Assert(err, qt.IsNil)

	b, err := New(database).Ballot(alice, "São Tomé & Príncipe")
	c.Assert(err, qt.IsNil)
	c.Assert(b.Category, qt.Equals, "São Tomé & Príncipe")
	c.Assert(b.Handle, qt.Equals, h)
}

func TestParticipantBallotsAndStats(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	for _, cat := range []string{"Italy", "France"} {
		_, err := st.RecordVote(alice, cat, randomHandle(), nil)
		c.Assert(err, qt.IsNil)
	}
	_, err := st.RecordVote(bob, "Italy", randomHandle(), nil)
	c.Assert(err, qt.IsNil)

	ballots, err := st.ParticipantBallots(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(ballots, qt.HasLen, 2)

	ballots, err = st.ParticipantBallots(bob)
	c.Assert(err, qt.IsNil)
	c.Assert(ballots, qt.HasLen, 1)
	c.Assert(ballots[0].Category, qt.Equals, "Italy")

	stats, err := st.Stats()
	c.Assert(err, qt.IsNil)
	c.Assert(stats.TotalBallots, qt.Equals, uint64(3))
	c.Assert(stats.LastSeq, qt.Equals, uint64(3))
	counts := map[string]uint64{}
	for _, cs := range stats.Categories {
		counts[cs.Category] = cs.Ballots
	}
	c.Assert(counts, qt.DeepEquals, map[string]uint64{"Italy": 2, "France": 1})
}

func TestEvents(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	for i := range 5 {
		_, err := st.RecordVote(alice, fmt.Sprintf("cat-%d", i), randomHandle(), nil)
		c.Assert(err, qt.IsNil)
	}

	all, err := st.Events(0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 5)
	for i, ev := range all {
		c.Assert(ev.Seq, qt.Equals, uint64(i+1))
		c.Assert(ev.Category, qt.Equals, fmt.Sprintf("cat-%d", i))
		c.Assert(ev.Hint, qt.IsNil)
	}

	page, err := st.Events(3, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(page, qt.HasLen, 2)
	c.Assert(page[0].Seq, qt.Equals, uint64(3))
	c.Assert(page[1].Seq, qt.Equals, uint64(4))

	none, err := st.Events(6, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(none, qt.HasLen, 0)
}

// seekCounter counts the keys the ranged iterations of a database visit.
type seekCounter struct {
	db.Database
	visited int
}

func (s *seekCounter) IterateFrom(prefix, start []byte, callback func(key, value []byte) bool) error {
	return db.IterateFrom(s.Database, prefix, start, func(k, v []byte) bool {
		s.visited++
		return callback(k, v)
	})
}

func TestEventsSeekToFrom(t *testing.T) {
	c := qt.New(t)
	counter := &seekCounter{Database: metadb.NewTest(t)}
	st := New(counter)

	for i := range 50 {
		_, err := st.RecordVote(alice, fmt.Sprintf("cat-%d", i), randomHandle(), nil)
		c.Assert(err, qt.IsNil)
	}

	counter.visited = 0
	tail, err := st.Events(46, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(tail, qt.HasLen, 5)
	c.Assert(tail[0].Seq, qt.Equals, uint64(46))
	c.Assert(counter.visited, qt.Equals, 5)

	counter.visited = 0
	page, err := st.Events(10, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(page, qt.HasLen, 3)
	c.Assert(page[2].Seq, qt.Equals, uint64(12))
	c.Assert(counter.visited, qt.Equals, 3)
}

func TestConcurrentRecordVote(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	const racers = 16
	handles := make([]types.Handle, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range racers {
		handles[i] = randomHandle()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = st.RecordVote(alice, "Korea", handles[i], nil)
		}()
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			c.Assert(winner, qt.Equals, -1, qt.Commentf("more than one winner"))
			winner = i
			continue
		}
		c.Assert(err, qt.ErrorIs, ErrKeyAlreadyExists)
	}
	c.Assert(winner, qt.Not(qt.Equals), -1)
	b, err := st.Ballot(alice, "Korea")
	c.Assert(err, qt.IsNil)
	c.Assert(b.Handle, qt.Equals, handles[winner])
}

func TestCiphertexts(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	h := randomHandle()
	ct := &Ciphertext{Data: util.RandomBytes(64), Type: 4, Contract: ledger, Submitter: alice}
	c.Assert(st.SetCiphertext(h, ct), qt.IsNil)
	c.Assert(st.SetCiphertext(h, ct), qt.IsNil)
	c.Assert(st.SetCiphertext(h, &Ciphertext{Data: util.RandomBytes(64)}), qt.ErrorIs, ErrKeyAlreadyExists)

	got, err := st.Ciphertext(h)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Data, qt.DeepEquals, ct.Data)
	c.Assert(got.Submitter, qt.Equals, alice)

	_, err = st.Ciphertext(randomHandle())
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	// grants are only written with the ballot
	ok, err := st.IsAllowed(h, bob)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
	_, err = st.RecordVote(alice, "Italy", h, nil, bob)
	c.Assert(err, qt.IsNil)
	ok, err = st.IsAllowed(h, bob)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	ok, err = st.IsAllowed(h, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestNodeKeys(t *testing.T) {
	c := qt.New(t)
	database := metadb.NewTest(t)

	pub, priv, err := New(database).FetchOrGenerateEncryptionKeys(bn254.New())
	c.Assert(err, qt.IsNil)
	pub2, priv2, err := New(database).FetchOrGenerateEncryptionKeys(bn254.New())
	c.Assert(err, qt.IsNil)
	c.Assert(pub2.Equal(pub), qt.IsTrue)
	c.Assert(priv2.Cmp(priv), qt.Equals, 0)

	s1, err := New(database).FetchOrGenerateSigner()
	c.Assert(err, qt.IsNil)
	s2, err := New(database).FetchOrGenerateSigner()
	c.Assert(err, qt.IsNil)
	c.Assert(s2.Address(), qt.Equals, s1.Address())
}
