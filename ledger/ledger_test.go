package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/db/metadb"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/storage"
	"github.com/vocdoni/confidential-ballot/types"
	"github.com/vocdoni/confidential-ballot/util"
)

const testChainID = 1337

var ledgerAddress = common.HexToAddress("0x000000000000000000000000000000000000c0de")

type testEnv struct {
	stg    *storage.Storage
	ledger *Ledger
	cop    *fhe.Coprocessor
}

func newTestEnv(c *qt.C, opts Options) *testEnv {
	stg := storage.New(metadb.NewTest(c.TB))
	signer, err := stg.FetchOrGenerateSigner()
	c.Assert(err, qt.IsNil)
	env := &testEnv{stg: stg}
	env.ledger, err = New(stg, Options{
		Address:        ledgerAddress,
		ChainID:        testChainID,
		InputVerifiers: []common.Address{signer.Address()},
		PublicHints:    opts.PublicHints,
	})
	c.Assert(err, qt.IsNil)
	env.cop, err = fhe.NewCoprocessor(stg, signer, env.ledger, fhe.CoprocessorConfig{ChainID: testChainID})
	c.Assert(err, qt.IsNil)
	return env
}

// voteTx encrypts value for voter, bound to the ledger, and signs the tx.
func (e *testEnv) voteTx(c *qt.C, voter *ethereum.Signer, category string, value uint64) *types.VoteTx {
	in, err := fhe.NewInput(e.cop, ledgerAddress, voter.Address()).Add32(value).Encrypt(context.Background())
	c.Assert(err, qt.IsNil)
	tx := &types.VoteTx{
		Participant: voter.Address(),
		Category:    category,
		Handle:      in.Handles[0],
		InputProof:  in.InputProof,
		Hint:        util.Ptr(uint32(value)),
	}
	c.Assert(SignVote(voter, ledgerAddress, testChainID, tx), qt.IsNil)
	return tx
}

func newVoter(c *qt.C) *ethereum.Signer {
	s, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)
	return s
}

func TestNewValidatesOptions(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	verifier := common.HexToAddress("0x01")

	_, err := New(stg, Options{InputVerifiers: []common.Address{verifier}})
	c.Assert(err, qt.IsNotNil)
	_, err = New(stg, Options{Address: ledgerAddress})
	c.Assert(err, qt.IsNotNil)
	_, err = New(stg, Options{Address: ledgerAddress, InputVerifiers: []common.Address{verifier}, Threshold: 2})
	c.Assert(err, qt.IsNotNil)
	l, err := New(stg, Options{Address: ledgerAddress, InputVerifiers: []common.Address{verifier}})
	c.Assert(err, qt.IsNil)
	c.Assert(l.Address(), qt.Equals, ledgerAddress)
}

func TestSubmit(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, Options{})
	ctx := context.Background()
	alice := newVoter(c)

	tx := env.voteTx(c, alice, "Italy", 1)
	receipt, err := env.ledger.Submit(ctx, tx)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Seq, qt.Equals, uint64(1))
	c.Assert(receipt.Handle, qt.Equals, tx.Handle)
	c.Assert(receipt.Participant, qt.Equals, alice.Address())

	voted, err := env.ledger.HasVoted(ctx, alice.Address(), "Italy")
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)
	h, err := env.ledger.Handle(ctx, alice.Address(), "Italy")
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, tx.Handle)

	c.Run("acl grants participant and ledger", func(c *qt.C) {
		for _, account := range []common.Address{alice.Address(), ledgerAddress} {
			ok, err := env.ledger.IsAllowed(tx.Handle, account)
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsTrue)
		}
		ok, err := env.ledger.IsAllowed(tx.Handle, newVoter(c).Address())
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("second vote rejected", func(c *qt.C) {
		_, err := env.ledger.Submit(ctx, env.voteTx(c, alice, "Italy", 2))
		c.Assert(err, qt.ErrorIs, ErrAlreadyVoted)
		c.Assert(err.Error(), qt.Equals, "Already voted for this category")
		h, err := env.ledger.Handle(ctx, alice.Address(), "Italy")
		c.Assert(err, qt.IsNil)
		c.Assert(h, qt.Equals, tx.Handle)
	})

	c.Run("unvoted key", func(c *qt.C) {
		voted, err := env.ledger.HasVoted(ctx, alice.Address(), "France")
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsFalse)
		_, err = env.ledger.Handle(ctx, alice.Address(), "France")
		c.Assert(err, qt.ErrorIs, ErrNotVoted)
		c.Assert(err.Error(), qt.Equals, "User has not voted for this category")
	})

	c.Run("other categories are independent", func(c *qt.C) {
		_, err := env.ledger.Submit(ctx, env.voteTx(c, alice, "France", 2))
		c.Assert(err, qt.IsNil)
		_, err = env.ledger.Submit(ctx, env.voteTx(c, alice, "São Tomé & Príncipe", 9999))
		c.Assert(err, qt.IsNil)
		cats, err := env.ledger.Categories(ctx, alice.Address())
		c.Assert(err, qt.IsNil)
		c.Assert(cats, qt.HasLen, 3)
	})

	c.Run("other participants are independent", func(c *qt.C) {
		_, err := env.ledger.Submit(ctx, env.voteTx(c, newVoter(c), "Italy", 3))
		c.Assert(err, qt.IsNil)
	})
}

func TestSubmitRejections(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, Options{})
	ctx := context.Background()
	alice, bob := newVoter(c), newVoter(c)

	c.Run("empty category", func(c *qt.C) {
		_, err := env.ledger.Submit(ctx, env.voteTx(c, alice, "", 1))
		c.Assert(err, qt.ErrorIs, ErrInvalidCategory)
	})

	c.Run("oversized category", func(c *qt.C) {
		long := string(make([]byte, MaxCategoryLength+1))
		_, err := env.ledger.Submit(ctx, env.voteTx(c, alice, long, 1))
		c.Assert(err, qt.ErrorIs, ErrInvalidCategory)
	})

	c.Run("unsigned", func(c *qt.C) {
		tx := env.voteTx(c, alice, "Spain", 1)
		tx.Signature = nil
		_, err := env.ledger.Submit(ctx, tx)
		c.Assert(err, qt.ErrorIs, ErrInvalidSignature)
	})

	c.Run("signed by someone else", func(c *qt.C) {
		tx := env.voteTx(c, alice, "Spain", 1)
		c.Assert(SignVote(bob, ledgerAddress, testChainID, tx), qt.IsNil)
		_, err := env.ledger.Submit(ctx, tx)
		c.Assert(err, qt.ErrorIs, ErrInvalidSignature)
	})

	c.Run("handle replayed by another participant", func(c *qt.C) {
		tx := env.voteTx(c, alice, "Spain", 1)
		tx.Participant = bob.Address()
		c.Assert(SignVote(bob, ledgerAddress, testChainID, tx), qt.IsNil)
		_, err := env.ledger.Submit(ctx, tx)
		c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	})

	c.Run("handle bound to another contract", func(c *qt.C) {
		in, err := fhe.NewInput(env.cop, common.HexToAddress("0xbeef"), alice.Address()).Add32(1).Encrypt(ctx)
		c.Assert(err, qt.IsNil)
		tx := &types.VoteTx{Participant: alice.Address(), Category: "Spain", Handle: in.Handles[0], InputProof: in.InputProof}
		c.Assert(SignVote(alice, ledgerAddress, testChainID, tx), qt.IsNil)
		_, err = env.ledger.Submit(ctx, tx)
		c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	})

	c.Run("nothing was stored", func(c *qt.C) {
		voted, err := env.ledger.HasVoted(ctx, alice.Address(), "Spain")
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsFalse)
		voted, err = env.ledger.HasVoted(ctx, bob.Address(), "Spain")
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsFalse)
	})
}

func TestConcurrentSubmitSingleWinner(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, Options{})
	ctx := context.Background()
	alice := newVoter(c)

	const n = 8
	txs := make([]*types.VoteTx, n)
	for i := range txs {
		txs[i] = env.voteTx(c, alice, "Japan", uint64(i))
	}
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range txs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.ledger.Submit(ctx, txs[i])
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			c.Assert(winner, qt.Equals, -1, qt.Commentf("more than one winner"))
			winner = i
			continue
		}
		c.Assert(err, qt.ErrorIs, ErrAlreadyVoted)
	}
	c.Assert(winner, qt.Not(qt.Equals), -1)
	h, err := env.ledger.Handle(ctx, alice.Address(), "Japan")
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, txs[winner].Handle)
}

func TestHints(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	for _, public := range []bool{false, true} {
		env := newTestEnv(c, Options{PublicHints: public})
		_, err := env.ledger.Submit(ctx, env.voteTx(c, newVoter(c), "Peru", 5))
		c.Assert(err, qt.IsNil)
		events, err := env.ledger.Events(ctx, 0, 0)
		c.Assert(err, qt.IsNil)
		c.Assert(events, qt.HasLen, 1)
		if public {
			c.Assert(events[0].Hint, qt.IsNotNil)
			c.Assert(*events[0].Hint, qt.Equals, uint32(5))
		} else {
			c.Assert(events[0].Hint, qt.IsNil)
		}
	}
}

func TestSubscribe(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice, bob := newVoter(c), newVoter(c)
	_, err := env.ledger.Submit(ctx, env.voteTx(c, alice, "Chile", 1))
	c.Assert(err, qt.IsNil)

	sub := env.ledger.Subscribe(ctx, 0)
	next := func() types.VoteCast {
		select {
		case ev := <-sub:
			return ev
		case <-time.After(5 * time.Second):
			c.Fatal("timeout waiting for event")
		}
		return types.VoteCast{}
	}

	ev := next()
	c.Assert(ev.Seq, qt.Equals, uint64(1))
	c.Assert(ev.Participant, qt.Equals, alice.Address())

	_, err = env.ledger.Submit(ctx, env.voteTx(c, bob, "Chile", 2))
	c.Assert(err, qt.IsNil)
	ev = next()
	c.Assert(ev.Seq, qt.Equals, uint64(2))
	c.Assert(ev.Participant, qt.Equals, bob.Address())
	c.Assert(ev.Category, qt.Equals, "Chile")

	cancel()
	select {
	case _, ok := <-sub:
		c.Assert(ok, qt.IsFalse)
	case <-time.After(5 * time.Second):
		c.Fatal("subscription not closed")
	}
}

func TestStats(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, Options{})
	ctx := context.Background()
	for _, cat := range []string{"Italy", "Italy", "France"} {
		_, err := env.ledger.Submit(ctx, env.voteTx(c, newVoter(c), cat, 1))
		c.Assert(err, qt.IsNil)
	}
	stats, err := env.ledger.Stats(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(stats.TotalBallots, qt.Equals, uint64(3))
	c.Assert(stats.LastSeq, qt.Equals, uint64(3))
	c.Assert(stats.Categories, qt.HasLen, 2)
}
