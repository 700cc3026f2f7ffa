package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/confidential-ballot/api"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/db/metadb"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/storage"
	"github.com/vocdoni/confidential-ballot/voter"
)

var (
	_ voter.Ledger        = (*HTTPclient)(nil)
	_ fhe.Relayer         = (*HTTPclient)(nil)
	_ fhe.RevealAuthority = (*HTTPclient)(nil)
)

const testChainID = 1337

var contract = common.HexToAddress("0x000000000000000000000000000000000000c0de")

func newTestClient(c *qt.C) (*HTTPclient, *httptest.Server) {
	stg := storage.New(metadb.NewTest(c.TB))
	signer, err := stg.FetchOrGenerateSigner()
	c.Assert(err, qt.IsNil)
	l, err := ledger.New(stg, ledger.Options{
		Address:        contract,
		ChainID:        testChainID,
		InputVerifiers: []common.Address{signer.Address()},
	})
	c.Assert(err, qt.IsNil)
	cop, err := fhe.NewCoprocessor(stg, signer, l, fhe.CoprocessorConfig{ChainID: testChainID})
	c.Assert(err, qt.IsNil)
	a, err := api.New(&api.APIConfig{Ledger: l, Coprocessor: cop})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	c.Cleanup(srv.Close)
	cli, err := New(srv.URL)
	c.Assert(err, qt.IsNil)
	return cli, srv
}

func newRemoteVoter(c *qt.C, cli *HTTPclient) *voter.Voter {
	info, err := cli.Info(context.Background())
	c.Assert(err, qt.IsNil)
	signer, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)
	v, err := voter.New(voter.Config{
		Contract:         info.Ledger,
		ChainID:          info.ChainID,
		AuthorityAddress: info.Authority,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		ConfirmTimeout:   100 * time.Millisecond,
	}, signer, cli, cli, cli)
	c.Assert(err, qt.IsNil)
	return v
}

func TestNew(t *testing.T) {
	c := qt.New(t)
	_, err := New("ftp://example.com")
	c.Assert(err, qt.IsNotNil)
	_, err = New("http://127.0.0.1:9090")
	c.Assert(err, qt.IsNil)
}

func TestRemoteVoteAndReveal(t *testing.T) {
	c := qt.New(t)
	cli, _ := newTestClient(c)
	ctx := context.Background()
	c.Assert(cli.Ping(ctx), qt.IsNil)

	alice, bob := newRemoteVoter(c, cli), newRemoteVoter(c, cli)
	category := "São Tomé & Príncipe"

	receipt, err := alice.Vote(ctx, category, 9999)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Category, qt.Equals, category)

	got, err := alice.Reveal(ctx, category)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, uint64(9999))

	c.Run("ballot record", func(c *qt.C) {
		again := newRemoteVoter(c, cli)
		_, err := again.Vote(ctx, "Italy", 1)
		c.Assert(err, qt.IsNil)
		_, err = cli.Submit(ctx, nil)
		c.Assert(err, qt.IsNotNil)

		handle, err := cli.Handle(ctx, again.Address(), "Italy")
		c.Assert(err, qt.IsNil)
		ballot, err := cli.Ballot(ctx, again.Address(), "Italy")
		c.Assert(err, qt.IsNil)
		c.Assert(ballot.Handle, qt.Equals, handle)
	})

	c.Run("duplicate vote", func(c *qt.C) {
		_, err := alice.Vote(ctx, category, 1)
		c.Assert(err, qt.ErrorIs, ledger.ErrAlreadyVoted)
		c.Assert(err.Error(), qt.Equals, "Already voted for this category")
	})

	c.Run("not voted", func(c *qt.C) {
		_, err := bob.Reveal(ctx, category)
		c.Assert(err, qt.ErrorIs, ledger.ErrNotVoted)
		voted, err := cli.HasVoted(ctx, bob.Address(), category)
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsFalse)
	})

	c.Run("third party reveal", func(c *qt.C) {
		_, err := bob.RevealFor(ctx, alice.Address(), category)
		c.Assert(err, qt.ErrorIs, fhe.ErrAuthorizationRejected)
	})

	c.Run("categories and stats", func(c *qt.C) {
		cats, err := cli.Categories(ctx, alice.Address())
		c.Assert(err, qt.IsNil)
		c.Assert(cats, qt.DeepEquals, []string{category})
		stats, err := cli.Stats(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(stats.TotalBallots, qt.Equals, uint64(2))
	})
}

func TestSubscribe(t *testing.T) {
	c := qt.New(t)
	cli, _ := newTestClient(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := newRemoteVoter(c, cli)
	_, err := alice.Vote(ctx, "Peru", 3)
	c.Assert(err, qt.IsNil)

	events := cli.Subscribe(ctx, 0, 10*time.Millisecond)
	next := func() uint64 {
		select {
		case ev := <-events:
			c.Assert(ev.Participant, qt.Equals, alice.Address())
			return ev.Seq
		case <-time.After(5 * time.Second):
			c.Fatal("timeout waiting for event")
		}
		return 0
	}
	c.Assert(next(), qt.Equals, uint64(1))
	_, err = alice.Vote(ctx, "Chile", 4)
	c.Assert(err, qt.IsNil)
	c.Assert(next(), qt.Equals, uint64(2))
}

func TestTransportErrors(t *testing.T) {
	c := qt.New(t)
	cli, srv := newTestClient(c)
	srv.Close()
	ctx := context.Background()

	_, err := cli.Submit(ctx, nil)
	c.Assert(err, qt.ErrorIs, ledger.ErrLedgerUnavailable)
	_, err = cli.HasVoted(ctx, contract, "Italy")
	c.Assert(err, qt.ErrorIs, ledger.ErrLedgerUnavailable)
	_, err = cli.NetworkKey(ctx)
	c.Assert(err, qt.ErrorIs, fhe.ErrEncryptionUnavailable)
	_, err = cli.UserDecrypt(ctx, &fhe.UserDecryptRequest{})
	c.Assert(err, qt.ErrorIs, fhe.ErrRevealUnavailable)
}
