package service

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/db/metadb"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/storage"
	"github.com/vocdoni/confidential-ballot/types"
	"github.com/vocdoni/confidential-ballot/voter"
)

const testChainID = 1337

var contract = common.HexToAddress("0x000000000000000000000000000000000000c0de")

func newTestNode(c *qt.C) (*ledger.Ledger, *fhe.Coprocessor) {
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
	return l, cop
}

func newLocalVoter(c *qt.C, l *ledger.Ledger, cop *fhe.Coprocessor) *voter.Voter {
	signer, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)
	v, err := voter.New(voter.Config{
		Contract:         contract,
		ChainID:          testChainID,
		AuthorityAddress: cop.Address(),
	}, signer, l, cop, cop)
	c.Assert(err, qt.IsNil)
	return v
}

func TestAPIServiceLifecycle(t *testing.T) {
	c := qt.New(t)
	l, cop := newTestNode(c)
	ctx := context.Background()

	as := NewAPI(l, cop, "127.0.0.1", 0, true)
	as.SetNodeInfo(false, "test")
	c.Assert(as.Start(ctx), qt.IsNil)
	c.Assert(as.Start(ctx), qt.ErrorMatches, "service already running")
	host, port := as.HostPort()
	c.Assert(host, qt.Equals, "127.0.0.1")
	c.Assert(port, qt.Equals, 0)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	as.Stop(stopCtx)
	// stopping twice is a no-op
	as.Stop(stopCtx)
}

func TestVoteMonitor(t *testing.T) {
	c := qt.New(t)
	l, cop := newTestNode(c)
	ctx := context.Background()

	alice := newLocalVoter(c, l, cop)
	_, err := alice.Vote(ctx, "Italy", 1)
	c.Assert(err, qt.IsNil)

	seen := make(chan types.VoteCast, 10)
	vm := NewVoteMonitor(l, 0)
	vm.StatsInterval = 10 * time.Millisecond
	vm.onEvent = func(ev types.VoteCast) { seen <- ev }
	c.Assert(vm.Start(ctx), qt.IsNil)
	c.Assert(vm.Start(ctx), qt.IsNotNil)

	wait := func(category string) {
		select {
		case ev := <-seen:
			c.Assert(ev.Category, qt.Equals, category)
		case <-time.After(5 * time.Second):
			c.Fatalf("timeout waiting for %s", category)
		}
	}
	wait("Italy")

	_, err = alice.Vote(ctx, "Peru", 2)
	c.Assert(err, qt.IsNil)
	wait("Peru")
	vm.Stop()
	c.Assert(vm.Seen(), qt.Equals, uint64(2))

	// a restarted monitor resumes after the last event it saw
	_, err = alice.Vote(ctx, "Chile", 3)
	c.Assert(err, qt.IsNil)
	c.Assert(vm.Start(ctx), qt.IsNil)
	wait("Chile")
	vm.Stop()
	c.Assert(vm.Seen(), qt.Equals, uint64(3))
}

func TestVoteMonitorSummary(t *testing.T) {
	c := qt.New(t)
	l, cop := newTestNode(c)
	ctx := context.Background()

	alice, bob := newLocalVoter(c, l, cop), newLocalVoter(c, l, cop)
	for _, v := range []*voter.Voter{alice, bob} {
		_, err := v.Vote(ctx, "Italy", 1)
		c.Assert(err, qt.IsNil)
	}
	_, err := alice.Vote(ctx, "Peru", 2)
	c.Assert(err, qt.IsNil)

	vm := NewVoteMonitor(l, 0)
	summary, err := vm.summary(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(summary["totalBallots"], qt.Equals, uint64(3))
	c.Assert(summary["lastSeq"], qt.Equals, uint64(3))
	c.Assert(summary["categories"], qt.Equals, 2)
	c.Assert(summary["category:Italy"], qt.Equals, uint64(2))
	c.Assert(summary["category:Peru"], qt.Equals, uint64(1))
	c.Assert(summary["seen"], qt.Equals, uint64(0))
}
