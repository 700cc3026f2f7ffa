// Package voter implements the client side of the ballot lifecycle: casting
// an encrypted vote to the ledger and revealing it back to its owner.
package voter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/session"
	"github.com/vocdoni/confidential-ballot/types"
)

// Ledger is the ballot ledger as seen by a voter. Remote implementations
// return ledger.ErrLedgerUnavailable when the outcome of a call is unknown.
type Ledger interface {
	Submit(ctx context.Context, tx *types.VoteTx) (*types.Receipt, error)
	HasVoted(ctx context.Context, participant common.Address, category string) (bool, error)
	Handle(ctx context.Context, participant common.Address, category string) (types.Handle, error)
	Ballot(ctx context.Context, participant common.Address, category string) (*types.Ballot, error)
	Categories(ctx context.Context, participant common.Address) ([]string, error)
}

// grant is a signed authorization with the key that opens its responses.
type grant struct {
	auth *fhe.Authorization
	key  *ecies.PrivateKey
}

// Voter casts and reveals the votes of one participant.
type Voter struct {
	cfg       Config
	signer    *ethereum.Signer
	ledger    Ledger
	relayer   fhe.Relayer
	authority fhe.RevealAuthority

	sessions *session.Tracker
	guard    *keyGuard
	reveals  singleflight.Group

	revealed *lru.Cache[types.Handle, uint64]
	handles  *lru.Cache[session.Key, types.Handle]
	grants   *lru.Cache[types.Handle, *grant]
}

// New returns a Voter acting as signer.
func New(cfg Config, signer *ethereum.Signer, ledger Ledger, relayer fhe.Relayer, authority fhe.RevealAuthority) (*Voter, error) {
	if signer == nil || ledger == nil || relayer == nil || authority == nil {
		return nil, fmt.Errorf("signer, ledger, relayer and authority are required")
	}
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	v := &Voter{
		cfg:       cfg,
		signer:    signer,
		ledger:    ledger,
		relayer:   relayer,
		authority: authority,
		sessions:  session.NewTracker(),
		guard:     newKeyGuard(),
	}
	var err error
	if v.revealed, err = lru.New[types.Handle, uint64](cfg.CacheSize); err != nil {
		return nil, err
	}
	if v.handles, err = lru.New[session.Key, types.Handle](cfg.CacheSize); err != nil {
		return nil, err
	}
	if v.grants, err = lru.New[types.Handle, *grant](cfg.CacheSize); err != nil {
		return nil, err
	}
	return v, nil
}

// Address returns the participant address of the voter.
func (v *Voter) Address() common.Address {
	return v.signer.Address()
}

func (v *Voter) key(participant common.Address, category string) session.Key {
	return session.Key{Participant: participant, Category: category}
}

// Session returns the state of the voter's own key for category.
func (v *Voter) Session(category string) session.State {
	return v.sessions.Get(v.key(v.Address(), category))
}

// SessionFor returns the state of (participant, category).
func (v *Voter) SessionFor(participant common.Address, category string) session.State {
	return v.sessions.Get(v.key(participant, category))
}

// Restore rebuilds the sessions of the voter from the ledger, after a
// restart. Keys with a ballot become Submitted, or Revealed if their value
// is in the reveal cache.
func (v *Voter) Restore(ctx context.Context) ([]session.Key, error) {
	var categories []string
	if err := v.retry(ctx, func() error {
		var err error
		categories, err = v.ledger.Categories(ctx, v.Address())
		return v.classify(err)
	}); err != nil {
		return nil, err
	}
	keys := make([]session.Key, 0, len(categories))
	for _, category := range categories {
		key := v.key(v.Address(), category)
		if err := v.restore(ctx, key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (v *Voter) restore(ctx context.Context, key session.Key) error {
	unlock, err := v.guard.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	h, err := v.handle(ctx, key)
	if err != nil {
		return err
	}
	var value *uint64
	if plain, ok := v.revealed.Get(h); ok {
		value = &plain
	}
	v.sessions.Restore(key, &h, value)
	return nil
}

// HasVoted reports whether participant holds a ballot for category.
func (v *Voter) HasVoted(ctx context.Context, participant common.Address, category string) (bool, error) {
	var voted bool
	err := v.retry(ctx, func() error {
		var err error
		voted, err = v.ledger.HasVoted(ctx, participant, category)
		return v.classify(err)
	})
	return voted, err
}

// Handle returns the handle stored for (participant, category).
func (v *Voter) Handle(ctx context.Context, participant common.Address, category string) (types.Handle, error) {
	return v.handle(ctx, v.key(participant, category))
}

// handle reads the handle of key through the handle cache. Ballots are
// immutable once written, so a cached handle never goes stale.
func (v *Voter) handle(ctx context.Context, key session.Key) (types.Handle, error) {
	if h, ok := v.handles.Get(key); ok {
		return h, nil
	}
	var h types.Handle
	if err := v.retry(ctx, func() error {
		var err error
		h, err = v.ledger.Handle(ctx, key.Participant, key.Category)
		return v.classify(err)
	}); err != nil {
		return types.Handle{}, err
	}
	v.handles.Add(key, h)
	return h, nil
}

// retry runs op with exponential backoff until it succeeds, returns a
// permanent error or the retries are exhausted.
func (v *Voter) retry(ctx context.Context, op backoff.Operation) error {
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(v.newBackOff(), v.cfg.MaxRetries), ctx))
}

func (v *Voter) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = v.cfg.InitialBackoff
	b.MaxInterval = v.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	return b
}

// classify marks every error that is not transient as permanent.
func (v *Voter) classify(err error) error {
	if err == nil || transient(err) {
		return err
	}
	return backoff.Permanent(err)
}

func (v *Voter) now() time.Time {
	return v.cfg.Now()
}

// apply applies ev to the session of key.
func (v *Voter) apply(key session.Key, ev session.Event) error {
	_, err := v.sessions.Apply(key, ev)
	return err
}

// fail moves the session of key to Failed, unless err is itself a refused
// transition.
func (v *Voter) fail(key session.Key, err error) {
	if errors.Is(err, session.ErrInvalidTransition) {
		return
	}
	_, _ = v.sessions.Apply(key, session.Fail(err))
}
