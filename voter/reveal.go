package voter

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/session"
	"github.com/vocdoni/confidential-ballot/types"
)

// Reveal returns the plaintext of the voter's own ballot for category.
func (v *Voter) Reveal(ctx context.Context, category string) (uint64, error) {
	return v.RevealFor(ctx, v.Address(), category)
}

// RevealFor asks the reveal authority for the plaintext of the ballot of
// (participant, category), authorized by the voter's signature. The
// authority only serves the ballot owner: for any other participant the
// call fails with fhe.ErrAuthorizationRejected. Concurrent calls for the
// same key share one request.
func (v *Voter) RevealFor(ctx context.Context, participant common.Address, category string) (uint64, error) {
	key := v.key(participant, category)
	ch := v.reveals.DoChan(participant.Hex()+"/"+category, func() (any, error) {
		// the shared request outlives any single caller
		return v.reveal(context.WithoutCancel(ctx), key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(uint64), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (v *Voter) reveal(ctx context.Context, key session.Key) (uint64, error) {
	// a vote in flight on the key owns its session until it returns
	unlock, err := v.guard.lock(ctx, key)
	if err != nil {
		return 0, err
	}
	defer unlock()

	handle, err := v.handle(ctx, key)
	if err != nil {
		return 0, err
	}
	if value, ok := v.revealed.Get(handle); ok {
		v.sessions.Restore(key, &handle, &value)
		return value, nil
	}
	if !v.sessions.Get(key).Voted {
		// first look at this key in this session
		v.sessions.Restore(key, &handle, nil)
	}
	if err := v.apply(key, session.Event{Type: session.EvReveal}); err != nil {
		return 0, err
	}

	value, err := v.decrypt(ctx, handle)
	if err != nil {
		v.fail(key, err)
		log.Debugw("reveal failed",
			"participant", key.Participant.Hex(),
			"category", key.Category,
			"handle", handle.Hex(),
			"error", err.Error())
		return 0, err
	}
	v.revealed.Add(handle, value)
	if err := v.apply(key, session.Event{Type: session.EvRevealed, Value: value}); err != nil {
		return 0, err
	}
	log.Debugw("ballot revealed", "participant", key.Participant.Hex(), "category", key.Category)
	return value, nil
}

// decrypt runs the user decryption round trip for handle. An expired
// authorization is re-signed once.
func (v *Voter) decrypt(ctx context.Context, handle types.Handle) (uint64, error) {
	for attempt := 0; ; attempt++ {
		g, err := v.grant(handle)
		if err != nil {
			return 0, err
		}
		var resp *fhe.UserDecryptResponse
		err = v.retry(ctx, func() error {
			var err error
			resp, err = v.authority.UserDecrypt(ctx, &fhe.UserDecryptRequest{Authorization: g.auth})
			return v.classify(err)
		})
		if errors.Is(err, fhe.ErrAuthorizationExpired) && attempt == 0 {
			log.Debugw("decryption authorization expired, signing a new one", "handle", handle.Hex())
			v.grants.Remove(handle)
			continue
		}
		if err != nil {
			return 0, err
		}
		value, err := fhe.OpenResponse(resp, handle, g.key, v.cfg.AuthorityAddress)
		if err != nil {
			return 0, fmt.Errorf("open decryption response: %w", err)
		}
		return value, nil
	}
}

// grant returns a cached authorization for handle that is valid for a while
// longer, or signs a new one.
func (v *Voter) grant(handle types.Handle) (*grant, error) {
	now := v.now()
	margin := v.cfg.AuthorizationValidity / 10
	if g, ok := v.grants.Get(handle); ok && g.auth.ValidAt(now, 0) && g.auth.End().After(now.Add(margin)) {
		return g, nil
	}
	auth, key, err := fhe.NewAuthorization(v.signer, handle, v.cfg.Contract, v.cfg.ChainID, now, v.cfg.AuthorizationValidity)
	if err != nil {
		return nil, err
	}
	g := &grant{auth: auth, key: key}
	v.grants.Add(handle, g)
	return g, nil
}
