package voter

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cenkalti/backoff/v4"

	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/session"
	"github.com/vocdoni/confidential-ballot/types"
	"github.com/vocdoni/confidential-ballot/util"
)

// Vote encrypts value and stores it as the voter's ballot for category.
//
// Calls for the same category run one after the other; a later one gets
// ledger.ErrAlreadyVoted once the earlier succeeded. Ledger rejections are
// returned unchanged. If the submission hits a transport fault the outcome
// is confirmed by reading the ledger back, and ErrSubmissionUnconfirmed is
// returned if it cannot be established. Success is never reported before
// the ledger acknowledged or showed the ballot.
func (v *Voter) Vote(ctx context.Context, category string, value uint64) (*types.Receipt, error) {
	if err := ledger.ValidCategory(category); err != nil {
		return nil, err
	}
	key := v.key(v.Address(), category)
	unlock, err := v.guard.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if v.sessions.Get(key).Voted {
		return nil, ledger.ErrAlreadyVoted
	}
	if err := v.apply(key, session.Event{Type: session.EvVote}); err != nil {
		return nil, err
	}
	receipt, err := v.vote(ctx, key, value)
	if err != nil {
		v.fail(key, err)
		log.Debugw("vote failed", "participant", key.Participant.Hex(), "category", category, "error", err.Error())
		return nil, err
	}
	v.handles.Remove(key)
	if err := v.apply(key, session.Event{Type: session.EvAcked, Handle: receipt.Handle}); err != nil {
		// the ledger holds the ballot, so the session follows it
		log.Warnw("reconciling session with acknowledged vote",
			"participant", key.Participant.Hex(),
			"category", category,
			"error", err.Error())
		v.sessions.Restore(key, &receipt.Handle, nil)
	}
	log.Infow("vote submitted",
		"participant", key.Participant.Hex(),
		"category", category,
		"handle", receipt.Handle.Hex(),
		"seq", receipt.Seq)
	return receipt, nil
}

func (v *Voter) vote(ctx context.Context, key session.Key, value uint64) (*types.Receipt, error) {
	if value > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d does not fit in %s", fhe.ErrEncoding, value, fhe.TypeUint32)
	}
	var input *fhe.EncryptedInput
	if err := v.retry(ctx, func() error {
		var err error
		input, err = fhe.NewInput(v.relayer, v.cfg.Contract, key.Participant).Add32(value).Encrypt(ctx)
		return v.classify(err)
	}); err != nil {
		return nil, err
	}
	if len(input.Handles) != 1 {
		return nil, fmt.Errorf("%w: expected one handle, got %d", fhe.ErrInvalidInputProof, len(input.Handles))
	}
	handle := input.Handles[0]
	if err := v.apply(key, session.Event{Type: session.EvEncrypted, Handle: handle}); err != nil {
		return nil, err
	}

	tx := &types.VoteTx{
		Participant: key.Participant,
		Category:    key.Category,
		Handle:      handle,
		InputProof:  input.InputProof,
	}
	if v.cfg.SendHint {
		tx.Hint = util.Ptr(uint32(value))
	}
	if err := ledger.SignVote(v.signer, v.cfg.Contract, v.cfg.ChainID, tx); err != nil {
		return nil, err
	}
	return v.submit(ctx, tx)
}

// submit sends tx, resubmitting on transport faults. Once a fault happened,
// a duplicate vote answer may be our own earlier attempt, so it is resolved
// by reading the stored handle.
func (v *Voter) submit(ctx context.Context, tx *types.VoteTx) (*types.Receipt, error) {
	var receipt *types.Receipt
	faulted := false
	err := v.retry(ctx, func() error {
		var err error
		receipt, err = v.ledger.Submit(ctx, tx)
		switch {
		case err == nil:
			return nil
		case transient(err):
			faulted = true
			log.Debugw("vote submission fault", "participant", tx.Participant.Hex(), "category", tx.Category, "error", err.Error())
			return err
		default:
			return backoff.Permanent(err)
		}
	})
	switch {
	case err == nil:
		return receipt, nil
	case !faulted:
		return nil, err
	case errors.Is(err, ledger.ErrAlreadyVoted), transient(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return v.confirm(ctx, tx)
	default:
		return nil, err
	}
}

// confirm polls the ledger until the ballot of tx shows up or the
// confirmation timeout expires. A ballot with another handle means an
// earlier vote won the key.
func (v *Voter) confirm(ctx context.Context, tx *types.VoteTx) (*types.Receipt, error) {
	// the caller may have given up already; the submission may still land
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.cfg.ConfirmTimeout)
	defer cancel()

	var ballot *types.Ballot
	b := v.newBackOff()
	err := backoff.Retry(func() error {
		var err error
		ballot, err = v.ledger.Ballot(ctx, tx.Participant, tx.Category)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ledger.ErrNotVoted):
			return errNotLanded
		case transient(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionUnconfirmed, err)
	}
	if ballot.Handle != tx.Handle {
		return nil, ledger.ErrAlreadyVoted
	}
	log.Debugw("vote confirmed by ledger read", "participant", tx.Participant.Hex(), "category", tx.Category)
	return &types.Receipt{
		TxHash:      ballot.TxHash,
		Seq:         ballot.Seq,
		Participant: ballot.Participant,
		Category:    ballot.Category,
		Handle:      ballot.Handle,
		Timestamp:   ballot.Timestamp,
	}, nil
}
