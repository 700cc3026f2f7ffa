// Package ledger implements the ballot ledger: the append-only store of
// encrypted ballots keyed by (participant, category), enforcing one vote per
// key.
package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/storage"
	"github.com/vocdoni/confidential-ballot/types"
)

// MaxCategoryLength is the maximum length in bytes of a category.
const MaxCategoryLength = 256

const voteDomain = "confidential-ballot/vote/v1"

// Options configures a Ledger.
type Options struct {
	// Address is the contract address handles must be bound to.
	Address common.Address
	ChainID uint64
	// InputVerifiers are the relayer identities trusted to attest inputs.
	InputVerifiers []common.Address
	// Threshold is the number of distinct verifier signatures required,
	// one if zero.
	Threshold int
	// PublicHints keeps the plain value hint of submitted votes in the
	// emitted VoteCast events. When false the hint is dropped.
	PublicHints bool
}

// Ledger stores ballots and emits a VoteCast event for each of them.
type Ledger struct {
	stg  *storage.Storage
	opts Options

	notifyLock sync.Mutex
	notify     chan struct{}
}

// New returns a ledger persisting to stg.
func New(stg *storage.Storage, opts Options) (*Ledger, error) {
	if stg == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if opts.Address == (common.Address{}) {
		return nil, fmt.Errorf("ledger address is required")
	}
	if len(opts.InputVerifiers) == 0 {
		return nil, fmt.Errorf("at least one input verifier is required")
	}
	if opts.Threshold < 1 {
		opts.Threshold = 1
	}
	if opts.Threshold > len(opts.InputVerifiers) {
		return nil, fmt.Errorf("threshold %d exceeds %d input verifiers", opts.Threshold, len(opts.InputVerifiers))
	}
	return &Ledger{stg: stg, opts: opts, notify: make(chan struct{})}, nil
}

// Address returns the contract address of the ledger.
func (l *Ledger) Address() common.Address {
	return l.opts.Address
}

// ChainID returns the chain id of the ledger.
func (l *Ledger) ChainID() uint64 {
	return l.opts.ChainID
}

// VoteDigest returns the message a participant signs to submit tx to the
// ledger at address.
func VoteDigest(address common.Address, chainID uint64, tx *types.VoteTx) []byte {
	buf := []byte(voteDomain)
	buf = append(buf, address.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, chainID)
	buf = append(buf, tx.Participant.Bytes()...)
	buf = append(buf, storage.CategoryID(tx.Category).Bytes()...)
	buf = append(buf, tx.Handle.Bytes()...)
	return ethcrypto.Keccak256(buf)
}

// SignVote fills the signature of tx.
func SignVote(signer *ethereum.Signer, address common.Address, chainID uint64, tx *types.VoteTx) error {
	sig, err := signer.Sign(VoteDigest(address, chainID, tx))
	if err != nil {
		return err
	}
	tx.Signature = sig.Bytes()
	return nil
}

// ValidCategory checks that category can be used as a ledger key.
func ValidCategory(category string) error {
	if category == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCategory)
	}
	if len(category) > MaxCategoryLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidCategory, MaxCategoryLength)
	}
	if !utf8.ValidString(category) {
		return fmt.Errorf("%w: not valid utf-8", ErrInvalidCategory)
	}
	return nil
}

// Submit stores the ballot of tx. The check for an existing ballot and the
// write are one atomic step: of concurrent submissions for the same key
// exactly one succeeds and the others get ErrAlreadyVoted.
func (l *Ledger) Submit(_ context.Context, tx *types.VoteTx) (*types.Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil vote")
	}
	if err := ValidCategory(tx.Category); err != nil {
		return nil, err
	}
	sig, err := ethereum.New(tx.Signature)
	if err != nil || !sig.Verify(VoteDigest(l.opts.Address, l.opts.ChainID, tx), tx.Participant) {
		return nil, ErrInvalidSignature
	}
	if tx.Handle == (types.Handle{}) {
		return nil, fmt.Errorf("%w: zero handle", ErrInvalidProof)
	}
	if err := fhe.VerifyInputProof(tx.Handle, tx.InputProof, l.opts.Address, tx.Participant,
		l.opts.ChainID, l.opts.InputVerifiers, l.opts.Threshold); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	hint := tx.Hint
	if !l.opts.PublicHints {
		hint = nil
	}

	ev, err := l.stg.RecordVote(tx.Participant, tx.Category, tx.Handle, hint, tx.Participant, l.opts.Address)
	if err != nil {
		if errors.Is(err, storage.ErrKeyAlreadyExists) {
			return nil, ErrAlreadyVoted
		}
		return nil, fmt.Errorf("record vote: %w", err)
	}
	l.broadcast()

	log.Infow("vote cast",
		"seq", ev.Seq,
		"participant", ev.Participant.Hex(),
		"category", ev.Category,
		"handle", ev.Handle.Hex())
	return &types.Receipt{
		TxHash:      ev.TxHash,
		Seq:         ev.Seq,
		Participant: ev.Participant,
		Category:    ev.Category,
		Handle:      ev.Handle,
		Timestamp:   ev.Timestamp,
	}, nil
}

// HasVoted reports whether participant holds a ballot for category. Unknown
// keys return false.
func (l *Ledger) HasVoted(_ context.Context, participant common.Address, category string) (bool, error) {
	_, err := l.stg.Ballot(participant, category)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Handle returns the handle stored for (participant, category), or
// ErrNotVoted.
func (l *Ledger) Handle(_ context.Context, participant common.Address, category string) (types.Handle, error) {
	b, err := l.stg.Ballot(participant, category)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Handle{}, ErrNotVoted
		}
		return types.Handle{}, err
	}
	return b.Handle, nil
}

// Ballot returns the ballot stored for (participant, category), or
// ErrNotVoted.
func (l *Ledger) Ballot(_ context.Context, participant common.Address, category string) (*types.Ballot, error) {
	b, err := l.stg.Ballot(participant, category)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotVoted
	}
	return b, err
}

// Categories returns the categories participant has voted for.
func (l *Ledger) Categories(_ context.Context, participant common.Address) ([]string, error) {
	ballots, err := l.stg.ParticipantBallots(participant)
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(ballots))
	for _, b := range ballots {
		categories = append(categories, b.Category)
	}
	return categories, nil
}

// IsAllowed reports whether account may decrypt handle.
func (l *Ledger) IsAllowed(handle types.Handle, account common.Address) (bool, error) {
	return l.stg.IsAllowed(handle, account)
}

// Stats returns the public ballot counters. They count ballots, never
// values.
func (l *Ledger) Stats(_ context.Context) (*types.LedgerStats, error) {
	return l.stg.Stats()
}
