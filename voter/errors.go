package voter

import (
	"errors"

	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
)

// ErrSubmissionUnconfirmed is returned when a vote submission hit a transport
// fault and its outcome could not be established before the confirmation
// timeout. Poll HasVoted before treating the vote as failed or succeeded.
var ErrSubmissionUnconfirmed = errors.New("vote submission unconfirmed")

// errNotLanded marks a confirmation poll that found no ballot yet.
var errNotLanded = errors.New("ballot not found yet")

// transient reports whether err may go away by retrying.
func transient(err error) bool {
	return errors.Is(err, ledger.ErrLedgerUnavailable) ||
		errors.Is(err, fhe.ErrEncryptionUnavailable) ||
		errors.Is(err, fhe.ErrRevealUnavailable)
}
