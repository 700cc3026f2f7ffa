package ledger

import "errors"

var (
	// ErrAlreadyVoted is returned when the (participant, category) key holds
	// a ballot already. The stored record is left untouched.
	ErrAlreadyVoted = errors.New("Already voted for this category")
	// ErrNotVoted is returned when reading the handle of a key that holds no
	// ballot.
	ErrNotVoted = errors.New("User has not voted for this category")
	// ErrInvalidProof is returned when the input proof does not attest the
	// handle for this ledger and participant.
	ErrInvalidProof = errors.New("invalid input proof")
	// ErrInvalidCategory is returned for an empty or oversized category.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidSignature is returned when the vote is not signed by its
	// participant.
	ErrInvalidSignature = errors.New("vote not signed by participant")
	// ErrLedgerUnavailable is returned by remote ledgers when the outcome of
	// a call is unknown because of a transport fault.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)
