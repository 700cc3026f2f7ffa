//nolint:lll
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400 or 404 (or even 204), whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// The initial list of errors were more or less grouped by topic, but the list grows with time in a random fashion.
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 4010, 4011 and 4013 exist, 4012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status,
// for example the fact that Code 4045 returns HTTP Status 404 Not Found is just a coincidence
//
// Do note that HTTPstatus 204 No Content implies the response body will be empty,
// so the Code and Message will actually be discarded, never sent to the client
var (
	ErrResourceNotFound       = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody          = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature       = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedParam         = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedAddress       = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrAlreadyVoted           = Error{Code: 40018, HTTPstatus: http.StatusConflict, Err: ledger.ErrAlreadyVoted}
	ErrInvalidChainID         = Error{Code: 40021, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("not supported chain Id")}
	ErrNotVoted               = Error{Code: 40023, HTTPstatus: http.StatusNotFound, Err: ledger.ErrNotVoted}
	ErrInvalidCategory        = Error{Code: 40024, HTTPstatus: http.StatusBadRequest, Err: ledger.ErrInvalidCategory}
	ErrInvalidInputProof      = Error{Code: 40025, HTTPstatus: http.StatusBadRequest, Err: ledger.ErrInvalidProof}
	ErrInvalidCiphertextInput = Error{Code: 40026, HTTPstatus: http.StatusBadRequest, Err: fhe.ErrInvalidInputProof}
	ErrAuthorizationExpired   = Error{Code: 40027, HTTPstatus: http.StatusUnauthorized, Err: fhe.ErrAuthorizationExpired}
	ErrAuthorizationRejected  = Error{Code: 40028, HTTPstatus: http.StatusForbidden, Err: fhe.ErrAuthorizationRejected}
	ErrVoteNotSigned          = Error{Code: 40029, HTTPstatus: http.StatusBadRequest, Err: ledger.ErrInvalidSignature}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)

// ledgerError returns the API error for an error of the ledger.
func ledgerError(err error) Error {
	switch {
	case errors.Is(err, ledger.ErrAlreadyVoted):
		return ErrAlreadyVoted
	case errors.Is(err, ledger.ErrNotVoted):
		return ErrNotVoted
	case errors.Is(err, ledger.ErrInvalidCategory):
		return ErrInvalidCategory.withCause(err)
	case errors.Is(err, ledger.ErrInvalidProof):
		return ErrInvalidInputProof.withCause(err)
	case errors.Is(err, ledger.ErrInvalidSignature):
		return ErrVoteNotSigned
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}

// fheError returns the API error for an error of the coprocessor.
func fheError(err error) Error {
	switch {
	case errors.Is(err, fhe.ErrInvalidInputProof):
		return ErrInvalidCiphertextInput.withCause(err)
	case errors.Is(err, fhe.ErrAuthorizationExpired):
		return ErrAuthorizationExpired
	case errors.Is(err, fhe.ErrAuthorizationRejected):
		return ErrAuthorizationRejected.withCause(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}

// withCause returns a copy of e carrying err, which already wraps e.Err.
func (e Error) withCause(err error) Error {
	return Error{Err: err, Code: e.Code, HTTPstatus: e.HTTPstatus}
}
