package api

import (
	"net/http"

	"github.com/vocdoni/confidential-ballot/fhe"
)

// networkKey returns the public key inputs are encrypted with
// GET /relayer/key
func (a *API) networkKey(w http.ResponseWriter, r *http.Request) {
	key, err := a.cop.NetworkKey(r.Context())
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, key)
}

// verifyInput verifies encrypted inputs and returns their handles and input
// proof
// POST /relayer/inputs
func (a *API) verifyInput(w http.ResponseWriter, r *http.Request) {
	req := &fhe.InputRequest{}
	if err := decodeBody(r, req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	input, err := a.cop.VerifyInput(r.Context(), req)
	if err != nil {
		fheError(err).Write(w)
		return
	}
	httpWriteJSON(w, input)
}
