package api

import (
	"net/http"

	"github.com/vocdoni/confidential-ballot/fhe"
)

// userDecrypt re-encrypts the plaintext of a handle to the public key of a
// signed authorization
// POST /kms/user-decrypt
func (a *API) userDecrypt(w http.ResponseWriter, r *http.Request) {
	req := &fhe.UserDecryptRequest{}
	if err := decodeBody(r, req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.Authorization == nil {
		ErrMalformedBody.With("missing authorization").Write(w)
		return
	}
	resp, err := a.cop.UserDecrypt(r.Context(), req)
	if err != nil {
		fheError(err).Write(w)
		return
	}
	httpWriteJSON(w, resp)
}
