package api

import "net/http"

// nodeInfo returns the identities a client needs to build and check votes
// GET /info
func (a *API) nodeInfo(w http.ResponseWriter, _ *http.Request) {
	httpWriteJSON(w, a.info)
}
