package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Info endpoint
	InfoEndpoint = "/info" // GET: ledger, relayer and authority identities

	// Relayer endpoints
	RelayerKeyEndpoint    = "/relayer/key"    // GET: network encryption key
	RelayerInputsEndpoint = "/relayer/inputs" // POST: verify and attest encrypted inputs

	// Ledger endpoints
	ParticipantURLParam       = "participant"                                        // URL parameter for participant address
	CategoryQueryParam        = "category"                                           // URL query param for the category
	FromQueryParam            = "from"                                               // URL query param for the first event seq
	LimitQueryParam           = "limit"                                              // URL query param for the max number of events
	LedgerVotesEndpoint       = "/ledger/votes"                                      // POST: submit a vote
	LedgerBallotEndpoint      = "/ledger/ballots/{" + ParticipantURLParam + "}"      // GET: hasVoted for ?category=
	LedgerHandleEndpoint      = LedgerBallotEndpoint + "/handle"                     // GET: stored handle for ?category=
	LedgerRecordEndpoint      = LedgerBallotEndpoint + "/record"                     // GET: stored ballot for ?category=
	LedgerParticipantEndpoint = "/ledger/participants/{" + ParticipantURLParam + "}" // GET: categories voted
	LedgerEventsEndpoint      = "/ledger/events"                                     // GET: VoteCast events ?from=&limit=
	LedgerStatsEndpoint       = "/ledger/stats"                                      // GET: ballot counters

	// Reveal authority endpoints
	UserDecryptEndpoint = "/kms/user-decrypt" // POST: re-encrypt a plaintext for an authorized user
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
	InfoEndpoint,
}
