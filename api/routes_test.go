package api

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestEndpointWithParam(t *testing.T) {
	c := qt.New(t)
	addr := "0x00000000000000000000000000000000000a11ce"

	c.Assert(EndpointWithParam(LedgerHandleEndpoint, ParticipantURLParam, addr),
		qt.Equals, "/ledger/ballots/"+addr+"/handle")

	withQuery := EndpointWithParam(LedgerBallotEndpoint, ParticipantURLParam, addr)
	withQuery = EndpointWithParam(withQuery, CategoryQueryParam, "São Tomé & Príncipe")
	c.Assert(withQuery, qt.Equals, "/ledger/ballots/"+addr+"?category=S%C3%A3o+Tom%C3%A9+%26+Pr%C3%ADncipe")

	page := EndpointWithParam(LedgerEventsEndpoint, FromQueryParam, "3")
	page = EndpointWithParam(page, LimitQueryParam, "10")
	c.Assert(page, qt.Equals, "/ledger/events?from=3&limit=10")
}
