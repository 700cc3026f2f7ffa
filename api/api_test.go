package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/confidential-ballot/db/metadb"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/storage"
)

const testChainID = 1337

var testLedgerAddress = common.HexToAddress("0x000000000000000000000000000000000000c0de")

func newTestServer(c *qt.C) (*httptest.Server, *API) {
	stg := storage.New(metadb.NewTest(c.TB))
	signer, err := stg.FetchOrGenerateSigner()
	c.Assert(err, qt.IsNil)
	l, err := ledger.New(stg, ledger.Options{
		Address:        testLedgerAddress,
		ChainID:        testChainID,
		InputVerifiers: []common.Address{signer.Address()},
	})
	c.Assert(err, qt.IsNil)
	cop, err := fhe.NewCoprocessor(stg, signer, l, fhe.CoprocessorConfig{ChainID: testChainID})
	c.Assert(err, qt.IsNil)
	a, err := New(&APIConfig{Ledger: l, Coprocessor: cop, Version: "test"})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	c.Cleanup(srv.Close)
	return srv, a
}

func get(c *qt.C, srv *httptest.Server, path string) (int, []byte) {
	resp, err := http.Get(srv.URL + path)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return resp.StatusCode, body
}

func decodeAPIError(c *qt.C, body []byte) ErrorResponse {
	var e ErrorResponse
	c.Assert(json.Unmarshal(body, &e), qt.IsNil, qt.Commentf("body: %s", body))
	return e
}

func TestNewRequiresComponents(t *testing.T) {
	c := qt.New(t)
	_, err := New(nil)
	c.Assert(err, qt.IsNotNil)
	_, err = New(&APIConfig{})
	c.Assert(err, qt.IsNotNil)
}

func TestPingAndInfo(t *testing.T) {
	c := qt.New(t)
	srv, a := newTestServer(c)

	status, _ := get(c, srv, PingEndpoint)
	c.Assert(status, qt.Equals, http.StatusOK)

	status, body := get(c, srv, InfoEndpoint)
	c.Assert(status, qt.Equals, http.StatusOK)
	var info NodeInfo
	c.Assert(json.Unmarshal(body, &info), qt.IsNil)
	c.Assert(info.Ledger, qt.Equals, testLedgerAddress)
	c.Assert(info.ChainID, qt.Equals, uint64(testChainID))
	c.Assert(info.Relayer, qt.Equals, a.cop.Address())
	c.Assert(info.Version, qt.Equals, "test")
}

func TestRequestID(t *testing.T) {
	c := qt.New(t)
	srv, _ := newTestServer(c)

	resp, err := http.Get(srv.URL + PingEndpoint)
	c.Assert(err, qt.IsNil)
	resp.Body.Close()
	c.Assert(resp.Header.Get(RequestIDHeader), qt.Not(qt.Equals), "")

	req, err := http.NewRequest(http.MethodGet, srv.URL+PingEndpoint, nil)
	c.Assert(err, qt.IsNil)
	const id = "6f9619ff-8b86-d011-b42d-00cf4fc964ff"
	req.Header.Set(RequestIDHeader, id)
	resp, err = http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	resp.Body.Close()
	c.Assert(resp.Header.Get(RequestIDHeader), qt.Equals, id)
}

func TestLedgerReadErrors(t *testing.T) {
	c := qt.New(t)
	srv, _ := newTestServer(c)
	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce").Hex()

	c.Run("malformed address", func(c *qt.C) {
		status, body := get(c, srv, EndpointWithParam(LedgerBallotEndpoint, ParticipantURLParam, "nope")+"?category=Italy")
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(decodeAPIError(c, body).Code, qt.Equals, ErrMalformedAddress.Code)
	})

	c.Run("missing category", func(c *qt.C) {
		status, body := get(c, srv, EndpointWithParam(LedgerBallotEndpoint, ParticipantURLParam, alice))
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(decodeAPIError(c, body).Code, qt.Equals, ErrMalformedParam.Code)
	})

	c.Run("not voted", func(c *qt.C) {
		path := EndpointWithParam(LedgerBallotEndpoint, ParticipantURLParam, alice) + "?category=Italy"
		status, body := get(c, srv, path)
		c.Assert(status, qt.Equals, http.StatusOK)
		var hv HasVotedResponse
		c.Assert(json.Unmarshal(body, &hv), qt.IsNil)
		c.Assert(hv.HasVoted, qt.IsFalse)

		path = EndpointWithParam(LedgerHandleEndpoint, ParticipantURLParam, alice) + "?category=" + url.QueryEscape("São Tomé & Príncipe")
		status, body = get(c, srv, path)
		c.Assert(status, qt.Equals, http.StatusNotFound)
		e := decodeAPIError(c, body)
		c.Assert(e.Code, qt.Equals, ErrNotVoted.Code)
		c.Assert(e.Error, qt.Equals, "User has not voted for this category")
	})

	c.Run("events bad limit", func(c *qt.C) {
		status, body := get(c, srv, LedgerEventsEndpoint+"?limit=0")
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(decodeAPIError(c, body).Code, qt.Equals, ErrMalformedParam.Code)
	})

	c.Run("empty events", func(c *qt.C) {
		status, body := get(c, srv, LedgerEventsEndpoint)
		c.Assert(status, qt.Equals, http.StatusOK)
		var events EventsResponse
		c.Assert(json.Unmarshal(body, &events), qt.IsNil)
		c.Assert(events.Events, qt.HasLen, 0)
	})
}

func TestMalformedBodies(t *testing.T) {
	c := qt.New(t)
	srv, _ := newTestServer(c)

	for _, endpoint := range []string{LedgerVotesEndpoint, RelayerInputsEndpoint, UserDecryptEndpoint} {
		c.Run(endpoint, func(c *qt.C) {
			resp, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(`{"unknown":`))
			c.Assert(err, qt.IsNil)
			defer resp.Body.Close()
			c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
			body, err := io.ReadAll(resp.Body)
			c.Assert(err, qt.IsNil)
			c.Assert(decodeAPIError(c, body).Code, qt.Equals, ErrMalformedBody.Code)
		})
	}

	c.Run("vote with empty category", func(c *qt.C) {
		resp, err := http.Post(srv.URL+LedgerVotesEndpoint, "application/json", strings.NewReader(`{"category":""}`))
		c.Assert(err, qt.IsNil)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		c.Assert(err, qt.IsNil)
		c.Assert(decodeAPIError(c, body).Code, qt.Equals, ErrInvalidCategory.Code)
	})

	c.Run("decrypt without authorization", func(c *qt.C) {
		resp, err := http.Post(srv.URL+UserDecryptEndpoint, "application/json", strings.NewReader(`{}`))
		c.Assert(err, qt.IsNil)
		defer resp.Body.Close()
		c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
	})
}

func TestErrorWrite(t *testing.T) {
	c := qt.New(t)
	rec := httptest.NewRecorder()
	ErrAlreadyVoted.Write(rec)
	c.Assert(rec.Code, qt.Equals, http.StatusConflict)
	e := decodeAPIError(c, rec.Body.Bytes())
	c.Assert(e.Code, qt.Equals, 40018)
	c.Assert(e.Error, qt.Equals, "Already voted for this category")

	wrapped := ErrMalformedParam.Withf("bad %s", "limit")
	c.Assert(wrapped.Error(), qt.Equals, "malformed parameter: bad limit")
	c.Assert(wrapped.Code, qt.Equals, ErrMalformedParam.Code)

	c.Assert(ledgerError(ledger.ErrAlreadyVoted).Code, qt.Equals, ErrAlreadyVoted.Code)
	c.Assert(fheError(fhe.ErrAuthorizationExpired).Code, qt.Equals, ErrAuthorizationExpired.Code)
}
