package api

import (
	"net/http"
	"strconv"

	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/types"
)

// submitVote stores an encrypted vote in the ledger
// POST /ledger/votes
func (a *API) submitVote(w http.ResponseWriter, r *http.Request) {
	tx := &types.VoteTx{}
	if err := decodeBody(r, tx); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	receipt, err := a.ledger.Submit(r.Context(), tx)
	if err != nil {
		log.Debugw("vote rejected",
			"participant", tx.Participant.Hex(),
			"category", tx.Category,
			"error", err.Error())
		ledgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, receipt)
}

// hasVoted tells whether the participant voted for the category
// GET /ledger/ballots/{participant}?category=
func (a *API) hasVoted(w http.ResponseWriter, r *http.Request) {
	participant, err := participantParam(r)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	voted, err := a.ledger.HasVoted(r.Context(), participant, category)
	if err != nil {
		ledgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &HasVotedResponse{Participant: participant, Category: category, HasVoted: voted})
}

// handle returns the handle stored for the participant and category
// GET /ledger/ballots/{participant}/handle?category=
func (a *API) handle(w http.ResponseWriter, r *http.Request) {
	participant, err := participantParam(r)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	h, err := a.ledger.Handle(r.Context(), participant, category)
	if err != nil {
		ledgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &HandleResponse{Participant: participant, Category: category, Handle: h})
}

// ballot returns the ballot record stored for the participant and category
// GET /ledger/ballots/{participant}/record?category=
func (a *API) ballot(w http.ResponseWriter, r *http.Request) {
	participant, err := participantParam(r)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	b, err := a.ledger.Ballot(r.Context(), participant, category)
	if err != nil {
		ledgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, b)
}

// categories lists the categories the participant voted for
// GET /ledger/participants/{participant}
func (a *API) categories(w http.ResponseWriter, r *http.Request) {
	participant, err := participantParam(r)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	categories, err := a.ledger.Categories(r.Context(), participant)
	if err != nil {
		ledgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &CategoriesResponse{Participant: participant, Categories: categories})
}

// events returns a page of VoteCast events in ledger order
// GET /ledger/events?from=&limit=
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from uint64
	if s := q.Get(FromQueryParam); s != "" {
		var err error
		if from, err = strconv.ParseUint(s, 10, 64); err != nil {
			ErrMalformedParam.Withf("invalid %s: %v", FromQueryParam, err).Write(w)
			return
		}
	}
	limit := maxEventsPage
	if s := q.Get(LimitQueryParam); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			ErrMalformedParam.Withf("invalid %s %q", LimitQueryParam, s).Write(w)
			return
		}
		limit = min(n, maxEventsPage)
	}
	events, err := a.ledger.Events(r.Context(), from, limit)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	stats, err := a.ledger.Stats(r.Context())
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if events == nil {
		events = []types.VoteCast{}
	}
	httpWriteJSON(w, &EventsResponse{Events: events, LastSeq: stats.LastSeq})
}

// stats returns the ballot counters of the ledger
// GET /ledger/stats
func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.ledger.Stats(r.Context())
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, stats)
}
