package client

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-ballot/api"
	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/types"
)

const defaultPollInterval = 2 * time.Second

func ballotPath(endpoint string, participant common.Address) string {
	return api.EndpointWithParam(endpoint, api.ParticipantURLParam, participant.Hex())
}

// Submit sends a vote to the ledger. A transport failure returns
// ledger.ErrLedgerUnavailable: the vote may or may not have been stored.
func (c *HTTPclient) Submit(ctx context.Context, tx *types.VoteTx) (*types.Receipt, error) {
	receipt := &types.Receipt{}
	if err := c.call(ctx, ledger.ErrLedgerUnavailable, http.MethodPost, tx, receipt, nil, api.LedgerVotesEndpoint); err != nil {
		return nil, err
	}
	return receipt, nil
}

// HasVoted reports whether participant voted for category.
func (c *HTTPclient) HasVoted(ctx context.Context, participant common.Address, category string) (bool, error) {
	resp := &api.HasVotedResponse{}
	if err := c.call(ctx, ledger.ErrLedgerUnavailable, http.MethodGet, nil, resp,
		[]string{api.CategoryQueryParam, category}, ballotPath(api.LedgerBallotEndpoint, participant)); err != nil {
		return false, err
	}
	return resp.HasVoted, nil
}

// Handle returns the handle stored for (participant, category), or
// ledger.ErrNotVoted.
func (c *HTTPclient) Handle(ctx context.Context, participant common.Address, category string) (types.Handle, error) {
	resp := &api.HandleResponse{}
	if err := c.call(ctx, ledger.ErrLedgerUnavailable, http.MethodGet, nil, resp,
		[]string{api.CategoryQueryParam, category}, ballotPath(api.LedgerHandleEndpoint, participant)); err != nil {
		return types.Handle{}, err
	}
	return resp.Handle, nil
}

// Ballot returns the ballot stored for (participant, category), or
// ledger.ErrNotVoted.
func (c *HTTPclient) Ballot(ctx context.Context, participant common.Address, category string) (*types.Ballot, error) {
	b := &types.Ballot{}
	if err := c.call(ctx, ledger.ErrLedgerUnavailable, http.MethodGet, nil, b,
		[]string{api.CategoryQueryParam, category}, ballotPath(api.LedgerRecordEndpoint, participant)); err != nil {
		return nil, err
	}
	return b, nil
}

// Categories returns the categories participant voted for.
func (c *HTTPclient) Categories(ctx context.Context, participant common.Address) ([]string, error) {
	resp := &api.CategoriesResponse{}
	if err := c.call(ctx, ledger.ErrLedgerUnavailable, http.MethodGet, nil, resp, nil,
		ballotPath(api.LedgerParticipantEndpoint, participant)); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// Events returns up to limit events with seq >= from.
func (c *HTTPclient) Events(ctx context.Context, from uint64, limit int) (*api.EventsResponse, error) {
	resp := &api.EventsResponse{}
	params := []string{api.FromQueryParam, strconv.FormatUint(from, 10)}
	if limit > 0 {
		params = append(params, api.LimitQueryParam, strconv.Itoa(limit))
	}
	if err := c.call(ctx, ledger.ErrLedgerUnavailable, http.MethodGet, nil, resp, params, api.LedgerEventsEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// Stats returns the ledger counters.
func (c *HTTPclient) Stats(ctx context.Context) (*types.LedgerStats, error) {
	stats := &types.LedgerStats{}
	if err := c.call(ctx, ledger.ErrLedgerUnavailable, http.MethodGet, nil, stats, nil, api.LedgerStatsEndpoint); err != nil {
		return nil, err
	}
	return stats, nil
}

// Subscribe polls the ledger every interval and delivers the events with
// seq >= from in ledger order, until ctx is done. Transport failures are
// logged and retried on the next tick.
func (c *HTTPclient) Subscribe(ctx context.Context, from uint64, interval time.Duration) <-chan types.VoteCast {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	out := make(chan types.VoteCast)
	go func() {
		defer close(out)
		next := from
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			resp, err := c.Events(ctx, next, 0)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if isUnavailable(err) {
					log.Debugw("ledger unavailable, polling again", "from", next, "error", err.Error())
				} else {
					log.Warnw("events polling failed", "from", next, "error", err.Error())
				}
			} else {
				for _, ev := range resp.Events {
					select {
					case out <- ev:
						next = ev.Seq + 1
					case <-ctx.Done():
						return
					}
				}
				if len(resp.Events) > 0 && next <= resp.LastSeq {
					// more pages pending
					continue
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
