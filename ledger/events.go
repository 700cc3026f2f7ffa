package ledger

import (
	"context"

	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/types"
)

const subscribeBatch = 256

// Events returns up to limit VoteCast events with seq >= from, in ledger
// write order.
func (l *Ledger) Events(_ context.Context, from uint64, limit int) ([]types.VoteCast, error) {
	return l.stg.Events(from, limit)
}

// broadcast wakes up every subscriber waiting for new events.
func (l *Ledger) broadcast() {
	l.notifyLock.Lock()
	close(l.notify)
	l.notify = make(chan struct{})
	l.notifyLock.Unlock()
}

func (l *Ledger) waitCh() <-chan struct{} {
	l.notifyLock.Lock()
	defer l.notifyLock.Unlock()
	return l.notify
}

// Subscribe delivers every VoteCast event with seq >= from, first replaying
// the stored ones and then the new ones as they are written, until ctx is
// done. The returned channel is closed afterwards.
func (l *Ledger) Subscribe(ctx context.Context, from uint64) <-chan types.VoteCast {
	out := make(chan types.VoteCast)
	if from == 0 {
		from = 1
	}
	go func() {
		defer close(out)
		next := from
		for {
			// take the wait channel before reading so a write between the
			// read and the wait is not missed
			wait := l.waitCh()
			events, err := l.stg.Events(next, subscribeBatch)
			if err != nil {
				log.Warnw("failed to read ledger events", "from", next, "error", err.Error())
			}
			for _, ev := range events {
				select {
				case out <- ev:
					next = ev.Seq + 1
				case <-ctx.Done():
					return
				}
			}
			if len(events) == subscribeBatch {
				continue
			}
			select {
			case <-wait:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
