package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/types"
)

// DefaultStatsInterval is the period of the ledger statistics summary.
const DefaultStatsInterval = 5 * time.Minute

// VoteMonitor follows the ledger event stream and logs every accepted vote.
// Only public data is logged: the handle, never a value. A statistics
// summary of the ledger is logged every StatsInterval.
type VoteMonitor struct {
	StatsInterval time.Duration

	ledger  *ledger.Ledger
	from    uint64
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	seen    atomic.Uint64
	lastSeq atomic.Uint64
	onEvent func(types.VoteCast)
}

// NewVoteMonitor creates a monitor that starts following the ledger from
// the event with sequence number from.
func NewVoteMonitor(l *ledger.Ledger, from uint64) *VoteMonitor {
	return &VoteMonitor{ledger: l, from: from, StatsInterval: DefaultStatsInterval}
}

// Start begins following the ledger. It returns an error if the service is
// already running.
func (vm *VoteMonitor) Start(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if vm.StatsInterval <= 0 {
		vm.StatsInterval = DefaultStatsInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	vm.cancel = cancel
	vm.done = make(chan struct{})

	events := vm.ledger.Subscribe(ctx, vm.from)
	go vm.monitor(ctx, events)
	log.Infow("vote monitor started", "from", vm.from)
	return nil
}

// Stop halts the monitor and waits for it to return.
func (vm *VoteMonitor) Stop() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.cancel != nil {
		vm.cancel()
		<-vm.done
		vm.cancel = nil
		// resume after the last event seen
		if last := vm.lastSeq.Load(); last >= vm.from {
			vm.from = last + 1
		}
		log.Infow("vote monitor stopped", "seen", vm.seen.Load())
	}
}

// Seen returns the number of events processed since creation.
func (vm *VoteMonitor) Seen() uint64 {
	return vm.seen.Load()
}

func (vm *VoteMonitor) monitor(ctx context.Context, events <-chan types.VoteCast) {
	defer close(vm.done)
	ticker := time.NewTicker(vm.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Debugw("vote cast",
				"seq", ev.Seq,
				"participant", ev.Participant.Hex(),
				"category", ev.Category,
				"handle", ev.Handle.String())
			vm.lastSeq.Store(ev.Seq)
			vm.seen.Add(1)
			if vm.onEvent != nil {
				vm.onEvent(ev)
			}
		case <-ticker.C:
			summary, err := vm.summary(ctx)
			if err != nil {
				log.Warnw("failed to read ledger statistics", "error", err.Error())
				continue
			}
			log.Monitor("ledger statistics summary", summary)
		}
	}
}

// summary returns the fields of the statistics summary: the ledger
// counters plus the events seen by the monitor.
func (vm *VoteMonitor) summary(ctx context.Context) (map[string]any, error) {
	stats, err := vm.ledger.Stats(ctx)
	if err != nil {
		return nil, err
	}
	summary := map[string]any{
		"totalBallots": stats.TotalBallots,
		"lastSeq":      stats.LastSeq,
		"categories":   len(stats.Categories),
		"seen":         vm.seen.Load(),
	}
	for _, cs := range stats.Categories {
		summary["category:"+cs.Category] = cs.Ballots
	}
	return summary, nil
}
