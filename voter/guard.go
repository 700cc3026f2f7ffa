package voter

import (
	"context"
	"sync"

	"github.com/vocdoni/confidential-ballot/session"
)

// keyGuard serializes operations per session key. Waiting for a key can be
// abandoned through the context.
type keyGuard struct {
	mu   sync.Mutex
	keys map[session.Key]*guardEntry
}

type guardEntry struct {
	sem  chan struct{}
	refs int
}

func newKeyGuard() *keyGuard {
	return &keyGuard{keys: make(map[session.Key]*guardEntry)}
}

// lock blocks until key is free or ctx is done. The returned function
// releases the key.
func (g *keyGuard) lock(ctx context.Context, key session.Key) (func(), error) {
	g.mu.Lock()
	e, ok := g.keys[key]
	if !ok {
		e = &guardEntry{sem: make(chan struct{}, 1)}
		g.keys[key] = e
	}
	e.refs++
	g.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			g.release(key, e)
		}, nil
	case <-ctx.Done():
		g.release(key, e)
		return nil, ctx.Err()
	}
}

func (g *keyGuard) release(key session.Key, e *guardEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(g.keys, key)
	}
}
