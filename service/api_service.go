package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/confidential-ballot/api"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/log"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	API         *api.API
	ledger      *ledger.Ledger
	cop         *fhe.Coprocessor
	mu          sync.Mutex
	running     bool
	host        string
	port        int
	publicHints bool
	version     string
}

// NewAPI creates a new APIService instance serving the given ledger and
// coprocessor.
func NewAPI(l *ledger.Ledger, cop *fhe.Coprocessor, host string, port int, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		ledger: l,
		cop:    cop,
		host:   host,
		port:   port,
	}
}

// SetNodeInfo sets the values reported by the info endpoint.
func (as *APIService) SetNodeInfo(publicHints bool, version string) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.publicHints = publicHints
	as.version = version
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(_ context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.running {
		return fmt.Errorf("service already running")
	}

	var err error
	as.API, err = api.New(&api.APIConfig{
		Host:        as.host,
		Port:        as.port,
		Ledger:      as.ledger,
		Coprocessor: as.cop,
		PublicHints: as.publicHints,
		Version:     as.version,
	})
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.API.Start()
	as.running = true
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop(ctx context.Context) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.running {
		return
	}
	if err := as.API.Stop(ctx); err != nil {
		log.Warnw("failed to stop API server", "error", err.Error())
	}
	as.running = false
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
