package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/log"
)

const (
	maxRequestBodyLog = 512     // Maximum length of request body to log
	maxRequestBody    = 1 << 20 // Maximum accepted request body
	maxEventsPage     = 1000    // Maximum number of events returned per request
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host        string
	Port        int
	Ledger      *ledger.Ledger
	Coprocessor *fhe.Coprocessor
	PublicHints bool
	Version     string
}

// API type represents the API HTTP server exposing the ballot ledger, the
// input relayer and the reveal authority.
type API struct {
	router *chi.Mux
	ledger *ledger.Ledger
	cop    *fhe.Coprocessor
	info   NodeInfo
	addr   string
	server *http.Server
}

// New creates a new API instance with the given configuration. The server
// is not started until Start is called.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Ledger == nil {
		return nil, fmt.Errorf("missing ledger instance")
	}
	if conf.Coprocessor == nil {
		return nil, fmt.Errorf("missing coprocessor instance")
	}
	a := &API{
		ledger: conf.Ledger,
		cop:    conf.Coprocessor,
		addr:   net.JoinHostPort(conf.Host, fmt.Sprint(conf.Port)),
		info: NodeInfo{
			ChainID:     conf.Ledger.ChainID(),
			Ledger:      conf.Ledger.Address(),
			Relayer:     conf.Coprocessor.Address(),
			Authority:   conf.Coprocessor.Address(),
			PublicHints: conf.PublicHints,
			Version:     conf.Version,
		},
	}
	a.initRouter()
	return a, nil
}

// Start serves the API in the background.
func (a *API) Start() {
	a.server = &http.Server{
		Addr:              a.addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "addr", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", InfoEndpoint, "method", "GET")
	a.router.Get(InfoEndpoint, a.nodeInfo)
	// relayer endpoints
	log.Infow("register handler", "endpoint", RelayerKeyEndpoint, "method", "GET")
	a.router.Get(RelayerKeyEndpoint, a.networkKey)
	log.Infow("register handler", "endpoint", RelayerInputsEndpoint, "method", "POST")
	a.router.Post(RelayerInputsEndpoint, a.verifyInput)
	// ledger endpoints
	log.Infow("register handler", "endpoint", LedgerVotesEndpoint, "method", "POST")
	a.router.Post(LedgerVotesEndpoint, a.submitVote)
	log.Infow("register handler", "endpoint", LedgerBallotEndpoint, "method", "GET", "parameters", CategoryQueryParam)
	a.router.Get(LedgerBallotEndpoint, a.hasVoted)
	log.Infow("register handler", "endpoint", LedgerHandleEndpoint, "method", "GET", "parameters", CategoryQueryParam)
	a.router.Get(LedgerHandleEndpoint, a.handle)
	log.Infow("register handler", "endpoint", LedgerRecordEndpoint, "method", "GET", "parameters", CategoryQueryParam)
	a.router.Get(LedgerRecordEndpoint, a.ballot)
	log.Infow("register handler", "endpoint", LedgerParticipantEndpoint, "method", "GET")
	a.router.Get(LedgerParticipantEndpoint, a.categories)
	log.Infow("register handler", "endpoint", LedgerEventsEndpoint, "method", "GET", "parameters", "from,limit")
	a.router.Get(LedgerEventsEndpoint, a.events)
	log.Infow("register handler", "endpoint", LedgerStatsEndpoint, "method", "GET")
	a.router.Get(LedgerStatsEndpoint, a.stats)
	// reveal authority endpoints
	log.Infow("register handler", "endpoint", UserDecryptEndpoint, "method", "POST")
	a.router.Post(UserDecryptEndpoint, a.userDecrypt)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(requestIDMiddleware)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
