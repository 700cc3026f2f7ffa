package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/db/metadb"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/service"
	"github.com/vocdoni/confidential-ballot/storage"
)

// Services holds all the running services
type Services struct {
	Storage *storage.Storage
	Ledger  *ledger.Ledger
	API     *service.APIService
	Monitor *service.VoteMonitor
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting ballot-node", "version", Version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	<-ctx.Done()
	log.Infow("received signal, shutting down")
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	log.Infow("initializing storage", "datadir", cfg.DB.Datadir, "type", cfg.DB.Type)
	database, err := metadb.New(cfg.DB.Type, cfg.DB.Datadir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(database)

	signer, err := nodeSigner(cfg, services.Storage)
	if err != nil {
		return nil, err
	}

	verifiers := []common.Address{signer.Address()}
	for _, addr := range cfg.Ledger.Verifiers {
		verifiers = append(verifiers, common.HexToAddress(addr))
	}
	services.Ledger, err = ledger.New(services.Storage, ledger.Options{
		Address:        common.HexToAddress(cfg.Ledger.Address),
		ChainID:        cfg.Ledger.ChainID,
		InputVerifiers: verifiers,
		Threshold:      cfg.Ledger.Threshold,
		PublicHints:    cfg.Ledger.PublicHints,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	cop, err := fhe.NewCoprocessor(services.Storage, signer, services.Ledger, fhe.CoprocessorConfig{
		ChainID:                  cfg.Ledger.ChainID,
		MaxAuthorizationValidity: cfg.KMS.MaxValidity,
		ClockSkew:                cfg.KMS.ClockSkew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize coprocessor: %w", err)
	}
	log.Infow("ledger initialized",
		"address", services.Ledger.Address().Hex(),
		"chainID", services.Ledger.ChainID(),
		"signer", signer.Address().Hex(),
		"verifiers", len(verifiers),
		"publicHints", cfg.Ledger.PublicHints)

	lastSeq, err := services.Storage.LastSeq()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger position: %w", err)
	}
	services.Monitor = service.NewVoteMonitor(services.Ledger, lastSeq+1)
	if err := services.Monitor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start vote monitor: %w", err)
	}

	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(services.Ledger, cop, cfg.API.Host, cfg.API.Port, cfg.API.DisableLogging)
	services.API.SetNodeInfo(cfg.Ledger.PublicHints, Version)
	if err := services.API.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Info("ballot-node is running, ready to accept votes!")
	return services, nil
}

// nodeSigner returns the configured signer, or the one kept in storage.
func nodeSigner(cfg *Config, stg *storage.Storage) (*ethereum.Signer, error) {
	if cfg.PrivKey != "" {
		signer, err := ethereum.NewSignerFromHex(cfg.PrivKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return signer, nil
	}
	signer, err := stg.FetchOrGenerateSigner()
	if err != nil {
		return nil, fmt.Errorf("failed to load node signer: %w", err)
	}
	return signer, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop services in reverse order of startup
	if services.API != nil {
		services.API.Stop(ctx)
	}
	if services.Monitor != nil {
		services.Monitor.Stop()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
