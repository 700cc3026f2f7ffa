package main

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/fhe"
)

func validConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Address:   "0x000000000000000000000000000000000000c0de",
			ChainID:   defaultChainID,
			Threshold: 1,
		},
		KMS: KMSConfig{
			MaxValidity: fhe.DefaultMaxAuthorizationValidity,
			ClockSkew:   fhe.DefaultClockSkew,
		},
		DB:  DBConfig{Type: db.TypePebble},
		Log: LogConfig{Level: defaultLogLevel, Output: defaultLogOutput},
	}
}

func TestValidateConfig(t *testing.T) {
	c := qt.New(t)
	c.Assert(validateConfig(validConfig()), qt.IsNil)

	for name, mutate := range map[string]func(*Config){
		"missing ledger":    func(cfg *Config) { cfg.Ledger.Address = "" },
		"zero chain":        func(cfg *Config) { cfg.Ledger.ChainID = 0 },
		"bad verifier":      func(cfg *Config) { cfg.Ledger.Verifiers = []string{"0x12"} },
		"threshold too big": func(cfg *Config) { cfg.Ledger.Threshold = 2 },
		"zero validity":     func(cfg *Config) { cfg.KMS.MaxValidity = 0 },
		"bad db":            func(cfg *Config) { cfg.DB.Type = "sqlite" },
		"bad log level":     func(cfg *Config) { cfg.Log.Level = "verbose" },
	} {
		cfg := validConfig()
		mutate(cfg)
		c.Assert(validateConfig(cfg), qt.IsNotNil, qt.Commentf("%s", name))
	}

	cfg := validConfig()
	cfg.Ledger.Verifiers = []string{"0x00000000000000000000000000000000000000aa"}
	cfg.Ledger.Threshold = 2
	c.Assert(validateConfig(cfg), qt.IsNil)
}
