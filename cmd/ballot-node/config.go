package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/confidential-ballot/db"
	"github.com/vocdoni/confidential-ballot/db/metadb"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/log"
)

const (
	defaultChainID   = 1337
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 9090
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultDatadir   = ".ballot-node" // Will be prefixed with user's home directory
	shutdownTimeout  = 10 * time.Second
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	Ledger  LedgerConfig
	KMS     KMSConfig
	API     APIConfig
	DB      DBConfig
	Log     LogConfig
	PrivKey string `mapstructure:"privkey"`
}

// LedgerConfig holds the ballot ledger configuration
type LedgerConfig struct {
	Address     string   `mapstructure:"address"`
	ChainID     uint64   `mapstructure:"chainid"`
	Verifiers   []string `mapstructure:"verifiers"`
	Threshold   int      `mapstructure:"threshold"`
	PublicHints bool     `mapstructure:"publichints"`
}

// KMSConfig holds the reveal authority configuration
type KMSConfig struct {
	MaxValidity time.Duration `mapstructure:"maxvalidity"`
	ClockSkew   time.Duration `mapstructure:"clockskew"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DisableLogging bool   `mapstructure:"disablelogging"`
}

// DBConfig holds the storage configuration
type DBConfig struct {
	Type    string `mapstructure:"type"`
	Datadir string `mapstructure:"datadir"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("ledger.chainid", defaultChainID)
	v.SetDefault("ledger.threshold", 1)
	v.SetDefault("kms.maxvalidity", fhe.DefaultMaxAuthorizationValidity)
	v.SetDefault("kms.clockskew", fhe.DefaultClockSkew)
	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("db.type", db.TypePebble)
	v.SetDefault("db.datadir", defaultDatadirPath)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)

	flag.StringP("privkey", "k", "", "hex private key of the node signer (generated and stored if empty)")
	flag.StringP("ledger.address", "c", "", "ballot ledger contract address handles are bound to (required)")
	flag.Uint64P("ledger.chainid", "i", defaultChainID, "chain ID the ledger and authorizations are bound to")
	flag.StringSlice("ledger.verifiers", []string{}, "extra trusted input verifier addresses, comma-separated")
	flag.Int("ledger.threshold", 1, "number of distinct verifier signatures required on input proofs")
	flag.Bool("ledger.publichints", false, "publish the plain value hints of submitted votes")
	flag.Duration("kms.maxvalidity", fhe.DefaultMaxAuthorizationValidity, "maximum validity window of a decryption authorization")
	flag.Duration("kms.clockskew", fhe.DefaultClockSkew, "tolerated clock skew when checking authorization windows")
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.Bool("api.disablelogging", false, "disable the API request logging")
	flag.String("db.type", db.TypePebble, fmt.Sprintf("database backend %v", metadb.Types()))
	flag.StringP("db.datadir", "d", defaultDatadirPath, "data directory for the database")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ballot-node %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: ballot-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, BALLOT_LEDGER_ADDRESS or BALLOT_API_PORT\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ballot-node --ledger.address=0x123... --ledger.chainid=11155111\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix("BALLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if !common.IsHexAddress(cfg.Ledger.Address) {
		return fmt.Errorf("a valid ledger address is required (use --ledger.address flag or BALLOT_LEDGER_ADDRESS environment variable)")
	}
	if cfg.Ledger.ChainID == 0 {
		return fmt.Errorf("chain ID must be set")
	}
	for _, addr := range cfg.Ledger.Verifiers {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid verifier address %q", addr)
		}
	}
	if cfg.Ledger.Threshold < 1 || cfg.Ledger.Threshold > len(cfg.Ledger.Verifiers)+1 {
		return fmt.Errorf("threshold must be between 1 and the number of verifiers (%d)", len(cfg.Ledger.Verifiers)+1)
	}
	if cfg.KMS.MaxValidity <= 0 || cfg.KMS.ClockSkew < 0 {
		return fmt.Errorf("invalid authorization window settings")
	}
	if !slices.Contains(metadb.Types(), cfg.DB.Type) {
		return fmt.Errorf("invalid database type %s, available types: %v", cfg.DB.Type, metadb.Types())
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("invalid log level %s", cfg.Log.Level)
	}
	return nil
}
