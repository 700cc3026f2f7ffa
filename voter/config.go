package voter

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultAuthorizationValidity = time.Hour
	DefaultMaxRetries            = 5
	DefaultInitialBackoff        = 200 * time.Millisecond
	DefaultMaxBackoff            = 5 * time.Second
	DefaultConfirmTimeout        = 30 * time.Second
	DefaultCacheSize             = 1024
)

// Config configures a Voter.
type Config struct {
	// Contract is the ballot ledger address ciphertexts are bound to.
	Contract common.Address
	ChainID  uint64
	// AuthorityAddress, if set, must sign every decryption response.
	AuthorityAddress common.Address
	// AuthorizationValidity is the window of signed decryption
	// authorizations.
	AuthorizationValidity time.Duration
	// SendHint attaches the plain value hint to submitted votes. The ledger
	// publishes it only if configured to.
	SendHint bool

	// MaxRetries bounds the retries of transient failures.
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// ConfirmTimeout bounds the polling for the outcome of a submission
	// that hit a transport fault.
	ConfirmTimeout time.Duration

	// CacheSize is the size of the reveal, handle and authorization caches.
	CacheSize int
	// Now returns the current time, time.Now if nil.
	Now func() time.Time
}

func (c *Config) setDefaults() error {
	if c.Contract == (common.Address{}) {
		return fmt.Errorf("contract address is required")
	}
	if c.AuthorizationValidity == 0 {
		c.AuthorizationValidity = DefaultAuthorizationValidity
	}
	if c.AuthorizationValidity < time.Minute {
		return fmt.Errorf("authorization validity %s too short", c.AuthorizationValidity)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}
