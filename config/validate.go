package config

import (
	"errors"
	"fmt"
	"strings"

	"nftpawn/storage"
)

const maxFeeBps = 10_000

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddress) == "" {
		errs = append(errs, fmt.Errorf("ListenAddress: required"))
	}
	switch c.Storage {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt:
	default:
		errs = append(errs, fmt.Errorf("Storage: unknown backend %q", c.Storage))
	}
	if _, err := c.Program(); err != nil {
		errs = append(errs, fmt.Errorf("ProgramID: %w", err))
	}
	if c.Pool.LoanAmount == 0 {
		errs = append(errs, fmt.Errorf("pool.LoanAmount: must be positive"))
	}
	if c.Pool.FeeBps > maxFeeBps {
		errs = append(errs, fmt.Errorf("pool.FeeBps: %d exceeds %d", c.Pool.FeeBps, maxFeeBps))
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit: values must not be negative"))
	}
	if c.Auth.ClockSkewSeconds < 0 || c.Auth.MaxTokenAgeSeconds < 0 {
		errs = append(errs, fmt.Errorf("auth: values must not be negative"))
	}
	if c.Faucet.Enabled && strings.TrimSpace(c.Faucet.Token) == "" {
		errs = append(errs, fmt.Errorf("faucet.Token: required when the faucet is enabled"))
	}
	return errors.Join(errs...)
}
