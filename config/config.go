// Package config loads the handful of operator-tunable constants this
// program needs: the ones spec.md calls "domain-defined" rather than
// fixing a single value for all deployments.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the tunable constants for a deployment of the stake program.
type Config struct {
	// MinimumDelegationLamports is the lower bound enforced at Delegate,
	// Split, and post-MoveStake.
	MinimumDelegationLamports uint64 `toml:"MinimumDelegationLamports"`

	// NewWarmupCooldownRateEpoch is the epoch at or after which the
	// history engine's rate selector uses 0.25 instead of 0.09.
	NewWarmupCooldownRateEpoch uint64 `toml:"NewWarmupCooldownRateEpoch"`

	// DelinquentReferenceWindow is N: the number of consecutive recent
	// epochs DeactivateDelinquent requires from the reference vote
	// account.
	DelinquentReferenceWindow uint64 `toml:"DelinquentReferenceWindow"`

	// ShortFormCompat enables the generous short-form decoding mode
	// (unrecognized short-form tags treated as DeactivateDelinquent).
	// An empty payload decodes as DeactivateDelinquent whether or not
	// this is set. Default false.
	ShortFormCompat bool `toml:"ShortFormCompat"`
}

// Default returns the canonical mainnet-parity configuration.
func Default() Config {
	return Config{
		MinimumDelegationLamports: 1_000_000_000,
		NewWarmupCooldownRateEpoch: 593,
		DelinquentReferenceWindow:  5,
		ShortFormCompat:            false,
	}
}

// Load reads a TOML configuration file, writing out a default one if the
// path does not yet exist, mirroring the create-default-on-first-run
// behavior of the teacher's config.Load.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the program could not run under.
func (c Config) Validate() error {
	if c.MinimumDelegationLamports == 0 {
		return fmt.Errorf("config: MinimumDelegationLamports must be positive")
	}
	if c.DelinquentReferenceWindow == 0 {
		return fmt.Errorf("config: DelinquentReferenceWindow must be positive")
	}
	return nil
}

func createDefault(path string) (Config, error) {
	cfg := Default()
	f, err := os.Create(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return Config{}, fmt.Errorf("config: encode %s: %w", path, err)
	}
	return cfg, nil
}
