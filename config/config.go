package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rewardledger/crypto"

	"github.com/BurntSushi/toml"
)

// Config captures the operator-provided settings for the reward ledger
// daemon. The authority address and ledger identity are provisioned
// externally and rotated by editing this file.
type Config struct {
	DataDir          string `toml:"DataDir"`
	LedgerID         string `toml:"LedgerID"`
	AuthorityAddress string `toml:"AuthorityAddress"`
	Environment      string `toml:"Environment"`
	LogFile          string `toml:"LogFile"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = "./rewardledger-data"
	}
	cfg.LedgerID = strings.TrimSpace(cfg.LedgerID)
	cfg.AuthorityAddress = strings.TrimSpace(cfg.AuthorityAddress)
	cfg.Environment = strings.TrimSpace(cfg.Environment)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that the settlement engine cannot operate
// without.
func (c *Config) Validate() error {
	if c.LedgerID == "" {
		return fmt.Errorf("config: LedgerID is required to bind claim signatures to this instance")
	}
	if c.AuthorityAddress != "" {
		if _, err := crypto.DecodeAddress(c.AuthorityAddress); err != nil {
			return fmt.Errorf("config: invalid AuthorityAddress: %w", err)
		}
	}
	return nil
}

// AuthorityBytes decodes the configured authority address into its raw form.
func (c *Config) AuthorityBytes() ([20]byte, error) {
	var out [20]byte
	if strings.TrimSpace(c.AuthorityAddress) == "" {
		return out, fmt.Errorf("config: AuthorityAddress not configured")
	}
	addr, err := crypto.DecodeAddress(c.AuthorityAddress)
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:     "./rewardledger-data",
		LedgerID:    "rewardledger-local",
		Environment: "dev",
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
