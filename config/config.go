package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"nftpawn/crypto"
	"nftpawn/storage"
)

const (
	DefaultListenAddress   = ":8080"
	DefaultDataDir         = "./pawn-data"
	DefaultLoanAmount      = uint64(1_000_000_000)
	DefaultFeeBps          = uint64(30)
	DefaultRequestsPerMin  = 600
	DefaultBurst           = 60
	DefaultShutdownSeconds = 10
)

type Config struct {
	ListenAddress   string    `toml:"ListenAddress" yaml:"listenAddress"`
	DataDir         string    `toml:"DataDir" yaml:"dataDir"`
	Storage         string    `toml:"Storage" yaml:"storage"`
	ProgramID       string    `toml:"ProgramID" yaml:"programID"`
	ShutdownSeconds int       `toml:"ShutdownSeconds" yaml:"shutdownSeconds"`
	Pool            Pool      `toml:"pool" yaml:"pool"`
	Pauses          Pauses    `toml:"pauses" yaml:"pauses"`
	RateLimit       RateLimit `toml:"rate_limit" yaml:"rateLimit"`
	Auth            Auth      `toml:"auth" yaml:"auth"`
	Log             Log       `toml:"log" yaml:"log"`
	Telemetry       Telemetry `toml:"telemetry" yaml:"telemetry"`
	Faucet          Faucet    `toml:"faucet" yaml:"faucet"`
}

// Load loads the configuration from the given path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as TOML. A default configuration
// with a freshly generated program id is written when the file is missing.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration populated with defaults and no program id.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Storage) == "" {
		c.Storage = storage.BackendLevelDB
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = DefaultShutdownSeconds
	}
	if c.Pool.LoanAmount == 0 {
		c.Pool.LoanAmount = DefaultLoanAmount
	}
	if c.Pool.FeeBps == 0 {
		c.Pool.FeeBps = DefaultFeeBps
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = DefaultRequestsPerMin
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultBurst
	}
}

// Program decodes the configured program id.
func (c *Config) Program() (crypto.Pubkey, error) {
	pk, err := crypto.ParsePubkey(c.ProgramID)
	if err != nil {
		return crypto.Pubkey{}, fmt.Errorf("program id: %w", err)
	}
	return pk, nil
}

func createDefault(path string) (*Config, error) {
	program, _, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	cfg := Default()
	cfg.ProgramID = program.String()
	cfg.Log.Env = "local"
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if isYAML(path) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	} else if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
