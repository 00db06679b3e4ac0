package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nftpawn/crypto"
	"nftpawn/storage"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pawnd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	require.Equal(t, storage.BackendLevelDB, cfg.Storage)
	require.Equal(t, DefaultFeeBps, cfg.Pool.FeeBps)

	program, err := cfg.Program()
	require.NoError(t, err)
	require.False(t, program.IsZero())

	// The persisted file must round trip to the same program id.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ProgramID, again.ProgramID)
}

func TestLoadParsesTOML(t *testing.T) {
	program := crypto.MustGenerateKey()
	path := filepath.Join(t.TempDir(), "pawnd.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/pawn"
Storage = "bolt"
ProgramID = "` + program.String() + `"

[pool]
LoanAmount = 5000
FeeBps = 125

[pauses]
Pawn = true

[rate_limit]
RequestsPerMinute = 30
Burst = 5

[log]
Env = "staging"
File = "/var/log/pawnd.log"
MaxSizeMB = 50

[faucet]
Enabled = true
Token = "dev-token"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, storage.BackendBolt, cfg.Storage)
	require.Equal(t, uint64(5000), cfg.Pool.LoanAmount)
	require.Equal(t, uint64(125), cfg.Pool.FeeBps)
	require.Equal(t, []string{"pawn"}, cfg.Pauses.Modules())
	require.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	require.Equal(t, "staging", cfg.Log.Env)
	require.Equal(t, DefaultShutdownSeconds, cfg.ShutdownSeconds)
	require.True(t, cfg.Faucet.Enabled)
}

func TestLoadParsesYAML(t *testing.T) {
	program := crypto.MustGenerateKey()
	path := filepath.Join(t.TempDir(), "pawnd.yaml")
	contents := `listenAddress: ":9100"
storage: memory
programID: "` + program.String() + `"
pool:
  loanAmount: 42
telemetry:
  traces: true
  endpoint: collector:4318
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.ListenAddress)
	require.Equal(t, storage.BackendMemory, cfg.Storage)
	require.Equal(t, uint64(42), cfg.Pool.LoanAmount)
	require.Equal(t, DefaultFeeBps, cfg.Pool.FeeBps)
	require.True(t, cfg.Telemetry.Traces)
	require.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
}

func TestDefaultYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pawnd.yml")
	cfg, err := Load(path)
	require.NoError(t, err)
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadRejectsUnknownTOMLField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pawnd.toml")
	require.NoError(t, os.WriteFile(path, []byte("Bogus = 1\n"), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown field")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ProgramID = crypto.MustGenerateKey().String()
	require.NoError(t, cfg.Validate())

	cfg.Storage = "postgres"
	cfg.Pool.FeeBps = 10_001
	cfg.Faucet.Enabled = true
	cfg.ProgramID = "not-base58-0OIl"
	cfg.Auth.MaxTokenAgeSeconds = -1
	err := cfg.Validate()
	require.ErrorContains(t, err, "Storage")
	require.ErrorContains(t, err, "FeeBps")
	require.ErrorContains(t, err, "faucet.Token")
	require.ErrorContains(t, err, "ProgramID")
	require.ErrorContains(t, err, "auth")
}
