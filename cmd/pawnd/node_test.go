package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nftpawn/config"
	"nftpawn/crypto"
	"nftpawn/rpc"
	"nftpawn/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ProgramID = crypto.MustGenerateKey().String()
	cfg.Storage = storage.BackendMemory
	cfg.Faucet = config.Faucet{Enabled: true, Token: "t0ken"}
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// post sends body to path, signed with key when it is not nil.
func post(t *testing.T, h http.Handler, path string, body any, key ed25519.PrivateKey) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("X-Faucet-Token", "t0ken")
	if key != nil {
		token, err := rpc.SignRequest(key, http.MethodPost, path, raw, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAssembleServesAPI(t *testing.T) {
	cfg := testConfig(t)
	n, err := assemble(cfg, storage.NewMemDB(), discardLogger())
	require.NoError(t, err)
	defer n.Close()

	program, err := cfg.Program()
	require.NoError(t, err)
	require.Equal(t, program, n.engine.ProgramID())

	rec := httptest.NewRecorder()
	n.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	admin, adminKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	rec = post(t, n.Handler(), "/v1/faucet/mints", rpc.CreateMintRequest{Authority: admin, Kind: "fungible"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var mint rpc.MintView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mint))

	cfg.Pool.FeeBps = 45
	rec = post(t, n.Handler(), "/v1/pools", rpc.ConfigurePoolRequest{Admin: admin, CurrencyMint: mint.ID, LoanAmount: 10}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = post(t, n.Handler(), "/v1/pools", rpc.ConfigurePoolRequest{Admin: admin, CurrencyMint: mint.ID, LoanAmount: 10}, adminKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pool struct {
		FeeBps uint64 `json:"feeBps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	require.Equal(t, config.DefaultFeeBps, pool.FeeBps, "fee is fixed when the node is assembled")
}

func TestAssembleHonoursPauses(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pauses.Pawn = true
	n, err := assemble(cfg, storage.NewMemDB(), discardLogger())
	require.NoError(t, err)
	defer n.Close()
	require.True(t, n.pauses.IsPaused("pawn"))

	admin, adminKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	pool := rpc.ConfigurePoolRequest{
		Admin:        admin,
		CurrencyMint: crypto.MustGenerateKey(),
		LoanAmount:   1,
	}
	rec := post(t, n.Handler(), "/v1/pools", pool, adminKey)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	n.pauses.Set("pawn", false)
	rec = post(t, n.Handler(), "/v1/pools", pool, adminKey)
	require.Equal(t, http.StatusNotFound, rec.Code, "unknown currency mint")
}

func TestAssembleRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProgramID = "not base58!"
	_, err := assemble(cfg, storage.NewMemDB(), discardLogger())
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Pool.FeeBps = 20_000
	_, err = assemble(cfg, storage.NewMemDB(), discardLogger())
	require.Error(t, err)
}

func TestNewNodeOpensBolt(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = storage.BackendBolt
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	n, err := newNode(cfg, discardLogger())
	require.NoError(t, err)
	n.Close()
}
