package rpc

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nftpawn/core/state"
	"nftpawn/crypto"
	"nftpawn/native/bank"
	nativecommon "nftpawn/native/common"
	"nftpawn/native/pawn"
	"nftpawn/storage"
)

const testFaucetToken = "local-faucet"

type harness struct {
	t       *testing.T
	handler http.Handler
	engine  *pawn.Engine
	ledger  *bank.Ledger
	keys    map[crypto.Pubkey]ed25519.PrivateKey

	admin    crypto.Pubkey
	borrower crypto.Pubkey
	lender   crypto.Pubkey
	currency crypto.Pubkey
	nft      crypto.Pubkey
}

func newHarness(t *testing.T, limit RateLimit) *harness {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger, err := bank.NewLedger(manager)
	require.NoError(t, err)
	signer, err := ledger.RegisterProgram(crypto.MustGenerateKey())
	require.NoError(t, err)
	engine, err := pawn.NewEngine(manager, ledger, signer)
	require.NoError(t, err)
	srv, err := New(Config{
		Engine:    engine,
		Ledger:    ledger,
		RateLimit: limit,
		Faucet:    Faucet{Enabled: true, Token: testFaucetToken},
	})
	require.NoError(t, err)
	h := &harness{
		t:       t,
		handler: srv.Handler(),
		engine:  engine,
		ledger:  ledger,
		keys:    make(map[crypto.Pubkey]ed25519.PrivateKey),
	}
	h.admin = h.newKey()
	h.borrower = h.newKey()
	h.lender = h.newKey()
	return h
}

func (h *harness) newKey() crypto.Pubkey {
	pk, priv, err := crypto.GenerateKey()
	require.NoError(h.t, err)
	h.keys[pk] = priv
	return pk
}

func (h *harness) encode(body any) []byte {
	h.t.Helper()
	if body == nil {
		return nil
	}
	raw, err := json.Marshal(body)
	require.NoError(h.t, err)
	return raw
}

// token signs a request for path with the private key of signer.
func (h *harness) token(signer crypto.Pubkey, method, path string, body any, issued time.Time) string {
	h.t.Helper()
	priv, ok := h.keys[signer]
	require.True(h.t, ok, "no private key for %s", signer)
	token, err := SignRequest(priv, method, path, h.encode(body), issued)
	require.NoError(h.t, err)
	return token
}

// as sends a request signed by signer.
func (h *harness) as(signer crypto.Pubkey, method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(method, path, body, map[string]string{
		"Authorization": "Bearer " + h.token(signer, method, path, body, time.Now()),
	})
}

func (h *harness) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(h.encode(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, req)
	return recorder
}

func (h *harness) faucet(method, path string, body any) *httptest.ResponseRecorder {
	return h.do(method, path, body, map[string]string{faucetHeader: testFaucetToken})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seed creates both assets through the faucet, funds the lender and gives
// the borrower the collateral.
func (h *harness) seed(lenderFunds uint64) {
	t := h.t
	rec := h.faucet(http.MethodPost, "/v1/faucet/mints", CreateMintRequest{Authority: h.admin, Kind: "fungible", Decimals: 6})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	h.currency = decode[MintView](t, rec).ID

	rec = h.faucet(http.MethodPost, "/v1/faucet/mints", CreateMintRequest{Authority: h.admin, Kind: "non_fungible"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	nft := decode[MintView](t, rec)
	require.Equal(t, uint8(0), nft.Decimals)
	h.nft = nft.ID

	rec = h.faucet(http.MethodPost, "/v1/faucet/mints/"+h.nft.String()+"/issue", IssueRequest{Authority: h.admin, To: h.borrower, Amount: 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = h.faucet(http.MethodPost, "/v1/faucet/mints/"+h.currency.String()+"/issue", IssueRequest{Authority: h.admin, To: h.lender, Amount: lenderFunds})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (h *harness) balance(owner, mint crypto.Pubkey) uint64 {
	rec := h.do(http.MethodGet, "/v1/ledger/balances/"+owner.String()+"/"+mint.String(), nil, nil)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[BalanceResponse](h.t, rec).Amount
}

func (h *harness) loanPath(suffix string) string {
	return "/v1/loans/" + h.borrower.String() + "/" + h.nft.String() + suffix
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.seed(10_000)

	rec := h.as(h.admin, http.MethodPost, "/v1/pools", ConfigurePoolRequest{Admin: h.admin, CurrencyMint: h.currency, LoanAmount: 1_000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pool := decode[pawn.PoolConfig](t, rec)
	require.Equal(t, uint64(1_000), pool.LoanAmount)
	require.Equal(t, pawn.DefaultFeeBps, pool.FeeBps)

	rec = h.as(h.admin, http.MethodPost, "/v1/pools", ConfigurePoolRequest{Admin: h.admin, CurrencyMint: h.currency, LoanAmount: 1_000})
	require.Equal(t, http.StatusConflict, rec.Code)

	deposit := DepositRequest{Admin: h.admin, Borrower: h.borrower, Collateral: h.nft}
	rec = h.as(h.borrower, http.MethodPost, "/v1/loans", deposit)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decode[pawn.Loan](t, rec)
	require.True(t, loan.Active)
	require.Equal(t, uint64(1), loan.Cycle)

	rec = h.as(h.borrower, http.MethodPost, "/v1/loans", deposit)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodGet, h.loanPath("/addresses"), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	addrs := decode[AddressesResponse](t, rec)
	require.Equal(t, loan.Address, addrs.Loan)
	require.Equal(t, h.engine.ProgramID(), addrs.ProgramID)
	require.Equal(t, uint64(1), h.balance(addrs.Escrow, h.nft))

	rec = h.as(h.borrower, http.MethodPost, h.loanPath("/repay"), nil)
	require.Equal(t, http.StatusConflict, rec.Code, "repay before fund")

	rec = h.as(h.lender, http.MethodPost, h.loanPath("/fund"), LenderRequest{Lender: h.lender})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	custody := decode[pawn.EscrowCustody](t, rec)
	require.Equal(t, h.lender, custody.Lender)
	require.Equal(t, uint64(1_000), h.balance(h.borrower, h.currency))

	rec = h.as(h.lender, http.MethodPost, h.loanPath("/fund"), LenderRequest{Lender: h.lender})
	require.Equal(t, http.StatusConflict, rec.Code)

	// 1_000 principal at 30 bps owes 1_003.
	rec = h.faucet(http.MethodPost, "/v1/faucet/mints/"+h.currency.String()+"/issue", IssueRequest{Authority: h.admin, To: h.borrower, Amount: 3})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.as(h.borrower, http.MethodPost, h.loanPath("/repay"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	repayment := decode[pawn.Repayment](t, rec)
	require.Equal(t, uint64(3), repayment.Fee)
	require.Equal(t, uint64(1_003), repayment.Total)
	require.Equal(t, pawn.LoanStatusRepaid, repayment.Loan.Status)
	require.Equal(t, uint64(1), h.balance(h.borrower, h.nft))

	rec = h.as(h.borrower, http.MethodPost, h.loanPath("/collect"), LenderRequest{Lender: h.borrower})
	require.Equal(t, http.StatusForbidden, rec.Code, "only the funding lender collects")

	rec = h.as(h.lender, http.MethodPost, h.loanPath("/collect"), LenderRequest{Lender: h.lender})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, uint64(10_003), h.balance(h.lender, h.currency))

	rec = h.as(h.lender, http.MethodPost, h.loanPath("/collect"), LenderRequest{Lender: h.lender})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, h.loanPath("/release"), nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodGet, "/v1/ledger/receipts?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	receipts := decode[[]ReceiptView](t, rec)
	require.Len(t, receipts, 2)
	require.Equal(t, uint64(1), receipts[0].Sequence)

	rec = h.do(http.MethodGet, "/v1/ledger/receipts?after=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rest := decode[[]ReceiptView](t, rec)
	require.NotEmpty(t, rest)
	require.Equal(t, uint64(3), rest[0].Sequence)
}

func TestTunePoolRequiresAdmin(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.seed(1)
	rec := h.as(h.admin, http.MethodPost, "/v1/pools", ConfigurePoolRequest{Admin: h.admin, CurrencyMint: h.currency, LoanAmount: 500})
	require.Equal(t, http.StatusCreated, rec.Code)

	fee := uint64(100)
	path := "/v1/pools/" + h.admin.String()
	rec = h.as(h.lender, http.MethodPatch, path, TunePoolRequest{Caller: h.lender, FeeBps: &fee})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.as(h.lender, http.MethodPatch, path, TunePoolRequest{Caller: h.admin, FeeBps: &fee})
	require.Equal(t, http.StatusForbidden, rec.Code, "caller must sign")

	rec = h.as(h.admin, http.MethodPatch, path, TunePoolRequest{Caller: h.admin, FeeBps: &fee})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, fee, decode[pawn.PoolConfig](t, rec).FeeBps)

	rec = h.do(http.MethodGet, "/v1/pools/"+h.admin.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(500), decode[pawn.PoolConfig](t, rec).LoanAmount)
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.seed(1)

	rec := h.do(http.MethodGet, "/v1/pools/not-a-key", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/v1/pools/"+crypto.MustGenerateKey().String(), nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.as(h.borrower, http.MethodPost, "/v1/loans", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.as(h.borrower, http.MethodPost, "/v1/loans", map[string]string{"unknown": "field"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.as(h.borrower, http.MethodPost, "/v1/loans", DepositRequest{Admin: h.admin, Collateral: h.nft})
	require.Equal(t, http.StatusForbidden, rec.Code, "zero borrower")

	rec = h.do(http.MethodGet, h.loanPath(""), nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/v1/ledger/mints/"+crypto.MustGenerateKey().String(), nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/v1/ledger/receipts?limit=0", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFaucetRequiresToken(t *testing.T) {
	h := newHarness(t, RateLimit{})
	req := CreateMintRequest{Authority: h.admin, Kind: "fungible"}

	rec := h.do(http.MethodPost, "/v1/faucet/mints", req, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(http.MethodPost, "/v1/faucet/mints", req, map[string]string{faucetHeader: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.faucet(http.MethodPost, "/v1/faucet/mints", CreateMintRequest{Authority: h.admin, Kind: "weird"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	id := crypto.MustGenerateKey()
	rec = h.faucet(http.MethodPost, "/v1/faucet/mints", CreateMintRequest{ID: id, Authority: h.admin, Kind: "non_fungible"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, id, decode[MintView](t, rec).ID)

	rec = h.faucet(http.MethodPost, "/v1/faucet/mints", CreateMintRequest{ID: id, Authority: h.admin, Kind: "non_fungible"})
	require.Equal(t, http.StatusConflict, rec.Code)

	issue := IssueRequest{Authority: h.admin, To: h.borrower, Amount: 1}
	rec = h.faucet(http.MethodPost, "/v1/faucet/mints/"+id.String()+"/issue", issue)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = h.faucet(http.MethodPost, "/v1/faucet/mints/"+id.String()+"/issue", issue)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "non-fungible supply is capped at one")
}

func TestFaucetDisabled(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	ledger, err := bank.NewLedger(manager)
	require.NoError(t, err)
	signer, err := ledger.RegisterProgram(crypto.MustGenerateKey())
	require.NoError(t, err)
	engine, err := pawn.NewEngine(manager, ledger, signer)
	require.NoError(t, err)

	_, err = New(Config{Engine: engine, Ledger: ledger, Faucet: Faucet{Enabled: true}})
	require.Error(t, err)

	srv, err := New(Config{Engine: engine, Ledger: ledger})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/faucet/mints", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(faucetHeader, "anything")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPausedEngineReturnsUnavailable(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.seed(1)
	h.engine.SetPauses(nativecommon.NewPauseSet("pawn"))

	rec := h.as(h.admin, http.MethodPost, "/v1/pools", ConfigurePoolRequest{Admin: h.admin, CurrencyMint: h.currency, LoanAmount: 1})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, RateLimit{})
	rec := h.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	h.do(http.MethodGet, "/v1/pools/"+crypto.MustGenerateKey().String(), nil, nil)
	rec = h.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "nftpawn_api_requests_total")
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nativecommon.ErrModulePaused, http.StatusServiceUnavailable},
		{pawn.ErrUnauthorized, http.StatusForbidden},
		{bank.ErrUnauthorized, http.StatusForbidden},
		{pawn.ErrMathOverflow, http.StatusUnprocessableEntity},
		{pawn.ErrBorrowerNotFound, http.StatusNotFound},
		{pawn.ErrLoanIsActive, http.StatusConflict},
		{pawn.ErrLoanIsNotActive, http.StatusConflict},
		{bank.ErrInsufficientBalance, http.StatusConflict},
		{pawn.ErrInvalidCollateral, http.StatusBadRequest},
		{errEmptyBody, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
