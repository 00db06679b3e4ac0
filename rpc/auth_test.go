package rpc

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func (h *harness) openPool(amount uint64) {
	h.t.Helper()
	rec := h.as(h.admin, http.MethodPost, "/v1/pools", ConfigurePoolRequest{Admin: h.admin, CurrencyMint: h.currency, LoanAmount: amount})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestDepositRequiresBorrowerSignature(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.seed(10_000)
	h.openPool(1_000)
	deposit := DepositRequest{Admin: h.admin, Borrower: h.borrower, Collateral: h.nft}

	rec := h.do(http.MethodPost, "/v1/loans", deposit, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = h.as(h.lender, http.MethodPost, "/v1/loans", deposit)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, uint64(1), h.balance(h.borrower, h.nft), "collateral must not move")

	rec = h.as(h.borrower, http.MethodPost, "/v1/loans", deposit)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestFundRequiresLenderSignature(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.seed(10_000)
	h.openPool(1_000)
	rec := h.as(h.borrower, http.MethodPost, "/v1/loans", DepositRequest{Admin: h.admin, Borrower: h.borrower, Collateral: h.nft})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	fund := LenderRequest{Lender: h.lender}
	rec = h.do(http.MethodPost, h.loanPath("/fund"), fund, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.as(h.borrower, http.MethodPost, h.loanPath("/fund"), fund)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, uint64(10_000), h.balance(h.lender, h.currency), "lender must not be debited")
	require.Equal(t, uint64(0), h.balance(h.borrower, h.currency))

	rec = h.as(h.lender, http.MethodPost, h.loanPath("/fund"), fund)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, uint64(9_000), h.balance(h.lender, h.currency))

	rec = h.as(h.lender, http.MethodPost, h.loanPath("/repay"), nil)
	require.Equal(t, http.StatusForbidden, rec.Code, "only the borrower repays")
}

func TestRequestTokenBinding(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.seed(10_000)
	h.openPool(1_000)
	rec := h.as(h.borrower, http.MethodPost, "/v1/loans", DepositRequest{Admin: h.admin, Borrower: h.borrower, Collateral: h.nft})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	fund := LenderRequest{Lender: h.lender}
	now := time.Now()

	// Signed for another route.
	token := h.token(h.lender, http.MethodPost, h.loanPath("/collect"), fund, now)
	rec = h.do(http.MethodPost, h.loanPath("/fund"), fund, bearer(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Signed for another body.
	token = h.token(h.lender, http.MethodPost, h.loanPath("/fund"), LenderRequest{}, now)
	rec = h.do(http.MethodPost, h.loanPath("/fund"), fund, bearer(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token = h.token(h.lender, http.MethodPost, h.loanPath("/fund"), fund, now.Add(-10*time.Minute))
	rec = h.do(http.MethodPost, h.loanPath("/fund"), fund, bearer(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code, "expired")

	rec = h.do(http.MethodPost, h.loanPath("/fund"), fund, bearer("not-a-jwt"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token = h.token(h.lender, http.MethodPost, h.loanPath("/fund"), fund, now)
	rec = h.do(http.MethodPost, h.loanPath("/fund"), fund, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.do(http.MethodPost, h.loanPath("/fund"), fund, bearer(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code, "replayed token")
	require.Contains(t, rec.Body.String(), errTokenReplayed.Error())
}

func TestReleaseNeedsNoSignature(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.seed(1)
	rec := h.do(http.MethodPost, h.loanPath("/release"), nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignRequestRejectsBadKey(t *testing.T) {
	_, err := SignRequest(nil, http.MethodPost, "/v1/loans", nil, time.Now())
	require.Error(t, err)
}

func TestReplayCacheForgetsExpiredTokens(t *testing.T) {
	auth := newAuthenticator(Auth{})
	now := time.Unix(1_700_000_000, 0)
	auth.clockNow = func() time.Time { return now }

	require.True(t, auth.remember("a|1", now.Add(time.Minute)))
	require.False(t, auth.remember("a|1", now.Add(time.Minute)))
	require.True(t, auth.remember("b|1", now.Add(time.Minute)))

	now = now.Add(time.Minute + defaultClockSkew + time.Second)
	require.True(t, auth.remember("b|2", now.Add(time.Minute)))
	require.Len(t, auth.seen, 1)
}

func TestAuthLimitsAreClamped(t *testing.T) {
	auth := newAuthenticator(Auth{ClockSkew: time.Hour, MaxTokenAge: time.Hour})
	require.Equal(t, maxClockSkew, auth.skew)
	require.Equal(t, maxTokenAge, auth.maxAge)

	auth = newAuthenticator(Auth{})
	require.Equal(t, defaultClockSkew, auth.skew)
	require.Equal(t, defaultMaxTokenAge, auth.maxAge)
	require.Equal(t, "", extractBearer("Basic abc"))
	require.Equal(t, "tok", extractBearer("bearer tok"))
}
