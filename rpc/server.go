// Package rpc exposes the loan engine and the asset ledger over HTTP.
//
// Requests that debit an account carry a bearer token signed with that
// account's ed25519 key (see SignRequest). Reads, collateral release and the
// token-guarded faucet need no signature.
package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftpawn/crypto"
	"nftpawn/native/bank"
	"nftpawn/native/pawn"
)

const (
	moduleName      = "pawn"
	maxBodyBytes    = 1 << 20
	faucetHeader    = "X-Faucet-Token"
	defaultPageSize = 100
)

// Faucet enables the development mint endpoints.
type Faucet struct {
	Enabled bool
	Token   string
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine    *pawn.Engine
	Ledger    *bank.Ledger
	Logger    *slog.Logger
	RateLimit RateLimit
	Auth      Auth
	Faucet    Faucet
}

// Server serves the pawn HTTP API.
type Server struct {
	engine  *pawn.Engine
	ledger  *bank.Ledger
	logger  *slog.Logger
	limiter *RateLimiter
	auth    *authenticator
	faucet  Faucet

	router http.Handler
}

// New constructs the server and its router.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("rpc: engine required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("rpc: ledger required")
	}
	if cfg.Faucet.Enabled && strings.TrimSpace(cfg.Faucet.Token) == "" {
		return nil, errors.New("rpc: faucet token required when faucet is enabled")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		engine:  cfg.Engine,
		ledger:  cfg.Ledger,
		logger:  logger.With("component", "rpc"),
		limiter: NewRateLimiter(cfg.RateLimit),
		auth:    newAuthenticator(cfg.Auth),
		faucet:  cfg.Faucet,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.limiter.Middleware(moduleName))
		api.Use(observe(moduleName, s.logger))

		signed := api.With(s.authenticate)
		signed.Post("/pools", s.ConfigurePool)
		api.Get("/pools/{admin}", s.GetPool)
		signed.Patch("/pools/{admin}", s.TunePool)

		signed.Post("/loans", s.Deposit)
		api.Route("/loans/{borrower}/{collateral}", func(loan chi.Router) {
			loan.Get("/", s.GetLoan)
			loan.Get("/custody", s.GetCustody)
			loan.Get("/addresses", s.GetAddresses)
			loan.Post("/release", s.Release)

			signedLoan := loan.With(s.authenticate)
			signedLoan.Post("/fund", s.Fund)
			signedLoan.Post("/repay", s.Repay)
			signedLoan.Post("/collect", s.Collect)
		})

		api.Get("/ledger/balances/{owner}/{mint}", s.GetBalance)
		api.Get("/ledger/mints/{mint}", s.GetMint)
		api.Get("/ledger/receipts", s.ListReceipts)

		if s.faucet.Enabled {
			api.Group(func(faucet chi.Router) {
				faucet.Use(s.requireFaucetToken)
				faucet.Post("/faucet/mints", s.CreateMint)
				faucet.Post("/faucet/mints/{mint}/issue", s.Issue)
			})
		}
	})
	return r
}

func (s *Server) requireFaucetToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get(faucetHeader))
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.faucet.Token)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, errFaucetToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, out any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func pathKey(r *http.Request, name string) (crypto.Pubkey, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	pk, err := crypto.ParsePubkey(raw)
	if err != nil {
		return crypto.Pubkey{}, fmt.Errorf("%w: %s: %v", errInvalidKey, name, err)
	}
	return pk, nil
}

func loanKeys(r *http.Request) (borrower, collateral crypto.Pubkey, err error) {
	if borrower, err = pathKey(r, "borrower"); err != nil {
		return
	}
	collateral, err = pathKey(r, "collateral")
	return
}
