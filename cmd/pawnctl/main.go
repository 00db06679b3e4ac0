package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/mr-tron/base58"

	"nftpawn/crypto"
	"nftpawn/rpc"
)

const (
	defaultServer  = "http://127.0.0.1:8080"
	serverEnv      = "PAWN_SERVER"
	faucetTokenEnv = "PAWN_FAUCET_TOKEN"
	keyEnv         = "PAWN_KEY"
)

var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(ctx context.Context, env *cliEnv, args []string) error
}

type cliEnv struct {
	client *apiClient
	out    io.Writer
}

var commands = map[string]command{
	"keygen":       {"generate an ed25519 account key", runKeygen},
	"addresses":    {"derive the loan and escrow accounts of a position", runAddresses},
	"pool-create":  {"configure a lending pool", runPoolCreate},
	"pool-get":     {"show the pool of an admin", runPoolGet},
	"pool-tune":    {"update pool terms", runPoolTune},
	"deposit":      {"move collateral into escrow and open a loan", runDeposit},
	"fund":         {"disburse the principal to the borrower", runFund},
	"repay":        {"repay principal plus fee and reclaim collateral", runRepay},
	"release":      {"finish a repayment whose collateral stayed in escrow", runRelease},
	"collect":      {"pay the escrowed repayment to the lender", runCollect},
	"loan":         {"show a loan", runLoan},
	"custody":      {"show the escrow custody record of a loan", runCustody},
	"balance":      {"show the balance of an owner for a mint", runBalance},
	"mint-info":    {"show a mint", runMintInfo},
	"receipts":     {"list journal receipts", runReceipts},
	"faucet-mint":  {"create a mint (faucet)", runFaucetMint},
	"faucet-issue": {"issue units of a mint (faucet)", runFaucetIssue},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("pawnctl", flag.ContinueOnError)
	server := global.String("server", envOr(serverEnv, defaultServer), "pawnd base URL")
	token := global.String("faucet-token", os.Getenv(faucetTokenEnv), "token for faucet endpoints")
	keyText := global.String("key", os.Getenv(keyEnv), "base58 ed25519 private key that signs pool, deposit, fund, repay and collect requests")
	timeout := global.Duration("timeout", 15*time.Second, "request timeout")
	global.Usage = func() { usage(global.Output()) }
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	rest := global.Args()
	if len(rest) == 0 {
		usage(global.Output())
		return errUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		usage(global.Output())
		return errUsage
	}
	key, err := parsePrivateKey(*keyText)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	env := &cliEnv{client: newAPIClient(*server, *token, key, *timeout), out: out}
	return cmd.run(ctx, env, rest[1:])
}

// parsePrivateKey decodes a key printed by keygen. An empty string means no
// signing key.
func parsePrivateKey(text string) (ed25519.PrivateKey, error) {
	if text == "" {
		return nil, nil
	}
	raw, err := base58.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("-key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("-key: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pawnctl [-server URL] [-faucet-token TOKEN] [-key PRIVATE_KEY] <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-13s %s\n", name, commands[name].summary)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// keyFlag is a flag.Value holding a base58 public key.
type keyFlag struct {
	key crypto.Pubkey
	set bool
}

func (k *keyFlag) String() string {
	if !k.set {
		return ""
	}
	return k.key.String()
}

func (k *keyFlag) Set(s string) error {
	pk, err := crypto.ParsePubkey(s)
	if err != nil {
		return err
	}
	k.key, k.set = pk, true
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func required(fs *flag.FlagSet, flags map[string]*keyFlag) error {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !flags[name].set {
			return fmt.Errorf("%s: -%s is required", fs.Name(), name)
		}
	}
	return nil
}

func (env *cliEnv) print(payload json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		_, werr := env.out.Write(append(payload, '\n'))
		return werr
	}
	buf.WriteByte('\n')
	_, err := env.out.Write(buf.Bytes())
	return err
}

func (env *cliEnv) call(ctx context.Context, method, path string, body any) error {
	payload, err := env.client.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return env.print(payload)
}

func runKeygen(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("keygen")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	pub, priv, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]string{
		"publicKey":  pub.String(),
		"privateKey": base58.Encode(priv),
	})
	if err != nil {
		return err
	}
	return env.print(payload)
}

// positionFlags registers -borrower and -collateral.
func positionFlags(fs *flag.FlagSet) (borrower, collateral *keyFlag) {
	borrower, collateral = &keyFlag{}, &keyFlag{}
	fs.Var(borrower, "borrower", "borrower public key")
	fs.Var(collateral, "collateral", "collateral mint")
	return
}

func positionPath(borrower, collateral *keyFlag, suffix string) string {
	return "/v1/loans/" + borrower.key.String() + "/" + collateral.key.String() + suffix
}

func positionCommand(name, method, suffix string, withLender bool) func(context.Context, *cliEnv, []string) error {
	return func(ctx context.Context, env *cliEnv, args []string) error {
		fs := newFlagSet(name)
		borrower, collateral := positionFlags(fs)
		lender := &keyFlag{}
		if withLender {
			fs.Var(lender, "lender", "lender public key")
		}
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if err := required(fs, map[string]*keyFlag{"borrower": borrower, "collateral": collateral}); err != nil {
			return err
		}
		var body any
		if withLender {
			body = rpc.LenderRequest{Lender: lender.key}
		}
		return env.call(ctx, method, positionPath(borrower, collateral, suffix), body)
	}
}

var (
	runAddresses = positionCommand("addresses", http.MethodGet, "/addresses", false)
	runRepay     = positionCommand("repay", http.MethodPost, "/repay", false)
	runRelease   = positionCommand("release", http.MethodPost, "/release", false)
	runLoan      = positionCommand("loan", http.MethodGet, "", false)
	runCustody   = positionCommand("custody", http.MethodGet, "/custody", false)
	runFund      = positionCommand("fund", http.MethodPost, "/fund", true)
)

func runCollect(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("collect")
	borrower, collateral := positionFlags(fs)
	lender := &keyFlag{}
	fs.Var(lender, "lender", "lender public key")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"borrower": borrower, "collateral": collateral, "lender": lender}); err != nil {
		return err
	}
	return env.call(ctx, http.MethodPost, positionPath(borrower, collateral, "/collect"), rpc.LenderRequest{Lender: lender.key})
}

func runPoolCreate(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("pool-create")
	admin, currency := &keyFlag{}, &keyFlag{}
	fs.Var(admin, "admin", "pool admin public key")
	fs.Var(currency, "currency", "fungible mint lent by the pool")
	amount := fs.Uint64("loan-amount", 0, "principal per loan in base units")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"admin": admin, "currency": currency}); err != nil {
		return err
	}
	return env.call(ctx, http.MethodPost, "/v1/pools", rpc.ConfigurePoolRequest{
		Admin:        admin.key,
		CurrencyMint: currency.key,
		LoanAmount:   *amount,
	})
}

func runPoolGet(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("pool-get")
	admin := &keyFlag{}
	fs.Var(admin, "admin", "pool admin public key")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"admin": admin}); err != nil {
		return err
	}
	return env.call(ctx, http.MethodGet, "/v1/pools/"+admin.key.String(), nil)
}

func runPoolTune(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("pool-tune")
	admin, caller := &keyFlag{}, &keyFlag{}
	fs.Var(admin, "admin", "pool admin public key")
	fs.Var(caller, "caller", "caller public key (defaults to -admin)")
	amount := fs.String("loan-amount", "", "new principal per loan")
	fee := fs.String("fee-bps", "", "new fee in basis points")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"admin": admin}); err != nil {
		return err
	}
	req := rpc.TunePoolRequest{Caller: admin.key}
	if caller.set {
		req.Caller = caller.key
	}
	var err error
	if req.LoanAmount, err = optionalUint(*amount); err != nil {
		return fmt.Errorf("pool-tune: -loan-amount: %w", err)
	}
	if req.FeeBps, err = optionalUint(*fee); err != nil {
		return fmt.Errorf("pool-tune: -fee-bps: %w", err)
	}
	return env.call(ctx, http.MethodPatch, "/v1/pools/"+admin.key.String(), req)
}

func optionalUint(raw string) (*uint64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func runDeposit(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("deposit")
	borrower, collateral := positionFlags(fs)
	admin := &keyFlag{}
	fs.Var(admin, "admin", "admin of the pool to borrow from")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"admin": admin, "borrower": borrower, "collateral": collateral}); err != nil {
		return err
	}
	return env.call(ctx, http.MethodPost, "/v1/loans", rpc.DepositRequest{
		Admin:      admin.key,
		Borrower:   borrower.key,
		Collateral: collateral.key,
	})
}

func runBalance(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("balance")
	owner, mint := &keyFlag{}, &keyFlag{}
	fs.Var(owner, "owner", "account public key")
	fs.Var(mint, "mint", "mint public key")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"owner": owner, "mint": mint}); err != nil {
		return err
	}
	return env.call(ctx, http.MethodGet, "/v1/ledger/balances/"+owner.key.String()+"/"+mint.key.String(), nil)
}

func runMintInfo(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("mint-info")
	mint := &keyFlag{}
	fs.Var(mint, "mint", "mint public key")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"mint": mint}); err != nil {
		return err
	}
	return env.call(ctx, http.MethodGet, "/v1/ledger/mints/"+mint.key.String(), nil)
}

func runReceipts(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("receipts")
	after := fs.Uint64("after", 0, "last sequence already seen")
	limit := fs.Int("limit", 100, "maximum receipts to return")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	query := url.Values{}
	query.Set("after", strconv.FormatUint(*after, 10))
	query.Set("limit", strconv.Itoa(*limit))
	return env.call(ctx, http.MethodGet, "/v1/ledger/receipts?"+query.Encode(), nil)
}

func runFaucetMint(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("faucet-mint")
	authority, id := &keyFlag{}, &keyFlag{}
	fs.Var(authority, "authority", "mint authority public key")
	fs.Var(id, "id", "mint id (random when omitted)")
	kind := fs.String("kind", "fungible", "fungible or non_fungible")
	decimals := fs.Uint("decimals", 0, "decimal places (ignored for non_fungible)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"authority": authority}); err != nil {
		return err
	}
	if *decimals > 255 {
		return fmt.Errorf("faucet-mint: -decimals must fit in a byte")
	}
	return env.call(ctx, http.MethodPost, "/v1/faucet/mints", rpc.CreateMintRequest{
		ID:        id.key,
		Authority: authority.key,
		Kind:      *kind,
		Decimals:  uint8(*decimals),
	})
}

func runFaucetIssue(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("faucet-issue")
	authority, mint, to := &keyFlag{}, &keyFlag{}, &keyFlag{}
	fs.Var(authority, "authority", "mint authority public key")
	fs.Var(mint, "mint", "mint public key")
	fs.Var(to, "to", "recipient public key")
	amount := fs.Uint64("amount", 0, "units to issue")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, map[string]*keyFlag{"authority": authority, "mint": mint, "to": to}); err != nil {
		return err
	}
	return env.call(ctx, http.MethodPost, "/v1/faucet/mints/"+mint.key.String()+"/issue", rpc.IssueRequest{
		Authority: authority.key,
		To:        to.key,
		Amount:    *amount,
	})
}
