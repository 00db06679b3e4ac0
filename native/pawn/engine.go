package pawn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"nftpawn/core/events"
	"nftpawn/core/state"
	"nftpawn/core/types"
	"nftpawn/crypto"
	"nftpawn/native/bank"
	nativecommon "nftpawn/native/common"
)

const moduleName = "pawn"

// Transferer is the asset transfer service driven by the engine. Every call
// either applies fully or has no effect.
type Transferer interface {
	Transfer(ctx context.Context, auth bank.Authorization, from, to, mint crypto.Pubkey, amount uint64) (*bank.Receipt, error)
	MintInfo(ctx context.Context, mint crypto.Pubkey) (*bank.Mint, error)
	Balance(ctx context.Context, owner, mint crypto.Pubkey) (uint64, error)
}

// Observer receives the outcome of every engine operation and compensation.
type Observer interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
	ObserveCompensation(op string, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, time.Duration, error) {}
func (noopObserver) ObserveCompensation(string, error) {}

// ConfigureParams describes a new pool.
type ConfigureParams struct {
	Admin        crypto.Pubkey
	CurrencyMint crypto.Pubkey
	LoanAmount   uint64
}

// TuneParams updates pool terms. Nil fields are left unchanged.
type TuneParams struct {
	LoanAmount *uint64
	FeeBps     *uint64
}

// Engine is the loan lifecycle controller. It is the only writer of pawn
// records and the only holder of the escrow signer. Operations are serialised.
type Engine struct {
	mu sync.Mutex

	manager   *state.Manager
	transfers Transferer
	signer    *bank.ProgramSigner
	programID crypto.Pubkey

	emitter  events.Emitter
	pauses   nativecommon.PauseView
	logger   *slog.Logger
	observer Observer
	nowFn    func() int64
	feeBps   uint64
}

// NewEngine wires the engine to its state, transfer service and signer.
func NewEngine(manager *state.Manager, transfers Transferer, signer *bank.ProgramSigner) (*Engine, error) {
	if manager == nil {
		return nil, errNilManager
	}
	if transfers == nil {
		return nil, errNilTransferer
	}
	if signer == nil {
		return nil, errNilSigner
	}
	return &Engine{
		manager:   manager,
		transfers: transfers,
		signer:    signer,
		programID: signer.ProgramID(),
		emitter:   events.NoopEmitter{},
		logger:    slog.Default().With("component", moduleName),
		observer:  noopObserver{},
		nowFn:     func() int64 { return time.Now().Unix() },
		feeBps:    DefaultFeeBps,
	}, nil
}

// ProgramID returns the program identity escrow addresses are derived under.
func (e *Engine) ProgramID() crypto.Pubkey { return e.programID }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the pause view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLogger configures the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With("component", moduleName)
}

// SetObserver configures the metrics observer.
func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		e.observer = noopObserver{}
		return
	}
	e.observer = o
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetDefaultFeeBps sets the fee assigned to pools configured afterwards.
func (e *Engine) SetDefaultFeeBps(bps uint64) error {
	if bps > BasisPoints {
		return fmt.Errorf("%w: fee %d bps exceeds %d", ErrInvalidParams, bps, BasisPoints)
	}
	e.feeBps = bps
	return nil
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return uint64(e.nowFn())
}

func (e *Engine) emit(evt *types.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(pawnEvent{evt: evt})
}

func (e *Engine) begin(ctx context.Context) error {
	if e == nil || e.manager == nil {
		return errNilManager
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Engine) finish(op string, start time.Time, err error) {
	e.observer.ObserveOperation(op, time.Since(start), err)
	if err != nil {
		e.logger.Warn("pawn operation failed", "op", op, "error", err)
	}
}

// compensate runs an undo step and reports its outcome.
func (e *Engine) compensate(op string, undo func() error) error {
	err := undo()
	e.observer.ObserveCompensation(op, err)
	if err != nil {
		e.logger.Error("compensation failed", "op", op, "error", err)
	} else {
		e.logger.Warn("compensation applied", "op", op)
	}
	return err
}

// Configure creates the pool owned by params.Admin. A pool can be configured
// only once.
func (e *Engine) Configure(ctx context.Context, params ConfigureParams) (_ *PoolConfig, err error) {
	defer func(start time.Time) { e.finish("configure", start, err) }(time.Now())
	if err = e.begin(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if params.Admin.IsZero() {
		return nil, fmt.Errorf("%w: admin required", ErrInvalidParams)
	}
	if params.LoanAmount == 0 {
		return nil, fmt.Errorf("%w: loan amount must be positive", ErrInvalidParams)
	}
	mint, err := e.transfers.MintInfo(ctx, params.CurrencyMint)
	if err != nil {
		return nil, fmt.Errorf("pawn: currency mint: %w", err)
	}
	if mint.Kind != bank.MintFungible {
		return nil, fmt.Errorf("%w: currency mint must be fungible", ErrInvalidParams)
	}
	addr, bump, err := e.PoolAddress(params.Admin)
	if err != nil {
		return nil, err
	}
	pool := &PoolConfig{
		Address:      addr,
		Admin:        params.Admin,
		CurrencyMint: params.CurrencyMint,
		LoanAmount:   params.LoanAmount,
		FeeBps:       e.feeBps,
		Bump:         bump,
	}
	if err = e.manager.Update(func(tx *state.Tx) error { return createPool(tx, pool) }); err != nil {
		return nil, err
	}
	e.logger.Info("pool configured", "pool", addr.String(), "admin", params.Admin.String(), "loanAmount", pool.LoanAmount, "feeBps", pool.FeeBps)
	e.emit(NewPoolEvent(EventTypePoolConfigured, pool))
	return pool.Clone(), nil
}

// Tune updates the terms of the pool owned by admin. Loans already deposited
// keep the principal captured at deposit time.
func (e *Engine) Tune(ctx context.Context, caller, admin crypto.Pubkey, params TuneParams) (_ *PoolConfig, err error) {
	defer func(start time.Time) { e.finish("tune", start, err) }(time.Now())
	if err = e.begin(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if params.LoanAmount != nil && *params.LoanAmount == 0 {
		return nil, fmt.Errorf("%w: loan amount must be positive", ErrInvalidParams)
	}
	if params.FeeBps != nil && *params.FeeBps > BasisPoints {
		return nil, fmt.Errorf("%w: fee %d bps exceeds %d", ErrInvalidParams, *params.FeeBps, BasisPoints)
	}
	addr, _, err := e.PoolAddress(admin)
	if err != nil {
		return nil, err
	}
	var pool *PoolConfig
	err = e.manager.Update(func(tx *state.Tx) error {
		current, err := getPool(tx, addr)
		if err != nil {
			return err
		}
		if caller.IsZero() || caller != current.Admin {
			return ErrUnauthorized
		}
		if params.LoanAmount != nil {
			current.LoanAmount = *params.LoanAmount
		}
		if params.FeeBps != nil {
			current.FeeBps = *params.FeeBps
		}
		pool = current
		return updatePool(tx, current)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("pool tuned", "pool", addr.String(), "loanAmount", pool.LoanAmount, "feeBps", pool.FeeBps)
	e.emit(NewPoolEvent(EventTypePoolTuned, pool))
	return pool.Clone(), nil
}

// Deposit moves one unit of collateral from the borrower into the loan escrow
// and opens a new cycle on the (borrower, collateral) slot. The principal is
// captured from the pool configured by admin.
func (e *Engine) Deposit(ctx context.Context, admin, borrower, collateral crypto.Pubkey) (_ *Loan, err error) {
	defer func(start time.Time) { e.finish("deposit", start, err) }(time.Now())
	if err = e.begin(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if borrower.IsZero() {
		return nil, ErrBorrowerNotFound
	}
	if err = e.checkCollateral(ctx, collateral); err != nil {
		return nil, err
	}
	poolAddr, _, err := e.PoolAddress(admin)
	if err != nil {
		return nil, err
	}
	loanAddr, loanBump, err := e.LoanAddress(borrower, collateral)
	if err != nil {
		return nil, err
	}
	escrowAddr, escrowBump, err := e.EscrowAuthority(loanAddr)
	if err != nil {
		return nil, err
	}

	var (
		pool *PoolConfig
		prev *Loan
	)
	err = e.manager.View(func(tx *state.Tx) error {
		var err error
		if pool, err = getPool(tx, poolAddr); err != nil {
			return err
		}
		prev, err = getLoan(tx, loanAddr)
		return err
	})
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.Active {
		return nil, ErrLoanIsActive
	}
	if prev != nil && prev.Status == LoanStatusPendingRelease {
		return nil, ErrReleasePending
	}

	receipt, err := e.transfers.Transfer(ctx, bank.Owner(borrower), borrower, escrowAddr, collateral, 1)
	if err != nil {
		return nil, fmt.Errorf("pawn: deposit collateral: %w", err)
	}
	ctx = context.WithoutCancel(ctx)

	loan := &Loan{
		Address:      loanAddr,
		CollateralID: collateral,
		Borrower:     borrower,
		Pool:         admin,
		Principal:    pool.LoanAmount,
		Active:       true,
		Status:       LoanStatusDeposited,
		Cycle:        1,
		Bump:         loanBump,
		DepositedAt:  e.now(),
	}
	if prev != nil {
		loan.Cycle = prev.Cycle + 1
	}
	if err = e.manager.Update(func(tx *state.Tx) error { return putLoan(tx, loan) }); err != nil {
		cerr := e.compensate("deposit", func() error {
			_, err := e.transfers.Transfer(ctx, e.escrowAuth(loanAddr, escrowBump), escrowAddr, borrower, collateral, 1)
			return err
		})
		return nil, errors.Join(fmt.Errorf("pawn: record deposit: %w", err), cerr)
	}

	e.logger.Info("loan deposited", "loan", loanAddr.String(), "borrower", borrower.String(), "cycle", loan.Cycle, "principal", loan.Principal)
	e.emit(NewLoanEvent(EventTypeLoanDeposited, loan, map[string]string{
		"escrow":  escrowAddr.String(),
		"receipt": receipt.ID,
	}))
	return loan.Clone(), nil
}

func (e *Engine) checkCollateral(ctx context.Context, collateral crypto.Pubkey) error {
	if collateral.IsZero() {
		return ErrInvalidCollateral
	}
	mint, err := e.transfers.MintInfo(ctx, collateral)
	if errors.Is(err, bank.ErrUnknownMint) {
		return fmt.Errorf("%w: %w", ErrInvalidCollateral, err)
	}
	if err != nil {
		return err
	}
	if mint.Kind != bank.MintNonFungible {
		return ErrInvalidCollateral
	}
	return nil
}

// Fund advances the loan principal to the borrower out of the loan escrow.
// When lender is set the principal is first moved from the lender into the
// escrow; otherwise the escrow must already hold it. The loan record itself is
// not modified; funding is recorded on the escrow custody record.
func (e *Engine) Fund(ctx context.Context, borrower, collateral, lender crypto.Pubkey) (_ *EscrowCustody, err error) {
	defer func(start time.Time) { e.finish("fund", start, err) }(time.Now())
	if err = e.begin(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if borrower.IsZero() {
		return nil, ErrBorrowerNotFound
	}
	loanAddr, _, err := e.LoanAddress(borrower, collateral)
	if err != nil {
		return nil, err
	}
	escrowAddr, escrowBump, err := e.EscrowAuthority(loanAddr)
	if err != nil {
		return nil, err
	}
	loan, prev, pool, err := e.loadPosition(loanAddr, escrowAddr)
	if err != nil {
		return nil, err
	}
	if loan == nil || loan.Borrower.IsZero() {
		return nil, ErrBorrowerNotFound
	}
	if !loan.Active {
		return nil, ErrLoanIsNotActive
	}
	if prev != nil && prev.Cycle == loan.Cycle {
		return nil, ErrLoanAlreadyFunded
	}
	if prev.owesLender() {
		if prev, _, err = e.payLender(ctx, prev, pool.CurrencyMint); err != nil {
			return nil, err
		}
	}

	mint := pool.CurrencyMint
	auth := e.escrowAuth(loanAddr, escrowBump)
	if !lender.IsZero() {
		if _, err = e.transfers.Transfer(ctx, bank.Owner(lender), lender, escrowAddr, mint, loan.Principal); err != nil {
			return nil, fmt.Errorf("pawn: lender deposit: %w", err)
		}
	}
	ctx = context.WithoutCancel(ctx)
	refundLender := func() error {
		if lender.IsZero() {
			return nil
		}
		return e.compensate("fund", func() error {
			_, err := e.transfers.Transfer(ctx, auth, escrowAddr, lender, mint, loan.Principal)
			return err
		})
	}

	custody := &EscrowCustody{
		Address:   escrowAddr,
		Owner:     loanAddr,
		Lender:    lender,
		Bump:      escrowBump,
		Cycle:     loan.Cycle,
		Principal: loan.Principal,
		FundedAt:  e.now(),
	}
	if err = e.manager.Update(func(tx *state.Tx) error { return putCustody(tx, custody) }); err != nil {
		return nil, errors.Join(fmt.Errorf("pawn: record custody: %w", err), refundLender())
	}

	receipt, err := e.transfers.Transfer(ctx, auth, escrowAddr, borrower, mint, loan.Principal)
	if err != nil {
		rerr := e.compensate("fund", func() error {
			return e.manager.Update(func(tx *state.Tx) error { return restoreCustody(tx, escrowAddr, prev) })
		})
		return nil, errors.Join(fmt.Errorf("pawn: disburse principal: %w", err), rerr, refundLender())
	}

	e.logger.Info("loan funded", "loan", loanAddr.String(), "cycle", loan.Cycle, "principal", loan.Principal, "lender", lender.String())
	extra := map[string]string{
		"escrow":  escrowAddr.String(),
		"receipt": receipt.ID,
	}
	if !lender.IsZero() {
		extra["lender"] = lender.String()
	}
	e.emit(NewLoanEvent(EventTypeLoanFunded, loan, extra))
	return custody.Clone(), nil
}

// Repay takes principal plus fee from the borrower into the escrow and then
// releases the collateral back to the borrower. The currency leg always
// completes before the collateral leg is attempted. When the collateral leg
// fails the loan is left PendingRelease and ErrReleasePending is returned;
// ReleaseCollateral finishes it.
func (e *Engine) Repay(ctx context.Context, borrower, collateral crypto.Pubkey) (_ *Repayment, err error) {
	defer func(start time.Time) { e.finish("repay", start, err) }(time.Now())
	if err = e.begin(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	loanAddr, _, err := e.LoanAddress(borrower, collateral)
	if err != nil {
		return nil, err
	}
	escrowAddr, escrowBump, err := e.EscrowAuthority(loanAddr)
	if err != nil {
		return nil, err
	}
	loan, custody, pool, err := e.loadPosition(loanAddr, escrowAddr)
	if err != nil {
		return nil, err
	}
	if loan == nil || !loan.Active {
		return nil, ErrLoanIsNotActive
	}
	if custody == nil || custody.Cycle != loan.Cycle {
		return nil, ErrLoanNotFunded
	}
	fee, total, err := RepaymentTotal(loan.Principal, pool.FeeBps)
	if err != nil {
		return nil, err
	}

	mint := pool.CurrencyMint
	auth := e.escrowAuth(loanAddr, escrowBump)
	in, err := e.transfers.Transfer(ctx, bank.Owner(borrower), borrower, escrowAddr, mint, total)
	if err != nil {
		return nil, fmt.Errorf("pawn: repayment: %w", err)
	}
	ctx = context.WithoutCancel(ctx)

	pending := loan.Clone()
	pending.Active = false
	pending.Status = LoanStatusPendingRelease
	pending.RepaidAt = e.now()
	paid := custody.Clone()
	paid.Repayment = total
	err = e.manager.Update(func(tx *state.Tx) error {
		if err := putLoan(tx, pending); err != nil {
			return err
		}
		return putCustody(tx, paid)
	})
	if err != nil {
		cerr := e.compensate("repay", func() error {
			_, err := e.transfers.Transfer(ctx, auth, escrowAddr, borrower, mint, total)
			return err
		})
		return nil, errors.Join(fmt.Errorf("pawn: record repayment: %w", err), cerr)
	}

	amounts := map[string]string{
		"fee":   strconv.FormatUint(fee, 10),
		"total": strconv.FormatUint(total, 10),
	}
	out, err := e.transfers.Transfer(ctx, auth, escrowAddr, borrower, collateral, 1)
	if err != nil {
		e.logger.Error("collateral release failed", "loan", loanAddr.String(), "error", err)
		e.emit(NewLoanEvent(EventTypeLoanReleasePending, pending, amounts))
		return nil, fmt.Errorf("%w: %w", ErrReleasePending, err)
	}
	repaid := pending.Clone()
	repaid.Status = LoanStatusRepaid
	if err = e.manager.Update(func(tx *state.Tx) error { return putLoan(tx, repaid) }); err != nil {
		e.emit(NewLoanEvent(EventTypeLoanReleasePending, pending, amounts))
		return nil, fmt.Errorf("%w: %w", ErrReleasePending, err)
	}

	e.logger.Info("loan repaid", "loan", loanAddr.String(), "cycle", repaid.Cycle, "total", total, "fee", fee)
	amounts["receipt"] = out.ID
	e.emit(NewLoanEvent(EventTypeLoanRepaid, repaid, amounts))
	return &Repayment{
		Loan:               repaid.Clone(),
		Principal:          loan.Principal,
		Fee:                fee,
		Total:              total,
		CurrencySequence:   in.Sequence,
		CollateralSequence: out.Sequence,
	}, nil
}

// ReleaseCollateral completes a repayment whose collateral leg did not finish.
// When the escrow no longer holds the collateral only the loan record is
// updated.
func (e *Engine) ReleaseCollateral(ctx context.Context, borrower, collateral crypto.Pubkey) (_ *Loan, err error) {
	defer func(start time.Time) { e.finish("release", start, err) }(time.Now())
	if err = e.begin(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	loanAddr, _, err := e.LoanAddress(borrower, collateral)
	if err != nil {
		return nil, err
	}
	escrowAddr, escrowBump, err := e.EscrowAuthority(loanAddr)
	if err != nil {
		return nil, err
	}
	var loan *Loan
	err = e.manager.View(func(tx *state.Tx) error {
		var err error
		loan, err = getLoan(tx, loanAddr)
		return err
	})
	if err != nil {
		return nil, err
	}
	if loan == nil || loan.Status != LoanStatusPendingRelease {
		return nil, ErrNothingToRelease
	}

	held, err := e.transfers.Balance(ctx, escrowAddr, collateral)
	if err != nil {
		return nil, err
	}
	// Only the escrow authority can empty the escrow, so a zero balance means
	// the collateral leg already ran.
	if held > 0 {
		if _, err = e.transfers.Transfer(ctx, e.escrowAuth(loanAddr, escrowBump), escrowAddr, borrower, collateral, 1); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReleasePending, err)
		}
	}

	repaid := loan.Clone()
	repaid.Status = LoanStatusRepaid
	if err = e.manager.Update(func(tx *state.Tx) error { return putLoan(tx, repaid) }); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReleasePending, err)
	}
	e.logger.Info("collateral released", "loan", loanAddr.String(), "cycle", repaid.Cycle)
	e.emit(NewLoanEvent(EventTypeCollateralReleased, repaid, nil))
	return repaid.Clone(), nil
}

// Collect pays the escrowed repayment of a finished cycle to the lender that
// funded it. Only the recorded lender may collect, once.
func (e *Engine) Collect(ctx context.Context, lender, borrower, collateral crypto.Pubkey) (_ *EscrowCustody, err error) {
	defer func(start time.Time) { e.finish("collect", start, err) }(time.Now())
	if err = e.begin(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if lender.IsZero() {
		return nil, ErrUnauthorized
	}
	loanAddr, _, err := e.LoanAddress(borrower, collateral)
	if err != nil {
		return nil, err
	}
	escrowAddr, _, err := e.EscrowAuthority(loanAddr)
	if err != nil {
		return nil, err
	}
	loan, custody, pool, err := e.loadPosition(loanAddr, escrowAddr)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrBorrowerNotFound
	}
	if custody == nil {
		return nil, ErrLoanNotFunded
	}
	if custody.Lender != lender {
		return nil, ErrUnauthorized
	}
	if custody.Collected {
		return nil, ErrAlreadyCollected
	}
	if custody.Repayment == 0 {
		return nil, ErrNothingToCollect
	}
	settled, _, err := e.payLender(ctx, custody, pool.CurrencyMint)
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// payLender marks the repayment collected and then pays it out of escrow. The
// record is reverted when the payout fails.
func (e *Engine) payLender(ctx context.Context, custody *EscrowCustody, mint crypto.Pubkey) (*EscrowCustody, *bank.Receipt, error) {
	settled := custody.Clone()
	settled.Collected = true
	if err := e.manager.Update(func(tx *state.Tx) error { return putCustody(tx, settled) }); err != nil {
		return nil, nil, err
	}
	receipt, err := e.transfers.Transfer(ctx, e.escrowAuth(custody.Owner, custody.Bump), custody.Address, custody.Lender, mint, custody.Repayment)
	if err != nil {
		rerr := e.compensate("collect", func() error {
			return e.manager.Update(func(tx *state.Tx) error { return putCustody(tx, custody) })
		})
		return nil, nil, errors.Join(fmt.Errorf("pawn: pay lender: %w", err), rerr)
	}
	e.logger.Info("repayment collected", "escrow", custody.Address.String(), "cycle", custody.Cycle, "amount", custody.Repayment)
	e.emit(&types.Event{Type: EventTypeRepaymentCollected, Attributes: map[string]string{
		"loan":    custody.Owner.String(),
		"escrow":  custody.Address.String(),
		"lender":  custody.Lender.String(),
		"cycle":   strconv.FormatUint(custody.Cycle, 10),
		"amount":  strconv.FormatUint(custody.Repayment, 10),
		"receipt": receipt.ID,
	}})
	return settled, receipt, nil
}

// loadPosition reads the loan, its custody record and the pool the loan was
// opened against.
func (e *Engine) loadPosition(loanAddr, escrowAddr crypto.Pubkey) (*Loan, *EscrowCustody, *PoolConfig, error) {
	var (
		loan    *Loan
		custody *EscrowCustody
		pool    *PoolConfig
	)
	err := e.manager.View(func(tx *state.Tx) error {
		var err error
		if loan, err = getLoan(tx, loanAddr); err != nil || loan == nil {
			return err
		}
		if custody, err = getCustody(tx, escrowAddr); err != nil {
			return err
		}
		poolAddr, _, err := e.PoolAddress(loan.Pool)
		if err != nil {
			return err
		}
		pool, err = getPool(tx, poolAddr)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return loan, custody, pool, nil
}
