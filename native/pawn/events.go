package pawn

import (
	"strconv"

	"nftpawn/core/types"
)

const (
	EventTypePoolConfigured     = "pawn.pool.configured"
	EventTypePoolTuned          = "pawn.pool.tuned"
	EventTypeLoanDeposited      = "pawn.loan.deposited"
	EventTypeLoanFunded         = "pawn.loan.funded"
	EventTypeLoanRepaid         = "pawn.loan.repaid"
	EventTypeLoanReleasePending = "pawn.loan.release_pending"
	EventTypeCollateralReleased = "pawn.loan.collateral_released"
	EventTypeRepaymentCollected = "pawn.loan.collected"
)

type pawnEvent struct {
	evt *types.Event
}

func (e pawnEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e pawnEvent) Event() *types.Event { return e.evt }

// NewPoolEvent returns the canonical payload for pool lifecycle events.
func NewPoolEvent(eventType string, pool *PoolConfig) *types.Event {
	attrs := make(map[string]string)
	if pool != nil {
		attrs["pool"] = pool.Address.String()
		attrs["admin"] = pool.Admin.String()
		attrs["currencyMint"] = pool.CurrencyMint.String()
		attrs["loanAmount"] = strconv.FormatUint(pool.LoanAmount, 10)
		attrs["feeBps"] = strconv.FormatUint(pool.FeeBps, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewLoanEvent returns the canonical payload for loan lifecycle events. Extra
// attributes are merged over the loan fields.
func NewLoanEvent(eventType string, loan *Loan, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if loan != nil {
		attrs["loan"] = loan.Address.String()
		attrs["borrower"] = loan.Borrower.String()
		attrs["collateral"] = loan.CollateralID.String()
		attrs["pool"] = loan.Pool.String()
		attrs["principal"] = strconv.FormatUint(loan.Principal, 10)
		attrs["cycle"] = strconv.FormatUint(loan.Cycle, 10)
		attrs["status"] = loan.Status.String()
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
