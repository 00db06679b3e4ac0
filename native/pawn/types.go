package pawn

import (
	"fmt"

	"nftpawn/crypto"
)

// LoanStatus tracks where a loan is in its deposit/repay cycle.
type LoanStatus uint8

const (
	LoanStatusNone LoanStatus = iota
	LoanStatusDeposited
	LoanStatusPendingRelease
	LoanStatusRepaid
)

func (s LoanStatus) String() string {
	switch s {
	case LoanStatusDeposited:
		return "deposited"
	case LoanStatusPendingRelease:
		return "pending_release"
	case LoanStatusRepaid:
		return "repaid"
	default:
		return "none"
	}
}

// MarshalText renders the status name for JSON payloads.
func (s LoanStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a status name produced by MarshalText.
func (s *LoanStatus) UnmarshalText(text []byte) error {
	for _, candidate := range []LoanStatus{LoanStatusNone, LoanStatusDeposited, LoanStatusPendingRelease, LoanStatusRepaid} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("pawn: unknown loan status %q", text)
}

// PoolConfig holds the lending terms published by an admin.
type PoolConfig struct {
	Address      crypto.Pubkey `json:"address"`
	Admin        crypto.Pubkey `json:"admin"`
	CurrencyMint crypto.Pubkey `json:"currencyMint"`
	LoanAmount   uint64        `json:"loanAmount"`
	FeeBps       uint64        `json:"feeBps"`
	Bump         uint8         `json:"bump"`
}

// Clone returns a deep copy of the configuration.
func (p *PoolConfig) Clone() *PoolConfig {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Loan is the per (borrower, collateral) record. The slot is reused across
// deposit cycles; Cycle counts deposits.
type Loan struct {
	Address      crypto.Pubkey `json:"address"`
	CollateralID crypto.Pubkey `json:"collateral"`
	Borrower     crypto.Pubkey `json:"borrower"`
	Pool         crypto.Pubkey `json:"pool"`
	Principal    uint64        `json:"principal"`
	Active       bool          `json:"active"`
	Status       LoanStatus    `json:"status"`
	Cycle        uint64        `json:"cycle"`
	Bump         uint8         `json:"bump"`
	DepositedAt  uint64        `json:"depositedAt"`
	RepaidAt     uint64        `json:"repaidAt,omitempty"`
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// EscrowCustody scopes the escrow authority to a loan and records which cycle
// it funded. It holds no balance itself.
type EscrowCustody struct {
	Address   crypto.Pubkey `json:"address"`
	Owner     crypto.Pubkey `json:"owner"`
	Lender    crypto.Pubkey `json:"lender,omitempty"`
	Bump      uint8         `json:"bump"`
	Cycle     uint64        `json:"cycle"`
	Principal uint64        `json:"principal"`
	Repayment uint64        `json:"repayment"`
	Collected bool          `json:"collected"`
	FundedAt  uint64        `json:"fundedAt"`
}

// Clone returns a deep copy of the custody record.
func (c *EscrowCustody) Clone() *EscrowCustody {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// owesLender reports whether a repayment is waiting for the funding lender.
func (c *EscrowCustody) owesLender() bool {
	return c != nil && !c.Lender.IsZero() && c.Repayment > 0 && !c.Collected
}

// Repayment summarises a completed repay.
type Repayment struct {
	Loan               *Loan  `json:"loan"`
	Principal          uint64 `json:"principal"`
	Fee                uint64 `json:"fee"`
	Total              uint64 `json:"total"`
	CurrencySequence   uint64 `json:"currencySequence"`
	CollateralSequence uint64 `json:"collateralSequence"`
}
