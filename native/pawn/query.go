package pawn

import (
	"context"

	"nftpawn/core/state"
	"nftpawn/crypto"
)

// Pool returns the pool configured by admin.
func (e *Engine) Pool(ctx context.Context, admin crypto.Pubkey) (*PoolConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr, _, err := e.PoolAddress(admin)
	if err != nil {
		return nil, err
	}
	var pool *PoolConfig
	err = e.manager.View(func(tx *state.Tx) error {
		var err error
		pool, err = getPool(tx, addr)
		return err
	})
	return pool, err
}

// Loan returns the loan slot for (borrower, collateral).
func (e *Engine) Loan(ctx context.Context, borrower, collateral crypto.Pubkey) (*Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr, _, err := e.LoanAddress(borrower, collateral)
	if err != nil {
		return nil, err
	}
	var loan *Loan
	err = e.manager.View(func(tx *state.Tx) error {
		var err error
		loan, err = getLoan(tx, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

// Custody returns the escrow custody record of the (borrower, collateral)
// loan. It reports ErrLoanNotFunded when the escrow was never funded.
func (e *Engine) Custody(ctx context.Context, borrower, collateral crypto.Pubkey) (*EscrowCustody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loanAddr, _, err := e.LoanAddress(borrower, collateral)
	if err != nil {
		return nil, err
	}
	escrowAddr, _, err := e.EscrowAuthority(loanAddr)
	if err != nil {
		return nil, err
	}
	var custody *EscrowCustody
	err = e.manager.View(func(tx *state.Tx) error {
		var err error
		custody, err = getCustody(tx, escrowAddr)
		return err
	})
	if err != nil {
		return nil, err
	}
	if custody == nil {
		return nil, ErrLoanNotFunded
	}
	return custody, nil
}
