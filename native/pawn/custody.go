package pawn

import (
	"nftpawn/crypto"
	"nftpawn/native/bank"
)

var (
	seedConfig = []byte("config")
	seedLoan   = []byte("loan")
	seedEscrow = []byte("escrow")
)

func poolSeeds(admin crypto.Pubkey) [][]byte {
	return [][]byte{seedConfig, admin.Bytes()}
}

func loanSeeds(borrower, collateral crypto.Pubkey) [][]byte {
	return [][]byte{seedLoan, borrower.Bytes(), collateral.Bytes()}
}

func escrowSeeds(loan crypto.Pubkey) [][]byte {
	return [][]byte{seedEscrow, loan.Bytes()}
}

// PoolAddress returns the derived address of the pool configured by admin.
func (e *Engine) PoolAddress(admin crypto.Pubkey) (crypto.Pubkey, uint8, error) {
	return crypto.FindProgramAddress(poolSeeds(admin), e.programID)
}

// LoanAddress returns the derived address of the loan slot for a
// (borrower, collateral) pair.
func (e *Engine) LoanAddress(borrower, collateral crypto.Pubkey) (crypto.Pubkey, uint8, error) {
	return crypto.FindProgramAddress(loanSeeds(borrower, collateral), e.programID)
}

// EscrowAuthority returns the derived address that holds a loan's collateral
// and currency.
func (e *Engine) EscrowAuthority(loan crypto.Pubkey) (crypto.Pubkey, uint8, error) {
	return crypto.FindProgramAddress(escrowSeeds(loan), e.programID)
}

// escrowAuth authorizes debits from the escrow of loan. Only the engine holds
// the signer.
func (e *Engine) escrowAuth(loan crypto.Pubkey, bump uint8) bank.Authorization {
	return e.signer.Sign(escrowSeeds(loan), bump)
}
