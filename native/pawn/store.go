package pawn

import (
	"errors"

	"nftpawn/core/state"
	"nftpawn/crypto"
)

func poolKey(addr crypto.Pubkey) []byte {
	return append([]byte("pawn/pool/"), addr[:]...)
}

func loanKey(addr crypto.Pubkey) []byte {
	return append([]byte("pawn/loan/"), addr[:]...)
}

func custodyKey(addr crypto.Pubkey) []byte {
	return append([]byte("pawn/custody/"), addr[:]...)
}

func getPool(tx *state.Tx, addr crypto.Pubkey) (*PoolConfig, error) {
	pool := new(PoolConfig)
	ok, err := tx.KVGet(poolKey(addr), pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func createPool(tx *state.Tx, pool *PoolConfig) error {
	err := tx.KVCreate(poolKey(pool.Address), pool)
	if errors.Is(err, state.ErrExists) {
		return ErrPoolExists
	}
	return err
}

func updatePool(tx *state.Tx, pool *PoolConfig) error {
	err := tx.KVUpdate(poolKey(pool.Address), pool)
	if errors.Is(err, state.ErrNotFound) {
		return ErrPoolNotFound
	}
	return err
}

// getLoan returns the loan stored at addr or nil when the slot is empty.
func getLoan(tx *state.Tx, addr crypto.Pubkey) (*Loan, error) {
	loan := new(Loan)
	ok, err := tx.KVGet(loanKey(addr), loan)
	if err != nil || !ok {
		return nil, err
	}
	return loan, nil
}

func putLoan(tx *state.Tx, loan *Loan) error {
	return tx.KVPut(loanKey(loan.Address), loan)
}

// getCustody returns the custody record stored at addr or nil.
func getCustody(tx *state.Tx, addr crypto.Pubkey) (*EscrowCustody, error) {
	custody := new(EscrowCustody)
	ok, err := tx.KVGet(custodyKey(addr), custody)
	if err != nil || !ok {
		return nil, err
	}
	return custody, nil
}

func putCustody(tx *state.Tx, custody *EscrowCustody) error {
	return tx.KVPut(custodyKey(custody.Address), custody)
}

// restoreCustody writes prev back, or removes the record at addr when there
// was none.
func restoreCustody(tx *state.Tx, addr crypto.Pubkey, prev *EscrowCustody) error {
	if prev == nil {
		return tx.KVDelete(custodyKey(addr))
	}
	return putCustody(tx, prev)
}
