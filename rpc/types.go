package rpc

import (
	"nftpawn/crypto"
	"nftpawn/native/bank"
)

// ConfigurePoolRequest creates a lending pool.
type ConfigurePoolRequest struct {
	Admin        crypto.Pubkey `json:"admin"`
	CurrencyMint crypto.Pubkey `json:"currencyMint"`
	LoanAmount   uint64        `json:"loanAmount"`
}

// TunePoolRequest updates pool terms. Omitted fields keep their value.
type TunePoolRequest struct {
	Caller     crypto.Pubkey `json:"caller"`
	LoanAmount *uint64       `json:"loanAmount,omitempty"`
	FeeBps     *uint64       `json:"feeBps,omitempty"`
}

// DepositRequest moves collateral into escrow and opens a loan.
type DepositRequest struct {
	Admin      crypto.Pubkey `json:"admin"`
	Borrower   crypto.Pubkey `json:"borrower"`
	Collateral crypto.Pubkey `json:"collateral"`
}

// LenderRequest identifies the lender for fund and collect calls.
type LenderRequest struct {
	Lender crypto.Pubkey `json:"lender"`
}

// AddressesResponse lists the derived accounts of a loan.
type AddressesResponse struct {
	Loan       crypto.Pubkey `json:"loan"`
	LoanBump   uint8         `json:"loanBump"`
	Escrow     crypto.Pubkey `json:"escrow"`
	EscrowBump uint8         `json:"escrowBump"`
	ProgramID  crypto.Pubkey `json:"programId"`
}

// PendingReleaseResponse is returned when a repayment was recorded but the
// collateral is still held in escrow.
type PendingReleaseResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// BalanceResponse reports the units of mint held by owner.
type BalanceResponse struct {
	Owner  crypto.Pubkey `json:"owner"`
	Mint   crypto.Pubkey `json:"mint"`
	Amount uint64        `json:"amount"`
}

// CreateMintRequest registers a new asset class through the faucet. A random
// id is assigned when ID is empty.
type CreateMintRequest struct {
	ID        crypto.Pubkey `json:"id,omitempty"`
	Authority crypto.Pubkey `json:"authority"`
	Kind      string        `json:"kind"`
	Decimals  uint8         `json:"decimals"`
}

// IssueRequest mints units to a recipient through the faucet.
type IssueRequest struct {
	Authority crypto.Pubkey `json:"authority"`
	To        crypto.Pubkey `json:"to"`
	Amount    uint64        `json:"amount"`
}

// MintView is the JSON form of a ledger mint.
type MintView struct {
	ID        crypto.Pubkey `json:"id"`
	Authority crypto.Pubkey `json:"authority"`
	Kind      string        `json:"kind"`
	Decimals  uint8         `json:"decimals"`
	Supply    uint64        `json:"supply"`
}

// ReceiptView is the JSON form of a journal receipt.
type ReceiptView struct {
	ID        string        `json:"id"`
	Sequence  uint64        `json:"sequence"`
	Kind      string        `json:"kind"`
	Mint      crypto.Pubkey `json:"mint"`
	From      crypto.Pubkey `json:"from"`
	To        crypto.Pubkey `json:"to"`
	Amount    uint64        `json:"amount"`
	Timestamp uint64        `json:"timestamp"`
}

func newMintView(m *bank.Mint) MintView {
	return MintView{
		ID:        m.ID,
		Authority: m.Authority,
		Kind:      m.Kind.String(),
		Decimals:  m.Decimals,
		Supply:    m.Supply,
	}
}

func newReceiptView(r *bank.Receipt) ReceiptView {
	return ReceiptView{
		ID:        r.ID,
		Sequence:  r.Sequence,
		Kind:      r.Kind,
		Mint:      r.Mint,
		From:      r.From,
		To:        r.To,
		Amount:    r.Amount,
		Timestamp: r.Timestamp,
	}
}
