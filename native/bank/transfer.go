package bank

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"nftpawn/core/events"
	"nftpawn/core/state"
	"nftpawn/crypto"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrUnauthorized        = errors.New("bank: unauthorized debit")
	ErrUnknownMint         = errors.New("bank: unknown mint")
	ErrMintExists          = errors.New("bank: mint already exists")
	ErrSupplyExceeded      = errors.New("bank: mint supply exceeded")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrBalanceOverflow     = errors.New("bank: balance overflow")
	ErrProgramRegistered   = errors.New("bank: program already registered")

	errNilManager = errors.New("bank: state manager required")
)

const (
	ReceiptTransfer = "transfer"
	ReceiptMint     = "mint"
)

var journalHeadKey = []byte("bank/journal/head")

// Receipt is the journal entry written for every successful balance movement.
// Sequence numbers are dense and strictly increasing.
type Receipt struct {
	ID        string
	Sequence  uint64
	Kind      string
	Mint      crypto.Pubkey
	From      crypto.Pubkey
	To        crypto.Pubkey
	Amount    uint64
	Timestamp uint64
}

type balanceRecord struct {
	Amount uint64
}

type journalHead struct {
	Sequence uint64
}

// Ledger is the asset transfer service. Every Transfer and MintTo call commits
// atomically or not at all.
type Ledger struct {
	manager *state.Manager
	emitter events.Emitter
	nowFn   func() time.Time

	programsMu sync.RWMutex
	programs   map[crypto.Pubkey]*ProgramSigner
}

// NewLedger creates a ledger persisting balances through manager.
func NewLedger(manager *state.Manager) (*Ledger, error) {
	if manager == nil {
		return nil, errNilManager
	}
	return &Ledger{
		manager:  manager,
		emitter:  events.NoopEmitter{},
		nowFn:    time.Now,
		programs: make(map[crypto.Pubkey]*ProgramSigner),
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the receipt clock.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if now == nil {
		l.nowFn = time.Now
		return
	}
	l.nowFn = now
}

// RegisterProgram issues the signer for programID. A program can be registered
// only once per ledger.
func (l *Ledger) RegisterProgram(programID crypto.Pubkey) (*ProgramSigner, error) {
	if programID.IsZero() {
		return nil, fmt.Errorf("bank: program id required")
	}
	l.programsMu.Lock()
	defer l.programsMu.Unlock()
	if _, exists := l.programs[programID]; exists {
		return nil, ErrProgramRegistered
	}
	signer := &ProgramSigner{ledger: l, programID: programID}
	l.programs[programID] = signer
	return signer, nil
}

func balanceKey(mint, owner crypto.Pubkey) []byte {
	key := make([]byte, 0, len("bank/balance/")+2*crypto.PubkeyLength)
	key = append(key, "bank/balance/"...)
	key = append(key, mint[:]...)
	return append(key, owner[:]...)
}

func journalKey(seq uint64) []byte {
	key := append([]byte("bank/journal/"), make([]byte, 8)...)
	binary.BigEndian.PutUint64(key[len(key)-8:], seq)
	return key
}

func readBalance(tx *state.Tx, mint, owner crypto.Pubkey) (uint64, error) {
	var rec balanceRecord
	if _, err := tx.KVGet(balanceKey(mint, owner), &rec); err != nil {
		return 0, err
	}
	return rec.Amount, nil
}

func writeBalance(tx *state.Tx, mint, owner crypto.Pubkey, amount uint64) error {
	if amount == 0 {
		return tx.KVDelete(balanceKey(mint, owner))
	}
	return tx.KVPut(balanceKey(mint, owner), &balanceRecord{Amount: amount})
}

func credit(tx *state.Tx, mint, owner crypto.Pubkey, amount uint64) error {
	current, err := readBalance(tx, mint, owner)
	if err != nil {
		return err
	}
	next := current + amount
	if next < current {
		return ErrBalanceOverflow
	}
	return writeBalance(tx, mint, owner, next)
}

func debit(tx *state.Tx, mint, owner crypto.Pubkey, amount uint64) error {
	current, err := readBalance(tx, mint, owner)
	if err != nil {
		return err
	}
	if current < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, current, amount)
	}
	return writeBalance(tx, mint, owner, current-amount)
}

func (l *Ledger) record(tx *state.Tx, receipt Receipt) (*Receipt, error) {
	var head journalHead
	if _, err := tx.KVGet(journalHeadKey, &head); err != nil {
		return nil, err
	}
	head.Sequence++
	receipt.Sequence = head.Sequence
	receipt.Timestamp = uint64(l.nowFn().Unix())
	if err := tx.KVPut(journalKey(receipt.Sequence), &receipt); err != nil {
		return nil, err
	}
	if err := tx.KVPut(journalHeadKey, &head); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (l *Ledger) emit(evt events.Event) {
	if l.emitter != nil {
		l.emitter.Emit(evt)
	}
}

// Transfer moves amount units of mint from one account to another. The debit
// must be authorized either by the owner of from or by the program signer that
// derived from.
func (l *Ledger) Transfer(ctx context.Context, auth Authorization, from, to, mintID crypto.Pubkey, amount uint64) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if to.IsZero() {
		return nil, fmt.Errorf("bank: recipient required")
	}
	if err := l.authorize(auth, from); err != nil {
		return nil, err
	}
	var receipt *Receipt
	err := l.manager.Update(func(tx *state.Tx) error {
		if _, err := loadMint(tx, mintID); err != nil {
			return err
		}
		if err := debit(tx, mintID, from, amount); err != nil {
			return err
		}
		if err := credit(tx, mintID, to, amount); err != nil {
			return err
		}
		var err error
		receipt, err = l.record(tx, Receipt{
			ID:     uuid.NewString(),
			Kind:   ReceiptTransfer,
			Mint:   mintID,
			From:   from,
			To:     to,
			Amount: amount,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	l.emit(events.Transfer{
		ReceiptID: receipt.ID,
		Sequence:  receipt.Sequence,
		Mint:      mintID,
		From:      from,
		To:        to,
		Amount:    amount,
	})
	return receipt, nil
}

// Balance returns the amount of mint held by owner.
func (l *Ledger) Balance(ctx context.Context, owner, mintID crypto.Pubkey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var amount uint64
	err := l.manager.View(func(tx *state.Tx) error {
		var err error
		amount, err = readBalance(tx, mintID, owner)
		return err
	})
	return amount, err
}

// Receipts returns up to limit journal entries with a sequence greater than
// after, in sequence order.
func (l *Ledger) Receipts(ctx context.Context, after uint64, limit int) ([]Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	var out []Receipt
	err := l.manager.View(func(tx *state.Tx) error {
		var head journalHead
		if _, err := tx.KVGet(journalHeadKey, &head); err != nil {
			return err
		}
		for seq := after + 1; seq <= head.Sequence && len(out) < limit; seq++ {
			var receipt Receipt
			ok, err := tx.KVGet(journalKey(seq), &receipt)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("bank: journal gap at %d", seq)
			}
			out = append(out, receipt)
		}
		return nil
	})
	return out, err
}
