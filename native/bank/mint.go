package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"nftpawn/core/events"
	"nftpawn/core/state"
	"nftpawn/crypto"
)

// MintKind distinguishes interchangeable currencies from unique assets.
type MintKind uint8

const (
	MintFungible MintKind = iota
	MintNonFungible
)

func (k MintKind) String() string {
	switch k {
	case MintFungible:
		return "fungible"
	case MintNonFungible:
		return "non_fungible"
	default:
		return "unknown"
	}
}

// ParseMintKind converts the textual form back into a MintKind.
func ParseMintKind(s string) (MintKind, error) {
	switch s {
	case "fungible", "":
		return MintFungible, nil
	case "non_fungible", "nft":
		return MintNonFungible, nil
	default:
		return 0, fmt.Errorf("bank: unknown mint kind %q", s)
	}
}

// Mint describes an asset class tracked by the ledger.
type Mint struct {
	ID        crypto.Pubkey
	Authority crypto.Pubkey
	Kind      MintKind
	Decimals  uint8
	Supply    uint64
}

// MintParams configures CreateMint.
type MintParams struct {
	ID        crypto.Pubkey
	Authority crypto.Pubkey
	Kind      MintKind
	Decimals  uint8
}

// MaxSupply returns the supply cap for the mint; zero means uncapped.
func (m *Mint) MaxSupply() uint64 {
	if m != nil && m.Kind == MintNonFungible {
		return 1
	}
	return 0
}

func mintKey(id crypto.Pubkey) []byte {
	return append([]byte("bank/mint/"), id[:]...)
}

// CreateMint registers a new asset class. Non-fungible mints always carry zero
// decimals and a supply cap of one.
func (l *Ledger) CreateMint(ctx context.Context, params MintParams) (*Mint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params.ID.IsZero() || params.Authority.IsZero() {
		return nil, fmt.Errorf("bank: mint id and authority required")
	}
	if params.Kind != MintFungible && params.Kind != MintNonFungible {
		return nil, fmt.Errorf("bank: unknown mint kind %d", params.Kind)
	}
	mint := &Mint{ID: params.ID, Authority: params.Authority, Kind: params.Kind, Decimals: params.Decimals}
	if mint.Kind == MintNonFungible {
		mint.Decimals = 0
	}
	err := l.manager.Update(func(tx *state.Tx) error {
		if err := tx.KVCreate(mintKey(mint.ID), mint); err != nil {
			if errors.Is(err, state.ErrExists) {
				return ErrMintExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(events.MintCreated{Mint: mint.ID, Authority: mint.Authority, Kind: mint.Kind.String(), Decimals: mint.Decimals})
	return mint, nil
}

// MintInfo returns the asset class registered under id.
func (l *Ledger) MintInfo(ctx context.Context, id crypto.Pubkey) (*Mint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var mint *Mint
	err := l.manager.View(func(tx *state.Tx) error {
		var err error
		mint, err = loadMint(tx, id)
		return err
	})
	return mint, err
}

func loadMint(tx *state.Tx, id crypto.Pubkey) (*Mint, error) {
	mint := new(Mint)
	ok, err := tx.KVGet(mintKey(id), mint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownMint
	}
	return mint, nil
}

// MintTo issues amount new units of mint to the recipient. Only the mint
// authority may issue.
func (l *Ledger) MintTo(ctx context.Context, authority, mintID, to crypto.Pubkey, amount uint64) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if to.IsZero() {
		return nil, fmt.Errorf("bank: recipient required")
	}
	var (
		receipt *Receipt
		supply  uint64
	)
	err := l.manager.Update(func(tx *state.Tx) error {
		mint, err := loadMint(tx, mintID)
		if err != nil {
			return err
		}
		if authority.IsZero() || mint.Authority != authority {
			return ErrUnauthorized
		}
		next := mint.Supply + amount
		if next < mint.Supply {
			return ErrSupplyExceeded
		}
		if limit := mint.MaxSupply(); limit > 0 && next > limit {
			return ErrSupplyExceeded
		}
		if err := credit(tx, mintID, to, amount); err != nil {
			return err
		}
		mint.Supply = next
		supply = next
		if err := tx.KVPut(mintKey(mintID), mint); err != nil {
			return err
		}
		receipt, err = l.record(tx, Receipt{
			ID:     uuid.NewString(),
			Kind:   ReceiptMint,
			Mint:   mintID,
			To:     to,
			Amount: amount,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	l.emit(events.MintIssued{ReceiptID: receipt.ID, Mint: mintID, Recipient: to, Amount: amount, Supply: supply})
	return receipt, nil
}
