package events

import (
	"strconv"

	"nftpawn/core/types"
	"nftpawn/crypto"
)

const (
	// TypeMintCreated is emitted when a new asset class is registered.
	TypeMintCreated = "bank.mint.created"
	// TypeMintIssued is emitted whenever new units are minted to an owner.
	TypeMintIssued = "bank.mint.issued"
)

type MintCreated struct {
	Mint      crypto.Pubkey
	Authority crypto.Pubkey
	Kind      string
	Decimals  uint8
}

func (MintCreated) EventType() string { return TypeMintCreated }

func (e MintCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeMintCreated,
		Attributes: map[string]string{
			"mint":      e.Mint.String(),
			"authority": e.Authority.String(),
			"kind":      e.Kind,
			"decimals":  strconv.FormatUint(uint64(e.Decimals), 10),
		},
	}
}

type MintIssued struct {
	ReceiptID string
	Mint      crypto.Pubkey
	Recipient crypto.Pubkey
	Amount    uint64
	Supply    uint64
}

func (MintIssued) EventType() string { return TypeMintIssued }

func (e MintIssued) Event() *types.Event {
	return &types.Event{
		Type: TypeMintIssued,
		Attributes: map[string]string{
			"receipt":   e.ReceiptID,
			"mint":      e.Mint.String(),
			"recipient": e.Recipient.String(),
			"amount":    strconv.FormatUint(e.Amount, 10),
			"supply":    strconv.FormatUint(e.Supply, 10),
		},
	}
}
