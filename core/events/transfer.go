package events

import (
	"strconv"

	"nftpawn/core/types"
	"nftpawn/crypto"
)

const (
	// TypeTransfer is emitted for every ledger balance movement.
	TypeTransfer = "bank.transfer"
)

type Transfer struct {
	ReceiptID string
	Sequence  uint64
	Mint      crypto.Pubkey
	From      crypto.Pubkey
	To        crypto.Pubkey
	Amount    uint64
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{
		"receipt":  e.ReceiptID,
		"sequence": strconv.FormatUint(e.Sequence, 10),
		"mint":     e.Mint.String(),
		"from":     e.From.String(),
		"to":       e.To.String(),
		"amount":   strconv.FormatUint(e.Amount, 10),
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}
