package crypto

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// PubkeyLength is the size in bytes of an account, asset or program identity.
const PubkeyLength = 32

// Pubkey identifies accounts, assets (mints) and programs. The zero value is
// the distinguished empty identity used to detect unset fields.
type Pubkey [PubkeyLength]byte

// PubkeyFromBytes copies a 32-byte slice into a Pubkey.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeyLength {
		return pk, fmt.Errorf("pubkey must be %d bytes long, got %d", PubkeyLength, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePubkey decodes the base58 text form of a public key.
func ParsePubkey(s string) (Pubkey, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Pubkey{}, fmt.Errorf("empty pubkey")
	}
	decoded, err := base58.Decode(trimmed)
	if err != nil {
		return Pubkey{}, fmt.Errorf("invalid base58 pubkey %q: %w", trimmed, err)
	}
	return PubkeyFromBytes(decoded)
}

// MustParsePubkey is like ParsePubkey but panics on malformed input. Intended
// for package-level constants.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the raw key bytes.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeyLength)
	copy(out, p[:])
	return out
}

// IsZero reports whether the key is the empty identity.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Equal reports whether both keys are identical.
func (p Pubkey) Equal(other Pubkey) bool {
	return bytes.Equal(p[:], other[:])
}

// MarshalText implements encoding.TextMarshaler using base58.
func (p Pubkey) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return []byte{}, nil
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string decodes
// to the zero key.
func (p *Pubkey) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		*p = Pubkey{}
		return nil
	}
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
