package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"
)

// GenerateKey creates a fresh ed25519 key pair. The public half is a valid
// curve point and can therefore authorize debits as an account owner.
func GenerateKey() (Pubkey, ed25519.PrivateKey, error) {
	return GenerateKeyFrom(rand.Reader)
}

// GenerateKeyFrom is GenerateKey with an explicit entropy source.
func GenerateKeyFrom(r io.Reader) (Pubkey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return Pubkey{}, nil, err
	}
	var pk Pubkey
	copy(pk[:], pub)
	return pk, priv, nil
}

// MustGenerateKey is GenerateKey that panics on failure.
func MustGenerateKey() Pubkey {
	pk, _, err := GenerateKey()
	if err != nil {
		panic(err)
	}
	return pk
}
