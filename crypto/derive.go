package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds bounds the number of seeds, bump included, accepted by the
	// derivation function.
	MaxSeeds = 16
	// MaxSeedLength bounds the size of every individual seed.
	MaxSeedLength = 32

	derivationMarker = "ProgramDerivedAddress"
)

var (
	// ErrInvalidSeeds is returned when the seeds hash onto the ed25519 curve
	// and therefore could collide with a key-holding account.
	ErrInvalidSeeds = errors.New("derive: seeds produce an on-curve address")
	// ErrSeedBounds is returned when the seed count or a seed length exceeds
	// the supported limits.
	ErrSeedBounds = errors.New("derive: seed bounds exceeded")
	// ErrNoViableBump is returned when no bump in [0,255] yields an off-curve
	// address.
	ErrNoViableBump = errors.New("derive: unable to find a viable bump")
)

// CreateProgramAddress derives the address controlled by programID for the
// supplied seeds. The last seed is normally the bump returned by
// FindProgramAddress. Derived addresses are guaranteed to be off the ed25519
// curve, so no private key exists for them.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, fmt.Errorf("%w: %d seeds", ErrSeedBounds, len(seeds))
	}
	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Pubkey{}, fmt.Errorf("%w: seed %d is %d bytes", ErrSeedBounds, i, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(derivationMarker))

	var addr Pubkey
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr[:]) {
		return Pubkey{}, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 downwards and returns the first
// off-curve address together with its bump. The result depends only on the
// seeds and program, so it can be recomputed whenever authorization is needed.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	if len(seeds)+1 > MaxSeeds {
		return Pubkey{}, 0, fmt.Errorf("%w: %d seeds", ErrSeedBounds, len(seeds))
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Pubkey{}, 0, err
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}

// VerifyProgramAddress reports whether addr is the address derived from seeds
// and bump under programID.
func VerifyProgramAddress(addr Pubkey, seeds [][]byte, bump uint8, programID Pubkey) bool {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	withBump[len(seeds)] = []byte{bump}
	derived, err := CreateProgramAddress(withBump, programID)
	if err != nil {
		return false
	}
	return derived == addr
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != PubkeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
