package bank

import (
	"nftpawn/crypto"
)

// Authorization proves the right to debit an account. It is either a direct
// owner authorization or a program authorization produced by the single
// ProgramSigner the ledger issued for that program.
type Authorization struct {
	owner  crypto.Pubkey
	signer *ProgramSigner
	seeds  [][]byte
	bump   uint8
}

// Owner returns an authorization for a key holder debiting their own account.
func Owner(owner crypto.Pubkey) Authorization {
	return Authorization{owner: owner}
}

// IsProgram reports whether the authorization was issued by a program signer.
func (a Authorization) IsProgram() bool { return a.signer != nil }

// ProgramSigner is the capability that lets a registered program authorize
// debits from addresses derived under its program id. The ledger hands out
// exactly one signer per program and accepts no other.
type ProgramSigner struct {
	ledger    *Ledger
	programID crypto.Pubkey
}

// ProgramID returns the program the signer acts for.
func (s *ProgramSigner) ProgramID() crypto.Pubkey {
	if s == nil {
		return crypto.Pubkey{}
	}
	return s.programID
}

// Derive returns the program-derived address and bump for seeds.
func (s *ProgramSigner) Derive(seeds [][]byte) (crypto.Pubkey, uint8, error) {
	if s == nil {
		return crypto.Pubkey{}, 0, ErrUnauthorized
	}
	return crypto.FindProgramAddress(seeds, s.programID)
}

// Sign authorizes debits from the address derived from seeds and bump.
func (s *ProgramSigner) Sign(seeds [][]byte, bump uint8) Authorization {
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		copied[i] = append([]byte(nil), seed...)
	}
	return Authorization{signer: s, seeds: copied, bump: bump}
}

func (l *Ledger) authorize(auth Authorization, from crypto.Pubkey) error {
	if from.IsZero() {
		return ErrUnauthorized
	}
	if auth.signer == nil {
		// Derived addresses have no private key; only a program signer
		// may debit them.
		if auth.owner.IsZero() || auth.owner != from || !crypto.IsOnCurve(from[:]) {
			return ErrUnauthorized
		}
		return nil
	}
	l.programsMu.RLock()
	registered := l.programs[auth.signer.programID]
	l.programsMu.RUnlock()
	if registered == nil || registered != auth.signer || auth.signer.ledger != l {
		return ErrUnauthorized
	}
	if !crypto.VerifyProgramAddress(from, auth.seeds, auth.bump, auth.signer.programID) {
		return ErrUnauthorized
	}
	return nil
}
