package pawn

import "errors"

var (
	ErrLoanIsActive     = errors.New("pawn: loan is active")
	ErrLoanIsNotActive  = errors.New("pawn: loan is not active")
	ErrBorrowerNotFound = errors.New("pawn: borrower not found")
	ErrMathOverflow     = errors.New("pawn: math overflow")

	ErrPoolNotFound       = errors.New("pawn: pool not configured")
	ErrPoolExists         = errors.New("pawn: pool already configured")
	ErrLoanAlreadyFunded  = errors.New("pawn: loan already funded")
	ErrLoanNotFunded      = errors.New("pawn: loan not funded")
	ErrReleasePending    = errors.New("pawn: collateral release pending")
	ErrUnauthorized      = errors.New("pawn: unauthorized")
	ErrInvalidCollateral = errors.New("pawn: collateral must be a non-fungible asset")
	ErrInvalidParams     = errors.New("pawn: invalid parameters")
	ErrNothingToRelease  = errors.New("pawn: no collateral release pending")
	ErrAlreadyCollected  = errors.New("pawn: repayment already collected")
	ErrNothingToCollect  = errors.New("pawn: no repayment to collect")
	ErrLoanNotFound      = errors.New("pawn: loan not found")

	errNilManager    = errors.New("pawn engine: state manager not configured")
	errNilTransferer = errors.New("pawn engine: transfer service not configured")
	errNilSigner     = errors.New("pawn engine: program signer not configured")
)
