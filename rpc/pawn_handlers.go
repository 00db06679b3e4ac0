package rpc

import (
	"errors"
	"net/http"

	"nftpawn/native/pawn"
)

const statusReleasePending = "release_pending"

// ConfigurePool handles pool creation. The request must be signed by the
// admin.
func (s *Server) ConfigurePool(w http.ResponseWriter, r *http.Request) {
	var req ConfigurePoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if !requireSigner(w, r, req.Admin) {
		return
	}
	pool, err := s.engine.Configure(r.Context(), pawn.ConfigureParams{
		Admin:        req.Admin,
		CurrencyMint: req.CurrencyMint,
		LoanAmount:   req.LoanAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pool)
}

// GetPool returns the pool published by the admin in the path.
func (s *Server) GetPool(w http.ResponseWriter, r *http.Request) {
	admin, err := pathKey(r, "admin")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pool, err := s.engine.Pool(r.Context(), admin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// TunePool updates the terms of an existing pool.
func (s *Server) TunePool(w http.ResponseWriter, r *http.Request) {
	admin, err := pathKey(r, "admin")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req TunePoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if !requireSigner(w, r, req.Caller) {
		return
	}
	pool, err := s.engine.Tune(r.Context(), req.Caller, admin, pawn.TuneParams{
		LoanAmount: req.LoanAmount,
		FeeBps:     req.FeeBps,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// Deposit opens a loan by moving the collateral into escrow. The borrower
// signs the request.
func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if !requireSigner(w, r, req.Borrower) {
		return
	}
	loan, err := s.engine.Deposit(r.Context(), req.Admin, req.Borrower, req.Collateral)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) GetLoan(w http.ResponseWriter, r *http.Request) {
	borrower, collateral, err := loanKeys(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	loan, err := s.engine.Loan(r.Context(), borrower, collateral)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) GetCustody(w http.ResponseWriter, r *http.Request) {
	borrower, collateral, err := loanKeys(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	custody, err := s.engine.Custody(r.Context(), borrower, collateral)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, custody)
}

// GetAddresses returns the derived loan and escrow accounts. Nothing needs to
// exist on-ledger for the derivation to succeed.
func (s *Server) GetAddresses(w http.ResponseWriter, r *http.Request) {
	borrower, collateral, err := loanKeys(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	loan, loanBump, err := s.engine.LoanAddress(borrower, collateral)
	if err != nil {
		writeError(w, err)
		return
	}
	escrow, escrowBump, err := s.engine.EscrowAuthority(loan)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AddressesResponse{
		Loan:       loan,
		LoanBump:   loanBump,
		Escrow:     escrow,
		EscrowBump: escrowBump,
		ProgramID:  s.engine.ProgramID(),
	})
}

// Fund disburses the principal to the borrower. A named lender must sign the
// request since the principal is taken from their account; without one the
// escrow must already hold it and any signed caller may trigger the payout.
func (s *Server) Fund(w http.ResponseWriter, r *http.Request) {
	borrower, collateral, err := loanKeys(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req LenderRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBadRequest(w, err)
		return
	}
	if !req.Lender.IsZero() && !requireSigner(w, r, req.Lender) {
		return
	}
	custody, err := s.engine.Fund(r.Context(), borrower, collateral, req.Lender)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, custody)
}

// Repay settles the loan. A repayment whose collateral leg did not complete is
// reported with 202 so the caller can retry through Release.
func (s *Server) Repay(w http.ResponseWriter, r *http.Request) {
	borrower, collateral, err := loanKeys(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if !requireSigner(w, r, borrower) {
		return
	}
	repayment, err := s.engine.Repay(r.Context(), borrower, collateral)
	if errors.Is(err, pawn.ErrReleasePending) {
		s.logger.Warn("repayment pending release", "borrower", borrower.String(), "collateral", collateral.String(), "error", err)
		writeJSON(w, http.StatusAccepted, PendingReleaseResponse{Status: statusReleasePending, Detail: err.Error()})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repayment)
}

// Release needs no signature: it can only return collateral to its borrower.
func (s *Server) Release(w http.ResponseWriter, r *http.Request) {
	borrower, collateral, err := loanKeys(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	loan, err := s.engine.ReleaseCollateral(r.Context(), borrower, collateral)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// Collect pays the escrowed repayment to the funding lender.
func (s *Server) Collect(w http.ResponseWriter, r *http.Request) {
	borrower, collateral, err := loanKeys(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req LenderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if !requireSigner(w, r, req.Lender) {
		return
	}
	custody, err := s.engine.Collect(r.Context(), req.Lender, borrower, collateral)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, custody)
}
