package rpc

import (
	"net/http"
	"strconv"

	"nftpawn/crypto"
	"nftpawn/native/bank"
)

func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := pathKey(r, "owner")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	mint, err := pathKey(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := s.ledger.Balance(r.Context(), owner, mint)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Owner: owner, Mint: mint, Amount: amount})
}

func (s *Server) GetMint(w http.ResponseWriter, r *http.Request) {
	id, err := pathKey(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	mint, err := s.ledger.MintInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMintView(mint))
}

// ListReceipts pages through the transfer journal. `after` is the last
// sequence already seen by the caller.
func (s *Server) ListReceipts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var after uint64
	if raw := query.Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, errInvalidCursor)
			return
		}
		after = v
	}
	limit := defaultPageSize
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 1000 {
			writeBadRequest(w, errInvalidCursor)
			return
		}
		limit = v
	}
	receipts, err := s.ledger.Receipts(r.Context(), after, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ReceiptView, 0, len(receipts))
	for i := range receipts {
		out = append(out, newReceiptView(&receipts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateMint registers an asset class. Faucet only.
func (s *Server) CreateMint(w http.ResponseWriter, r *http.Request) {
	var req CreateMintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	kind, err := bank.ParseMintKind(req.Kind)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id := req.ID
	if id.IsZero() {
		if id, _, err = crypto.GenerateKey(); err != nil {
			writeError(w, err)
			return
		}
	}
	mint, err := s.ledger.CreateMint(r.Context(), bank.MintParams{
		ID:        id,
		Authority: req.Authority,
		Kind:      kind,
		Decimals:  req.Decimals,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("faucet mint created", "mint", mint.ID.String(), "kind", mint.Kind.String())
	writeJSON(w, http.StatusCreated, newMintView(mint))
}

// Issue mints units of an existing asset. Faucet only.
func (s *Server) Issue(w http.ResponseWriter, r *http.Request) {
	mintID, err := pathKey(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req IssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	receipt, err := s.ledger.MintTo(r.Context(), req.Authority, mintID, req.To, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReceiptView(receipt))
}
