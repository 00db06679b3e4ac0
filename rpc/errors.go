package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nftpawn/native/bank"
	nativecommon "nftpawn/native/common"
	"nftpawn/native/pawn"
)

var (
	errEmptyBody     = errors.New("request body is empty")
	errFaucetToken   = errors.New("faucet token required")
	errInvalidKey    = errors.New("invalid public key")
	errInvalidCursor = errors.New("invalid pagination parameter")
	errBodyTooLarge  = errors.New("request body too large")
)

// statusFor maps engine and ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, pawn.ErrUnauthorized), errors.Is(err, bank.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, pawn.ErrMathOverflow),
		errors.Is(err, bank.ErrBalanceOverflow),
		errors.Is(err, bank.ErrSupplyExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pawn.ErrBorrowerNotFound),
		errors.Is(err, pawn.ErrPoolNotFound),
		errors.Is(err, pawn.ErrLoanNotFound),
		errors.Is(err, bank.ErrUnknownMint):
		return http.StatusNotFound
	case errors.Is(err, pawn.ErrLoanIsActive),
		errors.Is(err, pawn.ErrLoanIsNotActive),
		errors.Is(err, pawn.ErrLoanAlreadyFunded),
		errors.Is(err, pawn.ErrLoanNotFunded),
		errors.Is(err, pawn.ErrReleasePending),
		errors.Is(err, pawn.ErrNothingToRelease),
		errors.Is(err, pawn.ErrAlreadyCollected),
		errors.Is(err, pawn.ErrNothingToCollect),
		errors.Is(err, pawn.ErrPoolExists),
		errors.Is(err, bank.ErrMintExists),
		errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, pawn.ErrInvalidCollateral),
		errors.Is(err, pawn.ErrInvalidParams),
		errors.Is(err, bank.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		payload = []byte(fmt.Sprintf("{\"error\":%q}", http.StatusText(status)))
	}
	_, _ = w.Write(payload)
}
