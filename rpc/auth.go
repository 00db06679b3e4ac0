package rpc

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"nftpawn/crypto"
)

const (
	defaultClockSkew   = 30 * time.Second
	maxClockSkew       = 2 * time.Minute
	defaultMaxTokenAge = 2 * time.Minute
	maxTokenAge        = 10 * time.Minute

	// requestTokenTTL is the lifetime SignRequest gives its tokens.
	requestTokenTTL = time.Minute
)

var (
	errMissingToken  = errors.New("missing bearer token")
	errInvalidToken  = errors.New("invalid request token")
	errTokenReplayed = errors.New("request token already used")
	errWrongSigner   = errors.New("request not signed by the debited account")
)

// Auth tunes request token verification. Zero values select the defaults.
type Auth struct {
	ClockSkew   time.Duration
	MaxTokenAge time.Duration
}

// RequestClaims bind a token to one HTTP request. The subject is the base58
// public key whose private half signed the token.
type RequestClaims struct {
	Method   string `json:"htm"`
	Path     string `json:"htu"`
	BodyHash string `json:"bh"`
	jwt.RegisteredClaims
}

// SignRequest returns an EdDSA bearer token that authenticates a single
// request as the holder of key.
func SignRequest(key ed25519.PrivateKey, method, path string, body []byte, now time.Time) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", errors.New("rpc: signing key must be an ed25519 private key")
	}
	signer, err := crypto.PubkeyFromBytes(key.Public().(ed25519.PublicKey))
	if err != nil {
		return "", err
	}
	claims := RequestClaims{
		Method:   method,
		Path:     path,
		BodyHash: bodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   signer.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(requestTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// authenticator verifies self-signed request tokens and remembers their ids
// until they expire.
type authenticator struct {
	skew     time.Duration
	maxAge   time.Duration
	clockNow func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func newAuthenticator(cfg Auth) *authenticator {
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	if skew > maxClockSkew {
		skew = maxClockSkew
	}
	maxAge := cfg.MaxTokenAge
	if maxAge <= 0 {
		maxAge = defaultMaxTokenAge
	}
	if maxAge > maxTokenAge {
		maxAge = maxTokenAge
	}
	return &authenticator{
		skew:     skew,
		maxAge:   maxAge,
		clockNow: time.Now,
		seen:     make(map[string]time.Time),
	}
}

func (a *authenticator) parser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithLeeway(a.skew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clockNow),
	)
}

// authenticate returns the key that signed the request token.
func (a *authenticator) authenticate(r *http.Request, body []byte) (crypto.Pubkey, error) {
	raw := extractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		return crypto.Pubkey{}, errMissingToken
	}
	claims := &RequestClaims{}
	_, err := a.parser().ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		subject, err := token.Claims.GetSubject()
		if err != nil {
			return nil, err
		}
		signer, err := crypto.ParsePubkey(subject)
		if err != nil {
			return nil, fmt.Errorf("subject: %w", err)
		}
		return ed25519.PublicKey(signer.Bytes()), nil
	})
	if err != nil {
		return crypto.Pubkey{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	signer, err := crypto.ParsePubkey(claims.Subject)
	if err != nil {
		return crypto.Pubkey{}, fmt.Errorf("%w: subject: %v", errInvalidToken, err)
	}
	if claims.IssuedAt == nil || claims.ID == "" {
		return crypto.Pubkey{}, fmt.Errorf("%w: iat and jti are required", errInvalidToken)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) > a.maxAge {
		return crypto.Pubkey{}, fmt.Errorf("%w: lifetime exceeds %s", errInvalidToken, a.maxAge)
	}
	if claims.Method != r.Method || claims.Path != r.URL.Path || claims.BodyHash != bodyHash(body) {
		return crypto.Pubkey{}, fmt.Errorf("%w: token does not match request", errInvalidToken)
	}
	if !a.remember(claims.Subject+"|"+claims.ID, claims.ExpiresAt.Time) {
		return crypto.Pubkey{}, errTokenReplayed
	}
	return signer, nil
}

// remember records a token id and reports false when it was already used.
// Ids are dropped once their token can no longer pass the expiry check.
func (a *authenticator) remember(id string, expires time.Time) bool {
	now := a.clockNow()
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, exp := range a.seen {
		if now.After(exp.Add(a.skew)) {
			delete(a.seen, key)
		}
	}
	if _, dup := a.seen[id]; dup {
		return false
	}
	a.seen[id] = expires
	return true
}

func extractBearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type signerKey struct{}

// authenticate requires a valid request token and stores its signer on the
// request context. Handlers decide which key the signer must be.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			writeBadRequest(w, fmt.Errorf("read request: %w", err))
			return
		}
		if len(body) > maxBodyBytes {
			writeJSONError(w, http.StatusRequestEntityTooLarge, errBodyTooLarge)
			return
		}
		signer, err := s.auth.authenticate(r, body)
		if err != nil {
			s.logger.Warn("request authentication failed", "path", r.URL.Path, "request_id", chimw.GetReqID(r.Context()), "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="pawn"`)
			writeJSONError(w, http.StatusUnauthorized, err)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), signerKey{}, signer)))
	})
}

// requireSigner reports whether the request was signed by want and answers
// 403 otherwise.
func requireSigner(w http.ResponseWriter, r *http.Request, want crypto.Pubkey) bool {
	signer, ok := r.Context().Value(signerKey{}).(crypto.Pubkey)
	if !ok || want.IsZero() || signer != want {
		writeJSONError(w, http.StatusForbidden, errWrongSigner)
		return false
	}
	return true
}
