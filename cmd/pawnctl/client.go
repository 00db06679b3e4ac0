package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nftpawn/rpc"
)

const faucetHeader = "X-Faucet-Token"

// apiClient issues JSON requests against a pawnd instance. Mutating calls
// outside the faucet are signed with key when one is set.
type apiClient struct {
	baseURL     string
	faucetToken string
	key         ed25519.PrivateKey
	http        *http.Client
}

func newAPIClient(baseURL, faucetToken string, key ed25519.PrivateKey, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		faucetToken: faucetToken,
		key:         key,
		http:        &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// do sends body as JSON and returns the raw response payload. Non-2xx
// responses become *apiError.
func (c *apiClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	faucet := strings.HasPrefix(path, "/v1/faucet/")
	if c.faucetToken != "" && faucet {
		req.Header.Set(faucetHeader, c.faucetToken)
	}
	if c.key != nil && method != http.MethodGet && !faucet {
		token, err := rpc.SignRequest(c.key, method, req.URL.Path, raw, time.Now())
		if err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(payload))
		if json.Unmarshal(payload, &envelope) == nil && envelope.Error != "" {
			message = envelope.Error
		}
		return nil, &apiError{Status: resp.StatusCode, Message: message}
	}
	return payload, nil
}
