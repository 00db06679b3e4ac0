package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
)

func testKey(fill byte) Pubkey {
	var pk Pubkey
	copy(pk[:], bytes.Repeat([]byte{fill}, PubkeyLength))
	return pk
}

func TestPubkeyTextRoundTrip(t *testing.T) {
	key := testKey(0x42)
	parsed, err := ParsePubkey(key.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != key {
		t.Fatalf("round trip mismatch: %s != %s", parsed, key)
	}

	zero, err := ParsePubkey("11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("parse zero: %v", err)
	}
	if !zero.IsZero() {
		t.Fatalf("expected zero key, got %s", zero)
	}
}

func TestParsePubkeyRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "   ", "0OIl", "2g"} {
		if _, err := ParsePubkey(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestPubkeyJSON(t *testing.T) {
	type wrapper struct {
		Key   Pubkey `json:"key"`
		Empty Pubkey `json:"empty"`
	}
	in := wrapper{Key: testKey(0x07)}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out wrapper
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("json round trip mismatch: %+v", out)
	}
	if !out.Empty.IsZero() {
		t.Fatalf("expected empty key to decode as zero")
	}
}

func TestFindProgramAddressDeterministic(t *testing.T) {
	program := testKey(0x11)
	seeds := [][]byte{[]byte("loan"), testKey(0x01).Bytes(), testKey(0x02).Bytes()}

	first, bump, err := FindProgramAddress(seeds, program)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, bump2, err := FindProgramAddress(seeds, program)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if first != second || bump != bump2 {
		t.Fatalf("derivation not reproducible: %s/%d vs %s/%d", first, bump, second, bump2)
	}
	if IsOnCurve(first[:]) {
		t.Fatalf("derived address must be off-curve")
	}
	if !VerifyProgramAddress(first, seeds, bump, program) {
		t.Fatalf("expected derived address to verify")
	}
	if VerifyProgramAddress(first, seeds, bump, testKey(0x12)) {
		t.Fatalf("address must not verify under a different program")
	}

	other, _, err := FindProgramAddress([][]byte{[]byte("loan"), testKey(0x01).Bytes(), testKey(0x03).Bytes()}, program)
	if err != nil {
		t.Fatalf("derive other: %v", err)
	}
	if other == first {
		t.Fatalf("distinct seeds must derive distinct addresses")
	}
}

func TestDerivationSeedBounds(t *testing.T) {
	program := testKey(0x11)
	if _, _, err := FindProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, program); !errors.Is(err, ErrSeedBounds) {
		t.Fatalf("expected ErrSeedBounds for long seed, got %v", err)
	}
	many := make([][]byte, MaxSeeds)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	if _, _, err := FindProgramAddress(many, program); !errors.Is(err, ErrSeedBounds) {
		t.Fatalf("expected ErrSeedBounds for too many seeds, got %v", err)
	}
}

func TestIsOnCurve(t *testing.T) {
	basepoint, err := hex.DecodeString("5866666666666666666666666666666666666666666666666666666666666666")
	if err != nil {
		t.Fatalf("decode basepoint: %v", err)
	}
	if !IsOnCurve(basepoint) {
		t.Fatalf("ed25519 basepoint must be on-curve")
	}
	if IsOnCurve([]byte{1, 2, 3}) {
		t.Fatalf("short input must not be reported on-curve")
	}
}

func TestGeneratedKeysAreOnCurve(t *testing.T) {
	for i := 0; i < 8; i++ {
		pk, priv, err := GenerateKey()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !IsOnCurve(pk[:]) {
			t.Fatalf("generated key %s must be on-curve", pk)
		}
		if len(priv) == 0 {
			t.Fatalf("expected private key material")
		}
	}
}
