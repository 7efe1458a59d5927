package crypto

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestKeccak256HexReferenceVector(t *testing.T) {
	got := Keccak256Hex([]byte("hello"))
	want := "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"
	if got != want {
		t.Errorf("Keccak256Hex(hello) = %s, want %s", got, want)
	}
}

func TestSHA256HexFormat(t *testing.T) {
	got := SHA256Hex([]byte("hello"))
	if !strings.HasPrefix(got, "0x") || len(got) != 66 {
		t.Errorf("SHA256Hex format wrong: %s", got)
	}
	if got != strings.ToLower(got) {
		t.Errorf("SHA256Hex not lowercase: %s", got)
	}
}

func TestComputeDocumentHashOrderInvariant(t *testing.T) {
	// Same content, different insertion orders.
	a := map[string]any{"name": "MyAgent", "version": "1.0.0", "tags": []any{"trading"}}
	b := map[string]any{"tags": []any{"trading"}, "version": "1.0.0", "name": "MyAgent"}

	hashA, err := ComputeDocumentHash(a)
	if err != nil {
		t.Fatalf("ComputeDocumentHash failed: %v", err)
	}
	hashB, err := ComputeDocumentHash(b)
	if err != nil {
		t.Fatalf("ComputeDocumentHash failed: %v", err)
	}
	if hashA != hashB {
		t.Errorf("hash not order-invariant: %s vs %s", hashA, hashB)
	}

	// Matches hashing the canonical bytes directly.
	want := Keccak256Hex([]byte(`{"name":"MyAgent","tags":["trading"],"version":"1.0.0"}`))
	if hashA != want {
		t.Errorf("ComputeDocumentHash = %s, want %s", hashA, want)
	}
}

func TestComputeDocumentHashBytesMatchesHex(t *testing.T) {
	doc := map[string]any{"b": 2, "a": 1}
	digest, err := ComputeDocumentHashBytes(doc)
	if err != nil {
		t.Fatalf("ComputeDocumentHashBytes failed: %v", err)
	}
	hexForm, err := ComputeDocumentHash(doc)
	if err != nil {
		t.Fatalf("ComputeDocumentHash failed: %v", err)
	}
	if "0x"+hex.EncodeToString(digest[:]) != hexForm {
		t.Errorf("bytes digest %x disagrees with hex digest %s", digest, hexForm)
	}
}

func TestNormalizeHash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0xABC123", "abc123"},
		{"ABC123", "abc123"},
		{"0xabc123", "abc123"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeHash(tt.in); got != tt.want {
			t.Errorf("NormalizeHash(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestZeroHashSentinel(t *testing.T) {
	for i, b := range ZeroHash {
		if b != 0 {
			t.Fatalf("ZeroHash[%d] = %d, want 0", i, b)
		}
	}
}
