package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// HashSize is the digest length in bytes.
const HashSize = 32

// ZeroHash is the all-zero 32-byte digest. On-chain it means "compute
// this value automatically"; it must be reproduced exactly.
var ZeroHash [HashSize]byte

// Keccak256 computes the Keccak-256 digest of data (Ethereum/TRON
// convention, not NIST SHA3).
func Keccak256(data []byte) [HashSize]byte {
	var out [HashSize]byte
	copy(out[:], ethcrypto.Keccak256(data))
	return out
}

// Keccak256Hex computes the Keccak-256 digest as a 0x-prefixed lowercase
// hex string.
func Keccak256Hex(data []byte) string {
	return "0x" + hex.EncodeToString(ethcrypto.Keccak256(data))
}

// SHA256Hex computes the SHA-256 digest as a 0x-prefixed lowercase hex
// string. Used off-chain where the ledger convention does not apply.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(sum[:])
}

// ComputeDocumentHash hashes the canonical JSON form of v with Keccak-256.
// The result is invariant under key insertion order and under JSON
// round-tripping of v.
func ComputeDocumentHash(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return Keccak256Hex(canonical), nil
}

// ComputeDocumentHashBytes is ComputeDocumentHash with a raw digest result,
// suitable for bytes32 contract parameters.
func ComputeDocumentHashBytes(v any) ([HashSize]byte, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return ZeroHash, err
	}
	return Keccak256(canonical), nil
}

// NormalizeHash lower-cases a hex hash and strips an optional 0x prefix,
// so hashes from different tools compare equal without format drift.
func NormalizeHash(value string) string {
	if value == "" {
		return ""
	}
	cleaned := strings.ToLower(value)
	return strings.TrimPrefix(cleaned, "0x")
}
