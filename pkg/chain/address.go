package chain

import (
	"bytes"
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"github.com/trc8004/m2m-go/pkg/errdefs"
)

// Address is a base58check TRON address (prefix byte 0x41).
type Address string

const addressPrefix = 0x41

// Bytes decodes the 20-byte account portion of the address, verifying
// the prefix and checksum.
func (a Address) Bytes() ([20]byte, error) {
	var out [20]byte

	raw, err := base58.Decode(string(a))
	if err != nil {
		return out, errdefs.NewValidation("address is not valid base58", string(a))
	}
	if len(raw) != 25 {
		return out, errdefs.NewValidation("address must decode to 25 bytes", len(raw))
	}
	if raw[0] != addressPrefix {
		return out, errdefs.NewValidation("address has wrong network prefix", raw[0])
	}

	payload, checksum := raw[:21], raw[21:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], checksum) {
		return out, errdefs.NewValidation("address checksum mismatch", string(a))
	}

	copy(out[:], payload[1:])
	return out, nil
}

// EthAddress returns the account bytes in go-ethereum's address type for
// ABI encoding.
func (a Address) EthAddress() (common.Address, error) {
	b, err := a.Bytes()
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b[:]), nil
}

// EncodeAddress formats 20 account bytes as a base58check TRON address.
func EncodeAddress(account [20]byte) Address {
	payload := make([]byte, 0, 25)
	payload = append(payload, addressPrefix)
	payload = append(payload, account[:]...)

	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	payload = append(payload, second[:4]...)

	return Address(base58.Encode(payload))
}
