// Package validation provides input validation for verimeta.
package validation

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress validates an EIP-55 checksummed Ethereum address.
// The mixed-case checksum must be intact; addresses whose canonical form
// has no uppercase letters (all-lowercase checksums) pass as well.
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: contains non-hex characters")
	}
	if common.HexToAddress(addr).Hex() != addr {
		return errors.New("invalid address checksum")
	}
	return nil
}

// ChecksumAddress returns the EIP-55 checksummed form of a hex address,
// accepting any letter casing on input.
func ChecksumAddress(addr string) (string, error) {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return "", errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !common.IsHexAddress(addr) {
		return "", errors.New("invalid address: contains non-hex characters")
	}
	return common.HexToAddress(addr).Hex(), nil
}

// ValidateChainID validates a chain ID.
func ValidateChainID(chainID uint64) error {
	if chainID == 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}
