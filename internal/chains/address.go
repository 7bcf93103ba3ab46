package chains

import (
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// felt252Prime is the Starknet field prime (2^251 + 17*2^192 + 1). Starknet
// addresses are felts and must be strictly below it.
var felt252Prime, _ = new(big.Int).SetString(
	"800000000000011000000000000000000000000000000000000000000000001", 16)

// validateEVMAddress accepts exactly a 0x-prefixed 20-byte hex address.
func validateEVMAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") {
		return false
	}
	return ethcommon.IsHexAddress(address)
}

// validateSolanaAddress accepts a base58-encoded 32-byte public key. The
// base58 alphabet already excludes the ambiguous glyphs 0, O, I and l.
func validateSolanaAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

// validateSuiAddress accepts 0x followed by exactly 64 hex characters.
func validateSuiAddress(address string) bool {
	return isPrefixedHex(address, 64, 64)
}

// validateAptosAddress accepts 0x followed by 1-64 hex characters. Short
// forms are left-zero-padded by the chain, not here.
func validateAptosAddress(address string) bool {
	return isPrefixedHex(address, 1, 64)
}

// validateStarknetAddress accepts 0x followed by 1-64 hex characters whose
// value lies below the felt252 field prime. Out-of-range values are
// rejected, never clamped.
func validateStarknetAddress(address string) bool {
	if !isPrefixedHex(address, 1, 64) {
		return false
	}
	value, ok := new(big.Int).SetString(strings.TrimPrefix(address, "0x"), 16)
	if !ok {
		return false
	}
	return value.Cmp(felt252Prime) < 0
}

func isPrefixedHex(s string, minDigits, maxDigits int) bool {
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	digits := s[2:]
	if len(digits) < minDigits || len(digits) > maxDigits {
		return false
	}
	for _, c := range digits {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
