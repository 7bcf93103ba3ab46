package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEVMAddress(t *testing.T) {
	cases := []struct {
		name    string
		address string
		valid   bool
	}{
		{"checksummed", "0x248EC2E5595480fF371031698ae3a4099b8dC229", true},
		{"lowercase", "0x248ec2e5595480ff371031698ae3a4099b8dc229", true},
		{"no prefix", "248EC2E5595480fF371031698ae3a4099b8dC229", false},
		{"too short", "0x248EC2E5595480fF3710", false},
		{"too long", "0x248EC2E5595480fF371031698ae3a4099b8dC22900", false},
		{"not hex", "0x248EC2E5595480fF371031698ae3a4099b8dCZZZ", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidateAddress(FamilyEVM, tc.address))
		})
	}
}

func TestValidateSolanaAddress(t *testing.T) {
	cases := []struct {
		name    string
		address string
		valid   bool
	}{
		{"system program", "11111111111111111111111111111111", true},
		{"typical pubkey", "3u8hJUVTA4jH1wYAyUur7FFZVQ8H635K3tSHHF4ssjQ5", true},
		{"too short", "abc", false},
		{"ambiguous glyphs", "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl", false},
		{"evm address", "0x248EC2E5595480fF371031698ae3a4099b8dC229", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidateAddress(FamilySolana, tc.address))
		})
	}
}

func TestValidateSuiAddress(t *testing.T) {
	full := "0x0848d2af89dfd7c0e171238f9216399e61e908cd31b0222a920f1bf621a16ed6"
	assert.True(t, ValidateAddress(FamilySui, full))
	assert.False(t, ValidateAddress(FamilySui, "0x0848d2af"), "sui requires the full 32-byte form")
	assert.False(t, ValidateAddress(FamilySui, full+"00"))
	assert.False(t, ValidateAddress(FamilySui, ""))
}

func TestValidateAptosAddress(t *testing.T) {
	assert.True(t, ValidateAddress(FamilyAptos, "0x1"))
	assert.True(t, ValidateAddress(FamilyAptos, "0x0848d2af89dfd7c0e171238f9216399e61e908cd31b0222a920f1bf621a16ed6"))
	assert.False(t, ValidateAddress(FamilyAptos, "0x"))
	assert.False(t, ValidateAddress(FamilyAptos, "0x0848d2af89dfd7c0e171238f9216399e61e908cd31b0222a920f1bf621a16ed600"))
	assert.False(t, ValidateAddress(FamilyAptos, "1"))
}

func TestValidateStarknetAddress(t *testing.T) {
	assert.True(t, ValidateAddress(FamilyStarknet, "0x1"))
	assert.True(t, ValidateAddress(FamilyStarknet, "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"))

	// At and above the felt252 prime: rejected, not clamped.
	assert.False(t, ValidateAddress(FamilyStarknet, "0x800000000000011000000000000000000000000000000000000000000000001"))
	assert.False(t, ValidateAddress(FamilyStarknet, "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"))
	assert.False(t, ValidateAddress(FamilyStarknet, "0xzz"))
	assert.False(t, ValidateAddress(FamilyStarknet, ""))
}

func TestValidateAddressUnknownFamily(t *testing.T) {
	assert.False(t, ValidateAddress(Family("cosmos"), "cosmos1abcdef"))
}
