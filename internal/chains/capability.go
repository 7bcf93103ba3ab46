package chains

// Capability collects the family-specific behaviour the orchestrator needs.
// Adding a chain family is one entry here plus its validator in address.go.
type Capability struct {
	// ValidateAddress applies the family's address syntax rules.
	ValidateAddress func(address string) bool

	// BridgeSource reports whether the relayer can take custody of a
	// cross-chain transfer originating on this family. Solana is false:
	// the relayer has no Solana-side custody program, so Solana funds can
	// only move within Solana.
	BridgeSource bool
}

var familyCapabilities = map[Family]Capability{
	FamilyEVM:      {ValidateAddress: validateEVMAddress, BridgeSource: true},
	FamilySolana:   {ValidateAddress: validateSolanaAddress, BridgeSource: false},
	FamilySui:      {ValidateAddress: validateSuiAddress, BridgeSource: true},
	FamilyAptos:    {ValidateAddress: validateAptosAddress, BridgeSource: true},
	FamilyStarknet: {ValidateAddress: validateStarknetAddress, BridgeSource: true},
}

// CapabilityOf returns the capability entry for a family.
func CapabilityOf(f Family) (Capability, bool) {
	c, ok := familyCapabilities[f]
	return c, ok
}

// ValidateAddress checks address syntax for the given family. Unknown
// families validate nothing.
func ValidateAddress(f Family, address string) bool {
	c, ok := familyCapabilities[f]
	if !ok {
		return false
	}
	return c.ValidateAddress(address)
}

// SupportsBridgeFrom reports whether a cross-chain transfer may originate on
// the given family.
func SupportsBridgeFrom(f Family) bool {
	c, ok := familyCapabilities[f]
	return ok && c.BridgeSource
}
