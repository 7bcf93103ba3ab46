package dispatch

import (
	"fmt"

	"github.com/passkey-vault/wallet/internal/chains"
)

// ErrZeroAmount rejects a transfer of zero before any signing prompt.
var ErrZeroAmount = fmt.Errorf("transfer amount must be greater than zero")

// InvalidRecipientError carries a family-specific message so the form can
// tell the user what a valid address looks like.
type InvalidRecipientError struct {
	Family    chains.Family
	Recipient string
}

func (e *InvalidRecipientError) Error() string {
	switch e.Family {
	case chains.FamilyEVM:
		return fmt.Sprintf("%q is not a valid EVM address (expected 0x followed by 40 hex characters)", e.Recipient)
	case chains.FamilySolana:
		return fmt.Sprintf("%q is not a valid Solana address (expected a base58 public key)", e.Recipient)
	case chains.FamilySui:
		return fmt.Sprintf("%q is not a valid Sui address (expected 0x followed by 64 hex characters)", e.Recipient)
	case chains.FamilyAptos:
		return fmt.Sprintf("%q is not a valid Aptos address (expected 0x followed by up to 64 hex characters)", e.Recipient)
	case chains.FamilyStarknet:
		return fmt.Sprintf("%q is not a valid Starknet address (expected a felt-range 0x hex value)", e.Recipient)
	}
	return fmt.Sprintf("%q is not a valid address for family %q", e.Recipient, e.Family)
}

// RouteNotSupportedError rejects a source/target pair no bridge route
// serves.
type RouteNotSupportedError struct {
	SourceChain chains.ChainID
	TargetChain chains.ChainID
	Reason      string
}

func (e *RouteNotSupportedError) Error() string {
	return fmt.Sprintf("no bridge route from chain %d to chain %d: %s",
		e.SourceChain, e.TargetChain, e.Reason)
}

// DispatchBusyError rejects a dispatch while another send from the same
// vault on that chain is still in flight.
type DispatchBusyError struct {
	ChainID chains.ChainID
}

func (e *DispatchBusyError) Error() string {
	return fmt.Sprintf("a transfer from the vault on chain %d is already in flight", e.ChainID)
}

// NoSigningPathError rejects a plan when neither the gasless nor the legacy
// sending capability is configured for the chain. Falling back silently is
// never done.
type NoSigningPathError struct {
	ChainID chains.ChainID
}

func (e *NoSigningPathError) Error() string {
	return fmt.Sprintf("no signing path available for chain %d", e.ChainID)
}
