// Package clients defines the external collaborator boundary: per-family
// chain clients, the bridge relayer transport and the on-chain spending-limit
// accessor. The orchestrator owns none of their internals; it only relies on
// the contracts below.
package clients

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/passkey"
	"github.com/passkey-vault/wallet/internal/spending"
)

// TxReceipt identifies a submitted transfer: the source transaction hash and
// the Wormhole-style sequence number assigned to it.
type TxReceipt struct {
	TxHash   string `json:"txHash"`
	Sequence uint64 `json:"sequence"`
}

// Transfer is a same-chain transfer ready for submission. Amount is in token
// base units; Vault is the sender's vault on the chain.
type Transfer struct {
	ChainID   chains.ChainID
	Vault     string
	Token     string
	Recipient string
	Amount    decimal.Decimal
	Gasless   bool
}

// BridgeTransfer is a cross-chain transfer handed to the relayer. Routing
// uses Wormhole chain ids; the wallet-local ids ride along for bookkeeping.
type BridgeTransfer struct {
	SourceChain      chains.ChainID
	TargetChain      chains.ChainID
	SourceWormholeID vaaLib.ChainID
	TargetWormholeID vaaLib.ChainID
	SourceVault      string
	Token            string
	Recipient        string
	Amount           decimal.Decimal
}

// ProgressUpdate is one step of a bridge in flight. The relayer delivers
// updates in non-decreasing step order; the final update has Terminal set
// and carries either a receipt or an error.
type ProgressUpdate struct {
	Step       int
	TotalSteps int
	Message    string
	Terminal   bool
	Receipt    *TxReceipt
	Err        error
}

// SponsoredResult reports one sponsored vault-creation attempt.
// AlreadyExists distinguishes "no-op, vault was there" from "newly created".
type SponsoredResult struct {
	Address       string `json:"address"`
	AlreadyExists bool   `json:"alreadyExists"`
}

// ChainClient is the per-family chain collaborator.
type ChainClient interface {
	Family() chains.Family

	// ComputeVaultAddress derives the deterministic vault address for an
	// identity. Pure with respect to chain state.
	ComputeVaultAddress(ctx context.Context, identity passkey.Credential) (string, error)

	// VaultExists reports whether the vault at address is deployed.
	VaultExists(ctx context.Context, address string) (bool, error)

	// SendSameChain submits a transfer whose source and destination are
	// this chain.
	SendSameChain(ctx context.Context, transfer Transfer) (TxReceipt, error)

	// CreateVaultSponsored deploys the identity's vault with the fee paid
	// by the sponsor.
	CreateVaultSponsored(ctx context.Context, identity passkey.Credential) (SponsoredResult, error)

	// RefreshBalance fetches the vault's current balance in base units.
	RefreshBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// BridgeRelayer dispatches cross-chain transfers. The returned channel
// yields progress updates and is closed after the terminal update.
type BridgeRelayer interface {
	DispatchBridge(ctx context.Context, transfer BridgeTransfer) (<-chan ProgressUpdate, error)
}

// GaslessSender is the relayer-backed sending capability for same-chain
// transfers. Its presence is what selects the gasless signing path.
type GaslessSender interface {
	SponsorTransfer(ctx context.Context, transfer Transfer) (TxReceipt, error)
}

// LimitsAccessor talks to the on-chain spending-limit contract. All calls
// are authoritative; a mutation is only reflected after the accessor
// confirms and the snapshot is re-fetched.
type LimitsAccessor interface {
	GetLimits(ctx context.Context, chainID chains.ChainID) (spending.Snapshot, error)
	SetDailyLimit(ctx context.Context, chainID chains.ChainID, newLimit decimal.Decimal) error
	Pause(ctx context.Context, chainID chains.ChainID) error
	Unpause(ctx context.Context, chainID chains.ChainID) error
}

// CollaboratorError wraps any failure from an external chain client or
// relayer, surfaced verbatim to the UI with enough context to retry.
type CollaboratorError struct {
	Op      string
	ChainID chains.ChainID
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s on chain %d: %v", e.Op, e.ChainID, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
