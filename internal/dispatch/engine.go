// Package dispatch decides how a transfer intent gets executed: same-chain
// or bridge, gasless or legacy signing, with all validation done before any
// signing prompt.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/bridge"
	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/clients"
	"github.com/passkey-vault/wallet/internal/vaults"
)

// Mode selects the execution route of a plan.
type Mode string

const (
	ModeSameChain Mode = "same_chain"
	ModeBridge    Mode = "bridge"
)

// SigningMode selects who pays and signs. Gasless is preferred whenever the
// relayer capability is present; legacy is the wallet-signed fallback and is
// only chosen when explicitly configured.
type SigningMode string

const (
	SigningGasless SigningMode = "gasless"
	SigningLegacy  SigningMode = "legacy"
)

// SelfTransferKind classifies a recipient that is one of the identity's own
// vaults. Cross-chain self-sends are the normal way to move funds between
// one's own chains and are surfaced positively; same-chain self-sends get a
// soft warning.
type SelfTransferKind string

const (
	SelfTransferNone       SelfTransferKind = "none"
	SelfTransferSameChain  SelfTransferKind = "same_chain"
	SelfTransferCrossChain SelfTransferKind = "cross_chain"
)

// Intent is the user-entered transfer request. It is validated and either
// promoted to a Plan or discarded; never persisted.
type Intent struct {
	SourceChainID chains.ChainID
	TargetChainID chains.ChainID
	Token         string
	Recipient     string
	Amount        decimal.Decimal
}

// Plan is a fully validated intent ready for execution. It lives only for
// the duration of the send.
type Plan struct {
	Mode         Mode
	SigningMode  SigningMode
	SelfTransfer SelfTransferKind
	Intent       Intent
	SourceVault  string
}

// Engine turns intents into plans and plans into submissions. Capabilities
// are fixed at construction: a nil gasless sender or an absent legacy client
// removes that signing path rather than being worked around.
type Engine struct {
	logger   *zap.Logger
	registry *chains.Registry
	vaults   *vaults.Manager
	tracker  *bridge.Tracker

	relayer clients.BridgeRelayer
	gasless clients.GaslessSender
	legacy  map[chains.ChainID]clients.ChainClient

	// One dispatch per (identity, source chain) pair at a time; the engine
	// is per-session, so the chain id alone keys the pair.
	mu       sync.Mutex
	inFlight map[chains.ChainID]struct{}
}

// NewEngine creates a dispatch engine. relayer enables bridging, gasless
// enables sponsored same-chain sends, legacy holds the wallet-signed chain
// clients; any of them may be absent.
func NewEngine(
	logger *zap.Logger,
	registry *chains.Registry,
	vaultManager *vaults.Manager,
	tracker *bridge.Tracker,
	relayer clients.BridgeRelayer,
	gasless clients.GaslessSender,
	legacy map[chains.ChainID]clients.ChainClient,
) *Engine {
	return &Engine{
		logger:   logger.With(zap.String("component", "DispatchEngine")),
		registry: registry,
		vaults:   vaultManager,
		tracker:  tracker,
		relayer:  relayer,
		gasless:  gasless,
		legacy:   legacy,
		inFlight: make(map[chains.ChainID]struct{}),
	}
}

// claimSourceChain marks the source vault's chain as having a dispatch in
// flight.
func (e *Engine) claimSourceChain(chainID chains.ChainID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inFlight[chainID]; busy {
		return &DispatchBusyError{ChainID: chainID}
	}
	e.inFlight[chainID] = struct{}{}
	return nil
}

func (e *Engine) releaseSourceChain(chainID chains.ChainID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, chainID)
}

// Plan validates an intent and decides its route and signing mode. All
// rejections happen here; Execute never prompts for a signature on a plan
// this method did not accept.
func (e *Engine) Plan(intent Intent) (Plan, error) {
	source, err := e.registry.Descriptor(intent.SourceChainID)
	if err != nil {
		return Plan{}, err
	}
	target, err := e.registry.Descriptor(intent.TargetChainID)
	if err != nil {
		return Plan{}, err
	}

	if !intent.Amount.IsPositive() {
		return Plan{}, ErrZeroAmount
	}

	if !chains.ValidateAddress(target.Family, intent.Recipient) {
		return Plan{}, &InvalidRecipientError{Family: target.Family, Recipient: intent.Recipient}
	}

	mode := ModeSameChain
	if intent.SourceChainID != intent.TargetChainID {
		mode = ModeBridge
		if !chains.SupportsBridgeFrom(source.Family) {
			return Plan{}, &RouteNotSupportedError{
				SourceChain: intent.SourceChainID,
				TargetChain: intent.TargetChainID,
				Reason:      fmt.Sprintf("%s has no cross-chain providers", source.Family),
			}
		}
		if !source.Bridgeable() || !target.Bridgeable() {
			return Plan{}, &RouteNotSupportedError{
				SourceChain: intent.SourceChainID,
				TargetChain: intent.TargetChainID,
				Reason:      "chain is not connected to the bridge",
			}
		}
	}

	// Same-chain sends spend from the source vault, so it must exist.
	var sourceVault string
	if mode == ModeSameChain {
		record, err := e.vaults.RequireDeployed(intent.SourceChainID)
		if err != nil {
			return Plan{}, err
		}
		sourceVault = record.Address
	} else {
		sourceVault, err = e.vaults.VaultAddress(intent.SourceChainID)
		if err != nil {
			return Plan{}, err
		}
	}

	signingMode, err := e.signingModeFor(mode, intent.SourceChainID)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Mode:         mode,
		SigningMode:  signingMode,
		SelfTransfer: e.classifySelfTransfer(intent, mode),
		Intent:       intent,
		SourceVault:  sourceVault,
	}

	e.logger.Debug("Transfer planned",
		zap.String("mode", string(plan.Mode)),
		zap.String("signingMode", string(plan.SigningMode)),
		zap.Uint64("sourceChain", uint64(intent.SourceChainID)),
		zap.Uint64("targetChain", uint64(intent.TargetChainID)))
	return plan, nil
}

// signingModeFor prefers the gasless path and refuses to guess when no path
// is configured.
func (e *Engine) signingModeFor(mode Mode, sourceChain chains.ChainID) (SigningMode, error) {
	if mode == ModeBridge {
		// Bridging is relayer-executed and therefore always sponsored.
		if e.relayer == nil {
			return "", &NoSigningPathError{ChainID: sourceChain}
		}
		return SigningGasless, nil
	}
	if e.gasless != nil {
		return SigningGasless, nil
	}
	if _, ok := e.legacy[sourceChain]; ok {
		return SigningLegacy, nil
	}
	return "", &NoSigningPathError{ChainID: sourceChain}
}

// classifySelfTransfer checks the recipient against the identity's own
// vault addresses.
func (e *Engine) classifySelfTransfer(intent Intent, mode Mode) SelfTransferKind {
	if mode == ModeSameChain {
		if addr, err := e.vaults.VaultAddress(intent.SourceChainID); err == nil && addr == intent.Recipient {
			return SelfTransferSameChain
		}
		return SelfTransferNone
	}
	if addr, err := e.vaults.VaultAddress(intent.TargetChainID); err == nil && addr == intent.Recipient {
		return SelfTransferCrossChain
	}
	return SelfTransferNone
}

// ExecuteSameChain submits a same-chain plan through the signing path the
// plan selected.
func (e *Engine) ExecuteSameChain(ctx context.Context, plan Plan) (clients.TxReceipt, error) {
	if plan.Mode != ModeSameChain {
		return clients.TxReceipt{}, fmt.Errorf("plan mode is %q, not %q", plan.Mode, ModeSameChain)
	}

	if err := e.claimSourceChain(plan.Intent.SourceChainID); err != nil {
		return clients.TxReceipt{}, err
	}
	defer e.releaseSourceChain(plan.Intent.SourceChainID)

	transfer := clients.Transfer{
		ChainID:   plan.Intent.SourceChainID,
		Vault:     plan.SourceVault,
		Token:     plan.Intent.Token,
		Recipient: plan.Intent.Recipient,
		Amount:    plan.Intent.Amount,
		Gasless:   plan.SigningMode == SigningGasless,
	}

	switch plan.SigningMode {
	case SigningGasless:
		receipt, err := e.gasless.SponsorTransfer(ctx, transfer)
		if err != nil {
			return clients.TxReceipt{}, &clients.CollaboratorError{
				Op: "sponsor transfer", ChainID: transfer.ChainID, Err: err,
			}
		}
		return receipt, nil
	case SigningLegacy:
		client, ok := e.legacy[transfer.ChainID]
		if !ok {
			return clients.TxReceipt{}, &NoSigningPathError{ChainID: transfer.ChainID}
		}
		receipt, err := client.SendSameChain(ctx, transfer)
		if err != nil {
			return clients.TxReceipt{}, &clients.CollaboratorError{
				Op: "send transfer", ChainID: transfer.ChainID, Err: err,
			}
		}
		return receipt, nil
	}
	return clients.TxReceipt{}, &NoSigningPathError{ChainID: transfer.ChainID}
}

// ExecuteBridge dispatches a bridge plan to the relayer and registers it
// with the tracker. The returned channel mirrors the relayer's progress
// stream and is closed after the terminal update; the tracker is kept in
// step so the UI snapshot and history stay consistent.
func (e *Engine) ExecuteBridge(ctx context.Context, plan Plan) (string, <-chan clients.ProgressUpdate, error) {
	if plan.Mode != ModeBridge {
		return "", nil, fmt.Errorf("plan mode is %q, not %q", plan.Mode, ModeBridge)
	}

	source, err := e.registry.Descriptor(plan.Intent.SourceChainID)
	if err != nil {
		return "", nil, err
	}
	target, err := e.registry.Descriptor(plan.Intent.TargetChainID)
	if err != nil {
		return "", nil, err
	}

	transfer := clients.BridgeTransfer{
		SourceChain:      source.ID,
		TargetChain:      target.ID,
		SourceWormholeID: source.WormholeID,
		TargetWormholeID: target.WormholeID,
		SourceVault:      plan.SourceVault,
		Token:            plan.Intent.Token,
		Recipient:        plan.Intent.Recipient,
		Amount:           plan.Intent.Amount,
	}

	id, err := e.tracker.Begin(transfer)
	if err != nil {
		return "", nil, err
	}
	if err := e.claimSourceChain(plan.Intent.SourceChainID); err != nil {
		e.tracker.Abort(id)
		return "", nil, err
	}

	updates, err := e.relayer.DispatchBridge(ctx, transfer)
	if err != nil {
		// Nothing left the wallet; release the slot without a history
		// entry.
		e.tracker.Abort(id)
		e.releaseSourceChain(plan.Intent.SourceChainID)
		return "", nil, &clients.CollaboratorError{
			Op: "dispatch bridge", ChainID: transfer.SourceChain, Err: err,
		}
	}

	out := make(chan clients.ProgressUpdate, 8)
	go e.trackBridge(id, transfer, updates, out)
	return id, out, nil
}

// trackBridge forwards relayer updates to the caller while mirroring them
// into the tracker.
func (e *Engine) trackBridge(id string, transfer clients.BridgeTransfer, in <-chan clients.ProgressUpdate, out chan<- clients.ProgressUpdate) {
	defer close(out)
	defer e.releaseSourceChain(transfer.SourceChain)

	terminal := false
	for update := range in {
		if update.Terminal {
			terminal = true
			e.tracker.Finish(id, transfer, update)
		} else {
			e.tracker.Advance(id, update)
		}
		out <- update
	}
	if !terminal {
		// Relayer closed the stream without a terminal update.
		e.tracker.Finish(id, transfer, clients.ProgressUpdate{
			Terminal: true,
			Err:      fmt.Errorf("bridge progress stream ended without a terminal update"),
		})
	}
}
