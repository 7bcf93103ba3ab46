// Package wallet assembles the session orchestrator the UI talks to. One
// Session is constructed per authenticated run; there is no ambient global
// state, so independent sessions can coexist in tests.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/bridge"
	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/clients"
	"github.com/passkey-vault/wallet/internal/dispatch"
	"github.com/passkey-vault/wallet/internal/metrics"
	"github.com/passkey-vault/wallet/internal/passkey"
	"github.com/passkey-vault/wallet/internal/spending"
	"github.com/passkey-vault/wallet/internal/syncrisk"
	"github.com/passkey-vault/wallet/internal/vaults"
)

// Session is the per-run orchestrator. All UI entry points go through it;
// it owns nothing the sub-components already own and only coordinates them.
type Session struct {
	logger   *zap.Logger
	registry *chains.Registry

	provider passkey.Provider
	creds    *passkey.CredentialStore
	vaults   *vaults.Manager
	engine   *dispatch.Engine
	tracker  *bridge.Tracker
	guard    *spending.Guard
	limits   clients.LimitsAccessor
	sync     *syncrisk.Keeper
}

// Config carries the session's collaborators. Provider, limits and the
// engine's capabilities may be absent; the corresponding entry points then
// return errors instead of guessing.
type Config struct {
	Registry *chains.Registry
	Provider passkey.Provider
	Creds    *passkey.CredentialStore
	Vaults   *vaults.Manager
	Engine   *dispatch.Engine
	Tracker  *bridge.Tracker
	Guard    *spending.Guard
	Limits   clients.LimitsAccessor
	Sync     *syncrisk.Keeper
}

// NewSession wires a session from its components.
func NewSession(logger *zap.Logger, cfg Config) *Session {
	return &Session{
		logger:   logger.With(zap.String("component", "Session")),
		registry: cfg.Registry,
		provider: cfg.Provider,
		creds:    cfg.Creds,
		vaults:   cfg.Vaults,
		engine:   cfg.Engine,
		tracker:  cfg.Tracker,
		guard:    cfg.Guard,
		limits:   cfg.Limits,
		sync:     cfg.Sync,
	}
}

// Register runs the passkey registration ceremony, persists the credential,
// reconciles vault records and kicks off sponsored vault creation on every
// chain that lacks one.
func (s *Session) Register(ctx context.Context, username, displayName string) ([]vaults.DeployResult, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no passkey provider configured")
	}

	cred, err := s.provider.Register(ctx, username, displayName)
	if err != nil {
		return nil, fmt.Errorf("passkey registration failed: %v", err)
	}
	if err := s.creds.Save(cred); err != nil {
		return nil, fmt.Errorf("failed to persist credential: %v", err)
	}

	s.vaults.SetIdentity(cred)
	s.reconcile(ctx)
	return s.vaults.EnsureDeployed(ctx)
}

// Login runs the authentication ceremony and reconciles vault records for
// the returning identity.
func (s *Session) Login(ctx context.Context) ([]vaults.Record, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no passkey provider configured")
	}

	cred, err := s.provider.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("passkey authentication failed: %v", err)
	}
	if err := s.creds.Save(cred); err != nil {
		return nil, fmt.Errorf("failed to persist credential: %v", err)
	}

	s.vaults.SetIdentity(cred)
	return s.reconcile(ctx), nil
}

// Resume restores a persisted credential without a ceremony. It reports
// whether a session was restored.
func (s *Session) Resume(ctx context.Context) ([]vaults.Record, bool) {
	cred, ok := s.creds.Load()
	if !ok {
		return nil, false
	}
	s.vaults.SetIdentity(cred)
	return s.reconcile(ctx), true
}

// Logout forgets the in-memory session. The persisted credential survives
// for the next Resume or Login.
func (s *Session) Logout() {
	s.creds.ClearSession()
	s.vaults.Logout()
}

// DeleteIdentity permanently removes the persisted credential and its sync
// status, then ends the session.
func (s *Session) DeleteIdentity() error {
	if err := s.creds.Delete(); err != nil {
		return err
	}
	s.sync.Clear()
	s.vaults.Logout()
	return nil
}

func (s *Session) reconcile(ctx context.Context) []vaults.Record {
	records, err := s.vaults.Reconcile(ctx)
	if err != nil {
		s.logger.Warn("Reconcile skipped", zap.Error(err))
		return nil
	}
	for _, rec := range records {
		if rec.State == vaults.ResourceFailed {
			metrics.ReconcileFailuresTotal.WithLabelValues(fmt.Sprintf("%d", rec.ChainID)).Inc()
		}
	}
	return records
}

// TransferPreview is a validated plan plus the advisory spending verdict.
// Advisory is nil when no limits accessor serves the source chain; the
// chain remains the only real gate either way.
type TransferPreview struct {
	Plan     dispatch.Plan
	Advisory *spending.CheckResult
}

// PlanTransfer validates an intent into an executable plan and attaches the
// spending guard's advisory verdict for same-chain sends.
func (s *Session) PlanTransfer(ctx context.Context, intent dispatch.Intent) (TransferPreview, error) {
	plan, err := s.engine.Plan(intent)
	if err != nil {
		metrics.PlanRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
		return TransferPreview{}, err
	}
	metrics.TransfersPlannedTotal.WithLabelValues(string(plan.Mode), string(plan.SigningMode)).Inc()

	preview := TransferPreview{Plan: plan}
	if s.limits != nil {
		snapshot, err := s.limits.GetLimits(ctx, intent.SourceChainID)
		if err != nil {
			// Advisory only; an unreachable limits contract never blocks
			// planning.
			s.logger.Warn("Spending snapshot unavailable",
				zap.Uint64("chainId", uint64(intent.SourceChainID)),
				zap.Error(err))
		} else {
			result := s.guard.Evaluate(intent.Amount, snapshot)
			preview.Advisory = &result
		}
	}
	return preview, nil
}

// TransferOutcome is the result of an executed plan. Same-chain sends carry
// a receipt; bridges carry the tracking id and a progress stream that closes
// after the terminal update.
type TransferOutcome struct {
	Receipt  *clients.TxReceipt
	BridgeID string
	Updates  <-chan clients.ProgressUpdate
}

// ExecuteTransfer submits a plan. Balances are refreshed after settlement:
// immediately for same-chain sends, after the terminal update for bridges.
func (s *Session) ExecuteTransfer(ctx context.Context, plan dispatch.Plan) (TransferOutcome, error) {
	switch plan.Mode {
	case dispatch.ModeSameChain:
		receipt, err := s.engine.ExecuteSameChain(ctx, plan)
		if err != nil {
			metrics.TransfersExecutedTotal.WithLabelValues(string(plan.Mode), "failed").Inc()
			return TransferOutcome{}, err
		}
		metrics.TransfersExecutedTotal.WithLabelValues(string(plan.Mode), "completed").Inc()
		s.refreshBalance(ctx, plan.Intent.SourceChainID)
		return TransferOutcome{Receipt: &receipt}, nil

	case dispatch.ModeBridge:
		id, updates, err := s.engine.ExecuteBridge(ctx, plan)
		if err != nil {
			metrics.TransfersExecutedTotal.WithLabelValues(string(plan.Mode), "failed").Inc()
			return TransferOutcome{}, err
		}
		out := make(chan clients.ProgressUpdate, 8)
		go s.watchBridge(ctx, plan, updates, out)
		return TransferOutcome{BridgeID: id, Updates: out}, nil
	}
	return TransferOutcome{}, fmt.Errorf("plan has no execution mode")
}

// watchBridge mirrors the progress stream to the caller and refreshes both
// ends after a successful terminal update.
func (s *Session) watchBridge(ctx context.Context, plan dispatch.Plan, in <-chan clients.ProgressUpdate, out chan<- clients.ProgressUpdate) {
	defer close(out)

	for update := range in {
		if update.Terminal {
			if update.Err != nil {
				metrics.TransfersExecutedTotal.WithLabelValues(string(plan.Mode), "failed").Inc()
				metrics.BridgesTotal.WithLabelValues(string(bridge.OutcomeFailed)).Inc()
			} else {
				metrics.TransfersExecutedTotal.WithLabelValues(string(plan.Mode), "completed").Inc()
				metrics.BridgesTotal.WithLabelValues(string(bridge.OutcomeCompleted)).Inc()
				s.refreshBalance(ctx, plan.Intent.SourceChainID)
				s.refreshBalance(ctx, plan.Intent.TargetChainID)
			}
		}
		out <- update
	}
}

func (s *Session) refreshBalance(ctx context.Context, chainID chains.ChainID) {
	if err := s.vaults.RefreshBalance(ctx, chainID); err != nil {
		s.logger.Warn("Balance refresh failed",
			zap.Uint64("chainId", uint64(chainID)),
			zap.Error(err))
	}
}

// SpendingView is the snapshot-derived view model shown on the limits
// screen.
type SpendingView struct {
	Snapshot    spending.Snapshot
	Remaining   decimal.Decimal
	PercentUsed float64
	ResetIn     string
}

// SpendingStatus fetches the authoritative on-chain snapshot and derives
// the advisory view.
func (s *Session) SpendingStatus(ctx context.Context, chainID chains.ChainID) (SpendingView, error) {
	if s.limits == nil {
		return SpendingView{}, fmt.Errorf("no limits accessor configured")
	}
	snapshot, err := s.limits.GetLimits(ctx, chainID)
	if err != nil {
		return SpendingView{}, err
	}
	return SpendingView{
		Snapshot:    snapshot,
		Remaining:   spending.RemainingAllowance(snapshot),
		PercentUsed: spending.PercentUsed(snapshot),
		ResetIn:     s.guard.ResetCountdown(snapshot).String(),
	}, nil
}

// EvaluateSpend runs the advisory guard against the current on-chain
// snapshot for a hypothetical amount, without planning a transfer.
func (s *Session) EvaluateSpend(ctx context.Context, chainID chains.ChainID, amount decimal.Decimal) (spending.CheckResult, error) {
	if s.limits == nil {
		return spending.CheckResult{}, fmt.Errorf("no limits accessor configured")
	}
	snapshot, err := s.limits.GetLimits(ctx, chainID)
	if err != nil {
		return spending.CheckResult{}, err
	}
	return s.guard.Evaluate(amount, snapshot), nil
}

// RequestLimitIncrease submits a daily-limit change and re-fetches the
// snapshot; the chain's answer, not the request, is what the caller gets
// back.
func (s *Session) RequestLimitIncrease(ctx context.Context, chainID chains.ChainID, newLimit decimal.Decimal) (spending.Snapshot, error) {
	if s.limits == nil {
		return spending.Snapshot{}, fmt.Errorf("no limits accessor configured")
	}
	if err := s.limits.SetDailyLimit(ctx, chainID, newLimit); err != nil {
		return spending.Snapshot{}, err
	}
	metrics.LimitMutationsTotal.WithLabelValues("set_daily_limit").Inc()
	return s.limits.GetLimits(ctx, chainID)
}

// PauseVault pauses spending on a chain's vault.
func (s *Session) PauseVault(ctx context.Context, chainID chains.ChainID) error {
	if s.limits == nil {
		return fmt.Errorf("no limits accessor configured")
	}
	if err := s.limits.Pause(ctx, chainID); err != nil {
		return err
	}
	metrics.LimitMutationsTotal.WithLabelValues("pause").Inc()
	return nil
}

// UnpauseVault resumes spending on a chain's vault.
func (s *Session) UnpauseVault(ctx context.Context, chainID chains.ChainID) error {
	if s.limits == nil {
		return fmt.Errorf("no limits accessor configured")
	}
	if err := s.limits.Unpause(ctx, chainID); err != nil {
		return err
	}
	metrics.LimitMutationsTotal.WithLabelValues("unpause").Inc()
	return nil
}

// SyncFlags is the sync-risk state the UI renders.
type SyncFlags struct {
	ShowBanner         bool
	ShowWeeklyReminder bool
	Risk               syncrisk.RiskLevel
}

// SyncStatus returns the current banner and reminder flags.
func (s *Session) SyncStatus() SyncFlags {
	return SyncFlags{
		ShowBanner:         s.sync.ShouldShowBanner(),
		ShowWeeklyReminder: s.sync.ShouldShowWeeklyReminder(),
		Risk:               s.sync.RiskLevel(),
	}
}

// ConfirmSyncChoice records the user's self-reported passkey sync state and
// restarts the reminder clock.
func (s *Session) ConfirmSyncChoice(choice syncrisk.Choice) {
	s.sync.Confirm(choice)
}

// DismissSyncReminder suppresses further weekly reminders until the next
// confirmation.
func (s *Session) DismissSyncReminder() {
	s.sync.DismissReminder()
}

// MarkSyncReminderShown stamps the reminder clock after the UI displays it.
func (s *Session) MarkSyncReminderShown() {
	s.sync.MarkReminderShown()
}

// VaultRecords returns the per-chain vault records in registry order.
func (s *Session) VaultRecords() []vaults.Record {
	return s.vaults.Records()
}

// ReconcileVaults re-runs vault reconciliation for the active identity.
func (s *Session) ReconcileVaults(ctx context.Context) ([]vaults.Record, error) {
	if _, ok := s.vaults.Identity(); !ok {
		return nil, vaults.ErrNotAuthenticated
	}
	return s.reconcile(ctx), nil
}

// EnsureVaultsDeployed attempts sponsored creation of every missing vault.
func (s *Session) EnsureVaultsDeployed(ctx context.Context) ([]vaults.DeployResult, error) {
	return s.vaults.EnsureDeployed(ctx)
}

// BridgeProgress returns the active bridge snapshot, if one is running.
func (s *Session) BridgeProgress() (bridge.Progress, bool) {
	return s.tracker.Active()
}

// BridgeHistory returns all finished bridges for the session, oldest first.
func (s *Session) BridgeHistory() []bridge.Result {
	return s.tracker.History()
}

// rejectionReason maps a planning error onto a bounded metrics label.
func rejectionReason(err error) string {
	var (
		invalidRecipient *dispatch.InvalidRecipientError
		unknownChain     *chains.UnknownChainError
		route            *dispatch.RouteNotSupportedError
		notDeployed      *vaults.NotDeployedError
		noPath           *dispatch.NoSigningPathError
	)
	switch {
	case errors.Is(err, dispatch.ErrZeroAmount):
		return "zero_amount"
	case errors.As(err, &invalidRecipient):
		return "invalid_recipient"
	case errors.As(err, &unknownChain):
		return "unknown_chain"
	case errors.As(err, &route):
		return "route_not_supported"
	case errors.As(err, &notDeployed):
		return "vault_not_deployed"
	case errors.As(err, &noPath):
		return "no_signing_path"
	}
	return "other"
}
