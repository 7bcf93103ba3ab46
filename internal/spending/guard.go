// Package spending turns the on-chain spending-limit snapshot into
// human-facing guidance. Nothing here authorizes anything: the chain's own
// enforcement is authoritative and an accepted suggestion must be
// re-submitted through the limits accessor.
package spending

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
)

// Snapshot is the read-only projection of on-chain spending-limit state as
// fetched by the limits accessor. Amounts are token base units. A DailyLimit
// of exactly zero is the sentinel for "unlimited", not "zero allowance".
type Snapshot struct {
	ChainID          chains.ChainID
	DailyLimit       decimal.Decimal
	DailySpent       decimal.Decimal
	TransactionLimit decimal.Decimal
	DayResetTime     time.Time
	Paused           bool
}

// Unlimited reports whether the daily limit sentinel is set.
func (s Snapshot) Unlimited() bool {
	return s.DailyLimit.IsZero()
}

// SuggestionKind enumerates the remediation actions the guard can propose.
type SuggestionKind string

const (
	SuggestUnpauseVault  SuggestionKind = "unpause_vault"
	SuggestSendPartial   SuggestionKind = "send_partial"
	SuggestIncreaseLimit SuggestionKind = "increase_limit"
	SuggestWaitForReset  SuggestionKind = "wait_for_reset"
)

// Suggestion carries enough data for the UI to act without re-querying.
type Suggestion struct {
	Kind     SuggestionKind
	Amount   decimal.Decimal // send_partial: the amount that still fits
	NewLimit decimal.Decimal // increase_limit: minimum limit that would allow the request
	Wait     time.Duration   // wait_for_reset: time until the daily window resets
}

// CheckResult is the guard's verdict on one requested spend.
type CheckResult struct {
	Allowed     bool
	Requested   decimal.Decimal
	Remaining   decimal.Decimal
	Suggestions []Suggestion
}

// InsufficientAllowanceError is raised when a requested spend exceeds the
// remaining daily allowance. It always carries at least one suggestion and
// is never fatal.
type InsufficientAllowanceError struct {
	Result CheckResult
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("requested %s exceeds remaining daily allowance %s",
		e.Result.Requested, e.Result.Remaining)
}

// RemainingAllowance computes max(0, dailyLimit - dailySpent). Callers must
// special-case the unlimited sentinel before using this value.
func RemainingAllowance(s Snapshot) decimal.Decimal {
	remaining := s.DailyLimit.Sub(s.DailySpent)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// PercentUsed returns daily consumption as 0-100. Unlimited vaults always
// read zero.
func PercentUsed(s Snapshot) float64 {
	if s.Unlimited() || !s.DailySpent.IsPositive() {
		return 0
	}
	pct, _ := s.DailySpent.Div(s.DailyLimit).Mul(decimal.NewFromInt(100)).Float64()
	if pct > 100 {
		return 100
	}
	return pct
}

// Guard derives advisory verdicts from snapshots.
type Guard struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewGuard creates a guard. A nil now defaults to time.Now.
func NewGuard(logger *zap.Logger, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{
		logger: logger.With(zap.String("component", "SpendingGuard")),
		now:    now,
	}
}

// ResetCountdown returns the time remaining until the daily window resets,
// clamped at zero.
func (g *Guard) ResetCountdown(s Snapshot) time.Duration {
	wait := s.DayResetTime.Sub(g.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Evaluate checks a requested spend against the snapshot and, when it would
// be rejected on-chain, proposes remediations in least-friction-first order.
// Unpause always leads when the vault is paused since nothing else can
// succeed; in the degenerate paused-and-at-limit case it is the sole action.
func (g *Guard) Evaluate(requested decimal.Decimal, s Snapshot) CheckResult {
	remaining := RemainingAllowance(s)
	result := CheckResult{
		Requested: requested,
		Remaining: remaining,
		Allowed:   s.Unlimited() || requested.LessThanOrEqual(remaining),
	}

	if result.Allowed && !s.Paused {
		return result
	}

	if s.Paused {
		result.Suggestions = append(result.Suggestions, Suggestion{Kind: SuggestUnpauseVault})
		if !s.Unlimited() && remaining.IsZero() {
			// Paused and at the limit: unpause is the only move.
			return result
		}
		if result.Allowed {
			return result
		}
	}

	if remaining.IsPositive() {
		result.Suggestions = append(result.Suggestions, Suggestion{
			Kind:   SuggestSendPartial,
			Amount: remaining,
		})
	}
	result.Suggestions = append(result.Suggestions, Suggestion{
		Kind:     SuggestIncreaseLimit,
		NewLimit: s.DailySpent.Add(requested),
	})
	result.Suggestions = append(result.Suggestions, Suggestion{
		Kind: SuggestWaitForReset,
		Wait: g.ResetCountdown(s),
	})

	return result
}

// Check is Evaluate in error form: nil when the spend fits, otherwise an
// InsufficientAllowanceError carrying the full result.
func (g *Guard) Check(requested decimal.Decimal, s Snapshot) error {
	result := g.Evaluate(requested, s)
	if result.Allowed {
		return nil
	}
	g.logger.Debug("Spend exceeds daily allowance",
		zap.String("requested", requested.String()),
		zap.String("remaining", result.Remaining.String()),
		zap.Int("suggestions", len(result.Suggestions)))
	return &InsufficientAllowanceError{Result: result}
}
