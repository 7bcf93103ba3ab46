// Package syncrisk estimates whether a passkey will survive loss of the
// current device and nags at-risk users on a weekly cadence until they
// self-report a safe configuration. No platform API exposes true sync
// status, so everything here is advisory and must never block wallet usage.
package syncrisk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/store"
)

// Likelihood is the heuristic estimate of vendor-managed credential sync.
type Likelihood string

const (
	LikelihoodLikely   Likelihood = "likely"
	LikelihoodUnlikely Likelihood = "unlikely"
	LikelihoodUnknown  Likelihood = "unknown"
)

// Choice is the user's self-reported answer to "is your passkey synced?".
type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceNotSure Choice = "not_sure"
)

// RiskLevel drives which UI affordances are shown. It carries no chain-side
// effect.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PlatformSignals are the opaque client hints the heuristic works from.
type PlatformSignals struct {
	OS            string // "ios", "macos", "android", "windows", "linux", ...
	Browser       string // "safari", "chrome", "firefox", ...
	Mobile        bool
	Authenticator string // "platform", "cross-platform" or empty
}

// Status is the persisted sync record. An empty UserChoice means the user
// has not confirmed yet.
type Status struct {
	Heuristic         Likelihood `json:"heuristic"`
	UserChoice        Choice     `json:"userChoice,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmedAt,omitempty"`
	LastReminderAt    *time.Time `json:"lastReminderAt,omitempty"`
	ReminderDismissed bool       `json:"reminderDismissed"`
}

// Confirmed reports whether the user has answered at all.
func (s Status) Confirmed() bool {
	return s.UserChoice != ""
}

// AtRisk reports whether the user self-reported an unsafe or uncertain
// configuration.
func (s Status) AtRisk() bool {
	return s.UserChoice == ChoiceNo || s.UserChoice == ChoiceNotSure
}

// EstimateLikelihood classifies platform signals. Vendor keychains (Apple,
// Google) sync passkeys by default; Windows Hello credentials are
// device-bound; hardware security keys and unrecognized platforms are
// unknowable.
func EstimateLikelihood(signals PlatformSignals) Likelihood {
	if signals.Authenticator == "cross-platform" {
		return LikelihoodUnknown
	}
	switch signals.OS {
	case "ios", "macos", "android":
		return LikelihoodLikely
	case "windows":
		return LikelihoodUnlikely
	}
	if signals.Mobile && signals.Browser == "chrome" {
		return LikelihoodLikely
	}
	return LikelihoodUnknown
}

const (
	statusKey        = "sync_status"
	reminderInterval = 7 * 24 * time.Hour
)

// Keeper owns the persisted Status and the reminder cadence. Storage
// failures are absorbed: reads fall back to defaults and writes are logged
// and dropped.
type Keeper struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	status Status
}

// NewKeeper loads any persisted status and refreshes the heuristic from the
// current session's signals. A nil now defaults to time.Now.
func NewKeeper(logger *zap.Logger, st *store.Store, signals PlatformSignals, now func() time.Time) *Keeper {
	if now == nil {
		now = time.Now
	}
	k := &Keeper{
		store:  st,
		logger: logger.With(zap.String("component", "SyncRiskKeeper")),
		now:    now,
	}

	var persisted Status
	found, err := st.Get(statusKey, &persisted)
	if err != nil {
		k.logger.Warn("Failed to read sync status, using defaults", zap.Error(err))
		found = false
	}
	if found {
		k.status = persisted
	}
	k.status.Heuristic = EstimateLikelihood(signals)
	k.persist()

	return k
}

// Status returns a copy of the current record.
func (k *Keeper) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.status
}

// Confirm persists the user's answer and restarts the reminder clock.
func (k *Keeper) Confirm(choice Choice) {
	k.mu.Lock()
	defer k.mu.Unlock()

	confirmedAt := k.now()
	k.status.UserChoice = choice
	k.status.ConfirmedAt = &confirmedAt
	k.status.LastReminderAt = nil
	k.status.ReminderDismissed = false
	k.persist()

	k.logger.Info("Sync choice confirmed", zap.String("choice", string(choice)))
}

// ShouldShowBanner reports whether the "is your passkey backed up?" banner
// is due: any state other than a confirmed YES.
func (k *Keeper) ShouldShowBanner() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.status.UserChoice != ChoiceYes
}

// ShouldShowWeeklyReminder reports whether the at-risk reminder is due. The
// clock runs from whichever of last-reminder and confirmation happened
// later.
func (k *Keeper) ShouldShowWeeklyReminder() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.status.AtRisk() || k.status.ReminderDismissed {
		return false
	}

	var anchor time.Time
	if k.status.ConfirmedAt != nil {
		anchor = *k.status.ConfirmedAt
	}
	if k.status.LastReminderAt != nil && k.status.LastReminderAt.After(anchor) {
		anchor = *k.status.LastReminderAt
	}
	return k.now().Sub(anchor) >= reminderInterval
}

// MarkReminderShown records that the reminder was displayed. Idempotent for
// cadence purposes: re-recording only moves the clock forward.
func (k *Keeper) MarkReminderShown() {
	k.mu.Lock()
	defer k.mu.Unlock()

	shownAt := k.now()
	k.status.LastReminderAt = &shownAt
	k.persist()
}

// DismissReminder permanently silences the weekly reminder until the next
// confirmation. Idempotent.
func (k *Keeper) DismissReminder() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.status.ReminderDismissed {
		return
	}
	k.status.ReminderDismissed = true
	k.persist()
}

// RiskLevel maps the current state to a coarse level: a confirmed YES is
// low, a confirmed NO is high, everything else is medium.
func (k *Keeper) RiskLevel() RiskLevel {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch k.status.UserChoice {
	case ChoiceYes:
		return RiskLow
	case ChoiceNo:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// Clear wipes the persisted status. Called only on permanent credential
// deletion, never on session logout.
func (k *Keeper) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()

	heuristic := k.status.Heuristic
	k.status = Status{Heuristic: heuristic}
	if err := k.store.Delete(statusKey); err != nil {
		k.logger.Warn("Failed to clear sync status", zap.Error(err))
	}
}

// persist writes the current status, swallowing storage failures. Callers
// hold the mutex.
func (k *Keeper) persist() {
	if err := k.store.Put(statusKey, k.status); err != nil {
		k.logger.Warn("Failed to persist sync status", zap.Error(err))
	}
}
