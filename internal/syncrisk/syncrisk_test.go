package syncrisk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/store"
)

func TestEstimateLikelihood(t *testing.T) {
	cases := []struct {
		name    string
		signals PlatformSignals
		want    Likelihood
	}{
		{"ios", PlatformSignals{OS: "ios", Mobile: true}, LikelihoodLikely},
		{"macos safari", PlatformSignals{OS: "macos", Browser: "safari"}, LikelihoodLikely},
		{"android", PlatformSignals{OS: "android", Mobile: true}, LikelihoodLikely},
		{"windows hello", PlatformSignals{OS: "windows"}, LikelihoodUnlikely},
		{"mobile chrome unknown os", PlatformSignals{Browser: "chrome", Mobile: true}, LikelihoodLikely},
		{"linux desktop", PlatformSignals{OS: "linux", Browser: "firefox"}, LikelihoodUnknown},
		{"hardware key on macos", PlatformSignals{OS: "macos", Authenticator: "cross-platform"}, LikelihoodUnknown},
		{"no signals", PlatformSignals{}, LikelihoodUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EstimateLikelihood(tc.signals))
		})
	}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestKeeper(t *testing.T, signals PlatformSignals) (*Keeper, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	st := store.New(zap.NewNop(), filepath.Join(t.TempDir(), "wallet.json"))
	return NewKeeper(zap.NewNop(), st, signals, clock.Now), clock
}

func TestBannerUntilConfirmedYes(t *testing.T) {
	k, _ := newTestKeeper(t, PlatformSignals{OS: "macos"})

	assert.True(t, k.ShouldShowBanner(), "unconfirmed status shows banner")

	k.Confirm(ChoiceNotSure)
	assert.True(t, k.ShouldShowBanner())

	k.Confirm(ChoiceYes)
	assert.False(t, k.ShouldShowBanner())
}

func TestWeeklyReminderCadence(t *testing.T) {
	k, clock := newTestKeeper(t, PlatformSignals{OS: "windows"})

	k.Confirm(ChoiceNo)
	assert.False(t, k.ShouldShowWeeklyReminder(), "no reminder right after confirming")

	clock.Advance(8 * 24 * time.Hour)
	assert.True(t, k.ShouldShowWeeklyReminder())

	k.MarkReminderShown()
	assert.False(t, k.ShouldShowWeeklyReminder(), "clock restarts after showing")

	clock.Advance(7 * 24 * time.Hour)
	assert.True(t, k.ShouldShowWeeklyReminder())
}

func TestDismissSilencesReminder(t *testing.T) {
	k, clock := newTestKeeper(t, PlatformSignals{OS: "windows"})

	k.Confirm(ChoiceNo)
	clock.Advance(8 * 24 * time.Hour)
	require.True(t, k.ShouldShowWeeklyReminder())

	k.DismissReminder()
	assert.False(t, k.ShouldShowWeeklyReminder())

	clock.Advance(30 * 24 * time.Hour)
	assert.False(t, k.ShouldShowWeeklyReminder(), "dismissal holds regardless of elapsed time")
}

func TestConfirmYesStopsReminder(t *testing.T) {
	k, clock := newTestKeeper(t, PlatformSignals{OS: "windows"})

	k.Confirm(ChoiceNo)
	clock.Advance(8 * 24 * time.Hour)
	require.True(t, k.ShouldShowWeeklyReminder())

	k.Confirm(ChoiceYes)
	assert.False(t, k.ShouldShowWeeklyReminder())
}

func TestConfirmResetsDismissal(t *testing.T) {
	k, clock := newTestKeeper(t, PlatformSignals{OS: "windows"})

	k.Confirm(ChoiceNo)
	k.DismissReminder()

	// A fresh confirmation restarts the reminder clock and undoes dismissal.
	k.Confirm(ChoiceNotSure)
	status := k.Status()
	assert.False(t, status.ReminderDismissed)
	assert.Nil(t, status.LastReminderAt)

	clock.Advance(8 * 24 * time.Hour)
	assert.True(t, k.ShouldShowWeeklyReminder())
}

func TestRiskLevel(t *testing.T) {
	k, _ := newTestKeeper(t, PlatformSignals{OS: "macos"})

	assert.Equal(t, RiskMedium, k.RiskLevel(), "unconfirmed defaults to medium")

	k.Confirm(ChoiceYes)
	assert.Equal(t, RiskLow, k.RiskLevel())

	k.Confirm(ChoiceNotSure)
	assert.Equal(t, RiskMedium, k.RiskLevel())

	k.Confirm(ChoiceNo)
	assert.Equal(t, RiskHigh, k.RiskLevel())
}

func TestStatusPersistsAcrossKeepers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	st := store.New(zap.NewNop(), path)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	first := NewKeeper(zap.NewNop(), st, PlatformSignals{OS: "macos"}, clock.Now)
	first.Confirm(ChoiceYes)

	second := NewKeeper(zap.NewNop(), store.New(zap.NewNop(), path), PlatformSignals{OS: "macos"}, clock.Now)
	assert.Equal(t, ChoiceYes, second.Status().UserChoice)
	assert.False(t, second.ShouldShowBanner())
}

func TestClearWipesChoice(t *testing.T) {
	k, _ := newTestKeeper(t, PlatformSignals{OS: "macos"})

	k.Confirm(ChoiceYes)
	k.Clear()

	status := k.Status()
	assert.False(t, status.Confirmed())
	assert.Equal(t, LikelihoodLikely, status.Heuristic, "heuristic survives a wipe")
	assert.True(t, k.ShouldShowBanner())
}

func TestStorageFailuresAreAbsorbed(t *testing.T) {
	// Point the store at a path whose parent is a file, so every write fails.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, writeFile(blocked))

	st := store.New(zap.NewNop(), filepath.Join(blocked, "wallet.json"))
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	k := NewKeeper(zap.NewNop(), st, PlatformSignals{OS: "windows"}, clock.Now)
	k.Confirm(ChoiceNo)

	// In-memory state still works even though nothing could be persisted.
	assert.Equal(t, RiskHigh, k.RiskLevel())
	clock.Advance(8 * 24 * time.Hour)
	assert.True(t, k.ShouldShowWeeklyReminder())
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o600)
}
