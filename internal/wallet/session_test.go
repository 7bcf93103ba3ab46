package wallet

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/bridge"
	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/clients"
	"github.com/passkey-vault/wallet/internal/dispatch"
	"github.com/passkey-vault/wallet/internal/passkey"
	"github.com/passkey-vault/wallet/internal/spending"
	"github.com/passkey-vault/wallet/internal/store"
	"github.com/passkey-vault/wallet/internal/syncrisk"
	"github.com/passkey-vault/wallet/internal/vaults"
)

const (
	baseVault = "0x1111111111111111111111111111111111111111"
	arbVault  = "0x2222222222222222222222222222222222222222"
	recipient = "0x3333333333333333333333333333333333333333"
	baseChain = chains.ChainID(8453)
	arbChain  = chains.ChainID(42161)
)

type fakeProvider struct {
	cred    passkey.Credential
	authErr error
}

func (f *fakeProvider) Register(_ context.Context, username, displayName string) (passkey.Credential, error) {
	cred := f.cred
	cred.Username = username
	cred.DisplayName = displayName
	return cred, nil
}

func (f *fakeProvider) Authenticate(context.Context) (passkey.Credential, error) {
	if f.authErr != nil {
		return passkey.Credential{}, f.authErr
	}
	return f.cred, nil
}

type fakeChainClient struct {
	family       chains.Family
	address      string
	exists       bool
	balance      decimal.Decimal
	refreshCalls int
}

func (f *fakeChainClient) Family() chains.Family { return f.family }

func (f *fakeChainClient) ComputeVaultAddress(context.Context, passkey.Credential) (string, error) {
	return f.address, nil
}

func (f *fakeChainClient) VaultExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeChainClient) SendSameChain(context.Context, clients.Transfer) (clients.TxReceipt, error) {
	return clients.TxReceipt{TxHash: "0xlegacy"}, nil
}

func (f *fakeChainClient) CreateVaultSponsored(context.Context, passkey.Credential) (clients.SponsoredResult, error) {
	f.exists = true
	return clients.SponsoredResult{Address: f.address}, nil
}

func (f *fakeChainClient) RefreshBalance(context.Context, string) (decimal.Decimal, error) {
	f.refreshCalls++
	return f.balance, nil
}

type fakeRelayer struct {
	updates   chan clients.ProgressUpdate
	sponsored []clients.Transfer
}

func (f *fakeRelayer) DispatchBridge(context.Context, clients.BridgeTransfer) (<-chan clients.ProgressUpdate, error) {
	f.updates = make(chan clients.ProgressUpdate, 8)
	return f.updates, nil
}

func (f *fakeRelayer) SponsorTransfer(_ context.Context, transfer clients.Transfer) (clients.TxReceipt, error) {
	f.sponsored = append(f.sponsored, transfer)
	return clients.TxReceipt{TxHash: "0xgasless"}, nil
}

type fakeLimits struct {
	snapshots map[chains.ChainID]spending.Snapshot
	setCalls  []decimal.Decimal
	pauseErr  error
}

func (f *fakeLimits) GetLimits(_ context.Context, chainID chains.ChainID) (spending.Snapshot, error) {
	snap, ok := f.snapshots[chainID]
	if !ok {
		return spending.Snapshot{}, fmt.Errorf("no limits for chain %d", chainID)
	}
	return snap, nil
}

func (f *fakeLimits) SetDailyLimit(_ context.Context, chainID chains.ChainID, newLimit decimal.Decimal) error {
	f.setCalls = append(f.setCalls, newLimit)
	snap := f.snapshots[chainID]
	snap.DailyLimit = newLimit
	f.snapshots[chainID] = snap
	return nil
}

func (f *fakeLimits) Pause(_ context.Context, chainID chains.ChainID) error {
	if f.pauseErr != nil {
		return f.pauseErr
	}
	snap := f.snapshots[chainID]
	snap.Paused = true
	f.snapshots[chainID] = snap
	return nil
}

func (f *fakeLimits) Unpause(_ context.Context, chainID chains.ChainID) error {
	snap := f.snapshots[chainID]
	snap.Paused = false
	f.snapshots[chainID] = snap
	return nil
}

type harness struct {
	session *Session
	relayer *fakeRelayer
	limits  *fakeLimits
	base    *fakeChainClient
	arb     *fakeChainClient
	creds   *passkey.CredentialStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()

	base := &fakeChainClient{family: chains.FamilyEVM, address: baseVault, exists: true}
	arb := &fakeChainClient{family: chains.FamilyEVM, address: arbVault, exists: true}
	chainClients := map[chains.ChainID]clients.ChainClient{
		baseChain: base,
		arbChain:  arb,
	}

	registry := chains.DefaultRegistry()
	manager := vaults.NewManager(logger, registry, chainClients)
	tracker := bridge.NewTracker(logger)
	relayer := &fakeRelayer{}
	engine := dispatch.NewEngine(logger, registry, manager, tracker, relayer, relayer, chainClients)

	st := store.New(logger, filepath.Join(t.TempDir(), "wallet.json"))
	creds := passkey.NewCredentialStore(logger, st)
	keeper := syncrisk.NewKeeper(logger, st, syncrisk.PlatformSignals{OS: "windows"}, nil)

	limits := &fakeLimits{snapshots: map[chains.ChainID]spending.Snapshot{
		baseChain: {
			ChainID:      baseChain,
			DailyLimit:   decimal.NewFromInt(1000),
			DailySpent:   decimal.NewFromInt(800),
			DayResetTime: time.Now().Add(6 * time.Hour),
		},
	}}

	provider := &fakeProvider{cred: passkey.Credential{
		ID:        "cred-1",
		PublicKey: []byte{1, 2, 3},
		CreatedAt: time.Now(),
	}}

	session := NewSession(logger, Config{
		Registry: registry,
		Provider: provider,
		Creds:    creds,
		Vaults:   manager,
		Engine:   engine,
		Tracker:  tracker,
		Guard:    spending.NewGuard(logger, nil),
		Limits:   limits,
		Sync:     keeper,
	})
	return &harness{
		session: session,
		relayer: relayer,
		limits:  limits,
		base:    base,
		arb:     arb,
		creds:   creds,
	}
}

func intent(source, target chains.ChainID, to string, amount int64) dispatch.Intent {
	return dispatch.Intent{
		SourceChainID: source,
		TargetChainID: target,
		Token:         "USDC",
		Recipient:     to,
		Amount:        decimal.NewFromInt(amount),
	}
}

func TestRegisterReconcilesAndDeploys(t *testing.T) {
	h := newHarness(t)
	h.base.exists = false

	results, err := h.session.Register(context.Background(), "alice", "Alice")
	require.NoError(t, err)

	// Base lacked a vault; sponsored creation ran for it and the other
	// chains without clients were left alone.
	deployedChains := map[chains.ChainID]bool{}
	for _, r := range results {
		require.NoError(t, r.Err)
		deployedChains[r.ChainID] = true
	}
	assert.True(t, deployedChains[baseChain])
	assert.False(t, deployedChains[arbChain])

	records := h.session.VaultRecords()
	require.NotEmpty(t, records)
	for _, rec := range records {
		if rec.ChainID == baseChain {
			assert.True(t, rec.Deployed)
		}
	}
}

func TestPlanTransferAttachesAdvisory(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Login(context.Background())
	require.NoError(t, err)

	preview, err := h.session.PlanTransfer(context.Background(), intent(baseChain, baseChain, recipient, 300))
	require.NoError(t, err)
	require.NotNil(t, preview.Advisory)
	assert.False(t, preview.Advisory.Allowed)

	kinds := make([]spending.SuggestionKind, 0, len(preview.Advisory.Suggestions))
	for _, s := range preview.Advisory.Suggestions {
		kinds = append(kinds, s.Kind)
	}
	assert.Contains(t, kinds, spending.SuggestSendPartial)
	assert.Contains(t, kinds, spending.SuggestIncreaseLimit)
}

func TestPlanTransferAdvisoryUnavailableDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Login(context.Background())
	require.NoError(t, err)

	// No snapshot configured for Arbitrum; the plan still goes through.
	preview, err := h.session.PlanTransfer(context.Background(), intent(arbChain, arbChain, recipient, 50))
	require.NoError(t, err)
	assert.Nil(t, preview.Advisory)
}

func TestExecuteSameChainRefreshesBalance(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Login(context.Background())
	require.NoError(t, err)

	preview, err := h.session.PlanTransfer(context.Background(), intent(baseChain, baseChain, recipient, 50))
	require.NoError(t, err)

	outcome, err := h.session.ExecuteTransfer(context.Background(), preview.Plan)
	require.NoError(t, err)
	require.NotNil(t, outcome.Receipt)
	assert.Equal(t, "0xgasless", outcome.Receipt.TxHash)
	assert.Equal(t, 1, h.base.refreshCalls)
}

func TestExecuteBridgeRefreshesBothEnds(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Login(context.Background())
	require.NoError(t, err)

	preview, err := h.session.PlanTransfer(context.Background(), intent(baseChain, arbChain, arbVault, 50))
	require.NoError(t, err)
	assert.Equal(t, dispatch.SelfTransferCrossChain, preview.Plan.SelfTransfer)

	outcome, err := h.session.ExecuteTransfer(context.Background(), preview.Plan)
	require.NoError(t, err)
	require.NotEmpty(t, outcome.BridgeID)

	h.relayer.updates <- clients.ProgressUpdate{Step: 1, TotalSteps: 2, Message: "submitted"}
	h.relayer.updates <- clients.ProgressUpdate{
		Step: 2, TotalSteps: 2, Terminal: true,
		Receipt: &clients.TxReceipt{TxHash: "0xdone"},
	}
	close(h.relayer.updates)

	var last clients.ProgressUpdate
	for update := range outcome.Updates {
		last = update
	}
	require.True(t, last.Terminal)

	assert.Equal(t, 1, h.base.refreshCalls)
	assert.Equal(t, 1, h.arb.refreshCalls)

	history := h.session.BridgeHistory()
	require.Len(t, history, 1)
	assert.Equal(t, bridge.OutcomeCompleted, history[0].Outcome)
}

func TestRequestLimitIncreaseReturnsFreshSnapshot(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Login(context.Background())
	require.NoError(t, err)

	snap, err := h.session.RequestLimitIncrease(context.Background(), baseChain, decimal.NewFromInt(1100))
	require.NoError(t, err)
	assert.True(t, snap.DailyLimit.Equal(decimal.NewFromInt(1100)))
	require.Len(t, h.limits.setCalls, 1)
}

func TestPauseUnpauseRoundTrip(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Login(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.session.PauseVault(context.Background(), baseChain))
	view, err := h.session.SpendingStatus(context.Background(), baseChain)
	require.NoError(t, err)
	assert.True(t, view.Snapshot.Paused)

	require.NoError(t, h.session.UnpauseVault(context.Background(), baseChain))
	view, err = h.session.SpendingStatus(context.Background(), baseChain)
	require.NoError(t, err)
	assert.False(t, view.Snapshot.Paused)
}

func TestSyncChoiceClearsBanner(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.session.SyncStatus().ShowBanner)
	h.session.ConfirmSyncChoice(syncrisk.ChoiceYes)
	flags := h.session.SyncStatus()
	assert.False(t, flags.ShowBanner)
	assert.Equal(t, syncrisk.RiskLow, flags.Risk)
}

func TestLogoutKeepsCredentialDeleteRemovesIt(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Login(context.Background())
	require.NoError(t, err)

	h.session.Logout()
	assert.Empty(t, h.session.VaultRecords())

	// The persisted credential survives a logout.
	_, restored := h.session.Resume(context.Background())
	require.True(t, restored)

	require.NoError(t, h.session.DeleteIdentity())
	_, restored = h.session.Resume(context.Background())
	assert.False(t, restored)
}
