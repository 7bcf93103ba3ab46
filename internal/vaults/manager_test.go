package vaults

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/clients"
	"github.com/passkey-vault/wallet/internal/passkey"
)

type fakeChainClient struct {
	family      chains.Family
	address     string
	addressErr  error
	exists      bool
	existsErr   error
	balance     decimal.Decimal
	balanceErr  error
	createErr   error
	createCalls int
}

func (f *fakeChainClient) Family() chains.Family { return f.family }

func (f *fakeChainClient) ComputeVaultAddress(context.Context, passkey.Credential) (string, error) {
	return f.address, f.addressErr
}

func (f *fakeChainClient) VaultExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeChainClient) SendSameChain(context.Context, clients.Transfer) (clients.TxReceipt, error) {
	return clients.TxReceipt{TxHash: "0xsent"}, nil
}

func (f *fakeChainClient) CreateVaultSponsored(context.Context, passkey.Credential) (clients.SponsoredResult, error) {
	f.createCalls++
	if f.createErr != nil {
		return clients.SponsoredResult{}, f.createErr
	}
	return clients.SponsoredResult{Address: f.address, AlreadyExists: f.exists}, nil
}

func (f *fakeChainClient) RefreshBalance(context.Context, string) (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func testIdentity() passkey.Credential {
	return passkey.Credential{
		ID:        "cred-1",
		Username:  "alice",
		PublicKey: []byte{0x01, 0x02, 0x03},
	}
}

func newTestManager(t *testing.T, chainClients map[chains.ChainID]clients.ChainClient) *Manager {
	t.Helper()
	return NewManager(zap.NewNop(), chains.DefaultRegistry(), chainClients)
}

func TestReconcileRequiresIdentity(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = m.EnsureDeployed(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestReconcileIsolatesChainFailures(t *testing.T) {
	base := &fakeChainClient{
		family:    chains.FamilyEVM,
		address:   "0x1111111111111111111111111111111111111111",
		existsErr: fmt.Errorf("rpc timeout"),
	}
	arbitrum := &fakeChainClient{
		family:  chains.FamilyEVM,
		address: "0x2222222222222222222222222222222222222222",
		exists:  true,
	}

	m := newTestManager(t, map[chains.ChainID]clients.ChainClient{
		8453:  base,
		42161: arbitrum,
	})
	m.SetIdentity(testIdentity())

	records, err := m.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 7)

	baseRec, ok := m.Record(8453)
	require.True(t, ok)
	assert.Equal(t, ResourceFailed, baseRec.State)
	assert.Equal(t, base.address, baseRec.Address)
	assert.False(t, baseRec.Deployed)
	var collabErr *clients.CollaboratorError
	assert.ErrorAs(t, baseRec.Err, &collabErr)

	arbRec, ok := m.Record(42161)
	require.True(t, ok)
	assert.Equal(t, ResourceReady, arbRec.State)
	assert.True(t, arbRec.Deployed)
	assert.Equal(t, arbitrum.address, arbRec.Address)
}

func TestReconcileAddressDerivationFailure(t *testing.T) {
	broken := &fakeChainClient{
		family:     chains.FamilyEVM,
		addressErr: fmt.Errorf("no factory configured"),
	}
	m := newTestManager(t, map[chains.ChainID]clients.ChainClient{8453: broken})
	m.SetIdentity(testIdentity())

	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	rec, ok := m.Record(8453)
	require.True(t, ok)
	assert.Equal(t, ResourceFailed, rec.State)
	assert.Empty(t, rec.Address)
	assert.False(t, rec.Deployed)
}

func TestEnsureDeployedSkipsDeployedVaults(t *testing.T) {
	deployed := &fakeChainClient{
		family:  chains.FamilyEVM,
		address: "0x1111111111111111111111111111111111111111",
		exists:  true,
	}
	missing := &fakeChainClient{
		family:  chains.FamilyEVM,
		address: "0x2222222222222222222222222222222222222222",
	}

	m := newTestManager(t, map[chains.ChainID]clients.ChainClient{
		8453:  deployed,
		42161: missing,
	})
	m.SetIdentity(testIdentity())

	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	results, err := m.EnsureDeployed(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chains.ChainID(42161), results[0].ChainID)
	assert.False(t, results[0].AlreadyExists)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 0, deployed.createCalls)
	assert.Equal(t, 1, missing.createCalls)

	rec, ok := m.Record(42161)
	require.True(t, ok)
	assert.True(t, rec.Deployed)
}

func TestEnsureDeployedCollectsPerChainErrors(t *testing.T) {
	failing := &fakeChainClient{
		family:    chains.FamilyEVM,
		address:   "0x1111111111111111111111111111111111111111",
		createErr: fmt.Errorf("sponsor out of funds"),
	}
	m := newTestManager(t, map[chains.ChainID]clients.ChainClient{8453: failing})
	m.SetIdentity(testIdentity())

	results, err := m.EnsureDeployed(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)

	rec, ok := m.Record(8453)
	require.True(t, ok)
	assert.False(t, rec.Deployed)
}

func TestRequireDeployed(t *testing.T) {
	client := &fakeChainClient{
		family:  chains.FamilyEVM,
		address: "0x1111111111111111111111111111111111111111",
	}
	m := newTestManager(t, map[chains.ChainID]clients.ChainClient{8453: client})
	m.SetIdentity(testIdentity())

	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	_, err = m.RequireDeployed(8453)
	var notDeployed *NotDeployedError
	require.ErrorAs(t, err, &notDeployed)
	assert.Equal(t, chains.ChainID(8453), notDeployed.ChainID)

	_, err = m.RequireDeployed(9999)
	var unknown *chains.UnknownChainError
	assert.ErrorAs(t, err, &unknown)

	client.exists = true
	_, err = m.Reconcile(context.Background())
	require.NoError(t, err)

	rec, err := m.RequireDeployed(8453)
	require.NoError(t, err)
	assert.Equal(t, client.address, rec.Address)
}

func TestRefreshBalanceStampsRecord(t *testing.T) {
	client := &fakeChainClient{
		family:  chains.FamilyEVM,
		address: "0x1111111111111111111111111111111111111111",
		exists:  true,
		balance: decimal.NewFromInt(1500),
	}
	m := newTestManager(t, map[chains.ChainID]clients.ChainClient{8453: client})
	m.SetIdentity(testIdentity())

	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.RefreshBalance(context.Background(), 8453))

	rec, ok := m.Record(8453)
	require.True(t, ok)
	assert.True(t, rec.Balance.Equal(decimal.NewFromInt(1500)))
	assert.False(t, rec.LastRefreshedAt.IsZero())

	// Reconcile keeps the balance bookkeeping.
	_, err = m.Reconcile(context.Background())
	require.NoError(t, err)
	rec, _ = m.Record(8453)
	assert.True(t, rec.Balance.Equal(decimal.NewFromInt(1500)))
}

func TestLogoutClearsSession(t *testing.T) {
	client := &fakeChainClient{
		family:  chains.FamilyEVM,
		address: "0x1111111111111111111111111111111111111111",
		exists:  true,
	}
	m := newTestManager(t, map[chains.ChainID]clients.ChainClient{8453: client})
	m.SetIdentity(testIdentity())

	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	m.Logout()

	_, ok := m.Identity()
	assert.False(t, ok)
	assert.Empty(t, m.Records())
	_, err = m.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
