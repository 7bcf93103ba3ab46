// Package vaults owns the per-chain vault records for the authenticated
// identity. Records are mutated only here; every other component sees
// read-only copies.
package vaults

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/clients"
	"github.com/passkey-vault/wallet/internal/passkey"
)

// ResourceState is the lifecycle of one asynchronously resolved record, so
// consumers switch exhaustively instead of re-checking field presence.
type ResourceState int

const (
	ResourceNotStarted ResourceState = iota
	ResourcePending
	ResourceReady
	ResourceFailed
)

func (s ResourceState) String() string {
	switch s {
	case ResourceNotStarted:
		return "not_started"
	case ResourcePending:
		return "pending"
	case ResourceReady:
		return "ready"
	case ResourceFailed:
		return "failed"
	}
	return fmt.Sprintf("resource_state(%d)", int(s))
}

// Record is one (identity, chain) vault. The address is deterministic and
// known before deployment; Deployed == true implies Address != "".
type Record struct {
	ChainID         chains.ChainID
	State           ResourceState
	Address         string
	Deployed        bool
	Err             error
	Balance         decimal.Decimal
	LastRefreshedAt time.Time // zero means never refreshed
}

// DeployResult reports one sponsored vault-creation attempt during
// EnsureDeployed. AlreadyExists separates "no-op" from "newly created" so
// the UI only announces genuinely new state.
type DeployResult struct {
	ChainID       chains.ChainID
	Address       string
	AlreadyExists bool
	Err           error
}

// ErrNotAuthenticated is returned when an operation needs an identity and
// none is active.
var ErrNotAuthenticated = fmt.Errorf("no authenticated identity")

// NotDeployedError rejects a same-chain send attempted before deployment
// was confirmed.
type NotDeployedError struct {
	ChainID chains.ChainID
}

func (e *NotDeployedError) Error() string {
	return fmt.Sprintf("vault on chain %d is not deployed yet", e.ChainID)
}

// Manager reconciles vault records across all configured chains for the
// active identity.
type Manager struct {
	registry *chains.Registry
	clients  map[chains.ChainID]clients.ChainClient
	logger   *zap.Logger

	mu       sync.RWMutex
	identity *passkey.Credential
	records  map[chains.ChainID]*Record
}

// NewManager creates a manager over the configured chain clients. Chains
// without a client stay NotStarted forever; that is a deployment-target
// decision, not an error.
func NewManager(logger *zap.Logger, registry *chains.Registry, chainClients map[chains.ChainID]clients.ChainClient) *Manager {
	return &Manager{
		registry: registry,
		clients:  chainClients,
		logger:   logger.With(zap.String("component", "VaultManager")),
		records:  make(map[chains.ChainID]*Record),
	}
}

// SetIdentity activates an identity after register or login and resets all
// records to NotStarted.
func (m *Manager) SetIdentity(identity passkey.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = &identity
	m.records = make(map[chains.ChainID]*Record)
	for _, d := range m.registry.All() {
		m.records[d.ID] = &Record{ChainID: d.ID, State: ResourceNotStarted}
	}

	m.logger.Info("Identity activated", zap.String("username", identity.Username))
}

// Logout drops all in-memory records and the active identity. Persisted
// credential storage is untouched: this is "forget this session", not
// "delete this credential".
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = nil
	m.records = make(map[chains.ChainID]*Record)
	m.logger.Info("Session cleared")
}

// Identity returns the active identity, if any.
func (m *Manager) Identity() (passkey.Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return passkey.Credential{}, false
	}
	return *m.identity, true
}

// Reconcile recomputes every chain's record: deterministic address plus
// deployment status. Individual chain failures downgrade that record only;
// chains that succeeded stay fully usable. It fails outright only without
// an identity.
func (m *Manager) Reconcile(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	identity := *m.identity
	for id, client := range m.clients {
		if rec, ok := m.records[id]; ok && client != nil {
			rec.State = ResourcePending
		}
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, client := range m.clients {
		if client == nil {
			continue
		}
		wg.Add(1)
		go func(chainID chains.ChainID, client clients.ChainClient) {
			defer wg.Done()
			m.reconcileChain(ctx, chainID, client, identity)
		}(id, client)
	}
	wg.Wait()

	return m.Records(), nil
}

func (m *Manager) reconcileChain(ctx context.Context, chainID chains.ChainID, client clients.ChainClient, identity passkey.Credential) {
	address, err := client.ComputeVaultAddress(ctx, identity)
	if err != nil {
		m.logger.Warn("Vault address derivation failed",
			zap.Uint64("chainId", uint64(chainID)),
			zap.Error(err))
		m.setRecord(chainID, Record{
			ChainID: chainID,
			State:   ResourceFailed,
			Err:     &clients.CollaboratorError{Op: "compute vault address", ChainID: chainID, Err: err},
		})
		return
	}

	deployed, err := client.VaultExists(ctx, address)
	if err != nil {
		m.logger.Warn("Vault existence check failed",
			zap.Uint64("chainId", uint64(chainID)),
			zap.String("address", address),
			zap.Error(err))
		// Address is still known; only the deployment status is stale.
		m.setRecord(chainID, Record{
			ChainID: chainID,
			State:   ResourceFailed,
			Address: address,
			Err:     &clients.CollaboratorError{Op: "check vault", ChainID: chainID, Err: err},
		})
		return
	}

	m.setRecord(chainID, Record{
		ChainID:  chainID,
		State:    ResourceReady,
		Address:  address,
		Deployed: deployed,
	})
}

// EnsureDeployed attempts sponsored vault creation on every chain lacking a
// deployed vault. Attempts are independent; the call itself fails only
// without an identity.
func (m *Manager) EnsureDeployed(ctx context.Context) ([]DeployResult, error) {
	m.mu.RLock()
	if m.identity == nil {
		m.mu.RUnlock()
		return nil, ErrNotAuthenticated
	}
	identity := *m.identity
	pending := make(map[chains.ChainID]clients.ChainClient)
	for id, client := range m.clients {
		if client == nil {
			continue
		}
		if rec, ok := m.records[id]; ok && rec.Deployed {
			continue
		}
		pending[id] = client
	}
	m.mu.RUnlock()

	results := make([]DeployResult, 0, len(pending))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for id, client := range pending {
		wg.Add(1)
		go func(chainID chains.ChainID, client clients.ChainClient) {
			defer wg.Done()

			result := DeployResult{ChainID: chainID}
			sponsored, err := client.CreateVaultSponsored(ctx, identity)
			if err != nil {
				result.Err = &clients.CollaboratorError{Op: "create vault", ChainID: chainID, Err: err}
				m.logger.Warn("Sponsored vault creation failed",
					zap.Uint64("chainId", uint64(chainID)),
					zap.Error(err))
			} else {
				result.Address = sponsored.Address
				result.AlreadyExists = sponsored.AlreadyExists
				m.setRecord(chainID, Record{
					ChainID:  chainID,
					State:    ResourceReady,
					Address:  sponsored.Address,
					Deployed: true,
				})
			}

			resultsMu.Lock()
			results = append(results, result)
			resultsMu.Unlock()
		}(id, client)
	}
	wg.Wait()

	return results, nil
}

// Records returns copies of all records in registry order.
func (m *Manager) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, d := range m.registry.All() {
		if rec, ok := m.records[d.ID]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Record returns a copy of one chain's record.
func (m *Manager) Record(chainID chains.ChainID) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[chainID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// VaultAddress resolves the identity's vault address on a chain, requiring
// a successful reconcile first.
func (m *Manager) VaultAddress(chainID chains.ChainID) (string, error) {
	rec, ok := m.Record(chainID)
	if !ok || rec.Address == "" {
		return "", fmt.Errorf("no vault address known for chain %d", chainID)
	}
	return rec.Address, nil
}

// RequireDeployed returns the record for a chain, rejecting with
// NotDeployedError when the vault is not confirmed deployed.
func (m *Manager) RequireDeployed(chainID chains.ChainID) (Record, error) {
	rec, ok := m.Record(chainID)
	if !ok {
		return Record{}, &chains.UnknownChainError{ID: chainID}
	}
	if !rec.Deployed {
		return Record{}, &NotDeployedError{ChainID: chainID}
	}
	return rec, nil
}

// RefreshBalance re-fetches one chain's vault balance and stamps the
// record. Called after a transfer settles.
func (m *Manager) RefreshBalance(ctx context.Context, chainID chains.ChainID) error {
	client, ok := m.clients[chainID]
	if !ok || client == nil {
		return fmt.Errorf("no chain client for chain %d", chainID)
	}

	address, err := m.VaultAddress(chainID)
	if err != nil {
		return err
	}

	balance, err := client.RefreshBalance(ctx, address)
	if err != nil {
		return &clients.CollaboratorError{Op: "refresh balance", ChainID: chainID, Err: err}
	}

	m.mu.Lock()
	if rec, ok := m.records[chainID]; ok {
		rec.Balance = balance
		rec.LastRefreshedAt = time.Now()
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) setRecord(chainID chains.ChainID, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.records[chainID]; ok {
		// Balance bookkeeping survives reconciliation.
		rec.Balance = prev.Balance
		rec.LastRefreshedAt = prev.LastRefreshedAt
	}
	m.records[chainID] = &rec
}
