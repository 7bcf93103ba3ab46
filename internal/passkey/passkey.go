// Package passkey defines the boundary to the WebAuthn ceremony provider and
// owns local credential persistence. Ceremony execution itself happens
// outside this module; everything here is the contract the orchestrator
// relies on plus the session-clear vs permanent-delete distinction.
package passkey

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/store"
)

// Credential is the identity the wallet orchestrates vaults for. PublicKey
// is the credential's COSE-encoded public key material; every vault address
// is derived deterministically from it.
type Credential struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	PublicKey   []byte    `json:"publicKey"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Provider executes the passkey ceremonies.
type Provider interface {
	Register(ctx context.Context, username, displayName string) (Credential, error)
	Authenticate(ctx context.Context) (Credential, error)
}

const credentialKey = "credential"

// CredentialStore keeps the active credential in memory for the session and
// mirrors it to device-local storage. ClearSession forgets the session only;
// Delete removes the credential permanently.
type CredentialStore struct {
	store  *store.Store
	logger *zap.Logger

	mu      sync.Mutex
	session *Credential
}

func NewCredentialStore(logger *zap.Logger, st *store.Store) *CredentialStore {
	return &CredentialStore{
		store:  st,
		logger: logger.With(zap.String("component", "CredentialStore")),
	}
}

// Save persists the credential and makes it the active session.
func (c *CredentialStore) Save(cred Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Put(credentialKey, cred); err != nil {
		return err
	}
	c.session = &cred
	return nil
}

// Session returns the active credential, if any.
func (c *CredentialStore) Session() (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Credential{}, false
	}
	return *c.session, true
}

// Load restores a persisted credential into the session. Missing or
// unreadable credentials simply leave the session empty.
func (c *CredentialStore) Load() (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cred Credential
	found, err := c.store.Get(credentialKey, &cred)
	if err != nil {
		c.logger.Warn("Failed to read persisted credential", zap.Error(err))
		return Credential{}, false
	}
	if !found {
		return Credential{}, false
	}
	c.session = &cred
	return cred, true
}

// ClearSession forgets the in-memory session without touching persisted
// credential storage.
func (c *CredentialStore) ClearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}

// Delete removes the credential permanently and clears the session.
func (c *CredentialStore) Delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(credentialKey); err != nil {
		return err
	}
	c.session = nil
	return nil
}
