package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/bridge"
	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/clients"
	"github.com/passkey-vault/wallet/internal/dispatch"
	"github.com/passkey-vault/wallet/internal/metrics"
	"github.com/passkey-vault/wallet/internal/passkey"
	"github.com/passkey-vault/wallet/internal/spending"
	"github.com/passkey-vault/wallet/internal/store"
	"github.com/passkey-vault/wallet/internal/syncrisk"
	"github.com/passkey-vault/wallet/internal/vaults"
	"github.com/passkey-vault/wallet/internal/wallet"
)

// localProvider stands in for the platform authenticator on headless runs.
// It mints a credential with random key material; the ceremony itself is the
// platform's job, not this CLI's.
type localProvider struct {
	creds *passkey.CredentialStore
}

func (p *localProvider) Register(_ context.Context, username, displayName string) (passkey.Credential, error) {
	publicKey := make([]byte, 32)
	if _, err := rand.Read(publicKey); err != nil {
		return passkey.Credential{}, fmt.Errorf("failed to generate key material: %v", err)
	}
	return passkey.Credential{
		ID:          uuid.NewString(),
		Username:    username,
		DisplayName: displayName,
		PublicKey:   publicKey,
		CreatedAt:   time.Now(),
	}, nil
}

func (p *localProvider) Authenticate(context.Context) (passkey.Credential, error) {
	cred, ok := p.creds.Load()
	if !ok {
		return passkey.Credential{}, fmt.Errorf("no credential on this device; run register first")
	}
	return cred, nil
}

// buildSession wires a wallet session from the configured flags. Chains
// without an RPC URL are simply not served.
func buildSession(logger *zap.Logger) (*wallet.Session, error) {
	storePath := viper.GetString("store_path")
	if err := os.MkdirAll(filepath.Dir(storePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %v", err)
	}
	st := store.New(logger, storePath)
	creds := passkey.NewCredentialStore(logger, st)

	registry := chains.DefaultRegistry()
	chainClients := make(map[chains.ChainID]clients.ChainClient)
	evmClients := make(map[chains.ChainID]*clients.EVMClient)

	evmChains := map[chains.ChainID]string{
		8453:  viper.GetString("base_rpc_url"),
		42161: viper.GetString("arbitrum_rpc_url"),
		10:    viper.GetString("optimism_rpc_url"),
	}
	for chainID, rpcURL := range evmChains {
		if rpcURL == "" {
			continue
		}
		client, err := clients.NewEVMClient(logger, clients.EVMClientConfig{
			ChainID:        chainID,
			RPCURL:         rpcURL,
			FactoryAddress: viper.GetString("factory_address"),
			VaultCodeHash:  viper.GetString("vault_code_hash"),
			SessionKeyHex:  viper.GetString("session_key"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create EVM client for chain %d: %v", chainID, err)
		}
		chainClients[chainID] = client
		evmClients[chainID] = client
	}

	if rpcURL := viper.GetString("solana_rpc_url"); rpcURL != "" {
		client, err := clients.NewSolanaClient(logger, clients.SolanaClientConfig{
			ChainID:        101,
			RPCURL:         rpcURL,
			ProgramID:      viper.GetString("solana_program_id"),
			PayerKeyBase58: viper.GetString("solana_payer_key"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Solana client: %v", err)
		}
		chainClients[101] = client
	}

	gatewayChains := []struct {
		chainID chains.ChainID
		family  chains.Family
		flag    string
	}{
		{784, chains.FamilySui, "sui_rpc_url"},
		{637, chains.FamilyAptos, "aptos_rpc_url"},
		{393, chains.FamilyStarknet, "starknet_rpc_url"},
	}
	for _, gw := range gatewayChains {
		rpcURL := viper.GetString(gw.flag)
		if rpcURL == "" {
			continue
		}
		client, err := clients.NewRPCClient(logger, clients.RPCClientConfig{
			ChainID: gw.chainID,
			Family:  gw.family,
			BaseURL: rpcURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %v", gw.family, err)
		}
		chainClients[gw.chainID] = client
	}

	manager := vaults.NewManager(logger, registry, chainClients)

	var (
		relayer clients.BridgeRelayer
		gasless clients.GaslessSender
	)
	if relayerURL := viper.GetString("relayer_url"); relayerURL != "" {
		rc := clients.NewRelayerClient(logger, relayerURL, 0)
		relayer = rc
		gasless = rc
	}

	limits, err := clients.NewEVMLimitsAccessor(logger, evmClients,
		func(_ context.Context, chainID chains.ChainID) (string, error) {
			return manager.VaultAddress(chainID)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create limits accessor: %v", err)
	}

	tracker := bridge.NewTracker(logger)
	engine := dispatch.NewEngine(logger, registry, manager, tracker, relayer, gasless, chainClients)
	keeper := syncrisk.NewKeeper(logger, st, platformSignals(), nil)

	metrics.RegisterMetrics(logger)
	if addr := viper.GetString("metrics_addr"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn("Metrics listener stopped", zap.Error(err))
			}
		}()
	}

	return wallet.NewSession(logger, wallet.Config{
		Registry: registry,
		Provider: &localProvider{creds: creds},
		Creds:    creds,
		Vaults:   manager,
		Engine:   engine,
		Tracker:  tracker,
		Guard:    spending.NewGuard(logger, nil),
		Limits:   limits,
		Sync:     keeper,
	}), nil
}

// platformSignals derives the sync-risk heuristic inputs from the host.
func platformSignals() syncrisk.PlatformSignals {
	osName := runtime.GOOS
	switch osName {
	case "darwin":
		osName = "macos"
	}
	return syncrisk.PlatformSignals{OS: osName}
}
