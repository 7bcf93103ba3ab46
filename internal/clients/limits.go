package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/spending"
)

// Spending-limit surface of the vault contract.
const limitsABI = `[
	{
		"inputs": [],
		"name": "getLimits",
		"outputs": [
			{"internalType": "uint256", "name": "dailyLimit", "type": "uint256"},
			{"internalType": "uint256", "name": "dailySpent", "type": "uint256"},
			{"internalType": "uint256", "name": "transactionLimit", "type": "uint256"},
			{"internalType": "uint64", "name": "dayResetTime", "type": "uint64"},
			{"internalType": "bool", "name": "paused", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "newLimit", "type": "uint256"}],
		"name": "setDailyLimit",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "pause",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "unpause",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// EVMLimitsAccessor reads and mutates the vault's on-chain spending limits.
// The chain is authoritative: callers must re-fetch the snapshot after any
// mutation instead of assuming it took effect.
type EVMLimitsAccessor struct {
	clients      map[chains.ChainID]*EVMClient
	vaultAddress func(ctx context.Context, chainID chains.ChainID) (string, error)
	parsedABI    abi.ABI
	logger       *zap.Logger
}

// NewEVMLimitsAccessor creates an accessor over the given per-chain clients.
// vaultAddress resolves the active identity's vault on a chain.
func NewEVMLimitsAccessor(
	logger *zap.Logger,
	evmClients map[chains.ChainID]*EVMClient,
	vaultAddress func(ctx context.Context, chainID chains.ChainID) (string, error),
) (*EVMLimitsAccessor, error) {
	parsedABI, err := abi.JSON(strings.NewReader(limitsABI))
	if err != nil {
		return nil, fmt.Errorf("ABI parse error: %v", err)
	}
	return &EVMLimitsAccessor{
		clients:      evmClients,
		vaultAddress: vaultAddress,
		parsedABI:    parsedABI,
		logger:       logger.With(zap.String("component", "EVMLimitsAccessor")),
	}, nil
}

// GetLimits fetches the current spending-limit snapshot from the vault.
func (a *EVMLimitsAccessor) GetLimits(ctx context.Context, chainID chains.ChainID) (spending.Snapshot, error) {
	client, vault, err := a.resolve(ctx, chainID)
	if err != nil {
		return spending.Snapshot{}, err
	}

	data, err := a.parsedABI.Pack("getLimits")
	if err != nil {
		return spending.Snapshot{}, fmt.Errorf("ABI pack error: %v", err)
	}

	result, err := client.client.CallContract(ctx, ethereum.CallMsg{To: &vault, Data: data}, nil)
	if err != nil {
		return spending.Snapshot{}, fmt.Errorf("failed to call getLimits: %v", err)
	}

	values, err := a.parsedABI.Unpack("getLimits", result)
	if err != nil {
		return spending.Snapshot{}, fmt.Errorf("ABI unpack error: %v", err)
	}
	if len(values) != 5 {
		return spending.Snapshot{}, fmt.Errorf("getLimits returned %d values", len(values))
	}

	dailyLimit, ok1 := values[0].(*big.Int)
	dailySpent, ok2 := values[1].(*big.Int)
	txLimit, ok3 := values[2].(*big.Int)
	resetTime, ok4 := values[3].(uint64)
	paused, ok5 := values[4].(bool)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return spending.Snapshot{}, fmt.Errorf("getLimits returned unexpected types")
	}

	return spending.Snapshot{
		ChainID:          chainID,
		DailyLimit:       decimal.NewFromBigInt(dailyLimit, 0),
		DailySpent:       decimal.NewFromBigInt(dailySpent, 0),
		TransactionLimit: decimal.NewFromBigInt(txLimit, 0),
		DayResetTime:     time.Unix(int64(resetTime), 0).UTC(),
		Paused:           paused,
	}, nil
}

// SetDailyLimit submits a limit change to the vault.
func (a *EVMLimitsAccessor) SetDailyLimit(ctx context.Context, chainID chains.ChainID, newLimit decimal.Decimal) error {
	data, err := a.parsedABI.Pack("setDailyLimit", newLimit.BigInt())
	if err != nil {
		return fmt.Errorf("ABI pack error: %v", err)
	}
	return a.transact(ctx, chainID, "setDailyLimit", data)
}

// Pause submits a pause to the vault.
func (a *EVMLimitsAccessor) Pause(ctx context.Context, chainID chains.ChainID) error {
	data, err := a.parsedABI.Pack("pause")
	if err != nil {
		return fmt.Errorf("ABI pack error: %v", err)
	}
	return a.transact(ctx, chainID, "pause", data)
}

// Unpause submits an unpause to the vault.
func (a *EVMLimitsAccessor) Unpause(ctx context.Context, chainID chains.ChainID) error {
	data, err := a.parsedABI.Pack("unpause")
	if err != nil {
		return fmt.Errorf("ABI pack error: %v", err)
	}
	return a.transact(ctx, chainID, "unpause", data)
}

func (a *EVMLimitsAccessor) transact(ctx context.Context, chainID chains.ChainID, op string, data []byte) error {
	client, vault, err := a.resolve(ctx, chainID)
	if err != nil {
		return err
	}
	if client.sessionKey == nil {
		return fmt.Errorf("no session key configured for %s", op)
	}

	txHash, err := client.sendTransaction(ctx, vault, data)
	if err != nil {
		return fmt.Errorf("failed to submit %s: %v", op, err)
	}

	a.logger.Info("Limit mutation submitted",
		zap.String("op", op),
		zap.Uint64("chainId", uint64(chainID)),
		zap.String("txHash", txHash))
	return nil
}

func (a *EVMLimitsAccessor) resolve(ctx context.Context, chainID chains.ChainID) (*EVMClient, common.Address, error) {
	client, ok := a.clients[chainID]
	if !ok {
		return nil, common.Address{}, fmt.Errorf("no EVM client for chain %d", chainID)
	}
	address, err := a.vaultAddress(ctx, chainID)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("failed to resolve vault address: %v", err)
	}
	return client, common.HexToAddress(address), nil
}
