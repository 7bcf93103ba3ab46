package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/passkey"
)

// Vault factory and vault call ABIs. The factory deploys one vault per
// credential via CREATE2; the vault exposes a single transfer entry point
// whose authorization is verified on-chain.
const vaultFactoryABI = `[{
	"inputs": [{"internalType": "bytes32", "name": "salt", "type": "bytes32"}],
	"name": "deployVault",
	"outputs": [{"internalType": "address", "name": "vault", "type": "address"}],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

const vaultABI = `[{
	"inputs": [
		{"internalType": "address", "name": "token", "type": "address"},
		{"internalType": "address", "name": "to", "type": "address"},
		{"internalType": "uint256", "name": "amount", "type": "uint256"}
	],
	"name": "transferOut",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// EVMClientConfig configures one EVM chain client.
type EVMClientConfig struct {
	ChainID        chains.ChainID
	RPCURL         string
	FactoryAddress string // vault factory contract
	VaultCodeHash  string // keccak256 of the vault proxy init code
	SessionKeyHex  string // optional key for the legacy signing path
}

// EVMClient is the chain collaborator for EVM rollups.
type EVMClient struct {
	chainID       chains.ChainID
	client        *ethclient.Client
	factory       common.Address
	vaultCodeHash common.Hash
	sessionKey    *ecdsa.PrivateKey
	sender        common.Address
	logger        *zap.Logger
}

// NewEVMClient connects to an EVM chain. The session key is optional:
// without it only read operations work and sends must go gasless.
func NewEVMClient(logger *zap.Logger, cfg EVMClientConfig) (*EVMClient, error) {
	c := &EVMClient{
		chainID:       cfg.ChainID,
		factory:       common.HexToAddress(cfg.FactoryAddress),
		vaultCodeHash: common.HexToHash(cfg.VaultCodeHash),
		logger: logger.With(
			zap.String("component", "EVMClient"),
			zap.Uint64("chainId", uint64(cfg.ChainID))),
	}

	c.logger.Info("Connecting to EVM chain", zap.String("rpcURL", cfg.RPCURL))
	ethClient, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %v", err)
	}
	c.client = ethClient

	if cfg.SessionKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SessionKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid session key: %v", err)
		}
		publicKey, ok := key.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("error casting public key to ECDSA")
		}
		c.sessionKey = key
		c.sender = crypto.PubkeyToAddress(*publicKey)
	}

	return c, nil
}

func (c *EVMClient) Family() chains.Family {
	return chains.FamilyEVM
}

// VaultSalt binds a CREATE2 salt to the credential's public key material.
func VaultSalt(identity passkey.Credential) common.Hash {
	return crypto.Keccak256Hash(identity.PublicKey)
}

// ComputeVaultAddress derives the CREATE2 vault address:
// keccak256(0xff ++ factory ++ salt ++ vaultCodeHash)[12:]. Pure with
// respect to chain state, so the address is known before deployment.
func (c *EVMClient) ComputeVaultAddress(_ context.Context, identity passkey.Credential) (string, error) {
	if len(identity.PublicKey) == 0 {
		return "", fmt.Errorf("credential has no public key material")
	}

	salt := VaultSalt(identity)

	data := make([]byte, 1+20+32+32)
	data[0] = 0xff
	copy(data[1:21], c.factory.Bytes())
	copy(data[21:53], salt.Bytes())
	copy(data[53:85], c.vaultCodeHash.Bytes())

	hash := crypto.Keccak256(data)
	return common.BytesToAddress(hash[12:]).Hex(), nil
}

// VaultExists reports whether code is deployed at the vault address.
func (c *EVMClient) VaultExists(ctx context.Context, address string) (bool, error) {
	code, err := c.client.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, fmt.Errorf("failed to check vault code: %v", err)
	}
	return len(code) > 0, nil
}

// SendSameChain submits a transferOut call on the sender's vault via the
// legacy signing path.
func (c *EVMClient) SendSameChain(ctx context.Context, transfer Transfer) (TxReceipt, error) {
	if c.sessionKey == nil {
		return TxReceipt{}, fmt.Errorf("no session key configured for legacy signing")
	}

	parsedABI, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return TxReceipt{}, fmt.Errorf("ABI parse error: %v", err)
	}
	data, err := parsedABI.Pack("transferOut",
		common.HexToAddress(transfer.Token),
		common.HexToAddress(transfer.Recipient),
		transfer.Amount.BigInt())
	if err != nil {
		return TxReceipt{}, fmt.Errorf("ABI pack error: %v", err)
	}

	txHash, err := c.sendTransaction(ctx, common.HexToAddress(transfer.Vault), data)
	if err != nil {
		return TxReceipt{}, err
	}
	return TxReceipt{TxHash: txHash}, nil
}

// CreateVaultSponsored deploys the identity's vault through the factory. A
// vault that already has code is reported as AlreadyExists, not an error.
func (c *EVMClient) CreateVaultSponsored(ctx context.Context, identity passkey.Credential) (SponsoredResult, error) {
	address, err := c.ComputeVaultAddress(ctx, identity)
	if err != nil {
		return SponsoredResult{}, err
	}

	exists, err := c.VaultExists(ctx, address)
	if err != nil {
		return SponsoredResult{}, err
	}
	if exists {
		return SponsoredResult{Address: address, AlreadyExists: true}, nil
	}

	if c.sessionKey == nil {
		return SponsoredResult{}, fmt.Errorf("no session key configured to submit vault deployment")
	}

	parsedABI, err := abi.JSON(strings.NewReader(vaultFactoryABI))
	if err != nil {
		return SponsoredResult{}, fmt.Errorf("ABI parse error: %v", err)
	}
	salt := VaultSalt(identity)
	data, err := parsedABI.Pack("deployVault", [32]byte(salt))
	if err != nil {
		return SponsoredResult{}, fmt.Errorf("ABI pack error: %v", err)
	}

	txHash, err := c.sendTransaction(ctx, c.factory, data)
	if err != nil {
		return SponsoredResult{}, err
	}

	c.logger.Info("Vault deployment submitted",
		zap.String("vault", address),
		zap.String("txHash", txHash))
	return SponsoredResult{Address: address, AlreadyExists: false}, nil
}

// RefreshBalance fetches the vault's native balance.
func (c *EVMClient) RefreshBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	balance, err := c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch balance: %v", err)
	}
	return decimal.NewFromBigInt(balance, 0), nil
}

// sendTransaction signs and submits an EIP-1559 transaction using 2x base
// fee as the cap to handle fluctuations.
func (c *EVMClient) sendTransaction(ctx context.Context, to common.Address, data []byte) (string, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %v", err)
	}

	chainID, err := c.client.NetworkID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get chain ID: %v", err)
	}

	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get latest block header: %v", err)
	}

	baseFee := header.BaseFee
	maxPriorityFeePerGas := big.NewInt(100000000) // 0.1 gwei tip
	maxFeePerGas := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFeePerGas.Add(maxFeePerGas, maxPriorityFeePerGas)

	c.logger.Debug("Gas fees calculated",
		zap.String("baseFee", baseFee.String()),
		zap.String("maxFeePerGas", maxFeePerGas.String()),
		zap.String("maxPriorityFeePerGas", maxPriorityFeePerGas.String()))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: maxPriorityFeePerGas,
		GasFeeCap: maxFeePerGas,
		Gas:       500000,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signedTx, err := types.SignTx(tx, types.NewLondonSigner(chainID), c.sessionKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %v", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %v", err)
	}

	return signedTx.Hash().Hex(), nil
}
