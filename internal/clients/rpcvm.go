package clients

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/passkey"
)

// starknetFieldPrime is the felt252 modulus Starknet addresses live under.
var starknetFieldPrime, _ = new(big.Int).SetString(
	"800000000000011000000000000000000000000000000000000000000000001", 16)

// RPCClientConfig configures a JSON-RPC chain client for the Sui, Aptos and
// Starknet families.
type RPCClientConfig struct {
	ChainID chains.ChainID
	Family  chains.Family
	BaseURL string
}

// RPCClient talks JSON-RPC to a full-node gateway for chains without a
// dedicated Go SDK in this module. One instance serves one chain.
type RPCClient struct {
	chainID    chains.ChainID
	family     chains.Family
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRPCClient creates a JSON-RPC chain client.
func NewRPCClient(logger *zap.Logger, cfg RPCClientConfig) (*RPCClient, error) {
	switch cfg.Family {
	case chains.FamilySui, chains.FamilyAptos, chains.FamilyStarknet:
	default:
		return nil, fmt.Errorf("family %q is not served by the RPC client", cfg.Family)
	}

	return &RPCClient{
		chainID: cfg.ChainID,
		family:  cfg.Family,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.With(
			zap.String("component", "RPCClient"),
			zap.String("family", cfg.Family.String()),
			zap.Uint64("chainId", uint64(cfg.ChainID))),
	}, nil
}

func (c *RPCClient) Family() chains.Family {
	return c.family
}

// ComputeVaultAddress derives the family's deterministic vault address from
// the credential's public key material.
func (c *RPCClient) ComputeVaultAddress(_ context.Context, identity passkey.Credential) (string, error) {
	if len(identity.PublicKey) == 0 {
		return "", fmt.Errorf("credential has no public key material")
	}

	switch c.family {
	case chains.FamilySui, chains.FamilyAptos:
		// 32-byte account id: sha256 over the key material with a
		// family-specific domain byte, full 64-hex form. The key is copied
		// so the domain byte never lands in the credential's buffer.
		material := make([]byte, 0, len(identity.PublicKey)+1)
		material = append(material, identity.PublicKey...)
		material = append(material, familyDomainByte(c.family))
		sum := sha256.Sum256(material)
		return fmt.Sprintf("0x%064x", sum), nil
	case chains.FamilyStarknet:
		// Contract address is a felt: keccak of the key material reduced
		// into the field.
		value := new(big.Int).SetBytes(crypto.Keccak256(identity.PublicKey))
		value.Mod(value, starknetFieldPrime)
		return fmt.Sprintf("0x%x", value), nil
	}
	return "", fmt.Errorf("family %q has no address derivation", c.family)
}

func familyDomainByte(f chains.Family) byte {
	if f == chains.FamilySui {
		return 0x00
	}
	return 0x01
}

// VaultExists asks the gateway whether the vault object is deployed.
func (c *RPCClient) VaultExists(ctx context.Context, address string) (bool, error) {
	var exists bool
	if err := c.call(ctx, "vault_exists", []any{address}, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// SendSameChain submits a transfer through the gateway.
func (c *RPCClient) SendSameChain(ctx context.Context, transfer Transfer) (TxReceipt, error) {
	params := []any{map[string]any{
		"vault":     transfer.Vault,
		"token":     transfer.Token,
		"recipient": transfer.Recipient,
		"amount":    transfer.Amount.String(),
	}}
	var receipt TxReceipt
	if err := c.call(ctx, "vault_send", params, &receipt); err != nil {
		return TxReceipt{}, err
	}
	return receipt, nil
}

// CreateVaultSponsored asks the gateway's sponsor to deploy the vault.
func (c *RPCClient) CreateVaultSponsored(ctx context.Context, identity passkey.Credential) (SponsoredResult, error) {
	address, err := c.ComputeVaultAddress(ctx, identity)
	if err != nil {
		return SponsoredResult{}, err
	}

	params := []any{map[string]any{
		"address":   address,
		"publicKey": fmt.Sprintf("%x", identity.PublicKey),
	}}
	var result SponsoredResult
	if err := c.call(ctx, "vault_createSponsored", params, &result); err != nil {
		return SponsoredResult{}, err
	}
	if result.Address == "" {
		result.Address = address
	}
	return result, nil
}

// RefreshBalance fetches the vault's balance in base units.
func (c *RPCClient) RefreshBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var balance string
	if err := c.call(ctx, "vault_balance", []any{address}, &balance); err != nil {
		return decimal.Zero, err
	}
	value, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("gateway returned bad balance %q: %v", balance, err)
	}
	return value, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %v", err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("failed to parse response: %v (body: %s)", err, string(body))
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %v", err)
	}
	return nil
}
