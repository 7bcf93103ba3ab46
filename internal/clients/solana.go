package clients

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/passkey"
)

// PDA seeds for the vault program.
var (
	SeedVault = []byte("vault")
)

// Instruction discriminators (from the Anchor IDL).
var (
	DiscriminatorTransferOut = []byte{163, 93, 21, 48, 90, 140, 12, 77}
	DiscriminatorCreateVault = []byte{29, 237, 247, 208, 193, 82, 54, 135}
)

// SolanaClientConfig configures the Solana chain client.
type SolanaClientConfig struct {
	ChainID        chains.ChainID
	RPCURL         string
	ProgramID      string // vault program
	PayerKeyBase58 string // optional sponsor/payer key
}

// SolanaClient is the chain collaborator for Solana.
type SolanaClient struct {
	chainID   chains.ChainID
	client    *rpc.Client
	programID solana.PublicKey
	payer     solana.PrivateKey
	hasPayer  bool
	logger    *zap.Logger
}

// NewSolanaClient creates a new Solana chain client.
func NewSolanaClient(logger *zap.Logger, cfg SolanaClientConfig) (*SolanaClient, error) {
	c := &SolanaClient{
		chainID: cfg.ChainID,
		logger: logger.With(
			zap.String("component", "SolanaClient"),
			zap.Uint64("chainId", uint64(cfg.ChainID))),
	}

	c.logger.Info("Connecting to Solana", zap.String("rpcURL", cfg.RPCURL))
	c.client = rpc.New(cfg.RPCURL)

	progID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program ID: %v", err)
	}
	c.programID = progID

	if cfg.PayerKeyBase58 != "" {
		payer, err := solana.PrivateKeyFromBase58(cfg.PayerKeyBase58)
		if err != nil {
			return nil, fmt.Errorf("invalid payer key: %v", err)
		}
		c.payer = payer
		c.hasPayer = true
	}

	return c, nil
}

func (c *SolanaClient) Family() chains.Family {
	return chains.FamilySolana
}

// ComputeVaultAddress derives the vault PDA from the credential's public key
// material: FindProgramAddress(["vault", sha256(pubkey)], program).
func (c *SolanaClient) ComputeVaultAddress(_ context.Context, identity passkey.Credential) (string, error) {
	if len(identity.PublicKey) == 0 {
		return "", fmt.Errorf("credential has no public key material")
	}

	keyHash := sha256.Sum256(identity.PublicKey)
	pda, _, err := solana.FindProgramAddress([][]byte{SeedVault, keyHash[:]}, c.programID)
	if err != nil {
		return "", fmt.Errorf("failed to derive vault PDA: %v", err)
	}
	return pda.String(), nil
}

// VaultExists reports whether the vault account has been initialized.
func (c *SolanaClient) VaultExists(ctx context.Context, address string) (bool, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return false, fmt.Errorf("invalid vault address: %v", err)
	}
	info, err := c.client.GetAccountInfo(ctx, pubkey)
	if err != nil {
		if err == rpc.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check vault account: %v", err)
	}
	return info != nil && info.Value != nil, nil
}

// SendSameChain builds and submits a transfer_out instruction on the vault.
func (c *SolanaClient) SendSameChain(ctx context.Context, transfer Transfer) (TxReceipt, error) {
	if !c.hasPayer {
		return TxReceipt{}, fmt.Errorf("no payer key configured for legacy signing")
	}

	vault, err := solana.PublicKeyFromBase58(transfer.Vault)
	if err != nil {
		return TxReceipt{}, fmt.Errorf("invalid vault address: %v", err)
	}
	recipient, err := solana.PublicKeyFromBase58(transfer.Recipient)
	if err != nil {
		return TxReceipt{}, fmt.Errorf("invalid recipient: %v", err)
	}

	// Instruction data: discriminator + amount (u64 little-endian).
	amount := transfer.Amount.BigInt()
	if !amount.IsUint64() {
		return TxReceipt{}, fmt.Errorf("amount %s does not fit in u64", transfer.Amount)
	}
	data := make([]byte, 8+8)
	copy(data[0:8], DiscriminatorTransferOut)
	binary.LittleEndian.PutUint64(data[8:16], amount.Uint64())

	accounts := []*solana.AccountMeta{
		{PublicKey: c.payer.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: vault, IsSigner: false, IsWritable: true},
		{PublicKey: recipient, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	ix := solana.NewInstruction(c.programID, accounts, data)

	sig, err := c.submit(ctx, ix)
	if err != nil {
		return TxReceipt{}, err
	}
	return TxReceipt{TxHash: sig}, nil
}

// CreateVaultSponsored initializes the vault PDA with the payer covering
// rent and fees.
func (c *SolanaClient) CreateVaultSponsored(ctx context.Context, identity passkey.Credential) (SponsoredResult, error) {
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

	if !c.hasPayer {
		return SponsoredResult{}, fmt.Errorf("no payer key configured to sponsor vault creation")
	}

	vault, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return SponsoredResult{}, fmt.Errorf("invalid derived vault address: %v", err)
	}

	keyHash := sha256.Sum256(identity.PublicKey)
	data := make([]byte, 8+32)
	copy(data[0:8], DiscriminatorCreateVault)
	copy(data[8:40], keyHash[:])

	accounts := []*solana.AccountMeta{
		{PublicKey: c.payer.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: vault, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	ix := solana.NewInstruction(c.programID, accounts, data)

	sig, err := c.submit(ctx, ix)
	if err != nil {
		return SponsoredResult{}, err
	}

	c.logger.Info("Vault creation submitted",
		zap.String("vault", address),
		zap.String("signature", sig))
	return SponsoredResult{Address: address, AlreadyExists: false}, nil
}

// RefreshBalance fetches the vault account's lamport balance.
func (c *SolanaClient) RefreshBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid vault address: %v", err)
	}
	out, err := c.client.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch balance: %v", err)
	}
	return decimal.NewFromUint64(out.Value), nil
}

// submit signs an instruction with the payer and sends it.
func (c *SolanaClient) submit(ctx context.Context, ix solana.Instruction) (string, error) {
	recent, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to get recent blockhash: %v", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.payer.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %v", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.payer.PublicKey()) {
			return &c.payer
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %v", err)
	}

	sig, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %v", err)
	}
	return sig.String(), nil
}
