package cmd

import (
	"os"
	"strings"

	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "passkey-wallet",
	Short: "Passkey-secured multi-chain vault wallet",
	Long: `Client-side orchestrator for passkey-secured vaults across EVM rollups,
Solana, Sui, Aptos and Starknet, with Wormhole-routed cross-chain transfers.`,
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	rootCmd.PersistentFlags().String(
		"store-path",
		defaultStorePath(),
		"Path of the device-local state file")

	rootCmd.PersistentFlags().String(
		"relayer-url",
		"",
		"Base URL of the sponsoring bridge relayer (enables gasless sends)")

	rootCmd.PersistentFlags().String(
		"metrics-addr",
		"",
		"Listen address for Prometheus metrics (disabled when empty)")

	rootCmd.PersistentFlags().String(
		"base-rpc-url",
		"https://mainnet.base.org",
		"RPC URL for Base")

	rootCmd.PersistentFlags().String(
		"arbitrum-rpc-url",
		"",
		"RPC URL for Arbitrum One")

	rootCmd.PersistentFlags().String(
		"optimism-rpc-url",
		"",
		"RPC URL for OP Mainnet")

	rootCmd.PersistentFlags().String(
		"solana-rpc-url",
		"",
		"RPC URL for Solana")

	rootCmd.PersistentFlags().String(
		"sui-rpc-url",
		"",
		"Gateway URL for Sui")

	rootCmd.PersistentFlags().String(
		"aptos-rpc-url",
		"",
		"Gateway URL for Aptos")

	rootCmd.PersistentFlags().String(
		"starknet-rpc-url",
		"",
		"Gateway URL for Starknet")

	rootCmd.PersistentFlags().String(
		"factory-address",
		"",
		"Vault factory contract address on the EVM chains")

	rootCmd.PersistentFlags().String(
		"vault-code-hash",
		"",
		"Init-code hash of the EVM vault contract (hex)")

	rootCmd.PersistentFlags().String(
		"session-key",
		"",
		"Session private key for wallet-signed EVM transactions (hex)")

	rootCmd.PersistentFlags().String(
		"solana-program-id",
		"",
		"Vault program id on Solana")

	rootCmd.PersistentFlags().String(
		"solana-payer-key",
		"",
		"Payer private key for wallet-signed Solana transactions (base58)")

	// Bind flags to viper for env variable support
	viper.BindPFlag("store_path", rootCmd.PersistentFlags().Lookup("store-path"))
	viper.BindPFlag("relayer_url", rootCmd.PersistentFlags().Lookup("relayer-url"))
	viper.BindPFlag("metrics_addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	viper.BindPFlag("base_rpc_url", rootCmd.PersistentFlags().Lookup("base-rpc-url"))
	viper.BindPFlag("arbitrum_rpc_url", rootCmd.PersistentFlags().Lookup("arbitrum-rpc-url"))
	viper.BindPFlag("optimism_rpc_url", rootCmd.PersistentFlags().Lookup("optimism-rpc-url"))
	viper.BindPFlag("solana_rpc_url", rootCmd.PersistentFlags().Lookup("solana-rpc-url"))
	viper.BindPFlag("sui_rpc_url", rootCmd.PersistentFlags().Lookup("sui-rpc-url"))
	viper.BindPFlag("aptos_rpc_url", rootCmd.PersistentFlags().Lookup("aptos-rpc-url"))
	viper.BindPFlag("starknet_rpc_url", rootCmd.PersistentFlags().Lookup("starknet-rpc-url"))
	viper.BindPFlag("factory_address", rootCmd.PersistentFlags().Lookup("factory-address"))
	viper.BindPFlag("vault_code_hash", rootCmd.PersistentFlags().Lookup("vault-code-hash"))
	viper.BindPFlag("session_key", rootCmd.PersistentFlags().Lookup("session-key"))
	viper.BindPFlag("solana_program_id", rootCmd.PersistentFlags().Lookup("solana-program-id"))
	viper.BindPFlag("solana_payer_key", rootCmd.PersistentFlags().Lookup("solana-payer-key"))

	cobra.OnInitialize(initConfig)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("passkey-wallet")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wallet-state.json"
	}
	return home + "/.passkey-wallet/state.json"
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Configure JSON output if requested
	if json {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}
