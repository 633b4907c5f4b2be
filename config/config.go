package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Quote service
	QuoteBaseURL string
	JWTToken     string

	// Chain endpoints and signer
	BscRPCURL     string
	BscChainID    int64
	BscPrivateKey string
	NearRPCURL    string

	// Route contracts
	StableTokenAddress     string
	StableTokenDecimals    int32
	DerivativeTokenAddress string
	NearStableTokenID      string
	NearStableDecimals     int32
	LsdContractID          string
	BurrowContractID       string
	FinalReceiver          string

	// Bridge
	BscTokenBridge      string
	NearTokenBridge     string
	BscWormholeChainID  uint16
	NearWormholeChainID uint16

	// Behavior
	AutoConfirm bool
	HistoryFile string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".lsd-bridge")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("quote_base_url", "https://api.fastnear-intents.org")
	viper.SetDefault("bsc_rpc_url", "https://bsc-dataseed.binance.org")
	viper.SetDefault("bsc_chain_id", int64(56))
	viper.SetDefault("near_rpc_url", "https://rpc.mainnet.near.org")
	viper.SetDefault("stable_token_address", "0x55d398326f99059fF775485246999027B3197955")
	viper.SetDefault("stable_token_decimals", 18)
	viper.SetDefault("derivative_token_address", "0xc350bafb46813dd23fd298c1caef96da4a4c1f2a")
	viper.SetDefault("near_stable_token_id", "usdt.tether-token.near")
	viper.SetDefault("near_stable_decimals", 6)
	viper.SetDefault("lsd_contract_id", "lsd.stg.ref-dev-team.near")
	viper.SetDefault("burrow_contract_id", "br.private-mainnet.ref-dev-team.near")
	viper.SetDefault("final_receiver", "0x468fB74626aA39ddeD71F69a39D660A66108BCf1")
	viper.SetDefault("bsc_token_bridge", "0xB6F6D86a8f9879A9c87f643768d9efc38c1Da6E7")
	viper.SetDefault("near_token_bridge", "contract.portalbridge.near")
	viper.SetDefault("bsc_wormhole_chain_id", 4)
	viper.SetDefault("near_wormhole_chain_id", 15)
	viper.SetDefault("auto_confirm", false)
	viper.SetDefault("history_file", "")

	// Read from environment variables
	viper.SetEnvPrefix("LSD_BRIDGE")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		QuoteBaseURL:           viper.GetString("quote_base_url"),
		JWTToken:               viper.GetString("jwt_token"),
		BscRPCURL:              viper.GetString("bsc_rpc_url"),
		BscChainID:             viper.GetInt64("bsc_chain_id"),
		BscPrivateKey:          viper.GetString("bsc_private_key"),
		NearRPCURL:             viper.GetString("near_rpc_url"),
		StableTokenAddress:     viper.GetString("stable_token_address"),
		StableTokenDecimals:    viper.GetInt32("stable_token_decimals"),
		DerivativeTokenAddress: viper.GetString("derivative_token_address"),
		NearStableTokenID:      viper.GetString("near_stable_token_id"),
		NearStableDecimals:     viper.GetInt32("near_stable_decimals"),
		LsdContractID:          viper.GetString("lsd_contract_id"),
		BurrowContractID:       viper.GetString("burrow_contract_id"),
		FinalReceiver:          viper.GetString("final_receiver"),
		BscTokenBridge:         viper.GetString("bsc_token_bridge"),
		NearTokenBridge:        viper.GetString("near_token_bridge"),
		BscWormholeChainID:     uint16(viper.GetUint32("bsc_wormhole_chain_id")),
		NearWormholeChainID:    uint16(viper.GetUint32("near_wormhole_chain_id")),
		AutoConfirm:            viper.GetBool("auto_confirm"),
		HistoryFile:            viper.GetString("history_file"),
	}

	globalConfig = cfg
	return cfg, nil
}

// RequireSigner validates the settings every transacting command needs.
func (c *Config) RequireSigner() error {
	if c.BscPrivateKey == "" {
		return fmt.Errorf("BSC private key not found. Please set LSD_BRIDGE_BSC_PRIVATE_KEY environment variable or create a .lsd-bridge.yaml config file")
	}
	return nil
}

// RequireJWT validates the settings settlement polling needs.
func (c *Config) RequireJWT() error {
	if c.JWTToken == "" {
		return fmt.Errorf("JWT token not found. Please set LSD_BRIDGE_JWT_TOKEN environment variable or create a .lsd-bridge.yaml config file")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
