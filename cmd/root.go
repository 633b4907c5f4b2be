package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lsd-bridge/config"
	"lsd-bridge/pkg/bridge"
	"lsd-bridge/pkg/evm"
	"lsd-bridge/pkg/history"
	"lsd-bridge/pkg/lsd"
	"lsd-bridge/pkg/nearclient"
	"lsd-bridge/pkg/quote"
	"lsd-bridge/pkg/types"
	"lsd-bridge/pkg/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "lsd-bridge",
	Short: "A CLI for supplying and redeeming liquid-staked USDT across BSC and NEAR",
	Long: `lsd-bridge moves USDT between BSC and a NEAR lending pool through the
NEAR Intents quote service and the Wormhole token bridge. Supply USDT to
receive lsdUSDT; redeem lsdUSDT to get USDT back.

Examples:
  lsd-bridge supply 100
  lsd-bridge withdraw 50
  lsd-bridge estimate 100
  lsd-bridge estimate 50 --withdraw
  lsd-bridge balances --watch
  lsd-bridge status <deposit-address>
  lsd-bridge history`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

// newLogger builds the command's diagnostics logger. Verbose mode turns
// on debug output; otherwise only warnings interleave with CLI output.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// services bundles the clients every command wires up the same way.
type services struct {
	cfg    *config.Config
	logger *zap.Logger
	near   *nearclient.Client
	lsd    *lsd.Service
	quotes *quote.Client
}

func newServices(cmd *cobra.Command) (*services, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	near := nearclient.NewClient(cfg.NearRPCURL, logger)
	lsdSvc := lsd.NewService(near, lsd.Config{
		LsdContractID:    cfg.LsdContractID,
		BurrowContractID: cfg.BurrowContractID,
		UnderlyingToken:  cfg.NearStableTokenID,
		StableDecimals:   cfg.StableTokenDecimals,
		SourceChainID:    int(cfg.BscWormholeChainID),
		FinalReceiver:    cfg.FinalReceiver,
	}, logger)

	return &services{
		cfg:    cfg,
		logger: logger,
		near:   near,
		lsd:    lsdSvc,
		quotes: quote.NewClient(cfg.QuoteBaseURL, logger),
	}, nil
}

// signer builds the BSC transaction client. It needs the private key.
func (s *services) signer() (*evm.Client, error) {
	if err := s.cfg.RequireSigner(); err != nil {
		return nil, err
	}
	return evm.NewClient(s.cfg.BscRPCURL, s.cfg.BscPrivateKey, s.cfg.BscChainID, s.logger)
}

// poller builds the settlement poller. It needs the JWT token.
func (s *services) poller() (*quote.Poller, error) {
	if err := s.cfg.RequireJWT(); err != nil {
		return nil, err
	}
	return quote.NewPoller(s.cfg.JWTToken, s.logger), nil
}

func (s *services) stableToken() types.Token {
	return types.Token{Symbol: "USDT", Address: s.cfg.StableTokenAddress, Decimals: s.cfg.StableTokenDecimals}
}

func (s *services) derivativeToken() types.Token {
	return types.Token{Symbol: "lsdUSDT", Address: s.cfg.DerivativeTokenAddress, Decimals: s.cfg.StableTokenDecimals}
}

// sequencer wires the full workflow over an already-built signer and
// poller. balances may be nil.
func (s *services) sequencer(signer *evm.Client, poller *quote.Poller, balances workflow.BalanceRefresher) *workflow.Sequencer {
	dir := bridge.NewDirectory(map[uint16]string{
		s.cfg.BscWormholeChainID:  s.cfg.BscTokenBridge,
		s.cfg.NearWormholeChainID: s.cfg.NearTokenBridge,
	})
	orchestrator := bridge.NewOrchestrator(signer, s.near, dir, bridge.Config{
		SourceChainID:  s.cfg.BscWormholeChainID,
		DestChainID:    s.cfg.NearWormholeChainID,
		PayloadAccount: s.cfg.LsdContractID,
	}, s.logger)

	return workflow.NewSequencer(workflow.Config{
		StableToken:        s.stableToken(),
		DerivativeToken:    s.derivativeToken(),
		NearStableDecimals: s.cfg.NearStableDecimals,
		LsdContractID:      s.cfg.LsdContractID,
		EvmChainName:       "BSC",
	}, s.quotes, s.lsd, signer, orchestrator, poller, balances, s.logger)
}

// historyStore opens the run journal.
func (s *services) historyStore() (*history.Storage, error) {
	return history.NewStorage(s.cfg.HistoryFile)
}
