package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lsd-bridge/pkg/evm"
	"lsd-bridge/pkg/types"
	"lsd-bridge/pkg/workflow"
)

var balancesWatch bool

var balancesCmd = &cobra.Command{
	Use:   "balances [account]",
	Short: "Show USDT and lsdUSDT balances on BSC",
	Long: `Show the USDT and lsdUSDT balances of an account on BSC. Without an
argument the configured signer's account is used.

Examples:
  lsd-bridge balances
  lsd-bridge balances 0x1234...abcd
  lsd-bridge balances --watch`,
	Args: cobra.MaximumNArgs(1),
	Run:  runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)

	balancesCmd.Flags().BoolVarP(&balancesWatch, "watch", "w", false, "Refresh balances continuously")
}

func runBalances(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc, err := newServices(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	signer, err := svc.signer()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer signer.Close()

	account := signer.Address().Hex()
	if len(args) == 1 {
		if !common.IsHexAddress(args[0]) {
			printError(fmt.Errorf("invalid account address: %q", args[0]))
			os.Exit(1)
		}
		account = common.HexToAddress(args[0]).Hex()
	}

	printer := &balancePrinter{
		client:     signer,
		owner:      common.HexToAddress(account),
		stable:     svc.stableToken(),
		derivative: svc.derivativeToken(),
		json:       jsonOutput,
	}

	if !balancesWatch {
		printer.Refresh(context.Background())
		return
	}

	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching balances for %s\n", color.CyanString(account))
	fmt.Println("Press Ctrl+C to stop.")

	watcher := workflow.NewBalanceWatcher(printer, workflow.DefaultBalanceInterval, svc.logger)
	watcher.Start(context.Background(), account)
	defer watcher.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
}

// settlementBalances builds the refresher a workflow run pokes after
// settling, so fresh balances print with the result. JSON output keeps
// the run object as the only thing on stdout.
func settlementBalances(svc *services, signer *evm.Client, jsonOutput bool) workflow.BalanceRefresher {
	if jsonOutput {
		return nil
	}
	return &balancePrinter{
		client:     signer,
		owner:      signer.Address(),
		stable:     svc.stableToken(),
		derivative: svc.derivativeToken(),
	}
}

// balancePrinter fetches and prints both token balances. It satisfies
// the workflow's balance-refresher so the watcher can drive it.
type balancePrinter struct {
	client     *evm.Client
	owner      common.Address
	stable     types.Token
	derivative types.Token
	json       bool
}

func (b *balancePrinter) Refresh(ctx context.Context) {
	stableBal, err := b.client.DisplayBalance(ctx, common.HexToAddress(b.stable.Address), b.owner, b.stable.Decimals)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}
	derivBal, err := b.client.DisplayBalance(ctx, common.HexToAddress(b.derivative.Address), b.owner, b.derivative.Decimals)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}

	if b.json {
		output := map[string]string{
			"account":           b.owner.Hex(),
			b.stable.Symbol:     stableBal,
			b.derivative.Symbol: derivBal,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Printf("\n  [%s] %s\n", time.Now().Format("15:04:05"), color.CyanString(b.owner.Hex()))
	fmt.Printf("    %s:    %s\n", b.stable.Symbol, color.YellowString(stableBal))
	fmt.Printf("    %s: %s\n", b.derivative.Symbol, color.YellowString(derivBal))
}
