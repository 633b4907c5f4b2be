package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lsd-bridge/pkg/amount"
	"lsd-bridge/pkg/types"
)

var supplyNoConfirm bool

var supplyCmd = &cobra.Command{
	Use:   "supply <amount>",
	Short: "Supply USDT from BSC into the pool and receive lsdUSDT",
	Long: `Supply USDT into the NEAR-side lending pool. The amount is quoted with a
recipient message that routes the minted lsdUSDT back to your BSC address,
the quoted amount is transferred to the deposit address, and the command
waits for the settlement to finish.

Examples:
  lsd-bridge supply 100
  lsd-bridge supply 100 --yes
  lsd-bridge supply 100 --json`,
	Args: cobra.ExactArgs(1),
	Run:  runSupply,
}

func init() {
	rootCmd.AddCommand(supplyCmd)

	supplyCmd.Flags().BoolVarP(&supplyNoConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSupply(cmd *cobra.Command, args []string) {
	usdtAmount := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if !amount.IsPositive(usdtAmount) {
		printError(fmt.Errorf("amount must be a positive number, got %q", usdtAmount))
		os.Exit(1)
	}

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

	poller, err := svc.poller()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	account := signer.Address().Hex()

	if !jsonOutput {
		displayRunPlan("SUPPLY", account, usdtAmount, "USDT", "lsdUSDT")
	}
	if !supplyNoConfirm && !svc.cfg.AutoConfirm && !jsonOutput {
		if !confirmRun("supply") {
			fmt.Println("\nSupply cancelled.")
			os.Exit(0)
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Running supply workflow..."
		s.Start()
	}

	run, err := svc.sequencer(signer, poller, settlementBalances(svc, signer, jsonOutput)).Supply(context.Background(), account, usdtAmount)
	if !jsonOutput {
		s.Stop()
	}

	recordRun(svc, run)

	if err != nil {
		if run != nil && !jsonOutput {
			displayRun(run)
		}
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(run, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayRun(run)
		printSuccess(color.GreenString("Supply settled. lsdUSDT is on its way to %s", account))
	}
}

// recordRun journals a finished run; failing to record is not fatal.
func recordRun(svc *services, run *types.Run) {
	if run == nil {
		return
	}
	store, err := svc.historyStore()
	if err == nil {
		err = store.Record(run)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record run history: %v\n", err)
	}
}

func displayRunPlan(title, account, amountStr, fromToken, toToken string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     %s", title)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Account:  %s\n", color.CyanString(account))
	fmt.Printf("  From:     %s %s\n", amountStr, color.YellowString(fromToken))
	fmt.Printf("  To:       %s\n", color.YellowString(toToken))

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func displayRun(run *types.Run) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     RUN RESULT")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Run ID:           %s\n", run.ID)
	fmt.Printf("  Direction:        %s\n", run.Direction)
	fmt.Printf("  Status:           %s\n", coloredRunStatus(run.Status))
	if run.DepositAddress != "" {
		fmt.Printf("  Deposit Address:  %s\n", color.CyanString(run.DepositAddress))
	}
	if run.TxHash != "" {
		fmt.Printf("  Tx Hash:          %s\n", color.HiBlackString(run.TxHash))
	}
	if run.EstimatedOutput != "" {
		fmt.Printf("  Estimated Output: ~%s\n", run.EstimatedOutput)
	}
	if run.SettledStatus != "" {
		fmt.Printf("  Settlement:       %s\n", getColoredStatus(run.SettledStatus))
	}
	if run.Error != "" {
		fmt.Printf("  Error:            %s\n", color.RedString(run.Error))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func coloredRunStatus(status types.RunStatus) string {
	switch status {
	case types.StatusSucceeded:
		return color.GreenString(string(status))
	case types.StatusFailed:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

func confirmRun(action string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\nProceed with %s? (y/N): ", action)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
