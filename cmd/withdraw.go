package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lsd-bridge/pkg/amount"
)

var withdrawNoConfirm bool

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Redeem lsdUSDT for USDT back on BSC",
	Long: `Withdraw USDT from the pool. The amount is the USDT you want back; the
required lsdUSDT is computed from the live pool exchange rate, bridged to
the quoted deposit address over the token bridge, and the command waits
for the settlement to finish.

Examples:
  lsd-bridge withdraw 50
  lsd-bridge withdraw 50 --yes
  lsd-bridge withdraw 50 --json`,
	Args: cobra.ExactArgs(1),
	Run:  runWithdraw,
}

func init() {
	rootCmd.AddCommand(withdrawCmd)

	withdrawCmd.Flags().BoolVarP(&withdrawNoConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runWithdraw(cmd *cobra.Command, args []string) {
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
	ctx := context.Background()

	// Show the derivative cost before asking for confirmation.
	if !jsonOutput {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Reading pool exchange rate..."
		s.Start()
		required, err := svc.lsd.RequiredDerivative(ctx, usdtAmount)
		s.Stop()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		cost, err := amount.ToDisplay(required.String(), svc.cfg.StableTokenDecimals)
		if err != nil {
			printError(err)
			os.Exit(1)
		}

		displayRunPlan("WITHDRAW", account, cost, "lsdUSDT", usdtAmount+" USDT")
	}
	if !withdrawNoConfirm && !svc.cfg.AutoConfirm && !jsonOutput {
		if !confirmRun("withdraw") {
			fmt.Println("\nWithdraw cancelled.")
			os.Exit(0)
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Running withdraw workflow..."
		s.Start()
	}

	run, err := svc.sequencer(signer, poller, settlementBalances(svc, signer, jsonOutput)).Withdraw(ctx, account, usdtAmount)
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
		printSuccess(color.GreenString("Withdraw settled. USDT is on its way to %s", account))
	}
}
