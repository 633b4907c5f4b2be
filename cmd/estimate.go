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
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lsd-bridge/pkg/amount"
	"lsd-bridge/pkg/quote"
	"lsd-bridge/pkg/workflow"
)

var (
	estimateWithdraw bool
	estimateWatch    bool
	estimateAccount  string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate [amount]",
	Short: "Estimate the output of a supply or withdraw without executing",
	Long: `Fetch a quote for a supply (default) or withdraw (--withdraw) amount and
show the estimated output. Nothing is transferred.

In watch mode amounts are read line by line from stdin and quoted live;
rapid edits are debounced so only the final amount hits the quote service.

Examples:
  lsd-bridge estimate 100
  lsd-bridge estimate 50 --withdraw
  lsd-bridge estimate --watch
  lsd-bridge estimate 100 --account 0x1234...abcd`,
	Args: cobra.MaximumNArgs(1),
	Run:  runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().BoolVar(&estimateWithdraw, "withdraw", false, "Estimate a withdraw instead of a supply")
	estimateCmd.Flags().BoolVarP(&estimateWatch, "watch", "w", false, "Read amounts from stdin and quote them live")
	estimateCmd.Flags().StringVar(&estimateAccount, "account", "", "EVM account the estimate is for (defaults to the configured signer)")
}

func runEstimate(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc, err := newServices(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	account, err := estimateAccountAddress(svc)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if estimateWatch {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		watchEstimates(svc, account)
		return
	}

	if len(args) != 1 {
		printError(fmt.Errorf("an amount is required unless --watch is set"))
		os.Exit(1)
	}
	usdtAmount := args[0]
	if !amount.IsPositive(usdtAmount) {
		printError(fmt.Errorf("amount must be a positive number, got %q", usdtAmount))
		os.Exit(1)
	}

	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching estimate..."
		s.Start()
	}

	var derivativeCost string
	if estimateWithdraw {
		required, err := svc.lsd.RequiredDerivative(ctx, usdtAmount)
		if err != nil {
			s.Stop()
			printError(err)
			os.Exit(1)
		}
		derivativeCost, err = amount.ToDisplay(required.String(), svc.cfg.StableTokenDecimals)
		if err != nil {
			s.Stop()
			printError(err)
			os.Exit(1)
		}
	}

	req, err := estimateRequest(ctx, svc, account, usdtAmount, estimateWithdraw)
	if err != nil {
		s.Stop()
		printError(err)
		os.Exit(1)
	}

	result, err := svc.quotes.RequestQuote(ctx, req)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !result.Ok() {
		printError(fmt.Errorf("%w: %s", quote.ErrQuoteFailure, result.Message))
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"direction":        directionName(estimateWithdraw),
			"amount":           usdtAmount,
			"estimated_output": result.Quote.AmountOutFormatted,
		}
		if derivativeCost != "" {
			output["lsd_cost"] = derivativeCost
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     ESTIMATE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Direction:        %s\n", directionName(estimateWithdraw))
	fmt.Printf("  Amount:           %s USDT\n", usdtAmount)
	if derivativeCost != "" {
		fmt.Printf("  lsdUSDT Cost:     %s\n", color.YellowString(derivativeCost))
	}
	fmt.Printf("  Estimated Output: ~%s\n", color.YellowString(result.Quote.AmountOutFormatted))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// watchEstimates quotes each amount typed on stdin, debouncing rapid
// edits through the live quoter.
func watchEstimates(svc *services, account string) {
	direction := directionName(estimateWithdraw)
	fmt.Printf("\nLive %s estimates for %s\n", direction, color.CyanString(account))
	fmt.Println("Type an amount and press Enter. Ctrl+D to stop.")

	lq := workflow.NewLiveQuoter(svc.quotes, workflow.DefaultDebounce,
		func(req quote.Request, result *quote.Result, err error) {
			if err != nil {
				color.Red("  quote failed: %v", err)
				return
			}
			if !result.Ok() {
				color.Red("  no quote: %s", result.Message)
				return
			}
			fmt.Printf("  ~%s USDT out\n", color.YellowString(result.Quote.AmountOutFormatted))
		}, svc.logger)
	defer lq.Cancel()

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if !amount.IsPositive(input) {
			color.Red("  amount must be a positive number")
			continue
		}
		req, err := estimateRequest(ctx, svc, account, input, estimateWithdraw)
		if err != nil {
			color.Red("  %v", err)
			continue
		}
		lq.Update(ctx, req)
	}
}

// estimateRequest builds the same quote request the workflow would send,
// without executing anything.
func estimateRequest(ctx context.Context, svc *services, account, usdtAmount string, withdraw bool) (quote.Request, error) {
	if withdraw {
		buffered, err := workflow.BufferedWithdrawAmount(usdtAmount, svc.cfg.NearStableDecimals)
		if err != nil {
			return quote.Request{}, err
		}
		return quote.Request{
			Chain:            "evm",
			Symbol:           "USDT",
			SelectedEvmChain: "BSC",
			Amount:           buffered,
			RefundTo:         svc.cfg.LsdContractID,
			Recipient:        account,
			ToNear:           false,
		}, nil
	}

	rawIn, err := amount.ToRaw(usdtAmount, svc.cfg.StableTokenDecimals)
	if err != nil {
		return quote.Request{}, err
	}
	msg, err := svc.lsd.SupplyRecipientMessage(ctx, account)
	if err != nil {
		return quote.Request{}, err
	}
	return quote.Request{
		Chain:            "evm",
		Symbol:           "USDT",
		SelectedEvmChain: "BSC",
		Amount:           rawIn,
		RefundTo:         account,
		Recipient:        svc.cfg.LsdContractID,
		ToNear:           true,
		RecipientMessage: msg,
	}, nil
}

// estimateAccountAddress resolves the account an estimate is for: the
// --account flag, or the address of the configured signer key.
func estimateAccountAddress(svc *services) (string, error) {
	if estimateAccount != "" {
		return estimateAccount, nil
	}
	if svc.cfg.BscPrivateKey == "" {
		return "", fmt.Errorf("no account to estimate for. Pass --account or configure LSD_BRIDGE_BSC_PRIVATE_KEY")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(svc.cfg.BscPrivateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func directionName(withdraw bool) string {
	if withdraw {
		return "withdraw"
	}
	return "supply"
}
