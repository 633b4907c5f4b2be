package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lsd-bridge/pkg/quote"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <deposit-address>",
	Short: "Check the settlement status of a run",
	Long: `Check the settlement status of a supply or withdraw run by its deposit
address.

Examples:
  lsd-bridge status 0x1234...abcd
  lsd-bridge status 0x1234...abcd --watch
  lsd-bridge status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until settlement is terminal")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	depositAddress := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc, err := newServices(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	poller, err := svc.poller()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		watchSettlementStatus(poller, depositAddress, jsonOutput)
	} else {
		checkSettlementStatus(poller, depositAddress, jsonOutput)
	}
}

func checkSettlementStatus(poller *quote.Poller, depositAddress string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking settlement status..."
		s.Start()
	}

	status, err := poller.Status(context.Background(), depositAddress)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]string{
			"deposit_address": depositAddress,
			"status":          status,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displaySettlementStatus(status, depositAddress)
	}
}

func watchSettlementStatus(poller *quote.Poller, depositAddress string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching settlement status (Deposit Address: %s)\n", color.CyanString(depositAddress))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first
	if checkAndDisplayStatus(poller, depositAddress) {
		return
	}

	// Then check periodically until the settlement is terminal
	for range ticker.C {
		if checkAndDisplayStatus(poller, depositAddress) {
			return
		}
	}
}

func checkAndDisplayStatus(poller *quote.Poller, depositAddress string) bool {
	status, err := poller.Status(context.Background(), depositAddress)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displaySettlementStatus(status, depositAddress)
	return quote.IsSettled(status)
}

func displaySettlementStatus(status, depositAddress string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      SETTLEMENT STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(depositAddress))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status))
	fmt.Printf("  Checked At:      %s\n", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED":
		return color.GreenString(status)
	case "PENDING_DEPOSIT", "PENDING", "PROCESSING":
		return color.YellowString(status)
	case "FAILED", "REFUNDED":
		return color.RedString(status)
	case "INCOMPLETE_DEPOSIT":
		return color.MagentaString(status)
	default:
		return status
	}
}
