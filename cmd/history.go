package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lsd-bridge/pkg/types"
)

var historyDirection string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past supply and withdraw runs",
	Long: `List the runs recorded in the local journal, most recent first.

Examples:
  lsd-bridge history
  lsd-bridge history --direction supply
  lsd-bridge history --json`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyDirection, "direction", "", "Filter by direction (supply or withdraw)")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc, err := newServices(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	store, err := svc.historyStore()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var runs []*types.Run
	switch historyDirection {
	case "":
		runs = store.List()
	case string(types.DirectionSupply):
		runs = store.ListByDirection(types.DirectionSupply)
	case string(types.DirectionWithdraw):
		runs = store.ListByDirection(types.DirectionWithdraw)
	default:
		printError(fmt.Errorf("invalid direction %q, expected supply or withdraw", historyDirection))
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(runs) == 0 {
		fmt.Println("\nNo runs recorded yet.")
		fmt.Printf("Journal: %s\n\n", store.GetFilePath())
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          RUN HISTORY")
	fmt.Println(strings.Repeat("=", 70))

	for _, run := range runs {
		fmt.Printf("\n  %s  %s %s USDT  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Direction,
			run.Amount,
			coloredRunStatus(run.Status))
		fmt.Printf("    Run ID: %s\n", color.HiBlackString(run.ID))
		if run.TxHash != "" {
			fmt.Printf("    Tx:     %s\n", color.HiBlackString(run.TxHash))
		}
		if run.Error != "" {
			fmt.Printf("    Error:  %s\n", color.RedString(run.Error))
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 70))
	fmt.Printf("%d run(s). Journal: %s\n\n", len(runs), store.GetFilePath())
}
