/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/meta-exchange/internal/bootstrap"
	"github.com/spf13/cobra"
)

// hedgeCmd represents the hedge command
var hedgeCmd = &cobra.Command{
	Use:   "hedge",
	Short: "Print hedger transactions for transaction requests",
	Long: `Reads the configured order books, creates one venue per order book and
prints the hedger transactions for every configured transaction request.
--side and --amount run a single request instead.`,
	Run: bootstrap.StartHedge,
}

func init() {
	rootCmd.AddCommand(hedgeCmd)
	hedgeCmd.Flags().String("side", "", "request side buy|sell")
	hedgeCmd.Flags().String("amount", "", "request amount of the base asset")
}
