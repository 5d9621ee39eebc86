/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/meta-exchange/internal/bootstrap"
	"github.com/spf13/cobra"
)

// hedgerWorkerCmd represents the hedgerWorker command
var hedgerWorkerCmd = &cobra.Command{
	Use:   "hedger-worker",
	Short: "Consume transaction requests from hedger-gateway",
	Long: `Consumes queued transaction requests from the hedger stream, processes
them against its own venue ledger and publishes the results.`,
	Run: bootstrap.StartHedgerWorker,
}

func init() {
	rootCmd.AddCommand(hedgerWorkerCmd)
}
