/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/meta-exchange/internal/bootstrap"
	"github.com/spf13/cobra"
)

// hedgerGatewayCmd represents the hedgerGateway command
var hedgerGatewayCmd = &cobra.Command{
	Use:   "hedger-gateway",
	Short: "Serve transaction requests over HTTP and gRPC",
	Long: `Serves transaction requests over HTTP and gRPC, queues async requests
for hedger-worker and streams transaction results to websocket clients.`,
	Run: bootstrap.StartHedgerGateway,
}

func init() {
	rootCmd.AddCommand(hedgerGatewayCmd)
}
