/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/meta-exchange/internal/bootstrap"
	"github.com/spf13/cobra"
)

// orderBookImportCmd represents the orderBookImport command
var orderBookImportCmd = &cobra.Command{
	Use:   "order-book-import",
	Short: "Import order books from file into the market data database",
	Long:  `Import order books from file into the market data database`,
	Run:   bootstrap.StartOrderBookImport,
}

func init() {
	rootCmd.AddCommand(orderBookImportCmd)
	orderBookImportCmd.Flags().String("file", "", "order book file (default: order_book.file_path)")
	orderBookImportCmd.Flags().Int("count", 0, "number of order books to import (default: order_book.number_to_read)")
}
