package bootstrap

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/krobus00/meta-exchange/internal/constant"
	"github.com/krobus00/meta-exchange/internal/infrastructure"
	"github.com/krobus00/meta-exchange/internal/repository"
	"github.com/krobus00/meta-exchange/internal/service/orderbook"
	"github.com/krobus00/meta-exchange/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StartOrderBookImport copies order books from the order book file into the
// market data database so hedgers can read them with source "database".
func StartOrderBookImport(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filePath, _ := cmd.Flags().GetString("file")
	if filePath == "" {
		filePath = config.Env.OrderBook.FilePath
	}

	count, _ := cmd.Flags().GetInt("count")
	if count <= 0 {
		count = config.Env.OrderBook.NumberToRead
	}

	db, err := infrastructure.NewPostgresConnection(ctx, config.Env.Database[constant.MarketDataDatabaseName])
	util.ContinueOrFatal(err)
	defer db.Close()

	importer := orderbook.NewImporter(
		orderbook.NewFileOrderBookRetriever(filePath),
		repository.NewOrderBookSnapshotRepository(db),
	)

	imported, err := importer.Import(ctx, count)
	util.ContinueOrFatal(err)

	logrus.WithFields(logrus.Fields{
		"file":     filePath,
		"imported": imported,
	}).Info("order books imported")
}
