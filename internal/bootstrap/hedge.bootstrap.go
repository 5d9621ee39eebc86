package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/service/hedger"
	"github.com/krobus00/meta-exchange/internal/service/ledger"
	"github.com/krobus00/meta-exchange/internal/service/presenter"
	"github.com/krobus00/meta-exchange/internal/util"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StartHedge runs the configured transaction requests, or the one given by
// --side and --amount, against the order books and prints the hedger
// transactions to stdout.
func StartHedge(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requests, err := hedgeRequestsFromFlags(cmd)
	util.ContinueOrFatal(err)

	rt := &hedgerRuntime{ledger: ledger.NewBalanceLedger()}
	retriever, err := rt.newOrderBookRetriever(ctx)
	util.ContinueOrFatal(err)
	defer func() {
		if err := rt.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	coordinator := hedger.NewCoordinator(
		retriever,
		newVenueCreator(),
		rt.ledger,
		newTransactionProcessor(rt.ledger),
		presenter.NewTerminalPresenter(os.Stdout),
		requests,
		config.Env.OrderBook.NumberToRead,
	)

	results, err := coordinator.Run(ctx)
	if err != nil {
		logrus.Error(err)
		return
	}

	invalid := 0
	for _, result := range results {
		if !result.Valid {
			invalid++
		}
	}

	logrus.WithFields(logrus.Fields{
		"requests": len(results),
		"invalid":  invalid,
	}).Info("hedge finished")
}

func hedgeRequestsFromFlags(cmd *cobra.Command) ([]entity.TransactionRequest, error) {
	side, _ := cmd.Flags().GetString("side")
	amount, _ := cmd.Flags().GetString("amount")

	if side == "" && amount == "" {
		return transactionRequestsFromConfig(config.Env.TransactionRequests)
	}

	if side == "" || amount == "" {
		return nil, errors.New("--side and --amount must be given together")
	}

	parsedSide, err := entity.ParseOrderSide(side)
	if err != nil {
		return nil, err
	}

	parsedAmount, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}

	return []entity.TransactionRequest{{
		RequestID: "cli-1",
		Side:      parsedSide,
		Amount:    parsedAmount,
	}}, nil
}
