package presenter

import (
	"fmt"
	"io"

	"github.com/krobus00/meta-exchange/internal/entity"
)

// TerminalPresenter prints a hedging run in plain text.
type TerminalPresenter struct {
	out io.Writer
}

func NewTerminalPresenter(out io.Writer) *TerminalPresenter {
	return &TerminalPresenter{out: out}
}

func (p *TerminalPresenter) PresentVenues(venues []entity.Venue) {
	p.section("Venues")
	for _, venue := range venues {
		fmt.Fprintf(p.out, "venue: %s balance_eur: %s balance_btc: %s bids: %d asks: %d\n",
			venue.Name,
			venue.BalanceEur.String(),
			venue.BalanceBtc.String(),
			len(venue.OrderBook.Bids),
			len(venue.OrderBook.Asks),
		)
	}
}

func (p *TerminalPresenter) PresentRequest(request entity.TransactionRequest) {
	p.section("Transaction request")
	if request.RequestID != "" {
		fmt.Fprintf(p.out, "request id: %s\n", request.RequestID)
	}
	fmt.Fprintf(p.out, "side: %s\n", request.Side)
	fmt.Fprintf(p.out, "amount: %s\n", request.Amount.String())
}

func (p *TerminalPresenter) PresentResult(result entity.ProcessorResult) {
	if !result.Valid {
		p.section("Error")
		fmt.Fprintf(p.out, "hedger transactions were not generated, reason: %s\n", result.ErrorMessage)
		return
	}

	p.section("Hedger transactions")
	for i, tx := range result.Transactions {
		fmt.Fprintf(p.out, "%d. venue: %s amount: %s price: %s type: %s\n",
			i+1,
			tx.Venue,
			tx.Order.Amount.String(),
			tx.Order.Price.String(),
			tx.Order.Type,
		)
	}
	fmt.Fprintf(p.out, "total amount: %s total value: %s\n", result.TotalAmount().String(), result.TotalValue().String())
}

func (p *TerminalPresenter) section(title string) {
	fmt.Fprintf(p.out, "#### %s\n", title)
}
