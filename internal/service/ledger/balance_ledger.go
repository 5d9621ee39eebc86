package ledger

import (
	"errors"
	"maps"
	"sync"

	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrLedgerAlreadyInitialized = errors.New("balance ledger already initialized")
)

var _ entity.BalanceLedger = (*BalanceLedger)(nil)

// BalanceLedger keeps the base asset balance left on each venue for the lifetime
// of one run. Balances are only ever reduced and may become negative.
type BalanceLedger struct {
	mu          sync.Mutex
	balances    map[string]decimal.Decimal
	initialized bool
}

func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{
		balances: make(map[string]decimal.Decimal),
	}
}

// Initialize registers every venue with its base asset balance. It must be
// called once before any selection.
func (l *BalanceLedger) Initialize(venues []entity.Venue) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return ErrLedgerAlreadyInitialized
	}

	for _, venue := range venues {
		l.balances[venue.Name] = venue.BalanceBtc
	}
	l.initialized = true

	logrus.WithField("venues", len(venues)).Debug("balance ledger initialized")

	return nil
}

// Get returns the balance of venue. Asking for a venue the ledger was not
// initialized with is a programming error and panics.
func (l *BalanceLedger) Get(venue string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mustBalance(venue)
}

// Reduce subtracts amount from the venue balance without a lower bound check.
func (l *BalanceLedger) Reduce(venue string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[venue] = l.mustBalance(venue).Sub(amount)
}

// Snapshot copies the current balances.
func (l *BalanceLedger) Snapshot() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return maps.Clone(l.balances)
}

// Restore replaces the balances with a snapshot taken from this ledger.
func (l *BalanceLedger) Restore(snapshot map[string]decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = maps.Clone(snapshot)
	if l.balances == nil {
		l.balances = make(map[string]decimal.Decimal)
	}
}

// Balances is an alias of Snapshot used by presenters.
func (l *BalanceLedger) Balances() map[string]decimal.Decimal {
	return l.Snapshot()
}

func (l *BalanceLedger) mustBalance(venue string) decimal.Decimal {
	balance, ok := l.balances[venue]
	if !ok {
		logrus.WithField("venue", venue).Panic("venue is not registered in balance ledger")
	}
	return balance
}
