// Package ledger is the authoritative record of each user's simulated cash
// balance and token holdings. Buys and sells are transactional: either the
// position and the cash balance both move, or neither does.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount rejects non-positive spend or quantity inputs.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds rejects a buy that exceeds the cash balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientPosition rejects a sell of more than is held.
	ErrInsufficientPosition = errors.New("insufficient position")
)

// DefaultStartingBalance is the cash every account begins with, in the
// quote currency (USDT).
var DefaultStartingBalance = decimal.NewFromInt(10_000)

// positionEpsilon is the dust threshold: a position at or below it after a
// sell is deleted rather than kept at (near) zero.
var positionEpsilon = decimal.New(1, -9) // 1e-9

// Account is one user's cash record.
type Account struct {
	UserID      string
	CashBalance decimal.Decimal
	CreatedAt   time.Time
}

// Position is a user's holding of one symbol. Quantity is strictly
// positive while the row exists; AvgCost is the volume-weighted average
// purchase price and is untouched by sells.
type Position struct {
	Symbol   string
	Quantity decimal.Decimal
	AvgCost  decimal.Decimal
}

// BuyResult reports the outcome of a successful buy.
type BuyResult struct {
	Quantity    decimal.Decimal // tokens acquired by this buy
	AvgCost     decimal.Decimal // new volume-weighted average cost
	CashBalance decimal.Decimal // balance after the debit
}

// SellResult reports the outcome of a successful sell.
type SellResult struct {
	Proceeds    decimal.Decimal
	RealizedPnL decimal.Decimal // (price - avgCost) * quantity
	CashBalance decimal.Decimal
}

// PositionValue is a position marked to a current price for valuation.
type PositionValue struct {
	Position
	Price         decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Portfolio is the full valuation of one account.
type Portfolio struct {
	CashBalance    decimal.Decimal
	Positions      []PositionValue
	TotalValue     decimal.Decimal
	TotalReturnPct decimal.Decimal
}

// Ledger owns the persistent store. Operations on the same user serialize
// on a per-user mutex so concurrent buys never lose updates; operations on
// different users are independent.
type Ledger struct {
	db              *sql.DB
	startingBalance decimal.Decimal

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// Open creates (or opens) the SQLite ledger at path and ensures the schema.
func Open(path string) (*Ledger, error) {
	return OpenWithBalance(path, DefaultStartingBalance)
}

// OpenWithBalance opens the ledger with a custom starting balance.
func OpenWithBalance(path string, startingBalance decimal.Decimal) (*Ledger, error) {
	// Write transactions grab the write lock up front (_txlock=immediate)
	// so two accounts mutating concurrently queue on the busy timeout
	// instead of deadlocking on a read-to-write upgrade.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}

	return &Ledger{
		db:              db,
		startingBalance: startingBalance,
		users:           make(map[string]*sync.Mutex),
	}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// userLock returns the mutex serializing all mutations for one user.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	return m
}

// EnsureAccount returns the user's account, creating it with the starting
// balance on first reference. Idempotent.
func (l *Ledger) EnsureAccount(userID string) (Account, error) {
	mu := l.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	acct, err := ensureAccountTx(tx, userID, l.startingBalance)
	if err != nil {
		return Account{}, err
	}
	return acct, tx.Commit()
}

// Buy spends `spend` of cash on `symbol` at `price`, updating the position
// quantity and its volume-weighted average cost. The read-modify-write is
// atomic: a rejected or failed buy changes nothing.
func (l *Ledger) Buy(userID, symbol string, spend, price decimal.Decimal) (BuyResult, error) {
	if spend.LessThanOrEqual(decimal.Zero) {
		return BuyResult{}, fmt.Errorf("buy %s: spend %s: %w", symbol, spend, ErrInvalidAmount)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return BuyResult{}, fmt.Errorf("buy %s: price %s: %w", symbol, price, ErrInvalidAmount)
	}

	mu := l.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return BuyResult{}, err
	}
	defer tx.Rollback()

	acct, err := ensureAccountTx(tx, userID, l.startingBalance)
	if err != nil {
		return BuyResult{}, err
	}

	if spend.GreaterThan(acct.CashBalance) {
		return BuyResult{}, fmt.Errorf("buy %s: spend %s exceeds balance %s: %w",
			symbol, spend, acct.CashBalance, ErrInsufficientFunds)
	}

	acquired := spend.Div(price)

	pos, found, err := getPositionTx(tx, userID, symbol)
	if err != nil {
		return BuyResult{}, err
	}

	newQty := acquired
	newAvg := price
	if found {
		newQty = pos.Quantity.Add(acquired)
		// Volume-weighted average: (oldAvg*oldQty + price*acquired) / newQty.
		newAvg = pos.AvgCost.Mul(pos.Quantity).Add(price.Mul(acquired)).Div(newQty)
	}

	if err := upsertPositionTx(tx, userID, symbol, newQty, newAvg); err != nil {
		return BuyResult{}, err
	}

	newBalance := acct.CashBalance.Sub(spend)
	if err := setBalanceTx(tx, userID, newBalance); err != nil {
		return BuyResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return BuyResult{}, err
	}

	return BuyResult{Quantity: acquired, AvgCost: newAvg, CashBalance: newBalance}, nil
}

// Sell disposes of `quantity` of `symbol` at `price`, crediting the
// proceeds to cash. Average cost is unchanged; selling down to dust
// removes the position entirely.
func (l *Ledger) Sell(userID, symbol string, quantity, price decimal.Decimal) (SellResult, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return SellResult{}, fmt.Errorf("sell %s: quantity %s: %w", symbol, quantity, ErrInvalidAmount)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return SellResult{}, fmt.Errorf("sell %s: price %s: %w", symbol, price, ErrInvalidAmount)
	}

	mu := l.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return SellResult{}, err
	}
	defer tx.Rollback()

	acct, err := ensureAccountTx(tx, userID, l.startingBalance)
	if err != nil {
		return SellResult{}, err
	}

	pos, found, err := getPositionTx(tx, userID, symbol)
	if err != nil {
		return SellResult{}, err
	}
	if !found || quantity.GreaterThan(pos.Quantity) {
		held := decimal.Zero
		if found {
			held = pos.Quantity
		}
		return SellResult{}, fmt.Errorf("sell %s: have %s, want %s: %w",
			symbol, held, quantity, ErrInsufficientPosition)
	}

	proceeds := quantity.Mul(price)
	realized := price.Sub(pos.AvgCost).Mul(quantity)
	remaining := pos.Quantity.Sub(quantity)

	if remaining.LessThanOrEqual(positionEpsilon) {
		if err := deletePositionTx(tx, userID, symbol); err != nil {
			return SellResult{}, err
		}
	} else {
		if err := upsertPositionTx(tx, userID, symbol, remaining, pos.AvgCost); err != nil {
			return SellResult{}, err
		}
	}

	newBalance := acct.CashBalance.Add(proceeds)
	if err := setBalanceTx(tx, userID, newBalance); err != nil {
		return SellResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return SellResult{}, err
	}

	return SellResult{Proceeds: proceeds, RealizedPnL: realized, CashBalance: newBalance}, nil
}

// Holdings returns the user's open positions sorted by symbol.
func (l *Ledger) Holdings(userID string) ([]Position, error) {
	rows, err := l.db.Query(
		`SELECT symbol, quantity, avg_cost FROM positions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var symbol, qty, avg string
		if err := rows.Scan(&symbol, &qty, &avg); err != nil {
			return nil, err
		}
		pos, err := parsePosition(symbol, qty, avg)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

// Valuate marks the account to the supplied prices. A symbol missing from
// prices falls back to its average cost, so a partial price outage never
// fails the whole valuation.
func (l *Ledger) Valuate(userID string, prices map[string]decimal.Decimal) (Portfolio, error) {
	acct, err := l.EnsureAccount(userID)
	if err != nil {
		return Portfolio{}, err
	}

	positions, err := l.Holdings(userID)
	if err != nil {
		return Portfolio{}, err
	}

	p := Portfolio{
		CashBalance: acct.CashBalance,
		TotalValue:  acct.CashBalance,
	}

	for _, pos := range positions {
		price, ok := prices[pos.Symbol]
		if !ok {
			price = pos.AvgCost
		}
		marketValue := pos.Quantity.Mul(price)
		costBasis := pos.Quantity.Mul(pos.AvgCost)

		p.Positions = append(p.Positions, PositionValue{
			Position:      pos,
			Price:         price,
			MarketValue:   marketValue,
			UnrealizedPnL: marketValue.Sub(costBasis),
		})
		p.TotalValue = p.TotalValue.Add(marketValue)
	}

	p.TotalReturnPct = p.TotalValue.Div(l.startingBalance).
		Sub(decimal.NewFromInt(1)).
		Mul(decimal.NewFromInt(100))
	return p, nil
}

func ensureAccountTx(tx *sql.Tx, userID string, startingBalance decimal.Decimal) (Account, error) {
	var balance string
	var createdAt time.Time
	err := tx.QueryRow(
		`SELECT cash_balance, created_at FROM accounts WHERE user_id = ?`, userID).
		Scan(&balance, &createdAt)

	switch {
	case err == sql.ErrNoRows:
		now := time.Now().UTC()
		if _, err := tx.Exec(
			`INSERT INTO accounts (user_id, cash_balance, created_at) VALUES (?, ?, ?)`,
			userID, startingBalance.String(), now); err != nil {
			return Account{}, err
		}
		return Account{UserID: userID, CashBalance: startingBalance, CreatedAt: now}, nil

	case err != nil:
		return Account{}, err
	}

	cash, err := decimal.NewFromString(balance)
	if err != nil {
		return Account{}, fmt.Errorf("corrupt cash balance for %s: %w", userID, err)
	}
	return Account{UserID: userID, CashBalance: cash, CreatedAt: createdAt}, nil
}

func getPositionTx(tx *sql.Tx, userID, symbol string) (Position, bool, error) {
	var qty, avg string
	err := tx.QueryRow(
		`SELECT quantity, avg_cost FROM positions WHERE user_id = ? AND symbol = ?`,
		userID, symbol).Scan(&qty, &avg)
	if err == sql.ErrNoRows {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, err
	}
	pos, err := parsePosition(symbol, qty, avg)
	if err != nil {
		return Position{}, false, err
	}
	return pos, true, nil
}

func upsertPositionTx(tx *sql.Tx, userID, symbol string, qty, avg decimal.Decimal) error {
	_, err := tx.Exec(`
		INSERT INTO positions (user_id, symbol, quantity, avg_cost)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, symbol)
		DO UPDATE SET quantity = excluded.quantity, avg_cost = excluded.avg_cost`,
		userID, symbol, qty.String(), avg.String())
	return err
}

func deletePositionTx(tx *sql.Tx, userID, symbol string) error {
	_, err := tx.Exec(
		`DELETE FROM positions WHERE user_id = ? AND symbol = ?`, userID, symbol)
	return err
}

func setBalanceTx(tx *sql.Tx, userID string, balance decimal.Decimal) error {
	_, err := tx.Exec(
		`UPDATE accounts SET cash_balance = ? WHERE user_id = ?`,
		balance.String(), userID)
	return err
}

func parsePosition(symbol, qty, avg string) (Position, error) {
	quantity, err := decimal.NewFromString(qty)
	if err != nil {
		return Position{}, fmt.Errorf("corrupt quantity for %s: %w", symbol, err)
	}
	avgCost, err := decimal.NewFromString(avg)
	if err != nil {
		return Position{}, fmt.Errorf("corrupt avg cost for %s: %w", symbol, err)
	}
	return Position{Symbol: symbol, Quantity: quantity, AvgCost: avgCost}, nil
}
