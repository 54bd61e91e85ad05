// Package alerts tracks one-shot directional price triggers and the
// recurring loop that matches them against live prices.
package alerts

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/pkg/id"
)

// Direction says which way the price must move to fire the rule.
type Direction string

const (
	DirectionAbove Direction = "ABOVE"
	DirectionBelow Direction = "BELOW"
)

// Rule is one registered price alert. Immutable once created; it leaves
// the book either by triggering or by user cancellation.
type Rule struct {
	ID           string
	UserID       string
	NotifyTarget string
	Symbol       string
	TargetPrice  decimal.Decimal
	Direction    Direction
	CreatedAt    time.Time
}

// Triggered pairs a fired rule with the price that fired it.
type Triggered struct {
	Rule  Rule
	Price decimal.Decimal
}

// LookupFunc resolves one symbol to its latest price. An error marks the
// price unavailable for this scan.
type LookupFunc func(symbol string) (decimal.Decimal, error)

// Book is the working set of active alerts. It lives in memory only:
// pending alerts do not survive a restart and must be re-registered.
type Book struct {
	mu    sync.Mutex
	rules []Rule // creation order
}

func NewBook() *Book {
	return &Book{}
}

// Add registers a one-shot alert. The direction is derived from where the
// target sits relative to the current price, so any target produces a
// trigger that is not already satisfied.
func (b *Book) Add(userID, notifyTarget, symbol string, targetPrice, currentPrice decimal.Decimal) Rule {
	direction := DirectionBelow
	if targetPrice.GreaterThan(currentPrice) {
		direction = DirectionAbove
	}

	rule := Rule{
		ID:           id.New(),
		UserID:       userID,
		NotifyTarget: notifyTarget,
		Symbol:       symbol,
		TargetPrice:  targetPrice,
		Direction:    direction,
		CreatedAt:    time.Now().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = append(b.rules, rule)
	return rule
}

// ListByUser returns the user's active rules in creation order.
func (b *Book) ListByUser(userID string) []Rule {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Rule
	for _, r := range b.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// RemoveByUser cancels all of the user's rules and reports how many.
func (b *Book) RemoveByUser(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.rules[:0]
	removed := 0
	for _, r := range b.rules {
		if r.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	b.rules = kept
	return removed
}

// Len reports the number of active rules.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rules)
}

// Scan looks up each distinct symbol once, partitions the rules, and
// removes the triggered ones from the book. Lookups run without the book
// lock held, so a slow price source never blocks Add/List/Remove.
//
// A rule whose price is unavailable stays pending. ABOVE fires at
// price >= target, BELOW at price <= target; the boundary counts. Removal
// happens before the caller dispatches any notification, so a rule cannot
// trigger twice across consecutive scans.
func (b *Book) Scan(lookup LookupFunc) (triggered []Triggered, pending []Rule) {
	b.mu.Lock()
	symbols := make(map[string]struct{}, len(b.rules))
	for _, r := range b.rules {
		symbols[r.Symbol] = struct{}{}
	}
	b.mu.Unlock()

	// One lookup per distinct symbol, never one per rule.
	prices := make(map[string]decimal.Decimal, len(symbols))
	for symbol := range symbols {
		price, err := lookup(symbol)
		if err != nil {
			continue
		}
		prices[symbol] = price
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.rules[:0]
	for _, r := range b.rules {
		price, ok := prices[r.Symbol]
		if !ok || !r.hit(price) {
			kept = append(kept, r)
			pending = append(pending, r)
			continue
		}
		triggered = append(triggered, Triggered{Rule: r, Price: price})
	}
	b.rules = kept
	return triggered, pending
}

func (r Rule) hit(price decimal.Decimal) bool {
	if r.Direction == DirectionAbove {
		return price.GreaterThanOrEqual(r.TargetPrice)
	}
	return price.LessThanOrEqual(r.TargetPrice)
}
