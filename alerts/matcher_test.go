package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"papertrade/market"
)

// fakeSource serves canned prices and counts lookups.
type fakeSource struct {
	mu     sync.Mutex
	prices map[string]string
	calls  int
}

func (f *fakeSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, market.ErrUnavailable
	}
	return d(p), nil
}

func (f *fakeSource) Candles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return nil, market.ErrUnavailable
}

// fakeSink records deliveries and can fail selected rule IDs.
type fakeSink struct {
	mu       sync.Mutex
	failIDs  map[string]bool
	notified []Triggered
}

func (f *fakeSink) Notify(ctx context.Context, rule Rule, price decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[rule.ID] {
		return errors.New("sink down")
	}
	f.notified = append(f.notified, Triggered{Rule: rule, Price: price})
	return nil
}

func TestRunOnceDispatchesTriggered(t *testing.T) {
	t.Parallel()

	book := NewBook()
	rule := book.Add("u1", "chan-1", "BNB/USDT", d("700"), d("650"))

	src := &fakeSource{prices: map[string]string{"BNB/USDT": "705"}}
	sink := &fakeSink{}
	m := NewMatcher(book, src, sink, zap.NewNop())

	m.RunOnce(context.Background())

	require.Len(t, sink.notified, 1)
	assert.Equal(t, rule.ID, sink.notified[0].Rule.ID)
	assert.True(t, sink.notified[0].Price.Equal(d("705")))
	assert.Equal(t, 0, book.Len())

	// Second cycle: nothing left, not even a price lookup.
	before := src.calls
	m.RunOnce(context.Background())
	assert.Equal(t, before, src.calls)
	assert.Empty(t, sink.notified[1:])
}

func TestRunOnceSinkFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	book := NewBook()
	bad := book.Add("u1", "chan-1", "BNB/USDT", d("700"), d("650"))
	good := book.Add("u2", "chan-2", "BNB/USDT", d("700"), d("650"))

	src := &fakeSource{prices: map[string]string{"BNB/USDT": "710"}}
	sink := &fakeSink{failIDs: map[string]bool{bad.ID: true}}
	m := NewMatcher(book, src, sink, zap.NewNop())

	m.RunOnce(context.Background())

	// The failed delivery is dropped, the other goes through, and neither
	// rule is back in the book.
	require.Len(t, sink.notified, 1)
	assert.Equal(t, good.ID, sink.notified[0].Rule.ID)
	assert.Equal(t, 0, book.Len())

	m.RunOnce(context.Background())
	assert.Len(t, sink.notified, 1)
}

func TestRunOncePriceOutageLeavesRulesPending(t *testing.T) {
	t.Parallel()

	book := NewBook()
	book.Add("u1", "chan-1", "BNB/USDT", d("700"), d("650"))

	src := &fakeSource{prices: map[string]string{}} // every lookup fails
	sink := &fakeSink{}
	m := NewMatcher(book, src, sink, zap.NewNop())

	m.RunOnce(context.Background())

	assert.Empty(t, sink.notified)
	assert.Equal(t, 1, book.Len())

	// Prices come back; the rule fires on the next cycle.
	src.mu.Lock()
	src.prices["BNB/USDT"] = "700"
	src.mu.Unlock()

	m.RunOnce(context.Background())
	assert.Len(t, sink.notified, 1)
	assert.Equal(t, 0, book.Len())
}
