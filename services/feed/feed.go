// Package feed serves current and historical prices to the rest of
// the system.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldbach-backtester/services/backtest"
	ch "goldbach-backtester/services/clickhouse"
)

// Quote is the latest known price of a symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// Provider supplies prices. Implementations must be safe for
// concurrent use.
type Provider interface {
	LatestPrice(ctx context.Context, symbol string) (Quote, error)
	DailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]backtest.Bar, error)
}

// ClickHouseProvider reads prices from the bar store.
type ClickHouseProvider struct {
	client *ch.Client
}

func NewClickHouseProvider(client *ch.Client) *ClickHouseProvider {
	return &ClickHouseProvider{client: client}
}

func (p *ClickHouseProvider) LatestPrice(ctx context.Context, symbol string) (Quote, error) {
	price, day, err := p.client.LatestClose(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Symbol: symbol, Price: price, AsOf: day}, nil
}

func (p *ClickHouseProvider) DailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]backtest.Bar, error) {
	rows, err := p.client.QueryBars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	bars := make([]backtest.Bar, len(rows))
	for i, r := range rows {
		bars[i] = backtest.Bar{
			Time:   r.Day,
			Open:   decimal.NewFromFloat(r.Open),
			High:   decimal.NewFromFloat(r.High),
			Low:    decimal.NewFromFloat(r.Low),
			Close:  decimal.NewFromFloat(r.Close),
			Volume: decimal.NewFromFloat(r.Volume),
		}
	}
	return bars, nil
}

// Manager polls a provider on an interval and fans quotes out to
// subscribers.
type Manager struct {
	provider Provider
	interval time.Duration
	log      *zap.Logger

	mu      sync.RWMutex
	symbols []string
	latest  map[string]Quote
	subs    []func(Quote)
}

// NewManager creates a feed manager polling the given symbols.
func NewManager(provider Provider, symbols []string, interval time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Manager{
		provider: provider,
		interval: interval,
		log:      log,
		symbols:  append([]string(nil), symbols...),
		latest:   map[string]Quote{},
	}
}

// Subscribe registers a callback invoked on every refreshed quote.
// Callbacks run on the refresh goroutine and must return quickly.
func (m *Manager) Subscribe(fn func(Quote)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Latest returns the cached quote for a symbol.
func (m *Manager) Latest(symbol string) (Quote, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.latest[symbol]
	return q, ok
}

// Run refreshes quotes until the context is canceled. One failing
// symbol does not stop the others.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *Manager) refresh(ctx context.Context) {
	m.mu.RLock()
	symbols := append([]string(nil), m.symbols...)
	subs := append(([]func(Quote))(nil), m.subs...)
	m.mu.RUnlock()

	for _, sym := range symbols {
		q, err := m.provider.LatestPrice(ctx, sym)
		if err != nil {
			m.log.Warn("quote refresh failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		m.mu.Lock()
		m.latest[sym] = q
		m.mu.Unlock()

		for _, fn := range subs {
			fn(q)
		}
	}
}

// History is a convenience wrapper that validates the range before
// hitting the provider.
func (m *Manager) History(ctx context.Context, symbol string, from, to time.Time) ([]backtest.Bar, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("history range inverted: %s after %s", from, to)
	}
	return m.provider.DailyHistory(ctx, symbol, from, to)
}
