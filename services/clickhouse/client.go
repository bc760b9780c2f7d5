// Package clickhouse stores and serves daily bar history.
package clickhouse

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

// Config locates the bar store.
type Config struct {
	Addr     string
	Database string
	Table    string
	User     string
	Password string
}

// DefaultConfig reads the connection settings from the environment.
func DefaultConfig() Config {
	return Config{
		Addr:     envOr("CH_ADDR", "localhost:9000"),
		Database: envOr("CH_DATABASE", "goldbach"),
		Table:    envOr("CH_TABLE", "daily_bars"),
		User:     envOr("CH_USER", "default"),
		Password: envOr("CH_PASSWORD", ""),
	}
}

// BarRow is one daily candle as stored.
type BarRow struct {
	Symbol string
	Day    time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Client wraps a ClickHouse connection for the bar table.
type Client struct {
	conn clickhouse.Conn
	cfg  Config
	log  *zap.Logger
}

// Open connects, pings and ensures the schema exists.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	c := &Client{conn: conn, cfg: cfg, log: log}
	if err := c.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) ensureSchema(ctx context.Context) error {
	dbDDL := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.cfg.Database)
	if err := c.conn.Exec(ctx, dbDDL); err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	tableDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			day Date,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (symbol, day)
		SETTINGS index_granularity = 8192
	`, c.cfg.Database, c.cfg.Table)
	if err := c.conn.Exec(ctx, tableDDL); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// InsertBars batch inserts rows; ReplacingMergeTree keeps the newest
// version on duplicate (symbol, day) keys.
func (c *Client) InsertBars(ctx context.Context, rows []BarRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s.%s SETTINGS insert_deduplicate=1", c.cfg.Database, c.cfg.Table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	ver := uint64(now.UnixNano())
	for _, r := range rows {
		if err := batch.Append(
			r.Symbol, r.Day,
			r.Open, r.High, r.Low, r.Close, r.Volume,
			now, ver,
		); err != nil {
			return fmt.Errorf("batch append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("batch send: %w", err)
	}
	c.log.Info("inserted bars", zap.Int("rows", len(rows)))
	return nil
}

// QueryBars returns bars for a symbol in [from, to], ascending by day.
// FINAL collapses ReplacingMergeTree duplicates at read time.
func (c *Client) QueryBars(ctx context.Context, symbol string, from, to time.Time) ([]BarRow, error) {
	q := fmt.Sprintf(`
		SELECT symbol, day, open, high, low, close, volume
		FROM %s.%s FINAL
		WHERE symbol = ? AND day >= ? AND day <= ?
		ORDER BY day ASC
	`, c.cfg.Database, c.cfg.Table)

	rows, err := c.conn.Query(ctx, q, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var out []BarRow
	for rows.Next() {
		var r BarRow
		if err := rows.Scan(&r.Symbol, &r.Day, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	return out, nil
}

// LatestClose returns the most recent close for a symbol.
func (c *Client) LatestClose(ctx context.Context, symbol string) (float64, time.Time, error) {
	q := fmt.Sprintf(`
		SELECT day, close
		FROM %s.%s FINAL
		WHERE symbol = ?
		ORDER BY day DESC
		LIMIT 1
	`, c.cfg.Database, c.cfg.Table)

	var day time.Time
	var close float64
	if err := c.conn.QueryRow(ctx, q, symbol).Scan(&day, &close); err != nil {
		return 0, time.Time{}, fmt.Errorf("latest close for %s: %w", symbol, err)
	}
	return close, day, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
