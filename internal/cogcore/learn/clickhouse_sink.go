package learn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"

	"manifold/internal/cogcore/reason"
)

// ClickHouseSink appends every provider call observation to a ClickHouse
// table for longitudinal analysis, independent of ProviderTracker's
// bounded in-memory ring buffer. It implements CallSink.
type ClickHouseSink struct {
	conn    clickhouse.Conn
	table   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewClickHouseSink opens a connection to dsn and ensures the target table
// exists. An empty dsn is not an error: it signals "sink disabled" to
// callers that build one from optional config.
func NewClickHouseSink(ctx context.Context, dsn, database, table string, log zerolog.Logger) (*ClickHouseSink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	if table == "" {
		table = "cogcore_provider_calls"
	}

	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if database != "" {
		opts.Auth.Database = database
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  recorded_at DateTime64(3),
  provider String,
  tier String,
  success UInt8,
  latency_ms Float64,
  cost_usd Float64,
  predicted_confidence Float64
) ENGINE = MergeTree ORDER BY (provider, tier, recorded_at)
`, table)
	if err := conn.Exec(ctxTimeout, schema); err != nil {
		return nil, fmt.Errorf("ensure clickhouse table: %w", err)
	}

	return &ClickHouseSink{conn: conn, table: table, timeout: 5 * time.Second, log: log}, nil
}

// Record inserts one call observation. Failures are logged and swallowed:
// ClickHouse being unreachable must never fail the reasoning pipeline that
// produced the observation.
func (s *ClickHouseSink) Record(obs reason.CallObservation, success bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	successFlag := uint8(0)
	if success {
		successFlag = 1
	}
	query := fmt.Sprintf(`INSERT INTO %s (recorded_at, provider, tier, success, latency_ms, cost_usd, predicted_confidence) VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table)
	if err := s.conn.Exec(ctx, query,
		time.Now().UTC(),
		obs.Provider,
		obs.Tier,
		successFlag,
		float64(obs.Latency.Milliseconds()),
		obs.CostUSD,
		obs.PredictedConfidence,
	); err != nil {
		s.log.Warn().Err(err).Msg("clickhouse provider call insert failed")
	}
}
