package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hama-scanner/internal/model"
)

// BarStore reads and writes OHLCV bars keyed by (symbol, timeframe, ts).
// It satisfies model.BarSource.
type BarStore struct {
	s *Store
}

func NewBarStore(s *Store) *BarStore {
	return &BarStore{s: s}
}

// Fetch returns the newest limit bars, ascending by timestamp. An unknown
// symbol returns an empty slice, which the engine reports as insufficient data.
func (b *BarStore) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]model.Bar, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := b.s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND timeframe = ?
		ORDER BY ts DESC
		LIMIT ?
	`, strings.ToUpper(symbol), timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var bar model.Bar
		var vol sql.NullFloat64
		if err := rows.Scan(&bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &vol); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		bar.Volume = vol.Float64
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Selected newest first; the engine wants oldest first.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// WriteBars upserts bars in a single transaction.
func (b *BarStore) WriteBars(ctx context.Context, symbol, timeframe string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := b.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	sym := strings.ToUpper(symbol)
	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx, sym, timeframe, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s@%d: %w", sym, bar.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	b.s.log.Debug().Str("symbol", sym).Str("timeframe", timeframe).Int("count", len(bars)).Msg("bars committed")
	return nil
}

// LastTimestamp returns the newest stored bar time in ms, or 0 if none.
func (b *BarStore) LastTimestamp(ctx context.Context, symbol, timeframe string) (int64, error) {
	var ts sql.NullInt64
	err := b.s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM bars WHERE symbol = ? AND timeframe = ?`,
		strings.ToUpper(symbol), timeframe,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Symbols lists every symbol with bars in timeframe.
func (b *BarStore) Symbols(ctx context.Context, timeframe string) ([]string, error) {
	rows, err := b.s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM bars WHERE timeframe = ? ORDER BY symbol`, timeframe)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
