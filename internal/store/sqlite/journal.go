package sqlite

import (
	"context"
	"fmt"
	"time"

	"hama-scanner/internal/model"
)

const defaultJournalKeep = 100000

// Journal is a signal sink that appends every signal to the signals table.
type Journal struct {
	s    *Store
	keep int
}

// NewJournal creates the sink. keep bounds the table size; <= 0 uses the default.
func NewJournal(s *Store, keep int) *Journal {
	if keep <= 0 {
		keep = defaultJournalKeep
	}
	return &Journal{s: s, keep: keep}
}

func (j *Journal) Name() string { return "sqlite" }

// Notify inserts sig. Re-delivery of the same ID is ignored.
func (j *Journal) Notify(ctx context.Context, sig model.Signal) error {
	_, err := j.s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO signals (id, symbol, market_type, direction, price, candle_close, ma_value, bar_ts, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.ID, sig.Symbol, string(sig.MarketType), string(sig.Direction), sig.Price, sig.CandleClose, sig.MAValue, sig.Timestamp.UnixMilli(), sig.Description)
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// Prune keeps only the newest keep signals.
func (j *Journal) Prune(ctx context.Context) (int64, error) {
	res, err := j.s.db.ExecContext(ctx,
		`DELETE FROM signals WHERE id NOT IN (SELECT id FROM signals ORDER BY bar_ts DESC, created_at DESC LIMIT ?)`, j.keep)
	if err != nil {
		return 0, fmt.Errorf("sqlite prune signals: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		j.s.log.Info().Int64("deleted", n).Msg("pruned signal journal")
	}
	return n, nil
}

// Recent returns up to limit signals, newest first. An empty symbol means all.
func (j *Journal) Recent(ctx context.Context, symbol string, limit int) ([]model.Signal, error) {
	q := `SELECT id, symbol, market_type, direction, price, candle_close, ma_value, bar_ts, description FROM signals`
	args := []any{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY bar_ts DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var mt, dir string
		var ts int64
		if err := rows.Scan(&sig.ID, &sig.Symbol, &mt, &dir, &sig.Price, &sig.CandleClose, &sig.MAValue, &ts, &sig.Description); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		sig.MarketType = model.MarketType(mt)
		sig.Direction = model.Direction(dir)
		sig.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, sig)
	}
	return out, rows.Err()
}
