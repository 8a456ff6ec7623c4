package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"focuskit/internal/modules/stats/domain"
	statsout "focuskit/internal/modules/stats/port/out"

	_ "modernc.org/sqlite"
)

type SQLiteStatStore struct {
	db *sql.DB
}

func NewSQLiteStatStore(dbPath string) (*SQLiteStatStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &SQLiteStatStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStatStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS daily_stats (
  date_key TEXT PRIMARY KEY,
  completed_count INTEGER NOT NULL DEFAULT 0,
  partial_count INTEGER NOT NULL DEFAULT 0,
  focus_seconds INTEGER NOT NULL DEFAULT 0,
  target INTEGER NOT NULL,
  target_type TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS credits (
  session_id TEXT PRIMARY KEY,
  date_key TEXT NOT NULL,
  kind TEXT NOT NULL,
  seconds INTEGER NOT NULL,
  credited_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create stats tables: %w", err)
	}
	return nil
}

func (s *SQLiteStatStore) Credit(ctx context.Context, credit domain.Credit, target domain.Target) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin credit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if credit.SessionID != "" {
		result, err := tx.ExecContext(ctx, `
INSERT INTO credits (session_id, date_key, kind, seconds, credited_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO NOTHING;
`, credit.SessionID, credit.DateKey, string(credit.Kind), credit.Seconds, credit.CreditedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return false, fmt.Errorf("insert credit: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("credit rows affected: %w", err)
		}
		if affected == 0 {
			return false, nil
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO daily_stats (date_key, target, target_type) VALUES (?, ?, ?)
ON CONFLICT(date_key) DO NOTHING;
`, credit.DateKey, target.Value, string(target.Type)); err != nil {
		return false, fmt.Errorf("create day: %w", err)
	}
	completed, partial := 0, 0
	if credit.Kind == domain.CreditCompleted {
		completed = 1
	} else {
		partial = 1
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE daily_stats SET
  completed_count = completed_count + ?,
  partial_count = partial_count + ?,
  focus_seconds = focus_seconds + ?
WHERE date_key = ?;
`, completed, partial, credit.Seconds, credit.DateKey); err != nil {
		return false, fmt.Errorf("update day: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit credit: %w", err)
	}
	return true, nil
}

const selectDay = `SELECT date_key, completed_count, partial_count, focus_seconds, target, target_type FROM daily_stats`

func (s *SQLiteStatStore) Get(ctx context.Context, dateKey string) (domain.DailyStat, bool, error) {
	stat, err := scanDay(s.db.QueryRowContext(ctx, selectDay+` WHERE date_key = ?`, dateKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DailyStat{}, false, nil
		}
		return domain.DailyStat{}, false, fmt.Errorf("select day: %w", err)
	}
	return stat, true, nil
}

func (s *SQLiteStatStore) List(ctx context.Context) ([]domain.DailyStat, error) {
	rows, err := s.db.QueryContext(ctx, selectDay+` ORDER BY date_key`)
	if err != nil {
		return nil, fmt.Errorf("select days: %w", err)
	}
	defer rows.Close()
	out := []domain.DailyStat{}
	for rows.Next() {
		stat, err := scanDay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate days: %w", err)
	}
	return out, nil
}

func (s *SQLiteStatStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDay(row scanner) (domain.DailyStat, error) {
	var (
		stat       domain.DailyStat
		targetType string
	)
	if err := row.Scan(&stat.DateKey, &stat.CompletedCount, &stat.PartialCount, &stat.FocusSeconds, &stat.Target.Value, &targetType); err != nil {
		return domain.DailyStat{}, err
	}
	stat.Target.Type = domain.TargetType(targetType)
	return stat, nil
}

var _ statsout.StatStore = (*SQLiteStatStore)(nil)
