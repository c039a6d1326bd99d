package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/maskline/numsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS numbers (
	id              TEXT PRIMARY KEY,
	number          TEXT NOT NULL UNIQUE,
	country_code    TEXT NOT NULL DEFAULT '',
	enabled         INTEGER NOT NULL DEFAULT 1,
	texts_forwarded INTEGER NOT NULL DEFAULT 0,
	texts_blocked   INTEGER NOT NULL DEFAULT 0,
	calls_forwarded INTEGER NOT NULL DEFAULT 0,
	calls_blocked   INTEGER NOT NULL DEFAULT 0,
	service_sid     TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS messaging_services (
	sid           TEXT PRIMARY KEY,
	friendly_name TEXT NOT NULL,
	use_case      TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS check_runs (
	id         TEXT PRIMARY KEY,
	task       TEXT NOT NULL,
	issues     INTEGER NOT NULL,
	cleaned    INTEGER NOT NULL DEFAULT 0,
	counts     TEXT NOT NULL,
	report     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_numbers_country ON numbers(country_code);
CREATE INDEX IF NOT EXISTS idx_check_runs_task ON check_runs(task);
CREATE INDEX IF NOT EXISTS idx_check_runs_created_at ON check_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListNumbers(ctx context.Context) ([]model.Number, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, number, country_code, enabled, texts_forwarded, texts_blocked,
		        calls_forwarded, calls_blocked, service_sid, created_at
		 FROM numbers ORDER BY number`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list numbers")
	}
	defer rows.Close()

	var numbers []model.Number
	for rows.Next() {
		var n model.Number
		if err := rows.Scan(&n.ID, &n.Number, &n.CountryCode, &n.Enabled,
			&n.TextsForwarded, &n.TextsBlocked, &n.CallsForwarded, &n.CallsBlocked,
			&n.ServiceSID, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan number")
		}
		numbers = append(numbers, n)
	}
	return numbers, eris.Wrap(rows.Err(), "sqlite: list numbers")
}

func (s *SQLiteStore) CreateNumber(ctx context.Context, n model.Number) (*model.Number, error) {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO numbers (id, number, country_code, enabled, texts_forwarded,
		   texts_blocked, calls_forwarded, calls_blocked, service_sid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Number, n.CountryCode, n.Enabled, n.TextsForwarded,
		n.TextsBlocked, n.CallsForwarded, n.CallsBlocked, n.ServiceSID, n.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create number %s", n.Number)
	}
	return &n, nil
}

func (s *SQLiteStore) BulkInsertNumbers(ctx context.Context, numbers []model.Number) (int64, error) {
	if len(numbers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO numbers (id, number, country_code, enabled, texts_forwarded,
		   texts_blocked, calls_forwarded, calls_blocked, service_sid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare bulk insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, n := range numbers {
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), n.Number, n.CountryCode,
			n.Enabled, n.TextsForwarded, n.TextsBlocked, n.CallsForwarded,
			n.CallsBlocked, n.ServiceSID, now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk insert number %s", n.Number)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit bulk insert")
	}
	return int64(len(numbers)), nil
}

func (s *SQLiteStore) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sid, friendly_name, use_case, created_at FROM messaging_services ORDER BY sid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list services")
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.SID, &svc.FriendlyName, &svc.UseCase, &svc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan service")
		}
		services = append(services, svc)
	}
	return services, eris.Wrap(rows.Err(), "sqlite: list services")
}

func (s *SQLiteStore) CreateService(ctx context.Context, svc model.Service) error {
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messaging_services (sid, friendly_name, use_case, created_at)
		 VALUES (?, ?, ?, ?)`,
		svc.SID, svc.FriendlyName, svc.UseCase, svc.CreatedAt)
	return eris.Wrapf(err, "sqlite: create service %s", svc.SID)
}

func (s *SQLiteStore) RecordCheckRun(ctx context.Context, run model.CheckRun) (*model.CheckRun, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal counts")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO check_runs (id, task, issues, cleaned, counts, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Task, run.Issues, run.Cleaned, string(countsJSON), run.Report, run.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: record check run for %s", run.Task)
	}
	return &run, nil
}

func (s *SQLiteStore) ListCheckRuns(ctx context.Context, limit int) ([]model.CheckRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, issues, cleaned, counts, report, created_at
		 FROM check_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list check runs")
	}
	defer rows.Close()

	var runs []model.CheckRun
	for rows.Next() {
		var run model.CheckRun
		var countsJSON string
		if err := rows.Scan(&run.ID, &run.Task, &run.Issues, &run.Cleaned,
			&countsJSON, &run.Report, &run.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan check run")
		}
		if err := json.Unmarshal([]byte(countsJSON), &run.Counts); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal counts for run %s", run.ID)
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list check runs")
}
