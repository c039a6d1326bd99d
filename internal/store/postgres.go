package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/maskline/numsync/internal/db"
	"github.com/maskline/numsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS numbers (
	id              UUID PRIMARY KEY,
	number          TEXT NOT NULL UNIQUE,
	country_code    TEXT NOT NULL DEFAULT '',
	enabled         BOOLEAN NOT NULL DEFAULT true,
	texts_forwarded INTEGER NOT NULL DEFAULT 0,
	texts_blocked   INTEGER NOT NULL DEFAULT 0,
	calls_forwarded INTEGER NOT NULL DEFAULT 0,
	calls_blocked   INTEGER NOT NULL DEFAULT 0,
	service_sid     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messaging_services (
	sid           TEXT PRIMARY KEY,
	friendly_name TEXT NOT NULL,
	use_case      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS check_runs (
	id         UUID PRIMARY KEY,
	task       TEXT NOT NULL,
	issues     INTEGER NOT NULL,
	cleaned    INTEGER NOT NULL DEFAULT 0,
	counts     JSONB NOT NULL,
	report     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_numbers_country ON numbers(country_code);
CREATE INDEX IF NOT EXISTS idx_check_runs_task ON check_runs(task);
CREATE INDEX IF NOT EXISTS idx_check_runs_created_at ON check_runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ListNumbers(ctx context.Context) ([]model.Number, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, number, country_code, enabled, texts_forwarded, texts_blocked,
		        calls_forwarded, calls_blocked, service_sid, created_at
		 FROM numbers ORDER BY number`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list numbers")
	}
	defer rows.Close()

	var numbers []model.Number
	for rows.Next() {
		var n model.Number
		if err := rows.Scan(&n.ID, &n.Number, &n.CountryCode, &n.Enabled,
			&n.TextsForwarded, &n.TextsBlocked, &n.CallsForwarded, &n.CallsBlocked,
			&n.ServiceSID, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan number")
		}
		numbers = append(numbers, n)
	}
	return numbers, eris.Wrap(rows.Err(), "postgres: list numbers")
}

func (s *PostgresStore) CreateNumber(ctx context.Context, n model.Number) (*model.Number, error) {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO numbers (id, number, country_code, enabled, texts_forwarded,
		   texts_blocked, calls_forwarded, calls_blocked, service_sid, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.Number, n.CountryCode, n.Enabled, n.TextsForwarded,
		n.TextsBlocked, n.CallsForwarded, n.CallsBlocked, n.ServiceSID, n.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create number %s", n.Number)
	}
	return &n, nil
}

// BulkInsertNumbers loads numbers via the COPY protocol.
func (s *PostgresStore) BulkInsertNumbers(ctx context.Context, numbers []model.Number) (int64, error) {
	if len(numbers) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(numbers))
	for _, n := range numbers {
		rows = append(rows, []any{
			uuid.New().String(), n.Number, n.CountryCode, n.Enabled,
			n.TextsForwarded, n.TextsBlocked, n.CallsForwarded, n.CallsBlocked,
			n.ServiceSID, now,
		})
	}

	columns := []string{"id", "number", "country_code", "enabled", "texts_forwarded",
		"texts_blocked", "calls_forwarded", "calls_blocked", "service_sid", "created_at"}
	n, err := db.CopyFrom(ctx, s.pool, "numbers", columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk insert numbers")
	}
	return n, nil
}

func (s *PostgresStore) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sid, friendly_name, use_case, created_at FROM messaging_services ORDER BY sid`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list services")
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.SID, &svc.FriendlyName, &svc.UseCase, &svc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan service")
		}
		services = append(services, svc)
	}
	return services, eris.Wrap(rows.Err(), "postgres: list services")
}

func (s *PostgresStore) CreateService(ctx context.Context, svc model.Service) error {
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messaging_services (sid, friendly_name, use_case, created_at)
		 VALUES ($1, $2, $3, $4)`,
		svc.SID, svc.FriendlyName, svc.UseCase, svc.CreatedAt)
	return eris.Wrapf(err, "postgres: create service %s", svc.SID)
}

func (s *PostgresStore) RecordCheckRun(ctx context.Context, run model.CheckRun) (*model.CheckRun, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal counts")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO check_runs (id, task, issues, cleaned, counts, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Task, run.Issues, run.Cleaned, countsJSON, run.Report, run.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: record check run for %s", run.Task)
	}
	return &run, nil
}

func (s *PostgresStore) ListCheckRuns(ctx context.Context, limit int) ([]model.CheckRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, task, issues, cleaned, counts, report, created_at
		 FROM check_runs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list check runs")
	}
	defer rows.Close()

	var runs []model.CheckRun
	for rows.Next() {
		var run model.CheckRun
		var countsJSON []byte
		if err := rows.Scan(&run.ID, &run.Task, &run.Issues, &run.Cleaned,
			&countsJSON, &run.Report, &run.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan check run")
		}
		if err := json.Unmarshal(countsJSON, &run.Counts); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal counts for run %s", run.ID)
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list check runs")
}
