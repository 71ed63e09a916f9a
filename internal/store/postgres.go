package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-pipeline/internal/db"
	"github.com/sells-group/lead-pipeline/internal/model"
)

// PostgresStore implements LeadStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
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
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                  TEXT PRIMARY KEY,
	source              TEXT NOT NULL DEFAULT '',
	lead_type           TEXT NOT NULL,
	title               VARCHAR(500) NOT NULL,
	description         VARCHAR(5000) NOT NULL DEFAULT '',
	organization_name   VARCHAR(255) NOT NULL DEFAULT '',
	website             TEXT NOT NULL DEFAULT '',
	phone               VARCHAR(50) NOT NULL DEFAULT '',
	email               TEXT NOT NULL DEFAULT '',
	city                VARCHAR(100) NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	market_date         TIMESTAMPTZ,
	budget              DOUBLE PRECISION,
	market_url          TEXT NOT NULL DEFAULT '',
	source_url          TEXT NOT NULL DEFAULT '',
	keywords            JSONB NOT NULL DEFAULT '[]',
	raw_data            JSONB NOT NULL DEFAULT '{}',
	project_type        TEXT NOT NULL DEFAULT '',
	sector              TEXT NOT NULL DEFAULT '',
	company_size        TEXT NOT NULL DEFAULT '',
	score               INTEGER NOT NULL DEFAULT 0 CHECK (score BETWEEN 0 AND 100),
	temperature         TEXT NOT NULL DEFAULT 'cold',
	score_justification TEXT NOT NULL DEFAULT '',
	is_contacted        BOOLEAN NOT NULL DEFAULT false,
	is_converted        BOOLEAN NOT NULL DEFAULT false,
	notes               TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_analyzed_at    TIMESTAMPTZ,
	title_key           TEXT NOT NULL,
	org_key             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_source_url ON leads(source_url) WHERE source_url <> '';
CREATE INDEX IF NOT EXISTS idx_leads_identity ON leads(title_key, org_key);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_temperature ON leads(temperature);
CREATE INDEX IF NOT EXISTS idx_leads_country ON leads(country);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FindBySourceURL(ctx context.Context, url string) (*model.Lead, error) {
	if url == "" {
		return nil, nil
	}
	lead, err := s.queryOne(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE source_url = $1 ORDER BY created_at LIMIT 1`, url)
	return lead, eris.Wrap(err, "postgres: find lead by source url")
}

func (s *PostgresStore) FindByTitleOrg(ctx context.Context, title, organization string) (*model.Lead, error) {
	lead, err := s.queryOne(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE title_key = $1 AND org_key = $2 ORDER BY created_at LIMIT 1`,
		identityKey(title), identityKey(organization))
	return lead, eris.Wrap(err, "postgres: find lead by title and organization")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := s.queryOne(ctx, `SELECT `+leadColumnList+` FROM leads WHERE id = $1`, id)
	return lead, eris.Wrapf(err, "postgres: get lead %s", id)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*model.Lead, error) {
	var sc leadScan
	err := s.pool.QueryRow(ctx, query, args...).Scan(sc.dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sc.finish()
}

func (s *PostgresStore) Insert(ctx context.Context, lead *model.Lead) error {
	stampInsert(lead, uuid.NewString)
	args, err := writeArgs(lead)
	if err != nil {
		return eris.Wrap(err, "postgres: insert lead")
	}
	_, err = s.pool.Exec(ctx, insertSQL(dollar), args...)
	return eris.Wrap(err, "postgres: insert lead")
}

func (s *PostgresStore) Update(ctx context.Context, lead *model.Lead) error {
	args, err := updateArgs(lead)
	if err != nil {
		return eris.Wrap(err, "postgres: update lead")
	}
	tag, err := s.pool.Exec(ctx, updateSQL(dollar), args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return errNotFound(lead.ID)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query, args := listSQL(filter, dollar)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var sc leadScan
		if err := rows.Scan(sc.dest()...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		lead, err := sc.finish()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: decode lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}
