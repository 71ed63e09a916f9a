package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-pipeline/internal/model"
)

// SQLiteStore implements LeadStore using modernc.org/sqlite.
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
CREATE TABLE IF NOT EXISTS leads (
	id                  TEXT PRIMARY KEY,
	source              TEXT NOT NULL DEFAULT '',
	lead_type           TEXT NOT NULL,
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	organization_name   TEXT NOT NULL DEFAULT '',
	website             TEXT NOT NULL DEFAULT '',
	phone               TEXT NOT NULL DEFAULT '',
	email               TEXT NOT NULL DEFAULT '',
	city                TEXT NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	market_date         DATETIME,
	budget              REAL,
	market_url          TEXT NOT NULL DEFAULT '',
	source_url          TEXT NOT NULL DEFAULT '',
	keywords            TEXT NOT NULL DEFAULT '[]',
	raw_data            TEXT NOT NULL DEFAULT '{}',
	project_type        TEXT NOT NULL DEFAULT '',
	sector              TEXT NOT NULL DEFAULT '',
	company_size        TEXT NOT NULL DEFAULT '',
	score               INTEGER NOT NULL DEFAULT 0,
	temperature         TEXT NOT NULL DEFAULT 'cold',
	score_justification TEXT NOT NULL DEFAULT '',
	is_contacted        BOOLEAN NOT NULL DEFAULT 0,
	is_converted        BOOLEAN NOT NULL DEFAULT 0,
	notes               TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL,
	last_analyzed_at    DATETIME,
	title_key           TEXT NOT NULL,
	org_key             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_source_url ON leads(source_url) WHERE source_url <> '';
CREATE INDEX IF NOT EXISTS idx_leads_identity ON leads(title_key, org_key);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindBySourceURL(ctx context.Context, url string) (*model.Lead, error) {
	if url == "" {
		return nil, nil
	}
	lead, err := s.queryOne(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE source_url = ? ORDER BY created_at LIMIT 1`, url)
	return lead, eris.Wrap(err, "sqlite: find lead by source url")
}

func (s *SQLiteStore) FindByTitleOrg(ctx context.Context, title, organization string) (*model.Lead, error) {
	lead, err := s.queryOne(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE title_key = ? AND org_key = ? ORDER BY created_at LIMIT 1`,
		identityKey(title), identityKey(organization))
	return lead, eris.Wrap(err, "sqlite: find lead by title and organization")
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := s.queryOne(ctx, `SELECT `+leadColumnList+` FROM leads WHERE id = ?`, id)
	return lead, eris.Wrapf(err, "sqlite: get lead %s", id)
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...any) (*model.Lead, error) {
	var sc leadScan
	err := s.db.QueryRowContext(ctx, query, args...).Scan(sc.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sc.finish()
}

func (s *SQLiteStore) Insert(ctx context.Context, lead *model.Lead) error {
	stampInsert(lead, uuid.NewString)
	args, err := writeArgs(lead)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert lead")
	}
	_, err = s.db.ExecContext(ctx, insertSQL(question), args...)
	return eris.Wrap(err, "sqlite: insert lead")
}

func (s *SQLiteStore) Update(ctx context.Context, lead *model.Lead) error {
	args, err := updateArgs(lead)
	if err != nil {
		return eris.Wrap(err, "sqlite: update lead")
	}
	// The id is bound first but used last, so parameters are numbered.
	res, err := s.db.ExecContext(ctx, updateSQL(numbered), args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	return checkRowsAffected(res, lead.ID)
}

func (s *SQLiteStore) List(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query, args := listSQL(filter, question)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		var sc leadScan
		if err := rows.Scan(sc.dest()...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		lead, err := sc.finish()
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: decode lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return errNotFound(id)
	}
	return nil
}
