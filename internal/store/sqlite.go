package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/pricing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Prices and dates are
// stored as canonical text so they round-trip exactly.
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
	// One writer connection; concurrent callers queue in database/sql instead
	// of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS routes (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	code       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, code)
);

CREATE TABLE IF NOT EXISTS seasons (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	code       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, code)
);

CREATE TABLE IF NOT EXISTS pricing_facts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id      TEXT NOT NULL,
	route_id       TEXT NOT NULL REFERENCES routes(id),
	season_id      TEXT NOT NULL REFERENCES seasons(id),
	date           TEXT NOT NULL,
	economy_price  TEXT NOT NULL,
	business_price TEXT NOT NULL,
	economy_seats  INTEGER NOT NULL,
	business_seats INTEGER NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, route_id, season_id, date)
);

CREATE INDEX IF NOT EXISTS idx_pricing_facts_tenant_date ON pricing_facts(tenant_id, date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

func (s *SQLiteStore) FindDimension(ctx context.Context, dim model.Dimension, tenantID uuid.UUID, code string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = ? AND code = ?`, dim.Table()),
		tenantID.String(), code,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, eris.Wrapf(err, "sqlite: find %s %q", dim, code)
	}
	return id, true, nil
}

func (s *SQLiteStore) CreateDimension(ctx context.Context, dim model.Dimension, tenantID uuid.UUID, code string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, tenant_id, code, created_at) VALUES (?, ?, ?, ?)`, dim.Table()),
		id.String(), tenantID.String(), code, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, &DuplicateKeyError{Op: "create " + string(dim), Constraint: dim.Table() + "(tenant_id, code)", Err: err}
		}
		return uuid.Nil, eris.Wrapf(err, "sqlite: create %s %q", dim, code)
	}
	return id, nil
}

const sqliteInsertFact = `INSERT INTO pricing_facts
	(tenant_id, route_id, season_id, date, economy_price, business_price, economy_seats, business_seats, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func sqliteFactArgs(f model.PricingFact) []any {
	return []any{
		f.TenantID.String(), f.RouteID.String(), f.SeasonID.String(), f.Date.String(),
		f.EconomyPrice.String(), f.BusinessPrice.String(), f.EconomySeats, f.BusinessSeats, f.CreatedAt,
	}
}

// InsertBatch inserts every fact inside one transaction and rolls back on
// the first failure.
func (s *SQLiteStore) InsertBatch(ctx context.Context, facts []model.PricingFact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert batch: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertFact)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert batch: prepare")
	}
	defer stmt.Close()

	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx, sqliteFactArgs(f)...); err != nil {
			if isUniqueViolation(err) {
				return 0, &DuplicateKeyError{Op: "insert batch", Constraint: "pricing_facts(tenant_id, route_id, season_id, date)", Err: err}
			}
			return 0, eris.Wrap(err, "sqlite: insert batch")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert batch: commit")
	}
	return len(facts), nil
}

func (s *SQLiteStore) InsertOne(ctx context.Context, fact model.PricingFact) error {
	_, err := s.db.ExecContext(ctx, sqliteInsertFact, sqliteFactArgs(fact)...)
	if err != nil {
		if isUniqueViolation(err) {
			return &DuplicateKeyError{Op: "insert fact", Constraint: "pricing_facts(tenant_id, route_id, season_id, date)", Err: err}
		}
		return eris.Wrap(err, "sqlite: insert fact")
	}
	return nil
}

func (s *SQLiteStore) FindByKey(ctx context.Context, key model.FactKey) (*model.PricingFact, error) {
	f, err := scanFact(s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, route_id, season_id, date, economy_price, business_price, economy_seats, business_seats, created_at
		 FROM pricing_facts
		 WHERE tenant_id = ? AND route_id = ? AND season_id = ? AND date = ?`,
		key.TenantID.String(), key.RouteID.String(), key.SeasonID.String(), key.Date.String(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find fact by key")
	}
	return f, nil
}

func (s *SQLiteStore) UpdateOne(ctx context.Context, fact model.PricingFact) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pricing_facts
		 SET economy_price = ?, business_price = ?, economy_seats = ?, business_seats = ?
		 WHERE tenant_id = ? AND route_id = ? AND season_id = ? AND date = ?`,
		fact.EconomyPrice.String(), fact.BusinessPrice.String(), fact.EconomySeats, fact.BusinessSeats,
		fact.TenantID.String(), fact.RouteID.String(), fact.SeasonID.String(), fact.Date.String(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update fact")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: update fact %s", fact.Date)
	}
	return nil
}

func (s *SQLiteStore) ListFacts(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]model.PricingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.date, r.code, se.code, p.economy_price, p.business_price, p.economy_seats, p.business_seats
		 FROM pricing_facts p
		 JOIN routes r ON r.id = p.route_id
		 JOIN seasons se ON se.id = p.season_id
		 WHERE p.tenant_id = ?
		 ORDER BY p.date, p.id
		 LIMIT ? OFFSET ?`,
		tenantID.String(), limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facts")
	}
	defer rows.Close()

	items := []model.PricingRow{}
	for rows.Next() {
		r, err := scanPricingRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact row")
		}
		items = append(items, r)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: iterate facts")
}

func (s *SQLiteStore) CountFacts(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM pricing_facts WHERE tenant_id = ?`, tenantID.String()).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count facts")
	}
	return n, nil
}
