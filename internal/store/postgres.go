package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/db"
	"github.com/sells-group/pricing-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool        db.Pool
	databaseURL string
	closeFn     func()
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
	return &PostgresStore{pool: pool, databaseURL: connString, closeFn: pool.Close}, nil
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate(_ context.Context) error {
	if s.databaseURL == "" {
		return eris.New("postgres: migrate requires a database url")
	}
	return db.MigrateUp(s.databaseURL)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FindDimension(ctx context.Context, dim model.Dimension, tenantID uuid.UUID, code string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1 AND code = $2`, pgx.Identifier{dim.Table()}.Sanitize()),
		tenantID, code,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, eris.Wrapf(err, "postgres: find %s %q", dim, code)
	}
	return id, true, nil
}

func (s *PostgresStore) CreateDimension(ctx context.Context, dim model.Dimension, tenantID uuid.UUID, code string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, tenant_id, code, created_at) VALUES ($1, $2, $3, $4)`, pgx.Identifier{dim.Table()}.Sanitize()),
		id, tenantID, code, time.Now().UTC(),
	)
	if err != nil {
		if constraint, ok := db.IsUniqueViolation(err); ok {
			return uuid.Nil, &DuplicateKeyError{Op: "create " + string(dim), Constraint: constraint, Err: err}
		}
		return uuid.Nil, eris.Wrapf(err, "postgres: create %s %q", dim, code)
	}
	return id, nil
}

// InsertBatch writes all facts with a single COPY; a duplicate anywhere in
// the batch rejects the whole batch.
func (s *PostgresStore) InsertBatch(ctx context.Context, facts []model.PricingFact) (int, error) {
	rows := make([][]any, len(facts))
	for i, f := range facts {
		rows[i] = factValues(f)
	}
	n, err := db.CopyFrom(ctx, s.pool, "pricing_facts", factColumns, rows)
	if err != nil {
		if constraint, ok := db.IsUniqueViolation(err); ok {
			return 0, &DuplicateKeyError{Op: "insert batch", Constraint: constraint, Err: err}
		}
		return 0, eris.Wrap(err, "postgres: insert batch")
	}
	return int(n), nil
}

func (s *PostgresStore) InsertOne(ctx context.Context, fact model.PricingFact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pricing_facts (tenant_id, route_id, season_id, date, economy_price, business_price, economy_seats, business_seats, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		factValues(fact)...,
	)
	if err != nil {
		if constraint, ok := db.IsUniqueViolation(err); ok {
			return &DuplicateKeyError{Op: "insert fact", Constraint: constraint, Err: err}
		}
		return eris.Wrap(err, "postgres: insert fact")
	}
	return nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key model.FactKey) (*model.PricingFact, error) {
	f, err := scanFact(s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, route_id, season_id, date, economy_price, business_price, economy_seats, business_seats, created_at
		 FROM pricing_facts
		 WHERE tenant_id = $1 AND route_id = $2 AND season_id = $3 AND date = $4`,
		key.TenantID, key.RouteID, key.SeasonID, key.Date,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find fact by key")
	}
	return f, nil
}

func (s *PostgresStore) UpdateOne(ctx context.Context, fact model.PricingFact) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pricing_facts
		 SET economy_price = $1, business_price = $2, economy_seats = $3, business_seats = $4
		 WHERE tenant_id = $5 AND route_id = $6 AND season_id = $7 AND date = $8`,
		fact.EconomyPrice, fact.BusinessPrice, fact.EconomySeats, fact.BusinessSeats,
		fact.TenantID, fact.RouteID, fact.SeasonID, fact.Date,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update fact")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update fact %s", fact.Date)
	}
	return nil
}

func (s *PostgresStore) ListFacts(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]model.PricingRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.date, r.code, se.code, p.economy_price, p.business_price, p.economy_seats, p.business_seats
		 FROM pricing_facts p
		 JOIN routes r ON r.id = p.route_id
		 JOIN seasons se ON se.id = p.season_id
		 WHERE p.tenant_id = $1
		 ORDER BY p.date, p.id
		 OFFSET $2 LIMIT $3`,
		tenantID, offset, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facts")
	}
	defer rows.Close()

	items := []model.PricingRow{}
	for rows.Next() {
		r, err := scanPricingRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact row")
		}
		items = append(items, r)
	}
	return items, eris.Wrap(rows.Err(), "postgres: iterate facts")
}

func (s *PostgresStore) CountFacts(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM pricing_facts WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count facts")
	}
	return n, nil
}
