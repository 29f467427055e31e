package resultstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the multi-host variant of Index, for aggregation setups
// where more than one host appends to a shared resume index. It offers
// the same membership contract as SQLite.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// OpenPostgres connects to dsn and ensures the resume-index table exists.
// table defaults to "loom_batch_completed" when empty.
func OpenPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	if table == "" {
		table = "loom_batch_completed"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("resultstore: connect postgres: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (trial INTEGER NOT NULL, idx INTEGER NOT NULL, PRIMARY KEY (trial, idx))`, table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("resultstore: create table: %w", err)
	}
	return &Postgres{pool: pool, table: table}, nil
}

func (p *Postgres) Rebuild(keys []Key) error {
	ctx := context.Background()
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("resultstore: begin rebuild: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, p.table)); err != nil {
		return fmt.Errorf("resultstore: clear table: %w", err)
	}
	for _, k := range keys {
		q := fmt.Sprintf(`INSERT INTO %s (trial, idx) VALUES ($1, $2) ON CONFLICT DO NOTHING`, p.table)
		if _, err := tx.Exec(ctx, q, k.Trial, k.Idx); err != nil {
			return fmt.Errorf("resultstore: insert key: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Mark(key Key) error {
	ctx := context.Background()
	q := fmt.Sprintf(`INSERT INTO %s (trial, idx) VALUES ($1, $2) ON CONFLICT DO NOTHING`, p.table)
	if _, err := p.pool.Exec(ctx, q, key.Trial, key.Idx); err != nil {
		return fmt.Errorf("resultstore: mark %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Has(key Key) bool {
	ctx := context.Background()
	var n int
	q := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE trial = $1 AND idx = $2`, p.table)
	err := p.pool.QueryRow(ctx, q, key.Trial, key.Idx).Scan(&n)
	return err == nil && n > 0
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

var _ Index = (*Postgres)(nil)
