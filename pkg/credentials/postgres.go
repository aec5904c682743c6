// pkg/credentials/postgres.go
package credentials

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed credential store.
func NewPostgresStore(pool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{pool: pool, log: log}
}

// EnsureSchema creates the credential table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenant_credentials (
  tenant_id text PRIMARY KEY,
  api_token text NOT NULL,
  name text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *pgStore) Register(ctx context.Context, tenantID, token, name string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO tenant_credentials(tenant_id, api_token, name)
		VALUES ($1,$2,$3)
		ON CONFLICT (tenant_id) DO UPDATE SET api_token=EXCLUDED.api_token, name=EXCLUDED.name, updated_at=NOW()`,
		tenantID, token, name)
	return err
}

func (p *pgStore) Get(ctx context.Context, tenantID string) (string, error) {
	var token string
	err := p.pool.QueryRow(ctx,
		`SELECT api_token FROM tenant_credentials WHERE tenant_id=$1`, tenantID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return token, nil
}

func (p *pgStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT tenant_id, api_token, name, created_at FROM tenant_credentials ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var token string
		if err := rows.Scan(&e.TenantID, &token, &e.Name, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TokenPrefix = Redact(token)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *pgStore) Remove(ctx context.Context, tenantID string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM tenant_credentials WHERE tenant_id=$1`, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
