package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/venue-orders/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, key_hash, name, scopes
	FROM api_keys WHERE key_hash = $1 AND active = TRUE`

	upsertAPIKeySQL = `INSERT INTO api_keys (key_hash, name, scopes)
	VALUES ($1, $2, $3)
	ON CONFLICT (key_hash) DO UPDATE
	SET name = EXCLUDED.name, scopes = EXCLUDED.scopes, active = TRUE
	RETURNING id, key_hash, name, scopes`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, err := scanAPIKey(r.pool.QueryRow(ctx, getAPIKeyByHashSQL, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, wrap(err, "find api key by hash")
	}
	return info, nil
}

// UpsertAPIKey stores a key hash with its name and scopes, reactivating it if it
// was disabled.
func (r *APIKeyRepository) UpsertAPIKey(ctx context.Context, hash, name string, scopes []string) (*auth.APIKeyInfo, error) {
	info, err := scanAPIKey(r.pool.QueryRow(ctx, upsertAPIKeySQL, hash, name, scopes))
	if err != nil {
		return nil, wrap(err, "upsert api key %q", name)
	}
	return info, nil
}

func scanAPIKey(row pgx.Row) (*auth.APIKeyInfo, error) {
	var info auth.APIKeyInfo
	if err := row.Scan(&info.ID, &info.KeyHash, &info.Name, &info.Scopes); err != nil {
		return nil, err
	}
	return &info, nil
}
