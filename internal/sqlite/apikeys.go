package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/perforate-org/arche/internal/domain/user"
)

// APIKey is a stored bearer token, identified by its hash.
type APIKey struct {
	Hash        string
	Owner       user.PrimaryKey
	CreatedAt   time.Time
	LastUsed    *time.Time
	Description string
}

// APIKeyRepository maps bearer tokens to owner keys. Tokens are never
// stored, only their SHA-256 hash.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates an APIKeyRepository.
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// HashToken returns the hex SHA-256 of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create registers token for owner.
func (r *APIKeyRepository) Create(ctx context.Context, token string, owner user.PrimaryKey, description string) error {
	if token == "" || owner.IsZero() {
		return fmt.Errorf("api key: token and owner are required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, owner_key, created_at, description) VALUES (?, ?, ?, ?)`,
		HashToken(token), owner.String(), time.Now().UTC(), description)
	if isUniqueViolation(err) {
		return ErrAPIKeyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// Resolve returns the owner of token and records the use.
func (r *APIKeyRepository) Resolve(ctx context.Context, token string) (user.PrimaryKey, error) {
	hash := HashToken(token)
	var owner string
	err := r.db.QueryRowContext(ctx, `SELECT owner_key FROM api_keys WHERE key_hash = ?`, hash).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return user.PrimaryKey{}, ErrAPIKeyNotFound
	}
	if err != nil {
		return user.PrimaryKey{}, fmt.Errorf("failed to resolve api key: %w", err)
	}
	key, err := user.ParsePrimaryKey(owner)
	if err != nil {
		return user.PrimaryKey{}, err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC(), hash); err != nil {
		return user.PrimaryKey{}, fmt.Errorf("failed to touch api key: %w", err)
	}
	return key, nil
}

// List returns the keys of owner, newest first.
func (r *APIKeyRepository) List(ctx context.Context, owner user.PrimaryKey) ([]APIKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key_hash, created_at, last_used, COALESCE(description, '')
		 FROM api_keys WHERE owner_key = ? ORDER BY created_at DESC`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		k := APIKey{Owner: owner}
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.Hash, &k.CreatedAt, &lastUsed, &k.Description); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			k.LastUsed = &t
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke deletes the key of token.
func (r *APIKeyRepository) Revoke(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE key_hash = ?`, HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
