// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-securitykey.
//
// go-securitykey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package sqlite provides a durable KeyStore backed by a SQLite database.
//
// The store keeps the verified credential source and its account-facing
// record in one row, written in one statement, so a reader never observes a
// credential without its name. A UNIQUE constraint on the credential id
// enforces global uniqueness across accounts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS security_keys (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL,
	public_key_id   TEXT NOT NULL,
	name            TEXT NOT NULL,
	credential_id   BLOB NOT NULL UNIQUE,
	credential_json TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_security_keys_account ON security_keys(account_id);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements securitykey.KeyStore over SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ securitykey.KeyStore = (*Store)(nil)

// Open opens a security key SQLite store and applies the schema. Pass
// ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// SaveKey stores a verified credential source with its named record and
// returns the persisted record. A credential id already present anywhere in
// the table yields securitykey.ErrDuplicateCredential.
func (s *Store) SaveKey(ctx context.Context, source *securitykey.PublicKeyCredentialSource, accountID, name string) (*securitykey.SecurityKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if source == nil || len(source.CredentialID) == 0 {
		return nil, fmt.Errorf("credential source is required")
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account id is required")
	}

	credentialJSON, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("encode credential source: %w", err)
	}

	now := s.now().UTC()
	key := &securitykey.SecurityKey{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		PublicKeyID: securitykey.EncodePublicKeyID(source.CredentialID),
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO security_keys
			(id, account_id, public_key_id, name, credential_id, credential_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.AccountID, key.PublicKeyID, key.Name,
		source.CredentialID, string(credentialJSON),
		toMillis(key.CreatedAt), toMillis(key.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, securitykey.ErrDuplicateCredential
		}
		return nil, fmt.Errorf("insert security key: %w", err)
	}

	return key, nil
}

// GetKey retrieves one of an account's security keys.
func (s *Store) GetKey(ctx context.Context, accountID, keyID string) (*securitykey.SecurityKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, account_id, public_key_id, name, created_at, updated_at
		FROM security_keys
		WHERE id = ? AND account_id = ?`, keyID, accountID)

	key, err := scanKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, securitykey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("get security key: %w", err)
	}
	return key, nil
}

// ListKeys returns all security keys registered to an account, oldest first.
func (s *Store) ListKeys(ctx context.Context, accountID string) ([]*securitykey.SecurityKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, account_id, public_key_id, name, created_at, updated_at
		FROM security_keys
		WHERE account_id = ?
		ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list security keys: %w", err)
	}
	defer rows.Close()

	var keys []*securitykey.SecurityKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list security keys: %w", err)
	}
	return keys, nil
}

// ListCredentialSources returns the credential sources registered to an account.
func (s *Store) ListCredentialSources(ctx context.Context, accountID string) ([]*securitykey.PublicKeyCredentialSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT credential_json
		FROM security_keys
		WHERE account_id = ?
		ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list credential sources: %w", err)
	}
	defer rows.Close()

	var sources []*securitykey.PublicKeyCredentialSource
	for rows.Next() {
		var credentialJSON string
		if err := rows.Scan(&credentialJSON); err != nil {
			return nil, fmt.Errorf("scan credential source: %w", err)
		}
		source := &securitykey.PublicKeyCredentialSource{}
		if err := json.Unmarshal([]byte(credentialJSON), source); err != nil {
			return nil, fmt.Errorf("decode credential source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credential sources: %w", err)
	}
	return sources, nil
}

// RenameKey updates the label on a security key and returns the updated record.
func (s *Store) RenameKey(ctx context.Context, accountID, keyID, name string) (*securitykey.SecurityKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE security_keys
		SET name = ?, updated_at = ?
		WHERE id = ? AND account_id = ?`,
		name, toMillis(s.now()), keyID, accountID)
	if err != nil {
		return nil, fmt.Errorf("rename security key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rename security key: %w", err)
	}
	if affected == 0 {
		return nil, securitykey.ErrKeyNotFound
	}

	return s.GetKey(ctx, accountID, keyID)
}

// DeleteKey removes a security key and its credential source.
func (s *Store) DeleteKey(ctx context.Context, accountID, keyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
		DELETE FROM security_keys
		WHERE id = ? AND account_id = ?`, keyID, accountID)
	if err != nil {
		return fmt.Errorf("delete security key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete security key: %w", err)
	}
	if affected == 0 {
		return securitykey.ErrKeyNotFound
	}
	return nil
}

// Count returns the total number of keys in the store.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM security_keys`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count security keys: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*securitykey.SecurityKey, error) {
	var key securitykey.SecurityKey
	var createdAt, updatedAt int64

	if err := row.Scan(&key.ID, &key.AccountID, &key.PublicKeyID, &key.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	key.CreatedAt = fromMillis(createdAt)
	key.UpdatedAt = fromMillis(updatedAt)
	return &key, nil
}

// isUniqueConstraintError detects a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
