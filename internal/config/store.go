// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config is the durable, process-wide key/value settings store
// backed by the system_config table: WAN interface lists, VPN network
// tags, controller credentials, retention horizons, and the bootstrap
// migration gates. Every read goes through an in-memory cache that is
// populated on first use, refreshed by writes made through this Store,
// and dropped by Invalidate.
package config

import (
	"context"
	"encoding/json"
	"sync"

	pgerrors "github.com/phersys/loginsight/internal/errors"
)

// querier is the subset of pgxpool.Pool the store needs, kept narrow so
// tests can fake it without a real database.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) row
	Exec(ctx context.Context, sql string, args ...any) error
}

type row interface {
	Scan(dest ...any) error
}

// credentialKeys are encrypted at rest; every other value is stored as
// its raw JSON-encoded form.
var credentialKeys = map[string]bool{
	"unifi_api_key":  true,
	"unifi_username": true,
	"unifi_password": true,
}

// Store is the durable config accessor. The zero value is not usable;
// construct with New.
type Store struct {
	db         querier
	dbPassword string

	mu    sync.RWMutex
	cache map[string]string
}

// New constructs a Store over db; dbPassword is used to derive the
// credential encryption key.
func New(db querier, dbPassword string) *Store {
	return &Store{
		db:         db,
		dbPassword: dbPassword,
		cache:      make(map[string]string),
	}
}

// Invalidate drops the in-memory cache; the next read reloads from the
// store. The API handlers call it after importing or saving settings.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]string)
}

func (s *Store) cached(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}

func (s *Store) setCached(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = value
}

func (s *Store) rawGet(ctx context.Context, key string) (string, bool, error) {
	if v, ok := s.cached(key); ok {
		return v, true, nil
	}
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM system_config WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == errNoRows {
			return "", false, nil
		}
		return "", false, pgerrors.Wrap(err, pgerrors.KindInternal, "config: read key "+key)
	}
	s.setCached(key, value)
	return value, true, nil
}

func (s *Store) rawSet(ctx context.Context, key, value string) error {
	err := s.db.Exec(ctx, `
		INSERT INTO system_config (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		return pgerrors.Wrap(err, pgerrors.KindInternal, "config: write key "+key)
	}
	s.setCached(key, value)
	return nil
}

// GetString returns the raw string value for key, or ("", false) if unset.
func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.rawGet(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	var plain string
	if err := json.Unmarshal([]byte(v), &plain); err != nil {
		// Legacy rows may have been written as bare text.
		return v, true, nil
	}
	return plain, true, nil
}

// SetString stores a plain string value for key.
func (s *Store) SetString(ctx context.Context, key, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return pgerrors.Wrap(err, pgerrors.KindInternal, "config: encode "+key)
	}
	return s.rawSet(ctx, key, string(encoded))
}

// GetStringSlice returns an ordered string list for key.
func (s *Store) GetStringSlice(ctx context.Context, key string) ([]string, error) {
	v, ok, err := s.rawGet(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, pgerrors.Wrap(err, pgerrors.KindInternal, "config: decode "+key)
	}
	return out, nil
}

// SetStringSlice stores an ordered string list for key.
func (s *Store) SetStringSlice(ctx context.Context, key string, values []string) error {
	encoded, err := json.Marshal(values)
	if err != nil {
		return pgerrors.Wrap(err, pgerrors.KindInternal, "config: encode "+key)
	}
	return s.rawSet(ctx, key, string(encoded))
}

// GetBool returns a boolean value for key, defaulting to false if unset.
func (s *Store) GetBool(ctx context.Context, key string) (bool, error) {
	v, ok, err := s.rawGet(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	var b bool
	if err := json.Unmarshal([]byte(v), &b); err != nil {
		return false, pgerrors.Wrap(err, pgerrors.KindInternal, "config: decode "+key)
	}
	return b, nil
}

// SetBool stores a boolean value for key.
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	encoded, _ := json.Marshal(value)
	return s.rawSet(ctx, key, string(encoded))
}

// GetJSON decodes key's value into a fresh T. ok is false if key is unset.
func GetJSON[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var zero T
	v, ok, err := s.rawGet(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	var out T
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return zero, false, pgerrors.Wrap(err, pgerrors.KindInternal, "config: decode "+key)
	}
	return out, true, nil
}

// SetJSON encodes value as key's value.
func SetJSON[T any](ctx context.Context, s *Store, key string, value T) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return pgerrors.Wrap(err, pgerrors.KindInternal, "config: encode "+key)
	}
	return s.rawSet(ctx, key, string(encoded))
}

// GetCredential decrypts an at-rest credential field. A missing key or a
// decryption failure both yield ("", false) — the caller prompts the
// operator to re-enter it rather than treating this as fatal.
func (s *Store) GetCredential(ctx context.Context, key string) (string, bool, error) {
	if !credentialKeys[key] {
		return "", false, pgerrors.New(pgerrors.KindValidation, "config: "+key+" is not a credential field")
	}
	sealed, ok, err := s.rawGet(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	var blob string
	if err := json.Unmarshal([]byte(sealed), &blob); err != nil {
		blob = sealed
	}
	plain, ok := decryptCredential(s.dbPassword, blob)
	if !ok {
		return "", false, nil
	}
	return plain, true, nil
}

// SetCredential encrypts value and stores it under key.
func (s *Store) SetCredential(ctx context.Context, key, value string) error {
	if !credentialKeys[key] {
		return pgerrors.New(pgerrors.KindValidation, "config: "+key+" is not a credential field")
	}
	sealed, err := encryptCredential(s.dbPassword, value)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(sealed)
	if err != nil {
		return pgerrors.Wrap(err, pgerrors.KindInternal, "config: encode "+key)
	}
	return s.rawSet(ctx, key, string(encoded))
}
