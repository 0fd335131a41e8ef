package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotConnected means the tenant never linked this provider (or unlinked
// it). Read paths treat it as "zero events", never as a failure.
var ErrNotConnected = errors.New("provider: not connected")

// Config is one tenant's connection to one external calendar provider.
// Tokens are stored per (tenant_id, provider); a refresh rewrites the row.
type Config struct {
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Provider string `json:"provider" db:"provider"`

	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	TokenExpiry  time.Time `json:"token_expiry" db:"token_expiry"`

	// CalendarID selects which of the account's calendars to mirror.
	// Empty means the provider's primary calendar.
	CalendarID string `json:"calendar_id,omitempty" db:"calendar_id"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the access token needs a refresh before use.
// A small margin avoids using a token that dies mid-request.
func (c Config) Expired(now time.Time) bool {
	if c.TokenExpiry.IsZero() {
		return false
	}
	return !now.Add(30 * time.Second).Before(c.TokenExpiry)
}

// ConfigStore persists provider connections.
type ConfigStore interface {
	Get(ctx context.Context, tenantID, provider string) (Config, error)
	Save(ctx context.Context, cfg Config) error
}

// MemoryConfigStore keeps connections in memory for tests and local runs.
type MemoryConfigStore struct {
	mu   sync.RWMutex
	rows map[string]Config
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{rows: make(map[string]Config)}
}

func memKey(tenantID, provider string) string { return tenantID + "/" + provider }

func (s *MemoryConfigStore) Get(ctx context.Context, tenantID, provider string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.rows[memKey(tenantID, provider)]
	if !ok {
		return Config{}, ErrNotConnected
	}
	return cfg, nil
}

func (s *MemoryConfigStore) Save(ctx context.Context, cfg Config) error {
	if cfg.TenantID == "" || cfg.Provider == "" {
		return errors.New("provider: tenant_id and provider required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[memKey(cfg.TenantID, cfg.Provider)] = cfg
	return nil
}

// PostgresConfigStore persists connections in the provider_configs table.
type PostgresConfigStore struct {
	db *sql.DB
}

func NewPostgresConfigStore(db *sql.DB) *PostgresConfigStore {
	return &PostgresConfigStore{db: db}
}

func (s *PostgresConfigStore) Get(ctx context.Context, tenantID, provider string) (Config, error) {
	const q = `
		SELECT tenant_id, provider, access_token, refresh_token, token_expiry, calendar_id, updated_at
		FROM provider_configs
		WHERE tenant_id = $1 AND provider = $2`

	var cfg Config
	err := s.db.QueryRowContext(ctx, q, tenantID, provider).Scan(
		&cfg.TenantID, &cfg.Provider,
		&cfg.AccessToken, &cfg.RefreshToken, &cfg.TokenExpiry,
		&cfg.CalendarID, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Config{}, ErrNotConnected
	}
	if err != nil {
		return Config{}, fmt.Errorf("provider: get config: %w", err)
	}
	return cfg, nil
}

func (s *PostgresConfigStore) Save(ctx context.Context, cfg Config) error {
	const q = `
		INSERT INTO provider_configs (tenant_id, provider, access_token, refresh_token, token_expiry, calendar_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			calendar_id = EXCLUDED.calendar_id,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, q,
		cfg.TenantID, cfg.Provider,
		cfg.AccessToken, cfg.RefreshToken, cfg.TokenExpiry,
		cfg.CalendarID, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("provider: save config: %w", err)
	}
	return nil
}
