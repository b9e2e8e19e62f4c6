package pg

import (
	"context"
	"fmt"
)

// statements aplica el esquema de forma idempotente. Los dos índices únicos
// son la garantía de fondo de las invariantes del dominio: una identidad
// remota pertenece a una sola cuenta, y una cuenta tiene como máximo una
// identidad por provider.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS social_identity (
		id               UUID PRIMARY KEY,
		owner_kind       TEXT NOT NULL,
		owner_id         TEXT NOT NULL,
		provider         TEXT NOT NULL,
		provider_user_id TEXT NOT NULL,
		name             TEXT NOT NULL DEFAULT '',
		nickname         TEXT NOT NULL DEFAULT '',
		email            TEXT NOT NULL DEFAULT '',
		avatar_url       TEXT NOT NULL DEFAULT '',
		access_token     TEXT NOT NULL DEFAULT '',
		refresh_token    TEXT,
		expires_at       TIMESTAMPTZ,
		raw              JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_social_identity_provider_subject
		ON social_identity (provider, provider_user_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_social_identity_owner_provider
		ON social_identity (owner_kind, owner_id, provider)`,
	`CREATE INDEX IF NOT EXISTS ix_social_identity_email
		ON social_identity (email)`,
}

// Migrate aplica el esquema.
func (r *Repo) Migrate(ctx context.Context) error {
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pg: migrate: %w", err)
		}
	}
	return nil
}
