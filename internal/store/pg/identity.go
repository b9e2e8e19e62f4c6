// pg/identity.go — Implementación PostgreSQL de IdentityRepository
// Unicidad de (provider, provider_user_id) y (owner, provider) garantizada
// por índices únicos; el find-or-create serializa por advisory lock.
package pg

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/socialink/internal/domain/repository"
)

const identityColumns = `id, owner_kind, owner_id, provider, provider_user_id,
	name, nickname, email, avatar_url, access_token, refresh_token, expires_at,
	raw, created_at, updated_at`

const uniqueViolation = "23505"

func (r *Repo) GetByProvider(ctx context.Context, provider, providerUserID string) (*repository.SocialIdentity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM social_identity
		WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	)
	return scanIdentity(row)
}

func (r *Repo) GetByOwner(ctx context.Context, owner repository.AccountRef) ([]repository.SocialIdentity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+identityColumns+`
		FROM social_identity
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY created_at`,
		owner.Kind, owner.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []repository.SocialIdentity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *ident)
	}
	return identities, rows.Err()
}

func (r *Repo) GetByOwnerProvider(ctx context.Context, owner repository.AccountRef, provider string) (*repository.SocialIdentity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM social_identity
		WHERE owner_kind = $1 AND owner_id = $2 AND provider = $3`,
		owner.Kind, owner.ID, provider,
	)
	return scanIdentity(row)
}

func (r *Repo) FindOrCreate(ctx context.Context, input repository.IdentityInput, owner repository.OwnerFunc) (*repository.SocialIdentity, bool, error) {
	if input.Provider == "" || input.ProviderUserID == "" {
		return nil, false, repository.ErrInvalidInput
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	// Serializar callbacks concurrentes para la misma identidad remota.
	// El lock se libera al commit/rollback.
	_, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		input.Provider+"\x00"+input.ProviderUserID,
	)
	if err != nil {
		return nil, false, err
	}

	// 1. Identidad existente → sobreescribir perfil/tokens
	ident, err := r.updateTx(ctx, tx, input)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return ident, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	// 2. No existe. Provisionar dueño con el lock tomado: un perdedor de la
	// carrera nunca llega acá.
	ref, err := owner(ctx)
	if err != nil {
		return nil, false, err
	}

	ident, err = insertTx(ctx, tx, ref, input)
	if isUniqueViolation(err) {
		return nil, false, repository.ErrConflict
	}
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return ident, true, nil
}

func (r *Repo) Link(ctx context.Context, owner repository.AccountRef, input repository.IdentityInput) (*repository.SocialIdentity, error) {
	if input.Provider == "" || input.ProviderUserID == "" {
		return nil, repository.ErrInvalidInput
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ident, err := insertTx(ctx, tx, owner, input)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ident, nil
}

func (r *Repo) Unlink(ctx context.Context, owner repository.AccountRef, provider string) (bool, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		DELETE FROM social_identity
		WHERE owner_kind = $1 AND owner_id = $2 AND provider = $3
		RETURNING id`,
		owner.Kind, owner.ID, provider,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// updateTx sobreescribe los campos de una identidad existente.
// Retorna ErrNotFound si la clave (provider, provider_user_id) no existe.
func (r *Repo) updateTx(ctx context.Context, tx pgx.Tx, input repository.IdentityInput) (*repository.SocialIdentity, error) {
	raw, err := marshalRaw(input.Raw)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
		UPDATE social_identity SET
			name = $3, nickname = $4, email = $5, avatar_url = $6,
			access_token = $7, refresh_token = $8, expires_at = $9,
			raw = $10, updated_at = NOW()
		WHERE provider = $1 AND provider_user_id = $2
		RETURNING `+identityColumns,
		input.Provider, input.ProviderUserID,
		input.Name, input.Nickname, input.Email, input.AvatarURL,
		input.AccessToken, input.RefreshToken, input.ExpiresAt, raw,
	)
	return scanIdentity(row)
}

func insertTx(ctx context.Context, tx pgx.Tx, owner repository.AccountRef, input repository.IdentityInput) (*repository.SocialIdentity, error) {
	raw, err := marshalRaw(input.Raw)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO social_identity (
			id, owner_kind, owner_id, provider, provider_user_id,
			name, nickname, email, avatar_url, access_token, refresh_token,
			expires_at, raw, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING `+identityColumns,
		uuid.NewString(), owner.Kind, owner.ID, input.Provider, input.ProviderUserID,
		input.Name, input.Nickname, input.Email, input.AvatarURL,
		input.AccessToken, input.RefreshToken, input.ExpiresAt, raw,
	)
	return scanIdentity(row)
}

func scanIdentity(row pgx.Row) (*repository.SocialIdentity, error) {
	var (
		ident repository.SocialIdentity
		raw   []byte
	)
	err := row.Scan(
		&ident.ID, &ident.Owner.Kind, &ident.Owner.ID,
		&ident.Provider, &ident.ProviderUserID,
		&ident.Name, &ident.Nickname, &ident.Email, &ident.AvatarURL,
		&ident.AccessToken, &ident.RefreshToken, &ident.ExpiresAt,
		&raw, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ident.Raw); err != nil {
			return nil, err
		}
	}
	return &ident, nil
}

func marshalRaw(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
