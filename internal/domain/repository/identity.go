package repository

import (
	"context"
	"time"
)

// AccountRef es la referencia polimórfica al dueño de una identidad:
// tipo de cuenta + ID. Evita acoplar el store a un modelo de usuario concreto.
type AccountRef struct {
	Kind string // "user", "admin", etc.
	ID   string
}

// IsZero indica si la referencia está vacía.
func (r AccountRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// SocialIdentity representa una identidad social vinculada (Google, LINE, etc).
// La clave natural es (Provider, ProviderUserID): como máximo una cuenta local
// puede estar vinculada a una identidad remota dada.
type SocialIdentity struct {
	ID             string
	Owner          AccountRef
	Provider       string // "google", "line", etc.
	ProviderUserID string // ID estable del usuario en el provider
	Name           string
	Nickname       string
	Email          string
	AvatarURL      string
	AccessToken    string
	RefreshToken   *string
	ExpiresAt      *time.Time
	Raw            map[string]any // snapshot completo de la respuesta del provider
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IdentityInput contiene los campos que se sobreescriben en cada
// autenticación exitosa (perfil denormalizado + tokens).
type IdentityInput struct {
	Provider       string
	ProviderUserID string
	Name           string
	Nickname       string
	Email          string
	AvatarURL      string
	AccessToken    string
	RefreshToken   *string
	ExpiresAt      *time.Time
	Raw            map[string]any
}

// OwnerFunc produce el dueño para una identidad nueva. FindOrCreate la invoca
// dentro de su sección crítica, de modo que bajo callbacks concurrentes solo
// el ganador provisiona una cuenta.
type OwnerFunc func(ctx context.Context) (AccountRef, error)

// IdentityRepository define operaciones sobre identidades sociales.
type IdentityRepository interface {
	// GetByProvider busca una identidad por provider y ID del provider.
	// Retorna ErrNotFound si no existe.
	GetByProvider(ctx context.Context, provider, providerUserID string) (*SocialIdentity, error)

	// GetByOwner lista todas las identidades de una cuenta.
	GetByOwner(ctx context.Context, owner AccountRef) ([]SocialIdentity, error)

	// GetByOwnerProvider busca la identidad de una cuenta para un provider.
	// Retorna ErrNotFound si no existe.
	GetByOwnerProvider(ctx context.Context, owner AccountRef, provider string) (*SocialIdentity, error)

	// FindOrCreate es la operación atómica del flujo de login: si la identidad
	// (provider, provider_user_id) existe, sobreescribe perfil y tokens y
	// retorna created=false; si no existe, invoca owner() y la crea.
	// Como máximo una fila se crea por clave, sin importar la concurrencia.
	// Errores de owner() se propagan sin envolver.
	FindOrCreate(ctx context.Context, input IdentityInput, owner OwnerFunc) (ident *SocialIdentity, created bool, err error)

	// Link crea una identidad para una cuenta ya autenticada.
	// Retorna ErrConflict si la identidad remota ya está vinculada (a quien
	// sea) o si la cuenta ya tiene una identidad para ese provider.
	Link(ctx context.Context, owner AccountRef, input IdentityInput) (*SocialIdentity, error)

	// Unlink elimina la identidad de una cuenta para un provider.
	// Retorna deleted=false (sin error) si no existía. Idempotente.
	Unlink(ctx context.Context, owner AccountRef, provider string) (deleted bool, err error)
}
