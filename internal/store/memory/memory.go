// Package memory implementa IdentityRepository en memoria.
// Útil para desarrollo, testing y hosts embebidos sin base de datos.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/socialink/internal/domain/repository"
)

// Store guarda identidades bajo un mutex global. FindOrCreate ejecuta su
// sección crítica completa (incluido el OwnerFunc) con el lock tomado, así
// que dos callbacks concurrentes para la misma identidad remota nunca
// provisionan dos cuentas.
type Store struct {
	mu      sync.Mutex
	byKey   map[string]*repository.SocialIdentity // (provider, provider_user_id) → identidad
	byOwner map[repository.AccountRef]map[string]string // owner → provider → key
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		byKey:   make(map[string]*repository.SocialIdentity),
		byOwner: make(map[repository.AccountRef]map[string]string),
	}
}

func key(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

func (s *Store) GetByProvider(ctx context.Context, provider, providerUserID string) (*repository.SocialIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byKey[key(provider, providerUserID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(ident), nil
}

func (s *Store) GetByOwner(ctx context.Context, owner repository.AccountRef) ([]repository.SocialIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []repository.SocialIdentity
	for _, k := range s.byOwner[owner] {
		out = append(out, *clone(s.byKey[k]))
	}
	return out, nil
}

func (s *Store) GetByOwnerProvider(ctx context.Context, owner repository.AccountRef, provider string) (*repository.SocialIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.byOwner[owner][provider]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(s.byKey[k]), nil
}

func (s *Store) FindOrCreate(ctx context.Context, input repository.IdentityInput, owner repository.OwnerFunc) (*repository.SocialIdentity, bool, error) {
	if input.Provider == "" || input.ProviderUserID == "" {
		return nil, false, repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(input.Provider, input.ProviderUserID)
	if ident, ok := s.byKey[k]; ok {
		apply(ident, input)
		ident.UpdatedAt = time.Now()
		return clone(ident), false, nil
	}

	// El OwnerFunc corre con el lock tomado: los perdedores de la carrera
	// esperan aquí y luego toman la rama de update.
	ref, err := owner(ctx)
	if err != nil {
		return nil, false, err
	}
	if _, taken := s.byOwner[ref][input.Provider]; taken {
		return nil, false, repository.ErrConflict
	}

	ident := newIdentity(ref, input)
	s.insert(k, ident)
	return clone(ident), true, nil
}

func (s *Store) Link(ctx context.Context, owner repository.AccountRef, input repository.IdentityInput) (*repository.SocialIdentity, error) {
	if input.Provider == "" || input.ProviderUserID == "" {
		return nil, repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(input.Provider, input.ProviderUserID)
	if _, exists := s.byKey[k]; exists {
		return nil, repository.ErrConflict
	}
	if _, taken := s.byOwner[owner][input.Provider]; taken {
		return nil, repository.ErrConflict
	}

	ident := newIdentity(owner, input)
	s.insert(k, ident)
	return clone(ident), nil
}

func (s *Store) Unlink(ctx context.Context, owner repository.AccountRef, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.byOwner[owner][provider]
	if !ok {
		return false, nil
	}
	delete(s.byKey, k)
	delete(s.byOwner[owner], provider)
	if len(s.byOwner[owner]) == 0 {
		delete(s.byOwner, owner)
	}
	return true, nil
}

// insert asume el lock tomado y ambas unicidades ya verificadas.
func (s *Store) insert(k string, ident *repository.SocialIdentity) {
	s.byKey[k] = ident
	if s.byOwner[ident.Owner] == nil {
		s.byOwner[ident.Owner] = make(map[string]string)
	}
	s.byOwner[ident.Owner][ident.Provider] = k
}

func newIdentity(owner repository.AccountRef, input repository.IdentityInput) *repository.SocialIdentity {
	now := time.Now()
	ident := &repository.SocialIdentity{
		ID:        uuid.NewString(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(ident, input)
	return ident
}

// apply sobreescribe los campos de perfil y tokens.
func apply(ident *repository.SocialIdentity, input repository.IdentityInput) {
	ident.Provider = input.Provider
	ident.ProviderUserID = input.ProviderUserID
	ident.Name = input.Name
	ident.Nickname = input.Nickname
	ident.Email = input.Email
	ident.AvatarURL = input.AvatarURL
	ident.AccessToken = input.AccessToken
	ident.RefreshToken = input.RefreshToken
	ident.ExpiresAt = input.ExpiresAt
	ident.Raw = input.Raw
}

// clone evita que el caller mute el estado interno del store.
func clone(ident *repository.SocialIdentity) *repository.SocialIdentity {
	c := *ident
	if ident.Raw != nil {
		c.Raw = maps.Clone(ident.Raw)
	}
	if ident.RefreshToken != nil {
		v := *ident.RefreshToken
		c.RefreshToken = &v
	}
	if ident.ExpiresAt != nil {
		t := *ident.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
