package social

import (
	"time"

	"github.com/dropDatabas3/socialink/internal/domain/repository"
)

// RemoteProfile is the normalized user-info payload an OAuth client adapter
// returns after exchanging an authorization code.
type RemoteProfile struct {
	ID           string // stable user identifier in the provider's system
	Name         string
	Nickname     string
	Email        string
	AvatarURL    string
	Token        string  // access token
	RefreshToken *string // OAuth2 refresh token, if any
	TokenSecret  *string // OAuth1 token secret, if any
	ExpiresIn    *int64  // access token lifetime in seconds, if reported
	Raw          map[string]any
}

// identityInput maps the profile onto the stored identity fields. The mapping
// is pure: reapplying it with the same profile yields the same stored state,
// aside from the now-derived expiry.
func (p RemoteProfile) identityInput(provider string, now time.Time) repository.IdentityInput {
	in := repository.IdentityInput{
		Provider:       provider,
		ProviderUserID: p.ID,
		Name:           p.Name,
		Nickname:       p.Nickname,
		Email:          p.Email,
		AvatarURL:      p.AvatarURL,
		AccessToken:    p.Token,
		RefreshToken:   p.refreshToken(),
		Raw:            p.Raw,
	}
	if p.ExpiresIn != nil {
		t := now.Add(time.Duration(*p.ExpiresIn) * time.Second)
		in.ExpiresAt = &t
	}
	return in
}

// refreshToken falls back to the OAuth1 token secret when the provider
// reports no refresh token.
func (p RemoteProfile) refreshToken() *string {
	if p.RefreshToken != nil {
		return p.RefreshToken
	}
	return p.TokenSecret
}
