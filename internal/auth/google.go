package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// NewGoogleKeyfunc fetches and keeps refreshing Google's signing keys.
func NewGoogleKeyfunc(ctx context.Context, jwksURL string) (jwt.Keyfunc, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("google jwks: %w", err)
	}
	return k.Keyfunc, nil
}

// GoogleResolver signs users in with a Google ID token.  Accounts are
// matched by Google subject, then by verified email (which links the
// subject), and created otherwise.
type GoogleResolver struct {
	users     Users
	keyfunc   jwt.Keyfunc
	clientIDs []string
}

func NewGoogleResolver(users Users, kf jwt.Keyfunc, clientIDs []string) *GoogleResolver {
	return &GoogleResolver{users: users, keyfunc: kf, clientIDs: clientIDs}
}

type googleClaims struct {
	sub           string
	email         string
	emailVerified bool
	name          string
}

func (r *GoogleResolver) verify(raw string) (googleClaims, error) {
	if r.keyfunc == nil || len(r.clientIDs) == 0 {
		return googleClaims{}, errors.New("google sign-in is not configured")
	}
	tok, err := jwt.Parse(raw, r.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return googleClaims{}, ErrInvalidCredentials
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return googleClaims{}, ErrInvalidCredentials
	}
	iss, _ := mc.GetIssuer()
	if !slices.Contains(googleIssuers, iss) {
		return googleClaims{}, ErrInvalidCredentials
	}
	aud, _ := mc.GetAudience()
	if !slices.ContainsFunc(aud, func(a string) bool { return slices.Contains(r.clientIDs, a) }) {
		return googleClaims{}, ErrInvalidCredentials
	}

	var c googleClaims
	c.sub, _ = mc.GetSubject()
	c.email, _ = mc["email"].(string)
	c.name, _ = mc["name"].(string)
	switch v := mc["email_verified"].(type) {
	case bool:
		c.emailVerified = v
	case string:
		c.emailVerified = v == "true"
	}
	if c.sub == "" {
		return googleClaims{}, ErrInvalidCredentials
	}
	return c, nil
}

func (r *GoogleResolver) Resolve(ctx context.Context, cred Credentials) (Identity, error) {
	c, err := r.verify(cred.IDToken)
	if err != nil {
		return Identity{}, err
	}

	u, err := r.users.GetByGoogleSub(ctx, c.sub)
	if err == nil {
		return IdentityOf(u)
	}
	if !isNotFound(err) {
		return Identity{}, err
	}

	if c.email != "" && c.emailVerified {
		u, err = r.users.GetByEmail(ctx, c.email)
		switch {
		case err == nil:
			if err := r.users.LinkGoogle(ctx, u.ID, c.sub); err != nil {
				return Identity{}, err
			}
			return IdentityOf(u)
		case !isNotFound(err):
			return Identity{}, err
		}
	}

	name := c.name
	if name == "" {
		name = "Parent"
	}
	u = &model.User{Name: name, GoogleSub: &c.sub, IsActive: true}
	if c.email != "" && c.emailVerified {
		u.Email = &c.email
	}
	if err := r.users.Create(ctx, u); err != nil {
		return Identity{}, err
	}
	return IdentityOf(u)
}
