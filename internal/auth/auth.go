// Package auth turns sign-in credentials into a user identity.  Every
// sign-in method (email and password, WhatsApp one-time code, Google)
// is a Resolver; the HTTP layer issues the same tokens for all of them.
package auth

import (
	"context"
	"errors"

	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrOTPInvalid         = errors.New("invalid code")
	ErrOTPExpired         = errors.New("code expired or not requested")
	ErrOTPAttempts        = errors.New("too many attempts")
)

// Identity is the authenticated principal.
type Identity struct {
	UserID  uint64
	IsAdmin bool
	Name    string
}

// Credentials carries whatever the client sent; each resolver reads the
// fields it understands.
type Credentials struct {
	Email    string
	Password string
	Phone    string
	Code     string
	IDToken  string
	Name     string
}

type Resolver interface {
	Resolve(ctx context.Context, cred Credentials) (Identity, error)
}

// Users is the account storage the resolvers need.
type Users interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*model.User, error)
	LinkGoogle(ctx context.Context, id uint64, sub string) error
}

// IdentityOf rejects blocked accounts.
func IdentityOf(u *model.User) (Identity, error) {
	if !u.IsActive {
		return Identity{}, ErrUserBlocked
	}
	return Identity{UserID: u.ID, IsAdmin: u.IsAdmin, Name: u.Name}, nil
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }
