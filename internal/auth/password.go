package auth

import (
	"context"
	"strings"

	"github.com/iliyamo/playhouse-booking/internal/utils"
)

// PasswordResolver signs users in with email and password.
type PasswordResolver struct {
	users Users
}

func NewPasswordResolver(users Users) *PasswordResolver {
	return &PasswordResolver{users: users}
}

func (r *PasswordResolver) Resolve(ctx context.Context, cred Credentials) (Identity, error) {
	email := strings.TrimSpace(cred.Email)
	if email == "" || cred.Password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	u, err := r.users.GetByEmail(ctx, email)
	if isNotFound(err) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, err
	}
	if u.PasswordHash == nil || !utils.VerifyPassword(*u.PasswordHash, cred.Password) {
		return Identity{}, ErrInvalidCredentials
	}
	return IdentityOf(u)
}
