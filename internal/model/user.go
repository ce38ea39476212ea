package model

import "time"

// User is an account that can book sessions.  A user signs in with
// email and password, a WhatsApp one-time code or Google, so every
// credential column is optional.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name.
//  Email        – unique email address, if known.
//  Phone        – unique normalised phone number, if known.
//  PasswordHash – bcrypt hash for password sign-in.
//  GoogleSub    – Google account subject for Google sign-in.
//  IsAdmin      – grants access to the admin API.
//  IsActive     – blocked users cannot sign in.
type User struct {
	ID           uint64    `json:"id"`         // users.id
	Name         string    `json:"name"`       // users.name
	Email        *string   `json:"email"`      // users.email (nullable)
	Phone        *string   `json:"phone"`      // users.phone (nullable)
	PasswordHash *string   `json:"-"`          // users.password_hash (nullable)
	GoogleSub    *string   `json:"-"`          // users.google_sub (nullable)
	IsAdmin      bool      `json:"is_admin"`   // users.is_admin
	IsActive     bool      `json:"is_active"`  // users.is_active
	CreatedAt    time.Time `json:"created_at"` // users.created_at
	UpdatedAt    time.Time `json:"updated_at"` // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
