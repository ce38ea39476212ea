package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/repository"
)

// Users holds accounts and refresh tokens.  It mirrors repository.UserRepo
// and repository.TokenRepo for handler tests.
type Users struct {
	mu     sync.Mutex
	users  map[uint64]*model.User
	tokens map[string]*model.RefreshToken
	nextID uint64
}

func NewUsers() *Users {
	return &Users{
		users:  make(map[uint64]*model.User),
		tokens: make(map[string]*model.RefreshToken),
	}
}

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &email
	}
	for _, other := range s.users {
		if u.Email != nil && other.Email != nil && *other.Email == *u.Email {
			return repository.ErrEmailExists
		}
		if u.Phone != nil && other.Phone != nil && *other.Phone == *u.Phone {
			return repository.ErrDuplicate
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Users) find(match func(*model.User) bool) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.ID == id })
}

func (s *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u *model.User) bool { return u.Email != nil && *u.Email == email })
}

func (s *Users) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.Phone != nil && *u.Phone == phone })
}

func (s *Users) GetByGoogleSub(_ context.Context, sub string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.GoogleSub != nil && *u.GoogleSub == sub })
}

func (s *Users) update(id uint64, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Users) LinkGoogle(_ context.Context, id uint64, sub string) error {
	return s.update(id, func(u *model.User) { u.GoogleSub = &sub })
}

func (s *Users) SetAdmin(_ context.Context, id uint64, admin bool) error {
	return s.update(id, func(u *model.User) { u.IsAdmin = admin })
}

func (s *Users) SetActive(_ context.Context, id uint64, active bool) error {
	return s.update(id, func(u *model.User) { u.IsActive = active })
}

// PromoteFirstAdmin grants admin to id unless an admin already exists.
func (s *Users) PromoteFirstAdmin(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.IsAdmin {
			return repository.ErrConflict
		}
	}
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsAdmin = true
	return nil
}

// List returns users ordered by id, filtered by a name, email or phone
// substring.
func (s *Users) List(_ context.Context, search string, limit, offset int) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search = strings.ToLower(search)
	var out []model.User
	for _, u := range s.users {
		if search != "" && !userMatches(u, search) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func userMatches(u *model.User, search string) bool {
	if strings.Contains(strings.ToLower(u.Name), search) {
		return true
	}
	if u.Email != nil && strings.Contains(*u.Email, search) {
		return true
	}
	return u.Phone != nil && strings.Contains(*u.Phone, search)
}

// Store records a refresh token hash.
func (s *Users) Store(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = &model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *Users) Validate(_ context.Context, tokenHash string, now time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.tokens[tokenHash]
	if !ok || rt.RevokedAt != nil || !now.Before(rt.ExpiresAt) {
		return 0, repository.ErrNotFound
	}
	return rt.UserID, nil
}

// Rotate revokes oldHash and stores newHash for the same user.
func (s *Users) Rotate(_ context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tokens[oldHash]
	if !ok || old.UserID != userID || old.RevokedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	old.RevokedAt = &now
	s.tokens[newHash] = &model.RefreshToken{UserID: userID, TokenHash: newHash, ExpiresAt: exp, CreatedAt: now}
	return nil
}

func (s *Users) Revoke(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.tokens[tokenHash]; ok && rt.RevokedAt == nil {
		now := time.Now().UTC()
		rt.RevokedAt = &now
	}
	return nil
}

func (s *Users) RevokeAll(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, rt := range s.tokens {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
		}
	}
	return nil
}
