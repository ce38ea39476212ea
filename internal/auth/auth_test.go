package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/playhouse-booking/internal/auth"
	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/storage/memory"
	"github.com/iliyamo/playhouse-booking/internal/utils"
)

type captureSender struct {
	mu    sync.Mutex
	to    []string
	texts []string
	err   error
}

func (s *captureSender) Send(_ context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.to = append(s.to, to)
	s.texts = append(s.texts, text)
	return nil
}

var codePattern = regexp.MustCompile(`^\d+`)

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		t.Fatal("no message sent")
	}
	code := codePattern.FindString(s.texts[len(s.texts)-1])
	if code == "" {
		t.Fatalf("no code in %q", s.texts[len(s.texts)-1])
	}
	return code
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string) string {
	b := []byte(code)
	b[0] = '0' + (b[0]-'0'+1)%10
	return string(b)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOTPWithRedis(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	sender := &captureSender{}
	svc := auth.NewOTPService(auth.NewRedisOTPStore(rdb), sender, auth.OTPConfig{CountryCode: "91"})

	phone, err := svc.Request(ctx, "98765 43210")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if phone != "+919876543210" || sender.to[0] != phone {
		t.Fatalf("phone = %q, sent to %v", phone, sender.to)
	}
	if ttl := mr.TTL("otp:+919876543210"); ttl != 5*time.Minute {
		t.Fatalf("ttl = %s, want 5m", ttl)
	}
	code := sender.lastCode(t)
	if len(code) != 6 {
		t.Fatalf("code %q should have 6 digits", code)
	}
	if mr.HGet("otp:+919876543210", "hash") == code {
		t.Fatal("code stored in clear text")
	}

	if _, err := svc.Verify(ctx, phone, wrongCode(code)); !errors.Is(err, auth.ErrOTPInvalid) {
		t.Fatalf("wrong code: %v", err)
	}
	if got, err := svc.Verify(ctx, "+91 98765 43210", code); err != nil || got != phone {
		t.Fatalf("verify = %q, %v", got, err)
	}
	if _, err := svc.Verify(ctx, phone, code); !errors.Is(err, auth.ErrOTPExpired) {
		t.Fatalf("second verify should fail, got %v", err)
	}
}

func TestOTPExpiresInRedis(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	sender := &captureSender{}
	svc := auth.NewOTPService(auth.NewRedisOTPStore(rdb), sender, auth.OTPConfig{CountryCode: "91"})

	phone, err := svc.Request(ctx, "+14155552671")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	code := sender.lastCode(t)
	mr.FastForward(6 * time.Minute)

	if _, err := svc.Verify(ctx, phone, code); !errors.Is(err, auth.ErrOTPExpired) {
		t.Fatalf("expired code: %v", err)
	}
	if _, err := svc.Verify(ctx, phone, wrongCode(code)); !errors.Is(err, auth.ErrOTPExpired) {
		t.Fatalf("wrong guess after expiry: %v", err)
	}
	if mr.Exists("otp:" + phone) {
		t.Fatal("expired key recreated by attempt counter")
	}
}

func TestOTPAttemptLimit(t *testing.T) {
	ctx := context.Background()
	sender := &captureSender{}
	svc := auth.NewOTPService(auth.NewMemoryOTPStore(nil), sender, auth.OTPConfig{MaxAttempts: 3, CountryCode: "91"})

	phone, err := svc.Request(ctx, "9876543210")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	code := sender.lastCode(t)
	for i := 0; i < 2; i++ {
		if _, err := svc.Verify(ctx, phone, wrongCode(code)); !errors.Is(err, auth.ErrOTPInvalid) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if _, err := svc.Verify(ctx, phone, wrongCode(code)); !errors.Is(err, auth.ErrOTPAttempts) {
		t.Fatalf("third attempt: %v", err)
	}
	if _, err := svc.Verify(ctx, phone, code); !errors.Is(err, auth.ErrOTPExpired) {
		t.Fatalf("code should be discarded, got %v", err)
	}
}

func TestOTPSendFailureDiscardsCode(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryOTPStore(nil)
	svc := auth.NewOTPService(store, &captureSender{err: errors.New("whatsapp down")}, auth.OTPConfig{CountryCode: "91"})

	if _, err := svc.Request(ctx, "9876543210"); err == nil {
		t.Fatal("expected send error")
	}
	if _, err := store.Load(ctx, "+919876543210"); !errors.Is(err, auth.ErrOTPExpired) {
		t.Fatalf("code should not be pending, got %v", err)
	}
	if _, err := svc.Request(ctx, "123"); !errors.Is(err, utils.ErrInvalidPhone) {
		t.Fatalf("bad phone: %v", err)
	}
}

func TestMemoryOTPStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	store := auth.NewMemoryOTPStore(func() time.Time { return now })

	if err := store.Save(ctx, "+919876543210", "h", 5*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if n, err := store.IncrAttempts(ctx, "+919876543210"); err != nil || n != 1 {
		t.Fatalf("incr = %d, %v", n, err)
	}
	now = now.Add(5 * time.Minute)
	if _, err := store.Load(ctx, "+919876543210"); !errors.Is(err, auth.ErrOTPExpired) {
		t.Fatalf("load after ttl: %v", err)
	}
	if _, err := store.IncrAttempts(ctx, "+919876543210"); !errors.Is(err, auth.ErrOTPExpired) {
		t.Fatalf("incr after ttl: %v", err)
	}
}

// gatedStore holds every Load until n callers have loaded, so
// concurrent verifications all read the code before any consumes it.
type gatedStore struct {
	auth.OTPStore
	loaded sync.WaitGroup
}

func newGatedStore(inner auth.OTPStore, n int) *gatedStore {
	g := &gatedStore{OTPStore: inner}
	g.loaded.Add(n)
	return g
}

func (g *gatedStore) Load(ctx context.Context, phone string) (auth.OTPEntry, error) {
	e, err := g.OTPStore.Load(ctx, phone)
	g.loaded.Done()
	g.loaded.Wait()
	return e, err
}

func TestOTPConcurrentVerifySucceedsOnce(t *testing.T) {
	_, rdb := newRedis(t)
	stores := map[string]auth.OTPStore{
		"redis":  auth.NewRedisOTPStore(rdb),
		"memory": auth.NewMemoryOTPStore(nil),
	}
	for name, inner := range stores {
		t.Run(name, func(t *testing.T) {
			const callers = 4
			ctx := context.Background()
			sender := &captureSender{}
			issue := auth.NewOTPService(inner, sender, auth.OTPConfig{CountryCode: "91"})
			phone, err := issue.Request(ctx, "9876543210")
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			code := sender.lastCode(t)

			svc := auth.NewOTPService(newGatedStore(inner, callers), sender, auth.OTPConfig{CountryCode: "91"})
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				verified int
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.Verify(ctx, phone, code)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						verified++
					} else if !errors.Is(err, auth.ErrOTPExpired) {
						t.Errorf("verify: %v", err)
					}
				}()
			}
			wg.Wait()
			if verified != 1 {
				t.Fatalf("code verified %d times, want 1", verified)
			}
		})
	}
}

func TestOTPConsumeRequiresCurrentHash(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryOTPStore(nil)
	if err := store.Save(ctx, "+919876543210", "old", 5*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "+919876543210", "new", 5*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ok, err := store.Consume(ctx, "+919876543210", "old"); err != nil || ok {
		t.Fatalf("consume replaced code = %v, %v", ok, err)
	}
	if ok, err := store.Consume(ctx, "+919876543210", "new"); err != nil || !ok {
		t.Fatalf("consume current code = %v, %v", ok, err)
	}
	if ok, _ := store.Consume(ctx, "+919876543210", "new"); ok {
		t.Fatal("code consumed twice")
	}
}

func TestOTPResolver(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUsers()
	sender := &captureSender{}
	svc := auth.NewOTPService(auth.NewMemoryOTPStore(nil), sender, auth.OTPConfig{CountryCode: "91"})
	r := auth.NewOTPResolver(users, svc)

	if _, err := svc.Request(ctx, "9876543210"); err != nil {
		t.Fatalf("request: %v", err)
	}
	first, err := r.Resolve(ctx, auth.Credentials{Phone: "9876543210", Code: sender.lastCode(t), Name: "Asha"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.UserID == 0 || first.Name != "Asha" || first.IsAdmin {
		t.Fatalf("identity = %+v", first)
	}

	if _, err := svc.Request(ctx, "+919876543210"); err != nil {
		t.Fatalf("request: %v", err)
	}
	again, err := r.Resolve(ctx, auth.Credentials{Phone: "+919876543210", Code: sender.lastCode(t)})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.UserID != first.UserID {
		t.Fatalf("second sign-in created user %d, want %d", again.UserID, first.UserID)
	}

	if _, err := r.Resolve(ctx, auth.Credentials{Phone: "9876543210", Code: "000000"}); !errors.Is(err, auth.ErrOTPExpired) {
		t.Fatalf("resolve without pending code: %v", err)
	}
}

func TestPasswordResolver(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUsers()
	hash, err := utils.HashPassword("playtime2026", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	email := "Parent@Example.com"
	u := &model.User{Name: "Parent", Email: &email, PasswordHash: &hash, IsActive: true}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	r := auth.NewPasswordResolver(users)

	id, err := r.Resolve(ctx, auth.Credentials{Email: "parent@example.com", Password: "playtime2026"})
	if err != nil || id.UserID != u.ID {
		t.Fatalf("resolve = %+v, %v", id, err)
	}

	for _, cred := range []auth.Credentials{
		{Email: "parent@example.com", Password: "wrong"},
		{Email: "nobody@example.com", Password: "playtime2026"},
		{Email: "", Password: ""},
	} {
		if _, err := r.Resolve(ctx, cred); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Errorf("Resolve(%+v) = %v, want ErrInvalidCredentials", cred, err)
		}
	}

	if err := users.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := r.Resolve(ctx, auth.Credentials{Email: "parent@example.com", Password: "playtime2026"}); !errors.Is(err, auth.ErrUserBlocked) {
		t.Fatalf("blocked user: %v", err)
	}
}

func TestGoogleResolver(t *testing.T) {
	ctx := context.Background()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa: %v", err)
	}
	kf := func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
	sign := func(claims jwt.MapClaims) string {
		base := jwt.MapClaims{
			"iss": "https://accounts.google.com",
			"aud": "client-1",
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
		}
		for k, v := range claims {
			base[k] = v
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, base).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}

	users := memory.NewUsers()
	existing := "mum@example.com"
	owner := &model.User{Name: "Mum", Email: &existing, IsActive: true}
	if err := users.Create(ctx, owner); err != nil {
		t.Fatalf("create: %v", err)
	}
	r := auth.NewGoogleResolver(users, kf, []string{"client-1", "client-2"})

	// verified email links the existing account
	id, err := r.Resolve(ctx, auth.Credentials{IDToken: sign(jwt.MapClaims{
		"sub": "g-1", "email": existing, "email_verified": true, "name": "Mum G",
	})})
	if err != nil || id.UserID != owner.ID {
		t.Fatalf("link = %+v, %v", id, err)
	}
	linked, _ := users.GetByGoogleSub(ctx, "g-1")
	if linked == nil || linked.ID != owner.ID {
		t.Fatal("google subject not linked")
	}

	// unverified email creates a separate account without the email
	id, err = r.Resolve(ctx, auth.Credentials{IDToken: sign(jwt.MapClaims{
		"sub": "g-2", "email": existing, "email_verified": false, "name": "Dad",
	})})
	if err != nil || id.UserID == owner.ID || id.Name != "Dad" {
		t.Fatalf("create = %+v, %v", id, err)
	}

	bad := []jwt.MapClaims{
		{"sub": "g-3", "aud": "someone-else"},
		{"sub": "g-3", "iss": "https://evil.example.com"},
		{"sub": "g-3", "exp": time.Now().Add(-time.Minute).Unix()},
		{"sub": ""},
	}
	for i, claims := range bad {
		if _, err := r.Resolve(ctx, auth.Credentials{IDToken: sign(claims)}); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Errorf("case %d: %v, want ErrInvalidCredentials", i, err)
		}
	}

	hs, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "g-4"}).SignedString([]byte("x"))
	if _, err := r.Resolve(ctx, auth.Credentials{IDToken: hs}); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("hs256 token accepted: %v", err)
	}
}
