package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/notify"
	"github.com/iliyamo/playhouse-booking/internal/utils"
)

// OTPEntry is a pending one-time code.  Only the hash of the code is kept.
type OTPEntry struct {
	Hash     string
	Attempts int
}

// OTPStore keeps pending codes keyed by phone number.  Load returns
// ErrOTPExpired when nothing is pending.  Consume removes the pending
// code only if its hash still equals hash, and reports whether this call
// removed it; of concurrent callers at most one gets true.
type OTPStore interface {
	Save(ctx context.Context, phone, hash string, ttl time.Duration) error
	Load(ctx context.Context, phone string) (OTPEntry, error)
	IncrAttempts(ctx context.Context, phone string) (int, error)
	Consume(ctx context.Context, phone, hash string) (bool, error)
	Delete(ctx context.Context, phone string) error
}

// RedisOTPStore keeps each code in a hash that expires with the code.
type RedisOTPStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisOTPStore(rdb *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{rdb: rdb, prefix: "otp"}
}

func (s *RedisOTPStore) key(phone string) string { return s.prefix + ":" + phone }

func (s *RedisOTPStore) Save(ctx context.Context, phone, hash string, ttl time.Duration) error {
	key := s.key(phone)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, "hash", hash, "attempts", 0)
		p.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisOTPStore) Load(ctx context.Context, phone string) (OTPEntry, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(phone)).Result()
	if err != nil {
		return OTPEntry{}, err
	}
	if vals["hash"] == "" {
		return OTPEntry{}, ErrOTPExpired
	}
	attempts, _ := strconv.Atoi(vals["attempts"])
	return OTPEntry{Hash: vals["hash"], Attempts: attempts}, nil
}

// incrScript bumps the attempt counter only while the code exists, so an
// expired key is never recreated without a TTL.
var incrScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

func (s *RedisOTPStore) IncrAttempts(ctx context.Context, phone string) (int, error) {
	n, err := incrScript.Run(ctx, s.rdb, []string{s.key(phone)}).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrOTPExpired
	}
	return n, nil
}

var consumeScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "hash") ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`)

func (s *RedisOTPStore) Consume(ctx context.Context, phone, hash string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{s.key(phone)}, hash).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisOTPStore) Delete(ctx context.Context, phone string) error {
	return s.rdb.Del(ctx, s.key(phone)).Err()
}

// MemoryOTPStore is used when Redis is unavailable.  Codes do not
// survive a restart and are not shared between instances.
type MemoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]memoryOTP
	now     func() time.Time
}

type memoryOTP struct {
	OTPEntry
	expires time.Time
}

func NewMemoryOTPStore(now func() time.Time) *MemoryOTPStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryOTPStore{entries: make(map[string]memoryOTP), now: now}
}

func (s *MemoryOTPStore) Save(_ context.Context, phone, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[phone] = memoryOTP{OTPEntry: OTPEntry{Hash: hash}, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryOTPStore) live(phone string) (memoryOTP, bool) {
	e, ok := s.entries[phone]
	if !ok {
		return memoryOTP{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, phone)
		return memoryOTP{}, false
	}
	return e, true
}

func (s *MemoryOTPStore) Load(_ context.Context, phone string) (OTPEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok {
		return OTPEntry{}, ErrOTPExpired
	}
	return e.OTPEntry, nil
}

func (s *MemoryOTPStore) IncrAttempts(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok {
		return 0, ErrOTPExpired
	}
	e.Attempts++
	s.entries[phone] = e
	return e.Attempts, nil
}

func (s *MemoryOTPStore) Consume(_ context.Context, phone, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok || e.Hash != hash {
		return false, nil
	}
	delete(s.entries, phone)
	return true, nil
}

func (s *MemoryOTPStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, phone)
	return nil
}

type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	Length      int
	CountryCode string
}

// OTPService issues and checks WhatsApp login codes.
type OTPService struct {
	store  OTPStore
	sender notify.Sender
	conf   OTPConfig
}

func NewOTPService(store OTPStore, sender notify.Sender, conf OTPConfig) *OTPService {
	if conf.TTL <= 0 {
		conf.TTL = 5 * time.Minute
	}
	if conf.MaxAttempts <= 0 {
		conf.MaxAttempts = 5
	}
	if conf.Length <= 0 {
		conf.Length = 6
	}
	return &OTPService{store: store, sender: sender, conf: conf}
}

// TTL is how long a requested code stays valid.
func (s *OTPService) TTL() time.Duration { return s.conf.TTL }

// Request generates a fresh code for phone, replacing any pending one,
// and sends it.  The normalised phone number is returned.
func (s *OTPService) Request(ctx context.Context, phone string) (string, error) {
	phone, err := utils.NormalizePhone(phone, s.conf.CountryCode)
	if err != nil {
		return "", err
	}
	code, err := randomDigits(s.conf.Length)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if err := s.store.Save(ctx, phone, utils.HashToken(code), s.conf.TTL); err != nil {
		return "", fmt.Errorf("save code: %w", err)
	}
	if err := s.sender.Send(ctx, phone, notify.OTPMessage(code, s.conf.TTL)); err != nil {
		_ = s.store.Delete(ctx, phone)
		return "", fmt.Errorf("send code: %w", err)
	}
	return phone, nil
}

// Verify checks code against the pending one.  A code verifies at most
// once, even under concurrent calls; after MaxAttempts wrong guesses it
// is discarded.
func (s *OTPService) Verify(ctx context.Context, phone, code string) (string, error) {
	phone, err := utils.NormalizePhone(phone, s.conf.CountryCode)
	if err != nil {
		return "", err
	}
	entry, err := s.store.Load(ctx, phone)
	if err != nil {
		return "", err
	}
	if entry.Attempts >= s.conf.MaxAttempts {
		_ = s.store.Delete(ctx, phone)
		return "", ErrOTPAttempts
	}
	hash := utils.HashToken(code)
	if subtle.ConstantTimeCompare([]byte(entry.Hash), []byte(hash)) != 1 {
		n, err := s.store.IncrAttempts(ctx, phone)
		if err != nil {
			return "", err
		}
		if n >= s.conf.MaxAttempts {
			_ = s.store.Delete(ctx, phone)
			return "", ErrOTPAttempts
		}
		return "", ErrOTPInvalid
	}
	consumed, err := s.store.Consume(ctx, phone, hash)
	if err != nil {
		return "", err
	}
	if !consumed {
		return "", ErrOTPExpired
	}
	return phone, nil
}

func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

// OTPResolver signs users in with a verified WhatsApp code, creating the
// account on first sign-in.
type OTPResolver struct {
	users Users
	otp   *OTPService
}

func NewOTPResolver(users Users, otp *OTPService) *OTPResolver {
	return &OTPResolver{users: users, otp: otp}
}

func (r *OTPResolver) Resolve(ctx context.Context, cred Credentials) (Identity, error) {
	phone, err := r.otp.Verify(ctx, cred.Phone, cred.Code)
	if err != nil {
		return Identity{}, err
	}
	u, err := r.users.GetByPhone(ctx, phone)
	if err == nil {
		return IdentityOf(u)
	}
	if !isNotFound(err) {
		return Identity{}, err
	}

	name := cred.Name
	if name == "" {
		name = "Parent"
	}
	u = &model.User{Name: name, Phone: &phone, IsActive: true}
	if err := r.users.Create(ctx, u); err != nil {
		return Identity{}, err
	}
	return IdentityOf(u)
}
