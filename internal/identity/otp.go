package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpLength = 6

// CodeStore keeps one pending code per phone number.
type CodeStore interface {
	Save(ctx context.Context, phone, code string, ttl time.Duration) error
	// Consume deletes the stored code when it matches and reports whether it did.
	Consume(ctx context.Context, phone, code string) (bool, error)
}

// CodeSender delivers a code to the owner of a phone number.
type CodeSender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the process log. It stands in for an SMS gateway.
type LogSender struct{}

func (LogSender) Send(_ context.Context, phone, code string) error {
	slog.Info("one-time code issued", "phone", phone, "code", code)
	return nil
}

// Codes issues and checks one-time sign-in codes.
type Codes struct {
	store    CodeStore
	sender   CodeSender
	ttl      time.Duration
	generate func() (string, error)
}

// NewCodes wires a code store and sender.
func NewCodes(store CodeStore, sender CodeSender, ttl time.Duration) *Codes {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if sender == nil {
		sender = LogSender{}
	}
	return &Codes{store: store, sender: sender, ttl: ttl, generate: func() (string, error) { return GenerateCode(otpLength) }}
}

// Issue creates a fresh code for phone, replacing any earlier one.
func (c *Codes) Issue(ctx context.Context, phone string) error {
	code, err := c.generate()
	if err != nil {
		return err
	}
	if err := c.store.Save(ctx, phone, code, c.ttl); err != nil {
		return err
	}
	return c.sender.Send(ctx, phone, code)
}

// Verify consumes code when it is the one issued for phone.
func (c *Codes) Verify(ctx context.Context, phone, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	return c.store.Consume(ctx, phone, code)
}

// GenerateCode returns a random numeric code of the given length.
func GenerateCode(length int) (string, error) {
	const charset = "0123456789"

	max := big.NewInt(int64(len(charset)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}

// RedisCodeStore keeps codes under otp:<phone> with a TTL.
type RedisCodeStore struct {
	client *redis.Client
}

func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func otpKey(phone string) string { return "otp:" + phone }

func (s *RedisCodeStore) Save(ctx context.Context, phone, code string, ttl time.Duration) error {
	return s.client.Set(ctx, otpKey(phone), code, ttl).Err()
}

func (s *RedisCodeStore) Consume(ctx context.Context, phone, code string) (bool, error) {
	stored, err := s.client.Get(ctx, otpKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}
	if err := s.client.Del(ctx, otpKey(phone)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// MemoryCodeStore is the in-process CodeStore used without Redis.
type MemoryCodeStore struct {
	mu    sync.Mutex
	now   func() time.Time
	codes map[string]memoryCode
}

type memoryCode struct {
	code    string
	expires time.Time
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{now: time.Now, codes: make(map[string]memoryCode)}
}

func (s *MemoryCodeStore) Save(_ context.Context, phone, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = memoryCode{code: code, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Consume(_ context.Context, phone, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[phone]
	if !ok {
		return false, nil
	}
	if s.now().After(stored.expires) {
		delete(s.codes, phone)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored.code), []byte(code)) != 1 {
		return false, nil
	}
	delete(s.codes, phone)
	return true, nil
}
