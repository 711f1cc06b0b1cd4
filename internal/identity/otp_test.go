package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	phone, code string
}

func (s *recordingSender) Send(_ context.Context, phone, code string) error {
	s.phone, s.code = phone, code
	return nil
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestGenerateCode_UsesEveryDigit(t *testing.T) {
	counts := map[rune]int{}
	for i := 0; i < 2000; i++ {
		code, err := GenerateCode(6)
		require.NoError(t, err)
		for _, r := range code {
			counts[r]++
		}
	}
	require.Len(t, counts, 10)
	for digit, n := range counts {
		assert.InDelta(t, 1200, n, 250, "digit %c", digit)
	}
}

func TestRedisCodeStore_SaveAndConsume(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	store := NewRedisCodeStore(db)
	ctx := context.Background()

	mock.ExpectSet("otp:9999900000", "123456", 5*time.Minute).SetVal("OK")
	require.NoError(t, store.Save(ctx, "9999900000", "123456", 5*time.Minute))

	mock.ExpectGet("otp:9999900000").SetVal("123456")
	mock.ExpectDel("otp:9999900000").SetVal(1)
	ok, err := store.Consume(ctx, "9999900000", "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCodeStore_WrongOrMissingCode(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	store := NewRedisCodeStore(db)
	ctx := context.Background()

	mock.ExpectGet("otp:1").SetVal("123456")
	ok, err := store.Consume(ctx, "1", "000000")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectGet("otp:2").RedisNil()
	ok, err = store.Consume(ctx, "2", "123456")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectGet("otp:3").SetErr(errors.New("connection refused"))
	_, err = store.Consume(ctx, "3", "123456")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, redis.Nil))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCodeStore_Expiry(t *testing.T) {
	store := NewMemoryCodeStore()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "1", "111111", time.Minute))
	ok, _ := store.Consume(ctx, "1", "222222")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = store.Consume(ctx, "1", "111111")
	assert.False(t, ok)
}

func TestCodes_IssueThenVerifyOnce(t *testing.T) {
	sender := &recordingSender{}
	codes := NewCodes(NewMemoryCodeStore(), sender, time.Minute)
	ctx := context.Background()

	require.NoError(t, codes.Issue(ctx, "9999900000"))
	assert.Equal(t, "9999900000", sender.phone)
	assert.Len(t, sender.code, otpLength)

	ok, err := codes.Verify(ctx, "9999900000", sender.code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = codes.Verify(ctx, "9999900000", sender.code)
	require.NoError(t, err)
	assert.False(t, ok, "a code is consumed on first use")

	ok, _ = codes.Verify(ctx, "9999900000", "")
	assert.False(t, ok)
}
