package security

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizer_Clean(t *testing.T) {
	s := NewSanitizer(0)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  hello world  ", "hello world"},
		{"arabic untouched", "مرحبا بك", "مرحبا بك"},
		{"script removed", "hi<script>alert(1)</script>", "hi"},
		{"tags stripped", "<b>bold</b> text", "bold text"},
		{"javascript url", "click javascript:alert(1) now", "click  now"},
		{"inline handler", "x onclick=steal() y", "x  y"},
		{"html data url", "see data:text/html;base64,xyz", "see"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Clean(tt.in))
		})
	}
}

func TestSanitizer_TruncatesRunes(t *testing.T) {
	s := NewSanitizer(5)
	assert.Equal(t, "مرحبا", s.Clean("مرحبا بالعالم"))
	assert.Equal(t, "abc", s.CleanN("abcdef", 3))
	assert.Len(t, []rune(NewSanitizer(0).Clean(strings.Repeat("a", 3000))), DefaultMaxInputLength)
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("abc"), ErrPasswordTooShort)
	assert.NoError(t, ValidatePassword("abcd"))
	assert.NoError(t, ValidatePassword("كلمة"))
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("x", 129)), ErrPasswordTooLong)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, NeedsRehash(hash))
	assert.False(t, VerifyPassword("s3cret", ""))

	long := strings.Repeat("a", 100)
	longHash, err := HashPassword(long)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(long, longHash))
	assert.False(t, VerifyPassword(long[:80], longHash), "bytes past 72 still count")
}

func TestVerifyPassword_LegacyDigest(t *testing.T) {
	sum := sha256.Sum256([]byte("old-pass"))
	legacy := hex.EncodeToString(sum[:])

	assert.True(t, VerifyPassword("old-pass", legacy))
	assert.False(t, VerifyPassword("other", legacy))
	assert.True(t, NeedsRehash(legacy))
}

func TestRateLimiter_BlocksAfterBudget(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Minute, 5*time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("1.2.3.4")
		require.True(t, ok, "request %d", i)
	}

	ok, retry := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 5*time.Minute, retry)

	other, _ := rl.Allow("5.6.7.8")
	assert.True(t, other, "clients are limited independently")

	// Tokens refill, but the block holds.
	now = now.Add(2 * time.Minute)
	ok, retry = rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 3*time.Minute, retry)

	now = now.Add(3 * time.Minute)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)
}

func TestRateLimiter_NoBlockReportsDelay(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, time.Minute, 0)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("c")
	require.True(t, ok)
	ok, retry := rl.Allow("c")
	assert.False(t, ok)
	assert.InDelta(t, time.Minute.Seconds(), retry.Seconds(), 1)
}

func TestRateLimiter_Prune(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, time.Minute, time.Hour)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	rl.Allow("blocked")
	rl.Allow("blocked")
	require.Equal(t, 2, rl.Clients())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, rl.Prune())
	assert.Equal(t, 1, rl.Clients(), "blocked clients are kept")
}

func TestRateLimiter_Reconfigure(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, time.Minute, 0)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("old")
	require.True(t, ok)

	rl.Reconfigure(5, time.Minute, time.Hour)
	for i := 0; i < 5; i++ {
		ok, _ := rl.Allow("new")
		require.True(t, ok, "request %d", i)
	}
	ok, retry := rl.Allow("new")
	assert.False(t, ok)
	assert.Equal(t, time.Hour, retry)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "9.9.9.9")
	assert.Equal(t, "9.9.9.9", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 8.8.8.8 , 10.0.0.2")
	assert.Equal(t, "8.8.8.8", ClientIP(r))
}
