package projection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func storeAt(clock *fakeClock) *InMemoryStore {
	s := NewInMemoryStore()
	s.now = clock.now
	return s
}

func TestInMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Get(ctx, "qr")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "qr", []byte("ada"), 0))
	got, err := s.Get(ctx, "qr")
	require.NoError(t, err)
	assert.Equal(t, "ada", string(got))

	ok, err := s.Exists(ctx, "qr")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "qr"))
	ok, err = s.Exists(ctx, "qr")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	buf := []byte("grace")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'G'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'R'

	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "grace", string(again))
}

func TestInMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := storeAt(clock)

	require.NoError(t, s.Set(ctx, "revoked:jti-1", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "forever", []byte("1"), 0))

	clock.advance(59 * time.Second)
	ok, _ := s.Exists(ctx, "revoked:jti-1")
	assert.True(t, ok)

	clock.advance(time.Second)
	_, err := s.Get(ctx, "revoked:jti-1")
	assert.ErrorIs(t, err, ErrMiss, "an entry expires exactly at its deadline")
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryStore_PurgesOnWrite(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := storeAt(clock)

	for i := 0; i < purgeEvery-1; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("k%d", i), []byte("x"), time.Second))
	}
	clock.advance(time.Minute)
	require.NoError(t, s.Set(ctx, "fresh", []byte("x"), 0))

	s.mu.Lock()
	remaining := len(s.items)
	s.mu.Unlock()
	assert.Equal(t, 1, remaining)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	type row struct {
		Points int `json:"points"`
	}
	require.NoError(t, SetJSON(ctx, s, "row", row{Points: 7}, 0))

	var got row
	require.NoError(t, GetJSON(ctx, s, "row", &got))
	assert.Equal(t, 7, got.Points)

	require.NoError(t, s.Set(ctx, "bad", []byte("{"), 0))
	err := GetJSON(ctx, s, "bad", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestIdentityProjection_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	u := &domain.User{ID: uuid.New(), QRID: "QR-ABCD1234", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser}
	require.NoError(t, CacheIdentity(ctx, store, NewIdentityProjection(u)))

	got, err := GetIdentity(ctx, store, "QR-ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), got.UserID)
	assert.Equal(t, "Ada", got.Name)
	assert.NotEmpty(t, got.CachedAt)
}

func TestIdentityProjection_Invalidate(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	u := &domain.User{ID: uuid.New(), QRID: "QR-ABCD1234"}
	_ = CacheIdentity(ctx, store, NewIdentityProjection(u))
	_ = InvalidateIdentity(ctx, store, "QR-ABCD1234")

	_, err := GetIdentity(ctx, store, "QR-ABCD1234")
	assert.ErrorIs(t, err, ErrMiss)
}
