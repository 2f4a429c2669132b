package cache

import (
	"context"
	"testing"
	"time"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore compte les lectures faites sur le store réel. afterGet, s'il est
// posé, s'exécute une fois juste après la prochaine lecture.
type countingStore struct {
	*store.RedisProfileStore
	gets     int
	afterGet func()
}

func (s *countingStore) Get(ctx context.Context, email string) (*models.Profile, error) {
	s.gets++
	p, err := s.RedisProfileStore.Get(ctx, email)
	if hook := s.afterGet; hook != nil {
		s.afterGet = nil
		hook()
	}
	return p, err
}

func setup(t *testing.T) (*CachedProfiles, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := &countingStore{RedisProfileStore: store.NewRedisProfileStore(client)}
	return NewCachedProfiles(inner, client), inner, mr
}

func TestCachedProfiles_ReadThrough(t *testing.T) {
	c, inner, mr := setup(t)
	ctx := context.Background()

	created, err := c.Create(ctx, models.NewSkeletonProfile("a@x.com", time.Now().UTC()))
	require.NoError(t, err)
	require.True(t, created)

	for i := 0; i < 3; i++ {
		p, err := c.Get(ctx, "A@x.com")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", p.Email)
	}
	assert.Equal(t, 1, inner.gets)
	assert.True(t, mr.Exists("profile_cache:a@x.com"))
}

func TestCachedProfiles_UpdateInvalidates(t *testing.T) {
	c, inner, _ := setup(t)
	ctx := context.Background()

	_, err := c.Create(ctx, models.NewSkeletonProfile("a@x.com", time.Now().UTC()))
	require.NoError(t, err)
	_, err = c.Get(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = c.Update(ctx, "a@x.com", func(p *models.Profile) error {
		p.Phone = "0600000000"
		return nil
	})
	require.NoError(t, err)

	p, err := c.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "0600000000", p.Phone)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedProfiles_NotFoundIsNotCached(t *testing.T) {
	c, _, mr := setup(t)

	_, err := c.Get(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, mr.Exists("profile_cache:ghost@x.com"))
}

func TestCachedProfiles_WriteDuringReadIsNotCachedStale(t *testing.T) {
	c, inner, mr := setup(t)
	ctx := context.Background()

	_, err := c.Create(ctx, models.NewSkeletonProfile("a@x.com", time.Now().UTC()))
	require.NoError(t, err)

	// la lecture voit l'ancien profil, l'écriture passe avant qu'elle remplisse le cache
	inner.afterGet = func() {
		_, err := c.Update(ctx, "a@x.com", func(p *models.Profile) error {
			p.PasswordHash = "rotated"
			return nil
		})
		require.NoError(t, err)
	}
	p, err := c.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, p.PasswordHash)
	assert.False(t, mr.Exists("profile_cache:a@x.com"))

	p, err = c.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "rotated", p.PasswordHash)
	assert.True(t, mr.Exists("profile_cache:a@x.com"))

	p, err = c.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "rotated", p.PasswordHash)
	assert.Equal(t, 2, inner.gets)
}
