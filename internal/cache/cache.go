package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"

	"github.com/redis/go-redis/v9"
)

const (
	ProfileCacheTTL = 5 * time.Minute
	// genTTL garde le compteur d'écritures bien au-delà de la durée d'une lecture.
	genTTL = time.Hour
)

type profileStore interface {
	Get(ctx context.Context, email string) (*models.Profile, error)
	Create(ctx context.Context, p *models.Profile) (bool, error)
	Update(ctx context.Context, email string, fn func(*models.Profile) error) (*models.Profile, error)
}

// CachedProfiles met les lectures de profil en cache Redis devant un store plus
// lent (ScyllaDB). Les écritures vont au store, incrémentent un compteur
// d'écritures puis invalident l'entrée. Une lecture ne remplit le cache que si le
// compteur n'a pas bougé pendant qu'elle lisait le store (WATCH).
type CachedProfiles struct {
	inner profileStore
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedProfiles(inner profileStore, client *redis.Client) *CachedProfiles {
	return &CachedProfiles{inner: inner, redis: client, ttl: ProfileCacheTTL}
}

func cacheKey(email string) string {
	return "profile_cache:" + store.NormalizeEmail(email)
}

func genKey(email string) string {
	return "profile_cache_gen:" + store.NormalizeEmail(email)
}

func (c *CachedProfiles) Get(ctx context.Context, email string) (*models.Profile, error) {
	key := cacheKey(email)

	// 1. Essayer le cache Redis
	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var p models.Profile
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	// 2. Lire le store sous WATCH du compteur d'écritures
	var p *models.Profile
	var readErr error
	err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
		p, readErr = c.inner.Get(ctx, email)
		if readErr != nil {
			return nil
		}
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		// 3. Mettre en cache, sauf si une écriture a eu lieu entre-temps
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, genKey(email))

	switch {
	case readErr != nil:
		return nil, readErr
	case p == nil:
		log.Printf("⚠️ Cache Redis indisponible, lecture directe du profil %s: %v", email, err)
		return c.inner.Get(ctx, email)
	case errors.Is(err, redis.TxFailedErr):
		log.Printf("🔄 Profil %s modifié pendant la lecture, cache non rempli", email)
	case err != nil:
		log.Printf("⚠️ Cache profil non écrit pour %s: %v", email, err)
	}
	return p, nil
}

func (c *CachedProfiles) Create(ctx context.Context, p *models.Profile) (bool, error) {
	created, err := c.inner.Create(ctx, p)
	if created {
		c.invalidate(ctx, p.Email)
	}
	return created, err
}

func (c *CachedProfiles) Update(ctx context.Context, email string, fn func(*models.Profile) error) (*models.Profile, error) {
	p, err := c.inner.Update(ctx, email, fn)
	if err == nil {
		c.invalidate(ctx, email)
	}
	return p, err
}

func (c *CachedProfiles) invalidate(ctx context.Context, email string) {
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(email))
		pipe.Expire(ctx, genKey(email), genTTL)
		pipe.Del(ctx, cacheKey(email))
		return nil
	})
	if err != nil {
		log.Printf("⚠️ Invalidation cache profil échouée pour %s: %v", email, err)
	}
}
