package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront_back_end/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisProfileStore range chaque profil sous la clé profile:<email>.
type RedisProfileStore struct {
	client *redis.Client
}

func NewRedisProfileStore(client *redis.Client) *RedisProfileStore {
	return &RedisProfileStore{client: client}
}

func profileKey(email string) string {
	return "profile:" + NormalizeEmail(email)
}

func (s *RedisProfileStore) Get(ctx context.Context, email string) (*models.Profile, error) {
	data, err := s.client.Get(ctx, profileKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture redis: %w", err)
	}
	return decodeProfile(data)
}

// Create écrit le profil seulement si la clé n'existe pas encore (SETNX).
func (s *RedisProfileStore) Create(ctx context.Context, p *models.Profile) (bool, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("sérialisation profil: %w", err)
	}
	created, err := s.client.SetNX(ctx, profileKey(p.Email), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("écriture redis: %w", err)
	}
	return created, nil
}

// Update applique fn dans une transaction optimiste WATCH/MULTI.
// Si fn renvoie une erreur, rien n'est écrit et l'erreur est retournée telle quelle.
func (s *RedisProfileStore) Update(ctx context.Context, email string, fn func(*models.Profile) error) (*models.Profile, error) {
	key := profileKey(email)
	var updated *models.Profile

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lecture redis: %w", err)
		}
		p, err := decodeProfile(data)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		out, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("sérialisation profil: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = p
		return nil
	}

	for i := 0; i < MaxCASRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

func decodeProfile(data []byte) (*models.Profile, error) {
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("décodage profil: %w", err)
	}
	if p.PurchaseHistory == nil {
		p.PurchaseHistory = []models.PurchaseRecord{}
	}
	return &p, nil
}
