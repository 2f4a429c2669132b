package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront_back_end/internal/models"

	"github.com/gocql/gocql"
)

// ScyllaSchema crée la table utilisée par ScyllaProfileStore.
const ScyllaSchema = `CREATE TABLE IF NOT EXISTS profiles (
	email text PRIMARY KEY,
	data text,
	version bigint
)`

// ScyllaProfileStore stocke le JSON du profil avec un numéro de version ;
// les écritures passent par des transactions légères (IF ...).
type ScyllaProfileStore struct {
	session *gocql.Session
}

func NewScyllaProfileStore(session *gocql.Session) *ScyllaProfileStore {
	return &ScyllaProfileStore{session: session}
}

func (s *ScyllaProfileStore) Get(ctx context.Context, email string) (*models.Profile, error) {
	p, _, err := s.read(ctx, NormalizeEmail(email))
	return p, err
}

func (s *ScyllaProfileStore) read(ctx context.Context, key string) (*models.Profile, int64, error) {
	var data string
	var version int64
	err := s.session.Query(`SELECT data, version FROM profiles WHERE email = ?`, key).
		WithContext(ctx).Scan(&data, &version)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("lecture scylla: %w", err)
	}
	p, err := decodeProfile([]byte(data))
	return p, version, err
}

func (s *ScyllaProfileStore) Create(ctx context.Context, p *models.Profile) (bool, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("sérialisation profil: %w", err)
	}
	existing := map[string]interface{}{}
	applied, err := s.session.Query(`INSERT INTO profiles (email, data, version) VALUES (?, ?, 1) IF NOT EXISTS`,
		NormalizeEmail(p.Email), string(data)).WithContext(ctx).MapScanCAS(existing)
	if err != nil {
		return false, fmt.Errorf("écriture scylla: %w", err)
	}
	return applied, nil
}

func (s *ScyllaProfileStore) Update(ctx context.Context, email string, fn func(*models.Profile) error) (*models.Profile, error) {
	key := NormalizeEmail(email)
	for i := 0; i < MaxCASRetries; i++ {
		p, version, err := s.read(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := fn(p); err != nil {
			return nil, err
		}
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("sérialisation profil: %w", err)
		}
		current := map[string]interface{}{}
		applied, err := s.session.Query(`UPDATE profiles SET data = ?, version = ? WHERE email = ? IF version = ?`,
			string(data), version+1, key, version).WithContext(ctx).MapScanCAS(current)
		if err != nil {
			return nil, fmt.Errorf("écriture scylla: %w", err)
		}
		if applied {
			return p, nil
		}
	}
	return nil, ErrConflict
}
