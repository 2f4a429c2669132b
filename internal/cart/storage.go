package cart

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"storefront_back_end/internal/models"

	"github.com/gorilla/sessions"
)

// MemoryStorage garde le JSON du panier en mémoire.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemoryStorage) Load() ([]models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decode(m.data)
}

func (m *MemoryStorage) Save(items []models.CartItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

// SessionName est le nom du cookie de session qui porte le panier.
const SessionName = "storefront_session"

// SessionStorage range le panier dans la session gorilla de la requête,
// sous la clé StorageKey.
type SessionStorage struct {
	store sessions.Store
	r     *http.Request
	w     http.ResponseWriter
}

func NewSessionStorage(store sessions.Store, r *http.Request, w http.ResponseWriter) *SessionStorage {
	return &SessionStorage{store: store, r: r, w: w}
}

func (s *SessionStorage) Load() ([]models.CartItem, error) {
	session, err := s.store.Get(s.r, SessionName)
	if err != nil {
		// cookie illisible (clé changée) : on repart d'un panier vide
		return []models.CartItem{}, nil
	}
	raw, _ := session.Values[StorageKey].(string)
	return decode([]byte(raw))
}

func (s *SessionStorage) Save(items []models.CartItem) error {
	session, _ := s.store.Get(s.r, SessionName)
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	session.Values[StorageKey] = string(data)
	return session.Save(s.r, s.w)
}

func decode(data []byte) ([]models.CartItem, error) {
	if len(data) == 0 {
		return []models.CartItem{}, nil
	}
	var items []models.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("panier illisible: %w", err)
	}
	return items, nil
}

// NewCookieStore crée le store de sessions signé par secret.
func NewCookieStore(secret string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
