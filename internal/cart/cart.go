package cart

import (
	"errors"
	"fmt"
	"log"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/shop"
)

// StorageKey est la clé unique sous laquelle le panier entier est persisté.
const StorageKey = "cart"

var (
	ErrDuplicateItem = errors.New("cet article est déjà dans le panier")
	ErrInvalidItem   = errors.New("article invalide")
)

// Storage persiste le panier complet en un seul tableau JSON.
type Storage interface {
	Load() ([]models.CartItem, error)
	Save(items []models.CartItem) error
}

// Cart est le panier côté client. Chaque mutation réécrit tout le panier.
type Cart struct {
	storage Storage
	items   []models.CartItem
}

func Open(storage Storage) (*Cart, error) {
	items, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("lecture panier: %w", err)
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return &Cart{storage: storage, items: items}, nil
}

// Items retourne une copie, dans l'ordre d'ajout.
func (c *Cart) Items() []models.CartItem {
	out := make([]models.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Add(item models.CartItem) error {
	if reason := shop.ValidItem(item); reason != "" {
		return fmt.Errorf("%w: %s", ErrInvalidItem, reason)
	}
	for _, existing := range c.items {
		if existing.Name == item.Name {
			log.Printf("⚠️ %q est déjà dans le panier", item.Name)
			return ErrDuplicateItem
		}
	}
	c.items = append(c.items, item)
	log.Printf("🛒 Ajouté au panier: %s (%d centimes)", item.Name, item.AmountCents)
	return c.save()
}

// Remove retire la première occurrence de name. Absent : rien ne change.
func (c *Cart) Remove(name string) error {
	for i, item := range c.items {
		if item.Name == name {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return c.save()
}

// Total en centimes ; même calcul que celui refait au checkout.
func (c *Cart) Total() (int64, error) {
	if len(c.items) == 0 {
		return 0, nil
	}
	return shop.Total(c.items)
}

// Clear vide le panier. À n'appeler qu'après un paiement confirmé.
func (c *Cart) Clear() error {
	c.items = []models.CartItem{}
	return c.save()
}

func (c *Cart) save() error {
	if err := c.storage.Save(c.items); err != nil {
		return fmt.Errorf("écriture panier: %w", err)
	}
	return nil
}
