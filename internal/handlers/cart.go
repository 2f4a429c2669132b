package handlers

import (
	"errors"
	"log"
	"net/http"

	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/shop"

	"github.com/gin-gonic/gin"
)

func (h *Handler) openCart(c *gin.Context) (*cart.Cart, bool) {
	ct, err := cart.Open(cart.NewSessionStorage(h.sessions, c.Request, c.Writer))
	if err != nil {
		log.Println("❌ Erreur lecture panier:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur décodage panier"})
		return nil, false
	}
	return ct, true
}

func respondCart(c *gin.Context, ct *cart.Cart) {
	total, err := ct.Total()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur calcul total"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": ct.Items(), "totalCents": total})
}

// GET /cart
func (h *Handler) GetCart(c *gin.Context) {
	ct, ok := h.openCart(c)
	if !ok {
		return
	}
	respondCart(c, ct)
}

// POST /cart/items
func (h *Handler) AddToCart(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c)
		return
	}
	input, err := shop.DecodeItem(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": shop.PublicMessage(err)})
		return
	}
	ct, ok := h.openCart(c)
	if !ok {
		return
	}

	if err := ct.Add(input); err != nil {
		switch {
		case errors.Is(err, cart.ErrDuplicateItem):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, cart.ErrInvalidItem):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Println("❌ Erreur écriture panier:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur sauvegarde panier"})
		}
		return
	}
	respondCart(c, ct)
}

// DELETE /cart/items/:name
func (h *Handler) RemoveFromCart(c *gin.Context) {
	ct, ok := h.openCart(c)
	if !ok {
		return
	}
	if err := ct.Remove(c.Param("name")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur sauvegarde panier"})
		return
	}
	respondCart(c, ct)
}

// DELETE /cart
func (h *Handler) ClearCart(c *gin.Context) {
	ct, ok := h.openCart(c)
	if !ok {
		return
	}
	if err := ct.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur sauvegarde panier"})
		return
	}
	respondCart(c, ct)
}
