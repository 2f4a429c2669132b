package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"storefront_back_end/internal/services"
	"storefront_back_end/internal/shop"

	"github.com/gin-gonic/gin"
)

// POST /checkout
func (h *Handler) Checkout(c *gin.Context) {
	var req struct {
		Items json.RawMessage `json:"items"`
		Email string          `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide ou panier vide"})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.shop.Checkout(ctx, shop.CheckoutRequest{Items: req.Items, Email: req.Email})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clientSecret":    res.ClientSecret,
		"paymentIntentId": res.PaymentIntentID,
		"amountCents":     res.AmountCents,
		"currency":        res.Currency,
	})
}

// POST /fulfill : appelé par le front après confirmation du paiement.
func (h *Handler) Fulfill(c *gin.Context) {
	var req struct {
		Email           string         `json:"email"`
		PaymentIntentID string         `json:"paymentIntentId"`
		Files           []shop.FileRef `json:"files"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.shop.Fulfill(ctx, shop.FulfillmentRequest{
		Email:           req.Email,
		PaymentIntentID: req.PaymentIntentID,
		Files:           req.Files,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondFulfillment(c, res)
}

func respondFulfillment(c *gin.Context, res *shop.FulfillmentResult) {
	recorded := []string{}
	delivered := []string{}
	for _, f := range res.Files {
		if f.Recorded {
			recorded = append(recorded, f.FileID)
		}
		if f.Delivered {
			delivered = append(delivered, f.FileID)
		}
	}
	failed := res.Failed()
	if failed == nil {
		failed = []shop.FileOutcome{}
	}

	status := http.StatusOK
	if res.Partial() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"paymentIntentId": res.PaymentIntentID,
		"recorded":        recorded,
		"delivered":       delivered,
		"failed":          failed,
	})
}

// POST /webhook/stripe
func (h *Handler) StripeWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload échouée:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	event, err := h.webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Println("❌ Webhook Stripe refusé:", err)
		if errors.Is(err, services.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON invalide"})
		return
	}

	log.Printf("📥 Événement Stripe reçu : %s", event.Type)
	if event.Type != "payment_intent.succeeded" || event.Intent == nil {
		log.Printf("ℹ️ Événement ignoré : %s", event.Type)
		c.Status(http.StatusOK)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.shop.FulfillIntent(ctx, event.Intent)
	if err != nil {
		// métadonnées inexploitables : inutile que Stripe renvoie l'événement
		if shop.KindOf(err) == shop.KindValidation {
			log.Printf("⚠️ PaymentIntent %s non livrable: %v", event.Intent.ID, err)
			c.Status(http.StatusOK)
			return
		}
		respondError(c, err)
		return
	}
	if res.Partial() {
		log.Printf("⚠️ Webhook %s: livraison partielle (%d en échec)", event.Intent.ID, len(res.Failed()))
	}
	c.Status(http.StatusOK)
}
