package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"storefront_back_end/internal/services"
	"storefront_back_end/internal/shop"
	"storefront_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

// WebhookParser décode et authentifie un événement du prestataire de paiement.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*services.WebhookEvent, error)
}

// Handler regroupe les dépendances des routes HTTP.
type Handler struct {
	shop           *shop.Service
	webhooks       WebhookParser
	tokens         *utils.TokenIssuer
	sessions       sessions.Store
	publishableKey string
	timeout        time.Duration
}

type Config struct {
	PublishableKey string
	Timeout        time.Duration
}

func New(svc *shop.Service, webhooks WebhookParser, tokens *utils.TokenIssuer, store sessions.Store, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Handler{
		shop:           svc,
		webhooks:       webhooks,
		tokens:         tokens,
		sessions:       store,
		publishableKey: cfg.PublishableKey,
		timeout:        cfg.Timeout,
	}
}

func (h *Handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

var kindStatus = map[shop.Kind]int{
	shop.KindValidation:   http.StatusBadRequest,
	shop.KindNotFound:     http.StatusNotFound,
	shop.KindConflict:     http.StatusConflict,
	shop.KindUnauthorized: http.StatusUnauthorized,
	shop.KindForbidden:    http.StatusForbidden,
	shop.KindProvider:     http.StatusBadGateway,
	shop.KindInternal:     http.StatusInternalServerError,
}

// respondError traduit une erreur du workflow en {error} sans détail interne.
func respondError(c *gin.Context, err error) {
	kind := shop.KindOf(err)
	status := kindStatus[kind]
	if kind == shop.KindInternal {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}

	body := gin.H{"error": shop.PublicMessage(err)}
	var cartErr *shop.CartError
	if errors.As(err, &cartErr) && len(cartErr.Problems) > 0 {
		body["problems"] = cartErr.Problems
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
}

// GetConfig expose la clé publique Stripe au front.
func (h *Handler) GetConfig(c *gin.Context) {
	if h.publishableKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Clé publique Stripe non configurée"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publishableKey": h.publishableKey})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
