package routes

import (
	"slices"
	"time"

	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Options struct {
	CORSOrigins []string
	// Limiter nil : pas de limitation (tests, Redis absent).
	Limiter *middleware.RateLimiter
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, tokens *utils.TokenIssuer, opts Options) {
	r.Use(middleware.RequestID())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	limit := func(rule middleware.Rule) gin.HandlerFunc {
		if opts.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return opts.Limiter.Limit(rule)
	}

	r.GET("/health", h.Health)
	r.GET("/config", h.GetConfig)

	// Paiement
	r.POST("/checkout", limit(middleware.CheckoutRule), h.Checkout)
	r.POST("/fulfill", h.Fulfill)
	r.POST("/webhook/stripe", h.StripeWebhook)

	// Profils
	r.POST("/register", limit(middleware.RegisterRule), h.Register)
	r.POST("/login", limit(middleware.LoginRule), h.Login)
	r.POST("/recover-password", limit(middleware.RecoverPasswordRule), h.RecoverPassword)

	auth := middleware.AuthRequired(tokens)
	profile := r.Group("/profile", auth)
	profile.GET("", h.GetProfile)
	profile.PUT("", h.UpdateProfile)
	r.POST("/update-purchase", auth, h.UpdatePurchase)
	r.POST("/send-file", auth, h.SendFile)

	// Catalogue
	r.GET("/files", h.ListFiles)

	// Panier (cookie de session)
	r.GET("/cart", h.GetCart)
	r.POST("/cart/items", h.AddToCart)
	r.DELETE("/cart/items/:name", h.RemoveFromCart)
	r.DELETE("/cart", h.ClearCart)
}

// corsConfig : avec "*" (ou sans liste), toutes les origines sont acceptées mais
// sans credentials, le cookie panier reste limité aux origines listées.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
