package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/routes"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/shop"
	"storefront_back_end/internal/store"
	"storefront_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	if cfg.StripeSecretKey == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	payments := services.NewStripePayments(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	log.Println("✅ Stripe initialisé")

	if cfg.SessionSecret == "" {
		log.Fatal("❌ SESSION_SECRET manquant dans .env")
	}
	if cfg.JWTSecret == "" {
		log.Println("⚠️ JWT_SECRET manquant, secret de développement utilisé")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	redisClient, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		log.Fatal("❌ ", err)
	}
	defer redisClient.Close()

	var profiles shop.ProfileStore
	switch cfg.ProfileBackend {
	case "scylla":
		session, err := database.ConnectScylla(cfg)
		if err != nil {
			log.Fatal("❌ ", err)
		}
		defer session.Close()
		profiles = cache.NewCachedProfiles(store.NewScyllaProfileStore(session), redisClient)
		log.Println("✅ Profils stockés dans ScyllaDB (cache Redis)")
	default:
		profiles = store.NewRedisProfileStore(redisClient)
		log.Println("✅ Profils stockés dans Redis")
	}

	minioClient, err := database.ConnectMinIO(ctx, cfg)
	if err != nil {
		log.Fatal("❌ ", err)
	}

	var index shop.PurchaseIndex
	elastic, err := database.ConnectElastic(cfg)
	if err != nil {
		log.Println("⚠️ Elasticsearch indisponible, indexation désactivée:", err)
	} else if elastic != nil {
		index = services.NewElasticPurchaseIndex(elastic)
	}

	mailer, err := services.NewMailer(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		Attempts: cfg.MailRetryAttempts,
		Delay:    cfg.MailRetryDelay,
	})
	if err != nil {
		log.Fatal("❌ ", err)
	}

	svc := shop.NewService(shop.Deps{
		Payments: payments,
		Profiles: profiles,
		Mailer:   mailer,
		Files:    services.NewMinioFiles(minioClient, cfg.MinioBucket, cfg.DownloadURLTTL),
		Index:    index,
	}, shop.WithCurrency(cfg.Currency))

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	h := handlers.New(svc, payments, tokens, cart.NewCookieStore(cfg.SessionSecret), handlers.Config{
		PublishableKey: cfg.StripePublishableKey,
		Timeout:        cfg.RequestTimeout,
	})

	r := gin.Default()
	routes.RegisterRoutes(r, h, tokens, routes.Options{
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     middleware.NewRateLimiter(redisClient),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Println("🚀 Serveur lancé sur le port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ ", err)
		}
	}()

	stop, release := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer release()
	<-stop.Done()

	log.Println("🔌 Arrêt du serveur...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("❌ Arrêt forcé:", err)
	}
}
