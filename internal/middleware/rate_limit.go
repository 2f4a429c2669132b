package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Rule décrit une limite : au-delà de MaxAttempts réponses comptées dans Window,
// la clé est bloquée pendant Cooldown.
type Rule struct {
	Name        string
	MaxAttempts int
	Window      time.Duration
	Cooldown    time.Duration
	// Key identifie l'appelant ; "" désactive la limite pour la requête.
	Key func(c *gin.Context) string
	// Counts dit si la réponse compte comme une tentative.
	Counts func(status int) bool
	// ResetOn remet le compteur à zéro (ex. connexion réussie). 0 : jamais.
	ResetOn int
}

var (
	LoginRule = Rule{
		Name: "login", MaxAttempts: 5, Window: 15 * time.Minute, Cooldown: 15 * time.Minute,
		Key:     EmailFromBody,
		Counts:  func(status int) bool { return status == http.StatusUnauthorized },
		ResetOn: http.StatusOK,
	}
	RegisterRule = Rule{
		Name: "register", MaxAttempts: 3, Window: 30 * time.Minute, Cooldown: 30 * time.Minute,
		Key:    ClientIP,
		Counts: func(status int) bool { return status == http.StatusCreated },
	}
	RecoverPasswordRule = Rule{
		Name: "recover_password", MaxAttempts: 3, Window: 10 * time.Minute, Cooldown: 10 * time.Minute,
		Key:    EmailFromBody,
		Counts: func(status int) bool { return status < http.StatusInternalServerError },
	}
	CheckoutRule = Rule{
		Name: "checkout", MaxAttempts: 30, Window: time.Minute, Cooldown: time.Minute,
		Key:    ClientIP,
		Counts: func(int) bool { return true },
	}
)

// RateLimiter compte les tentatives dans Redis.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func (l *RateLimiter) Limit(rule Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := rule.Key(c)
		if id == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("%s_attempts:%s", rule.Name, id)
		cooldownKey := fmt.Sprintf("%s_cooldown:%s", rule.Name, id)

		if ttl, err := l.client.TTL(ctx, cooldownKey).Result(); err == nil && ttl > 0 {
			tooMany(c, ttl)
			return
		}

		attempts, _ := l.client.Get(ctx, key).Int()
		if attempts >= rule.MaxAttempts {
			pipe := l.client.TxPipeline()
			pipe.Set(ctx, cooldownKey, "1", rule.Cooldown)
			pipe.Del(ctx, key)
			if _, err := pipe.Exec(ctx); err != nil {
				log.Printf("⚠️ Rate limit %s: Redis indisponible: %v", rule.Name, err)
			}
			log.Printf("⚠️ Rate limit %s atteint pour %s", rule.Name, id)
			tooMany(c, rule.Cooldown)
			return
		}

		c.Next()

		status := c.Writer.Status()
		switch {
		case rule.ResetOn != 0 && status == rule.ResetOn:
			l.client.Del(ctx, key, cooldownKey)
		case rule.Counts(status):
			pipe := l.client.TxPipeline()
			pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, rule.Window)
			if _, err := pipe.Exec(ctx); err != nil {
				log.Printf("⚠️ Rate limit %s: Redis indisponible: %v", rule.Name, err)
			}
		}
	}
}

func tooMany(c *gin.Context, retryAfter time.Duration) {
	minutes := int(retryAfter.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       fmt.Sprintf("Trop de tentatives. Réessayez dans %d minute(s)", minutes),
		"retry_after": int(retryAfter.Seconds()),
	})
	c.Abort()
}

// EmailFromBody lit le champ email du JSON sans consommer le body.
func EmailFromBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	bodyBytes, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	if err != nil {
		return ""
	}

	var input struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(bodyBytes, &input); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(input.Email))
}

func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}
