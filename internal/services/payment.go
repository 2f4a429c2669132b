package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront_back_end/internal/shop"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/webhook"
)

// ErrInvalidSignature : le corps du webhook ne correspond pas à la signature Stripe.
var ErrInvalidSignature = errors.New("signature Stripe invalide")

// intentAPI isole les appels paymentintent pour pouvoir les remplacer en test.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeIntents struct{}

func (stripeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (stripeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

// StripePayments implémente shop.PaymentProvider. Les appels passent par un
// disjoncteur : une panne Stripe coupe les appels au lieu de bloquer les checkouts.
type StripePayments struct {
	api           intentAPI
	breaker       *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
	webhookSecret string
}

func NewStripePayments(secretKey, webhookSecret string) *StripePayments {
	stripe.Key = secretKey
	if secretKey == "" {
		log.Println("⚠️ STRIPE_SECRET_KEY manquant, les paiements échoueront")
	}
	return newStripePayments(stripeIntents{}, webhookSecret)
}

func newStripePayments(api intentAPI, webhookSecret string) *StripePayments {
	settings := gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("⚡ Disjoncteur %s: %s → %s", name, from, to)
		},
		IsSuccessful: isBreakerSuccess,
	}
	return &StripePayments{
		api:           api,
		breaker:       gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](settings),
		webhookSecret: webhookSecret,
	}
}

// isBreakerSuccess : une erreur 4xx de Stripe vient de la requête, pas d'une panne.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode > 0 && se.HTTPStatusCode < 500
	}
	return false
}

func (p *StripePayments) CreateIntent(ctx context.Context, req shop.IntentRequest) (*shop.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(req.AmountCents),
		Currency:     stripe.String(req.Currency),
		ReceiptEmail: stripe.String(req.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: req.Metadata,
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return p.api.New(params)
	})
	if err != nil {
		log.Println("❌ Erreur Stripe:", err)
		return nil, err
	}
	return toIntent(pi), nil
}

func (p *StripePayments) GetIntent(ctx context.Context, id string) (*shop.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return p.api.Get(id, params)
	})
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *shop.Intent {
	return &shop.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Succeeded:    pi.Status == stripe.PaymentIntentStatusSucceeded,
		Metadata:     pi.Metadata,
	}
}

// WebhookEvent est l'événement Stripe réduit à ce que la livraison utilise.
type WebhookEvent struct {
	ID     string
	Type   string
	Intent *shop.Intent
}

// ParseWebhook vérifie la signature et décode le PaymentIntent de l'événement.
// Sans secret configuré (mode test), le corps est décodé sans vérification.
func (p *StripePayments) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	var event stripe.Event
	if p.webhookSecret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET — mode test")
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("%w: %v", shop.ErrInvalidInput, err)
		}
	} else {
		var err error
		event, err = webhook.ConstructEvent(payload, signature, p.webhookSecret)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}
	if !strings.HasPrefix(out.Type, "payment_intent.") {
		return out, nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: PaymentIntent illisible: %v", shop.ErrInvalidInput, err)
	}
	out.Intent = toIntent(&pi)
	return out, nil
}
