package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"
	"storefront_back_end/internal/utils"

	"github.com/google/uuid"
)

const DefaultCurrency = "usd"

// CheckoutState suit une tentative de checkout côté serveur.
type CheckoutState string

const (
	StateValidating      CheckoutState = "VALIDATING"
	StateTotalComputed   CheckoutState = "TOTAL_COMPUTED"
	StateProfileEnsured  CheckoutState = "PROFILE_ENSURED"
	StateIntentRequested CheckoutState = "INTENT_REQUESTED"
	StateIntentReady     CheckoutState = "INTENT_READY"
	StateFailed          CheckoutState = "FAILED"
)

func (s CheckoutState) String() string {
	return string(s)
}

// Clés de métadonnées posées sur le PaymentIntent, relues par le webhook.
const (
	metaEmail      = "email"
	metaItemCount  = "item_count"
	metaItemPrefix = "item_"
)

type CheckoutRequest struct {
	Items json.RawMessage
	Email string
}

type CheckoutResult struct {
	State    CheckoutState
	FailedAt CheckoutState

	Email           string
	Items           []models.CartItem
	AmountCents     int64
	Currency        string
	ClientSecret    string
	PaymentIntentID string

	ProfileCreated bool
	WelcomeSent    bool
}

// Checkout valide le panier, s'assure que le profil existe et demande un
// PaymentIntent. La confirmation se fait ensuite côté client, chez le prestataire.
// Le profil squelette créé à l'étape 3 n'est pas supprimé si le paiement échoue.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	res := &CheckoutResult{State: StateValidating, Currency: s.currency}
	fail := func(err error) (*CheckoutResult, error) {
		log.Printf("❌ Checkout échoué (étape %s) pour %q: %v", res.State, req.Email, err)
		res.FailedAt = res.State
		res.State = StateFailed
		return res, err
	}

	email, err := ValidateEmail(req.Email)
	if err != nil {
		return fail(err)
	}
	res.Email = email

	items, err := ValidateCart(req.Items)
	if err != nil {
		return fail(err)
	}
	if len(items) > MaxCartItems {
		return fail(&CartError{Reason: fmt.Sprintf("au plus %d articles par commande", MaxCartItems)})
	}
	res.Items = items

	total, err := Total(items)
	if err != nil {
		return fail(err)
	}
	res.AmountCents = total
	res.State = StateTotalComputed
	log.Printf("🛒 Total calculé: %d centimes (%d articles) pour %s", total, len(items), email)

	created, welcomed, err := s.ensureProfile(ctx, email)
	if err != nil {
		return fail(err)
	}
	res.ProfileCreated = created
	res.WelcomeSent = welcomed
	res.State = StateProfileEnsured

	metadata, err := intentMetadata(email, items)
	if err != nil {
		return fail(err)
	}

	res.State = StateIntentRequested
	intent, err := s.payments.CreateIntent(ctx, IntentRequest{
		AmountCents:    total,
		Currency:       s.currency,
		Email:          email,
		Metadata:       metadata,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrPaymentProvider, err))
	}
	if intent.AmountCents != total {
		return fail(fmt.Errorf("%w: montant %d ≠ %d", ErrPaymentProvider, intent.AmountCents, total))
	}

	res.ClientSecret = intent.ClientSecret
	res.PaymentIntentID = intent.ID
	res.State = StateIntentReady
	log.Printf("💳 PaymentIntent créé : %s (%d %s) pour %s", intent.ID, total, s.currency, email)
	return res, nil
}

var errAlreadyNotified = errors.New("déjà notifié")

// ensureProfile crée le profil squelette s'il n'existe pas et envoie l'email de
// bienvenue une seule fois. Le drapeau notified est posé avant l'envoi (CAS) puis
// retiré si l'envoi échoue, pour qu'un prochain checkout réessaie. Un compte déjà
// inscrit ne reçoit pas l'invitation à s'inscrire.
func (s *Service) ensureProfile(ctx context.Context, email string) (created, welcomed bool, err error) {
	created, err = s.profiles.Create(ctx, models.NewSkeletonProfile(email, s.now()))
	if err != nil {
		return false, false, storeErr(err)
	}
	if created {
		log.Printf("👤 Profil squelette créé pour %s", email)
	}

	claimed := false
	_, err = s.profiles.Update(ctx, email, func(p *models.Profile) error {
		claimed = false
		if p.Notified || p.IsRegistered() {
			return errAlreadyNotified
		}
		p.Notified = true
		p.UpdatedAt = s.now()
		claimed = true
		return nil
	})
	if errors.Is(err, errAlreadyNotified) {
		return created, false, nil
	}
	if err != nil {
		return created, false, storeErr(err)
	}
	if !claimed {
		return created, false, nil
	}

	if err := s.sendWelcome(ctx, email); err != nil {
		log.Printf("⚠️ Email de bienvenue non envoyé à %s: %v", email, err)
		if _, rerr := s.profiles.Update(ctx, email, func(p *models.Profile) error {
			p.Notified = false
			return nil
		}); rerr != nil {
			log.Printf("❌ Impossible de réinitialiser notified pour %s: %v", email, rerr)
		}
		return created, false, nil
	}
	log.Printf("📧 Email de bienvenue envoyé: %s", email)
	return created, true, nil
}

func (s *Service) sendWelcome(ctx context.Context, email string) error {
	subject, html, err := utils.WelcomeEmail(email)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, Email{To: email, Subject: subject, HTML: html})
}

type metaItem struct {
	Name   string `json:"n"`
	FileID string `json:"f,omitempty"`
}

func intentMetadata(email string, items []models.CartItem) (map[string]string, error) {
	md := map[string]string{
		metaEmail:     email,
		metaItemCount: strconv.Itoa(len(items)),
	}
	for i, item := range items {
		data, err := json.Marshal(metaItem{Name: item.Name, FileID: item.FileID})
		if err != nil {
			return nil, fmt.Errorf("sérialisation métadonnées: %w", err)
		}
		md[metaItemPrefix+strconv.Itoa(i)] = string(data)
	}
	return md, nil
}

// filesFromMetadata reconstruit la liste des fichiers achetés depuis le PaymentIntent.
func filesFromMetadata(md map[string]string) ([]FileRef, error) {
	count, err := strconv.Atoi(md[metaItemCount])
	if err != nil || count <= 0 {
		return nil, fmt.Errorf("%w: métadonnées de paiement sans articles", ErrInvalidInput)
	}
	files := make([]FileRef, 0, count)
	for i := 0; i < count; i++ {
		var mi metaItem
		if err := json.Unmarshal([]byte(md[metaItemPrefix+strconv.Itoa(i)]), &mi); err != nil {
			return nil, fmt.Errorf("%w: article %d illisible dans les métadonnées", ErrInvalidInput, i)
		}
		item := models.CartItem{Name: mi.Name, FileID: mi.FileID}
		files = append(files, FileRef{FileID: item.File(), FileName: mi.Name})
	}
	return files, nil
}

// storeErr traduit les erreurs du store en erreurs du workflow.
func storeErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if KindOf(err) != KindInternal {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProfileStore, err)
}
