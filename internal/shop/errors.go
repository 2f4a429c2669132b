package shop

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCart         = errors.New("panier invalide")
	ErrInvalidAmount       = errors.New("montant invalide")
	ErrInvalidEmail        = errors.New("email invalide")
	ErrInvalidInput        = errors.New("données invalides")
	ErrWeakPassword        = errors.New("le mot de passe doit contenir au moins 8 caractères")
	ErrNotFound            = errors.New("profil introuvable")
	ErrFileNotFound        = errors.New("fichier introuvable")
	ErrFileNotPurchased    = errors.New("fichier non couvert par un achat")
	ErrDuplicateUser       = errors.New("un compte avec cet email existe déjà")
	ErrInvalidCredentials  = errors.New("email ou mot de passe incorrect")
	ErrPaymentNotCompleted = errors.New("paiement non confirmé")
	ErrPaymentProvider     = errors.New("erreur du prestataire de paiement")
	ErrEmailDeliveryFailed = errors.New("échec de l'envoi de l'e-mail")
	ErrFileStorage         = errors.New("erreur du stockage de fichiers")
	ErrProfileStore        = errors.New("erreur du stockage des profils")
)

// Kind classe une erreur pour la couche HTTP.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindProvider
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindProvider:
		return "provider"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidCart, KindValidation},
	{ErrInvalidAmount, KindValidation},
	{ErrInvalidEmail, KindValidation},
	{ErrInvalidInput, KindValidation},
	{ErrWeakPassword, KindValidation},
	{ErrPaymentNotCompleted, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrFileNotFound, KindNotFound},
	{ErrDuplicateUser, KindConflict},
	{ErrInvalidCredentials, KindUnauthorized},
	{ErrFileNotPurchased, KindForbidden},
	{ErrPaymentProvider, KindProvider},
	{ErrEmailDeliveryFailed, KindProvider},
	{ErrFileStorage, KindProvider},
}

// KindOf retourne la catégorie de la première sentinelle reconnue dans err.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// PublicMessage donne un message lisible sans le détail interne des prestataires.
func PublicMessage(err error) string {
	var cartErr *CartError
	if errors.As(err, &cartErr) {
		return cartErr.Error()
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			if k.kind == KindValidation || k.kind == KindNotFound || k.kind == KindForbidden {
				return err.Error()
			}
			return k.err.Error()
		}
	}
	return "erreur interne"
}

// ItemProblem décrit un article refusé à la validation.
type ItemProblem struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// CartError liste tous les articles invalides, pas seulement le premier.
type CartError struct {
	Reason   string
	Problems []ItemProblem
}

func (e *CartError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidCart, e.Reason)
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("article %d: %s", p.Index, p.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidCart, strings.Join(parts, "; "))
}

func (e *CartError) Is(target error) bool {
	return target == ErrInvalidCart
}
