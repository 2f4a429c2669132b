package shop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"storefront_back_end/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	// MinPasswordLength : même règle que le changement de mot de passe.
	MinPasswordLength = 8
	// MaxCartItems tient dans les 50 clés de métadonnées du PaymentIntent.
	MaxCartItems  = 40
	MaxNameLength = 200
)

var validate = validator.New()

// ValidateEmail retourne l'email normalisé (minuscules, sans espaces).
func ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

// ValidItem est le prédicat appliqué à chaque article typé.
// Il renvoie la raison du refus, ou "" si l'article est valide.
func ValidItem(item models.CartItem) string {
	if strings.TrimSpace(item.Name) == "" {
		return "nom manquant"
	}
	if len(item.Name) > MaxNameLength || len(item.FileID) > MaxNameLength {
		return "nom trop long"
	}
	if item.AmountCents <= 0 {
		return "montant non positif"
	}
	return ""
}

// ValidateCart décode et vérifie tout le tableau d'articles avant toute agrégation.
// Chaque article est contrôlé ; l'erreur *CartError liste tous les articles refusés.
func ValidateCart(raw json.RawMessage) ([]models.CartItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &CartError{Reason: "panier vide"}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &CartError{Reason: "le panier doit être un tableau JSON"}
	}
	if len(elems) == 0 {
		return nil, &CartError{Reason: "panier vide"}
	}

	items := make([]models.CartItem, 0, len(elems))
	var problems []ItemProblem
	seen := make(map[string]bool, len(elems))

	for i, elem := range elems {
		item, reason := decodeItem(elem)
		if reason == "" {
			reason = ValidItem(item)
		}
		if reason == "" && seen[item.Name] {
			reason = fmt.Sprintf("article en double: %q", item.Name)
		}
		if reason != "" {
			problems = append(problems, ItemProblem{Index: i, Reason: reason})
			continue
		}
		seen[item.Name] = true
		items = append(items, item)
	}

	if len(problems) > 0 {
		return nil, &CartError{Problems: problems}
	}
	return items, nil
}

// DecodeItem lit un article isolé avec les mêmes règles que ValidateCart
// (amountCents ou l'ancien amount).
func DecodeItem(raw json.RawMessage) (models.CartItem, error) {
	item, reason := decodeItem(raw)
	if reason == "" {
		reason = ValidItem(item)
	}
	if reason != "" {
		return models.CartItem{}, &CartError{Reason: reason}
	}
	return item, nil
}

// decodeItem lit un article champ par champ pour refuser les encodages douteux
// ("500", 1.5, null, true) au lieu de les convertir silencieusement.
func decodeItem(raw json.RawMessage) (models.CartItem, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return models.CartItem{}, "article mal formé"
	}

	var item models.CartItem

	name, ok := fields["name"]
	if !ok {
		return item, "nom manquant"
	}
	if !isJSONString(name) || json.Unmarshal(name, &item.Name) != nil {
		return item, "le nom doit être une chaîne"
	}

	amount, ok := fields["amountCents"]
	if !ok {
		// ancien front : { name, amount }
		amount, ok = fields["amount"]
	}
	if !ok {
		return item, "montant manquant"
	}
	cents, reason := parseAmount(amount)
	if reason != "" {
		return item, reason
	}
	item.AmountCents = cents

	if fileID, ok := fields["fileId"]; ok && !bytes.Equal(fileID, []byte("null")) {
		if !isJSONString(fileID) || json.Unmarshal(fileID, &item.FileID) != nil {
			return item, "fileId doit être une chaîne"
		}
	}
	return item, ""
}

func isJSONString(raw json.RawMessage) bool {
	return len(raw) > 0 && raw[0] == '"'
}

func parseAmount(raw json.RawMessage) (int64, string) {
	lit := string(bytes.TrimSpace(raw))
	if lit == "" || (lit[0] != '-' && (lit[0] < '0' || lit[0] > '9')) {
		return 0, "le montant doit être un nombre"
	}
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, "montant hors limites"
		}
		return 0, "le montant doit être un entier en centimes"
	}
	if n <= 0 {
		return 0, "montant non positif"
	}
	return n, ""
}

// Total additionne les montants en centimes. Tous les montants sont vérifiés
// avant la somme ; rien n'est converti en zéro.
func Total(items []models.CartItem) (int64, error) {
	for i, item := range items {
		if item.AmountCents <= 0 {
			return 0, fmt.Errorf("%w: article %d (%q) = %d", ErrInvalidAmount, i, item.Name, item.AmountCents)
		}
	}
	var total int64
	for _, item := range items {
		if total > math.MaxInt64-item.AmountCents {
			return 0, fmt.Errorf("%w: total hors limites", ErrInvalidAmount)
		}
		total += item.AmountCents
	}
	return total, nil
}
