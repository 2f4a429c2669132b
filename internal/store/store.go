// Package store persiste les profils clients, un enregistrement JSON par email.
package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound : aucun profil pour cet email.
	ErrNotFound = errors.New("profil introuvable")
	// ErrConflict : l'écriture conditionnelle a échoué après tous les essais.
	ErrConflict = errors.New("conflit d'écriture concurrente sur le profil")
)

// MaxCASRetries borne les relectures quand un autre écrivain a modifié le profil.
const MaxCASRetries = 5

// NormalizeEmail donne la clé canonique d'un profil.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
