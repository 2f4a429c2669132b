package models

import "time"

// Profile est l'enregistrement stocké par email dans le store clé-valeur.
type Profile struct {
	Email           string           `json:"email"`
	Username        *string          `json:"username"`
	PasswordHash    string           `json:"passwordHash,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	PurchaseHistory []PurchaseRecord `json:"purchaseHistory"`
	Notified        bool             `json:"notified"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// PurchaseRecord n'est jamais modifié une fois écrit.
type PurchaseRecord struct {
	FileID          string    `json:"fileId"`
	FileName        string    `json:"fileName"`
	PurchaseDate    time.Time `json:"purchaseDate"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
}

// NewSkeletonProfile crée le profil minimal d'un client jamais vu au checkout.
func NewSkeletonProfile(email string, now time.Time) *Profile {
	return &Profile{
		Email:           email,
		PurchaseHistory: []PurchaseRecord{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsRegistered indique si le profil a des identifiants (sinon c'est un squelette).
func (p *Profile) IsRegistered() bool {
	return p.PasswordHash != ""
}

// HasPurchase vérifie si un fichier a déjà été enregistré pour un paiement donné.
func (p *Profile) HasPurchase(paymentIntentID, fileID string) bool {
	for _, r := range p.PurchaseHistory {
		if r.FileID == fileID && r.PaymentIntentID == paymentIntentID {
			return true
		}
	}
	return false
}

// Owns indique si le fichier figure dans l'historique, quel que soit le paiement.
func (p *Profile) Owns(fileID string) bool {
	for _, r := range p.PurchaseHistory {
		if r.FileID == fileID {
			return true
		}
	}
	return false
}

// PublicProfile est la vue renvoyée aux clients, sans le hash.
type PublicProfile struct {
	Email           string           `json:"email"`
	Username        *string          `json:"username"`
	Phone           string           `json:"phone,omitempty"`
	PurchaseHistory []PurchaseRecord `json:"purchaseHistory"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func (p *Profile) Public() PublicProfile {
	history := p.PurchaseHistory
	if history == nil {
		history = []PurchaseRecord{}
	}
	return PublicProfile{
		Email:           p.Email,
		Username:        p.Username,
		Phone:           p.Phone,
		PurchaseHistory: history,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
