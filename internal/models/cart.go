package models

// CartItem est une ligne du panier. Le nom sert de clé : un seul exemplaire par nom.
type CartItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	FileID      string `json:"fileId,omitempty"`
}

// File retourne l'identifiant de l'objet livré après achat.
func (i CartItem) File() string {
	if i.FileID != "" {
		return i.FileID
	}
	return i.Name
}
