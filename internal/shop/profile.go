package shop

import (
	"context"
	"fmt"
	"log"
	"strings"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/utils"
)

const temporaryPasswordLength = 12

type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// Register crée un compte. Un profil squelette laissé par un checkout est
// réclamé (son historique est conservé) ; un compte déjà enregistré est refusé.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Profile, error) {
	email, err := ValidateEmail(req.Email)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: nom d'utilisateur requis", ErrInvalidInput)
	}
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash mot de passe: %w", err)
	}

	now := s.now()
	p := models.NewSkeletonProfile(email, now)
	p.Username = &username
	p.PasswordHash = hash
	p.Notified = true

	created, err := s.profiles.Create(ctx, p)
	if err != nil {
		return nil, storeErr(err)
	}
	if created {
		log.Printf("✅ Compte créé: %s", email)
		return p, nil
	}

	p, err = s.profiles.Update(ctx, email, func(existing *models.Profile) error {
		if existing.IsRegistered() {
			return ErrDuplicateUser
		}
		existing.Username = &username
		existing.PasswordHash = hash
		existing.Notified = true
		existing.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	log.Printf("✅ Profil squelette réclamé par inscription: %s", email)
	return p, nil
}

// Login vérifie les identifiants. Un profil squelette n'a pas de mot de passe.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Profile, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.Get(ctx, email)
	if err != nil {
		return nil, storeErr(err)
	}
	if !p.IsRegistered() {
		return nil, ErrInvalidCredentials
	}
	ok, err := utils.VerifyPassword(password, p.PasswordHash)
	if err != nil {
		log.Printf("⚠️ Hash illisible pour %s: %v", email, err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

func (s *Service) GetProfile(ctx context.Context, email string) (*models.Profile, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.Get(ctx, email)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// ProfileUpdate : seuls les champs non nil sont modifiés.
type ProfileUpdate struct {
	Username *string
	Phone    *string
	Password *string
}

func (s *Service) UpdateProfile(ctx context.Context, email string, upd ProfileUpdate) (*models.Profile, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	var username *string
	if upd.Username != nil {
		u := strings.TrimSpace(*upd.Username)
		if u == "" {
			return nil, fmt.Errorf("%w: nom d'utilisateur vide", ErrInvalidInput)
		}
		username = &u
	}

	var hash string
	if upd.Password != nil {
		if len(*upd.Password) < MinPasswordLength {
			return nil, ErrWeakPassword
		}
		if hash, err = utils.HashPassword(*upd.Password); err != nil {
			return nil, fmt.Errorf("hash mot de passe: %w", err)
		}
	}

	p, err := s.profiles.Update(ctx, email, func(p *models.Profile) error {
		if username != nil {
			p.Username = username
		}
		if upd.Phone != nil {
			p.Phone = strings.TrimSpace(*upd.Phone)
		}
		if hash != "" {
			p.PasswordHash = hash
		}
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	log.Printf("✏️ Profil mis à jour: %s", email)
	return p, nil
}

// RecoverPassword remplace le mot de passe par un mot de passe temporaire et
// l'envoie en clair une seule fois. Si l'envoi échoue, le mot de passe reste
// changé côté serveur et ErrEmailDeliveryFailed est retournée.
func (s *Service) RecoverPassword(ctx context.Context, email string) error {
	email, err := ValidateEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.profiles.Get(ctx, email); err != nil {
		return storeErr(err)
	}

	temp, err := utils.GenerateTemporaryPassword(temporaryPasswordLength)
	if err != nil {
		return fmt.Errorf("génération mot de passe: %w", err)
	}
	hash, err := utils.HashPassword(temp)
	if err != nil {
		return fmt.Errorf("hash mot de passe: %w", err)
	}

	if _, err := s.profiles.Update(ctx, email, func(p *models.Profile) error {
		p.PasswordHash = hash
		p.UpdatedAt = s.now()
		return nil
	}); err != nil {
		return storeErr(err)
	}

	subject, html, err := utils.PasswordRecoveryEmail(temp)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, Email{To: email, Subject: subject, HTML: html}); err != nil {
		log.Printf("❌ Mot de passe temporaire non envoyé à %s (déjà changé): %v", email, err)
		return fmt.Errorf("%w: %v", ErrEmailDeliveryFailed, err)
	}
	log.Printf("✅ Mot de passe temporaire envoyé à %s", email)
	return nil
}
