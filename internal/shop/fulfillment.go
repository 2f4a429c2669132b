package shop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/utils"
)

type FileRef struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

type FulfillmentRequest struct {
	Email           string
	PaymentIntentID string
	Files           []FileRef
}

// FileOutcome : un fichier peut être enregistré sans avoir été livré.
type FileOutcome struct {
	FileID          string `json:"fileId"`
	FileName        string `json:"fileName"`
	Recorded        bool   `json:"recorded"`
	AlreadyRecorded bool   `json:"alreadyRecorded,omitempty"`
	Delivered       bool   `json:"delivered"`
	Error           string `json:"error,omitempty"`
}

type FulfillmentResult struct {
	Email           string        `json:"email"`
	PaymentIntentID string        `json:"paymentIntentId"`
	Files           []FileOutcome `json:"files"`
}

// Partial est vrai quand au moins un fichier n'a pas pu être envoyé.
func (r *FulfillmentResult) Partial() bool {
	return len(r.Failed()) > 0
}

func (r *FulfillmentResult) Failed() []FileOutcome {
	var failed []FileOutcome
	for _, f := range r.Files {
		if !f.Delivered {
			failed = append(failed, f)
		}
	}
	return failed
}

// Fulfill est appelé quand le client signale un paiement réussi. Le PaymentIntent
// est relu chez le prestataire : seul un paiement confirmé déclenche la livraison.
// Seuls les fichiers couverts par ce paiement sont livrés. Relancer Fulfill
// n'ajoute pas de doublons à l'historique.
func (s *Service) Fulfill(ctx context.Context, req FulfillmentRequest) (*FulfillmentResult, error) {
	email, err := ValidateEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		return nil, fmt.Errorf("%w: paymentIntentId requis", ErrInvalidInput)
	}
	files, err := normalizeFiles(req.Files)
	if err != nil {
		return nil, err
	}

	paymentIntentID, paid, err := s.paidFiles(ctx, email, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	var unpaid []string
	for _, f := range files {
		if _, ok := paid[f.FileID]; !ok {
			unpaid = append(unpaid, f.FileID)
		}
	}
	if len(unpaid) > 0 {
		log.Printf("🚫 Fichiers hors paiement %s demandés par %s: %v", paymentIntentID, email, unpaid)
		return nil, fmt.Errorf("%w: %s", ErrFileNotPurchased, strings.Join(unpaid, ", "))
	}

	return s.fulfill(ctx, email, paymentIntentID, files)
}

// paidFiles relit le PaymentIntent chez le prestataire et retourne les fichiers
// qu'il couvre, indexés par fileId. Le paiement doit être confirmé et avoir été
// créé pour email.
func (s *Service) paidFiles(ctx context.Context, email, paymentIntentID string) (string, map[string]FileRef, error) {
	intent, err := s.payments.GetIntent(ctx, paymentIntentID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
	if !intent.Succeeded {
		return "", nil, fmt.Errorf("%w: %s", ErrPaymentNotCompleted, intent.ID)
	}
	if intent.Metadata[metaEmail] != email {
		return "", nil, fmt.Errorf("%w: l'email ne correspond pas au paiement", ErrInvalidInput)
	}
	files, err := filesFromMetadata(intent.Metadata)
	if err != nil {
		return "", nil, err
	}
	paid := make(map[string]FileRef, len(files))
	for _, f := range files {
		paid[f.FileID] = f
	}
	return intent.ID, paid, nil
}

// FulfillIntent livre une commande à partir du PaymentIntent seul (webhook).
func (s *Service) FulfillIntent(ctx context.Context, intent *Intent) (*FulfillmentResult, error) {
	if !intent.Succeeded {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotCompleted, intent.ID)
	}
	email, err := ValidateEmail(intent.Metadata[metaEmail])
	if err != nil {
		return nil, err
	}
	files, err := filesFromMetadata(intent.Metadata)
	if err != nil {
		return nil, err
	}
	return s.fulfill(ctx, email, intent.ID, files)
}

func (s *Service) fulfill(ctx context.Context, email, paymentIntentID string, files []FileRef) (*FulfillmentResult, error) {
	log.Printf("📦 Livraison de %d fichier(s) pour %s (paiement %s)", len(files), email, paymentIntentID)

	if _, err := s.profiles.Create(ctx, models.NewSkeletonProfile(email, s.now())); err != nil {
		return nil, storeErr(err)
	}

	var appended []models.PurchaseRecord
	already := map[string]bool{}
	_, err := s.profiles.Update(ctx, email, func(p *models.Profile) error {
		appended = appended[:0]
		already = map[string]bool{}
		for _, f := range files {
			if p.HasPurchase(paymentIntentID, f.FileID) {
				already[f.FileID] = true
				continue
			}
			rec := models.PurchaseRecord{
				FileID:          f.FileID,
				FileName:        f.FileName,
				PurchaseDate:    s.now(),
				PaymentIntentID: paymentIntentID,
			}
			p.PurchaseHistory = append(p.PurchaseHistory, rec)
			appended = append(appended, rec)
		}
		if len(appended) > 0 {
			p.UpdatedAt = s.now()
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	for _, rec := range appended {
		if err := s.index.IndexPurchase(ctx, email, rec); err != nil {
			log.Printf("⚠️ Achat non indexé (%s / %s): %v", email, rec.FileID, err)
		}
	}

	res := &FulfillmentResult{Email: email, PaymentIntentID: paymentIntentID}
	for _, f := range files {
		out := FileOutcome{
			FileID:          f.FileID,
			FileName:        f.FileName,
			Recorded:        true,
			AlreadyRecorded: already[f.FileID],
		}
		if err := s.deliver(ctx, email, f); err != nil {
			log.Printf("❌ Fichier %s non livré à %s: %v", f.FileID, email, err)
			out.Error = PublicMessage(err)
		} else {
			out.Delivered = true
		}
		res.Files = append(res.Files, out)
	}

	if res.Partial() {
		log.Printf("⚠️ Livraison partielle pour %s: %d/%d fichier(s) en échec", email, len(res.Failed()), len(files))
	} else {
		log.Printf("✅ Commande %s livrée à %s", paymentIntentID, email)
	}
	return res, nil
}

// RecordPurchase ajoute à l'historique un fichier couvert par un paiement
// confirmé du client, sans l'envoyer.
func (s *Service) RecordPurchase(ctx context.Context, email, paymentIntentID string, ref FileRef) (*models.Profile, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, fmt.Errorf("%w: paymentIntentId requis", ErrInvalidInput)
	}
	files, err := normalizeFiles([]FileRef{ref})
	if err != nil {
		return nil, err
	}
	f := files[0]

	if _, err := s.profiles.Get(ctx, email); err != nil {
		return nil, storeErr(err)
	}
	paymentIntentID, paid, err := s.paidFiles(ctx, email, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if _, ok := paid[f.FileID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotPurchased, f.FileID)
	}

	var added *models.PurchaseRecord
	p, err := s.profiles.Update(ctx, email, func(p *models.Profile) error {
		added = nil
		if p.HasPurchase(paymentIntentID, f.FileID) {
			return nil
		}
		rec := models.PurchaseRecord{
			FileID:          f.FileID,
			FileName:        f.FileName,
			PurchaseDate:    s.now(),
			PaymentIntentID: paymentIntentID,
		}
		p.PurchaseHistory = append(p.PurchaseHistory, rec)
		p.UpdatedAt = s.now()
		added = &rec
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if added != nil {
		if err := s.index.IndexPurchase(ctx, email, *added); err != nil {
			log.Printf("⚠️ Achat non indexé (%s / %s): %v", email, added.FileID, err)
		}
		log.Printf("🧾 Achat enregistré: %s → %s", f.FileID, email)
	}
	return p, nil
}

// SendFile renvoie par e-mail un fichier déjà présent dans l'historique du
// client, sans toucher à l'historique.
func (s *Service) SendFile(ctx context.Context, email string, ref FileRef) error {
	email, err := ValidateEmail(email)
	if err != nil {
		return err
	}
	files, err := normalizeFiles([]FileRef{ref})
	if err != nil {
		return err
	}
	p, err := s.profiles.Get(ctx, email)
	if err != nil {
		return storeErr(err)
	}
	if !p.Owns(files[0].FileID) {
		log.Printf("🚫 Renvoi refusé: %s n'a pas acheté %s", email, files[0].FileID)
		return fmt.Errorf("%w: %s", ErrFileNotPurchased, files[0].FileID)
	}
	return s.deliver(ctx, email, files[0])
}

// ListFiles liste les fichiers vendables du catalogue.
func (s *Service) ListFiles(ctx context.Context, prefix string) ([]FileInfo, error) {
	files, err := s.files.List(ctx, strings.TrimSpace(prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileStorage, err)
	}
	if files == nil {
		files = []FileInfo{}
	}
	return files, nil
}

func (s *Service) deliver(ctx context.Context, email string, ref FileRef) error {
	file, err := s.files.Fetch(ctx, ref.FileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, ref.FileID)
		}
		return fmt.Errorf("%w: %v", ErrFileStorage, err)
	}

	url, err := s.files.DownloadURL(ctx, ref.FileID)
	if err != nil {
		log.Printf("⚠️ Lien de téléchargement indisponible pour %s: %v", ref.FileID, err)
		url = ""
	}

	subject, html, err := utils.FileDeliveryEmail(ref.FileName, url)
	if err != nil {
		return err
	}
	attachments := []Attachment{{Name: file.Name, ContentType: file.ContentType, Data: file.Data}}
	if url != "" {
		if png, err := utils.DownloadQRCode(url); err == nil {
			attachments = append(attachments, Attachment{Name: "download-qr.png", ContentType: "image/png", Data: png})
		} else {
			log.Printf("⚠️ QR code non généré pour %s: %v", ref.FileID, err)
		}
	}

	if err := s.mailer.Send(ctx, Email{To: email, Subject: subject, HTML: html, Attachments: attachments}); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailDeliveryFailed, err)
	}
	log.Printf("📧 Fichier %s envoyé à %s", ref.FileID, email)
	return nil
}

func normalizeFiles(files []FileRef) ([]FileRef, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: aucun fichier", ErrInvalidInput)
	}
	out := make([]FileRef, 0, len(files))
	seen := map[string]bool{}
	for i, f := range files {
		f.FileID = strings.TrimSpace(f.FileID)
		f.FileName = strings.TrimSpace(f.FileName)
		if f.FileID == "" {
			return nil, fmt.Errorf("%w: fichier %d sans fileId", ErrInvalidInput, i)
		}
		if f.FileName == "" {
			f.FileName = f.FileID
		}
		if seen[f.FileID] {
			continue
		}
		seen[f.FileID] = true
		out = append(out, f)
	}
	return out, nil
}
