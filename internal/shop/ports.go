package shop

import (
	"context"
	"time"

	"storefront_back_end/internal/models"
)

// IntentRequest décrit le paiement demandé au prestataire.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	Email          string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent est la vue du PaymentIntent dont le workflow a besoin.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Succeeded    bool
	Metadata     map[string]string
}

type PaymentProvider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

// ProfileStore : lecture, création conditionnelle et mise à jour compare-and-set.
type ProfileStore interface {
	Get(ctx context.Context, email string) (*models.Profile, error)
	Create(ctx context.Context, p *models.Profile) (bool, error)
	Update(ctx context.Context, email string, fn func(*models.Profile) error) (*models.Profile, error)
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Email struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer envoie un e-mail ; les nouvelles tentatives sont à sa charge.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

type File struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// FileInfo décrit un fichier du catalogue, sans son contenu.
type FileInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type FileStore interface {
	Fetch(ctx context.Context, fileID string) (*File, error)
	DownloadURL(ctx context.Context, fileID string) (string, error)
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

// PurchaseIndex reçoit une copie de chaque achat enregistré.
type PurchaseIndex interface {
	IndexPurchase(ctx context.Context, email string, rec models.PurchaseRecord) error
}

type nopIndex struct{}

func (nopIndex) IndexPurchase(context.Context, string, models.PurchaseRecord) error { return nil }

// Deps regroupe les adaptateurs externes du workflow.
type Deps struct {
	Payments PaymentProvider
	Profiles ProfileStore
	Mailer   Mailer
	Files    FileStore
	Index    PurchaseIndex
}

// Service porte les workflows checkout et profil. Il ne garde aucun état mutable.
type Service struct {
	payments PaymentProvider
	profiles ProfileStore
	mailer   Mailer
	files    FileStore
	index    PurchaseIndex
	currency string
	now      func() time.Time
}

type Option func(*Service)

func WithCurrency(currency string) Option {
	return func(s *Service) {
		if currency != "" {
			s.currency = currency
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		payments: deps.Payments,
		profiles: deps.Profiles,
		mailer:   deps.Mailer,
		files:    deps.Files,
		index:    deps.Index,
		currency: DefaultCurrency,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.index == nil {
		s.index = nopIndex{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
