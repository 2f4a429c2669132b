package shop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakePayments enregistre les demandes et renvoie des intents déterministes.
type fakePayments struct {
	mu        sync.Mutex
	requests  []IntentRequest
	createErr error
	intents   map[string]*Intent
	getErr    error
}

func newFakePayments() *fakePayments {
	return &fakePayments{intents: map[string]*Intent{}}
}

func (f *fakePayments) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := fmt.Sprintf("pi_%d", len(f.requests))
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Metadata:     req.Metadata,
	}
	f.intents[id] = intent
	return intent, nil
}

func (f *fakePayments) GetIntent(_ context.Context, id string) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	intent, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	return intent, nil
}

func (f *fakePayments) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[id].Succeeded = true
}

func (f *fakePayments) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) sentTo(to string) []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Email
	for _, e := range m.sent {
		if e.To == to {
			out = append(out, e)
		}
	}
	return out
}

type fakeFiles struct {
	files   map[string]*File
	urlErr  error
	listErr error
}

func (f *fakeFiles) Fetch(_ context.Context, id string) (*File, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	return file, nil
}

func (f *fakeFiles) DownloadURL(_ context.Context, id string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://files.example/" + id + "?sig=abc", nil
}

func (f *fakeFiles) List(_ context.Context, prefix string) ([]FileInfo, error) {
	var out []FileInfo
	for id, file := range f.files {
		if strings.HasPrefix(id, prefix) {
			out = append(out, FileInfo{ID: id, Name: file.Name, Size: int64(len(file.Data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, f.listErr
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed []models.PurchaseRecord
}

func (i *fakeIndex) IndexPurchase(_ context.Context, _ string, rec models.PurchaseRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexed = append(i.indexed, rec)
	return nil
}

type testEnv struct {
	svc      *Service
	payments *fakePayments
	mailer   *fakeMailer
	files    *fakeFiles
	index    *fakeIndex
	profiles *store.RedisProfileStore
	redis    *miniredis.Miniredis
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	env := &testEnv{
		payments: newFakePayments(),
		mailer:   &fakeMailer{},
		files: &fakeFiles{files: map[string]*File{
			"set-a.zip": {ID: "set-a.zip", Name: "set-a.zip", ContentType: "application/zip", Data: []byte("AAA")},
			"set-b.zip": {ID: "set-b.zip", Name: "set-b.zip", ContentType: "application/zip", Data: []byte("BBB")},
		}},
		index:    &fakeIndex{},
		profiles: store.NewRedisProfileStore(client),
		redis:    mr,
	}
	env.svc = NewService(Deps{
		Payments: env.payments,
		Profiles: env.profiles,
		Mailer:   env.mailer,
		Files:    env.files,
		Index:    env.index,
	}, WithClock(func() time.Time { return testNow }))
	return env
}
