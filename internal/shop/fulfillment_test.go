package shop

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidIntent(t *testing.T, env *testEnv, email string, items string) string {
	t.Helper()
	res, err := env.svc.Checkout(context.Background(), CheckoutRequest{Items: json.RawMessage(items), Email: email})
	require.NoError(t, err)
	env.payments.succeed(res.PaymentIntentID)
	return res.PaymentIntentID
}

func TestFulfill_RecordsAndDelivers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pi := paidIntent(t, env, "a@x.com", `[{"name":"SetA","amountCents":500,"fileId":"set-a.zip"}]`)

	res, err := env.svc.Fulfill(ctx, FulfillmentRequest{
		Email:           "a@x.com",
		PaymentIntentID: pi,
		Files:           []FileRef{{FileID: "set-a.zip", FileName: "Set A"}},
	})
	require.NoError(t, err)
	assert.False(t, res.Partial())
	require.Len(t, res.Files, 1)
	assert.True(t, res.Files[0].Recorded)
	assert.True(t, res.Files[0].Delivered)

	p, err := env.profiles.Get(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, p.PurchaseHistory, 1)
	assert.Equal(t, "set-a.zip", p.PurchaseHistory[0].FileID)
	assert.Equal(t, pi, p.PurchaseHistory[0].PaymentIntentID)
	assert.Equal(t, testNow, p.PurchaseHistory[0].PurchaseDate)
	assert.Len(t, env.index.indexed, 1)

	var delivery *Email
	for _, m := range env.mailer.sentTo("a@x.com") {
		if m.Subject == "Your purchase: Set A" {
			delivery = &m
		}
	}
	require.NotNil(t, delivery)
	require.Len(t, delivery.Attachments, 2)
	assert.Equal(t, "set-a.zip", delivery.Attachments[0].Name)
	assert.Equal(t, []byte("AAA"), delivery.Attachments[0].Data)
	assert.Equal(t, "application/zip", delivery.Attachments[0].ContentType)
	assert.Equal(t, "download-qr.png", delivery.Attachments[1].Name)
	assert.Equal(t, "image/png", delivery.Attachments[1].ContentType)
}

func TestFulfill_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pi := paidIntent(t, env, "a@x.com", `[{"name":"SetA","amountCents":500,"fileId":"set-a.zip"}]`)
	req := FulfillmentRequest{Email: "a@x.com", PaymentIntentID: pi, Files: []FileRef{{FileID: "set-a.zip"}}}

	_, err := env.svc.Fulfill(ctx, req)
	require.NoError(t, err)
	res, err := env.svc.Fulfill(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Files[0].AlreadyRecorded)

	p, err := env.profiles.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, p.PurchaseHistory, 1)
	assert.Len(t, env.index.indexed, 1)
}

func TestFulfill_EmailFailureIsPartialButRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pi := paidIntent(t, env, "a@x.com", `[{"name":"SetA","amountCents":500,"fileId":"set-a.zip"},{"name":"SetB","amountCents":1500,"fileId":"set-b.zip"}]`)

	env.mailer.err = errors.New("smtp: 451 try again later")
	res, err := env.svc.Fulfill(ctx, FulfillmentRequest{
		Email:           "a@x.com",
		PaymentIntentID: pi,
		Files:           []FileRef{{FileID: "set-a.zip"}, {FileID: "set-b.zip"}},
	})
	require.NoError(t, err)
	assert.True(t, res.Partial())
	assert.Len(t, res.Failed(), 2)
	assert.Equal(t, ErrEmailDeliveryFailed.Error(), res.Files[0].Error)

	p, err := env.profiles.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, p.PurchaseHistory, 2)
}

func TestFulfill_MissingFileIsReportedPerFile(t *testing.T) {
	env := newTestEnv(t)
	pi := paidIntent(t, env, "a@x.com", `[{"name":"SetA","amountCents":500,"fileId":"set-a.zip"},{"name":"Gone","amountCents":100}]`)

	res, err := env.svc.Fulfill(context.Background(), FulfillmentRequest{
		Email:           "a@x.com",
		PaymentIntentID: pi,
		Files:           []FileRef{{FileID: "set-a.zip"}, {FileID: "Gone"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Failed(), 1)
	assert.Equal(t, "Gone", res.Failed()[0].FileID)
	assert.Contains(t, res.Failed()[0].Error, ErrFileNotFound.Error())
}

func TestFulfill_RequiresSucceededPayment(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Items: json.RawMessage(`[{"name":"SetA","amountCents":500}]`),
		Email: "a@x.com",
	})
	require.NoError(t, err)

	_, err = env.svc.Fulfill(context.Background(), FulfillmentRequest{
		Email:           "a@x.com",
		PaymentIntentID: res.PaymentIntentID,
		Files:           []FileRef{{FileID: "set-a.zip"}},
	})
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)

	p, err := env.profiles.Get(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, p.PurchaseHistory)
}

func TestFulfill_RejectsOtherCustomersPayment(t *testing.T) {
	env := newTestEnv(t)
	pi := paidIntent(t, env, "a@x.com", `[{"name":"SetA","amountCents":500}]`)

	_, err := env.svc.Fulfill(context.Background(), FulfillmentRequest{
		Email:           "b@x.com",
		PaymentIntentID: pi,
		Files:           []FileRef{{FileID: "set-a.zip"}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFulfill_ValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Fulfill(ctx, FulfillmentRequest{Email: "a@x.com", Files: []FileRef{{FileID: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.Fulfill(ctx, FulfillmentRequest{Email: "a@x.com", PaymentIntentID: "pi_1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.Fulfill(ctx, FulfillmentRequest{Email: "a@x.com", PaymentIntentID: "pi_1", Files: []FileRef{{FileName: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	env.payments.getErr = errors.New("boom")
	_, err = env.svc.Fulfill(ctx, FulfillmentRequest{Email: "a@x.com", PaymentIntentID: "pi_1", Files: []FileRef{{FileID: "x"}}})
	assert.ErrorIs(t, err, ErrPaymentProvider)
}

func TestFulfillIntent_UsesMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pi := paidIntent(t, env, "a@x.com", `[{"name":"SetA","amountCents":500,"fileId":"set-a.zip"},{"name":"SetB","amountCents":1500,"fileId":"set-b.zip"}]`)

	intent, err := env.payments.GetIntent(ctx, pi)
	require.NoError(t, err)

	res, err := env.svc.FulfillIntent(ctx, intent)
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.Len(t, res.Files, 2)

	// le client et le webhook peuvent tous deux déclencher la livraison
	_, err = env.svc.Fulfill(ctx, FulfillmentRequest{Email: "a@x.com", PaymentIntentID: pi, Files: []FileRef{{FileID: "set-a.zip"}}})
	require.NoError(t, err)

	p, err := env.profiles.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, p.PurchaseHistory, 2)
}

func TestFulfillIntent_NotSucceeded(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.FulfillIntent(context.Background(), &Intent{ID: "pi_x", Metadata: map[string]string{"email": "a@x.com"}})
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)
}

func TestFulfill_RejectsFilesOutsideThePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pi := paidIntent(t, env, "a@x.com", `[{"name":"SetA","amountCents":500,"fileId":"set-a.zip"}]`)

	_, err := env.svc.Fulfill(ctx, FulfillmentRequest{
		Email:           "a@x.com",
		PaymentIntentID: pi,
		Files:           []FileRef{{FileID: "set-a.zip"}, {FileID: "set-b.zip"}},
	})
	assert.ErrorIs(t, err, ErrFileNotPurchased)
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Contains(t, err.Error(), "set-b.zip")

	p, err := env.profiles.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, p.PurchaseHistory)
	for _, m := range env.mailer.sentTo("a@x.com") {
		assert.Empty(t, m.Attachments)
	}
}

func TestFulfill_RejectsIntentWithoutItems(t *testing.T) {
	env := newTestEnv(t)
	env.payments.intents["pi_ext"] = &Intent{ID: "pi_ext", Succeeded: true, Metadata: map[string]string{"email": "a@x.com"}}

	_, err := env.svc.Fulfill(context.Background(), FulfillmentRequest{
		Email:           "a@x.com",
		PaymentIntentID: "pi_ext",
		Files:           []FileRef{{FileID: "set-a.zip"}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, env.mailer.sent)
}

func TestRecordPurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RecordPurchase(ctx, "ghost@x.com", "pi_1", FileRef{FileID: "set-a.zip"})
	assert.ErrorIs(t, err, ErrNotFound)

	pi := paidIntent(t, env, "a@x.com", `[{"name":"Set A","amountCents":500,"fileId":"set-a.zip"}]`)
	sent := len(env.mailer.sent)

	p, err := env.svc.RecordPurchase(ctx, "a@x.com", pi, FileRef{FileID: "set-a.zip", FileName: "Set A"})
	require.NoError(t, err)
	require.Len(t, p.PurchaseHistory, 1)
	assert.Equal(t, "Set A", p.PurchaseHistory[0].FileName)
	assert.Equal(t, pi, p.PurchaseHistory[0].PaymentIntentID)
	assert.Len(t, env.mailer.sent, sent)

	p, err = env.svc.RecordPurchase(ctx, "a@x.com", pi, FileRef{FileID: "set-a.zip"})
	require.NoError(t, err)
	assert.Len(t, p.PurchaseHistory, 1)
	assert.Len(t, env.index.indexed, 1)
}

func TestRecordPurchase_RequiresPaidFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, RegisterRequest{Email: "a@x.com", Username: "ana", Password: "motdepasse"})
	require.NoError(t, err)

	_, err = env.svc.RecordPurchase(ctx, "a@x.com", "", FileRef{FileID: "set-a.zip"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := env.svc.Checkout(ctx, CheckoutRequest{Items: json.RawMessage(`[{"name":"SetA","amountCents":500,"fileId":"set-a.zip"}]`), Email: "a@x.com"})
	require.NoError(t, err)
	_, err = env.svc.RecordPurchase(ctx, "a@x.com", res.PaymentIntentID, FileRef{FileID: "set-a.zip"})
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)

	env.payments.succeed(res.PaymentIntentID)
	_, err = env.svc.RecordPurchase(ctx, "a@x.com", res.PaymentIntentID, FileRef{FileID: "set-b.zip"})
	assert.ErrorIs(t, err, ErrFileNotPurchased)

	other := paidIntent(t, env, "b@x.com", `[{"name":"SetB","amountCents":500,"fileId":"set-b.zip"}]`)
	_, err = env.svc.RecordPurchase(ctx, "a@x.com", other, FileRef{FileID: "set-b.zip"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err := env.profiles.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, p.PurchaseHistory)
}

func TestSendFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pi := paidIntent(t, env, "a@x.com", `[{"name":"SetB","amountCents":500,"fileId":"set-b.zip"},{"name":"Gone","amountCents":100,"fileId":"missing.zip"}]`)
	_, err := env.svc.Fulfill(ctx, FulfillmentRequest{
		Email:           "a@x.com",
		PaymentIntentID: pi,
		Files:           []FileRef{{FileID: "set-b.zip"}, {FileID: "missing.zip"}},
	})
	require.NoError(t, err)
	before := len(env.mailer.sentTo("a@x.com"))

	require.NoError(t, env.svc.SendFile(ctx, "a@x.com", FileRef{FileID: "set-b.zip"}))
	require.Len(t, env.mailer.sentTo("a@x.com"), before+1)

	assert.ErrorIs(t, env.svc.SendFile(ctx, "a@x.com", FileRef{FileID: "missing.zip"}), ErrFileNotFound)
	assert.ErrorIs(t, env.svc.SendFile(ctx, "bad", FileRef{FileID: "set-b.zip"}), ErrInvalidEmail)

	env.files.urlErr = errors.New("presign failed")
	require.NoError(t, env.svc.SendFile(ctx, "a@x.com", FileRef{FileID: "set-b.zip"}))
	sent := env.mailer.sentTo("a@x.com")
	assert.Len(t, sent[len(sent)-1].Attachments, 1)
}

func TestSendFile_OnlyPurchasedFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.svc.SendFile(ctx, "stranger@x.com", FileRef{FileID: "set-a.zip"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.Register(ctx, RegisterRequest{Email: "a@x.com", Username: "ana", Password: "motdepasse"})
	require.NoError(t, err)
	err = env.svc.SendFile(ctx, "a@x.com", FileRef{FileID: "set-a.zip"})
	assert.ErrorIs(t, err, ErrFileNotPurchased)
	assert.Empty(t, env.mailer.sent)
}

func TestListFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	files, err := env.svc.ListFiles(ctx, "")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "set-a.zip", files[0].ID)
	assert.Equal(t, int64(3), files[0].Size)

	files, err = env.svc.ListFiles(ctx, "nothing/")
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)

	env.files.listErr = errors.New("connection refused")
	_, err = env.svc.ListFiles(ctx, "")
	assert.Equal(t, KindProvider, KindOf(err))
}
