package wizard

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventreg/internal/imagehost"
	"eventreg/internal/model"
	"eventreg/internal/repo"
)

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) Allocate(context.Context) (string, error) { return f.id, f.err }

type failingStore struct{}

func (failingStore) CreateRegistration(context.Context, *model.Registration) error {
	return errors.New("store unavailable")
}

type fakeReceipts struct {
	gotPhone    string
	gotDocument string
	err         error
}

func (f *fakeReceipts) Upload(_ context.Context, _ imagehost.File, phoneNumber, documentID string) (*model.Registration, error) {
	f.gotPhone = phoneNumber
	f.gotDocument = documentID
	if f.err != nil {
		return nil, f.err
	}
	return &model.Registration{ReceiptURL: "https://cdn.example/r.png"}, nil
}

func newPipeline(store Registrar, ids IDAllocator, receipts ReceiptUploader) *Pipeline {
	log := zerolog.Nop()
	return NewPipeline(NewSessions(time.Hour), store, ids, receipts, nil, &log)
}

var validForm = Form{Name: " Asha ", Year: "3rd", RollNumber: "21CS01", Phone: "99999-99999"}

func TestHappyPath(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	receipts := &fakeReceipts{}
	p := newPipeline(store, fixedIDs{id: "4321"}, receipts)

	sess := p.Start()
	assert.Equal(t, StepForm, sess.Step)

	sess, err := p.Submit(ctx, sess.ID, validForm)
	require.NoError(t, err)
	assert.Equal(t, StepPayment, sess.Step)
	assert.Equal(t, "4321", sess.RegistrationID)
	assert.Equal(t, "Asha", sess.Form.Name)
	assert.Equal(t, "9999999999", sess.Form.Phone, "form keeps the local number")

	stored, err := store.GetRegistration(ctx, sess.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "+919999999999", stored.Phone, "store keeps the canonical number")

	sess, err = p.MarkPaid(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepReceipt, sess.Step)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	sess, err = p.UploadReceipt(ctx, sess.ID, imagehost.File{Name: "r.png", ContentType: "image/png", Size: 8, Body: bytes.NewReader(png)})
	require.NoError(t, err)
	assert.Equal(t, StepDone, sess.Step)
	assert.Equal(t, "https://cdn.example/r.png", sess.ReceiptURL)
	assert.Equal(t, "9999999999", receipts.gotPhone)
	assert.Equal(t, stored.ID, receipts.gotDocument, "receipt targets the session's own registration")
}

func TestSubmitValidation(t *testing.T) {
	p := newPipeline(repo.NewMemory(), fixedIDs{id: "1000"}, &fakeReceipts{})
	sess := p.Start()

	_, err := p.Submit(context.Background(), sess.ID, Form{Name: "", Year: "1st", RollNumber: " ", Phone: "12ab"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 4)
	assert.Contains(t, verr.Fields, "phone")

	got, err := p.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepForm, got.Step)
}

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"year":  "invalid",
		"name":  "required",
		"phone": "invalid",
	}}
	want := "invalid registration form: name: required; phone: invalid; year: invalid"
	for i := 0; i < 20; i++ {
		require.Equal(t, want, err.Error())
	}
}

func TestSubmitFailureStaysOnForm(t *testing.T) {
	p := newPipeline(failingStore{}, fixedIDs{id: "1000"}, &fakeReceipts{})
	sess := p.Start()

	_, err := p.Submit(context.Background(), sess.ID, validForm)
	require.Error(t, err)

	got, err := p.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepForm, got.Step)

	// not busy: a second attempt reaches the store again
	_, err = p.Submit(context.Background(), sess.ID, validForm)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
}

func TestAllocatorFailureStaysOnForm(t *testing.T) {
	p := newPipeline(repo.NewMemory(), fixedIDs{err: errors.New("exhausted")}, &fakeReceipts{})
	sess := p.Start()

	_, err := p.Submit(context.Background(), sess.ID, validForm)
	require.Error(t, err)
	got, _ := p.Get(sess.ID)
	assert.Equal(t, StepForm, got.Step)
}

func TestIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(repo.NewMemory(), fixedIDs{id: "1000"}, &fakeReceipts{})
	sess := p.Start()

	_, err := p.MarkPaid(sess.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = p.UploadReceipt(ctx, sess.ID, imagehost.File{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = p.Submit(ctx, sess.ID, validForm)
	require.NoError(t, err)

	_, err = p.Submit(ctx, sess.ID, validForm)
	assert.ErrorIs(t, err, ErrInvalidTransition, "a submitted session cannot submit again")

	_, err = p.MarkPaid("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReceiptFailureStaysOnReceiptStep(t *testing.T) {
	ctx := context.Background()
	receipts := &fakeReceipts{err: imagehost.ErrNotImage}
	p := newPipeline(repo.NewMemory(), fixedIDs{id: "1000"}, receipts)

	sess := p.Start()
	_, err := p.Submit(ctx, sess.ID, validForm)
	require.NoError(t, err)
	_, err = p.MarkPaid(sess.ID)
	require.NoError(t, err)

	got, err := p.UploadReceipt(ctx, sess.ID, imagehost.File{})
	assert.ErrorIs(t, err, imagehost.ErrNotImage)
	assert.Equal(t, StepReceipt, got.Step)
}

func TestSessionTransitionsDirectly(t *testing.T) {
	now := time.Now()
	s := Session{Step: StepForm}
	require.ErrorIs(t, s.Paid(now), ErrInvalidTransition)
	require.NoError(t, s.Submitted(Form{Name: "a"}, "doc", "1000", now))
	require.ErrorIs(t, s.Completed("u", now), ErrInvalidTransition)
	require.NoError(t, s.Paid(now))
	require.NoError(t, s.Completed("u", now))
	assert.Equal(t, StepDone, s.Step)
	assert.Equal(t, "done", s.Step.String())
}

func TestPurgeDropsIdleSessions(t *testing.T) {
	sessions := NewSessions(time.Minute)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return base }
	old := sessions.Create()

	sessions.now = func() time.Time { return base.Add(2 * time.Minute) }
	fresh := sessions.Create()

	assert.Equal(t, 1, sessions.Purge())
	_, err := sessions.Get(old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = sessions.Get(fresh.ID)
	assert.NoError(t, err)
}
