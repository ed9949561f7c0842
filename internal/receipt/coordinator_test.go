package receipt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventreg/internal/events"
	"eventreg/internal/imagehost"
	"eventreg/internal/model"
	"eventreg/internal/repo"
)

type fakeHost struct {
	calls int
	err   error
}

func (h *fakeHost) Upload(_ context.Context, f imagehost.File) (imagehost.Asset, error) {
	h.calls++
	if h.err != nil {
		return imagehost.Asset{}, h.err
	}
	return imagehost.Asset{SecureURL: "https://cdn.example/" + f.Name, PublicID: "pub-" + f.Name}, nil
}

type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) Publish(_ context.Context, key string, _ []byte) error {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.mu.Unlock()
	return nil
}

var png = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func pngFile(name string) imagehost.File {
	return imagehost.File{Name: name, ContentType: "image/png", Size: int64(len(png)), Body: bytes.NewReader(png)}
}

func setup(t *testing.T) (*Coordinator, *repo.Memory, *fakeHost, *recorder, *model.Registration) {
	t.Helper()
	store := repo.NewMemory()
	reg := &model.Registration{Name: "Asha", Year: "3rd", RollNumber: "21CS01", Phone: "+919999999999", RegistrationID: "4321"}
	require.NoError(t, store.CreateRegistration(context.Background(), reg))

	host := &fakeHost{}
	pub := &recorder{}
	log := zerolog.Nop()
	return NewCoordinator(store, host, pub, &log), store, host, pub, reg
}

func TestUploadRejectsPDFBeforeNetwork(t *testing.T) {
	c, _, host, _, _ := setup(t)

	_, err := c.Upload(context.Background(), imagehost.File{
		Name: "r.pdf", ContentType: "application/pdf", Size: 8, Body: strings.NewReader("%PDF-1.4"),
	}, "9999999999", "")
	assert.ErrorIs(t, err, imagehost.ErrNotImage)
	assert.Zero(t, host.calls)
}

func TestUploadRejectsLargeImageBeforeNetwork(t *testing.T) {
	c, _, host, _, _ := setup(t)

	f := pngFile("big.png")
	f.Size = 6 << 20
	_, err := c.Upload(context.Background(), f, "9999999999", "")
	assert.ErrorIs(t, err, imagehost.ErrTooLarge)
	assert.Zero(t, host.calls)
}

func TestUploadAttachesForEveryPhoneForm(t *testing.T) {
	for _, input := range []string{"9999999999", "+919999999999", "919999999999"} {
		t.Run(input, func(t *testing.T) {
			c, store, host, pub, reg := setup(t)

			got, err := c.Upload(context.Background(), pngFile("r.png"), input, "")
			require.NoError(t, err)
			assert.Equal(t, reg.ID, got.ID)
			assert.Equal(t, 1, host.calls)

			stored, err := store.GetRegistration(context.Background(), reg.ID)
			require.NoError(t, err)
			assert.Equal(t, "https://cdn.example/r.png", stored.ReceiptURL)
			assert.Equal(t, "pub-r.png", stored.CloudinaryID)
			assert.Equal(t, []string{events.ReceiptAttached}, pub.keys)
		})
	}
}

func TestUploadNoMatchingRegistration(t *testing.T) {
	c, _, host, pub, _ := setup(t)

	_, err := c.Upload(context.Background(), pngFile("r.png"), "8888888888", "")
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, 1, host.calls, "asset is uploaded before the lookup")
	assert.Empty(t, pub.keys)
}

func TestUploadInvalidPhoneSkipsNetwork(t *testing.T) {
	c, _, host, _, _ := setup(t)

	_, err := c.Upload(context.Background(), pngFile("r.png"), "12345", "")
	require.Error(t, err)
	assert.Zero(t, host.calls)
}

func TestUploadHostFailure(t *testing.T) {
	c, store, host, _, reg := setup(t)
	host.err = &imagehost.UploadError{Status: 400, Message: "Invalid image file"}

	_, err := c.Upload(context.Background(), pngFile("r.png"), "9999999999", "")
	var upErr *imagehost.UploadError
	require.True(t, errors.As(err, &upErr))

	stored, err := store.GetRegistration(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ReceiptURL)
}

func TestUploadSharedPhoneNeedsDocument(t *testing.T) {
	c, store, host, pub, first := setup(t)
	second := &model.Registration{Name: "Bela", Year: "3rd", RollNumber: "21CS02", Phone: "+919999999999", RegistrationID: "8765"}
	require.NoError(t, store.CreateRegistration(context.Background(), second))

	_, err := c.Upload(context.Background(), pngFile("r.png"), "9999999999", "")
	assert.ErrorIs(t, err, ErrAmbiguous)
	assert.Empty(t, pub.keys)

	got, err := c.Upload(context.Background(), pngFile("r.png"), "9999999999", second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 2, host.calls)

	stored, err := store.GetRegistration(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ReceiptURL)
	stored, err = store.GetRegistration(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/r.png", stored.ReceiptURL)
}

func TestUploadDocumentMustCarryPhone(t *testing.T) {
	c, store, _, pub, reg := setup(t)
	other := &model.Registration{Name: "Kiran", Year: "2nd", RollNumber: "22ME04", Phone: "+918888888888", RegistrationID: "5555"}
	require.NoError(t, store.CreateRegistration(context.Background(), other))

	_, err := c.Upload(context.Background(), pngFile("r.png"), "9999999999", other.ID)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Empty(t, pub.keys)

	for _, id := range []string{reg.ID, other.ID} {
		stored, err := store.GetRegistration(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, stored.ReceiptURL)
	}
}
