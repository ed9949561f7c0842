package repo

import (
	"context"
	"errors"

	"eventreg/internal/model"
)

const (
	CollectionRegistrations = "registrations"
	CollectionEventDetails  = "eventDetails"
	CollectionEventSettings = "eventSettings"
	CollectionGallery       = "gallery"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrEmptyPatch = errors.New("nothing to update")
)

type Repository interface {
	CreateRegistration(ctx context.Context, reg *model.Registration) error
	RegistrationIDExists(ctx context.Context, registrationID string) (bool, error)
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	ListRegistrations(ctx context.Context) ([]model.Registration, error)
	// FindRegistrationsByPhone returns every registration with the phone,
	// oldest first. No match is an empty slice, not ErrNotFound.
	FindRegistrationsByPhone(ctx context.Context, canonicalPhone string) ([]model.Registration, error)
	UpdateRegistration(ctx context.Context, id string, patch model.RegistrationPatch) error
	AttachReceipt(ctx context.Context, id string, receipt model.Receipt) error
	DeleteRegistration(ctx context.Context, id string) error

	// EventDetails and EventSettings return the singleton document, creating
	// it with defaults when the collection is empty.
	EventDetails(ctx context.Context) (*model.EventDetails, error)
	UpdateEventDetails(ctx context.Context, id string, patch model.EventDetailsPatch) error
	EventSettings(ctx context.Context) (*model.EventSettings, error)
	UpdateEventSettings(ctx context.Context, id string, price int) error

	ListGallery(ctx context.Context, filter model.GalleryFilter) ([]model.GalleryImage, error)
	GetGalleryImage(ctx context.Context, id string) (*model.GalleryImage, error)
	CreateGalleryImage(ctx context.Context, img *model.GalleryImage) error
	UpdateGalleryImage(ctx context.Context, id string, patch model.GalleryImagePatch) error
	DeleteGalleryImage(ctx context.Context, id string) error

	Watcher
}

// Change names the collection (and document, when known) that was written.
type Change struct {
	Collection string
	ID         string
}

// Watcher is the push-subscription primitive. The returned channel is
// closed once ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}
