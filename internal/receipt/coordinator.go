// Package receipt uploads a payment receipt and attaches it to the
// registration that owns the phone number.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eventreg/internal/events"
	"eventreg/internal/imagehost"
	"eventreg/internal/model"
	"eventreg/internal/phone"
)

var (
	ErrNoMatch   = errors.New("no matching registration")
	ErrAmbiguous = errors.New("phone matches more than one registration")
)

type Store interface {
	FindRegistrationsByPhone(ctx context.Context, canonicalPhone string) ([]model.Registration, error)
	AttachReceipt(ctx context.Context, id string, receipt model.Receipt) error
}

type Coordinator struct {
	store  Store
	host   imagehost.Uploader
	events events.Publisher
	log    *zerolog.Logger
	now    func() time.Time
}

func NewCoordinator(store Store, host imagehost.Uploader, pub events.Publisher, log *zerolog.Logger) *Coordinator {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Coordinator{store: store, host: host, events: pub, log: log, now: time.Now}
}

// Upload validates f, sends it to the image host and records the hosted URL
// on the registration for phoneNumber. The phone may be given in any form
// phone.Canonical accepts. When documentID is set the receipt goes to that
// registration, which must still carry the phone; otherwise the phone must
// match exactly one registration. An upload whose attach fails is left on
// the host.
func (c *Coordinator) Upload(ctx context.Context, f imagehost.File, phoneNumber, documentID string) (*model.Registration, error) {
	if err := imagehost.Check(&f); err != nil {
		return nil, err
	}
	canonical, err := phone.Canonical(phoneNumber)
	if err != nil {
		return nil, err
	}

	asset, err := c.host.Upload(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("upload receipt: %w", err)
	}

	matches, err := c.store.FindRegistrationsByPhone(ctx, canonical)
	if err != nil {
		c.log.Error().Err(err).Str("public_id", asset.PublicID).Msg("receipt uploaded but lookup failed; asset left on host")
		return nil, fmt.Errorf("find registration: %w", err)
	}
	reg, err := pick(matches, documentID)
	if err != nil {
		c.log.Warn().Err(err).Str("phone", canonical).Int("matches", len(matches)).Str("public_id", asset.PublicID).Msg("receipt uploaded but not attached; asset left on host")
		return nil, fmt.Errorf("%w: phone %s", err, canonical)
	}

	rec := model.Receipt{URL: asset.SecureURL, CloudinaryID: asset.PublicID}
	if err := c.store.AttachReceipt(ctx, reg.ID, rec); err != nil {
		c.log.Error().Err(err).Str("registration_id", reg.RegistrationID).Str("public_id", asset.PublicID).Msg("failed to attach receipt; asset left on host")
		return nil, fmt.Errorf("attach receipt: %w", err)
	}
	reg.ReceiptURL = rec.URL
	reg.CloudinaryID = rec.CloudinaryID

	c.log.Info().Str("registration_id", reg.RegistrationID).Str("public_id", asset.PublicID).Msg("receipt attached")
	c.publish(ctx, reg)
	return reg, nil
}

func pick(matches []model.Registration, documentID string) (*model.Registration, error) {
	if documentID != "" {
		for i := range matches {
			if matches[i].ID == documentID {
				return &matches[i], nil
			}
		}
		return nil, ErrNoMatch
	}
	switch len(matches) {
	case 0:
		return nil, ErrNoMatch
	case 1:
		return &matches[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

func (c *Coordinator) publish(ctx context.Context, reg *model.Registration) {
	body, err := events.Encode(events.RegistrationEvent{
		Type:           events.ReceiptAttached,
		DocumentID:     reg.ID,
		RegistrationID: reg.RegistrationID,
		Name:           reg.Name,
		Year:           reg.Year,
		RollNumber:     reg.RollNumber,
		Phone:          reg.Phone,
		ReceiptURL:     reg.ReceiptURL,
		OccurredAt:     c.now(),
	})
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode receipt event")
		return
	}
	if err := c.events.Publish(ctx, events.ReceiptAttached, body); err != nil {
		c.log.Warn().Err(err).Msg("failed to publish receipt event")
	}
}
