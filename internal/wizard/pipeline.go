package wizard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"eventreg/internal/events"
	"eventreg/internal/imagehost"
	"eventreg/internal/model"
	"eventreg/internal/phone"
	"eventreg/pkg/validator"
)

type Registrar interface {
	CreateRegistration(ctx context.Context, reg *model.Registration) error
}

type IDAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

type ReceiptUploader interface {
	Upload(ctx context.Context, f imagehost.File, phoneNumber, documentID string) (*model.Registration, error)
}

// ValidationError lists the failing fields of a step-one form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return "invalid registration form: " + strings.Join(parts, "; ")
}

type Pipeline struct {
	sessions *Sessions
	store    Registrar
	ids      IDAllocator
	receipts ReceiptUploader
	events   events.Publisher
	log      *zerolog.Logger
}

func NewPipeline(sessions *Sessions, store Registrar, ids IDAllocator, receipts ReceiptUploader, pub events.Publisher, log *zerolog.Logger) *Pipeline {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Pipeline{
		sessions: sessions,
		store:    store,
		ids:      ids,
		receipts: receipts,
		events:   pub,
		log:      log,
	}
}

func (p *Pipeline) Start() Session {
	return p.sessions.Create()
}

func (p *Pipeline) Get(sessionID string) (Session, error) {
	return p.sessions.Get(sessionID)
}

// Normalize trims text fields and strips non-digits from the phone the way
// the form input does while typing.
func Normalize(f Form) Form {
	return Form{
		Name:       strings.TrimSpace(f.Name),
		Year:       strings.TrimSpace(f.Year),
		RollNumber: strings.TrimSpace(f.RollNumber),
		Phone:      phone.Digits(f.Phone),
	}
}

// Submit validates the form, allocates a registration id and creates the
// registration. Any failure leaves the session on the form step.
func (p *Pipeline) Submit(ctx context.Context, sessionID string, form Form) (Session, error) {
	form = Normalize(form)
	if fields := validator.Fields(ctx, form); len(fields) > 0 {
		return Session{}, &ValidationError{Fields: fields}
	}

	if _, err := p.sessions.begin(sessionID, StepForm); err != nil {
		return Session{}, err
	}

	reg, err := p.create(ctx, form)
	if err != nil {
		sess, _ := p.sessions.finish(sessionID, nil)
		return sess, err
	}

	sess, err := p.sessions.finish(sessionID, func(s *Session, at time.Time) error {
		return s.Submitted(form, reg.ID, reg.RegistrationID, at)
	})
	if err != nil {
		return sess, err
	}

	p.log.Info().
		Str("session_id", sessionID).
		Str("registration_id", reg.RegistrationID).
		Msg("registration created")
	p.publish(ctx, reg)
	return sess, nil
}

func (p *Pipeline) create(ctx context.Context, form Form) (*model.Registration, error) {
	canonical, err := phone.Canonical(form.Phone)
	if err != nil {
		return nil, err
	}
	regID, err := p.ids.Allocate(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to allocate registration id")
		return nil, fmt.Errorf("allocate registration id: %w", err)
	}
	reg := &model.Registration{
		Name:           form.Name,
		Year:           form.Year,
		RollNumber:     form.RollNumber,
		Phone:          canonical,
		RegistrationID: regID,
	}
	if err := p.store.CreateRegistration(ctx, reg); err != nil {
		p.log.Error().Err(err).Msg("failed to create registration")
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return reg, nil
}

// MarkPaid moves the session to the receipt step.
func (p *Pipeline) MarkPaid(sessionID string) (Session, error) {
	if _, err := p.sessions.begin(sessionID, StepPayment); err != nil {
		return Session{}, err
	}
	return p.sessions.finish(sessionID, func(s *Session, at time.Time) error {
		return s.Paid(at)
	})
}

// UploadReceipt attaches a receipt and completes the wizard. On failure the
// session stays on the receipt step so the visitor can try again.
func (p *Pipeline) UploadReceipt(ctx context.Context, sessionID string, f imagehost.File) (Session, error) {
	sess, err := p.sessions.begin(sessionID, StepReceipt)
	if err != nil {
		return Session{}, err
	}

	reg, err := p.receipts.Upload(ctx, f, sess.Form.Phone, sess.DocumentID)
	if err != nil {
		sess, _ = p.sessions.finish(sessionID, nil)
		return sess, err
	}

	return p.sessions.finish(sessionID, func(s *Session, at time.Time) error {
		return s.Completed(reg.ReceiptURL, at)
	})
}

func (p *Pipeline) publish(ctx context.Context, reg *model.Registration) {
	ev := events.RegistrationEvent{
		Type:           events.RegistrationCreated,
		DocumentID:     reg.ID,
		RegistrationID: reg.RegistrationID,
		Name:           reg.Name,
		Year:           reg.Year,
		RollNumber:     reg.RollNumber,
		Phone:          reg.Phone,
	}
	if reg.Timestamp != nil {
		ev.OccurredAt = *reg.Timestamp
	}
	body, err := events.Encode(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to encode registration event")
		return
	}
	if err := p.events.Publish(ctx, events.RegistrationCreated, body); err != nil {
		p.log.Warn().Err(err).Msg("failed to publish registration event")
	}
}
