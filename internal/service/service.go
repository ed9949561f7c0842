package service

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventreg/internal/auth"
	"eventreg/internal/broadcast"
	"eventreg/internal/imagehost"
	"eventreg/internal/payment"
	"eventreg/internal/repo"
	"eventreg/internal/wizard"
)

type Service interface {
	GetEvent(ctx *ginext.Context)
	StreamEvent(ctx *ginext.Context)

	Register(ctx *ginext.Context)
	GetRegistrationSession(ctx *ginext.Context)
	GetPayment(ctx *ginext.Context)
	GetPaymentQR(ctx *ginext.Context)
	MarkPaid(ctx *ginext.Context)
	UploadReceipt(ctx *ginext.Context)

	ListGallery(ctx *ginext.Context)

	Login(ctx *ginext.Context)
	Logout(ctx *ginext.Context)
	CurrentSession(ctx *ginext.Context)

	ListRegistrations(ctx *ginext.Context)
	UpdateRegistration(ctx *ginext.Context)
	DeleteRegistration(ctx *ginext.Context)
	ExportRegistrations(ctx *ginext.Context)
	UpdateEventDetails(ctx *ginext.Context)
	UpdateEventSettings(ctx *ginext.Context)
	CreateGalleryImage(ctx *ginext.Context)
	UpdateGalleryImage(ctx *ginext.Context)
	DeleteGalleryImage(ctx *ginext.Context)
}

// Deps is everything the handlers need. Location is used for CSV
// timestamps; nil means the server's local zone. Closing Shutdown ends
// open event streams.
type Deps struct {
	Repo     repo.Repository
	Pipeline *wizard.Pipeline
	Hub      *broadcast.Hub
	Images   imagehost.Uploader
	Auth     auth.Provider
	Tokens   *auth.Tokens
	Payee    payment.Payee
	QRSize   int
	Location *time.Location
	Shutdown <-chan struct{}
	Log      *zerolog.Logger
}

type service struct {
	repo     repo.Repository
	pipeline *wizard.Pipeline
	hub      *broadcast.Hub
	images   imagehost.Uploader
	auth     auth.Provider
	tokens   *auth.Tokens
	payee    payment.Payee
	qrSize   int
	loc      *time.Location
	shutdown <-chan struct{}
	log      *zerolog.Logger
	now      func() time.Time
}

func NewService(d Deps) Service {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	return &service{
		repo:     d.Repo,
		pipeline: d.Pipeline,
		hub:      d.Hub,
		images:   d.Images,
		auth:     d.Auth,
		tokens:   d.Tokens,
		payee:    d.Payee,
		qrSize:   d.QRSize,
		loc:      loc,
		shutdown: d.Shutdown,
		log:      d.Log,
		now:      time.Now,
	}
}
