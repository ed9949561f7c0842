package mailer

import (
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"eventreg/internal/events"
	"eventreg/internal/phone"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Mailer sends the admin mailbox a note for every registration event.
type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

func compose(ev events.RegistrationEvent) (subject, body string) {
	local := phone.Local(ev.Phone)
	switch ev.Type {
	case events.ReceiptAttached:
		subject = fmt.Sprintf("Receipt uploaded: #%s %s", ev.RegistrationID, ev.Name)
		body = fmt.Sprintf("%s (%s, %s year, phone %s) uploaded a payment receipt.\n\nReceipt: %s\n",
			ev.Name, ev.RollNumber, ev.Year, local, ev.ReceiptURL)
	default:
		subject = fmt.Sprintf("New registration: #%s %s", ev.RegistrationID, ev.Name)
		body = fmt.Sprintf("%s (%s, %s year, phone %s) registered and is on the payment step.\n",
			ev.Name, ev.RollNumber, ev.Year, local)
	}
	return subject, body
}

func (m *Mailer) SendRegistrationNotice(ev events.RegistrationEvent) error {
	if len(m.cfg.To) == 0 {
		return nil
	}
	subject, body := compose(ev)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, strings.Join(m.cfg.To, ", "), subject, body,
	)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, m.cfg.To, []byte(msg)); err != nil {
		m.log.Warn().Msgf("failed to send notice for registration %s: %v", ev.RegistrationID, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("📧 Notice sent for registration %s (%s)", ev.RegistrationID, ev.Type)
	return nil
}
