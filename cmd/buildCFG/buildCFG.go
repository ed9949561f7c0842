package buildCFG

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"eventreg/internal/imagehost"
	"eventreg/internal/mailer"
	"eventreg/internal/payment"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	AuthLocal    = "local"
	AuthFirebase = "firebase"
)

type ServerConfig struct {
	Port       string
	StaticDir  string
	Location   *time.Location
	SessionTTL time.Duration
}

type StoreConfig struct {
	Driver            string
	MigrationsDir     string
	MigrateDownOnExit bool
}

type RabbitConfig struct {
	Enabled  bool
	Url      string
	Exchange string
	Queue    string
}

type AuthConfig struct {
	Provider       string
	FirebaseURL    string
	FirebaseAPIKey string
	Admins         map[string]string
	JWTSecret      string
	TokenTTL       time.Duration
	MaxAttempts    int
	AttemptWindow  time.Duration
}

type PaymentConfig struct {
	Payee  payment.Payee
	QRSize int
}

func duration(cfg *config.Config, key string, def time.Duration, log *zerolog.Logger) time.Duration {
	raw := cfg.GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("bad duration, using default")
		return def
	}
	return d
}

func list(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
	}

	loc := time.Local
	if tz := cfg.GetString("server.timezone"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn().Str("timezone", tz).Msg("unknown timezone, using local")
		} else {
			loc = l
		}
	}

	return ServerConfig{
		Port:       port,
		StaticDir:  cfg.GetString("server.static_dir"),
		Location:   loc,
		SessionTTL: duration(cfg, "server.session_ttl", 2*time.Hour, log),
	}
}

func BuildStoreConfig(cfg *config.Config, log *zerolog.Logger) (StoreConfig, error) {
	driver := cfg.GetString("store.driver")
	if driver == "" {
		driver = StoreMemory
	}
	if driver != StoreMemory && driver != StorePostgres {
		return StoreConfig{}, fmt.Errorf("unknown store driver %q", driver)
	}
	dir := cfg.GetString("postgres.migrations_dir")
	if dir == "" {
		dir = "migrations/postgres"
	}
	log.Info().Str("driver", driver).Msg("store configured")
	return StoreConfig{
		Driver:            driver,
		MigrationsDir:     dir,
		MigrateDownOnExit: cfg.GetBool("postgres.migrate_down_on_exit"),
	}, nil
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("postgres.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, errors.New("postgres.master_dsn is required")
	}
	slaveDSNs := list(cfg.GetString("postgres.slave_dsns"))

	maxOpen := cfg.GetInt("postgres.max_open_conns")
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.GetInt("postgres.max_idle_conns")
	if maxIdle <= 0 {
		maxIdle = 5
	}
	opts := &dbpg.Options{
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: duration(cfg, "postgres.conn_max_lifetime", 30*time.Minute, log),
	}
	log.Info().Int("replicas", len(slaveDSNs)).Msg("postgres configured")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Enabled:  cfg.GetBool("rabbit.enabled"),
		Url:      cfg.GetString("rabbit.url"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if !rc.Enabled {
		log.Info().Msg("RabbitMQ disabled, events will be dropped")
		return rc, nil
	}
	if rc.Url == "" {
		return rc, errors.New("rabbit.url is required when rabbit.enabled is set")
	}
	if rc.Exchange == "" {
		rc.Exchange = "registrations"
	}
	if rc.Queue == "" {
		rc.Queue = "registration_notices"
	}
	return rc, nil
}

func BuildImageHostConfig(cfg *config.Config, log *zerolog.Logger) (imagehost.Config, error) {
	ic := imagehost.Config{
		BaseURL:      cfg.GetString("cloudinary.base_url"),
		CloudName:    cfg.GetString("cloudinary.cloud_name"),
		UploadPreset: cfg.GetString("cloudinary.upload_preset"),
		Timeout:      duration(cfg, "cloudinary.timeout", 30*time.Second, log),
	}
	if ic.CloudName == "" || ic.UploadPreset == "" {
		return ic, errors.New("cloudinary.cloud_name and cloudinary.upload_preset are required")
	}
	return ic, nil
}

// BuildAuthConfig reads admins as "email:bcrypt-hash" pairs separated by
// commas. They are only used by the local provider.
func BuildAuthConfig(cfg *config.Config, log *zerolog.Logger) (AuthConfig, error) {
	ac := AuthConfig{
		Provider:       cfg.GetString("auth.provider"),
		FirebaseURL:    cfg.GetString("auth.firebase_url"),
		FirebaseAPIKey: cfg.GetString("auth.firebase_api_key"),
		Admins:         make(map[string]string),
		JWTSecret:      cfg.GetString("auth.jwt_secret"),
		TokenTTL:       duration(cfg, "auth.token_ttl", 12*time.Hour, log),
		MaxAttempts:    cfg.GetInt("auth.max_attempts"),
		AttemptWindow:  duration(cfg, "auth.attempt_window", 15*time.Minute, log),
	}
	if ac.Provider == "" {
		ac.Provider = AuthLocal
	}
	if ac.JWTSecret == "" {
		return ac, errors.New("auth.jwt_secret is required")
	}
	if ac.MaxAttempts <= 0 {
		ac.MaxAttempts = 5
	}

	switch ac.Provider {
	case AuthFirebase:
		if ac.FirebaseAPIKey == "" {
			return ac, errors.New("auth.firebase_api_key is required for the firebase provider")
		}
	case AuthLocal:
		for _, pair := range list(cfg.GetString("auth.admins")) {
			email, hash, ok := strings.Cut(pair, ":")
			if !ok {
				return ac, fmt.Errorf("auth.admins entry %q is not email:hash", pair)
			}
			ac.Admins[strings.ToLower(strings.TrimSpace(email))] = strings.TrimSpace(hash)
		}
		if len(ac.Admins) == 0 {
			log.Warn().Msg("no admins configured, admin sign-in will always fail")
		}
	default:
		return ac, fmt.Errorf("unknown auth provider %q", ac.Provider)
	}
	return ac, nil
}

func BuildPaymentConfig(cfg *config.Config, log *zerolog.Logger) (PaymentConfig, error) {
	pc := PaymentConfig{
		Payee: payment.Payee{
			Handle: cfg.GetString("payment.upi_handle"),
			Name:   cfg.GetString("payment.payee_name"),
		},
		QRSize: cfg.GetInt("payment.qr_size"),
	}
	if pc.Payee.Handle == "" {
		return pc, errors.New("payment.upi_handle is required")
	}
	if pc.QRSize <= 0 {
		pc.QRSize = 300
	}
	log.Info().Str("payee", pc.Payee.Name).Msg("payment configured")
	return pc, nil
}

func BuildMailConfig(cfg *config.Config, log *zerolog.Logger) mailer.Config {
	mc := mailer.Config{
		Host:     cfg.GetString("mail.host"),
		Port:     cfg.GetInt("mail.port"),
		Username: cfg.GetString("mail.username"),
		Password: cfg.GetString("mail.password"),
		From:     cfg.GetString("mail.from"),
		To:       list(cfg.GetString("mail.to")),
	}
	if mc.Port == 0 {
		mc.Port = 587
	}
	if len(mc.To) == 0 {
		log.Info().Msg("no admin mailbox configured, notices are disabled")
	}
	return mc
}
