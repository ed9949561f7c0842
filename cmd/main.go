package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"eventreg/cmd/buildCFG"
	"eventreg/internal/api/api"
	"eventreg/internal/auth"
	"eventreg/internal/broadcast"
	rabbitReader "eventreg/internal/consumerWorker"
	"eventreg/internal/events"
	"eventreg/internal/idalloc"
	"eventreg/internal/imagehost"
	"eventreg/internal/mailer"
	"eventreg/internal/rabbit"
	"eventreg/internal/receipt"
	"eventreg/internal/repo"
	"eventreg/internal/service"
	"eventreg/internal/wizard"
)

func openStore(cfg *config.Config, storeCfg buildCFG.StoreConfig, log *zerolog.Logger) (repo.Repository, func(), error) {
	if storeCfg.Driver == buildCFG.StoreMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return repo.NewMemory(), func() {}, nil
	}

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("build DB config: %w", err)
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to DB: %w", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewPostgres(db, masterDSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize repository: %w", err)
	}

	migrationPath := storeCfg.MigrationsDir
	if !filepath.IsAbs(migrationPath) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("get working directory: %w", err)
		}
		migrationPath = filepath.Join(cwd, migrationPath)
	}
	if err := repository.MigrateUp(migrationPath); err != nil {
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Info().Msg("Migrations applied successfully")

	cleanup := func() {
		if storeCfg.MigrateDownOnExit {
			log.Info().Msg("Rolling back migrations...")
			if err := repository.MigrateDown(migrationPath); err != nil {
				log.Error().Msgf("failed to rollback migrations: %v", err)
			} else {
				log.Info().Msg("Migrations rolled back successfully")
			}
		}
		_ = db.Master.Close()
	}
	return repository, cleanup, nil
}

func authProvider(ac buildCFG.AuthConfig) auth.Provider {
	if ac.Provider == buildCFG.AuthFirebase {
		return auth.NewFirebase(ac.FirebaseURL, ac.FirebaseAPIKey, 10*time.Second)
	}
	return auth.NewLocal(ac.Admins, ac.MaxAttempts, ac.AttemptWindow)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	zlog.Init()
	log := zlog.Logger

	if err := run(&log); err != nil {
		log.Fatal().Err(err).Msg("eventreg stopped")
	}
	log.Info().Msg("Shutdown complete")
}

// run wires the application and blocks until a signal or a server error.
// Everything opened here is released by its deferred cleanup before run
// returns, including on startup errors.
func run(log *zerolog.Logger) error {
	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "EVENTREG"); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, log)

	storeCfg, err := buildCFG.BuildStoreConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("build store config: %w", err)
	}
	authCfg, err := buildCFG.BuildAuthConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("load auth config: %w", err)
	}
	imageCfg, err := buildCFG.BuildImageHostConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("load image host config: %w", err)
	}
	paymentCfg, err := buildCFG.BuildPaymentConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("load payment config: %w", err)
	}
	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("load RabbitMQ config: %w", err)
	}

	repository, closeStore, err := openStore(cfg, storeCfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var publisher events.Publisher = events.Nop{}
	if rabbitCfg.Enabled {
		rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue,
			[]string{events.RegistrationCreated, events.ReceiptAttached})
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer rmq.Close()
		publisher = rmq

		mail := mailer.New(buildCFG.BuildMailConfig(cfg, log), log)
		reader := rabbitReader.NewReader(rmq, mail)
		reader.Start(workerCtx)
		defer reader.Stop()
	}

	hub := broadcast.NewHub(repository, log)
	if err := hub.Start(workerCtx); err != nil {
		return fmt.Errorf("start event broadcast: %w", err)
	}
	defer hub.Close()

	images := imagehost.NewCloudinary(imageCfg, log)
	coordinator := receipt.NewCoordinator(repository, images, publisher, log)
	sessions := wizard.NewSessions(serverCfg.SessionTTL)
	go sessions.RunJanitor(workerCtx, time.Minute, func(n int) {
		log.Debug().Int("purged", n).Msg("idle registration sessions purged")
	})
	pipeline := wizard.NewPipeline(sessions, repository, idalloc.New(repository), coordinator, publisher, log)

	streamsDone := make(chan struct{})
	tokens := auth.NewTokens(authCfg.JWTSecret, authCfg.TokenTTL, "eventreg")
	serviceInstance := service.NewService(service.Deps{
		Repo:     repository,
		Pipeline: pipeline,
		Hub:      hub,
		Images:   images,
		Auth:     authProvider(authCfg),
		Tokens:   tokens,
		Payee:    paymentCfg.Payee,
		QRSize:   paymentCfg.QRSize,
		Location: serverCfg.Location,
		Shutdown: streamsDone,
		Log:      log,
	})
	app := api.NewRouters(&api.Routers{Service: serviceInstance, Tokens: tokens, StaticDir: serverCfg.StaticDir})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(func() { close(streamsDone) })

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case serveErr = <-serverErrChan:
		log.Error().Msgf("Server error: %v", serveErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}
	return serveErr
}
