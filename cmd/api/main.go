package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hifz-api/internal/config"
	"github.com/noah-isme/hifz-api/internal/database"
	"github.com/noah-isme/hifz-api/internal/handler"
	"github.com/noah-isme/hifz-api/internal/middleware"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/router"
	"github.com/noah-isme/hifz-api/internal/service"
	"github.com/noah-isme/hifz-api/internal/workflow"
	cloud "github.com/noah-isme/hifz-api/pkg/cloudinary"
	"github.com/noah-isme/hifz-api/pkg/s3"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "hifz-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	storage, err := newFileStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to configure attachment storage")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	directoryRepo := repository.NewDirectoryRepository(db)
	recorder := service.NewTransitionRecorder(repository.NewTransitionLogRepository(db), logger)

	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), redisClient, cfg.NotificationChannel, natsConn, validate, logger)
	notificationService.Start(ctx)

	assignmentService := service.NewAssignmentService(service.AssignmentServiceDeps{
		Repo:        repository.NewAssignmentRepository(db),
		Directory:   directoryRepo,
		Machine:     workflow.NewAssignmentMachine(cfg.MaxReopens),
		Recorder:    recorder,
		Notifier:    notificationService,
		Attachments: service.NewAttachmentStore(storage, cfg.UploadMaxSizeMB, logger),
		Validator:   validate,
	}, logger)
	homeworkService := service.NewHomeworkService(repository.NewHomeworkRepository(db), directoryRepo, recorder, notificationService, validate, logger)
	targetService := service.NewTargetService(repository.NewTargetRepository(db), directoryRepo, recorder, notificationService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler:   handler.NewAssignmentHandler(assignmentService, validate, logger),
		HomeworkHandler:     handler.NewHomeworkHandler(homeworkService, logger),
		TargetHandler:       handler.NewTargetHandler(targetService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("http server starting")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

// newFileStorage returns nil when uploads are disabled.
func newFileStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverCloudinary:
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	case config.StorageDriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Prefix:          "submissions",
		}, logger)
	default:
		logger.Warn().Msg("attachment storage disabled, uploads will be rejected")
		return nil, nil
	}
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
