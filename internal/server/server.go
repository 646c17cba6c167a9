package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/chopchop/backend/config"
	"github.com/pageza/chopchop/backend/internal/api"
	"github.com/pageza/chopchop/backend/internal/database"
	"github.com/pageza/chopchop/backend/internal/logger"
	"github.com/pageza/chopchop/backend/internal/middleware"
	"github.com/pageza/chopchop/backend/internal/router"
	"github.com/pageza/chopchop/backend/internal/service"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	http       *http.Server
	db         *gorm.DB
	redis      *redis.Client
	workspaces *service.WorkspaceRegistry
	logger     *zap.Logger
}

// New wires the services described by cfg. Optional integrations (Redis,
// S3, Cognito, SMTP) are enabled when configured; an unreachable Redis
// falls back to in-memory sessions.
func New(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: zl}

	db, err := database.Open(cfg, zl)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := database.Migrate(db, zl); err != nil {
			return nil, err
		}
	}
	s.db = db

	backend := service.NewBackendClient(cfg.BackendURL, logger.Component(zl, "backend"))

	var history service.HistoryStore
	if db != nil {
		history = service.NewGormHistoryStore(db)
	} else {
		history = service.NewRemoteHistoryStore(backend)
	}

	var (
		sessions service.SessionStore = service.NewMemorySessionStore()
		limiter  *middleware.RateLimiter
	)
	if cfg.RedisEnabled() {
		client, err := database.NewRedisClient(cfg, zl)
		if err != nil {
			zl.Warn("Redis unavailable, using in-memory sessions without rate limiting", zap.Error(err))
		} else {
			s.redis = client
			sessions = service.NewRedisSessionStore(client)
			limiter = middleware.NewAssistantRateLimiter(client, logger.Component(zl, "rate_limit"))
		}
	}

	var archive service.PhotoArchive
	if cfg.S3Bucket != "" {
		s3cfg, err := config.NewS3Config(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure S3: %w", err)
		}
		archive = service.NewS3PhotoArchive(s3cfg)
		zl.Info("archiving fridge photos", zap.String("bucket", s3cfg.BucketName))
	}

	var authenticator service.Authenticator
	if cfg.CognitoEnabled() {
		awsCfg, err := config.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		authenticator = service.NewCognitoAuthenticator(cip.NewFromConfig(awsCfg), cfg.CognitoClientID, cfg.CognitoClientSecret)
		zl.Info("sign-in checked against Cognito", zap.String("user_pool", cfg.CognitoUserPoolID))
	}

	var mailer service.MailSender
	if cfg.SMTPEnabled() {
		mailer = service.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}

	s.workspaces = service.NewWorkspaceRegistry(service.WorkspaceDeps{
		Backend: backend,
		History: history,
		Archive: archive,
		Photos: service.NewPhotoProcessor(service.PhotoOptions{
			MaxBytes:     cfg.UploadMaxBytes,
			Compress:     cfg.UploadCompress,
			MaxDimension: cfg.UploadMaxDimension,
			Quality:      cfg.UploadQuality,
		}),
		AutosaveDelay: cfg.AutosaveDelay,
		Logger:        zl,
	})

	s.router = router.SetupRouter(cfg, api.Dependencies{
		Auth:       service.NewAuthService(cfg.JWTSecret, cfg.SessionTTL, sessions, authenticator, logger.Component(zl, "auth")),
		Workspaces: s.workspaces,
		Email:      service.NewEmailService(mailer, cfg.EmailFrom, backend, logger.Component(zl, "email")),
		Backend:    backend,
		Limiter:    limiter,
		DB:         db,
		MaxUpload:  cfg.UploadMaxBytes,
	}, zl)

	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and releases its resources
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.workspaces.CloseAll()

	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			s.logger.Warn("failed to close Redis client", zap.Error(cerr))
		}
	}
	if s.db != nil {
		if sqlDB, derr := s.db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
	}
	return err
}
