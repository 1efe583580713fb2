package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/emberhold/apiserver/config"
	"github.com/emberhold/apiserver/internal/db"
	"github.com/emberhold/apiserver/internal/handlers"
	"github.com/emberhold/apiserver/internal/mailer"
	"github.com/emberhold/apiserver/internal/mq"
	"github.com/emberhold/apiserver/internal/oauth"
	"github.com/emberhold/apiserver/internal/services"
	"github.com/emberhold/apiserver/internal/storage"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/internal/token"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Backend
}

// New wires the repositories, services and routes from config. Everything
// that can fail closed fails here, before the server starts accepting
// requests.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	production := cfg.IsProduction()

	signer, err := token.NewSigner(cfg.Auth.JWTSecret, production)
	if err != nil {
		return nil, err
	}

	var (
		dbConn      *sql.DB
		userRepo    services.UserRepository
		sessionRepo services.SessionRepository
	)
	if cfg.Database.Disabled {
		if production {
			return nil, errors.New("DB_DISABLED is not allowed in production")
		}
		userRepo = store.NewMemoryUserRepository()
		sessionRepo = store.NewMemorySessionRepository()
	} else {
		dbConn, err = db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		userRepo = store.NewUserRepository(dbConn)
		sessionRepo = store.NewSessionRepository(dbConn)
	}

	if production && (cfg.Discord.ClientID == "" || cfg.Discord.ClientSecret == "") {
		closeQuietly(dbConn)
		return nil, errors.New("discord client credentials are required in production")
	}

	broker, err := newBroker(ctx, cfg)
	if err != nil {
		closeQuietly(dbConn)
		return nil, err
	}

	var verificationMailer services.Mailer = mailer.LogMailer{}
	if broker != nil {
		verificationMailer = mailer.NewQueueMailer(broker)
	}

	objects, err := newObjectStorage(ctx, cfg)
	if err != nil {
		closeQuietly(dbConn)
		return nil, err
	}

	discordClient := oauth.NewDiscordClient(cfg.Discord, cfg.Auth.SiteURL)
	steamClient := oauth.NewSteamClient(cfg.Steam)
	avatars := services.NewAvatarService(objects, cfg.Storage.PublicBaseURL)

	userService := services.NewUserService(userRepo)
	sessionService := services.NewSessionService(signer, sessionRepo)
	verificationService := services.NewVerificationService(userRepo, verificationMailer, cfg.Auth.SiteURL)
	discordLinker := services.NewDiscordLinker(userRepo, discordClient, avatars)
	steamLinker := services.NewSteamLinker(userRepo, steamClient, avatars)

	auth := handlers.NewAuth(signer, userService, production)
	authHandler := handlers.NewAuthHandler(userService, sessionService, production)
	oauthHandler := handlers.NewOAuthHandler(
		discordLinker, steamLinker, discordClient, steamClient,
		sessionService, cfg.Auth.SiteURL, production,
	)
	verifyHandler := handlers.NewVerifyHandler(verificationService, cfg.Auth.SiteURL)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Post("/register", authHandler.Register)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, auth)
		handlers.OAuthRouter(r, oauthHandler)
		handlers.VerifyRouter(r, verifyHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
	}, nil
}

// Router exposes the chi router so feature routers can mount on it.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func newBroker(ctx context.Context, cfg config.Config) (mq.Backend, error) {
	switch cfg.MQ.Backend {
	case "":
		log.Println("server: no message broker configured, verification emails go to the log")
		return nil, nil
	case "rabbitmq":
		return mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.MQ.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

func newObjectStorage(ctx context.Context, cfg config.Config) (storage.ObjectStorage, error) {
	var (
		objects storage.ObjectStorage
		err     error
	)
	switch cfg.Storage.Backend {
	case "":
		return nil, nil
	case "minio":
		objects, err = storage.NewMinioClient(cfg.Storage.Minio)
	case "gcs":
		objects, err = storage.NewGCSClient(ctx, cfg.Storage.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return objects, nil
}

func closeQuietly(dbConn *sql.DB) {
	if dbConn != nil {
		_ = dbConn.Close()
	}
}
