package main

import (
	"database/sql"
	"log"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"voyanceBack/internal/billing"
	"voyanceBack/internal/config"
	"voyanceBack/internal/handlers"
	"voyanceBack/internal/notify"
	"voyanceBack/internal/payments"
	"voyanceBack/internal/presence"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/services"
	"voyanceBack/internal/storage"
	"voyanceBack/internal/ws"
	"voyanceBack/utils"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger
	db       *sql.DB

	authService      *services.AuthService
	packService      *services.MinutePackService
	analyticsService *services.AnalyticsService

	authHandler         *handlers.AuthHandler
	agentHandler        *handlers.AgentHandler
	voyantHandler       *handlers.VoyantHandler
	clientHandler       *handlers.ClientHandler
	conversationHandler *handlers.ConversationHandler
	messageHandler      *handlers.MessageHandler
	reviewHandler       *handlers.ReviewHandler
	paymentHandler      *handlers.PaymentHandler
	analyticsHandler    *handlers.AnalyticsHandler
	userHandler         *handlers.UserHandler
	wsHandler           *handlers.WSHandler

	hub *ws.Hub
}

// integrations are the optional outside services. Nil fields disable the
// matching feature.
type integrations struct {
	redis    *redis.Client
	provider payments.Provider
	notifier notify.Notifier
	uploader storage.Uploader
}

func initializeApp(db *sql.DB, cfg config.Config, ext integrations, logger *slog.Logger, errorLog, infoLog *log.Logger) (*application, error) {
	tokens, err := utils.NewManager(cfg.Session.Secret)
	if err != nil {
		return nil, err
	}
	catalogue, err := billing.NewCatalogue(cfg.Billing.Currency, cfg.Billing.Packs)
	if err != nil {
		return nil, err
	}
	if ext.notifier == nil {
		ext.notifier = notify.Nop{}
	}

	// Repositories
	userRepo := &repositories.UserRepository{DB: db}
	agentRepo := &repositories.AgentRepository{DB: db}
	clientRepo := &repositories.ClientRepository{DB: db}
	voyantRepo := &repositories.VoyantRepository{DB: db}
	packRepo := &repositories.MinutePackRepository{DB: db}
	conversationRepo := &repositories.ConversationRepository{DB: db}
	messageRepo := &repositories.MessageRepository{DB: db}
	reviewRepo := &repositories.ReviewRepository{DB: db}
	paymentRepo := &repositories.PaymentRepository{DB: db}
	analyticsRepo := &repositories.AnalyticsRepository{DB: db}
	statsRepo := &repositories.AgentStatsRepository{DB: db}

	var presenceStore presence.Store
	var guard services.RegistrationGuard
	if ext.redis != nil {
		presenceStore = presence.NewRedisStore(ext.redis, cfg.PresenceTTL())
		guard = &services.RedisRegistrationGuard{
			Client: ext.redis,
			Limit:  cfg.Registration.LimitPerIP,
			Window: cfg.RegistrationWindow(),
		}
	} else {
		presenceStore = presence.NewSQLStore(agentRepo, cfg.PresenceTTL())
	}

	hub := ws.NewHub(logger.With("component", "ws"), cfg.Server.AllowedOrigins)

	// Services
	authService := &services.AuthService{
		DB:           db,
		UserRepo:     userRepo,
		AgentRepo:    agentRepo,
		ClientRepo:   clientRepo,
		TokenManager: tokens,
		AccessTTL:    cfg.AccessTTL(),
		RefreshTTL:   cfg.RefreshTTL(),
		Guard:        guard,
		Logger:       logger.With("component", "auth"),
	}
	packService := &services.MinutePackService{
		DB:         db,
		PackRepo:   packRepo,
		ClientRepo: clientRepo,
		Validity:   cfg.PackValidity(),
		Logger:     logger.With("component", "minutes"),
	}
	agentService := &services.AgentService{
		DB:         db,
		AgentRepo:  agentRepo,
		VoyantRepo: voyantRepo,
		StatsRepo:  statsRepo,
		Presence:   presenceStore,
		Logger:     logger.With("component", "agents"),
	}
	voyantService := &services.VoyantService{
		VoyantRepo:  voyantRepo,
		AgentRepo:   agentRepo,
		ReviewsRepo: reviewRepo,
		Uploader:    ext.uploader,
		Logger:      logger.With("component", "voyants"),
	}
	clientService := &services.ClientService{
		DB:         db,
		ClientRepo: clientRepo,
		PackRepo:   packRepo,
	}
	conversationService := &services.ConversationService{
		DB:               db,
		ConversationRepo: conversationRepo,
		VoyantRepo:       voyantRepo,
		AgentRepo:        agentRepo,
		Packs:            packService,
		Events:           hub,
		Notifier:         ext.notifier,
		Logger:           logger.With("component", "conversations"),
	}
	messageService := &services.MessageService{
		MessageRepo:      messageRepo,
		ConversationRepo: conversationRepo,
		AgentRepo:        agentRepo,
		Events:           hub,
		Notifier:         ext.notifier,
		Logger:           logger.With("component", "messages"),
	}
	reviewService := &services.ReviewService{
		ReviewsRepo: reviewRepo,
		VoyantRepo:  voyantRepo,
		Logger:      logger.With("component", "reviews"),
	}
	paymentService := &services.PaymentService{
		DB:          db,
		PaymentRepo: paymentRepo,
		ClientRepo:  clientRepo,
		Packs:       packService,
		Provider:    ext.provider,
		Catalogue:   catalogue,
		Logger:      logger,
	}
	analyticsService := &services.AnalyticsService{
		AnalyticsRepo: analyticsRepo,
		StatsRepo:     statsRepo,
		ClientRepo:    clientRepo,
		AgentRepo:     agentRepo,
		ReviewsRepo:   reviewRepo,
		Agents:        agentService,
		Redis:         ext.redis,
		Logger:        logger.With("component", "analytics"),
	}
	userService := &services.UserService{UserRepo: userRepo}

	return &application{
		errorLog: errorLog,
		infoLog:  infoLog,
		db:       db,

		authService:      authService,
		packService:      packService,
		analyticsService: analyticsService,

		authHandler:         &handlers.AuthHandler{Service: authService, CookieSecure: cfg.Server.CookieSecure},
		agentHandler:        &handlers.AgentHandler{Service: agentService},
		voyantHandler:       &handlers.VoyantHandler{Service: voyantService},
		clientHandler:       &handlers.ClientHandler{Service: clientService, Packs: packService},
		conversationHandler: &handlers.ConversationHandler{Service: conversationService},
		messageHandler:      &handlers.MessageHandler{Service: messageService},
		reviewHandler:       &handlers.ReviewHandler{Service: reviewService},
		paymentHandler:      &handlers.PaymentHandler{Service: paymentService},
		analyticsHandler:    &handlers.AnalyticsHandler{Service: analyticsService},
		userHandler:         &handlers.UserHandler{Service: userService},
		wsHandler:           &handlers.WSHandler{Hub: hub},

		hub: hub,
	}, nil
}
