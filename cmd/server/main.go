package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"brightwell/internal/auth"
	"brightwell/internal/config"
	"brightwell/internal/handler"
	"brightwell/internal/llm"
	"brightwell/internal/middleware"
	"brightwell/internal/repository/postgres"
	postgresChat "brightwell/internal/repository/postgres/chat"
	chatsvc "brightwell/internal/service/chat"
	"brightwell/internal/storage"
	"brightwell/internal/tools"
	"brightwell/internal/tools/external"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" || cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	jwtVerifier, err := auth.NewJWKSVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	conversationRepo := postgresChat.NewConversationRepository(repoConfig)
	turnRepo := postgresChat.NewTurnRepository(repoConfig)
	translationRepo := postgresChat.NewTranslationRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Model provider and mode catalog
	provider, err := llm.NewAnthropicProvider(cfg.AnthropicAPIKey)
	if err != nil {
		log.Fatalf("Failed to create model provider: %v", err)
	}
	catalog, err := llm.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load mode catalog: %v", err)
	}

	// Tool catalog
	toolConfig := tools.DefaultConfig()
	blobStore := storage.NewBucketClient(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket)
	mediaBackend := external.NewMediaClient(cfg.MediaBackendURL, cfg.MediaBackendKey)
	searchClient := external.NewTavilyClient(cfg.TavilyAPIKey)

	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewWebSearchTool(searchClient, toolConfig, logger))
	registry.MustRegister(tools.NewFetchPageTool(toolConfig, logger))
	registry.MustRegister(tools.NewGenerateImageTool(mediaBackend, blobStore, toolConfig, logger))
	registry.MustRegister(tools.NewGenerateSpeechTool(mediaBackend, blobStore, toolConfig, logger))
	registry.MustRegister(tools.NewSaveTranslationTool(translationRepo, logger))
	logger.Info("tool registry initialized", "tools", registry.Len())

	// Turn orchestration
	loop := llm.NewLoop(provider, registry, cfg.MaxToolRounds, logger)
	titles := chatsvc.NewTitleGenerator(provider, catalog.TitleModel(), logger)
	chatService := chatsvc.NewService(
		conversationRepo,
		turnRepo,
		txManager,
		catalog,
		loop,
		titles,
		cfg.TurnTimeout,
		logger,
	)

	chatHandler := handler.NewChatHandler(chatService, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/chat", chatHandler.SubmitTurn)
	mux.HandleFunc("GET /api/chat", chatHandler.GetConversation)
	mux.HandleFunc("DELETE /api/chat", chatHandler.DeleteConversation)
	mux.HandleFunc("PATCH /api/chat/visibility", chatHandler.UpdateVisibility)
	mux.HandleFunc("GET /api/history", chatHandler.History)

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	var h http.Handler = mux
	h = middleware.Auth(jwtVerifier, logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
