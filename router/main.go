package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quizforge/quizforge-api/database"
	"github.com/quizforge/quizforge-api/handlers"
	draft_handlers "github.com/quizforge/quizforge-api/handlers/draft"
	quiz_handlers "github.com/quizforge/quizforge-api/handlers/quiz"
	"github.com/quizforge/quizforge-api/services"
	"github.com/quizforge/quizforge-api/services/inference"
	"github.com/quizforge/quizforge-api/services/spaces"
	"github.com/quizforge/quizforge-api/utils/auth"
	"github.com/quizforge/quizforge-api/utils/cache"
	"github.com/quizforge/quizforge-api/utils/middleware"
)

// Dependencies carries the shared clients built at startup
type Dependencies struct {
	Store     *database.GORMStore
	Drafts    *services.DraftService
	Storage   *spaces.Client
	Inference *inference.Client
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	// Get JWT secret from environment
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "quizforge-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret: jwtSecret,
		Expiry: 24 * time.Hour, // Access token expires in 24 hours
		Issuer: jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db := deps.Store.DB()

	// Redis cache for progress polling
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Progress caching will be disabled.", err)
		redisCache = nil
	}

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Draft pipeline services
	lockManager := services.NewChunkLockManager(db, services.DefaultLockTimeout)
	tracker := services.NewCompletionTracker(db)
	extractor := services.NewQuestionExtractor(deps.Inference, services.QuestionExtractorConfig{})
	worker := services.NewChunkWorker(db, lockManager, tracker, extractor, deps.Storage)
	quizService := services.NewQuizService(db)

	// Handlers
	healthHandler := handlers.NewHealthHandler(deps.Store)
	draftHandler := draft_handlers.NewDraftHandler(db, deps.Drafts, worker, tracker, redisCache)
	quizHandler := quiz_handlers.NewQuizHandler(quizService)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", healthHandler.Check)

	// API v1 group
	api := app.Group("/api/v1")

	// Draft routes (all protected - require authentication)
	drafts := api.Group("/drafts", authMiddleware.Required())
	drafts.Post("/", draftHandler.CreateDraft)                   // Protected: Upload PDF, create draft
	drafts.Get("/", draftHandler.ListDrafts)                     // Protected: List user's drafts
	drafts.Get("/:id", draftHandler.GetDraft)                    // Protected: Get draft with chunks and questions
	drafts.Delete("/:id", draftHandler.DeleteDraft)              // Protected: Delete draft and stored PDF
	drafts.Post("/:id/process-chunk", draftHandler.ProcessChunk) // Protected: Lock and process one chunk
	drafts.Get("/:id/progress", draftHandler.GetProgress)        // Protected: Poll extraction progress
	drafts.Post("/:id/publish", draftHandler.PublishDraft)       // Protected: Publish completed draft as quiz

	// Quiz routes (all protected - require authentication)
	quizzes := api.Group("/quizzes", authMiddleware.Required())
	quizzes.Get("/", quizHandler.ListQuizzes)      // Protected: List user's quizzes
	quizzes.Get("/:id", quizHandler.GetQuiz)       // Protected: Get quiz with questions
	quizzes.Delete("/:id", quizHandler.DeleteQuiz) // Protected: Delete quiz
}
