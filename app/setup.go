package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/quizforge/quizforge-api/api"
	"github.com/quizforge/quizforge-api/config"
	"github.com/quizforge/quizforge-api/database"
	"github.com/quizforge/quizforge-api/router"
	"github.com/quizforge/quizforge-api/services"
	"github.com/quizforge/quizforge-api/services/cron"
	"github.com/quizforge/quizforge-api/services/inference"
	"github.com/quizforge/quizforge-api/services/spaces"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Object storage for uploaded PDFs
	storageClient, err := spaces.NewClient(spaces.Config{
		AccessKey: getEnv.SPACES_ACCESS_KEY,
		SecretKey: getEnv.SPACES_SECRET_KEY,
		Bucket:    getEnv.SPACES_BUCKET,
		Region:    getEnv.SPACES_REGION,
		Endpoint:  getEnv.SPACES_ENDPOINT,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// LLM inference client for question extraction
	inferenceClient := inference.NewClient(inference.Config{
		APIKey:  getEnv.INFERENCE_API_KEY,
		BaseURL: getEnv.INFERENCE_URL,
		Model:   getEnv.INFERENCE_MODEL,
	})

	// Non-fatal startup probe, extraction requests surface real errors later
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := inferenceClient.HealthCheck(probeCtx); err != nil {
		print("Warning: Inference API health check failed\n")
		print("Error: ", err.Error(), "\n")
	}
	probeCancel()

	draftService := services.NewDraftService(store.DB(), storageClient, services.DraftServiceConfig{
		PagesPerChunk: getEnv.PAGES_PER_CHUNK,
		DraftTTL:      time.Duration(getEnv.DRAFT_TTL_HOURS) * time.Hour,
	})

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store.DB(), draftService)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes
	router.SetupRoutes(app, router.Dependencies{
		Store:     store,
		Drafts:    draftService,
		Storage:   storageClient,
		Inference: inferenceClient,
	})

	// Get the PORT & Start the Server
	return server.Run()

}
