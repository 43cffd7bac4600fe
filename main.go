package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	zlog "github.com/rs/zerolog/log"

	"github.com/marek-sl/photodropbackend/config"
	"github.com/marek-sl/photodropbackend/database"
	"github.com/marek-sl/photodropbackend/handlers"
	"github.com/marek-sl/photodropbackend/logging"
	"github.com/marek-sl/photodropbackend/media"
	"github.com/marek-sl/photodropbackend/repository"
	"github.com/marek-sl/photodropbackend/services"
	"github.com/marek-sl/photodropbackend/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Info: No .env file found or error loading: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("photodrop", cfg.LogLevel)
	zlog.Logger = logger

	storagePaths := []string{cfg.RawPhotosPath, cfg.SessionPhotosPath, cfg.ThumbnailsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		if err := os.MkdirAll(p, 0755); err != nil {
			logger.Fatal().Err(err).Str("path", p).Msg("failed to create storage directory")
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := database.AutoMigrateModels(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database schema")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to access underlying sql.DB")
	}
	defer sqlDB.Close()

	mediaSubDirs := map[media.AssetType]string{
		media.AssetTypeRawPhoto:     cfg.RawPhotosSubDir,
		media.AssetTypeSessionPhoto: cfg.SessionPhotosSubDir,
		media.AssetTypeThumbnail:    cfg.ThumbnailsSubDir,
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize media store")
	}

	projectRepo := repository.NewProjectRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	sessionPhotoRepo := repository.NewSessionPhotoRepository(db)
	batchRepo := repository.NewUploadBatchRepository(db)
	rawPhotoRepo := repository.NewRawPhotoRepository(db)

	analyzer := workers.NewBatchAnalyzer(
		batchRepo,
		rawPhotoRepo,
		sessionRepo,
		sessionPhotoRepo,
		mediaStore,
		func() workers.Decoder { return media.NewQRDecoder() },
		cfg.ThumbnailMaxSize,
		cfg.AnalysisQueueSize,
		cfg.NumAnalysisWorkers,
		logger,
	)
	defer analyzer.Stop()

	sessionService := services.NewSessionService(sessionRepo, projectRepo, cfg.ClientBaseURL, cfg.PinLength, logger)

	projectHandler := &handlers.ProjectHandler{Repo: projectRepo, StatsDB: sqlDB, Logger: logger}
	sessionHandler := &handlers.SessionHandler{
		Sessions:      sessionRepo,
		SessionPhotos: sessionPhotoRepo,
		Service:       sessionService,
		Store:         mediaStore,
		ThumbMaxSize:  cfg.ThumbnailMaxSize,
		Logger:        logger,
	}
	clientHandler := &handlers.ClientHandler{Service: sessionService, SessionPhotos: sessionPhotoRepo, Logger: logger}
	batchHandler := &handlers.BatchHandler{
		Batches:   batchRepo,
		RawPhotos: rawPhotoRepo,
		Projects:  projectRepo,
		Store:     mediaStore,
		Analyzer:  analyzer,
		Logger:    logger,
	}

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{cfg.ClientBaseURL, "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(corsHandler.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectHandler.CreateProject)
			r.Get("/", projectHandler.ListProjects)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Put("/", projectHandler.UpdateProject)
				r.Delete("/", projectHandler.DeleteProject)
				r.Get("/stats", projectHandler.GetProjectStats)

				r.Post("/sessions/generate", sessionHandler.GenerateSessions)
				r.Get("/sessions", sessionHandler.ListSessions)

				r.Post("/batches", batchHandler.CreateBatch)
				r.Get("/batches", batchHandler.ListBatches)
			})
		})

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", sessionHandler.GetSession)
			r.Patch("/", sessionHandler.UpdateSessionInfo)
			r.Post("/complete", sessionHandler.CompleteSession)
			r.Post("/photos", sessionHandler.UploadSessionPhoto)
		})

		r.Route("/batches/{batchID}", func(r chi.Router) {
			r.Get("/", batchHandler.GetBatch)
			r.Get("/photos", batchHandler.ListBatchPhotos)
			r.Post("/analyze", batchHandler.ReanalyzeBatch)
		})

		r.Route("/client/{code}", func(r chi.Router) {
			r.Get("/", clientHandler.ScanSession)
			r.Post("/info", clientHandler.ProvideInfo)
		})

		r.Get(fmt.Sprintf("/%s/*", cfg.SessionPhotosSubDir), handlers.AssetServer(cfg.MediaStoragePath, cfg.SessionPhotosSubDir))
		r.Get(fmt.Sprintf("/%s/*", cfg.ThumbnailsSubDir), handlers.AssetServer(cfg.MediaStoragePath, cfg.ThumbnailsSubDir))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	logger.Info().Str("addr", serverAddr).Msg("server listening")

	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
