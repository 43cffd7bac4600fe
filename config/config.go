package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

const (
	DefaultRawPhotosSubDir     = "raw_photos"
	DefaultSessionPhotosSubDir = "session_photos"
	DefaultThumbnailsSubDir    = "thumbnails"
)

const (
	defaultAnalysisQueueSize  = 50
	defaultNumAnalysisWorkers = 2
	defaultThumbnailMaxSize   = 400
	defaultPinLength          = 4
)

type Config struct {
	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath    string // primary root for stored photo assets
	RawPhotosSubDir     string // subdirectory name for raw uploads
	SessionPhotosSubDir string // subdirectory name for materialized session photos
	ThumbnailsSubDir    string // subdirectory name for thumbnails
	RawPhotosPath       string // full-calculated path for raw uploads
	SessionPhotosPath   string // full-calculated path for materialized session photos
	ThumbnailsPath      string // full-calculated path for thumbnails

	// base URL encoded into QR payloads, e.g. https://app.example.com
	ClientBaseURL string

	// thumbnail generation settings
	ThumbnailMaxSize int

	// analysis worker settings
	AnalysisQueueSize  int
	NumAnalysisWorkers int

	// session generation settings
	PinLength int

	// logging
	LogLevel string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Warn().Str("var", envVar).Str("value", valStr).Int("default", defaultVal).
			Msg("invalid integer environment variable, using default")
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "photodrop.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	rawSubDir := getEnvOrDefault("RAW_PHOTOS_SUBDIR", DefaultRawPhotosSubDir)
	absRawPhotosPath := filepath.Join(absMediaStorage, rawSubDir)

	sessionSubDir := getEnvOrDefault("SESSION_PHOTOS_SUBDIR", DefaultSessionPhotosSubDir)
	absSessionPhotosPath := filepath.Join(absMediaStorage, sessionSubDir)

	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)
	absThumbnailsPath := filepath.Join(absMediaStorage, thumbSubDir)

	clientBaseURL := getEnvOrDefault("CLIENT_BASE_URL", "http://localhost:3000")

	thumbMaxSize := getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize)

	queueSize := getEnvIntOrDefault("ANALYSIS_QUEUE_SIZE", defaultAnalysisQueueSize)
	numWorkers := getEnvIntOrDefault("NUM_ANALYSIS_WORKERS", defaultNumAnalysisWorkers)

	pinLength := getEnvIntOrDefault("PIN_LENGTH", defaultPinLength)
	if pinLength < 4 || pinLength > 6 {
		log.Warn().Int("pin_length", pinLength).Msg("PIN_LENGTH outside 4-6, using default")
		pinLength = defaultPinLength
	}

	cfg := Config{
		DatabasePath:        dbPath,
		MediaStoragePath:    absMediaStorage,
		RawPhotosSubDir:     rawSubDir,
		SessionPhotosSubDir: sessionSubDir,
		ThumbnailsSubDir:    thumbSubDir,
		RawPhotosPath:       absRawPhotosPath,
		SessionPhotosPath:   absSessionPhotosPath,
		ThumbnailsPath:      absThumbnailsPath,
		ClientBaseURL:       clientBaseURL,
		ThumbnailMaxSize:    thumbMaxSize,
		AnalysisQueueSize:   queueSize,
		NumAnalysisWorkers:  numWorkers,
		PinLength:           pinLength,
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg, nil
}
