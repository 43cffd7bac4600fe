package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// AssetServer creates a handler serving stored photo assets from one
// subdirectory of the media storage root. The route prefix must match the
// subdirectory, e.g.:
//
//	r.Get("/api/thumbnails/*", AssetServer(cfg.MediaStoragePath, cfg.ThumbnailsSubDir))
func AssetServer(baseStoragePath, subDir string) http.HandlerFunc {
	fullAssetDirPath := filepath.Clean(filepath.Join(baseStoragePath, subDir))
	log.Info().Str("sub_dir", subDir).Str("path", fullAssetDirPath).Msg("serving assets")

	if !strings.HasPrefix(fullAssetDirPath, baseStoragePath) {
		log.Fatal().Str("sub_dir", subDir).Str("resolved", fullAssetDirPath).
			Msg("asset subdirectory resolves outside base storage path")
	}

	return func(w http.ResponseWriter, r *http.Request) {
		routePrefix := "/api/" + subDir + "/"
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)

		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		cleanedAssetPath := filepath.Clean(filepath.Join(fullAssetDirPath, relativePath))
		if !strings.HasPrefix(cleanedAssetPath, fullAssetDirPath) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Warn().Str("request", r.URL.Path).Str("resolved", cleanedAssetPath).
				Msg("attempted asset access outside designated directory")
			return
		}

		if _, err := os.Stat(cleanedAssetPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Error().Err(err).Str("path", cleanedAssetPath).Msg("error stating asset file")
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedAssetPath)
	}
}
