package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/media"
	"github.com/marek-sl/photodropbackend/models"
	"github.com/marek-sl/photodropbackend/repository"
	"github.com/marek-sl/photodropbackend/services"
	"github.com/marek-sl/photodropbackend/utils"
)

// direct uploads go through an in-memory buffer for thumbnailing; cap the
// request size well above any realistic photo
const maxSessionPhotoUpload = 100 << 20

type SessionHandler struct {
	Sessions      repository.SessionRepositoryInterface
	SessionPhotos repository.SessionPhotoRepositoryInterface
	Service       *services.SessionService
	Store         media.Store
	ThumbMaxSize  int
	Logger        zerolog.Logger
}

// GenerateSessions bulk-creates sessions with printable credentials. The
// response is the only place the plaintext PINs ever appear.
func (sh *SessionHandler) GenerateSessions(w http.ResponseWriter, r *http.Request) {
	projectID, err := uintURLParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	var req struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	generated, err := sh.Service.GenerateSessions(projectID, req.Amount)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		sh.Logger.Error().Err(err).Uint("project_id", projectID).Int("amount", req.Amount).
			Msg("session generation failed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sessions": generated,
		"count":    len(generated),
	})
}

func (sh *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	projectID, err := uintURLParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	status := r.URL.Query().Get("status")
	search := r.URL.Query().Get("search")

	sessions, err := sh.Sessions.List(projectID, status, search)
	if err != nil {
		sh.Logger.Error().Err(err).Uint("project_id", projectID).Msg("failed to list sessions")
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (sh *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	photos, err := sh.SessionPhotos.ListBySession(session.ID)
	if err != nil {
		sh.Logger.Error().Err(err).Uint("session_id", session.ID).Msg("failed to list session photos")
		writeError(w, http.StatusInternalServerError, "Failed to load session photos")
		return
	}
	session.Photos = photos

	writeJSON(w, http.StatusOK, session)
}

// UpdateSessionInfo lets the photographer attach notes and a location name
func (sh *SessionHandler) UpdateSessionInfo(w http.ResponseWriter, r *http.Request) {
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	var req struct {
		SessionNotes *string `json:"session_notes"`
		LocationName *string `json:"location_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := sh.Sessions.UpdateSessionInfo(session.ID, req.SessionNotes, req.LocationName); err != nil {
		sh.Logger.Error().Err(err).Uint("session_id", session.ID).Msg("failed to update session info")
		writeError(w, http.StatusInternalServerError, "Failed to update session")
		return
	}

	updated, err := sh.Sessions.GetByID(session.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload session")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (sh *SessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	completed, err := sh.Service.CompleteSession(session.ID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, completed)
}

// UploadSessionPhoto adds a photo directly to a session, bypassing batch
// analysis. Re-uploading the same filename is a no-op.
func (sh *SessionHandler) UploadSessionPhoto(w http.ResponseWriter, r *http.Request) {
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxSessionPhotoUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing 'photo' file field")
		return
	}
	defer file.Close()

	if !utils.IsRasterImage(header.Filename) {
		writeError(w, http.StatusBadRequest, "Unsupported file type: "+header.Filename)
		return
	}

	photoBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	photo, created, err := sh.materializeDirectUpload(session, header.Filename, photoBytes)
	if err != nil {
		sh.Logger.Error().Err(err).Uint("session_id", session.ID).Str("filename", header.Filename).
			Msg("direct photo upload failed")
		writeError(w, http.StatusInternalServerError, "Failed to store photo")
		return
	}

	if _, err := sh.Sessions.AdvanceToPhotosUploaded(session.ID, time.Now().Unix()); err != nil {
		sh.Logger.Error().Err(err).Uint("session_id", session.ID).Msg("failed to advance session status after upload")
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, photo)
}

func (sh *SessionHandler) materializeDirectUpload(session *models.Session, filename string, photoBytes []byte) (*models.SessionPhoto, bool, error) {
	if existing, err := sh.SessionPhotos.GetBySessionAndFilename(session.ID, filename); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	dirHint := fmt.Sprintf("%d", session.ID)
	storagePath, err := sh.Store.Save(media.AssetTypeSessionPhoto, dirHint, filename, bytes.NewReader(photoBytes))
	if err != nil {
		return nil, false, err
	}

	var thumbPath *string
	if thumbBytes, err := utils.MakeThumbnail(photoBytes, sh.ThumbMaxSize); err == nil {
		thumbName := uuid.NewString() + filepath.Ext(filename)
		if p, err := sh.Store.Save(media.AssetTypeThumbnail, "", thumbName, bytes.NewReader(thumbBytes)); err == nil {
			thumbPath = &p
		}
	}

	meta := utils.ExtractPhotoMetadata(bytes.NewReader(photoBytes))

	photo := &models.SessionPhoto{
		SessionID:        session.ID,
		OriginalFilename: filename,
		StoragePath:      storagePath,
		ThumbnailPath:    thumbPath,
		TakenAt:          meta.TakenAt,
		UploadedAt:       time.Now().Unix(),
		FileSize:         int64(len(photoBytes)),
	}
	created, err := sh.SessionPhotos.CreateIfAbsent(photo)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := sh.SessionPhotos.GetBySessionAndFilename(session.ID, filename)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return photo, true, nil
}

func (sh *SessionHandler) loadSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	sessionID, err := uintURLParam(r, "sessionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID")
		return nil, false
	}

	session, err := sh.Sessions.GetByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil, false
		}
		sh.Logger.Error().Err(err).Uint("session_id", sessionID).Msg("failed to fetch session")
		writeError(w, http.StatusInternalServerError, "Failed to fetch session")
		return nil, false
	}
	return session, true
}
