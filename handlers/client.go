package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/marek-sl/photodropbackend/models"
	"github.com/marek-sl/photodropbackend/repository"
	"github.com/marek-sl/photodropbackend/services"
)

// ClientHandler serves the unauthenticated client-facing endpoints reached
// by scanning a QR card. Every request proves identity with the code + PIN
// pair; failures are reported uniformly so codes can't be enumerated.
type ClientHandler struct {
	Service       *services.SessionService
	SessionPhotos repository.SessionPhotoRepositoryInterface
	Logger        zerolog.Logger
}

// clientSessionView is the subset of a session a client may see. Internal
// identifiers and the photographer's notes stay hidden.
type clientSessionView struct {
	Code          string                `json:"code"`
	Status        string                `json:"status"`
	ClientName    *string               `json:"client_name,omitempty"`
	HasClientInfo bool                  `json:"has_client_info"`
	LocationName  *string               `json:"location_name,omitempty"`
	ScannedAt     *int64                `json:"scanned_at,omitempty"`
	PhotoCount    int64                 `json:"photo_count"`
	Photos        []models.SessionPhoto `json:"photos,omitempty"`
}

// ScanSession resolves a scanned QR card. The first valid scan moves the
// session from distributed to scanned.
func (ch *ClientHandler) ScanSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	pin := r.URL.Query().Get("pin")

	session, err := ch.Service.LookupForClient(code, pin)
	if err != nil {
		ch.writeLookupError(w, err)
		return
	}

	ch.writeClientView(w, session)
}

// ProvideInfo records the client's contact details against their session
func (ch *ClientHandler) ProvideInfo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req struct {
		Pin   string  `json:"pin"`
		Email *string `json:"email"`
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == nil || *req.Email == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: email")
		return
	}

	session, err := ch.Service.ProvideClientInfo(code, req.Pin, req.Email, req.Name, req.Phone)
	if err != nil {
		ch.writeLookupError(w, err)
		return
	}

	ch.writeClientView(w, session)
}

func (ch *ClientHandler) writeClientView(w http.ResponseWriter, session *models.Session) {
	view := clientSessionView{
		Code:          session.Code,
		Status:        session.Status,
		ClientName:    session.ClientName,
		HasClientInfo: session.HasClientInfo(),
		LocationName:  session.LocationName,
		ScannedAt:     session.ScannedAt,
	}

	// photos become visible to the client once the session reaches
	// photos_uploaded
	if session.Status == models.SessionStatusPhotosUploaded || session.Status == models.SessionStatusCompleted {
		photos, err := ch.SessionPhotos.ListBySession(session.ID)
		if err != nil {
			ch.Logger.Error().Err(err).Uint("session_id", session.ID).Msg("failed to list client photos")
			writeError(w, http.StatusInternalServerError, "Failed to load photos")
			return
		}
		view.Photos = photos
		view.PhotoCount = int64(len(photos))
	}

	writeJSON(w, http.StatusOK, view)
}

func (ch *ClientHandler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	ch.Logger.Error().Err(err).Msg("client session lookup failed")
	writeError(w, http.StatusInternalServerError, "Failed to load session")
}
