package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/models"
	"github.com/marek-sl/photodropbackend/repository"
	"github.com/marek-sl/photodropbackend/utils"
)

// ErrInvalidCredentials is returned when a code + PIN pair doesn't match a
// session. The pair is the sole identity proof for clients, so lookups by
// unknown code and wrong PIN are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid session code or pin")

const maxGenerationAmount = 1000

// GeneratedSession carries the one-time plaintext credentials of a newly
// created session. The PIN is hashed at rest; this is the only place it
// leaves the system.
type GeneratedSession struct {
	ID        uint   `json:"id"`
	Code      string `json:"code"`
	Pin       string `json:"pin"`
	ClientURL string `json:"client_url"`
}

// SessionService owns session generation and the client-facing lifecycle
// transitions (scan, provide info, complete)
type SessionService struct {
	sessions      repository.SessionRepositoryInterface
	projects      repository.ProjectRepositoryInterface
	clientBaseURL string
	pinLength     int
	logger        zerolog.Logger
}

// NewSessionService creates a new instance of SessionService
func NewSessionService(
	sessions repository.SessionRepositoryInterface,
	projects repository.ProjectRepositoryInterface,
	clientBaseURL string,
	pinLength int,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:      sessions,
		projects:      projects,
		clientBaseURL: clientBaseURL,
		pinLength:     pinLength,
		logger:        logger,
	}
}

// GenerateSessions bulk-creates amount sessions for a project, each with a
// unique marker code and a fresh PIN. The returned credentials feed the
// printable QR cards; only the bcrypt hash of each PIN is stored.
func (s *SessionService) GenerateSessions(projectID uint, amount int) ([]GeneratedSession, error) {
	if amount <= 0 || amount > maxGenerationAmount {
		return nil, fmt.Errorf("amount must be between 1 and %d, got %d", maxGenerationAmount, amount)
	}

	if _, err := s.projects.GetByID(projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}

	now := time.Now().Unix()
	sessions := make([]*models.Session, 0, amount)
	generated := make([]GeneratedSession, 0, amount)

	for i := 0; i < amount; i++ {
		code := utils.GenerateMarkerCode()
		pin, err := utils.GeneratePIN(s.pinLength)
		if err != nil {
			return nil, err
		}
		pinHash, err := utils.HashPIN(pin)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, &models.Session{
			ProjectID: projectID,
			Code:      code,
			PinHash:   pinHash,
			Status:    models.SessionStatusDistributed,
			CreatedAt: now,
		})
		generated = append(generated, GeneratedSession{
			Code:      code,
			Pin:       pin,
			ClientURL: utils.ClientURL(s.clientBaseURL, code, pin),
		})
	}

	if err := s.sessions.CreateBatch(sessions); err != nil {
		return nil, err
	}
	for i, session := range sessions {
		generated[i].ID = session.ID
	}

	s.logger.Info().Uint("project_id", projectID).Int("amount", amount).Msg("generated sessions")
	return generated, nil
}

// LookupForClient resolves a code + PIN pair for the end client. The first
// successful scan advances distributed -> scanned.
func (s *SessionService) LookupForClient(code, pin string) (*models.Session, error) {
	session, err := s.authenticate(code, pin)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionStatusDistributed {
		now := time.Now().Unix()
		advanced, err := s.sessions.MarkScanned(session.ID, now)
		if err != nil {
			return nil, err
		}
		if advanced {
			session.Status = models.SessionStatusScanned
			session.ScannedAt = &now
		}
	}

	return session, nil
}

// ProvideClientInfo records the client's contact details and advances the
// session to info_provided when it hasn't gotten further on its own.
func (s *SessionService) ProvideClientInfo(code, pin string, email, name, phone *string) (*models.Session, error) {
	session, err := s.authenticate(code, pin)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateClientInfo(session.ID, email, name, phone); err != nil {
		return nil, err
	}

	if models.SessionStatusPrecedes(session.Status, models.SessionStatusInfoProvided) {
		if _, err := s.sessions.MarkInfoProvided(session.ID, time.Now().Unix()); err != nil {
			return nil, err
		}
	}

	return s.sessions.GetByID(session.ID)
}

// CompleteSession marks a delivered session completed; only valid once
// photos have been uploaded
func (s *SessionService) CompleteSession(sessionID uint) (*models.Session, error) {
	completed, err := s.sessions.MarkCompleted(sessionID, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if !completed {
		return nil, fmt.Errorf("session %d must have photos uploaded before completion", sessionID)
	}
	return s.sessions.GetByID(sessionID)
}

func (s *SessionService) authenticate(code, pin string) (*models.Session, error) {
	if code == "" || pin == "" {
		return nil, ErrInvalidCredentials
	}

	session, err := s.sessions.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPIN(session.PinHash, pin) {
		return nil, ErrInvalidCredentials
	}
	return session, nil
}
