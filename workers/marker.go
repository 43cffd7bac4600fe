package workers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/models"
	"github.com/marek-sl/photodropbackend/repository"
)

// clientPathSegment is the path marker inside a QR payload URL; the
// session code sits between it and the query string, e.g.
// https://app.example.com/client/<code>?pin=<pin>
const clientPathSegment = "/client/"

// ExtractMarkerCode pulls the session code out of a QR payload URL.
// Returns false when the payload doesn't have the expected shape.
func ExtractMarkerCode(payload string) (string, bool) {
	idx := strings.Index(payload, clientPathSegment)
	if idx < 0 {
		return "", false
	}
	code := payload[idx+len(clientPathSegment):]
	if q := strings.IndexByte(code, '?'); q >= 0 {
		code = code[:q]
	}
	code = strings.TrimSuffix(code, "/")
	if code == "" {
		return "", false
	}
	return code, true
}

// MarkerResolver maps decoded QR payloads to sessions within a project
type MarkerResolver struct {
	sessions repository.SessionRepositoryInterface
	logger   zerolog.Logger
}

// NewMarkerResolver creates a new instance of MarkerResolver
func NewMarkerResolver(sessions repository.SessionRepositoryInterface, logger zerolog.Logger) *MarkerResolver {
	return &MarkerResolver{sessions: sessions, logger: logger}
}

// Resolve returns the session the payload points at, or nil when the
// payload is malformed or no session with that code exists in the project.
// Both cases are logged and treated as "no match"; only an infrastructure
// failure during lookup surfaces as an error.
func (mr *MarkerResolver) Resolve(payload string, projectID uint) (*models.Session, error) {
	code, ok := ExtractMarkerCode(payload)
	if !ok {
		mr.logger.Debug().Str("payload", payload).Msg("qr payload does not look like a session url")
		return nil, nil
	}

	session, err := mr.sessions.GetByProjectAndCode(projectID, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			mr.logger.Warn().Str("code", code).Uint("project_id", projectID).
				Msg("marker decoded but no matching session in project")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve marker code %s: %w", code, err)
	}
	return session, nil
}
