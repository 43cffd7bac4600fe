package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/models"
)

// SessionRepository handles database operations for Session entities
type SessionRepository struct {
	DB *gorm.DB
}

// NewSessionRepository creates a new instance of SessionRepository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

// CreateBatch inserts newly generated sessions in one statement
func (r *SessionRepository) CreateBatch(sessions []*models.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	if err := r.DB.Create(&sessions).Error; err != nil {
		return fmt.Errorf("failed to create %d sessions: %w", len(sessions), err)
	}
	return nil
}

func (r *SessionRepository) GetByID(id uint) (*models.Session, error) {
	var session models.Session
	err := r.DB.Preload("Photos").First(&session, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}
	return &session, nil
}

// GetByCode retrieves a session by its globally unique marker code
func (r *SessionRepository) GetByCode(code string) (*models.Session, error) {
	var session models.Session
	err := r.DB.Where("code = ?", code).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session by code %s: %w", code, err)
	}
	return &session, nil
}

// GetByProjectAndCode retrieves a session by marker code scoped to a project.
// The marker resolver uses this so a code from another project's cards never
// matches.
func (r *SessionRepository) GetByProjectAndCode(projectID uint, code string) (*models.Session, error) {
	var session models.Session
	err := r.DB.Where("project_id = ? AND code = ?", projectID, code).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session by code %s in project %d: %w", code, projectID, err)
	}
	return &session, nil
}

// List returns a project's sessions, optionally filtered by status and a
// free-text search over code, client fields, location and notes
func (r *SessionRepository) List(projectID uint, status, search string) ([]models.Session, error) {
	query := r.DB.Where("project_id = ?", projectID)

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"code LIKE ? OR client_email LIKE ? OR client_name LIKE ? OR location_name LIKE ? OR session_notes LIKE ?",
			like, like, like, like, like,
		)
	}

	var sessions []models.Session
	if err := query.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions for project %d: %w", projectID, err)
	}
	return sessions, nil
}

func (r *SessionRepository) UpdateClientInfo(id uint, email, name, phone *string) error {
	result := r.DB.Model(&models.Session{}).Where("id = ?", id).Updates(map[string]interface{}{
		"client_email": email,
		"client_name":  name,
		"client_phone": phone,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update client info for session %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SessionRepository) UpdateSessionInfo(id uint, notes, location *string) error {
	updates := map[string]interface{}{}
	if notes != nil {
		updates["session_notes"] = *notes
	}
	if location != nil {
		updates["location_name"] = *location
	}
	if len(updates) == 0 {
		return nil
	}
	result := r.DB.Model(&models.Session{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update session info for %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkScanned advances distributed -> scanned on first scan. Returns false
// without error when the session is already past distributed.
func (r *SessionRepository) MarkScanned(id uint, at int64) (bool, error) {
	result := r.DB.Model(&models.Session{}).
		Where("id = ? AND status = ?", id, models.SessionStatusDistributed).
		Updates(map[string]interface{}{
			"status":     models.SessionStatusScanned,
			"scanned_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark session %d scanned: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkInfoProvided advances to info_provided from any earlier status
func (r *SessionRepository) MarkInfoProvided(id uint, at int64) (bool, error) {
	result := r.DB.Model(&models.Session{}).
		Where("id = ? AND status IN ?", id, []string{
			models.SessionStatusDistributed,
			models.SessionStatusScanned,
		}).
		Updates(map[string]interface{}{
			"status":           models.SessionStatusInfoProvided,
			"info_provided_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark session %d info provided: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AdvanceToPhotosUploaded promotes the session once photos are attached.
// photos_uploaded_at is set exactly once; calling this again is a no-op,
// and a session already at photos_uploaded or completed is left alone.
func (r *SessionRepository) AdvanceToPhotosUploaded(id uint, at int64) (bool, error) {
	result := r.DB.Model(&models.Session{}).
		Where("id = ? AND status IN ?", id, []string{
			models.SessionStatusDistributed,
			models.SessionStatusScanned,
			models.SessionStatusInfoProvided,
		}).
		Updates(map[string]interface{}{
			"status":             models.SessionStatusPhotosUploaded,
			"photos_uploaded_at": gorm.Expr("COALESCE(photos_uploaded_at, ?)", at),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to advance session %d to photos_uploaded: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkCompleted finishes a session after delivery; only valid from
// photos_uploaded
func (r *SessionRepository) MarkCompleted(id uint, at int64) (bool, error) {
	result := r.DB.Model(&models.Session{}).
		Where("id = ? AND status = ?", id, models.SessionStatusPhotosUploaded).
		Updates(map[string]interface{}{
			"status":       models.SessionStatusCompleted,
			"completed_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark session %d completed: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
