package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marek-sl/photodropbackend/models"
)

// SessionPhotoRepository handles database operations for SessionPhoto entities
type SessionPhotoRepository struct {
	DB *gorm.DB
}

// NewSessionPhotoRepository creates a new instance of SessionPhotoRepository
func NewSessionPhotoRepository(db *gorm.DB) *SessionPhotoRepository {
	return &SessionPhotoRepository{DB: db}
}

// CreateIfAbsent inserts the photo unless the (session, filename) pair
// already exists. The unique index backs this up: a concurrent insert of
// the same pair results in exactly one row either way.
func (r *SessionPhotoRepository) CreateIfAbsent(photo *models.SessionPhoto) (bool, error) {
	result := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "original_filename"}},
		DoNothing: true,
	}).Create(photo)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create session photo %s for session %d: %w",
			photo.OriginalFilename, photo.SessionID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *SessionPhotoRepository) GetBySessionAndFilename(sessionID uint, filename string) (*models.SessionPhoto, error) {
	var photo models.SessionPhoto
	err := r.DB.Where("session_id = ? AND original_filename = ?", sessionID, filename).First(&photo).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session photo %s for session %d: %w", filename, sessionID, err)
	}
	return &photo, nil
}

func (r *SessionPhotoRepository) ListBySession(sessionID uint) ([]models.SessionPhoto, error) {
	var photos []models.SessionPhoto
	err := r.DB.Where("session_id = ?", sessionID).Order("uploaded_at ASC").Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos for session %d: %w", sessionID, err)
	}
	return photos, nil
}

func (r *SessionPhotoRepository) CountBySession(sessionID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&models.SessionPhoto{}).Where("session_id = ?", sessionID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count photos for session %d: %w", sessionID, err)
	}
	return count, nil
}
