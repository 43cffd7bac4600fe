package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/models"
)

// RawPhotoRepository handles database operations for RawPhoto entities
type RawPhotoRepository struct {
	DB *gorm.DB
}

// NewRawPhotoRepository creates a new instance of RawPhotoRepository
func NewRawPhotoRepository(db *gorm.DB) *RawPhotoRepository {
	return &RawPhotoRepository{DB: db}
}

func (r *RawPhotoRepository) Create(photo *models.RawPhoto) error {
	if err := r.DB.Create(photo).Error; err != nil {
		return fmt.Errorf("failed to create raw photo %s: %w", photo.OriginalFilename, err)
	}
	return nil
}

func (r *RawPhotoRepository) GetByID(id uint) (*models.RawPhoto, error) {
	var photo models.RawPhoto
	err := r.DB.First(&photo, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get raw photo %d: %w", id, err)
	}
	return &photo, nil
}

// ListByBatch returns all of a batch's raw photos. The segmenter re-sorts
// them itself, so no ordering is promised here beyond stable row order.
func (r *RawPhotoRepository) ListByBatch(batchID uint) ([]models.RawPhoto, error) {
	var photos []models.RawPhoto
	err := r.DB.Where("batch_id = ?", batchID).Order("id ASC").Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list raw photos for batch %d: %w", batchID, err)
	}
	return photos, nil
}

func (r *RawPhotoRepository) CountByBatch(batchID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&models.RawPhoto{}).Where("batch_id = ?", batchID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count raw photos for batch %d: %w", batchID, err)
	}
	return count, nil
}

// SetOutcome records the analysis result exactly once. The is_processed
// guard keeps outcome fields immutable on re-runs of the same batch.
func (r *RawPhotoRepository) SetOutcome(id uint, hasMarker bool, payload *string, sessionID *uint, processedAt int64, taskErr error) error {
	var errStr *string
	if taskErr != nil {
		s := taskErr.Error()
		errStr = &s
	}

	updates := map[string]interface{}{
		"is_processed":        true,
		"has_marker":          hasMarker,
		"marker_payload":      payload,
		"assigned_session_id": sessionID,
		"processed_at":        processedAt,
		"processing_error":    errStr,
	}

	result := r.DB.Model(&models.RawPhoto{}).
		Where("id = ? AND is_processed = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set outcome for raw photo %d: %w", id, result.Error)
	}
	return nil
}
