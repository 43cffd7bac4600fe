package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/models"
)

// UploadBatchRepository handles database operations for UploadBatch entities.
// Status moves uploading -> analyzing -> completed | failed through guarded
// updates; a transition from the wrong state affects zero rows.
type UploadBatchRepository struct {
	DB *gorm.DB
}

// NewUploadBatchRepository creates a new instance of UploadBatchRepository
func NewUploadBatchRepository(db *gorm.DB) *UploadBatchRepository {
	return &UploadBatchRepository{DB: db}
}

func (r *UploadBatchRepository) Create(batch *models.UploadBatch) error {
	if batch.Status == "" {
		batch.Status = models.BatchStatusUploading
	}
	if batch.CreatedAt == 0 {
		batch.CreatedAt = time.Now().Unix()
	}
	if err := r.DB.Create(batch).Error; err != nil {
		return fmt.Errorf("failed to create upload batch: %w", err)
	}
	return nil
}

func (r *UploadBatchRepository) GetByID(id uint) (*models.UploadBatch, error) {
	var batch models.UploadBatch
	err := r.DB.First(&batch, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get upload batch %d: %w", id, err)
	}
	return &batch, nil
}

func (r *UploadBatchRepository) ListByProject(projectID uint) ([]models.UploadBatch, error) {
	var batches []models.UploadBatch
	err := r.DB.Where("project_id = ?", projectID).Order("created_at DESC").Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list batches for project %d: %w", projectID, err)
	}
	return batches, nil
}

// ClaimForAnalysis transitions uploading -> analyzing. Exactly one caller
// can win the claim; anyone else (double enqueue, redelivered job while a
// run is in flight, terminal batch) gets false and must not start a walk.
func (r *UploadBatchRepository) ClaimForAnalysis(id uint, startedAt int64) (bool, error) {
	result := r.DB.Model(&models.UploadBatch{}).
		Where("id = ? AND status = ?", id, models.BatchStatusUploading).
		Updates(map[string]interface{}{
			"status":                models.BatchStatusAnalyzing,
			"processing_started_at": startedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim batch %d for analysis: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *UploadBatchRepository) SetTotalPhotos(id uint, total int) error {
	result := r.DB.Model(&models.UploadBatch{}).Where("id = ?", id).
		Update("total_photos", total)
	if result.Error != nil {
		return fmt.Errorf("failed to set total photos for batch %d: %w", id, result.Error)
	}
	return nil
}

// SetProgress publishes the processed counter. The guard keeps the value
// monotonic even if a stale writer shows up late.
func (r *UploadBatchRepository) SetProgress(id uint, processed int) error {
	result := r.DB.Model(&models.UploadBatch{}).
		Where("id = ? AND processed_photos <= ?", id, processed).
		Update("processed_photos", processed)
	if result.Error != nil {
		return fmt.Errorf("failed to set progress for batch %d: %w", id, result.Error)
	}
	return nil
}

// MarkCompleted finalizes a successful run; only valid from analyzing
func (r *UploadBatchRepository) MarkCompleted(id uint, markersFound int, completedAt int64) error {
	result := r.DB.Model(&models.UploadBatch{}).
		Where("id = ? AND status = ?", id, models.BatchStatusAnalyzing).
		Updates(map[string]interface{}{
			"status":        models.BatchStatusCompleted,
			"markers_found": markersFound,
			"completed_at":  completedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark batch %d completed: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("batch %d not in analyzing state, refusing completion", id)
	}
	return nil
}

// MarkFailed finalizes a run aborted by an unrecoverable error; only valid
// from analyzing. Work already recorded (assigned photos, counters) stands.
func (r *UploadBatchRepository) MarkFailed(id uint, message string, completedAt int64) error {
	result := r.DB.Model(&models.UploadBatch{}).
		Where("id = ? AND status = ?", id, models.BatchStatusAnalyzing).
		Updates(map[string]interface{}{
			"status":        models.BatchStatusFailed,
			"error_message": message,
			"completed_at":  completedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark batch %d failed: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("batch %d not in analyzing state, refusing failure transition", id)
	}
	return nil
}
