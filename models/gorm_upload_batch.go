package models

// Upload batch statuses. 'completed' and 'failed' are terminal.
const (
	BatchStatusUploading = "uploading"
	BatchStatusAnalyzing = "analyzing"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
)

// UploadBatch is one run of the QR analysis engine over a set of raw
// photos uploaded together.
// It corresponds to the 'upload_batches' table.
type UploadBatch struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	Name      string `gorm:"not null;default:'Photo Batch'" json:"name"`
	Status    string `gorm:"not null;default:uploading" json:"status"`

	TotalPhotos     int `gorm:"not null;default:0" json:"total_photos"`
	ProcessedPhotos int `gorm:"not null;default:0" json:"processed_photos"`
	MarkersFound    int `gorm:"not null;default:0" json:"markers_found"`

	CreatedAt           int64  `gorm:"not null" json:"created_at"`                 // Unix timestamp
	ProcessingStartedAt *int64 `gorm:"" json:"processing_started_at,omitempty"`    // Nullable
	CompletedAt         *int64 `gorm:"" json:"completed_at,omitempty"`             // Nullable

	ErrorMessage *string `gorm:"" json:"error_message,omitempty"` // Nullable
}

// TableName explicitly sets the table name for GORM.
func (UploadBatch) TableName() string {
	return "upload_batches"
}

// IsTerminal reports whether the batch has reached a final state.
func (b *UploadBatch) IsTerminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

// ProgressPercentage returns processing progress in percent, rounded down.
func (b *UploadBatch) ProgressPercentage() float64 {
	if b.TotalPhotos == 0 {
		return 0
	}
	return float64(b.ProcessedPhotos) / float64(b.TotalPhotos) * 100
}
