package models

// RawPhoto is a single uploaded image awaiting QR analysis. The engine
// mutates it exactly once; outcome fields are immutable after
// IsProcessed is set.
// It corresponds to the 'raw_photos' table.
type RawPhoto struct {
	ID               uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID          uint   `gorm:"not null;index" json:"batch_id"`
	StoragePath      string `gorm:"not null" json:"storage_path"`
	OriginalFilename string `gorm:"not null" json:"original_filename"`

	TakenAt     *int64  `gorm:"index" json:"taken_at,omitempty"`    // Nullable, from EXIF
	CameraMake  *string `gorm:"" json:"camera_make,omitempty"`      // Nullable
	CameraModel *string `gorm:"" json:"camera_model,omitempty"`     // Nullable
	UploadedAt  int64   `gorm:"not null;index" json:"uploaded_at"`  // Unix timestamp
	FileSize    int64   `gorm:"not null" json:"file_size"`          // bytes

	IsProcessed       bool    `gorm:"not null;default:false" json:"is_processed"`
	HasMarker         bool    `gorm:"not null;default:false" json:"has_marker"`
	MarkerPayload     *string `gorm:"" json:"marker_payload,omitempty"`      // Nullable, decoded QR content
	AssignedSessionID *uint   `gorm:"index" json:"assigned_session_id,omitempty"` // Nullable
	ProcessingError   *string `gorm:"" json:"processing_error,omitempty"`    // Nullable
	ProcessedAt       *int64  `gorm:"" json:"processed_at,omitempty"`        // Nullable, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (RawPhoto) TableName() string {
	return "raw_photos"
}
