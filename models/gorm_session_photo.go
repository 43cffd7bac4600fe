package models

// SessionPhoto is a durable photo owned by a session. The (session_id,
// original_filename) pair is unique so materializing the same raw photo
// twice is a no-op.
// It corresponds to the 'session_photos' table.
type SessionPhoto struct {
	ID               uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID        uint    `gorm:"not null;uniqueIndex:idx_session_filename" json:"session_id"`
	OriginalFilename string  `gorm:"not null;uniqueIndex:idx_session_filename" json:"original_filename"`
	StoragePath      string  `gorm:"not null" json:"storage_path"`
	ThumbnailPath    *string `gorm:"" json:"thumbnail_path,omitempty"` // Nullable
	TakenAt          *int64  `gorm:"" json:"taken_at,omitempty"`       // Nullable, Unix timestamp
	UploadedAt       int64   `gorm:"not null" json:"uploaded_at"`      // Unix timestamp
	FileSize         int64   `gorm:"not null" json:"file_size"`        // bytes
}

// TableName explicitly sets the table name for GORM.
func (SessionPhoto) TableName() string {
	return "session_photos"
}
