package models

// Project groups sessions and photo batches for one photographer engagement.
// It corresponds to the 'projects' table.
type Project struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null" json:"name"`
	Description *string `gorm:"" json:"description,omitempty"` // Nullable
	CreatedAt   int64   `gorm:"not null" json:"created_at"`    // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt   int64   `gorm:"not null" json:"updated_at"`    // Stored as INTEGER in SQLite, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Project) TableName() string {
	return "projects"
}
