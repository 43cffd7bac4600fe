package models

// Session lifecycle statuses. Transitions only move forward through this
// ordering and never regress.
const (
	SessionStatusDistributed    = "distributed"
	SessionStatusScanned        = "scanned"
	SessionStatusInfoProvided   = "info_provided"
	SessionStatusPhotosUploaded = "photos_uploaded"
	SessionStatusCompleted      = "completed"
)

// sessionStatusRank maps each status to its position in the lifecycle.
var sessionStatusRank = map[string]int{
	SessionStatusDistributed:    0,
	SessionStatusScanned:        1,
	SessionStatusInfoProvided:   2,
	SessionStatusPhotosUploaded: 3,
	SessionStatusCompleted:      4,
}

// SessionStatusPrecedes reports whether status a comes strictly before b
// in the session lifecycle. Unknown statuses never precede anything.
func SessionStatusPrecedes(a, b string) bool {
	ra, okA := sessionStatusRank[a]
	rb, okB := sessionStatusRank[b]
	return okA && okB && ra < rb
}

// Session represents one client photo session, keyed by the unique marker
// code printed on a QR card together with its access PIN.
// It corresponds to the 'sessions' table.
type Session struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	Code      string `gorm:"not null;uniqueIndex;size:64" json:"code"`
	PinHash   string `gorm:"not null" json:"-"` // bcrypt hash of the access PIN

	ClientEmail *string `gorm:"" json:"client_email,omitempty"` // Nullable
	ClientName  *string `gorm:"" json:"client_name,omitempty"`  // Nullable
	ClientPhone *string `gorm:"" json:"client_phone,omitempty"` // Nullable

	SessionNotes *string `gorm:"" json:"session_notes,omitempty"` // Nullable
	LocationName *string `gorm:"" json:"location_name,omitempty"` // Nullable

	Status string `gorm:"not null;default:distributed" json:"status"`

	CreatedAt        int64  `gorm:"not null" json:"created_at"`               // Unix timestamp
	ScannedAt        *int64 `gorm:"" json:"scanned_at,omitempty"`             // Nullable
	InfoProvidedAt   *int64 `gorm:"" json:"info_provided_at,omitempty"`       // Nullable
	PhotosUploadedAt *int64 `gorm:"" json:"photos_uploaded_at,omitempty"`     // Nullable, set exactly once
	CompletedAt      *int64 `gorm:"" json:"completed_at,omitempty"`           // Nullable

	Photos []SessionPhoto `gorm:"foreignKey:SessionID" json:"photos,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Session) TableName() string {
	return "sessions"
}

// ShortCode returns the first eight characters of the marker code for display.
func (s *Session) ShortCode() string {
	if len(s.Code) <= 8 {
		return s.Code
	}
	return s.Code[:8]
}

// HasClientInfo reports whether the client has provided contact details.
func (s *Session) HasClientInfo() bool {
	return s.ClientEmail != nil && *s.ClientEmail != ""
}
