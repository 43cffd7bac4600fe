package repository

import (
	"github.com/marek-sl/photodropbackend/models"
)

// ProjectRepositoryInterface defines the methods for project data operations
type ProjectRepositoryInterface interface {
	Create(project *models.Project) error
	GetByID(id uint) (*models.Project, error)
	ListAll() ([]models.Project, error)
	Update(project *models.Project) error
	Delete(id uint) error
}

// SessionRepositoryInterface defines the methods for session data operations.
// All status transitions are guarded updates: they only apply from the
// states that legitimately precede the target, so the lifecycle can never
// regress no matter how often a transition is retried.
type SessionRepositoryInterface interface {
	CreateBatch(sessions []*models.Session) error
	GetByID(id uint) (*models.Session, error)
	GetByCode(code string) (*models.Session, error)
	GetByProjectAndCode(projectID uint, code string) (*models.Session, error)
	List(projectID uint, status, search string) ([]models.Session, error)
	UpdateClientInfo(id uint, email, name, phone *string) error
	UpdateSessionInfo(id uint, notes, location *string) error
	MarkScanned(id uint, at int64) (bool, error)
	MarkInfoProvided(id uint, at int64) (bool, error)
	AdvanceToPhotosUploaded(id uint, at int64) (bool, error)
	MarkCompleted(id uint, at int64) (bool, error)
}

// SessionPhotoRepositoryInterface defines the methods for a session's durable
// photo collection
type SessionPhotoRepositoryInterface interface {
	// CreateIfAbsent inserts the photo unless one with the same
	// (session, original filename) already exists; returns whether a row
	// was created
	CreateIfAbsent(photo *models.SessionPhoto) (bool, error)
	GetBySessionAndFilename(sessionID uint, filename string) (*models.SessionPhoto, error)
	ListBySession(sessionID uint) ([]models.SessionPhoto, error)
	CountBySession(sessionID uint) (int64, error)
}

// UploadBatchRepositoryInterface defines the methods for batch data operations.
// The status transitions realize the batch state machine
// uploading -> analyzing -> completed | failed; terminal states are final.
type UploadBatchRepositoryInterface interface {
	Create(batch *models.UploadBatch) error
	GetByID(id uint) (*models.UploadBatch, error)
	ListByProject(projectID uint) ([]models.UploadBatch, error)
	// ClaimForAnalysis transitions uploading -> analyzing; returns false if
	// the batch was not in uploading state. Doubles as the re-entrancy
	// guard: a second analysis attempt on a running batch claims nothing.
	ClaimForAnalysis(id uint, startedAt int64) (bool, error)
	SetTotalPhotos(id uint, total int) error
	// SetProgress publishes the processed-photo counter; called after every
	// photo so pollers observe mid-run progress
	SetProgress(id uint, processed int) error
	MarkCompleted(id uint, markersFound int, completedAt int64) error
	MarkFailed(id uint, message string, completedAt int64) error
}

// RawPhotoRepositoryInterface defines the methods for raw photo data operations
type RawPhotoRepositoryInterface interface {
	Create(photo *models.RawPhoto) error
	GetByID(id uint) (*models.RawPhoto, error)
	ListByBatch(batchID uint) ([]models.RawPhoto, error)
	CountByBatch(batchID uint) (int64, error)
	// SetOutcome records the analysis result and marks the photo processed.
	// A photo already marked processed is never touched again.
	SetOutcome(id uint, hasMarker bool, payload *string, sessionID *uint, processedAt int64, taskErr error) error
}
