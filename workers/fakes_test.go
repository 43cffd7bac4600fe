package workers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/media"
	"github.com/marek-sl/photodropbackend/models"
)

// In-memory doubles for the repository interfaces. Guarded transitions
// mirror the SQL implementations so the state machine behaves the same.

type fakeSessionRepo struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*models.Session

	lookupErr error // forced failure for GetByProjectAndCode
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{nextID: 1, sessions: make(map[uint]*models.Session)}
}

func (f *fakeSessionRepo) add(projectID uint, code, status string) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &models.Session{ID: f.nextID, ProjectID: projectID, Code: code, Status: status}
	f.sessions[s.ID] = s
	f.nextID++
	return s
}

func (f *fakeSessionRepo) CreateBatch(sessions []*models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range sessions {
		s.ID = f.nextID
		f.nextID++
		copied := *s
		f.sessions[s.ID] = &copied
	}
	return nil
}

func (f *fakeSessionRepo) GetByID(id uint) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionRepo) GetByCode(code string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.Code == code {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSessionRepo) GetByProjectAndCode(projectID uint, code string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, s := range f.sessions {
		if s.ProjectID == projectID && s.Code == code {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSessionRepo) List(projectID uint, status, search string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.ProjectID == projectID && (status == "" || s.Status == status) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) UpdateClientInfo(id uint, email, name, phone *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.ClientEmail, s.ClientName, s.ClientPhone = email, name, phone
	return nil
}

func (f *fakeSessionRepo) UpdateSessionInfo(id uint, notes, location *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if notes != nil {
		s.SessionNotes = notes
	}
	if location != nil {
		s.LocationName = location
	}
	return nil
}

func (f *fakeSessionRepo) MarkScanned(id uint, at int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionStatusDistributed {
		return false, nil
	}
	s.Status = models.SessionStatusScanned
	s.ScannedAt = &at
	return true, nil
}

func (f *fakeSessionRepo) MarkInfoProvided(id uint, at int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return false, nil
	}
	switch s.Status {
	case models.SessionStatusDistributed, models.SessionStatusScanned:
		s.Status = models.SessionStatusInfoProvided
		s.InfoProvidedAt = &at
		return true, nil
	}
	return false, nil
}

func (f *fakeSessionRepo) AdvanceToPhotosUploaded(id uint, at int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return false, nil
	}
	switch s.Status {
	case models.SessionStatusDistributed, models.SessionStatusScanned, models.SessionStatusInfoProvided:
		s.Status = models.SessionStatusPhotosUploaded
		if s.PhotosUploadedAt == nil {
			s.PhotosUploadedAt = &at
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeSessionRepo) MarkCompleted(id uint, at int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionStatusPhotosUploaded {
		return false, nil
	}
	s.Status = models.SessionStatusCompleted
	s.CompletedAt = &at
	return true, nil
}

type fakeBatchRepo struct {
	mu      sync.Mutex
	nextID  uint
	batches map[uint]*models.UploadBatch
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{nextID: 1, batches: make(map[uint]*models.UploadBatch)}
}

func (f *fakeBatchRepo) Create(batch *models.UploadBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch.ID = f.nextID
	f.nextID++
	if batch.Status == "" {
		batch.Status = models.BatchStatusUploading
	}
	copied := *batch
	f.batches[batch.ID] = &copied
	return nil
}

func (f *fakeBatchRepo) GetByID(id uint) (*models.UploadBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBatchRepo) ListByProject(projectID uint) ([]models.UploadBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UploadBatch
	for _, b := range f.batches {
		if b.ProjectID == projectID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBatchRepo) ClaimForAnalysis(id uint, startedAt int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok || b.Status != models.BatchStatusUploading {
		return false, nil
	}
	b.Status = models.BatchStatusAnalyzing
	b.ProcessingStartedAt = &startedAt
	return true, nil
}

func (f *fakeBatchRepo) SetTotalPhotos(id uint, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok {
		b.TotalPhotos = total
	}
	return nil
}

func (f *fakeBatchRepo) SetProgress(id uint, processed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok && b.ProcessedPhotos <= processed {
		b.ProcessedPhotos = processed
	}
	return nil
}

func (f *fakeBatchRepo) MarkCompleted(id uint, markersFound int, completedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok || b.Status != models.BatchStatusAnalyzing {
		return fmt.Errorf("batch %d not in analyzing state", id)
	}
	b.Status = models.BatchStatusCompleted
	b.MarkersFound = markersFound
	b.CompletedAt = &completedAt
	return nil
}

func (f *fakeBatchRepo) MarkFailed(id uint, message string, completedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok || b.Status != models.BatchStatusAnalyzing {
		return fmt.Errorf("batch %d not in analyzing state", id)
	}
	b.Status = models.BatchStatusFailed
	b.ErrorMessage = &message
	b.CompletedAt = &completedAt
	return nil
}

// reset simulates queue redelivery of a finished batch
func (f *fakeBatchRepo) reset(id uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok {
		b.Status = models.BatchStatusUploading
		b.ProcessedPhotos = 0
	}
}

type fakeRawPhotoRepo struct {
	mu     sync.Mutex
	nextID uint
	photos map[uint]*models.RawPhoto
	order  []uint
}

func newFakeRawPhotoRepo() *fakeRawPhotoRepo {
	return &fakeRawPhotoRepo{nextID: 1, photos: make(map[uint]*models.RawPhoto)}
}

func (f *fakeRawPhotoRepo) Create(photo *models.RawPhoto) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	photo.ID = f.nextID
	f.nextID++
	copied := *photo
	f.photos[photo.ID] = &copied
	f.order = append(f.order, photo.ID)
	return nil
}

func (f *fakeRawPhotoRepo) GetByID(id uint) (*models.RawPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRawPhotoRepo) ListByBatch(batchID uint) ([]models.RawPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RawPhoto
	for _, id := range f.order {
		if p := f.photos[id]; p.BatchID == batchID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRawPhotoRepo) CountByBatch(batchID uint) (int64, error) {
	photos, _ := f.ListByBatch(batchID)
	return int64(len(photos)), nil
}

func (f *fakeRawPhotoRepo) SetOutcome(id uint, hasMarker bool, payload *string, sessionID *uint, processedAt int64, taskErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if p.IsProcessed {
		return nil
	}
	p.IsProcessed = true
	p.HasMarker = hasMarker
	p.MarkerPayload = payload
	p.AssignedSessionID = sessionID
	p.ProcessedAt = &processedAt
	if taskErr != nil {
		msg := taskErr.Error()
		p.ProcessingError = &msg
	}
	return nil
}

type fakeSessionPhotoRepo struct {
	mu     sync.Mutex
	nextID uint
	photos map[string]*models.SessionPhoto
}

func newFakeSessionPhotoRepo() *fakeSessionPhotoRepo {
	return &fakeSessionPhotoRepo{nextID: 1, photos: make(map[string]*models.SessionPhoto)}
}

func sessionPhotoKey(sessionID uint, filename string) string {
	return fmt.Sprintf("%d/%s", sessionID, filename)
}

func (f *fakeSessionPhotoRepo) CreateIfAbsent(photo *models.SessionPhoto) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionPhotoKey(photo.SessionID, photo.OriginalFilename)
	if _, exists := f.photos[key]; exists {
		return false, nil
	}
	photo.ID = f.nextID
	f.nextID++
	copied := *photo
	f.photos[key] = &copied
	return true, nil
}

func (f *fakeSessionPhotoRepo) GetBySessionAndFilename(sessionID uint, filename string) (*models.SessionPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[sessionPhotoKey(sessionID, filename)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeSessionPhotoRepo) ListBySession(sessionID uint) ([]models.SessionPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SessionPhoto
	for _, p := range f.photos {
		if p.SessionID == sessionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeSessionPhotoRepo) CountBySession(sessionID uint) (int64, error) {
	photos, _ := f.ListBySession(sessionID)
	return int64(len(photos)), nil
}

// memStore keeps assets in a map keyed by relative path
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) put(relativePath string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[relativePath] = data
}

func (m *memStore) Save(assetType media.AssetType, relativeDirHint, filenameHint string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	relativePath := path.Join(string(assetType), relativeDirHint, filenameHint)
	m.put(relativePath, content)
	return relativePath, nil
}

func (m *memStore) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[relativePath]
	if !ok {
		return nil, nil, fmt.Errorf("asset not found at '%s'", relativePath)
	}
	return io.NopCloser(bytes.NewReader(content)), nil, nil
}

func (m *memStore) Delete(relativePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, relativePath)
	return nil
}

func (m *memStore) GetFullPath(relativePath string) (string, error) {
	return "/mem/" + relativePath, nil
}

func (m *memStore) EnsureDir(assetType media.AssetType) (string, error) {
	return string(assetType), nil
}

// mapDecoder returns the payload registered for the photo's exact bytes,
// or "" for unregistered content
type mapDecoder struct {
	payloads map[string]string
}

func (d *mapDecoder) Decode(imageBytes []byte) string {
	return d.payloads[string(imageBytes)]
}
