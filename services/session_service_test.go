package services

import (
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/models"
	"github.com/marek-sl/photodropbackend/utils"
)

type memSessionRepo struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{nextID: 1, sessions: make(map[uint]*models.Session)}
}

func (m *memSessionRepo) CreateBatch(sessions []*models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		s.ID = m.nextID
		m.nextID++
		copied := *s
		m.sessions[s.ID] = &copied
	}
	return nil
}

func (m *memSessionRepo) GetByID(id uint) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memSessionRepo) GetByCode(code string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Code == code {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memSessionRepo) GetByProjectAndCode(projectID uint, code string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ProjectID == projectID && s.Code == code {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memSessionRepo) List(projectID uint, status, search string) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.sessions {
		if s.ProjectID == projectID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSessionRepo) UpdateClientInfo(id uint, email, name, phone *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.ClientEmail, s.ClientName, s.ClientPhone = email, name, phone
	return nil
}

func (m *memSessionRepo) UpdateSessionInfo(id uint, notes, location *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
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

func (m *memSessionRepo) MarkScanned(id uint, at int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != models.SessionStatusDistributed {
		return false, nil
	}
	s.Status = models.SessionStatusScanned
	s.ScannedAt = &at
	return true, nil
}

func (m *memSessionRepo) MarkInfoProvided(id uint, at int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
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

func (m *memSessionRepo) AdvanceToPhotosUploaded(id uint, at int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
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

func (m *memSessionRepo) MarkCompleted(id uint, at int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != models.SessionStatusPhotosUploaded {
		return false, nil
	}
	s.Status = models.SessionStatusCompleted
	s.CompletedAt = &at
	return true, nil
}

type memProjectRepo struct {
	projects map[uint]*models.Project
}

func (m *memProjectRepo) Create(project *models.Project) error { return nil }
func (m *memProjectRepo) Update(project *models.Project) error { return nil }
func (m *memProjectRepo) Delete(id uint) error                 { return nil }
func (m *memProjectRepo) ListAll() ([]models.Project, error)   { return nil, nil }

func (m *memProjectRepo) GetByID(id uint) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func newTestService() (*SessionService, *memSessionRepo) {
	sessions := newMemSessionRepo()
	projects := &memProjectRepo{projects: map[uint]*models.Project{
		1: {ID: 1, Name: "Summer Weddings"},
	}}
	svc := NewSessionService(sessions, projects, "https://app.example.com", 4, zerolog.Nop())
	return svc, sessions
}

func TestGenerateSessions(t *testing.T) {
	svc, repo := newTestService()

	generated, err := svc.GenerateSessions(1, 10)
	require.NoError(t, err)
	require.Len(t, generated, 10)

	codes := make(map[string]bool)
	for _, g := range generated {
		assert.NotZero(t, g.ID)
		assert.False(t, codes[g.Code], "codes must be unique")
		codes[g.Code] = true

		assert.Len(t, g.Pin, 4)
		assert.Contains(t, g.ClientURL, "/client/"+g.Code)
		assert.Contains(t, g.ClientURL, "pin="+g.Pin)

		stored, err := repo.GetByID(g.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusDistributed, stored.Status)
		assert.NotEqual(t, g.Pin, stored.PinHash, "PIN must not be stored in plaintext")
		assert.True(t, utils.CheckPIN(stored.PinHash, g.Pin))
	}
}

func TestGenerateSessionsValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GenerateSessions(1, 0)
	require.Error(t, err)

	_, err = svc.GenerateSessions(1, 1001)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "between 1 and"))

	_, err = svc.GenerateSessions(42, 5)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLookupForClientFirstScanAdvances(t *testing.T) {
	svc, repo := newTestService()
	generated, err := svc.GenerateSessions(1, 1)
	require.NoError(t, err)
	g := generated[0]

	session, err := svc.LookupForClient(g.Code, g.Pin)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScanned, session.Status)
	require.NotNil(t, session.ScannedAt)
	firstScan := *session.ScannedAt

	// a later scan is a plain lookup, the timestamp stays
	session, err = svc.LookupForClient(g.Code, g.Pin)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScanned, session.Status)

	stored, err := repo.GetByID(g.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ScannedAt)
	assert.Equal(t, firstScan, *stored.ScannedAt)
}

func TestLookupForClientRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	generated, err := svc.GenerateSessions(1, 1)
	require.NoError(t, err)
	g := generated[0]

	_, err = svc.LookupForClient(g.Code, "0000")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.LookupForClient("does-not-exist", g.Pin)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.LookupForClient("", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProvideClientInfo(t *testing.T) {
	svc, _ := newTestService()
	generated, err := svc.GenerateSessions(1, 1)
	require.NoError(t, err)
	g := generated[0]

	email := "client@example.com"
	name := "Jordan"
	session, err := svc.ProvideClientInfo(g.Code, g.Pin, &email, &name, nil)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusInfoProvided, session.Status)
	require.NotNil(t, session.ClientEmail)
	assert.Equal(t, email, *session.ClientEmail)
	assert.True(t, session.HasClientInfo())
	assert.NotNil(t, session.InfoProvidedAt)
}

func TestProvideClientInfoNeverRegressesStatus(t *testing.T) {
	svc, repo := newTestService()
	generated, err := svc.GenerateSessions(1, 1)
	require.NoError(t, err)
	g := generated[0]

	// photos land before the client fills in their details
	_, err = repo.AdvanceToPhotosUploaded(g.ID, 1000)
	require.NoError(t, err)

	email := "late@example.com"
	session, err := svc.ProvideClientInfo(g.Code, g.Pin, &email, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusPhotosUploaded, session.Status)
	require.NotNil(t, session.ClientEmail)
	assert.Equal(t, email, *session.ClientEmail)
}

func TestCompleteSession(t *testing.T) {
	svc, repo := newTestService()
	generated, err := svc.GenerateSessions(1, 1)
	require.NoError(t, err)
	g := generated[0]

	// completion requires delivered photos
	_, err = svc.CompleteSession(g.ID)
	require.Error(t, err)

	_, err = repo.AdvanceToPhotosUploaded(g.ID, 1000)
	require.NoError(t, err)

	session, err := svc.CompleteSession(g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	assert.NotNil(t, session.CompletedAt)
}
