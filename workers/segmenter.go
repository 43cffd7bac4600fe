package workers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/facette/natsort"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/media"
	"github.com/marek-sl/photodropbackend/models"
	"github.com/marek-sl/photodropbackend/repository"
	"github.com/marek-sl/photodropbackend/utils"
)

// Decoder attempts to decode one QR payload from raw image bytes,
// returning "" when none is found. Implemented by media.QRDecoder.
type Decoder interface {
	Decode(imageBytes []byte) string
}

// sessionLockSet serializes materialization per session so batches running
// concurrently can't race the (session, filename) uniqueness check.
type sessionLockSet struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newSessionLockSet() *sessionLockSet {
	return &sessionLockSet{locks: make(map[uint]*sync.Mutex)}
}

func (l *sessionLockSet) lock(sessionID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Segmenter walks one batch's photos in capture order and reconstructs the
// photo sessions from the QR markers scattered through the stream: a
// resolved marker sets the current session, and every following marker-less
// photo inherits it until the next marker resolves.
type Segmenter struct {
	batches       repository.UploadBatchRepositoryInterface
	rawPhotos     repository.RawPhotoRepositoryInterface
	sessions      repository.SessionRepositoryInterface
	sessionPhotos repository.SessionPhotoRepositoryInterface
	store         media.Store
	decoder       Decoder
	resolver      *MarkerResolver
	thumbMaxSize  int
	locks         *sessionLockSet
	logger        zerolog.Logger
}

// NewSegmenter creates a new instance of Segmenter. The decoder belongs to
// the calling worker; locks are shared across all segmenters so concurrent
// batches serialize materialization per session.
func NewSegmenter(
	batches repository.UploadBatchRepositoryInterface,
	rawPhotos repository.RawPhotoRepositoryInterface,
	sessions repository.SessionRepositoryInterface,
	sessionPhotos repository.SessionPhotoRepositoryInterface,
	store media.Store,
	decoder Decoder,
	thumbMaxSize int,
	locks *sessionLockSet,
	logger zerolog.Logger,
) *Segmenter {
	if locks == nil {
		locks = newSessionLockSet()
	}
	return &Segmenter{
		batches:       batches,
		rawPhotos:     rawPhotos,
		sessions:      sessions,
		sessionPhotos: sessionPhotos,
		store:         store,
		decoder:       decoder,
		resolver:      NewMarkerResolver(sessions, logger),
		thumbMaxSize:  thumbMaxSize,
		locks:         locks,
		logger:        logger,
	}
}

// AnalyzeBatch runs the full segmentation pass over one batch. A batch that
// cannot be claimed (already analyzing, or already terminal) is skipped
// without error. Per-photo failures are recorded on the photo and never
// abort the walk; only a failure to load the batch's photo set at all
// transitions the batch to failed.
func (s *Segmenter) AnalyzeBatch(batchID uint) error {
	logger := s.logger.With().Uint("batch_id", batchID).Logger()

	batch, err := s.batches.GetByID(batchID)
	if err != nil {
		return fmt.Errorf("failed to load batch %d: %w", batchID, err)
	}

	claimed, err := s.batches.ClaimForAnalysis(batchID, time.Now().Unix())
	if err != nil {
		return err
	}
	if !claimed {
		logger.Warn().Str("status", batch.Status).Msg("batch not in uploading state, skipping analysis")
		return nil
	}

	logger.Info().Msg("starting qr analysis")

	photos, err := s.rawPhotos.ListByBatch(batchID)
	if err != nil {
		s.failBatch(logger, batchID, err)
		return err
	}

	if err := s.batches.SetTotalPhotos(batchID, len(photos)); err != nil {
		s.failBatch(logger, batchID, err)
		return err
	}

	sortPhotosByCaptureOrder(photos)

	var current *models.Session
	processed := 0
	markersFound := 0
	touched := make(map[uint]bool)

	for i := range photos {
		photo := &photos[i]

		if photo.IsProcessed {
			// redelivered batch: replay the recorded outcome so the session
			// pointer and counters stay correct without mutating the photo
			s.replayPhoto(photo, batch.ProjectID, &current, &markersFound, touched)
		} else {
			s.processPhoto(logger, batch, photo, &current, &markersFound, touched)
		}

		processed++
		if err := s.batches.SetProgress(batchID, processed); err != nil {
			logger.Error().Err(err).Int("processed", processed).Msg("failed to publish batch progress")
		}
	}

	s.reconcileSessionStatuses(logger, touched)

	if err := s.batches.MarkCompleted(batchID, markersFound, time.Now().Unix()); err != nil {
		logger.Error().Err(err).Msg("failed to mark batch completed")
		return err
	}

	logger.Info().
		Int("total_photos", len(photos)).
		Int("markers_found", markersFound).
		Int("sessions_touched", len(touched)).
		Msg("qr analysis completed")
	return nil
}

// processPhoto performs decode, resolve, assignment and materialization for
// one photo. Any failure (or panic) inside those steps is captured as the
// photo's processing error; the photo is marked processed either way.
func (s *Segmenter) processPhoto(
	logger zerolog.Logger,
	batch *models.UploadBatch,
	photo *models.RawPhoto,
	current **models.Session,
	markersFound *int,
	touched map[uint]bool,
) {
	var taskErr error
	hasMarker := false
	var payload *string

	func() {
		defer func() {
			if r := recover(); r != nil {
				taskErr = fmt.Errorf("panic while processing photo: %v", r)
			}
		}()

		// bytes are held only around the decode step
		data, readErr := s.readPhotoBytes(photo)
		if readErr != nil {
			taskErr = readErr
			return
		}
		decoded := s.decoder.Decode(data)
		data = nil

		if decoded != "" {
			hasMarker = true
			*markersFound++
			payload = &decoded

			session, resolveErr := s.resolver.Resolve(decoded, batch.ProjectID)
			if resolveErr != nil {
				taskErr = resolveErr
				return
			}
			if session != nil {
				*current = session
				logger.Info().Str("code", session.ShortCode()).Str("filename", photo.OriginalFilename).
					Msg("marker resolved, switching current session")
			}
			// an unresolved marker is noise: the current session is left
			// alone and this photo falls through to inherit it below
		}

		if *current != nil {
			sessionID := (*current).ID
			photo.AssignedSessionID = &sessionID
		}

		if photo.AssignedSessionID != nil {
			if matErr := s.materialize(photo, *photo.AssignedSessionID); matErr != nil {
				taskErr = matErr
				return
			}
		}
	}()

	if taskErr != nil {
		logger.Error().Err(taskErr).Uint("photo_id", photo.ID).Str("filename", photo.OriginalFilename).
			Msg("error processing photo, continuing batch")
	}

	if photo.AssignedSessionID != nil {
		touched[*photo.AssignedSessionID] = true
	}

	if err := s.rawPhotos.SetOutcome(photo.ID, hasMarker, payload, photo.AssignedSessionID, time.Now().Unix(), taskErr); err != nil {
		logger.Error().Err(err).Uint("photo_id", photo.ID).Msg("failed to record photo outcome")
	}
	photo.IsProcessed = true
}

// replayPhoto feeds an already-processed photo's recorded outcome back into
// the walk state. Outcome fields stay untouched, so a re-run produces no
// duplicate side effects.
func (s *Segmenter) replayPhoto(
	photo *models.RawPhoto,
	projectID uint,
	current **models.Session,
	markersFound *int,
	touched map[uint]bool,
) {
	if photo.HasMarker && photo.MarkerPayload != nil {
		*markersFound++
		if session, err := s.resolver.Resolve(*photo.MarkerPayload, projectID); err == nil && session != nil {
			*current = session
		}
	}
	if photo.AssignedSessionID != nil {
		touched[*photo.AssignedSessionID] = true
	}
}

// readPhotoBytes fetches the photo's bytes from the store, releasing the
// reader before decode work starts
func (s *Segmenter) readPhotoBytes(photo *models.RawPhoto) ([]byte, error) {
	reader, _, err := s.store.Get(photo.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw photo %s: %w", photo.StoragePath, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw photo %s: %w", photo.StoragePath, err)
	}
	return data, nil
}

// materialize copies the raw photo into the session's durable collection.
// A photo with the same filename already under the session is a silent
// no-op. The per-session lock serializes this against concurrent batches.
func (s *Segmenter) materialize(photo *models.RawPhoto, sessionID uint) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	_, err := s.sessionPhotos.GetBySessionAndFilename(sessionID, photo.OriginalFilename)
	if err == nil {
		return nil // already materialized
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	data, err := s.readPhotoBytes(photo)
	if err != nil {
		return err
	}

	storagePath, err := s.store.Save(
		media.AssetTypeSessionPhoto,
		fmt.Sprintf("%d", sessionID),
		photo.OriginalFilename,
		bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to copy photo %s into session %d: %w", photo.OriginalFilename, sessionID, err)
	}

	// thumbnail is best-effort; a photo without one is still delivered
	var thumbPath *string
	if thumbBytes, thumbErr := utils.MakeThumbnail(data, s.thumbMaxSize); thumbErr != nil {
		s.logger.Warn().Err(thumbErr).Str("filename", photo.OriginalFilename).Msg("failed to generate thumbnail")
	} else {
		name := uuid.New().String() + ".jpg"
		if p, saveErr := s.store.Save(media.AssetTypeThumbnail, "", name, bytes.NewReader(thumbBytes)); saveErr != nil {
			s.logger.Warn().Err(saveErr).Str("filename", photo.OriginalFilename).Msg("failed to store thumbnail")
		} else {
			thumbPath = &p
		}
	}

	sessionPhoto := &models.SessionPhoto{
		SessionID:        sessionID,
		OriginalFilename: photo.OriginalFilename,
		StoragePath:      storagePath,
		ThumbnailPath:    thumbPath,
		TakenAt:          photo.TakenAt,
		UploadedAt:       time.Now().Unix(),
		FileSize:         photo.FileSize,
	}

	if _, err := s.sessionPhotos.CreateIfAbsent(sessionPhoto); err != nil {
		return err
	}
	return nil
}

// reconcileSessionStatuses promotes every session that received photos this
// run to photos_uploaded. One session failing never blocks the others.
func (s *Segmenter) reconcileSessionStatuses(logger zerolog.Logger, touched map[uint]bool) {
	now := time.Now().Unix()
	for sessionID := range touched {
		count, err := s.sessionPhotos.CountBySession(sessionID)
		if err != nil {
			logger.Error().Err(err).Uint("session_id", sessionID).Msg("failed to count session photos during reconciliation")
			continue
		}
		if count == 0 {
			continue
		}
		advanced, err := s.sessions.AdvanceToPhotosUploaded(sessionID, now)
		if err != nil {
			logger.Error().Err(err).Uint("session_id", sessionID).Msg("failed to advance session status")
			continue
		}
		if advanced {
			logger.Info().Uint("session_id", sessionID).Int64("photos", count).
				Msg("session advanced to photos_uploaded")
		}
	}
}

// failBatch records an unrecoverable batch failure. Photos already
// processed keep their outcomes.
func (s *Segmenter) failBatch(logger zerolog.Logger, batchID uint, cause error) {
	if err := s.batches.MarkFailed(batchID, cause.Error(), time.Now().Unix()); err != nil {
		logger.Error().Err(err).Msg("failed to mark batch failed")
	}
	logger.Error().Err(cause).Msg("batch analysis failed")
}

// sortPhotosByCaptureOrder orders photos by capture time, falling back to
// upload time; photos without a capture timestamp sort after timestamped
// ones. Natural filename order breaks remaining ties so the walk is fully
// deterministic regardless of input order.
func sortPhotosByCaptureOrder(photos []models.RawPhoto) {
	sort.SliceStable(photos, func(i, j int) bool {
		a, b := &photos[i], &photos[j]

		switch {
		case a.TakenAt != nil && b.TakenAt != nil:
			if *a.TakenAt != *b.TakenAt {
				return *a.TakenAt < *b.TakenAt
			}
		case a.TakenAt != nil:
			return true
		case b.TakenAt != nil:
			return false
		}

		if a.UploadedAt != b.UploadedAt {
			return a.UploadedAt < b.UploadedAt
		}
		return natsort.Compare(a.OriginalFilename, b.OriginalFilename)
	})
}
