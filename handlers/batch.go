package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marek-sl/photodropbackend/media"
	"github.com/marek-sl/photodropbackend/models"
	"github.com/marek-sl/photodropbackend/repository"
	"github.com/marek-sl/photodropbackend/utils"
	"github.com/marek-sl/photodropbackend/workers"
)

const maxBatchUploadMemory = 64 << 20

type BatchHandler struct {
	Batches   repository.UploadBatchRepositoryInterface
	RawPhotos repository.RawPhotoRepositoryInterface
	Projects  repository.ProjectRepositoryInterface
	Store     media.Store
	Analyzer  *workers.BatchAnalyzer
	Logger    zerolog.Logger
}

// CreateBatch takes a multipart upload of raw photos, persists every image
// with its EXIF capture time, and queues the batch for QR analysis. The
// response returns immediately; analysis runs in the background.
func (bh *BatchHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	projectID, err := uintURLParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	if _, err := bh.Projects.GetByID(projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch project")
		return
	}

	if err := r.ParseMultipartForm(maxBatchUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	fileHeaders := r.MultipartForm.File["photos"]
	accepted := fileHeaders[:0:0]
	for _, header := range fileHeaders {
		if utils.IsRasterImage(header.Filename) {
			accepted = append(accepted, header)
		} else {
			bh.Logger.Warn().Str("filename", header.Filename).Msg("skipping non-image upload")
		}
	}
	if len(accepted) == 0 {
		writeError(w, http.StatusBadRequest, "No image files in 'photos' field")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = "Photo Batch"
	}

	now := time.Now().Unix()
	batch := &models.UploadBatch{
		ProjectID: projectID,
		Name:      name,
		Status:    models.BatchStatusUploading,
		CreatedAt: now,
	}
	if err := bh.Batches.Create(batch); err != nil {
		bh.Logger.Error().Err(err).Uint("project_id", projectID).Msg("failed to create batch")
		writeError(w, http.StatusInternalServerError, "Failed to create batch")
		return
	}

	batchDir := fmt.Sprintf("%d", batch.ID)
	saved := 0
	for _, header := range accepted {
		if err := bh.intakePhoto(batch.ID, batchDir, header); err != nil {
			bh.Logger.Error().Err(err).Uint("batch_id", batch.ID).Str("filename", header.Filename).
				Msg("failed to store uploaded photo")
			continue
		}
		saved++
	}

	if saved == 0 {
		_ = bh.Batches.MarkFailed(batch.ID, "no photos could be stored", time.Now().Unix())
		writeError(w, http.StatusInternalServerError, "Failed to store uploaded photos")
		return
	}

	if err := bh.Batches.SetTotalPhotos(batch.ID, saved); err != nil {
		bh.Logger.Error().Err(err).Uint("batch_id", batch.ID).Msg("failed to record batch size")
	}

	bh.Analyzer.QueueBatch(batch.ID)

	created, err := bh.Batches.GetByID(batch.ID)
	if err != nil {
		created = batch
	}
	writeJSON(w, http.StatusAccepted, created)
}

func (bh *BatchHandler) intakePhoto(batchID uint, batchDir string, header *multipart.FileHeader) error {
	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	photoBytes, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	storagePath, err := bh.Store.Save(media.AssetTypeRawPhoto, batchDir, header.Filename, bytes.NewReader(photoBytes))
	if err != nil {
		return err
	}

	meta := utils.ExtractPhotoMetadata(bytes.NewReader(photoBytes))

	return bh.RawPhotos.Create(&models.RawPhoto{
		BatchID:          batchID,
		StoragePath:      storagePath,
		OriginalFilename: header.Filename,
		TakenAt:          meta.TakenAt,
		CameraMake:       meta.CameraMake,
		CameraModel:      meta.CameraModel,
		UploadedAt:       time.Now().Unix(),
		FileSize:         int64(len(photoBytes)),
	})
}

func (bh *BatchHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	projectID, err := uintURLParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	batches, err := bh.Batches.ListByProject(projectID)
	if err != nil {
		bh.Logger.Error().Err(err).Uint("project_id", projectID).Msg("failed to list batches")
		writeError(w, http.StatusInternalServerError, "Failed to list batches")
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

// GetBatch reports batch state including the live progress counters
func (bh *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := bh.loadBatch(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batch":               batch,
		"progress_percentage": batch.ProgressPercentage(),
	})
}

func (bh *BatchHandler) ListBatchPhotos(w http.ResponseWriter, r *http.Request) {
	batch, ok := bh.loadBatch(w, r)
	if !ok {
		return
	}

	photos, err := bh.RawPhotos.ListByBatch(batch.ID)
	if err != nil {
		bh.Logger.Error().Err(err).Uint("batch_id", batch.ID).Msg("failed to list batch photos")
		writeError(w, http.StatusInternalServerError, "Failed to list batch photos")
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

// ReanalyzeBatch requeues a stalled batch, e.g. after an unclean shutdown
// mid-analysis. Terminal batches are immutable.
func (bh *BatchHandler) ReanalyzeBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := bh.loadBatch(w, r)
	if !ok {
		return
	}

	if batch.IsTerminal() {
		writeError(w, http.StatusConflict, "Batch analysis already finished")
		return
	}

	queued := bh.Analyzer.QueueBatch(batch.ID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"batch_id": batch.ID,
		"queued":   queued,
	})
}

func (bh *BatchHandler) loadBatch(w http.ResponseWriter, r *http.Request) (*models.UploadBatch, bool) {
	batchID, err := uintURLParam(r, "batchID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid batch ID")
		return nil, false
	}

	batch, err := bh.Batches.GetByID(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Batch not found")
			return nil, false
		}
		bh.Logger.Error().Err(err).Uint("batch_id", batchID).Msg("failed to fetch batch")
		writeError(w, http.StatusInternalServerError, "Failed to fetch batch")
		return nil, false
	}
	return batch, true
}
