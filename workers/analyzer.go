package workers

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/marek-sl/photodropbackend/media"
	"github.com/marek-sl/photodropbackend/repository"
)

// DecoderFactory builds the QR decoder a worker owns for its lifetime.
// Decoders holding native resources should also implement Close() error.
type DecoderFactory func() Decoder

// BatchAnalyzer runs batch analyses on a fixed pool of workers. One batch
// is processed sequentially by a single worker; distinct batches run
// concurrently. The pending map keeps a batch from being queued twice
// while a run for it is queued or in flight.
type BatchAnalyzer struct {
	JobQueue chan uint
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[uint]bool
	Mutex    sync.Mutex

	batches       repository.UploadBatchRepositoryInterface
	rawPhotos     repository.RawPhotoRepositoryInterface
	sessions      repository.SessionRepositoryInterface
	sessionPhotos repository.SessionPhotoRepositoryInterface
	store         media.Store
	newDecoder    DecoderFactory
	thumbMaxSize  int
	locks         *sessionLockSet
	logger        zerolog.Logger
}

// NewBatchAnalyzer starts the worker pool
func NewBatchAnalyzer(
	batches repository.UploadBatchRepositoryInterface,
	rawPhotos repository.RawPhotoRepositoryInterface,
	sessions repository.SessionRepositoryInterface,
	sessionPhotos repository.SessionPhotoRepositoryInterface,
	store media.Store,
	newDecoder DecoderFactory,
	thumbMaxSize int,
	queueSize, numWorkers int,
	logger zerolog.Logger,
) *BatchAnalyzer {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 50
	}

	ba := &BatchAnalyzer{
		JobQueue:      make(chan uint, queueSize),
		StopChan:      make(chan struct{}),
		Pending:       make(map[uint]bool),
		batches:       batches,
		rawPhotos:     rawPhotos,
		sessions:      sessions,
		sessionPhotos: sessionPhotos,
		store:         store,
		newDecoder:    newDecoder,
		thumbMaxSize:  thumbMaxSize,
		locks:         newSessionLockSet(),
		logger:        logger,
	}

	ba.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go ba.worker(i)
	}
	logger.Info().Int("workers", numWorkers).Int("queue_size", queueSize).
		Msg("started batch analysis worker pool")
	return ba
}

// worker owns one decoder and processes queued batches until stopped
func (ba *BatchAnalyzer) worker(id int) {
	defer ba.Wg.Done()

	logger := ba.logger.With().Int("worker", id).Logger()

	decoder := ba.newDecoder()
	defer func() {
		if closer, ok := decoder.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close qr decoder")
			}
		}
	}()

	segmenter := NewSegmenter(
		ba.batches, ba.rawPhotos, ba.sessions, ba.sessionPhotos,
		ba.store, decoder, ba.thumbMaxSize, ba.locks, logger,
	)

	logger.Info().Msg("analysis worker started")
	for {
		select {
		case batchID, ok := <-ba.JobQueue:
			if !ok {
				logger.Info().Msg("analysis worker stopping: job queue closed")
				return
			}

			if err := segmenter.AnalyzeBatch(batchID); err != nil {
				logger.Error().Err(err).Uint("batch_id", batchID).Msg("batch analysis returned error")
			}

			ba.Mutex.Lock()
			delete(ba.Pending, batchID)
			ba.Mutex.Unlock()

		case <-ba.StopChan:
			logger.Info().Msg("analysis worker stopping: stop signal received")
			return
		}
	}
}

// QueueBatch enqueues a batch for analysis if it isn't already pending.
// Returns false when the batch is pending or the queue is full.
func (ba *BatchAnalyzer) QueueBatch(batchID uint) bool {
	ba.Mutex.Lock()
	if ba.Pending[batchID] {
		ba.Mutex.Unlock()
		return false
	}
	ba.Pending[batchID] = true
	ba.Mutex.Unlock()

	select {
	case ba.JobQueue <- batchID:
		ba.logger.Info().Uint("batch_id", batchID).Msg("queued batch for analysis")
		return true
	default:
		ba.logger.Warn().Uint("batch_id", batchID).Msg("analysis queue full, failed to queue batch")
		ba.Mutex.Lock()
		delete(ba.Pending, batchID)
		ba.Mutex.Unlock()
		return false
	}
}

func (ba *BatchAnalyzer) Stop() {
	ba.logger.Info().Msg("stopping batch analysis workers...")
	close(ba.StopChan)
	ba.Wg.Wait()
	ba.logger.Info().Msg("all batch analysis workers stopped")
}
