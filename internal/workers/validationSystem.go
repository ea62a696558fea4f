package workers

import (
	"context"
	"errors"

	"github.com/sol1corejz/ecoglass/internal/imaging"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"github.com/sol1corejz/ecoglass/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CompressThresholdMB is the estimated size above which a draft is
// compressed before validation.
const CompressThresholdMB = 1.5

const queueSize = 64

var ErrStopped = errors.New("validation system stopped")

type Validator interface {
	Validate(ctx context.Context, encoded string) models.ValidationResult
}

type DraftStore interface {
	MarkProcessing(id string) (models.Draft, error)
	Complete(id, image string, compressed bool, result models.ValidationResult) error
}

// ValidationSystem compresses and validates queued drafts on a fixed pool
// of workers.
type ValidationSystem struct {
	drafts    DraftStore
	validator Validator
	workers   int
	compress  imaging.Options

	queue chan string
	done  chan struct{}
}

func NewValidationSystem(drafts DraftStore, validator Validator, workers int) *ValidationSystem {
	if workers < 1 {
		workers = 1
	}
	return &ValidationSystem{
		drafts:    drafts,
		validator: validator,
		workers:   workers,
		compress:  imaging.DefaultOptions(),
		queue:     make(chan string, queueSize),
		done:      make(chan struct{}),
	}
}

// InitValidationSystem starts the workers in the background. They stop
// when ctx is cancelled.
func (s *ValidationSystem) InitValidationSystem(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			logger.Log.Error("Validation system stopped", zap.Error(err))
		}
	}()

	logger.Log.Info("Validation system workers started", zap.Int("workers", s.workers))
}

// Start runs the workers until ctx is cancelled. Drafts still queued at
// that point stay NEW.
func (s *ValidationSystem) Start(ctx context.Context) error {
	defer close(s.done)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case id := <-s.queue:
					s.process(gctx, id)
				}
			}
		})
	}

	return g.Wait()
}

// Enqueue hands a NEW draft to the workers. It blocks while the queue is
// full.
func (s *ValidationSystem) Enqueue(ctx context.Context, id string) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}

	select {
	case s.queue <- id:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ValidationSystem) process(ctx context.Context, id string) {
	draft, err := s.drafts.MarkProcessing(id)
	if err != nil {
		logger.Log.Warn("Skipping draft", zap.String("draftID", id), zap.Error(err))
		return
	}

	image, compressed := s.prepare(id, draft.ImageData)
	result := s.validator.Validate(ctx, image)

	if err := s.drafts.Complete(id, image, compressed, result); err != nil {
		logger.Log.Error("Failed to complete draft", zap.String("draftID", id), zap.Error(err))
		return
	}

	logger.Log.Info("Draft validated",
		zap.String("draftID", id),
		zap.Bool("valid", result.IsValid),
		zap.Int("confidence", result.Confidence),
		zap.Bool("simulated", result.RequiresAPIKey),
	)
}

// prepare compresses images above the threshold. A failed compression keeps
// the original image.
func (s *ValidationSystem) prepare(id, image string) (string, bool) {
	if !imaging.NeedsCompression(image, CompressThresholdMB) {
		return image, false
	}

	r, err := imaging.Compress(image, s.compress)
	if err != nil {
		logger.Log.Warn("Compression failed, validating original image", zap.String("draftID", id), zap.Error(err))
		return image, false
	}

	logger.Log.Info("Image compressed",
		zap.String("draftID", id),
		zap.Float64("originalMB", imaging.EstimateSizeMB(image)),
		zap.Float64("finalMB", r.SizeMB()),
		zap.Float64("quality", r.Quality),
	)
	return r.Encoded, true
}
