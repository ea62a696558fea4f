// Package ledger owns every change to an account's points: confirmed
// uploads, deleted uploads, redemptions and bonus payouts. Each operation
// runs in one storage transaction under a per-account lock, so a failed
// operation leaves no partial change behind.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sol1corejz/ecoglass/internal/accounts"
	"github.com/sol1corejz/ecoglass/internal/bonus"
	"github.com/sol1corejz/ecoglass/internal/catalog"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"github.com/sol1corejz/ecoglass/internal/models"
	"github.com/sol1corejz/ecoglass/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrValidationPending   = errors.New("image validation has not finished")
	ErrRejectedByValidator = errors.New("image rejected by the validator")
	ErrNotFound            = errors.New("upload not found")
	ErrInsufficientPoints  = errors.New("insufficient points")
)

// ProgressTracker advances the bonus bar inside a ledger transaction.
type ProgressTracker interface {
	Load(ctx context.Context, kv storage.KV, email string) (bonus.Progress, error)
	Increment(ctx context.Context, kv storage.KV, email string) (bonus.Outcome, error)
}

// Confirmation is the result of ConfirmUpload. Points is the balance after
// the upload award and any bonus.
type Confirmation struct {
	Upload   models.UploadRecord `json:"upload"`
	Points   int                 `json:"points"`
	Progress bonus.Outcome       `json:"progress"`
}

type Ledger struct {
	store   storage.Store
	tracker ProgressTracker
	locks   *keyedMutex
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Ledger)

// WithRand sets the source of redemption code characters.
func WithRand(rng *rand.Rand) Option {
	return func(l *Ledger) { l.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(store storage.Store, tracker ProgressTracker, opts ...Option) *Ledger {
	seed := uint64(time.Now().UnixNano())
	l := &Ledger{
		store:   store,
		tracker: tracker,
		locks:   newKeyedMutex(),
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ConfirmUpload records a validated upload: it prepends the record, awards
// PointsPerUpload, advances the bonus bar and pays a completed bar's bonus.
// A nil result is ErrValidationPending. A result that is invalid and did
// not fall back to simulation is ErrRejectedByValidator.
func (l *Ledger) ConfirmUpload(ctx context.Context, email, image string, result *models.ValidationResult) (Confirmation, error) {
	if result == nil {
		return Confirmation{}, ErrValidationPending
	}
	if !result.IsValid && !result.RequiresAPIKey {
		return Confirmation{}, ErrRejectedByValidator
	}

	email = accounts.NormalizeEmail(email)
	unlock := l.locks.Lock(email)
	defer unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return Confirmation{}, fmt.Errorf("upload id: %w", err)
	}
	record := models.UploadRecord{
		ID:            id.String(),
		ImageData:     image,
		SubmittedAt:   l.now(),
		PointsAwarded: models.PointsPerUpload,
	}

	var conf Confirmation
	err = l.store.Atomic(ctx, func(kv storage.KV) error {
		user, err := accounts.GetUser(ctx, kv, email)
		if err != nil {
			return err
		}

		uploads, err := loadUploads(ctx, kv, email)
		if err != nil {
			return err
		}
		uploads = append([]models.UploadRecord{record}, uploads...)
		if err := kv.Put(ctx, storage.UploadsKey(email), uploads); err != nil {
			return err
		}

		points := user.Points + record.PointsAwarded
		if err := accounts.SetPoints(ctx, kv, email, points); err != nil {
			return err
		}

		outcome, err := l.tracker.Increment(ctx, kv, email)
		if err != nil {
			return err
		}
		if outcome.Bonus > 0 {
			points, err = applyBonus(ctx, kv, email, outcome.Bonus)
			if err != nil {
				return err
			}
		}

		conf = Confirmation{Upload: record, Points: points, Progress: outcome}
		return nil
	})
	if err != nil {
		return Confirmation{}, err
	}

	logger.Log.Info("Upload confirmed",
		zap.String("email", email),
		zap.String("uploadID", record.ID),
		zap.Int("points", conf.Points),
		zap.Int("bonus", conf.Progress.Bonus),
	)
	return conf, nil
}

// DeleteUpload removes an upload and takes its award back, never going
// below zero. The bonus bar is left as it is.
func (l *Ledger) DeleteUpload(ctx context.Context, email, uploadID string) (int, error) {
	email = accounts.NormalizeEmail(email)
	unlock := l.locks.Lock(email)
	defer unlock()

	var points int
	err := l.store.Atomic(ctx, func(kv storage.KV) error {
		user, err := accounts.GetUser(ctx, kv, email)
		if err != nil {
			return err
		}

		uploads, err := loadUploads(ctx, kv, email)
		if err != nil {
			return err
		}
		idx := -1
		for i := range uploads {
			if uploads[i].ID == uploadID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}

		removed := uploads[idx]
		uploads = append(uploads[:idx], uploads[idx+1:]...)
		if err := kv.Put(ctx, storage.UploadsKey(email), uploads); err != nil {
			return err
		}

		points = max(0, user.Points-removed.PointsAwarded)
		return accounts.SetPoints(ctx, kv, email, points)
	})
	if err != nil {
		return 0, err
	}

	return points, nil
}

// Redeem spends entry's cost and appends a redemption with a fresh code.
func (l *Ledger) Redeem(ctx context.Context, email string, entry catalog.Entry) (models.RedemptionRecord, error) {
	email = accounts.NormalizeEmail(email)
	unlock := l.locks.Lock(email)
	defer unlock()

	now := l.now()
	record := models.RedemptionRecord{
		RewardID:   entry.ID,
		Name:       entry.Name,
		PointsCost: entry.PointsCost,
		Category:   string(entry.Category),
		RedeemedAt: now,
		Code:       l.code(now),
	}

	err := l.store.Atomic(ctx, func(kv storage.KV) error {
		user, err := accounts.GetUser(ctx, kv, email)
		if err != nil {
			return err
		}
		if user.Points < entry.PointsCost {
			return ErrInsufficientPoints
		}

		redeemed, err := loadRedemptions(ctx, kv, email)
		if err != nil {
			return err
		}
		redeemed = append(redeemed, record)
		if err := kv.Put(ctx, storage.RedeemedKey(email), redeemed); err != nil {
			return err
		}

		return accounts.SetPoints(ctx, kv, email, user.Points-entry.PointsCost)
	})
	if err != nil {
		return models.RedemptionRecord{}, err
	}

	logger.Log.Info("Reward redeemed",
		zap.String("email", email),
		zap.String("reward", entry.ID),
		zap.String("code", record.Code),
	)
	return record, nil
}

// ApplyBonus adds points unconditionally and returns the new balance.
func (l *Ledger) ApplyBonus(ctx context.Context, email string, points int) (int, error) {
	email = accounts.NormalizeEmail(email)
	unlock := l.locks.Lock(email)
	defer unlock()

	var balance int
	err := l.store.Atomic(ctx, func(kv storage.KV) error {
		var err error
		balance, err = applyBonus(ctx, kv, email, points)
		return err
	})
	return balance, err
}

func (l *Ledger) Balance(ctx context.Context, email string) (int, error) {
	user, err := accounts.GetUser(ctx, l.store, accounts.NormalizeEmail(email))
	if err != nil {
		return 0, err
	}
	return user.Points, nil
}

// Uploads lists the account's uploads, newest first.
func (l *Ledger) Uploads(ctx context.Context, email string) ([]models.UploadRecord, error) {
	email = accounts.NormalizeEmail(email)
	if _, err := accounts.GetUser(ctx, l.store, email); err != nil {
		return nil, err
	}
	return loadUploads(ctx, l.store, email)
}

// Redemptions lists the account's redemptions in the order they were made.
func (l *Ledger) Redemptions(ctx context.Context, email string) ([]models.RedemptionRecord, error) {
	email = accounts.NormalizeEmail(email)
	if _, err := accounts.GetUser(ctx, l.store, email); err != nil {
		return nil, err
	}
	return loadRedemptions(ctx, l.store, email)
}

func (l *Ledger) Progress(ctx context.Context, email string) (bonus.Progress, error) {
	email = accounts.NormalizeEmail(email)
	if _, err := accounts.GetUser(ctx, l.store, email); err != nil {
		return bonus.Progress{}, err
	}
	return l.tracker.Load(ctx, l.store, email)
}

func (l *Ledger) code(now time.Time) string {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()
	return GenerateCode(l.rng, now)
}

func applyBonus(ctx context.Context, kv storage.KV, email string, points int) (int, error) {
	user, err := accounts.GetUser(ctx, kv, email)
	if err != nil {
		return 0, err
	}
	balance := user.Points + points
	if err := accounts.SetPoints(ctx, kv, email, balance); err != nil {
		return 0, err
	}

	logger.Log.Info("Bonus applied", zap.String("email", email), zap.Int("bonus", points))
	return balance, nil
}

func loadUploads(ctx context.Context, kv storage.KV, email string) ([]models.UploadRecord, error) {
	uploads := make([]models.UploadRecord, 0)
	if _, err := kv.Get(ctx, storage.UploadsKey(email), &uploads); err != nil {
		return nil, fmt.Errorf("load uploads: %w", err)
	}
	return uploads, nil
}

func loadRedemptions(ctx context.Context, kv storage.KV, email string) ([]models.RedemptionRecord, error) {
	redeemed := make([]models.RedemptionRecord, 0)
	if _, err := kv.Get(ctx, storage.RedeemedKey(email), &redeemed); err != nil {
		return nil, fmt.Errorf("load redemptions: %w", err)
	}
	return redeemed, nil
}
