// Package drafts keeps uploads between image submission and confirmation.
// Drafts live in memory in a bounded LRU; an evicted draft is gone. Each
// account may hold only a few drafts at once.
package drafts

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sol1corejz/ecoglass/internal/imaging"
	"github.com/sol1corejz/ecoglass/internal/models"
)

var (
	ErrNotFound         = errors.New("draft not found")
	ErrNotReady         = errors.New("draft validation has not finished")
	ErrUploadInProgress = errors.New("draft confirmation already in progress")
	ErrBadTransition    = errors.New("invalid draft status transition")
	ErrTooManyDrafts    = errors.New("too many drafts for account")
)

type Store struct {
	mu         sync.Mutex
	cache      *lru.Cache
	perAccount int
	// owned counts the cached drafts of each email.
	owned map[string]int
	now   func() time.Time
}

// NewStore keeps at most capacity drafts overall and perAccount per email.
// perAccount <= 0 leaves accounts limited only by capacity.
func NewStore(capacity, perAccount int) (*Store, error) {
	s := &Store{perAccount: perAccount, owned: make(map[string]int), now: time.Now}
	cache, err := lru.NewWithEvict(capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("draft cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// onEvict runs inside cache calls made under s.mu.
func (s *Store) onEvict(_, value interface{}) {
	email := value.(*models.Draft).Email
	if s.owned[email] <= 1 {
		delete(s.owned, email)
		return
	}
	s.owned[email]--
}

// Create stores a NEW draft for email.
func (s *Store) Create(email, image string, sizeMB float64) (models.Draft, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.Draft{}, fmt.Errorf("draft id: %w", err)
	}

	d := &models.Draft{
		ID:             id.String(),
		Email:          email,
		Status:         models.NEW,
		ImageData:      image,
		OriginalSizeMB: sizeMB,
		FinalSizeMB:    sizeMB,
		CreatedAt:      s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.perAccount > 0 && s.owned[email] >= s.perAccount {
		return models.Draft{}, fmt.Errorf("%w: limit is %d", ErrTooManyDrafts, s.perAccount)
	}
	s.cache.Add(d.ID, d)
	s.owned[email]++

	return clone(d), nil
}

// Get returns the draft if it exists and belongs to email.
func (s *Store) Get(email, id string) (models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(id)
	if err != nil || d.Email != email {
		return models.Draft{}, ErrNotFound
	}
	return clone(d), nil
}

// MarkProcessing moves a NEW draft to PROCESSING and returns it.
func (s *Store) MarkProcessing(id string) (models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(id)
	if err != nil {
		return models.Draft{}, err
	}
	if d.Status != models.NEW {
		return models.Draft{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, d.Status, models.PROCESSING)
	}
	d.Status = models.PROCESSING
	return clone(d), nil
}

// Complete stores the processed image and its verdict and marks the draft
// VALIDATED.
func (s *Store) Complete(id, image string, compressed bool, result models.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(id)
	if err != nil {
		return err
	}
	if d.Status != models.PROCESSING {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, d.Status, models.VALIDATED)
	}

	if result.DetectedItems == nil {
		result.DetectedItems = []string{}
	}
	d.ImageData = image
	d.Compressed = compressed
	d.FinalSizeMB = imaging.EstimateSizeMB(image)
	d.Validation = &result
	d.Status = models.VALIDATED
	return nil
}

// Claim moves a VALIDATED draft of email to CONFIRMING. Only one caller can
// hold a claim; Release or Remove ends it.
func (s *Store) Claim(email, id string) (models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(id)
	if err != nil || d.Email != email {
		return models.Draft{}, ErrNotFound
	}

	switch d.Status {
	case models.VALIDATED:
		d.Status = models.CONFIRMING
		return clone(d), nil
	case models.CONFIRMING:
		return models.Draft{}, ErrUploadInProgress
	default:
		return models.Draft{}, fmt.Errorf("%w: draft is %s", ErrNotReady, d.Status)
	}
}

// Release returns a claimed draft to VALIDATED after a failed confirmation.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, err := s.lookup(id); err == nil && d.Status == models.CONFIRMING {
		d.Status = models.VALIDATED
	}
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	s.cache.Remove(id)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) lookup(id string) (*models.Draft, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*models.Draft), nil
}

func clone(d *models.Draft) models.Draft {
	out := *d
	if d.Validation != nil {
		v := *d.Validation
		v.DetectedItems = append([]string{}, d.Validation.DetectedItems...)
		out.Validation = &v
	}
	return out
}
