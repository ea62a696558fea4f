// Package accounts manages the users list and the currentUser snapshot.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sol1corejz/ecoglass/internal/logger"
	"github.com/sol1corejz/ecoglass/internal/models"
	"github.com/sol1corejz/ecoglass/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrAlreadyExists   = errors.New("account already exists")
	ErrWrongPassword   = errors.New("wrong password")
	ErrMissingFields   = errors.New("all fields are required")
	ErrInvalidName     = errors.New("name must be at least 2 characters")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidPassword = errors.New("password must be at least 6 characters")
)

const (
	minNameLen     = 2
	minPasswordLen = 6
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail is the canonical form used for lookups and storage keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Service struct {
	store    storage.Store
	hashCost int
	now      func() time.Time
}

func NewService(store storage.Store) *Service {
	return &Service{store: store, hashCost: bcrypt.DefaultCost, now: time.Now}
}

// WithHashCost overrides the bcrypt cost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Register validates the form, creates the account with zero points and
// makes it the current user.
func (s *Service) Register(ctx context.Context, name, email, password string) (models.Account, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)

	switch {
	case name == "" || email == "" || password == "":
		return models.Account{}, ErrMissingFields
	case len([]rune(name)) < minNameLen:
		return models.Account{}, ErrInvalidName
	case !emailRe.MatchString(email):
		return models.Account{}, ErrInvalidEmail
	case len(password) < minPasswordLen:
		return models.Account{}, ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}

	err = s.store.Atomic(ctx, func(kv storage.KV) error {
		users, err := LoadUsers(ctx, kv)
		if err != nil {
			return err
		}
		if _, found := find(users, email); found {
			return ErrAlreadyExists
		}

		users = append(users, user)
		if err := kv.Put(ctx, storage.KeyUsers, users); err != nil {
			return err
		}
		return kv.Put(ctx, storage.KeyCurrentUser, user.Account())
	})
	if err != nil {
		return models.Account{}, err
	}

	logger.Log.Info("Account registered", zap.String("email", email))
	return user.Account(), nil
}

// Authenticate checks the password and makes the account the current user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (models.Account, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return models.Account{}, ErrMissingFields
	}
	if !emailRe.MatchString(email) {
		return models.Account{}, ErrInvalidEmail
	}

	var account models.Account
	err := s.store.Atomic(ctx, func(kv storage.KV) error {
		users, err := LoadUsers(ctx, kv)
		if err != nil {
			return err
		}
		i, found := find(users, email)
		if !found {
			return ErrNotFound
		}
		if err := bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(password)); err != nil {
			return ErrWrongPassword
		}

		account = users[i].Account()
		return kv.Put(ctx, storage.KeyCurrentUser, account)
	})
	if err != nil {
		return models.Account{}, err
	}

	return account, nil
}

func (s *Service) Get(ctx context.Context, email string) (models.Account, error) {
	user, err := GetUser(ctx, s.store, NormalizeEmail(email))
	if err != nil {
		return models.Account{}, err
	}
	return user.Account(), nil
}

// Current returns the currentUser snapshot, if any.
func (s *Service) Current(ctx context.Context) (models.Account, bool, error) {
	var account models.Account
	ok, err := s.store.Get(ctx, storage.KeyCurrentUser, &account)
	if err != nil {
		// A corrupt snapshot is dropped rather than served.
		logger.Log.Warn("Dropping unreadable current user", zap.Error(err))
		return models.Account{}, false, s.store.Delete(ctx, storage.KeyCurrentUser)
	}
	return account, ok, nil
}

// Logout clears currentUser when it belongs to email.
func (s *Service) Logout(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	return s.store.Atomic(ctx, func(kv storage.KV) error {
		var current models.Account
		ok, err := kv.Get(ctx, storage.KeyCurrentUser, &current)
		if err != nil || (ok && current.Email == email) {
			return kv.Delete(ctx, storage.KeyCurrentUser)
		}
		return nil
	})
}

// LoadUsers reads the users list; a missing key is an empty list.
func LoadUsers(ctx context.Context, kv storage.KV) ([]models.User, error) {
	users := make([]models.User, 0)
	if _, err := kv.Get(ctx, storage.KeyUsers, &users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

func GetUser(ctx context.Context, kv storage.KV, email string) (models.User, error) {
	users, err := LoadUsers(ctx, kv)
	if err != nil {
		return models.User{}, err
	}
	i, found := find(users, email)
	if !found {
		return models.User{}, ErrNotFound
	}
	return users[i], nil
}

// SetPoints stores the balance of email in the users list and mirrors it
// into currentUser when that is the same account. Use it inside Atomic.
func SetPoints(ctx context.Context, kv storage.KV, email string, points int) error {
	users, err := LoadUsers(ctx, kv)
	if err != nil {
		return err
	}
	i, found := find(users, email)
	if !found {
		return ErrNotFound
	}

	users[i].Points = points
	if err := kv.Put(ctx, storage.KeyUsers, users); err != nil {
		return err
	}

	var current models.Account
	ok, err := kv.Get(ctx, storage.KeyCurrentUser, &current)
	if err != nil {
		return fmt.Errorf("load current user: %w", err)
	}
	if ok && current.Email == email {
		return kv.Put(ctx, storage.KeyCurrentUser, users[i].Account())
	}
	return nil
}

func find(users []models.User, email string) (int, bool) {
	for i := range users {
		if NormalizeEmail(users[i].Email) == email {
			return i, true
		}
	}
	return -1, false
}
