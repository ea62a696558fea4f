package ledger

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sol1corejz/ecoglass/internal/accounts"
	"github.com/sol1corejz/ecoglass/internal/bonus"
	"github.com/sol1corejz/ecoglass/internal/catalog"
	"github.com/sol1corejz/ecoglass/internal/models"
	"github.com/sol1corejz/ecoglass/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const email = "ana@example.com"

var codeRe = regexp.MustCompile(`^ECO-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

var accepted = &models.ValidationResult{IsValid: true, Confidence: 90, DetectedItems: []string{"bottle"}}

func setup(t *testing.T) (*Ledger, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	_, err := accounts.NewService(store).WithHashCost(bcrypt.MinCost).
		Register(context.Background(), "Ana", email, "secret1")
	require.NoError(t, err)

	l := New(store, bonus.NewTracker(), WithRand(rand.New(rand.NewPCG(3, 4))))
	return l, store
}

func setPoints(t *testing.T, store storage.Store, points int) {
	t.Helper()
	require.NoError(t, store.Atomic(context.Background(), func(kv storage.KV) error {
		return accounts.SetPoints(context.Background(), kv, email, points)
	}))
}

func TestConfirmUploadGate(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	_, err := l.ConfirmUpload(ctx, email, "data:x", nil)
	assert.ErrorIs(t, err, ErrValidationPending)

	rejected := &models.ValidationResult{IsValid: false, Confidence: 80, DetectedItems: []string{}}
	_, err = l.ConfirmUpload(ctx, email, "data:x", rejected)
	assert.ErrorIs(t, err, ErrRejectedByValidator)

	balance, err := l.Balance(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	// Fallback verdicts do not block the upload.
	fallback := &models.ValidationResult{IsValid: false, DetectedItems: []string{}, RequiresAPIKey: true}
	conf, err := l.ConfirmUpload(ctx, email, "data:x", fallback)
	require.NoError(t, err)
	assert.Equal(t, 50, conf.Points)
}

func TestConfirmUploadRecordsAndAwards(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	first, err := l.ConfirmUpload(ctx, email, "data:first", accepted)
	require.NoError(t, err)
	second, err := l.ConfirmUpload(ctx, email, "data:second", accepted)
	require.NoError(t, err)

	assert.Equal(t, 50, first.Points)
	assert.Equal(t, 100, second.Points)
	assert.Equal(t, 50, second.Upload.PointsAwarded)
	assert.Equal(t, fixed, second.Upload.SubmittedAt)
	assert.Equal(t, 40, second.Progress.Progress.Progress)
	assert.Equal(t, 3, second.Progress.PhotosRemaining)

	uploads, err := l.Uploads(ctx, email)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, second.Upload.ID, uploads[0].ID)
	assert.Equal(t, first.Upload.ID, uploads[1].ID)

	var current models.Account
	_, err = store.Get(ctx, storage.KeyCurrentUser, &current)
	require.NoError(t, err)
	assert.Equal(t, 100, current.Points)
}

func TestFiveUploadsPayTheFirstBonus(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	var last Confirmation
	for i := 0; i < 5; i++ {
		var err error
		last, err = l.ConfirmUpload(ctx, email, "data:x", accepted)
		require.NoError(t, err)
	}

	assert.Equal(t, 5*50+100, last.Points)
	assert.True(t, last.Progress.Completed)
	assert.Equal(t, 100, last.Progress.Bonus)
	assert.Equal(t, bonus.Progress{Progress: 0, Level: 2, TotalCompleted: 1}, last.Progress.Progress)

	p, err := l.Progress(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 150, p.NextReward())
}

func TestDeleteUpload(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()

	conf, err := l.ConfirmUpload(ctx, email, "data:x", accepted)
	require.NoError(t, err)

	points, err := l.DeleteUpload(ctx, email, conf.Upload.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, points)

	uploads, err := l.Uploads(ctx, email)
	require.NoError(t, err)
	assert.Empty(t, uploads)

	_, err = l.DeleteUpload(ctx, email, conf.Upload.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Points spent since the upload: the balance floors at zero.
	conf, err = l.ConfirmUpload(ctx, email, "data:y", accepted)
	require.NoError(t, err)
	setPoints(t, store, 20)
	points, err = l.DeleteUpload(ctx, email, conf.Upload.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, points)
}

func TestRedeem(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()

	coffee, err := catalog.Get("1")
	require.NoError(t, err)

	_, err = l.Redeem(ctx, email, coffee)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	redeemed, err := l.Redemptions(ctx, email)
	require.NoError(t, err)
	assert.Empty(t, redeemed)

	setPoints(t, store, 150)
	record, err := l.Redeem(ctx, email, coffee)
	require.NoError(t, err)
	assert.Regexp(t, codeRe, record.Code)
	assert.Equal(t, "1", record.RewardID)
	assert.Equal(t, 100, record.PointsCost)

	balance, err := l.Balance(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	redeemed, err = l.Redemptions(ctx, email)
	require.NoError(t, err)
	require.Len(t, redeemed, 1)
	assert.Equal(t, record.Code, redeemed[0].Code)

	// Exactly enough is enough.
	setPoints(t, store, 100)
	_, err = l.Redeem(ctx, email, coffee)
	require.NoError(t, err)
	balance, _ = l.Balance(ctx, email)
	assert.Equal(t, 0, balance)
}

func TestApplyBonus(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	balance, err := l.ApplyBonus(ctx, email, 150)
	require.NoError(t, err)
	assert.Equal(t, 150, balance)

	_, err = l.ApplyBonus(ctx, "ghost@example.com", 10)
	assert.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestConfirmThenDeleteRestoresBalance(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	setPoints(t, store, 230)

	conf, err := l.ConfirmUpload(ctx, email, "data:x", accepted)
	require.NoError(t, err)
	require.False(t, conf.Progress.Completed)

	points, err := l.DeleteUpload(ctx, email, conf.Upload.ID)
	require.NoError(t, err)
	assert.Equal(t, 230, points)
}

type failingTracker struct {
	*bonus.Tracker
}

func (failingTracker) Increment(context.Context, storage.KV, string) (bonus.Outcome, error) {
	return bonus.Outcome{}, errors.New("tracker down")
}

func TestFailedConfirmLeavesNoPartialChange(t *testing.T) {
	store := storage.NewMemory()
	_, err := accounts.NewService(store).WithHashCost(bcrypt.MinCost).
		Register(context.Background(), "Ana", email, "secret1")
	require.NoError(t, err)

	l := New(store, failingTracker{bonus.NewTracker()})
	ctx := context.Background()

	_, err = l.ConfirmUpload(ctx, email, "data:x", accepted)
	require.Error(t, err)

	balance, err := l.Balance(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
	uploads, err := l.Uploads(ctx, email)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestConcurrentConfirmationsAreSerialised(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ConfirmUpload(ctx, email, "data:x", accepted)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 10 uploads fill the bar twice: 100 + 150 bonus.
	balance, err := l.Balance(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, n*50+100+150, balance)

	uploads, err := l.Uploads(ctx, email)
	require.NoError(t, err)
	assert.Len(t, uploads, n)
}

func TestUnknownAccount(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	_, err := l.ConfirmUpload(ctx, "ghost@example.com", "data:x", accepted)
	assert.ErrorIs(t, err, accounts.ErrNotFound)
	_, err = l.Uploads(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestGenerateCode(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	at := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 200; i++ {
		assert.Regexp(t, codeRe, GenerateCode(rng, at))
	}

	// 1700000000000 in base 36 is LOYW3V28; the suffix is its tail.
	assert.Equal(t, "3V28", GenerateCode(rng, at)[9:])
}
