package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/ecoglass/internal/accounts"
	"github.com/sol1corejz/ecoglass/internal/bonus"
	"github.com/sol1corejz/ecoglass/internal/catalog"
	"github.com/sol1corejz/ecoglass/internal/credentials"
	"github.com/sol1corejz/ecoglass/internal/drafts"
	"github.com/sol1corejz/ecoglass/internal/imaging"
	"github.com/sol1corejz/ecoglass/internal/ledger"
	"github.com/sol1corejz/ecoglass/internal/models"
	"github.com/sol1corejz/ecoglass/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// syncQueue validates drafts inline with a fixed verdict. A nil verdict
// leaves drafts pending.
type syncQueue struct {
	drafts  *drafts.Store
	verdict *models.ValidationResult
}

func (q *syncQueue) Enqueue(_ context.Context, id string) error {
	if q.verdict == nil {
		return nil
	}
	d, err := q.drafts.MarkProcessing(id)
	if err != nil {
		return err
	}
	return q.drafts.Complete(id, d.ImageData, false, *q.verdict)
}

type testServer struct {
	t     *testing.T
	app   *fiber.App
	queue *syncQueue
	token string
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewMemory()
	draftStore, err := drafts.NewStore(32, 4)
	require.NoError(t, err)

	queue := &syncQueue{
		drafts:  draftStore,
		verdict: &models.ValidationResult{IsValid: true, Confidence: 90, DetectedItems: []string{"bottle"}},
	}
	h := &Handler{
		Accounts:    accounts.NewService(store).WithHashCost(bcrypt.MinCost),
		Ledger:      ledger.New(store, bonus.NewTracker()),
		Drafts:      draftStore,
		Queue:       queue,
		Credentials: credentials.NewStore(store),
	}

	app := fiber.New()
	h.Routes(app)
	return &testServer{t: t, app: app, queue: queue}
}

func (s *testServer) do(method, path string, body any) (*http.Response, []byte) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, out
}

func (s *testServer) register(email string) {
	s.t.Helper()
	resp, _ := s.do(http.MethodPost, "/api/user/register", RegisterRequest{Name: "Ana", Email: email, Password: "secret1"})
	require.Equal(s.t, fiber.StatusOK, resp.StatusCode)
	s.token = resp.Header.Get("Authorization")[len("Bearer "):]
}

func (s *testServer) upload() models.Draft {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/api/user/uploads", UploadRequest{
		Image: imaging.ToDataURI("image/jpeg", []byte("jpeg-bytes")),
	})
	require.Equal(s.t, fiber.StatusAccepted, resp.StatusCode, string(body))
	var d models.Draft
	require.NoError(s.t, json.Unmarshal(body, &d))
	return d
}

func TestRegisterAndLogin(t *testing.T) {
	s := newServer(t)

	resp, _ := s.do(http.MethodPost, "/api/user/register", RegisterRequest{Name: "A", Email: "a@b.co", Password: "secret1"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	s.register("ana@example.com")

	resp, _ = s.do(http.MethodPost, "/api/user/register", RegisterRequest{Name: "Ana", Email: "ANA@example.com", Password: "secret1"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/user/login", LoginRequest{Email: "ana@example.com", Password: "wrong-one"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(http.MethodPost, "/api/user/login", LoginRequest{Email: "ana@example.com", Password: "secret1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var acc models.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, "ana@example.com", acc.Email)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newServer(t)
	s.register("ana@example.com")

	resp, _ := s.do(http.MethodGet, "/api/user/balance", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/user/logout", nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/user/balance", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUploadConfirmDeleteFlow(t *testing.T) {
	s := newServer(t)
	s.register("ana@example.com")

	resp, body := s.do(http.MethodGet, "/api/user/balance", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var balance BalanceResponse
	require.NoError(t, json.Unmarshal(body, &balance))
	assert.Equal(t, BalanceResponse{Points: 0, Level: 1, NextReward: 100, PhotosRemaining: 5}, balance)

	d := s.upload()

	resp, body = s.do(http.MethodGet, "/api/user/drafts/"+d.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got models.Draft
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, models.VALIDATED, got.Status)

	resp, body = s.do(http.MethodPost, "/api/user/drafts/"+d.ID+"/confirm", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var conf ledger.Confirmation
	require.NoError(t, json.Unmarshal(body, &conf))
	assert.Equal(t, 50, conf.Points)
	assert.Equal(t, 4, conf.Progress.PhotosRemaining)

	// The draft is consumed.
	resp, _ = s.do(http.MethodPost, "/api/user/drafts/"+d.ID+"/confirm", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/api/user/uploads", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var uploads []models.UploadRecord
	require.NoError(t, json.Unmarshal(body, &uploads))
	require.Len(t, uploads, 1)

	resp, body = s.do(http.MethodDelete, "/api/user/uploads/"+uploads[0].ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"points": 0}`, string(body))

	resp, _ = s.do(http.MethodGet, "/api/user/uploads", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/api/user/uploads/"+uploads[0].ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestConfirmGate(t *testing.T) {
	s := newServer(t)
	s.register("ana@example.com")

	s.queue.verdict = nil
	pending := s.upload()
	resp, _ := s.do(http.MethodPost, "/api/user/drafts/"+pending.ID+"/confirm", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	s.queue.verdict = &models.ValidationResult{IsValid: false, Confidence: 85, DetectedItems: []string{}}
	rejected := s.upload()
	resp, _ = s.do(http.MethodPost, "/api/user/drafts/"+rejected.ID+"/confirm", nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/api/user/drafts/"+rejected.ID, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// A simulated rejection is not authoritative.
	s.queue.verdict = &models.ValidationResult{IsValid: false, DetectedItems: []string{}, RequiresAPIKey: true}
	simulated := s.upload()
	resp, _ = s.do(http.MethodPost, "/api/user/drafts/"+simulated.ID+"/confirm", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUploadDraftLimit(t *testing.T) {
	s := newServer(t)
	s.register("ana@example.com")
	s.queue.verdict = nil

	var first models.Draft
	for i := 0; i < 4; i++ {
		d := s.upload()
		if i == 0 {
			first = d
		}
	}

	resp, _ := s.do(http.MethodPost, "/api/user/uploads", UploadRequest{
		Image: imaging.ToDataURI("image/jpeg", []byte("jpeg-bytes")),
	})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/api/user/drafts/"+first.ID, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	s.upload()
}

func TestUploadRejectsNonImages(t *testing.T) {
	s := newServer(t)
	s.register("ana@example.com")

	resp, _ := s.do(http.MethodPost, "/api/user/uploads", UploadRequest{
		Image: imaging.ToDataURI("text/plain", []byte("hello")),
	})
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/user/uploads", UploadRequest{Image: "data:image/png;base64,***"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/user/uploads", UploadRequest{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRawImageUpload(t *testing.T) {
	s := newServer(t)
	s.register("ana@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/user/uploads", bytes.NewReader([]byte("png-bytes")))
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
}

func TestRewardsAndRedeem(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(http.MethodGet, "/api/rewards?category=wellness", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, catalog.Wellness, e.Category)
	}

	resp, _ = s.do(http.MethodGet, "/api/rewards?category=cars", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	s.register("ana@example.com")

	resp, _ = s.do(http.MethodPost, "/api/user/rewards/1/redeem", nil)
	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/user/rewards/99/redeem", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/user/redemptions", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	for i := 0; i < 2; i++ {
		d := s.upload()
		resp, _ = s.do(http.MethodPost, "/api/user/drafts/"+d.ID+"/confirm", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, body = s.do(http.MethodPost, "/api/user/rewards/1/redeem", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var record models.RedemptionRecord
	require.NoError(t, json.Unmarshal(body, &record))
	assert.Regexp(t, `^ECO-[A-Z0-9]{4}-[A-Z0-9]{4}$`, record.Code)

	resp, body = s.do(http.MethodGet, "/api/user/balance", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var balance BalanceResponse
	require.NoError(t, json.Unmarshal(body, &balance))
	assert.Equal(t, 0, balance.Points)
}

func TestAPIKeySettings(t *testing.T) {
	s := newServer(t)
	s.register("ana@example.com")

	resp, body := s.do(http.MethodGet, "/api/settings/api-key", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"configured": false}`, string(body))

	resp, body = s.do(http.MethodPut, "/api/settings/api-key", APIKeyRequest{APIKey: "  sk-abcdef1234 "})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"configured": true, "masked": "*********1234"}`, string(body))

	resp, _ = s.do(http.MethodDelete, "/api/settings/api-key", nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/api/settings/api-key", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"configured": false}`, string(body))
}
