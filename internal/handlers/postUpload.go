package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/ecoglass/internal/imaging"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"go.uber.org/zap"
)

var (
	errNoImage  = errors.New("no image in request")
	errNotImage = errors.New("please select a valid image")
)

type UploadRequest struct {
	Image string `json:"image"`
}

// CreateUploadHandler accepts a photo, either as JSON {"image": "<data uri>"}
// or as a raw image/* body, and queues it for validation.
func (h *Handler) CreateUploadHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	image, err := readImage(c)
	switch {
	case errors.Is(err, errNotImage):
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Please select a valid image",
		})
	case err != nil:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid image data",
		})
	}

	draft, err := h.Drafts.Create(userEmail(c), image, imaging.EstimateSizeMB(image))
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.Queue.Enqueue(ctx, draft.ID); err != nil {
		h.Drafts.Remove(draft.ID)
		logger.Log.Error("Error queueing draft", zap.String("draftID", draft.ID), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Validation is unavailable, try again later",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(draft)
}

func (h *Handler) GetDraftHandler(c *fiber.Ctx) error {
	draft, err := h.Drafts.Get(userEmail(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(draft)
}

// DiscardDraftHandler drops a draft that will not be confirmed.
func (h *Handler) DiscardDraftHandler(c *fiber.Ctx) error {
	draft, err := h.Drafts.Get(userEmail(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	h.Drafts.Remove(draft.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

// ConfirmUploadHandler records a validated draft. The draft is consumed on
// success and kept otherwise.
func (h *Handler) ConfirmUploadHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	email := userEmail(c)
	draft, err := h.Drafts.Claim(email, c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	confirmation, err := h.Ledger.ConfirmUpload(ctx, email, draft.ImageData, draft.Validation)
	if err != nil {
		h.Drafts.Release(draft.ID)
		return errorResponse(c, err)
	}
	h.Drafts.Remove(draft.ID)

	return c.Status(fiber.StatusOK).JSON(confirmation)
}

func readImage(c *fiber.Ctx) (string, error) {
	contentType := strings.ToLower(strings.TrimSpace(c.Get(fiber.HeaderContentType)))
	mime, _, _ := strings.Cut(contentType, ";")

	if strings.HasPrefix(mime, "image/") {
		body := c.Body()
		if len(body) == 0 {
			return "", errNoImage
		}
		return imaging.ToDataURI(mime, body), nil
	}

	var request UploadRequest
	if err := c.BodyParser(&request); err != nil {
		return "", err
	}
	if request.Image == "" {
		return "", errNoImage
	}

	kind, data, err := imaging.ParseDataURI(request.Image)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(kind, "image/") {
		return "", errNotImage
	}
	if len(data) == 0 {
		return "", errNoImage
	}
	return request.Image, nil
}
