// Package validator decides whether an uploaded photo shows recyclable
// glass. With an API key it asks a vision model; without one it returns a
// simulated verdict. Validate never fails: every error is folded into a
// rejected, non-authoritative result.
package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"github.com/sol1corejz/ecoglass/internal/models"
	"go.uber.org/zap"
)

var (
	ErrCredentialInvalid  = errors.New("invalid API key, check your configuration")
	ErrRateLimited        = errors.New("usage limit exceeded, try again later")
	ErrAPI                = errors.New("classifier API error")
	ErrNetworkTimeout     = errors.New("classifier request timed out")
	ErrNetworkUnavailable = errors.New("classifier unreachable")
	ErrMalformedResponse  = errors.New("invalid response format")
)

const (
	// MaxPayloadChars rejects encoded images locally, without a request.
	MaxPayloadChars = 3_500_000

	DefaultModel          = openai.GPT4oMini
	DefaultTimeout        = 15 * time.Second
	DefaultSimulatedDelay = 300 * time.Millisecond
	DefaultLanguage       = "English"

	maxTokens   = 300
	temperature = 0.3

	defaultMessage    = "Analysis completed"
	tooLargeMessage   = "The image is too large even after optimization. Try another photo."
	timeoutMessage    = "Validation took too long. The image was optimized, but your connection may be slow."
	networkMessage    = "Connection error. Check your internet connection and try again."
	simulationSuffix  = " (simulation mode enabled)"
	cancelledMessage  = "Validation was cancelled."
	unexpectedMessage = "Error validating the image"
)

// CredentialSource supplies the classifier API key.
type CredentialSource interface {
	Get(ctx context.Context) (string, bool)
}

type Config struct {
	BaseURL        string
	Model          string
	Language       string
	Timeout        time.Duration
	SimulatedDelay time.Duration
	HTTPClient     *http.Client
	// Rand drives the simulated verdicts. Nil seeds one from the clock.
	Rand *rand.Rand
}

type Validator struct {
	creds CredentialSource
	cfg   Config

	mu  sync.Mutex
	rng *rand.Rand
}

func New(creds CredentialSource, cfg Config) *Validator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SimulatedDelay < 0 {
		cfg.SimulatedDelay = 0
	}

	rng := cfg.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	return &Validator{creds: creds, cfg: cfg, rng: rng}
}

// Validate classifies encoded, a data URI of the (compressed) photo.
func (v *Validator) Validate(ctx context.Context, encoded string) models.ValidationResult {
	apiKey, ok := v.creds.Get(ctx)
	if !ok || strings.TrimSpace(apiKey) == "" {
		return v.simulate(ctx)
	}

	if len(encoded) > MaxPayloadChars {
		return models.ValidationResult{
			IsValid:       false,
			Confidence:    0,
			DetectedItems: []string{},
			Message:       tooLargeMessage,
		}
	}

	result, err := v.classify(ctx, apiKey, encoded)
	if err != nil {
		logger.Log.Warn("Image validation failed", zap.Error(err))
		return models.ValidationResult{
			IsValid:        false,
			Confidence:     0,
			DetectedItems:  []string{},
			Message:        failureMessage(err),
			RequiresAPIKey: true,
		}
	}

	return result
}

func (v *Validator) classify(ctx context.Context, apiKey, encoded string) (models.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	clientCfg := openai.DefaultConfig(apiKey)
	if v.cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(v.cfg.BaseURL, "/")
	}
	if v.cfg.HTTPClient != nil {
		clientCfg.HTTPClient = v.cfg.HTTPClient
	}
	client := openai.NewClientWithConfig(clientCfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt(v.cfg.Language),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    encoded,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return models.ValidationResult{}, classifyError(ctx, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return models.ValidationResult{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	return ParseReply(resp.Choices[0].Message.Content)
}

// classifyError maps a client error onto the validation error taxonomy.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, err)
	}

	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	return err
}

func statusError(status int, err error) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	default:
		return fmt.Errorf("%w: status %d: %v", ErrAPI, status, err)
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrNetworkTimeout):
		return timeoutMessage + simulationSuffix
	case errors.Is(err, ErrNetworkUnavailable):
		return networkMessage + simulationSuffix
	case errors.Is(err, ErrCredentialInvalid):
		return "Invalid API key. Check your configuration."
	case errors.Is(err, ErrRateLimited):
		return "Usage limit exceeded. Try again later."
	case errors.Is(err, ErrAPI):
		return "Classifier API error: " + strings.TrimPrefix(err.Error(), ErrAPI.Error()+": ")
	case errors.Is(err, ErrMalformedResponse):
		return "Invalid response format from the classifier."
	case errors.Is(err, context.Canceled):
		return cancelledMessage
	default:
		return unexpectedMessage
	}
}

type reply struct {
	IsValid       any `json:"isValid"`
	Confidence    any `json:"confidence"`
	DetectedItems any `json:"detectedItems"`
	Message       any `json:"message"`
}

// ParseReply extracts the outermost {...} span of text and normalises it:
// isValid must be literally true, confidence is clamped to [0, 100], and
// non-string items are dropped.
func ParseReply(text string) (models.ValidationResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return models.ValidationResult{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var r reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return models.ValidationResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := models.ValidationResult{
		DetectedItems: []string{},
		Message:       defaultMessage,
	}
	if b, ok := r.IsValid.(bool); ok {
		result.IsValid = b
	}
	if f, ok := r.Confidence.(float64); ok {
		result.Confidence = clampConfidence(f)
	}
	if items, ok := r.DetectedItems.([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				result.DetectedItems = append(result.DetectedItems, s)
			}
		}
	}
	if msg, ok := r.Message.(string); ok && msg != "" {
		result.Message = msg
	}

	return result, nil
}

func clampConfidence(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Min(100, math.Max(0, f))))
}

func prompt(language string) string {
	return fmt.Sprintf(`Analyze this image and determine whether it contains recyclable glass (glass bottles, jars, glass containers, etc.).

Reply ONLY with a JSON object in exactly this format:
{
  "isValid": true or false,
  "confidence": number between 0 and 100,
  "detectedItems": ["item1", "item2"],
  "message": "short description"
}

Criteria:
- isValid: true only if recyclable glass is clearly visible
- confidence: your confidence level in the detection
- detectedItems: list of the glass objects detected (in %[1]s)
- message: short description of what you see (in %[1]s, max 50 words)

IMPORTANT: Reply ONLY with the JSON, no additional text.`, language)
}
