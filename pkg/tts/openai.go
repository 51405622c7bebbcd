package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hearthlabs/hearth/internal/httpc"
	"github.com/hearthlabs/hearth/pkg/audioio"
)

// The pcm response format is headerless 16-bit mono at 24kHz.
const openaiPCMRate = 24000

// ErrNoAPIKey: the client was constructed without credentials.
var ErrNoAPIKey = errors.New("tts: API key is required")

// OpenAI is a /v1/audio/speech client requesting raw PCM.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	speed   float64
	client  *http.Client
	logger  *slog.Logger
}

// OpenAIOption configures the client.
type OpenAIOption func(*OpenAI)

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) { o.baseURL = strings.TrimRight(url, "/") }
}

// WithModel overrides the synthesis model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) { o.model = model }
}

// WithVoice selects the voice.
func WithVoice(voice string) OpenAIOption {
	return func(o *OpenAI) { o.voice = voice }
}

// WithSpeed sets the speaking rate (0.25-4.0).
func WithSpeed(speed float64) OpenAIOption {
	return func(o *OpenAI) { o.speed = speed }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAI) { o.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OpenAIOption {
	return func(o *OpenAI) { o.logger = l }
}

// NewOpenAI creates a synthesis client.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	o := &OpenAI{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com",
		model:   "tts-1",
		voice:   "nova",
		speed:   1.0,
		client:  httpc.NewClient(30 * time.Second),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Synthesize converts text to 24kHz mono PCM16. Callers resample to their
// sink rate with audioio.Resample.
func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, errors.New("tts: empty text")
	}
	start := time.Now()

	payload := map[string]interface{}{
		"model":           o.model,
		"input":           text,
		"voice":           o.voice,
		"speed":           o.speed,
		"response_format": "pcm",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("tts: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("tts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, 0, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("tts: read audio: %w", err)
	}

	pcm := audioio.BytesToSamples(raw)
	o.logger.Debug("synthesis complete",
		"duration", time.Since(start),
		"chars", len(text),
		"audio", time.Duration(len(pcm))*time.Second/openaiPCMRate,
	)
	return pcm, openaiPCMRate, nil
}
