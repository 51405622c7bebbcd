package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/youpy/go-wav"

	"github.com/hearthlabs/hearth/internal/httpc"
)

const defaultWhisperModel = "whisper-1"

// ErrNoAPIKey: the client was constructed without credentials.
var ErrNoAPIKey = errors.New("stt: API key is required")

// Whisper is an OpenAI-compatible /v1/audio/transcriptions client. The PCM
// buffer is wrapped as a WAV file in memory; nothing touches disk.
type Whisper struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// WhisperOption configures the client.
type WhisperOption func(*Whisper)

// WithBaseURL points the client at a different endpoint (tests, local
// whisper servers).
func WithBaseURL(url string) WhisperOption {
	return func(w *Whisper) { w.baseURL = strings.TrimRight(url, "/") }
}

// WithModel overrides the transcription model.
func WithModel(model string) WhisperOption {
	return func(w *Whisper) { w.model = model }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) WhisperOption {
	return func(w *Whisper) { w.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WhisperOption {
	return func(w *Whisper) { w.logger = l }
}

// NewWhisper creates a transcription client.
func NewWhisper(apiKey string, opts ...WhisperOption) (*Whisper, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	w := &Whisper{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com",
		model:   defaultWhisperModel,
		client:  httpc.NewClient(30 * time.Second),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Transcribe uploads the utterance and returns the transcript text.
func (w *Whisper) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", errors.New("stt: empty audio buffer")
	}
	start := time.Now()

	wavData, err := encodeWAV(pcm, sampleRate)
	if err != nil {
		return "", fmt.Errorf("stt: encode wav: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", w.model); err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}
	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("stt: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("stt: decode response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	w.logger.Debug("transcription complete",
		"duration", time.Since(start),
		"chars", len(text),
	)
	return text, nil
}

// encodeWAV wraps mono PCM16 as an in-memory WAV file.
func encodeWAV(pcm []int16, sampleRate int) ([]byte, error) {
	samples := make([]wav.Sample, len(pcm))
	for i, v := range pcm {
		samples[i] = wav.Sample{Values: [2]int{int(v), 0}}
	}
	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(len(samples)), 1, uint32(sampleRate), 16)
	if err := writer.WriteSamples(samples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
