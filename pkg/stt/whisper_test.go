package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/youpy/go-wav"
)

func TestWhisper_Transcribe(t *testing.T) {
	var gotAuth, gotModel string
	var gotWAVRate uint32
	var gotSamples int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotModel = r.FormValue("model")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			defer file.Close()
			reader := wav.NewReader(file)
			format, err := reader.Format()
			if err != nil {
				t.Errorf("wav format: %v", err)
			} else {
				gotWAVRate = format.SampleRate
			}
			for {
				samples, err := reader.ReadSamples()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Errorf("wav samples: %v", err)
					break
				}
				gotSamples += len(samples)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "  turn on the kitchen light  "}`))
	}))
	defer srv.Close()

	c, err := NewWhisper("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}

	pcm := make([]int16, 16000)
	text, err := c.Transcribe(context.Background(), pcm, 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if text != "turn on the kitchen light" {
		t.Errorf("text = %q, want trimmed transcript", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", gotModel)
	}
	if gotWAVRate != 16000 {
		t.Errorf("wav sample rate = %d, want 16000", gotWAVRate)
	}
	if gotSamples != 16000 {
		t.Errorf("wav samples = %d, want 16000", gotSamples)
	}
}

func TestWhisper_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	c, err := NewWhisper("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}

	_, err = c.Transcribe(context.Background(), make([]int16, 100), 16000)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	if !apiErr.IsRetryable() {
		t.Error("IsRetryable() = false for 429")
	}
}

func TestWhisper_EmptyBuffer(t *testing.T) {
	c, err := NewWhisper("test-key")
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}
	if _, err := c.Transcribe(context.Background(), nil, 16000); err == nil {
		t.Error("expected error for empty buffer")
	}
}

func TestNewWhisper_RequiresKey(t *testing.T) {
	if _, err := NewWhisper(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestMock_ScriptedResults(t *testing.T) {
	m := NewMock("first", "second")

	for i, want := range []string{"first", "second", "second"} {
		got, err := m.Transcribe(context.Background(), []int16{1}, 16000)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got != want {
			t.Errorf("call %d = %q, want %q", i, got, want)
		}
	}
	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}
}
