package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribe(t *testing.T) {
	var gotModel, gotFormat, gotFilename string
	var gotAudio []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("request path = %q, want /audio/transcriptions", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("failed to read form file: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		gotAudio, _ = io.ReadAll(file)

		json.NewEncoder(w).Encode(map[string]string{"text": "привет, бот"})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.WhisperModel = "whisper-large-v3"
	client := NewClient(cfg)

	text, err := client.Transcribe(context.Background(), "note.oga", []byte{0x4f, 0x67, 0x67})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "привет, бот" {
		t.Errorf("Transcribe() = %q, want transcript", text)
	}

	if gotModel != "whisper-large-v3" {
		t.Errorf("model field = %q", gotModel)
	}
	if gotFormat != "json" {
		t.Errorf("response_format field = %q", gotFormat)
	}
	if gotFilename != "note.oga" {
		t.Errorf("filename = %q", gotFilename)
	}
	if len(gotAudio) != 3 {
		t.Errorf("audio bytes = %d, want 3", len(gotAudio))
	}
}

func TestTranscribeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.Transcribe(context.Background(), "note.oga", []byte{1})
	if err == nil {
		t.Errorf("Transcribe() with API error succeeded, want error")
	}
}

func TestTranscribeNotConfigured(t *testing.T) {
	cfg := testConfig("https://api.test.com")
	cfg.LLMToken = ""
	client := NewClient(cfg)

	_, err := client.Transcribe(context.Background(), "note.oga", []byte{1})
	if err == nil {
		t.Errorf("Transcribe() without LLM config succeeded, want error")
	}
}

func TestTranscribeEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": ""})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	// Empty transcripts are returned as-is, the caller decides how to react
	text, err := client.Transcribe(context.Background(), "note.oga", []byte{1})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "" {
		t.Errorf("Transcribe() = %q, want empty", text)
	}
}
