package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe converts a voice note to text via the provider's
// speech-to-text endpoint (OpenAI-compatible audio/transcriptions).
// An empty result is returned as-is; the caller decides how to react.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if !c.cfg.HasLLMConfig() {
		return "", fmt.Errorf("LLM is not configured")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.WriteField("model", c.cfg.WhisperModel); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("failed to write response_format field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.LLMEndpoint+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.LLMToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send transcription request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, string(body))
	}

	var transcription transcriptionResponse
	if err := json.Unmarshal(body, &transcription); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return transcription.Text, nil
}
