package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/indiwide/gembot/internal/config"
	"github.com/indiwide/gembot/internal/consts"
)

// Generation parameters for chat completions
const (
	temperature = 0.7
	maxTokens   = 300
	topP        = 1.0
)

// Message is one conversation entry sent to the completion API
type Message struct {
	Role     string
	Content  string
	ImageURL string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client talks to a chat-completion provider. Gemini goes through the
// official SDK; groq/deepseek and other OpenAI-compatible providers go
// through plain HTTP.
type Client struct {
	cfg          *config.Config
	geminiClient *GeminiSDKClient
	httpClient   *http.Client
}

type chatRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
	TopP        float64      `json:"top_p"`
	Stream      bool         `json:"stream"`
}

// apiMessage carries either a plain string or multimodal content parts
type apiMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type choice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func NewClient(cfg *config.Config) *Client {
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.LLMTimeout},
	}

	if cfg.HasLLMConfig() && strings.ToLower(cfg.LLMProvider) == "gemini" {
		if geminiClient, err := NewGeminiSDKClient(cfg); err == nil {
			client.geminiClient = geminiClient
		}
		// If the SDK client cannot be created (e.g. bad key format) we fall
		// back to HTTP-based calls below.
	}

	return client
}

// Complete sends the conversation context to the provider and returns the
// assistant reply. imageData, when non-nil, is attached to the last user
// message for multimodal models.
func (c *Client) Complete(ctx context.Context, messages []Message, imageData []byte) (string, *Usage, error) {
	if !c.cfg.HasLLMConfig() {
		return "", nil, fmt.Errorf("LLM is not configured")
	}

	if c.geminiClient != nil {
		return c.geminiClient.Complete(ctx, messages, imageData)
	}

	reqBody := chatRequest{
		Model:       c.cfg.LLMModel,
		Messages:    buildAPIMessages(messages, imageData),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        topP,
		Stream:      false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.LLMEndpoint+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.LLMToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to send request to %s: %w", req.URL.String(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("LLM API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", nil, fmt.Errorf("no choices in LLM response")
	}

	return chatResp.Choices[0].Message.Content, chatResp.Usage, nil
}

// buildAPIMessages converts the conversation window to the wire format.
// Fresh image bytes go onto the last user message; historical image
// references stay as URLs.
func buildAPIMessages(messages []Message, imageData []byte) []apiMessage {
	lastUser := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == consts.RoleUser {
			lastUser = i
			break
		}
	}

	out := make([]apiMessage, 0, len(messages))
	for i, m := range messages {
		switch {
		case i == lastUser && imageData != nil:
			dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData)
			out = append(out, apiMessage{Role: m.Role, Content: []contentPart{
				{Type: "text", Text: m.Content},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			}})
		case m.ImageURL != "":
			out = append(out, apiMessage{Role: m.Role, Content: []contentPart{
				{Type: "text", Text: m.Content},
				{Type: "image_url", ImageURL: &imageURL{URL: m.ImageURL}},
			}})
		default:
			out = append(out, apiMessage{Role: m.Role, Content: m.Content})
		}
	}

	return out
}

// Close cleans up the client resources
func (c *Client) Close() error {
	if c.geminiClient != nil {
		return c.geminiClient.Close()
	}
	return nil
}

// SupportsMultimodal returns true if the configured provider accepts images
func (c *Client) SupportsMultimodal() bool {
	return c.geminiClient != nil || strings.Contains(strings.ToLower(c.cfg.LLMModel), "vision")
}
