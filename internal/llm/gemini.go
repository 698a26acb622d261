package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/indiwide/gembot/internal/config"
	"github.com/indiwide/gembot/internal/consts"
	"github.com/indiwide/gembot/internal/logger"
	"google.golang.org/genai"
)

// GeminiSDKClient wraps the official Google Gemini Go SDK
type GeminiSDKClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiSDKClient creates a new Gemini client using the official Google SDK
func NewGeminiSDKClient(cfg *config.Config) (*GeminiSDKClient, error) {
	if cfg == nil || cfg.LLMToken == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.LLMToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiSDKClient{
		client:    client,
		modelName: cfg.LLMModel,
	}, nil
}

// Complete sends the conversation context through the Gemini SDK. The system
// entry becomes the system instruction; the rest map to user/model turns.
func (gc *GeminiSDKClient) Complete(ctx context.Context, messages []Message, imageData []byte) (string, *Usage, error) {
	if gc.client == nil {
		return "", nil, fmt.Errorf("gemini SDK client not initialized")
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		TopP:            genai.Ptr(float32(topP)),
		MaxOutputTokens: maxTokens,
	}

	var contents []*genai.Content
	for i, m := range messages {
		if m.Role == consts.RoleSystem {
			genConfig.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
			continue
		}

		role := genai.RoleUser
		if m.Role == consts.RoleAssistant {
			role = genai.RoleModel
		}

		parts := []*genai.Part{{Text: m.Content}}
		if imageData != nil && i == len(messages)-1 && m.Role == consts.RoleUser {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: imageData}})
		}

		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	resp, err := gc.client.Models.GenerateContent(ctx, gc.modelName, contents, genConfig)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", nil, fmt.Errorf("no candidates in Gemini response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", nil, fmt.Errorf("no content parts in Gemini response")
	}

	var content string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			content += part.Text
		}
	}

	content = strings.TrimSpace(content)

	var usage *Usage
	if resp.UsageMetadata != nil {
		usage = &Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}

		logger.Debug("Gemini SDK token usage extracted", map[string]interface{}{
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
			"total_tokens":      usage.TotalTokens,
		})
	}

	return content, usage, nil
}

// Close cleans up the client resources
func (gc *GeminiSDKClient) Close() error {
	// The genai client has no explicit close in the current SDK
	return nil
}
