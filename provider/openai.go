package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"omniterm/config"
	"omniterm/model"
)

// OpenAIProvider speaks the OpenAI-compatible chat/completions wire
// protocol against any conforming endpoint. It deliberately uses the raw
// protocol instead of an SDK: the body must be inspected before parsing
// (see errors.go) and the request shape kept under direct control.
type OpenAIProvider struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAIProvider creates an adapter for an OpenAI-compatible endpoint.
// A trailing slash on the endpoint is tolerated and stripped.
func NewOpenAIProvider(endpoint, apiKey, modelName string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI-compatible providers")
	}
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	return &OpenAIProvider{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    modelName,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	wire := openAIRequest{Model: p.model, Temperature: 0.7}
	if len(req.Messages) == 0 {
		// System-prompt only call: the framing goes out as the sole
		// system message.
		wire.Messages = []openAIMessage{{Role: model.RoleSystem, Content: req.System}}
	} else {
		wire.Messages = append(wire.Messages, openAIMessage{Role: model.RoleSystem, Content: req.System})
		for _, m := range req.Messages {
			content := m.Content
			if m.Image != "" {
				// The protocol carries text only; attachments are
				// signalled in-band.
				content = "[Image Uploaded] " + content
			}
			wire.Messages = append(wire.Messages, openAIMessage{Role: m.Role, Content: content})
		}
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &model.GenerationError{Kind: model.ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &model.GenerationError{Kind: model.ErrNetwork, Message: err.Error()}
	}
	body := string(raw)

	if looksLikeHTML(body) {
		return "", &model.GenerationError{
			Kind:    model.ErrEndpointMisconfigured,
			Message: "Endpoint returned HTML. Check URL. Got: " + excerpt(body),
		}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &model.GenerationError{
			Kind:    model.ErrMalformedResponse,
			Message: fmt.Sprintf("Invalid Response: %s", excerpt(body)),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("API Error %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &model.GenerationError{Kind: model.ErrProviderError, Message: msg}
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[openai] empty completion for model %s, substituting filler", p.model)
		}
		return req.Filler, nil
	}
	return parsed.Choices[0].Message.Content, nil
}
