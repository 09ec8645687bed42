package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"omniterm/config"
	"omniterm/model"
)

// GeminiProvider speaks the generateContent wire protocol. The credential
// rides in the URL query, not a header.
type GeminiProvider struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewGeminiProvider creates a generateContent adapter. A trailing slash on
// the endpoint is tolerated and stripped.
func NewGeminiProvider(endpoint, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini providers")
	}
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	return &GeminiProvider{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    modelName,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// splitDataURI splits a "data:<mime>;base64,<payload>" URI into its MIME
// type and base64 payload.
func splitDataURI(uri string) (mime, data string, ok bool) {
	head, payload, found := strings.Cut(uri, ",")
	if !found || payload == "" {
		return "", "", false
	}
	head = strings.TrimPrefix(head, "data:")
	mime, _, _ = strings.Cut(head, ";")
	if mime == "" {
		return "", "", false
	}
	return mime, payload, true
}

func (p *GeminiProvider) Generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	var wire geminiRequest
	if len(req.Messages) == 0 {
		// System-prompt only call. The protocol rejects empty contents,
		// so the framing is sent as a single user turn instead of a
		// systemInstruction.
		wire.Contents = []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.System}}},
		}
	} else {
		if req.System != "" {
			wire.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
		}
		for _, m := range req.Messages {
			text := m.Content
			if text == "" {
				// Empty text parts are rejected upstream.
				text = " "
			}
			parts := []geminiPart{{Text: text}}
			if m.Image != "" {
				if mime, data, ok := splitDataURI(m.Image); ok {
					parts = append(parts, geminiPart{
						InlineData: &geminiInlineData{MIMEType: mime, Data: data},
					})
				}
			}
			role := "model"
			if m.Role == model.RoleUser {
				role = "user"
			}
			wire.Contents = append(wire.Contents, geminiContent{Role: role, Parts: parts})
		}
		wire.GenerationConfig = &geminiGenerationConfig{Temperature: 0.7, MaxOutputTokens: 2000}
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s:generateContent?key=%s",
		p.endpoint, p.model, url.QueryEscape(p.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &model.GenerationError{
			Kind:    model.ErrMalformedResponse,
			Message: fmt.Sprintf("Invalid Response: %s", excerpt(body)),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("Gemini Error %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &model.GenerationError{Kind: model.ErrProviderError, Message: msg}
	}

	if len(parsed.Candidates) == 0 ||
		len(parsed.Candidates[0].Content.Parts) == 0 ||
		parsed.Candidates[0].Content.Parts[0].Text == "" {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[gemini] empty candidate for model %s, substituting filler", p.model)
		}
		return req.Filler, nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
