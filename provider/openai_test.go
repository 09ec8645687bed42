package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"omniterm/model"
)

func newOpenAITestProvider(t *testing.T, handler http.HandlerFunc) (*OpenAIProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewOpenAIProvider(srv.URL, "test-key", "test-model")
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}
	return p, srv
}

func TestOpenAIRequestShape(t *testing.T) {
	var got openAIRequest
	var auth string
	p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	req := model.GenerationRequest{
		System: "framing",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "look", Image: "data:image/png;base64,AAAA"},
			{Role: model.RoleAssistant, Content: "nice"},
			{Role: model.RoleUser, Content: "thanks"},
		},
	}
	if _, err := p.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if auth != "Bearer test-key" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Model != "test-model" || got.Temperature != 0.7 {
		t.Errorf("model/temperature = %s/%v", got.Model, got.Temperature)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("message count = %d, want 4", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "framing" {
		t.Errorf("first message = %+v, want system framing", got.Messages[0])
	}
	if got.Messages[1].Content != "[Image Uploaded] look" {
		t.Errorf("image message = %q, want in-band marker prefix", got.Messages[1].Content)
	}
}

func TestOpenAISystemOnlyCall(t *testing.T) {
	var got openAIRequest
	p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"hi chat"}}]}`))
	})

	text, err := p.Generate(context.Background(), model.GenerationRequest{System: "host prompt"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "hi chat" {
		t.Errorf("text = %q", text)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v, want single system message", got.Messages)
	}
}

func TestOpenAIErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind model.ErrorKind
		wantMsg  string
	}{
		{
			name:     "html body carries truncated excerpt",
			status:   200,
			body:     "<html><head><title>Sign in required</title></head><body>login page</body></html>",
			wantKind: model.ErrEndpointMisconfigured,
			wantMsg:  "Endpoint returned HTML. Check URL. Got: <html><head><title>Sign in required</title></head>",
		},
		{
			name:     "invalid json",
			status:   200,
			body:     "not json at all, definitely not, absolutely not json whatsoever here",
			wantKind: model.ErrMalformedResponse,
			wantMsg:  "Invalid Response: not json at all, definitely not, absolutely not js",
		},
		{
			name:     "provider error with message",
			status:   401,
			body:     `{"error":{"message":"Incorrect API key provided"}}`,
			wantKind: model.ErrProviderError,
			wantMsg:  "Incorrect API key provided",
		},
		{
			name:     "provider error without message",
			status:   500,
			body:     `{}`,
			wantKind: model.ErrProviderError,
			wantMsg:  "API Error 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := p.Generate(context.Background(), model.GenerationRequest{System: "s"})
			var genErr *model.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("error = %v, want GenerationError", err)
			}
			if genErr.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", genErr.Kind, tt.wantKind)
			}
			if genErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", genErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestOpenAIEmptyCompletionIsSoftSuccess(t *testing.T) {
	p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	text, err := p.Generate(context.Background(), model.GenerationRequest{
		System: "s",
		Filler: "(signal lost...)",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "(signal lost...)" {
		t.Errorf("text = %q, want filler", text)
	}
}

func TestOpenAINetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	p, err := NewOpenAIProvider(srv.URL, "k", "m")
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}
	_, err = p.Generate(context.Background(), model.GenerationRequest{System: "s"})
	var genErr *model.GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != model.ErrNetwork {
		t.Fatalf("error = %v, want network GenerationError", err)
	}
}

func TestNewOpenAIProviderValidation(t *testing.T) {
	if _, err := NewOpenAIProvider("http://x", "", "m"); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewOpenAIProvider("http://x", "k", ""); err == nil {
		t.Error("expected error for missing model")
	}

	p, err := NewOpenAIProvider("http://x/v1/", "k", "m")
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}
	if strings.HasSuffix(p.endpoint, "/") {
		t.Errorf("endpoint = %q, trailing slash not stripped", p.endpoint)
	}
}
