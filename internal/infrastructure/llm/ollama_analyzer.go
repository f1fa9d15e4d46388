package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/you/bokohub/domain"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "deepseek-r1:14b"
)

const promptTemplate = `*** BEGIN CODE ***
%s
*** END CODE ***

You are a specialized code security analyzer that ONLY outputs JSON arrays of vulnerabilities.
Analyze the code above and return the vulnerabilities you find.

Return ONLY a JSON array in exactly this format, with no other text, markdown or explanation:
[
  {
    "severity": "high|medium|low",
    "description": "Detailed description of the vulnerability",
    "line": line_number
  }
]

If there are no vulnerabilities, return [].`

// OllamaAnalyzer asks an Ollama model to review code
type OllamaAnalyzer struct {
	client *api.Client
	base   *url.URL
	model  string
}

// NewOllamaAnalyzer creates an analyzer; empty values fall back to a local
// server and the default model
func NewOllamaAnalyzer(baseURL, model string, timeout time.Duration) (*OllamaAnalyzer, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama: invalid base url %q", baseURL)
	}
	return &OllamaAnalyzer{
		client: api.NewClient(base, &http.Client{Timeout: timeout}),
		base:   base,
		model:  model,
	}, nil
}

// Analyze returns the model's raw answer
func (a *OllamaAnalyzer) Analyze(ctx context.Context, code string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    a.model,
		Messages: []api.Message{{Role: "user", Content: fmt.Sprintf(promptTemplate, code)}},
		Stream:   &stream,
	}

	var answer strings.Builder
	err := a.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		answer.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classifyChatError(err)
	}
	return answer.String(), nil
}

// classifyChatError separates a garbled reply from an unreachable or failing model
func classifyChatError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: decode response: %v", domain.ErrAnalyzerOutput, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrAnalyzerUnavailable, err)
}

var _ domain.CodeAnalyzer = (*OllamaAnalyzer)(nil)
