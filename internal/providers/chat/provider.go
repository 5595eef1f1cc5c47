package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SystemPrompt is appended to every conversation before relay. The
// audience is a non-technical user of the accounting assistant.
const SystemPrompt = `
The user is not a developer, he doesn't know what is SQL.
Always send text using Markdown. Send short answers, only longer if the user requests it.
Use the user's data, found in the database to answer the user's questions, the data will be returned to you and use this data to create a better answer.
You're a professional accounting assistant, your job is to give the best recommendations and meet the user's needs.
`

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Tools returns the tool list for the client's schema version. Today every
// version gets the single ask_database tool bound to the caller's database
// schema.
func Tools(version, schema string) []Tool {
	switch version {
	default:
		return []Tool{
			{
				Type: "function",
				Function: ToolFunction{
					Name:        "ask_database",
					Description: "Use this function to answer user questions. Input should be a fully formed SQLite query.",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"query": map[string]any{
								"type": "string",
								"description": "SQL query extracting info to answer the user's question. " +
									"SQL should be written using this database schema: " + schema +
									" The query should be returned in plain text, not in JSON.",
							},
						},
						"required": []string{"query"},
					},
				},
			},
		}
	}
}

type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Stream      bool      `json:"stream"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Provider relays chat completions to the upstream model API.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*http.Response, error)
	Model() string
	MaxTokens() int
}

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

func NewHTTP(cfg Config) *HTTPProvider {
	return &HTTPProvider{
		cfg: cfg,
		// No client timeout: streamed completions stay open well past any
		// sane request deadline. Cancellation rides on ctx.
		client: &http.Client{},
	}
}

func (p *HTTPProvider) Model() string  { return p.cfg.Model }
func (p *HTTPProvider) MaxTokens() int { return p.cfg.MaxTokens }

// Complete posts the completion request and returns the raw upstream
// response. The caller owns the body and must close it; for streamed
// requests the body is an SSE stream.
func (p *HTTPProvider) Complete(ctx context.Context, req CompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadError drains an upstream error response into a bounded message and
// closes the body.
func ReadError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("chat: upstream status %d: %s", resp.StatusCode, string(body))
}
