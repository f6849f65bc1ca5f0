// Package openai provides the reasoning client for any OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"
	"time"

	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/conversation"
	"github.com/gridsage/gridsage/internal/port/reasoner"
	"github.com/gridsage/gridsage/internal/port/toolcall"
)

//go:embed templates/system.tmpl
var systemTmplText string

// systemTmpl is the parsed system prompt template.
var systemTmpl = template.Must(template.New("system").Parse(systemTmplText))

// promptData carries the tool inventory into the system prompt template.
type promptData struct {
	Tools []promptTool
}

type promptTool struct {
	Name        string
	Description string
}

// Client calls an OpenAI-compatible /chat/completions endpoint. It performs
// exactly one request per Reason call; retry policy lives with the caller.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a reasoning client from configuration.
func NewClient(cfg config.Reasoner) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ reasoner.Reasoner = (*Client)(nil)

// chatMessage is one message on the chat completions wire.
type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded argument object
}

type wireTool struct {
	Type     string             `json:"type"`
	Function wireToolDefinition `json:"function"`
}

type wireToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Reason sends the conversation and tool schemas to the reasoning service
// and returns either a final answer or an ordered set of tool requests.
func (c *Client) Reason(ctx context.Context, turns []conversation.Turn, specs []toolcall.Spec) (reasoner.Outcome, error) {
	system, err := buildSystemPrompt(specs)
	if err != nil {
		return reasoner.Outcome{}, fmt.Errorf("build system prompt: %w", err)
	}

	messages := make([]chatMessage, 0, len(turns)+1)
	messages = append(messages, chatMessage{Role: "system", Content: system})
	for _, t := range turns {
		m, err := toWireMessage(t)
		if err != nil {
			return reasoner.Outcome{}, err
		}
		messages = append(messages, m)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       toWireTools(specs),
		Temperature: c.temperature,
	})
	if err != nil {
		return reasoner.Outcome{}, fmt.Errorf("marshal chat request: %w", err)
	}

	data, err := c.doRequest(ctx, body)
	if err != nil {
		return reasoner.Outcome{}, err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return reasoner.Outcome{}, fmt.Errorf("%w: unmarshal chat response: %w", domain.ErrReasoningUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return reasoner.Outcome{}, fmt.Errorf("%w: response carried no choices", domain.ErrReasoningUnavailable)
	}

	return toOutcome(resp.Choices[0].Message)
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrReasoningUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrReasoningUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: reasoning API error %d: %s",
			domain.ErrReasoningUnavailable, resp.StatusCode, string(data))
	}
	return data, nil
}

// toWireMessage converts a conversation turn to its wire form.
func toWireMessage(t conversation.Turn) (chatMessage, error) {
	m := chatMessage{Role: t.Role, Content: t.Content}
	if t.Role == conversation.RoleTool {
		m.ToolCallID = t.ToolCallID
		return m, nil
	}
	for _, tc := range t.ToolCalls {
		args, err := json.Marshal(tc.Arguments)
		if err != nil {
			return chatMessage{}, fmt.Errorf("marshal tool call arguments: %w", err)
		}
		m.ToolCalls = append(m.ToolCalls, wireToolCall{
			ID:   tc.CallID,
			Type: "function",
			Function: wireFunction{
				Name:      tc.Name,
				Arguments: string(args),
			},
		})
	}
	return m, nil
}

// toWireTools converts registry specs to OpenAI function definitions.
func toWireTools(specs []toolcall.Spec) []wireTool {
	tools := make([]wireTool, 0, len(specs))
	for _, s := range specs {
		properties := make(map[string]any, len(s.Args))
		required := make([]string, 0, len(s.Args))
		for _, a := range s.Args {
			properties[a.Name] = map[string]any{
				"type":        string(a.Type),
				"description": a.Description,
			}
			if a.Required {
				required = append(required, a.Name)
			}
		}
		tools = append(tools, wireTool{
			Type: "function",
			Function: wireToolDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return tools
}

// toOutcome maps the assistant message to a reasoning outcome: tool calls
// when present, final text otherwise, never both.
func toOutcome(m chatMessage) (reasoner.Outcome, error) {
	if len(m.ToolCalls) > 0 {
		requests := make([]conversation.ToolRequest, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			var args map[string]any
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					return reasoner.Outcome{}, fmt.Errorf("%w: malformed tool call arguments: %w",
						domain.ErrReasoningUnavailable, err)
				}
			}
			requests = append(requests, conversation.ToolRequest{
				CallID:    tc.ID,
				Name:      tc.Function.Name,
				Arguments: args,
			})
		}
		return reasoner.Outcome{ToolRequests: requests}, nil
	}
	if m.Content == "" {
		return reasoner.Outcome{}, fmt.Errorf("%w: empty assistant message", domain.ErrReasoningUnavailable)
	}
	return reasoner.Outcome{FinalText: m.Content}, nil
}

func buildSystemPrompt(specs []toolcall.Spec) (string, error) {
	data := promptData{Tools: make([]promptTool, 0, len(specs))}
	for _, s := range specs {
		data.Tools = append(data.Tools, promptTool{Name: s.Name, Description: s.Description})
	}
	var buf bytes.Buffer
	if err := systemTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
