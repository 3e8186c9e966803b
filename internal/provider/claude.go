// Package provider implements the external answer-provider boundary on top
// of the Claude API. The engine never depends on this package directly;
// it only sees the capture.Provider interface.
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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/formpilot/formpilot/internal/capture"
	"github.com/formpilot/formpilot/internal/observability"
	"github.com/formpilot/formpilot/internal/resilience"
	"github.com/formpilot/formpilot/internal/schema"
)

// Config for the Claude-backed answer provider.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Timeout      time.Duration
	RateLimitRPM int
	MaxRetries   int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.anthropic.com",
		Model:        "claude-sonnet-4-20250514",
		MaxTokens:    4096,
		Timeout:      120 * time.Second,
		RateLimitRPM: 50,
		MaxRetries:   3,
	}
}

// Client is a rate-limited Claude API client implementing capture.Provider.
// A circuit breaker guards the API: after repeated failures it rejects
// requests immediately instead of waiting out timeouts.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewClient creates a provider client.
func NewClient(cfg Config, logger *zap.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = def.RateLimitRPM
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 1),
		logger:     logger,
		metrics:    metrics,
	}
	c.breaker = resilience.New(resilience.Config{
		Name:             "claude",
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			c.logger.Warn("provider circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c, nil
}

const answersSystemPrompt = `You fill out web forms. Given the visible text of a page and a list of its input controls, produce plausible answers for every control you can.

Return ONLY a JSON object of the shape {"fields": {<id>: <string>}, "choices": {<id>: <string or array of strings>}}. Use each input's "id" as the key. For "radio" inputs pick exactly one option label; for "checkbox" inputs return an array of option labels. Skip inputs you cannot answer.`

const choicesSystemPrompt = `You answer multiple-choice questions found on a web page. For each group, pick the best option label (one for radio groups, an array for checkbox groups).

Return ONLY a JSON object mapping each group's "id" to its answer.`

const fieldSystemPrompt = `You fill out a single text field on a web form. Reply with the field value only: no quotes, no markdown, no explanation.`

// RequestAnswers resolves a full set of discovered inputs.
func (c *Client) RequestAnswers(ctx context.Context, req capture.AnswerRequest) (*capture.AnswerResponse, error) {
	inputs, err := json.Marshal(req.Inputs)
	if err != nil {
		return nil, fmt.Errorf("encoding inputs: %w", err)
	}
	user := fmt.Sprintf("Page text:\n%s\n\nInputs:\n%s", req.PageText, inputs)

	var answers struct {
		Fields  map[string]json.RawMessage `json:"fields"`
		Choices map[string]json.RawMessage `json:"choices"`
	}
	if err := c.completeJSON(ctx, "answers", answersSystemPrompt, user, &answers); err != nil {
		return &capture.AnswerResponse{OK: false, Error: err.Error()}, err
	}

	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("encoding answers: %w", err)
	}
	return &capture.AnswerResponse{OK: true, Answers: raw}, nil
}

// RequestChoices resolves choice groups only.
func (c *Client) RequestChoices(ctx context.Context, req capture.ChoiceRequest) (*capture.ChoiceResponse, error) {
	groups, err := json.Marshal(req.Groups)
	if err != nil {
		return nil, fmt.Errorf("encoding groups: %w", err)
	}
	user := fmt.Sprintf("Groups:\n%s", groups)
	if req.SelectionText != "" {
		user = fmt.Sprintf("Selected text:\n%s\n\n%s", req.SelectionText, user)
	}

	choices := make(map[string]json.RawMessage)
	if err := c.completeJSON(ctx, "choices", choicesSystemPrompt, user, &choices); err != nil {
		return nil, err
	}
	return &capture.ChoiceResponse{Choices: choices}, nil
}

// RequestFieldAnswer resolves a single focused text field.
func (c *Client) RequestFieldAnswer(ctx context.Context, field schema.Field) (string, error) {
	desc, err := json.Marshal(field)
	if err != nil {
		return "", fmt.Errorf("encoding field: %w", err)
	}
	text, err := c.complete(ctx, "field", fieldSystemPrompt, string(desc))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// completeJSON sends a completion request and parses the JSON it returns,
// retrying on transport errors and malformed replies.
func (c *Client) completeJSON(ctx context.Context, kind, system, user string, result any) error {
	system += "\n\nIMPORTANT: Return ONLY valid JSON. No markdown, no code blocks, no explanations."

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		text, err := c.complete(ctx, kind, system, user)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
			continue
		}
		jsonStr := extractJSON(text)
		if jsonStr == "" {
			lastErr = fmt.Errorf("no JSON found in response")
			continue
		}
		if err := json.Unmarshal([]byte(jsonStr), result); err != nil {
			lastErr = fmt.Errorf("invalid JSON: %w", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// apiRequest is a Claude messages API request.
type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) complete(ctx context.Context, kind, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	body, err := json.Marshal(apiRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    system,
		Messages:  []apiMessage{{Role: "user", Content: user}},
		// Lower temperature for more deterministic output.
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	var respBody []byte
	err = c.breaker.Do(func() error {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return nil
	})
	if c.metrics != nil {
		c.metrics.RecordProviderDuration(kind, time.Since(start))
	}
	if err != nil {
		return "", err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return apiResp.Content[0].Text, nil
}

// extractJSON pulls a JSON object or array out of a reply that may wrap it
// in markdown or prose.
func extractJSON(text string) string {
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}

	text = strings.TrimSpace(text)
	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")

	start := -1
	openBracket, closeBracket := byte('{'), byte('}')
	if startObj >= 0 && (startArr < 0 || startObj < startArr) {
		start = startObj
	} else if startArr >= 0 {
		start = startArr
		openBracket, closeBracket = '[', ']'
	}
	if start < 0 {
		return ""
	}

	text = text[start:]
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case openBracket:
			depth++
		case closeBracket:
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}
