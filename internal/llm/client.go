// Package llm wraps a chat-completion API for album credit research. The
// model is asked for strictly verified facts in a fixed JSON schema; the
// caller merges the result into the catalog under its own fill rules.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pieterkdevilliers/music-db/internal/constants"
)

const creditsSystemPrompt = `You are a music metadata researcher. You are given an album title, artist, and the credits already on file. Respond with verified facts only. If you do not know a fact with confidence, omit it entirely rather than guessing. Respond with a single JSON object and nothing else, using this exact schema:
{
  "producer": "name or null",
  "musicians": [{"name": "...", "instrument": "..."}],
  "personnel": [{"name": "...", "role": "..."}],
  "other_details": [{"value": "...", "type": "..."}]
}
musicians are performers with instruments. personnel are non-performing credits such as engineer, mixer, or cover art. other_details are facts like recording studio or recording date, where "type" names the kind of fact.`

// Config captures the settings required to talk to the completion API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// MusicianFact is a performer credit returned by the model.
type MusicianFact struct {
	Name       string `json:"name"`
	Instrument string `json:"instrument"`
}

// PersonnelFact is a non-performing credit returned by the model.
type PersonnelFact struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// DetailFact is a free-form album fact returned by the model.
type DetailFact struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// CreditFacts is the parsed payload for one album.
type CreditFacts struct {
	Producer     *string         `json:"producer"`
	Musicians    []MusicianFact  `json:"musicians"`
	Personnel    []PersonnelFact `json:"personnel"`
	OtherDetails []DetailFact    `json:"other_details"`
}

// Client issues JSON-only chat completions.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryAttempts int
	retryBase     time.Duration
	sleep         func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetry overrides the retry count and backoff base.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryBase = base
	}
}

// NewClient constructs an LLM client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
		},
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		retryAttempts: constants.DefaultRetryCount,
		retryBase:     constants.DefaultRetryBase,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = constants.DefaultLLMBaseURL
	}
	if c.cfg.Model == "" {
		c.cfg.Model = constants.DefaultLLMModel
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// AlbumCredits asks the model for verified credits for one album. The
// known names already on file are passed so the model can extend rather
// than repeat them.
func (c *Client) AlbumCredits(ctx context.Context, title, artist string, known AlbumContext) (*CreditFacts, error) {
	if !c.Configured() {
		return nil, errors.New("llm: api key required")
	}
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return nil, errors.New("llm: title and artist required")
	}

	content, err := c.completeJSON(ctx, creditsSystemPrompt, known.prompt(title, artist))
	if err != nil {
		return nil, err
	}

	var facts CreditFacts
	if err := DecodeJSON(content, &facts); err != nil {
		return nil, fmt.Errorf("llm: parse credits payload: %w", err)
	}
	return &facts, nil
}

// AlbumContext is the existing catalog state included in the prompt: the
// target album's own credits plus catalog-wide entity names so the model
// reuses existing spellings instead of minting near-duplicate entities.
type AlbumContext struct {
	ReleaseYear *int
	Producer    *string
	Musicians   []string
	Personnel   []string
	Details     []string

	CatalogMusicians []string
	CatalogPeople    []string
	CatalogDetails   []string
}

func (a AlbumContext) prompt(title, artist string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Album: %s\nArtist: %s\n", title, artist)
	if a.ReleaseYear != nil {
		fmt.Fprintf(&b, "Release year: %d\n", *a.ReleaseYear)
	}
	if a.Producer != nil && *a.Producer != "" {
		fmt.Fprintf(&b, "Producer on file: %s\n", *a.Producer)
	}
	if len(a.Musicians) > 0 {
		fmt.Fprintf(&b, "Musicians on file: %s\n", strings.Join(a.Musicians, ", "))
	}
	if len(a.Personnel) > 0 {
		fmt.Fprintf(&b, "Personnel on file: %s\n", strings.Join(a.Personnel, ", "))
	}
	if len(a.Details) > 0 {
		fmt.Fprintf(&b, "Details on file: %s\n", strings.Join(a.Details, ", "))
	}
	if len(a.CatalogMusicians) > 0 {
		fmt.Fprintf(&b, "Known musician names already in the catalog (use the exact spelling if you identify the same person): %s\n",
			strings.Join(a.CatalogMusicians, ", "))
	}
	if len(a.CatalogPeople) > 0 {
		fmt.Fprintf(&b, "Known personnel names already in the catalog (use the exact spelling if you identify the same person): %s\n",
			strings.Join(a.CatalogPeople, ", "))
	}
	if len(a.CatalogDetails) > 0 {
		fmt.Fprintf(&b, "Known detail values already in the catalog (use the exact spelling if you identify the same value): %s\n",
			strings.Join(a.CatalogDetails, ", "))
	}
	b.WriteString("Return the credits JSON for this album.")
	return b.String()
}

func (c *Client) completeJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		content, err := c.sendOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.retryAttempts {
			break
		}
		if err := c.sleep(ctx, c.retryBase*time.Duration(attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) sendOnce(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil && completion.Error.Message != "" {
		return "", fmt.Errorf("llm request: api error: %s", completion.Error.Message)
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", errors.New("llm request: empty completion")
}

// DecodeJSON unmarshals a model response, tolerating markdown code fences
// around the JSON body.
func DecodeJSON(content string, out interface{}) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	return json.Unmarshal([]byte(trimmed), out)
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	// Transport errors are retried; parse and auth errors are not.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
