package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/smallbiznis/oceandata/internal/assistant/domain"
	"github.com/smallbiznis/oceandata/internal/config"
)

const (
	apiKeyHeader    = "x-goog-api-key"
	maxErrorBody    = 512
	requestTimeout  = 60 * time.Second
	defaultModel    = "gemini-2.5-flash"
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
)

// Client calls the generateContent endpoint. 5xx and 429 answers are retried.
type Client struct {
	http     *retryablehttp.Client
	endpoint string
	model    string
	apiKey   string
	log      *zap.Logger
}

// New returns a disabled completer when no API key is configured.
func New(cfg config.Config, log *zap.Logger) domain.Completer {
	if !cfg.Gemini.Enabled() {
		log.Named("assistant.gemini").Warn("GEMINI_API_KEY not set, assistant endpoints disabled")
		return Disabled{}
	}
	return NewClient(cfg.Gemini, log)
}

func NewClient(cfg config.GeminiConfig, log *zap.Logger) *Client {
	named := log.Named("assistant.gemini")

	hc := retryablehttp.NewClient()
	hc.RetryMax = cfg.MaxRetries
	if hc.RetryMax < 0 {
		hc.RetryMax = 0
	}
	hc.RetryWaitMin = 200 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = requestTimeout
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	hc.Logger = leveledLogger{s: named.Sugar()}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Client{
		http:     hc,
		endpoint: endpoint,
		model:    model,
		apiKey:   cfg.APIKey,
		log:      named,
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	parts := []part{{Text: prompt.Text}}
	if prompt.Image != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: prompt.Image.MimeType,
			Data:     base64.StdEncoding.EncodeToString(prompt.Image.Data),
		}})
	}

	payload := generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
	if system := strings.TrimSpace(prompt.System); system != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("generateContent failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(snippet))),
		)
		return "", fmt.Errorf("%w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}

	text := firstText(decoded)
	if text == "" {
		return "", domain.ErrEmptyResponse
	}
	return text, nil
}

func firstText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// Disabled answers every prompt with ErrNotConfigured.
type Disabled struct{}

func (Disabled) Complete(context.Context, domain.Prompt) (string, error) {
	return "", domain.ErrNotConfigured
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{}) { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }

var (
	_ domain.Completer            = (*Client)(nil)
	_ domain.Completer            = Disabled{}
	_ retryablehttp.LeveledLogger = leveledLogger{}
)
