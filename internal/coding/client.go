package coding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the OpenRouter-compatible chat API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// ErrMissingAPIKey is returned before any request when no key is set.
var ErrMissingAPIKey = errors.New("TABLOOM_API_KEY is missing")

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ClientOptions configures the chat client. Zero values take defaults.
type ClientOptions struct {
	APIKey           string
	BaseURL          string
	Model            string
	HTTPTimeout      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// Client codes answers through a chat completion endpoint.
type Client struct {
	httpClient *http.Client
	opt        ClientOptions
}

func NewClient(opt ClientOptions) *Client {
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultBaseURL
	}
	if opt.HTTPTimeout <= 0 {
		opt.HTTPTimeout = 60 * time.Second
	}
	if opt.RetryMaxAttempts <= 0 {
		opt.RetryMaxAttempts = 3
	}
	if opt.RetryBaseDelay <= 0 {
		opt.RetryBaseDelay = 500 * time.Millisecond
	}
	if opt.RetryMaxDelay <= 0 {
		opt.RetryMaxDelay = 4 * time.Second
	}
	opt.BaseURL = strings.TrimRight(opt.BaseURL, "/")
	return &Client{httpClient: &http.Client{Timeout: opt.HTTPTimeout}, opt: opt}
}

// Chat sends messages and returns the first choice's content. 429 and 5xx
// responses and network timeouts are retried with jittered exponential
// backoff; a Retry-After header overrides the backoff.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.opt.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if c.opt.Model == "" {
		return "", errors.New("model cannot be empty")
	}
	payload, err := json.Marshal(chatRequest{Model: c.opt.Model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	backoff := c.opt.RetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.opt.RetryMaxAttempts; attempt++ {
		out, wait, err := c.do(ctx, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if wait < 0 || attempt == c.opt.RetryMaxAttempts {
			break
		}
		if wait == 0 {
			wait = withJitter(backoff)
			if wait > c.opt.RetryMaxDelay {
				wait = c.opt.RetryMaxDelay
			}
			backoff *= 2
		}
		if err := sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// do performs one attempt. A negative wait means the error is final; zero
// means retry with backoff.
func (c *Client) do(ctx context.Context, payload []byte) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opt.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", -1, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opt.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/tabloom-cli")
	req.Header.Set("X-Title", "Tabloom CLI")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", -1, ctx.Err()
		}
		if isRetryableNetErr(err) {
			return "", 0, fmt.Errorf("http request: %w", err)
		}
		return "", -1, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		typed := classify(readAPIError(resp), ra)
		if retryable(resp.StatusCode) {
			return "", ra, typed
		}
		return "", -1, typed
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", -1, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", -1, errors.New("response has no choices")
	}
	return out.Choices[0].Message.Content, 0, nil
}

// Code asks the model to assign codebook codes to every answer of job.
func (c *Client) Code(ctx context.Context, job Job) (map[int][]string, error) {
	content, err := c.Chat(ctx, job.Messages())
	if err != nil {
		return nil, err
	}
	return ParseAssignments(content, len(job.Answers))
}

// ParseAssignments reads {"assignments": [{"answer": n, "codes": [...]}]}
// from a model reply, ignoring any text around the JSON object. Answer
// numbers are 1-based; out-of-range entries are dropped.
func ParseAssignments(content string, answers int) (map[int][]string, error) {
	start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, errors.New("reply has no JSON object")
	}
	doc := content[start : end+1]
	if !gjson.Valid(doc) {
		return nil, errors.New("reply JSON is malformed")
	}
	out := map[int][]string{}
	gjson.Get(doc, "assignments").ForEach(func(_, a gjson.Result) bool {
		n := int(a.Get("answer").Int())
		if n < 1 || n > answers {
			return true
		}
		a.Get("codes").ForEach(func(_, code gjson.Result) bool {
			if s := strings.TrimSpace(code.String()); s != "" {
				out[n-1] = append(out[n-1], s)
			}
			return true
		})
		return true
	})
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds reads a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter applies +/- 20% jitter.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
