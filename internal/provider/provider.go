package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/petcli/petcli/internal/config"
)

// ConfusedReply is returned when a provider answers with a payload that
// lacks the text field.
const ConfusedReply = "*meows confusedly* Something went wrong with my response..."

const contextSize = 5

// Gateway is one remote generation backend. Generate is a single attempt.
type Gateway interface {
	Name() string
	FormatPrompt(input string, commands []string) string
	Generate(ctx context.Context, prompt string) (string, error)
	AddToHistory(user, response string)
}

// DebugFunc is an optional debug logger that providers can use.
type DebugFunc func(format string, args ...any)

type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindAuth
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	}
	return "unknown"
}

type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int // HTTP status for KindAuth
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s error %d: %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind of a gateway error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return 0
}

// Context is the rolling window of recent exchanges a provider may use to
// build prompts. It is independent of the persisted chat history.
type Context struct {
	exchanges [][2]string
}

func (c *Context) AddToHistory(user, response string) {
	c.exchanges = append(c.exchanges, [2]string{user, response})
	if len(c.exchanges) > contextSize {
		c.exchanges = c.exchanges[len(c.exchanges)-contextSize:]
	}
}

// Recent returns up to n exchanges, newest first.
func (c *Context) Recent(n int) [][2]string {
	var out [][2]string
	for i := len(c.exchanges) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.exchanges[i])
	}
	return out
}

func (c *Context) Len() int { return len(c.exchanges) }

// New builds the gateway selected in cfg. It is chosen once per session.
func New(cfg *config.Config, apiKey string, dbg DebugFunc) (Gateway, error) {
	client := &http.Client{Timeout: cfg.Timeout()}
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return &Ollama{BaseURL: cfg.OllamaURL, Model: cfg.OllamaModel, Client: client, Debug: dbg}, nil
	case config.ProviderOpenAI, "":
		if apiKey == "" {
			return nil, fmt.Errorf("%w: openai needs an API key", config.ErrMissingCredential)
		}
		return &OpenAI{APIKey: apiKey, BaseURL: cfg.OpenAIURL, Model: cfg.OpenAIModel, Client: client, Debug: dbg}, nil
	}
	return nil, fmt.Errorf("unknown provider: %s", cfg.LLMProvider)
}

// postJSON sends body and decodes a JSON object reply. Exactly one request is
// made; failures are classified into *Error kinds.
func postJSON(ctx context.Context, client *http.Client, name, url string, headers map[string]string, body any, dbg DebugFunc) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Provider: name, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Provider: name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if client == nil {
		client = http.DefaultClient
	}

	if dbg != nil {
		dbg("HTTP %s %s (%d bytes)", req.Method, req.URL.String(), len(payload))
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if dbg != nil {
			dbg("HTTP ERROR: %v", err)
		}
		return nil, &Error{Kind: KindNetwork, Provider: name, Err: err}
	}
	defer resp.Body.Close()
	if dbg != nil {
		dbg("HTTP RESPONSE: %d %s in %s", resp.StatusCode, resp.Status, time.Since(start))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Provider: name, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if dbg != nil {
			dbg("API ERROR BODY: %s", string(b))
		}
		return nil, &Error{Kind: KindAuth, Provider: name, Status: resp.StatusCode, Err: errors.New(string(b))}
	}

	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &Error{Kind: KindProtocol, Provider: name, Err: fmt.Errorf("parse response: %w", err)}
	}
	return out, nil
}

// textAt walks a decoded JSON value by object keys and array indexes.
func textAt(v any, path ...any) (string, bool) {
	for _, p := range path {
		switch key := p.(type) {
		case string:
			m, ok := v.(map[string]any)
			if !ok {
				return "", false
			}
			v = m[key]
		case int:
			arr, ok := v.([]any)
			if !ok || key >= len(arr) {
				return "", false
			}
			v = arr[key]
		}
	}
	s, ok := v.(string)
	return s, ok
}
