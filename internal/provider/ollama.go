package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const ollamaSystemPrompt = "You are a knowledgeable terminal companion with a friendly personality. " +
	"As an expert in shell commands and workflows, your primary focus is providing practical, intelligent suggestions for improving terminal usage. " +
	"When analyzing command history, suggest more efficient command combinations, modern alternatives to traditional tools, helpful aliases and better workflows. " +
	"Keep responses concise and focused on technical value, while maintaining a light, approachable tone. " +
	"You can occasionally use cat-themed expressions or emojis when appropriate."

const promptExchanges = 3

// Ollama talks to a local Ollama server over /api/generate.
type Ollama struct {
	BaseURL string
	Model   string
	Client  *http.Client
	Debug   DebugFunc

	Context
}

func (o *Ollama) Name() string { return "ollama" }

// FormatPrompt replays the newest exchanges (newest first), then the recent
// commands, and ends with the current message.
func (o *Ollama) FormatPrompt(input string, commands []string) string {
	var sb strings.Builder
	for _, ex := range o.Recent(promptExchanges) {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n\n", ex[0], ex[1])
	}
	if len(commands) > 0 {
		fmt.Fprintf(&sb, "Recent commands:\n%s\n\n", strings.Join(commands, "\n"))
	}
	sb.WriteString("Current user message: " + input)
	return sb.String()
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":  o.Model,
		"prompt": ollamaSystemPrompt + "\n" + prompt,
		"stream": false,
	}
	out, err := postJSON(ctx, o.Client, o.Name(), strings.TrimRight(o.BaseURL, "/")+"/api/generate", nil, body, o.Debug)
	if err != nil {
		return "", err
	}
	if text, ok := textAt(out, "response"); ok {
		return text, nil
	}
	if o.Debug != nil {
		o.Debug("ollama reply without response field")
	}
	return ConfusedReply, nil
}
