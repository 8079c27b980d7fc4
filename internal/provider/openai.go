package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const openAISystemPrompt = "You are a cute virtual pet cat who is also a terminal expert. " +
	"Respond in a playful, cat-like manner using emojis and cat-like expressions, while providing helpful terminal tips. " +
	"If you notice commands that could be improved with pipes, better tools, or more efficient workflows, suggest them in a friendly way. " +
	"Keep responses short, sweet, and educational."

type OpenAI struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
	Debug   DebugFunc

	Context
}

func (o *OpenAI) Name() string { return "openai" }

// FormatPrompt leads with the recent commands when there are any.
func (o *OpenAI) FormatPrompt(input string, commands []string) string {
	if len(commands) == 0 {
		return input
	}
	return fmt.Sprintf("Recent commands I've seen you use:\n%s\n\nUser message: %s", strings.Join(commands, "\n"), input)
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]any{
			{"role": "system", "content": openAISystemPrompt},
			{"role": "user", "content": prompt},
		},
	}
	headers := map[string]string{}
	if o.APIKey != "" {
		headers["Authorization"] = "Bearer " + o.APIKey
	}
	out, err := postJSON(ctx, o.Client, o.Name(), strings.TrimRight(o.BaseURL, "/")+"/chat/completions", headers, body, o.Debug)
	if err != nil {
		return "", err
	}
	if text, ok := textAt(out, "choices", 0, "message", "content"); ok {
		return text, nil
	}
	if o.Debug != nil {
		o.Debug("openai reply without choices[0].message.content")
	}
	return ConfusedReply, nil
}
