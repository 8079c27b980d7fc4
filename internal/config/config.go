package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const defaultASCII = `
  /\___/\
 (  o o  )
 (  =^=  )
  (____)
`

type Config struct {
	CommandHistoryLimit int    `yaml:"command_history_limit"`
	PetName             string `yaml:"pet_name"`
	PetASCII            string `yaml:"pet_ascii"`
	LLMProvider         string `yaml:"llm_provider"` // "openai" (default) or "ollama"
	OllamaURL           string `yaml:"ollama_url"`
	OllamaModel         string `yaml:"ollama_model"`
	OpenAIURL           string `yaml:"openai_url"`
	OpenAIModel         string `yaml:"openai_model"`
	RequestTimeout      int    `yaml:"request_timeout"` // HTTP timeout in seconds, default 60
	RenderMarkdown      *bool  `yaml:"render_markdown"`
}

// Error reports a config file that could not be used. Defaults were
// substituted and written back when it is returned.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Default() *Config {
	md := true
	return &Config{
		CommandHistoryLimit: 50,
		PetName:             "Whiskers",
		PetASCII:            defaultASCII,
		LLMProvider:         ProviderOpenAI,
		OllamaURL:           "http://localhost:11434",
		OllamaModel:         "llama2",
		OpenAIURL:           "https://api.openai.com/v1",
		OpenAIModel:         "gpt-3.5-turbo",
		RequestTimeout:      60,
		RenderMarkdown:      &md,
	}
}

var homeOverride string

// SetDir points Dir at an explicit directory. An empty string restores the default lookup.
func SetDir(dir string) {
	homeOverride = dir
}

// Dir is the application namespace: every file the program owns lives here.
func Dir() string {
	if homeOverride != "" {
		return homeOverride
	}
	if d := os.Getenv("PETCLI_HOME"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "petcli")
}

func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads config.yaml. A missing or unreadable file is replaced with the
// defaults on disk; in that case the returned config is usable and the error
// (if any) is a *Error meant for logging.
func Load() (*Config, error) {
	path := Path()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if werr := Write(cfg); werr != nil {
			return cfg, &Error{Path: path, Err: werr}
		}
		return cfg, nil
	}
	if err != nil {
		return recoverDefaults(path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return recoverDefaults(path, fmt.Errorf("parse config: %w", err))
	}
	cfg.expandEnv()
	if err := cfg.Validate(); err != nil {
		return recoverDefaults(path, err)
	}
	cfg.fill()
	return cfg, nil
}

// expandEnv resolves $VAR references in the string settings. pet_ascii is
// left alone since art often contains '$'.
func (c *Config) expandEnv() {
	for _, f := range []*string{&c.PetName, &c.LLMProvider, &c.OllamaURL, &c.OllamaModel, &c.OpenAIURL, &c.OpenAIModel} {
		*f = os.ExpandEnv(*f)
	}
}

func recoverDefaults(path string, cause error) (*Config, error) {
	cfg := Default()
	if werr := Write(cfg); werr != nil {
		cause = errors.Join(cause, werr)
	}
	return cfg, &Error{Path: path, Err: cause}
}

// fill restores defaults for keys a partial file left empty.
func (c *Config) fill() {
	d := Default()
	if c.CommandHistoryLimit <= 0 {
		c.CommandHistoryLimit = d.CommandHistoryLimit
	}
	if c.PetName == "" {
		c.PetName = d.PetName
	}
	if c.PetASCII == "" {
		c.PetASCII = d.PetASCII
	}
	if c.LLMProvider == "" {
		c.LLMProvider = d.LLMProvider
	}
	if c.OllamaURL == "" {
		c.OllamaURL = d.OllamaURL
	}
	if c.OllamaModel == "" {
		c.OllamaModel = d.OllamaModel
	}
	if c.OpenAIURL == "" {
		c.OpenAIURL = d.OpenAIURL
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = d.OpenAIModel
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.RenderMarkdown == nil {
		c.RenderMarkdown = d.RenderMarkdown
	}
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "", ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown llm_provider %q (expected %s or %s)", c.LLMProvider, ProviderOpenAI, ProviderOllama)
	}
	if c.CommandHistoryLimit < 0 {
		return fmt.Errorf("command_history_limit must be >= 0")
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) Markdown() bool {
	return c.RenderMarkdown == nil || *c.RenderMarkdown
}

// Write stores cfg as config.yaml, creating the directory if needed.
func Write(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(), data, 0644)
}
