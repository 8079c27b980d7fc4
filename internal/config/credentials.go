package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ErrMissingCredential is fatal: the session cannot start without it.
var ErrMissingCredential = errors.New("missing credential")

const OpenAIKeyEnv = "OPENAI_API_KEY"

// LoadEnv reads .env from the working directory and then from Dir().
// Variables already present in the environment win; missing files are ignored.
func LoadEnv() {
	for _, p := range []string{".env", filepath.Join(Dir(), ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// ResolveCredential returns the API key the selected provider needs.
// Providers that need none return "".
func ResolveCredential(provider string) (string, error) {
	switch provider {
	case ProviderOllama:
		return "", nil
	default:
		key := os.Getenv(OpenAIKeyEnv)
		if key == "" {
			return "", fmt.Errorf("%w: %s not found in environment", ErrMissingCredential, OpenAIKeyEnv)
		}
		return key, nil
	}
}
