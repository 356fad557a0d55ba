package speech

import (
	"fmt"
	"strings"
)

type Credentials struct {
	DeepgramKey string
	OpenAIKey   string
}

var providerNames = []string{"deepgram", "openai"}

// NewProvider builds the named provider. An empty name or "auto" picks the first
// provider with credentials, preferring streaming.
func NewProvider(name string, creds Credentials) (Provider, error) {
	switch strings.ToLower(name) {
	case "deepgram":
		return NewDeepgram(creds.DeepgramKey), nil
	case "openai":
		return NewOpenAI(creds.OpenAIKey), nil
	case "", "auto":
		if creds.DeepgramKey != "" {
			return NewDeepgram(creds.DeepgramKey), nil
		}
		if creds.OpenAIKey != "" {
			return NewOpenAI(creds.OpenAIKey), nil
		}
		return nil, fmt.Errorf("%w: set DEEPGRAM_API_KEY or OPENAI_API_KEY", ErrNoProvider)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (available: %s)", ErrNoProvider, name, strings.Join(providerNames, ", "))
	}
}
