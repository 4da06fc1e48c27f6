package tokenizer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/agentswarm/types"
)

// Tokenizer counts tokens for budget decisions.
type Tokenizer interface {
	// CountTokens returns the token count of text.
	CountTokens(text string) (int, error)

	// CountMessages returns the total for a conversation, including the
	// per-message overhead of role markers and separators.
	CountMessages(messages []types.Message) (int, error)

	// MaxTokens returns the model's context window.
	MaxTokens() int

	// Name identifies the tokenizer.
	Name() string
}

var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// RegisterTokenizer registers t for model and every model name it prefixes.
func RegisterTokenizer(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// GetTokenizer returns the tokenizer registered for model, falling back to
// the longest registered prefix ("gemini-2.5" matches "gemini-2.5-flash-lite").
func GetTokenizer(model string) (Tokenizer, error) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}

	prefixes := make([]string, 0, len(modelTokenizers))
	for prefix := range modelTokenizers {
		if strings.HasPrefix(model, prefix) {
			prefixes = append(prefixes, prefix)
		}
	}
	if len(prefixes) > 0 {
		sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
		return modelTokenizers[prefixes[0]], nil
	}

	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// GetTokenizerOrEstimator returns the registered tokenizer for model or a
// character-count estimator.
func GetTokenizerOrEstimator(model string) Tokenizer {
	t, err := GetTokenizer(model)
	if err != nil {
		return NewEstimatorTokenizer(model, 0)
	}
	return t
}
