package agent

import (
	"github.com/BaSui01/agentswarm/llm/tokenizer"
	"github.com/BaSui01/agentswarm/types"
)

// DefaultWindowSize is the message count kept by the default manager.
const DefaultWindowSize = 40

// ConversationManager bounds the history sent to the model.
type ConversationManager interface {
	// Apply returns the messages to keep. It must not modify its input.
	Apply(messages []types.Message) []types.Message
}

// NullManager keeps the full history.
type NullManager struct{}

func (NullManager) Apply(messages []types.Message) []types.Message { return messages }

// SlidingWindowManager keeps the most recent WindowSize messages, then drops
// more from the front while the history exceeds MaxTokens. The window never
// starts with a tool result, whose tool call would be gone.
type SlidingWindowManager struct {
	WindowSize int
	// MaxTokens is an optional token budget; 0 disables it.
	MaxTokens int
	Tokenizer tokenizer.Tokenizer
}

// NewSlidingWindowManager keeps the last size messages.
func NewSlidingWindowManager(size int) *SlidingWindowManager {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &SlidingWindowManager{WindowSize: size}
}

// WithTokenBudget additionally trims to maxTokens as counted for model.
func (m *SlidingWindowManager) WithTokenBudget(model string, maxTokens int) *SlidingWindowManager {
	m.MaxTokens = maxTokens
	m.Tokenizer = tokenizer.GetTokenizerOrEstimator(model)
	return m
}

func (m *SlidingWindowManager) Apply(messages []types.Message) []types.Message {
	start := 0
	if m.WindowSize > 0 && len(messages) > m.WindowSize {
		start = len(messages) - m.WindowSize
	}
	if m.MaxTokens > 0 && m.Tokenizer != nil {
		for start < len(messages)-1 {
			n, err := m.Tokenizer.CountMessages(messages[start:])
			if err != nil || n <= m.MaxTokens {
				break
			}
			start++
		}
	}
	for start > 0 && start < len(messages)-1 && messages[start].Role == types.RoleTool {
		start++
	}
	if start == 0 {
		return messages
	}
	return append([]types.Message(nil), messages[start:]...)
}
