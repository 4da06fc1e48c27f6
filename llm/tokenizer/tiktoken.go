package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/agentswarm/types"
	"github.com/pkoukk/tiktoken-go"
)

const (
	perMessageOverhead   = 4
	conversationOverhead = 3
	defaultEncoding      = "cl100k_base"
	defaultContextWindow = 32768
)

// Gemini does not publish a local tokenizer; cl100k_base tracks its counts
// closely enough for window trimming.
var modelWindows = map[string]int{
	"gemini-2.5-pro":        1048576,
	"gemini-2.5-flash":      1048576,
	"gemini-2.5-flash-lite": 1048576,
	"gemini-2.0-flash":      1048576,
	"gemini-1.5-pro":        2097152,
	"gemini-1.5-flash":      1048576,
}

func contextWindow(model string) int {
	if n, ok := modelWindows[model]; ok {
		return n
	}
	best, window := 0, defaultContextWindow
	for prefix, n := range modelWindows {
		if strings.HasPrefix(model, prefix) && len(prefix) > best {
			best, window = len(prefix), n
		}
	}
	return window
}

// TiktokenTokenizer counts tokens with a tiktoken BPE encoding. The encoding
// is loaded on first use, which may download the BPE ranks once.
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktokenTokenizer creates a tokenizer for model using cl100k_base.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	return &TiktokenTokenizer{
		model:     model,
		encoding:  defaultEncoding,
		maxTokens: contextWindow(model),
	}
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []types.Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := 0
	for _, msg := range messages {
		total += perMessageOverhead
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
		total += len(t.enc.Encode(messageText(msg), nil, nil))
	}
	return total + conversationOverhead, nil
}

// Encode returns the token ids of text.
func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	if err := t.init(); err != nil {
		return nil, err
	}
	return t.enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// RegisterGeminiTokenizers registers tiktoken counters for the known Gemini
// models.
func RegisterGeminiTokenizers() {
	for model := range modelWindows {
		RegisterTokenizer(model, NewTiktokenTokenizer(model))
	}
}

// messageText is what a message contributes to the prompt: content plus
// tool call names and arguments.
func messageText(m types.Message) string {
	if len(m.ToolCalls) == 0 {
		return m.Content
	}
	var b strings.Builder
	b.WriteString(m.Content)
	for _, tc := range m.ToolCalls {
		b.WriteString(" ")
		b.WriteString(tc.Name)
		b.Write(tc.Arguments)
	}
	return b.String()
}
