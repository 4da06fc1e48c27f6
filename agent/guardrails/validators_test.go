package guardrails

import (
	"context"
	"strings"
	"testing"

	"github.com/BaSui01/agentswarm/internal/ctxkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthValidator(t *testing.T) {
	v := NewLengthValidator(0, 0)
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "too short", input: "hi", wantMsg: MsgQueryTooShort},
		{name: "minimum", input: "hello"},
		{name: "runes not bytes", input: "héllo"},
		{name: "maximum", input: strings.Repeat("a", 1000)},
		{name: "too long", input: strings.Repeat("a", 1001), wantMsg: "Query exceeds maximum length of 1000 characters."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := v.Validate(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMsg == "", r.Valid)
			assert.Equal(t, tt.wantMsg, r.FirstError())
		})
	}
}

func TestKeywordValidator(t *testing.T) {
	v := NewKeywordValidator()
	tests := []struct {
		input   string
		blocked string
	}{
		{input: "Where is my order 1001?"},
		{input: "drop table orders", blocked: "DROP"},
		{input: "please Execute this", blocked: "EXEC"},
		{input: "read ../../secret", blocked: "../"},
		{input: `C:\..\windows`, blocked: `..\`},
		{input: "<script>", blocked: "SCRIPT"},
		{input: "cat /etc/hosts"},
		{input: "I forgot my passwd, where is order 1001?"},
		{input: "Is the shadow box in order 1002 returnable?"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := v.Validate(context.Background(), tt.input)
			require.NoError(t, err)
			if tt.blocked == "" {
				assert.True(t, r.Valid)
				return
			}
			assert.False(t, r.Valid)
			assert.Equal(t, MsgProhibitedContent, r.FirstError())
			assert.Equal(t, tt.blocked, r.Metadata["blocked_keyword"])
		})
	}

	custom := NewKeywordValidator("REFUND", "chargeback")
	_, found := custom.Match("I want a refund")
	assert.True(t, found)
	_, found = custom.Match("drop it")
	assert.False(t, found)
	_, found = custom.Match("chargeback")
	assert.False(t, found, "keywords are compared as written against upper-cased content")
}

func TestPatternValidator(t *testing.T) {
	v, err := NewPatternValidator()
	require.NoError(t, err)
	tests := []struct {
		input      string
		suspicious bool
	}{
		{input: "order 1001 status", suspicious: false},
		{input: "1001' OR '1'='1", suspicious: true},
		{input: `x" and "y`, suspicious: true},
		{input: "hello ${user.name}", suspicious: true},
		{input: "render {{ .Secret }} now", suspicious: true},
		{input: "it's or maybe not", suspicious: false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := v.Validate(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, !tt.suspicious, r.Valid)
			if tt.suspicious {
				assert.Equal(t, MsgSuspiciousFormat, r.FirstError())
			}
		})
	}

	_, err = NewPatternValidator("(unclosed")
	assert.Error(t, err)
}

func TestRateLimitValidator_UsesContextUser(t *testing.T) {
	limiter := NewRateLimiter(1, 10)
	v := NewRateLimitValidator(limiter)

	alice := ctxkeys.WithUserID(context.Background(), "alice")
	r, err := v.Validate(alice, "q")
	require.NoError(t, err)
	assert.True(t, r.Valid)

	r, err = v.Validate(alice, "q")
	require.NoError(t, err)
	assert.Equal(t, "Rate limit exceeded: 1 requests per minute", r.FirstError())

	r, err = v.Validate(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Equal(t, 1, limiter.Count("default"))
	assert.Equal(t, 2, limiter.ActiveUsers())
}
