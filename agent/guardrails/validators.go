package guardrails

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/agentswarm/internal/ctxkeys"
)

// Query limits and rejection messages shown to users.
const (
	DefaultMinQueryLength = 5
	DefaultMaxQueryLength = 1000

	MsgQueryTooShort     = "Query too short. Please provide more context."
	MsgProhibitedContent = "⚠️ Query contains prohibited content. Only order-related queries are allowed."
	MsgSuspiciousFormat  = "⚠️ Query format is suspicious. Please rephrase your question."
)

// DefaultBlockedKeywords catches SQL, shell and path traversal attempts.
var DefaultBlockedKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "INSERT", "UPDATE",
	"EXEC", "EXECUTE", "SCRIPT", "JAVASCRIPT", "EVAL",
	"SYSTEM", "SHELL", "BASH", "CMD", "POWERSHELL",
	"../", `..\`, "passwd", "shadow", "/etc/",
}

// DefaultSuspiciousPatterns catches quote-based SQL injection and template
// injection.
var DefaultSuspiciousPatterns = []string{
	`[';"]+\s*(OR|AND)\s*[';"]+`,
	`\$\{.*\}`,
	`{{.*}}`,
}

// LengthValidator rejects content shorter than Min or longer than Max runes.
type LengthValidator struct {
	Min      int
	Max      int
	priority int
}

// NewLengthValidator returns a validator; non-positive bounds take defaults.
func NewLengthValidator(minLen, maxLen int) *LengthValidator {
	if minLen <= 0 {
		minLen = DefaultMinQueryLength
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}
	return &LengthValidator{Min: minLen, Max: maxLen, priority: 10}
}

func (v *LengthValidator) Name() string { return "length_validator" }

func (v *LengthValidator) Priority() int { return v.priority }

func (v *LengthValidator) Validate(_ context.Context, content string) (*ValidationResult, error) {
	result := NewValidationResult()
	n := utf8.RuneCountInString(content)
	switch {
	case n < v.Min:
		result.AddError(ValidationError{Code: ErrCodeTooShort, Message: MsgQueryTooShort, Severity: SeverityLow})
	case n > v.Max:
		result.AddError(ValidationError{
			Code:     ErrCodeMaxLengthExceeded,
			Message:  fmt.Sprintf("Query exceeds maximum length of %d characters.", v.Max),
			Severity: SeverityMedium,
		})
		result.Metadata["exceeded_by"] = n - v.Max
	}
	result.Metadata["length"] = n
	return result, nil
}

// RateLimitValidator charges each validated request to the user found in
// the context (ctxkeys.WithUserID), or to "default".
type RateLimitValidator struct {
	limiter *RateLimiter
}

func NewRateLimitValidator(limiter *RateLimiter) *RateLimitValidator {
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	return &RateLimitValidator{limiter: limiter}
}

func (v *RateLimitValidator) Name() string { return "rate_limit_validator" }

func (v *RateLimitValidator) Priority() int { return 20 }

func (v *RateLimitValidator) Limiter() *RateLimiter { return v.limiter }

func (v *RateLimitValidator) Validate(ctx context.Context, _ string) (*ValidationResult, error) {
	result := NewValidationResult()
	user, ok := ctxkeys.UserID(ctx)
	if !ok || user == "" {
		user = "default"
	}
	if allowed, msg := v.limiter.Allow(user); !allowed {
		result.AddError(ValidationError{Code: ErrCodeRateLimited, Message: msg, Severity: SeverityMedium, Field: user})
	}
	return result, nil
}

// KeywordValidator rejects content whose upper-cased form contains a blocked
// keyword as written. Keywords with lower-case letters therefore never
// match, so the lower-case defaults (passwd, shadow, /etc/) do not block
// ordinary words such as "shadow box".
type KeywordValidator struct {
	keywords []string
}

// NewKeywordValidator uses DefaultBlockedKeywords when none are given.
func NewKeywordValidator(keywords ...string) *KeywordValidator {
	if len(keywords) == 0 {
		keywords = DefaultBlockedKeywords
	}
	return &KeywordValidator{keywords: append([]string(nil), keywords...)}
}

func (v *KeywordValidator) Name() string { return "keyword_validator" }

func (v *KeywordValidator) Priority() int { return 30 }

// Match returns the first blocked keyword found in content.
func (v *KeywordValidator) Match(content string) (string, bool) {
	up := strings.ToUpper(content)
	for _, k := range v.keywords {
		if strings.Contains(up, k) {
			return k, true
		}
	}
	return "", false
}

func (v *KeywordValidator) Validate(_ context.Context, content string) (*ValidationResult, error) {
	result := NewValidationResult()
	if kw, found := v.Match(content); found {
		result.AddError(ValidationError{Code: ErrCodeBlockedKeyword, Message: MsgProhibitedContent, Severity: SeverityHigh})
		result.Metadata["blocked_keyword"] = kw
	}
	return result, nil
}

// PatternValidator rejects content matching any suspicious regular
// expression. Patterns are case-insensitive.
type PatternValidator struct {
	patterns []*regexp.Regexp
}

// NewPatternValidator compiles patterns, defaulting to DefaultSuspiciousPatterns.
func NewPatternValidator(patterns ...string) (*PatternValidator, error) {
	if len(patterns) == 0 {
		patterns = DefaultSuspiciousPatterns
	}
	v := &PatternValidator{}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		v.patterns = append(v.patterns, re)
	}
	return v, nil
}

func (v *PatternValidator) Name() string { return "pattern_validator" }

func (v *PatternValidator) Priority() int { return 40 }

func (v *PatternValidator) Validate(_ context.Context, content string) (*ValidationResult, error) {
	result := NewValidationResult()
	for _, re := range v.patterns {
		if re.MatchString(content) {
			result.AddError(ValidationError{Code: ErrCodeSuspiciousPattern, Message: MsgSuspiciousFormat, Severity: SeverityHigh})
			result.Metadata["pattern"] = re.String()
			break
		}
	}
	return result, nil
}
