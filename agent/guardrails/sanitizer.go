package guardrails

import (
	"context"
	"regexp"
)

var (
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern      = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	cardPattern       = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)onerror=`),
	}
)

// maskEmail keeps the first two characters and everything from the eighth
// on, hiding the five in between.
func maskEmail(m string) string {
	head := m
	if len(head) > 2 {
		head = head[:2]
	}
	tail := ""
	if len(m) > 7 {
		tail = m[7:]
	}
	return head + "*****" + tail
}

func maskPhone(m string) string {
	return m[:3] + "-***-" + m[len(m)-4:]
}

func maskCard(m string) string {
	return "****-****-****-" + m[len(m)-4:]
}

// Sanitizer masks personal data in agent output and strips script
// injection. The zero value is ready to use.
type Sanitizer struct{}

// Sanitize applies, in order: email, phone and card masking, then removal
// of script tags, javascript: URLs and onerror= handlers.
func (Sanitizer) Sanitize(text string) string {
	out := emailPattern.ReplaceAllStringFunc(text, maskEmail)
	out = phonePattern.ReplaceAllStringFunc(out, maskPhone)
	out = cardPattern.ReplaceAllStringFunc(out, maskCard)
	for _, p := range dangerousPatterns {
		out = p.ReplaceAllString(out, "")
	}
	return out
}

// Name and Filter make Sanitizer usable as a Filter.
func (Sanitizer) Name() string { return "sanitizer" }

func (s Sanitizer) Filter(_ context.Context, content string) (string, error) {
	return s.Sanitize(content), nil
}
