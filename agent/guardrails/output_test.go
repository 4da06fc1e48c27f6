package guardrails

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// OutputValidator
// ============================================================================

func TestOutputValidator_ValidateAndFilter(t *testing.T) {
	v := NewOutputValidator(
		[]Validator{NewKeywordValidator("INTERNAL-ONLY")},
		Sanitizer{},
	)

	out, result, err := v.ValidateAndFilter(context.Background(), "Your email is jane.smith@example.com")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "Your email is ja*****ith@example.com", out)
	assert.Empty(t, v.AuditLog().Entries())

	out, result, err = v.ValidateAndFilter(context.Background(), "This is internal-only data")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, DefaultSafeReplacement, out)
	entries := v.AuditLog().Entries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ContentHash, 64)
	assert.Equal(t, ErrCodeBlockedKeyword, entries[0].Errors[0].Code)
}

func TestOutputValidator_LowSeverityKeepsContent(t *testing.T) {
	v := NewOutputValidator([]Validator{NewLengthValidator(50, 100)})
	v.SetSafeReplacement("replaced")
	v.AddFilter(NewPIIDetector(PIIActionMask))

	out, result, err := v.ValidateAndFilter(context.Background(), "short 555-123-4567")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "short 555-***-4567", out)
	assert.Len(t, v.AuditLog().Entries(), 1)
}

// ============================================================================
// AuditLog
// ============================================================================

func TestAuditLog_Bounded(t *testing.T) {
	log := NewAuditLog(2)
	for _, name := range []string{"a", "b", "c"} {
		log.Record(AuditEntry{Validator: name})
	}
	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Validator)
}

func TestOutputValidator_AuditsWarnings(t *testing.T) {
	v := NewOutputValidator([]Validator{NewPIIDetector(PIIActionWarn)}, Sanitizer{})

	out, result, err := v.ValidateAndFilter(context.Background(), "call 555-123-4567")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "call 555-***-4567", out)

	entries := v.AuditLog().Entries()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Errors)
	assert.Equal(t, []string{"1 phone value(s) detected"}, entries[0].Warnings)

	_, _, err = v.ValidateAndFilter(context.Background(), "nothing personal here")
	require.NoError(t, err)
	assert.Len(t, v.AuditLog().Entries(), 1)
}
