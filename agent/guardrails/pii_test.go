package guardrails

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const piiSample = "Reach john.doe@example.com or 555-123-4567, card 4111 1111 1111 1111."

func TestPIIDetector_Detect(t *testing.T) {
	matches := NewPIIDetector(PIIActionMask).Detect(piiSample)
	require.Len(t, matches, 3)
	assert.Equal(t, PIITypeEmail, matches[0].Type)
	assert.Equal(t, PIITypePhone, matches[1].Type)
	assert.Equal(t, "555-***-4567", matches[1].Masked)
	assert.Equal(t, PIITypeCard, matches[2].Type)
	assert.Equal(t, "****-****-****-1111", matches[2].Masked)
}

func TestPIIDetector_Actions(t *testing.T) {
	tests := []struct {
		name       string
		action     PIIAction
		wantValid  bool
		wantMasked bool
	}{
		{name: "mask", action: PIIActionMask, wantValid: true, wantMasked: true},
		{name: "warn", action: PIIActionWarn, wantValid: true},
		{name: "reject", action: PIIActionReject, wantValid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewPIIDetector(tt.action).Validate(context.Background(), piiSample)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, r.Valid)
			_, masked := r.Metadata["masked_content"]
			assert.Equal(t, tt.wantMasked, masked)
			assert.Equal(t, map[PIIType]int{PIITypeEmail: 1, PIITypePhone: 1, PIITypeCard: 1}, r.Metadata["pii_types"])
		})
	}
}

func TestPIIDetector_EnabledTypes(t *testing.T) {
	d := NewPIIDetector(PIIActionReject, PIITypeEmail)
	r, err := d.Validate(context.Background(), "call 555-123-4567")
	require.NoError(t, err)
	assert.True(t, r.Valid)

	assert.Equal(t, Sanitizer{}.Sanitize(piiSample), NewPIIDetector("").Mask(piiSample))
}
