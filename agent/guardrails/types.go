package guardrails

import (
	"context"
	"fmt"
)

// Validator 验证器接口，检查输入或输出文本
type Validator interface {
	Validate(ctx context.Context, content string) (*ValidationResult, error)
	Name() string
	// Priority 优先级，数值越小越先执行
	Priority() int
}

// Filter 过滤器接口，改写内容（例如脱敏）
type Filter interface {
	Filter(ctx context.Context, content string) (string, error)
	Name() string
}

// ValidationResult 验证结果
type ValidationResult struct {
	Valid bool `json:"valid"`
	// Tripwire 一旦设置立即中断整个验证器链
	Tripwire bool              `json:"tripwire,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// NewValidationResult 创建通过状态的验证结果
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []string{},
		Metadata: make(map[string]any),
	}
}

// AddError 添加错误并将结果标记为无效
func (r *ValidationResult) AddError(err ValidationError) {
	r.Valid = false
	r.Errors = append(r.Errors, err)
}

func (r *ValidationResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// Merge 合并另一个验证结果
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	if !other.Valid {
		r.Valid = false
	}
	if other.Tripwire {
		r.Tripwire = true
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	for k, v := range other.Metadata {
		r.Metadata[k] = v
	}
}

// FirstError 返回第一个错误的消息，没有错误时返回空字符串
func (r *ValidationResult) FirstError() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// ValidationError 验证错误
type ValidationError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Field    string `json:"field,omitempty"`
}

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

const (
	ErrCodeTooShort          = "TOO_SHORT"
	ErrCodeMaxLengthExceeded = "MAX_LENGTH_EXCEEDED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeBlockedKeyword    = "BLOCKED_KEYWORD"
	ErrCodeSuspiciousPattern = "SUSPICIOUS_PATTERN"
	ErrCodePIIDetected       = "PII_DETECTED"
	ErrCodeContentBlocked    = "CONTENT_BLOCKED"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
)

func severityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// TripwireError 验证器触发 Tripwire 时返回的错误
type TripwireError struct {
	ValidatorName string
	Result        *ValidationResult
}

func (e *TripwireError) Error() string {
	return fmt.Sprintf("tripwire triggered by validator %q", e.ValidatorName)
}
