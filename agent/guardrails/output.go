package guardrails

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultSafeReplacement 高严重级别验证失败时的替换文本
const DefaultSafeReplacement = "I'm sorry, I can't share that response."

// AuditEntry 审计日志条目
// 记录验证失败或产生警告的输出，只保存内容哈希
type AuditEntry struct {
	Timestamp   time.Time         `json:"timestamp"`
	Validator   string            `json:"validator"`
	ContentHash string            `json:"content_hash"`
	Errors      []ValidationError `json:"errors,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// AuditLog 有界的内存审计日志
type AuditLog struct {
	mu      sync.Mutex
	max     int
	entries []AuditEntry
}

// NewAuditLog 创建审计日志，最多保留 max 条（默认 1000）
func NewAuditLog(max int) *AuditLog {
	if max <= 0 {
		max = 1000
	}
	return &AuditLog{max: max}
}

func (l *AuditLog) Record(e AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append([]AuditEntry(nil), l.entries[over:]...)
	}
}

func (l *AuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}

// OutputValidator 输出验证器
// 先验证智能体输出再执行过滤器；高或严重级别的失败会整体替换输出
type OutputValidator struct {
	mu          sync.RWMutex
	chain       *ValidatorChain
	filters     []Filter
	replacement string
	audit       *AuditLog
}

// NewOutputValidator 创建输出验证器
func NewOutputValidator(validators []Validator, filters ...Filter) *OutputValidator {
	return &OutputValidator{
		chain:       NewValidatorChain(ChainModeCollectAll, validators...),
		filters:     filters,
		replacement: DefaultSafeReplacement,
		audit:       NewAuditLog(0),
	}
}

func (v *OutputValidator) Name() string { return "output_validator" }

func (v *OutputValidator) Priority() int { return 50 }

func (v *OutputValidator) SetSafeReplacement(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.replacement = s
}

func (v *OutputValidator) AddFilter(f Filter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filters = append(v.filters, f)
}

func (v *OutputValidator) AuditLog() *AuditLog { return v.audit }

func (v *OutputValidator) Validate(ctx context.Context, content string) (*ValidationResult, error) {
	result, err := v.chain.Validate(ctx, content)
	if result != nil && (!result.Valid || len(result.Warnings) > 0) {
		sum := sha256.Sum256([]byte(content))
		v.audit.Record(AuditEntry{
			Timestamp:   time.Now(),
			Validator:   v.Name(),
			ContentHash: hex.EncodeToString(sum[:]),
			Errors:      result.Errors,
			Warnings:    result.Warnings,
		})
	}
	return result, err
}

// ValidateAndFilter 验证并过滤输出
// 严重失败时返回安全替换文本，否则返回过滤后的内容
func (v *OutputValidator) ValidateAndFilter(ctx context.Context, content string) (string, *ValidationResult, error) {
	result, err := v.Validate(ctx, content)
	if err != nil {
		return "", result, err
	}

	v.mu.RLock()
	filters := append([]Filter(nil), v.filters...)
	replacement := v.replacement
	v.mu.RUnlock()

	for _, e := range result.Errors {
		if severityRank(e.Severity) >= severityRank(SeverityHigh) {
			result.Metadata["replaced"] = true
			return replacement, result, nil
		}
	}
	out := content
	for _, f := range filters {
		if out, err = f.Filter(ctx, out); err != nil {
			return "", result, err
		}
	}
	return out, result, nil
}
