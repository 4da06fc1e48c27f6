package guardrails

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

// PIIType 个人信息类型
type PIIType string

const (
	PIITypeEmail PIIType = "email"
	PIITypePhone PIIType = "phone"
	PIITypeCard  PIIType = "credit_card"
)

// PIIAction 检测到个人信息后的处理动作
type PIIAction string

const (
	PIIActionMask   PIIAction = "mask"
	PIIActionReject PIIAction = "reject"
	PIIActionWarn   PIIAction = "warn"
)

// PIIMatch 一次检测结果
type PIIMatch struct {
	Type     PIIType `json:"type"`
	Value    string  `json:"value"`
	Masked   string  `json:"masked"`
	Position int     `json:"position"`
}

type piiRule struct {
	typ     PIIType
	pattern *regexp.Regexp
	mask    func(string) string
}

// piiRules 与 Sanitizer 的执行顺序一致
var piiRules = []piiRule{
	{PIITypeEmail, emailPattern, maskEmail},
	{PIITypePhone, phonePattern, maskPhone},
	{PIITypeCard, cardPattern, maskCard},
}

// PIIDetector 个人信息检测器，识别邮箱、电话和银行卡号
type PIIDetector struct {
	action   PIIAction
	enabled  map[PIIType]bool
	priority int
}

// NewPIIDetector 创建检测器，未指定类型时检测全部类型
func NewPIIDetector(action PIIAction, types ...PIIType) *PIIDetector {
	if action == "" {
		action = PIIActionMask
	}
	d := &PIIDetector{action: action, enabled: make(map[PIIType]bool), priority: 100}
	if len(types) == 0 {
		for _, r := range piiRules {
			types = append(types, r.typ)
		}
	}
	for _, t := range types {
		d.enabled[t] = true
	}
	return d
}

func (d *PIIDetector) Name() string { return "pii_detector" }

func (d *PIIDetector) Priority() int { return d.priority }

// Detect 按位置顺序返回全部匹配
func (d *PIIDetector) Detect(content string) []PIIMatch {
	var matches []PIIMatch
	for _, r := range piiRules {
		if !d.enabled[r.typ] {
			continue
		}
		for _, loc := range r.pattern.FindAllStringIndex(content, -1) {
			v := content[loc[0]:loc[1]]
			matches = append(matches, PIIMatch{Type: r.typ, Value: v, Masked: r.mask(v), Position: loc[0]})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Position < matches[j].Position })
	return matches
}

// Mask 对启用的个人信息类型进行脱敏
func (d *PIIDetector) Mask(content string) string {
	for _, r := range piiRules {
		if d.enabled[r.typ] {
			content = r.pattern.ReplaceAllStringFunc(content, r.mask)
		}
	}
	return content
}

func (d *PIIDetector) Filter(_ context.Context, content string) (string, error) {
	return d.Mask(content), nil
}

func (d *PIIDetector) Validate(_ context.Context, content string) (*ValidationResult, error) {
	result := NewValidationResult()
	matches := d.Detect(content)
	if len(matches) == 0 {
		return result, nil
	}

	counts := make(map[PIIType]int)
	for _, m := range matches {
		counts[m.Type]++
	}
	found := make([]PIIType, 0, len(counts))
	for t := range counts {
		found = append(found, t)
	}
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })

	for _, t := range found {
		msg := fmt.Sprintf("%d %s value(s) detected", counts[t], t)
		switch d.action {
		case PIIActionReject:
			result.AddError(ValidationError{Code: ErrCodePIIDetected, Message: msg, Severity: SeverityHigh, Field: string(t)})
		default:
			result.AddWarning(msg)
		}
	}
	if d.action == PIIActionMask {
		result.Metadata["masked_content"] = d.Mask(content)
	}
	result.Metadata["pii_types"] = counts
	return result, nil
}
