package guardrails

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ChainMode 验证器链执行模式
type ChainMode string

const (
	// ChainModeFailFast 快速失败：遇到第一个失败的验证器立即停止
	ChainModeFailFast ChainMode = "fail_fast"
	// ChainModeCollectAll 按优先级执行全部验证器并收集结果
	ChainModeCollectAll ChainMode = "collect_all"
	// ChainModeParallel 并行执行全部验证器
	ChainModeParallel ChainMode = "parallel"
)

// ValidatorChain 验证器链
// 按优先级顺序执行多个验证器并合并结果，链本身也是一个 Validator
type ValidatorChain struct {
	mu         sync.RWMutex
	validators []Validator
	mode       ChainMode
}

// NewValidatorChain 创建验证器链，mode 为空时使用收集全部模式
func NewValidatorChain(mode ChainMode, validators ...Validator) *ValidatorChain {
	if mode == "" {
		mode = ChainModeCollectAll
	}
	c := &ValidatorChain{mode: mode}
	c.Add(validators...)
	return c
}

func (c *ValidatorChain) Name() string { return "validator_chain" }

func (c *ValidatorChain) Priority() int { return 0 }

func (c *ValidatorChain) Add(validators ...Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validators = append(c.validators, validators...)
}

// Remove 移除指定名称的验证器，返回是否存在
func (c *ValidatorChain) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.validators {
		if v.Name() == name {
			c.validators = append(c.validators[:i], c.validators[i+1:]...)
			return true
		}
	}
	return false
}

// Validators 返回按优先级排序的验证器
func (c *ValidatorChain) Validators() []Validator {
	c.mu.RLock()
	sorted := append([]Validator(nil), c.validators...)
	c.mu.RUnlock()
	sortByPriority(sorted)
	return sorted
}

func (c *ValidatorChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.validators)
}

func (c *ValidatorChain) Mode() ChainMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

func (c *ValidatorChain) SetMode(mode ChainMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

// Validate 执行验证器链
// Metadata "execution_order" 记录实际执行的验证器；触发 Tripwire 时返回 *TripwireError
func (c *ValidatorChain) Validate(ctx context.Context, content string) (*ValidationResult, error) {
	validators := c.Validators()
	mode := c.Mode()
	if mode == ChainModeParallel {
		return c.validateParallel(ctx, validators, content)
	}

	result := NewValidationResult()
	order := make([]string, 0, len(validators))
	defer func() { result.Metadata["execution_order"] = order }()

	for _, v := range validators {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		order = append(order, v.Name())

		vr, err := v.Validate(ctx, content)
		if err != nil {
			result.AddError(ValidationError{
				Code:     ErrCodeValidationFailed,
				Message:  "validator " + v.Name() + " failed: " + err.Error(),
				Severity: SeverityCritical,
			})
			if mode == ChainModeFailFast {
				return result, err
			}
			continue
		}
		result.Merge(vr)
		if vr.Tripwire {
			return result, &TripwireError{ValidatorName: v.Name(), Result: result}
		}
		if mode == ChainModeFailFast && !vr.Valid {
			return result, nil
		}
	}
	return result, nil
}

func (c *ValidatorChain) validateParallel(ctx context.Context, validators []Validator, content string) (*ValidationResult, error) {
	type outcome struct {
		result *ValidationResult
		err    error
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]outcome, len(validators))
	var tripOnce sync.Once
	var tripped string

	g, gctx := errgroup.WithContext(ctx)
	for i, v := range validators {
		g.Go(func() error {
			vr, err := v.Validate(gctx, content)
			outcomes[i] = outcome{result: vr, err: err}
			if err == nil && vr != nil && vr.Tripwire {
				tripOnce.Do(func() {
					tripped = v.Name()
					cancel()
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	result := NewValidationResult()
	executed := make([]string, 0, len(validators))
	for i, o := range outcomes {
		name := validators[i].Name()
		if o.err != nil {
			result.AddError(ValidationError{
				Code:     ErrCodeValidationFailed,
				Message:  "validator " + name + " failed: " + o.err.Error(),
				Severity: SeverityCritical,
			})
			continue
		}
		if o.result == nil {
			continue
		}
		executed = append(executed, name)
		result.Merge(o.result)
	}
	result.Metadata["execution_order"] = executed

	if tripped != "" {
		return result, &TripwireError{ValidatorName: tripped, Result: result}
	}
	return result, nil
}

func sortByPriority(validators []Validator) {
	sort.SliceStable(validators, func(i, j int) bool {
		return validators[i].Priority() < validators[j].Priority()
	})
}
