package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"

	llmtools "github.com/BaSui01/agentswarm/llm/tools"
)

// symbolReplacer normalizes the operators people type in prose.
var symbolReplacer = strings.NewReplacer("×", "*", "÷", "/")

var calculatorEnv = map[string]any{
	"pi": math.Pi,
	"e":  math.E,
}

var calculatorFuncs = []expr.Option{
	unaryFunc("sqrt", func(x float64) (float64, error) {
		if x < 0 {
			return 0, errors.New("sqrt of a negative number")
		}
		return math.Sqrt(x), nil
	}),
	unaryFunc("sin", func(x float64) (float64, error) { return math.Sin(x), nil }),
	unaryFunc("cos", func(x float64) (float64, error) { return math.Cos(x), nil }),
	unaryFunc("tan", func(x float64) (float64, error) { return math.Tan(x), nil }),
	unaryFunc("log", func(x float64) (float64, error) {
		if x <= 0 {
			return 0, errors.New("log of a non-positive number")
		}
		return math.Log10(x), nil
	}),
	unaryFunc("ln", func(x float64) (float64, error) {
		if x <= 0 {
			return 0, errors.New("ln of a non-positive number")
		}
		return math.Log(x), nil
	}),
	unaryFunc("abs", func(x float64) (float64, error) { return math.Abs(x), nil }),
}

// Evaluate computes an arithmetic expression. It supports + - * / %, powers
// written ^ or **, parentheses, unary signs, the functions sqrt, sin, cos,
// tan, log (base 10), ln and abs, and the constants pi and e. Identifiers
// are case-insensitive and trigonometric functions take radians.
func Evaluate(expression string) (float64, error) {
	src := strings.ToLower(symbolReplacer.Replace(expression))
	if strings.TrimSpace(src) == "" {
		return 0, errors.New("empty expression")
	}

	opts := append([]expr.Option{expr.Env(calculatorEnv), expr.DisableAllBuiltins()}, calculatorFuncs...)
	program, err := expr.Compile(src, opts...)
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(program, calculatorEnv)
	if err != nil {
		return 0, err
	}

	v, ok := toFloat(out)
	if !ok {
		return 0, fmt.Errorf("result %v is not a number", out)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("result is not a finite number")
	}
	return v, nil
}

func unaryFunc(name string, fn func(float64) (float64, error)) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s takes one argument, got %d", name, len(params))
		}
		x, ok := toFloat(params[0])
		if !ok {
			return nil, fmt.Errorf("%s expects a number, got %v", name, params[0])
		}
		return fn(x)
	})
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

type calculatorArgs struct {
	Expression string `json:"expression" jsonschema:"description=Arithmetic expression such as 2 * (3 + 4) or sqrt(9)"`
}

type calculatorResult struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// Calculator returns the "calculator" tool backed by Evaluate.
func Calculator() llmtools.Tool {
	return llmtools.MustFunctionTool("calculator",
		"Evaluate an arithmetic expression. Supports + - * / % ^ **, parentheses, sqrt, sin, cos, tan, log, ln, abs, pi and e.",
		func(_ context.Context, a calculatorArgs) (any, error) {
			v, err := Evaluate(a.Expression)
			if err != nil {
				return nil, fmt.Errorf("cannot evaluate %q: %w", a.Expression, err)
			}
			return calculatorResult{Expression: a.Expression, Result: v}, nil
		})
}
