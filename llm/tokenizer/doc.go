// Package tokenizer provides token counting for conversation budgets: an
// exact tiktoken-backed counter and a CJK-aware character estimator.
package tokenizer
