package guardrails

import (
	"fmt"
	"sync"
	"time"
)

// 每个用户的默认请求配额
const (
	DefaultMaxPerMinute = 30
	DefaultMaxPerHour   = 300
)

// RateLimiter 滑动窗口限流器
// 按用户记录请求时间戳，分别统计一分钟和一小时窗口；被拒绝的请求不计入
type RateLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	maxPerHour   int
	now          func() time.Time
	requests     map[string][]time.Time
}

// RateLimiterOption 限流器选项
type RateLimiterOption func(*RateLimiter)

// WithClock 替换 time.Now，主要用于测试
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) { r.now = now }
}

// NewRateLimiter 创建限流器，非正数的限额使用默认值
func NewRateLimiter(maxPerMinute, maxPerHour int, opts ...RateLimiterOption) *RateLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxPerMinute
	}
	if maxPerHour <= 0 {
		maxPerHour = DefaultMaxPerHour
	}
	r := &RateLimiter{
		maxPerMinute: maxPerMinute,
		maxPerHour:   maxPerHour,
		now:          time.Now,
		requests:     make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow 窗口未满时记录一次请求
// 被拒绝时返回 false 以及展示给用户的提示信息
func (r *RateLimiter) Allow(userID string) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	kept := r.requests[userID][:0]
	for _, t := range r.requests[userID] {
		if now.Sub(t) < time.Hour {
			kept = append(kept, t)
		}
	}
	r.requests[userID] = kept

	minuteAgo := now.Add(-time.Minute)
	inMinute := 0
	for _, t := range kept {
		if t.After(minuteAgo) {
			inMinute++
		}
	}
	if inMinute >= r.maxPerMinute {
		return false, fmt.Sprintf("Rate limit exceeded: %d requests per minute", r.maxPerMinute)
	}
	if len(kept) >= r.maxPerHour {
		return false, fmt.Sprintf("Rate limit exceeded: %d requests per hour", r.maxPerHour)
	}

	r.requests[userID] = append(kept, now)
	return true, "OK"
}

// ActiveUsers 返回限流器记录过的用户数
func (r *RateLimiter) ActiveUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// Count 返回用户最近一小时内的请求数
func (r *RateLimiter) Count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for _, t := range r.requests[userID] {
		if now.Sub(t) < time.Hour {
			n++
		}
	}
	return n
}
