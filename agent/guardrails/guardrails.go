package guardrails

import (
	"context"
	"sync"

	"github.com/BaSui01/agentswarm/internal/ctxkeys"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"go.uber.org/zap"
)

// MsgValidated is returned by ValidateInput for accepted queries.
const MsgValidated = "VALIDATED"

const reportSampleSize = 5

// Config tunes the GuardRails facade. Zero values take the defaults.
type Config struct {
	MinQueryLength     int      `json:"min_query_length" yaml:"min_query_length"`
	MaxQueryLength     int      `json:"max_query_length" yaml:"max_query_length"`
	MaxPerMinute       int      `json:"max_per_minute" yaml:"max_per_minute"`
	MaxPerHour         int      `json:"max_per_hour" yaml:"max_per_hour"`
	BlockedKeywords    []string `json:"blocked_keywords,omitempty" yaml:"blocked_keywords"`
	SuspiciousPatterns []string `json:"suspicious_patterns,omitempty" yaml:"suspicious_patterns"`
	AllowedAgents      []string `json:"allowed_agents,omitempty" yaml:"allowed_agents"`
	AllowedTools       []string `json:"allowed_tools,omitempty" yaml:"allowed_tools"`
}

// DefaultConfig returns the order support defaults.
func DefaultConfig() Config {
	return Config{
		MinQueryLength: DefaultMinQueryLength,
		MaxQueryLength: DefaultMaxQueryLength,
		MaxPerMinute:   DefaultMaxPerMinute,
		MaxPerHour:     DefaultMaxPerHour,
		AllowedAgents:  DefaultAllowedAgents,
		AllowedTools:   DefaultAllowedTools,
	}
}

// SecurityReport summarizes rejected traffic.
type SecurityReport struct {
	TotalBlockedQueries     int      `json:"total_blocked_queries"`
	TotalSuspiciousQueries  int      `json:"total_suspicious_queries"`
	BlockedQueriesSample    []string `json:"blocked_queries_sample"`
	SuspiciousQueriesSample []string `json:"suspicious_queries_sample"`
	RateLimiterActiveUsers  int      `json:"rate_limiter_active_users"`
	// FlaggedOutputs counts sanitized outputs that carried personal data.
	FlaggedOutputs int `json:"flagged_outputs"`
}

// GuardRails validates user queries before they reach the agents and
// sanitizes what comes back. Safe for concurrent use.
type GuardRails struct {
	chain     *ValidatorChain
	limiter   *RateLimiter
	sanitizer Sanitizer
	output    *OutputValidator
	agents    *Allowlist
	tools     *Allowlist
	logger    *zap.Logger
	collector *metrics.Collector

	mu         sync.Mutex
	blocked    []string
	suspicious []string
}

// Option configures GuardRails.
type Option func(*GuardRails)

func WithLogger(logger *zap.Logger) Option {
	return func(g *GuardRails) { g.logger = logger }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(g *GuardRails) { g.collector = c }
}

// WithRateLimiter shares or replaces the limiter, e.g. one with a fake clock.
func WithRateLimiter(l *RateLimiter) Option {
	return func(g *GuardRails) { g.limiter = l }
}

// New builds the facade. It fails only on an invalid suspicious pattern.
func New(cfg Config, opts ...Option) (*GuardRails, error) {
	def := DefaultConfig()
	if cfg.AllowedAgents == nil {
		cfg.AllowedAgents = def.AllowedAgents
	}
	if cfg.AllowedTools == nil {
		cfg.AllowedTools = def.AllowedTools
	}

	g := &GuardRails{
		agents: NewAllowlist(cfg.AllowedAgents...),
		tools:  NewAllowlist(cfg.AllowedTools...),
	}
	g.output = NewOutputValidator([]Validator{NewPIIDetector(PIIActionWarn)}, g.sanitizer)
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	g.logger = g.logger.With(zap.String("component", "guardrails"))
	if g.limiter == nil {
		g.limiter = NewRateLimiter(cfg.MaxPerMinute, cfg.MaxPerHour)
	}

	patterns, err := NewPatternValidator(cfg.SuspiciousPatterns...)
	if err != nil {
		return nil, err
	}
	g.chain = NewValidatorChain(ChainModeFailFast,
		NewLengthValidator(cfg.MinQueryLength, cfg.MaxQueryLength),
		NewRateLimitValidator(g.limiter),
		NewKeywordValidator(cfg.BlockedKeywords...),
		patterns,
	)
	return g, nil
}

// MustNew panics on error.
func MustNew(cfg Config, opts ...Option) *GuardRails {
	g, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// ValidateInput checks query length, the user's rate limit, blocked keywords
// and suspicious patterns, in that order. It returns MsgValidated or the
// reason for rejection.
func (g *GuardRails) ValidateInput(ctx context.Context, query, userID string) (bool, string) {
	if userID == "" {
		userID = "default"
	}
	result, err := g.chain.Validate(ctxkeys.WithUserID(ctx, userID), query)
	if err != nil {
		g.logger.Error("input validation failed", zap.Error(err))
		return false, "Unable to validate query. Please try again."
	}
	if result.Valid {
		return true, MsgValidated
	}

	first := result.Errors[0]
	switch first.Code {
	case ErrCodeBlockedKeyword:
		g.record(&g.blocked, query)
	case ErrCodeSuspiciousPattern:
		g.record(&g.suspicious, query)
	}
	g.collector.RecordGuardrailRejection(first.Code)
	g.logger.Warn("query rejected",
		zap.String("user_id", userID),
		zap.String("code", first.Code))
	return false, first.Message
}

func (g *GuardRails) record(list *[]string, query string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	*list = append(*list, query)
}

// SanitizeOutput masks personal data and strips script injection. Outputs
// that carried personal data are recorded in the output audit log.
func (g *GuardRails) SanitizeOutput(text string) string {
	out, _, err := g.output.ValidateAndFilter(context.Background(), text)
	if err != nil {
		g.logger.Warn("output validation failed", zap.Error(err))
		return g.sanitizer.Sanitize(text)
	}
	return out
}

// OutputAudit returns the flagged outputs, oldest first.
func (g *GuardRails) OutputAudit() []AuditEntry { return g.output.AuditLog().Entries() }

func (g *GuardRails) ValidateAgentName(name string) bool { return g.agents.Allowed(name) }

func (g *GuardRails) ValidateToolName(name string) bool { return g.tools.Allowed(name) }

func (g *GuardRails) AllowedTools() []string { return g.tools.Names() }

func (g *GuardRails) AllowedAgents() []string { return g.agents.Names() }

func (g *GuardRails) Limiter() *RateLimiter { return g.limiter }

// ExtractOrderID is the package function, for callers holding a facade.
func (g *GuardRails) ExtractOrderID(query string) (string, bool) {
	return ExtractOrderID(query)
}

// SecurityReport returns totals and the five most recent samples of each
// rejection kind.
func (g *GuardRails) SecurityReport() SecurityReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return SecurityReport{
		TotalBlockedQueries:     len(g.blocked),
		TotalSuspiciousQueries:  len(g.suspicious),
		BlockedQueriesSample:    lastN(g.blocked, reportSampleSize),
		SuspiciousQueriesSample: lastN(g.suspicious, reportSampleSize),
		RateLimiterActiveUsers:  g.limiter.ActiveUsers(),
		FlaggedOutputs:          len(g.output.AuditLog().Entries()),
	}
}

func lastN(s []string, n int) []string {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return append([]string{}, s...)
}
