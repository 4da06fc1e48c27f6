package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentswarm/agent"
	"github.com/BaSui01/agentswarm/agent/guardrails"
	"github.com/BaSui01/agentswarm/agent/session"
	"github.com/BaSui01/agentswarm/config"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/multiagent"
	"github.com/BaSui01/agentswarm/orders"
	"github.com/BaSui01/agentswarm/types"
)

// transcriptAgent is the agent id under which desk transcripts are stored.
const transcriptAgent = "support_desk"

const guardBanner = "⚠️ GUARD RAILS ACTIVE: Only access authorized tools and sanitize outputs."

type deskRole struct {
	name        string
	description string
	prompt      string
	tools       []string
}

var deskRoles = []deskRole{
	{
		name:        "dispatcher",
		description: "Classifies the customer's intent and routes to a specialist",
		prompt: `You are a Customer Intent Dispatcher Agent for order support.
⚠️ GUARD RAILS ACTIVE: Only process order-related queries.

Your ONLY job:
1. Analyze the customer query to understand their intent.
2. Extract the order_id from the query.
3. Classify the request into ONE of: TRACKING, ITEMS, RETURNS, GENERAL.
4. Respond with exactly this format:

    === INTENT CLASSIFICATION ===
    ORDER_ID: <order_id or "NOT_PROVIDED">
    INTENT: <TRACKING|ITEMS|RETURNS|GENERAL>
    CUSTOMER_QUERY: <original query>

Then hand off to the matching specialist: tracking, order_lookup or returns.
Pass the order id in the handoff context.

If the order id is not provided, ask the customer for it instead of handing off.
If the query is not about orders, respond with:
    "I can only assist with order-related queries. Please ask about tracking, items, returns, or order status."`,
	},
	{
		name:        "order_lookup",
		description: "Retrieves order contents, prices and status",
		prompt: `You are an Order Lookup Specialist Agent.
` + guardBanner + `

Use get_order_items, get_order_status and get_full_order_details to describe
what was ordered, prices, order dates and payment details. Never make up
information; only use tool results. Never disclose complete email addresses.
Hand off to support_coordinator with your findings when done.`,
		tools: []string{orders.ToolOrderItems, orders.ToolOrderStatus, orders.ToolFullOrderDetails},
	},
	{
		name:        "tracking",
		description: "Provides shipping, carrier and delivery information",
		prompt: `You are a Tracking & Shipping Specialist Agent.
` + guardBanner + `

Use get_tracking_info, get_shipping_address and get_order_status to report
tracking numbers, carriers, delivery status and estimated delivery. Be
empathetic about delays. Never disclose complete addresses.
Hand off to support_coordinator with your findings when done.`,
		tools: []string{orders.ToolTrackingInfo, orders.ToolShippingAddress, orders.ToolOrderStatus},
	},
	{
		name:        "returns",
		description: "Checks return eligibility and explains the return policy",
		prompt: `You are a Returns & Refunds Specialist Agent.
` + guardBanner + `

Use check_return_eligibility, get_order_status and get_full_order_details to
decide whether the order can be returned. If it can, give the next steps; if
not, explain why. Protect customer data in responses.
Hand off to support_coordinator with your findings when done.`,
		tools: []string{orders.ToolReturnEligible, orders.ToolOrderStatus, orders.ToolFullOrderDetails},
	},
	{
		name:        "support_coordinator",
		description: "Compiles the specialists' findings into the final answer",
		prompt: `You are the Support Coordinator Agent, the final response agent.
⚠️ GUARD RAILS ACTIVE: Only provide sanitized information to customers.

Compile the information gathered by the specialist agents into a friendly,
well formatted answer. Summarize what matters most, thank the customer for
their business and offer further help. Do not hand off again.
Ensure no full emails, full addresses or payment details are exposed.`,
		tools: []string{orders.ToolFullOrderDetails},
	},
}

// deskDeps are the collaborators of a support desk.
type deskDeps struct {
	Provider  llm.Provider
	Orders    orders.Store
	Guards    *guardrails.GuardRails
	Agent     config.AgentConfig
	Swarm     config.SwarmConfig
	Model     string
	Sessions  session.Manager
	SessionID string
	Collector *metrics.Collector
	Logger    *zap.Logger

	// SkipValidation disables input checks; output is still sanitized.
	SkipValidation bool
}

// desk answers customer queries: guard rails first, then the swarm.
type desk struct {
	swarm     *multiagent.Swarm
	validate  bool
	guards    *guardrails.GuardRails
	sessions  session.Manager
	sessionID string
	logger    *zap.Logger
}

func newDesk(d deskDeps) (*desk, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	svc := orders.NewService(d.Orders,
		orders.WithSanitizer(d.Guards),
		orders.WithLogger(d.Logger))

	nodes := make([]*agent.Agent, 0, len(deskRoles))
	for _, role := range deskRoles {
		if !d.Guards.ValidateAgentName(role.name) {
			return nil, fmt.Errorf("agent %q is not allowed by the guard rails", role.name)
		}
		for _, t := range role.tools {
			if !d.Guards.ValidateToolName(t) {
				return nil, fmt.Errorf("tool %q is not allowed by the guard rails", t)
			}
		}
		tools, err := svc.Select(role.tools...)
		if err != nil {
			return nil, err
		}
		a, err := agent.New(d.Provider,
			agent.WithName(role.name),
			agent.WithDescription(role.description),
			agent.WithSystemPrompt(role.prompt),
			agent.WithModel(d.Model),
			agent.WithMaxCycles(d.Agent.MaxCycles),
			agent.WithToolTimeout(d.Agent.ToolTimeout),
			agent.WithTools(tools...),
			agent.WithOutputSanitizer(d.Guards.SanitizeOutput),
			agent.WithMetrics(d.Collector),
			agent.WithLogger(d.Logger))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, a)
	}

	sc := d.Swarm
	swarm, err := multiagent.NewSwarm(nodes,
		multiagent.WithEntryPoint("dispatcher"),
		multiagent.WithSwarmConfig(multiagent.SwarmConfig{
			MaxHandoffs:                sc.MaxHandoffs,
			MaxIterations:              sc.MaxIterations,
			ExecutionTimeout:           sc.ExecutionTimeout,
			NodeTimeout:                sc.NodeTimeout,
			RepetitiveHandoffWindow:    sc.RepetitiveHandoffWindow,
			RepetitiveHandoffMinUnique: sc.RepetitiveHandoffMinUniqueAgents,
		}),
		multiagent.WithMetrics(d.Collector),
		multiagent.WithLogger(d.Logger))
	if err != nil {
		return nil, err
	}
	return &desk{
		swarm:     swarm,
		validate:  !d.SkipValidation,
		guards:    d.Guards,
		sessions:  d.Sessions,
		sessionID: d.SessionID,
		logger:    d.Logger.With(zap.String("component", "desk")),
	}, nil
}

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("─", 80)
)

// handle validates query and, if accepted, runs it through the swarm. A
// rejected query returns (nil, nil).
func (d *desk) handle(ctx context.Context, w io.Writer, query, userID string) (*multiagent.SwarmResult, error) {
	fmt.Fprintf(w, "\n%s\n🔹 CUSTOMER QUERY: %s\n%s\n", heavyRule, query, heavyRule)

	if d.validate {
		if ok, msg := d.guards.ValidateInput(ctx, query, userID); !ok {
			fmt.Fprintf(w, "🛡️  GUARD RAIL BLOCKED: %s\n%s\n", msg, heavyRule)
			return nil, nil
		}
	}
	if id, valid := d.guards.ExtractOrderID(query); valid {
		fmt.Fprintf(w, "✅ ORDER ID VALIDATED: %s\n", id)
	}

	res, err := d.swarm.Invoke(ctx, query)
	if err != nil {
		fmt.Fprintf(w, "❌ ERROR: %v\n%s\n", err, heavyRule)
		return res, err
	}

	output := d.guards.SanitizeOutput(res.Output)
	fmt.Fprintf(w, "\n%s\n📋 AGENT WORKFLOW:\n%s\n%s\n", lightRule, strings.Join(res.NodeHistory, " → "), lightRule)
	fmt.Fprintf(w, "\n✅ FINAL RESPONSE:\n%s\n", output)
	fmt.Fprintf(w, "\n📊 STATUS: %s\n%s\n", res.Status, heavyRule)

	d.record(ctx, query, output)
	return res, nil
}

// record appends the exchange to the session transcript, if one is configured.
func (d *desk) record(ctx context.Context, query, answer string) {
	if d.sessions == nil || d.sessionID == "" {
		return
	}
	for _, msg := range []types.Message{types.NewUserMessage(query), types.NewAssistantMessage(answer)} {
		if err := d.sessions.Append(ctx, d.sessionID, transcriptAgent, msg); err != nil {
			d.logger.Warn("failed to record transcript", zap.String("session_id", d.sessionID), zap.Error(err))
			return
		}
	}
}

func printSecurityReport(w io.Writer, report guardrails.SecurityReport) {
	fmt.Fprintf(w, "\n%s\n🔒 SECURITY AUDIT REPORT\n%s\n", heavyRule, heavyRule)
	fmt.Fprintf(w, "✓ Blocked Queries: %d\n", report.TotalBlockedQueries)
	fmt.Fprintf(w, "✓ Suspicious Queries: %d\n", report.TotalSuspiciousQueries)
	fmt.Fprintf(w, "✓ Active Users (Rate Limited): %d\n", report.RateLimiterActiveUsers)
	fmt.Fprintf(w, "✓ Outputs With Personal Data Masked: %d\n", report.FlaggedOutputs)
	printSample(w, "Recent Blocked Queries", report.BlockedQueriesSample)
	printSample(w, "Recent Suspicious Queries", report.SuspiciousQueriesSample)
	fmt.Fprintln(w, heavyRule)
}

func printSample(w io.Writer, title string, queries []string) {
	if len(queries) == 0 {
		return
	}
	fmt.Fprintf(w, "\n⚠️  %s (last %d):\n", title, len(queries))
	for i, q := range queries {
		fmt.Fprintf(w, "   %d. %s\n", i+1, truncate(q, 60))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
