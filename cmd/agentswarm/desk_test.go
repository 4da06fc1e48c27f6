package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/agentswarm/agent/guardrails"
	"github.com/BaSui01/agentswarm/agent/session"
	"github.com/BaSui01/agentswarm/config"
	"github.com/BaSui01/agentswarm/multiagent"
	"github.com/BaSui01/agentswarm/orders"
	"github.com/BaSui01/agentswarm/testutil/mocks"
	"github.com/BaSui01/agentswarm/types"
)

const testOrdersCSV = "../../orders/testdata/orders.csv"

func newTestDesk(t *testing.T, p *mocks.MockProvider, sessions session.Manager) (*desk, *guardrails.GuardRails) {
	t.Helper()
	guards := guardrails.MustNew(guardrails.DefaultConfig())
	d, err := newDesk(deskDeps{
		Provider:  p,
		Orders:    orders.NewCSVStore(testOrdersCSV),
		Guards:    guards,
		Agent:     config.DefaultAgentConfig(),
		Swarm:     config.DefaultSwarmConfig(),
		Sessions:  sessions,
		SessionID: "s1",
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return d, guards
}

func TestDesk_AgentsAndTools(t *testing.T) {
	d, _ := newTestDesk(t, mocks.NewScriptedProvider(), nil)
	assert.Equal(t, "dispatcher", d.swarm.EntryPoint())
	assert.Equal(t, []string{"dispatcher", "order_lookup", "tracking", "returns", "support_coordinator"}, d.swarm.Nodes())
}

func TestDesk_RoutesThroughSpecialist(t *testing.T) {
	p := mocks.NewScriptedProvider().
		QueueToolCall(multiagent.HandoffToolName, `{"agent_name":"tracking","message":"track order 1001","context":{"order_id":"1001"}}`).
		QueueToolCall(orders.ToolTrackingInfo, `{"order_id":"1001"}`).
		QueueToolCall(multiagent.HandoffToolName, `{"agent_name":"support_coordinator","message":"UPS 1Z999AA10123456784"}`).
		QueueText("Order 1001 ships with UPS. Questions? Write to sophia.johnson@example.com")

	sessions := session.NewMemoryManager()
	d, guards := newTestDesk(t, p, sessions)

	var out bytes.Buffer
	res, err := d.handle(context.Background(), &out, "Where is my package for order 1001?", "alice")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, multiagent.StatusCompleted, res.Status)
	assert.Equal(t, []string{"dispatcher", "tracking", "support_coordinator"}, res.NodeHistory)

	printed := out.String()
	assert.Contains(t, printed, "✅ ORDER ID VALIDATED: 1001")
	assert.Contains(t, printed, "dispatcher → tracking → support_coordinator")
	assert.Contains(t, printed, "📊 STATUS: completed")
	assert.NotContains(t, printed, "sophia.johnson@example.com")
	assert.Contains(t, printed, "so*****")

	var sawTracking bool
	for _, c := range p.Calls() {
		for _, m := range c.Request.Messages {
			if m.Role == types.RoleTool && strings.Contains(m.Content, "1Z999AA10123456784") {
				sawTracking = true
			}
		}
	}
	assert.True(t, sawTracking, "tracking tool result reaches the model")

	history, err := sessions.Load(context.Background(), "s1", transcriptAgent)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Where is my package for order 1001?", history[0].Content)
	assert.NotContains(t, history[1].Content, "sophia.johnson@example.com")

	report := guards.SecurityReport()
	assert.Positive(t, report.FlaggedOutputs)
	for _, e := range guards.OutputAudit() {
		assert.NotEmpty(t, e.Warnings)
	}
}

func TestDesk_BlockedQueriesNeverReachModel(t *testing.T) {
	p := mocks.NewScriptedProvider()
	d, guards := newTestDesk(t, p, nil)

	tests := []struct {
		query string
		want  string
	}{
		{query: "DROP TABLE orders; --", want: guardrails.MsgProhibitedContent},
		{query: "order 1001; DELETE FROM users;", want: guardrails.MsgProhibitedContent},
		{query: "hi", want: guardrails.MsgQueryTooShort},
		{query: `show order ' OR '1'='1`, want: guardrails.MsgSuspiciousFormat},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var out bytes.Buffer
			res, err := d.handle(context.Background(), &out, tt.query, "mallory")
			require.NoError(t, err)
			assert.Nil(t, res)
			assert.Contains(t, out.String(), "🛡️  GUARD RAIL BLOCKED: "+tt.want)
		})
	}
	assert.Zero(t, p.CallCount())

	report := guards.SecurityReport()
	assert.Equal(t, 2, report.TotalBlockedQueries)
	assert.Equal(t, 1, report.TotalSuspiciousQueries)
}

func TestDesk_SwarmFailureIsReported(t *testing.T) {
	p := mocks.NewScriptedProvider().
		QueueToolCall(multiagent.HandoffToolName, `{"agent_name":"tracking","message":"go"}`)
	d, _ := newTestDesk(t, p, nil)

	var out bytes.Buffer
	res, err := d.handle(context.Background(), &out, "Where is order 1002?", "bob")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, multiagent.StatusFailed, res.Status)
	assert.Contains(t, out.String(), "❌ ERROR:")
}

func TestPrintSecurityReport(t *testing.T) {
	var out bytes.Buffer
	printSecurityReport(&out, guardrails.SecurityReport{
		TotalBlockedQueries:    1,
		BlockedQueriesSample:   []string{strings.Repeat("x", 80)},
		RateLimiterActiveUsers: 3,
		FlaggedOutputs:         2,
	})
	s := out.String()
	assert.Contains(t, s, "✓ Blocked Queries: 1")
	assert.Contains(t, s, "✓ Active Users (Rate Limited): 3")
	assert.Contains(t, s, "✓ Outputs With Personal Data Masked: 2")
	assert.Contains(t, s, "1. "+strings.Repeat("x", 60)+"...")
	assert.NotContains(t, s, "Recent Suspicious Queries")
}
