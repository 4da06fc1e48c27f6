package agent

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/BaSui01/agentswarm/llm"
	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"github.com/BaSui01/agentswarm/types"
)

// StopReason explains why the event loop ended.
type StopReason string

const (
	StopReasonEndTurn         StopReason = "end_turn"
	StopReasonMaxTokens       StopReason = "max_tokens"
	StopReasonContentFiltered StopReason = "content_filtered"
	// StopReasonStopRequested means a tool called RequestStop.
	StopReasonStopRequested StopReason = "stop_requested"
)

func stopReasonFor(finish string) StopReason {
	switch finish {
	case llm.FinishReasonLength:
		return StopReasonMaxTokens
	case llm.FinishReasonContentFilter:
		return StopReasonContentFiltered
	default:
		return StopReasonEndTurn
	}
}

// Result is the outcome of one invocation.
type Result struct {
	// Message is the last assistant message.
	Message    types.Message    `json:"message"`
	StopReason StopReason       `json:"stop_reason"`
	Cycles     int              `json:"cycles"`
	Usage      types.TokenUsage `json:"usage"`
	// Metrics is the agent's cumulative metrics after this invocation.
	Metrics EventLoopMetrics `json:"metrics"`
	// StructuredOutput holds the decoded value for structured invocations.
	StructuredOutput any `json:"structured_output,omitempty"`
}

// String returns the final text.
func (r *Result) String() string {
	if r == nil {
		return ""
	}
	return r.Message.Text()
}

// ToolMetrics aggregates the calls of one tool.
type ToolMetrics struct {
	Name         string          `json:"name"`
	CallCount    int             `json:"call_count"`
	SuccessCount int             `json:"success_count"`
	ErrorCount   int             `json:"error_count"`
	TotalTime    time.Duration   `json:"total_time"`
	LastInput    json.RawMessage `json:"last_input,omitempty"`
}

// SuccessRate is SuccessCount/CallCount, or 0 before the first call.
func (t ToolMetrics) SuccessRate() float64 {
	if t.CallCount == 0 {
		return 0
	}
	return float64(t.SuccessCount) / float64(t.CallCount)
}

// AverageTime is TotalTime/CallCount.
func (t ToolMetrics) AverageTime() time.Duration {
	if t.CallCount == 0 {
		return 0
	}
	return t.TotalTime / time.Duration(t.CallCount)
}

// EventLoopMetrics accumulates cycle, token and tool statistics.
type EventLoopMetrics struct {
	CycleCount       int                    `json:"cycle_count"`
	CycleDurations   []time.Duration        `json:"cycle_durations"`
	AccumulatedUsage types.TokenUsage       `json:"accumulated_usage"`
	ToolMetrics      map[string]ToolMetrics `json:"tool_metrics"`
}

func newEventLoopMetrics() *EventLoopMetrics {
	return &EventLoopMetrics{ToolMetrics: make(map[string]ToolMetrics)}
}

func (m *EventLoopMetrics) recordCycle(d time.Duration, usage types.TokenUsage) {
	m.CycleCount++
	m.CycleDurations = append(m.CycleDurations, d)
	m.AccumulatedUsage.Add(usage)
}

func (m *EventLoopMetrics) recordTool(r llmtools.ToolResult, input json.RawMessage) {
	tm := m.ToolMetrics[r.Name]
	tm.Name = r.Name
	tm.CallCount++
	if r.IsError() {
		tm.ErrorCount++
	} else {
		tm.SuccessCount++
	}
	tm.TotalTime += r.Duration
	tm.LastInput = append(json.RawMessage(nil), input...)
	m.ToolMetrics[r.Name] = tm
}

func (m *EventLoopMetrics) clone() EventLoopMetrics {
	out := EventLoopMetrics{
		CycleCount:       m.CycleCount,
		CycleDurations:   append([]time.Duration(nil), m.CycleDurations...),
		AccumulatedUsage: m.AccumulatedUsage,
		ToolMetrics:      make(map[string]ToolMetrics, len(m.ToolMetrics)),
	}
	for k, v := range m.ToolMetrics {
		out.ToolMetrics[k] = v
	}
	return out
}

// TotalDuration sums all cycle durations.
func (m EventLoopMetrics) TotalDuration() time.Duration {
	var total time.Duration
	for _, d := range m.CycleDurations {
		total += d
	}
	return total
}

// Summary renders the metrics as a JSON-friendly map. Durations are seconds.
func (m EventLoopMetrics) Summary() map[string]any {
	total := m.TotalDuration()
	avg := 0.0
	if m.CycleCount > 0 {
		avg = total.Seconds() / float64(m.CycleCount)
	}

	names := make([]string, 0, len(m.ToolMetrics))
	for name := range m.ToolMetrics {
		names = append(names, name)
	}
	sort.Strings(names)

	toolUsage := make(map[string]any, len(names))
	for _, name := range names {
		tm := m.ToolMetrics[name]
		var input any
		if len(tm.LastInput) > 0 {
			_ = json.Unmarshal(tm.LastInput, &input)
		}
		toolUsage[name] = map[string]any{
			"tool_info": map[string]any{
				"name":         name,
				"input_params": input,
			},
			"execution_stats": map[string]any{
				"call_count":    tm.CallCount,
				"success_count": tm.SuccessCount,
				"error_count":   tm.ErrorCount,
				"total_time":    tm.TotalTime.Seconds(),
				"average_time":  tm.AverageTime().Seconds(),
				"success_rate":  tm.SuccessRate(),
			},
		}
	}

	return map[string]any{
		"total_cycles":       m.CycleCount,
		"total_duration":     total.Seconds(),
		"average_cycle_time": avg,
		"accumulated_usage":  m.AccumulatedUsage,
		"tool_usage":         toolUsage,
	}
}
