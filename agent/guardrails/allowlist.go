package guardrails

import (
	"regexp"
	"sort"
)

// Agents and tools of the order support swarm.
var (
	DefaultAllowedAgents = []string{"dispatcher", "order_lookup", "tracking", "returns", "support_coordinator"}
	DefaultAllowedTools  = []string{
		"get_order_status", "get_tracking_info", "get_order_items",
		"check_return_eligibility", "get_shipping_address", "get_full_order_details",
	}
)

// Allowlist 不可变的名称白名单
type Allowlist struct {
	names map[string]struct{}
}

func NewAllowlist(names ...string) *Allowlist {
	a := &Allowlist{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		a.names[n] = struct{}{}
	}
	return a
}

// Allowed 精确匹配，判断名称是否在白名单中
func (a *Allowlist) Allowed(name string) bool {
	_, ok := a.names[name]
	return ok
}

// Names 返回排序后的条目
func (a *Allowlist) Names() []string {
	out := make([]string, 0, len(a.names))
	for n := range a.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var (
	orderMentionPattern = regexp.MustCompile(`(?i)order[\s#:]*(\d{4})`)
	orderIDPattern      = regexp.MustCompile(`^[0-9]{4}$`)
)

// ExtractOrderID returns the first order number mentioned in query, such as
// "order #1001" or "Order: 1002", and whether it is a valid four digit id.
func ExtractOrderID(query string) (string, bool) {
	m := orderMentionPattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], orderIDPattern.MatchString(m[1])
}
