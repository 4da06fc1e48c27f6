package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	llmtools "github.com/BaSui01/agentswarm/llm/tools"
)

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name such as Europe/Berlin; defaults to UTC"`
}

// CurrentTime returns the "current_time" tool. It answers in ISO-8601.
func CurrentTime() llmtools.Tool {
	return currentTimeTool(time.Now)
}

func currentTimeTool(now func() time.Time) llmtools.Tool {
	return llmtools.MustFunctionTool("current_time",
		"Get the current date and time in ISO-8601 format for a timezone (default UTC)",
		func(_ context.Context, a currentTimeArgs) (any, error) {
			name := strings.TrimSpace(a.Timezone)
			if name == "" {
				name = "UTC"
			}
			loc, err := time.LoadLocation(name)
			if err != nil {
				return nil, fmt.Errorf("unknown timezone %q", name)
			}
			return now().In(loc).Format(time.RFC3339), nil
		})
}

type textArgs struct {
	Text string `json:"text" jsonschema:"description=The input text"`
}

// WordCount returns the "word_count" tool; words are separated by whitespace.
func WordCount() llmtools.Tool {
	return llmtools.MustFunctionTool("word_count", "Count the words in a piece of text",
		func(_ context.Context, a textArgs) (any, error) {
			return len(strings.Fields(a.Text)), nil
		})
}

func Uppercase() llmtools.Tool {
	return llmtools.MustFunctionTool("uppercase", "Convert text to upper case",
		func(_ context.Context, a textArgs) (any, error) {
			return strings.ToUpper(a.Text), nil
		})
}

// DefaultTeam is the roster returned by TeamMembers when none is given.
var DefaultTeam = []string{"Alice", "Bob", "Charlie", "Diana"}

type noArgs struct{}

// TeamMembers returns the "get_team_members" tool listing members, or
// DefaultTeam when members is empty.
func TeamMembers(members ...string) llmtools.Tool {
	if len(members) == 0 {
		members = DefaultTeam
	}
	roster := append([]string(nil), members...)
	return llmtools.MustFunctionTool("get_team_members",
		"Return the list of team members available for task assignment",
		func(context.Context, noArgs) (any, error) {
			return roster, nil
		})
}

// Basic returns calculator, current_time, word_count and uppercase.
func Basic() []llmtools.Tool {
	return []llmtools.Tool{Calculator(), CurrentTime(), WordCount(), Uppercase()}
}
