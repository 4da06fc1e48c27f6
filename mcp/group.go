package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	llmtools "github.com/BaSui01/agentswarm/llm/tools"
)

// Group manages several server connections as one tool source.
type Group struct {
	clients []*Client
}

func NewGroup(clients ...*Client) *Group {
	return &Group{clients: clients}
}

func (g *Group) Clients() []*Client { return append([]*Client(nil), g.clients...) }

// Start initializes all clients concurrently. A positive timeout bounds the
// whole start; the first failure cancels the others.
func (g *Group) Start(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	eg, ectx := errgroup.WithContext(ctx)
	for _, c := range g.clients {
		eg.Go(func() error {
			if err := c.Start(ectx); err != nil {
				return fmt.Errorf("mcp server %s: %w", c.Name(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Tools merges the tools of every client in client order. Two servers
// exposing the same tool name is an error.
func (g *Group) Tools(ctx context.Context) ([]llmtools.Tool, error) {
	seen := make(map[string]string)
	var out []llmtools.Tool
	for _, c := range g.clients {
		tools, err := c.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", c.Name(), err)
		}
		for _, t := range tools {
			if prev, ok := seen[t.Name()]; ok {
				return nil, fmt.Errorf("tool %q exposed by both %s and %s", t.Name(), prev, c.Name())
			}
			seen[t.Name()] = c.Name()
			out = append(out, t)
		}
	}
	return out, nil
}

// Close closes every client and joins their errors.
func (g *Group) Close() error {
	var errs []error
	for _, c := range g.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp server %s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
