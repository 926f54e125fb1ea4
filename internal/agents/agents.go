// Package agents implements the workflow participants. Each agent binds its
// handlers to broker topics and reports its outcome by publishing, never by
// returning errors to the broker.
package agents

import (
	"context"
	"fmt"
	"sort"

	"squire/internal/broker"
)

// Publisher is the half of broker.Client the agents write to.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Agent subscribes its handlers on a broker.
type Agent interface {
	Name() string
	Register(b broker.Client) error
}

// Set is a named collection of agents.
type Set map[string]Agent

// Names lists the agents in stable order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register binds the named agents, or all of them when names is empty.
func (s Set) Register(b broker.Client, names ...string) error {
	if len(names) == 0 {
		names = s.Names()
	}
	for _, name := range names {
		a, ok := s[name]
		if !ok {
			return fmt.Errorf("unknown agent %q (have %v)", name, s.Names())
		}
		if err := a.Register(b); err != nil {
			return fmt.Errorf("register %s agent: %w", name, err)
		}
	}
	return nil
}
