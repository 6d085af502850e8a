//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package swarm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"trpc.group/trpc-go/trpc-swarm-go/graph"
	"trpc.group/trpc-go/trpc-swarm-go/log"
)

// StateKeyActiveAgent holds the name of the agent currently in control.
const StateKeyActiveAgent = "active_agent"

var (
	// ErrMissingActiveAgent is returned when a schema lacks the
	// active_agent field.
	ErrMissingActiveAgent = errors.New("missing required key 'active_agent' in state schema")
	// ErrDefaultAgentNotRoutable is returned when the default agent is not
	// one of the routing targets.
	ErrDefaultAgentNotRoutable = errors.New("default active agent is not in the routes")
)

// StateSchema returns the messages schema extended with active_agent.
func StateSchema() *graph.StateSchema {
	return graph.MessagesStateSchema().AddField(StateKeyActiveAgent, graph.StateField{
		Type:    reflect.TypeOf(""),
		Reducer: graph.DefaultReducer,
	})
}

// AddActiveAgentRouter makes the entry of sg dispatch to the active agent.
// A missing or empty active_agent routes to defaultActiveAgent.
func AddActiveAgentRouter(
	sg *graph.StateGraph,
	routeTo []string,
	defaultActiveAgent string,
) (*graph.StateGraph, error) {
	if sg == nil {
		return nil, errors.New("state graph cannot be nil")
	}
	if !sg.Schema().HasField(StateKeyActiveAgent) {
		return nil, ErrMissingActiveAgent
	}
	if !slices.Contains(routeTo, defaultActiveAgent) {
		return nil, fmt.Errorf("%w: %q not in %v", ErrDefaultAgentNotRoutable, defaultActiveAgent, routeTo)
	}

	routeToActiveAgent := func(ctx context.Context, state graph.State) (string, error) {
		if active, ok := graph.GetStateValue[string](state, StateKeyActiveAgent); ok && active != "" {
			return active, nil
		}
		return defaultActiveAgent, nil
	}
	pathMap := make(map[string]string, len(routeTo))
	for _, name := range routeTo {
		pathMap[name] = name
	}
	return sg.AddConditionalEdges(graph.Start, routeToActiveAgent, pathMap), nil
}

type options struct {
	schema        *graph.StateSchema
	toolsNodeName string
}

// Option configures CreateSwarm.
type Option func(*options)

// WithStateSchema sets the swarm state schema. It must declare
// active_agent, and its messages field must use graph.MessageReducer.
func WithStateSchema(schema *graph.StateSchema) Option {
	return func(o *options) { o.schema = schema }
}

// WithToolsNodeName sets the agents' tools node name used to discover
// handoff destinations. Defaults to DefaultToolsNodeName.
func WithToolsNodeName(name string) Option {
	return func(o *options) { o.toolsNodeName = name }
}

// CreateSwarm builds a multi-agent graph. Every agent becomes a subgraph
// node named after the agent, and the entry routes to the active agent.
// The builder is returned uncompiled so callers can extend it.
func CreateSwarm(agents []*graph.Graph, defaultActiveAgent string, opts ...Option) (*graph.StateGraph, error) {
	o := options{toolsNodeName: DefaultToolsNodeName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.schema == nil {
		o.schema = StateSchema()
	}
	if !o.schema.HasField(StateKeyActiveAgent) {
		return nil, ErrMissingActiveAgent
	}

	if len(agents) == 0 {
		return nil, errors.New("swarm needs at least one agent")
	}
	names := make([]string, 0, len(agents))
	for i, agent := range agents {
		if agent == nil {
			return nil, fmt.Errorf("agent %d is nil", i)
		}
		if agent.Name() == "" {
			return nil, fmt.Errorf("agent %d has no name; compile it with graph.WithGraphName", i)
		}
		if slices.Contains(names, agent.Name()) {
			return nil, fmt.Errorf("duplicate agent name %s", agent.Name())
		}
		names = append(names, agent.Name())
	}

	sg, err := AddActiveAgentRouter(graph.NewStateGraph(o.schema), names, defaultActiveAgent)
	if err != nil {
		return nil, err
	}
	for _, agent := range agents {
		destinations := GetHandoffDestinations(agent, o.toolsNodeName)
		log.Debugf("swarm: agent %s hands off to %v", agent.Name(), destinations)
		sg.AddSubgraphNode(agent.Name(), agent, graph.WithDestinations(destinations...))
	}
	return sg, nil
}
