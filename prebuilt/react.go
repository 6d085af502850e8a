//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package prebuilt provides ready-made agent graphs.
package prebuilt

import (
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-swarm-go/graph"
	"trpc.group/trpc-go/trpc-swarm-go/model"
	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

// Node IDs of the react agent graph.
const (
	NodeAgent = "agent"
	NodeTools = "tools"
)

type options struct {
	instruction string
	description string
	schema      *graph.StateSchema
}

// Option configures NewReactAgent.
type Option func(*options)

// WithInstruction sets the system instruction sent with every model call.
func WithInstruction(instruction string) Option {
	return func(o *options) { o.instruction = instruction }
}

// WithDescription sets the description of the agent node.
func WithDescription(description string) Option {
	return func(o *options) { o.description = description }
}

// WithStateSchema overrides the default messages schema.
func WithStateSchema(schema *graph.StateSchema) Option {
	return func(o *options) { o.schema = schema }
}

// NewReactAgent compiles the agent/tools loop: the model runs, its tool
// calls execute on the "tools" node, and control returns to the model
// until it answers without tool calls. The graph is named name.
func NewReactAgent(name string, m model.Model, tools []tool.Tool, opts ...Option) (*graph.Graph, error) {
	if name == "" {
		return nil, errors.New("agent name cannot be empty")
	}
	o := options{schema: graph.MessagesStateSchema()}
	for _, opt := range opts {
		opt(&o)
	}

	toolMap := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		declaration := t.Declaration()
		if declaration == nil || declaration.Name == "" {
			return nil, fmt.Errorf("agent %s: tool without name", name)
		}
		if _, exists := toolMap[declaration.Name]; exists {
			return nil, fmt.Errorf("agent %s: duplicate tool %s", name, declaration.Name)
		}
		toolMap[declaration.Name] = t
	}

	sg := graph.NewStateGraph(o.schema).
		AddLLMNode(NodeAgent, m, o.instruction, toolMap,
			graph.WithName(name), graph.WithDescription(o.description)).
		SetEntryPoint(NodeAgent)
	if len(toolMap) > 0 {
		sg.AddToolsNode(NodeTools, toolMap).
			AddToolsConditionalEdges(NodeAgent, NodeTools, graph.End).
			AddEdge(NodeTools, NodeAgent)
	} else {
		sg.SetFinishPoint(NodeAgent)
	}
	g, err := sg.Compile(graph.WithGraphName(name))
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	return g, nil
}
