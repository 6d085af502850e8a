//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-swarm-go/model"
	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

// StateGraph provides a fluent interface for building graphs.
//
// Builder methods never fail directly. Errors are buffered and reported by
// Compile, so calls can be chained:
//
//	g, err := NewStateGraph(MessagesStateSchema()).
//	  AddNode("step", stepFunc).
//	  SetEntryPoint("step").
//	  SetFinishPoint("step").
//	  Compile()
//
// The compiled Graph can then be executed with NewExecutor(g).
type StateGraph struct {
	graph     *Graph
	buildErrs []error
}

// NewStateGraph creates a new graph builder with the given state schema.
func NewStateGraph(schema *StateSchema) *StateGraph {
	return &StateGraph{graph: New(schema)}
}

// Schema returns the builder's state schema.
func (sg *StateGraph) Schema() *StateSchema {
	return sg.graph.schema
}

// Option is a function that configures a Node.
type Option func(*Node)

// WithName sets the name of the node.
func WithName(name string) Option {
	return func(node *Node) {
		node.Name = name
	}
}

// WithDescription sets the description of the node.
func WithDescription(description string) Option {
	return func(node *Node) {
		node.Description = description
	}
}

// WithEndsMap declares where the node may jump by Command.GoTo. Keys are
// GoTo values, values are node IDs (or End).
func WithEndsMap(ends map[string]string) Option {
	return func(node *Node) {
		if node.ends == nil {
			node.ends = make(map[string]string, len(ends))
		}
		for k, v := range ends {
			node.ends[k] = v
		}
	}
}

// WithDestinations declares node IDs the node may jump to by command.
// It is WithEndsMap with an identity mapping.
func WithDestinations(destinations ...string) Option {
	return func(node *Node) {
		if node.ends == nil {
			node.ends = make(map[string]string, len(destinations))
		}
		for _, d := range destinations {
			node.ends[d] = d
		}
	}
}

func (sg *StateGraph) addBuildError(err error) {
	sg.buildErrs = append(sg.buildErrs, err)
}

func (sg *StateGraph) addNode(node *Node, opts []Option) *StateGraph {
	for _, opt := range opts {
		opt(node)
	}
	if node.Name == "" {
		node.Name = node.ID
	}
	if err := sg.graph.addNode(node); err != nil {
		sg.addBuildError(err)
	}
	return sg
}

// AddNode adds a function node.
func (sg *StateGraph) AddNode(id string, function NodeFunc, opts ...Option) *StateGraph {
	return sg.addNode(&Node{
		ID:       id,
		Type:     NodeTypeFunction,
		Function: function,
	}, opts)
}

// AddLLMNode adds a node that calls m with the message log, prefixed by
// instruction, and appends the assistant reply.
func (sg *StateGraph) AddLLMNode(
	id string,
	m model.Model,
	instruction string,
	tools map[string]tool.Tool,
	opts ...Option,
) *StateGraph {
	if m == nil {
		sg.addBuildError(fmt.Errorf("llm node %s: model cannot be nil", id))
		return sg
	}
	return sg.addNode(&Node{
		ID:       id,
		Type:     NodeTypeLLM,
		Function: NewLLMNodeFunc(m, instruction, tools),
	}, opts)
}

// AddToolsNode adds a node that executes the tool calls of the last
// assistant message.
func (sg *StateGraph) AddToolsNode(id string, tools map[string]tool.Tool, opts ...Option) *StateGraph {
	return sg.addNode(&Node{
		ID:       id,
		Type:     NodeTypeTools,
		Function: NewToolsNodeFunc(tools),
		tools:    tools,
	}, opts)
}

// AddSubgraphNode adds a node that runs a compiled graph on the shared
// state. Commands the subgraph addresses to its parent become this node's
// own command.
func (sg *StateGraph) AddSubgraphNode(id string, subgraph *Graph, opts ...Option) *StateGraph {
	if subgraph == nil {
		sg.addBuildError(fmt.Errorf("subgraph node %s: graph cannot be nil", id))
		return sg
	}
	return sg.addNode(&Node{
		ID:       id,
		Type:     NodeTypeSubgraph,
		Function: newSubgraphNodeFunc(subgraph),
		subgraph: subgraph,
	}, opts)
}

// AddEdge adds a static edge.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	if err := sg.graph.addEdge(&Edge{From: from, To: to}); err != nil {
		sg.addBuildError(err)
	}
	return sg
}

// AddConditionalEdges routes from a node through condition. pathMap maps
// branch results to node IDs; nil uses results as node IDs.
func (sg *StateGraph) AddConditionalEdges(
	from string,
	condition ConditionalFunc,
	pathMap map[string]string,
) *StateGraph {
	edge := &ConditionalEdge{From: from, Condition: condition}
	if pathMap != nil {
		edge.PathMap = make(map[string]string, len(pathMap))
		for k, v := range pathMap {
			edge.PathMap[k] = v
		}
	}
	if err := sg.graph.addConditionalEdge(edge); err != nil {
		sg.addBuildError(err)
	}
	return sg
}

// AddToolsConditionalEdges routes from llmNode to toolsNode when the last
// assistant message requests tool calls, and to fallback otherwise.
func (sg *StateGraph) AddToolsConditionalEdges(llmNode, toolsNode, fallback string) *StateGraph {
	condition := func(ctx context.Context, state State) (string, error) {
		messages, _ := GetStateValue[[]model.Message](state, StateKeyMessages)
		if len(messages) > 0 {
			last := messages[len(messages)-1]
			if last.Role == model.RoleAssistant && len(last.ToolCalls) > 0 {
				return toolsNode, nil
			}
		}
		return fallback, nil
	}
	return sg.AddConditionalEdges(llmNode, condition, map[string]string{
		toolsNode: toolsNode,
		fallback:  fallback,
	})
}

// SetEntryPoint sets the first node.
func (sg *StateGraph) SetEntryPoint(nodeID string) *StateGraph {
	return sg.AddEdge(Start, nodeID)
}

// SetFinishPoint routes nodeID to End.
func (sg *StateGraph) SetFinishPoint(nodeID string) *StateGraph {
	return sg.AddEdge(nodeID, End)
}

// CompileOption configures Compile.
type CompileOption func(*Graph)

// WithGraphName names the compiled graph. Swarms use it as the agent name.
func WithGraphName(name string) CompileOption {
	return func(g *Graph) {
		g.name = name
	}
}

// Compile validates the graph and returns it for execution.
func (sg *StateGraph) Compile(opts ...CompileOption) (*Graph, error) {
	if len(sg.buildErrs) > 0 {
		return nil, fmt.Errorf("graph build failed: %w", errors.Join(sg.buildErrs...))
	}
	if err := sg.graph.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	for _, opt := range opts {
		opt(sg.graph)
	}
	return sg.graph, nil
}

// MustCompile compiles the graph or panics if invalid.
func (sg *StateGraph) MustCompile(opts ...CompileOption) *Graph {
	g, err := sg.Compile(opts...)
	if err != nil {
		panic(err)
	}
	return g
}
