//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides graph-based execution functionality similar to LangGraph.
package graph

import (
	"context"
	"fmt"
	"sort"

	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

// Special node identifiers.
const (
	// Start is the virtual entry node.
	Start = "__start__"
	// End is the virtual terminal node.
	End = "__end__"
)

// NodeType represents the type of a node in the graph.
type NodeType string

const (
	// NodeTypeFunction represents a node running a custom function.
	NodeTypeFunction NodeType = "function"
	// NodeTypeLLM represents a node calling a language model.
	NodeTypeLLM NodeType = "llm"
	// NodeTypeTools represents a node executing tool calls.
	NodeTypeTools NodeType = "tools"
	// NodeTypeSubgraph represents a node running a compiled graph.
	NodeTypeSubgraph NodeType = "subgraph"
)

// NodeFunc is the function executed by a node. The result may be nil, a
// State update or a *Command.
type NodeFunc func(ctx context.Context, state State) (any, error)

// ConditionalFunc picks the next branch from the current state.
type ConditionalFunc func(ctx context.Context, state State) (string, error)

// Node represents a node in the graph.
type Node struct {
	// ID is the unique identifier of the node.
	ID string
	// Name is the human-readable name of the node.
	Name string
	// Description is the description of the node.
	Description string
	// Type is the type of the node.
	Type NodeType
	// Function is the function to execute.
	Function NodeFunc

	tools    map[string]tool.Tool
	subgraph *Graph
	// ends maps Command.GoTo values to concrete node IDs.
	ends map[string]string
}

// Tools returns a copy of the tools registered on a tools node.
func (n *Node) Tools() map[string]tool.Tool {
	if n.tools == nil {
		return nil
	}
	tools := make(map[string]tool.Tool, len(n.tools))
	for name, t := range n.tools {
		tools[name] = t
	}
	return tools
}

// Subgraph returns the graph run by a subgraph node.
func (n *Node) Subgraph() *Graph {
	return n.subgraph
}

// Ends returns a copy of the node's ends map.
func (n *Node) Ends() map[string]string {
	if n.ends == nil {
		return nil
	}
	ends := make(map[string]string, len(n.ends))
	for k, v := range n.ends {
		ends[k] = v
	}
	return ends
}

// Destinations returns the sorted node IDs the node may jump to by command.
func (n *Node) Destinations() []string {
	seen := make(map[string]bool, len(n.ends))
	var out []string
	for _, to := range n.ends {
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	sort.Strings(out)
	return out
}

// Edge represents a static edge in the graph.
type Edge struct {
	// From is the source node ID.
	From string
	// To is the target node ID.
	To string
}

// ConditionalEdge routes from a node through a condition.
type ConditionalEdge struct {
	// From is the source node ID.
	From string
	// Condition chooses a branch.
	Condition ConditionalFunc
	// PathMap maps branch results to node IDs. When nil the branch result
	// is used as the node ID.
	PathMap map[string]string
}

// Graph is a compiled, immutable graph. Build one with StateGraph.
type Graph struct {
	name             string
	schema           *StateSchema
	nodes            map[string]*Node
	nodeOrder        []string
	edges            map[string][]*Edge
	conditionalEdges map[string]*ConditionalEdge
}

// New creates an empty graph with the given schema.
func New(schema *StateSchema) *Graph {
	if schema == nil {
		schema = NewStateSchema()
	}
	return &Graph{
		schema:           schema,
		nodes:            make(map[string]*Node),
		edges:            make(map[string][]*Edge),
		conditionalEdges: make(map[string]*ConditionalEdge),
	}
}

// Name returns the graph name set at compile time.
func (g *Graph) Name() string {
	return g.name
}

// Schema returns the state schema.
func (g *Graph) Schema() *StateSchema {
	return g.schema
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Edges returns the static edges leaving from.
func (g *Graph) Edges(from string) []*Edge {
	return g.edges[from]
}

// ConditionalEdge returns the conditional edge leaving from, if any.
func (g *Graph) ConditionalEdge(from string) (*ConditionalEdge, bool) {
	edge, ok := g.conditionalEdges[from]
	return edge, ok
}

func (g *Graph) addNode(node *Node) error {
	switch {
	case node.ID == "":
		return fmt.Errorf("node ID cannot be empty")
	case node.ID == Start || node.ID == End:
		return fmt.Errorf("node ID %s is reserved", node.ID)
	case node.Function == nil:
		return fmt.Errorf("node %s has no function", node.ID)
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("node with ID %s already exists", node.ID)
	}
	g.nodes[node.ID] = node
	g.nodeOrder = append(g.nodeOrder, node.ID)
	return nil
}

func (g *Graph) checkSource(from string) error {
	if from == "" {
		return fmt.Errorf("edge source cannot be empty")
	}
	if from == End {
		return fmt.Errorf("edge cannot start from %s", End)
	}
	if from == Start {
		return nil
	}
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("source node %s does not exist", from)
	}
	return nil
}

func (g *Graph) addEdge(edge *Edge) error {
	if err := g.checkSource(edge.From); err != nil {
		return err
	}
	if edge.To == "" {
		return fmt.Errorf("edge target cannot be empty")
	}
	g.edges[edge.From] = append(g.edges[edge.From], edge)
	return nil
}

func (g *Graph) addConditionalEdge(edge *ConditionalEdge) error {
	if err := g.checkSource(edge.From); err != nil {
		return err
	}
	if edge.Condition == nil {
		return fmt.Errorf("conditional edge from %s has no condition", edge.From)
	}
	if _, exists := g.conditionalEdges[edge.From]; exists {
		return fmt.Errorf("node %s already has conditional edges", edge.From)
	}
	g.conditionalEdges[edge.From] = edge
	return nil
}

// hasTarget reports whether id names a node or End.
func (g *Graph) hasTarget(id string) bool {
	if id == End {
		return true
	}
	_, ok := g.nodes[id]
	return ok
}

// validate checks the structure of a fully built graph.
func (g *Graph) validate() error {
	_, hasCond := g.conditionalEdges[Start]
	if len(g.edges[Start]) == 0 && !hasCond {
		return fmt.Errorf("graph must have an entry point")
	}
	for from, edges := range g.edges {
		if len(edges) > 1 {
			return fmt.Errorf("node %s has %d static edges; at most one is supported", from, len(edges))
		}
		if _, ok := g.conditionalEdges[from]; ok {
			return fmt.Errorf("node %s has both static and conditional edges", from)
		}
		for _, edge := range edges {
			if !g.hasTarget(edge.To) {
				return fmt.Errorf("edge %s -> %s: target node does not exist", edge.From, edge.To)
			}
		}
	}
	for from, edge := range g.conditionalEdges {
		for branch, to := range edge.PathMap {
			if !g.hasTarget(to) {
				return fmt.Errorf("conditional edge from %s: branch %q targets unknown node %s",
					from, branch, to)
			}
		}
	}
	for _, id := range g.nodeOrder {
		for goTo, to := range g.nodes[id].ends {
			if !g.hasTarget(to) {
				return fmt.Errorf("node %s: ends entry %q targets unknown node %s", id, goTo, to)
			}
		}
	}
	return nil
}
